package server

import (
	"io"
	"net/http"

	"chatrelay/internal/util"
	"chatrelay/pkg/domain"
)

const maxWebhookBody = 1 << 20

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	session, err := s.app.CreateCheckoutSession(user)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

// handleWebhook verifies the raw body signature before any decoding.
// Failures are answered 400 without detail; the cause goes to the logs.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if s.webhook == nil {
		writeError(w, http.StatusNotImplemented, "webhook not configured")
		return
	}
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	logger := util.LoggerFromContext(r.Context())
	event, err := s.webhook.ParseEvent(payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		logger.Warn("webhook rejected", "error", err)
		writeError(w, http.StatusBadRequest, "invalid signature")
		return
	}
	if err := s.app.ApplySubscriptionEvent(event); err != nil {
		logger.Error("webhook apply failed", "event_type", event.Type, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"received": true})
}
