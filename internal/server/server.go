package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"chatrelay/internal/app"
	"chatrelay/internal/ratelimit"
	"chatrelay/internal/util"
	"chatrelay/pkg/ai"
	"chatrelay/pkg/billing"
	"chatrelay/pkg/domain"
)

const serviceName = "chatrelay"

// Config wires required dependencies for the HTTP server.
type Config struct {
	App            *app.App
	Google         *GoogleOAuth
	Webhook        *billing.Verifier
	SignupLimiter  *ratelimit.FixedWindowLimiter
	LoginLimiter   *ratelimit.FixedWindowLimiter
	TrustedProxies *util.TrustedProxies
	FrontendOrigin string
}

// Server exposes the HTTP API.
type Server struct {
	app            *app.App
	google         *GoogleOAuth
	webhook        *billing.Verifier
	signupLimiter  *ratelimit.FixedWindowLimiter
	loginLimiter   *ratelimit.FixedWindowLimiter
	trustedProxies *util.TrustedProxies
	frontendOrigin string
	mux            *http.ServeMux
}

// New constructs the server with routes configured.
func New(cfg Config) *Server {
	s := &Server{
		app:            cfg.App,
		google:         cfg.Google,
		webhook:        cfg.Webhook,
		signupLimiter:  cfg.SignupLimiter,
		loginLimiter:   cfg.LoginLimiter,
		trustedProxies: cfg.TrustedProxies,
		frontendOrigin: cfg.FrontendOrigin,
		mux:            http.NewServeMux(),
	}
	s.routes()
	return s
}

// Router returns the configured handler with the middleware chain applied.
func (s *Server) Router() http.Handler {
	var h http.Handler = s.mux
	h = util.WithCORS(s.frontendOrigin, h)
	h = util.WithSecurityHeaders(h)
	h = util.WithRequestLog(serviceName, h)
	h = util.WithRequestID(h)
	return h
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)

	// auth
	s.mux.HandleFunc("/auth/signup", s.handleSignup)
	s.mux.HandleFunc("/auth/login", s.handleLogin)
	s.mux.HandleFunc("/auth/logout", s.handleLogout)
	s.mux.Handle("/auth/me", s.authenticated(s.handleMe))
	s.mux.Handle("/auth/profile", s.authenticated(s.handleProfile))
	s.mux.Handle("/auth/account", s.authenticated(s.handleAccount))
	s.mux.HandleFunc("/auth/google", s.handleGoogleLogin)
	s.mux.HandleFunc("/auth/google/callback", s.handleGoogleCallback)

	// chats
	s.mux.Handle("/chats", s.authenticated(s.handleChats))
	s.mux.Handle("/chats/models", s.authenticated(s.handleModels))
	s.mux.Handle("/chats/", s.authenticated(s.handleChatByID))

	// billing
	s.mux.Handle("/stripe/create-session", s.authenticated(s.handleCreateSession))
	s.mux.HandleFunc("/stripe/webhook", s.handleWebhook)

	// admin
	s.mux.Handle("/admin/users/stats", s.adminOnly(s.handleAdminUserStats))
	s.mux.Handle("/admin/chats/stats", s.adminOnly(s.handleAdminChatStats))
	s.mux.Handle("/admin/models/stats", s.adminOnly(s.handleAdminModelStats))
	s.mux.Handle("/admin/revenue", s.adminOnly(s.handleAdminRevenue))
	s.mux.Handle("/admin/users", s.adminOnly(s.handleAdminUsers))
	s.mux.Handle("/admin/users/", s.adminOnly(s.handleAdminUserByID))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// auth wrappers
type authHandler func(http.ResponseWriter, *http.Request, domain.User)

func (s *Server) authenticated(next authHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := s.authorize(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r, user)
	})
}

func (s *Server) adminOnly(next authHandler) http.Handler {
	return s.authenticated(func(w http.ResponseWriter, r *http.Request, user domain.User) {
		if user.Role != domain.RoleAdmin {
			writeError(w, http.StatusForbidden, "forbidden")
			return
		}
		next(w, r, user)
	})
}

func (s *Server) authorize(r *http.Request) (domain.User, bool) {
	token, ok := bearerToken(r)
	if !ok {
		return domain.User{}, false
	}
	return s.app.UserFromToken(token)
}

func (s *Server) allow(limiter *ratelimit.FixedWindowLimiter, r *http.Request) bool {
	if limiter == nil {
		return true
	}
	return limiter.Allow(util.ClientIP(r, s.trustedProxies))
}

// writeAppError maps application errors onto HTTP statuses.
func writeAppError(w http.ResponseWriter, err error) {
	var limitErr *app.LimitError
	switch {
	case errors.As(err, &limitErr):
		writeJSON(w, http.StatusForbidden, map[string]any{
			"error":     limitErr.Error(),
			"limitType": limitErr.Kind,
			"limit":     limitErr.Limit,
			"current":   limitErr.Current,
		})
	case errors.Is(err, app.ErrChatNotFound), errors.Is(err, app.ErrUserNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, app.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, app.ErrAIResponseFailed):
		writeError(w, http.StatusInternalServerError, err.Error())
	case errors.Is(err, app.ErrMessageTextRequired),
		errors.Is(err, app.ErrInvalidRole),
		errors.Is(err, app.ErrUnknownExportFormat),
		errors.Is(err, ai.ErrUnknownModel):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	if token == "" {
		return "", false
	}
	return token, true
}
