package server

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"chatrelay/pkg/domain"
)

type createChatRequest struct {
	Title string `json:"title"`
}

type sendMessageRequest struct {
	Text  string `json:"text"`
	Model string `json:"model"`
}

func (s *Server) handleChats(w http.ResponseWriter, r *http.Request, user domain.User) {
	switch r.Method {
	case http.MethodPost:
		var req createChatRequest
		if r.Body != nil {
			_ = json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req)
		}
		chat, err := s.app.CreateChat(user, req.Title)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"chat": chat})
	case http.MethodGet:
		chats, err := s.app.ListChats(user)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"chats": chats})
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleModels(w http.ResponseWriter, r *http.Request, _ domain.User) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"models":       s.app.Models(),
		"defaultModel": s.app.DefaultModel(),
	})
}

// handleChatByID dispatches /chats/{id}, /chats/{id}/messages, and
// /chats/{id}/export.
func (s *Server) handleChatByID(w http.ResponseWriter, r *http.Request, user domain.User) {
	rest := strings.TrimPrefix(r.URL.Path, "/chats/")
	chatID, sub, _ := strings.Cut(rest, "/")
	if chatID == "" {
		writeError(w, http.StatusNotFound, "chat not found")
		return
	}
	switch sub {
	case "":
		s.handleChat(w, r, user, chatID)
	case "messages":
		s.handleSendMessage(w, r, user, chatID)
	case "export":
		s.handleExport(w, r, user, chatID)
	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request, user domain.User, chatID string) {
	switch r.Method {
	case http.MethodGet:
		chat, err := s.app.GetChat(user, chatID)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"chat": chat})
	case http.MethodDelete:
		if err := s.app.DeleteChat(user, chatID); err != nil {
			writeAppError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request, user domain.User, chatID string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req sendMessageRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	result, err := s.app.SendMessage(r.Context(), user, chatID, req.Text, req.Model)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request, user domain.User, chatID string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	export, err := s.app.ExportChat(user, chatID, r.URL.Query().Get("format"))
	if err != nil {
		writeAppError(w, err)
		return
	}
	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+export.Filename+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(export.Body)
}
