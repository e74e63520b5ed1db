package server

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"

	"chatrelay/pkg/domain"
)

type updateRoleRequest struct {
	Role string `json:"role"`
}

func (s *Server) handleAdminUserStats(w http.ResponseWriter, r *http.Request, _ domain.User) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	stats, err := s.app.AdminUserStats()
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleAdminChatStats(w http.ResponseWriter, r *http.Request, _ domain.User) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	stats, err := s.app.AdminChatStats()
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleAdminModelStats(w http.ResponseWriter, r *http.Request, _ domain.User) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	usage, err := s.app.AdminModelStats()
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"models": usage})
}

func (s *Server) handleAdminRevenue(w http.ResponseWriter, r *http.Request, _ domain.User) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	stats, err := s.app.AdminRevenue()
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleAdminUsers(w http.ResponseWriter, r *http.Request, _ domain.User) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	result, err := s.app.AdminListUsers(page, limit)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleAdminUserByID dispatches /admin/users/{id} and
// /admin/users/{id}/role.
func (s *Server) handleAdminUserByID(w http.ResponseWriter, r *http.Request, admin domain.User) {
	rest := strings.TrimPrefix(r.URL.Path, "/admin/users/")
	userID, sub, _ := strings.Cut(rest, "/")
	if userID == "" {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	switch {
	case sub == "role" && r.Method == http.MethodPut:
		var req updateRoleRequest
		if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		updated, err := s.app.AdminUpdateUserRole(userID, domain.UserRole(req.Role))
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"user": updated})
	case sub == "" && r.Method == http.MethodDelete:
		if userID == admin.ID {
			writeError(w, http.StatusBadRequest, "cannot delete own account here")
			return
		}
		if err := s.app.AdminDeleteUser(userID); err != nil {
			writeAppError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	case sub == "" || sub == "role":
		methodNotAllowed(w)
	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}
