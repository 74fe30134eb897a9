package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/hearthlabs/hearth-cloud/internal/auth"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// handleLogin verifies an email/password pair and returns an access
// token scoped to the user's primary household.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if s.auth == nil {
		writeInternalError(w, "login unavailable")
		return
	}

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Email == "" || req.Password == "" {
		writeBadRequest(w, "email and password are required")
		return
	}

	result, err := s.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			writeUnauthorized(w, "invalid credentials")
			return
		}
		s.logger.Error("login failed", "error", err)
		writeInternalError(w, "processing login")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ok":          true,
		"token":       result.Token,
		"householdId": result.HouseholdID,
		"role":        string(result.Role),
		"user": map[string]any{
			"id":          result.User.ID,
			"email":       result.User.Email,
			"displayName": result.User.DisplayName,
		},
	})
}
