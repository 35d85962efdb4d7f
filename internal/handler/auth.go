package handler

import (
	"net/http"
	"time"

	"event-invitations/internal/models"
	"event-invitations/internal/session"
)

type loginRequest struct {
	Phone    string `json:"phone"`
	Passcode string `json:"passcode"`
}

type loginResponse struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expiresAt"`
	UserID    string      `json:"userId"`
	Role      models.Role `json:"role"`
}

// handleSignup handles POST /auth/signup
func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var in session.SignupInput
	if err := decodeJSON(r, &in); err != nil {
		SendError(w, r, err)
		return
	}

	u, err := s.sessions.Signup(r.Context(), in)
	if err != nil {
		SendError(w, r, err)
		return
	}
	SendJSON(w, http.StatusCreated, u)
}

// handleLogin handles POST /auth/login
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		SendError(w, r, err)
		return
	}

	token, sess, err := s.sessions.Login(r.Context(), req.Phone, req.Passcode)
	if err != nil {
		SendError(w, r, err)
		return
	}
	SendJSON(w, http.StatusOK, loginResponse{
		Token:     token,
		ExpiresAt: sess.ExpiresAt,
		UserID:    sess.UserID,
		Role:      sess.Role,
	})
}

// handleLogout handles POST /auth/logout
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Logout(r.Context(), currentSession(r)); err != nil {
		SendError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
