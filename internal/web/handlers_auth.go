package web

import (
	"context"
	"net/http"

	"github.com/vitos/crypto_watch/internal/domain"
)

type credentialsRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

type userResponse struct {
	User *domain.Identity `json:"user"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	s.authenticate(w, r, s.identity.Login, http.StatusOK)
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	s.authenticate(w, r, s.identity.Register, http.StatusCreated)
}

func (s *Server) authenticate(w http.ResponseWriter, r *http.Request, exchange func(context.Context, string, string) (*domain.Identity, error), status int) {
	var req credentialsRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	id, err := exchange(r.Context(), req.Email, req.Password)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, status, userResponse{User: id})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.identity.Logout(r.Context()); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	id := s.identity.Current()
	if id == nil {
		s.writeError(w, r, domain.ErrAuthenticationRequired)
		return
	}
	s.writeJSON(w, http.StatusOK, userResponse{User: id})
}
