package http

import (
	"net/http"

	"gagyebu/internal/log"
)

// handleSignup registers an account and returns it with a token.
func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	body := NewRequestBodyParser(r)
	if err := body.Parse(); err != nil {
		BadRequestError("malformed request body").Write(w)
		return
	}

	sess, err := s.accounts.Signup(r.Context(), body.Get("username"), body.Secret("password"))
	if err != nil {
		s.failed(r, log.OpSignup, err)
		ErrorFor(err).Write(w)
		return
	}
	NewResponse().Status(http.StatusCreated).JSON(sess).Write(w)
}

// handleLogin exchanges a username and password for a token.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	body := NewRequestBodyParser(r)
	if err := body.Parse(); err != nil {
		BadRequestError("malformed request body").Write(w)
		return
	}

	sess, err := s.accounts.Login(r.Context(), body.Get("username"), body.Secret("password"))
	if err != nil {
		s.failed(r, log.OpLogin, err)
		ErrorFor(err).Write(w)
		return
	}
	NewResponse().JSON(sess).Write(w)
}
