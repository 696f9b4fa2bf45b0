package api

import (
	"modelhub/internal/service"
	"net/http"
)

// @Summary      Registers a user
// @Description  Creates an account and returns a signed token together with the new user.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        registerRequest  body      service.RegisterInput  true  "Account details"
// @Success      201              {object}  service.AuthResult
// @Failure      400              {object}  messageResponse
// @Failure      429              {object}  messageResponse
// @Router       /auth/register [post]
func (s *Server) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	var req service.RegisterInput
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	result, err := s.services.Auth.Register(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, result)
}

// @Summary      Logs a user in
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        loginRequest  body      service.LoginInput  true  "Login Credentials"
// @Success      200           {object}  service.AuthResult
// @Failure      401           {object}  messageResponse
// @Router       /auth/login [post]
func (s *Server) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req service.LoginInput
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	result, err := s.services.Auth.Login(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// @Summary      Get current user info
// @Tags         auth
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  models.User
// @Failure      401  {object}  messageResponse
// @Router       /auth/me [get]
func (s *Server) GetCurrentUserHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := s.requireUser(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, user)
}
