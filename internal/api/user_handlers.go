package api

import (
	"modelhub/internal/service"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// @Summary      Get a user profile
// @Description  Returns the user with followers and following populated.
// @Tags         users
// @Produce      json
// @Param        id   path      int  true  "User ID"
// @Success      200  {object}  models.UserProfile
// @Failure      404  {object}  messageResponse
// @Router       /users/{id} [get]
func (s *Server) GetProfileHandler(w http.ResponseWriter, r *http.Request) {
	profile, err := s.services.Users.Profile(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// @Summary      Update own profile
// @Tags         users
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      int                          true  "User ID"
// @Param        profile  body      service.UpdateProfileInput  true  "Fields to change"
// @Success      200      {object}  models.User
// @Failure      400      {object}  messageResponse
// @Failure      403      {object}  messageResponse
// @Router       /users/{id} [put]
func (s *Server) UpdateProfileHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := s.requireUser(w, r)
	if !ok {
		return
	}

	var req service.UpdateProfileInput
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	updated, err := s.services.Users.UpdateProfile(r.Context(), user, chi.URLParam(r, "id"), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// @Summary      Follow a user
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      int  true  "User ID"
// @Success      200  {object}  service.MessageResult
// @Failure      400  {object}  messageResponse
// @Failure      404  {object}  messageResponse
// @Failure      409  {object}  messageResponse
// @Router       /users/{id}/follow [post]
func (s *Server) FollowHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := s.requireUser(w, r)
	if !ok {
		return
	}

	result, err := s.services.Users.Follow(r.Context(), user, chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// @Summary      Unfollow a user
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      int  true  "User ID"
// @Success      200  {object}  service.MessageResult
// @Failure      404  {object}  messageResponse
// @Router       /users/{id}/unfollow [post]
func (s *Server) UnfollowHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := s.requireUser(w, r)
	if !ok {
		return
	}

	result, err := s.services.Users.Unfollow(r.Context(), user, chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
