package api

import (
	"modelhub/internal/service"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// @Summary      List categories
// @Tags         categories
// @Produce      json
// @Success      200  {array}  models.Category
// @Router       /categories [get]
func (s *Server) ListCategoriesHandler(w http.ResponseWriter, r *http.Request) {
	categories, err := s.services.Categories.List(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, categories)
}

// @Summary      Get a category
// @Tags         categories
// @Produce      json
// @Param        id   path      int  true  "Category ID"
// @Success      200  {object}  models.Category
// @Failure      404  {object}  messageResponse
// @Router       /categories/{id} [get]
func (s *Server) GetCategoryHandler(w http.ResponseWriter, r *http.Request) {
	category, err := s.services.Categories.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, category)
}

// @Summary      Create a category
// @Tags         categories
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        category  body      service.CreateCategoryInput  true  "Category"
// @Success      201       {object}  models.Category
// @Failure      400       {object}  messageResponse
// @Failure      409       {object}  messageResponse
// @Router       /categories [post]
func (s *Server) CreateCategoryHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := s.requireUser(w, r)
	if !ok {
		return
	}

	var req service.CreateCategoryInput
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	category, err := s.services.Categories.Create(r.Context(), user, req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, category)
}
