package service

import (
	"context"
	"errors"
	"modelhub/internal/database"
	"modelhub/internal/models"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

type CreateCategoryInput struct {
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description" validate:"max=500"`
	Icon        string `json:"icon" validate:"max=2048"`
}

type CategoryService struct {
	categories CategoryStore
	validate   *validator.Validate
	timeout    time.Duration
}

func NewCategoryService(categories CategoryStore, timeout time.Duration) *CategoryService {
	return &CategoryService{
		categories: categories,
		validate:   newValidator(),
		timeout:    timeout,
	}
}

func (s *CategoryService) List(ctx context.Context) ([]models.Category, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	categories, err := s.categories.ListCategories(ctx)
	if err != nil {
		return nil, storeError("list categories", err)
	}
	return categories, nil
}

// Get looks a category up by its id as given in the URL. An id that is not a
// number cannot exist and is reported as not found.
func (s *CategoryService) Get(ctx context.Context, rawID string) (*models.Category, error) {
	id, ok := parseID(rawID)
	if !ok {
		return nil, notFound("category")
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	category, err := s.categories.GetCategoryByID(ctx, id)
	if err != nil {
		return nil, storeError("get category", err)
	}
	if category == nil {
		return nil, notFound("category")
	}
	return category, nil
}

func (s *CategoryService) Create(ctx context.Context, caller *models.User, in CreateCategoryInput) (*models.Category, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Description = strings.TrimSpace(in.Description)
	in.Icon = strings.TrimSpace(in.Icon)
	if err := checkStruct(s.validate, in); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	category, err := s.categories.CreateCategory(ctx, database.CreateCategoryParams{
		Name:        in.Name,
		Description: in.Description,
		Icon:        in.Icon,
		CreatedBy:   caller.ID,
	})
	if err != nil {
		switch {
		case errors.Is(err, database.ErrDuplicateCategory):
			return nil, newError(ErrConflict, "category already exists")
		case errors.Is(err, database.ErrUserNotFound):
			return nil, newError(ErrUnauthorized, "user no longer exists")
		}
		return nil, storeError("create category", err)
	}

	return category, nil
}
