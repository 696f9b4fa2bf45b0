package service

import (
	"modelhub/internal/auth"
	"modelhub/internal/database"
	"time"
)

type Services struct {
	Auth       *AuthService
	Categories *CategoryService
	Models     *ModelService
	Users      *UserService
	Events     *EventService
}

// NewServices wires every service to the same store. timeout bounds each
// database round trip.
func NewServices(store *database.Store, files FileGateway, tokens *auth.TokenManager, timeout time.Duration) (*Services, error) {
	modelService, err := NewModelService(store, store, store, files, timeout)
	if err != nil {
		return nil, err
	}

	return &Services{
		Auth:       NewAuthService(store, tokens, timeout),
		Categories: NewCategoryService(store, timeout),
		Models:     modelService,
		Users:      NewUserService(store, store, timeout),
		Events:     NewEventService(store, timeout),
	}, nil
}
