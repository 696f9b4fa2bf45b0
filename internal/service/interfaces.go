package service

//go:generate mockgen -source=interfaces.go -destination=../mock/service_deps_mock.go -package=mock

import (
	"context"
	"io"
	"modelhub/internal/database"
	"modelhub/internal/models"
	"modelhub/internal/storage"
)

type UserStore interface {
	CreateUser(ctx context.Context, arg database.CreateUserParams) (*models.User, error)
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateUser(ctx context.Context, id int64, arg database.UpdateUserParams) (*models.User, error)
	GetUserProfile(ctx context.Context, id int64) (*models.UserProfile, error)
	Follow(ctx context.Context, followerID, followeeID int64) error
	Unfollow(ctx context.Context, followerID, followeeID int64) (bool, error)
}

type CategoryStore interface {
	ListCategories(ctx context.Context) ([]models.Category, error)
	GetCategoryByID(ctx context.Context, id int64) (*models.Category, error)
	CreateCategory(ctx context.Context, arg database.CreateCategoryParams) (*models.Category, error)
	CategoryExists(ctx context.Context, id int64) (bool, error)
}

type ModelStore interface {
	ListModels(ctx context.Context, arg database.ListModelsParams) ([]models.Model, int64, error)
	ViewModel(ctx context.Context, id string) (*models.Model, error)
	GetModelByID(ctx context.Context, id string) (*models.Model, error)
	GetStoredFile(ctx context.Context, id string) (*models.StoredFile, error)
	IncrementModelDownloads(ctx context.Context, id string) (bool, error)
	CreateModel(ctx context.Context, arg database.CreateModelParams) (*models.Model, error)
	UpdateModel(ctx context.Context, id string, authorID int64, arg database.UpdateModelParams) (*models.Model, error)
	DeleteModel(ctx context.Context, id string, authorID int64) (string, bool, error)
	GetModelAuthorID(ctx context.Context, id string) (int64, bool, error)
	LikeModel(ctx context.Context, modelID string, userID int64) (int64, error)
	UnlikeModel(ctx context.Context, modelID string, userID int64) (int64, error)
}

type EventStore interface {
	LogEvent(ctx context.Context, userID int64, eventType string, payload interface{}) (*models.Event, error)
	GetEventsSince(ctx context.Context, userID int64, sinceID int64) ([]models.Event, error)
}

type FileGateway interface {
	Accept(ctx context.Context, originalName string, declaredSize int64, data io.Reader) (*storage.Upload, error)
	Open(ctx context.Context, url string) (io.ReadCloser, int64, error)
	Remove(ctx context.Context, url string) error
}
