package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"modelhub/internal/database"
	"modelhub/internal/logger"
	"modelhub/internal/models"
	"modelhub/internal/storage"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jaevor/go-nanoid"
)

const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100

	maxIDRetries = 10
	// maxPageOffset keeps the offset inside PostgreSQL's bigint.
	maxPageOffset = math.MaxInt32
)

// ListModelsInput holds the raw query parameters of a catalog listing.
type ListModelsInput struct {
	Category string
	Search   string
	Page     string
	Limit    string
}

type CreateModelInput struct {
	Title        string `json:"title" validate:"required,max=200"`
	Description  string `json:"description" validate:"max=5000"`
	Category     string `json:"category" validate:"required"`
	License      string `json:"license" validate:"oneof=CC0 CC4 Attribution Non-commercial"`
	Tags         string `json:"tags"`
	HasAnimation string `json:"hasAnimation"`
}

// UpdateModelInput holds the fields a caller sent. Nil means "leave as is".
type UpdateModelInput struct {
	Title        *string   `json:"title" validate:"omitempty,max=200"`
	Description  *string   `json:"description" validate:"omitempty,max=5000"`
	Category     *string   `json:"category"`
	License      *string   `json:"license" validate:"omitempty,oneof=CC0 CC4 Attribution Non-commercial"`
	Tags         *[]string `json:"tags"`
	HasAnimation *bool     `json:"hasAnimation"`
}

// UploadedFile is the model binary as received from the client.
type UploadedFile struct {
	Name   string
	Size   int64
	Reader io.Reader
}

type LikeResult struct {
	Message    string `json:"message"`
	LikesCount int64  `json:"likesCount"`
}

// Download is an open stored file. The caller closes Reader.
type Download struct {
	Reader   io.ReadCloser
	FileName string
	Size     int64
}

type ModelService struct {
	models     ModelStore
	categories CategoryStore
	events     EventStore
	files      FileGateway
	validate   *validator.Validate
	newID      func() string
	timeout    time.Duration
}

func NewModelService(
	modelStore ModelStore,
	categories CategoryStore,
	events EventStore,
	files FileGateway,
	timeout time.Duration,
) (*ModelService, error) {
	generateID, err := nanoid.Standard(21)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize nanoid generator: %w", err)
	}

	return &ModelService{
		models:     modelStore,
		categories: categories,
		events:     events,
		files:      files,
		validate:   newValidator(),
		newID:      generateID,
		timeout:    timeout,
	}, nil
}

// List returns one page of the catalog, newest first. Out of range paging
// values are clamped and a category id that is not a number matches nothing.
func (s *ModelService) List(ctx context.Context, in ListModelsInput) (*models.ModelPage, error) {
	page := positiveInt(in.Page, 1)
	limit := min(positiveInt(in.Limit, DefaultPageLimit), MaxPageLimit)

	result := &models.ModelPage{Models: []models.Model{}, CurrentPage: page}

	arg := database.ListModelsParams{
		Search: strings.TrimSpace(in.Search),
		Limit:  limit,
	}
	if page-1 > maxPageOffset/limit {
		// Past any reachable row: still count, but fetch nothing.
		arg.Limit = 0
	} else {
		arg.Offset = (page - 1) * limit
	}
	if raw := strings.TrimSpace(in.Category); raw != "" {
		id, ok := parseID(raw)
		if !ok {
			return result, nil
		}
		arg.CategoryID = &id
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	list, total, err := s.models.ListModels(ctx, arg)
	if err != nil {
		return nil, storeError("list models", err)
	}

	result.Models = list
	result.Total = total
	result.TotalPages = int64(math.Ceil(float64(total) / float64(limit)))
	return result, nil
}

// Get returns a model and counts the view.
func (s *ModelService) Get(ctx context.Context, id string) (*models.Model, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	model, err := s.models.ViewModel(ctx, id)
	if err != nil {
		return nil, storeError("view model", err)
	}
	if model == nil {
		return nil, notFound("model")
	}
	return model, nil
}

func (s *ModelService) requireCategory(ctx context.Context, raw string) (int64, error) {
	id, ok := parseID(raw)
	if !ok {
		return 0, validationError("category not found")
	}
	exists, err := s.categories.CategoryExists(ctx, id)
	if err != nil {
		return 0, storeError("check category", err)
	}
	if !exists {
		return 0, validationError("category not found")
	}
	return id, nil
}

func gatewayError(err error) error {
	switch {
	case errors.Is(err, storage.ErrNoFile):
		return validationError("model file is required")
	case errors.Is(err, storage.ErrInvalidFormat):
		return validationError("invalid file type, allowed: %s", strings.Join(storage.AllowedFormats, ", "))
	case errors.Is(err, storage.ErrTooLarge):
		return validationError("file is too large")
	}
	return fmt.Errorf("store model file: %w", err)
}

// Create stores the uploaded file and then the model row. When the row
// cannot be written the stored file is removed again.
func (s *ModelService) Create(ctx context.Context, caller *models.User, in CreateModelInput, file *UploadedFile) (*models.Model, error) {
	log := logger.FromContext(ctx)

	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.Category = strings.TrimSpace(in.Category)
	in.License = strings.TrimSpace(in.License)
	if in.License == "" {
		in.License = string(models.LicenseCC0)
	}
	if file == nil || file.Reader == nil {
		return nil, validationError("model file is required")
	}
	if err := checkStruct(s.validate, in); err != nil {
		return nil, err
	}

	categoryCtx, cancel := context.WithTimeout(ctx, s.timeout)
	categoryID, err := s.requireCategory(categoryCtx, in.Category)
	cancel()
	if err != nil {
		return nil, err
	}

	// The upload is bounded by the request, not by the database timeout.
	upload, err := s.files.Accept(ctx, file.Name, file.Size, file.Reader)
	if err != nil {
		return nil, gatewayError(err)
	}

	arg := database.CreateModelParams{
		Title:        in.Title,
		Description:  in.Description,
		AuthorID:     caller.ID,
		CategoryID:   categoryID,
		License:      models.License(in.License),
		FileURL:      upload.URL,
		FileName:     upload.OriginalName,
		FileSize:     upload.Size,
		FileFormat:   upload.Format,
		HasAnimation: in.HasAnimation == "true",
		Tags:         SplitTags(in.Tags),
	}

	insertCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	model, err := s.insertModel(insertCtx, arg)
	if err != nil {
		cleanupCtx, cancelCleanup := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
		if rmErr := s.files.Remove(cleanupCtx, upload.URL); rmErr != nil {
			log.Error().Err(rmErr).Str("file_url", upload.URL).Msg("failed to remove orphaned model file")
		}
		cancelCleanup()
		if errors.Is(err, database.ErrCategoryNotFound) {
			return nil, validationError("category not found")
		}
		return nil, storeError("create model", err)
	}

	log.Info().Str("model_id", model.ID).Int64("author_id", caller.ID).Msg("model created")
	return model, nil
}

// insertModel retries with a fresh id while the generated one is taken.
func (s *ModelService) insertModel(ctx context.Context, arg database.CreateModelParams) (*models.Model, error) {
	for i := 0; i < maxIDRetries; i++ {
		arg.ID = s.newID()
		model, err := s.models.CreateModel(ctx, arg)
		if errors.Is(err, database.ErrModelIDTaken) {
			continue
		}
		return model, err
	}
	return nil, fmt.Errorf("failed to generate a unique model ID after %d attempts", maxIDRetries)
}

func (s *ModelService) authorize(ctx context.Context, id string, caller *models.User) error {
	authorID, found, err := s.models.GetModelAuthorID(ctx, id)
	if err != nil {
		return storeError("get model author", err)
	}
	if !found {
		return notFound("model")
	}
	if authorID != caller.ID {
		return newError(ErrForbidden, "not authorized to modify this model")
	}
	return nil
}

func (s *ModelService) Update(ctx context.Context, id string, caller *models.User, in UpdateModelInput) (*models.Model, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.authorize(ctx, id, caller); err != nil {
		return nil, err
	}

	if in.Title != nil {
		title := strings.TrimSpace(*in.Title)
		if title == "" {
			return nil, validationError("title is required")
		}
		in.Title = &title
	}
	if in.Description != nil {
		description := strings.TrimSpace(*in.Description)
		in.Description = &description
	}
	if err := checkStruct(s.validate, in); err != nil {
		return nil, err
	}

	var arg database.UpdateModelParams
	arg.Title = in.Title
	arg.Description = in.Description
	arg.HasAnimation = in.HasAnimation
	if in.License != nil {
		license := models.License(*in.License)
		arg.License = &license
	}
	if in.Tags != nil {
		arg.Tags = cleanTags(*in.Tags)
	}
	if in.Category != nil {
		categoryID, err := s.requireCategory(ctx, *in.Category)
		if err != nil {
			return nil, err
		}
		arg.CategoryID = &categoryID
	}

	model, err := s.models.UpdateModel(ctx, id, caller.ID, arg)
	if err != nil {
		switch {
		case errors.Is(err, database.ErrCategoryNotFound):
			return nil, validationError("category not found")
		case errors.Is(err, database.ErrInvalidLicense):
			return nil, validationError("license is invalid")
		}
		return nil, storeError("update model", err)
	}
	if model == nil {
		// The row changed between the ownership check and the update.
		if err := s.authorize(ctx, id, caller); err != nil {
			return nil, err
		}
		return nil, notFound("model")
	}

	return model, nil
}

// Delete removes the model row, then its stored file. A failed file removal
// is logged and does not fail the request.
func (s *ModelService) Delete(ctx context.Context, id string, caller *models.User) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.authorize(ctx, id, caller); err != nil {
		return err
	}

	fileURL, deleted, err := s.models.DeleteModel(ctx, id, caller.ID)
	if err != nil {
		return storeError("delete model", err)
	}
	if !deleted {
		return notFound("model")
	}

	log := logger.FromContext(ctx)
	if err := s.files.Remove(context.WithoutCancel(ctx), fileURL); err != nil {
		log.Error().Err(err).Str("model_id", id).Str("file_url", fileURL).Msg("failed to remove model file")
	}
	log.Info().Str("model_id", id).Msg("model deleted")

	return nil
}

func (s *ModelService) Like(ctx context.Context, id string, caller *models.User) (*LikeResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	model, err := s.models.GetModelByID(ctx, id)
	if err != nil {
		return nil, storeError("get model", err)
	}
	if model == nil {
		return nil, notFound("model")
	}

	count, err := s.models.LikeModel(ctx, id, caller.ID)
	if err != nil {
		switch {
		case errors.Is(err, database.ErrAlreadyLiked):
			return nil, newError(ErrConflict, "model already liked")
		case errors.Is(err, database.ErrModelNotFound):
			return nil, notFound("model")
		}
		return nil, storeError("like model", err)
	}

	if model.Author.ID != caller.ID {
		payload := map[string]interface{}{
			"modelId":    model.ID,
			"title":      model.Title,
			"byUserId":   caller.ID,
			"byUsername": caller.Username,
		}
		if _, err := s.events.LogEvent(ctx, model.Author.ID, models.EventModelLiked, payload); err != nil {
			logger.FromContext(ctx).Warn().Err(err).Str("model_id", id).Msg("failed to log like event")
		}
	}

	return &LikeResult{Message: "Model liked", LikesCount: count}, nil
}

func (s *ModelService) Unlike(ctx context.Context, id string, caller *models.User) (*LikeResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	count, err := s.models.UnlikeModel(ctx, id, caller.ID)
	if err != nil {
		if errors.Is(err, database.ErrModelNotFound) {
			return nil, notFound("model")
		}
		return nil, storeError("unlike model", err)
	}

	return &LikeResult{Message: "Model unliked", LikesCount: count}, nil
}

// Download opens the stored file of a model and counts the download. The
// counter is only touched once the file is known to be readable.
func (s *ModelService) Download(ctx context.Context, id string) (*Download, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	file, err := s.models.GetStoredFile(ctx, id)
	if err != nil {
		return nil, storeError("get stored file", err)
	}
	if file == nil {
		return nil, notFound("model")
	}

	reader, size, err := s.files.Open(context.WithoutCancel(ctx), file.FileURL)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) || errors.Is(err, storage.ErrInvalidName) {
			return nil, notFound("file")
		}
		return nil, fmt.Errorf("open model file: %w", err)
	}

	if _, err := s.models.IncrementModelDownloads(ctx, id); err != nil {
		reader.Close()
		return nil, storeError("count download", err)
	}

	return &Download{Reader: reader, FileName: file.FileName, Size: size}, nil
}
