package service

import (
	"context"
	"errors"
	"io"
	"modelhub/internal/database"
	"modelhub/internal/mock"
	"modelhub/internal/models"
	"modelhub/internal/storage"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type modelServiceMocks struct {
	models     *mock.MockModelStore
	categories *mock.MockCategoryStore
	events     *mock.MockEventStore
	files      *mock.MockFileGateway
}

func newTestModelService(t *testing.T) (*ModelService, modelServiceMocks) {
	t.Helper()
	ctrl := gomock.NewController(t)
	m := modelServiceMocks{
		models:     mock.NewMockModelStore(ctrl),
		categories: mock.NewMockCategoryStore(ctrl),
		events:     mock.NewMockEventStore(ctrl),
		files:      mock.NewMockFileGateway(ctrl),
	}
	svc, err := NewModelService(m.models, m.categories, m.events, m.files, testTimeout)
	require.NoError(t, err)
	return svc, m
}

func testUpload() *storage.Upload {
	return &storage.Upload{
		Name:         "1700000000-abcdefghij.glb",
		URL:          "/uploads/models/1700000000-abcdefghij.glb",
		OriginalName: "robot.glb",
		Size:         4,
		Format:       "glb",
	}
}

func TestModelService_List_Paging(t *testing.T) {
	testCases := []struct {
		name       string
		input      ListModelsInput
		wantLimit  int
		wantOffset int
		wantPage   int
	}{
		{"defaults", ListModelsInput{}, 20, 0, 1},
		{"second page", ListModelsInput{Page: "2", Limit: "20"}, 20, 20, 2},
		{"limit capped", ListModelsInput{Limit: "500"}, 100, 0, 1},
		{"invalid page clamps", ListModelsInput{Page: "-3", Limit: "abc"}, 20, 0, 1},
		{"zero page clamps", ListModelsInput{Page: "0"}, 20, 0, 1},
		{"page past any offset", ListModelsInput{Page: "922337203685477581", Limit: "20"}, 0, 0, 922337203685477581},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			svc, m := newTestModelService(t)

			m.models.EXPECT().ListModels(gomock.Any(), gomock.Any()).DoAndReturn(
				func(_ context.Context, arg database.ListModelsParams) ([]models.Model, int64, error) {
					assert.Equal(t, tc.wantLimit, arg.Limit)
					assert.Equal(t, tc.wantOffset, arg.Offset)
					assert.Nil(t, arg.CategoryID)
					return []models.Model{{ID: "a"}}, 45, nil
				},
			)

			page, err := svc.List(context.Background(), tc.input)
			require.NoError(t, err)
			require.Equal(t, tc.wantPage, page.CurrentPage)
			require.Equal(t, int64(45), page.Total)
			require.Len(t, page.Models, 1)
		})
	}
}

func TestModelService_List_TotalPages(t *testing.T) {
	svc, m := newTestModelService(t)

	m.models.EXPECT().ListModels(gomock.Any(), gomock.Any()).Return([]models.Model{}, int64(45), nil)

	page, err := svc.List(context.Background(), ListModelsInput{Page: "2", Limit: "20"})
	require.NoError(t, err)
	require.Equal(t, int64(3), page.TotalPages)
}

func TestModelService_List_CategoryFilter(t *testing.T) {
	svc, m := newTestModelService(t)

	page, err := svc.List(context.Background(), ListModelsInput{Category: "not-an-id"})
	require.NoError(t, err, "a malformed category id gives an empty page")
	require.Empty(t, page.Models)
	require.Zero(t, page.Total)

	m.models.EXPECT().ListModels(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, arg database.ListModelsParams) ([]models.Model, int64, error) {
			require.NotNil(t, arg.CategoryID)
			assert.Equal(t, int64(12), *arg.CategoryID)
			assert.Equal(t, "robot", arg.Search)
			return []models.Model{}, 0, nil
		},
	)
	_, err = svc.List(context.Background(), ListModelsInput{Category: "12", Search: " robot "})
	require.NoError(t, err)
}

func TestModelService_Get(t *testing.T) {
	svc, m := newTestModelService(t)

	m.models.EXPECT().ViewModel(gomock.Any(), "missing").Return(nil, nil)
	_, err := svc.Get(context.Background(), "missing")
	require.ErrorIs(t, err, ErrNotFound)

	m.models.EXPECT().ViewModel(gomock.Any(), "abc").Return(&models.Model{ID: "abc", Views: 1}, nil)
	model, err := svc.Get(context.Background(), "abc")
	require.NoError(t, err)
	require.Equal(t, int64(1), model.Views)
}

func TestModelService_Create_Success(t *testing.T) {
	svc, m := newTestModelService(t)
	caller := &models.User{ID: 3, Username: "author"}
	upload := testUpload()

	gomock.InOrder(
		m.categories.EXPECT().CategoryExists(gomock.Any(), int64(8)).Return(true, nil),
		m.files.EXPECT().Accept(gomock.Any(), "robot.glb", int64(4), gomock.Any()).Return(upload, nil),
		m.models.EXPECT().CreateModel(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, arg database.CreateModelParams) (*models.Model, error) {
				assert.Len(t, arg.ID, 21)
				assert.Equal(t, "Robot", arg.Title)
				assert.Equal(t, int64(3), arg.AuthorID)
				assert.Equal(t, int64(8), arg.CategoryID)
				assert.Equal(t, models.LicenseCC0, arg.License)
				assert.Equal(t, upload.URL, arg.FileURL)
				assert.Equal(t, "robot.glb", arg.FileName)
				assert.Equal(t, "glb", arg.FileFormat)
				assert.Equal(t, []string{"scifi", "mech"}, arg.Tags)
				assert.True(t, arg.HasAnimation)
				return &models.Model{ID: arg.ID, Title: arg.Title}, nil
			},
		),
	)

	model, err := svc.Create(context.Background(), caller, CreateModelInput{
		Title:        " Robot ",
		Category:     "8",
		Tags:         "scifi, mech, ,",
		HasAnimation: "true",
	}, &UploadedFile{Name: "robot.glb", Size: 4, Reader: strings.NewReader("glTF")})
	require.NoError(t, err)
	require.Equal(t, "Robot", model.Title)
}

func TestModelService_Create_SlowUploadKeepsInsertDeadline(t *testing.T) {
	ctrl := gomock.NewController(t)
	modelStore := mock.NewMockModelStore(ctrl)
	categories := mock.NewMockCategoryStore(ctrl)
	files := mock.NewMockFileGateway(ctrl)

	const timeout = 50 * time.Millisecond
	svc, err := NewModelService(modelStore, categories, mock.NewMockEventStore(ctrl), files, timeout)
	require.NoError(t, err)

	categories.EXPECT().CategoryExists(gomock.Any(), int64(8)).Return(true, nil)
	files.EXPECT().Accept(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, _ string, _ int64, _ io.Reader) (*storage.Upload, error) {
			time.Sleep(3 * timeout)
			require.NoError(t, ctx.Err())
			return testUpload(), nil
		},
	)
	modelStore.EXPECT().CreateModel(gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, arg database.CreateModelParams) (*models.Model, error) {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			deadline, ok := ctx.Deadline()
			assert.True(t, ok)
			assert.Greater(t, time.Until(deadline), timeout/2)
			return &models.Model{ID: arg.ID}, nil
		},
	)

	model, err := svc.Create(context.Background(), &models.User{ID: 3}, CreateModelInput{Title: "Robot", Category: "8"},
		&UploadedFile{Name: "robot.glb", Size: 4, Reader: strings.NewReader("glTF")})
	require.NoError(t, err)
	require.NotEmpty(t, model.ID)
}

func TestModelService_Create_HasAnimationOnlyForLiteralTrue(t *testing.T) {
	svc, m := newTestModelService(t)

	m.categories.EXPECT().CategoryExists(gomock.Any(), int64(8)).Return(true, nil)
	m.files.EXPECT().Accept(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(testUpload(), nil)
	m.models.EXPECT().CreateModel(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, arg database.CreateModelParams) (*models.Model, error) {
			assert.False(t, arg.HasAnimation)
			assert.Empty(t, arg.Tags)
			return &models.Model{ID: arg.ID}, nil
		},
	)

	_, err := svc.Create(context.Background(), &models.User{ID: 3}, CreateModelInput{
		Title: "Robot", Category: "8", HasAnimation: "yes",
	}, &UploadedFile{Name: "robot.glb", Size: 4, Reader: strings.NewReader("glTF")})
	require.NoError(t, err)
}

func TestModelService_Create_Validation(t *testing.T) {
	file := func() *UploadedFile {
		return &UploadedFile{Name: "robot.glb", Size: 4, Reader: strings.NewReader("glTF")}
	}

	testCases := []struct {
		name  string
		input CreateModelInput
		file  *UploadedFile
	}{
		{"no file", CreateModelInput{Title: "Robot", Category: "8"}, nil},
		{"no title", CreateModelInput{Title: "  ", Category: "8"}, file()},
		{"no category", CreateModelInput{Title: "Robot"}, file()},
		{"bad license", CreateModelInput{Title: "Robot", Category: "8", License: "GPL"}, file()},
		{"title too long", CreateModelInput{Title: strings.Repeat("t", 201), Category: "8"}, file()},
		{"malformed category", CreateModelInput{Title: "Robot", Category: "eight"}, file()},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			svc, _ := newTestModelService(t)

			_, err := svc.Create(context.Background(), &models.User{ID: 3}, tc.input, tc.file)
			require.ErrorIs(t, err, ErrValidation)
		})
	}
}

func TestModelService_Create_UnknownCategorySkipsUpload(t *testing.T) {
	svc, m := newTestModelService(t)

	m.categories.EXPECT().CategoryExists(gomock.Any(), int64(8)).Return(false, nil)

	_, err := svc.Create(context.Background(), &models.User{ID: 3}, CreateModelInput{Title: "Robot", Category: "8"},
		&UploadedFile{Name: "robot.glb", Size: 4, Reader: strings.NewReader("glTF")})
	require.ErrorIs(t, err, ErrValidation)
	require.Equal(t, "category not found", Message(err))
}

func TestModelService_Create_GatewayRejection(t *testing.T) {
	for _, gwErr := range []error{storage.ErrInvalidFormat, storage.ErrTooLarge} {
		t.Run(gwErr.Error(), func(t *testing.T) {
			svc, m := newTestModelService(t)

			m.categories.EXPECT().CategoryExists(gomock.Any(), int64(8)).Return(true, nil)
			m.files.EXPECT().Accept(gomock.Any(), "virus.exe", int64(4), gomock.Any()).Return(nil, gwErr)

			_, err := svc.Create(context.Background(), &models.User{ID: 3}, CreateModelInput{Title: "Robot", Category: "8"},
				&UploadedFile{Name: "virus.exe", Size: 4, Reader: strings.NewReader("MZ..")})
			require.ErrorIs(t, err, ErrValidation)
		})
	}
}

func TestModelService_Create_InsertFailureRemovesFile(t *testing.T) {
	svc, m := newTestModelService(t)
	upload := testUpload()

	m.categories.EXPECT().CategoryExists(gomock.Any(), int64(8)).Return(true, nil)
	m.files.EXPECT().Accept(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(upload, nil)
	m.models.EXPECT().CreateModel(gomock.Any(), gomock.Any()).Return(nil, errors.New("insert failed"))
	m.files.EXPECT().Remove(gomock.Any(), upload.URL).Return(nil)

	_, err := svc.Create(context.Background(), &models.User{ID: 3}, CreateModelInput{Title: "Robot", Category: "8"},
		&UploadedFile{Name: "robot.glb", Size: 4, Reader: strings.NewReader("glTF")})
	require.Error(t, err)
	require.Contains(t, err.Error(), "insert failed")
}

func TestModelService_Create_RetriesTakenID(t *testing.T) {
	svc, m := newTestModelService(t)

	var ids []string
	m.categories.EXPECT().CategoryExists(gomock.Any(), int64(8)).Return(true, nil)
	m.files.EXPECT().Accept(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(testUpload(), nil)
	m.models.EXPECT().CreateModel(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, arg database.CreateModelParams) (*models.Model, error) {
			ids = append(ids, arg.ID)
			if len(ids) == 1 {
				return nil, database.ErrModelIDTaken
			}
			return &models.Model{ID: arg.ID}, nil
		},
	).Times(2)

	model, err := svc.Create(context.Background(), &models.User{ID: 3}, CreateModelInput{Title: "Robot", Category: "8"},
		&UploadedFile{Name: "robot.glb", Size: 4, Reader: strings.NewReader("glTF")})
	require.NoError(t, err)
	require.Len(t, ids, 2)
	require.NotEqual(t, ids[0], ids[1])
	require.Equal(t, ids[1], model.ID)
}

func TestModelService_Update(t *testing.T) {
	caller := &models.User{ID: 3}

	t.Run("not found", func(t *testing.T) {
		svc, m := newTestModelService(t)
		m.models.EXPECT().GetModelAuthorID(gomock.Any(), "x").Return(int64(0), false, nil)

		_, err := svc.Update(context.Background(), "x", caller, UpdateModelInput{})
		require.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("not the author", func(t *testing.T) {
		svc, m := newTestModelService(t)
		m.models.EXPECT().GetModelAuthorID(gomock.Any(), "x").Return(int64(99), true, nil)

		title := "Mine now"
		_, err := svc.Update(context.Background(), "x", caller, UpdateModelInput{Title: &title})
		require.ErrorIs(t, err, ErrForbidden)
	})

	t.Run("partial update", func(t *testing.T) {
		svc, m := newTestModelService(t)
		title := " New title "
		tags := []string{" a ", "", "b"}
		license := "CC4"
		category := "9"

		m.models.EXPECT().GetModelAuthorID(gomock.Any(), "x").Return(int64(3), true, nil)
		m.categories.EXPECT().CategoryExists(gomock.Any(), int64(9)).Return(true, nil)
		m.models.EXPECT().UpdateModel(gomock.Any(), "x", int64(3), gomock.Any()).DoAndReturn(
			func(_ context.Context, _ string, _ int64, arg database.UpdateModelParams) (*models.Model, error) {
				require.NotNil(t, arg.Title)
				assert.Equal(t, "New title", *arg.Title)
				assert.Nil(t, arg.Description)
				assert.Nil(t, arg.HasAnimation)
				assert.Equal(t, []string{"a", "b"}, arg.Tags)
				assert.Equal(t, models.LicenseCC4, *arg.License)
				assert.Equal(t, int64(9), *arg.CategoryID)
				return &models.Model{ID: "x", Title: *arg.Title}, nil
			},
		)

		model, err := svc.Update(context.Background(), "x", caller, UpdateModelInput{
			Title: &title, Tags: &tags, License: &license, Category: &category,
		})
		require.NoError(t, err)
		require.Equal(t, "New title", model.Title)
	})

	t.Run("invalid license", func(t *testing.T) {
		svc, m := newTestModelService(t)
		license := "MIT"
		m.models.EXPECT().GetModelAuthorID(gomock.Any(), "x").Return(int64(3), true, nil)

		_, err := svc.Update(context.Background(), "x", caller, UpdateModelInput{License: &license})
		require.ErrorIs(t, err, ErrValidation)
	})

	t.Run("author changed during update", func(t *testing.T) {
		svc, m := newTestModelService(t)
		title := "Race"
		gomock.InOrder(
			m.models.EXPECT().GetModelAuthorID(gomock.Any(), "x").Return(int64(3), true, nil),
			m.models.EXPECT().UpdateModel(gomock.Any(), "x", int64(3), gomock.Any()).Return(nil, nil),
			m.models.EXPECT().GetModelAuthorID(gomock.Any(), "x").Return(int64(4), true, nil),
		)

		_, err := svc.Update(context.Background(), "x", caller, UpdateModelInput{Title: &title})
		require.ErrorIs(t, err, ErrForbidden)
	})
}

func TestModelService_Delete(t *testing.T) {
	caller := &models.User{ID: 3}

	t.Run("removes row then file", func(t *testing.T) {
		svc, m := newTestModelService(t)
		gomock.InOrder(
			m.models.EXPECT().GetModelAuthorID(gomock.Any(), "x").Return(int64(3), true, nil),
			m.models.EXPECT().DeleteModel(gomock.Any(), "x", int64(3)).Return("/uploads/models/f.glb", true, nil),
			m.files.EXPECT().Remove(gomock.Any(), "/uploads/models/f.glb").Return(nil),
		)

		require.NoError(t, svc.Delete(context.Background(), "x", caller))
	})

	t.Run("file removal failure is not surfaced", func(t *testing.T) {
		svc, m := newTestModelService(t)
		m.models.EXPECT().GetModelAuthorID(gomock.Any(), "x").Return(int64(3), true, nil)
		m.models.EXPECT().DeleteModel(gomock.Any(), "x", int64(3)).Return("/uploads/models/f.glb", true, nil)
		m.files.EXPECT().Remove(gomock.Any(), gomock.Any()).Return(errors.New("permission denied"))

		require.NoError(t, svc.Delete(context.Background(), "x", caller))
	})

	t.Run("not the author", func(t *testing.T) {
		svc, m := newTestModelService(t)
		m.models.EXPECT().GetModelAuthorID(gomock.Any(), "x").Return(int64(4), true, nil)

		require.ErrorIs(t, svc.Delete(context.Background(), "x", caller), ErrForbidden)
	})

	t.Run("missing", func(t *testing.T) {
		svc, m := newTestModelService(t)
		m.models.EXPECT().GetModelAuthorID(gomock.Any(), "x").Return(int64(0), false, nil)

		require.ErrorIs(t, svc.Delete(context.Background(), "x", caller), ErrNotFound)
	})
}

func TestModelService_Like(t *testing.T) {
	fan := &models.User{ID: 3, Username: "fan"}
	model := &models.Model{ID: "x", Title: "Robot", Author: models.UserRef{ID: 7}}

	t.Run("notifies the author", func(t *testing.T) {
		svc, m := newTestModelService(t)
		m.models.EXPECT().GetModelByID(gomock.Any(), "x").Return(model, nil)
		m.models.EXPECT().LikeModel(gomock.Any(), "x", int64(3)).Return(int64(1), nil)
		m.events.EXPECT().LogEvent(gomock.Any(), int64(7), models.EventModelLiked, gomock.Any()).DoAndReturn(
			func(_ context.Context, _ int64, _ string, payload interface{}) (*models.Event, error) {
				p := payload.(map[string]interface{})
				assert.Equal(t, "x", p["modelId"])
				assert.Equal(t, "fan", p["byUsername"])
				return &models.Event{ID: 1}, nil
			},
		)

		result, err := svc.Like(context.Background(), "x", fan)
		require.NoError(t, err)
		require.Equal(t, int64(1), result.LikesCount)
		require.Equal(t, "Model liked", result.Message)
	})

	t.Run("self like has no event", func(t *testing.T) {
		svc, m := newTestModelService(t)
		own := &models.Model{ID: "x", Author: models.UserRef{ID: 3}}
		m.models.EXPECT().GetModelByID(gomock.Any(), "x").Return(own, nil)
		m.models.EXPECT().LikeModel(gomock.Any(), "x", int64(3)).Return(int64(1), nil)

		_, err := svc.Like(context.Background(), "x", fan)
		require.NoError(t, err)
	})

	t.Run("event failure does not fail the like", func(t *testing.T) {
		svc, m := newTestModelService(t)
		m.models.EXPECT().GetModelByID(gomock.Any(), "x").Return(model, nil)
		m.models.EXPECT().LikeModel(gomock.Any(), "x", int64(3)).Return(int64(2), nil)
		m.events.EXPECT().LogEvent(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, errors.New("journal down"))

		result, err := svc.Like(context.Background(), "x", fan)
		require.NoError(t, err)
		require.Equal(t, int64(2), result.LikesCount)
	})

	t.Run("already liked", func(t *testing.T) {
		svc, m := newTestModelService(t)
		m.models.EXPECT().GetModelByID(gomock.Any(), "x").Return(model, nil)
		m.models.EXPECT().LikeModel(gomock.Any(), "x", int64(3)).Return(int64(0), database.ErrAlreadyLiked)

		_, err := svc.Like(context.Background(), "x", fan)
		require.ErrorIs(t, err, ErrConflict)
		require.Equal(t, "model already liked", Message(err))
	})

	t.Run("missing model", func(t *testing.T) {
		svc, m := newTestModelService(t)
		m.models.EXPECT().GetModelByID(gomock.Any(), "nope").Return(nil, nil)

		_, err := svc.Like(context.Background(), "nope", fan)
		require.ErrorIs(t, err, ErrNotFound)
	})
}

func TestModelService_Unlike(t *testing.T) {
	svc, m := newTestModelService(t)
	fan := &models.User{ID: 3}

	m.models.EXPECT().UnlikeModel(gomock.Any(), "x", int64(3)).Return(int64(0), nil)
	result, err := svc.Unlike(context.Background(), "x", fan)
	require.NoError(t, err)
	require.Zero(t, result.LikesCount)

	m.models.EXPECT().UnlikeModel(gomock.Any(), "nope", int64(3)).Return(int64(0), database.ErrModelNotFound)
	_, err = svc.Unlike(context.Background(), "nope", fan)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestModelService_Download(t *testing.T) {
	stored := &models.StoredFile{ModelID: "x", FileURL: "/uploads/models/f.glb", FileName: "robot.glb", FileSize: 4}

	t.Run("streams and counts", func(t *testing.T) {
		svc, m := newTestModelService(t)
		gomock.InOrder(
			m.models.EXPECT().GetStoredFile(gomock.Any(), "x").Return(stored, nil),
			m.files.EXPECT().Open(gomock.Any(), stored.FileURL).Return(io.NopCloser(strings.NewReader("glTF")), int64(4), nil),
			m.models.EXPECT().IncrementModelDownloads(gomock.Any(), "x").Return(true, nil),
		)

		dl, err := svc.Download(context.Background(), "x")
		require.NoError(t, err)
		defer dl.Reader.Close()
		require.Equal(t, "robot.glb", dl.FileName)
		data, err := io.ReadAll(dl.Reader)
		require.NoError(t, err)
		require.Equal(t, "glTF", string(data))
	})

	t.Run("missing model", func(t *testing.T) {
		svc, m := newTestModelService(t)
		m.models.EXPECT().GetStoredFile(gomock.Any(), "nope").Return(nil, nil)

		_, err := svc.Download(context.Background(), "nope")
		require.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("missing file does not count", func(t *testing.T) {
		svc, m := newTestModelService(t)
		m.models.EXPECT().GetStoredFile(gomock.Any(), "x").Return(stored, nil)
		m.files.EXPECT().Open(gomock.Any(), stored.FileURL).Return(nil, int64(0), storage.ErrNotFound)

		_, err := svc.Download(context.Background(), "x")
		require.ErrorIs(t, err, ErrNotFound)
	})
}
