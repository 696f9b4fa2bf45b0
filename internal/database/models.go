package database

import (
	"context"
	"errors"
	"modelhub/internal/models"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

var modelColumns = []string{
	"m.id", "m.title", "m.description", "m.license",
	"m.file_url", "m.file_name", "m.file_size", "m.file_format", "m.thumbnail",
	"m.views", "m.downloads", "m.has_animation", "m.tags",
	"m.created_at", "m.updated_at",
	"u.id", "u.username", "u.avatar", "u.bio",
	"c.id", "c.name",
	"lk.likes",
}

func modelSelect() sq.SelectBuilder {
	return psql.Select(modelColumns...).
		From("models m").
		Join("users u ON u.id = m.author_id").
		Join("categories c ON c.id = m.category_id").
		JoinClause(`CROSS JOIN LATERAL (
			SELECT COALESCE(array_agg(l.user_id ORDER BY l.created_at), ARRAY[]::bigint[]) AS likes
			FROM model_likes l
			WHERE l.model_id = m.id
		) lk`)
}

// scanModel reads one row of modelSelect. The author's bio is only kept when
// withBio is set.
func scanModel(row scanner, withBio bool) (*models.Model, error) {
	var (
		m   models.Model
		bio string
	)
	err := row.Scan(
		&m.ID,
		&m.Title,
		&m.Description,
		&m.License,
		&m.FileURL,
		&m.FileName,
		&m.FileSize,
		&m.FileFormat,
		&m.Thumbnail,
		&m.Views,
		&m.Downloads,
		&m.HasAnimation,
		&m.Tags,
		&m.CreatedAt,
		&m.UpdatedAt,
		&m.Author.ID,
		&m.Author.Username,
		&m.Author.Avatar,
		&bio,
		&m.Category.ID,
		&m.Category.Name,
		&m.Likes,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	if withBio {
		m.Author.Bio = bio
	}
	if m.Tags == nil {
		m.Tags = []string{}
	}
	if m.Likes == nil {
		m.Likes = []int64{}
	}
	m.LikesCount = int64(len(m.Likes))

	return &m, nil
}

type ListModelsParams struct {
	CategoryID *int64
	Search     string
	Limit      int
	Offset     int
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func applyModelFilters(b sq.SelectBuilder, arg ListModelsParams) sq.SelectBuilder {
	if arg.CategoryID != nil {
		b = b.Where(sq.Eq{"m.category_id": *arg.CategoryID})
	}

	search := strings.TrimSpace(arg.Search)
	if search != "" {
		pattern := "%" + likeEscaper.Replace(search) + "%"
		b = b.Where(sq.Or{
			sq.Expr(`model_search_document(m.title, m.description, m.tags) @@ plainto_tsquery('english', ?)`, search),
			sq.Expr(`m.title ILIKE ?`, pattern),
			sq.Expr(`array_to_string(m.tags, ' ') ILIKE ?`, pattern),
		})
	}

	return b
}

func (q *Queries) ListModels(ctx context.Context, arg ListModelsParams) ([]models.Model, error) {
	b := applyModelFilters(modelSelect(), arg).
		OrderBy("m.created_at DESC", "m.id DESC").
		Limit(uint64(arg.Limit)).
		Offset(uint64(arg.Offset))

	query, args, err := b.ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := q.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	list := []models.Model{}
	for rows.Next() {
		m, err := scanModel(rows, false)
		if err != nil {
			return nil, err
		}
		list = append(list, *m)
	}

	return list, rows.Err()
}

func (q *Queries) CountModels(ctx context.Context, arg ListModelsParams) (int64, error) {
	b := applyModelFilters(psql.Select("COUNT(*)").From("models m"), arg)

	query, args, err := b.ToSql()
	if err != nil {
		return 0, err
	}

	var total int64
	err = q.db.QueryRow(ctx, query, args...).Scan(&total)
	return total, err
}

// ListModels returns one page and the total count of matching models from a
// single snapshot.
func (s *Store) ListModels(ctx context.Context, arg ListModelsParams) ([]models.Model, int64, error) {
	var (
		list  []models.Model
		total int64
	)

	opts := pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly}
	err := s.execTx(ctx, opts, func(q *Queries) error {
		var err error
		total, err = q.CountModels(ctx, arg)
		if err != nil {
			return err
		}
		list, err = q.ListModels(ctx, arg)
		return err
	})
	if err != nil {
		return nil, 0, err
	}

	return list, total, nil
}

func (q *Queries) GetModelByID(ctx context.Context, id string) (*models.Model, error) {
	query, args, err := modelSelect().Where(sq.Eq{"m.id": id}).ToSql()
	if err != nil {
		return nil, err
	}
	return scanModel(q.db.QueryRow(ctx, query, args...), true)
}

func (q *Queries) IncrementModelViews(ctx context.Context, id string) (bool, error) {
	res, err := q.db.Exec(ctx, `UPDATE models SET views = views + 1 WHERE id = $1`, id)
	if err != nil {
		return false, err
	}
	return res.RowsAffected() > 0, nil
}

func (q *Queries) IncrementModelDownloads(ctx context.Context, id string) (bool, error) {
	res, err := q.db.Exec(ctx, `UPDATE models SET downloads = downloads + 1 WHERE id = $1`, id)
	if err != nil {
		return false, err
	}
	return res.RowsAffected() > 0, nil
}

// ViewModel increments the view counter and returns the model as it looks
// after the increment. It returns nil, nil when the model does not exist.
func (s *Store) ViewModel(ctx context.Context, id string) (*models.Model, error) {
	var model *models.Model

	err := s.ExecTx(ctx, func(q *Queries) error {
		found, err := q.IncrementModelViews(ctx, id)
		if err != nil || !found {
			return err
		}
		model, err = q.GetModelByID(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	return model, nil
}

func (q *Queries) GetStoredFile(ctx context.Context, id string) (*models.StoredFile, error) {
	var f models.StoredFile
	err := q.db.QueryRow(ctx,
		`SELECT id, file_url, file_name, file_size FROM models WHERE id = $1`, id,
	).Scan(&f.ModelID, &f.FileURL, &f.FileName, &f.FileSize)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &f, nil
}

func (q *Queries) GetModelAuthorID(ctx context.Context, id string) (int64, bool, error) {
	var authorID int64
	err := q.db.QueryRow(ctx, `SELECT author_id FROM models WHERE id = $1`, id).Scan(&authorID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return authorID, true, nil
}

func (q *Queries) ModelExists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := q.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM models WHERE id = $1)`, id).Scan(&exists)
	return exists, err
}

func mapModelWriteError(err error) error {
	pgErr, ok := pgError(err)
	if !ok {
		return err
	}

	switch pgErr.Code {
	case pgerrcode.UniqueViolation:
		return ErrModelIDTaken
	case pgerrcode.ForeignKeyViolation:
		if pgErr.ConstraintName == "models_category_id_fkey" {
			return ErrCategoryNotFound
		}
		return ErrUserNotFound
	case pgerrcode.CheckViolation:
		return ErrInvalidLicense
	}

	return err
}

type CreateModelParams struct {
	ID           string
	Title        string
	Description  string
	AuthorID     int64
	CategoryID   int64
	License      models.License
	FileURL      string
	FileName     string
	FileSize     int64
	FileFormat   string
	HasAnimation bool
	Tags         []string
}

func (q *Queries) CreateModel(ctx context.Context, arg CreateModelParams) (*models.Model, error) {
	tags := arg.Tags
	if tags == nil {
		tags = []string{}
	}

	query := `
		INSERT INTO models (
			id, title, description, author_id, category_id, license,
			file_url, file_name, file_size, file_format, has_animation, tags
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := q.db.Exec(ctx, query,
		arg.ID, arg.Title, arg.Description, arg.AuthorID, arg.CategoryID, string(arg.License),
		arg.FileURL, arg.FileName, arg.FileSize, arg.FileFormat, arg.HasAnimation, tags,
	)
	if err != nil {
		return nil, mapModelWriteError(err)
	}

	return q.GetModelByID(ctx, arg.ID)
}

type UpdateModelParams struct {
	Title        *string
	Description  *string
	CategoryID   *int64
	License      *models.License
	Tags         []string
	HasAnimation *bool
}

// UpdateModel applies the non-nil fields to a model owned by authorID. It
// returns nil, nil when no such model exists for that author.
func (q *Queries) UpdateModel(ctx context.Context, id string, authorID int64, arg UpdateModelParams) (*models.Model, error) {
	b := psql.Update("models").
		Set("updated_at", sq.Expr("NOW()")).
		Where(sq.Eq{"id": id, "author_id": authorID})

	if arg.Title != nil {
		b = b.Set("title", *arg.Title)
	}
	if arg.Description != nil {
		b = b.Set("description", *arg.Description)
	}
	if arg.CategoryID != nil {
		b = b.Set("category_id", *arg.CategoryID)
	}
	if arg.License != nil {
		b = b.Set("license", string(*arg.License))
	}
	if arg.Tags != nil {
		b = b.Set("tags", arg.Tags)
	}
	if arg.HasAnimation != nil {
		b = b.Set("has_animation", *arg.HasAnimation)
	}

	query, args, err := b.ToSql()
	if err != nil {
		return nil, err
	}

	res, err := q.db.Exec(ctx, query, args...)
	if err != nil {
		return nil, mapModelWriteError(err)
	}
	if res.RowsAffected() == 0 {
		return nil, nil
	}

	return q.GetModelByID(ctx, id)
}

// DeleteModel removes a model owned by authorID and returns the URL of its
// stored file. Likes go with it through the cascade.
func (q *Queries) DeleteModel(ctx context.Context, id string, authorID int64) (string, bool, error) {
	var fileURL string
	err := q.db.QueryRow(ctx,
		`DELETE FROM models WHERE id = $1 AND author_id = $2 RETURNING file_url`, id, authorID,
	).Scan(&fileURL)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, err
	}
	return fileURL, true, nil
}
