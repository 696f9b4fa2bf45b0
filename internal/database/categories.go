package database

import (
	"context"
	"errors"
	"modelhub/internal/models"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
)

const categorySelect = `
	SELECT c.id, c.name, c.description, c.icon, c.created_at,
	       u.id, u.username, u.avatar
	FROM categories c
	JOIN users u ON u.id = c.created_by
`

func scanCategory(row scanner) (*models.Category, error) {
	var c models.Category
	err := row.Scan(
		&c.ID,
		&c.Name,
		&c.Description,
		&c.Icon,
		&c.CreatedAt,
		&c.CreatedBy.ID,
		&c.CreatedBy.Username,
		&c.CreatedBy.Avatar,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}

func (q *Queries) ListCategories(ctx context.Context) ([]models.Category, error) {
	rows, err := q.db.Query(ctx, categorySelect+` ORDER BY c.created_at DESC, c.id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	categories := []models.Category{}
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		categories = append(categories, *c)
	}

	return categories, rows.Err()
}

func (q *Queries) GetCategoryByID(ctx context.Context, id int64) (*models.Category, error) {
	return scanCategory(q.db.QueryRow(ctx, categorySelect+` WHERE c.id = $1`, id))
}

type CreateCategoryParams struct {
	Name        string
	Description string
	Icon        string
	CreatedBy   int64
}

func (q *Queries) CreateCategory(ctx context.Context, arg CreateCategoryParams) (*models.Category, error) {
	query := `
		WITH inserted AS (
			INSERT INTO categories (name, description, icon, created_by)
			VALUES ($1, $2, $3, $4)
			RETURNING id, name, description, icon, created_at, created_by
		)
		SELECT i.id, i.name, i.description, i.icon, i.created_at,
		       u.id, u.username, u.avatar
		FROM inserted i
		JOIN users u ON u.id = i.created_by
	`

	c, err := scanCategory(q.db.QueryRow(ctx, query, arg.Name, arg.Description, arg.Icon, arg.CreatedBy))
	if err != nil {
		switch {
		case isPgCode(err, pgerrcode.UniqueViolation):
			return nil, ErrDuplicateCategory
		case isPgCode(err, pgerrcode.ForeignKeyViolation):
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	if c == nil {
		return nil, ErrUserNotFound
	}
	return c, nil
}

func (q *Queries) CategoryExists(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := q.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM categories WHERE id = $1)`, id).Scan(&exists)
	return exists, err
}
