package database

import (
	"context"
	"errors"
	"modelhub/internal/models"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
)

const userColumns = `id, username, email, password_hash, bio, avatar, created_at`

func scanUser(row scanner) (*models.User, error) {
	var user models.User
	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&user.Bio,
		&user.Avatar,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

// mapUserConstraint turns a unique violation on users into the matching
// sentinel error.
func mapUserConstraint(err error) error {
	pgErr, ok := pgError(err)
	if !ok || pgErr.Code != pgerrcode.UniqueViolation {
		return err
	}
	switch pgErr.ConstraintName {
	case "users_email_lower_key", "users_email_key":
		return ErrEmailTaken
	default:
		return ErrUsernameTaken
	}
}

type CreateUserParams struct {
	Username     string
	Email        string
	PasswordHash string
}

func (q *Queries) CreateUser(ctx context.Context, arg CreateUserParams) (*models.User, error) {
	query := `
		INSERT INTO users (username, email, password_hash)
		VALUES ($1, $2, $3)
		RETURNING ` + userColumns

	user, err := scanUser(q.db.QueryRow(ctx, query, arg.Username, arg.Email, arg.PasswordHash))
	if err != nil {
		return nil, mapUserConstraint(err)
	}
	return user, nil
}

func (q *Queries) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(q.db.QueryRow(ctx, query, id))
}

func (q *Queries) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE lower(email) = lower($1)`
	return scanUser(q.db.QueryRow(ctx, query, email))
}

func (q *Queries) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username = $1`
	return scanUser(q.db.QueryRow(ctx, query, username))
}

type UpdateUserParams struct {
	Username *string
	Bio      *string
	Avatar   *string
}

// UpdateUser applies the non-nil fields. It returns nil, nil when the user
// does not exist.
func (q *Queries) UpdateUser(ctx context.Context, id int64, arg UpdateUserParams) (*models.User, error) {
	b := sq.Update("users").Where(sq.Eq{"id": id}).PlaceholderFormat(sq.Dollar)

	changed := false
	if arg.Username != nil {
		b = b.Set("username", *arg.Username)
		changed = true
	}
	if arg.Bio != nil {
		b = b.Set("bio", *arg.Bio)
		changed = true
	}
	if arg.Avatar != nil {
		b = b.Set("avatar", *arg.Avatar)
		changed = true
	}
	if !changed {
		return q.GetUserByID(ctx, id)
	}

	query, args, err := b.Suffix("RETURNING " + userColumns).ToSql()
	if err != nil {
		return nil, err
	}

	user, err := scanUser(q.db.QueryRow(ctx, query, args...))
	if err != nil {
		return nil, mapUserConstraint(err)
	}
	return user, nil
}

func (q *Queries) listUserRefs(ctx context.Context, query string, userID int64) ([]models.UserRef, error) {
	rows, err := q.db.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var refs []models.UserRef
	for rows.Next() {
		var ref models.UserRef
		if err := rows.Scan(&ref.ID, &ref.Username, &ref.Avatar); err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	if refs == nil {
		return []models.UserRef{}, nil
	}

	return refs, nil
}

func (q *Queries) ListFollowers(ctx context.Context, userID int64) ([]models.UserRef, error) {
	query := `
		SELECT u.id, u.username, u.avatar
		FROM follows f
		JOIN users u ON u.id = f.follower_id
		WHERE f.followee_id = $1
		ORDER BY f.created_at, u.id
	`
	return q.listUserRefs(ctx, query, userID)
}

func (q *Queries) ListFollowing(ctx context.Context, userID int64) ([]models.UserRef, error) {
	query := `
		SELECT u.id, u.username, u.avatar
		FROM follows f
		JOIN users u ON u.id = f.followee_id
		WHERE f.follower_id = $1
		ORDER BY f.created_at, u.id
	`
	return q.listUserRefs(ctx, query, userID)
}

// GetUserProfile reads the user and both sides of its follow graph from one
// snapshot. It returns nil, nil when the user does not exist.
func (s *Store) GetUserProfile(ctx context.Context, id int64) (*models.UserProfile, error) {
	var profile *models.UserProfile

	opts := pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly}
	err := s.execTx(ctx, opts, func(q *Queries) error {
		user, err := q.GetUserByID(ctx, id)
		if err != nil || user == nil {
			return err
		}

		followers, err := q.ListFollowers(ctx, id)
		if err != nil {
			return err
		}
		following, err := q.ListFollowing(ctx, id)
		if err != nil {
			return err
		}

		profile = &models.UserProfile{User: *user, Followers: followers, Following: following}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return profile, nil
}

// Follow records follower -> followee. The single follows row is both the
// follower's "following" entry and the followee's "followers" entry.
func (q *Queries) Follow(ctx context.Context, followerID, followeeID int64) error {
	query := `INSERT INTO follows (follower_id, followee_id) VALUES ($1, $2)`
	_, err := q.db.Exec(ctx, query, followerID, followeeID)
	if err != nil {
		switch {
		case isPgCode(err, pgerrcode.UniqueViolation):
			return ErrAlreadyFollowing
		case isPgCode(err, pgerrcode.ForeignKeyViolation):
			return ErrUserNotFound
		case isPgCode(err, pgerrcode.CheckViolation):
			return ErrSelfFollow
		}
		return err
	}
	return nil
}

func (q *Queries) Unfollow(ctx context.Context, followerID, followeeID int64) (bool, error) {
	query := `DELETE FROM follows WHERE follower_id = $1 AND followee_id = $2`
	res, err := q.db.Exec(ctx, query, followerID, followeeID)
	if err != nil {
		return false, err
	}
	return res.RowsAffected() > 0, nil
}
