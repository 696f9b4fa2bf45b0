package database

import (
	"context"

	"github.com/jackc/pgerrcode"
)

func (q *Queries) CountModelLikes(ctx context.Context, modelID string) (int64, error) {
	var count int64
	err := q.db.QueryRow(ctx, `SELECT COUNT(*) FROM model_likes WHERE model_id = $1`, modelID).Scan(&count)
	return count, err
}

func (q *Queries) AddModelLike(ctx context.Context, modelID string, userID int64) error {
	_, err := q.db.Exec(ctx, `INSERT INTO model_likes (model_id, user_id) VALUES ($1, $2)`, modelID, userID)
	if err != nil {
		pgErr, ok := pgError(err)
		if !ok {
			return err
		}
		switch pgErr.Code {
		case pgerrcode.UniqueViolation:
			return ErrAlreadyLiked
		case pgerrcode.ForeignKeyViolation:
			if pgErr.ConstraintName == "model_likes_user_id_fkey" {
				return ErrUserNotFound
			}
			return ErrModelNotFound
		}
		return err
	}
	return nil
}

func (q *Queries) RemoveModelLike(ctx context.Context, modelID string, userID int64) error {
	_, err := q.db.Exec(ctx, `DELETE FROM model_likes WHERE model_id = $1 AND user_id = $2`, modelID, userID)
	return err
}

// LikeModel adds userID to the model's likes and returns the new count. The
// primary key on model_likes turns a repeated like into ErrAlreadyLiked.
func (s *Store) LikeModel(ctx context.Context, modelID string, userID int64) (int64, error) {
	var count int64

	err := s.ExecTx(ctx, func(q *Queries) error {
		if err := q.AddModelLike(ctx, modelID, userID); err != nil {
			return err
		}
		var err error
		count, err = q.CountModelLikes(ctx, modelID)
		return err
	})
	if err != nil {
		return 0, err
	}

	return count, nil
}

// UnlikeModel removes userID from the model's likes. Removing a like that is
// not there is not an error.
func (s *Store) UnlikeModel(ctx context.Context, modelID string, userID int64) (int64, error) {
	var count int64

	err := s.ExecTx(ctx, func(q *Queries) error {
		exists, err := q.ModelExists(ctx, modelID)
		if err != nil {
			return err
		}
		if !exists {
			return ErrModelNotFound
		}

		if err := q.RemoveModelLike(ctx, modelID, userID); err != nil {
			return err
		}

		count, err = q.CountModelLikes(ctx, modelID)
		return err
	})
	if err != nil {
		return 0, err
	}

	return count, nil
}
