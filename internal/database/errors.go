package database

import (
	"context"
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrUsernameTaken     = errors.New("username is already taken")
	ErrEmailTaken        = errors.New("email is already registered")
	ErrUserNotFound      = errors.New("user not found")
	ErrAlreadyFollowing  = errors.New("already following this user")
	ErrSelfFollow        = errors.New("cannot follow yourself")
	ErrDuplicateCategory = errors.New("category already exists")
	ErrCategoryNotFound  = errors.New("category not found")
	ErrModelNotFound     = errors.New("model not found")
	ErrModelIDTaken      = errors.New("model id already in use")
	ErrAlreadyLiked      = errors.New("already liked this model")
	ErrInvalidLicense    = errors.New("invalid license")
)

func pgError(err error) (*pgconn.PgError, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr, true
	}
	return nil, false
}

func isPgCode(err error, code string) bool {
	pgErr, ok := pgError(err)
	return ok && pgErr.Code == code
}

// IsUnavailable reports whether err means the database could not serve the
// request right now and the client may retry: deadlines, connection
// failures, serialization failures and deadlocks.
func IsUnavailable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || pgconn.Timeout(err) {
		return true
	}

	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return true
	}

	pgErr, ok := pgError(err)
	if !ok {
		return false
	}

	switch pgErr.Code {
	case pgerrcode.ConnectionException,
		pgerrcode.ConnectionDoesNotExist,
		pgerrcode.ConnectionFailure,
		pgerrcode.SQLClientUnableToEstablishSQLConnection,
		pgerrcode.TransactionRollback,
		pgerrcode.SerializationFailure,
		pgerrcode.DeadlockDetected,
		pgerrcode.CannotConnectNow,
		pgerrcode.AdminShutdown,
		pgerrcode.QueryCanceled:
		return true
	}

	return false
}
