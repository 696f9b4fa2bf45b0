package migrations

import (
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
)

func TestMigrate_NilDB(t *testing.T) {
	var db *sql.DB

	err := Migrate(db)
	require.Error(t, err)
	require.Contains(t, err.Error(), "db is nil")
}

func TestMigrate_DBError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(".*").WillReturnError(errors.New("connection refused"))
	mock.ExpectExec(".*").WillReturnError(errors.New("connection refused"))

	err = Migrate(db)
	require.Error(t, err)
	require.Contains(t, err.Error(), "migration error")
}

func TestEmbeddedMigrationsPresent(t *testing.T) {
	entries, err := embedMigrations.ReadDir(".")
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, entry.Name())
	}
	require.Equal(t, []string{
		"00001_init.sql",
		"00002_model_search_index.sql",
		"00003_users_email_lower.sql",
	}, names)
}
