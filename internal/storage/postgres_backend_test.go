package storage

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresBackendQueries(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	b := NewPostgresBackendWithDB(db)
	ctx := context.Background()

	mock.ExpectQuery(`SELECT data FROM session_records WHERE key = \$1`).
		WithArgs("credential").
		WillReturnError(sql.ErrNoRows)
	_, err = b.Get(ctx, "credential")
	assert.True(t, IsNotFound(err))

	mock.ExpectExec(`INSERT INTO session_records`).
		WithArgs("credential", []byte("v1")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, b.Set(ctx, "credential", []byte("v1")))

	mock.ExpectQuery(`SELECT data FROM session_records`).
		WithArgs("credential").
		WillReturnRows(sqlmock.NewRows([]string{"data"}).AddRow([]byte("v1")))
	got, err := b.Get(ctx, "credential")
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), got)

	mock.ExpectExec(`DELETE FROM session_records WHERE key = ANY\(\$1\)`).
		WillReturnResult(sqlmock.NewResult(0, 2))
	require.NoError(t, b.Delete(ctx, "credential", "identity"))

	mock.ExpectClose()
	require.NoError(t, b.Close())
	assert.NoError(t, mock.ExpectationsWereMet())
}
