package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/halopress/halopress/internal/field"
	"github.com/halopress/halopress/internal/transaction"
)

func setupMockDB(t *testing.T) (*DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	return New(sqlDB, Postgres, ""), mock
}

func fastRetry() *transaction.RetryConfig {
	return &transaction.RetryConfig{MaxAttempts: 3, BaseBackoff: time.Millisecond}
}

func TestPublish_RetriesVersionConflict(t *testing.T) {
	db, mock := setupMockDB(t)
	vs := NewVersionStore(db, WithRetry(fastRetry()))
	ast := &field.SchemaAst{SchemaKey: "post", Title: "Post", Fields: []field.FieldNode{}}

	// first attempt loses the race for version 1
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT COALESCE\(MAX\(version\), 0\)`).WithArgs("post").
		WillReturnRows(sqlmock.NewRows([]string{"max"}).AddRow(0))
	mock.ExpectQuery(`SELECT active_version`).WithArgs("post").
		WillReturnRows(sqlmock.NewRows([]string{"active_version"}))
	mock.ExpectExec(`INSERT INTO "schema"`).
		WillReturnError(&pgconn.PgError{Code: "23505", Detail: "Key (schema_key, version)=(post, 1) already exists."})
	mock.ExpectRollback()

	// second attempt sees the winner and takes version 2
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT COALESCE\(MAX\(version\), 0\)`).WithArgs("post").
		WillReturnRows(sqlmock.NewRows([]string{"max"}).AddRow(1))
	mock.ExpectQuery(`SELECT active_version`).WithArgs("post").
		WillReturnRows(sqlmock.NewRows([]string{"active_version"}).AddRow(1))
	mock.ExpectExec(`INSERT INTO "schema"`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO "schema_active"`).WithArgs("post", 2, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	v, err := vs.Publish(context.Background(), "post", ast, "", nil)
	require.NoError(t, err)
	assert.Equal(t, 2, v.Version)
	assert.Equal(t, VersionDiff{From: 1, To: 2}, v.Diff)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPublish_NonRetryableFailure(t *testing.T) {
	db, mock := setupMockDB(t)
	vs := NewVersionStore(db, WithRetry(fastRetry()))
	ast := &field.SchemaAst{SchemaKey: "post", Title: "Post"}
	boom := errors.New("disk full")

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT COALESCE`).WillReturnError(boom)
	mock.ExpectRollback()

	_, err := vs.Publish(context.Background(), "post", ast, "", nil)
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPublish_RetriesExhausted(t *testing.T) {
	db, mock := setupMockDB(t)
	vs := NewVersionStore(db, WithRetry(&transaction.RetryConfig{MaxAttempts: 2, BaseBackoff: time.Millisecond}))
	ast := &field.SchemaAst{SchemaKey: "post", Title: "Post"}

	for i := 0; i < 2; i++ {
		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT COALESCE`).WillReturnRows(sqlmock.NewRows([]string{"max"}).AddRow(0))
		mock.ExpectQuery(`SELECT active_version`).WillReturnRows(sqlmock.NewRows([]string{"active_version"}))
		mock.ExpectExec(`INSERT INTO "schema"`).WillReturnError(&pgconn.PgError{Code: "23505"})
		mock.ExpectRollback()
	}

	_, err := vs.Publish(context.Background(), "post", ast, "", nil)
	assert.ErrorIs(t, err, transaction.ErrRetriesExhausted)
	assert.ErrorIs(t, err, ErrUniqueViolation)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListActive_QueryError(t *testing.T) {
	db, mock := setupMockDB(t)
	vs := NewVersionStore(db)

	mock.ExpectQuery(`SELECT schema_key, active_version`).WillReturnError(errors.New("boom"))

	_, err := vs.ListActive(context.Background())
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
