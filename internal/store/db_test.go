package store

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/halopress/halopress/internal/transaction"
)

func openSQLite(t *testing.T) *DB {
	t.Helper()
	sqlDB, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	return New(sqlDB, SQLite, "hp_")
}

func TestDialectFor(t *testing.T) {
	tests := []struct {
		driver  string
		dialect Dialect
		wantErr bool
	}{
		{"sqlite3", SQLite, false},
		{"pgx", Postgres, false},
		{"postgres", Postgres, false},
		{"mysql", SQLite, true},
	}

	for _, tt := range tests {
		t.Run(tt.driver, func(t *testing.T) {
			got, err := DialectFor(tt.driver)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.dialect, got)
		})
	}
}

func TestRebind(t *testing.T) {
	pg := &DB{Dialect: Postgres}
	lite := &DB{Dialect: SQLite}
	q := `SELECT * FROM t WHERE a = ? AND b > ? LIMIT ?`

	assert.Equal(t, `SELECT * FROM t WHERE a = $1 AND b > $2 LIMIT $3`, pg.Rebind(q))
	assert.Equal(t, q, lite.Rebind(q))
}

func TestNewTables(t *testing.T) {
	tables := NewTables("hp_")
	assert.Equal(t, `"hp_schema"`, tables.Schema)
	assert.Equal(t, `"hp_content_search_data"`, tables.SearchData)
	assert.Equal(t, `"hp_idx_x"`, tables.index("idx_x"))
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	_, err := Open("mysql", "", Options{})
	assert.Error(t, err)
}

func TestOpen_SQLite(t *testing.T) {
	db, err := Open("sqlite3", ":memory:", Options{TablePrefix: "x_"})
	require.NoError(t, err)
	defer db.Close()

	assert.Equal(t, SQLite, db.Dialect)
	require.NoError(t, db.Initialize(context.Background()))
	// idempotent
	require.NoError(t, db.Initialize(context.Background()))
}

func TestInTx_CommitAndRollback(t *testing.T) {
	db := openSQLite(t)
	ctx := context.Background()
	_, err := db.Exec(ctx, `CREATE TABLE items (id INTEGER PRIMARY KEY)`)
	require.NoError(t, err)

	require.NoError(t, db.InTx(ctx, func(ctx context.Context) error {
		_, ok := transaction.FromContext(ctx)
		assert.True(t, ok)
		_, err := db.Exec(ctx, `INSERT INTO items (id) VALUES (?)`, 1)
		return err
	}))

	boom := errors.New("boom")
	err = db.InTx(ctx, func(ctx context.Context) error {
		if _, err := db.Exec(ctx, `INSERT INTO items (id) VALUES (?)`, 2); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	var n int
	require.NoError(t, db.QueryRow(ctx, `SELECT COUNT(*) FROM items`).Scan(&n))
	assert.Equal(t, 1, n)
}

func TestInTx_Nested(t *testing.T) {
	db := openSQLite(t)
	ctx := context.Background()

	require.NoError(t, db.InTx(ctx, func(outer context.Context) error {
		outerTx, _ := transaction.FromContext(outer)
		return db.InTx(outer, func(inner context.Context) error {
			innerTx, _ := transaction.FromContext(inner)
			assert.Same(t, outerTx, innerTx)
			return nil
		})
	}))
}

func TestMillis(t *testing.T) {
	ts := FromMillis(1700000000123)
	assert.Equal(t, int64(1700000000123), Millis(ts))
	assert.Equal(t, "UTC", ts.Location().String())
	assert.Equal(t, 1, BoolInt(true))
	assert.Equal(t, 0, BoolInt(false))
}
