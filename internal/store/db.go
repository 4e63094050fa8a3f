// Package store is the SQL persistence layer: schema versions, drafts, documents and the
// table layout shared by the projection writers.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver
	"github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3" // registers the "sqlite3" driver

	"github.com/halopress/halopress/internal/transaction"
)

// Dialect is the SQL flavor of a connection
type Dialect int

const (
	// SQLite uses ? placeholders
	SQLite Dialect = iota
	// Postgres uses $n placeholders
	Postgres
)

// String returns the dialect name
func (d Dialect) String() string {
	if d == Postgres {
		return "postgres"
	}
	return "sqlite"
}

// DialectFor maps a database/sql driver name to its dialect
func DialectFor(driver string) (Dialect, error) {
	switch driver {
	case "sqlite3":
		return SQLite, nil
	case "pgx", "postgres":
		return Postgres, nil
	default:
		return SQLite, fmt.Errorf("unsupported database driver %q (want sqlite3, pgx or postgres)", driver)
	}
}

// Tables holds the quoted names of every table the engine uses
type Tables struct {
	Schema       string
	SchemaActive string
	SchemaDraft  string
	Content      string
	ContentRef   string
	ContentRefs  string
	SearchConfig string
	SearchData   string
	ContentItems string
	prefix       string
}

// NewTables builds table names under prefix
func NewTables(prefix string) Tables {
	q := func(name string) string { return pq.QuoteIdentifier(prefix + name) }
	return Tables{
		Schema:       q("schema"),
		SchemaActive: q("schema_active"),
		SchemaDraft:  q("schema_draft"),
		Content:      q("content"),
		ContentRef:   q("content_ref"),
		ContentRefs:  q("content_ref_list"),
		SearchConfig: q("content_search_config"),
		SearchData:   q("content_search_data"),
		ContentItems: q("content_items"),
		prefix:       prefix,
	}
}

// index names an index under the table prefix
func (t Tables) index(name string) string {
	return pq.QuoteIdentifier(t.prefix + name)
}

// Querier is satisfied by *sql.DB and *sql.Tx
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// DB wraps a connection pool with its dialect, table names and transaction manager
type DB struct {
	*sql.DB
	Dialect Dialect
	Tables  Tables
	tx      *transaction.Manager
}

// Options configures Open
type Options struct {
	TablePrefix  string
	MaxOpenConns int
}

// Open connects to the database named by driver and url
func Open(driver, url string, opts Options) (*DB, error) {
	dialect, err := DialectFor(driver)
	if err != nil {
		return nil, err
	}

	sqlDB, err := sql.Open(driver, url)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", dialect, err)
	}

	switch {
	case opts.MaxOpenConns > 0:
		sqlDB.SetMaxOpenConns(opts.MaxOpenConns)
	case dialect == SQLite:
		// sqlite allows a single writer
		sqlDB.SetMaxOpenConns(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to connect to %s database: %w", dialect, err)
	}

	return New(sqlDB, dialect, opts.TablePrefix), nil
}

// New wraps an open connection pool
func New(sqlDB *sql.DB, dialect Dialect, tablePrefix string) *DB {
	return &DB{
		DB:      sqlDB,
		Dialect: dialect,
		Tables:  NewTables(tablePrefix),
		tx:      transaction.NewManager(sqlDB),
	}
}

// Rebind rewrites ? placeholders into the dialect's form
func (d *DB) Rebind(query string) string {
	if d.Dialect != Postgres {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Conn returns the transaction carried by ctx, or the pool
func (d *DB) Conn(ctx context.Context) Querier {
	if tx, ok := transaction.FromContext(ctx); ok {
		return tx
	}
	return d.DB
}

// Exec runs a statement written with ? placeholders
func (d *DB) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return d.Conn(ctx).ExecContext(ctx, d.Rebind(query), args...)
}

// Query runs a query written with ? placeholders
func (d *DB) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return d.Conn(ctx).QueryContext(ctx, d.Rebind(query), args...)
}

// QueryRow runs a single-row query written with ? placeholders
func (d *DB) QueryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return d.Conn(ctx).QueryRowContext(ctx, d.Rebind(query), args...)
}

// InTx runs fn in a transaction; stores called with the passed context join it. When
// ctx already carries a transaction fn runs inside that one.
func (d *DB) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return d.tx.Run(ctx, fn)
}

// InTxRetry is InTx with retry on unique violations and transient conflicts
func (d *DB) InTxRetry(ctx context.Context, cfg *transaction.RetryConfig, fn func(ctx context.Context) error) error {
	if cfg == nil {
		cfg = transaction.DefaultRetryConfig()
	}
	retry := *cfg
	if retry.Retryable == nil {
		retry.Retryable = func(err error) bool {
			return IsUniqueViolation(err) || transaction.IsRetryableError(err)
		}
	}
	return d.tx.RunRetry(ctx, &retry, fn)
}

// Millis converts a time to the epoch milliseconds stored in the database
func Millis(t time.Time) int64 {
	return t.UnixMilli()
}

// FromMillis converts stored epoch milliseconds back to UTC time
func FromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

// BoolInt converts a flag to the 0/1 integer stored in the database
func BoolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
