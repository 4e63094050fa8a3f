// Package transaction runs units of work in database transactions carried by the
// context, so every store called with that context joins the same transaction.
package transaction

import (
	"context"
	"database/sql"
	"fmt"
)

type contextKey struct{}

// FromContext returns the transaction carried by ctx
func FromContext(ctx context.Context) (*sql.Tx, bool) {
	tx, ok := ctx.Value(contextKey{}).(*sql.Tx)
	return tx, ok
}

// WithContext returns a context carrying tx
func WithContext(ctx context.Context, tx *sql.Tx) context.Context {
	return context.WithValue(ctx, contextKey{}, tx)
}

// Manager begins, commits and rolls back transactions on a pool
type Manager struct {
	db *sql.DB
}

// NewManager creates a Manager over db
func NewManager(db *sql.DB) *Manager {
	return &Manager{db: db}
}

// Run calls fn with a context carrying a transaction. fn's work is committed when it
// returns nil and rolled back when it returns an error or panics. When ctx already
// carries a transaction fn joins it and the outer caller decides the outcome.
func (m *Manager) Run(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := FromContext(ctx); ok {
		return fn(ctx)
	}

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(WithContext(ctx, tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("transaction failed: %w, rollback failed: %v", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
