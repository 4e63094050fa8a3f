package transaction

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrRetriesExhausted is returned when every attempt failed with a retryable error
var ErrRetriesExhausted = errors.New("transaction retries exhausted")

const (
	// DefaultMaxAttempts is the default number of attempts
	DefaultMaxAttempts = 3
	// DefaultBaseBackoff is the wait before the second attempt; it doubles after each failure
	DefaultBaseBackoff = 50 * time.Millisecond
)

// RetryConfig configures RunRetry
type RetryConfig struct {
	MaxAttempts int
	BaseBackoff time.Duration
	// Retryable classifies errors worth another attempt. Nil means IsRetryableError.
	Retryable func(error) bool
	// OnRetry, when set, is told about each failed attempt that will be retried
	OnRetry func(attempt int, err error)
}

// DefaultRetryConfig returns the default retry configuration
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts: DefaultMaxAttempts,
		BaseBackoff: DefaultBaseBackoff,
	}
}

// RunRetry is Run with retry of transient failures. Each attempt gets a fresh
// transaction. Inside an outer transaction fn runs once, since a failed statement
// poisons the transaction it belongs to.
func (m *Manager) RunRetry(ctx context.Context, cfg *RetryConfig, fn func(ctx context.Context) error) error {
	if _, ok := FromContext(ctx); ok {
		return fn(ctx)
	}
	if cfg == nil {
		cfg = DefaultRetryConfig()
	}
	retryable := cfg.Retryable
	if retryable == nil {
		retryable = IsRetryableError
	}
	attempts := max(cfg.MaxAttempts, 1)

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("transaction cancelled before attempt %d: %w", attempt, err)
		}

		err := m.Run(ctx, fn)
		if err == nil {
			return nil
		}
		if !retryable(err) {
			return err
		}
		lastErr = err
		if attempt == attempts {
			break
		}
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, err)
		}

		backoff := cfg.BaseBackoff << (attempt - 1)
		select {
		case <-ctx.Done():
			return fmt.Errorf("transaction cancelled during retry: %w", ctx.Err())
		case <-time.After(backoff):
		}
	}

	return fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, attempts, lastErr)
}

var retryableMessages = []string{
	"40p01",
	"40001",
	"deadlock detected",
	"could not serialize access",
	"database is locked",
	"database table is locked",
}

// IsRetryableError reports whether err is a deadlock, serialization failure or busy
// sqlite database
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, m := range retryableMessages {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}
