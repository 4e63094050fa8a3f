// Package cache keeps published schema version records near the engine. A version never
// changes once written, so entries are only dropped to bound memory, never to invalidate.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrMiss is returned by Get when the key holds nothing
var ErrMiss = errors.New("cache miss")

const (
	DefaultPrefix     = "halopress:"
	DefaultTTL        = time.Hour
	DefaultMaxEntries = 512
)

// Cache is a byte store keyed by string
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Config is shared by the backends. A zero TTL keeps entries until they are evicted.
// MaxEntries only applies to the memory backend.
type Config struct {
	Prefix     string
	TTL        time.Duration
	MaxEntries int
}

// DefaultConfig returns the configuration used when none is given
func DefaultConfig() Config {
	return Config{Prefix: DefaultPrefix, TTL: DefaultTTL, MaxEntries: DefaultMaxEntries}
}

// VersionKey is the key of a published schema version record
func VersionKey(schemaKey string, version int) string {
	return fmt.Sprintf("schema:%s:v%d", schemaKey, version)
}

// GetJSON loads key and decodes it into dst. A miss is reported as ErrMiss.
func GetJSON(ctx context.Context, c Cache, key string, dst any) error {
	data, err := c.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("failed to decode cached %s: %w", key, err)
	}
	return nil
}

// SetJSON encodes value and stores it under key
func SetJSON(ctx context.Context, c Cache, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode %s for cache: %w", key, err)
	}
	return c.Set(ctx, key, data)
}
