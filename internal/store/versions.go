package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/halopress/halopress/internal/cache"
	"github.com/halopress/halopress/internal/field"
	"github.com/halopress/halopress/internal/schema"
	"github.com/halopress/halopress/internal/transaction"
)

// VersionDiff records which version a publish moved the active pointer from and to
type VersionDiff struct {
	From int `json:"from"`
	To   int `json:"to"`
}

// SchemaVersion is an immutable published version of a schema
type SchemaVersion struct {
	SchemaKey        string                   `json:"schemaKey"`
	Version          int                      `json:"version"`
	Title            string                   `json:"title"`
	AST              *field.SchemaAst         `json:"ast"`
	Registry         *schema.Registry         `json:"registry"`
	ValidationSchema *schema.ValidationSchema `json:"validationSchema"`
	UISchema         *schema.UISchema         `json:"uiSchema"`
	Diff             VersionDiff              `json:"diff"`
	Note             string                   `json:"note,omitempty"`
	CreatedAt        time.Time                `json:"createdAt"`
}

// VersionInfo is the listing form of a version
type VersionInfo struct {
	SchemaKey string    `json:"schemaKey"`
	Version   int       `json:"version"`
	Title     string    `json:"title"`
	Note      string    `json:"note,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	Active    bool      `json:"active"`
}

// ActivePointer names the version currently in force for a schema
type ActivePointer struct {
	SchemaKey     string    `json:"schemaKey"`
	ActiveVersion int       `json:"activeVersion"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Draft is the mutable working copy of a schema
type Draft struct {
	SchemaKey string           `json:"schemaKey"`
	Title     string           `json:"title"`
	AST       *field.SchemaAst `json:"ast"`
	UpdatedAt time.Time        `json:"updatedAt"`
}

// CompileFunc produces the artifacts of a version
type CompileFunc func(ast *field.SchemaAst, version int) *schema.Compiled

// VersionStore persists schema versions, active pointers and drafts
type VersionStore struct {
	db     *DB
	cache  cache.Cache
	retry  *transaction.RetryConfig
	logger *zap.Logger
	now    func() time.Time
}

// VersionStoreOption configures a VersionStore
type VersionStoreOption func(*VersionStore)

// WithCache caches immutable version records
func WithCache(c cache.Cache) VersionStoreOption {
	return func(s *VersionStore) { s.cache = c }
}

// WithRetry sets the publish retry policy
func WithRetry(cfg *transaction.RetryConfig) VersionStoreOption {
	return func(s *VersionStore) {
		if cfg != nil {
			s.retry = cfg
		}
	}
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) VersionStoreOption {
	return func(s *VersionStore) { s.logger = logger }
}

// WithClock overrides the time source
func WithClock(now func() time.Time) VersionStoreOption {
	return func(s *VersionStore) { s.now = now }
}

// NewVersionStore creates a VersionStore
func NewVersionStore(db *DB, opts ...VersionStoreOption) *VersionStore {
	s := &VersionStore{
		db:     db,
		retry:  transaction.DefaultRetryConfig(),
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Publish compiles ast as the next version of schemaKey, stores it and makes it active,
// all in one transaction. Concurrent publishers racing for the same version number are
// retried.
func (s *VersionStore) Publish(ctx context.Context, schemaKey string, ast *field.SchemaAst, note string, compile CompileFunc) (*SchemaVersion, error) {
	if compile == nil {
		compile = schema.Compile
	}

	var published *SchemaVersion
	retry := *s.retry
	retry.OnRetry = func(attempt int, err error) {
		s.logger.Debug("publish conflict, retrying",
			zap.String("schema_key", schemaKey),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
	}

	err := s.db.InTxRetry(ctx, &retry, func(ctx context.Context) error {
		var prior int
		err := s.db.QueryRow(ctx, `SELECT COALESCE(MAX(version), 0) FROM `+s.db.Tables.Schema+` WHERE schema_key = ?`, schemaKey).Scan(&prior)
		if err != nil {
			return fmt.Errorf("failed to read latest version: %w", err)
		}

		from, err := s.activeVersion(ctx, schemaKey)
		if err != nil {
			return err
		}

		next := prior + 1
		compiled := compile(ast, next)
		now := s.now().UTC().Truncate(time.Millisecond)

		v := &SchemaVersion{
			SchemaKey:        schemaKey,
			Version:          next,
			Title:            ast.Title,
			AST:              ast,
			Registry:         compiled.Registry,
			ValidationSchema: compiled.ValidationSchema,
			UISchema:         compiled.UISchema,
			Diff:             VersionDiff{From: from, To: next},
			Note:             note,
			CreatedAt:        now,
		}
		if err := s.insertVersion(ctx, v); err != nil {
			return err
		}

		_, err = s.db.Exec(ctx, `INSERT INTO `+s.db.Tables.SchemaActive+` (schema_key, active_version, updated_at) VALUES (?, ?, ?)
ON CONFLICT (schema_key) DO UPDATE SET active_version = excluded.active_version, updated_at = excluded.updated_at`,
			schemaKey, next, Millis(now))
		if err != nil {
			return fmt.Errorf("failed to activate version %d: %w", next, ConvertDBError(err))
		}

		published = v
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("publish %s: %w", schemaKey, err)
	}

	s.logger.Info("schema published",
		zap.String("schema_key", schemaKey),
		zap.Int("version", published.Version),
		zap.Int("from", published.Diff.From),
	)
	s.cacheVersion(ctx, published)
	return published, nil
}

func (s *VersionStore) activeVersion(ctx context.Context, schemaKey string) (int, error) {
	var v int
	err := s.db.QueryRow(ctx, `SELECT active_version FROM `+s.db.Tables.SchemaActive+` WHERE schema_key = ?`, schemaKey).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read active version: %w", err)
	}
	return v, nil
}

func (s *VersionStore) insertVersion(ctx context.Context, v *SchemaVersion) error {
	encode := func(name string, value any) (string, error) {
		data, err := json.Marshal(value)
		if err != nil {
			return "", fmt.Errorf("failed to encode %s: %w", name, err)
		}
		return string(data), nil
	}

	astJSON, err := encode("ast", v.AST)
	if err != nil {
		return err
	}
	registryJSON, err := encode("registry", v.Registry)
	if err != nil {
		return err
	}
	jsonSchema, err := encode("validation schema", v.ValidationSchema)
	if err != nil {
		return err
	}
	uiJSON, err := encode("ui schema", v.UISchema)
	if err != nil {
		return err
	}
	diffJSON, err := encode("diff", v.Diff)
	if err != nil {
		return err
	}

	var note sql.NullString
	if v.Note != "" {
		note = sql.NullString{String: v.Note, Valid: true}
	}

	_, err = s.db.Exec(ctx, `INSERT INTO `+s.db.Tables.Schema+`
(schema_key, version, title, ast_json, registry_json, json_schema, ui_schema_json, diff_json, note, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		v.SchemaKey, v.Version, v.Title, astJSON, registryJSON, jsonSchema, uiJSON, diffJSON, note, Millis(v.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to insert version %d: %w", v.Version, ConvertDBError(err))
	}
	return nil
}

// GetVersion returns one published version. ErrNotFound if it does not exist.
func (s *VersionStore) GetVersion(ctx context.Context, schemaKey string, version int) (*SchemaVersion, error) {
	if s.cache != nil {
		var cached SchemaVersion
		err := cache.GetJSON(ctx, s.cache, cache.VersionKey(schemaKey, version), &cached)
		if err == nil {
			return &cached, nil
		}
		if !errors.Is(err, cache.ErrMiss) {
			s.logger.Warn("version cache read failed", zap.String("schema_key", schemaKey), zap.Int("version", version), zap.Error(err))
		}
	}

	var (
		v         SchemaVersion
		docs      [5]string
		note      sql.NullString
		createdAt int64
	)
	err := s.db.QueryRow(ctx, `SELECT schema_key, version, title, ast_json, registry_json, json_schema, ui_schema_json, diff_json, note, created_at
FROM `+s.db.Tables.Schema+` WHERE schema_key = ? AND version = ?`, schemaKey, version).
		Scan(&v.SchemaKey, &v.Version, &v.Title, &docs[0], &docs[1], &docs[2], &docs[3], &docs[4], &note, &createdAt)
	if err != nil {
		return nil, fmt.Errorf("schema %s version %d: %w", schemaKey, version, ConvertDBError(err))
	}

	decode := []struct {
		name string
		dst  any
	}{
		{"ast", &v.AST},
		{"registry", &v.Registry},
		{"validation schema", &v.ValidationSchema},
		{"ui schema", &v.UISchema},
		{"diff", &v.Diff},
	}
	for i, d := range decode {
		if err := json.Unmarshal([]byte(docs[i]), d.dst); err != nil {
			return nil, fmt.Errorf("schema %s version %d: corrupt %s: %w", schemaKey, version, d.name, err)
		}
	}
	v.Note = note.String
	v.CreatedAt = FromMillis(createdAt)

	s.cacheVersion(ctx, &v)
	return &v, nil
}

func (s *VersionStore) cacheVersion(ctx context.Context, v *SchemaVersion) {
	if s.cache == nil {
		return
	}
	if err := cache.SetJSON(ctx, s.cache, cache.VersionKey(v.SchemaKey, v.Version), v); err != nil {
		s.logger.Warn("version cache write failed", zap.String("schema_key", v.SchemaKey), zap.Int("version", v.Version), zap.Error(err))
	}
}

// GetActive returns the active version of a schema. ErrNotFound if none was published.
func (s *VersionStore) GetActive(ctx context.Context, schemaKey string) (*SchemaVersion, error) {
	active, err := s.activeVersion(ctx, schemaKey)
	if err != nil {
		return nil, err
	}
	if active == 0 {
		return nil, fmt.Errorf("active schema %s: %w", schemaKey, ErrNotFound)
	}
	return s.GetVersion(ctx, schemaKey, active)
}

// ActiveRegistry returns the registry of the active version of a schema
func (s *VersionStore) ActiveRegistry(ctx context.Context, schemaKey string) (*schema.Registry, error) {
	v, err := s.GetActive(ctx, schemaKey)
	if err != nil {
		return nil, err
	}
	return v.Registry, nil
}

// ListVersions returns every version of a schema, newest first
func (s *VersionStore) ListVersions(ctx context.Context, schemaKey string) ([]VersionInfo, error) {
	active, err := s.activeVersion(ctx, schemaKey)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.Query(ctx, `SELECT schema_key, version, title, note, created_at FROM `+s.db.Tables.Schema+`
WHERE schema_key = ? ORDER BY version DESC`, schemaKey)
	if err != nil {
		return nil, fmt.Errorf("failed to list versions: %w", err)
	}
	defer rows.Close()

	var out []VersionInfo
	for rows.Next() {
		var (
			info      VersionInfo
			note      sql.NullString
			createdAt int64
		)
		if err := rows.Scan(&info.SchemaKey, &info.Version, &info.Title, &note, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan version: %w", err)
		}
		info.Note = note.String
		info.CreatedAt = FromMillis(createdAt)
		info.Active = info.Version == active
		out = append(out, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating versions: %w", err)
	}
	return out, nil
}

// ListActive returns the active pointer of every published schema ordered by key
func (s *VersionStore) ListActive(ctx context.Context) ([]ActivePointer, error) {
	rows, err := s.db.Query(ctx, `SELECT schema_key, active_version, updated_at FROM `+s.db.Tables.SchemaActive+` ORDER BY schema_key`)
	if err != nil {
		return nil, fmt.Errorf("failed to list active schemas: %w", err)
	}
	defer rows.Close()

	var out []ActivePointer
	for rows.Next() {
		var (
			p         ActivePointer
			updatedAt int64
		)
		if err := rows.Scan(&p.SchemaKey, &p.ActiveVersion, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan active schema: %w", err)
		}
		p.UpdatedAt = FromMillis(updatedAt)
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating active schemas: %w", err)
	}
	return out, nil
}

// GetDraft returns the draft of a schema. ErrNotFound if there is none.
func (s *VersionStore) GetDraft(ctx context.Context, schemaKey string) (*Draft, error) {
	var (
		d         Draft
		astJSON   string
		updatedAt int64
	)
	err := s.db.QueryRow(ctx, `SELECT schema_key, title, ast_json, updated_at FROM `+s.db.Tables.SchemaDraft+` WHERE schema_key = ?`, schemaKey).
		Scan(&d.SchemaKey, &d.Title, &astJSON, &updatedAt)
	if err != nil {
		return nil, fmt.Errorf("draft %s: %w", schemaKey, ConvertDBError(err))
	}

	ast, err := field.DecodeAST([]byte(astJSON))
	if err != nil {
		return nil, fmt.Errorf("draft %s: %w", schemaKey, err)
	}
	d.AST = ast
	d.UpdatedAt = FromMillis(updatedAt)
	return &d, nil
}

// UpsertDraft stores the draft of a schema; the last write wins
func (s *VersionStore) UpsertDraft(ctx context.Context, ast *field.SchemaAst) (*Draft, error) {
	astJSON, err := field.EncodeAST(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to encode draft: %w", err)
	}
	now := s.now().UTC().Truncate(time.Millisecond)

	_, err = s.db.Exec(ctx, `INSERT INTO `+s.db.Tables.SchemaDraft+` (schema_key, title, ast_json, updated_at) VALUES (?, ?, ?, ?)
ON CONFLICT (schema_key) DO UPDATE SET title = excluded.title, ast_json = excluded.ast_json, updated_at = excluded.updated_at`,
		ast.SchemaKey, ast.Title, string(astJSON), Millis(now))
	if err != nil {
		return nil, fmt.Errorf("failed to save draft %s: %w", ast.SchemaKey, ConvertDBError(err))
	}

	return &Draft{SchemaKey: ast.SchemaKey, Title: ast.Title, AST: ast, UpdatedAt: now}, nil
}
