package search

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/halopress/halopress/internal/content"
	"github.com/halopress/halopress/internal/field"
	"github.com/halopress/halopress/internal/schema"
	"github.com/halopress/halopress/internal/store"
)

// Row is a stored index row
type Row struct {
	DocumentID string
	SchemaKey  string
	FieldID    string
	DataType   DataType
	Text       *string
	Value      *float64
}

// FieldFailure records a field whose backfill stopped
type FieldFailure struct {
	FieldID string `json:"fieldId"`
	Reason  string `json:"reason"`
}

// SyncReport describes what a config sync changed
type SyncReport struct {
	Purged     []string       `json:"purged"`
	Backfilled []string       `json:"backfilled"`
	Documents  int            `json:"documents"`
	Failures   []FieldFailure `json:"failures,omitempty"`
}

// Indexer writes search configs and index rows
type Indexer struct {
	db       *store.DB
	docs     content.Store
	logger   *zap.Logger
	pageSize int
	now      func() time.Time
}

// Option configures an Indexer
type Option func(*Indexer)

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(ix *Indexer) { ix.logger = logger }
}

// WithPageSize sets the document page size used by backfills
func WithPageSize(n int) Option {
	return func(ix *Indexer) { ix.pageSize = n }
}

// NewIndexer creates an Indexer reading documents from docs
func NewIndexer(db *store.DB, docs content.Store, opts ...Option) *Indexer {
	ix := &Indexer{
		db:       db,
		docs:     docs,
		logger:   zap.NewNop(),
		pageSize: content.DefaultPageSize,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(ix)
	}
	return ix
}

// UpsertDocument rewrites the index rows of a document for every indexed field of the
// registry, or only the listed field ids. Field failures are joined; they never stop the
// remaining fields.
func (ix *Indexer) UpsertDocument(ctx context.Context, documentID string, registry *schema.Registry, body field.Body, onlyFields ...string) error {
	only := make(map[string]bool, len(onlyFields))
	for _, id := range onlyFields {
		only[id] = true
	}

	var errs []error
	for i := range registry.Fields {
		f := &registry.Fields[i]
		if len(only) > 0 && !only[f.FieldID] {
			continue
		}
		if !Normalize(registry.SchemaKey, f).Indexed() {
			continue
		}
		if err := ix.upsertField(ctx, documentID, registry.SchemaKey, f, body[f.Key]); err != nil {
			errs = append(errs, fmt.Errorf("field %s: %w", f.Key, err))
		}
	}
	return errors.Join(errs...)
}

func (ix *Indexer) upsertField(ctx context.Context, documentID, schemaKey string, f *schema.CompiledField, value any) error {
	t := ix.db.Tables
	entry, ok := Coerce(f, value)
	if !ok {
		_, err := ix.db.Exec(ctx, `DELETE FROM `+t.SearchData+` WHERE content_id = ? AND field_id = ?`, documentID, f.FieldID)
		if err != nil {
			return fmt.Errorf("failed to delete index row: %w", err)
		}
		return nil
	}

	var (
		text sql.NullString
		num  sql.NullFloat64
	)
	if entry.DataType == DataText {
		text = sql.NullString{String: entry.Text, Valid: true}
	} else {
		num = sql.NullFloat64{Float64: entry.Value, Valid: true}
	}

	_, err := ix.db.Exec(ctx, `INSERT INTO `+t.SearchData+` (content_id, schema_key, field_id, data_type, text, value) VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT (content_id, field_id) DO UPDATE SET schema_key = excluded.schema_key, data_type = excluded.data_type, text = excluded.text, value = excluded.value`,
		documentID, schemaKey, f.FieldID, string(entry.DataType), text, num)
	if err != nil {
		return fmt.Errorf("failed to upsert index row: %w", err)
	}
	return nil
}

// DeleteDocument removes every index row of a document
func (ix *Indexer) DeleteDocument(ctx context.Context, documentID string) error {
	if _, err := ix.db.Exec(ctx, `DELETE FROM `+ix.db.Tables.SearchData+` WHERE content_id = ?`, documentID); err != nil {
		return fmt.Errorf("failed to delete index rows of %s: %w", documentID, err)
	}
	return nil
}

// SyncConfig brings the search projection of a schema from the old registry (nil when
// there was none) to the new one: config rows are rewritten, fields that stopped being
// indexed or changed storage class are purged, and fields that need rows are backfilled
// from every document of the schema.
func (ix *Indexer) SyncConfig(ctx context.Context, schemaKey string, old, next *schema.Registry) (*SyncReport, error) {
	if err := ix.writeConfigs(ctx, schemaKey, next); err != nil {
		return nil, err
	}

	purge, backfill := Plan(old, next)
	report := &SyncReport{Purged: []string{}, Backfilled: []string{}}

	failed := map[string]bool{}
	for _, fieldID := range purge {
		_, err := ix.db.Exec(ctx, `DELETE FROM `+ix.db.Tables.SearchData+` WHERE schema_key = ? AND field_id = ?`, schemaKey, fieldID)
		if err != nil {
			failed[fieldID] = true
			report.Failures = append(report.Failures, FieldFailure{FieldID: fieldID, Reason: fmt.Sprintf("purge: %v", err)})
			ix.logger.Warn("search purge failed", zap.String("schema_key", schemaKey), zap.String("field_id", fieldID), zap.Error(err))
			continue
		}
		report.Purged = append(report.Purged, fieldID)
	}

	// rows of a field whose purge failed keep their old storage class
	if len(failed) > 0 {
		kept := backfill[:0]
		for _, id := range backfill {
			if !failed[id] {
				kept = append(kept, id)
			}
		}
		backfill = kept
	}

	if len(backfill) > 0 {
		if err := ix.backfill(ctx, schemaKey, next, backfill, report); err != nil {
			return report, err
		}
	}

	ix.logger.Info("search config synced",
		zap.String("schema_key", schemaKey),
		zap.Strings("purged", report.Purged),
		zap.Strings("backfilled", report.Backfilled),
		zap.Int("documents", report.Documents),
		zap.Int("failures", len(report.Failures)),
	)
	return report, nil
}

func (ix *Indexer) writeConfigs(ctx context.Context, schemaKey string, registry *schema.Registry) error {
	t := ix.db.Tables
	now := store.Millis(ix.now())

	return ix.db.InTx(ctx, func(ctx context.Context) error {
		keep := make(map[string]bool, len(registry.Fields))
		for i := range registry.Fields {
			cfg := Normalize(schemaKey, &registry.Fields[i])
			keep[cfg.FieldID] = true

			_, err := ix.db.Exec(ctx, `INSERT INTO `+t.SearchConfig+` (schema_key, field_id, field_key, kind, search_mode, filterable, sortable, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (schema_key, field_id) DO UPDATE SET field_key = excluded.field_key, kind = excluded.kind, search_mode = excluded.search_mode,
filterable = excluded.filterable, sortable = excluded.sortable, updated_at = excluded.updated_at`,
				schemaKey, cfg.FieldID, cfg.FieldKey, string(cfg.Kind), string(cfg.Mode), store.BoolInt(cfg.Filterable), store.BoolInt(cfg.Sortable), now)
			if err != nil {
				return fmt.Errorf("failed to write search config of field %s: %w", cfg.FieldKey, err)
			}
		}

		existing, err := ix.configIDs(ctx, schemaKey)
		if err != nil {
			return err
		}
		for _, id := range existing {
			if keep[id] {
				continue
			}
			if _, err := ix.db.Exec(ctx, `DELETE FROM `+t.SearchConfig+` WHERE schema_key = ? AND field_id = ?`, schemaKey, id); err != nil {
				return fmt.Errorf("failed to delete search config of field %s: %w", id, err)
			}
		}
		return nil
	})
}

func (ix *Indexer) configIDs(ctx context.Context, schemaKey string) ([]string, error) {
	rows, err := ix.db.Query(ctx, `SELECT field_id FROM `+ix.db.Tables.SearchConfig+` WHERE schema_key = ?`, schemaKey)
	if err != nil {
		return nil, fmt.Errorf("failed to read search configs: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan search config: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// backfill walks every document of the schema once and rebuilds the queued fields. A
// field that fails is recorded and dropped from the walk; the others continue.
func (ix *Indexer) backfill(ctx context.Context, schemaKey string, registry *schema.Registry, fieldIDs []string, report *SyncReport) error {
	pending := make([]*schema.CompiledField, 0, len(fieldIDs))
	for _, id := range fieldIDs {
		if f, ok := registry.Field(id); ok {
			pending = append(pending, f)
		}
	}
	failed := map[string]bool{}

	cursor := content.NewCursor(ix.docs, content.Filter{SchemaKey: schemaKey, Limit: ix.pageSize})
	for cursor.Next(ctx) {
		doc := cursor.Document()
		body, err := field.ParseBody(doc.Body)
		if err != nil {
			ix.logger.Warn("skipping document with unreadable body", zap.String("document_id", doc.ID), zap.Error(err))
			continue
		}
		report.Documents++

		for _, f := range pending {
			if failed[f.FieldID] {
				continue
			}
			if err := ix.upsertField(ctx, doc.ID, schemaKey, f, body[f.Key]); err != nil {
				failed[f.FieldID] = true
				report.Failures = append(report.Failures, FieldFailure{
					FieldID: f.FieldID,
					Reason:  fmt.Sprintf("document %s: %v", doc.ID, err),
				})
				ix.logger.Warn("search backfill failed", zap.String("field_id", f.FieldID), zap.String("document_id", doc.ID), zap.Error(err))
			}
		}
	}
	if err := cursor.Err(); err != nil {
		return fmt.Errorf("backfill of %s stopped after %s: %w", schemaKey, cursor.LastID(), err)
	}

	for _, f := range pending {
		if !failed[f.FieldID] {
			report.Backfilled = append(report.Backfilled, f.FieldID)
		}
	}
	return nil
}

// FieldConfigs returns the stored search configs of a schema ordered by field key
func (ix *Indexer) FieldConfigs(ctx context.Context, schemaKey string) ([]FieldConfig, error) {
	rows, err := ix.db.Query(ctx, `SELECT schema_key, field_id, field_key, kind, search_mode, filterable, sortable FROM `+ix.db.Tables.SearchConfig+`
WHERE schema_key = ? ORDER BY field_key`, schemaKey)
	if err != nil {
		return nil, fmt.Errorf("failed to read search configs: %w", err)
	}
	defer rows.Close()

	var out []FieldConfig
	for rows.Next() {
		var (
			cfg                  FieldConfig
			kind, mode           string
			filterable, sortable int
		)
		if err := rows.Scan(&cfg.SchemaKey, &cfg.FieldID, &cfg.FieldKey, &kind, &mode, &filterable, &sortable); err != nil {
			return nil, fmt.Errorf("failed to scan search config: %w", err)
		}
		cfg.Kind = field.Kind(kind)
		cfg.Mode = field.SearchMode(mode)
		cfg.Filterable = filterable != 0
		cfg.Sortable = sortable != 0
		out = append(out, cfg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating search configs: %w", err)
	}
	return out, nil
}

// Rows returns the index rows of a document ordered by field id
func (ix *Indexer) Rows(ctx context.Context, documentID string) ([]Row, error) {
	rows, err := ix.db.Query(ctx, `SELECT content_id, schema_key, field_id, data_type, text, value FROM `+ix.db.Tables.SearchData+`
WHERE content_id = ? ORDER BY field_id`, documentID)
	if err != nil {
		return nil, fmt.Errorf("failed to read index rows: %w", err)
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var (
			r     Row
			dt    string
			text  sql.NullString
			value sql.NullFloat64
		)
		if err := rows.Scan(&r.DocumentID, &r.SchemaKey, &r.FieldID, &dt, &text, &value); err != nil {
			return nil, fmt.Errorf("failed to scan index row: %w", err)
		}
		r.DataType = DataType(dt)
		if text.Valid {
			r.Text = &text.String
		}
		if value.Valid {
			r.Value = &value.Float64
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating index rows: %w", err)
	}
	return out, nil
}
