package summary

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/halopress/halopress/internal/content"
	"github.com/halopress/halopress/internal/field"
	"github.com/halopress/halopress/internal/schema"
	"github.com/halopress/halopress/internal/store"
)

// RegistrySource resolves the active registry of a schema
type RegistrySource interface {
	ActiveRegistry(ctx context.Context, schemaKey string) (*schema.Registry, error)
}

// SyncReport counts what a bulk summary sync did
type SyncReport struct {
	Total   int `json:"total"`
	Updated int `json:"updated"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// Syncer rebuilds summaries for many documents
type Syncer struct {
	store      *Store
	docs       content.Store
	registries RegistrySource
	opts       Options
	pageSize   int
	logger     *zap.Logger
}

// NewSyncer creates a Syncer
func NewSyncer(s *Store, docs content.Store, registries RegistrySource, opts Options, logger *zap.Logger) *Syncer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Syncer{
		store:      s,
		docs:       docs,
		registries: registries,
		opts:       opts,
		pageSize:   content.DefaultPageSize,
		logger:     logger,
	}
}

// Rebuild derives and stores the summary of one document
func (s *Syncer) Rebuild(ctx context.Context, doc *content.Document, registry *schema.Registry) error {
	body, err := field.ParseBody(doc.Body)
	if err != nil {
		// unreadable bodies still get a summary of the document columns
		body = field.Body{}
	}
	return s.store.Upsert(ctx, Build(doc, body, registry, s.opts))
}

// Get returns the stored summary of a document
func (s *Syncer) Get(ctx context.Context, documentID string) (*Summary, error) {
	return s.store.Get(ctx, documentID)
}

// Sync rebuilds the summaries of every document of schemaKey, or of every document when
// schemaKey is empty. With onlyMissing, documents that already have a summary are skipped.
func (s *Syncer) Sync(ctx context.Context, schemaKey string, onlyMissing bool) (*SyncReport, error) {
	report := &SyncReport{}

	existing := map[string]bool{}
	if onlyMissing {
		ids, err := s.store.IDs(ctx, schemaKey)
		if err != nil {
			return report, err
		}
		existing = ids
	}

	registries := map[string]*schema.Registry{}
	cursor := content.NewCursor(s.docs, content.Filter{SchemaKey: schemaKey, Limit: s.pageSize})
	for cursor.Next(ctx) {
		doc := cursor.Document()
		report.Total++
		if existing[doc.ID] {
			report.Skipped++
			continue
		}

		registry, ok := registries[doc.SchemaKey]
		if !ok {
			var err error
			registry, err = s.registries.ActiveRegistry(ctx, doc.SchemaKey)
			if err != nil && !errors.Is(err, store.ErrNotFound) {
				return report, fmt.Errorf("failed to load registry of %s: %w", doc.SchemaKey, err)
			}
			registries[doc.SchemaKey] = registry
		}

		if err := s.Rebuild(ctx, doc, registry); err != nil {
			report.Failed++
			s.logger.Warn("summary rebuild failed", zap.String("document_id", doc.ID), zap.Error(err))
			continue
		}
		report.Updated++
	}
	if err := cursor.Err(); err != nil {
		return report, fmt.Errorf("summary sync stopped after %s: %w", cursor.LastID(), err)
	}

	s.logger.Info("summaries synced",
		zap.String("schema_key", schemaKey),
		zap.Int("total", report.Total),
		zap.Int("updated", report.Updated),
		zap.Int("skipped", report.Skipped),
		zap.Int("failed", report.Failed),
	)
	return report, nil
}

// Delete removes the summary of a document
func (s *Syncer) Delete(ctx context.Context, documentID string) error {
	return s.store.Delete(ctx, documentID)
}
