package cms

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/halopress/halopress/internal/content"
	"github.com/halopress/halopress/internal/field"
	"github.com/halopress/halopress/internal/migrate"
	"github.com/halopress/halopress/internal/store"
	"github.com/halopress/halopress/internal/summary"
)

// ResyncReport counts the documents a resync regenerated
type ResyncReport struct {
	SchemaKey string            `json:"schemaKey"`
	Version   int               `json:"version"`
	Total     int               `json:"total"`
	Updated   int               `json:"updated"`
	Failed    int               `json:"failed"`
	Failures  []migrate.Failure `json:"failures"`
}

// ReconcileReport describes a reconcile pass
type ReconcileReport struct {
	SchemaKey string `json:"schemaKey"`
	Version   int    `json:"version"`
	// Migrations holds one report per stale version that was upgraded
	Migrations map[int]*migrate.Report `json:"migrations"`
	Summaries  *summary.SyncReport     `json:"summaries"`
}

// Upgraded returns the number of documents moved to the active version
func (r *ReconcileReport) Upgraded() int {
	n := 0
	for _, m := range r.Migrations {
		n += m.Updated
	}
	return n
}

func (s *Service) active(ctx context.Context, schemaKey string) (*store.SchemaVersion, error) {
	active, err := s.versions.GetActive(ctx, schemaKey)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%s: %w", schemaKey, ErrNoActiveSchema)
	}
	return active, err
}

// Resync regenerates every projection of every document of a schema from the active
// registry, including its search field configs. Document bodies are not changed.
func (s *Service) Resync(ctx context.Context, schemaKey string) (*ResyncReport, error) {
	active, err := s.active(ctx, schemaKey)
	if err != nil {
		return nil, err
	}
	report := &ResyncReport{SchemaKey: schemaKey, Version: active.Version, Failures: []migrate.Failure{}}

	// same registry on both sides rewrites configs without a purge or backfill
	if _, err := s.index.SyncConfig(ctx, schemaKey, active.Registry, active.Registry); err != nil {
		return report, err
	}

	cursor := content.NewCursor(s.docs, content.Filter{SchemaKey: schemaKey})
	for cursor.Next(ctx) {
		doc := cursor.Document()
		report.Total++

		err := s.resyncDocument(ctx, doc, active)
		if err != nil {
			report.Failed++
			report.Failures = append(report.Failures, migrate.Failure{ID: doc.ID, Reason: err.Error()})
			s.logger.Warn("document resync failed", zap.String("document_id", doc.ID), zap.Error(err))
			continue
		}
		report.Updated++
	}
	if err := cursor.Err(); err != nil {
		return report, fmt.Errorf("resync of %s stopped after %q: %w", schemaKey, cursor.LastID(), err)
	}

	s.logger.Info("resync complete",
		zap.String("schema_key", schemaKey),
		zap.Int("total", report.Total),
		zap.Int("updated", report.Updated),
		zap.Int("failed", report.Failed),
	)
	return report, nil
}

func (s *Service) resyncDocument(ctx context.Context, doc *content.Document, active *store.SchemaVersion) error {
	body, err := field.ParseBody(doc.Body)
	if err != nil {
		return err
	}
	// drop rows of fields that are no longer indexed
	if err := s.index.DeleteDocument(ctx, doc.ID); err != nil {
		return err
	}
	return s.projections.Project(ctx, doc, body, active.Registry)
}

// Reconcile upgrades documents of a schema that are still below the active version. They
// are grouped by the version they were written under and migrated with the kind changes
// between that version and the active one. Missing summaries are then backfilled.
func (s *Service) Reconcile(ctx context.Context, schemaKey string) (*ReconcileReport, error) {
	active, err := s.active(ctx, schemaKey)
	if err != nil {
		return nil, err
	}
	report := &ReconcileReport{SchemaKey: schemaKey, Version: active.Version, Migrations: map[int]*migrate.Report{}}

	report.Migrations, err = s.migrateStale(ctx, schemaKey, active)
	if err != nil {
		return report, err
	}

	report.Summaries, err = s.summaries.Sync(ctx, schemaKey, true)
	if err != nil {
		return report, err
	}
	return report, nil
}

// migrateStale runs one migration per version that documents below active were written
// under, each with the kind changes between that version and active
func (s *Service) migrateStale(ctx context.Context, schemaKey string, active *store.SchemaVersion) (map[int]*migrate.Report, error) {
	migrations := map[int]*migrate.Report{}
	stale, err := s.staleVersions(ctx, schemaKey, active.Version)
	if err != nil {
		return migrations, err
	}

	for _, v := range stale {
		plan := migrate.Plan{
			SchemaKey:    schemaKey,
			Version:      active.Version,
			Registry:     active.Registry,
			StaleVersion: v,
		}
		old, err := s.versions.GetVersion(ctx, schemaKey, v)
		switch {
		case err == nil:
			plan.Changes = migrate.KindChanges(old.AST, active.AST)
		case errors.Is(err, store.ErrNotFound):
			s.logger.Warn("stale documents reference an unknown version", zap.String("schema_key", schemaKey), zap.Int("version", v))
		default:
			return migrations, err
		}

		m, err := s.engine.Run(ctx, plan)
		migrations[v] = m
		if err != nil {
			return migrations, err
		}
	}
	return migrations, nil
}

func (s *Service) staleVersions(ctx context.Context, schemaKey string, active int) ([]int, error) {
	seen := map[int]bool{}
	cursor := content.NewCursor(s.docs, content.Filter{SchemaKey: schemaKey, BelowVersion: active})
	for cursor.Next(ctx) {
		seen[cursor.Document().SchemaVersion] = true
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan stale documents of %s: %w", schemaKey, err)
	}

	versions := make([]int, 0, len(seen))
	for v := range seen {
		versions = append(versions, v)
	}
	sort.Ints(versions)
	return versions, nil
}

// SyncSummaries rebuilds document summaries of one schema, or of all schemas when
// schemaKey is empty
func (s *Service) SyncSummaries(ctx context.Context, schemaKey string, onlyMissing bool) (*summary.SyncReport, error) {
	return s.summaries.Sync(ctx, schemaKey, onlyMissing)
}

// ReconcileAll reconciles every schema with an active version. A failing schema does not
// stop the others; errors are joined.
func (s *Service) ReconcileAll(ctx context.Context) ([]*ReconcileReport, error) {
	pointers, err := s.versions.ListActive(ctx)
	if err != nil {
		return nil, err
	}

	var (
		reports []*ReconcileReport
		errs    []error
	)
	for _, p := range pointers {
		r, err := s.Reconcile(ctx, p.SchemaKey)
		if r != nil {
			reports = append(reports, r)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("reconcile %s: %w", p.SchemaKey, err))
		}
	}
	return reports, errors.Join(errs...)
}
