package cms

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/halopress/halopress/internal/field"
	"github.com/halopress/halopress/internal/migrate"
	"github.com/halopress/halopress/internal/schema"
	"github.com/halopress/halopress/internal/search"
	"github.com/halopress/halopress/internal/store"
)

// PublishRequest is the input of a publish. A nil AST publishes the draft.
type PublishRequest struct {
	AST     *field.SchemaAst `json:"ast,omitempty"`
	Note    string           `json:"note,omitempty"`
	Migrate bool             `json:"migrate"`
}

// PublishResult is the outcome of a publish
type PublishResult struct {
	SchemaKey     string               `json:"schemaKey"`
	Version       int                  `json:"version"`
	MigratedCount int                  `json:"migratedCount"`
	Changes       []migrate.KindChange `json:"changes,omitempty"`
	Migration     *migrate.Report      `json:"migration,omitempty"`
	Search        *search.SyncReport   `json:"search,omitempty"`
	Record        *store.SchemaVersion `json:"-"`
}

// Publish validates and stores the next version of a schema and makes it active. When
// req.Migrate is set and fields changed kind, documents below the new version are migrated
// to it, each from the version it was written under.
// The search projection is then reconciled with the new field configs.
//
// The active pointer moves before migration starts. Documents the migration could not
// reach stay on their version until Reconcile runs.
func (s *Service) Publish(ctx context.Context, schemaKey string, req PublishRequest) (*PublishResult, error) {
	ast, err := s.publishable(ctx, schemaKey, req.AST)
	if err != nil {
		return nil, err
	}

	published, err := s.versions.Publish(ctx, schemaKey, ast, req.Note, schema.Compile)
	if err != nil {
		return nil, err
	}
	result := &PublishResult{SchemaKey: schemaKey, Version: published.Version, Record: published}

	var previous *store.SchemaVersion
	if from := published.Diff.From; from > 0 {
		previous, err = s.versions.GetVersion(ctx, schemaKey, from)
		if err != nil {
			return result, fmt.Errorf("failed to load version %d of %s: %w", from, schemaKey, err)
		}
		result.Changes = migrate.KindChanges(previous.AST, ast)
	}

	if req.Migrate && len(result.Changes) > 0 {
		// documents still on older versions are migrated from the version they were written under
		migrations, err := s.migrateStale(ctx, schemaKey, published)
		result.Migration = migrations[previous.Version]
		for _, m := range migrations {
			if m != nil {
				result.MigratedCount += m.Updated
			}
		}
		if err != nil {
			return result, err
		}
	}

	var oldRegistry *schema.Registry
	if previous != nil {
		oldRegistry = previous.Registry
	}
	result.Search, err = s.index.SyncConfig(ctx, schemaKey, oldRegistry, published.Registry)
	if err != nil {
		return result, err
	}

	s.logger.Info("publish complete",
		zap.String("schema_key", schemaKey),
		zap.Int("version", result.Version),
		zap.Int("changes", len(result.Changes)),
		zap.Int("migrated", result.MigratedCount),
	)
	return result, nil
}

// PreviewPublish reports what publishing ast with migration would do to the documents on
// the active version without writing anything. A nil ast previews the draft. The migration
// report of the result lists every value that would be dropped.
func (s *Service) PreviewPublish(ctx context.Context, schemaKey string, ast *field.SchemaAst) (*PublishResult, error) {
	ast, err := s.publishable(ctx, schemaKey, ast)
	if err != nil {
		return nil, err
	}

	active, err := s.versions.GetActive(ctx, schemaKey)
	if errors.Is(err, store.ErrNotFound) {
		return &PublishResult{SchemaKey: schemaKey, Version: 1}, nil
	}
	if err != nil {
		return nil, err
	}

	next := active.Version + 1
	result := &PublishResult{
		SchemaKey: schemaKey,
		Version:   next,
		Changes:   migrate.KindChanges(active.AST, ast),
	}
	if len(result.Changes) == 0 {
		return result, nil
	}

	report, err := s.engine.Run(ctx, migrate.Plan{
		SchemaKey:    schemaKey,
		Version:      next,
		Registry:     schema.Compile(ast, next).Registry,
		Changes:      result.Changes,
		StaleVersion: active.Version,
		DryRun:       true,
	})
	result.Migration = report
	if report != nil {
		result.MigratedCount = report.Updated
	}
	return result, err
}

// publishable resolves the ast of a publish request and validates it
func (s *Service) publishable(ctx context.Context, schemaKey string, ast *field.SchemaAst) (*field.SchemaAst, error) {
	if ast == nil {
		draft, err := s.GetDraft(ctx, schemaKey)
		if err != nil {
			return nil, err
		}
		ast = draft.AST
	}
	if ast.SchemaKey != schemaKey {
		return nil, fmt.Errorf("%w: request %q, ast %q", ErrSchemaKeyMismatch, schemaKey, ast.SchemaKey)
	}
	if err := schema.Validate(ast); err != nil {
		return nil, err
	}
	return ast, nil
}
