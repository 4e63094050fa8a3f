// Package cms ties the engine together: schema drafts and publishes, document writes and
// the repair passes that keep documents and their projections on the active version.
package cms

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/halopress/halopress/internal/cache"
	"github.com/halopress/halopress/internal/content"
	"github.com/halopress/halopress/internal/field"
	"github.com/halopress/halopress/internal/logging"
	"github.com/halopress/halopress/internal/migrate"
	"github.com/halopress/halopress/internal/refsync"
	"github.com/halopress/halopress/internal/schema"
	"github.com/halopress/halopress/internal/search"
	"github.com/halopress/halopress/internal/store"
	"github.com/halopress/halopress/internal/summary"
	"github.com/halopress/halopress/internal/transaction"
)

// Options configures a Service
type Options struct {
	Logger *zap.Logger
	// Cache holds immutable version records; nil disables caching
	Cache    cache.Cache
	Retry    *transaction.RetryConfig
	PageSize int
	Summary  summary.Options
	Clock    func() time.Time
}

// Service is the entry point for every engine operation
type Service struct {
	db          *store.DB
	versions    *store.VersionStore
	docs        content.Store
	refs        *refsync.Syncer
	index       *search.Indexer
	summaries   *summary.Syncer
	projections *migrate.Projections
	engine      *migrate.Engine
	logger      *zap.Logger
	now         func() time.Time
}

// New wires a Service over db
func New(db *store.DB, opts Options) *Service {
	logger := logging.OrNop(opts.Logger)
	now := opts.Clock
	if now == nil {
		now = time.Now
	}
	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = content.DefaultPageSize
	}

	versionOpts := []store.VersionStoreOption{store.WithLogger(logger), store.WithClock(now)}
	if opts.Cache != nil {
		versionOpts = append(versionOpts, store.WithCache(opts.Cache))
	}
	if opts.Retry != nil {
		versionOpts = append(versionOpts, store.WithRetry(opts.Retry))
	}

	s := &Service{
		db:       db,
		versions: store.NewVersionStore(db, versionOpts...),
		docs:     store.NewDocuments(db),
		logger:   logger,
		now:      now,
	}
	s.refs = refsync.New(db, logger)
	s.index = search.NewIndexer(db, s.docs, search.WithLogger(logger), search.WithPageSize(pageSize))
	s.summaries = summary.NewSyncer(summary.NewStore(db), s.docs, s.versions, opts.Summary, logger)
	s.projections = &migrate.Projections{Refs: s.refs, Search: s.index, Summaries: s.summaries}
	s.engine = migrate.NewEngine(s.docs, s.projections,
		migrate.WithLogger(logger), migrate.WithPageSize(pageSize), migrate.WithClock(now))
	return s
}

// Versions exposes the version store
func (s *Service) Versions() *store.VersionStore { return s.versions }

// Documents exposes the document store
func (s *Service) Documents() content.Store { return s.docs }

// Refs exposes the reference synchronizer
func (s *Service) Refs() *refsync.Syncer { return s.refs }

// Summaries exposes the summary builder
func (s *Service) Summaries() *summary.Syncer { return s.summaries }

// Index exposes the search indexer
func (s *Service) Index() *search.Indexer { return s.index }

// Install creates the tables and publishes the default article schema when no article
// schema exists yet
func (s *Service) Install(ctx context.Context) error {
	if err := s.db.Initialize(ctx); err != nil {
		return err
	}

	article := schema.DefaultArticleAST()
	_, err := s.versions.GetActive(ctx, article.SchemaKey)
	if err == nil {
		return nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return err
	}

	_, err = s.Publish(ctx, article.SchemaKey, PublishRequest{AST: article, Note: "default schema"})
	return err
}

// Validate checks the structural rules of an AST
func (s *Service) Validate(ast *field.SchemaAst) error {
	return schema.Validate(ast)
}

// GetDraft returns the draft of a schema
func (s *Service) GetDraft(ctx context.Context, schemaKey string) (*store.Draft, error) {
	draft, err := s.versions.GetDraft(ctx, schemaKey)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%s: %w", schemaKey, ErrDraftNotFound)
	}
	return draft, err
}

// SaveDraft validates ast and stores it as the draft of its schema
func (s *Service) SaveDraft(ctx context.Context, ast *field.SchemaAst) (*store.Draft, error) {
	if err := schema.Validate(ast); err != nil {
		return nil, err
	}
	return s.versions.UpsertDraft(ctx, ast)
}
