package migrate

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/halopress/halopress/internal/content"
	"github.com/halopress/halopress/internal/field"
	"github.com/halopress/halopress/internal/schema"
)

// Plan describes one migration run
type Plan struct {
	SchemaKey string
	// Version is the version documents are moved to
	Version  int
	Registry *schema.Registry
	Changes  []KindChange
	// StaleVersion, when positive, restricts the run to documents at that version and
	// upgrades them even when there are no changes
	StaleVersion int
	// AfterID resumes a run after the last document id of a previous report
	AfterID string
	// DryRun computes the report, including every value that would be dropped, without
	// writing documents or projections
	DryRun bool
}

// Failure is a document the run could not migrate
type Failure struct {
	ID     string `json:"id"`
	Reason string `json:"reason"`
}

// Report summarizes a run
type Report struct {
	Total    int       `json:"total"`
	Updated  int       `json:"updated"`
	Skipped  int       `json:"skipped"`
	Failed   int       `json:"failed"`
	Failures []Failure `json:"failures"`
	Dropped  int       `json:"dropped"`
	LastID   string    `json:"lastId,omitempty"`
	// Drops lists the dropped values of a dry run
	Drops  []DocumentDrop `json:"drops,omitempty"`
	DryRun bool           `json:"dryRun,omitempty"`
}

// DocumentDrop is a value a dry run would remove from a document
type DocumentDrop struct {
	DocumentID string `json:"documentId"`
	FieldID    string `json:"fieldId"`
	Key        string `json:"key"`
}

// Engine walks the documents of a schema and moves them to a new version
type Engine struct {
	docs      content.Store
	projector Projector
	logger    *zap.Logger
	pageSize  int
	now       func() time.Time
}

// Option configures an Engine
type Option func(*Engine)

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithPageSize sets how many documents are read per page
func WithPageSize(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.pageSize = n
		}
	}
}

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine creates an Engine
func NewEngine(docs content.Store, projector Projector, opts ...Option) *Engine {
	e := &Engine{
		docs:      docs,
		projector: projector,
		logger:    zap.NewNop(),
		pageSize:  content.DefaultPageSize,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run migrates every matching document one at a time. A document that fails is recorded
// and the run continues. When ctx is cancelled the partial report is returned together
// with the context error; Plan.AfterID = Report.LastID resumes it.
func (e *Engine) Run(ctx context.Context, plan Plan) (*Report, error) {
	report := &Report{Failures: []Failure{}, DryRun: plan.DryRun}
	if len(plan.Changes) == 0 && plan.StaleVersion <= 0 {
		return report, nil
	}
	if plan.Registry == nil {
		return report, fmt.Errorf("migration of %s has no registry", plan.SchemaKey)
	}

	log := e.logger.With(zap.String("schema_key", plan.SchemaKey), zap.Int("version", plan.Version))
	log.Info("migration started",
		zap.Int("changes", len(plan.Changes)),
		zap.Int("stale_version", plan.StaleVersion),
		zap.String("after_id", plan.AfterID),
		zap.Bool("dry_run", plan.DryRun),
	)

	cursor := content.NewCursor(e.docs, content.Filter{
		SchemaKey: plan.SchemaKey,
		Version:   plan.StaleVersion,
		AfterID:   plan.AfterID,
		Limit:     e.pageSize,
	})
	for cursor.Next(ctx) {
		doc := cursor.Document()
		report.Total++
		report.LastID = doc.ID

		if doc.SchemaVersion > plan.Version {
			report.Skipped++
			continue
		}

		if plan.DryRun {
			if err := preview(doc, plan, report); err != nil {
				report.Failed++
				report.Failures = append(report.Failures, Failure{ID: doc.ID, Reason: err.Error()})
				continue
			}
			report.Updated++
			continue
		}

		dropped, err := e.migrateDocument(ctx, doc, plan)
		report.Dropped += dropped
		if err != nil {
			report.Failed++
			report.Failures = append(report.Failures, Failure{ID: doc.ID, Reason: err.Error()})
			log.Warn("document migration failed", zap.String("document_id", doc.ID), zap.Error(err))
			continue
		}
		report.Updated++
	}

	log.Info("migration finished",
		zap.Int("total", report.Total),
		zap.Int("updated", report.Updated),
		zap.Int("skipped", report.Skipped),
		zap.Int("failed", report.Failed),
		zap.Int("dropped", report.Dropped),
	)

	if err := cursor.Err(); err != nil {
		return report, fmt.Errorf("migration of %s stopped after %q: %w", plan.SchemaKey, report.LastID, err)
	}
	return report, nil
}

// preview applies the changes to a copy of the body and records what would be dropped
func preview(doc *content.Document, plan Plan, report *Report) error {
	body, err := field.ParseBody(doc.Body)
	if err != nil {
		return err
	}
	outcome := Apply(body, plan.Changes)
	report.Dropped += len(outcome.Dropped)
	for _, d := range outcome.Dropped {
		report.Drops = append(report.Drops, DocumentDrop{DocumentID: doc.ID, FieldID: d.FieldID, Key: d.Key})
	}
	return nil
}

func (e *Engine) migrateDocument(ctx context.Context, doc *content.Document, plan Plan) (int, error) {
	body, err := field.ParseBody(doc.Body)
	if err != nil {
		return 0, err
	}

	outcome := Apply(body, plan.Changes)
	for _, d := range outcome.Dropped {
		e.logger.Debug("value dropped", zap.String("document_id", doc.ID), zap.String("field_id", d.FieldID), zap.String("key", d.Key))
	}

	update := content.Update{
		SchemaVersion: &plan.Version,
		UpdatedAt:     e.now().UTC(),
	}
	if outcome.Mutated {
		encoded, err := field.EncodeBody(body)
		if err != nil {
			return len(outcome.Dropped), err
		}
		update.Body = encoded
	}

	if err := e.docs.Update(ctx, doc.ID, update); err != nil {
		return len(outcome.Dropped), fmt.Errorf("failed to update document: %w", err)
	}
	update.Apply(doc)

	if err := e.projector.Project(ctx, doc, body, plan.Registry); err != nil {
		return len(outcome.Dropped), fmt.Errorf("failed to rebuild projections: %w", err)
	}
	return len(outcome.Dropped), nil
}
