package migrate

import (
	"context"
	"errors"
	"fmt"

	"github.com/halopress/halopress/internal/content"
	"github.com/halopress/halopress/internal/field"
	"github.com/halopress/halopress/internal/refsync"
	"github.com/halopress/halopress/internal/schema"
	"github.com/halopress/halopress/internal/search"
	"github.com/halopress/halopress/internal/summary"
)

// Projector regenerates the derived rows of one document
type Projector interface {
	Project(ctx context.Context, doc *content.Document, body field.Body, registry *schema.Registry) error
	Remove(ctx context.Context, documentID string) error
}

// Projections regenerates relation edges, search rows and the summary of a document
type Projections struct {
	Refs      *refsync.Syncer
	Search    *search.Indexer
	Summaries *summary.Syncer
}

// Project rewrites every projection of doc from body and registry. A failing projection
// does not stop the others; their errors are joined.
func (p *Projections) Project(ctx context.Context, doc *content.Document, body field.Body, registry *schema.Registry) error {
	var errs []error
	if err := p.Refs.Sync(ctx, doc.ID, registry, body); err != nil {
		errs = append(errs, fmt.Errorf("references: %w", err))
	}
	if err := p.Search.UpsertDocument(ctx, doc.ID, registry, body); err != nil {
		errs = append(errs, fmt.Errorf("search: %w", err))
	}
	if err := p.Summaries.Rebuild(ctx, doc, registry); err != nil {
		errs = append(errs, fmt.Errorf("summary: %w", err))
	}
	return errors.Join(errs...)
}

// Remove deletes every projection of a document
func (p *Projections) Remove(ctx context.Context, documentID string) error {
	return errors.Join(
		p.Refs.DeleteDocument(ctx, documentID),
		p.Search.DeleteDocument(ctx, documentID),
		p.Summaries.Delete(ctx, documentID),
	)
}
