package cms

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/halopress/halopress/internal/content"
	"github.com/halopress/halopress/internal/field"
	"github.com/halopress/halopress/internal/store"
)

// DocumentInput is a document write. An empty ID creates a new document; on update, nil
// members keep their stored value.
type DocumentInput struct {
	ID        string          `json:"id,omitempty"`
	SchemaKey string          `json:"schemaKey"`
	Title     *string         `json:"title,omitempty"`
	Status    *string         `json:"status,omitempty"`
	Body      json.RawMessage `json:"body,omitempty"`
}

// SaveDocument creates or updates a document against the active version of its schema
// and regenerates its projections. An update without a body leaves a stale document on
// the version it was written under. Projection failures are returned after the document
// itself has been stored.
func (s *Service) SaveDocument(ctx context.Context, in DocumentInput) (*content.Document, error) {
	active, err := s.versions.GetActive(ctx, in.SchemaKey)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%s: %w", in.SchemaKey, ErrNoActiveSchema)
	}
	if err != nil {
		return nil, err
	}

	var doc *content.Document
	if in.ID == "" {
		doc, err = s.createDocument(ctx, in, active.Version)
	} else {
		doc, err = s.updateDocument(ctx, in, active.Version)
	}
	if err != nil {
		return nil, err
	}

	registry := active.Registry
	if doc.SchemaVersion != active.Version {
		written, err := s.versions.GetVersion(ctx, in.SchemaKey, doc.SchemaVersion)
		if err != nil {
			return doc, fmt.Errorf("failed to load version %d of %s: %w", doc.SchemaVersion, in.SchemaKey, err)
		}
		registry = written.Registry
	}

	body, err := field.ParseBody(doc.Body)
	if err != nil {
		return doc, err
	}
	if err := s.projections.Project(ctx, doc, body, registry); err != nil {
		s.logger.Warn("document projections failed", zap.String("document_id", doc.ID), zap.Error(err))
		return doc, fmt.Errorf("document %s saved but projections failed: %w", doc.ID, err)
	}
	return doc, nil
}

func normalizeBody(raw json.RawMessage) (json.RawMessage, error) {
	if len(raw) == 0 {
		raw = json.RawMessage(`{}`)
	}
	body, err := field.ParseBody(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBody, err)
	}
	return field.EncodeBody(body)
}

func (s *Service) createDocument(ctx context.Context, in DocumentInput, version int) (*content.Document, error) {
	body, err := normalizeBody(in.Body)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	doc := &content.Document{
		ID:            uuid.NewString(),
		SchemaKey:     in.SchemaKey,
		SchemaVersion: version,
		Status:        content.StatusDraft,
		Body:          body,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if in.Title != nil {
		doc.Title = strings.TrimSpace(*in.Title)
	}
	if in.Status != nil && *in.Status != "" {
		doc.Status = *in.Status
	}

	if err := s.docs.Insert(ctx, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func (s *Service) updateDocument(ctx context.Context, in DocumentInput, version int) (*content.Document, error) {
	doc, err := s.docs.Get(ctx, in.ID)
	if err != nil {
		return nil, err
	}
	if doc.SchemaKey != in.SchemaKey {
		return nil, fmt.Errorf("document %s of schema %s: %w", in.ID, in.SchemaKey, store.ErrNotFound)
	}

	// a body is written against the active version; without one the stored body keeps
	// its version so Reconcile still migrates it
	update := content.Update{UpdatedAt: s.now().UTC()}
	if in.Title != nil {
		title := strings.TrimSpace(*in.Title)
		update.Title = &title
	}
	if in.Status != nil {
		update.Status = in.Status
	}
	if in.Body != nil {
		body, err := normalizeBody(in.Body)
		if err != nil {
			return nil, err
		}
		update.Body = body
		update.SchemaVersion = &version
	}

	if err := s.docs.Update(ctx, doc.ID, update); err != nil {
		return nil, err
	}
	update.Apply(doc)
	return doc, nil
}

// GetDocument returns a document by id
func (s *Service) GetDocument(ctx context.Context, id string) (*content.Document, error) {
	return s.docs.Get(ctx, id)
}

// DeleteDocument removes a document and every projection derived from it
func (s *Service) DeleteDocument(ctx context.Context, id string) error {
	if err := s.docs.Delete(ctx, id); err != nil {
		return err
	}
	return s.projections.Remove(ctx, id)
}
