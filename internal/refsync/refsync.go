// Package refsync keeps the relation projection of documents in step with their bodies:
// one edge per referenced target, plus an ordered list entry per element of array
// valued relation fields.
package refsync

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/halopress/halopress/internal/field"
	"github.com/halopress/halopress/internal/schema"
	"github.com/halopress/halopress/internal/store"
)

// Edge is one reference from a document field to a target
type Edge struct {
	DocumentID      string            `json:"documentId"`
	FieldKey        string            `json:"fieldKey"`
	TargetKind      schema.TargetKind `json:"targetKind"`
	TargetSchemaKey string            `json:"targetSchemaKey,omitempty"`
	TargetID        string            `json:"targetId"`
}

// ListEntry is one position of an array valued relation field. Asset targets are held in
// AssetID, every other target in ItemID.
type ListEntry struct {
	DocumentID      string            `json:"documentId"`
	FieldKey        string            `json:"fieldKey"`
	Position        int               `json:"position"`
	TargetKind      schema.TargetKind `json:"targetKind"`
	TargetSchemaKey string            `json:"targetSchemaKey,omitempty"`
	ItemID          string            `json:"itemId,omitempty"`
	AssetID         string            `json:"assetId,omitempty"`
}

// TargetID returns the referenced id whichever column holds it
func (e ListEntry) TargetID() string {
	if e.AssetID != "" {
		return e.AssetID
	}
	return e.ItemID
}

// Derive computes the edges and list entries a field value produces. A string yields one
// edge; an array yields an edge and a list entry per non-empty string element at its
// index; anything else yields nothing.
func Derive(documentID string, rel schema.RelationDescriptor, value any) ([]Edge, []ListEntry) {
	edge := func(id string) Edge {
		return Edge{
			DocumentID:      documentID,
			FieldKey:        rel.FieldKey,
			TargetKind:      rel.TargetKind,
			TargetSchemaKey: rel.TargetSchemaKey,
			TargetID:        id,
		}
	}

	switch v := value.(type) {
	case string:
		if v == "" {
			return nil, nil
		}
		return []Edge{edge(v)}, nil
	case []any:
		var (
			edges   []Edge
			entries []ListEntry
		)
		for i, item := range v {
			id, ok := item.(string)
			if !ok || id == "" {
				continue
			}
			edges = append(edges, edge(id))
			entry := ListEntry{
				DocumentID:      documentID,
				FieldKey:        rel.FieldKey,
				Position:        i,
				TargetKind:      rel.TargetKind,
				TargetSchemaKey: rel.TargetSchemaKey,
			}
			if rel.TargetKind == schema.TargetAsset {
				entry.AssetID = id
			} else {
				entry.ItemID = id
			}
			entries = append(entries, entry)
		}
		return edges, entries
	default:
		return nil, nil
	}
}

// Syncer writes the relation projection
type Syncer struct {
	db     *store.DB
	logger *zap.Logger
}

// New creates a Syncer. A nil logger disables logging.
func New(db *store.DB, logger *zap.Logger) *Syncer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Syncer{db: db, logger: logger}
}

// Sync regenerates the projection of every relation field of the registry from body.
// Rows under keys the registry no longer has are removed first. Each field is then
// rewritten in its own transaction; a failing field does not stop the others and all
// failures are returned joined.
func (s *Syncer) Sync(ctx context.Context, documentID string, registry *schema.Registry, body field.Body) error {
	var errs []error
	if err := s.clearRemoved(ctx, documentID, registry.Relations); err != nil {
		s.logger.Warn("relation cleanup failed", zap.String("document_id", documentID), zap.Error(err))
		errs = append(errs, err)
	}
	for _, rel := range registry.Relations {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if err := s.syncField(ctx, documentID, rel, body[rel.FieldKey]); err != nil {
			s.logger.Warn("relation sync failed",
				zap.String("document_id", documentID),
				zap.String("field_key", rel.FieldKey),
				zap.Error(err),
			)
			errs = append(errs, fmt.Errorf("field %s: %w", rel.FieldKey, err))
		}
	}
	return errors.Join(errs...)
}

// clearRemoved deletes the rows of a document whose field key is not among rels
func (s *Syncer) clearRemoved(ctx context.Context, documentID string, rels []schema.RelationDescriptor) error {
	where := `content_id = ?`
	args := []any{documentID}
	if len(rels) > 0 {
		marks := make([]string, len(rels))
		for i, rel := range rels {
			marks[i] = "?"
			args = append(args, rel.FieldKey)
		}
		where += ` AND field_key NOT IN (` + strings.Join(marks, ", ") + `)`
	}

	t := s.db.Tables
	return s.db.InTx(ctx, func(ctx context.Context) error {
		if _, err := s.db.Exec(ctx, `DELETE FROM `+t.ContentRef+` WHERE `+where, args...); err != nil {
			return fmt.Errorf("failed to clear removed edges: %w", err)
		}
		if _, err := s.db.Exec(ctx, `DELETE FROM `+t.ContentRefs+` WHERE `+where, args...); err != nil {
			return fmt.Errorf("failed to clear removed list entries: %w", err)
		}
		return nil
	})
}

func (s *Syncer) syncField(ctx context.Context, documentID string, rel schema.RelationDescriptor, value any) error {
	edges, entries := Derive(documentID, rel, value)
	t := s.db.Tables

	return s.db.InTx(ctx, func(ctx context.Context) error {
		if _, err := s.db.Exec(ctx, `DELETE FROM `+t.ContentRef+` WHERE content_id = ? AND field_key = ?`, documentID, rel.FieldKey); err != nil {
			return fmt.Errorf("failed to clear edges: %w", err)
		}
		if _, err := s.db.Exec(ctx, `DELETE FROM `+t.ContentRefs+` WHERE content_id = ? AND field_key = ?`, documentID, rel.FieldKey); err != nil {
			return fmt.Errorf("failed to clear list: %w", err)
		}

		for _, e := range edges {
			_, err := s.db.Exec(ctx, `INSERT INTO `+t.ContentRef+` (content_id, field_key, target_kind, target_schema_key, target_id) VALUES (?, ?, ?, ?, ?)`,
				e.DocumentID, e.FieldKey, string(e.TargetKind), nullable(e.TargetSchemaKey), e.TargetID)
			if err != nil {
				return fmt.Errorf("failed to insert edge to %s: %w", e.TargetID, err)
			}
		}
		for _, le := range entries {
			_, err := s.db.Exec(ctx, `INSERT INTO `+t.ContentRefs+` (content_id, field_key, position, target_kind, target_schema_key, item_id, asset_id) VALUES (?, ?, ?, ?, ?, ?, ?)`,
				le.DocumentID, le.FieldKey, le.Position, string(le.TargetKind), nullable(le.TargetSchemaKey), nullable(le.ItemID), nullable(le.AssetID))
			if err != nil {
				return fmt.Errorf("failed to insert list entry %d: %w", le.Position, err)
			}
		}
		return nil
	})
}

// DeleteDocument removes every edge and list entry owned by a document
func (s *Syncer) DeleteDocument(ctx context.Context, documentID string) error {
	t := s.db.Tables
	return s.db.InTx(ctx, func(ctx context.Context) error {
		if _, err := s.db.Exec(ctx, `DELETE FROM `+t.ContentRef+` WHERE content_id = ?`, documentID); err != nil {
			return fmt.Errorf("failed to delete edges of %s: %w", documentID, err)
		}
		if _, err := s.db.Exec(ctx, `DELETE FROM `+t.ContentRefs+` WHERE content_id = ?`, documentID); err != nil {
			return fmt.Errorf("failed to delete list of %s: %w", documentID, err)
		}
		return nil
	})
}

// Edges returns the edges owned by a document ordered by field key and target
func (s *Syncer) Edges(ctx context.Context, documentID string) ([]Edge, error) {
	return s.queryEdges(ctx, `SELECT content_id, field_key, target_kind, target_schema_key, target_id FROM `+s.db.Tables.ContentRef+`
WHERE content_id = ? ORDER BY field_key, target_id`, documentID)
}

// Inbound returns the edges pointing at a target ordered by document and field
func (s *Syncer) Inbound(ctx context.Context, kind schema.TargetKind, targetID string) ([]Edge, error) {
	return s.queryEdges(ctx, `SELECT content_id, field_key, target_kind, target_schema_key, target_id FROM `+s.db.Tables.ContentRef+`
WHERE target_kind = ? AND target_id = ? ORDER BY content_id, field_key`, string(kind), targetID)
}

func (s *Syncer) queryEdges(ctx context.Context, query string, args ...any) ([]Edge, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query edges: %w", err)
	}
	defer rows.Close()

	var edges []Edge
	for rows.Next() {
		var (
			e         Edge
			kind      string
			schemaKey sql.NullString
		)
		if err := rows.Scan(&e.DocumentID, &e.FieldKey, &kind, &schemaKey, &e.TargetID); err != nil {
			return nil, fmt.Errorf("failed to scan edge: %w", err)
		}
		e.TargetKind = schema.TargetKind(kind)
		e.TargetSchemaKey = schemaKey.String
		edges = append(edges, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating edges: %w", err)
	}
	return edges, nil
}

// List returns the ordered list entries of one field of a document
func (s *Syncer) List(ctx context.Context, documentID, fieldKey string) ([]ListEntry, error) {
	rows, err := s.db.Query(ctx, `SELECT content_id, field_key, position, target_kind, target_schema_key, item_id, asset_id FROM `+s.db.Tables.ContentRefs+`
WHERE content_id = ? AND field_key = ? ORDER BY position`, documentID, fieldKey)
	if err != nil {
		return nil, fmt.Errorf("failed to query list: %w", err)
	}
	defer rows.Close()

	var entries []ListEntry
	for rows.Next() {
		var (
			le                         ListEntry
			kind                       string
			schemaKey, itemID, assetID sql.NullString
		)
		if err := rows.Scan(&le.DocumentID, &le.FieldKey, &le.Position, &kind, &schemaKey, &itemID, &assetID); err != nil {
			return nil, fmt.Errorf("failed to scan list entry: %w", err)
		}
		le.TargetKind = schema.TargetKind(kind)
		le.TargetSchemaKey = schemaKey.String
		le.ItemID = itemID.String
		le.AssetID = assetID.String
		entries = append(entries, le)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating list: %w", err)
	}
	return entries, nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
