package summary

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/halopress/halopress/internal/store"
)

// Store persists summaries in the content items table
type Store struct {
	db *store.DB
}

// NewStore creates a summary store
func NewStore(db *store.DB) *Store {
	return &Store{db: db}
}

// Upsert writes s, replacing any previous summary of the same document
func (s *Store) Upsert(ctx context.Context, sum Summary) error {
	_, err := s.db.Exec(ctx, `INSERT INTO `+s.db.Tables.ContentItems+` (content_id, schema_key, schema_version, title, description, image, status, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (content_id) DO UPDATE SET schema_key = excluded.schema_key, schema_version = excluded.schema_version, title = excluded.title,
description = excluded.description, image = excluded.image, status = excluded.status, created_at = excluded.created_at, updated_at = excluded.updated_at`,
		sum.DocumentID, sum.SchemaKey, sum.SchemaVersion, nullable(sum.Title), nullable(sum.Description), nullable(sum.Image), sum.Status,
		store.Millis(sum.CreatedAt), store.Millis(sum.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to upsert summary of %s: %w", sum.DocumentID, err)
	}
	return nil
}

// Get returns the summary of a document. store.ErrNotFound when there is none.
func (s *Store) Get(ctx context.Context, documentID string) (*Summary, error) {
	var (
		sum                       Summary
		title, description, image sql.NullString
		createdAt, updatedAt      int64
	)
	err := s.db.QueryRow(ctx, `SELECT content_id, schema_key, schema_version, title, description, image, status, created_at, updated_at
FROM `+s.db.Tables.ContentItems+` WHERE content_id = ?`, documentID).
		Scan(&sum.DocumentID, &sum.SchemaKey, &sum.SchemaVersion, &title, &description, &image, &sum.Status, &createdAt, &updatedAt)
	if err != nil {
		return nil, fmt.Errorf("summary %s: %w", documentID, store.ConvertDBError(err))
	}
	sum.Title = title.String
	sum.Description = description.String
	sum.Image = image.String
	sum.CreatedAt = store.FromMillis(createdAt)
	sum.UpdatedAt = store.FromMillis(updatedAt)
	return &sum, nil
}

// Delete removes the summary of a document
func (s *Store) Delete(ctx context.Context, documentID string) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM `+s.db.Tables.ContentItems+` WHERE content_id = ?`, documentID); err != nil {
		return fmt.Errorf("failed to delete summary of %s: %w", documentID, err)
	}
	return nil
}

// IDs returns the document ids that have a summary, limited to schemaKey when set
func (s *Store) IDs(ctx context.Context, schemaKey string) (map[string]bool, error) {
	query := `SELECT content_id FROM ` + s.db.Tables.ContentItems
	var args []any
	if schemaKey != "" {
		query += ` WHERE schema_key = ?`
		args = append(args, schemaKey)
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to read summary ids: %w", err)
	}
	defer rows.Close()

	ids := map[string]bool{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan summary id: %w", err)
		}
		ids[id] = true
	}
	return ids, rows.Err()
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
