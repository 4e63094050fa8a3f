package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/halopress/halopress/internal/content"
)

// Documents is the SQL implementation of content.Store
type Documents struct {
	db *DB
}

var _ content.Store = (*Documents)(nil)

// NewDocuments creates a Documents store
func NewDocuments(db *DB) *Documents {
	return &Documents{db: db}
}

const documentColumns = `id, schema_key, schema_version, title, status, body_json, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*content.Document, error) {
	var (
		doc                  content.Document
		title                sql.NullString
		body                 string
		createdAt, updatedAt int64
	)
	if err := row.Scan(&doc.ID, &doc.SchemaKey, &doc.SchemaVersion, &title, &doc.Status, &body, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	doc.Title = title.String
	doc.Body = []byte(body)
	doc.CreatedAt = FromMillis(createdAt)
	doc.UpdatedAt = FromMillis(updatedAt)
	return &doc, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// Get returns the document with the given id
func (d *Documents) Get(ctx context.Context, id string) (*content.Document, error) {
	row := d.db.QueryRow(ctx, `SELECT `+documentColumns+` FROM `+d.db.Tables.Content+` WHERE id = ?`, id)
	doc, err := scanDocument(row)
	if err != nil {
		return nil, fmt.Errorf("document %s: %w", id, ConvertDBError(err))
	}
	return doc, nil
}

// List returns one page of documents matching filter, ordered by id
func (d *Documents) List(ctx context.Context, filter content.Filter) ([]*content.Document, error) {
	var (
		where []string
		args  []any
	)
	if filter.SchemaKey != "" {
		where = append(where, "schema_key = ?")
		args = append(args, filter.SchemaKey)
	}
	if filter.Version > 0 {
		where = append(where, "schema_version = ?")
		args = append(args, filter.Version)
	}
	if filter.BelowVersion > 0 {
		where = append(where, "schema_version < ?")
		args = append(args, filter.BelowVersion)
	}
	if filter.AfterID != "" {
		where = append(where, "id > ?")
		args = append(args, filter.AfterID)
	}

	query := `SELECT ` + documentColumns + ` FROM ` + d.db.Tables.Content
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY id`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := d.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	var docs []*content.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating documents: %w", err)
	}
	return docs, nil
}

// Insert stores a new document
func (d *Documents) Insert(ctx context.Context, doc *content.Document) error {
	body := string(doc.Body)
	if body == "" {
		body = "{}"
	}
	_, err := d.db.Exec(ctx, `INSERT INTO `+d.db.Tables.Content+` (`+documentColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		doc.ID, doc.SchemaKey, doc.SchemaVersion, nullString(doc.Title), doc.Status, body, Millis(doc.CreatedAt), Millis(doc.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to insert document %s: %w", doc.ID, ConvertDBError(err))
	}
	return nil
}

// Update applies a partial write to an existing document
func (d *Documents) Update(ctx context.Context, id string, update content.Update) error {
	var (
		sets []string
		args []any
	)
	if update.SchemaVersion != nil {
		sets = append(sets, "schema_version = ?")
		args = append(args, *update.SchemaVersion)
	}
	if update.Title != nil {
		sets = append(sets, "title = ?")
		args = append(args, nullString(*update.Title))
	}
	if update.Status != nil {
		sets = append(sets, "status = ?")
		args = append(args, *update.Status)
	}
	if update.Body != nil {
		sets = append(sets, "body_json = ?")
		args = append(args, string(update.Body))
	}
	if !update.UpdatedAt.IsZero() {
		sets = append(sets, "updated_at = ?")
		args = append(args, Millis(update.UpdatedAt))
	}
	if len(sets) == 0 {
		return nil
	}

	args = append(args, id)
	res, err := d.db.Exec(ctx, `UPDATE `+d.db.Tables.Content+` SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return fmt.Errorf("failed to update document %s: %w", id, ConvertDBError(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update document %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("document %s: %w", id, ErrNotFound)
	}
	return nil
}

// Delete removes a document. Deleting a missing document is not an error.
func (d *Documents) Delete(ctx context.Context, id string) error {
	if _, err := d.db.Exec(ctx, `DELETE FROM `+d.db.Tables.Content+` WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete document %s: %w", id, err)
	}
	return nil
}
