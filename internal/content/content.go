// Package content defines the document store the engine reads and writes through, and a
// cursor for walking large document sets page by page.
package content

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// ErrNotFound is returned when a record does not exist
var ErrNotFound = errors.New("record not found")

// Document statuses
const (
	StatusDraft     = "draft"
	StatusPublished = "published"
)

// Document is a stored content item. Body is an opaque JSON object.
type Document struct {
	ID            string          `json:"id"`
	SchemaKey     string          `json:"schemaKey"`
	SchemaVersion int             `json:"schemaVersion"`
	Title         string          `json:"title,omitempty"`
	Status        string          `json:"status"`
	Body          json.RawMessage `json:"body"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

// Update is a partial document write. Nil members are left unchanged.
type Update struct {
	SchemaVersion *int
	Title         *string
	Status        *string
	Body          json.RawMessage
	UpdatedAt     time.Time
}

// Filter selects documents of one schema ordered by id
type Filter struct {
	SchemaKey string
	// Version matches an exact schema version when positive
	Version int
	// BelowVersion matches documents with a schema version lower than it when positive
	BelowVersion int
	// AfterID starts the page after this id
	AfterID string
	// Limit caps the page size; zero means no limit
	Limit int
}

// Store persists documents
type Store interface {
	Get(ctx context.Context, id string) (*Document, error)
	List(ctx context.Context, filter Filter) ([]*Document, error)
	Insert(ctx context.Context, doc *Document) error
	Update(ctx context.Context, id string, update Update) error
	Delete(ctx context.Context, id string) error
}

// Matches reports whether doc satisfies the filter, ignoring paging
func (f Filter) Matches(doc *Document) bool {
	if f.SchemaKey != "" && doc.SchemaKey != f.SchemaKey {
		return false
	}
	if f.Version > 0 && doc.SchemaVersion != f.Version {
		return false
	}
	if f.BelowVersion > 0 && doc.SchemaVersion >= f.BelowVersion {
		return false
	}
	return f.AfterID == "" || doc.ID > f.AfterID
}

// Apply writes the non-nil members of u onto doc
func (u Update) Apply(doc *Document) {
	if u.SchemaVersion != nil {
		doc.SchemaVersion = *u.SchemaVersion
	}
	if u.Title != nil {
		doc.Title = *u.Title
	}
	if u.Status != nil {
		doc.Status = *u.Status
	}
	if u.Body != nil {
		doc.Body = append(json.RawMessage(nil), u.Body...)
	}
	if !u.UpdatedAt.IsZero() {
		doc.UpdatedAt = u.UpdatedAt
	}
}
