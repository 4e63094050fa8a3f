package content

import (
	"context"
)

// DefaultPageSize is used when a cursor is created without a page size
const DefaultPageSize = 100

// Cursor walks the documents matching a filter in id order using keyset pagination.
// Documents written while walking are seen at most once.
type Cursor struct {
	store  Store
	filter Filter
	page   []*Document
	pos    int
	doc    *Document
	lastID string
	done   bool
	err    error
}

// NewCursor creates a cursor. filter.Limit is the page size and filter.AfterID the
// resume point.
func NewCursor(store Store, filter Filter) *Cursor {
	if filter.Limit <= 0 {
		filter.Limit = DefaultPageSize
	}
	return &Cursor{store: store, filter: filter, lastID: filter.AfterID}
}

// Next advances to the next document. It returns false when the walk is exhausted, the
// context is done or a page fails to load; check Err afterwards.
func (c *Cursor) Next(ctx context.Context) bool {
	if c.err != nil {
		return false
	}
	if err := ctx.Err(); err != nil {
		c.err = err
		return false
	}

	if c.pos >= len(c.page) {
		if c.done {
			return false
		}
		if !c.fetch(ctx) {
			return false
		}
	}

	c.doc = c.page[c.pos]
	c.pos++
	c.lastID = c.doc.ID
	return true
}

func (c *Cursor) fetch(ctx context.Context) bool {
	filter := c.filter
	filter.AfterID = c.lastID

	page, err := c.store.List(ctx, filter)
	if err != nil {
		c.err = err
		return false
	}
	if len(page) < filter.Limit {
		c.done = true
	}
	c.page, c.pos = page, 0
	return len(page) > 0
}

// Document returns the current document
func (c *Cursor) Document() *Document {
	return c.doc
}

// LastID returns the id of the last document returned, or the resume point
func (c *Cursor) LastID() string {
	return c.lastID
}

// Err returns the error that stopped the walk, if any
func (c *Cursor) Err() error {
	return c.err
}
