package content

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// MemoryStore is a Store kept in process memory
type MemoryStore struct {
	mu   sync.RWMutex
	docs map[string]*Document
}

// NewMemoryStore creates an empty MemoryStore
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[string]*Document)}
}

func clone(doc *Document) *Document {
	out := *doc
	out.Body = append([]byte(nil), doc.Body...)
	return &out
}

// Get returns a copy of the document with the given id
func (m *MemoryStore) Get(ctx context.Context, id string) (*Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	doc, ok := m.docs[id]
	if !ok {
		return nil, fmt.Errorf("document %s: %w", id, ErrNotFound)
	}
	return clone(doc), nil
}

// List returns copies of the documents matching filter in id order
func (m *MemoryStore) List(ctx context.Context, filter Filter) ([]*Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*Document
	for _, doc := range m.docs {
		if filter.Matches(doc) {
			out = append(out, clone(doc))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })

	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// Insert stores a new document
func (m *MemoryStore) Insert(ctx context.Context, doc *Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.docs[doc.ID]; exists {
		return fmt.Errorf("document %s already exists", doc.ID)
	}
	m.docs[doc.ID] = clone(doc)
	return nil
}

// Update applies a partial write to an existing document
func (m *MemoryStore) Update(ctx context.Context, id string, update Update) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc, ok := m.docs[id]
	if !ok {
		return fmt.Errorf("document %s: %w", id, ErrNotFound)
	}
	update.Apply(doc)
	return nil
}

// Delete removes a document. Deleting a missing document is not an error.
func (m *MemoryStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.docs, id)
	return nil
}
