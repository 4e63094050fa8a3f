package content

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seed(t *testing.T, s *MemoryStore, schemaKey string, version, n int) []string {
	t.Helper()
	ids := make([]string, 0, n)
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("%s-%03d", schemaKey, i)
		require.NoError(t, s.Insert(context.Background(), &Document{
			ID:            id,
			SchemaKey:     schemaKey,
			SchemaVersion: version,
			Status:        StatusDraft,
			Body:          []byte(`{}`),
		}))
		ids = append(ids, id)
	}
	return ids
}

func collect(t *testing.T, c *Cursor) []string {
	t.Helper()
	var ids []string
	for c.Next(context.Background()) {
		ids = append(ids, c.Document().ID)
	}
	require.NoError(t, c.Err())
	return ids
}

func TestCursor_WalksAllPages(t *testing.T) {
	s := NewMemoryStore()
	want := seed(t, s, "post", 1, 7)
	seed(t, s, "page", 1, 3)

	got := collect(t, NewCursor(s, Filter{SchemaKey: "post", Limit: 3}))
	assert.Equal(t, want, got)
}

func TestCursor_ExactPageMultiple(t *testing.T) {
	s := NewMemoryStore()
	want := seed(t, s, "post", 1, 4)

	got := collect(t, NewCursor(s, Filter{SchemaKey: "post", Limit: 2}))
	assert.Equal(t, want, got)
}

func TestCursor_Empty(t *testing.T) {
	c := NewCursor(NewMemoryStore(), Filter{SchemaKey: "post"})
	assert.False(t, c.Next(context.Background()))
	assert.NoError(t, c.Err())
}

func TestCursor_Resume(t *testing.T) {
	s := NewMemoryStore()
	ids := seed(t, s, "post", 1, 5)

	c := NewCursor(s, Filter{SchemaKey: "post", Limit: 2})
	require.True(t, c.Next(context.Background()))
	require.True(t, c.Next(context.Background()))
	resume := c.LastID()
	assert.Equal(t, ids[1], resume)

	got := collect(t, NewCursor(s, Filter{SchemaKey: "post", Limit: 2, AfterID: resume}))
	assert.Equal(t, ids[2:], got)
}

func TestCursor_VersionFilters(t *testing.T) {
	s := NewMemoryStore()
	v1 := seed(t, s, "a", 1, 2)
	require.NoError(t, s.Insert(context.Background(), &Document{ID: "a-100", SchemaKey: "a", SchemaVersion: 3, Body: []byte(`{}`)}))

	assert.Equal(t, v1, collect(t, NewCursor(s, Filter{SchemaKey: "a", Version: 1})))
	assert.Equal(t, v1, collect(t, NewCursor(s, Filter{SchemaKey: "a", BelowVersion: 3})))
	assert.Equal(t, []string{"a-100"}, collect(t, NewCursor(s, Filter{SchemaKey: "a", Version: 3})))
}

func TestCursor_StopsOnCancel(t *testing.T) {
	s := NewMemoryStore()
	seed(t, s, "post", 1, 3)

	ctx, cancel := context.WithCancel(context.Background())
	c := NewCursor(s, Filter{SchemaKey: "post"})
	require.True(t, c.Next(ctx))
	cancel()

	assert.False(t, c.Next(ctx))
	assert.ErrorIs(t, c.Err(), context.Canceled)
	assert.Equal(t, "post-000", c.LastID())
}

type failingStore struct {
	*MemoryStore
	err error
}

func (f *failingStore) List(ctx context.Context, filter Filter) ([]*Document, error) {
	return nil, f.err
}

func TestCursor_ListError(t *testing.T) {
	boom := errors.New("boom")
	c := NewCursor(&failingStore{MemoryStore: NewMemoryStore(), err: boom}, Filter{SchemaKey: "post"})

	assert.False(t, c.Next(context.Background()))
	assert.ErrorIs(t, c.Err(), boom)
	assert.False(t, c.Next(context.Background()))
}
