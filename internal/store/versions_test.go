package store_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/halopress/halopress/internal/cache"
	"github.com/halopress/halopress/internal/field"
	"github.com/halopress/halopress/internal/schema"
	"github.com/halopress/halopress/internal/store"
	"github.com/halopress/halopress/internal/store/storetest"
)

func postAST(title string) *field.SchemaAst {
	return &field.SchemaAst{
		SchemaKey: "post",
		Title:     title,
		Fields: []field.FieldNode{
			{ID: "f-title", Key: "title", Kind: field.KindString},
			{ID: "f-author", Key: "author", Kind: field.KindReference, Rel: &field.RelConfig{Kind: field.RelRef, Target: field.TargetUser, Cardinality: field.One}},
		},
	}
}

func fixedClock() func() time.Time {
	ts := time.UnixMilli(1700000000000)
	return func() time.Time { return ts }
}

func TestPublish_AssignsSequentialVersions(t *testing.T) {
	ctx := context.Background()
	vs := store.NewVersionStore(storetest.New(t), store.WithClock(fixedClock()))

	for want := 1; want <= 3; want++ {
		v, err := vs.Publish(ctx, "post", postAST("Post"), "", nil)
		require.NoError(t, err)
		assert.Equal(t, want, v.Version)
		assert.Equal(t, want, v.Registry.Version)
		assert.Equal(t, store.VersionDiff{From: want - 1, To: want}, v.Diff)
	}

	active, err := vs.GetActive(ctx, "post")
	require.NoError(t, err)
	assert.Equal(t, 3, active.Version)
}

func TestPublish_RoundTrip(t *testing.T) {
	ctx := context.Background()
	vs := store.NewVersionStore(storetest.New(t), store.WithClock(fixedClock()))

	published, err := vs.Publish(ctx, "post", postAST("Post"), "first cut", nil)
	require.NoError(t, err)

	got, err := vs.GetVersion(ctx, "post", 1)
	require.NoError(t, err)

	assert.Equal(t, published.AST, got.AST)
	assert.Equal(t, published.Registry, got.Registry)
	assert.Equal(t, published.ValidationSchema, got.ValidationSchema)
	assert.Equal(t, published.UISchema, got.UISchema)
	assert.Equal(t, "first cut", got.Note)
	assert.Equal(t, time.UnixMilli(1700000000000).UTC(), got.CreatedAt)
	require.Len(t, got.Registry.Relations, 1)
	assert.Equal(t, schema.TargetUser, got.Registry.Relations[0].TargetKind)
}

func TestPublish_UsesCompileFunc(t *testing.T) {
	ctx := context.Background()
	vs := store.NewVersionStore(storetest.New(t))

	var seen int
	compile := func(ast *field.SchemaAst, version int) *schema.Compiled {
		seen = version
		return schema.Compile(ast, version)
	}

	_, err := vs.Publish(ctx, "post", postAST("Post"), "", compile)
	require.NoError(t, err)
	assert.Equal(t, 1, seen)
}

func TestPublish_ConcurrentPublishersGetDistinctVersions(t *testing.T) {
	ctx := context.Background()
	vs := store.NewVersionStore(storetest.New(t))

	const n = 5
	var wg sync.WaitGroup
	versions := make(chan int, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := vs.Publish(ctx, "post", postAST("Post"), "", nil)
			if assert.NoError(t, err) {
				versions <- v.Version
			}
		}()
	}
	wg.Wait()
	close(versions)

	seen := map[int]bool{}
	for v := range versions {
		assert.False(t, seen[v], "version %d assigned twice", v)
		seen[v] = true
	}
	assert.Len(t, seen, n)
}

func TestGetActive_NotFound(t *testing.T) {
	vs := store.NewVersionStore(storetest.New(t))

	_, err := vs.GetActive(context.Background(), "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = vs.GetVersion(context.Background(), "missing", 1)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestListVersionsAndActive(t *testing.T) {
	ctx := context.Background()
	vs := store.NewVersionStore(storetest.New(t))

	_, err := vs.Publish(ctx, "post", postAST("Post"), "one", nil)
	require.NoError(t, err)
	_, err = vs.Publish(ctx, "post", postAST("Post v2"), "", nil)
	require.NoError(t, err)
	other := postAST("Page")
	other.SchemaKey = "page"
	_, err = vs.Publish(ctx, "page", other, "", nil)
	require.NoError(t, err)

	versions, err := vs.ListVersions(ctx, "post")
	require.NoError(t, err)
	require.Len(t, versions, 2)
	assert.Equal(t, 2, versions[0].Version)
	assert.True(t, versions[0].Active)
	assert.Equal(t, "Post v2", versions[0].Title)
	assert.False(t, versions[1].Active)
	assert.Equal(t, "one", versions[1].Note)

	active, err := vs.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, "page", active[0].SchemaKey)
	assert.Equal(t, 1, active[0].ActiveVersion)
	assert.Equal(t, "post", active[1].SchemaKey)
	assert.Equal(t, 2, active[1].ActiveVersion)
}

func TestDrafts(t *testing.T) {
	ctx := context.Background()
	vs := store.NewVersionStore(storetest.New(t))

	_, err := vs.GetDraft(ctx, "post")
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = vs.UpsertDraft(ctx, postAST("First"))
	require.NoError(t, err)
	_, err = vs.UpsertDraft(ctx, postAST("Second"))
	require.NoError(t, err)

	d, err := vs.GetDraft(ctx, "post")
	require.NoError(t, err)
	assert.Equal(t, "Second", d.Title)
	assert.Equal(t, postAST("Second"), d.AST)
}

func TestGetVersion_ServesFromCache(t *testing.T) {
	ctx := context.Background()
	db := storetest.New(t)
	mc := cache.NewMemory(cache.DefaultConfig())

	vs := store.NewVersionStore(db, store.WithCache(mc))
	_, err := vs.Publish(ctx, "post", postAST("Post"), "", nil)
	require.NoError(t, err)

	_, err = mc.Get(ctx, cache.VersionKey("post", 1))
	require.NoError(t, err)

	// the record is immutable, so a cached copy survives the row going away
	_, err = db.Exec(ctx, `DELETE FROM `+db.Tables.Schema)
	require.NoError(t, err)

	got, err := vs.GetVersion(ctx, "post", 1)
	require.NoError(t, err)
	assert.Equal(t, "Post", got.Title)
}
