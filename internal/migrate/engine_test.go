package migrate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/halopress/halopress/internal/content"
	"github.com/halopress/halopress/internal/field"
	"github.com/halopress/halopress/internal/refsync"
	"github.com/halopress/halopress/internal/schema"
	"github.com/halopress/halopress/internal/search"
	"github.com/halopress/halopress/internal/store"
	"github.com/halopress/halopress/internal/store/storetest"
	"github.com/halopress/halopress/internal/summary"
)

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

type recordingProjector struct {
	projected []string
	fail      map[string]bool
	after     func(id string)
}

func (p *recordingProjector) Project(_ context.Context, doc *content.Document, _ field.Body, _ *schema.Registry) error {
	p.projected = append(p.projected, doc.ID)
	if p.after != nil {
		p.after(doc.ID)
	}
	if p.fail[doc.ID] {
		return errors.New("projection failed")
	}
	return nil
}

func (p *recordingProjector) Remove(context.Context, string) error { return nil }

func insert(t *testing.T, s content.Store, id, schemaKey string, version int, raw string) {
	t.Helper()
	require.NoError(t, s.Insert(context.Background(), &content.Document{
		ID: id, SchemaKey: schemaKey, SchemaVersion: version, Status: content.StatusDraft,
		Body: json.RawMessage(raw), CreatedAt: fixedNow.Add(-time.Hour), UpdatedAt: fixedNow.Add(-time.Hour),
	}))
}

func get(t *testing.T, s content.Store, id string) *content.Document {
	t.Helper()
	doc, err := s.Get(context.Background(), id)
	require.NoError(t, err)
	return doc
}

func pricePlan(version int) Plan {
	oldAST := ast(field.FieldNode{ID: "f1", Key: "price", Kind: field.KindString})
	newAST := ast(field.FieldNode{ID: "f1", Key: "price", Kind: field.KindNumber, Search: &field.SearchConfig{Mode: field.SearchRange}})
	return Plan{
		SchemaKey: "product",
		Version:   version,
		Registry:  schema.Compile(newAST, version).Registry,
		Changes:   KindChanges(oldAST, newAST),
	}
}

func TestRun_NoChangesIsNoop(t *testing.T) {
	docs := content.NewMemoryStore()
	insert(t, docs, "d1", "product", 1, `{"price":"1"}`)
	projector := &recordingProjector{}

	report, err := NewEngine(docs, projector).Run(context.Background(), Plan{SchemaKey: "product", Version: 2})
	require.NoError(t, err)
	assert.Zero(t, report.Total)
	assert.Empty(t, projector.projected)
	assert.Equal(t, 1, get(t, docs, "d1").SchemaVersion)
}

func TestRun_DryRunWritesNothing(t *testing.T) {
	docs := content.NewMemoryStore()
	insert(t, docs, "d1", "product", 1, `{"price":"19.99"}`)
	insert(t, docs, "d2", "product", 1, `{"price":"abc"}`)
	insert(t, docs, "d3", "product", 1, `{not json`)
	projector := &recordingProjector{}

	plan := pricePlan(2)
	plan.DryRun = true
	report, err := NewEngine(docs, projector).Run(context.Background(), plan)
	require.NoError(t, err)

	assert.True(t, report.DryRun)
	assert.Equal(t, 3, report.Total)
	assert.Equal(t, 2, report.Updated)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 1, report.Dropped)
	assert.Equal(t, []DocumentDrop{{DocumentID: "d2", FieldID: "f1", Key: "price"}}, report.Drops)
	assert.Empty(t, projector.projected)

	d1 := get(t, docs, "d1")
	assert.Equal(t, 1, d1.SchemaVersion)
	assert.JSONEq(t, `{"price":"19.99"}`, string(d1.Body))
	assert.JSONEq(t, `{"price":"abc"}`, string(get(t, docs, "d2").Body))
}

func TestRun_MigratesDocuments(t *testing.T) {
	docs := content.NewMemoryStore()
	insert(t, docs, "d1", "product", 1, `{"price":"19.99"}`)
	insert(t, docs, "d2", "product", 1, `{"price":"abc"}`)
	insert(t, docs, "d3", "product", 1, `{"name":"no price"}`)
	insert(t, docs, "d4", "product", 3, `{"price":"5"}`)
	insert(t, docs, "g1", "gadget", 1, `{"price":"2"}`)
	projector := &recordingProjector{}

	engine := NewEngine(docs, projector, WithPageSize(2), WithClock(func() time.Time { return fixedNow }))
	report, err := engine.Run(context.Background(), pricePlan(2))
	require.NoError(t, err)

	assert.Equal(t, 4, report.Total)
	assert.Equal(t, 3, report.Updated)
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, 0, report.Failed)
	assert.Equal(t, 1, report.Dropped)
	assert.Equal(t, "d4", report.LastID)
	assert.Equal(t, []string{"d1", "d2", "d3"}, projector.projected)

	d1 := get(t, docs, "d1")
	assert.JSONEq(t, `{"price":19.99}`, string(d1.Body))
	assert.Equal(t, 2, d1.SchemaVersion)
	assert.True(t, fixedNow.Equal(d1.UpdatedAt))

	assert.JSONEq(t, `{}`, string(get(t, docs, "d2").Body))

	d3 := get(t, docs, "d3")
	assert.Equal(t, 2, d3.SchemaVersion, "version is bumped even without body changes")
	assert.JSONEq(t, `{"name":"no price"}`, string(d3.Body))

	assert.Equal(t, 3, get(t, docs, "d4").SchemaVersion, "newer documents are skipped")

	g1 := get(t, docs, "g1")
	assert.Equal(t, 1, g1.SchemaVersion)
	assert.JSONEq(t, `{"price":"2"}`, string(g1.Body))
}

func TestRun_ContinuesPastFailures(t *testing.T) {
	docs := content.NewMemoryStore()
	insert(t, docs, "d1", "product", 1, `{"price":"1"}`)
	insert(t, docs, "d2", "product", 1, `not json`)
	insert(t, docs, "d3", "product", 1, `{"price":"3"}`)
	projector := &recordingProjector{fail: map[string]bool{"d3": true}}

	report, err := NewEngine(docs, projector).Run(context.Background(), pricePlan(2))
	require.NoError(t, err)

	assert.Equal(t, 3, report.Total)
	assert.Equal(t, 1, report.Updated)
	assert.Equal(t, 2, report.Failed)
	require.Len(t, report.Failures, 2)
	assert.Equal(t, "d2", report.Failures[0].ID)
	assert.Equal(t, "d3", report.Failures[1].ID)
	assert.Contains(t, report.Failures[1].Reason, "projection failed")
}

func TestRun_CancelAndResume(t *testing.T) {
	docs := content.NewMemoryStore()
	for i := 1; i <= 5; i++ {
		insert(t, docs, fmt.Sprintf("d%d", i), "product", 1, `{"price":"1"}`)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	projector := &recordingProjector{after: func(id string) {
		if id == "d2" {
			cancel()
		}
	}}

	engine := NewEngine(docs, projector, WithPageSize(2))
	report, err := engine.Run(ctx, pricePlan(2))
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 2, report.Updated)
	assert.Equal(t, "d2", report.LastID)

	plan := pricePlan(2)
	plan.AfterID = report.LastID
	report, err = engine.Run(context.Background(), plan)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Updated)
	assert.Equal(t, []string{"d1", "d2", "d3", "d4", "d5"}, projector.projected)
}

func TestRun_StaleVersionWithoutChanges(t *testing.T) {
	docs := content.NewMemoryStore()
	insert(t, docs, "d1", "product", 1, `{"price":"1"}`)
	insert(t, docs, "d2", "product", 2, `{"price":"2"}`)
	projector := &recordingProjector{}

	plan := Plan{SchemaKey: "product", Version: 3, StaleVersion: 1, Registry: pricePlan(3).Registry}
	report, err := NewEngine(docs, projector).Run(context.Background(), plan)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Updated)
	assert.Equal(t, 3, get(t, docs, "d1").SchemaVersion)
	assert.Equal(t, 2, get(t, docs, "d2").SchemaVersion)
}

type registries map[string]*schema.Registry

func (r registries) ActiveRegistry(_ context.Context, schemaKey string) (*schema.Registry, error) {
	if reg, ok := r[schemaKey]; ok {
		return reg, nil
	}
	return nil, store.ErrNotFound
}

func TestRun_ProjectionsAreRebuilt(t *testing.T) {
	ctx := context.Background()
	db := storetest.New(t)
	docs := store.NewDocuments(db)

	oldAST := ast(
		field.FieldNode{ID: "f1", Key: "price", Kind: field.KindString},
		ref("f2", "related", field.One),
		field.FieldNode{ID: "f3", Key: "notes", Kind: field.KindRichtext},
	)
	newAST := ast(
		field.FieldNode{ID: "f1", Key: "price", Kind: field.KindNumber, Search: &field.SearchConfig{Mode: field.SearchRange}},
		ref("f2", "related", field.Many),
		field.FieldNode{ID: "f3", Key: "notes", Kind: field.KindRichtext},
	)
	registry := schema.Compile(newAST, 2).Registry

	insert(t, docs, "d1", "product", 1, `{"price":"19.99","related":"p9","notes":"<b>Sturdy</b> lamp"}`)
	insert(t, docs, "g1", "gadget", 1, `{"price":"2"}`)

	refs := refsync.New(db, nil)
	index := search.NewIndexer(db, docs)
	sums := summary.NewSyncer(summary.NewStore(db), docs, registries{"product": registry}, summary.DefaultOptions(), nil)
	engine := NewEngine(docs, &Projections{Refs: refs, Search: index, Summaries: sums})

	plan := Plan{SchemaKey: "product", Version: 2, Registry: registry, Changes: KindChanges(oldAST, newAST)}
	for run := 0; run < 2; run++ {
		report, err := engine.Run(ctx, plan)
		require.NoError(t, err)
		assert.Equal(t, 1, report.Updated)
	}

	assert.JSONEq(t, `{"price":19.99,"related":["p9"],"notes":"<b>Sturdy</b> lamp"}`, string(get(t, docs, "d1").Body))

	edges, err := refs.Edges(ctx, "d1")
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.Equal(t, "p9", edges[0].TargetID)
	list, err := refs.List(ctx, "d1", "related")
	require.NoError(t, err)
	require.Len(t, list, 1)

	rows, err := index.Rows(ctx, "d1")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.InDelta(t, 19.99, *rows[0].Value, 1e-9)

	sum, err := summary.NewStore(db).Get(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, 2, sum.SchemaVersion)
	assert.Equal(t, "Sturdy lamp", sum.Description)

	rows, err = index.Rows(ctx, "g1")
	require.NoError(t, err)
	assert.Empty(t, rows, "other schemas are not re-indexed")
	edges, err = refs.Edges(ctx, "g1")
	require.NoError(t, err)
	assert.Empty(t, edges)
}
