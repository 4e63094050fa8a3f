package ui

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/halopress/halopress/internal/cms"
	"github.com/halopress/halopress/internal/field"
	"github.com/halopress/halopress/internal/content"
	"github.com/halopress/halopress/internal/migrate"
	"github.com/halopress/halopress/internal/refsync"
	"github.com/halopress/halopress/internal/schema"
	"github.com/halopress/halopress/internal/search"
	"github.com/halopress/halopress/internal/store"
	"github.com/halopress/halopress/internal/summary"
)

// Printer renders engine results for the terminal
type Printer struct {
	W       io.Writer
	NoColor bool
}

// ValidationErrors lists every problem of an AST, one path per line
func (p Printer) ValidationErrors(ve *schema.ValidationErrors) {
	paths := make([]string, 0, len(ve.Fields))
	for path := range ve.Fields {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	var details []string
	for _, path := range paths {
		for _, msg := range ve.Fields[path] {
			details = append(details, fmt.Sprintf("%s: %s", path, msg))
		}
	}
	Message{
		Level:   LevelError,
		Title:   fmt.Sprintf("INVALID SCHEMA: %d problem(s)", ve.Count()),
		Details: details,
		NoColor: p.NoColor,
	}.Write(p.W)
}

// Changes lists kind changes between two versions
func (p Printer) Changes(changes []migrate.KindChange) {
	if len(changes) == 0 {
		return
	}
	t := NewTable(p.W, p.NoColor, "FIELD", "FROM", "TO")
	for _, c := range changes {
		t.AddRow(c.FieldID, describeSide(c.FromKey, c.FromKind, c.FromCardinality), describeSide(c.ToKey, c.ToKind, c.ToCardinality))
	}
	t.Render()
}

func describeSide(key string, kind field.Kind, cardinality field.Cardinality) string {
	if cardinality == "" {
		return fmt.Sprintf("%s (%s)", key, kind)
	}
	return fmt.Sprintf("%s (%s, %s)", key, kind, cardinality)
}

// Migration summarizes a migration report and lists its failures
func (p Printer) Migration(r *migrate.Report) {
	if r == nil {
		return
	}
	pairs := NewPairs(p.W, p.NoColor)
	pairs.Add("Documents", r.Total)
	pairs.Add("Updated", r.Updated)
	pairs.Add("Skipped", r.Skipped)
	pairs.Add("Failed", r.Failed)
	pairs.Add("Dropped values", r.Dropped)
	if r.LastID != "" {
		pairs.Add("Last document", r.LastID)
	}
	pairs.Render()

	p.failures(r.Failures)
}

// Search summarizes a search config sync
func (p Printer) Search(r *search.SyncReport) {
	if r == nil {
		return
	}
	pairs := NewPairs(p.W, p.NoColor)
	pairs.Add("Purged fields", joinOrDash(r.Purged))
	pairs.Add("Backfilled fields", joinOrDash(r.Backfilled))
	pairs.Add("Documents scanned", r.Documents)
	pairs.Render()
	for _, f := range r.Failures {
		Warn(p.W, p.NoColor, "backfill of %s stopped: %s", f.FieldID, f.Reason)
	}
}

// Summaries prints the counters of a summary sync
func (p Printer) Summaries(r *summary.SyncReport) {
	if r == nil {
		return
	}
	pairs := NewPairs(p.W, p.NoColor)
	pairs.Add("Documents", r.Total)
	pairs.Add("Updated", r.Updated)
	pairs.Add("Skipped", r.Skipped)
	pairs.Add("Failed", r.Failed)
	pairs.Render()
}

// Versions lists the versions of a schema, marking the active one
func (p Printer) Versions(versions []store.VersionInfo) {
	t := NewTable(p.W, p.NoColor, "VERSION", "ACTIVE", "TITLE", "CREATED", "NOTE")
	for _, v := range versions {
		active := ""
		if v.Active {
			active = "*"
		}
		t.AddRow(strconv.Itoa(v.Version), active, v.Title, v.CreatedAt.Format(time.RFC3339), v.Note)
	}
	t.Render()
}

// Schemas lists active schema pointers
func (p Printer) Schemas(pointers []store.ActivePointer) {
	t := NewTable(p.W, p.NoColor, "SCHEMA", "ACTIVE VERSION", "UPDATED")
	for _, ap := range pointers {
		t.AddRow(ap.SchemaKey, strconv.Itoa(ap.ActiveVersion), ap.UpdatedAt.Format(time.RFC3339))
	}
	t.Render()
}

// Fields lists the fields of a registry
func (p Printer) Fields(reg *schema.Registry) {
	t := NewTable(p.W, p.NoColor, "KEY", "KIND", "ID", "SEARCH", "RELATION")
	for i := range reg.Fields {
		f := &reg.Fields[i]
		cfg := search.Normalize(reg.SchemaKey, f)
		rel := ""
		if f.Rel != nil {
			rel = fmt.Sprintf("%s → %s (%s)", f.Rel.Kind, f.Rel.Target, f.Rel.Cardinality)
		}
		t.AddRow(f.Key, string(f.Kind), f.FieldID, searchFlags(cfg), rel)
	}
	t.Render()
}

func searchFlags(cfg search.FieldConfig) string {
	if !cfg.Indexed() {
		return "-"
	}
	flags := []string{string(cfg.Mode)}
	if cfg.Filterable {
		flags = append(flags, "filter")
	}
	if cfg.Sortable {
		flags = append(flags, "sort")
	}
	return strings.Join(flags, ",")
}

func joinOrDash(items []string) string {
	if len(items) == 0 {
		return "-"
	}
	return strings.Join(items, ", ")
}

// Publish prints the outcome of a publish
func (p Printer) Publish(r *cms.PublishResult) {
	Success(p.W, p.NoColor, "published %s version %d", r.SchemaKey, r.Version)
	if len(r.Changes) > 0 {
		Header(p.W, "Kind changes", p.NoColor)
		p.Changes(r.Changes)
	}
	if r.Migration != nil {
		Header(p.W, "Migration", p.NoColor)
		p.Migration(r.Migration)
	} else if len(r.Changes) > 0 {
		Warn(p.W, p.NoColor, "documents were not migrated; run `halopress migrate %s` to upgrade them", r.SchemaKey)
	}
	if r.Search != nil {
		Header(p.W, "Search", p.NoColor)
		p.Search(r.Search)
	}
}

// PublishPreview prints what a publish with migration would do
func (p Printer) PublishPreview(r *cms.PublishResult) {
	if len(r.Changes) == 0 {
		Success(p.W, p.NoColor, "version %d of %s needs no migration", r.Version, r.SchemaKey)
		return
	}
	fmt.Fprint(p.W, Message{
		Level:   LevelInfo,
		Title:   fmt.Sprintf("DRY RUN: %s version %d", r.SchemaKey, r.Version),
		Details: []string{"Nothing was written."},
		NoColor: p.NoColor,
	}.Format())
	Header(p.W, "Kind changes", p.NoColor)
	p.Changes(r.Changes)
	if r.Migration == nil {
		return
	}
	Header(p.W, "Migration", p.NoColor)
	p.Migration(r.Migration)
	if len(r.Migration.Drops) > 0 {
		Header(p.W, "Values that would be dropped", p.NoColor)
		t := NewTable(p.W, p.NoColor, "DOCUMENT", "FIELD", "KEY")
		for _, d := range r.Migration.Drops {
			t.AddRow(d.DocumentID, d.FieldID, d.Key)
		}
		t.Render()
	}
}

// Resync prints the counters of a resync
func (p Printer) Resync(r *cms.ResyncReport) {
	Success(p.W, p.NoColor, "resynced %s at version %d", r.SchemaKey, r.Version)
	pairs := NewPairs(p.W, p.NoColor)
	pairs.Add("Documents", r.Total)
	pairs.Add("Updated", r.Updated)
	pairs.Add("Failed", r.Failed)
	pairs.Render()
	p.failures(r.Failures)
}

// Reconcile prints one reconcile pass
func (p Printer) Reconcile(r *cms.ReconcileReport) {
	if len(r.Migrations) == 0 {
		Success(p.W, p.NoColor, "%s is up to date at version %d", r.SchemaKey, r.Version)
	} else {
		Success(p.W, p.NoColor, "upgraded %d document(s) of %s to version %d", r.Upgraded(), r.SchemaKey, r.Version)
		versions := make([]int, 0, len(r.Migrations))
		for v := range r.Migrations {
			versions = append(versions, v)
		}
		sort.Ints(versions)
		for _, v := range versions {
			Header(p.W, fmt.Sprintf("From version %d", v), p.NoColor)
			p.Migration(r.Migrations[v])
		}
	}
	if r.Summaries != nil && r.Summaries.Updated > 0 {
		Header(p.W, "Summaries", p.NoColor)
		p.Summaries(r.Summaries)
	}
}

func (p Printer) failures(failures []migrate.Failure) {
	if len(failures) == 0 {
		return
	}
	t := NewTable(p.W, p.NoColor, "DOCUMENT", "REASON")
	for _, f := range failures {
		t.AddRow(f.ID, f.Reason)
	}
	t.Render()
}

// Document prints the columns of a document
func (p Printer) Document(doc *content.Document) {
	pairs := NewPairs(p.W, p.NoColor)
	pairs.Add("ID", doc.ID)
	pairs.Add("Schema", fmt.Sprintf("%s v%d", doc.SchemaKey, doc.SchemaVersion))
	pairs.Add("Title", doc.Title)
	pairs.Add("Status", doc.Status)
	pairs.Add("Updated", doc.UpdatedAt.Format(time.RFC3339))
	pairs.Render()
}

// Documents lists documents one per row
func (p Printer) Documents(docs []*content.Document) {
	t := NewTable(p.W, p.NoColor, "ID", "VERSION", "STATUS", "TITLE")
	for _, d := range docs {
		t.AddRow(d.ID, strconv.Itoa(d.SchemaVersion), d.Status, d.Title)
	}
	t.Render()
}

// Edges lists the outbound references of a document
func (p Printer) Edges(edges []refsync.Edge) {
	t := NewTable(p.W, p.NoColor, "FIELD", "TARGET", "ID")
	for _, e := range edges {
		target := string(e.TargetKind)
		if e.TargetSchemaKey != "" {
			target += ":" + e.TargetSchemaKey
		}
		t.AddRow(e.FieldKey, target, e.TargetID)
	}
	t.Render()
}

// SearchRows lists the search entries of a document
func (p Printer) SearchRows(rows []search.Row) {
	t := NewTable(p.W, p.NoColor, "FIELD", "TYPE", "VALUE")
	for _, r := range rows {
		value := ""
		switch {
		case r.Text != nil:
			value = *r.Text
		case r.Value != nil:
			value = strconv.FormatFloat(*r.Value, 'f', -1, 64)
		}
		t.AddRow(r.FieldID, string(r.DataType), value)
	}
	t.Render()
}

// Summary prints a document summary
func (p Printer) Summary(s *summary.Summary) {
	pairs := NewPairs(p.W, p.NoColor)
	pairs.Add("Description", s.Description)
	pairs.Add("Image", s.Image)
	pairs.Render()
}
