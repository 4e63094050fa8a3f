package store

import (
	"context"
	"fmt"
)

// statements returns the DDL creating every table and index, in dependency order
func (d *DB) statements() []string {
	t := d.Tables
	return []string{
		`CREATE TABLE IF NOT EXISTS ` + t.Schema + ` (
	schema_key TEXT NOT NULL,
	version INTEGER NOT NULL,
	title TEXT NOT NULL,
	ast_json TEXT NOT NULL,
	registry_json TEXT NOT NULL,
	json_schema TEXT NOT NULL,
	ui_schema_json TEXT NOT NULL,
	diff_json TEXT NOT NULL,
	note TEXT,
	created_at BIGINT NOT NULL,
	PRIMARY KEY (schema_key, version)
)`,
		`CREATE TABLE IF NOT EXISTS ` + t.SchemaActive + ` (
	schema_key TEXT PRIMARY KEY,
	active_version INTEGER NOT NULL,
	updated_at BIGINT NOT NULL
)`,
		`CREATE TABLE IF NOT EXISTS ` + t.SchemaDraft + ` (
	schema_key TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	ast_json TEXT NOT NULL,
	updated_at BIGINT NOT NULL
)`,
		`CREATE TABLE IF NOT EXISTS ` + t.Content + ` (
	id TEXT PRIMARY KEY,
	schema_key TEXT NOT NULL,
	schema_version INTEGER NOT NULL,
	title TEXT,
	status TEXT NOT NULL,
	body_json TEXT NOT NULL,
	created_at BIGINT NOT NULL,
	updated_at BIGINT NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS ` + t.index("idx_content_schema_version") + ` ON ` + t.Content + ` (schema_key, schema_version)`,
		`CREATE TABLE IF NOT EXISTS ` + t.ContentRef + ` (
	content_id TEXT NOT NULL,
	field_key TEXT NOT NULL,
	target_kind TEXT NOT NULL,
	target_schema_key TEXT,
	target_id TEXT NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS ` + t.index("idx_content_ref_source") + ` ON ` + t.ContentRef + ` (content_id, field_key)`,
		`CREATE INDEX IF NOT EXISTS ` + t.index("idx_content_ref_target") + ` ON ` + t.ContentRef + ` (target_kind, target_id)`,
		`CREATE TABLE IF NOT EXISTS ` + t.ContentRefs + ` (
	content_id TEXT NOT NULL,
	field_key TEXT NOT NULL,
	position INTEGER NOT NULL,
	target_kind TEXT NOT NULL,
	target_schema_key TEXT,
	item_id TEXT,
	asset_id TEXT,
	PRIMARY KEY (content_id, field_key, position)
)`,
		`CREATE TABLE IF NOT EXISTS ` + t.SearchConfig + ` (
	schema_key TEXT NOT NULL,
	field_id TEXT NOT NULL,
	field_key TEXT NOT NULL,
	kind TEXT NOT NULL,
	search_mode TEXT NOT NULL,
	filterable INTEGER NOT NULL,
	sortable INTEGER NOT NULL,
	updated_at BIGINT NOT NULL,
	PRIMARY KEY (schema_key, field_id)
)`,
		`CREATE TABLE IF NOT EXISTS ` + t.SearchData + ` (
	content_id TEXT NOT NULL,
	schema_key TEXT NOT NULL,
	field_id TEXT NOT NULL,
	data_type TEXT NOT NULL,
	text TEXT,
	value DOUBLE PRECISION,
	PRIMARY KEY (content_id, field_id)
)`,
		`CREATE INDEX IF NOT EXISTS ` + t.index("idx_search_data_field") + ` ON ` + t.SearchData + ` (schema_key, field_id)`,
		`CREATE TABLE IF NOT EXISTS ` + t.ContentItems + ` (
	content_id TEXT PRIMARY KEY,
	schema_key TEXT NOT NULL,
	schema_version INTEGER NOT NULL,
	title TEXT,
	description TEXT,
	image TEXT,
	status TEXT NOT NULL,
	created_at BIGINT NOT NULL,
	updated_at BIGINT NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS ` + t.index("idx_content_items_schema") + ` ON ` + t.ContentItems + ` (schema_key)`,
	}
}

// Initialize creates every table and index that does not exist yet
func (d *DB) Initialize(ctx context.Context) error {
	return d.InTx(ctx, func(ctx context.Context) error {
		for _, stmt := range d.statements() {
			if _, err := d.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("failed to initialize tables: %w", err)
			}
		}
		return nil
	})
}
