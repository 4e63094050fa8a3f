package schema

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/halopress/halopress/internal/field"
)

func validationErrors(t *testing.T, err error) *ValidationErrors {
	t.Helper()
	var ve *ValidationErrors
	require.True(t, errors.As(err, &ve), "expected *ValidationErrors, got %v", err)
	return ve
}

func TestValidate_Valid(t *testing.T) {
	assert.NoError(t, Validate(productAST()))
}

func TestValidate_Problems(t *testing.T) {
	rows := 0
	tests := []struct {
		name   string
		mutate func(*field.SchemaAst)
		path   string
	}{
		{"uppercase schema key", func(a *field.SchemaAst) { a.SchemaKey = "Product" }, "schemaKey"},
		{"schema key leading underscore", func(a *field.SchemaAst) { a.SchemaKey = "_p" }, "schemaKey"},
		{"blank title", func(a *field.SchemaAst) { a.Title = "  " }, "title"},
		{"empty id", func(a *field.SchemaAst) { a.Fields[1].ID = "" }, "fields[1].id"},
		{"duplicate id", func(a *field.SchemaAst) { a.Fields[2].ID = "f-title" }, "fields[2].id"},
		{"key starting with digit", func(a *field.SchemaAst) { a.Fields[0].Key = "1title" }, "fields[0].key"},
		{"duplicate key", func(a *field.SchemaAst) { a.Fields[3].Key = "price" }, "fields[3].key"},
		{"unknown kind", func(a *field.SchemaAst) { a.Fields[0].Kind = "blob" }, "fields[0].kind"},
		{"zero rows", func(a *field.SchemaAst) { a.Fields[2].UI = &field.UiConfig{Rows: &rows} }, "fields[2].ui.rows"},
		{"unknown search mode", func(a *field.SchemaAst) { a.Fields[1].Search.Mode = "fuzzy" }, "fields[1].search.mode"},
		{"empty enum value", func(a *field.SchemaAst) { a.Fields[4].EnumValues[1].Value = "" }, "fields[4].enumValues[1].value"},
		{"unknown rel kind", func(a *field.SchemaAst) { a.Fields[7].Rel.Kind = "link" }, "fields[7].rel.kind"},
		{"unknown cardinality", func(a *field.SchemaAst) { a.Fields[7].Rel.Cardinality = "few" }, "fields[7].rel.cardinality"},
		{"unknown edit mode", func(a *field.SchemaAst) { a.Fields[7].Rel.EditMode = "drag" }, "fields[7].rel.editMode"},
		{"unknown default", func(a *field.SchemaAst) { a.Fields[7].Rel.Default = "admin" }, "fields[7].rel.default"},
		{"unknown create trigger", func(a *field.SchemaAst) {
			a.Fields[8].Rel.Inline = &field.InlineConfig{CreateOn: "blur"}
		}, "fields[8].rel.inline.createOn"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ast := productAST()
			tt.mutate(ast)

			ve := validationErrors(t, Validate(ast))
			assert.Contains(t, ve.Fields, tt.path)
			assert.Equal(t, 1, ve.Count())
		})
	}
}

func TestValidate_CollectsAll(t *testing.T) {
	ast := productAST()
	ast.SchemaKey = "Bad Key"
	ast.Fields[0].Key = ""
	ast.Fields[1].Kind = "blob"

	ve := validationErrors(t, Validate(ast))
	assert.Equal(t, 3, ve.Count())
	assert.Contains(t, ve.Error(), "fields[0].key")
	assert.Contains(t, ve.Error(), "fields[1].kind")
	assert.Contains(t, ve.Error(), "schemaKey")
}

func TestValidationErrors_Format(t *testing.T) {
	ve := NewValidationErrors()
	assert.False(t, ve.HasErrors())
	assert.Equal(t, "invalid schema AST", ve.Error())

	ve.Add("title", "must not be empty")
	assert.Equal(t, "invalid schema AST: title: must not be empty", ve.Error())

	ve.Add("fields[0].key", "bad")
	assert.Equal(t, "invalid schema AST:\n  - fields[0].key: bad\n  - title: must not be empty", ve.Error())

	data, err := json.Marshal(ve)
	require.NoError(t, err)
	assert.JSONEq(t, `{"error":"invalid_ast","fields":{"title":["must not be empty"],"fields[0].key":["bad"]}}`, string(data))
}

func TestValidationErrors_ZeroValueAdd(t *testing.T) {
	var ve ValidationErrors
	ve.Add("x", "y")
	assert.True(t, ve.HasErrors())
}
