// Package field defines the vocabulary of content field kinds, the schema AST wire types,
// and the per-kind value coercion rules shared by the compiler, the migration engine and
// the search indexer.
package field

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Kind is the closed set of field kinds a schema may declare
type Kind string

const (
	// Text kinds
	KindString   Kind = "string"
	KindText     Kind = "text"
	KindURL      Kind = "url"
	KindEnum     Kind = "enum"
	KindRichtext Kind = "richtext"

	// Numeric kinds
	KindNumber  Kind = "number"
	KindInteger Kind = "integer"

	KindBoolean Kind = "boolean"

	// Time kinds
	KindDate     Kind = "date"
	KindDateTime Kind = "datetime"

	// Relation kinds
	KindReference Kind = "reference"
	KindAsset     Kind = "asset"
)

// Kinds lists every supported kind in wire order
var Kinds = []Kind{
	KindString,
	KindText,
	KindNumber,
	KindInteger,
	KindBoolean,
	KindDate,
	KindDateTime,
	KindURL,
	KindEnum,
	KindRichtext,
	KindReference,
	KindAsset,
}

// String returns the wire name of the kind
func (k Kind) String() string {
	return string(k)
}

// Valid reports whether k is one of the supported kinds
func (k Kind) Valid() bool {
	for _, known := range Kinds {
		if k == known {
			return true
		}
	}
	return false
}

// IsRelation returns true for kinds whose values point at other records
func (k Kind) IsRelation() bool {
	return k == KindReference || k == KindAsset
}

// ParseKind converts a string to a Kind
func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	if !k.Valid() {
		return "", fmt.Errorf("unknown field kind: %s", s)
	}
	return k, nil
}

// SearchMode is the per-field search policy
type SearchMode string

const (
	SearchOff      SearchMode = "off"
	SearchExact    SearchMode = "exact"
	SearchRange    SearchMode = "range"
	SearchExactSet SearchMode = "exact_set"
)

// Valid reports whether m is a known search mode
func (m SearchMode) Valid() bool {
	switch m {
	case SearchOff, SearchExact, SearchRange, SearchExactSet:
		return true
	}
	return false
}

// RelKind describes how a relation field is edited and stored
type RelKind string

const (
	RelRef      RelKind = "ref"
	RelRefList  RelKind = "ref_list"
	RelPolyRef  RelKind = "poly_ref"
	RelAssetRef RelKind = "asset_ref"
)

// Valid reports whether r is a known relation kind
func (r RelKind) Valid() bool {
	switch r {
	case RelRef, RelRefList, RelPolyRef, RelAssetRef:
		return true
	}
	return false
}

// Cardinality is the number of targets a relation field holds
type Cardinality string

const (
	One  Cardinality = "one"
	Many Cardinality = "many"
)

// Valid reports whether c is a known cardinality
func (c Cardinality) Valid() bool {
	return c == One || c == Many
}

// EditMode controls the relation editor behavior
type EditMode string

const (
	EditPick          EditMode = "pick"
	EditInlineCreate  EditMode = "inline_create"
	EditInlineEdit    EditMode = "inline_edit"
	EditEmbedSnapshot EditMode = "embed_snapshot"
)

// Valid reports whether e is a known edit mode
func (e EditMode) Valid() bool {
	switch e {
	case EditPick, EditInlineCreate, EditInlineEdit, EditEmbedSnapshot:
		return true
	}
	return false
}

// RelDefault is the value a relation field starts with
type RelDefault string

const (
	DefaultCurrentUser RelDefault = "currentUser"
	DefaultNone        RelDefault = "none"
)

// Relation target prefixes
const (
	TargetUser          = "system:User"
	TargetAsset         = "system:Asset"
	TargetContentPrefix = "content:"
)

// EnumValue is one option of an enum field
type EnumValue struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// UiConfig carries form rendering hints. The engine treats it as opaque.
type UiConfig struct {
	Widget      string `json:"widget,omitempty"`
	Placeholder string `json:"placeholder,omitempty"`
	Help        string `json:"help,omitempty"`
	Rows        *int   `json:"rows,omitempty"`
	Group       string `json:"group,omitempty"`
	Order       *int   `json:"order,omitempty"`
	Hidden      *bool  `json:"hidden,omitempty"`
	Readonly    *bool  `json:"readonly,omitempty"`
}

// SearchConfig is the declared search policy of a field
type SearchConfig struct {
	Mode       SearchMode `json:"mode,omitempty"`
	Filterable *bool      `json:"filterable,omitempty"`
	Sortable   *bool      `json:"sortable,omitempty"`
}

// InlineConfig configures inline creation of relation targets
type InlineConfig struct {
	UI       string `json:"ui,omitempty"`
	CreateOn string `json:"createOn,omitempty"`
}

// RelConfig describes the target and shape of a relation field
type RelConfig struct {
	Kind        RelKind       `json:"kind"`
	Target      string        `json:"target"`
	Cardinality Cardinality   `json:"cardinality"`
	EditMode    EditMode      `json:"editMode,omitempty"`
	Default     RelDefault    `json:"default,omitempty"`
	Picker      string        `json:"picker,omitempty"`
	Inline      *InlineConfig `json:"inline,omitempty"`
}

// FieldNode is a single field of a schema AST.
//
// ID is stable for the life of the field, Key is the current storage name and may change
// between versions.
type FieldNode struct {
	ID          string          `json:"id"`
	Key         string          `json:"key"`
	Kind        Kind            `json:"kind"`
	Title       string          `json:"title,omitempty"`
	Description string          `json:"description,omitempty"`
	Required    *bool           `json:"required,omitempty"`
	Default     json.RawMessage `json:"default,omitempty"`
	EnumValues  []EnumValue     `json:"enumValues,omitempty"`
	UI          *UiConfig       `json:"ui,omitempty"`
	Search      *SearchConfig   `json:"search,omitempty"`
	Rel         *RelConfig      `json:"rel,omitempty"`
	System      *bool           `json:"system,omitempty"`
}

// IsRequired reports whether the field is marked required
func (f *FieldNode) IsRequired() bool {
	return f.Required != nil && *f.Required
}

// IsSystem reports whether the field is managed by the system rather than the body
func (f *FieldNode) IsSystem() bool {
	return f.System != nil && *f.System
}

// Cardinality returns the relation cardinality, defaulting to one
func (f *FieldNode) Cardinality() Cardinality {
	if f.Rel == nil || f.Rel.Cardinality == "" {
		return One
	}
	return f.Rel.Cardinality
}

// SchemaAst is the editable definition of a content schema
type SchemaAst struct {
	SchemaKey   string      `json:"schemaKey"`
	Title       string      `json:"title"`
	Description string      `json:"description,omitempty"`
	Fields      []FieldNode `json:"fields"`
}

// FieldByID returns the field with the given stable id
func (a *SchemaAst) FieldByID(id string) (*FieldNode, bool) {
	for i := range a.Fields {
		if a.Fields[i].ID == id {
			return &a.Fields[i], true
		}
	}
	return nil, false
}

// DecodeAST parses an AST from its wire JSON. Unknown properties are rejected.
func DecodeAST(data []byte) (*SchemaAst, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var ast SchemaAst
	if err := dec.Decode(&ast); err != nil {
		return nil, fmt.Errorf("invalid schema AST: %w", err)
	}
	if ast.Fields == nil {
		ast.Fields = []FieldNode{}
	}
	return &ast, nil
}

// EncodeAST serializes an AST to its wire JSON
func EncodeAST(ast *SchemaAst) ([]byte, error) {
	return json.Marshal(ast)
}
