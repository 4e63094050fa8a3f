// Package schema validates schema ASTs and compiles them into the versioned artifacts the
// rest of the engine runs on: a JSON-Schema validation document, UI metadata and a
// registry of fields and relation descriptors.
package schema

import (
	"github.com/halopress/halopress/internal/field"
)

// TargetKind is the kind of record a relation points at
type TargetKind string

const (
	TargetContent TargetKind = "content"
	TargetUser    TargetKind = "user"
	TargetAsset   TargetKind = "asset"
)

// CompiledField is a field as recorded in a published registry
type CompiledField struct {
	FieldID     string              `json:"fieldId"`
	Key         string              `json:"key"`
	Kind        field.Kind          `json:"kind"`
	Title       string              `json:"title,omitempty"`
	Description string              `json:"description,omitempty"`
	Required    *bool               `json:"required,omitempty"`
	EnumValues  []field.EnumValue   `json:"enumValues,omitempty"`
	UI          *field.UiConfig     `json:"ui,omitempty"`
	Search      *field.SearchConfig `json:"search,omitempty"`
	Rel         *field.RelConfig    `json:"rel,omitempty"`
	System      *bool               `json:"system,omitempty"`
}

// Node returns the field in AST form, which is what coercion operates on
func (c *CompiledField) Node() *field.FieldNode {
	return &field.FieldNode{
		ID:          c.FieldID,
		Key:         c.Key,
		Kind:        c.Kind,
		Title:       c.Title,
		Description: c.Description,
		Required:    c.Required,
		EnumValues:  c.EnumValues,
		UI:          c.UI,
		Search:      c.Search,
		Rel:         c.Rel,
		System:      c.System,
	}
}

// RelationDescriptor describes one relation-bearing field of a registry
type RelationDescriptor struct {
	FieldID         string        `json:"fieldId"`
	FieldKey        string        `json:"fieldKey"`
	TargetKind      TargetKind    `json:"targetKind"`
	TargetSchemaKey string        `json:"targetSchemaKey,omitempty"`
	Kind            field.RelKind `json:"kind"`
}

// Registry is the compiled, versioned field metadata of a schema
type Registry struct {
	SchemaKey string               `json:"schemaKey"`
	Version   int                  `json:"version"`
	Title     string               `json:"title"`
	Fields    []CompiledField      `json:"fields"`
	Relations []RelationDescriptor `json:"relations"`
}

// Field returns the compiled field with the given id
func (r *Registry) Field(id string) (*CompiledField, bool) {
	for i := range r.Fields {
		if r.Fields[i].FieldID == id {
			return &r.Fields[i], true
		}
	}
	return nil, false
}

// FieldByKey returns the compiled field currently stored under key
func (r *Registry) FieldByKey(key string) (*CompiledField, bool) {
	for i := range r.Fields {
		if r.Fields[i].Key == key {
			return &r.Fields[i], true
		}
	}
	return nil, false
}
