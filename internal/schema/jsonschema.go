package schema

import (
	"encoding/json"

	"github.com/halopress/halopress/internal/field"
)

// JSONSchemaDialect is the meta-schema compiled validation documents declare
const JSONSchemaDialect = "https://json-schema.org/draft/2020-12/schema"

// TypeSet is a JSON-Schema "type" keyword. A single type is written as a plain string.
type TypeSet []string

// MarshalJSON implements json.Marshaler
func (t TypeSet) MarshalJSON() ([]byte, error) {
	if len(t) == 1 {
		return json.Marshal(t[0])
	}
	return json.Marshal([]string(t))
}

// UnmarshalJSON implements json.Unmarshaler
func (t *TypeSet) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*t = TypeSet{single}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return err
	}
	*t = TypeSet(many)
	return nil
}

// Property is the validation schema of a single body key. The x- keywords carry UI,
// search and relation metadata through to form renderers untouched.
type Property struct {
	Title       string              `json:"title,omitempty"`
	Description string              `json:"description,omitempty"`
	Type        TypeSet             `json:"type,omitempty"`
	Format      string              `json:"format,omitempty"`
	Enum        []string            `json:"enum,omitempty"`
	Items       *Property           `json:"items,omitempty"`
	Rel         *field.RelConfig    `json:"x-rel,omitempty"`
	UI          *field.UiConfig     `json:"x-ui,omitempty"`
	Search      *field.SearchConfig `json:"x-search,omitempty"`
}

// MarshalJSON implements json.Marshaler. A non-nil Enum is always written, so an enum
// field without values still emits "enum": [].
func (p Property) MarshalJSON() ([]byte, error) {
	type plain Property
	if p.Enum == nil {
		return json.Marshal(plain(p))
	}
	return json.Marshal(struct {
		plain
		Enum []string `json:"enum"`
	}{plain(p), p.Enum})
}

// ValidationSchema is the compiled JSON-Schema document of a schema version
type ValidationSchema struct {
	Schema               string               `json:"$schema"`
	Type                 string               `json:"type"`
	Title                string               `json:"title"`
	Description          string               `json:"description,omitempty"`
	Properties           map[string]*Property `json:"properties"`
	Required             []string             `json:"required,omitempty"`
	AdditionalProperties bool                 `json:"additionalProperties"`
}

// UISchema is the root-level UI document of a schema version
type UISchema struct {
	UI UIRoot `json:"x-ui"`
}

// UIRoot identifies the schema a form renders
type UIRoot struct {
	SchemaKey string `json:"schemaKey"`
}
