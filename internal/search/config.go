// Package search maintains the typed search projection: one config row per schema field
// and one index row per document and indexed field.
package search

import (
	"strings"

	"github.com/halopress/halopress/internal/field"
	"github.com/halopress/halopress/internal/richtext"
	"github.com/halopress/halopress/internal/schema"
)

// DataType is the storage class of an index row
type DataType string

const (
	DataNone    DataType = ""
	DataText    DataType = "text"
	DataInteger DataType = "integer"
	DataFloat   DataType = "float"
	DataDate    DataType = "date"
)

// DataTypeFor returns the storage class of a field kind. Relation kinds are never indexed.
func DataTypeFor(k field.Kind) DataType {
	switch k {
	case field.KindNumber:
		return DataFloat
	case field.KindInteger, field.KindBoolean:
		return DataInteger
	case field.KindDate, field.KindDateTime:
		return DataDate
	case field.KindString, field.KindText, field.KindURL, field.KindEnum, field.KindRichtext:
		return DataText
	default:
		return DataNone
	}
}

// FieldConfig is the normalized search policy of one field
type FieldConfig struct {
	SchemaKey  string           `json:"schemaKey"`
	FieldID    string           `json:"fieldId"`
	FieldKey   string           `json:"fieldKey"`
	Kind       field.Kind       `json:"kind"`
	Mode       field.SearchMode `json:"searchMode"`
	Filterable bool             `json:"filterable"`
	Sortable   bool             `json:"sortable"`
}

// Indexed reports whether the field gets index rows
func (c FieldConfig) Indexed() bool {
	if DataTypeFor(c.Kind) == DataNone {
		return false
	}
	return c.Mode != field.SearchOff || c.Filterable || c.Sortable
}

// DataType returns the storage class of the field
func (c FieldConfig) DataType() DataType {
	return DataTypeFor(c.Kind)
}

// Normalize resolves the declared search policy of a field. Modes the kind does not
// allow become off; flags the kind does not support are cleared.
func Normalize(schemaKey string, f *schema.CompiledField) FieldConfig {
	cfg := FieldConfig{
		SchemaKey: schemaKey,
		FieldID:   f.FieldID,
		FieldKey:  f.Key,
		Kind:      f.Kind,
		Mode:      field.SearchOff,
	}
	if f.Search == nil {
		return cfg
	}
	if field.SearchModeAllowed(f.Kind, f.Search.Mode) {
		cfg.Mode = f.Search.Mode
	}
	cfg.Filterable = field.Filterable(f.Kind) && f.Search.Filterable != nil && *f.Search.Filterable
	cfg.Sortable = field.Sortable(f.Kind) && f.Search.Sortable != nil && *f.Search.Sortable
	return cfg
}

// Entry is the coerced index value of one field
type Entry struct {
	DataType DataType
	Text     string
	Value    float64
}

// Coerce converts a body value into its index entry. ok is false when the value is
// absent, blank or cannot be represented, in which case the row must not exist.
func Coerce(f *schema.CompiledField, value any) (Entry, bool) {
	dt := DataTypeFor(f.Kind)
	entry := Entry{DataType: dt}
	if value == nil {
		return entry, false
	}

	switch f.Kind {
	case field.KindString, field.KindText, field.KindURL:
		s, ok := field.ToString(value)
		entry.Text = s
		return entry, ok && strings.TrimSpace(s) != ""
	case field.KindEnum:
		s, ok := field.ToString(value)
		if !ok || strings.TrimSpace(s) == "" {
			return entry, false
		}
		if len(f.EnumValues) > 0 {
			if _, member := field.ToEnum(s, f.EnumValues); !member {
				return entry, false
			}
		}
		entry.Text = s
		return entry, true
	case field.KindRichtext:
		html, ok := richtext.HTML(value)
		entry.Text = html
		return entry, ok && strings.TrimSpace(html) != ""
	case field.KindBoolean:
		b, ok := field.ToBoolean(value)
		if b {
			entry.Value = 1
		}
		return entry, ok
	case field.KindNumber:
		n, ok := field.ToNumber(value)
		entry.Value = n
		return entry, ok
	case field.KindInteger:
		n, ok := field.ToInteger(value)
		entry.Value = n
		return entry, ok
	case field.KindDate, field.KindDateTime:
		t, ok := field.ToTime(value)
		if ok {
			entry.Value = float64(t.UnixMilli())
		}
		return entry, ok
	default:
		return entry, false
	}
}

// Plan compares the configs of two registries. purge lists fields whose rows must all be
// deleted; backfill lists fields that must be rebuilt from every document. old may be nil.
func Plan(old, next *schema.Registry) (purge, backfill []string) {
	prev := map[string]FieldConfig{}
	if old != nil {
		for i := range old.Fields {
			cfg := Normalize(old.SchemaKey, &old.Fields[i])
			prev[cfg.FieldID] = cfg
		}
	}
	cur := map[string]FieldConfig{}
	for i := range next.Fields {
		cfg := Normalize(next.SchemaKey, &next.Fields[i])
		cur[cfg.FieldID] = cfg
	}

	if old != nil {
		for i := range old.Fields {
			p := prev[old.Fields[i].FieldID]
			n, exists := cur[p.FieldID]
			if !p.Indexed() {
				continue
			}
			if !exists || !n.Indexed() || n.DataType() != p.DataType() {
				purge = append(purge, p.FieldID)
			}
		}
	}

	for i := range next.Fields {
		n := cur[next.Fields[i].FieldID]
		if !n.Indexed() {
			continue
		}
		p, existed := prev[n.FieldID]
		if !existed || !p.Indexed() || p.DataType() != n.DataType() || p.Kind != n.Kind {
			backfill = append(backfill, n.FieldID)
		}
	}
	return purge, backfill
}
