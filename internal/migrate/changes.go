// Package migrate rewrites stored documents when a schema version changes the kind or
// relation cardinality of existing fields.
package migrate

import (
	"github.com/halopress/halopress/internal/field"
)

// KindChange describes one field whose stored shape differs between two versions
type KindChange struct {
	FieldID         string            `json:"fieldId"`
	FromKey         string            `json:"fromKey"`
	ToKey           string            `json:"toKey"`
	FromKind        field.Kind        `json:"fromKind"`
	ToKind          field.Kind        `json:"toKind"`
	FromCardinality field.Cardinality `json:"fromCardinality,omitempty"`
	ToCardinality   field.Cardinality `json:"toCardinality,omitempty"`

	// Field is the destination field the value is coerced against
	Field *field.FieldNode `json:"-"`
}

// Renamed reports whether the field key changed along with its kind
func (c KindChange) Renamed() bool {
	return c.FromKey != c.ToKey
}

// KindChanges lists the fields present in both ASTs by id whose kind differs, or that are
// references in both with a different cardinality. old may be nil.
func KindChanges(old, next *field.SchemaAst) []KindChange {
	if old == nil || next == nil {
		return nil
	}

	var changes []KindChange
	for i := range next.Fields {
		to := &next.Fields[i]
		from, ok := old.FieldByID(to.ID)
		if !ok {
			continue
		}

		cardinalityChanged := from.Kind == field.KindReference && to.Kind == field.KindReference &&
			from.Cardinality() != to.Cardinality()
		if from.Kind == to.Kind && !cardinalityChanged {
			continue
		}

		change := KindChange{
			FieldID:  to.ID,
			FromKey:  from.Key,
			ToKey:    to.Key,
			FromKind: from.Kind,
			ToKind:   to.Kind,
			Field:    to,
		}
		if from.Kind == field.KindReference {
			change.FromCardinality = from.Cardinality()
		}
		if to.Kind == field.KindReference {
			change.ToCardinality = to.Cardinality()
		}
		changes = append(changes, change)
	}
	return changes
}
