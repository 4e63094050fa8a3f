package migrate

import (
	"github.com/halopress/halopress/internal/field"
)

// Drop records a value removed because it could not be represented under its new kind
type Drop struct {
	FieldID string `json:"fieldId"`
	Key     string `json:"key"`
}

// Outcome is the result of rewriting one document body
type Outcome struct {
	Mutated bool
	Dropped []Drop
}

// Apply rewrites body in place for every change. A value is read from the old key, or from
// the new key when the old one is absent. Values that coerce to null or to an empty list
// are removed under both keys. Otherwise the old key is removed on rename and the coerced
// value is written only when it differs from what is stored.
func Apply(body field.Body, changes []KindChange) Outcome {
	var out Outcome

	for _, change := range changes {
		current, ok := body[change.FromKey]
		if !ok && change.Renamed() {
			current, ok = body[change.ToKey]
		}
		if !ok {
			continue
		}

		coerced := field.Coerce(current, change.Field)
		if coerced.IsEmpty() {
			if body.Has(change.FromKey) {
				delete(body, change.FromKey)
				out.Mutated = true
			}
			if body.Has(change.ToKey) {
				delete(body, change.ToKey)
				out.Mutated = true
			}
			out.Dropped = append(out.Dropped, Drop{FieldID: change.FieldID, Key: change.ToKey})
			continue
		}

		if change.Renamed() && body.Has(change.FromKey) {
			delete(body, change.FromKey)
			out.Mutated = true
		}

		next := coerced.JSON()
		if existing, has := body[change.ToKey]; !has || !field.Equal(existing, next) {
			body[change.ToKey] = next
			out.Mutated = true
		}
	}
	return out
}
