package field

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var isoDatePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// Layouts accepted when normalizing date and datetime strings. Layouts without a zone
// are read as UTC.
var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.000Z0700",
	"2006-01-02T15:04:05Z0700",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"2006/01/02",
	"01/02/2006",
	time.RFC1123Z,
	time.RFC1123,
	time.RFC850,
	time.ANSIC,
	"Jan 2, 2006",
	"January 2, 2006",
	"2 Jan 2006",
}

// Largest absolute epoch-millisecond value a date may carry
const maxEpochMillis = 8.64e15

var (
	trueTokens  = map[string]bool{"true": true, "1": true, "yes": true, "y": true, "on": true}
	falseTokens = map[string]bool{"false": true, "0": true, "no": true, "n": true, "off": true}
)

// numeric extracts a finite float from the numeric shapes a body may hold
func numeric(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case json.Number:
		parsed, err := strconv.ParseFloat(string(n), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case int32:
		f = float64(n)
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func formatNumber(f float64) string {
	if abs := math.Abs(f); abs >= 1e21 {
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// ToString converts strings, numbers and booleans to a string
func ToString(v any) (string, bool) {
	switch s := v.(type) {
	case nil:
		return "", false
	case string:
		return s, true
	case bool:
		return strconv.FormatBool(s), true
	}
	if f, ok := numeric(v); ok {
		return formatNumber(f), true
	}
	return "", false
}

// ToNumber converts numbers, numeric strings and booleans to a finite float
func ToNumber(v any) (float64, bool) {
	switch s := v.(type) {
	case bool:
		if s {
			return 1, true
		}
		return 0, true
	case string:
		trimmed := strings.TrimSpace(s)
		if trimmed == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(trimmed, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	}
	return numeric(v)
}

// ToInteger is ToNumber truncated toward zero
func ToInteger(v any) (float64, bool) {
	f, ok := ToNumber(v)
	if !ok {
		return 0, false
	}
	return math.Trunc(f), true
}

// ToBoolean converts booleans, numbers and recognized string tokens
func ToBoolean(v any) (bool, bool) {
	switch s := v.(type) {
	case bool:
		return s, true
	case string:
		token := strings.ToLower(strings.TrimSpace(s))
		if trueTokens[token] {
			return true, true
		}
		if falseTokens[token] {
			return false, true
		}
		return false, false
	}
	if f, ok := numeric(v); ok {
		return f != 0, true
	}
	return false, false
}

// ToTime parses date strings and epoch-millisecond numbers
func ToTime(v any) (time.Time, bool) {
	switch s := v.(type) {
	case time.Time:
		return s.UTC(), !s.IsZero()
	case string:
		trimmed := strings.TrimSpace(s)
		if trimmed == "" {
			return time.Time{}, false
		}
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, trimmed); err == nil {
				return t.UTC(), true
			}
		}
		return time.Time{}, false
	}
	f, ok := numeric(v)
	if !ok || math.Abs(f) > maxEpochMillis {
		return time.Time{}, false
	}
	return time.UnixMilli(int64(f)).UTC(), true
}

// ToDate normalizes to YYYY-MM-DD. Strings already in that shape pass unchanged.
func ToDate(v any) (string, bool) {
	if s, ok := v.(string); ok && isoDatePattern.MatchString(strings.TrimSpace(s)) {
		return strings.TrimSpace(s), true
	}
	t, ok := ToTime(v)
	if !ok {
		return "", false
	}
	return t.Format("2006-01-02"), true
}

// ToDateTime normalizes to a UTC ISO-8601 timestamp with millisecond precision
func ToDateTime(v any) (string, bool) {
	t, ok := ToTime(v)
	if !ok {
		return "", false
	}
	return t.Format("2006-01-02T15:04:05.000Z"), true
}

// ToEnum accepts a string that is one of the declared values
func ToEnum(v any, allowed []EnumValue) (string, bool) {
	candidate, ok := ToString(v)
	if !ok || candidate == "" {
		return "", false
	}
	for _, ev := range allowed {
		if ev.Value == candidate {
			return candidate, true
		}
	}
	return "", false
}

func normalizeID(v any) (string, bool) {
	s, ok := v.(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}

// ToReference converts scalar ids and id arrays to the requested cardinality.
// Non-string and empty entries are dropped.
func ToReference(v any, c Cardinality) Value {
	if c == Many {
		if arr, ok := v.([]any); ok {
			ids := make([]string, 0, len(arr))
			for _, item := range arr {
				if id, ok := normalizeID(item); ok {
					ids = append(ids, id)
				}
			}
			return RefList(ids)
		}
		if id, ok := normalizeID(v); ok {
			return RefList([]string{id})
		}
		return RefList([]string{})
	}

	if arr, ok := v.([]any); ok {
		for _, item := range arr {
			if id, ok := normalizeID(item); ok {
				return Ref(id)
			}
		}
		return Null()
	}
	if id, ok := normalizeID(v); ok {
		return Ref(id)
	}
	return Null()
}

// ToRichtext passes strings, arrays and documents through untouched
func ToRichtext(v any) Value {
	switch v.(type) {
	case string, []any, map[string]any:
		return Rich(v)
	}
	return Null()
}

// Coerce converts a stored value to the shape required by f. A null result means the
// value cannot be represented under the field's kind.
func Coerce(v any, f *FieldNode) Value {
	switch f.Kind {
	case KindString, KindText, KindURL:
		if s, ok := ToString(v); ok {
			return String(s)
		}
	case KindNumber:
		if n, ok := ToNumber(v); ok {
			return Number(n)
		}
	case KindInteger:
		if n, ok := ToInteger(v); ok {
			return Number(n)
		}
	case KindBoolean:
		if b, ok := ToBoolean(v); ok {
			return Bool(b)
		}
	case KindDate:
		if s, ok := ToDate(v); ok {
			return String(s)
		}
	case KindDateTime:
		if s, ok := ToDateTime(v); ok {
			return String(s)
		}
	case KindEnum:
		if s, ok := ToEnum(v, f.EnumValues); ok {
			return String(s)
		}
	case KindRichtext:
		return ToRichtext(v)
	case KindReference:
		return ToReference(v, f.Cardinality())
	case KindAsset:
		return ToReference(v, One)
	}
	return Null()
}
