package field

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Body is a document body keyed by field key
type Body map[string]any

// ErrBodyNotObject is returned when a stored body is valid JSON but not an object
var ErrBodyNotObject = errors.New("document body is not a JSON object")

// ParseBody decodes a stored document body. Numbers are kept as json.Number so values
// that are not migrated round-trip unchanged. An empty input yields an empty body.
func ParseBody(raw []byte) (Body, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return Body{}, nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("failed to parse document body: %w", err)
	}
	if v == nil {
		return Body{}, nil
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, ErrBodyNotObject
	}
	return Body(m), nil
}

// EncodeBody serializes a body for storage
func EncodeBody(b Body) ([]byte, error) {
	if b == nil {
		return []byte("{}"), nil
	}
	data, err := json.Marshal(map[string]any(b))
	if err != nil {
		return nil, fmt.Errorf("failed to encode document body: %w", err)
	}
	return data, nil
}

// Has reports whether key is present, including explicit nulls
func (b Body) Has(key string) bool {
	_, ok := b[key]
	return ok
}

// Equal compares two stored values by their JSON encoding, so json.Number("2") and
// float64(2) are considered the same value.
func Equal(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ea, err := json.Marshal(a)
	if err != nil {
		return false
	}
	eb, err := json.Marshal(b)
	if err != nil {
		return false
	}
	return bytes.Equal(ea, eb)
}
