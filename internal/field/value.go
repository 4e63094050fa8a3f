package field

// valueType tags the variant held by a Value
type valueType int

const (
	typeNull valueType = iota
	typeString
	typeNumber
	typeBool
	typeRef
	typeRefList
	typeRich
)

// Value is a coerced field value. Dates and datetimes are carried as normalized strings,
// richtext as its untouched document.
type Value struct {
	typ  valueType
	str  string
	num  float64
	b    bool
	ids  []string
	rich any
}

// Null returns the null value
func Null() Value { return Value{} }

// String returns a string value
func String(s string) Value { return Value{typ: typeString, str: s} }

// Number returns a numeric value
func Number(f float64) Value { return Value{typ: typeNumber, num: f} }

// Bool returns a boolean value
func Bool(b bool) Value { return Value{typ: typeBool, b: b} }

// Ref returns a single relation target
func Ref(id string) Value { return Value{typ: typeRef, str: id} }

// RefList returns an ordered list of relation targets
func RefList(ids []string) Value { return Value{typ: typeRefList, ids: ids} }

// Rich wraps a richtext document
func Rich(doc any) Value { return Value{typ: typeRich, rich: doc} }

// IsNull reports whether the value is null
func (v Value) IsNull() bool { return v.typ == typeNull }

// IsEmpty reports whether the value carries no data: null or an empty target list
func (v Value) IsEmpty() bool {
	return v.typ == typeNull || (v.typ == typeRefList && len(v.ids) == 0)
}

// Str returns the string payload of String and Ref values
func (v Value) Str() string { return v.str }

// Num returns the numeric payload
func (v Value) Num() float64 { return v.num }

// Truth returns the boolean payload
func (v Value) Truth() bool { return v.b }

// IDs returns the relation targets of Ref and RefList values
func (v Value) IDs() []string {
	switch v.typ {
	case typeRef:
		return []string{v.str}
	case typeRefList:
		return v.ids
	}
	return nil
}

// JSON returns the value in the shape it is stored in a document body
func (v Value) JSON() any {
	switch v.typ {
	case typeString, typeRef:
		return v.str
	case typeNumber:
		return v.num
	case typeBool:
		return v.b
	case typeRefList:
		out := make([]any, len(v.ids))
		for i, id := range v.ids {
			out[i] = id
		}
		return out
	case typeRich:
		return v.rich
	default:
		return nil
	}
}
