package schema

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/halopress/halopress/internal/field"
)

var (
	schemaKeyPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_]*$`)
	fieldKeyPattern  = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_]*$`)
)

// ValidationErrors collects structural problems of an AST keyed by field path
type ValidationErrors struct {
	Fields map[string][]string `json:"fields"`
}

// NewValidationErrors creates an empty error set
func NewValidationErrors() *ValidationErrors {
	return &ValidationErrors{Fields: make(map[string][]string)}
}

// Add records a problem at path
func (ve *ValidationErrors) Add(path, message string) {
	if ve.Fields == nil {
		ve.Fields = make(map[string][]string)
	}
	ve.Fields[path] = append(ve.Fields[path], message)
}

// HasErrors returns true if any problem was recorded
func (ve *ValidationErrors) HasErrors() bool {
	return len(ve.Fields) > 0
}

// Count returns the total number of problems
func (ve *ValidationErrors) Count() int {
	count := 0
	for _, messages := range ve.Fields {
		count += len(messages)
	}
	return count
}

// Error implements the error interface
func (ve *ValidationErrors) Error() string {
	if !ve.HasErrors() {
		return "invalid schema AST"
	}

	paths := make([]string, 0, len(ve.Fields))
	for path := range ve.Fields {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	var messages []string
	for _, path := range paths {
		for _, msg := range ve.Fields[path] {
			messages = append(messages, fmt.Sprintf("  - %s: %s", path, msg))
		}
	}

	if len(messages) == 1 {
		return fmt.Sprintf("invalid schema AST: %s", strings.TrimPrefix(messages[0], "  - "))
	}
	return fmt.Sprintf("invalid schema AST:\n%s", strings.Join(messages, "\n"))
}

// MarshalJSON implements json.Marshaler
func (ve *ValidationErrors) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Error  string              `json:"error"`
		Fields map[string][]string `json:"fields"`
	}{
		Error:  "invalid_ast",
		Fields: ve.Fields,
	})
}

// Validate checks the structural rules an AST must satisfy before it can be compiled.
// It returns a *ValidationErrors describing every problem found, or nil.
func Validate(ast *field.SchemaAst) error {
	errs := NewValidationErrors()

	if !schemaKeyPattern.MatchString(ast.SchemaKey) {
		errs.Add("schemaKey", "must match "+schemaKeyPattern.String())
	}
	if strings.TrimSpace(ast.Title) == "" {
		errs.Add("title", "must not be empty")
	}

	ids := make(map[string]int, len(ast.Fields))
	keys := make(map[string]int, len(ast.Fields))

	for i := range ast.Fields {
		f := &ast.Fields[i]
		path := fmt.Sprintf("fields[%d]", i)

		if f.ID == "" {
			errs.Add(path+".id", "must not be empty")
		} else if prev, dup := ids[f.ID]; dup {
			errs.Add(path+".id", fmt.Sprintf("duplicates fields[%d].id %q", prev, f.ID))
		} else {
			ids[f.ID] = i
		}

		if !fieldKeyPattern.MatchString(f.Key) {
			errs.Add(path+".key", "must match "+fieldKeyPattern.String())
		} else if prev, dup := keys[f.Key]; dup {
			errs.Add(path+".key", fmt.Sprintf("duplicates fields[%d].key %q", prev, f.Key))
		} else {
			keys[f.Key] = i
		}

		if !f.Kind.Valid() {
			errs.Add(path+".kind", fmt.Sprintf("unknown kind %q", f.Kind))
		}

		validateConfigs(errs, path, f)
	}

	if errs.HasErrors() {
		return errs
	}
	return nil
}

func validateConfigs(errs *ValidationErrors, path string, f *field.FieldNode) {
	if f.UI != nil && f.UI.Rows != nil && *f.UI.Rows <= 0 {
		errs.Add(path+".ui.rows", "must be positive")
	}

	if f.Search != nil && f.Search.Mode != "" && !f.Search.Mode.Valid() {
		errs.Add(path+".search.mode", fmt.Sprintf("unknown mode %q", f.Search.Mode))
	}

	for j, ev := range f.EnumValues {
		if ev.Value == "" {
			errs.Add(fmt.Sprintf("%s.enumValues[%d].value", path, j), "must not be empty")
		}
	}

	rel := f.Rel
	if rel == nil {
		return
	}
	if !rel.Kind.Valid() {
		errs.Add(path+".rel.kind", fmt.Sprintf("unknown relation kind %q", rel.Kind))
	}
	if !rel.Cardinality.Valid() {
		errs.Add(path+".rel.cardinality", fmt.Sprintf("unknown cardinality %q", rel.Cardinality))
	}
	if rel.EditMode != "" && !rel.EditMode.Valid() {
		errs.Add(path+".rel.editMode", fmt.Sprintf("unknown edit mode %q", rel.EditMode))
	}
	if rel.Default != "" && rel.Default != field.DefaultCurrentUser && rel.Default != field.DefaultNone {
		errs.Add(path+".rel.default", fmt.Sprintf("unknown default %q", rel.Default))
	}
	if rel.Inline != nil && rel.Inline.CreateOn != "" && rel.Inline.CreateOn != "save" {
		errs.Add(path+".rel.inline.createOn", fmt.Sprintf("unknown trigger %q", rel.Inline.CreateOn))
	}
}
