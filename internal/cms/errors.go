package cms

import "errors"

var (
	// ErrDraftNotFound is returned when a publish needs the draft and there is none
	ErrDraftNotFound = errors.New("draft not found")

	// ErrSchemaKeyMismatch is returned when the AST names a different schema than requested
	ErrSchemaKeyMismatch = errors.New("schemaKey mismatch")

	// ErrNoActiveSchema is returned when a document is written to a schema never published
	ErrNoActiveSchema = errors.New("active schema not found")

	// ErrInvalidBody is returned when a document body is not a JSON object
	ErrInvalidBody = errors.New("document body must be a JSON object")
)
