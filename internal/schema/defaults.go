package schema

import (
	"github.com/google/uuid"

	"github.com/halopress/halopress/internal/field"
)

// DefaultArticleAST returns the schema installed on a fresh database
func DefaultArticleAST() *field.SchemaAst {
	required := true
	return &field.SchemaAst{
		SchemaKey:   "article",
		Title:       "Article",
		Description: "Default article schema",
		Fields: []field.FieldNode{
			{
				ID:       uuid.NewString(),
				Key:      "body",
				Kind:     field.KindRichtext,
				Title:    "Body",
				Required: &required,
				UI:       &field.UiConfig{Widget: "u-editor"},
			},
		},
	}
}
