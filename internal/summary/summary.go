// Package summary derives the flattened display snapshot of a document (title,
// description, image) that list and search views read instead of the raw body.
package summary

import (
	"fmt"
	"time"

	"github.com/halopress/halopress/internal/content"
	"github.com/halopress/halopress/internal/field"
	"github.com/halopress/halopress/internal/richtext"
	"github.com/halopress/halopress/internal/schema"
)

const (
	DefaultDescriptionLimit = 200
	DefaultAssetURLPattern  = "/assets/%s/raw"
)

// Summary is the display snapshot of one document
type Summary struct {
	DocumentID    string    `json:"documentId"`
	SchemaKey     string    `json:"schemaKey"`
	SchemaVersion int       `json:"schemaVersion"`
	Title         string    `json:"title,omitempty"`
	Description   string    `json:"description,omitempty"`
	Image         string    `json:"image,omitempty"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Options controls how descriptions and image urls are derived
type Options struct {
	DescriptionLimit int
	AssetURLPattern  string
}

// DefaultOptions returns the default builder options
func DefaultOptions() Options {
	return Options{
		DescriptionLimit: DefaultDescriptionLimit,
		AssetURLPattern:  DefaultAssetURLPattern,
	}
}

func (o Options) withDefaults() Options {
	if o.DescriptionLimit <= 0 {
		o.DescriptionLimit = DefaultDescriptionLimit
	}
	if o.AssetURLPattern == "" {
		o.AssetURLPattern = DefaultAssetURLPattern
	}
	return o
}

// Build derives the summary of doc. registry may be nil, in which case only the
// document columns are carried over.
func Build(doc *content.Document, body field.Body, registry *schema.Registry, opts Options) Summary {
	opts = opts.withDefaults()
	s := Summary{
		DocumentID:    doc.ID,
		SchemaKey:     doc.SchemaKey,
		SchemaVersion: doc.SchemaVersion,
		Title:         doc.Title,
		Status:        doc.Status,
		CreatedAt:     doc.CreatedAt,
		UpdatedAt:     doc.UpdatedAt,
	}
	if registry == nil {
		return s
	}
	s.Description = description(registry, body, opts.DescriptionLimit)
	s.Image = imageURL(registry, body, opts.AssetURLPattern)
	return s
}

func description(registry *schema.Registry, body field.Body, limit int) string {
	for i := range registry.Fields {
		f := &registry.Fields[i]
		if f.Kind != field.KindRichtext {
			continue
		}
		text := richtext.Normalize(richtext.PlainText(body[f.Key]))
		if text == "" {
			continue
		}
		runes := []rune(text)
		if len(runes) > limit {
			return string(runes[:limit]) + "..."
		}
		return text
	}
	return ""
}

func imageURL(registry *schema.Registry, body field.Body, pattern string) string {
	for i := range registry.Fields {
		f := &registry.Fields[i]
		if f.Kind != field.KindAsset {
			continue
		}
		if id, ok := body[f.Key].(string); ok && id != "" {
			return fmt.Sprintf(pattern, id)
		}
	}
	return ""
}
