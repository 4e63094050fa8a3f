package schema

import (
	"strings"

	"github.com/halopress/halopress/internal/field"
)

// Compiled holds the artifacts produced from one AST at one version
type Compiled struct {
	ValidationSchema *ValidationSchema
	UISchema         *UISchema
	Registry         *Registry
}

// Compile turns a validated AST into the artifacts of the given version. It is pure and
// deterministic; the AST must already have passed Validate.
func Compile(ast *field.SchemaAst, version int) *Compiled {
	properties := make(map[string]*Property, len(ast.Fields))
	var required []string

	for i := range ast.Fields {
		f := &ast.Fields[i]
		if f.IsSystem() {
			continue
		}
		properties[f.Key] = compileProperty(f)
		if f.IsRequired() {
			required = append(required, f.Key)
		}
	}

	return &Compiled{
		ValidationSchema: &ValidationSchema{
			Schema:               JSONSchemaDialect,
			Type:                 "object",
			Title:                ast.Title,
			Description:          ast.Description,
			Properties:           properties,
			Required:             required,
			AdditionalProperties: false,
		},
		UISchema: &UISchema{UI: UIRoot{SchemaKey: ast.SchemaKey}},
		Registry: compileRegistry(ast, version),
	}
}

// ResolveTarget maps a relation target string to its target kind. Unrecognized targets
// resolve to content without a schema key.
func ResolveTarget(target string) (TargetKind, string) {
	switch {
	case strings.HasPrefix(target, field.TargetUser):
		return TargetUser, ""
	case strings.HasPrefix(target, field.TargetAsset):
		return TargetAsset, ""
	case strings.HasPrefix(target, field.TargetContentPrefix):
		return TargetContent, strings.TrimPrefix(target, field.TargetContentPrefix)
	default:
		return TargetContent, ""
	}
}

// withWidget copies ui and fills in the widget when the field does not choose one
func withWidget(ui *field.UiConfig, widget string) *field.UiConfig {
	out := field.UiConfig{}
	if ui != nil {
		out = *ui
	}
	if out.Widget == "" {
		out.Widget = widget
	}
	return &out
}

func compileProperty(f *field.FieldNode) *Property {
	p := &Property{
		Title:       f.Title,
		Description: f.Description,
	}

	switch f.Kind {
	case field.KindString:
		p.Type = TypeSet{"string"}
		p.UI, p.Search = f.UI, f.Search
	case field.KindText:
		p.Type = TypeSet{"string"}
		p.UI, p.Search = withWidget(f.UI, "textarea"), f.Search
	case field.KindNumber:
		p.Type = TypeSet{"number"}
		p.UI, p.Search = f.UI, f.Search
	case field.KindInteger:
		p.Type = TypeSet{"integer"}
		p.UI, p.Search = f.UI, f.Search
	case field.KindBoolean:
		p.Type = TypeSet{"boolean"}
		p.UI, p.Search = withWidget(f.UI, "toggle"), f.Search
	case field.KindDate:
		p.Type, p.Format = TypeSet{"string"}, "date"
		p.UI, p.Search = withWidget(f.UI, "date"), f.Search
	case field.KindDateTime:
		p.Type, p.Format = TypeSet{"string"}, "date-time"
		p.UI, p.Search = withWidget(f.UI, "datetime"), f.Search
	case field.KindURL:
		p.Type, p.Format = TypeSet{"string"}, "uri"
		p.UI, p.Search = withWidget(f.UI, "url"), f.Search
	case field.KindEnum:
		p.Type = TypeSet{"string"}
		p.Enum = make([]string, 0, len(f.EnumValues))
		for _, ev := range f.EnumValues {
			p.Enum = append(p.Enum, ev.Value)
		}
		p.UI, p.Search = withWidget(f.UI, "select"), f.Search
	case field.KindRichtext:
		p.Type = TypeSet{"object", "array", "string", "null"}
		p.UI = withWidget(f.UI, "u-editor")
	case field.KindAsset:
		p.Type = TypeSet{"string", "null"}
		p.Rel = f.Rel
		if p.Rel == nil {
			p.Rel = &field.RelConfig{Kind: field.RelAssetRef, Target: field.TargetAsset, Cardinality: field.One}
		}
		p.UI = withWidget(f.UI, "assetPicker")
	case field.KindReference:
		if f.Cardinality() == field.Many {
			p.Type = TypeSet{"array"}
			p.Items = &Property{Type: TypeSet{"string"}}
		} else {
			p.Type = TypeSet{"string", "null"}
		}
		p.Rel = f.Rel
		p.UI = withWidget(f.UI, "relationEditor")
	}

	return p
}

func compileRegistry(ast *field.SchemaAst, version int) *Registry {
	reg := &Registry{
		SchemaKey: ast.SchemaKey,
		Version:   version,
		Title:     ast.Title,
		Fields:    make([]CompiledField, 0, len(ast.Fields)),
		Relations: make([]RelationDescriptor, 0),
	}

	for i := range ast.Fields {
		f := &ast.Fields[i]
		reg.Fields = append(reg.Fields, CompiledField{
			FieldID:     f.ID,
			Key:         f.Key,
			Kind:        f.Kind,
			Title:       f.Title,
			Description: f.Description,
			Required:    f.Required,
			EnumValues:  f.EnumValues,
			UI:          f.UI,
			Search:      f.Search,
			Rel:         f.Rel,
			System:      f.System,
		})

		if !f.Kind.IsRelation() {
			continue
		}
		reg.Relations = append(reg.Relations, relationFor(f))
	}

	return reg
}

func relationFor(f *field.FieldNode) RelationDescriptor {
	desc := RelationDescriptor{FieldID: f.ID, FieldKey: f.Key}

	if f.Rel == nil {
		if f.Kind == field.KindAsset {
			desc.TargetKind, desc.Kind = TargetAsset, field.RelAssetRef
		} else {
			desc.TargetKind, desc.Kind = TargetContent, field.RelRef
		}
		return desc
	}

	desc.TargetKind, desc.TargetSchemaKey = ResolveTarget(f.Rel.Target)
	desc.Kind = f.Rel.Kind
	return desc
}
