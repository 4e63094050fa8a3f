// Package richtext renders structured editor documents (ProseMirror/tiptap JSON) to HTML
// and extracts their plain text.
package richtext

import (
	"fmt"
	"html"
	"regexp"
	"strconv"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var (
	stripTagsPolicy = bluemonday.StripTagsPolicy()
	contentPolicy   = newContentPolicy()
	whitespace      = regexp.MustCompile(`\s+`)
)

func newContentPolicy() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowStyles("text-align").
		MatchingEnum("left", "right", "center", "justify").
		OnElements("p", "h1", "h2", "h3", "h4", "h5", "h6")
	p.AllowAttrs("data-type").Matching(regexp.MustCompile(`^[a-z-]+$`)).OnElements("div", "span")
	p.AllowAttrs("data-id", "data-label").OnElements("span")
	return p
}

// Sanitize removes markup that is unsafe to render from an HTML fragment
func Sanitize(fragment string) string {
	return contentPolicy.Sanitize(fragment)
}

// StripHTML removes every tag from an HTML fragment and returns its text
func StripHTML(fragment string) string {
	return html.UnescapeString(stripTagsPolicy.Sanitize(fragment))
}

// HTML renders a richtext value to sanitized HTML. Strings are treated as HTML already;
// objects and arrays are rendered as editor nodes. ok is false for any other shape.
func HTML(value any) (out string, ok bool) {
	switch v := value.(type) {
	case string:
		return Sanitize(v), true
	case map[string]any, []any:
		var b strings.Builder
		renderValue(&b, v)
		return Sanitize(b.String()), true
	default:
		return "", false
	}
}

// PlainText extracts the text of a richtext value: text nodes are joined with single
// spaces and HTML strings have their tags removed.
func PlainText(value any) string {
	var parts []string
	collectText(value, &parts)
	return strings.Join(parts, " ")
}

// Normalize collapses runs of whitespace into single spaces and trims the result
func Normalize(text string) string {
	return strings.TrimSpace(whitespace.ReplaceAllString(text, " "))
}

func collectText(value any, parts *[]string) {
	switch v := value.(type) {
	case string:
		if t := StripHTML(v); t != "" {
			*parts = append(*parts, t)
		}
	case []any:
		for _, item := range v {
			collectText(item, parts)
		}
	case map[string]any:
		if t, ok := v["text"].(string); ok && t != "" {
			*parts = append(*parts, t)
		}
		if children, ok := v["content"].([]any); ok {
			collectText(children, parts)
		}
	}
}

func renderValue(b *strings.Builder, value any) {
	switch v := value.(type) {
	case []any:
		for _, item := range v {
			renderValue(b, item)
		}
	case map[string]any:
		renderNode(b, v)
	case string:
		b.WriteString(html.EscapeString(v))
	}
}

func attrs(node map[string]any) map[string]any {
	a, _ := node["attrs"].(map[string]any)
	return a
}

func attrString(node map[string]any, name string) string {
	switch v := attrs(node)[name].(type) {
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return ""
	}
}

func alignStyle(node map[string]any) string {
	align := attrString(node, "textAlign")
	if align == "" || align == "left" {
		return ""
	}
	return ` style="text-align: ` + html.EscapeString(align) + `"`
}

func wrap(b *strings.Builder, open, close string, node map[string]any) {
	b.WriteString(open)
	renderValue(b, node["content"])
	b.WriteString(close)
}

func renderNode(b *strings.Builder, node map[string]any) {
	nodeType, _ := node["type"].(string)

	switch nodeType {
	case "text":
		text, _ := node["text"].(string)
		renderText(b, text, node["marks"])
	case "doc":
		renderValue(b, node["content"])
	case "paragraph":
		wrap(b, "<p"+alignStyle(node)+">", "</p>", node)
	case "heading":
		level, err := strconv.Atoi(attrString(node, "level"))
		if err != nil || level < 1 || level > 6 {
			level = 1
		}
		tag := "h" + strconv.Itoa(level)
		wrap(b, "<"+tag+alignStyle(node)+">", "</"+tag+">", node)
	case "bulletList":
		wrap(b, "<ul>", "</ul>", node)
	case "orderedList":
		open := "<ol>"
		if start := attrString(node, "start"); start != "" && start != "1" {
			open = `<ol start="` + html.EscapeString(start) + `">`
		}
		wrap(b, open, "</ol>", node)
	case "listItem":
		wrap(b, "<li>", "</li>", node)
	case "blockquote":
		wrap(b, "<blockquote>", "</blockquote>", node)
	case "codeBlock":
		wrap(b, "<pre><code>", "</code></pre>", node)
	case "hardBreak":
		b.WriteString("<br>")
	case "horizontalRule":
		b.WriteString("<hr>")
	case "image":
		b.WriteString(`<img src="` + html.EscapeString(attrString(node, "src")) + `"`)
		if alt := attrString(node, "alt"); alt != "" {
			b.WriteString(` alt="` + html.EscapeString(alt) + `"`)
		}
		if title := attrString(node, "title"); title != "" {
			b.WriteString(` title="` + html.EscapeString(title) + `"`)
		}
		b.WriteString(">")
	case "mention":
		id := attrString(node, "id")
		label := attrString(node, "label")
		if label == "" {
			label = id
		}
		b.WriteString(`<span data-type="mention" data-id="` + html.EscapeString(id) + `">@` + html.EscapeString(label) + `</span>`)
	case "imageUpload":
		b.WriteString(`<div data-type="image-upload"></div>`)
	default:
		renderValue(b, node["content"])
	}
}

func renderText(b *strings.Builder, text string, marks any) {
	list, _ := marks.([]any)

	var open, close []string
	for _, m := range list {
		mark, ok := m.(map[string]any)
		if !ok {
			continue
		}
		markType, _ := mark["type"].(string)
		var tag, openTag string
		switch markType {
		case "bold":
			tag = "strong"
		case "italic":
			tag = "em"
		case "strike":
			tag = "s"
		case "underline":
			tag = "u"
		case "code":
			tag = "code"
		case "link":
			tag = "a"
			openTag = `<a href="` + html.EscapeString(attrString(mark, "href")) + `">`
		default:
			continue
		}
		if openTag == "" {
			openTag = "<" + tag + ">"
		}
		open = append(open, openTag)
		close = append([]string{"</" + tag + ">"}, close...)
	}

	for _, o := range open {
		b.WriteString(o)
	}
	b.WriteString(html.EscapeString(text))
	for _, c := range close {
		b.WriteString(c)
	}
}
