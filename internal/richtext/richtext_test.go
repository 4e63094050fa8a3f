package richtext

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, raw string) any {
	t.Helper()
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	var v any
	require.NoError(t, dec.Decode(&v))
	return v
}

const sampleDoc = `{
	"type": "doc",
	"content": [
		{"type": "heading", "attrs": {"level": 2}, "content": [{"type": "text", "text": "Title"}]},
		{"type": "paragraph", "content": [
			{"type": "text", "text": "Hello "},
			{"type": "text", "text": "world", "marks": [{"type": "bold"}, {"type": "italic"}]},
			{"type": "hardBreak"},
			{"type": "text", "text": "a < b"}
		]},
		{"type": "bulletList", "content": [
			{"type": "listItem", "content": [{"type": "paragraph", "content": [{"type": "text", "text": "one"}]}]}
		]}
	]
}`

func TestHTML_RendersDocument(t *testing.T) {
	out, ok := HTML(decode(t, sampleDoc))
	require.True(t, ok)

	assert.Equal(t,
		"<h2>Title</h2><p>Hello <strong><em>world</em></strong><br>a &lt; b</p><ul><li><p>one</p></li></ul>",
		out)
}

func TestHTML_Sanitizes(t *testing.T) {
	doc := decode(t, `{"type":"doc","content":[{"type":"paragraph","content":[
		{"type":"text","text":"click","marks":[{"type":"link","attrs":{"href":"javascript:alert(1)"}}]}
	]}]}`)

	out, ok := HTML(doc)
	require.True(t, ok)
	assert.NotContains(t, out, "javascript:")
	assert.Contains(t, out, "click")

	out, ok = HTML(`<p onclick="x()">hi</p><script>alert(1)</script>`)
	require.True(t, ok)
	assert.Equal(t, "<p>hi</p>", out)
}

func TestHTML_KeepsSafeLinks(t *testing.T) {
	doc := decode(t, `[{"type":"text","text":"site","marks":[{"type":"link","attrs":{"href":"https://example.com"}}]}]`)

	out, ok := HTML(doc)
	require.True(t, ok)
	assert.Contains(t, out, `href="https://example.com"`)
	assert.Contains(t, out, ">site</a>")
}

func TestHTML_TextAlign(t *testing.T) {
	doc := decode(t, `{"type":"paragraph","attrs":{"textAlign":"center"},"content":[{"type":"text","text":"mid"}]}`)

	out, ok := HTML(doc)
	require.True(t, ok)
	assert.Contains(t, out, "text-align")
	assert.Contains(t, out, "mid</p>")
}

func TestHTML_UnknownNodesRenderChildren(t *testing.T) {
	doc := decode(t, `{"type":"callout","content":[{"type":"text","text":"inside"}]}`)

	out, ok := HTML(doc)
	require.True(t, ok)
	assert.Equal(t, "inside", out)
}

func TestHTML_RejectsOtherShapes(t *testing.T) {
	for _, v := range []any{nil, true, json.Number("3")} {
		_, ok := HTML(v)
		assert.False(t, ok, "value %v", v)
	}
}

func TestPlainText(t *testing.T) {
	tests := []struct {
		name  string
		value any
		want  string
	}{
		{"document", decode(t, sampleDoc), "Title Hello  world a < b one"},
		{"html string", "<p>Hello <b>there</b> &amp; you</p>", "Hello there & you"},
		{"array of nodes", decode(t, `[{"text":"a"},{"content":[{"text":"b"}]}]`), "a b"},
		{"nil", nil, ""},
		{"number", json.Number("4"), ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PlainText(tt.value))
		})
	}
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "a b c", Normalize("  a \n\t b   c "))
	assert.Equal(t, "", Normalize(" \n "))
}

func TestStripHTML(t *testing.T) {
	assert.Equal(t, "x y", StripHTML("<div>x <i>y</i></div>"))
}
