package ui

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/fatih/color"
)

// Table renders rows under a bold header, columns padded to the widest cell
type Table struct {
	w       io.Writer
	headers []string
	rows    [][]string
	noColor bool
}

// NewTable creates a table with the given headers
func NewTable(w io.Writer, noColor bool, headers ...string) *Table {
	return &Table{w: w, headers: headers, noColor: noColor}
}

// AddRow appends a row; missing cells render empty
func (t *Table) AddRow(cells ...string) {
	t.rows = append(t.rows, cells)
}

// Len returns the number of rows
func (t *Table) Len() int {
	return len(t.rows)
}

// Render writes the table. Nothing is written when there are no headers.
func (t *Table) Render() {
	if len(t.headers) == 0 {
		return
	}

	widths := make([]int, len(t.headers))
	for i, h := range t.headers {
		widths[i] = utf8.RuneCountInString(h)
	}
	for _, row := range t.rows {
		for i := 0; i < len(widths) && i < len(row); i++ {
			if n := utf8.RuneCountInString(row[i]); n > widths[i] {
				widths[i] = n
			}
		}
	}

	head := paint(t.noColor, color.Bold, color.FgCyan)
	rule := paint(t.noColor, color.FgHiBlack)

	t.line(widths, t.headers, head)
	seps := make([]string, len(widths))
	for i, n := range widths {
		seps[i] = strings.Repeat("─", n)
	}
	t.line(widths, seps, rule)
	for _, row := range t.rows {
		t.line(widths, row, nil)
	}
}

func (t *Table) line(widths []int, cells []string, c *color.Color) {
	parts := make([]string, len(widths))
	for i := range widths {
		cell := ""
		if i < len(cells) {
			cell = cells[i]
		}
		if i < len(widths)-1 {
			cell = pad(cell, widths[i])
		}
		parts[i] = cell
	}
	text := strings.Join(parts, "  ")
	if c != nil {
		c.Fprintln(t.w, text)
		return
	}
	fmt.Fprintln(t.w, text)
}

func pad(s string, width int) string {
	n := utf8.RuneCountInString(s)
	if n >= width {
		return s
	}
	return s + strings.Repeat(" ", width-n)
}

func paint(noColor bool, attrs ...color.Attribute) *color.Color {
	c := color.New(attrs...)
	if noColor {
		c.DisableColor()
	}
	return c
}

// Pairs renders aligned "key: value" lines
type Pairs struct {
	w       io.Writer
	keys    []string
	values  []string
	noColor bool
}

// NewPairs creates an empty key/value listing
func NewPairs(w io.Writer, noColor bool) *Pairs {
	return &Pairs{w: w, noColor: noColor}
}

// Add appends a pair
func (p *Pairs) Add(key string, value any) {
	p.keys = append(p.keys, key)
	p.values = append(p.values, fmt.Sprint(value))
}

// Render writes the pairs
func (p *Pairs) Render() {
	width := 0
	for _, k := range p.keys {
		if n := utf8.RuneCountInString(k) + 1; n > width {
			width = n
		}
	}
	key := paint(p.noColor, color.FgCyan)
	for i, k := range p.keys {
		key.Fprint(p.w, pad(k+":", width))
		fmt.Fprintf(p.w, " %s\n", p.values[i])
	}
}

// Header writes an underlined title
func Header(w io.Writer, title string, noColor bool) {
	paint(noColor, color.Bold, color.FgCyan).Fprintln(w, title)
	paint(noColor, color.FgHiBlack).Fprintln(w, strings.Repeat("─", utf8.RuneCountInString(title)))
}
