package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

// Level is the severity of a message
type Level int

const (
	LevelError Level = iota
	LevelWarning
	LevelInfo
)

// Message is a problem report with optional details and follow-up hints
type Message struct {
	Level   Level
	Title   string
	Details []string
	// Suggestions are printed as "Did you mean: a, b?"
	Suggestions []string
	Hints       []string
	NoColor     bool
}

// Format renders the message
//
//	✗ SCHEMA NOT FOUND: prodcut
//	   Did you mean: product?
//
//	   → List schemas: halopress schema list
func (m Message) Format() string {
	var (
		b      strings.Builder
		head   *color.Color
		body   *color.Color
		symbol string
	)
	switch m.Level {
	case LevelWarning:
		head, body, symbol = paint(m.NoColor, color.FgYellow, color.Bold), paint(m.NoColor, color.FgYellow), "!"
	case LevelInfo:
		head, body, symbol = paint(m.NoColor, color.FgCyan, color.Bold), paint(m.NoColor, color.FgCyan), "i"
	default:
		head, body, symbol = paint(m.NoColor, color.FgRed, color.Bold), paint(m.NoColor, color.FgRed), "✗"
	}

	head.Fprintf(&b, "%s %s\n", symbol, m.Title)
	for _, d := range m.Details {
		body.Fprintf(&b, "   %s\n", d)
	}
	if len(m.Suggestions) > 0 {
		paint(m.NoColor, color.FgYellow).Fprintf(&b, "   Did you mean: %s?\n", strings.Join(m.Suggestions, ", "))
	}
	if len(m.Hints) > 0 {
		b.WriteString("\n")
		hint := paint(m.NoColor, color.FgCyan)
		for _, h := range m.Hints {
			hint.Fprintf(&b, "   → %s\n", h)
		}
	}
	return b.String()
}

// Write prints the message to w
func (m Message) Write(w io.Writer) {
	fmt.Fprint(w, m.Format())
}

// Success prints a green check line
func Success(w io.Writer, noColor bool, format string, args ...any) {
	paint(noColor, color.FgGreen, color.Bold).Fprintf(w, "✓ "+format+"\n", args...)
}

// Warn prints a yellow warning line
func Warn(w io.Writer, noColor bool, format string, args ...any) {
	paint(noColor, color.FgYellow).Fprintf(w, "! "+format+"\n", args...)
}
