// Package markdown renders audit reports to ANSI-styled terminal output
// using goldmark for parsing and lipgloss for styling.
//
// Reports are GitHub-flavored: pipe tables and strikethrough are parsed in
// addition to CommonMark.
package markdown

import "github.com/fwojciec/audit"

const defaultWidth = 80

// Render parses markdown source and returns ANSI-styled terminal output.
// Paragraphs, quotes and list items are word-wrapped to width. Code blocks
// and tables are rendered without reflow.
func Render(source string, width int, theme audit.Theme) string {
	if source == "" {
		return ""
	}
	if width <= 0 {
		width = defaultWidth
	}
	r := newRenderer(theme)
	return r.render([]byte(source), width)
}
