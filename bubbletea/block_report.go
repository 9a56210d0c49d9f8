package bubbletea

import (
	"strings"

	"github.com/fwojciec/audit"
	"github.com/fwojciec/audit/markdown"
)

var _ MessageBlock = (*ReportBlock)(nil)

const (
	placeholderPending = "…"
	placeholderEmpty   = "(no response)"
)

// ReportBlock renders the content of an assistant turn as markdown. Each
// final event replaces the whole text, so the block keeps one rendering per
// width and drops it whenever the text changes.
type ReportBlock struct {
	content string
	open    bool
	theme   audit.Theme
	styles  Styles

	byWidth map[int]string
}

// NewReportBlock creates an empty ReportBlock.
func NewReportBlock(theme audit.Theme, styles Styles) *ReportBlock {
	return &ReportBlock{theme: theme, styles: styles, byWidth: make(map[int]string)}
}

// Set replaces the text and open flag of the block.
func (b *ReportBlock) Set(content string, open bool) {
	if content != b.content || open != b.open {
		clear(b.byWidth)
	}
	b.content = content
	b.open = open
}

func (b *ReportBlock) View(width int) string {
	if b.content == "" {
		if b.open {
			return b.styles.Muted.Render(placeholderPending)
		}
		return b.styles.Muted.Render(placeholderEmpty)
	}
	if cached, ok := b.byWidth[width]; ok {
		return cached
	}
	src := b.content
	if b.open && hasUnclosedFence(src) {
		// Close the fence only for rendering so partial reports display safely.
		src += "\n```"
	}
	rendered := markdown.Render(src, width, b.theme)
	b.byWidth[width] = rendered
	return rendered
}

// hasUnclosedFence detects an unclosed fenced code block by counting
// "```" occurrences.
func hasUnclosedFence(s string) bool {
	return strings.Count(s, "```")%2 == 1
}
