package bubbletea

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/fwojciec/audit"
)

var _ MessageBlock = (*StagesBlock)(nil)

// StagesBlock renders the progress list of one assistant turn. Collapsed,
// it shows a one-line summary. Running stages of an open turn show the
// spinner frame; on a closed turn they keep a static marker.
type StagesBlock struct {
	stages    []audit.Stage
	open      bool
	collapsed bool
	spinner   string
	styles    Styles
}

// NewStagesBlock creates a StagesBlock. spinner is the current spinner frame.
func NewStagesBlock(stages []audit.Stage, open, collapsed bool, spinner string, styles Styles) *StagesBlock {
	return &StagesBlock{stages: stages, open: open, collapsed: collapsed, spinner: spinner, styles: styles}
}

func (b *StagesBlock) View(width int) string {
	if len(b.stages) == 0 {
		return ""
	}
	wrap := lipgloss.NewStyle().Width(width)

	if b.collapsed {
		done := 0
		for _, s := range b.stages {
			if s.State == audit.StageCompleted {
				done++
			}
		}
		summary := fmt.Sprintf("▶ %d/%d stages done", done, len(b.stages))
		return b.styles.Muted.Render(wrap.Render(summary))
	}

	lines := make([]string, 0, len(b.stages))
	for _, s := range b.stages {
		lines = append(lines, wrap.Render(b.stageLine(s)))
	}
	return strings.Join(lines, "\n")
}

func (b *StagesBlock) stageLine(s audit.Stage) string {
	if s.State == audit.StageCompleted {
		return b.styles.StageDone.Render("✓ "+s.Name) + b.styles.Muted.Render(" done")
	}
	marker := "•"
	if b.open && b.spinner != "" {
		marker = b.spinner
	}
	return b.styles.StageRunning.Render(marker+" "+s.Name) + b.styles.Muted.Render(" processing…")
}
