package bubbletea_test

import (
	"strings"
	"testing"

	"github.com/fwojciec/audit"
	bt "github.com/fwojciec/audit/bubbletea"
	"github.com/stretchr/testify/assert"
)

func TestUserMessageBlock_View(t *testing.T) {
	t.Parallel()

	block := bt.NewUserMessageBlock("check clause 4", bt.NewStyles(audit.DefaultTheme()))
	assert.Equal(t, "> check clause 4", strings.TrimRight(stripANSI(block.View(40)), " "))
}

func TestStagesBlock_View(t *testing.T) {
	t.Parallel()

	styles := bt.NewStyles(audit.DefaultTheme())
	stages := []audit.Stage{
		{Name: "Analyzing Strategy & Guidelines", State: audit.StageCompleted},
		{Name: "Cross-Referencing Evidence", State: audit.StageRunning},
	}

	t.Run("expanded open turn shows spinner frame", func(t *testing.T) {
		t.Parallel()
		view := stripANSI(bt.NewStagesBlock(stages, true, false, "⠋", styles).View(80))
		lines := strings.Split(view, "\n")
		assert.Len(t, lines, 2)
		assert.Equal(t, "✓ Analyzing Strategy & Guidelines done", strings.TrimRight(lines[0], " "))
		assert.Equal(t, "⠋ Cross-Referencing Evidence processing…", strings.TrimRight(lines[1], " "))
	})

	t.Run("closed turn keeps a static marker", func(t *testing.T) {
		t.Parallel()
		view := stripANSI(bt.NewStagesBlock(stages, false, false, "⠋", styles).View(80))
		assert.Contains(t, view, "• Cross-Referencing Evidence processing…")
		assert.NotContains(t, view, "⠋")
	})

	t.Run("collapsed shows summary", func(t *testing.T) {
		t.Parallel()
		view := stripANSI(bt.NewStagesBlock(stages, true, true, "⠋", styles).View(80))
		assert.Equal(t, "▶ 1/2 stages done", strings.TrimRight(view, " "))
	})

	t.Run("no stages renders nothing", func(t *testing.T) {
		t.Parallel()
		assert.Empty(t, bt.NewStagesBlock(nil, true, false, "⠋", styles).View(80))
	})
}

func TestReportBlock_View(t *testing.T) {
	t.Parallel()

	theme := audit.DefaultTheme()
	styles := bt.NewStyles(theme)

	t.Run("pending placeholder while open", func(t *testing.T) {
		t.Parallel()
		b := bt.NewReportBlock(theme, styles)
		b.Set("", true)
		assert.Equal(t, "…", stripANSI(b.View(80)))
	})

	t.Run("empty placeholder once closed", func(t *testing.T) {
		t.Parallel()
		b := bt.NewReportBlock(theme, styles)
		b.Set("", false)
		assert.Equal(t, "(no response)", stripANSI(b.View(80)))
	})

	t.Run("renders markdown", func(t *testing.T) {
		t.Parallel()
		b := bt.NewReportBlock(theme, styles)
		b.Set("## Verdict\n\n**Compliant** with minor gaps.", false)
		view := stripANSI(b.View(80))
		assert.Contains(t, view, "Verdict")
		assert.Contains(t, view, "Compliant with minor gaps.")
		assert.NotContains(t, view, "**")
	})

	t.Run("replacement invalidates cached rendering", func(t *testing.T) {
		t.Parallel()
		b := bt.NewReportBlock(theme, styles)
		b.Set("Draft", true)
		assert.Contains(t, stripANSI(b.View(80)), "Draft")
		b.Set("Final", true)
		view := stripANSI(b.View(80))
		assert.Contains(t, view, "Final")
		assert.NotContains(t, view, "Draft")
	})

	t.Run("unclosed fence renders while open", func(t *testing.T) {
		t.Parallel()
		b := bt.NewReportBlock(theme, styles)
		b.Set("Evidence:\n\n```\nline one", true)
		view := stripANSI(b.View(80))
		assert.Contains(t, view, "│ line one")
	})
}
