package ui

import (
	"fmt"

	"github.com/gdamore/tcell/v2"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/rivo/tview"

	"github.com/polyinsider/pulse/internal/store"
)

var breakingHeaders = []string{"Market", "Change", "Price", "From", "Volume"}

// BreakingFeedView lists markets with large recent moves. The border pulses
// when a market enters the feed.
type BreakingFeedView struct {
	table *tview.Table
	pulse *Pulse
	seen  map[string]bool
}

// NewBreakingFeedView creates a new breaking feed view. fps is the refresh
// rate the border pulse is stepped at.
func NewBreakingFeedView(fps int) *BreakingFeedView {
	table := tview.NewTable().
		SetBorders(false).
		SetFixed(1, 0)

	table.SetTitle(" Breaking ").SetBorder(true)
	setHeader(table, breakingHeaders)

	base := colorful.Color{R: 0.5, G: 0.5, B: 0.5}
	accent, _ := colorful.Hex("#f59e0b")

	return &BreakingFeedView{
		table: table,
		pulse: NewPulse(fps, base, accent),
		seen:  make(map[string]bool),
	}
}

// Widget returns the tview primitive.
func (v *BreakingFeedView) Widget() tview.Primitive {
	return v.table
}

// Update replaces the feed. It reports whether any market is new to the
// feed since the last update.
func (v *BreakingFeedView) Update(markets []store.BreakingMarket, trend store.Trend) bool {
	v.table.Clear()
	setHeader(v.table, breakingHeaders)

	fresh := false
	seen := make(map[string]bool, len(markets))
	for _, m := range markets {
		seen[m.ID] = true
		if !v.seen[m.ID] {
			fresh = true
		}
	}
	// the first batch only sets the baseline
	if len(v.seen) == 0 {
		fresh = false
	}
	v.seen = seen

	if fresh {
		v.pulse.Trigger()
	}

	v.table.SetTitle(fmt.Sprintf(" Breaking [%s] (%d) ", trend, len(markets)))

	if len(markets) == 0 {
		cell := tview.NewTableCell("No breaking markets...").
			SetAlign(tview.AlignCenter).
			SetExpansion(1)
		v.table.SetCell(1, 0, cell)
		return fresh
	}

	for i, m := range markets {
		row := i + 1

		changeColor := tcell.ColorWhite
		if m.PriceChange.IsPositive() {
			changeColor = tcell.ColorGreen
		} else if m.PriceChange.IsNegative() {
			changeColor = tcell.ColorRed
		}

		v.table.SetCell(row, 0, tview.NewTableCell(truncate(m.Question, 36)).
			SetAlign(tview.AlignLeft).
			SetExpansion(1))
		v.table.SetCell(row, 1, tview.NewTableCell(formatChange(m.PriceChange.InexactFloat64())).
			SetAlign(tview.AlignRight).
			SetTextColor(changeColor))
		v.table.SetCell(row, 2, tview.NewTableCell(m.Price.StringFixed(3)).
			SetAlign(tview.AlignRight))
		v.table.SetCell(row, 3, tview.NewTableCell(m.PreviousPrice.StringFixed(3)).
			SetAlign(tview.AlignRight))
		v.table.SetCell(row, 4, tview.NewTableCell("$"+m.Volume.StringFixed(0)).
			SetAlign(tview.AlignRight))
	}
	return fresh
}

// Tick steps the border pulse.
func (v *BreakingFeedView) Tick() {
	v.pulse.Step()
	v.table.SetBorderColor(v.pulse.Color())
}

func formatChange(pct float64) string {
	return fmt.Sprintf("%+.2f%%", pct)
}
