package ui

import (
	"fmt"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/polyinsider/pulse/internal/store"
)

// SignalAlerterView displays detected market signals.
type SignalAlerterView struct {
	list     *tview.List
	signals  []store.Signal
	maxItems int
}

// NewSignalAlerterView creates a new signal alerter view.
func NewSignalAlerterView() *SignalAlerterView {
	list := tview.NewList().
		ShowSecondaryText(true)

	list.SetTitle(" Signal Alerts ").SetBorder(true)
	list.SetMainTextColor(tcell.ColorWhite)

	v := &SignalAlerterView{
		list:     list,
		signals:  make([]store.Signal, 0, 50),
		maxItems: 50,
	}
	v.rebuildList()
	return v
}

// Widget returns the tview primitive.
func (v *SignalAlerterView) Widget() tview.Primitive {
	return v.list
}

// AddSignal adds a signal to the top of the list.
func (v *SignalAlerterView) AddSignal(signal store.Signal) {
	v.signals = append([]store.Signal{signal}, v.signals...)

	if len(v.signals) > v.maxItems {
		v.signals = v.signals[:v.maxItems]
	}

	v.rebuildList()
}

// Refresh redraws the list.
func (v *SignalAlerterView) Refresh() {
	v.rebuildList()
}

// Len returns the number of signals listed.
func (v *SignalAlerterView) Len() int {
	return len(v.signals)
}

func (v *SignalAlerterView) rebuildList() {
	v.list.Clear()

	if len(v.signals) == 0 {
		v.list.AddItem("No signals detected yet", "", 0, nil)
		v.list.SetTitle(" Signal Alerts ")
		return
	}

	for _, signal := range v.signals {
		mainText, secondaryText := formatSignal(signal)
		v.list.AddItem(mainText, secondaryText, 0, nil)
	}

	v.list.SetTitle(fmt.Sprintf(" Signal Alerts (%d) ", len(v.signals)))
}

// formatSignal formats a signal as tview markup.
func formatSignal(signal store.Signal) (string, string) {
	var icon, color string

	switch signal.Kind {
	case store.SignalSpike:
		icon, color = "▲", "green"
	case store.SignalDrop:
		icon, color = "▼", "red"
	case store.SignalSurge:
		icon, color = "⚡", "yellow"
	case store.SignalResolved:
		icon, color = "✓", "aqua"
	default:
		icon, color = "?", "white"
	}

	timeStr := signal.DetectedAt.Format("15:04:05")
	mainText := fmt.Sprintf("%s [%s]%s %s[-]", timeStr, color, icon, signal.Kind)

	question := signal.Question
	if question == "" {
		question = truncateID(signal.MarketID)
	}

	var detail string
	switch signal.Kind {
	case store.SignalSpike, store.SignalDrop:
		detail = formatChange(signal.Magnitude.InexactFloat64())
	case store.SignalSurge:
		detail = fmt.Sprintf("%s changes", signal.Magnitude.String())
	case store.SignalResolved:
		detail = "closed"
	}

	secondaryText := truncate(question, 48)
	if detail != "" {
		secondaryText += " | " + detail
	}
	return mainText, secondaryText
}

// truncateID shortens a market ID for display.
func truncateID(id string) string {
	if len(id) <= 16 {
		return id
	}
	return id[:8] + "..." + id[len(id)-4:]
}

// truncate shortens s to at most max runes.
func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	if max <= 3 {
		return string(r[:max])
	}
	return string(r[:max-3]) + "..."
}
