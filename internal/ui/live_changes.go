package ui

import (
	"fmt"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/polyinsider/pulse/internal/store"
)

var changeHeaders = []string{"Time", "Event", "Market", "Price", "Status"}

// LiveChangesView displays a scrolling feed of realtime market changes.
type LiveChangesView struct {
	table   *tview.Table
	changes []store.Change
	maxRows int
}

// NewLiveChangesView creates a new live changes view.
func NewLiveChangesView() *LiveChangesView {
	table := tview.NewTable().
		SetBorders(false).
		SetFixed(1, 0)

	table.SetTitle(" Live Changes ").SetBorder(true)
	setHeader(table, changeHeaders)

	return &LiveChangesView{
		table:   table,
		changes: make([]store.Change, 0, 100),
		maxRows: 100,
	}
}

// Widget returns the tview primitive.
func (v *LiveChangesView) Widget() tview.Primitive {
	return v.table
}

// AddChange adds a change to the top of the feed.
func (v *LiveChangesView) AddChange(change store.Change) {
	v.changes = append([]store.Change{change}, v.changes...)

	if len(v.changes) > v.maxRows {
		v.changes = v.changes[:v.maxRows]
	}

	v.updateTable()
}

// Refresh redraws the table.
func (v *LiveChangesView) Refresh() {
	v.updateTable()
}

// Len returns the number of changes shown.
func (v *LiveChangesView) Len() int {
	return len(v.changes)
}

func (v *LiveChangesView) updateTable() {
	v.table.Clear()
	setHeader(v.table, changeHeaders)

	for i, change := range v.changes {
		row := i + 1

		market, price, status := "?", "-", "-"
		if m := change.Market; m != nil {
			market = truncate(m.Question, 40)
			if market == "" {
				market = truncateID(m.ID)
			}
			price = m.Price.StringFixed(3)
			switch {
			case m.Closed:
				status = "closed"
			case m.Active:
				status = "active"
			}
		} else if id, ok := change.Record["id"].(string); ok {
			market = truncateID(id)
		}

		eventColor := tcell.ColorWhite
		switch change.Event {
		case store.EventInsert:
			eventColor = tcell.ColorGreen
		case store.EventDelete:
			eventColor = tcell.ColorRed
		}

		cells := []string{
			change.CommitTime.Format("15:04:05"),
			change.Event,
			market,
			price,
			status,
		}
		for col, text := range cells {
			cell := tview.NewTableCell(text).SetAlign(tview.AlignLeft)
			if col == 1 {
				cell.SetTextColor(eventColor)
			}
			if col == 2 {
				cell.SetExpansion(1)
			}
			v.table.SetCell(row, col, cell)
		}
	}

	v.table.SetTitle(fmt.Sprintf(" Live Changes (%d) ", len(v.changes)))
}
