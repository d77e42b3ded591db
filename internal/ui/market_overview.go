package ui

import (
	"fmt"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/polyinsider/pulse/internal/store"
)

var marketHeaders = []string{"", "Market", "Category", "Price", "Volume", "Liquidity", "Updated"}

// MarketOverviewView is the market browser: the polled markets for the
// current category, with watched markets marked.
type MarketOverviewView struct {
	table   *tview.Table
	markets []store.Market
}

// NewMarketOverviewView creates a new market browser view.
func NewMarketOverviewView() *MarketOverviewView {
	table := tview.NewTable().
		SetBorders(false).
		SetFixed(1, 0).
		SetSelectable(true, false)

	table.SetTitle(" Markets ").SetBorder(true)
	setHeader(table, marketHeaders)

	return &MarketOverviewView{
		table: table,
	}
}

// Widget returns the tview primitive.
func (v *MarketOverviewView) Widget() tview.Primitive {
	return v.table
}

// Update replaces the listed markets.
func (v *MarketOverviewView) Update(markets []store.Market, category string, watching func(id string) bool) {
	v.markets = markets

	selected, _ := v.table.GetSelection()
	v.table.Clear()
	setHeader(v.table, marketHeaders)

	for i, m := range markets {
		row := i + 1

		mark := " "
		if watching != nil && watching(m.ID) {
			mark = "★"
		}
		status := m.Category
		if m.Closed {
			status = "closed"
		}

		cells := []string{
			mark,
			truncate(m.Question, 40),
			status,
			m.Price.StringFixed(3),
			"$" + m.Volume.StringFixed(0),
			"$" + m.Liquidity.StringFixed(0),
			formatTimeAgo(m.UpdatedAt),
		}

		for col, text := range cells {
			cell := tview.NewTableCell(text).SetAlign(tview.AlignLeft)
			if col == 0 {
				cell.SetTextColor(tcell.ColorGold)
			}
			if col == 1 {
				cell.SetExpansion(1)
			}
			v.table.SetCell(row, col, cell)
		}
	}

	if selected >= 1 && selected <= len(markets) {
		v.table.Select(selected, 0)
	}

	label := "all"
	if category != "" {
		label = category
	}
	v.table.SetTitle(fmt.Sprintf(" Markets [%s] (%d) ", label, len(markets)))
}

// Selected returns the highlighted market.
func (v *MarketOverviewView) Selected() (store.Market, bool) {
	row, _ := v.table.GetSelection()
	if row < 1 || row > len(v.markets) {
		return store.Market{}, false
	}
	return v.markets[row-1], true
}

// setHeader writes the header row of a table.
func setHeader(table *tview.Table, headers []string) {
	for col, header := range headers {
		cell := tview.NewTableCell(header).
			SetTextColor(tview.Styles.SecondaryTextColor).
			SetAlign(tview.AlignLeft).
			SetSelectable(false)
		table.SetCell(0, col, cell)
	}
}
