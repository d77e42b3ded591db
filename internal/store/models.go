// Package store provides the market data models shared across pulse.
package store

import (
	"time"

	"github.com/shopspring/decimal"
)

// Market is a prediction market as returned by the market data API.
type Market struct {
	// ID is the market identifier
	ID string `json:"id"`

	// Question is the human readable market question
	Question string `json:"question"`

	// Slug is the URL-safe market name
	Slug string `json:"slug"`

	// Category groups markets (politics, sports, crypto, ...)
	Category string `json:"category"`

	Active bool `json:"active"`
	Closed bool `json:"closed"`

	// Price is the YES outcome price in the 0-1 range
	Price decimal.Decimal `json:"price"`

	// Volume and Liquidity are in USD
	Volume    decimal.Decimal `json:"volume"`
	Liquidity decimal.Decimal `json:"liquidity"`

	// TokenIDs are the outcome token identifiers
	TokenIDs []string `json:"token_ids"`

	UpdatedAt time.Time `json:"updated_at"`
}

// PricePoint is one observed market price.
type PricePoint struct {
	Price     decimal.Decimal
	Timestamp time.Time
}

// Trend filters breaking markets by direction.
type Trend string

const (
	TrendUp   Trend = "up"
	TrendDown Trend = "down"
	TrendAny  Trend = "any"
)

// Trends lists the accepted trend filters in display order.
var Trends = []Trend{TrendAny, TrendUp, TrendDown}

// Valid reports whether t is a known trend.
func (t Trend) Valid() bool {
	switch t {
	case TrendUp, TrendDown, TrendAny:
		return true
	}
	return false
}

// Matches reports whether a price change in percent moves in direction t.
func (t Trend) Matches(change decimal.Decimal) bool {
	switch t {
	case TrendUp:
		return change.IsPositive()
	case TrendDown:
		return change.IsNegative()
	default:
		return true
	}
}

// BreakingMarket is a market whose price moved sharply over a time range.
type BreakingMarket struct {
	Market

	// PreviousPrice is the price at the start of the range
	PreviousPrice decimal.Decimal `json:"previous_price"`

	// PriceChange is the move in percent of PreviousPrice
	PriceChange decimal.Decimal `json:"price_change"`

	Trend      Trend     `json:"trend"`
	DetectedAt time.Time `json:"detected_at"`
}

// Change events delivered by the realtime feed.
const (
	EventInsert = "INSERT"
	EventUpdate = "UPDATE"
	EventDelete = "DELETE"
)

// Change is one row change pushed by the realtime feed.
type Change struct {
	// Ref is the subscription reference the server echoed back, if any
	Ref string

	Table string

	// Event is INSERT, UPDATE or DELETE
	Event string

	// Market is set when Table is the markets table and Record decodes
	Market *Market

	// Record is the raw row
	Record map[string]interface{}

	CommitTime time.Time
}

// Signal kinds produced by the detector.
const (
	SignalSpike    = "SPIKE"    // price up by at least the threshold
	SignalDrop     = "DROP"     // price down by at least the threshold
	SignalSurge    = "SURGE"    // burst of changes on one market
	SignalResolved = "RESOLVED" // market closed
)

// Signal is a notable market event.
type Signal struct {
	Kind     string
	MarketID string
	Question string

	// Magnitude is the percent move for SPIKE/DROP and the change count for SURGE
	Magnitude decimal.Decimal

	Change     Change
	DetectedAt time.Time
}
