package store

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidQuery is wrapped by query validation errors.
var ErrInvalidQuery = errors.New("invalid query")

// Query limits.
const (
	DefaultMarketLimit   = 50
	MaxMarketLimit       = 500
	DefaultBreakingLimit = 20
	MaxBreakingLimit     = 100
)

// Breaking time ranges.
const (
	Range1h  = "1h"
	Range6h  = "6h"
	Range24h = "24h"
	Range7d  = "7d"
)

var timeRanges = map[string]time.Duration{
	Range1h:  time.Hour,
	Range6h:  6 * time.Hour,
	Range24h: 24 * time.Hour,
	Range7d:  7 * 24 * time.Hour,
}

// TimeRange returns the duration of a breaking time range name.
func TimeRange(name string) (time.Duration, error) {
	d, ok := timeRanges[name]
	if !ok {
		return 0, fmt.Errorf("%w: time range %q (want 1h, 6h, 24h or 7d)", ErrInvalidQuery, name)
	}
	return d, nil
}

// MarketQuery selects markets from the market data API.
type MarketQuery struct {
	Category     string
	Active       bool
	MinVolume    float64
	MinLiquidity float64
	Limit        int
	Offset       int
}

// Normalize fills defaults.
func (q MarketQuery) Normalize() MarketQuery {
	if q.Limit == 0 {
		q.Limit = DefaultMarketLimit
	}
	return q
}

// Validate checks the query bounds.
func (q MarketQuery) Validate() error {
	if q.Limit < 0 || q.Limit > MaxMarketLimit {
		return fmt.Errorf("%w: limit %d out of range 1-%d", ErrInvalidQuery, q.Limit, MaxMarketLimit)
	}
	if q.Offset < 0 {
		return fmt.Errorf("%w: negative offset %d", ErrInvalidQuery, q.Offset)
	}
	if q.MinVolume < 0 || q.MinLiquidity < 0 {
		return fmt.Errorf("%w: negative volume or liquidity threshold", ErrInvalidQuery)
	}
	return nil
}

// BreakingQuery selects markets with large recent price moves.
type BreakingQuery struct {
	// MinChange is the minimum absolute move in percent
	MinChange float64
	TimeRange string
	Trend     Trend
	Limit     int
}

// Normalize fills defaults.
func (q BreakingQuery) Normalize() BreakingQuery {
	if q.TimeRange == "" {
		q.TimeRange = Range24h
	}
	if q.Trend == "" {
		q.Trend = TrendAny
	}
	if q.Limit == 0 {
		q.Limit = DefaultBreakingLimit
	}
	return q
}

// Validate checks the query bounds.
func (q BreakingQuery) Validate() error {
	if _, err := TimeRange(q.TimeRange); err != nil {
		return err
	}
	if !q.Trend.Valid() {
		return fmt.Errorf("%w: trend %q (want up, down or any)", ErrInvalidQuery, q.Trend)
	}
	if q.MinChange < 0 {
		return fmt.Errorf("%w: negative min change %v", ErrInvalidQuery, q.MinChange)
	}
	if q.Limit < 0 || q.Limit > MaxBreakingLimit {
		return fmt.Errorf("%w: limit %d out of range 1-%d", ErrInvalidQuery, q.Limit, MaxBreakingLimit)
	}
	return nil
}
