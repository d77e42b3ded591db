package store

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestBreakingQueryDefaults(t *testing.T) {
	q := BreakingQuery{}.Normalize()

	if q.TimeRange != Range24h || q.Trend != TrendAny || q.Limit != DefaultBreakingLimit {
		t.Errorf("unexpected defaults: %+v", q)
	}
	if err := q.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestBreakingQueryValidate(t *testing.T) {
	tests := []struct {
		name string
		q    BreakingQuery
	}{
		{"bad range", BreakingQuery{TimeRange: "2h", Trend: TrendAny}},
		{"bad trend", BreakingQuery{TimeRange: Range1h, Trend: "sideways"}},
		{"negative change", BreakingQuery{TimeRange: Range1h, Trend: TrendUp, MinChange: -1}},
		{"limit too high", BreakingQuery{TimeRange: Range1h, Trend: TrendUp, Limit: 1000}},
	}

	for _, tt := range tests {
		if err := tt.q.Validate(); !errors.Is(err, ErrInvalidQuery) {
			t.Errorf("%s: expected ErrInvalidQuery, got %v", tt.name, err)
		}
	}
}

func TestMarketQueryValidate(t *testing.T) {
	if err := (MarketQuery{Active: true}).Normalize().Validate(); err != nil {
		t.Errorf("default query invalid: %v", err)
	}
	if err := (MarketQuery{Offset: -1}).Validate(); !errors.Is(err, ErrInvalidQuery) {
		t.Errorf("expected ErrInvalidQuery for negative offset, got %v", err)
	}
	if err := (MarketQuery{MinVolume: -5}).Validate(); !errors.Is(err, ErrInvalidQuery) {
		t.Errorf("expected ErrInvalidQuery for negative volume, got %v", err)
	}
}

func TestTimeRange(t *testing.T) {
	d, err := TimeRange(Range7d)
	if err != nil || d != 7*24*time.Hour {
		t.Errorf("TimeRange(7d) = %v, %v", d, err)
	}
	if _, err := TimeRange("1y"); err == nil {
		t.Error("expected error for 1y")
	}
}

func TestTrendMatches(t *testing.T) {
	up := decimal.NewFromFloat(4.2)
	down := decimal.NewFromFloat(-3)

	if !TrendUp.Matches(up) || TrendUp.Matches(down) {
		t.Error("TrendUp mismatch")
	}
	if !TrendDown.Matches(down) || TrendDown.Matches(up) {
		t.Error("TrendDown mismatch")
	}
	if !TrendAny.Matches(up) || !TrendAny.Matches(down) {
		t.Error("TrendAny should match everything")
	}
}
