// Package detector turns realtime market changes into signals.
package detector

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/polyinsider/pulse/internal/config"
	"github.com/polyinsider/pulse/internal/store"
)

var hundred = decimal.NewFromInt(100)

// Detector applies rules to realtime changes.
type Detector struct {
	cfg          *config.Config
	burstTracker *BurstTracker
	now          func() time.Time

	mu         sync.Mutex
	lastPrices map[string]decimal.Decimal // market ID -> last price
	closed     map[string]bool            // market ID -> closed when last seen
}

// NewDetector creates a new Detector.
func NewDetector(cfg *config.Config) *Detector {
	return &Detector{
		cfg:          cfg,
		burstTracker: NewBurstTracker(cfg.BurstWindow),
		now:          time.Now,
		lastPrices:   make(map[string]decimal.Decimal),
		closed:       make(map[string]bool),
	}
}

// Observe records polled market state without producing signals, so that the
// first realtime update of a market has a baseline.
func (d *Detector) Observe(markets []store.Market) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, m := range markets {
		if m.Price.IsPositive() {
			d.lastPrices[m.ID] = m.Price
		}
		d.closed[m.ID] = m.Closed
	}
}

// Detect analyzes a change and returns any signals found.
func (d *Detector) Detect(change store.Change) []store.Signal {
	id := marketID(change)
	if id == "" {
		return nil
	}

	var signals []store.Signal
	newSignal := func(kind string, magnitude decimal.Decimal) store.Signal {
		s := store.Signal{
			Kind:       kind,
			MarketID:   id,
			Magnitude:  magnitude,
			Change:     change,
			DetectedAt: d.now(),
		}
		if change.Market != nil {
			s.Question = change.Market.Question
		}
		return s
	}

	if change.Event == store.EventDelete {
		d.forget(id)
		return nil
	}

	if m := change.Market; m != nil {
		d.mu.Lock()
		lastPrice, hasPrice := d.lastPrices[id]
		if m.Price.IsPositive() {
			d.lastPrices[id] = m.Price
		}
		wasClosed := d.closed[id]
		d.closed[id] = m.Closed
		d.mu.Unlock()

		// Check 1: price move against the last seen price
		if hasPrice && lastPrice.IsPositive() && m.Price.IsPositive() {
			pct := m.Price.Sub(lastPrice).Div(lastPrice).Mul(hundred).Round(2)
			threshold := decimal.NewFromFloat(d.cfg.BreakingMinChange)
			if pct.Abs().GreaterThanOrEqual(threshold) {
				kind := store.SignalSpike
				if pct.IsNegative() {
					kind = store.SignalDrop
				}
				signals = append(signals, newSignal(kind, pct))
			}
		}

		// Check 2: resolution
		if m.Closed && !wasClosed {
			signals = append(signals, newSignal(store.SignalResolved, decimal.Zero))
		}
	}

	// Check 3: surge of changes on one market, reported when the count
	// reaches the threshold
	count := d.burstTracker.Record(id)
	if count == d.cfg.BurstCount {
		signals = append(signals, newSignal(store.SignalSurge, decimal.NewFromInt(int64(count))))
	}

	return signals
}

// Cleanup drops burst history outside the window.
func (d *Detector) Cleanup() {
	d.burstTracker.Cleanup()
}

func (d *Detector) forget(id string) {
	d.mu.Lock()
	delete(d.lastPrices, id)
	delete(d.closed, id)
	d.mu.Unlock()
}

func marketID(change store.Change) string {
	if change.Market != nil && change.Market.ID != "" {
		return change.Market.ID
	}
	if id, ok := change.Record["id"].(string); ok {
		return id
	}
	return ""
}
