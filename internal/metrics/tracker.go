// Package metrics provides real-time metrics tracking for the system.
package metrics

import (
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/polyinsider/pulse/internal/particle"
	"github.com/polyinsider/pulse/internal/store"
)

const (
	// Retention is how long price history is kept; it covers the longest
	// breaking time range.
	Retention = 7 * 24 * time.Hour

	// samplePeriod is the minimum spacing of unchanged price points.
	samplePeriod = time.Minute

	rateWindow = 60 * time.Second
	topMovers  = 10
)

var hundred = decimal.NewFromInt(100)

// Realtime connection states.
const (
	StatusConnected    = "connected"
	StatusDisconnected = "disconnected"
)

// MarketActivity tracks activity for a single market.
type MarketActivity struct {
	Market      store.Market
	ChangeCount int
	PricePoints []store.PricePoint
	LastUpdate  time.Time
}

// MetricsSnapshot is a point-in-time view of metrics.
type MetricsSnapshot struct {
	ChangesTotal   int64
	SignalsByType  map[string]int64
	ChangeRate     float64 // changes per second
	MarketCount    int
	TopMovers      []store.BreakingMarket
	Uptime         time.Duration
	RealtimeStatus string
	LastPoll       time.Time

	// Effects is keyed by engine name
	Effects       map[string]particle.Stats
	LiveParticles int
	DroppedFrames uint64
}

// Tracker provides thread-safe metrics tracking.
type Tracker struct {
	mu               sync.RWMutex
	now              func() time.Time
	changesTotal     int64
	changeTimestamps []time.Time
	signalsByType    map[string]int64
	markets          map[string]*MarketActivity
	startTime        time.Time
	realtimeStatus   string
	lastPoll         time.Time
	effects          map[string]particle.Stats
}

// NewTracker creates a new Tracker.
func NewTracker() *Tracker {
	return newTrackerWithClock(time.Now)
}

func newTrackerWithClock(now func() time.Time) *Tracker {
	return &Tracker{
		now:              now,
		changeTimestamps: make([]time.Time, 0, 1000),
		signalsByType:    make(map[string]int64),
		markets:          make(map[string]*MarketActivity),
		startTime:        now(),
		realtimeStatus:   StatusDisconnected,
		effects:          make(map[string]particle.Stats),
	}
}

// RecordMarkets records a polled market batch.
func (m *Tracker) RecordMarkets(markets []store.Market) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	for _, market := range markets {
		m.updateMarketLocked(market, now)
	}
	m.lastPoll = now
}

// RecordChange records a realtime change.
func (m *Tracker) RecordChange(change store.Change) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.changesTotal++

	m.changeTimestamps = append(m.changeTimestamps, now)
	cutoff := now.Add(-rateWindow)
	start := len(m.changeTimestamps)
	for i, ts := range m.changeTimestamps {
		if ts.After(cutoff) {
			start = i
			break
		}
	}
	m.changeTimestamps = m.changeTimestamps[start:]

	if change.Market == nil {
		return
	}
	if change.Event == store.EventDelete {
		delete(m.markets, change.Market.ID)
		return
	}
	activity := m.updateMarketLocked(*change.Market, now)
	activity.ChangeCount++
}

func (m *Tracker) updateMarketLocked(market store.Market, now time.Time) *MarketActivity {
	activity, exists := m.markets[market.ID]
	if !exists {
		activity = &MarketActivity{
			PricePoints: make([]store.PricePoint, 0, 64),
		}
		m.markets[market.ID] = activity
	}

	activity.Market = market
	activity.LastUpdate = now

	if !market.Price.IsPositive() {
		return activity
	}

	// Skip unchanged prices inside the sample period to bound history size.
	if n := len(activity.PricePoints); n > 0 {
		last := activity.PricePoints[n-1]
		if last.Price.Equal(market.Price) && now.Sub(last.Timestamp) < samplePeriod {
			return activity
		}
	}
	activity.PricePoints = append(activity.PricePoints, store.PricePoint{Price: market.Price, Timestamp: now})
	return activity
}

// IncrementSignal increments the counter for a specific signal kind.
func (m *Tracker) IncrementSignal(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.signalsByType[kind]++
}

// SetRealtimeStatus sets the realtime connection status.
func (m *Tracker) SetRealtimeStatus(status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.realtimeStatus = status
}

// SetEffectStats records the latest stats of a named effects engine.
func (m *Tracker) SetEffectStats(name string, stats particle.Stats) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.effects[name] = stats
}

// Market returns the last known state of a market.
func (m *Tracker) Market(id string) (store.Market, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	activity, ok := m.markets[id]
	if !ok {
		return store.Market{}, false
	}
	return activity.Market, true
}

// Breaking computes breaking markets from recorded price history: the move
// from the first price inside q's time range to the latest price. It is the
// local fallback for the breaking-markets endpoint.
func (m *Tracker) Breaking(q store.BreakingQuery) []store.BreakingMarket {
	q = q.Normalize()
	window, err := store.TimeRange(q.TimeRange)
	if err != nil {
		return nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.breakingLocked(q, window)
}

func (m *Tracker) breakingLocked(q store.BreakingQuery, window time.Duration) []store.BreakingMarket {
	now := m.now()
	cutoff := now.Add(-window)
	minChange := decimal.NewFromFloat(q.MinChange)

	var out []store.BreakingMarket
	for _, activity := range m.markets {
		points := activity.PricePoints
		if len(points) < 2 {
			continue
		}

		first := sort.Search(len(points), func(i int) bool {
			return !points[i].Timestamp.Before(cutoff)
		})
		if first >= len(points)-1 {
			continue
		}

		prev := points[first].Price
		last := points[len(points)-1].Price
		if !prev.IsPositive() {
			continue
		}

		change := last.Sub(prev).Div(prev).Mul(hundred).Round(2)
		if change.IsZero() || change.Abs().LessThan(minChange) || !q.Trend.Matches(change) {
			continue
		}

		trend := store.TrendUp
		if change.IsNegative() {
			trend = store.TrendDown
		}

		out = append(out, store.BreakingMarket{
			Market:        activity.Market,
			PreviousPrice: prev,
			PriceChange:   change,
			Trend:         trend,
			DetectedAt:    now,
		})
	}

	sort.Slice(out, func(i, j int) bool {
		ai, aj := out[i].PriceChange.Abs(), out[j].PriceChange.Abs()
		if !ai.Equal(aj) {
			return ai.GreaterThan(aj)
		}
		return out[i].ID < out[j].ID
	})

	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out
}

// Snapshot returns a point-in-time snapshot of metrics.
func (m *Tracker) Snapshot() MetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	now := m.now()

	// Changes per second over the rate window
	changeRate := 0.0
	if len(m.changeTimestamps) > 0 {
		duration := now.Sub(m.changeTimestamps[0]).Seconds()
		if duration < 1 {
			duration = 1
		}
		changeRate = float64(len(m.changeTimestamps)) / duration
	}

	signalsCopy := make(map[string]int64, len(m.signalsByType))
	for k, v := range m.signalsByType {
		signalsCopy[k] = v
	}

	effects := make(map[string]particle.Stats, len(m.effects))
	live := 0
	var dropped uint64
	for name, s := range m.effects {
		effects[name] = s
		live += s.Live
		dropped += s.DroppedFrames
	}

	movers := m.breakingLocked(store.BreakingQuery{TimeRange: store.Range1h, Trend: store.TrendAny, Limit: topMovers}, time.Hour)

	return MetricsSnapshot{
		ChangesTotal:   m.changesTotal,
		SignalsByType:  signalsCopy,
		ChangeRate:     changeRate,
		MarketCount:    len(m.markets),
		TopMovers:      movers,
		Uptime:         now.Sub(m.startTime),
		RealtimeStatus: m.realtimeStatus,
		LastPoll:       m.lastPoll,
		Effects:        effects,
		LiveParticles:  live,
		DroppedFrames:  dropped,
	}
}

// Cleanup removes price history older than Retention and markets with no
// update within it.
func (m *Tracker) Cleanup() {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := m.now().Add(-Retention)

	for id, activity := range m.markets {
		if activity.LastUpdate.Before(cutoff) {
			delete(m.markets, id)
			continue
		}
		start := sort.Search(len(activity.PricePoints), func(i int) bool {
			return !activity.PricePoints[i].Timestamp.Before(cutoff)
		})
		if start > 0 {
			activity.PricePoints = append([]store.PricePoint(nil), activity.PricePoints[start:]...)
		}
	}
}
