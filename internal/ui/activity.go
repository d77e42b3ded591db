package ui

import (
	"sync"
	"time"

	"github.com/polyinsider/pulse/internal/event"
)

// ActivityCounts is a copy of what Activity has seen.
type ActivityCounts struct {
	RunningEngines  int
	Bursts          int
	Celebrated      int
	MarketBatches   int
	BreakingBatches int
	LastEvent       time.Time
}

// Activity counts dashboard events published on the bus.
type Activity struct {
	mu      sync.Mutex
	running map[string]bool
	counts  ActivityCounts
}

// NewActivity creates an empty counter.
func NewActivity() *Activity {
	return &Activity{running: make(map[string]bool)}
}

// Attach subscribes to every event Activity counts. The returned function
// removes all of the subscriptions.
func (a *Activity) Attach(bus *event.Bus) (detach func()) {
	types := []event.Type{
		event.EffectsStarted,
		event.EffectsStopped,
		event.EffectsDrained,
		event.SignalDetected,
		event.MarketsUpdated,
		event.BreakingUpdated,
	}

	unsubs := make([]func(), 0, len(types))
	for _, t := range types {
		unsubs = append(unsubs, bus.Subscribe(t, a.handle))
	}
	return func() {
		for _, unsub := range unsubs {
			unsub()
		}
	}
}

func (a *Activity) handle(e event.Event) {
	a.mu.Lock()
	defer a.mu.Unlock()

	switch e.Type {
	case event.EffectsStarted:
		if name, ok := e.Data.(string); ok {
			a.running[name] = true
		}
	case event.EffectsStopped:
		if name, ok := e.Data.(string); ok {
			delete(a.running, name)
		}
	case event.EffectsDrained:
		a.counts.Bursts++
	case event.SignalDetected:
		a.counts.Celebrated++
	case event.MarketsUpdated:
		a.counts.MarketBatches++
	case event.BreakingUpdated:
		a.counts.BreakingBatches++
	}
	a.counts.RunningEngines = len(a.running)
	a.counts.LastEvent = e.At
}

// MarkRunning records engines that started before Attach.
func (a *Activity) MarkRunning(names ...string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, name := range names {
		a.running[name] = true
	}
	a.counts.RunningEngines = len(a.running)
}

// Counts returns the current counts.
func (a *Activity) Counts() ActivityCounts {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.counts
}
