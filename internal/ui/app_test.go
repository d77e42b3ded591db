package ui

import (
	"strings"
	"testing"
	"time"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/shopspring/decimal"

	"github.com/polyinsider/pulse/internal/event"
	"github.com/polyinsider/pulse/internal/particle"
	"github.com/polyinsider/pulse/internal/settings"
	"github.com/polyinsider/pulse/internal/store"
)

type fakeFeed struct {
	query    store.MarketQuery
	breaking store.BreakingQuery
	triggers int
}

func (f *fakeFeed) Query() store.MarketQuery { return f.query }
func (f *fakeFeed) SetQuery(q store.MarketQuery) { f.query = q }
func (f *fakeFeed) BreakingQuery() store.BreakingQuery { return f.breaking }
func (f *fakeFeed) SetBreakingQuery(q store.BreakingQuery) { f.breaking = q }
func (f *fakeFeed) Trigger() { f.triggers++ }

func newTestApp(t *testing.T, prefs settings.Preferences) (*App, *fakeFeed, *settings.Manager) {
	t.Helper()
	feed := &fakeFeed{query: store.MarketQuery{Limit: 10}, breaking: store.BreakingQuery{TimeRange: store.Range24h}}
	s := settings.NewManager(nil)
	if err := s.Update(func(p *settings.Preferences) { *p = prefs }); err != nil {
		t.Fatalf("Update: %v", err)
	}

	effects, _ := newTestEffects(t, false)
	a := NewApp(Options{
		Feed:           feed,
		Settings:       s,
		Effects:        effects,
		EffectsAllowed: true,
	})
	t.Cleanup(a.cancel)
	return a, feed, s
}

func TestAppRestoresPreferences(t *testing.T) {
	prefs := settings.Defaults()
	prefs.Category = "crypto"
	prefs.Trend = store.TrendDown
	prefs.AmbientSnow = true

	a, feed, _ := newTestApp(t, prefs)

	if feed.query.Category != "crypto" {
		t.Errorf("Expected category crypto applied to the feed, got %q", feed.query.Category)
	}
	if feed.breaking.Trend != store.TrendDown {
		t.Errorf("Expected trend down applied to the feed, got %q", feed.breaking.Trend)
	}
	if !a.effects.Enabled() || !a.effects.Ambient() {
		t.Error("Expected effects and ambient snow restored")
	}
}

func TestAppCategoryAndTrendCycle(t *testing.T) {
	a, feed, s := newTestApp(t, settings.Defaults())

	if !a.handleRune('c') {
		t.Fatal("Expected c to be handled")
	}
	if feed.query.Category != DefaultCategories[1] || feed.triggers != 1 {
		t.Errorf("Expected category %q and one trigger, got %q / %d", DefaultCategories[1], feed.query.Category, feed.triggers)
	}
	if s.Get().Category != DefaultCategories[1] {
		t.Error("Expected category to be persisted")
	}

	a.handleRune('t')
	if feed.breaking.Trend != store.TrendUp {
		t.Errorf("Expected trend up, got %q", feed.breaking.Trend)
	}
	a.handleRune('t')
	a.handleRune('t')
	if feed.breaking.Trend != store.TrendAny || s.Get().Trend != store.TrendAny {
		t.Errorf("Expected trend to wrap to any, got %q", feed.breaking.Trend)
	}

	for range DefaultCategories[1:] {
		a.handleRune('c')
	}
	if feed.query.Category != "" {
		t.Errorf("Expected category to wrap to all, got %q", feed.query.Category)
	}
}

func TestAppToggleEffects(t *testing.T) {
	a, _, s := newTestApp(t, settings.Defaults())

	if !a.effects.Enabled() {
		t.Fatal("Expected effects on by default")
	}
	a.handleRune('e')
	if a.effects.Enabled() || s.Get().EffectsEnabled {
		t.Error("Expected effects off and persisted")
	}

	a.handleRune('a')
	if !a.effects.Ambient() || !s.Get().AmbientSnow {
		t.Error("Expected ambient snow on and persisted")
	}

	a.opts.EffectsAllowed = false
	a.handleRune('e')
	if a.effects.Enabled() {
		t.Error("Expected the toggle to do nothing when effects are disabled by config")
	}
}

func TestAppSignalPlaysEffectAndPublishes(t *testing.T) {
	a, _, _ := newTestApp(t, settings.Defaults())

	var got []store.Signal
	unsubscribe := a.opts.Bus.Subscribe(event.SignalDetected, func(e event.Event) {
		got = append(got, e.Data.(store.Signal))
	})
	defer unsubscribe()

	a.handleSignal(store.Signal{Kind: store.SignalResolved, MarketID: "m1", DetectedAt: time.Now()})

	if len(got) != 1 || got[0].MarketID != "m1" {
		t.Errorf("Expected one published signal, got %v", got)
	}
	if a.effects.Stats()[particle.PresetFireworks].Live == 0 {
		t.Error("Expected fireworks for a resolved market")
	}
	if n := a.activity.Counts().Celebrated; n != 1 {
		t.Errorf("Expected the stats panel to count 1 celebrated signal, got %d", n)
	}
}

func TestAppStopDetachesActivity(t *testing.T) {
	a, _, _ := newTestApp(t, settings.Defaults())

	a.showMarkets([]store.Market{{ID: "m1", Question: "Q", Price: decimal.RequireFromString("0.5")}})
	if n := a.activity.Counts().MarketBatches; n != 1 {
		t.Fatalf("Expected 1 market batch, got %d", n)
	}

	a.Stop()
	if n := a.opts.Bus.Len(event.MarketsUpdated); n != 0 {
		t.Errorf("Expected no subscribers after Stop, got %d", n)
	}
}

func TestAppWatchSelectedMarket(t *testing.T) {
	a, _, s := newTestApp(t, settings.Defaults())

	a.showMarkets([]store.Market{
		{ID: "m1", Question: "Will it rain?", Price: decimal.RequireFromString("0.4")},
		{ID: "m2", Question: "Will it snow?", Price: decimal.RequireFromString("0.2")},
	})
	a.marketOverview.table.Select(2, 0)

	a.handleRune('w')
	if !s.Watching("m2") {
		t.Fatal("Expected m2 to be watched")
	}
	if got := a.marketOverview.table.GetCell(2, 0).Text; got != "★" {
		t.Errorf("Expected watched marker, got %q", got)
	}

	a.handleRune('w')
	if s.Watching("m2") {
		t.Error("Expected m2 to be unwatched")
	}
}

func TestAppUnknownRune(t *testing.T) {
	a, _, _ := newTestApp(t, settings.Defaults())
	if a.handleRune('z') {
		t.Error("Expected z to pass through")
	}
}

func TestBreakingFeedPulsesOnNewEntries(t *testing.T) {
	v := NewBreakingFeedView(10)
	mk := func(id string, change int64) store.BreakingMarket {
		return store.BreakingMarket{Market: store.Market{ID: id, Question: id}, PriceChange: decimal.NewFromInt(change)}
	}

	if v.Update([]store.BreakingMarket{mk("a", 10)}, store.TrendAny) {
		t.Error("The first batch should not pulse")
	}
	if v.Update([]store.BreakingMarket{mk("a", 12)}, store.TrendAny) {
		t.Error("A known market should not pulse")
	}
	if !v.Update([]store.BreakingMarket{mk("a", 12), mk("b", -8)}, store.TrendAny) {
		t.Error("A new market should pulse")
	}
	if v.pulse.Strength() != 1 {
		t.Errorf("Expected full pulse, got %v", v.pulse.Strength())
	}

	if got := v.table.GetCell(2, 1).Text; got != "-8.00%" {
		t.Errorf("Expected -8.00%%, got %q", got)
	}
}

var colorfulGray = colorful.Color{R: 0.5, G: 0.5, B: 0.5}

func TestPulseSettles(t *testing.T) {
	p := NewPulse(10, colorfulGray, colorfulGray)
	p.Trigger()

	prev := p.Strength()
	for i := 0; i < 100; i++ {
		p.Step()
	}
	if p.Strength() != 0 || prev != 1 {
		t.Errorf("Expected pulse to settle from 1 to 0, got %v", p.Strength())
	}
}

func TestAmbientStaysInsideWidth(t *testing.T) {
	a := NewAmbient(42)
	for i := 0; i < 500; i++ {
		p := a.Next(320)
		if p.X < 0 || p.X > 320 || p.Y >= 0 {
			t.Fatalf("Origin %v outside the top edge", p)
		}
	}
}

func TestFormatSignal(t *testing.T) {
	main, secondary := formatSignal(store.Signal{
		Kind:      store.SignalDrop,
		Question:  "Will the index close higher?",
		Magnitude: decimal.RequireFromString("-12.5"),
	})
	if !strings.Contains(main, store.SignalDrop) {
		t.Errorf("Expected kind in %q", main)
	}
	if !strings.Contains(secondary, "-12.50%") {
		t.Errorf("Expected change in %q", secondary)
	}

	if got := truncate("abcdefgh", 5); got != "ab..." {
		t.Errorf("truncate = %q", got)
	}
	if got := truncateID("0123456789abcdefXYZ"); got != "01234567...fXYZ" {
		t.Errorf("truncateID = %q", got)
	}
}
