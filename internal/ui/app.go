// Package ui provides terminal user interface components.
package ui

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/polyinsider/pulse/internal/event"
	"github.com/polyinsider/pulse/internal/metrics"
	"github.com/polyinsider/pulse/internal/particle"
	"github.com/polyinsider/pulse/internal/settings"
	"github.com/polyinsider/pulse/internal/store"
)

// DefaultCategories is the category filter cycle; "" means all categories.
var DefaultCategories = []string{"", "politics", "crypto", "sports", "economics", "culture"}

// Feed is the query surface of the market poller.
type Feed interface {
	Query() store.MarketQuery
	SetQuery(q store.MarketQuery)
	BreakingQuery() store.BreakingQuery
	SetBreakingQuery(q store.BreakingQuery)
	Trigger()
}

// Options wires the App to its data sources.
type Options struct {
	Markets  <-chan []store.Market
	Breaking <-chan []store.BreakingMarket
	Changes  <-chan store.Change
	Signals  <-chan store.Signal

	Tracker  *metrics.Tracker
	Feed     Feed
	Settings *settings.Manager
	Effects  *Effects
	Bus      *event.Bus

	// EffectsAllowed is false when effects are disabled by configuration;
	// the toggle key then does nothing.
	EffectsAllowed bool
	Categories     []string
	RefreshRate    time.Duration
	EffectsFPS     int
}

// App is the main TUI application.
type App struct {
	app    *tview.Application
	pages  *tview.Pages
	layout *tview.Flex

	// Views
	marketOverview *MarketOverviewView
	breakingFeed   *BreakingFeedView
	liveChanges    *LiveChangesView
	signalAlerter  *SignalAlerterView
	statsDashboard *StatsDashboardView
	effects        *Effects

	activity *Activity
	detach   func()

	opts Options

	// State
	mu         sync.Mutex
	categoryIx int
	trend      store.Trend
	markets    []store.Market
	ctx        context.Context
	cancel     context.CancelFunc
}

// NewApp creates a new TUI application.
func NewApp(opts Options) *App {
	if opts.RefreshRate <= 0 {
		opts.RefreshRate = 500 * time.Millisecond
	}
	if opts.EffectsFPS <= 0 {
		opts.EffectsFPS = particle.DefaultFrameRate
	}
	if len(opts.Categories) == 0 {
		opts.Categories = DefaultCategories
	}
	if opts.Settings == nil {
		opts.Settings = settings.NewManager(nil)
	}
	if opts.Bus == nil {
		opts.Bus = event.NewBus()
	}
	if opts.Effects == nil {
		cfg := particle.DefaultConfig()
		cfg.Enabled = false
		opts.Effects = NewEffects(particle.DefaultPresets(), cfg, opts.Bus)
	}

	ctx, cancel := context.WithCancel(context.Background())

	a := &App{
		app:     tview.NewApplication(),
		opts:    opts,
		effects: opts.Effects,
		trend:   store.TrendAny,
		ctx:     ctx,
		cancel:  cancel,
	}

	refreshFPS := int(time.Second / opts.RefreshRate)
	if refreshFPS < 1 {
		refreshFPS = 1
	}

	// Initialize views
	a.marketOverview = NewMarketOverviewView()
	a.breakingFeed = NewBreakingFeedView(refreshFPS)
	a.liveChanges = NewLiveChangesView()
	a.signalAlerter = NewSignalAlerterView()
	a.statsDashboard = NewStatsDashboardView()

	a.activity = NewActivity()
	a.detach = a.activity.Attach(opts.Bus)
	a.activity.MarkRunning(a.effects.Running()...)

	a.applyPreferences()
	a.setupLayout()
	a.setupKeyboard()
	a.setupMouse()

	return a
}

// applyPreferences restores persisted filters and effect toggles.
func (a *App) applyPreferences() {
	prefs := a.opts.Settings.Get()

	for i, c := range a.opts.Categories {
		if c == prefs.Category {
			a.categoryIx = i
		}
	}
	if prefs.Trend.Valid() {
		a.trend = prefs.Trend
	}

	if a.opts.Feed != nil {
		q := a.opts.Feed.Query()
		q.Category = a.opts.Categories[a.categoryIx]
		a.opts.Feed.SetQuery(q)

		bq := a.opts.Feed.BreakingQuery()
		bq.Trend = a.trend
		a.opts.Feed.SetBreakingQuery(bq)
	}

	a.effects.SetEnabled(a.opts.EffectsAllowed && prefs.EffectsEnabled)
	a.effects.SetAmbient(prefs.AmbientSnow)
}

// setupLayout creates the dashboard and stacks the effects overlay on it.
func (a *App) setupLayout() {
	// Top row: Market Browser (left) | Breaking Feed (right)
	topRow := tview.NewFlex().
		AddItem(a.marketOverview.Widget(), 0, 3, true).
		AddItem(a.breakingFeed.Widget(), 0, 2, false)

	// Middle row: Live Changes (left) | Signal Alerts (right)
	middleRow := tview.NewFlex().
		AddItem(a.liveChanges.Widget(), 0, 3, false).
		AddItem(a.signalAlerter.Widget(), 0, 2, false)

	help := tview.NewTextView().
		SetDynamicColors(true).
		SetText("[yellow]q[-] quit  [yellow]r[-] refresh  [yellow]c[-] category  [yellow]t[-] trend  [yellow]w[-] watch  [yellow]e[-] effects  [yellow]a[-] snow  [yellow]x[-] clear  [yellow]space[-] celebrate")

	// Bottom row: Stats (left) | help (right)
	bottomRow := tview.NewFlex().
		AddItem(a.statsDashboard.Widget(), 0, 1, false)

	a.layout = tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(topRow, 0, 3, true).
		AddItem(middleRow, 0, 3, false).
		AddItem(bottomRow, 14, 0, false).
		AddItem(help, 1, 0, false)

	a.pages = tview.NewPages().
		AddPage("dashboard", a.layout, true, true).
		AddPage("effects", a.effects, true, true)

	a.app.SetRoot(a.pages, true)
	a.app.SetFocus(a.marketOverview.Widget())
}

// setupKeyboard configures keyboard shortcuts.
func (a *App) setupKeyboard() {
	a.app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Key() {
		case tcell.KeyCtrlC:
			a.Stop()
			return nil
		case tcell.KeyRune:
			if a.handleRune(event.Rune()) {
				return nil
			}
		}
		return event
	})
}

// handleRune runs the shortcut bound to r and reports whether one was.
func (a *App) handleRune(r rune) bool {
	switch r {
	case 'q', 'Q':
		a.Stop()
	case 'r', 'R':
		a.refresh()
	case 'e', 'E':
		a.toggleEffects()
	case 'a', 'A':
		a.toggleAmbient()
	case 'c', 'C':
		a.cycleCategory()
	case 't', 'T':
		a.cycleTrend()
	case 'w', 'W':
		a.toggleWatch()
	case 'x', 'X':
		a.effects.Clear()
	case ' ':
		a.celebrate()
	default:
		return false
	}
	return true
}

// setupMouse emits sparkle on click and a trail on pointer motion.
func (a *App) setupMouse() {
	a.app.EnableMouse(true)
	a.app.SetMouseCapture(func(event *tcell.EventMouse, action tview.MouseAction) (*tcell.EventMouse, tview.MouseAction) {
		x, y := event.Position()
		switch action {
		case tview.MouseLeftClick:
			a.emitAt(particle.PresetSparkle, x, y)
		case tview.MouseMove:
			a.emitAt(particle.PresetTrail, x, y)
		}
		return event, action
	})
}

func (a *App) emitAt(preset string, x, y int) {
	if _, err := a.effects.EmitAt(preset, x, y, 0); err != nil {
		slog.Debug("effect_emit_failed", "preset", preset, "error", err)
	}
}

// Run starts the TUI application (blocking).
func (a *App) Run() error {
	go a.processMarkets()
	go a.processBreaking()
	go a.processChanges()
	go a.processSignals()
	go a.updateLoop()

	a.effects.Watch(a.ctx, time.Second/time.Duration(a.opts.EffectsFPS), func() {
		a.app.Draw()
	})

	if err := a.app.Run(); err != nil {
		return fmt.Errorf("app run failed: %w", err)
	}

	return nil
}

// Stop gracefully stops the application. Effects engines are stopped before
// the screen is released.
func (a *App) Stop() {
	a.cancel()
	a.effects.Stop()
	a.detach()
	a.app.Stop()
}

func (a *App) processMarkets() {
	for {
		select {
		case <-a.ctx.Done():
			return
		case markets, ok := <-a.opts.Markets:
			if !ok {
				return
			}
			a.app.QueueUpdateDraw(func() {
				a.showMarkets(markets)
			})
		}
	}
}

func (a *App) processBreaking() {
	for {
		select {
		case <-a.ctx.Done():
			return
		case breaking, ok := <-a.opts.Breaking:
			if !ok {
				return
			}
			a.app.QueueUpdateDraw(func() {
				a.showBreaking(breaking)
			})
		}
	}
}

func (a *App) processChanges() {
	for {
		select {
		case <-a.ctx.Done():
			return
		case change, ok := <-a.opts.Changes:
			if !ok {
				return
			}
			a.app.QueueUpdateDraw(func() {
				a.liveChanges.AddChange(change)
			})
		}
	}
}

func (a *App) processSignals() {
	for {
		select {
		case <-a.ctx.Done():
			return
		case signal, ok := <-a.opts.Signals:
			if !ok {
				return
			}
			a.handleSignal(signal)
			a.app.QueueUpdateDraw(func() {
				a.signalAlerter.AddSignal(signal)
			})
		}
	}
}

// handleSignal plays the signal's effect and publishes it on the bus.
func (a *App) handleSignal(signal store.Signal) {
	a.effects.Celebrate(signal.Kind)
	a.opts.Bus.Publish(event.Event{Type: event.SignalDetected, Data: signal, At: signal.DetectedAt})
}

func (a *App) showMarkets(markets []store.Market) {
	a.mu.Lock()
	a.markets = markets
	category := a.opts.Categories[a.categoryIx]
	a.mu.Unlock()

	a.marketOverview.Update(markets, category, a.opts.Settings.Watching)
	a.opts.Bus.Publish(event.Event{Type: event.MarketsUpdated, Data: len(markets), At: time.Now()})
}

func (a *App) showBreaking(breaking []store.BreakingMarket) {
	a.mu.Lock()
	trend := a.trend
	a.mu.Unlock()

	a.breakingFeed.Update(breaking, trend)
	a.opts.Bus.Publish(event.Event{Type: event.BreakingUpdated, Data: len(breaking), At: time.Now()})
}

// updateLoop periodically refreshes views with metrics data.
func (a *App) updateLoop() {
	ticker := time.NewTicker(a.opts.RefreshRate)
	defer ticker.Stop()

	for {
		select {
		case <-a.ctx.Done():
			return
		case <-ticker.C:
			a.effects.Tick()
			snapshot := a.snapshot()

			a.app.QueueUpdateDraw(func() {
				a.statsDashboard.Update(snapshot, a.activity.Counts(), a.effects.Enabled(), a.effects.Ambient())
				a.breakingFeed.Tick()
			})
		}
	}
}

// snapshot pushes effects stats into the tracker and returns its snapshot.
func (a *App) snapshot() metrics.MetricsSnapshot {
	if a.opts.Tracker == nil {
		return metrics.MetricsSnapshot{}
	}
	for name, stats := range a.effects.Stats() {
		a.opts.Tracker.SetEffectStats(name, stats)
	}
	return a.opts.Tracker.Snapshot()
}

// refresh re-polls the feed and redraws all views.
func (a *App) refresh() {
	if a.opts.Feed != nil {
		a.opts.Feed.Trigger()
	}
	a.signalAlerter.Refresh()
	a.liveChanges.Refresh()
	a.statsDashboard.Update(a.snapshot(), a.activity.Counts(), a.effects.Enabled(), a.effects.Ambient())
}

func (a *App) toggleEffects() {
	if !a.opts.EffectsAllowed {
		slog.Info("effects_disabled_by_config")
		return
	}
	on := !a.effects.Enabled()
	a.effects.SetEnabled(on)
	a.savePreferences(func(p *settings.Preferences) { p.EffectsEnabled = on })
	slog.Info("effects_toggled", "enabled", on)
}

func (a *App) toggleAmbient() {
	on := !a.effects.Ambient()
	a.effects.SetAmbient(on)
	a.savePreferences(func(p *settings.Preferences) { p.AmbientSnow = on })
}

func (a *App) cycleCategory() {
	a.mu.Lock()
	a.categoryIx = (a.categoryIx + 1) % len(a.opts.Categories)
	category := a.opts.Categories[a.categoryIx]
	a.mu.Unlock()

	if a.opts.Feed != nil {
		q := a.opts.Feed.Query()
		q.Category = category
		a.opts.Feed.SetQuery(q)
		a.opts.Feed.Trigger()
	}
	a.savePreferences(func(p *settings.Preferences) { p.Category = category })
	slog.Info("category_changed", "category", category)
}

func (a *App) cycleTrend() {
	a.mu.Lock()
	next := store.Trends[0]
	for i, t := range store.Trends {
		if t == a.trend {
			next = store.Trends[(i+1)%len(store.Trends)]
		}
	}
	a.trend = next
	a.mu.Unlock()

	if a.opts.Feed != nil {
		q := a.opts.Feed.BreakingQuery()
		q.Trend = next
		a.opts.Feed.SetBreakingQuery(q)
		a.opts.Feed.Trigger()
	}
	a.savePreferences(func(p *settings.Preferences) { p.Trend = next })
	slog.Info("trend_changed", "trend", next)
}

func (a *App) toggleWatch() {
	m, ok := a.marketOverview.Selected()
	if !ok {
		return
	}
	watched, err := a.opts.Settings.ToggleWatch(m.ID)
	if err != nil {
		slog.Warn("settings_save_failed", "error", err)
	}

	a.mu.Lock()
	markets := a.markets
	category := a.opts.Categories[a.categoryIx]
	a.mu.Unlock()
	a.marketOverview.Update(markets, category, a.opts.Settings.Watching)

	slog.Info("watchlist_changed", "market", m.ID, "watched", watched)
}

// celebrate fires fireworks and confetti across the screen.
func (a *App) celebrate() {
	a.effects.Celebrate(store.SignalResolved)
	a.effects.Celebrate(store.SignalSpike)
}

func (a *App) savePreferences(fn func(*settings.Preferences)) {
	if err := a.opts.Settings.Update(fn); err != nil {
		slog.Warn("settings_save_failed", "error", err)
	}
}
