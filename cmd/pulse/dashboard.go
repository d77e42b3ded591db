package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/polyinsider/pulse/internal/detector"
	"github.com/polyinsider/pulse/internal/event"
	"github.com/polyinsider/pulse/internal/ingest"
	"github.com/polyinsider/pulse/internal/metrics"
	"github.com/polyinsider/pulse/internal/settings"
	"github.com/polyinsider/pulse/internal/store"
	"github.com/polyinsider/pulse/internal/ui"
)

const (
	// ChangeBuffer is the size of the buffered UI change channel
	ChangeBuffer = 1000
	// SignalBuffer is the size of the buffered signal channel
	SignalBuffer = 100
	// BatchBuffer is the size of the market and breaking batch channels
	BatchBuffer = 4
)

var (
	flagHeadless bool
	flagCategory string
)

func init() {
	rootCmd.Flags().BoolVar(&flagHeadless, "headless", false, "run without the TUI and log signals")
	rootCmd.Flags().StringVar(&flagCategory, "category", "", "market category filter")
}

// pipeline is the data flow shared by TUI and headless mode.
type pipeline struct {
	client   *ingest.Client
	poller   *ingest.Poller
	realtime *ingest.Realtime
	tracker  *metrics.Tracker
	detect   *detector.Detector

	polled   chan []store.Market
	breaking chan []store.BreakingMarket

	// UI-facing outputs
	markets     chan []store.Market
	breakingOut chan []store.BreakingMarket
	changes     chan store.Change
	signals     chan store.Signal
	forwardToUI bool
}

func runDashboard(cmd *cobra.Command, args []string) error {
	if flagHeadless {
		cfg.EnableTUI = false
	}
	if flagCategory != "" {
		cfg.MarketCategory = flagCategory
	}

	if cfg.EnableTUI {
		logFile, err := openLogFile(cfg.LogFile)
		if err != nil {
			return err
		}
		defer logFile.Close()
		slog.SetDefault(setupLogger(cfg.LogLevel, logFile))
	}

	slog.Info("pulse starting", "version", "1.0.0")
	slog.Info("config_loaded",
		"api_url", cfg.APIURL,
		"realtime_url", cfg.RealtimeURL,
		"api_key", cfg.MaskedAPIKey(),
		"category", cfg.MarketCategory,
		"poll_interval", cfg.MarketPollInterval,
		"breaking_min_change", cfg.BreakingMinChange,
		"breaking_time_range", cfg.BreakingTimeRange,
		"burst_count", cfg.BurstCount,
		"burst_window", cfg.BurstWindow,
		"enable_tui", cfg.EnableTUI,
		"effects_enabled", cfg.EffectsEnabled,
		"max_particles", cfg.MaxParticles,
	)

	presets, err := cfg.Presets()
	if err != nil {
		return fmt.Errorf("load presets: %w", err)
	}
	if cfg.PresetsFile != "" {
		slog.Info("presets_loaded", "file", cfg.PresetsFile, "count", len(presets))
	}

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	p := newPipeline(cfg.EnableTUI)
	p.start(ctx)

	slog.Info("engine_started",
		"status", "polling markets",
		"tui_enabled", cfg.EnableTUI,
	)

	if cfg.EnableTUI {
		bus := event.NewBus()
		unsubscribe := bus.Subscribe(event.EffectsDrained, func(e event.Event) {
			slog.Debug("effects_drained", "engine", e.Data)
		})
		defer unsubscribe()

		storage, err := settings.Open()
		if err != nil {
			slog.Warn("settings_storage_unavailable", "error", err)
		}

		effects := ui.NewEffects(presets, cfg.ParticleConfig(), bus)
		app := ui.NewApp(ui.Options{
			Markets:        p.markets,
			Breaking:       p.breakingOut,
			Changes:        p.changes,
			Signals:        p.signals,
			Tracker:        p.tracker,
			Feed:           p.poller,
			Settings:       settings.NewManager(storage),
			Effects:        effects,
			Bus:            bus,
			EffectsAllowed: cfg.EffectsEnabled,
			RefreshRate:    cfg.UIRefreshRate,
			EffectsFPS:     cfg.EffectsFPS,
		})

		slog.Info("starting_tui")
		go func() {
			if err := app.Run(); err != nil {
				slog.Error("tui_error", "error", err)
			}
			cancel()
		}()

		select {
		case sig := <-sigChan:
			slog.Info("shutdown_signal_received", "signal", sig.String())
			app.Stop()
		case <-ctx.Done():
			app.Stop()
		}
	} else {
		sig := <-sigChan
		slog.Info("shutdown_signal_received", "signal", sig.String())
	}

	cancel()

	slog.Info("shutting_down", "status", "stopping realtime")
	p.realtime.Stop()

	slog.Info("shutdown_complete")
	return nil
}

func newPipeline(forwardToUI bool) *pipeline {
	client := ingest.NewClient(cfg.APIURL, cfg.APIKey, cfg.CacheTTL)
	tracker := metrics.NewTracker()

	p := &pipeline{
		client:      client,
		realtime:    ingest.NewRealtime(cfg.RealtimeURL, cfg.APIKey),
		tracker:     tracker,
		detect:      detector.NewDetector(cfg),
		polled:      make(chan []store.Market, BatchBuffer),
		breaking:    make(chan []store.BreakingMarket, BatchBuffer),
		markets:     make(chan []store.Market, BatchBuffer),
		breakingOut: make(chan []store.BreakingMarket, BatchBuffer),
		changes:     make(chan store.Change, ChangeBuffer),
		signals:     make(chan store.Signal, SignalBuffer),
		forwardToUI: forwardToUI,
	}
	p.poller = ingest.NewPoller(client, cfg.MarketQuery(), cfg.MarketPollInterval, p.polled).
		WithBreaking(cfg.BreakingQuery(), p.breaking, tracker.Breaking)
	return p
}

func (p *pipeline) start(ctx context.Context) {
	filter := ""
	if cfg.MarketCategory != "" {
		filter = "category=eq." + cfg.MarketCategory
	}
	sub := p.realtime.Subscribe(ingest.MarketsTable, filter)
	p.realtime.Start(ctx)

	go p.poller.Start(ctx)
	go p.processMarkets(ctx)
	go p.processBreaking(ctx)
	go p.processChanges(ctx, sub.C())
	go p.housekeeping(ctx)
}

// processMarkets records polled batches before handing them on.
func (p *pipeline) processMarkets(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case markets := <-p.polled:
			p.tracker.RecordMarkets(markets)
			p.detect.Observe(markets)
			slog.Debug("markets_polled", "count", len(markets), "tokens", len(ingest.ExtractTokenIDs(markets)))

			if p.forwardToUI {
				select {
				case p.markets <- markets:
				default:
					slog.Warn("ui_market_channel_full")
				}
			}
		}
	}
}

func (p *pipeline) processBreaking(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case breaking := <-p.breaking:
			if !p.forwardToUI {
				for _, m := range breaking {
					slog.Info("breaking_market",
						"market", truncateID(m.ID),
						"question", m.Question,
						"change_pct", m.PriceChange.String(),
						"trend", m.Trend,
					)
				}
				continue
			}
			select {
			case p.breakingOut <- breaking:
			default:
				slog.Warn("ui_breaking_channel_full")
			}
		}
	}
}

// processChanges records realtime changes and runs detection on them.
func (p *pipeline) processChanges(ctx context.Context, changes <-chan store.Change) {
	for {
		select {
		case <-ctx.Done():
			return
		case change, ok := <-changes:
			if !ok {
				return
			}

			p.tracker.RecordChange(change)

			if p.forwardToUI {
				select {
				case p.changes <- change:
				default:
					slog.Warn("ui_change_channel_full")
				}
			}

			for _, s := range p.detect.Detect(change) {
				p.tracker.IncrementSignal(s.Kind)
				slog.Info("signal_detected",
					"type", s.Kind,
					"market", truncateID(s.MarketID),
					"magnitude", s.Magnitude.String(),
				)

				if !p.forwardToUI {
					continue
				}
				select {
				case p.signals <- s:
				default:
					slog.Warn("signal_channel_full", "signal_type", s.Kind)
				}
			}
		}
	}
}

// housekeeping publishes realtime status and trims old state.
func (p *pipeline) housekeeping(ctx context.Context) {
	status := time.NewTicker(time.Second)
	defer status.Stop()
	cleanup := time.NewTicker(5 * time.Minute)
	defer cleanup.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-status.C:
			if p.realtime.Connected() {
				p.tracker.SetRealtimeStatus(metrics.StatusConnected)
			} else {
				p.tracker.SetRealtimeStatus(metrics.StatusDisconnected)
			}
		case <-cleanup.C:
			p.tracker.Cleanup()
			p.detect.Cleanup()
		}
	}
}
