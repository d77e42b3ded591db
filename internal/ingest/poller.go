package ingest

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/polyinsider/pulse/internal/store"
)

// DefaultPollInterval is the default market polling interval.
const DefaultPollInterval = 30 * time.Second

// BreakingFallback computes breaking markets locally when the remote endpoint
// fails.
type BreakingFallback func(q store.BreakingQuery) []store.BreakingMarket

// Poller periodically fetches markets and, when configured, the breaking feed.
// Queries may be changed while it runs; Trigger forces an immediate poll.
type Poller struct {
	client   *Client
	interval time.Duration

	marketChan   chan<- []store.Market
	breakingChan chan<- []store.BreakingMarket
	fallback     BreakingFallback

	mu            sync.Mutex
	query         store.MarketQuery
	breakingQuery store.BreakingQuery

	trigger chan struct{}
}

// NewPoller creates a poller that sends each market batch to marketChan.
func NewPoller(client *Client, query store.MarketQuery, interval time.Duration, marketChan chan<- []store.Market) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	return &Poller{
		client:     client,
		interval:   interval,
		marketChan: marketChan,
		query:      query,
		trigger:    make(chan struct{}, 1),
	}
}

// WithBreaking enables breaking-feed polling. fallback may be nil.
func (p *Poller) WithBreaking(query store.BreakingQuery, ch chan<- []store.BreakingMarket, fallback BreakingFallback) *Poller {
	p.mu.Lock()
	p.breakingQuery = query
	p.mu.Unlock()

	p.breakingChan = ch
	p.fallback = fallback
	return p
}

// Query returns the current market query.
func (p *Poller) Query() store.MarketQuery {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.query
}

// SetQuery replaces the market query and polls soon.
func (p *Poller) SetQuery(q store.MarketQuery) {
	p.mu.Lock()
	p.query = q
	p.mu.Unlock()
	p.Trigger()
}

// BreakingQuery returns the current breaking query.
func (p *Poller) BreakingQuery() store.BreakingQuery {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.breakingQuery
}

// SetBreakingQuery replaces the breaking query and polls soon.
func (p *Poller) SetBreakingQuery(q store.BreakingQuery) {
	p.mu.Lock()
	p.breakingQuery = q
	p.mu.Unlock()
	p.Trigger()
}

// Trigger requests a poll without waiting for the ticker.
func (p *Poller) Trigger() {
	select {
	case p.trigger <- struct{}{}:
	default:
	}
}

// Start polls until ctx is done.
func (p *Poller) Start(ctx context.Context) {
	slog.Info("starting_market_poller", "base_url", p.client.BaseURL(), "interval", p.interval)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.poll(ctx)

	for {
		select {
		case <-ctx.Done():
			slog.Info("market_poller_stopped")
			return
		case <-ticker.C:
			p.poll(ctx)
		case <-p.trigger:
			p.client.InvalidateCache()
			p.poll(ctx)
		}
	}
}

func (p *Poller) poll(ctx context.Context) {
	p.mu.Lock()
	query, breakingQuery := p.query, p.breakingQuery
	p.mu.Unlock()

	markets, err := p.client.FetchMarkets(ctx, query)
	if err != nil {
		slog.Warn("market_poll_failed", "error", err)
	} else {
		select {
		case p.marketChan <- markets:
		default:
			slog.Warn("market_channel_full", "dropped_markets", len(markets))
		}
	}

	if p.breakingChan == nil {
		return
	}

	breaking, err := p.client.FetchBreaking(ctx, breakingQuery)
	if err != nil {
		if p.fallback == nil {
			slog.Warn("breaking_poll_failed", "error", err)
			return
		}
		slog.Debug("breaking_poll_failed_using_local", "error", err)
		breaking = p.fallback(breakingQuery.Normalize())
	}

	select {
	case p.breakingChan <- breaking:
	default:
		slog.Warn("breaking_channel_full", "dropped_markets", len(breaking))
	}
}
