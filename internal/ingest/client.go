package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/polyinsider/pulse/internal/store"
)

const (
	// DefaultAPIURL is the market data API used when none is configured
	DefaultAPIURL = "https://api.pulse.markets/v1"
	// DefaultCacheTTL is how long identical requests are served from memory
	DefaultCacheTTL = 30 * time.Second

	requestTimeout = 10 * time.Second
	maxBodyBytes   = 8 << 20
)

// ErrNotFound is returned when the API answers 404.
var ErrNotFound = errors.New("not found")

// Client queries the market data and breaking-markets endpoints.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	cache   *responseCache
}

// NewClient creates a Client. An empty baseURL uses DefaultAPIURL; a
// non-positive cacheTTL disables caching.
func NewClient(baseURL, apiKey string, cacheTTL time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultAPIURL
	}

	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: requestTimeout},
		cache:   newResponseCache(cacheTTL),
	}
}

// BaseURL returns the API root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// InvalidateCache drops every cached response.
func (c *Client) InvalidateCache() {
	c.cache.clear()
}

// FetchMarkets returns the markets matching q.
func (c *Client) FetchMarkets(ctx context.Context, q store.MarketQuery) ([]store.Market, error) {
	q = q.Normalize()
	if err := q.Validate(); err != nil {
		return nil, err
	}

	params := url.Values{}
	if q.Category != "" {
		params.Set("category", q.Category)
	}
	params.Set("active", strconv.FormatBool(q.Active))
	if q.MinVolume > 0 {
		params.Set("volume_min", strconv.FormatFloat(q.MinVolume, 'f', -1, 64))
	}
	if q.MinLiquidity > 0 {
		params.Set("liquidity_min", strconv.FormatFloat(q.MinLiquidity, 'f', -1, 64))
	}
	params.Set("limit", strconv.Itoa(q.Limit))
	params.Set("offset", strconv.Itoa(q.Offset))

	body, err := c.get(ctx, "/markets", params)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch markets: %w", err)
	}

	markets, err := ParseMarkets(body)
	if err != nil {
		return nil, err
	}

	slog.Debug("fetched_markets", "count", len(markets), "category", q.Category)
	return markets, nil
}

// FetchMarket returns one market by ID. A missing market yields ErrNotFound.
func (c *Client) FetchMarket(ctx context.Context, id string) (store.Market, error) {
	if id == "" {
		return store.Market{}, fmt.Errorf("%w: empty market id", store.ErrInvalidQuery)
	}

	body, err := c.get(ctx, "/markets/"+url.PathEscape(id), nil)
	if err != nil {
		return store.Market{}, fmt.Errorf("failed to fetch market %s: %w", id, err)
	}
	return ParseMarket(body)
}

// FetchBreaking returns markets whose price moved at least q.MinChange percent
// over q.TimeRange.
func (c *Client) FetchBreaking(ctx context.Context, q store.BreakingQuery) ([]store.BreakingMarket, error) {
	q = q.Normalize()
	if err := q.Validate(); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("min_change", strconv.FormatFloat(q.MinChange, 'f', -1, 64))
	params.Set("time_range", q.TimeRange)
	params.Set("trend", string(q.Trend))
	params.Set("limit", strconv.Itoa(q.Limit))

	body, err := c.get(ctx, "/breaking-markets", params)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch breaking markets: %w", err)
	}

	breaking, err := ParseBreaking(body)
	if err != nil {
		return nil, err
	}

	slog.Debug("fetched_breaking", "count", len(breaking), "time_range", q.TimeRange, "trend", q.Trend)
	return breaking, nil
}

// get performs a GET, serving repeated URLs from the cache.
func (c *Client) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	if body, ok := c.cache.get(endpoint); ok {
		slog.Debug("cache_hit", "url", endpoint)
		return body, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request failed: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read body failed: %w", err)
	}

	c.cache.put(endpoint, body)
	return body, nil
}
