// Package ingest fetches market data over HTTP and realtime changes over
// WebSocket.
package ingest

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/polyinsider/pulse/internal/store"
)

// Realtime message types.
const (
	MsgSubscribe   = "subscribe"
	MsgUnsubscribe = "unsubscribe"
	MsgChange      = "change"
	MsgSubscribed  = "subscribed"
	MsgError       = "error"
)

// MarketsTable is the realtime table carrying market rows.
const MarketsTable = "markets"

// MarketRecord is a market row as the API and the realtime feed send it.
// Numbers may arrive quoted or bare.
type MarketRecord struct {
	ID           string          `json:"id"`
	Question     string          `json:"question"`
	Slug         string          `json:"slug"`
	Category     string          `json:"category"`
	Active       bool            `json:"active"`
	Closed       bool            `json:"closed"`
	Price        decimal.Decimal `json:"price"`
	Volume       decimal.Decimal `json:"volume"`
	Liquidity    decimal.Decimal `json:"liquidity"`
	TokenIDs     []string        `json:"token_ids"`
	ClobTokenIDs string          `json:"clobTokenIds"` // JSON array as string
	UpdatedAt    string          `json:"updated_at"`
}

// BreakingRecord is one entry of the breaking-markets endpoint.
type BreakingRecord struct {
	MarketRecord
	PreviousPrice decimal.Decimal `json:"previous_price"`
	PriceChange   decimal.Decimal `json:"price_change"`
	Trend         string          `json:"trend"`
	DetectedAt    string          `json:"detected_at"`
}

// ChangeMessage is an incoming realtime message. Only type "change" carries a
// row.
type ChangeMessage struct {
	Type            string          `json:"type"`
	Ref             string          `json:"ref,omitempty"`
	Table           string          `json:"table,omitempty"`
	Event           string          `json:"event,omitempty"`
	Record          json.RawMessage `json:"record,omitempty"`
	CommitTimestamp string          `json:"commit_timestamp,omitempty"`
	Message         string          `json:"message,omitempty"`
}

// SubscribeMessage is sent to open a subscription.
type SubscribeMessage struct {
	Type   string `json:"type"`
	Ref    string `json:"ref"`
	Table  string `json:"table"`
	Filter string `json:"filter,omitempty"`
}

// UnsubscribeMessage is sent to close a subscription.
type UnsubscribeMessage struct {
	Type string `json:"type"`
	Ref  string `json:"ref"`
}

// ParseMarkets decodes a market list. Both a bare array and an object with a
// "markets" or "data" array are accepted.
func ParseMarkets(data []byte) ([]store.Market, error) {
	var records []MarketRecord
	if err := json.Unmarshal(data, &records); err != nil {
		var wrapped struct {
			Markets []MarketRecord `json:"markets"`
			Data    []MarketRecord `json:"data"`
		}
		if werr := json.Unmarshal(data, &wrapped); werr != nil {
			return nil, fmt.Errorf("failed to decode markets: %w", err)
		}
		records = wrapped.Markets
		if len(records) == 0 {
			records = wrapped.Data
		}
	}

	markets := make([]store.Market, 0, len(records))
	for _, r := range records {
		markets = append(markets, r.toMarket())
	}
	return markets, nil
}

// ParseMarket decodes a single market.
func ParseMarket(data []byte) (store.Market, error) {
	var r MarketRecord
	if err := json.Unmarshal(data, &r); err != nil {
		return store.Market{}, fmt.Errorf("failed to decode market: %w", err)
	}
	if r.ID == "" {
		return store.Market{}, fmt.Errorf("market record has no id")
	}
	return r.toMarket(), nil
}

// ParseBreaking decodes a breaking-markets list, bare or wrapped in "data".
func ParseBreaking(data []byte) ([]store.BreakingMarket, error) {
	var records []BreakingRecord
	if err := json.Unmarshal(data, &records); err != nil {
		var wrapped struct {
			Data []BreakingRecord `json:"data"`
		}
		if werr := json.Unmarshal(data, &wrapped); werr != nil {
			return nil, fmt.Errorf("failed to decode breaking markets: %w", err)
		}
		records = wrapped.Data
	}

	out := make([]store.BreakingMarket, 0, len(records))
	for _, r := range records {
		trend := store.Trend(strings.ToLower(r.Trend))
		if !trend.Valid() || trend == store.TrendAny {
			trend = trendOf(r.PriceChange)
		}
		out = append(out, store.BreakingMarket{
			Market:        r.toMarket(),
			PreviousPrice: r.PreviousPrice,
			PriceChange:   r.PriceChange,
			Trend:         trend,
			DetectedAt:    parseTimestamp(r.DetectedAt),
		})
	}
	return out, nil
}

// ParseChange decodes a realtime message. It returns the message type and,
// for change messages, the decoded change.
func ParseChange(data []byte) (*store.Change, string, error) {
	var msg ChangeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, "", fmt.Errorf("failed to unmarshal message: %w", err)
	}

	if msg.Type != MsgChange {
		return nil, msg.Type, nil
	}

	if msg.Table == "" {
		return nil, msg.Type, fmt.Errorf("change without table")
	}

	event := strings.ToUpper(msg.Event)
	switch event {
	case store.EventInsert, store.EventUpdate, store.EventDelete:
	default:
		return nil, msg.Type, fmt.Errorf("unknown change event %q", msg.Event)
	}

	change := &store.Change{
		Ref:        msg.Ref,
		Table:      msg.Table,
		Event:      event,
		CommitTime: parseTimestamp(msg.CommitTimestamp),
	}

	if len(msg.Record) > 0 && string(msg.Record) != "null" {
		if err := json.Unmarshal(msg.Record, &change.Record); err != nil {
			return nil, msg.Type, fmt.Errorf("failed to parse record: %w", err)
		}
	}

	if msg.Table == MarketsTable && change.Record != nil {
		var r MarketRecord
		if err := json.Unmarshal(msg.Record, &r); err == nil && r.ID != "" {
			m := r.toMarket()
			change.Market = &m
		} else if err != nil {
			slog.Debug("rt_market_record_invalid", "error", err)
		}
	}

	return change, msg.Type, nil
}

// ExtractTokenIDs returns the distinct outcome token IDs of markets in order
// of first appearance.
func ExtractTokenIDs(markets []store.Market) []string {
	var tokenIDs []string
	seen := make(map[string]bool)

	for _, market := range markets {
		for _, id := range market.TokenIDs {
			if id == "" || seen[id] {
				continue
			}
			seen[id] = true
			tokenIDs = append(tokenIDs, id)
		}
	}

	return tokenIDs
}

func (r MarketRecord) toMarket() store.Market {
	tokenIDs := r.TokenIDs
	if len(tokenIDs) == 0 && r.ClobTokenIDs != "" {
		if err := json.Unmarshal([]byte(r.ClobTokenIDs), &tokenIDs); err != nil {
			slog.Debug("failed to parse token IDs", "market", r.Slug, "error", err)
		}
	}

	return store.Market{
		ID:        r.ID,
		Question:  r.Question,
		Slug:      r.Slug,
		Category:  r.Category,
		Active:    r.Active,
		Closed:    r.Closed,
		Price:     r.Price,
		Volume:    r.Volume,
		Liquidity: r.Liquidity,
		TokenIDs:  tokenIDs,
		UpdatedAt: parseTimestamp(r.UpdatedAt),
	}
}

func trendOf(change decimal.Decimal) store.Trend {
	if change.IsNegative() {
		return store.TrendDown
	}
	return store.TrendUp
}

// parseTimestamp tries unix seconds, unix milliseconds and RFC 3339 forms.
// Unparseable values yield the current time.
func parseTimestamp(values ...string) time.Time {
	formats := []string{
		time.RFC3339Nano,
		"2006-01-02T15:04:05.999999",
		"2006-01-02 15:04:05",
	}

	for _, v := range values {
		if v == "" {
			continue
		}

		if ts, err := strconv.ParseInt(v, 10, 64); err == nil {
			if ts > 1e12 {
				return time.UnixMilli(ts)
			}
			return time.Unix(ts, 0)
		}

		for _, format := range formats {
			if t, err := time.Parse(format, v); err == nil {
				return t
			}
		}
	}

	return time.Now()
}

// truncate shortens a string for logging.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
