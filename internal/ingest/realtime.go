package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/polyinsider/pulse/internal/store"
)

// Reconnection constants
const (
	InitialBackoff = 1 * time.Second
	MaxBackoff     = 60 * time.Second
	BackoffFactor  = 2.0
	JitterPercent  = 0.2

	HeartbeatTimeout = 60 * time.Second
	PongTimeout      = 10 * time.Second

	WriteTimeout = 10 * time.Second

	// SubscriptionBuffer is the channel capacity of each subscription
	SubscriptionBuffer = 256
)

// Subscription receives the changes for one table and row filter.
type Subscription struct {
	Ref    string
	Table  string
	Filter string

	ch      chan store.Change
	closed  bool
	// sentGen is the connection generation the subscribe request went out on.
	sentGen uint64
}

// C delivers changes. It is closed by Unsubscribe and Stop.
func (s *Subscription) C() <-chan store.Change {
	return s.ch
}

// Realtime maintains a WebSocket connection to the change feed and keeps its
// subscriptions open across reconnects.
type Realtime struct {
	url    string
	apiKey string

	conn    *websocket.Conn
	connMu  sync.Mutex
	// connGen counts connections; guarded by connMu.
	connGen uint64

	backoff        time.Duration
	initialBackoff time.Duration

	lastMsg   time.Time
	lastMsgMu sync.RWMutex

	subs   map[string]*Subscription
	subsMu sync.Mutex

	connected     bool
	everConnected bool
	reconnects    int
	statusMu      sync.RWMutex

	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewRealtime creates a realtime client for the given WebSocket URL.
func NewRealtime(url, apiKey string) *Realtime {
	return &Realtime{
		url:            url,
		apiKey:         apiKey,
		backoff:        InitialBackoff,
		initialBackoff: InitialBackoff,
		subs:           make(map[string]*Subscription),
		stopChan:       make(chan struct{}),
	}
}

// Start connects in the background and reconnects until ctx is done or Stop
// is called.
func (r *Realtime) Start(ctx context.Context) {
	r.wg.Add(1)
	go r.runLoop(ctx)

	r.wg.Add(1)
	go r.heartbeatMonitor(ctx)
}

// Stop closes the connection and every subscription channel.
func (r *Realtime) Stop() {
	r.stopOnce.Do(func() {
		close(r.stopChan)
		r.closeConnection()
		r.wg.Wait()

		r.subsMu.Lock()
		for ref, sub := range r.subs {
			sub.closed = true
			close(sub.ch)
			delete(r.subs, ref)
		}
		r.subsMu.Unlock()
	})
}

// Connected reports whether the feed is currently connected.
func (r *Realtime) Connected() bool {
	r.statusMu.RLock()
	defer r.statusMu.RUnlock()
	return r.connected
}

// Reconnects returns how many times the connection has been re-established.
func (r *Realtime) Reconnects() int {
	r.statusMu.RLock()
	defer r.statusMu.RUnlock()
	return r.reconnects
}

// Subscribe opens a subscription to table rows matching filter. An empty
// filter matches every row. If connected, the request is sent immediately;
// otherwise it is sent on connect.
func (r *Realtime) Subscribe(table, filter string) *Subscription {
	sub := &Subscription{
		Ref:    uuid.NewString(),
		Table:  table,
		Filter: filter,
		ch:     make(chan store.Change, SubscriptionBuffer),
	}

	r.subsMu.Lock()
	defer r.subsMu.Unlock()

	r.subs[sub.Ref] = sub
	gen, err := r.writeJSONGen(SubscribeMessage{Type: MsgSubscribe, Ref: sub.Ref, Table: table, Filter: filter})
	if err != nil {
		slog.Debug("rt_subscribe_deferred", "table", table, "reason", err)
		return sub
	}
	sub.sentGen = gen
	slog.Info("rt_subscribed", "table", table, "filter", filter, "ref", sub.Ref)
	return sub
}

// Unsubscribe closes sub. Unsubscribing twice does nothing.
func (r *Realtime) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}

	r.subsMu.Lock()
	if _, ok := r.subs[sub.Ref]; !ok {
		r.subsMu.Unlock()
		return
	}
	delete(r.subs, sub.Ref)
	sub.closed = true
	close(sub.ch)
	r.subsMu.Unlock()

	if err := r.writeJSON(UnsubscribeMessage{Type: MsgUnsubscribe, Ref: sub.Ref}); err != nil {
		slog.Debug("rt_unsubscribe_not_sent", "ref", sub.Ref, "reason", err)
	}
}

// runLoop handles connection, reading, and reconnection.
func (r *Realtime) runLoop(ctx context.Context) {
	defer r.wg.Done()

	for {
		select {
		case <-ctx.Done():
			slog.Info("rt_loop_stopping", "reason", "context cancelled")
			return
		case <-r.stopChan:
			slog.Info("rt_loop_stopping", "reason", "stop signal")
			return
		default:
		}

		if err := r.connect(ctx); err != nil {
			slog.Error("rt_connect_failed", "error", err, "backoff", r.backoff)
			r.closeConnection()
			r.waitBackoff(ctx)
			continue
		}

		if err := r.readLoop(ctx); err != nil {
			slog.Warn("rt_read_error", "error", err)
		}

		r.closeConnection()

		select {
		case <-ctx.Done():
			return
		case <-r.stopChan:
			return
		default:
			r.waitBackoff(ctx)
		}
	}
}

// connect dials the feed and re-sends every open subscription.
func (r *Realtime) connect(ctx context.Context) error {
	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	headers := http.Header{}
	if r.apiKey != "" {
		headers.Set("Authorization", "Bearer "+r.apiKey)
	}

	conn, resp, err := dialer.DialContext(ctx, r.url, headers)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("dial failed with status %d: %w", resp.StatusCode, err)
		}
		return fmt.Errorf("dial failed: %w", err)
	}

	conn.SetPongHandler(func(string) error {
		r.updateLastMsg()
		return nil
	})

	r.connMu.Lock()
	r.conn = conn
	r.connGen++
	r.connMu.Unlock()

	r.backoff = r.initialBackoff

	slog.Info("rt_connected", "endpoint", r.url)

	if err := r.resubscribe(); err != nil {
		return fmt.Errorf("subscribe failed: %w", err)
	}

	r.statusMu.Lock()
	if r.everConnected {
		r.reconnects++
	}
	r.everConnected = true
	r.connected = true
	r.statusMu.Unlock()

	r.updateLastMsg()
	return nil
}

// resubscribe sends every subscription not yet sent on the current
// connection. subsMu is held throughout so a concurrent Subscribe cannot
// send the same ref twice.
func (r *Realtime) resubscribe() error {
	r.subsMu.Lock()
	defer r.subsMu.Unlock()

	gen := r.currentGen()
	sent := 0
	for _, sub := range r.subs {
		if sub.sentGen == gen {
			continue
		}
		gen, err := r.writeJSONGen(SubscribeMessage{Type: MsgSubscribe, Ref: sub.Ref, Table: sub.Table, Filter: sub.Filter})
		if err != nil {
			return err
		}
		sub.sentGen = gen
		sent++
	}

	slog.Info("rt_subscriptions_sent", "count", sent)
	return nil
}

func (r *Realtime) currentGen() uint64 {
	r.connMu.Lock()
	defer r.connMu.Unlock()
	return r.connGen
}

// readLoop reads messages from the WebSocket.
func (r *Realtime) readLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-r.stopChan:
			return nil
		default:
		}

		r.connMu.Lock()
		conn := r.conn
		r.connMu.Unlock()

		if conn == nil {
			return fmt.Errorf("connection is nil")
		}

		conn.SetReadDeadline(time.Now().Add(HeartbeatTimeout + PongTimeout))

		_, message, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read error: %w", err)
		}

		r.updateLastMsg()
		r.handleMessage(message)
	}
}

// handleMessage parses a message and routes changes to subscriptions.
func (r *Realtime) handleMessage(data []byte) {
	change, msgType, err := ParseChange(data)
	if err != nil {
		slog.Debug("rt_parse_error", "error", err, "raw", truncate(string(data), 256))
		return
	}

	if change == nil {
		if msgType != "" {
			slog.Debug("rt_message", "type", msgType)
		}
		return
	}

	r.dispatch(*change)
}

// dispatch delivers a change to the subscription named by its ref, or to
// every subscription on its table when the server sent no ref.
func (r *Realtime) dispatch(change store.Change) {
	r.subsMu.Lock()
	defer r.subsMu.Unlock()

	if change.Ref != "" {
		if sub, ok := r.subs[change.Ref]; ok {
			r.deliverLocked(sub, change)
		}
		return
	}

	for _, sub := range r.subs {
		if sub.Table == change.Table {
			r.deliverLocked(sub, change)
		}
	}
}

func (r *Realtime) deliverLocked(sub *Subscription, change store.Change) {
	if sub.closed {
		return
	}
	select {
	case sub.ch <- change:
		slog.Debug("rt_change_received", "table", change.Table, "event", change.Event, "ref", truncate(sub.Ref, 8))
	default:
		slog.Warn("change_channel_full", "table", change.Table, "ref", sub.Ref)
	}
}

// heartbeatMonitor checks for connection health.
func (r *Realtime) heartbeatMonitor(ctx context.Context) {
	defer r.wg.Done()

	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			// Unblocks a pending read in runLoop.
			r.closeConnection()
			return
		case <-r.stopChan:
			return
		case <-ticker.C:
			r.checkHeartbeat()
		}
	}
}

// checkHeartbeat pings a quiet connection and drops it if the ping fails.
func (r *Realtime) checkHeartbeat() {
	r.lastMsgMu.RLock()
	lastMsg := r.lastMsg
	r.lastMsgMu.RUnlock()

	if lastMsg.IsZero() {
		return
	}

	elapsed := time.Since(lastMsg)
	if elapsed <= HeartbeatTimeout {
		return
	}

	slog.Warn("rt_heartbeat_timeout", "elapsed", elapsed)

	r.connMu.Lock()
	defer r.connMu.Unlock()
	if r.conn == nil {
		return
	}
	if err := r.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(WriteTimeout)); err != nil {
		slog.Warn("rt_ping_failed", "error", err)
		r.conn.Close()
	}
}

func (r *Realtime) writeJSON(v interface{}) error {
	_, err := r.writeJSONGen(v)
	return err
}

// writeJSONGen writes v and returns the generation of the connection used.
func (r *Realtime) writeJSONGen(v interface{}) (uint64, error) {
	r.connMu.Lock()
	defer r.connMu.Unlock()

	if r.conn == nil {
		return 0, fmt.Errorf("not connected")
	}

	r.conn.SetWriteDeadline(time.Now().Add(WriteTimeout))
	if err := r.conn.WriteJSON(v); err != nil {
		return 0, fmt.Errorf("write failed: %w", err)
	}
	return r.connGen, nil
}

// updateLastMsg updates the last message timestamp.
func (r *Realtime) updateLastMsg() {
	r.lastMsgMu.Lock()
	r.lastMsg = time.Now()
	r.lastMsgMu.Unlock()
}

// closeConnection safely closes the WebSocket connection.
func (r *Realtime) closeConnection() {
	r.connMu.Lock()
	defer r.connMu.Unlock()

	if r.conn != nil {
		r.conn.Close()
		r.conn = nil
		slog.Info("rt_disconnected")
	}

	r.statusMu.Lock()
	r.connected = false
	r.statusMu.Unlock()
}

// waitBackoff waits for the backoff duration with jitter.
func (r *Realtime) waitBackoff(ctx context.Context) {
	jitter := time.Duration(float64(r.backoff) * JitterPercent * (rand.Float64()*2 - 1))
	wait := r.backoff + jitter

	slog.Debug("rt_waiting_backoff", "duration", wait)

	select {
	case <-ctx.Done():
	case <-r.stopChan:
	case <-time.After(wait):
	}

	r.backoff = time.Duration(float64(r.backoff) * BackoffFactor)
	if r.backoff > MaxBackoff {
		r.backoff = MaxBackoff
	}
}
