// Package event is a small publish/subscribe bus. Subscriptions are explicit
// and torn down by the function Subscribe returns.
package event

import (
	"sync"
	"time"
)

// Type names a kind of event.
type Type string

// Event types published inside pulse.
const (
	EffectsStarted  Type = "effects.started"
	EffectsStopped  Type = "effects.stopped"
	EffectsDrained  Type = "effects.drained"
	SignalDetected  Type = "signal.detected"
	MarketsUpdated  Type = "markets.updated"
	BreakingUpdated Type = "breaking.updated"
)

// Event is a published notification.
type Event struct {
	Type Type
	Data interface{}
	At   time.Time
}

// Handler receives events.
type Handler func(Event)

type subscription struct {
	id      uint64
	handler Handler
}

// Bus dispatches events to handlers in subscription order. It is safe for
// concurrent use; handlers run on the publisher's goroutine without the bus
// lock held, so they may subscribe, unsubscribe or publish.
type Bus struct {
	mu        sync.RWMutex
	nextID    uint64
	listeners map[Type][]subscription
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{
		listeners: make(map[Type][]subscription),
	}
}

// Subscribe registers h for events of type t. The returned function removes
// the subscription; calling it more than once is harmless.
func (b *Bus) Subscribe(t Type, h Handler) (unsubscribe func()) {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.listeners[t] = append(b.listeners[t], subscription{id: id, handler: h})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(t, id) })
	}
}

func (b *Bus) remove(t Type, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.listeners[t]
	for i, s := range subs {
		if s.id == id {
			b.listeners[t] = append(subs[:i:i], subs[i+1:]...)
			break
		}
	}
	if len(b.listeners[t]) == 0 {
		delete(b.listeners, t)
	}
}

// Publish delivers e to every current subscriber of e.Type.
func (b *Bus) Publish(e Event) {
	if e.At.IsZero() {
		e.At = time.Now()
	}

	b.mu.RLock()
	subs := append([]subscription(nil), b.listeners[e.Type]...)
	b.mu.RUnlock()

	for _, s := range subs {
		s.handler(e)
	}
}

// Len returns the number of subscribers for t.
func (b *Bus) Len(t Type) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners[t])
}
