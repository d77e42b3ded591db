package detector

import (
	"sync"
	"time"
)

// BurstTracker counts recent changes per market to detect surges.
type BurstTracker struct {
	mu      sync.Mutex
	changes map[string][]time.Time
	window  time.Duration
	now     func() time.Time
}

// NewBurstTracker creates a new BurstTracker with the specified window.
func NewBurstTracker(window time.Duration) *BurstTracker {
	return &BurstTracker{
		changes: make(map[string][]time.Time),
		window:  window,
		now:     time.Now,
	}
}

// Record adds a change for key and returns the number of changes within the
// window, including the new one.
func (b *BurstTracker) Record(key string) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	cutoff := now.Add(-b.window)

	timestamps := b.changes[key]

	// Timestamps are appended in order, so the first one inside the window
	// marks the start of the live range.
	start := len(timestamps)
	for i, t := range timestamps {
		if t.After(cutoff) {
			start = i
			break
		}
	}
	timestamps = append(timestamps[start:], now)
	b.changes[key] = timestamps

	return len(timestamps)
}

// Cleanup removes keys with no recent changes.
// Should be called periodically to prevent memory leaks.
func (b *BurstTracker) Cleanup() {
	b.mu.Lock()
	defer b.mu.Unlock()

	cutoff := b.now().Add(-b.window)

	for key, timestamps := range b.changes {
		if len(timestamps) == 0 || !timestamps[len(timestamps)-1].After(cutoff) {
			delete(b.changes, key)
		}
	}
}

// Len returns the number of tracked keys.
func (b *BurstTracker) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.changes)
}
