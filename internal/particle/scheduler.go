package particle

import (
	"sync"
	"time"
)

// Scheduler delivers animation-frame callbacks, in the manner of
// requestAnimationFrame: each request runs fn once, and the returned cancel
// function withdraws it if it has not run yet.
type Scheduler interface {
	RequestFrame(fn func()) (cancel func())
}

// TimerScheduler schedules frames on the wall clock at a fixed frame rate.
type TimerScheduler struct {
	interval time.Duration
}

// NewTimerScheduler returns a scheduler firing fps frames per second.
func NewTimerScheduler(fps int) *TimerScheduler {
	if fps <= 0 {
		fps = DefaultFrameRate
	}
	return &TimerScheduler{interval: time.Second / time.Duration(fps)}
}

// Interval is the delay between frames.
func (s *TimerScheduler) Interval() time.Duration {
	return s.interval
}

// RequestFrame runs fn after one frame interval on its own goroutine.
func (s *TimerScheduler) RequestFrame(fn func()) func() {
	t := time.AfterFunc(s.interval, fn)
	return func() { t.Stop() }
}

// ManualScheduler queues frame callbacks until the host calls Flush. Hosts
// that own their loop (a game loop, a test) drive the engine with it.
type ManualScheduler struct {
	mu      sync.Mutex
	pending []*manualFrame
}

type manualFrame struct {
	fn        func()
	cancelled bool
}

// NewManualScheduler returns an empty scheduler.
func NewManualScheduler() *ManualScheduler {
	return &ManualScheduler{}
}

// RequestFrame queues fn for the next Flush.
func (s *ManualScheduler) RequestFrame(fn func()) func() {
	f := &manualFrame{fn: fn}

	s.mu.Lock()
	s.pending = append(s.pending, f)
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		f.cancelled = true
		s.mu.Unlock()
	}
}

// Flush runs every callback queued before the call. Callbacks requested while
// flushing wait for the next Flush. It returns the number of callbacks run.
func (s *ManualScheduler) Flush() int {
	s.mu.Lock()
	frames := s.pending
	s.pending = nil
	s.mu.Unlock()

	ran := 0
	for _, f := range frames {
		s.mu.Lock()
		cancelled := f.cancelled
		s.mu.Unlock()
		if cancelled {
			continue
		}
		f.fn()
		ran++
	}
	return ran
}

// Pending returns the number of queued, non-cancelled callbacks.
func (s *ManualScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, f := range s.pending {
		if !f.cancelled {
			n++
		}
	}
	return n
}
