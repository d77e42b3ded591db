package particle

import (
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/polyinsider/pulse/internal/event"
)

// Engine defaults.
const (
	DefaultMaxParticles = 1000
	DefaultGravity      = 0.1
	DefaultFriction     = 0.98
	DefaultFrameRate    = 60
)

// Surface is the drawable target of an engine. The engine calls Clear, then
// Draw once per live particle, then Present, all within one frame.
type Surface interface {
	Clear()
	Draw(p Particle)
	Present()
}

// NopSurface discards all drawing.
type NopSurface struct{}

func (NopSurface) Clear()        {}
func (NopSurface) Draw(Particle) {}
func (NopSurface) Present()      {}

// Config is fixed for the lifetime of an engine.
type Config struct {
	// MaxParticles caps the pool. Zero means the engine never holds particles.
	MaxParticles int
	// Gravity is added to the vertical velocity every tick.
	Gravity float64
	// Friction multiplies both velocity components every tick, before gravity.
	// Zero means DefaultFriction.
	Friction float64
	// Enabled starts the render loop on construction.
	Enabled bool
	// FrameRate is used by the default TimerScheduler.
	FrameRate int
}

// DefaultConfig returns the stock engine configuration.
func DefaultConfig() Config {
	return Config{
		MaxParticles: DefaultMaxParticles,
		Gravity:      DefaultGravity,
		Friction:     DefaultFriction,
		Enabled:      true,
		FrameRate:    DefaultFrameRate,
	}
}

// Stats is a point-in-time view of engine activity.
type Stats struct {
	Live          int
	Capacity      int
	Running       bool
	Frames        uint64
	DroppedFrames uint64
	Emitted       uint64
	Throttled     uint64
}

// Option customises an Engine.
type Option func(*Engine)

// WithScheduler replaces the default TimerScheduler.
func WithScheduler(s Scheduler) Option {
	return func(e *Engine) { e.sched = s }
}

// WithClock replaces time.Now for emission throttling.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.clock = now }
}

// WithSeed makes emission deterministic.
func WithSeed(seed uint64) Option {
	return func(e *Engine) { e.rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)) }
}

// WithBus publishes lifecycle events (started, stopped, drained) to bus.
func WithBus(bus *event.Bus) Option {
	return func(e *Engine) { e.bus = bus }
}

// WithName labels the engine in logs and events.
func WithName(name string) Option {
	return func(e *Engine) { e.name = name }
}

// Engine owns a particle pool and a surface and advances the simulation once
// per scheduled frame while running.
type Engine struct {
	mu sync.Mutex

	id      string
	name    string
	cfg     Config
	pool    *Pool
	surface Surface
	sched   Scheduler
	clock   func() time.Time
	rng     *rand.Rand
	bus     *event.Bus

	throttle    throttle
	running     bool
	gen         uint64
	cancelFrame func()
	populated   bool
	stats       Stats
}

// NewEngine creates an engine drawing onto surface. A nil surface discards
// drawing. If cfg.Enabled is set the render loop starts immediately.
func NewEngine(surface Surface, cfg Config, opts ...Option) *Engine {
	if cfg.MaxParticles < 0 {
		cfg.MaxParticles = 0
	}
	if cfg.FrameRate <= 0 {
		cfg.FrameRate = DefaultFrameRate
	}
	if cfg.Friction == 0 {
		cfg.Friction = DefaultFriction
	}
	if surface == nil {
		surface = NopSurface{}
	}

	e := &Engine{
		id:      uuid.NewString(),
		name:    "effects",
		cfg:     cfg,
		pool:    NewPool(cfg.MaxParticles),
		surface: surface,
		clock:   time.Now,
		rng:     rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.sched == nil {
		e.sched = NewTimerScheduler(cfg.FrameRate)
	}

	if cfg.Enabled {
		e.Start()
	}
	return e
}

// ID returns the engine's unique identifier.
func (e *Engine) ID() string {
	return e.id
}

// Name returns the engine's label.
func (e *Engine) Name() string {
	return e.name
}

// Config returns the engine configuration.
func (e *Engine) Config() Config {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cfg
}

// Emit adds up to count particles described by cfg. Calls arriving sooner
// than cfg.Interval() after the last accepted call are dropped, and particles
// beyond capacity are silently discarded. It returns the number added. An
// invalid cfg returns an error wrapping ErrInvalidEmitter.
func (e *Engine) Emit(cfg EmitterConfig, count int) (int, error) {
	if count <= 0 {
		return 0, nil
	}

	emitter, err := cfg.compile()
	if err != nil {
		return 0, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.throttle.allow(e.clock(), cfg.Interval()) {
		e.stats.Throttled++
		return 0, nil
	}

	added := 0
	for added < count && !e.pool.Full() {
		e.pool.Add(emitter.spawn(e.rng))
		added++
	}

	if added > 0 {
		e.populated = true
		e.stats.Emitted += uint64(added)
	}
	return added, nil
}

// Start begins the render loop. Starting a running engine does nothing.
func (e *Engine) Start() {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return
	}
	e.running = true
	e.cfg.Enabled = true
	e.gen++
	e.scheduleLocked(e.gen)
	e.mu.Unlock()

	slog.Debug("effects_started", "engine", e.name)
	e.publish(event.EffectsStarted)
}

// Stop cancels the pending frame. No frame runs after Stop returns. Stopping
// a stopped engine does nothing.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.running = false
	e.cfg.Enabled = false
	if e.cancelFrame != nil {
		e.cancelFrame()
		e.cancelFrame = nil
	}
	e.mu.Unlock()

	slog.Debug("effects_stopped", "engine", e.name)
	e.publish(event.EffectsStopped)
}

// SetEnabled starts or stops the render loop.
func (e *Engine) SetEnabled(enabled bool) {
	if enabled {
		e.Start()
		return
	}
	e.Stop()
}

// Running reports whether the render loop is active.
func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// Clear removes every particle immediately. The emission throttle keeps its
// window.
func (e *Engine) Clear() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.pool.Clear()
	e.populated = false
}

// Count returns the number of live particles.
func (e *Engine) Count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pool.Count()
}

// Particles returns a copy of the live particles.
func (e *Engine) Particles() []Particle {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pool.Snapshot()
}

// Stats returns engine counters.
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()

	s := e.stats
	s.Live = e.pool.Count()
	s.Capacity = e.pool.Cap()
	s.Running = e.running
	return s
}

// Step advances exactly one frame regardless of the loop state. Hosts that
// own their frame loop call it instead of Start.
func (e *Engine) Step() {
	e.mu.Lock()
	drained := e.advanceLocked()
	e.mu.Unlock()

	if drained {
		e.publish(event.EffectsDrained)
	}
}

// frame is the scheduled callback. gen ties it to one Start; frames left over
// from an earlier run are ignored.
func (e *Engine) frame(gen uint64) {
	e.mu.Lock()
	if !e.running || gen != e.gen {
		e.mu.Unlock()
		return
	}
	drained := e.advanceLocked()
	e.scheduleLocked(gen)
	e.mu.Unlock()

	if drained {
		e.publish(event.EffectsDrained)
	}
}

func (e *Engine) scheduleLocked(gen uint64) {
	e.cancelFrame = e.sched.RequestFrame(func() { e.frame(gen) })
}

// advanceLocked integrates and renders one frame. It reports whether the pool
// just emptied after holding particles.
func (e *Engine) advanceLocked() bool {
	e.pool.Integrate(e.cfg.Gravity, e.cfg.Friction)
	e.stats.Frames++

	if err := e.renderLocked(); err != nil {
		e.stats.DroppedFrames++
		slog.Debug("frame_dropped", "engine", e.name, "error", err)
	}

	if e.populated && e.pool.Count() == 0 {
		e.populated = false
		return true
	}
	return false
}

func (e *Engine) renderLocked() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("surface panic: %v", r)
		}
	}()

	e.surface.Clear()
	e.pool.Each(e.surface.Draw)
	e.surface.Present()
	return nil
}

func (e *Engine) publish(t event.Type) {
	if e.bus == nil {
		return
	}
	e.bus.Publish(event.Event{Type: t, Data: e.name})
}
