package particle

import (
	"math"
	"sync"
	"testing"
	"time"

	"github.com/polyinsider/pulse/internal/event"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1700000000, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type recordingSurface struct {
	clears, draws, presents int
	lastFrame               []Particle
}

func (s *recordingSurface) Clear() {
	s.clears++
	s.lastFrame = s.lastFrame[:0]
}

func (s *recordingSurface) Draw(p Particle) {
	s.draws++
	s.lastFrame = append(s.lastFrame, p)
}

func (s *recordingSurface) Present() { s.presents++ }

type panickingSurface struct{ NopSurface }

func (panickingSurface) Draw(Particle) { panic("context lost") }

func newTestEngine(surface Surface, cfg Config, opts ...Option) (*Engine, *ManualScheduler, *fakeClock) {
	sched := NewManualScheduler()
	clock := newFakeClock()
	opts = append([]Option{WithScheduler(sched), WithClock(clock.Now), WithSeed(1)}, opts...)
	return NewEngine(surface, cfg, opts...), sched, clock
}

func fixedEmitter(life, decay float64) EmitterConfig {
	return EmitterConfig{
		Rate:   60,
		Speed:  Between(1, 1),
		Size:   Between(2, 2),
		Life:   Between(life, life),
		Decay:  Between(decay, decay),
		Colors: []string{"#ffffff"},
		Type:   Fixed(Circle),
	}
}

func TestEmitThenExpireAfterLifetime(t *testing.T) {
	e, _, _ := newTestEngine(nil, Config{MaxParticles: 10, Gravity: 0.1, Friction: 0.98})

	added, err := e.Emit(fixedEmitter(10, 1), 5)
	if err != nil {
		t.Fatalf("Emit: %v", err)
	}
	if added != 5 || e.Count() != 5 {
		t.Fatalf("added = %d, Count() = %d, want 5", added, e.Count())
	}

	for i := 0; i < 9; i++ {
		e.Step()
	}
	if e.Count() != 5 {
		t.Errorf("Count() after 9 ticks = %d, want 5", e.Count())
	}

	e.Step()
	if e.Count() != 0 {
		t.Errorf("Count() after 10 ticks = %d, want 0", e.Count())
	}
}

func TestEmitStopsAtCapacity(t *testing.T) {
	e, _, _ := newTestEngine(nil, Config{MaxParticles: 3, Friction: 1})

	added, err := e.Emit(fixedEmitter(10, 1), 10)
	if err != nil {
		t.Fatalf("Emit: %v", err)
	}
	if added != 3 {
		t.Errorf("added = %d, want 3", added)
	}
	if e.Count() != 3 {
		t.Errorf("Count() = %d, want 3", e.Count())
	}
}

func TestGravityAccumulatesWithoutFriction(t *testing.T) {
	e, _, _ := newTestEngine(nil, Config{MaxParticles: 1, Gravity: 0.1, Friction: 1})

	cfg := fixedEmitter(100, 1)
	cfg.Speed = Between(0, 0)
	if _, err := e.Emit(cfg, 1); err != nil {
		t.Fatalf("Emit: %v", err)
	}

	e.Step()
	if vy := e.Particles()[0].Velocity.Y; math.Abs(vy-0.1) > 1e-9 {
		t.Errorf("vy after 1 tick = %v, want 0.1", vy)
	}

	e.Step()
	p := e.Particles()[0]
	if math.Abs(p.Velocity.Y-0.2) > 1e-9 {
		t.Errorf("vy after 2 ticks = %v, want 0.2", p.Velocity.Y)
	}
	if math.Abs(p.Position.Y-0.3) > 1e-9 {
		t.Errorf("y after 2 ticks = %v, want 0.3", p.Position.Y)
	}
	if p.Velocity.X != 0 || p.Position.X != 0 {
		t.Errorf("horizontal motion without speed: %+v", p)
	}
}

func TestEmitZeroCountIsNoop(t *testing.T) {
	e, _, _ := newTestEngine(nil, Config{MaxParticles: 10, Friction: 1})

	// Invalid config is not even inspected.
	added, err := e.Emit(EmitterConfig{}, 0)
	if added != 0 || err != nil {
		t.Errorf("Emit(count=0) = (%d, %v), want (0, nil)", added, err)
	}

	// A zero-count call does not consume the throttle window.
	if added, _ := e.Emit(fixedEmitter(10, 1), 2); added != 2 {
		t.Errorf("added = %d, want 2", added)
	}
}

func TestEmitRejectsInvalidConfig(t *testing.T) {
	e, _, _ := newTestEngine(nil, Config{MaxParticles: 10, Friction: 1})

	cfg := fixedEmitter(10, 0)
	added, err := e.Emit(cfg, 3)
	if err == nil {
		t.Fatal("expected error for zero decay")
	}
	if added != 0 || e.Count() != 0 {
		t.Errorf("invalid emit added particles: %d", e.Count())
	}
}

func TestEmitIsRateLimited(t *testing.T) {
	e, _, clock := newTestEngine(nil, Config{MaxParticles: 100, Friction: 1})

	cfg := fixedEmitter(50, 1)
	cfg.Rate = 10

	if added, _ := e.Emit(cfg, 5); added != 5 {
		t.Fatalf("first emit added %d, want 5", added)
	}

	clock.Advance(50 * time.Millisecond)
	if added, _ := e.Emit(cfg, 5); added != 0 {
		t.Errorf("throttled emit added %d, want 0", added)
	}

	clock.Advance(60 * time.Millisecond)
	if added, _ := e.Emit(cfg, 5); added != 5 {
		t.Errorf("emit after interval added %d, want 5", added)
	}

	stats := e.Stats()
	if stats.Throttled != 1 {
		t.Errorf("Throttled = %d, want 1", stats.Throttled)
	}
	if stats.Emitted != 10 {
		t.Errorf("Emitted = %d, want 10", stats.Emitted)
	}
}

func TestClearKeepsThrottleWindow(t *testing.T) {
	e, _, clock := newTestEngine(nil, Config{MaxParticles: 100, Friction: 1})

	cfg := fixedEmitter(50, 1)
	cfg.Rate = 1
	if added, _ := e.Emit(cfg, 4); added != 4 {
		t.Fatalf("first emit added %d, want 4", added)
	}
	e.Clear()

	if e.Count() != 0 {
		t.Fatalf("Count() after Clear = %d", e.Count())
	}

	clock.Advance(10 * time.Millisecond)
	if added, _ := e.Emit(cfg, 4); added != 0 {
		t.Errorf("emit inside interval after Clear added %d, want 0", added)
	}

	clock.Advance(time.Second)
	if added, _ := e.Emit(cfg, 4); added != 4 {
		t.Errorf("emit after interval added %d, want 4", added)
	}
}

func TestCapacityHoldsUnderChurn(t *testing.T) {
	e, _, clock := newTestEngine(nil, Config{MaxParticles: 25, Gravity: 0.1, Friction: 0.98})

	cfg := fixedEmitter(8, 1)
	cfg.Life = Between(3, 12)
	cfg.Decay = Between(0.5, 2)

	for i := 0; i < 200; i++ {
		clock.Advance(20 * time.Millisecond)
		e.Emit(cfg, 1+i%9)
		if i%3 == 0 {
			e.Step()
		}
		if n := e.Count(); n > 25 {
			t.Fatalf("iteration %d: Count() = %d exceeds capacity", i, n)
		}
	}
}

func TestLifeDecreasesUntilRemoval(t *testing.T) {
	e, _, _ := newTestEngine(nil, Config{MaxParticles: 50, Gravity: 0.1, Friction: 0.98})

	cfg := fixedEmitter(10, 1)
	cfg.Life = Between(5, 30)
	cfg.Decay = Between(0.7, 2.5)
	if _, err := e.Emit(cfg, 50); err != nil {
		t.Fatalf("Emit: %v", err)
	}

	deadline := 0
	prev := map[uint64]float64{}
	for _, p := range e.Particles() {
		prev[p.ID] = p.Life
		if ticks := int(math.Ceil(p.MaxLife / p.Decay)); ticks > deadline {
			deadline = ticks
		}
	}

	for tick := 1; tick <= deadline; tick++ {
		e.Step()
		for _, p := range e.Particles() {
			last, ok := prev[p.ID]
			if !ok {
				t.Fatalf("unknown particle %d appeared", p.ID)
			}
			if p.Life >= last {
				t.Fatalf("particle %d life went from %v to %v", p.ID, last, p.Life)
			}
			if p.Life <= 0 {
				t.Fatalf("particle %d still live with life %v", p.ID, p.Life)
			}
			if want := p.Life / p.MaxLife; math.Abs(p.Alpha()-want) > 1e-12 {
				t.Fatalf("alpha %v, want %v", p.Alpha(), want)
			}
			if p.Alpha() <= 0 || p.Alpha() > 1 {
				t.Fatalf("alpha %v out of (0, 1]", p.Alpha())
			}
			prev[p.ID] = p.Life
		}
	}

	if e.Count() != 0 {
		t.Errorf("Count() after %d ticks = %d, want 0", deadline, e.Count())
	}
}

func TestStepDrawsEveryLiveParticle(t *testing.T) {
	surface := &recordingSurface{}
	e, _, _ := newTestEngine(surface, Config{MaxParticles: 10, Friction: 1})

	e.Emit(fixedEmitter(10, 1), 4)
	e.Step()

	if surface.clears != 1 || surface.presents != 1 {
		t.Errorf("clears = %d, presents = %d, want 1 each", surface.clears, surface.presents)
	}
	if surface.draws != 4 || len(surface.lastFrame) != 4 {
		t.Errorf("draws = %d, want 4", surface.draws)
	}
}

func TestEngineStartsWhenEnabled(t *testing.T) {
	e, sched, _ := newTestEngine(nil, Config{MaxParticles: 10, Friction: 1, Enabled: true})

	if !e.Running() {
		t.Fatal("expected engine to be running")
	}
	if sched.Pending() != 1 {
		t.Errorf("Pending() = %d, want 1", sched.Pending())
	}

	for i := 0; i < 3; i++ {
		if ran := sched.Flush(); ran != 1 {
			t.Fatalf("flush %d ran %d frames, want 1", i, ran)
		}
	}
	if frames := e.Stats().Frames; frames != 3 {
		t.Errorf("Frames = %d, want 3", frames)
	}
}

func TestStopIsIdempotentAndHaltsFrames(t *testing.T) {
	bus := event.NewBus()
	stopped := 0
	bus.Subscribe(event.EffectsStopped, func(event.Event) { stopped++ })

	e, sched, _ := newTestEngine(nil, Config{MaxParticles: 10, Friction: 1}, WithBus(bus))
	e.Emit(fixedEmitter(100, 1), 3)

	e.Start()
	e.Start()
	if sched.Pending() != 1 {
		t.Fatalf("Pending() after double Start = %d, want 1", sched.Pending())
	}
	sched.Flush()

	e.Stop()
	e.Stop()

	if stopped != 1 {
		t.Errorf("stopped events = %d, want 1", stopped)
	}
	if e.Running() {
		t.Error("engine still running")
	}
	if sched.Pending() != 0 {
		t.Errorf("Pending() after Stop = %d, want 0", sched.Pending())
	}

	frames := e.Stats().Frames
	if ran := sched.Flush(); ran != 0 {
		t.Errorf("flush after Stop ran %d frames", ran)
	}
	if got := e.Stats().Frames; got != frames {
		t.Errorf("Frames advanced after Stop: %d -> %d", frames, got)
	}
	if e.Count() != 3 {
		t.Errorf("Stop removed particles: Count() = %d", e.Count())
	}
}

func TestRestartIgnoresStaleFrames(t *testing.T) {
	// A scheduler that ignores cancellation, so a stale callback still fires.
	var queued []func()
	sched := schedulerFunc(func(fn func()) func() {
		queued = append(queued, fn)
		return func() {}
	})

	e := NewEngine(nil, Config{MaxParticles: 10, Friction: 1}, WithScheduler(sched))
	e.Start()
	e.Stop()
	e.Start()

	for len(queued) > 0 {
		batch := queued
		queued = nil
		for _, fn := range batch {
			fn()
		}
		if e.Stats().Frames >= 5 {
			break
		}
	}

	// Only the second run's chain advances: one frame per batch.
	if frames := e.Stats().Frames; frames != 5 {
		t.Errorf("Frames = %d, want 5", frames)
	}
}

type schedulerFunc func(fn func()) func()

func (f schedulerFunc) RequestFrame(fn func()) func() { return f(fn) }

func TestSetEnabled(t *testing.T) {
	e, _, _ := newTestEngine(nil, Config{MaxParticles: 10, Friction: 1})

	e.SetEnabled(true)
	if !e.Running() || !e.Config().Enabled {
		t.Error("SetEnabled(true) did not start the engine")
	}
	e.SetEnabled(false)
	if e.Running() || e.Config().Enabled {
		t.Error("SetEnabled(false) did not stop the engine")
	}
}

func TestSurfacePanicDropsFrame(t *testing.T) {
	e, _, _ := newTestEngine(panickingSurface{}, Config{MaxParticles: 10, Friction: 1})

	e.Emit(fixedEmitter(10, 1), 2)
	e.Step()
	e.Step()

	stats := e.Stats()
	if stats.DroppedFrames != 2 {
		t.Errorf("DroppedFrames = %d, want 2", stats.DroppedFrames)
	}
	if stats.Frames != 2 {
		t.Errorf("Frames = %d, want 2", stats.Frames)
	}
	if p := e.Particles(); len(p) != 2 || p[0].Life != 8 {
		t.Errorf("simulation did not advance through dropped frames: %+v", p)
	}
}

func TestDrainedPublishedOncePerBurst(t *testing.T) {
	bus := event.NewBus()
	var names []string
	bus.Subscribe(event.EffectsDrained, func(ev event.Event) { names = append(names, ev.Data.(string)) })

	e, _, clock := newTestEngine(nil, Config{MaxParticles: 10, Friction: 1}, WithBus(bus), WithName("confetti"))

	e.Step()
	if len(names) != 0 {
		t.Fatalf("drained published for an engine that never held particles")
	}

	e.Emit(fixedEmitter(2, 1), 3)
	e.Step()
	e.Step()
	e.Step()

	if len(names) != 1 || names[0] != "confetti" {
		t.Errorf("drained events = %v, want [confetti]", names)
	}

	clock.Advance(time.Second)
	e.Emit(fixedEmitter(1, 1), 1)
	e.Step()
	if len(names) != 2 {
		t.Errorf("drained events after second burst = %d, want 2", len(names))
	}
}

func TestZeroCapacityEngine(t *testing.T) {
	e, _, _ := newTestEngine(nil, Config{MaxParticles: 0, Friction: 1})

	added, err := e.Emit(fixedEmitter(10, 1), 5)
	if err != nil || added != 0 {
		t.Errorf("Emit = (%d, %v), want (0, nil)", added, err)
	}
	if s := e.Stats(); s.Capacity != 0 || s.Live != 0 {
		t.Errorf("stats = %+v", s)
	}
}

func TestTimerSchedulerHaltsAfterStop(t *testing.T) {
	e := NewEngine(nil, Config{MaxParticles: 10, Friction: 1, Enabled: true, FrameRate: 200})

	deadline := time.Now().Add(2 * time.Second)
	for e.Stats().Frames < 3 {
		if time.Now().After(deadline) {
			t.Fatal("engine produced no frames")
		}
		time.Sleep(5 * time.Millisecond)
	}

	e.Stop()
	frames := e.Stats().Frames
	time.Sleep(50 * time.Millisecond)

	if got := e.Stats().Frames; got != frames {
		t.Errorf("frames advanced after Stop: %d -> %d", frames, got)
	}
}

func TestZeroFrictionDefaults(t *testing.T) {
	e, _, _ := newTestEngine(nil, Config{MaxParticles: 10})

	if got := e.Config().Friction; got != DefaultFriction {
		t.Fatalf("Friction = %v, want %v", got, DefaultFriction)
	}

	if _, err := e.Emit(fixedEmitter(100, 1), 1); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	e.Step()
	before := e.Particles()[0].Position
	e.Step()
	after := e.Particles()[0].Position

	if before == after {
		t.Errorf("particle stopped moving after one tick at %+v", after)
	}
}

func TestEngineIdentity(t *testing.T) {
	a := NewEngine(nil, Config{}, WithName("snow"))
	b := NewEngine(nil, Config{})

	if a.ID() == "" || a.ID() == b.ID() {
		t.Errorf("engine ids not unique: %q %q", a.ID(), b.ID())
	}
	if a.Name() != "snow" || b.Name() != "effects" {
		t.Errorf("names = %q, %q", a.Name(), b.Name())
	}
	if a.Config().FrameRate != DefaultFrameRate {
		t.Errorf("FrameRate = %d, want default", a.Config().FrameRate)
	}
}
