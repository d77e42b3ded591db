package ui

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/polyinsider/pulse/internal/event"
	"github.com/polyinsider/pulse/internal/particle"
	"github.com/polyinsider/pulse/internal/render/term"
	"github.com/polyinsider/pulse/internal/store"
)

// ambientCount is the number of snowflakes per ambient tick.
const ambientCount = 2

// SignalPreset returns the preset celebrating a signal kind.
func SignalPreset(kind string) string {
	switch kind {
	case store.SignalSpike:
		return particle.PresetConfetti
	case store.SignalDrop:
		return particle.PresetSnow
	case store.SignalSurge:
		return particle.PresetSparkle
	case store.SignalResolved:
		return particle.PresetFireworks
	}
	return ""
}

// layer is one preset's engine and the canvas it draws on.
type layer struct {
	preset particle.Preset
	engine *particle.Engine
	canvas *term.Canvas
}

// Effects is a transparent overlay hosting one particle engine per preset.
// It paints over whatever the pages below it drew.
type Effects struct {
	*tview.Box

	mu      sync.Mutex
	layers  []*layer
	byName  map[string]*layer
	enabled bool
	snow    bool
	ambient *Ambient
	rng     *rand.Rand
	cols    int
	rows    int

	redraw chan struct{}
}

// NewEffects creates the overlay. Engines follow base.Enabled and take
// gravity and friction from their preset, so configured physics must already
// be applied to presets.
func NewEffects(presets particle.Presets, base particle.Config, bus *event.Bus, opts ...particle.Option) *Effects {
	e := &Effects{
		Box:     tview.NewBox(),
		byName:  make(map[string]*layer),
		enabled: base.Enabled,
		ambient: NewRandomAmbient(),
		rng:     rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		redraw:  make(chan struct{}, 1),
	}

	for _, name := range presets.Names() {
		p := presets[name]
		canvas := term.NewCanvas()
		engineOpts := append([]particle.Option{particle.WithName(name), particle.WithBus(bus)}, opts...)
		l := &layer{
			preset: p,
			engine: particle.NewEngine(canvas, p.EngineConfig(base), engineOpts...),
			canvas: canvas,
		}
		e.layers = append(e.layers, l)
		e.byName[name] = l
	}
	return e
}

// Watch forwards canvas changes to draw, at most once per interval, until
// ctx is done.
func (e *Effects) Watch(ctx context.Context, interval time.Duration, draw func()) {
	for _, l := range e.layers {
		go func(c *term.Canvas) {
			for {
				select {
				case <-ctx.Done():
					return
				case <-c.Changed():
					select {
					case e.redraw <- struct{}{}:
					default:
					}
				}
			}
		}(l.canvas)
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				select {
				case <-e.redraw:
					draw()
				default:
				}
			}
		}
	}()
}

// Draw paints every layer onto the overlay rectangle.
func (e *Effects) Draw(screen tcell.Screen) {
	x, y, width, height := e.GetInnerRect()

	e.mu.Lock()
	e.cols, e.rows = width, height
	e.mu.Unlock()

	for _, l := range e.layers {
		l.canvas.Paint(screen, x, y, width, height)
	}
}

// MouseHandler lets mouse events fall through to the pages below.
func (e *Effects) MouseHandler() func(action tview.MouseAction, event *tcell.EventMouse, setFocus func(p tview.Primitive)) (consumed bool, capture tview.Primitive) {
	return func(tview.MouseAction, *tcell.EventMouse, func(tview.Primitive)) (bool, tview.Primitive) {
		return false, nil
	}
}

// Emit emits count particles of the named preset at origin. A count of zero
// uses the preset's count. Disabled effects emit nothing.
func (e *Effects) Emit(name string, origin particle.Vec2, count int) (int, error) {
	l, ok := e.byName[name]
	if !ok {
		return 0, fmt.Errorf("%w: %q", particle.ErrUnknownPreset, name)
	}
	if !e.Enabled() {
		return 0, nil
	}
	if count <= 0 {
		count = l.preset.Count
	}
	return l.engine.Emit(l.preset.At(origin), count)
}

// EmitAt emits the named preset at a screen position. Positions outside the
// overlay are ignored.
func (e *Effects) EmitAt(name string, screenX, screenY, count int) (int, error) {
	x, y, width, height := e.GetInnerRect()
	col, row := screenX-x, screenY-y
	if col < 0 || row < 0 || col >= width || row >= height {
		return 0, nil
	}
	l, ok := e.byName[name]
	if !ok {
		return 0, fmt.Errorf("%w: %q", particle.ErrUnknownPreset, name)
	}
	return e.Emit(name, l.canvas.ToWorld(col, row), count)
}

// Celebrate plays the preset mapped to a signal kind somewhere on screen.
func (e *Effects) Celebrate(kind string) {
	name := SignalPreset(kind)
	if name == "" {
		return
	}
	l, ok := e.byName[name]
	if !ok {
		return
	}

	e.mu.Lock()
	cols, rows := e.cols, e.rows
	col := cols / 2
	row := rows / 3
	switch name {
	case particle.PresetFireworks:
		if cols > 4 {
			col = cols/4 + e.rng.IntN(cols/2)
		}
		row = rows / 4
	case particle.PresetSnow:
		row = 0
	}
	e.mu.Unlock()

	if _, err := e.Emit(name, l.canvas.ToWorld(col, row), 0); err != nil {
		slog.Warn("effect_emit_failed", "preset", name, "error", err)
	}
}

// Tick runs per UI refresh and feeds the ambient snowfall.
func (e *Effects) Tick() {
	e.mu.Lock()
	snow := e.snow && e.enabled
	cols := e.cols
	e.mu.Unlock()

	l, ok := e.byName[particle.PresetSnow]
	if !snow || !ok || cols == 0 {
		return
	}

	width := l.canvas.ToWorld(cols, 0).X
	if _, err := e.Emit(particle.PresetSnow, e.ambient.Next(width), ambientCount); err != nil {
		slog.Warn("effect_emit_failed", "preset", particle.PresetSnow, "error", err)
	}
}

// SetEnabled starts or stops every engine. Disabling also clears particles.
func (e *Effects) SetEnabled(enabled bool) {
	e.mu.Lock()
	e.enabled = enabled
	e.mu.Unlock()

	for _, l := range e.layers {
		l.engine.SetEnabled(enabled)
		if !enabled {
			l.engine.Clear()
			l.engine.Step()
		}
	}
}

// Running returns the names of engines whose render loop is active.
func (e *Effects) Running() []string {
	var names []string
	for _, l := range e.layers {
		if l.engine.Running() {
			names = append(names, l.engine.Name())
		}
	}
	return names
}

// Enabled reports whether effects are on.
func (e *Effects) Enabled() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.enabled
}

// SetAmbient turns the ambient snowfall on or off.
func (e *Effects) SetAmbient(on bool) {
	e.mu.Lock()
	e.snow = on
	e.mu.Unlock()
}

// Ambient reports whether ambient snowfall is on.
func (e *Effects) Ambient() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snow
}

// Clear removes all particles from every engine.
func (e *Effects) Clear() {
	for _, l := range e.layers {
		l.engine.Clear()
	}
}

// Count returns the live particles across engines.
func (e *Effects) Count() int {
	n := 0
	for _, l := range e.layers {
		n += l.engine.Count()
	}
	return n
}

// Stats returns per-engine stats keyed by preset name.
func (e *Effects) Stats() map[string]particle.Stats {
	out := make(map[string]particle.Stats, len(e.layers))
	for _, l := range e.layers {
		out[l.engine.Name()] = l.engine.Stats()
	}
	return out
}

// Step advances every engine one frame.
func (e *Effects) Step() {
	for _, l := range e.layers {
		l.engine.Step()
	}
}

// Stop halts every engine. No frame runs after Stop returns.
func (e *Effects) Stop() {
	for _, l := range e.layers {
		l.engine.Stop()
	}
}
