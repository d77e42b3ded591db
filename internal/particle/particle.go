// Package particle implements the effects engine: a bounded particle pool,
// rate-limited emission, per-frame integration and rendering onto a Surface,
// and a catalogue of named presets.
package particle

import (
	"math/rand/v2"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/polyinsider/pulse/internal/easing"
)

// Vec2 is a 2D point or vector in world units.
type Vec2 struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
}

// Range is an inclusive [Min, Max] interval sampled uniformly.
type Range struct {
	Min float64 `yaml:"min"`
	Max float64 `yaml:"max"`
}

// Between builds a Range.
func Between(min, max float64) Range {
	return Range{Min: min, Max: max}
}

// Sample draws a uniform value from the range. A degenerate range returns Min.
func (r Range) Sample(rng *rand.Rand) float64 {
	if r.Max <= r.Min {
		return r.Min
	}
	return r.Min + rng.Float64()*(r.Max-r.Min)
}

// Particle is a single simulated point. Alpha and the rendered size are
// derived from Life/MaxLife on demand and never stored.
type Particle struct {
	ID            uint64
	Position      Vec2
	Velocity      Vec2
	Size          float64
	Life          float64
	MaxLife       float64
	Color         colorful.Color
	Decay         float64
	Shape         Shape
	Rotation      float64
	RotationSpeed float64
}

// Alpha is the remaining-life fraction clamped to [0, 1].
func (p Particle) Alpha() float64 {
	if p.MaxLife <= 0 {
		return 0
	}
	return easing.Clamp(p.Life/p.MaxLife, 0, 1)
}

// RenderSize is the size scaled by remaining life.
func (p Particle) RenderSize() float64 {
	return p.Size * p.Alpha()
}

// Alive reports whether the particle still has life left.
func (p Particle) Alive() bool {
	return p.Life > 0
}

// step advances the particle by one tick. Friction damps velocity before
// gravity is added.
func (p *Particle) step(gravity, friction float64) {
	p.Velocity.X *= friction
	p.Velocity.Y = p.Velocity.Y*friction + gravity
	p.Position.X += p.Velocity.X
	p.Position.Y += p.Velocity.Y
	p.Rotation += p.RotationSpeed
	p.Life -= p.Decay
}
