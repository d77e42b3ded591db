package ui

import (
	"math/rand/v2"

	"github.com/aquilax/go-perlin"

	"github.com/polyinsider/pulse/internal/particle"
)

// Ambient drives a slow background snowfall whose origin wanders across the
// top of the screen following 1D Perlin noise.
type Ambient struct {
	noise *perlin.Perlin
	t     float64
	step  float64
}

// NewAmbient creates an ambient driver. seed fixes the drift path.
func NewAmbient(seed int64) *Ambient {
	return &Ambient{
		noise: perlin.NewPerlin(2, 2, 3, seed),
		step:  0.02,
	}
}

// NewRandomAmbient creates an ambient driver with a random drift path.
func NewRandomAmbient() *Ambient {
	return NewAmbient(rand.Int64())
}

// Next advances the drift and returns the emitter origin for a surface of
// the given world width. The origin sits just above the top edge.
func (a *Ambient) Next(width float64) particle.Vec2 {
	a.t += a.step
	// Noise1D is roughly in [-1, 1]; scale it up so the origin covers the width
	n := a.noise.Noise1D(a.t)*1.5 + 0.5
	if n < 0 {
		n = 0
	} else if n > 1 {
		n = 1
	}
	return particle.Vec2{X: n * width, Y: -4}
}
