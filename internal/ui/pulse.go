package ui

import (
	"github.com/charmbracelet/harmonica"
	"github.com/gdamore/tcell/v2"
	"github.com/lucasb-eyer/go-colorful"
)

// Pulse is a spring-driven highlight that jumps to full strength on Trigger
// and settles back to zero over a few refreshes.
type Pulse struct {
	spring harmonica.Spring
	pos    float64
	vel    float64

	base, accent colorful.Color
}

// NewPulse creates a pulse stepped fps times per second, blending from base
// to accent at full strength.
func NewPulse(fps int, base, accent colorful.Color) *Pulse {
	return &Pulse{
		spring: harmonica.NewSpring(harmonica.FPS(fps), 6.0, 0.5),
		base:   base,
		accent: accent,
	}
}

// Trigger sets the highlight to full strength.
func (p *Pulse) Trigger() {
	p.pos = 1
}

// Step advances the spring one refresh and returns the strength in [0, 1].
func (p *Pulse) Step() float64 {
	p.pos, p.vel = p.spring.Update(p.pos, p.vel, 0)
	if p.pos < 0.01 && p.pos > -0.01 {
		p.pos, p.vel = 0, 0
	}
	return p.Strength()
}

// Strength returns the current strength clamped to [0, 1].
func (p *Pulse) Strength() float64 {
	switch {
	case p.pos < 0:
		return 0
	case p.pos > 1:
		return 1
	}
	return p.pos
}

// Color returns the current blended color.
func (p *Pulse) Color() tcell.Color {
	c := p.base.BlendLab(p.accent, p.Strength()).Clamped()
	r, g, b := c.RGB255()
	return tcell.NewRGBColor(int32(r), int32(g), int32(b))
}
