package particle

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/lucasb-eyer/go-colorful"
)

// ErrInvalidEmitter is wrapped by every EmitterConfig validation error.
var ErrInvalidEmitter = errors.New("invalid emitter config")

// Rotation speed bounds for newly emitted particles, in radians per tick.
const (
	minRotationSpeed = -0.1
	maxRotationSpeed = 0.1
)

// EmitterConfig describes how one Emit call generates particles.
type EmitterConfig struct {
	// Origin is where particles are created.
	Origin Vec2 `yaml:"origin"`
	// Rate is in particles per second. It only throttles repeated Emit calls:
	// calls closer together than 1s/Rate are dropped.
	Rate float64 `yaml:"rate"`
	// Spread is the emission arc in radians. It is carried for callers but
	// emission angles are drawn from the full circle.
	Spread float64 `yaml:"spread"`
	Speed  Range   `yaml:"speed"`
	Size   Range   `yaml:"size"`
	Life   Range   `yaml:"life"`
	Decay  Range   `yaml:"decay"`
	// Colors is the palette; entries are "#rgb", "#rrggbb" or color names.
	Colors []string      `yaml:"colors"`
	Type   ShapeSelector `yaml:"type"`
}

// Interval is the minimum time between two accepted Emit calls.
func (c EmitterConfig) Interval() time.Duration {
	if c.Rate <= 0 {
		return 0
	}
	return time.Duration(float64(time.Second) / c.Rate)
}

// Validate checks the config for values that would produce invisible or
// immortal particles.
func (c EmitterConfig) Validate() error {
	_, err := c.compile()
	return err
}

// compiledEmitter is a validated config with its palette parsed.
type compiledEmitter struct {
	cfg     EmitterConfig
	palette []colorful.Color
}

func (c EmitterConfig) compile() (*compiledEmitter, error) {
	if c.Rate <= 0 || math.IsNaN(c.Rate) {
		return nil, fmt.Errorf("%w: rate must be positive, got %v", ErrInvalidEmitter, c.Rate)
	}

	ranges := []struct {
		name     string
		r        Range
		positive bool
	}{
		{"speed", c.Speed, false},
		{"size", c.Size, true},
		{"life", c.Life, true},
		{"decay", c.Decay, true},
	}
	for _, rc := range ranges {
		if err := checkRange(rc.name, rc.r, rc.positive); err != nil {
			return nil, err
		}
	}

	palette, err := ParsePalette(c.Colors)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEmitter, err)
	}

	return &compiledEmitter{cfg: c, palette: palette}, nil
}

func checkRange(name string, r Range, positive bool) error {
	if math.IsNaN(r.Min) || math.IsNaN(r.Max) {
		return fmt.Errorf("%w: %s range contains NaN", ErrInvalidEmitter, name)
	}
	if r.Min > r.Max {
		return fmt.Errorf("%w: %s range min %v > max %v", ErrInvalidEmitter, name, r.Min, r.Max)
	}
	if positive && r.Min <= 0 {
		return fmt.Errorf("%w: %s must be positive, got min %v", ErrInvalidEmitter, name, r.Min)
	}
	if !positive && r.Min < 0 {
		return fmt.Errorf("%w: %s must not be negative, got min %v", ErrInvalidEmitter, name, r.Min)
	}
	return nil
}

// spawn builds one particle. The pool assigns the ID.
func (e *compiledEmitter) spawn(rng *rand.Rand) Particle {
	speed := e.cfg.Speed.Sample(rng)
	size := e.cfg.Size.Sample(rng)
	life := e.cfg.Life.Sample(rng)
	decay := e.cfg.Decay.Sample(rng)
	angle := rng.Float64() * 2 * math.Pi

	return Particle{
		Position: e.cfg.Origin,
		Velocity: Vec2{
			X: math.Cos(angle) * speed,
			Y: math.Sin(angle) * speed,
		},
		Size:          size,
		Life:          life,
		MaxLife:       life,
		Color:         e.palette[rng.IntN(len(e.palette))],
		Decay:         decay,
		Shape:         e.cfg.Type.Pick(rng),
		Rotation:      rng.Float64() * 2 * math.Pi,
		RotationSpeed: Between(minRotationSpeed, maxRotationSpeed).Sample(rng),
	}
}

// throttle accepts at most one call per interval and forgets rejected calls.
type throttle struct {
	last     time.Time
	accepted bool
}

func (t *throttle) allow(now time.Time, interval time.Duration) bool {
	if t.accepted && now.Sub(t.last) < interval {
		return false
	}
	t.last = now
	t.accepted = true
	return true
}
