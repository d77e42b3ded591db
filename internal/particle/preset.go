package particle

import (
	"errors"
	"fmt"
	"math"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// ErrUnknownPreset is returned when a preset name is not registered.
var ErrUnknownPreset = errors.New("unknown preset")

// Preset is a named emitter configuration plus the physics it was tuned for.
// Engines dedicated to a preset take their gravity and friction from it.
type Preset struct {
	Name     string        `yaml:"name"`
	Emitter  EmitterConfig `yaml:"emitter"`
	Count    int           `yaml:"count"`
	Gravity  float64       `yaml:"gravity"`
	Friction float64       `yaml:"friction"`
}

// Overrides replaces selected preset fields. Nil fields keep the preset value.
type Overrides struct {
	Origin   *Vec2          `yaml:"origin"`
	Rate     *float64       `yaml:"rate"`
	Spread   *float64       `yaml:"spread"`
	Speed    *Range         `yaml:"speed"`
	Size     *Range         `yaml:"size"`
	Life     *Range         `yaml:"life"`
	Decay    *Range         `yaml:"decay"`
	Colors   []string       `yaml:"colors"`
	Type     *ShapeSelector `yaml:"type"`
	Count    *int           `yaml:"count"`
	Gravity  *float64       `yaml:"gravity"`
	Friction *float64       `yaml:"friction"`
}

// Apply returns a copy of p with o merged in.
func (p Preset) Apply(o Overrides) Preset {
	out := p
	out.Emitter.Colors = append([]string(nil), p.Emitter.Colors...)

	if o.Origin != nil {
		out.Emitter.Origin = *o.Origin
	}
	if o.Rate != nil {
		out.Emitter.Rate = *o.Rate
	}
	if o.Spread != nil {
		out.Emitter.Spread = *o.Spread
	}
	if o.Speed != nil {
		out.Emitter.Speed = *o.Speed
	}
	if o.Size != nil {
		out.Emitter.Size = *o.Size
	}
	if o.Life != nil {
		out.Emitter.Life = *o.Life
	}
	if o.Decay != nil {
		out.Emitter.Decay = *o.Decay
	}
	if len(o.Colors) > 0 {
		out.Emitter.Colors = append([]string(nil), o.Colors...)
	}
	if o.Type != nil {
		out.Emitter.Type = *o.Type
	}
	if o.Count != nil {
		out.Count = *o.Count
	}
	if o.Gravity != nil {
		out.Gravity = *o.Gravity
	}
	if o.Friction != nil {
		out.Friction = *o.Friction
	}
	return out
}

// At returns the preset's emitter config positioned at origin.
func (p Preset) At(origin Vec2) EmitterConfig {
	cfg := p.Emitter
	cfg.Origin = origin
	cfg.Colors = append([]string(nil), p.Emitter.Colors...)
	return cfg
}

// EngineConfig returns base with the preset's physics.
func (p Preset) EngineConfig(base Config) Config {
	base.Gravity = p.Gravity
	base.Friction = p.Friction
	return base
}

// Validate checks the emitter part of the preset.
func (p Preset) Validate() error {
	if err := p.Emitter.Validate(); err != nil {
		return fmt.Errorf("preset %q: %w", p.Name, err)
	}
	if p.Count < 0 {
		return fmt.Errorf("preset %q: %w: negative count %d", p.Name, ErrInvalidEmitter, p.Count)
	}
	return nil
}

// Presets is a catalogue of presets keyed by name.
type Presets map[string]Preset

// Get returns the named preset.
func (ps Presets) Get(name string) (Preset, error) {
	p, ok := ps[name]
	if !ok {
		return Preset{}, fmt.Errorf("%w: %q", ErrUnknownPreset, name)
	}
	return p, nil
}

// ApplyAll returns a copy of the catalogue with o merged into every preset.
func (ps Presets) ApplyAll(o Overrides) Presets {
	out := make(Presets, len(ps))
	for name, p := range ps {
		out[name] = p.Apply(o)
	}
	return out
}

// Names returns preset names sorted alphabetically.
func (ps Presets) Names() []string {
	names := make([]string, 0, len(ps))
	for name := range ps {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Clone returns an independent copy of the catalogue.
func (ps Presets) Clone() Presets {
	return ps.ApplyAll(Overrides{})
}

// Preset names shipped with pulse.
const (
	PresetConfetti  = "confetti"
	PresetSparkle   = "sparkle"
	PresetSnow      = "snow"
	PresetFireworks = "fireworks"
	PresetTrail     = "trail"
)

// DefaultPresets returns the built-in catalogue. Units are pixels and ticks.
func DefaultPresets() Presets {
	return Presets{
		PresetConfetti: {
			Name: PresetConfetti,
			Emitter: EmitterConfig{
				Rate:   30,
				Spread: 2 * math.Pi,
				Speed:  Between(4, 10),
				Size:   Between(4, 8),
				Life:   Between(60, 100),
				Decay:  Between(1, 2),
				Colors: []string{"#f43f5e", "#f59e0b", "#10b981", "#3b82f6", "#a855f7", "#ec4899"},
				Type:   Fixed(Square),
			},
			Count:    80,
			Gravity:  0.25,
			Friction: 0.98,
		},
		PresetSparkle: {
			Name: PresetSparkle,
			Emitter: EmitterConfig{
				Rate:   60,
				Spread: 2 * math.Pi,
				Speed:  Between(0.5, 2),
				Size:   Between(2, 5),
				Life:   Between(20, 40),
				Decay:  Between(1, 1.5),
				Colors: []string{"#ffffff", "#fde68a", "#fbbf24", "gold"},
				Type:   Fixed(Star),
			},
			Count:    20,
			Gravity:  0,
			Friction: 0.95,
		},
		PresetSnow: {
			Name: PresetSnow,
			Emitter: EmitterConfig{
				Rate:   10,
				Spread: math.Pi / 2,
				Speed:  Between(0.2, 0.8),
				Size:   Between(2, 5),
				Life:   Between(200, 320),
				Decay:  Between(0.5, 1),
				Colors: []string{"#ffffff", "#e0f2fe", "#bae6fd"},
				Type:   Fixed(Circle),
			},
			Count:    30,
			Gravity:  0.02,
			Friction: 0.99,
		},
		PresetFireworks: {
			Name: PresetFireworks,
			Emitter: EmitterConfig{
				Rate:   2,
				Spread: 2 * math.Pi,
				Speed:  Between(6, 14),
				Size:   Between(3, 6),
				Life:   Between(50, 80),
				Decay:  Between(1, 2),
				Colors: []string{"#ef4444", "#f97316", "#facc15", "#22c55e", "#06b6d4", "#8b5cf6"},
				Type:   Mixed(),
			},
			Count:    120,
			Gravity:  0.12,
			Friction: 0.96,
		},
		PresetTrail: {
			Name: PresetTrail,
			Emitter: EmitterConfig{
				Rate:   30,
				Spread: 2 * math.Pi,
				Speed:  Between(0, 0.6),
				Size:   Between(2, 4),
				Life:   Between(15, 30),
				Decay:  Between(1, 1),
				Colors: []string{"#38bdf8", "#818cf8"},
				Type:   Fixed(Circle),
			},
			Count:    3,
			Gravity:  0,
			Friction: 0.9,
		},
	}
}

// presetFile is the on-disk layout of a presets file.
//
//	presets:
//	  confetti:
//	    colors: ["#fff", gold]
//	  drizzle:
//	    base: snow
//	    speed: {min: 1, max: 2}
type presetFile struct {
	Presets map[string]presetEntry `yaml:"presets"`
}

type presetEntry struct {
	Base      string `yaml:"base"`
	Overrides `yaml:",inline"`
}

// ParsePresets merges YAML preset definitions into a copy of base. Entries
// naming an existing preset override it; new names must give a base preset.
func ParsePresets(data []byte, base Presets) (Presets, error) {
	var file presetFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse presets: %w", err)
	}

	out := base.Clone()

	// Sorted so that presets based on other file entries resolve deterministically.
	names := make([]string, 0, len(file.Presets))
	for name := range file.Presets {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		entry := file.Presets[name]

		parentName := entry.Base
		if parentName == "" {
			parentName = name
		}
		parent, ok := out[parentName]
		if !ok {
			if parent, ok = base[parentName]; !ok {
				return nil, fmt.Errorf("preset %q: %w: base %q", name, ErrUnknownPreset, parentName)
			}
		}

		p := parent.Apply(entry.Overrides)
		p.Name = name
		if err := p.Validate(); err != nil {
			return nil, err
		}
		out[name] = p
	}

	return out, nil
}

// LoadPresets reads a presets file on top of DefaultPresets. An empty path
// returns the defaults.
func LoadPresets(path string) (Presets, error) {
	if path == "" {
		return DefaultPresets(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read presets file: %w", err)
	}
	return ParsePresets(data, DefaultPresets())
}
