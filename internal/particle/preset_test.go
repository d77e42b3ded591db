package particle

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultPresetsAreValid(t *testing.T) {
	presets := DefaultPresets()

	want := []string{PresetConfetti, PresetFireworks, PresetSnow, PresetSparkle, PresetTrail}
	names := presets.Names()
	if len(names) != len(want) {
		t.Fatalf("Names() = %v, want %v", names, want)
	}
	for i, name := range want {
		if names[i] != name {
			t.Errorf("Names()[%d] = %q, want %q", i, names[i], name)
		}
	}

	for _, name := range names {
		p, _ := presets.Get(name)
		if err := p.Validate(); err != nil {
			t.Errorf("preset %q invalid: %v", name, err)
		}
		if p.Name != name {
			t.Errorf("preset keyed %q is named %q", name, p.Name)
		}
	}

	if fw, _ := presets.Get(PresetFireworks); !fw.Emitter.Type.IsMixed() {
		t.Error("fireworks should use mixed shapes")
	}
}

func TestGetUnknownPreset(t *testing.T) {
	_, err := DefaultPresets().Get("lasers")
	if !errors.Is(err, ErrUnknownPreset) {
		t.Errorf("expected ErrUnknownPreset, got %v", err)
	}
}

func TestApplyDoesNotAliasColors(t *testing.T) {
	base, _ := DefaultPresets().Get(PresetConfetti)
	first := base.Emitter.Colors[0]

	out := base.Apply(Overrides{})
	out.Emitter.Colors[0] = "#000000"

	if base.Emitter.Colors[0] != first {
		t.Errorf("Apply shared the palette with its source")
	}

	at := base.At(Vec2{X: 3, Y: 4})
	at.Colors[0] = "#000000"
	if base.Emitter.Colors[0] != first {
		t.Errorf("At shared the palette with its source")
	}
	if at.Origin != (Vec2{X: 3, Y: 4}) {
		t.Errorf("At origin = %+v", at.Origin)
	}
}

func TestApplyOverrides(t *testing.T) {
	base, _ := DefaultPresets().Get(PresetSnow)

	rate := 25.0
	count := 7
	gravity := 0.5
	sel := Fixed(Star)
	out := base.Apply(Overrides{
		Rate:    &rate,
		Count:   &count,
		Gravity: &gravity,
		Size:    &Range{Min: 1, Max: 9},
		Type:    &sel,
		Colors:  []string{"red"},
	})

	if out.Emitter.Rate != 25 || out.Count != 7 || out.Gravity != 0.5 {
		t.Errorf("scalar overrides not applied: %+v", out)
	}
	if out.Emitter.Size != (Range{Min: 1, Max: 9}) {
		t.Errorf("Size = %+v", out.Emitter.Size)
	}
	if out.Emitter.Type.String() != "star" {
		t.Errorf("Type = %v, want star", out.Emitter.Type)
	}
	if len(out.Emitter.Colors) != 1 || out.Emitter.Colors[0] != "red" {
		t.Errorf("Colors = %v", out.Emitter.Colors)
	}
	if out.Friction != base.Friction || out.Emitter.Life != base.Emitter.Life {
		t.Errorf("unset fields changed")
	}
}

func TestEngineConfigTakesPresetPhysics(t *testing.T) {
	p, _ := DefaultPresets().Get(PresetConfetti)
	cfg := p.EngineConfig(DefaultConfig())

	if cfg.Gravity != p.Gravity || cfg.Friction != p.Friction {
		t.Errorf("physics = %v/%v, want %v/%v", cfg.Gravity, cfg.Friction, p.Gravity, p.Friction)
	}
	if cfg.MaxParticles != DefaultMaxParticles {
		t.Errorf("MaxParticles = %d, want default", cfg.MaxParticles)
	}
}

func TestApplyAllOverridesEveryPreset(t *testing.T) {
	defaults := DefaultPresets()
	gravity := 2.5
	out := defaults.ApplyAll(Overrides{Gravity: &gravity})

	if len(out) != len(defaults) {
		t.Fatalf("ApplyAll returned %d presets, want %d", len(out), len(defaults))
	}
	for name, p := range out {
		if p.Gravity != gravity {
			t.Errorf("%s: gravity = %v, want %v", name, p.Gravity, gravity)
		}
		if p.Friction != defaults[name].Friction {
			t.Errorf("%s: friction changed to %v", name, p.Friction)
		}
	}
	if defaults[PresetSnow].Gravity == gravity {
		t.Error("ApplyAll modified the source catalogue")
	}
}

func TestParsePresets(t *testing.T) {
	data := []byte(`
presets:
  confetti:
    colors: ["#fff", gold]
    count: 12
  drizzle:
    base: snow
    speed: {min: 1, max: 2}
    type: mixed
`)

	presets, err := ParsePresets(data, DefaultPresets())
	if err != nil {
		t.Fatalf("ParsePresets: %v", err)
	}

	confetti, err := presets.Get(PresetConfetti)
	if err != nil {
		t.Fatalf("confetti missing: %v", err)
	}
	if confetti.Count != 12 || len(confetti.Emitter.Colors) != 2 {
		t.Errorf("confetti not overridden: %+v", confetti)
	}
	if confetti.Emitter.Type.String() != "square" {
		t.Errorf("confetti lost its shape: %v", confetti.Emitter.Type)
	}

	drizzle, err := presets.Get("drizzle")
	if err != nil {
		t.Fatalf("drizzle missing: %v", err)
	}
	snow, _ := presets.Get(PresetSnow)
	if drizzle.Emitter.Speed != (Range{Min: 1, Max: 2}) {
		t.Errorf("drizzle speed = %+v", drizzle.Emitter.Speed)
	}
	if !drizzle.Emitter.Type.IsMixed() {
		t.Errorf("drizzle type = %v, want mixed", drizzle.Emitter.Type)
	}
	if drizzle.Emitter.Life != snow.Emitter.Life || drizzle.Gravity != snow.Gravity {
		t.Errorf("drizzle did not inherit from snow")
	}
	if drizzle.Name != "drizzle" {
		t.Errorf("Name = %q", drizzle.Name)
	}

	// The base catalogue is untouched.
	if orig, _ := DefaultPresets().Get(PresetConfetti); orig.Count == 12 {
		t.Error("defaults modified")
	}
}

func TestParsePresetsErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
		want error
	}{
		{"unknown base", "presets:\n  rain:\n    base: drizzle\n", ErrUnknownPreset},
		{"new without base", "presets:\n  rain:\n    rate: 5\n", ErrUnknownPreset},
		{"invalid override", "presets:\n  snow:\n    decay: {min: 0, max: 0}\n", ErrInvalidEmitter},
		{"bad color", "presets:\n  snow:\n    colors: [\"#nothex\"]\n", ErrInvalidEmitter},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParsePresets([]byte(tt.data), DefaultPresets())
			if !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
		})
	}

	if _, err := ParsePresets([]byte("presets:\n  snow:\n    type: hexagon\n"), DefaultPresets()); err == nil {
		t.Error("expected error for unknown shape")
	}
	if _, err := ParsePresets([]byte("presets: [1, 2"), DefaultPresets()); err == nil {
		t.Error("expected error for malformed yaml")
	}
}

func TestLoadPresets(t *testing.T) {
	presets, err := LoadPresets("")
	if err != nil {
		t.Fatalf("LoadPresets(\"\"): %v", err)
	}
	if len(presets) != len(DefaultPresets()) {
		t.Errorf("empty path should return defaults, got %v", presets.Names())
	}

	path := filepath.Join(t.TempDir(), "presets.yaml")
	if err := os.WriteFile(path, []byte("presets:\n  sparkle:\n    count: 3\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	presets, err = LoadPresets(path)
	if err != nil {
		t.Fatalf("LoadPresets: %v", err)
	}
	if sp, _ := presets.Get(PresetSparkle); sp.Count != 3 {
		t.Errorf("sparkle count = %d, want 3", sp.Count)
	}

	if _, err := LoadPresets(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
