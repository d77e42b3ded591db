// Package main is a desktop viewer for tuning effect presets.
//
// Arrow keys cycle presets, a left click emits the current preset at the
// cursor, R clears every engine and P pauses or resumes them.
package main

import (
	"flag"
	"fmt"
	"image/color"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"

	"github.com/polyinsider/pulse/internal/config"
	"github.com/polyinsider/pulse/internal/particle"
	"github.com/polyinsider/pulse/internal/render/raster"
)

const (
	ScreenWidth  = 960
	ScreenHeight = 640
)

var background = color.RGBA{R: 0x0f, G: 0x17, B: 0x2a, A: 0xff}

// stage is one preset with its own engine, since physics are per engine.
type stage struct {
	preset  particle.Preset
	engine  *particle.Engine
	surface *raster.Surface
}

type viewer struct {
	sched   *particle.ManualScheduler
	stages  []*stage
	current int
	paused  bool
	emitted int
	logger  *slog.Logger
}

func newViewer(presets particle.Presets, base particle.Config, logger *slog.Logger) *viewer {
	v := &viewer{
		sched:  particle.NewManualScheduler(),
		logger: logger,
	}
	base.Enabled = true
	for _, name := range presets.Names() {
		p := presets[name]
		surface := raster.NewSurface()
		engine := particle.NewEngine(surface, p.EngineConfig(base),
			particle.WithScheduler(v.sched),
			particle.WithName(name),
		)
		v.stages = append(v.stages, &stage{preset: p, engine: engine, surface: surface})
	}
	return v
}

func (v *viewer) Update() error {
	v.sched.Flush()

	switch {
	case inpututil.IsKeyJustPressed(ebiten.KeyRight), inpututil.IsKeyJustPressed(ebiten.KeyDown):
		v.current = (v.current + 1) % len(v.stages)
		v.logger.Debug("preset_selected", "preset", v.stages[v.current].preset.Name)
	case inpututil.IsKeyJustPressed(ebiten.KeyLeft), inpututil.IsKeyJustPressed(ebiten.KeyUp):
		v.current = (v.current - 1 + len(v.stages)) % len(v.stages)
		v.logger.Debug("preset_selected", "preset", v.stages[v.current].preset.Name)
	}

	if inpututil.IsKeyJustPressed(ebiten.KeyR) {
		for _, s := range v.stages {
			s.engine.Clear()
		}
		v.logger.Debug("engines_cleared")
	}

	if inpututil.IsKeyJustPressed(ebiten.KeyP) {
		v.paused = !v.paused
		for _, s := range v.stages {
			s.engine.SetEnabled(!v.paused)
		}
		v.logger.Debug("engines_toggled", "paused", v.paused)
	}

	if inpututil.IsMouseButtonJustPressed(ebiten.MouseButtonLeft) {
		x, y := ebiten.CursorPosition()
		s := v.stages[v.current]
		n, err := s.engine.Emit(s.preset.At(particle.Vec2{X: float64(x), Y: float64(y)}), s.preset.Count)
		if err != nil {
			v.logger.Warn("emit_failed", "preset", s.preset.Name, "error", err)
		}
		v.emitted += n
	}

	if inpututil.IsKeyJustPressed(ebiten.KeyEscape) {
		return ebiten.Termination
	}
	return nil
}

func (v *viewer) Draw(screen *ebiten.Image) {
	screen.Fill(background)
	for _, s := range v.stages {
		s.surface.DrawTo(screen)
	}
	ebitenutil.DebugPrint(screen, v.status())
}

func (v *viewer) Layout(outsideWidth, outsideHeight int) (int, int) {
	return ScreenWidth, ScreenHeight
}

func (v *viewer) status() string {
	var b strings.Builder
	live := 0
	for _, s := range v.stages {
		live += s.engine.Count()
	}
	fmt.Fprintf(&b, "preset: %s (%d/%d)\n", v.stages[v.current].preset.Name, v.current+1, len(v.stages))
	fmt.Fprintf(&b, "live: %d  emitted: %d  fps: %.0f\n", live, v.emitted, ebiten.ActualFPS())
	if v.paused {
		b.WriteString("paused\n")
	}
	b.WriteString("arrows: preset  click: emit  R: clear  P: pause  Esc: quit")
	return b.String()
}

func (v *viewer) stop() {
	for _, s := range v.stages {
		s.engine.Stop()
	}
}

func main() {
	presetsFile := flag.String("presets", "", "YAML file with extra or overridden effect presets")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if *presetsFile != "" {
		cfg.PresetsFile = *presetsFile
	}

	logger := setupLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	presets, err := cfg.Presets()
	if err != nil {
		logger.Error("presets_load_failed", "file", cfg.PresetsFile, "error", err)
		os.Exit(1)
	}

	base := cfg.ParticleConfig()
	v := newViewer(presets, base, logger)
	defer v.stop()

	ebiten.SetWindowSize(ScreenWidth, ScreenHeight)
	ebiten.SetWindowTitle("pulse particles")
	ebiten.SetTPS(base.FrameRate)

	logger.Info("viewer_started", "presets", len(v.stages), "fps", base.FrameRate, "max_particles", base.MaxParticles)
	if err := ebiten.RunGame(v); err != nil {
		logger.Error("viewer_error", "error", err)
		os.Exit(1)
	}
}

func setupLogger(levelStr string) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(levelStr)); err != nil {
		level = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				if t, ok := a.Value.Any().(time.Time); ok {
					a.Value = slog.StringValue(t.Format("2006-01-02 15:04:05"))
				}
			}
			return a
		},
	}))
}
