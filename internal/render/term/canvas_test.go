package term

import (
	"math"
	"testing"

	"github.com/gdamore/tcell/v2"
	"github.com/lucasb-eyer/go-colorful"

	"github.com/polyinsider/pulse/internal/particle"
)

func dot(x, y, life float64) particle.Particle {
	return particle.Particle{
		Position: particle.Vec2{X: x, Y: y},
		Size:     5,
		Life:     life,
		MaxLife:  10,
		Color:    colorful.Color{R: 1, G: 1, B: 1},
		Shape:    particle.Circle,
	}
}

func TestCanvasKeepsMostOpaqueParticlePerCell(t *testing.T) {
	c := NewCanvas()

	c.Clear()
	c.Draw(dot(1, 1, 2))
	c.Draw(dot(7, 15, 9)) // same 8x16 cell
	c.Draw(dot(9, 1, 5))  // next column
	c.Draw(dot(-3, 4, 5)) // off screen
	c.Present()

	cells := c.Cells()
	if len(cells) != 2 {
		t.Fatalf("got %d cells, want 2: %+v", len(cells), cells)
	}
	if cells[0].X != 0 || cells[0].Y != 0 || math.Abs(cells[0].Alpha-0.9) > 1e-9 {
		t.Errorf("first cell = %+v", cells[0])
	}
	if cells[1].X != 1 || cells[1].Y != 0 {
		t.Errorf("second cell = %+v", cells[1])
	}
}

func TestCanvasPresentSignalsWithoutBlocking(t *testing.T) {
	c := NewCanvas()

	for i := 0; i < 3; i++ {
		c.Clear()
		c.Draw(dot(1, 1, 5))
		c.Present()
	}

	select {
	case <-c.Changed():
	default:
		t.Fatal("expected a change signal")
	}
	select {
	case <-c.Changed():
		t.Fatal("signals should coalesce")
	default:
	}
}

func TestCanvasIdleFramesDoNotSignal(t *testing.T) {
	c := NewCanvas()
	c.Clear()
	c.Draw(dot(1, 1, 5))
	c.Present()
	<-c.Changed()

	// the first empty frame erases the last cells and must be signalled
	c.Clear()
	c.Present()
	select {
	case <-c.Changed():
	default:
		t.Fatal("expected a signal for the frame that emptied the canvas")
	}

	c.Clear()
	c.Present()
	select {
	case <-c.Changed():
		t.Fatal("idle frames should not signal")
	default:
	}
}

func TestCanvasClearOnlyAffectsNextFrame(t *testing.T) {
	c := NewCanvas()
	c.Clear()
	c.Draw(dot(1, 1, 5))
	c.Present()

	c.Clear()
	if len(c.Cells()) != 1 {
		t.Error("Clear should not drop the presented frame")
	}
	c.Present()
	if len(c.Cells()) != 0 {
		t.Error("empty frame should present no cells")
	}
}

func TestPaintOverlaysScreen(t *testing.T) {
	screen := tcell.NewSimulationScreen("UTF-8")
	if err := screen.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	defer screen.Fini()
	screen.SetSize(10, 5)

	base := tcell.StyleDefault.Background(tcell.NewRGBColor(0, 0, 128))
	screen.SetContent(2, 1, 'x', nil, base)

	c := NewCanvas()
	c.SetScale(1, 1)
	c.Clear()
	c.Draw(dot(1.5, 0.5, 10))
	c.Draw(dot(50, 0, 10)) // beyond the rectangle
	c.Present()

	c.Paint(screen, 1, 1, 5, 3)

	mainc, _, style, _ := screen.GetContent(2, 1)
	if mainc != '●' {
		t.Errorf("rune = %q, want ●", mainc)
	}
	fg, bg, _ := style.Decompose()
	if bg != tcell.NewRGBColor(0, 0, 128) {
		t.Errorf("background changed to %v", bg)
	}
	if r, g, b := fg.RGB(); r != 255 || g != 255 || b != 255 {
		t.Errorf("foreground = %d,%d,%d, want white", r, g, b)
	}

	for x := 0; x < 10; x++ {
		if mainc, _, _, _ := screen.GetContent(x, 0); mainc != ' ' && mainc != 0 {
			t.Errorf("row 0 col %d painted %q", x, mainc)
		}
	}
}

func TestWorldCellRoundTrip(t *testing.T) {
	c := NewCanvas()
	world := c.ToWorld(3, 2)
	if col, row := c.ToCell(world); col != 3 || row != 2 {
		t.Errorf("ToCell(ToWorld(3,2)) = %d,%d", col, row)
	}
}

func TestGlyph(t *testing.T) {
	tests := []struct {
		shape    particle.Shape
		size     float64
		rotation float64
		want     rune
	}{
		{particle.Circle, 1, 0, '·'},
		{particle.Circle, 3, 0, '•'},
		{particle.Circle, 6, 0, '●'},
		{particle.Square, 2, 0, '▪'},
		{particle.Square, 5, 0, '■'},
		{particle.Star, 1, 0, '✧'},
		{particle.Star, 4, 0, '✦'},
		{particle.Triangle, 3, 0, '▲'},
		{particle.Triangle, 3, math.Pi / 2, '▶'},
		{particle.Triangle, 3, math.Pi, '▼'},
		{particle.Triangle, 3, -math.Pi / 2, '◀'},
		{particle.Triangle, 3, 2*math.Pi + 0.1, '▲'},
	}

	for _, tt := range tests {
		if got := Glyph(tt.shape, tt.size, tt.rotation); got != tt.want {
			t.Errorf("Glyph(%v, %v, %v) = %q, want %q", tt.shape, tt.size, tt.rotation, got, tt.want)
		}
	}
}
