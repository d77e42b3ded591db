// Package term draws particles onto a terminal cell grid.
package term

import (
	"math"
	"sort"
	"sync"

	"github.com/gdamore/tcell/v2"
	"github.com/lucasb-eyer/go-colorful"

	"github.com/polyinsider/pulse/internal/particle"
)

// Default world-to-cell scale. A terminal cell is roughly twice as tall as it
// is wide, so one cell covers 8x16 world pixels.
const (
	DefaultCellWidth  = 8
	DefaultCellHeight = 16
)

// Cell is one painted terminal cell.
type Cell struct {
	X, Y  int
	Rune  rune
	Color colorful.Color
	Alpha float64
}

// Canvas implements particle.Surface. The engine fills a back buffer between
// Clear and Present; Present publishes it for Paint, which may run on another
// goroutine.
type Canvas struct {
	mu sync.Mutex

	cellW, cellH float64
	background   colorful.Color

	back  map[[2]int]Cell
	front []Cell

	changed chan struct{}
}

// NewCanvas returns a canvas with the default cell scale.
func NewCanvas() *Canvas {
	return &Canvas{
		cellW:      DefaultCellWidth,
		cellH:      DefaultCellHeight,
		background: colorful.Color{},
		back:       make(map[[2]int]Cell),
		changed:    make(chan struct{}, 1),
	}
}

// SetScale changes how many world units one cell covers.
func (c *Canvas) SetScale(cellW, cellH float64) {
	if cellW <= 0 || cellH <= 0 {
		return
	}
	c.mu.Lock()
	c.cellW, c.cellH = cellW, cellH
	c.mu.Unlock()
}

// SetBackground sets the color faded particles blend toward when the cell
// underneath has no background of its own.
func (c *Canvas) SetBackground(bg colorful.Color) {
	c.mu.Lock()
	c.background = bg
	c.mu.Unlock()
}

// ToWorld converts a cell coordinate to the world position of its centre.
func (c *Canvas) ToWorld(col, row int) particle.Vec2 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return particle.Vec2{
		X: (float64(col) + 0.5) * c.cellW,
		Y: (float64(row) + 0.5) * c.cellH,
	}
}

// ToCell converts a world position to a cell coordinate.
func (c *Canvas) ToCell(p particle.Vec2) (col, row int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.toCellLocked(p)
}

func (c *Canvas) toCellLocked(p particle.Vec2) (int, int) {
	return int(math.Floor(p.X / c.cellW)), int(math.Floor(p.Y / c.cellH))
}

// Clear starts a new frame.
func (c *Canvas) Clear() {
	c.mu.Lock()
	clear(c.back)
	c.mu.Unlock()
}

// Draw records p in the back buffer. When several particles share a cell the
// most opaque one wins.
func (c *Canvas) Draw(p particle.Particle) {
	alpha := p.Alpha()
	if alpha <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	col, row := c.toCellLocked(p.Position)
	if col < 0 || row < 0 {
		return
	}

	key := [2]int{col, row}
	if prev, ok := c.back[key]; ok && prev.Alpha >= alpha {
		return
	}
	c.back[key] = Cell{
		X:     col,
		Y:     row,
		Rune:  Glyph(p.Shape, p.RenderSize(), p.Rotation),
		Color: p.Color,
		Alpha: alpha,
	}
}

// Present publishes the back buffer and signals Changed without blocking.
func (c *Canvas) Present() {
	c.mu.Lock()
	front := make([]Cell, 0, len(c.back))
	for _, cell := range c.back {
		front = append(front, cell)
	}
	sort.Slice(front, func(i, j int) bool {
		if front[i].Y != front[j].Y {
			return front[i].Y < front[j].Y
		}
		return front[i].X < front[j].X
	})
	idle := len(front) == 0 && len(c.front) == 0
	c.front = front
	c.mu.Unlock()

	if idle {
		return
	}
	select {
	case c.changed <- struct{}{}:
	default:
	}
}

// Changed receives a value after each Present. Signals coalesce while no one
// is reading.
func (c *Canvas) Changed() <-chan struct{} {
	return c.changed
}

// Cells returns the last presented frame ordered by row then column.
func (c *Canvas) Cells() []Cell {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Cell(nil), c.front...)
}

// Paint draws the last presented frame onto screen as an overlay on the
// rectangle at (x, y) of size width x height. Cells outside the rectangle are
// skipped and the existing background of each cell is kept.
func (c *Canvas) Paint(screen tcell.Screen, x, y, width, height int) {
	c.mu.Lock()
	cells := c.front
	fallback := c.background
	c.mu.Unlock()

	for _, cell := range cells {
		if cell.X >= width || cell.Y >= height {
			continue
		}
		sx, sy := x+cell.X, y+cell.Y

		_, _, style, _ := screen.GetContent(sx, sy)
		_, bg, _ := style.Decompose()

		base := fallback
		if bg != tcell.ColorDefault && bg.Valid() {
			r, g, b := bg.RGB()
			base = colorful.Color{R: float64(r) / 255, G: float64(g) / 255, B: float64(b) / 255}
		}

		fg := particle.Fade(base, cell.Color, cell.Alpha)
		r, g, b := fg.RGB255()
		screen.SetContent(sx, sy, cell.Rune, nil, style.Foreground(tcell.NewRGBColor(int32(r), int32(g), int32(b))))
	}
}

var triangles = [4]rune{'▲', '▶', '▼', '◀'}

// Glyph picks the rune for a particle of the given shape, rendered size in
// world pixels and rotation in radians.
func Glyph(shape particle.Shape, size, rotation float64) rune {
	switch shape {
	case particle.Square:
		if size < 3 {
			return '▪'
		}
		return '■'
	case particle.Triangle:
		turn := math.Mod(rotation, 2*math.Pi)
		if turn < 0 {
			turn += 2 * math.Pi
		}
		// Quadrants centred on each glyph's pointing direction.
		idx := int(math.Floor((turn+math.Pi/4)/(math.Pi/2))) % len(triangles)
		return triangles[idx]
	case particle.Star:
		if size < 3 {
			return '✧'
		}
		return '✦'
	default:
		switch {
		case size < 2:
			return '·'
		case size < 4:
			return '•'
		default:
			return '●'
		}
	}
}
