// Package raster draws particles onto an ebiten image with vector paths.
package raster

import (
	"image"
	"image/color"
	"math"
	"sync"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/vector"

	"github.com/polyinsider/pulse/internal/particle"
)

var (
	whiteImage    = ebiten.NewImage(3, 3)
	whiteSubImage = whiteImage.SubImage(image.Rect(1, 1, 2, 2)).(*ebiten.Image)
)

func init() {
	whiteImage.Fill(color.White)
}

// Surface implements particle.Surface for ebiten hosts. Engines step inside
// Game.Update, so frames are buffered and drawn later by DrawTo from
// Game.Draw.
type Surface struct {
	mu    sync.Mutex
	back  []particle.Particle
	front []particle.Particle

	vs []ebiten.Vertex
	is []uint16
}

// NewSurface returns an empty surface.
func NewSurface() *Surface {
	return &Surface{}
}

func (s *Surface) Clear() {
	s.mu.Lock()
	s.back = s.back[:0]
	s.mu.Unlock()
}

func (s *Surface) Draw(p particle.Particle) {
	s.mu.Lock()
	s.back = append(s.back, p)
	s.mu.Unlock()
}

func (s *Surface) Present() {
	s.mu.Lock()
	s.front, s.back = s.back, s.front
	s.mu.Unlock()
}

// Len returns the number of particles in the presented frame.
func (s *Surface) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.front)
}

// DrawTo renders the last presented frame onto dst.
func (s *Surface) DrawTo(dst *ebiten.Image) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range s.front {
		size := float32(p.RenderSize())
		if size <= 0 {
			continue
		}
		r, g, b := p.Color.RGB255()
		col := color.NRGBA{R: r, G: g, B: b, A: uint8(p.Alpha() * 255)}
		x, y := float32(p.Position.X), float32(p.Position.Y)

		switch p.Shape {
		case particle.Square:
			s.fillPath(dst, polygon(p.Position, p.RenderSize(), p.Rotation+math.Pi/4, 4, 0), col)
		case particle.Triangle:
			s.fillPath(dst, polygon(p.Position, p.RenderSize(), p.Rotation-math.Pi/2, 3, 0), col)
		case particle.Star:
			s.fillPath(dst, polygon(p.Position, p.RenderSize(), p.Rotation-math.Pi/2, 5, 0.45), col)
		default:
			vector.DrawFilledCircle(dst, x, y, size, col, true)
		}
	}
}

func (s *Surface) fillPath(dst *ebiten.Image, path *vector.Path, col color.NRGBA) {
	s.vs, s.is = path.AppendVerticesAndIndicesForFilling(s.vs[:0], s.is[:0])

	r, g, b, a := float32(col.R)/255, float32(col.G)/255, float32(col.B)/255, float32(col.A)/255
	for i := range s.vs {
		s.vs[i].SrcX, s.vs[i].SrcY = 1, 1
		s.vs[i].ColorR = r
		s.vs[i].ColorG = g
		s.vs[i].ColorB = b
		s.vs[i].ColorA = a
	}
	dst.DrawTriangles(s.vs, s.is, whiteSubImage, &ebiten.DrawTrianglesOptions{
		AntiAlias: true,
		FillRule:  ebiten.FillRuleNonZero,
	})
}

// polygon builds a regular polygon of n points around centre. A non-zero
// inner ratio inserts inner vertices to make a star.
func polygon(centre particle.Vec2, radius, rotation float64, n int, inner float64) *vector.Path {
	var path vector.Path

	points := n
	step := 2 * math.Pi / float64(n)
	if inner > 0 {
		points = n * 2
		step /= 2
	}

	for i := 0; i < points; i++ {
		r := radius
		if inner > 0 && i%2 == 1 {
			r = radius * inner
		}
		angle := rotation + step*float64(i)
		px := float32(centre.X + r*math.Cos(angle))
		py := float32(centre.Y + r*math.Sin(angle))
		if i == 0 {
			path.MoveTo(px, py)
		} else {
			path.LineTo(px, py)
		}
	}
	path.Close()
	return &path
}
