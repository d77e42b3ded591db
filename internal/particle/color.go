package particle

import (
	"fmt"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/colornames"

	"github.com/polyinsider/pulse/internal/easing"
)

// ParseColor accepts "#rgb", "#rrggbb" or a CSS/SVG color name ("gold").
func ParseColor(s string) (colorful.Color, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return colorful.Color{}, fmt.Errorf("empty color")
	}

	if strings.HasPrefix(s, "#") {
		c, err := colorful.Hex(s)
		if err != nil {
			return colorful.Color{}, fmt.Errorf("invalid hex color %q: %w", s, err)
		}
		return c, nil
	}

	if rgba, ok := colornames.Map[strings.ToLower(s)]; ok {
		c, _ := colorful.MakeColor(rgba)
		return c, nil
	}

	return colorful.Color{}, fmt.Errorf("unknown color %q", s)
}

// ParsePalette parses every entry of a palette. An empty palette is an error.
func ParsePalette(colors []string) ([]colorful.Color, error) {
	if len(colors) == 0 {
		return nil, fmt.Errorf("palette is empty")
	}

	palette := make([]colorful.Color, 0, len(colors))
	for i, s := range colors {
		c, err := ParseColor(s)
		if err != nil {
			return nil, fmt.Errorf("palette[%d]: %w", i, err)
		}
		palette = append(palette, c)
	}
	return palette, nil
}

// Fade blends c over bg with the given opacity.
func Fade(bg, c colorful.Color, alpha float64) colorful.Color {
	return bg.BlendRgb(c, easing.Clamp(alpha, 0, 1)).Clamped()
}
