package particle

import (
	"fmt"
	"math/rand/v2"
	"strings"

	"gopkg.in/yaml.v3"
)

// Shape is the renderable form of a particle.
type Shape uint8

const (
	Circle Shape = iota
	Square
	Triangle
	Star
)

// Shapes lists every concrete shape, in the order mixed selection draws from.
var Shapes = [...]Shape{Circle, Square, Triangle, Star}

func (s Shape) String() string {
	switch s {
	case Circle:
		return "circle"
	case Square:
		return "square"
	case Triangle:
		return "triangle"
	case Star:
		return "star"
	default:
		return fmt.Sprintf("shape(%d)", uint8(s))
	}
}

// ParseShape parses a concrete shape name.
func ParseShape(name string) (Shape, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "circle":
		return Circle, nil
	case "square":
		return Square, nil
	case "triangle":
		return Triangle, nil
	case "star":
		return Star, nil
	}
	return 0, fmt.Errorf("unknown shape %q", name)
}

// ShapeSelector chooses the shape of each emitted particle: either one fixed
// shape or a uniform pick among all of Shapes. The zero value is Fixed(Circle).
type ShapeSelector struct {
	shape Shape
	mixed bool
}

// Fixed selects the same shape for every particle.
func Fixed(s Shape) ShapeSelector {
	return ShapeSelector{shape: s}
}

// Mixed selects uniformly among all concrete shapes per particle.
func Mixed() ShapeSelector {
	return ShapeSelector{mixed: true}
}

// IsMixed reports whether the selector picks randomly.
func (s ShapeSelector) IsMixed() bool {
	return s.mixed
}

// Pick returns the shape for the next particle.
func (s ShapeSelector) Pick(rng *rand.Rand) Shape {
	if !s.mixed {
		return s.shape
	}
	return Shapes[rng.IntN(len(Shapes))]
}

func (s ShapeSelector) String() string {
	if s.mixed {
		return "mixed"
	}
	return s.shape.String()
}

// ParseShapeSelector accepts a shape name or "mixed".
func ParseShapeSelector(name string) (ShapeSelector, error) {
	if strings.EqualFold(strings.TrimSpace(name), "mixed") {
		return Mixed(), nil
	}
	shape, err := ParseShape(name)
	if err != nil {
		return ShapeSelector{}, err
	}
	return Fixed(shape), nil
}

// UnmarshalYAML decodes a selector from a scalar such as "star" or "mixed".
func (s *ShapeSelector) UnmarshalYAML(node *yaml.Node) error {
	var name string
	if err := node.Decode(&name); err != nil {
		return fmt.Errorf("shape: %w", err)
	}
	sel, err := ParseShapeSelector(name)
	if err != nil {
		return err
	}
	*s = sel
	return nil
}

// MarshalYAML encodes the selector as its name.
func (s ShapeSelector) MarshalYAML() (interface{}, error) {
	return s.String(), nil
}
