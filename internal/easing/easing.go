// Package easing provides interpolation helpers and easing curves shared by
// the particle engine and the dashboard transitions.
//
// Every curve takes a progress value t in [0, 1] and returns an eased value
// in [0, 1]. See https://easings.net/ for the shapes.
package easing

import "math"

// Func is an easing curve.
type Func func(t float64) float64

// Linear returns t unchanged.
func Linear(t float64) float64 {
	return t
}

// InQuad starts slow and accelerates: t².
func InQuad(t float64) float64 {
	return t * t
}

// OutQuad starts fast and settles: 1 - (1-t)².
func OutQuad(t float64) float64 {
	return 1 - (1-t)*(1-t)
}

// InCubic starts slow and accelerates: t³.
func InCubic(t float64) float64 {
	return t * t * t
}

// OutCubic starts fast and settles: 1 - (1-t)³.
func OutCubic(t float64) float64 {
	return 1 - math.Pow(1-t, 3)
}

// InOutCubic is slow at both ends.
func InOutCubic(t float64) float64 {
	if t < 0.5 {
		return 4 * t * t * t
	}
	return 1 - math.Pow(-2*t+2, 3)/2
}

// OutExpo decelerates sharply: 1 - 2^(-10t).
func OutExpo(t float64) float64 {
	if t >= 1.0 {
		return 1.0
	}
	return 1 - math.Pow(2, -10*t)
}

// ByName returns the curve registered under name, falling back to Linear.
func ByName(name string) Func {
	switch name {
	case "in-quad":
		return InQuad
	case "out-quad":
		return OutQuad
	case "in-cubic":
		return InCubic
	case "out-cubic":
		return OutCubic
	case "in-out-cubic":
		return InOutCubic
	case "out-expo":
		return OutExpo
	default:
		return Linear
	}
}

// Lerp interpolates between a and b. t=0 returns a, t=1 returns b.
func Lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}

// Clamp limits v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Progress returns how far elapsed is through total, clamped to [0, 1].
// A non-positive total counts as finished.
func Progress(elapsed, total float64) float64 {
	if total <= 0 {
		return 1
	}
	return Clamp(elapsed/total, 0, 1)
}
