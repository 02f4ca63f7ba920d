// Package math holds the small numeric helpers shared by the renderer and
// the chart timing code.
package math

import (
	"golang.org/x/exp/constraints"
)

// Clamp bounds value to [low, high].
func Clamp[T constraints.Ordered](value, low, high T) T {
	if value < low {
		return low
	}
	if value > high {
		return high
	}
	return value
}

// Lerp linearly interpolates between a and b by t in [0, 1].
func Lerp(a, b, t float32) float32 {
	return a + (b-a)*t
}

// InverseLerp maps value from [a, b] back to [0, 1]. Returns 0 when the
// range is degenerate.
func InverseLerp(a, b, value float64) float64 {
	if b == a {
		return 0
	}
	return (value - a) / (b - a)
}
