package client

import "math"

const (
	MinScale = 0.25
	MaxScale = 8
)

// Viewport maps screen coordinates to canvas coordinates:
// screen = canvas*Scale + Offset.
type Viewport struct {
	Scale   float64
	OffsetX float64
	OffsetY float64
}

// ToCanvas converts a screen position to canvas coordinates.
func (v Viewport) ToCanvas(x, y float64) (float64, float64) {
	return (x - v.OffsetX) / v.Scale, (y - v.OffsetY) / v.Scale
}

// ToScreen converts a canvas position to screen coordinates.
func (v Viewport) ToScreen(x, y float64) (float64, float64) {
	return x*v.Scale + v.OffsetX, y*v.Scale + v.OffsetY
}

// Pan shifts the view by a screen-space delta.
func (v *Viewport) Pan(dx, dy float64) {
	v.OffsetX += dx
	v.OffsetY += dy
}

// ZoomAround sets the scale, clamped, keeping canvas point (cx, cy) under
// screen point (sx, sy).
func (v *Viewport) ZoomAround(scale, cx, cy, sx, sy float64) {
	v.Scale = clampScale(scale)
	v.OffsetX = sx - cx*v.Scale
	v.OffsetY = sy - cy*v.Scale
}

func clampScale(s float64) float64 {
	if math.IsNaN(s) {
		return 1
	}
	return math.Max(MinScale, math.Min(MaxScale, s))
}

type pinch struct {
	a, b       int
	startDist  float64
	startScale float64
	// canvas point under the gesture centre when the pinch began
	cx, cy float64
}

func distance(ax, ay, bx, by float64) float64 {
	return math.Hypot(bx-ax, by-ay)
}
