package core

import (
	"fmt"
	"math"
	"regexp"
)

// Tool is the drawing tool a stroke was made with.
type Tool string

const (
	ToolBrush  Tool = "brush"
	ToolEraser Tool = "eraser"
	ToolFill   Tool = "fill"
)

// Layer selects which logical layer a primitive targets on receivers.
type Layer string

const (
	// LayerBase is the committed canvas (normal mode).
	LayerBase Layer = "base"
	// LayerGuide is the active guide step overlay.
	LayerGuide Layer = "guide"
)

// Point is a position in logical canvas coordinates.
type Point struct {
	X float64
	Y float64
}

// Stroke is one continuous freehand gesture, relayed once on pointer release.
type Stroke struct {
	Tool     Tool
	Color    string
	Size     float64
	Points   []Point
	Layer    Layer
	Step     int
	SenderID string
}

// Fill is either a seed fill or a prebuilt solid-colour patch placed at (X, Y).
// Receivers apply Patch verbatim so every client fills an identical region.
type Fill struct {
	Seed     *Point
	Patch    Snapshot
	X, Y     int
	Color    string
	Layer    Layer
	Step     int
	SenderID string
}

// Limits bounds what the relay accepts from clients.
type Limits struct {
	CanvasSize       int
	MaxStrokePoints  int
	MaxBrushSize     float64
	MaxSnapshotBytes int
}

// DefaultLimits returns limits matching the 2048x2048 logical canvas.
func DefaultLimits() Limits {
	return Limits{
		CanvasSize:       2048,
		MaxStrokePoints:  20000,
		MaxBrushSize:     256,
		MaxSnapshotBytes: 8 << 20,
	}
}

var hexColor = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// ValidColor reports whether c is a #rrggbb colour.
func ValidColor(c string) bool {
	return hexColor.MatchString(c)
}

// ValidateStroke checks a stroke payload before it is relayed.
func (l Limits) ValidateStroke(s *Stroke) error {
	if s == nil {
		return fmt.Errorf("%w: missing stroke", ErrBadRequest)
	}
	if s.Tool != ToolBrush && s.Tool != ToolEraser {
		return fmt.Errorf("%w: unknown tool %q", ErrBadRequest, s.Tool)
	}
	if !ValidColor(s.Color) {
		return fmt.Errorf("%w: invalid color %q", ErrBadRequest, s.Color)
	}
	if s.Size <= 0 || (l.MaxBrushSize > 0 && s.Size > l.MaxBrushSize) || math.IsNaN(s.Size) {
		return fmt.Errorf("%w: invalid size %v", ErrBadRequest, s.Size)
	}
	if len(s.Points) == 0 {
		return fmt.Errorf("%w: stroke has no points", ErrBadRequest)
	}
	if l.MaxStrokePoints > 0 && len(s.Points) > l.MaxStrokePoints {
		return fmt.Errorf("%w: too many points (%d)", ErrBadRequest, len(s.Points))
	}
	for _, p := range s.Points {
		if !l.inRange(p) {
			return fmt.Errorf("%w: point out of range (%v, %v)", ErrBadRequest, p.X, p.Y)
		}
	}
	return validLayer(s.Layer)
}

// ValidateFill checks a fill payload before it is relayed.
func (l Limits) ValidateFill(f *Fill) error {
	if f == nil {
		return fmt.Errorf("%w: missing fill", ErrBadRequest)
	}
	if !ValidColor(f.Color) {
		return fmt.Errorf("%w: invalid color %q", ErrBadRequest, f.Color)
	}
	hasSeed := f.Seed != nil
	hasPatch := f.Patch != EmptySnapshot
	if hasSeed == hasPatch {
		return fmt.Errorf("%w: fill needs exactly one of seed or patch", ErrBadRequest)
	}
	if hasSeed && !l.inRange(*f.Seed) {
		return fmt.Errorf("%w: seed out of range", ErrBadRequest)
	}
	if hasPatch && l.MaxSnapshotBytes > 0 && len(f.Patch) > l.MaxSnapshotBytes {
		return fmt.Errorf("%w: patch too large", ErrBadRequest)
	}
	return validLayer(f.Layer)
}

// ValidateSnapshot checks a pushed snapshot size.
func (l Limits) ValidateSnapshot(s Snapshot) error {
	if l.MaxSnapshotBytes > 0 && len(s) > l.MaxSnapshotBytes {
		return fmt.Errorf("%w: snapshot too large (%d bytes)", ErrBadRequest, len(s))
	}
	return nil
}

// inRange accepts points up to one canvas away from the edges, since a
// gesture may leave the canvas while drawing.
func (l Limits) inRange(p Point) bool {
	if math.IsNaN(p.X) || math.IsNaN(p.Y) || math.IsInf(p.X, 0) || math.IsInf(p.Y, 0) {
		return false
	}
	if l.CanvasSize <= 0 {
		return true
	}
	size := float64(l.CanvasSize)
	return p.X >= -size && p.X <= 2*size && p.Y >= -size && p.Y <= 2*size
}

func validLayer(layer Layer) error {
	switch layer {
	case LayerBase, LayerGuide:
		return nil
	default:
		return fmt.Errorf("%w: unknown layer %q", ErrBadRequest, layer)
	}
}
