// Package guide turns SVG reference images into ordered drawing steps.
package guide

import (
	"bytes"
	"fmt"
	"image"
	"io"

	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"

	"github.com/vovakirdan/wiredraw-server/internal/canvas"
	"github.com/vovakirdan/wiredraw-server/internal/core"
)

// SuggestionOpacity is how strongly a step's target shapes are shown.
const SuggestionOpacity = 0.35

// Step is one colour group of a reference.
type Step struct {
	Fill   string
	Stroke string
	Paths  int

	paths []oksvg.SvgPath
}

// Reference is a parsed SVG split into steps by colour, in order of first
// appearance.
type Reference struct {
	ID    string
	Steps []Step

	icon *oksvg.SvgIcon
	raw  []byte
}

// Parse reads an SVG reference. A reference without drawable paths yields
// core.ErrNoDrawableContent.
func Parse(id string, r io.Reader) (*Reference, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read reference %s: %w", id, err)
	}
	icon, err := oksvg.ReadIconStream(bytes.NewReader(raw), oksvg.IgnoreErrorMode)
	if err != nil {
		return nil, fmt.Errorf("parse reference %s: %w", id, err)
	}
	if icon.ViewBox.W <= 0 || icon.ViewBox.H <= 0 {
		return nil, fmt.Errorf("reference %s: %w", id, core.ErrNoDrawableContent)
	}

	ref := &Reference{ID: id, icon: icon, raw: raw}
	index := make(map[string]int)
	for _, p := range icon.SVGPaths {
		if len(p.Path) == 0 {
			continue
		}
		fill := canvas.HexColor(p.GetFillColor())
		stroke := canvas.HexColor(p.GetLineColor())
		key := fill + stroke
		i, ok := index[key]
		if !ok {
			i = len(ref.Steps)
			index[key] = i
			ref.Steps = append(ref.Steps, Step{Fill: fill, Stroke: stroke})
		}
		ref.Steps[i].paths = append(ref.Steps[i].paths, p)
		ref.Steps[i].Paths++
	}
	if len(ref.Steps) == 0 {
		return nil, fmt.Errorf("reference %s: %w", id, core.ErrNoDrawableContent)
	}
	return ref, nil
}

// StepCount returns the number of steps.
func (r *Reference) StepCount() int {
	return len(r.Steps)
}

// Raw returns the original SVG bytes.
func (r *Reference) Raw() []byte {
	return r.raw
}

// RenderStep draws the shapes of step i at opacity onto a new size x size layer.
func (r *Reference) RenderStep(i, size int, opacity float64) (*image.NRGBA, error) {
	if i < 0 || i >= len(r.Steps) {
		return nil, fmt.Errorf("step %d out of range [0, %d)", i, len(r.Steps))
	}
	return r.render(r.Steps[i].paths, size, opacity), nil
}

// Render draws the whole reference.
func (r *Reference) Render(size int) *image.NRGBA {
	return r.render(r.icon.SVGPaths, size, 1)
}

func (r *Reference) render(paths []oksvg.SvgPath, size int, opacity float64) *image.NRGBA {
	icon := *r.icon
	icon.SVGPaths = paths
	icon.SetTarget(0, 0, float64(size), float64(size))

	img := canvas.NewLayer(size)
	scanner := rasterx.NewScannerGV(size, size, img, img.Bounds())
	icon.Draw(rasterx.NewDasher(size, size, scanner), opacity)
	return img
}
