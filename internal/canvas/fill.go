package canvas

import (
	"image"
	"image/color"
)

// FillTolerance is the RGBA distance under which a pixel joins the fill region.
const FillTolerance = 32

// FloodFill computes the 4-connected region around seed whose RGBA colour is
// within FillTolerance of the seed pixel. It returns nil when the seed lies
// outside src or the seed colour already equals fill.
func FloodFill(src *image.NRGBA, seed image.Point, fill color.NRGBA) *image.Alpha {
	b := src.Bounds()
	if !seed.In(b) {
		return nil
	}
	target := src.NRGBAAt(seed.X, seed.Y)
	if target == fill {
		return nil
	}

	mask := image.NewAlpha(b)
	matches := func(x, y int) bool {
		if mask.Pix[mask.PixOffset(x, y)] != 0 {
			return false
		}
		i := src.PixOffset(x, y)
		dr := int(src.Pix[i]) - int(target.R)
		dg := int(src.Pix[i+1]) - int(target.G)
		db := int(src.Pix[i+2]) - int(target.B)
		da := int(src.Pix[i+3]) - int(target.A)
		return dr*dr+dg*dg+db*db+da*da < FillTolerance*FillTolerance
	}

	stack := []image.Point{seed}
	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if !matches(p.X, p.Y) {
			continue
		}

		left := p.X
		for left > b.Min.X && matches(left-1, p.Y) {
			left--
		}
		right := p.X
		for right < b.Max.X-1 && matches(right+1, p.Y) {
			right++
		}

		for x := left; x <= right; x++ {
			mask.Pix[mask.PixOffset(x, p.Y)] = 0xff
		}
		for _, ny := range [2]int{p.Y - 1, p.Y + 1} {
			if ny < b.Min.Y || ny >= b.Max.Y {
				continue
			}
			inSpan := false
			for x := left; x <= right; x++ {
				if matches(x, ny) {
					if !inSpan {
						stack = append(stack, image.Point{X: x, Y: ny})
						inSpan = true
					}
				} else {
					inSpan = false
				}
			}
		}
	}
	return mask
}

// Dilate grows mask by one pixel in the 8-neighbourhood so fills close the
// anti-aliased seam along stroke edges.
func Dilate(mask *image.Alpha) *image.Alpha {
	b := mask.Bounds()
	out := image.NewAlpha(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if mask.Pix[mask.PixOffset(x, y)] == 0 {
				continue
			}
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					q := image.Point{X: x + dx, Y: y + dy}
					if q.In(b) {
						out.Pix[out.PixOffset(q.X, q.Y)] = 0xff
					}
				}
			}
		}
	}
	return out
}

// MaskBounds returns the smallest rectangle holding every covered pixel.
func MaskBounds(mask *image.Alpha) image.Rectangle {
	b := mask.Bounds()
	r := image.Rectangle{}
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := mask.Pix[mask.PixOffset(b.Min.X, y) : mask.PixOffset(b.Min.X, y)+b.Dx()]
		for i, a := range row {
			if a == 0 {
				continue
			}
			r = r.Union(image.Rect(b.Min.X+i, y, b.Min.X+i+1, y+1))
		}
	}
	return r
}

// CountMask returns the number of covered pixels.
func CountMask(mask *image.Alpha) int {
	n := 0
	for _, a := range mask.Pix {
		if a != 0 {
			n++
		}
	}
	return n
}

// Patch is a solid-colour fill region cropped to its bounding box.
type Patch struct {
	Image *image.NRGBA
	At    image.Point
}

// NewPatch renders c through mask, cropped to the covered area. It returns
// false for an empty mask.
func NewPatch(mask *image.Alpha, c color.NRGBA) (Patch, bool) {
	r := MaskBounds(mask)
	if r.Empty() {
		return Patch{}, false
	}
	img := image.NewNRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			a := mask.AlphaAt(x, y).A
			if a == 0 {
				continue
			}
			img.SetNRGBA(x-r.Min.X, y-r.Min.Y, color.NRGBA{R: c.R, G: c.G, B: c.B, A: a})
		}
	}
	return Patch{Image: img, At: r.Min}, true
}

// Apply composites the patch onto dst at its offset.
func (p Patch) Apply(dst *image.NRGBA) {
	r := p.Image.Bounds().Add(p.At).Intersect(dst.Bounds())
	if r.Empty() {
		return
	}
	PaintOver(dst, r, p.Image, r.Min.Sub(p.At))
}

// Encode returns the patch as a data URL.
func (p Patch) Encode() (string, error) {
	return EncodeDataURL(p.Image)
}

// DecodePatch parses a patch data URL placed at (x, y).
func DecodePatch(s string, x, y int) (Patch, error) {
	img, err := DecodeDataURL(s)
	if err != nil {
		return Patch{}, err
	}
	n := image.NewNRGBA(image.Rect(0, 0, img.Bounds().Dx(), img.Bounds().Dy()))
	PaintOver(n, n.Bounds(), img, img.Bounds().Min)
	return Patch{Image: n, At: image.Point{X: x, Y: y}}, nil
}

// Fill runs the whole local fill pipeline on the read-only composite src:
// flood, dilate, render the patch.
func Fill(src *image.NRGBA, seed image.Point, c color.NRGBA) (Patch, bool) {
	mask := FloodFill(src, seed, c)
	if mask == nil {
		return Patch{}, false
	}
	return NewPatch(Dilate(mask), c)
}
