// Package canvas holds the raster side of a drawing board: layers, stroke
// rasterisation, flood fill, patches and PNG data URL snapshots.
package canvas

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"strconv"

	xdraw "golang.org/x/image/draw"
)

// DefaultSize is the side of the square logical canvas.
const DefaultSize = 2048

var ErrInvalidColor = errors.New("invalid color")

// Point is a position in logical canvas coordinates.
type Point struct {
	X, Y float64
}

// NewLayer returns a transparent square layer.
func NewLayer(size int) *image.NRGBA {
	return image.NewNRGBA(image.Rect(0, 0, size, size))
}

// Clear makes every pixel of l transparent.
func Clear(l *image.NRGBA) {
	for i := range l.Pix {
		l.Pix[i] = 0
	}
}

// Clone returns a deep copy of l.
func Clone(l *image.NRGBA) *image.NRGBA {
	out := image.NewNRGBA(l.Rect)
	copy(out.Pix, l.Pix)
	return out
}

// IsBlank reports whether every pixel of l is fully transparent.
func IsBlank(l *image.NRGBA) bool {
	for i := 3; i < len(l.Pix); i += 4 {
		if l.Pix[i] != 0 {
			return false
		}
	}
	return true
}

// Over composites src onto dst with source-over.
func Over(dst *image.NRGBA, src image.Image) {
	xdraw.Draw(dst, dst.Bounds(), src, src.Bounds().Min, xdraw.Over)
}

// Flatten composites layers bottom to top onto a new layer of the given size.
// Nil layers are skipped.
func Flatten(size int, layers ...*image.NRGBA) *image.NRGBA {
	out := NewLayer(size)
	for _, l := range layers {
		if l == nil {
			continue
		}
		Over(out, l)
	}
	return out
}

// ParseHexColor parses an opaque #rrggbb colour.
func ParseHexColor(s string) (color.NRGBA, error) {
	if len(s) != 7 || s[0] != '#' {
		return color.NRGBA{}, fmt.Errorf("%w: %q", ErrInvalidColor, s)
	}
	v, err := strconv.ParseUint(s[1:], 16, 32)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("%w: %q", ErrInvalidColor, s)
	}
	return color.NRGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}, nil
}

// HexColor formats c as #rrggbb, ignoring alpha.
func HexColor(c color.Color) string {
	n := color.NRGBAModel.Convert(c).(color.NRGBA)
	return fmt.Sprintf("#%02x%02x%02x", n.R, n.G, n.B)
}

// PaintOver composites src (starting at sp) onto the r region of dst.
func PaintOver(dst *image.NRGBA, r image.Rectangle, src image.Image, sp image.Point) {
	xdraw.Draw(dst, r, src, sp, xdraw.Over)
}
