package canvas

import (
	"image"
	"image/color"

	"github.com/srwiley/rasterx"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/math/fixed"
)

// Stroke is a committed freehand gesture in canvas coordinates.
type Stroke struct {
	Points []Point
	Color  color.NRGBA
	Size   float64
	Erase  bool
}

// tapTolerance is the squared movement below which a gesture counts as a tap.
const tapTolerance = 4

// IsTap reports whether points never moved further than the tap tolerance
// from the first point.
func IsTap(points []Point) bool {
	if len(points) == 0 {
		return true
	}
	p0 := points[0]
	for _, p := range points[1:] {
		dx, dy := p.X-p0.X, p.Y-p0.Y
		if dx*dx+dy*dy > tapTolerance {
			return false
		}
	}
	return true
}

// StrokeMask rasterises the smoothed path of points with round caps and joins
// into a coverage mask covering bounds. A tap renders as a dot of the brush
// diameter.
func StrokeMask(points []Point, size float64, bounds image.Rectangle) *image.Alpha {
	mask := image.NewAlpha(bounds)
	if len(points) == 0 || size <= 0 {
		return mask
	}
	w, h := bounds.Dx(), bounds.Dy()
	scanner := rasterx.NewScannerGV(w, h, mask, bounds)

	if IsTap(points) {
		filler := rasterx.NewFiller(w, h, scanner)
		filler.SetColor(color.Alpha{A: 0xff})
		rasterx.AddCircle(points[0].X, points[0].Y, size/2, filler)
		filler.Draw()
		return mask
	}

	stroker := rasterx.NewStroker(w, h, scanner)
	stroker.SetStroke(fixed.Int26_6(size*64), 4<<6, rasterx.RoundCap, nil, rasterx.RoundGap, rasterx.Round)
	stroker.SetColor(color.Alpha{A: 0xff})
	addSmoothed(stroker, points)
	stroker.Draw()
	return mask
}

// addSmoothed emits a rolling-midpoint quadratic path: every interior point
// is the control point of a curve ending halfway to the next point.
func addSmoothed(p rasterx.Adder, points []Point) {
	pts := dedupe(points)
	p.Start(toFixed(pts[0]))
	for i := 1; i < len(pts)-1; i++ {
		cur, next := pts[i], pts[i+1]
		mid := Point{X: (cur.X + next.X) / 2, Y: (cur.Y + next.Y) / 2}
		p.QuadBezier(toFixed(cur), toFixed(mid))
	}
	p.Line(toFixed(pts[len(pts)-1]))
	p.Stop(false)
}

func dedupe(points []Point) []Point {
	out := make([]Point, 0, len(points))
	for i, pt := range points {
		if i > 0 && pt == out[len(out)-1] {
			continue
		}
		out = append(out, pt)
	}
	return out
}

func toFixed(p Point) fixed.Point26_6 {
	return rasterx.ToFixedP(p.X, p.Y)
}

// DrawStroke applies s to dst: brush strokes paint source-over, eraser strokes
// remove coverage.
func DrawStroke(dst *image.NRGBA, s Stroke) {
	mask := StrokeMask(s.Points, s.Size, dst.Bounds())
	if s.Erase {
		EraseMask(dst, mask)
		return
	}
	PaintMask(dst, mask, s.Color)
}

// PaintMask paints c through mask onto dst.
func PaintMask(dst *image.NRGBA, mask *image.Alpha, c color.NRGBA) {
	r := dst.Bounds().Intersect(mask.Bounds())
	xdraw.DrawMask(dst, r, image.NewUniform(c), image.Point{}, mask, r.Min, xdraw.Over)
}

// EraseMask scales down the alpha of dst by mask coverage (destination-out).
func EraseMask(dst *image.NRGBA, mask *image.Alpha) {
	r := dst.Bounds().Intersect(mask.Bounds())
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			m := mask.AlphaAt(x, y).A
			if m == 0 {
				continue
			}
			i := dst.PixOffset(x, y) + 3
			dst.Pix[i] = uint8(uint32(dst.Pix[i]) * uint32(255-m) / 255)
		}
	}
}
