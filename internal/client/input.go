package client

import (
	"fmt"
	"image"

	"github.com/vovakirdan/wiredraw-server/internal/canvas"
	"github.com/vovakirdan/wiredraw-server/internal/core"
	"github.com/vovakirdan/wiredraw-server/internal/proto"
)

// Button identifies the pointer button that started a gesture.
type Button int

const (
	ButtonPrimary Button = iota
	ButtonMiddle
	ButtonSecondary
)

// PointerEvent is a pointer sample in screen coordinates.
type PointerEvent struct {
	ID     int
	X, Y   float64
	Button Button
}

type screenPoint struct {
	x, y float64
}

// localStroke is the user's in-progress stroke. started flips once the
// pointer leaves the tap tolerance.
type localStroke struct {
	pointer int
	tool    core.Tool
	color   string
	size    float64
	points  []canvas.Point
	started bool
}

// PointerDown begins a stroke, a pending fill, a pan or a pinch.
func (r *Reconciler) PointerDown(ev PointerEvent) {
	r.pointers[ev.ID] = screenPoint{ev.X, ev.Y}

	if len(r.pointers) == 2 {
		r.cancelLocal()
		r.startPinch()
		return
	}
	if len(r.pointers) > 2 || r.pinch != nil {
		return
	}
	if ev.Button == ButtonMiddle || r.space {
		r.panning = true
		return
	}
	if ev.Button != ButtonPrimary {
		return
	}

	x, y := r.view.ToCanvas(ev.X, ev.Y)
	if r.tool == core.ToolFill {
		r.fill = &canvas.Point{X: x, Y: y}
		return
	}
	r.stroke = &localStroke{
		pointer: ev.ID,
		tool:    r.tool,
		color:   r.color,
		size:    r.brushSize,
		points:  []canvas.Point{{X: x, Y: y}},
	}
}

// PointerMove extends the active stroke, pan or pinch.
func (r *Reconciler) PointerMove(ev PointerEvent) {
	prev, known := r.pointers[ev.ID]
	if !known {
		return
	}
	r.pointers[ev.ID] = screenPoint{ev.X, ev.Y}

	switch {
	case r.pinch != nil:
		r.updatePinch()
	case r.panning:
		r.view.Pan(ev.X-prev.x, ev.Y-prev.y)
	case r.stroke != nil && r.stroke.pointer == ev.ID:
		x, y := r.view.ToCanvas(ev.X, ev.Y)
		r.stroke.points = append(r.stroke.points, canvas.Point{X: x, Y: y})
		if !r.stroke.started && !canvas.IsTap(r.stroke.points) {
			r.stroke.started = true
		}
		if r.stroke.started {
			r.renderPreview()
		}
	}
}

// PointerUp commits the active stroke or executes the pending fill.
func (r *Reconciler) PointerUp(ev PointerEvent) error {
	if _, known := r.pointers[ev.ID]; !known {
		return nil
	}
	delete(r.pointers, ev.ID)

	if r.pinch != nil {
		if len(r.pointers) == 0 {
			r.pinch = nil
		}
		return nil
	}
	if r.panning {
		if len(r.pointers) == 0 {
			r.panning = false
		}
		return nil
	}
	if r.fill != nil {
		seed := *r.fill
		r.fill = nil
		return r.commitFill(seed)
	}
	if r.stroke != nil && r.stroke.pointer == ev.ID {
		s := r.stroke
		r.stroke = nil
		canvas.Clear(r.preview)
		return r.commitStroke(s)
	}
	return nil
}

// PointerCancel abandons whatever the pointer was doing. Nothing is committed.
func (r *Reconciler) PointerCancel(ev PointerEvent) {
	delete(r.pointers, ev.ID)
	if r.stroke != nil && r.stroke.pointer == ev.ID {
		r.cancelLocal()
	}
	r.fill = nil
	if len(r.pointers) == 0 {
		r.pinch = nil
		r.panning = false
	}
}

// SetSpaceHeld toggles space-to-pan.
func (r *Reconciler) SetSpaceHeld(held bool) {
	r.space = held
}

// cancelLocal drops the in-progress stroke and pending fill.
func (r *Reconciler) cancelLocal() {
	r.stroke = nil
	r.fill = nil
	canvas.Clear(r.preview)
}

func (r *Reconciler) startPinch() {
	ids := make([]int, 0, 2)
	for id := range r.pointers {
		ids = append(ids, id)
	}
	a, b := r.pointers[ids[0]], r.pointers[ids[1]]
	sx, sy := (a.x+b.x)/2, (a.y+b.y)/2
	cx, cy := r.view.ToCanvas(sx, sy)
	r.pinch = &pinch{
		a:          ids[0],
		b:          ids[1],
		startDist:  distance(a.x, a.y, b.x, b.y),
		startScale: r.view.Scale,
		cx:         cx,
		cy:         cy,
	}
	r.panning = false
}

func (r *Reconciler) updatePinch() {
	a, okA := r.pointers[r.pinch.a]
	b, okB := r.pointers[r.pinch.b]
	if !okA || !okB || r.pinch.startDist == 0 {
		return
	}
	scale := r.pinch.startScale * distance(a.x, a.y, b.x, b.y) / r.pinch.startDist
	r.view.ZoomAround(scale, r.pinch.cx, r.pinch.cy, (a.x+b.x)/2, (a.y+b.y)/2)
}

func (r *Reconciler) renderPreview() {
	canvas.Clear(r.preview)
	s := r.stroke
	mask := canvas.StrokeMask(s.points, s.size, r.preview.Bounds())
	if s.tool == core.ToolEraser {
		return
	}
	c, err := canvas.ParseHexColor(s.color)
	if err != nil {
		return
	}
	canvas.PaintMask(r.preview, mask, c)
}

// commitStroke composites the finished stroke onto its target, relays it once
// and records the new state for undo.
func (r *Reconciler) commitStroke(s *localStroke) error {
	points := s.points
	if !s.started {
		points = points[:1]
	}
	cs := canvas.Stroke{Points: points, Size: s.size, Erase: s.tool == core.ToolEraser}
	if !cs.Erase {
		c, err := canvas.ParseHexColor(s.color)
		if err != nil {
			return err
		}
		cs.Color = c
	}

	data := proto.StrokeData{
		Tool:   string(s.tool),
		Color:  s.color,
		Size:   s.size,
		Points: make([]proto.Point, len(points)),
		Layer:  string(core.LayerBase),
	}
	for i, p := range points {
		data.Points[i] = proto.Point{X: p.X, Y: p.Y}
	}

	if r.guideStepping() {
		canvas.DrawStroke(r.overlay, cs)
		data.Layer = string(core.LayerGuide)
		data.Step = r.guide.Step
		if err := r.send(proto.InboundTypeStroke, data); err != nil {
			return err
		}
		return r.saveStepState()
	}

	r.foldRemote()
	canvas.DrawStroke(r.base, cs)
	if err := r.send(proto.InboundTypeStroke, data); err != nil {
		return err
	}
	return r.saveState()
}

// commitFill floods the read-only composite at seed and relays the resulting
// patch rather than the seed, so every peer paints the same pixels.
func (r *Reconciler) commitFill(seed canvas.Point) error {
	c, err := canvas.ParseHexColor(r.color)
	if err != nil {
		return err
	}
	patch, ok := canvas.Fill(r.readComposite(), image.Pt(int(seed.X), int(seed.Y)), c)
	if !ok {
		return nil
	}
	url, err := patch.Encode()
	if err != nil {
		return fmt.Errorf("encode fill patch: %w", err)
	}
	data := proto.FillData{Patch: url, X: patch.At.X, Y: patch.At.Y, Color: r.color, Layer: string(core.LayerBase)}

	if r.guideStepping() {
		patch.Apply(r.overlay)
		data.Layer = string(core.LayerGuide)
		data.Step = r.guide.Step
		if err := r.send(proto.InboundTypeFill, data); err != nil {
			return err
		}
		return r.saveStepState()
	}

	r.foldRemote()
	patch.Apply(r.base)
	if err := r.send(proto.InboundTypeFill, data); err != nil {
		return err
	}
	return r.saveState()
}

// foldRemote moves peers' pending strokes into the base before a local
// commit snapshots it.
func (r *Reconciler) foldRemote() {
	canvas.Over(r.base, r.remote)
	canvas.Clear(r.remote)
}

func (r *Reconciler) saveState() error {
	snap, err := canvas.Snapshot(r.base)
	if err != nil {
		return err
	}
	return r.send(proto.InboundTypeSaveState, proto.SnapshotData{Snapshot: snap})
}

func (r *Reconciler) saveStepState() error {
	snap, err := canvas.Snapshot(r.overlay)
	if err != nil {
		return err
	}
	return r.send(proto.InboundTypeSaveGuideStep, proto.GuideStepStateData{Step: r.guide.Step, Snapshot: snap})
}

func (r *Reconciler) send(typ string, data any) error {
	if r.emit == nil {
		return nil
	}
	msg, err := proto.NewInbound(typ, data)
	if err != nil {
		return err
	}
	return r.emit.Emit(msg)
}
