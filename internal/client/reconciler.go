// Package client mirrors a room on a drawing client: it keeps the local raster
// layers consistent with relay broadcasts and turns pointer input into
// committed strokes and fills.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/wiredraw-server/internal/canvas"
	"github.com/vovakirdan/wiredraw-server/internal/core"
	"github.com/vovakirdan/wiredraw-server/internal/guide"
	"github.com/vovakirdan/wiredraw-server/internal/proto"
)

// Emitter sends intents to the relay.
type Emitter interface {
	Emit(msg proto.Inbound) error
}

// References resolves guide references for the suggestion layer.
type References interface {
	Load(ctx context.Context, id string) (*guide.Reference, error)
}

// GuideView is the client's mirror of the room guide session.
type GuideView struct {
	ReferenceID string
	Step        int
	StepCount   int
}

// Reconciler composites the five client layers and applies local input and
// remote events to them. It is not safe for concurrent use; drive it from a
// single goroutine.
type Reconciler struct {
	size int

	base       *image.NRGBA
	remote     *image.NRGBA
	preview    *image.NRGBA
	suggestion *image.NRGBA
	overlay    *image.NRGBA

	guide     *GuideView
	reference *guide.Reference

	tool      core.Tool
	color     string
	brushSize float64
	palette   *Palette

	view     Viewport
	pointers map[int]screenPoint
	stroke   *localStroke
	fill     *canvas.Point
	pinch    *pinch
	panning  bool
	space    bool

	clientID  string
	users     []string
	lastError *proto.Error

	emit Emitter
	refs References
	log  *zerolog.Logger
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithReferences enables the guide suggestion layer.
func WithReferences(refs References) Option {
	return func(r *Reconciler) { r.refs = refs }
}

// WithLogger sets the reconciler logger.
func WithLogger(l *zerolog.Logger) Option {
	return func(r *Reconciler) { r.log = l }
}

// NewReconciler creates a reconciler for a size x size canvas.
func NewReconciler(size int, emit Emitter, opts ...Option) *Reconciler {
	nop := zerolog.Nop()
	r := &Reconciler{
		size:       size,
		base:       canvas.NewLayer(size),
		remote:     canvas.NewLayer(size),
		preview:    canvas.NewLayer(size),
		suggestion: canvas.NewLayer(size),
		overlay:    canvas.NewLayer(size),
		tool:       core.ToolBrush,
		color:      "#000000",
		brushSize:  5,
		palette:    NewPalette(),
		view:       Viewport{Scale: 1},
		pointers:   make(map[int]screenPoint),
		emit:       emit,
		log:        &nop,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Composite returns the visible image: base, remote, suggestion, step
// overlay, then the local preview.
func (r *Reconciler) Composite() *image.NRGBA {
	if r.stroke != nil && r.stroke.tool == core.ToolEraser {
		return r.erasingComposite()
	}
	layers := []*image.NRGBA{r.base, r.remote}
	if r.guide != nil {
		layers = append(layers, r.suggestion, r.overlay)
	}
	layers = append(layers, r.preview)
	return canvas.Flatten(r.size, layers...)
}

// erasingComposite shows an in-progress eraser stroke by cutting its mask out
// of the layers it will commit to.
func (r *Reconciler) erasingComposite() *image.NRGBA {
	mask := canvas.StrokeMask(r.stroke.points, r.stroke.size, r.base.Bounds())
	if r.guideStepping() {
		overlay := canvas.Clone(r.overlay)
		canvas.EraseMask(overlay, mask)
		return canvas.Flatten(r.size, r.base, r.remote, r.suggestion, overlay)
	}
	below := canvas.Flatten(r.size, r.base, r.remote)
	canvas.EraseMask(below, mask)
	if r.guide != nil {
		return canvas.Flatten(r.size, below, r.suggestion, r.overlay)
	}
	return below
}

// readComposite is what flood fill samples: committed and remote pixels,
// without the suggestion or the local preview.
func (r *Reconciler) readComposite() *image.NRGBA {
	if r.guideStepping() {
		return canvas.Flatten(r.size, r.base, r.remote, r.overlay)
	}
	return canvas.Flatten(r.size, r.base, r.remote)
}

// Base returns the committed base layer.
func (r *Reconciler) Base() *image.NRGBA { return r.base }

// Remote returns the layer holding peers' strokes not yet folded into base.
func (r *Reconciler) Remote() *image.NRGBA { return r.remote }

// Overlay returns the active step overlay.
func (r *Reconciler) Overlay() *image.NRGBA { return r.overlay }

// Suggestion returns the rendered target shapes of the active step.
func (r *Reconciler) Suggestion() *image.NRGBA { return r.suggestion }

// Guide returns the mirrored guide session, or nil.
func (r *Reconciler) Guide() *GuideView {
	if r.guide == nil {
		return nil
	}
	g := *r.guide
	return &g
}

// ClientID is the id assigned by the relay.
func (r *Reconciler) ClientID() string { return r.clientID }

// Users is the last presence list.
func (r *Reconciler) Users() []string { return r.users }

// LastError is the last error reported by the relay.
func (r *Reconciler) LastError() *proto.Error { return r.lastError }

// Palette returns the recent colours.
func (r *Reconciler) Palette() []string { return r.palette.Colors() }

// View returns the current viewport.
func (r *Reconciler) View() Viewport { return r.view }

func (r *Reconciler) guideStepping() bool {
	return r.guide != nil && r.guide.Step >= 0
}

// Apply folds one relay event into the layers.
func (r *Reconciler) Apply(ctx context.Context, ev proto.OutboundEvent) error {
	if ev.Type == proto.OutboundTypeError {
		r.lastError = ev.Error
		if ev.Error != nil {
			r.log.Warn().Str("code", ev.Error.Code).Str("msg", ev.Error.Msg).Msg("relay error")
		}
		return nil
	}

	switch ev.Event {
	case proto.EventInitState:
		var data proto.InitStateData
		if err := decode(ev, &data); err != nil {
			return err
		}
		r.clientID = data.ClientID
		r.users = data.Users
		if err := r.loadBase(data.Snapshot); err != nil {
			return err
		}
		if data.Guide == nil || !data.Guide.Active {
			r.leaveGuide()
			return nil
		}
		if err := r.syncGuide(ctx, data.Guide); err != nil {
			return err
		}
		return canvas.Load(r.overlay, data.Guide.Overlay)
	case proto.EventLoadCanvas:
		var data proto.SnapshotData
		if err := decode(ev, &data); err != nil {
			return err
		}
		return r.loadBase(data.Snapshot)
	case proto.EventApplyStroke:
		var data proto.StrokeData
		if err := decode(ev, &data); err != nil {
			return err
		}
		return r.applyRemoteStroke(data)
	case proto.EventFill:
		var data proto.FillData
		if err := decode(ev, &data); err != nil {
			return err
		}
		return r.applyRemoteFill(data)
	case proto.EventClearCanvas:
		var data proto.ClearData
		if err := decode(ev, &data); err != nil {
			return err
		}
		if core.Layer(data.Layer) == core.LayerGuide {
			canvas.Clear(r.overlay)
			return nil
		}
		canvas.Clear(r.base)
		canvas.Clear(r.remote)
		return nil
	case proto.EventGuideStepSync:
		var data proto.GuideData
		if err := decode(ev, &data); err != nil {
			return err
		}
		return r.syncGuide(ctx, &data)
	case proto.EventLoadGuideStepLayer:
		var data proto.GuideStepStateData
		if err := decode(ev, &data); err != nil {
			return err
		}
		if !r.guideStepping() || data.Step != r.guide.Step {
			return nil
		}
		return canvas.Load(r.overlay, data.Snapshot)
	case proto.EventGuideExit:
		var data proto.SnapshotData
		if err := decode(ev, &data); err != nil {
			return err
		}
		r.leaveGuide()
		return r.loadBase(data.Snapshot)
	case proto.EventUpdateUserList:
		var data proto.UserListData
		if err := decode(ev, &data); err != nil {
			return err
		}
		r.users = data.Users
		return nil
	default:
		r.log.Debug().Str("event", ev.Event).Msg("ignoring unknown event")
		return nil
	}
}

func decode(ev proto.OutboundEvent, v any) error {
	if len(ev.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(ev.Data, v); err != nil {
		return fmt.Errorf("decode %s: %w", ev.Event, err)
	}
	return nil
}

// loadBase replaces the base with an authoritative snapshot. Remote strokes
// are already part of it.
func (r *Reconciler) loadBase(snap string) error {
	if err := canvas.Load(r.base, snap); err != nil {
		return fmt.Errorf("load base: %w", err)
	}
	canvas.Clear(r.remote)
	return nil
}

func (r *Reconciler) applyRemoteStroke(data proto.StrokeData) error {
	s, err := toCanvasStroke(data)
	if err != nil {
		return err
	}
	if core.Layer(data.Layer) == core.LayerGuide {
		if r.guideStepping() && data.Step == r.guide.Step {
			canvas.DrawStroke(r.overlay, s)
		}
		return nil
	}
	if s.Erase {
		canvas.DrawStroke(r.base, s)
	}
	canvas.DrawStroke(r.remote, s)
	return nil
}

func (r *Reconciler) applyRemoteFill(data proto.FillData) error {
	target := r.remote
	if core.Layer(data.Layer) == core.LayerGuide {
		if !r.guideStepping() || data.Step != r.guide.Step {
			return nil
		}
		target = r.overlay
	}

	if data.Patch != "" {
		p, err := canvas.DecodePatch(data.Patch, data.X, data.Y)
		if err != nil {
			return fmt.Errorf("decode fill patch: %w", err)
		}
		p.Apply(target)
		return nil
	}
	if data.Seed == nil {
		return nil
	}
	c, err := canvas.ParseHexColor(data.Color)
	if err != nil {
		return err
	}
	if p, ok := canvas.Fill(r.readComposite(), image.Pt(int(data.Seed.X), int(data.Seed.Y)), c); ok {
		p.Apply(target)
	}
	return nil
}

func toCanvasStroke(data proto.StrokeData) (canvas.Stroke, error) {
	s := canvas.Stroke{
		Size:   data.Size,
		Erase:  core.Tool(data.Tool) == core.ToolEraser,
		Points: make([]canvas.Point, len(data.Points)),
	}
	for i, p := range data.Points {
		s.Points[i] = canvas.Point{X: p.X, Y: p.Y}
	}
	if !s.Erase {
		c, err := canvas.ParseHexColor(data.Color)
		if err != nil {
			return canvas.Stroke{}, err
		}
		s.Color = c
	}
	return s, nil
}

// syncGuide adopts the broadcast guide state: the suggestion is re-rendered
// for the new step and the overlay restarts empty.
func (r *Reconciler) syncGuide(ctx context.Context, g *proto.GuideData) error {
	if g == nil || !g.Active {
		r.leaveGuide()
		return nil
	}
	if r.reference == nil || r.reference.ID != g.ReferenceID {
		r.reference = nil
		if r.refs != nil {
			ref, err := r.refs.Load(ctx, g.ReferenceID)
			if err != nil {
				r.log.Warn().Err(err).Str("reference", g.ReferenceID).Msg("load guide reference")
			} else {
				r.reference = ref
			}
		}
	}

	r.cancelLocal()
	r.guide = &GuideView{ReferenceID: g.ReferenceID, Step: g.Step, StepCount: g.StepCount}
	canvas.Clear(r.overlay)
	canvas.Clear(r.suggestion)
	if g.Step < 0 || r.reference == nil {
		return nil
	}
	img, err := r.reference.RenderStep(g.Step, r.size, guide.SuggestionOpacity)
	if err != nil {
		return fmt.Errorf("render guide step: %w", err)
	}
	r.suggestion = img
	return nil
}

func (r *Reconciler) leaveGuide() {
	if r.guideStepping() {
		r.cancelLocal()
	}
	r.guide = nil
	r.reference = nil
	canvas.Clear(r.overlay)
	canvas.Clear(r.suggestion)
}

var errNotStepping = errors.New("no active guide step")
