package client

import (
	"context"
	"encoding/json"
	"image/color"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/wiredraw-server/internal/canvas"
	"github.com/vovakirdan/wiredraw-server/internal/core"
	"github.com/vovakirdan/wiredraw-server/internal/guide"
	"github.com/vovakirdan/wiredraw-server/internal/proto"
)

const testSize = 64

type recorder struct {
	sent []proto.Inbound
}

func (r *recorder) Emit(msg proto.Inbound) error {
	r.sent = append(r.sent, msg)
	return nil
}

func (r *recorder) types() []string {
	out := make([]string, 0, len(r.sent))
	for _, m := range r.sent {
		out = append(out, m.Type)
	}
	return out
}

func (r *recorder) stroke(t *testing.T, i int) proto.StrokeData {
	t.Helper()
	var s proto.StrokeData
	require.NoError(t, json.Unmarshal(r.sent[i].Data, &s))
	return s
}

type staticRefs map[string]string

func (s staticRefs) Load(_ context.Context, id string) (*guide.Reference, error) {
	return guide.Parse(id, strings.NewReader(s[id]))
}

const twoStepSVG = `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 64 64">
  <rect x="0" y="0" width="32" height="32" fill="#ff0000"/>
  <rect x="32" y="32" width="32" height="32" fill="#0000ff"/>
</svg>`

func event(t *testing.T, name string, data any) proto.OutboundEvent {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	return proto.OutboundEvent{Type: proto.OutboundTypeEvent, Event: name, Data: raw}
}

func newTestReconciler() (*Reconciler, *recorder) {
	rec := &recorder{}
	r := NewReconciler(testSize, rec, WithReferences(staticRefs{"cat": twoStepSVG}))
	_ = r.SetColor("#ff0000")
	r.SetBrushSize(6)
	return r, rec
}

func drag(t *testing.T, r *Reconciler, id int, pts ...[2]float64) {
	t.Helper()
	r.PointerDown(PointerEvent{ID: id, X: pts[0][0], Y: pts[0][1]})
	for _, p := range pts[1:] {
		r.PointerMove(PointerEvent{ID: id, X: p[0], Y: p[1]})
	}
	last := pts[len(pts)-1]
	require.NoError(t, r.PointerUp(PointerEvent{ID: id, X: last[0], Y: last[1]}))
}

func TestReconciler_TapBecomesDot(t *testing.T) {
	r, rec := newTestReconciler()

	drag(t, r, 1, [2]float64{20, 20}, [2]float64{21, 20})

	require.Equal(t, []string{proto.InboundTypeStroke, proto.InboundTypeSaveState}, rec.types())
	s := rec.stroke(t, 0)
	assert.Len(t, s.Points, 1)
	assert.Equal(t, "base", s.Layer)
	assert.Equal(t, uint8(0xff), r.Base().NRGBAAt(20, 20).A)
}

func TestReconciler_StrokeCommitsOnceOnRelease(t *testing.T) {
	r, rec := newTestReconciler()

	r.PointerDown(PointerEvent{ID: 1, X: 5, Y: 30})
	r.PointerMove(PointerEvent{ID: 1, X: 20, Y: 30})
	r.PointerMove(PointerEvent{ID: 1, X: 40, Y: 30})
	assert.Empty(t, rec.sent, "nothing is relayed mid-stroke")
	assert.Equal(t, uint8(0xff), r.Composite().NRGBAAt(20, 30).A, "preview is visible")
	assert.Equal(t, uint8(0), r.Base().NRGBAAt(20, 30).A)

	require.NoError(t, r.PointerUp(PointerEvent{ID: 1, X: 40, Y: 30}))

	require.Equal(t, []string{proto.InboundTypeStroke, proto.InboundTypeSaveState}, rec.types())
	assert.Len(t, rec.stroke(t, 0).Points, 3)
	assert.Equal(t, uint8(0xff), r.Base().NRGBAAt(20, 30).A)
	assert.True(t, canvas.IsBlank(r.preview))
}

func TestReconciler_SecondPointerCancelsStrokeAndPinches(t *testing.T) {
	r, rec := newTestReconciler()

	r.PointerDown(PointerEvent{ID: 1, X: 10, Y: 10})
	r.PointerMove(PointerEvent{ID: 1, X: 20, Y: 10})
	r.PointerDown(PointerEvent{ID: 2, X: 30, Y: 10})

	r.PointerMove(PointerEvent{ID: 2, X: 50, Y: 10})
	assert.InDelta(t, 3.0, r.View().Scale, 1e-9)

	// The canvas point under the gesture centre stays put.
	cx, cy := r.View().ToCanvas(35, 10)
	assert.InDelta(t, 25.0, cx, 1e-9)
	assert.InDelta(t, 10.0, cy, 1e-9)

	r.PointerMove(PointerEvent{ID: 2, X: 5000, Y: 10})
	assert.Equal(t, float64(MaxScale), r.View().Scale)

	require.NoError(t, r.PointerUp(PointerEvent{ID: 1}))
	require.NoError(t, r.PointerUp(PointerEvent{ID: 2}))
	assert.Empty(t, rec.sent)
	assert.True(t, canvas.IsBlank(r.Base()))
}

func TestReconciler_MiddleButtonPans(t *testing.T) {
	r, rec := newTestReconciler()

	r.PointerDown(PointerEvent{ID: 1, X: 10, Y: 10, Button: ButtonMiddle})
	r.PointerMove(PointerEvent{ID: 1, X: 25, Y: 5})
	require.NoError(t, r.PointerUp(PointerEvent{ID: 1}))

	assert.Equal(t, 15.0, r.View().OffsetX)
	assert.Equal(t, -5.0, r.View().OffsetY)
	assert.Empty(t, rec.sent)
}

func TestReconciler_FillRelaysPatchOnRelease(t *testing.T) {
	r, rec := newTestReconciler()
	r.SetTool(core.ToolFill)

	r.PointerDown(PointerEvent{ID: 1, X: 3, Y: 3})
	assert.Empty(t, rec.sent, "fill waits for pointer up")
	require.NoError(t, r.PointerUp(PointerEvent{ID: 1, X: 3, Y: 3}))

	require.Equal(t, []string{proto.InboundTypeFill, proto.InboundTypeSaveState}, rec.types())
	var f proto.FillData
	require.NoError(t, json.Unmarshal(rec.sent[0].Data, &f))
	assert.Nil(t, f.Seed)
	assert.NotEmpty(t, f.Patch)
	assert.Equal(t, color.NRGBA{R: 0xff, A: 0xff}, r.Base().NRGBAAt(40, 40))
}

func TestReconciler_FillStaysInsideBlackOutline(t *testing.T) {
	r, _ := newTestReconciler()
	require.NoError(t, r.SetColor("#000000"))
	r.SetBrushSize(3)
	drag(t, r, 1, [2]float64{10, 10}, [2]float64{30, 10}, [2]float64{30, 30}, [2]float64{10, 30}, [2]float64{10, 10})

	require.NoError(t, r.SetColor("#ff0000"))
	r.SetTool(core.ToolFill)
	r.PointerDown(PointerEvent{ID: 1, X: 20, Y: 20})
	require.NoError(t, r.PointerUp(PointerEvent{ID: 1, X: 20, Y: 20}))

	assert.Equal(t, color.NRGBA{R: 0xff, A: 0xff}, r.Base().NRGBAAt(20, 20))
	assert.Equal(t, uint8(0), r.Base().NRGBAAt(50, 50).A, "fill leaked past the outline")
}

func TestReconciler_CancelledFillCommitsNothing(t *testing.T) {
	r, rec := newTestReconciler()
	r.SetTool(core.ToolFill)

	r.PointerDown(PointerEvent{ID: 1, X: 3, Y: 3})
	r.PointerDown(PointerEvent{ID: 2, X: 30, Y: 30})
	require.NoError(t, r.PointerUp(PointerEvent{ID: 1}))
	require.NoError(t, r.PointerUp(PointerEvent{ID: 2}))

	assert.Empty(t, rec.sent)
}

func TestReconciler_RemoteStrokesUseRemoteLayer(t *testing.T) {
	r, _ := newTestReconciler()
	ctx := context.Background()

	require.NoError(t, r.Apply(ctx, event(t, proto.EventApplyStroke, proto.StrokeData{
		Tool: "brush", Color: "#00ff00", Size: 6, Layer: "base",
		Points: []proto.Point{{X: 5, Y: 10}, {X: 60, Y: 10}},
	})))
	assert.Equal(t, uint8(0xff), r.Remote().NRGBAAt(30, 10).A)
	assert.Equal(t, uint8(0), r.Base().NRGBAAt(30, 10).A)

	// Local commit folds pending remote pixels into the base first.
	drag(t, r, 1, [2]float64{30, 40})
	assert.Equal(t, uint8(0xff), r.Base().NRGBAAt(30, 10).A)
	assert.True(t, canvas.IsBlank(r.Remote()))

	require.NoError(t, r.Apply(ctx, event(t, proto.EventApplyStroke, proto.StrokeData{
		Tool: "eraser", Color: "#000000", Size: 10, Layer: "base",
		Points: []proto.Point{{X: 30, Y: 10}},
	})))
	assert.Equal(t, uint8(0), r.Base().NRGBAAt(30, 10).A)

	require.NoError(t, r.Apply(ctx, event(t, proto.EventLoadCanvas, proto.SnapshotData{Snapshot: ""})))
	assert.True(t, canvas.IsBlank(r.Base()))
	assert.True(t, canvas.IsBlank(r.Remote()))
}

func TestReconciler_PeersConverge(t *testing.T) {
	a, recA := newTestReconciler()
	b, _ := newTestReconciler()
	ctx := context.Background()

	drag(t, a, 1, [2]float64{5, 5}, [2]float64{30, 20}, [2]float64{58, 50})
	a.SetTool(core.ToolFill)
	_ = a.SetColor("#3498db")
	drag(t, a, 1, [2]float64{60, 2})

	for _, msg := range recA.sent {
		switch msg.Type {
		case proto.InboundTypeStroke:
			require.NoError(t, b.Apply(ctx, proto.OutboundEvent{Type: "event", Event: proto.EventApplyStroke, Data: msg.Data}))
		case proto.InboundTypeFill:
			require.NoError(t, b.Apply(ctx, proto.OutboundEvent{Type: "event", Event: proto.EventFill, Data: msg.Data}))
		}
	}

	// a committed into its base, b holds the same pixels on its remote layer.
	assert.Equal(t, a.Base().Pix, b.Remote().Pix)
	assert.True(t, canvas.IsBlank(b.Base()))
}

func TestReconciler_GuideStepLifecycle(t *testing.T) {
	r, rec := newTestReconciler()
	ctx := context.Background()

	require.NoError(t, r.Apply(ctx, event(t, proto.EventGuideStepSync, proto.GuideData{
		Active: true, ReferenceID: "cat", Step: 0, StepCount: 2,
	})))
	require.NotNil(t, r.Guide())
	assert.Greater(t, r.Suggestion().NRGBAAt(10, 10).A, uint8(0))
	assert.Equal(t, uint8(0), r.Suggestion().NRGBAAt(50, 50).A)

	drag(t, r, 1, [2]float64{10, 10}, [2]float64{20, 10})
	require.Equal(t, []string{proto.InboundTypeStroke, proto.InboundTypeSaveGuideStep}, rec.types())
	s := rec.stroke(t, 0)
	assert.Equal(t, "guide", s.Layer)
	assert.Equal(t, 0, s.Step)
	assert.True(t, canvas.IsBlank(r.Base()), "guide strokes stay on the overlay")
	assert.Greater(t, r.Overlay().NRGBAAt(15, 10).A, uint8(0))

	// A peer's stroke for another step is ignored.
	require.NoError(t, r.Apply(ctx, event(t, proto.EventApplyStroke, proto.StrokeData{
		Tool: "brush", Color: "#00ff00", Size: 6, Layer: "guide", Step: 1,
		Points: []proto.Point{{X: 40, Y: 40}},
	})))
	assert.Equal(t, uint8(0), r.Overlay().NRGBAAt(40, 40).A)

	rec.sent = nil
	require.NoError(t, r.GuideAdvance())
	var move proto.GuideMoveData
	require.NoError(t, json.Unmarshal(rec.sent[0].Data, &move))
	require.NotNil(t, move.ToStep)
	assert.Equal(t, 1, *move.ToStep)

	require.NoError(t, r.Apply(ctx, event(t, proto.EventGuideExit, proto.SnapshotData{})))
	assert.Nil(t, r.Guide())
	assert.True(t, canvas.IsBlank(r.Overlay()))
	assert.True(t, canvas.IsBlank(r.Suggestion()))
}

func TestReconciler_InitStateMirrorsRoom(t *testing.T) {
	r, _ := newTestReconciler()

	base := canvas.NewLayer(testSize)
	base.SetNRGBA(3, 3, color.NRGBA{G: 0xff, A: 0xff})
	snap, err := canvas.Snapshot(base)
	require.NoError(t, err)

	require.NoError(t, r.Apply(context.Background(), event(t, proto.EventInitState, proto.InitStateData{
		ClientID: "c1",
		Snapshot: snap,
		Users:    []string{"alice"},
		Guide:    &proto.GuideData{Active: true, ReferenceID: "cat", Step: 1, StepCount: 2, Overlay: snap},
	})))

	assert.Equal(t, "c1", r.ClientID())
	assert.Equal(t, []string{"alice"}, r.Users())
	assert.Equal(t, uint8(0xff), r.Base().NRGBAAt(3, 3).G)
	assert.Equal(t, uint8(0xff), r.Overlay().NRGBAAt(3, 3).G)
	assert.Equal(t, 1, r.Guide().Step)
}

func TestReconciler_ErrorsAreRecorded(t *testing.T) {
	r, _ := newTestReconciler()
	require.NoError(t, r.Apply(context.Background(), proto.OutboundEvent{
		Type:  proto.OutboundTypeError,
		Error: &proto.Error{Code: core.ErrCodeNoDrawableContent, Msg: "reference has no drawable content"},
	}))
	require.NotNil(t, r.LastError())
	assert.Equal(t, core.ErrCodeNoDrawableContent, r.LastError().Code)
}

func TestPalette_MostRecentFirst(t *testing.T) {
	p := NewPalette()
	p.Add("#3498db")
	assert.Equal(t, []string{"#3498db", "#e74c3c", "#f1c40f", "#2ecc71", "#9b59b6"}, p.Colors())

	for _, c := range []string{"#000001", "#000002", "#000003", "#000004", "#000005", "#000006"} {
		p.Add(c)
	}
	colors := p.Colors()
	assert.Len(t, colors, PaletteSize)
	assert.Equal(t, "#000006", colors[0])
	assert.NotContains(t, colors, "#9b59b6")
}

func TestConnectURL(t *testing.T) {
	u, err := ConnectURL("https://draw.example.com", "room-1", "tok", "bob")
	require.NoError(t, err)
	assert.Equal(t, "wss://draw.example.com/ws?name=bob&room=room-1&token=tok", u)
}
