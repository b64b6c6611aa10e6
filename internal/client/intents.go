package client

import (
	"github.com/vovakirdan/wiredraw-server/internal/canvas"
	"github.com/vovakirdan/wiredraw-server/internal/core"
	"github.com/vovakirdan/wiredraw-server/internal/proto"
)

// SetTool selects brush, eraser or fill. Switching tools drops any pending
// local gesture.
func (r *Reconciler) SetTool(t core.Tool) {
	r.cancelLocal()
	r.tool = t
}

// SetColor selects the drawing colour and records it in the palette.
func (r *Reconciler) SetColor(c string) error {
	if _, err := canvas.ParseHexColor(c); err != nil {
		return err
	}
	r.color = c
	r.palette.Add(c)
	return nil
}

// SetBrushSize sets the stroke width in canvas pixels.
func (r *Reconciler) SetBrushSize(size float64) {
	if size > 0 {
		r.brushSize = size
	}
}

// Undo asks the relay to step the base history back.
func (r *Reconciler) Undo() error {
	return r.send(proto.InboundTypeUndo, nil)
}

// Redo asks the relay to step the base history forward.
func (r *Reconciler) Redo() error {
	return r.send(proto.InboundTypeRedo, nil)
}

// RequestState asks for the current base snapshot.
func (r *Reconciler) RequestState() error {
	return r.send(proto.InboundTypeRequestState, nil)
}

// Clear wipes the layer the user is drawing on and records the result.
func (r *Reconciler) Clear() error {
	r.cancelLocal()
	if r.guideStepping() {
		canvas.Clear(r.overlay)
		if err := r.send(proto.InboundTypeClearCanvas, proto.ClearData{Layer: string(core.LayerGuide)}); err != nil {
			return err
		}
		return r.saveStepState()
	}
	canvas.Clear(r.base)
	canvas.Clear(r.remote)
	if err := r.send(proto.InboundTypeClearCanvas, proto.ClearData{Layer: string(core.LayerBase)}); err != nil {
		return err
	}
	return r.saveState()
}

// SignUp announces the user's presence signature.
func (r *Reconciler) SignUp(signature string) error {
	return r.send(proto.InboundTypeUserSignedUp, proto.SignUpData{Signature: signature})
}

// GuideStart requests guided drawing with a reference.
func (r *Reconciler) GuideStart(referenceID string) error {
	return r.send(proto.InboundTypeGuideStart, proto.GuideStartData{ReferenceID: referenceID})
}

// GuideAdvance requests the next step. The expected target step lets the
// relay drop intents that raced another client's transition.
func (r *Reconciler) GuideAdvance() error {
	if r.guide == nil {
		return nil
	}
	to := r.guide.Step + 1
	return r.send(proto.InboundTypeGuideAdvance, proto.GuideMoveData{ToStep: &to})
}

// GuideRetreat requests the previous step.
func (r *Reconciler) GuideRetreat() error {
	if r.guide == nil {
		return nil
	}
	to := r.guide.Step - 1
	return r.send(proto.InboundTypeGuideRetreat, proto.GuideMoveData{ToStep: &to})
}

// GuideExit ends guided drawing, handing over the current overlay.
func (r *Reconciler) GuideExit() error {
	if r.guide == nil {
		return nil
	}
	var data proto.SnapshotData
	if r.guideStepping() {
		snap, err := canvas.Snapshot(r.overlay)
		if err != nil {
			return err
		}
		data.Snapshot = snap
	}
	return r.send(proto.InboundTypeGuideExit, data)
}

// StepUndo steps the active overlay history back.
func (r *Reconciler) StepUndo() error {
	if !r.guideStepping() {
		return errNotStepping
	}
	return r.send(proto.InboundTypeGuideStepUndo, nil)
}

// StepRedo steps the active overlay history forward.
func (r *Reconciler) StepRedo() error {
	if !r.guideStepping() {
		return errNotStepping
	}
	return r.send(proto.InboundTypeGuideStepRedo, nil)
}
