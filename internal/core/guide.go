package core

import "context"

// ReferenceResolver knows how many drawable steps a guide reference has.
// Implementations return ErrNoDrawableContent for references without usable
// shape groups.
type ReferenceResolver interface {
	StepCount(ctx context.Context, referenceID string) (int, error)
}

// SnapshotMerger composites a step overlay onto a base snapshot.
type SnapshotMerger interface {
	Merge(base, overlay Snapshot) (Snapshot, error)
}

// MergerFunc adapts a function to SnapshotMerger.
type MergerFunc func(base, overlay Snapshot) (Snapshot, error)

// Merge calls f(base, overlay).
func (f MergerFunc) Merge(base, overlay Snapshot) (Snapshot, error) {
	return f(base, overlay)
}

// GuideSession is the optional guided-drawing state of a room.
// Step is -1 while loaded and 0..StepCount-1 once stepping.
type GuideSession struct {
	ReferenceID string
	StepCount   int
	Step        int

	overlay *HistoryStack
}

func newGuideSession(referenceID string, stepCount int) *GuideSession {
	g := &GuideSession{
		ReferenceID: referenceID,
		StepCount:   stepCount,
		overlay:     NewHistoryStack(0),
	}
	g.enterStep(-1)
	return g
}

// enterStep moves to step and resets its sub-history to one empty snapshot.
func (g *GuideSession) enterStep(step int) {
	g.Step = step
	g.overlay.Reset(EmptySnapshot)
}

// Overlay returns the current step overlay snapshot.
func (g *GuideSession) Overlay() Snapshot {
	return g.overlay.Current()
}

// pending reports whether the overlay holds pixels that still need merging.
func (g *GuideSession) pending() bool {
	return g.overlay.Current() != EmptySnapshot
}

// State returns the broadcast view of the session.
func (g *GuideSession) State() *GuideState {
	if g == nil {
		return &GuideState{Step: -1}
	}
	return &GuideState{
		Active:      true,
		ReferenceID: g.ReferenceID,
		Step:        g.Step,
		StepCount:   g.StepCount,
		Overlay:     g.overlay.Current(),
	}
}
