package core

// EventKind is a notification the core emits to clients.
type EventKind int

const (
	// EventInitState is sent once to a client that joined a room.
	EventInitState EventKind = iota
	// EventLoadCanvas replaces the base layer (undo, redo, request).
	EventLoadCanvas
	// EventApplyStroke delivers a stroke committed by another member.
	EventApplyStroke
	// EventFill delivers a fill performed by another member.
	EventFill
	// EventClearCanvas notifies that another member cleared a layer.
	EventClearCanvas
	// EventGuideStepSync announces the active reference and step.
	EventGuideStepSync
	// EventLoadGuideStepLayer replaces the step overlay (step undo/redo).
	EventLoadGuideStepLayer
	// EventGuideExit carries the merged base after guided drawing ends.
	EventGuideExit
	// EventUserList carries the presence signatures of the room.
	EventUserList
	// EventError notifies a client about a domain error.
	EventError
)

var eventNames = [...]string{
	"initState", "loadCanvas", "applyStroke", "fill", "clearCanvas", "guideStepSync",
	"loadGuideStepLayer", "guideExit", "updateUserList", "error",
}

func (k EventKind) String() string {
	if int(k) < len(eventNames) {
		return eventNames[k]
	}
	return "unknown"
}

// Event is sent to clients to describe what happened in a room.
// Events are shared between recipients and must be treated as read-only.
type Event struct {
	Kind     EventKind
	Room     string
	Sender   string
	Snapshot Snapshot
	Layer    Layer
	Step     int
	Stroke   *Stroke
	Fill     *Fill
	Guide    *GuideState
	Users    []string
	Init     *InitState
	Error    *CoreError
}

// InitState is everything a late joiner needs to mirror the room.
type InitState struct {
	ClientID    string
	Snapshot    Snapshot
	HistoryStep int
	HistoryLen  int
	Guide       *GuideState
	Users       []string
}

// GuideState is the broadcast view of a guide session.
type GuideState struct {
	Active      bool
	ReferenceID string
	Step        int
	StepCount   int
	Overlay     Snapshot
}
