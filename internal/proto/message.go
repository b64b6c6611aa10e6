package proto

import "encoding/json"

// Inbound is the envelope for messages coming from the client.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

const (
	ProtocolVersion = 1

	InboundTypeStroke        = "stroke"
	InboundTypeFill          = "fill"
	InboundTypeClearCanvas   = "clearCanvas"
	InboundTypeSaveState     = "saveState"
	InboundTypeUndo          = "undo"
	InboundTypeRedo          = "redo"
	InboundTypeRequestState  = "requestState"
	InboundTypeUserSignedUp  = "userSignedUp"
	InboundTypeGuideStart    = "guideStart"
	InboundTypeGuideAdvance  = "guideAdvance"
	InboundTypeGuideRetreat  = "guideRetreat"
	InboundTypeGuideExit     = "guideExit"
	InboundTypeSaveGuideStep = "saveGuideStepState"
	InboundTypeGuideStepUndo = "guideStepUndo"
	InboundTypeGuideStepRedo = "guideStepRedo"

	OutboundTypeEvent = "event"
	OutboundTypeError = "error"

	EventInitState          = "initState"
	EventLoadCanvas         = "loadCanvas"
	EventApplyStroke        = "applyStroke"
	EventFill               = "fill"
	EventClearCanvas        = "clearCanvas"
	EventGuideStepSync      = "guideStepSync"
	EventLoadGuideStepLayer = "loadGuideStepLayer"
	EventGuideExit          = "guideExit"
	EventUpdateUserList     = "updateUserList"
)

// Point is an x,y pair in logical canvas coordinates.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// StrokeData is a whole committed stroke. Sender is set on relay only.
type StrokeData struct {
	Tool   string  `json:"tool"`
	Color  string  `json:"color"`
	Size   float64 `json:"size"`
	Points []Point `json:"points"`
	Layer  string  `json:"layer,omitempty"`
	Step   int     `json:"step,omitempty"`
	Sender string  `json:"sender,omitempty"`
}

// FillData carries either a seed point or a solid-colour patch placed at X,Y.
type FillData struct {
	Seed   *Point `json:"seed,omitempty"`
	Patch  string `json:"patch,omitempty"`
	X      int    `json:"x"`
	Y      int    `json:"y"`
	Color  string `json:"color"`
	Layer  string `json:"layer,omitempty"`
	Step   int    `json:"step,omitempty"`
	Sender string `json:"sender,omitempty"`
}

// ClearData names the cleared layer.
type ClearData struct {
	Layer  string `json:"layer,omitempty"`
	Sender string `json:"sender,omitempty"`
}

// SnapshotData carries one full-canvas PNG data URL. Empty means blank.
type SnapshotData struct {
	Snapshot string `json:"snapshot"`
}

// SignUpData is the presence signature a client announces.
type SignUpData struct {
	Signature string `json:"signature"`
}

// GuideStartData selects a reference.
type GuideStartData struct {
	ReferenceID string `json:"referenceId"`
}

// GuideMoveData is an advance or retreat intent. ToStep guards against
// racing transitions and may be omitted.
type GuideMoveData struct {
	ToStep *int `json:"toStep,omitempty"`
}

// GuideStepStateData pushes or loads a step overlay snapshot.
type GuideStepStateData struct {
	Step     int    `json:"step"`
	Snapshot string `json:"snapshot"`
}

// GuideData is the broadcast guide session view.
type GuideData struct {
	Active      bool   `json:"active"`
	ReferenceID string `json:"referenceId,omitempty"`
	Step        int    `json:"step"`
	StepCount   int    `json:"stepCount"`
	Overlay     string `json:"overlay,omitempty"`
}

// InitStateData is sent once after admission.
type InitStateData struct {
	Protocol    int        `json:"protocol"`
	ClientID    string     `json:"clientId"`
	Room        string     `json:"room"`
	Snapshot    string     `json:"snapshot"`
	HistoryStep int        `json:"historyStep"`
	HistoryLen  int        `json:"historyLen"`
	Guide       *GuideData `json:"guide,omitempty"`
	Users       []string   `json:"users"`
}

// UserListData is the room presence list.
type UserListData struct {
	Users []string `json:"users"`
}

// Outbound is the envelope for messages sent to the client.
type Outbound struct {
	Type  string `json:"type"`
	Event string `json:"event,omitempty"`
	Data  any    `json:"data,omitempty"`
	Error *Error `json:"error,omitempty"`
}

// Error describes a protocol-level error response.
type Error struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}

// OutboundEvent is Outbound as decoded by clients, with Data kept raw.
type OutboundEvent struct {
	Type  string          `json:"type"`
	Event string          `json:"event,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
	Error *Error          `json:"error,omitempty"`
}

// NewInbound builds an envelope with data marshalled as JSON.
func NewInbound(typ string, data any) (Inbound, error) {
	if data == nil {
		return Inbound{Type: typ}, nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return Inbound{}, err
	}
	return Inbound{Type: typ, Data: raw}, nil
}
