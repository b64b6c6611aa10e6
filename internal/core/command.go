package core

// CommandKind describes what the client wants to do.
type CommandKind int

const (
	// CommandJoinRoom subscribes the client to a room, creating it lazily.
	CommandJoinRoom CommandKind = iota
	// CommandLeaveRoom unsubscribes the client from its room.
	CommandLeaveRoom
	// CommandStroke relays a committed stroke to the other room members.
	CommandStroke
	// CommandFill relays a fill (seed or prebuilt mask patch).
	CommandFill
	// CommandClearCanvas relays a canvas clear.
	CommandClearCanvas
	// CommandSaveState pushes a base snapshot onto the room history.
	CommandSaveState
	// CommandUndo moves the room history cursor back.
	CommandUndo
	// CommandRedo moves the room history cursor forward.
	CommandRedo
	// CommandRequestState asks for the current base snapshot.
	CommandRequestState
	// CommandSignUp registers the presence signature of the client.
	CommandSignUp
	// CommandGuideStart enters guided drawing with a reference.
	CommandGuideStart
	// CommandGuideAdvance merges the current step and moves to the next one.
	CommandGuideAdvance
	// CommandGuideRetreat merges the current step and moves to the previous one.
	CommandGuideRetreat
	// CommandGuideExit merges the final step and leaves guided drawing.
	CommandGuideExit
	// CommandSaveGuideStep pushes a step overlay snapshot.
	CommandSaveGuideStep
	// CommandGuideStepUndo moves the step overlay cursor back.
	CommandGuideStepUndo
	// CommandGuideStepRedo moves the step overlay cursor forward.
	CommandGuideStepRedo
)

var commandNames = [...]string{
	"join", "leave", "stroke", "fill", "clearCanvas", "saveState", "undo", "redo",
	"requestState", "userSignedUp", "guideStart", "guideAdvance", "guideRetreat",
	"guideExit", "saveGuideStepState", "guideStepUndo", "guideStepRedo",
}

func (k CommandKind) String() string {
	if int(k) < len(commandNames) {
		return commandNames[k]
	}
	return "unknown"
}

// Command represents an action requested by a client.
type Command struct {
	Kind CommandKind
	Room string

	Stroke *Stroke
	Fill   *Fill
	Layer  Layer

	Snapshot    Snapshot
	Signature   string
	ReferenceID string

	// Step is the guide step a step snapshot belongs to.
	Step int
	// ToStep is the step the client expects to land on; nil means "adjacent".
	ToStep *int
}
