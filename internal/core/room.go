package core

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
)

// Audience selects the recipients of a delivery.
type Audience int

const (
	// AudienceSender delivers to the client that issued the command.
	AudienceSender Audience = iota
	// AudienceOthers delivers to every member except the sender.
	AudienceOthers
	// AudienceAll delivers to every member, sender included.
	AudienceAll
)

// Delivery is an event addressed to part of a room.
type Delivery struct {
	To    Audience
	Event *Event
}

// roomDeps are the collaborators a room needs to handle guide commands.
type roomDeps struct {
	resolver ReferenceResolver
	merger   SnapshotMerger
	limits   Limits
	log      *zerolog.Logger
}

// Room is the authoritative state of one collaborative canvas.
type Room struct {
	ID string

	members    []*Client
	signatures map[*Client]string
	history    *HistoryStack
	guide      *GuideSession
	lastActive time.Time

	deps roomDeps
}

// NewRoom constructs a room whose history starts on a blank canvas, so the
// first saved snapshot can be undone.
func NewRoom(id string, historyCapacity int, deps roomDeps) *Room {
	if deps.log == nil {
		nop := zerolog.Nop()
		deps.log = &nop
	}
	history := NewHistoryStack(historyCapacity)
	history.Push(EmptySnapshot)
	return &Room{
		ID:         id,
		signatures: make(map[*Client]string),
		history:    history,
		deps:       deps,
	}
}

// Members returns the current members in join order.
func (r *Room) Members() []*Client {
	return r.members
}

// Empty returns true if no clients are in the room.
func (r *Room) Empty() bool {
	return len(r.members) == 0
}

// History exposes the base history stack.
func (r *Room) History() *HistoryStack {
	return r.history
}

// Guide returns the active guide session or nil.
func (r *Room) Guide() *GuideSession {
	return r.guide
}

func (r *Room) has(c *Client) bool {
	for _, m := range r.members {
		if m == c {
			return true
		}
	}
	return false
}

func (r *Room) addClient(c *Client) bool {
	if r.has(c) {
		return false
	}
	r.members = append(r.members, c)
	return true
}

func (r *Room) removeClient(c *Client) bool {
	for i, m := range r.members {
		if m == c {
			r.members = append(r.members[:i], r.members[i+1:]...)
			delete(r.signatures, c)
			return true
		}
	}
	return false
}

func (r *Room) users() []string {
	users := make([]string, 0, len(r.signatures))
	for _, m := range r.members {
		if sig, ok := r.signatures[m]; ok {
			users = append(users, sig)
		}
	}
	return users
}

// Handle applies one command from c to the room and returns the events to
// deliver. It never blocks on the network; the hub routes the deliveries.
func (r *Room) Handle(ctx context.Context, c *Client, cmd *Command, now time.Time) []Delivery {
	r.lastActive = now

	if cmd.Kind == CommandJoinRoom {
		return r.join(c)
	}
	if !r.has(c) {
		return errorTo(coreError(ErrCodeNotInRoom, "not in room"))
	}

	switch cmd.Kind {
	case CommandLeaveRoom:
		return r.leave(c)
	case CommandStroke:
		return r.relayStroke(c, cmd.Stroke)
	case CommandFill:
		return r.relayFill(c, cmd.Fill)
	case CommandClearCanvas:
		layer := cmd.Layer
		if layer == "" {
			layer = LayerBase
		}
		if err := validLayer(layer); err != nil {
			r.deps.log.Warn().Err(err).Str("room", r.ID).Str("client_id", c.ID).Msg("dropping malformed clear")
			return errorTo(coreError(ErrCodeBadRequest, err.Error()))
		}
		return []Delivery{{To: AudienceOthers, Event: &Event{Kind: EventClearCanvas, Room: r.ID, Sender: c.ID, Layer: layer}}}
	case CommandSaveState:
		if err := r.deps.limits.ValidateSnapshot(cmd.Snapshot); err != nil {
			return errorTo(coreError(ErrCodeBadRequest, err.Error()))
		}
		r.history.Push(cmd.Snapshot)
		return nil
	case CommandUndo:
		if snap, ok := r.history.Undo(); ok {
			return []Delivery{r.loadCanvas(snap)}
		}
		return nil
	case CommandRedo:
		if snap, ok := r.history.Redo(); ok {
			return []Delivery{r.loadCanvas(snap)}
		}
		return nil
	case CommandRequestState:
		return []Delivery{{To: AudienceSender, Event: &Event{Kind: EventLoadCanvas, Room: r.ID, Snapshot: r.history.Current()}}}
	case CommandSignUp:
		r.signatures[c] = cmd.Signature
		return []Delivery{r.userList()}
	case CommandGuideStart:
		return r.guideStart(ctx, cmd.ReferenceID)
	case CommandGuideAdvance:
		return r.guideMove(cmd.ToStep, +1)
	case CommandGuideRetreat:
		return r.guideMove(cmd.ToStep, -1)
	case CommandGuideExit:
		return r.guideExit(cmd.Snapshot)
	case CommandSaveGuideStep:
		return r.saveGuideStep(cmd.Step, cmd.Snapshot)
	case CommandGuideStepUndo:
		return r.guideStepHistory((*HistoryStack).Undo)
	case CommandGuideStepRedo:
		return r.guideStepHistory((*HistoryStack).Redo)
	default:
		return errorTo(coreError(ErrCodeBadRequest, "unknown command"))
	}
}

func (r *Room) join(c *Client) []Delivery {
	if !r.addClient(c) {
		return errorTo(coreError(ErrCodeAlreadyJoined, "already joined"))
	}
	c.room = r.ID

	var guide *GuideState
	if r.guide != nil {
		guide = r.guide.State()
	}
	return []Delivery{{To: AudienceSender, Event: &Event{
		Kind: EventInitState,
		Room: r.ID,
		Init: &InitState{
			ClientID:    c.ID,
			Snapshot:    r.history.Current(),
			HistoryStep: r.history.Step(),
			HistoryLen:  r.history.Len(),
			Guide:       guide,
			Users:       r.users(),
		},
	}}}
}

func (r *Room) leave(c *Client) []Delivery {
	_, signed := r.signatures[c]
	r.removeClient(c)
	c.room = ""
	if !signed || r.Empty() {
		return nil
	}
	return []Delivery{r.userList()}
}

func (r *Room) relayStroke(c *Client, s *Stroke) []Delivery {
	if err := r.deps.limits.ValidateStroke(s); err != nil {
		r.deps.log.Warn().Err(err).Str("room", r.ID).Str("client_id", c.ID).Msg("dropping malformed stroke")
		return errorTo(coreError(ErrCodeBadRequest, err.Error()))
	}
	if s.Layer == LayerGuide && !r.guideStepMatches(s.Step) {
		r.deps.log.Debug().Str("room", r.ID).Int("step", s.Step).Msg("dropping stale guide stroke")
		return nil
	}
	stamped := *s
	stamped.SenderID = c.ID
	return []Delivery{{To: AudienceOthers, Event: &Event{Kind: EventApplyStroke, Room: r.ID, Sender: c.ID, Stroke: &stamped}}}
}

func (r *Room) relayFill(c *Client, f *Fill) []Delivery {
	if err := r.deps.limits.ValidateFill(f); err != nil {
		r.deps.log.Warn().Err(err).Str("room", r.ID).Str("client_id", c.ID).Msg("dropping malformed fill")
		return errorTo(coreError(ErrCodeBadRequest, err.Error()))
	}
	if f.Layer == LayerGuide && !r.guideStepMatches(f.Step) {
		r.deps.log.Debug().Str("room", r.ID).Int("step", f.Step).Msg("dropping stale guide fill")
		return nil
	}
	stamped := *f
	stamped.SenderID = c.ID
	return []Delivery{{To: AudienceOthers, Event: &Event{Kind: EventFill, Room: r.ID, Sender: c.ID, Fill: &stamped}}}
}

func (r *Room) guideStepMatches(step int) bool {
	return r.guide != nil && r.guide.Step == step && step >= 0
}

func (r *Room) guideStart(ctx context.Context, referenceID string) []Delivery {
	if r.guide != nil {
		return errorTo(coreError(ErrCodeGuideActive, "guide already active"))
	}
	if referenceID == "" {
		return errorTo(coreError(ErrCodeInvalidReference, "reference is required"))
	}
	if r.deps.resolver == nil {
		return errorTo(coreError(ErrCodeGuideUnavailable, "guided drawing is not configured"))
	}

	count, err := r.deps.resolver.StepCount(ctx, referenceID)
	switch {
	case errors.Is(err, ErrNoDrawableContent) || (err == nil && count <= 0):
		return errorTo(coreError(ErrCodeNoDrawableContent, "reference has no drawable content"))
	case err != nil:
		r.deps.log.Warn().Err(err).Str("room", r.ID).Str("reference", referenceID).Msg("guide reference rejected")
		return errorTo(coreError(ErrCodeInvalidReference, "invalid reference"))
	}

	r.guide = newGuideSession(referenceID, count)
	return []Delivery{r.guideSync()}
}

// guideMove merges the current overlay into the base and then enters the
// adjacent step. The merged loadCanvas always precedes the step sync.
func (r *Room) guideMove(toStep *int, dir int) []Delivery {
	if r.guide == nil {
		return errorTo(coreError(ErrCodeGuideInactive, "guide is not active"))
	}
	target := r.guide.Step + dir
	if toStep != nil && *toStep != target {
		return nil
	}
	if target < -1 || target >= r.guide.StepCount {
		return nil
	}

	out, err := r.mergeOverlay()
	if err != nil {
		return errorTo(err)
	}
	r.guide.enterStep(target)
	return append(out, r.guideSync())
}

func (r *Room) guideExit(final Snapshot) []Delivery {
	if r.guide == nil {
		return nil
	}
	if final != EmptySnapshot && r.guide.Step >= 0 {
		if err := r.deps.limits.ValidateSnapshot(final); err != nil {
			return errorTo(coreError(ErrCodeBadRequest, err.Error()))
		}
		r.guide.overlay.Push(final)
	}
	if _, err := r.mergeOverlay(); err != nil {
		return errorTo(err)
	}
	r.guide = nil
	return []Delivery{{To: AudienceAll, Event: &Event{Kind: EventGuideExit, Room: r.ID, Snapshot: r.history.Current()}}}
}

// mergeOverlay pushes base+overlay onto the history when the overlay holds
// pending pixels. The returned deliveries broadcast the merged base.
func (r *Room) mergeOverlay() ([]Delivery, *CoreError) {
	if r.guide == nil || r.guide.Step < 0 || !r.guide.pending() {
		return nil, nil
	}
	if r.deps.merger == nil {
		return nil, coreError(ErrCodeGuideUnavailable, "snapshot merging is not configured")
	}
	merged, err := r.deps.merger.Merge(r.history.Current(), r.guide.Overlay())
	if err != nil {
		r.deps.log.Error().Err(err).Str("room", r.ID).Int("step", r.guide.Step).Msg("merge guide step")
		return nil, coreError(ErrCodeMergeFailed, "failed to merge guide step")
	}
	r.history.Push(merged)
	return []Delivery{r.loadCanvas(merged)}, nil
}

func (r *Room) saveGuideStep(step int, snap Snapshot) []Delivery {
	if !r.guideStepMatches(step) {
		return nil
	}
	if err := r.deps.limits.ValidateSnapshot(snap); err != nil {
		return errorTo(coreError(ErrCodeBadRequest, err.Error()))
	}
	r.guide.overlay.Push(snap)
	return nil
}

func (r *Room) guideStepHistory(move func(*HistoryStack) (Snapshot, bool)) []Delivery {
	if r.guide == nil || r.guide.Step < 0 {
		return nil
	}
	snap, ok := move(r.guide.overlay)
	if !ok {
		return nil
	}
	return []Delivery{{To: AudienceAll, Event: &Event{Kind: EventLoadGuideStepLayer, Room: r.ID, Step: r.guide.Step, Snapshot: snap}}}
}

func (r *Room) loadCanvas(snap Snapshot) Delivery {
	return Delivery{To: AudienceAll, Event: &Event{Kind: EventLoadCanvas, Room: r.ID, Snapshot: snap}}
}

func (r *Room) guideSync() Delivery {
	return Delivery{To: AudienceAll, Event: &Event{Kind: EventGuideStepSync, Room: r.ID, Guide: r.guide.State()}}
}

func (r *Room) userList() Delivery {
	return Delivery{To: AudienceAll, Event: &Event{Kind: EventUserList, Room: r.ID, Users: r.users()}}
}

func errorTo(err *CoreError) []Delivery {
	return []Delivery{{To: AudienceSender, Event: &Event{Kind: EventError, Error: err}}}
}

// RoomInfo is a read-only summary of a room.
type RoomInfo struct {
	ID          string
	Members     int
	HistoryLen  int
	HistoryStep int
	Guide       *GuideState
	LastActive  time.Time
}

// Info returns a summary of the room.
func (r *Room) Info() RoomInfo {
	info := RoomInfo{
		ID:          r.ID,
		Members:     len(r.members),
		HistoryLen:  r.history.Len(),
		HistoryStep: r.history.Step(),
		LastActive:  r.lastActive,
	}
	if r.guide != nil {
		info.Guide = r.guide.State()
	}
	return info
}
