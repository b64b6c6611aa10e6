package core

import (
	"context"
	"sort"
	"time"

	"github.com/rs/zerolog"
)

type envelope struct {
	client *Client
	cmd    *Command
}

// Hub is the room registry and the single event loop that serialises every
// room mutation. Rooms are created lazily on first join.
type Hub struct {
	rooms   map[string]*Room
	clients map[*Client]struct{}
	slow    []*Client

	register   chan *Client
	unregister chan *Client
	inbox      chan envelope
	queries    chan func()
	done       chan struct{}

	deps            roomDeps
	historyCapacity int
	idleTTL         time.Duration
	sweepInterval   time.Duration
	now             func() time.Time
	log             *zerolog.Logger
}

// Option configures a Hub.
type Option func(*Hub)

// WithReferenceResolver enables guided drawing.
func WithReferenceResolver(r ReferenceResolver) Option {
	return func(h *Hub) { h.deps.resolver = r }
}

// WithSnapshotMerger sets how guide overlays are folded into the base.
func WithSnapshotMerger(m SnapshotMerger) Option {
	return func(h *Hub) { h.deps.merger = m }
}

// WithLimits overrides payload limits.
func WithLimits(l Limits) Option {
	return func(h *Hub) { h.deps.limits = l }
}

// WithHistoryCapacity bounds every room's base history. 0 means unbounded.
func WithHistoryCapacity(n int) Option {
	return func(h *Hub) { h.historyCapacity = n }
}

// WithIdleEviction removes empty rooms idle for longer than ttl, checking
// every interval.
func WithIdleEviction(ttl, interval time.Duration) Option {
	return func(h *Hub) {
		h.idleTTL = ttl
		h.sweepInterval = interval
	}
}

// WithLogger sets the hub logger.
func WithLogger(l *zerolog.Logger) Option {
	return func(h *Hub) { h.log = l }
}

func withClock(now func() time.Time) Option {
	return func(h *Hub) { h.now = now }
}

// NewHub creates a hub. Call Run to start its event loop.
func NewHub(opts ...Option) *Hub {
	nop := zerolog.Nop()
	h := &Hub{
		rooms:      make(map[string]*Room),
		clients:    make(map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		inbox:      make(chan envelope, 256),
		queries:    make(chan func()),
		done:       make(chan struct{}),
		deps:       roomDeps{limits: DefaultLimits()},
		now:        time.Now,
		log:        &nop,
	}
	for _, opt := range opts {
		opt(h)
	}
	h.deps.log = h.log
	return h
}

// Run processes registrations and commands until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	var sweep <-chan time.Time
	if h.idleTTL > 0 && h.sweepInterval > 0 {
		ticker := time.NewTicker(h.sweepInterval)
		defer ticker.Stop()
		sweep = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case c := <-h.register:
			h.clients[c] = struct{}{}
			go h.pump(ctx, c)
		case c := <-h.unregister:
			h.drop(ctx, c)
			h.evictSlow(ctx)
		case env := <-h.inbox:
			if _, ok := h.clients[env.client]; !ok {
				continue
			}
			h.handle(ctx, env.client, env.cmd)
			h.evictSlow(ctx)
		case q := <-h.queries:
			q()
		case <-sweep:
			h.sweepIdle()
		}
	}
}

// RegisterClient makes the hub start consuming c.Commands.
func (h *Hub) RegisterClient(c *Client) {
	select {
	case h.register <- c:
	case <-h.done:
	}
}

// UnregisterClient removes c from its room and closes c.Events.
func (h *Hub) UnregisterClient(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// pump forwards a client's commands into the hub inbox, preserving their order.
func (h *Hub) pump(ctx context.Context, c *Client) {
	for {
		select {
		case cmd := <-c.Commands:
			if cmd == nil {
				continue
			}
			select {
			case h.inbox <- envelope{client: c, cmd: cmd}:
			case <-c.done:
				return
			case <-ctx.Done():
				return
			}
		case <-c.done:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (h *Hub) drop(ctx context.Context, c *Client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	if room, ok := h.rooms[c.room]; ok {
		h.deliver(room, c, room.Handle(ctx, c, &Command{Kind: CommandLeaveRoom}, h.now()))
		h.log.Debug().Str("room", room.ID).Str("client_id", c.ID).Int("members", len(room.members)).Msg("client left room")
	}
	delete(h.clients, c)
	close(c.done)
	close(c.Events)
}

func (h *Hub) handle(ctx context.Context, c *Client, cmd *Command) {
	var room *Room
	switch cmd.Kind {
	case CommandJoinRoom:
		if cmd.Room == "" {
			h.deliver(nil, c, errorTo(coreError(ErrCodeBadRequest, "room is required")))
			return
		}
		if c.room != "" && c.room != cmd.Room {
			h.deliver(nil, c, errorTo(coreError(ErrCodeAlreadyJoined, "already joined another room")))
			return
		}
		room = h.getOrCreate(cmd.Room)
	default:
		name := cmd.Room
		if name == "" {
			name = c.room
		}
		var ok bool
		if room, ok = h.rooms[name]; !ok {
			h.deliver(nil, c, errorTo(coreError(ErrCodeRoomNotFound, "room not found")))
			return
		}
	}

	deliveries := room.Handle(ctx, c, cmd, h.now())
	h.log.Debug().Str("room", room.ID).Str("client_id", c.ID).Stringer("kind", cmd.Kind).Int("deliveries", len(deliveries)).Msg("command handled")
	h.deliver(room, c, deliveries)
}

// getOrCreate returns the room for id, creating it on first use.
func (h *Hub) getOrCreate(id string) *Room {
	if room, ok := h.rooms[id]; ok {
		return room
	}
	room := NewRoom(id, h.historyCapacity, h.deps)
	room.lastActive = h.now()
	h.rooms[id] = room
	h.log.Info().Str("room", id).Msg("room created")
	return room
}

func (h *Hub) deliver(room *Room, sender *Client, deliveries []Delivery) {
	for _, d := range deliveries {
		switch d.To {
		case AudienceSender:
			h.send(sender, d.Event)
		case AudienceOthers, AudienceAll:
			if room == nil {
				continue
			}
			for _, m := range room.members {
				if d.To == AudienceOthers && m == sender {
					continue
				}
				h.send(m, d.Event)
			}
		}
	}
}

// send never blocks the loop. A client whose buffer is full is queued for
// disconnection; it has to rejoin to get a consistent initState.
func (h *Hub) send(c *Client, ev *Event) {
	if c.err != nil {
		return
	}
	select {
	case c.Events <- ev:
	default:
		h.log.Warn().Str("client_id", c.ID).Stringer("event", ev.Kind).Msg("disconnecting slow client")
		c.err = ErrSlowConsumer
		h.slow = append(h.slow, c)
	}
}

// evictSlow drops clients marked by send. Dropping may mark more clients.
func (h *Hub) evictSlow(ctx context.Context) {
	for len(h.slow) > 0 {
		c := h.slow[0]
		h.slow = h.slow[1:]
		h.drop(ctx, c)
	}
}

func (h *Hub) sweepIdle() {
	cutoff := h.now().Add(-h.idleTTL)
	for id, room := range h.rooms {
		if room.Empty() && room.lastActive.Before(cutoff) {
			delete(h.rooms, id)
			h.log.Info().Str("room", id).Msg("evicted idle room")
		}
	}
}

// query runs fn inside the event loop.
func (h *Hub) query(ctx context.Context, fn func()) bool {
	finished := make(chan struct{})
	wrapped := func() {
		fn()
		close(finished)
	}
	select {
	case h.queries <- wrapped:
	case <-ctx.Done():
		return false
	case <-h.done:
		return false
	}
	select {
	case <-finished:
		return true
	case <-ctx.Done():
		return false
	}
}

// RoomInfo returns a summary of a live room.
func (h *Hub) RoomInfo(ctx context.Context, id string) (RoomInfo, bool) {
	var (
		info  RoomInfo
		found bool
	)
	if !h.query(ctx, func() {
		if room, ok := h.rooms[id]; ok {
			info, found = room.Info(), true
		}
	}) {
		return RoomInfo{}, false
	}
	return info, found
}

// Rooms returns summaries of all live rooms ordered by id.
func (h *Hub) Rooms(ctx context.Context) []RoomInfo {
	var infos []RoomInfo
	if !h.query(ctx, func() {
		infos = make([]RoomInfo, 0, len(h.rooms))
		for _, room := range h.rooms {
			infos = append(infos, room.Info())
		}
	}) {
		return nil
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })
	return infos
}
