package core

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startHub(t *testing.T, opts ...Option) (*Hub, context.Context) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	t.Cleanup(cancel)

	hub := NewHub(opts...)
	go hub.Run(ctx)
	return hub, ctx
}

func joinedClient(t *testing.T, hub *Hub, id, room string) *Client {
	t.Helper()
	c := NewClient(id, id)
	hub.RegisterClient(c)
	c.Commands <- &Command{Kind: CommandJoinRoom, Room: room}
	mustEvent(t, c.Events, EventInitState)
	return c
}

func TestHubJoinRelayAndLeave(t *testing.T) {
	hub, _ := startHub(t)

	alice := joinedClient(t, hub, "a", "board")
	bob := joinedClient(t, hub, "b", "board")

	alice.Commands <- &Command{Kind: CommandSignUp, Signature: "alice-sig"}
	bob.Commands <- &Command{Kind: CommandSignUp, Signature: "bob-sig"}
	users := mustEvent(t, alice.Events, EventUserList)
	for len(users.Users) < 2 {
		users = mustEvent(t, alice.Events, EventUserList)
	}
	assert.Equal(t, []string{"alice-sig", "bob-sig"}, users.Users)

	alice.Commands <- &Command{Kind: CommandStroke, Stroke: &Stroke{
		Tool: ToolBrush, Color: "#ff0000", Size: 4, Layer: LayerBase,
		Points: []Point{{X: 10, Y: 10}, {X: 20, Y: 20}},
	}}
	ev := mustEvent(t, bob.Events, EventApplyStroke)
	require.NotNil(t, ev.Stroke)
	assert.Equal(t, "a", ev.Stroke.SenderID)
	assert.Equal(t, "board", ev.Room)

	alice.Commands <- &Command{Kind: CommandLeaveRoom}
	left := mustEvent(t, bob.Events, EventUserList)
	assert.Equal(t, []string{"bob-sig"}, left.Users)
}

func TestHubDoubleJoinProducesError(t *testing.T) {
	hub, _ := startHub(t)

	alice := joinedClient(t, hub, "a", "board")
	alice.Commands <- &Command{Kind: CommandJoinRoom, Room: "board"}

	ev := mustEvent(t, alice.Events, EventError)
	require.NotNil(t, ev.Error)
	assert.Equal(t, ErrCodeAlreadyJoined, ev.Error.Code)
}

func TestHubCommandWithoutJoinProducesError(t *testing.T) {
	hub, _ := startHub(t)

	joinedClient(t, hub, "b", "board")
	alice := NewClient("a", "alice")
	hub.RegisterClient(alice)

	alice.Commands <- &Command{Kind: CommandUndo, Room: "board"}

	ev := mustEvent(t, alice.Events, EventError)
	require.NotNil(t, ev.Error)
	assert.Equal(t, ErrCodeNotInRoom, ev.Error.Code)
}

func TestHubLeaveUnknownRoomError(t *testing.T) {
	hub, _ := startHub(t)

	alice := NewClient("a", "alice")
	hub.RegisterClient(alice)

	alice.Commands <- &Command{Kind: CommandLeaveRoom, Room: "ghost"}

	ev := mustEvent(t, alice.Events, EventError)
	require.NotNil(t, ev.Error)
	assert.Equal(t, ErrCodeRoomNotFound, ev.Error.Code)
}

func TestHubUndoBroadcastsToEveryone(t *testing.T) {
	hub, ctx := startHub(t)

	alice := joinedClient(t, hub, "a", "board")
	bob := joinedClient(t, hub, "b", "board")

	alice.Commands <- &Command{Kind: CommandSaveState, Snapshot: "S0"}
	alice.Commands <- &Command{Kind: CommandSaveState, Snapshot: "S1"}
	// Commands from different clients are not ordered against each other.
	require.Eventually(t, func() bool {
		info, ok := hub.RoomInfo(ctx, "board")
		return ok && info.HistoryLen == 3
	}, 2*time.Second, 10*time.Millisecond)
	bob.Commands <- &Command{Kind: CommandUndo}

	for _, c := range []*Client{alice, bob} {
		ev := mustEvent(t, c.Events, EventLoadCanvas)
		assert.Equal(t, Snapshot("S0"), ev.Snapshot)
	}
}

func TestHubLateJoinerReceivesCurrentSnapshot(t *testing.T) {
	hub, _ := startHub(t)

	alice := joinedClient(t, hub, "a", "board")
	alice.Commands <- &Command{Kind: CommandSaveState, Snapshot: "S0"}
	alice.Commands <- &Command{Kind: CommandSaveState, Snapshot: "S1"}
	alice.Commands <- &Command{Kind: CommandUndo}
	mustEvent(t, alice.Events, EventLoadCanvas)

	carol := NewClient("c", "carol")
	hub.RegisterClient(carol)
	carol.Commands <- &Command{Kind: CommandJoinRoom, Room: "board"}
	ev := mustEvent(t, carol.Events, EventInitState)

	require.NotNil(t, ev.Init)
	assert.Equal(t, Snapshot("S0"), ev.Init.Snapshot)
	assert.Equal(t, 1, ev.Init.HistoryStep)
	assert.Equal(t, 3, ev.Init.HistoryLen)
	assert.Equal(t, "c", ev.Init.ClientID)
}

func TestHubUnregisterClosesEvents(t *testing.T) {
	hub, ctx := startHub(t)

	alice := joinedClient(t, hub, "a", "board")
	hub.UnregisterClient(alice)

	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-alice.Events:
			if !ok {
				info, found := hub.RoomInfo(ctx, "board")
				require.True(t, found)
				assert.Equal(t, 0, info.Members)
				return
			}
		case <-deadline:
			t.Fatal("events channel was not closed")
		}
	}
}

func TestHubEvictsIdleEmptyRooms(t *testing.T) {
	var nowUnix atomic.Int64
	nowUnix.Store(1700000000)
	clock := func() time.Time { return time.Unix(nowUnix.Load(), 0) }

	hub, ctx := startHub(t, withClock(clock), WithIdleEviction(time.Minute, 10*time.Millisecond))

	alice := joinedClient(t, hub, "a", "board")
	hub.UnregisterClient(alice)

	// The leave must be stamped before the clock moves past the TTL.
	require.Eventually(t, func() bool {
		info, ok := hub.RoomInfo(ctx, "board")
		return ok && info.Members == 0
	}, 2*time.Second, 10*time.Millisecond)
	nowUnix.Add(120)

	require.Eventually(t, func() bool {
		_, found := hub.RoomInfo(ctx, "board")
		return !found
	}, 2*time.Second, 20*time.Millisecond)
	assert.Empty(t, hub.Rooms(ctx))
}

func TestHubDisconnectsSlowClient(t *testing.T) {
	hub, ctx := startHub(t)

	alice := joinedClient(t, hub, "a", "board")
	bob := NewClient("b", "bob")
	bob.Events = make(chan *Event, 1)
	hub.RegisterClient(bob)
	bob.Commands <- &Command{Kind: CommandJoinRoom, Room: "board"}
	require.Eventually(t, func() bool {
		info, ok := hub.RoomInfo(ctx, "board")
		return ok && info.Members == 2
	}, 2*time.Second, 10*time.Millisecond)

	// bob's buffer still holds initState, so the relayed stroke overflows it.
	alice.Commands <- &Command{Kind: CommandStroke, Stroke: &Stroke{
		Tool: ToolBrush, Color: "#000000", Size: 2, Layer: LayerBase,
		Points: []Point{{X: 1, Y: 1}},
	}}
	require.Eventually(t, func() bool {
		info, ok := hub.RoomInfo(ctx, "board")
		return ok && info.Members == 1
	}, 2*time.Second, 10*time.Millisecond)

	ev := <-bob.Events
	require.NotNil(t, ev)
	assert.Equal(t, EventInitState, ev.Kind)
	_, open := <-bob.Events
	assert.False(t, open, "the overflowing event is not delivered")
	assert.ErrorIs(t, bob.Err(), ErrSlowConsumer)
}
