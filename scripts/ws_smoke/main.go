package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/url"
	"os"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/vovakirdan/wiredraw-server/internal/proto"
)

func main() {
	if err := run(); err != nil {
		log.Printf("ws_smoke: %v", err)
		os.Exit(1)
	}
}

func run() error {
	addr := flag.String("addr", "ws://localhost:8080/ws", "WebSocket address")
	room := flag.String("room", "smoke", "room id")
	token := flag.String("token", "", "admission token or shared secret")
	timeout := flag.Duration("timeout", 5*time.Second, "total timeout for the run")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	u, err := url.Parse(*addr)
	if err != nil {
		return fmt.Errorf("parse addr: %w", err)
	}
	q := u.Query()
	q.Set("room", *room)
	if *token != "" {
		q.Set("token", *token)
	}

	dial := func(name string) (*websocket.Conn, error) {
		q.Set("name", name)
		u.RawQuery = q.Encode()
		conn, resp, err := websocket.Dial(ctx, u.String(), nil)
		if err != nil {
			if resp != nil {
				return nil, fmt.Errorf("dial %s: %s: %w", name, resp.Status, err)
			}
			return nil, fmt.Errorf("dial %s: %w", name, err)
		}
		if _, err := expect(ctx, conn, proto.EventInitState); err != nil {
			return nil, err
		}
		return conn, nil
	}

	drawer, err := dial("drawer")
	if err != nil {
		return err
	}
	defer drawer.Close(websocket.StatusNormalClosure, "bye")

	viewer, err := dial("viewer")
	if err != nil {
		return err
	}
	defer viewer.Close(websocket.StatusNormalClosure, "bye")

	send := func(conn *websocket.Conn, typ string, data any) error {
		msg, err := proto.NewInbound(typ, data)
		if err != nil {
			return fmt.Errorf("marshal %s: %w", typ, err)
		}
		if err := wsjson.Write(ctx, conn, msg); err != nil {
			return fmt.Errorf("send %s: %w", typ, err)
		}
		return nil
	}

	if err := send(drawer, proto.InboundTypeStroke, proto.StrokeData{
		Tool:   "brush",
		Color:  "#e74c3c",
		Size:   6,
		Points: []proto.Point{{X: 100, Y: 100}, {X: 300, Y: 240}, {X: 500, Y: 120}},
	}); err != nil {
		return err
	}
	out, err := expect(ctx, viewer, proto.EventApplyStroke)
	if err != nil {
		return err
	}
	fmt.Printf("viewer received stroke: %s\n", out.Data)

	for _, snap := range []string{"smoke-1", "smoke-2"} {
		if err := send(drawer, proto.InboundTypeSaveState, proto.SnapshotData{Snapshot: snap}); err != nil {
			return err
		}
	}
	if err := send(viewer, proto.InboundTypeUndo, nil); err != nil {
		return err
	}
	for name, conn := range map[string]*websocket.Conn{"drawer": drawer, "viewer": viewer} {
		out, err := expect(ctx, conn, proto.EventLoadCanvas)
		if err != nil {
			return err
		}
		fmt.Printf("%s received loadCanvas: %s\n", name, out.Data)
	}

	fmt.Println("smoke test passed")
	return nil
}

func expect(ctx context.Context, conn *websocket.Conn, event string) (proto.OutboundEvent, error) {
	var out proto.OutboundEvent
	if err := wsjson.Read(ctx, conn, &out); err != nil {
		return out, fmt.Errorf("read: %w", err)
	}
	if out.Type == proto.OutboundTypeError && out.Error != nil {
		return out, fmt.Errorf("relay error %s: %s", out.Error.Code, out.Error.Msg)
	}
	if out.Event != event {
		return out, fmt.Errorf("expected %s, got %s", event, out.Event)
	}
	return out, nil
}
