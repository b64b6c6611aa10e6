package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wiredraw-server/internal/proto"
)

var ErrSessionClosed = errors.New("session closed")

// Session is a websocket connection to the relay. Outbound intents are queued
// by Emit; relay events are delivered on Events to a single consumer.
type Session struct {
	conn   *websocket.Conn
	out    chan proto.Inbound
	events chan proto.OutboundEvent
	done   chan struct{}
	log    *zerolog.Logger
}

// ConnectURL builds the websocket URL for a room.
func ConnectURL(base, room, token, name string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse relay url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	if u.Path == "" || u.Path == "/" {
		u.Path = "/ws"
	}
	q := u.Query()
	q.Set("room", room)
	if token != "" {
		q.Set("token", token)
	}
	if name != "" {
		q.Set("name", name)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Dial connects to the relay.
func Dial(ctx context.Context, wsURL string, log *zerolog.Logger) (*Session, error) {
	conn, resp, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial relay: %s: %w", resp.Status, err)
		}
		return nil, fmt.Errorf("dial relay: %w", err)
	}
	if log == nil {
		nop := zerolog.Nop()
		log = &nop
	}
	conn.SetReadLimit(16 << 20)
	return &Session{
		conn:   conn,
		out:    make(chan proto.Inbound, 64),
		events: make(chan proto.OutboundEvent, 64),
		done:   make(chan struct{}),
		log:    log,
	}, nil
}

// Emit queues msg for sending.
func (s *Session) Emit(msg proto.Inbound) error {
	select {
	case <-s.done:
		return ErrSessionClosed
	default:
	}
	select {
	case s.out <- msg:
		return nil
	case <-s.done:
		return ErrSessionClosed
	}
}

// Events delivers relay events. It is closed when Run returns.
func (s *Session) Events() <-chan proto.OutboundEvent {
	return s.events
}

// Run pumps the connection until ctx ends or the connection fails.
func (s *Session) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer close(s.done)

	errCh := make(chan error, 2)
	go func() {
		errCh <- s.readLoop(ctx)
	}()
	go func() {
		errCh <- s.writeLoop(ctx)
	}()

	err := <-errCh
	cancel()
	<-errCh
	close(s.events)

	if websocket.CloseStatus(err) == websocket.StatusNormalClosure || errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) {
		err = nil
	}
	s.conn.Close(websocket.StatusNormalClosure, "bye")
	return err
}

// Close ends the session.
func (s *Session) Close() error {
	return s.conn.Close(websocket.StatusNormalClosure, "bye")
}

func (s *Session) readLoop(ctx context.Context) error {
	for {
		var ev proto.OutboundEvent
		if err := wsjson.Read(ctx, s.conn, &ev); err != nil {
			return err
		}
		select {
		case s.events <- ev:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (s *Session) writeLoop(ctx context.Context) error {
	for {
		select {
		case msg := <-s.out:
			if err := wsjson.Write(ctx, s.conn, msg); err != nil {
				s.log.Error().Err(err).Str("type", msg.Type).Msg("write intent")
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
