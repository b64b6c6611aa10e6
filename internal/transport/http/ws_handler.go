package http

import (
	"context"
	"errors"
	"io"
	stdhttp "net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"

	"github.com/vovakirdan/wiredraw-server/internal/auth"
	"github.com/vovakirdan/wiredraw-server/internal/config"
	"github.com/vovakirdan/wiredraw-server/internal/core"
	"github.com/vovakirdan/wiredraw-server/internal/proto"
	"github.com/vovakirdan/wiredraw-server/internal/telemetry"
	"github.com/vovakirdan/wiredraw-server/internal/utils"
)

// Admitter decides whether a connection may join a room.
type Admitter interface {
	Admit(ctx context.Context, room, credential, name string) (*auth.Admission, error)
	Joined(ctx context.Context, room string) error
}

// WSHandler admits HTTP connections, upgrades them and bridges them to core.Client.
type WSHandler struct {
	hub       Hub
	admission Admitter
	cfg       *config.Config
	log       *zerolog.Logger
}

// NewWSHandler builds a new WebSocket handler.
func NewWSHandler(hub Hub, admission Admitter, cfg *config.Config, logger *zerolog.Logger) *WSHandler {
	return &WSHandler{hub: hub, admission: admission, cfg: cfg, log: logger}
}

func (h *WSHandler) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	q := r.URL.Query()
	room := q.Get("room")

	ctx, span := telemetry.Tracer().Start(r.Context(), "ws.admit")
	span.SetAttributes(attribute.String("room", room))
	adm, err := h.admission.Admit(ctx, room, q.Get("token"), q.Get("name"))
	if err != nil {
		telemetry.RecordError(ctx, err)
		span.End()
		status := stdhttp.StatusForbidden
		if errors.Is(err, auth.ErrInvalidRoom) {
			status = stdhttp.StatusBadRequest
		}
		h.log.Info().Err(err).Str("room", room).Int("status", status).Msg("ws admission refused")
		stdhttp.Error(w, stdhttp.StatusText(status), status)
		return
	}
	span.End()

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: originPatterns(h.cfg.AllowedOrigins),
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "internal error")
	if h.cfg.MaxMessageBytes > 0 {
		conn.SetReadLimit(h.cfg.MaxMessageBytes)
	}

	client := core.NewClient(utils.NewClientID(), adm.Name)
	logger := h.log.With().Str("client_id", client.ID).Str("room", adm.Room).Logger()
	h.hub.RegisterClient(client)
	defer h.hub.UnregisterClient(client)

	client.Commands <- &core.Command{Kind: core.CommandJoinRoom, Room: adm.Room}
	if err := h.admission.Joined(r.Context(), adm.Room); err != nil {
		logger.Warn().Err(err).Msg("record room join")
	}
	logger.Info().Str("name", adm.Name).Msg("ws client admitted")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	limiter := newRateLimiter(h.cfg.RateLimitPerSecond, h.cfg.RateLimitBurst)
	errCh := make(chan error, 2)
	go func() {
		errCh <- h.readLoop(ctx, conn, client, limiter, &logger)
	}()
	go func() {
		errCh <- h.writeLoop(ctx, conn, client, &logger)
	}()

	err = <-errCh
	cancel() // stop the other goroutine
	<-errCh

	status := websocket.StatusNormalClosure
	reason := "closing"
	if errors.Is(err, core.ErrSlowConsumer) {
		logger.Warn().Msg("ws client evicted as slow consumer")
		conn.Close(websocket.StatusTryAgainLater, "slow consumer")
		return
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		if errors.Is(err, io.EOF) {
			err = nil
		}
		if s := websocket.CloseStatus(err); s != -1 {
			status = s
		}
		if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
			err = nil
		}
		if err != nil {
			if status == websocket.StatusNormalClosure {
				status = websocket.StatusInternalError
			}
			reason = err.Error()
			logger.Warn().Err(err).Msg("ws connection closed with error")
		}
	}

	conn.Close(status, reason)
}

func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, client *core.Client, limiter *rateLimiter, logger *zerolog.Logger) error {
	for {
		var inbound proto.Inbound
		if err := wsjson.Read(ctx, conn, &inbound); err != nil {
			return err
		}

		if !limiter.allow() {
			logger.Debug().Str("type", inbound.Type).Msg("rate limited")
			if err := writeError(ctx, conn, &proto.Error{Code: core.ErrCodeRateLimited, Msg: "too many messages"}); err != nil {
				return err
			}
			continue
		}

		cmd, protoErr := inboundToCommand(inbound)
		if protoErr != nil {
			logger.Debug().Str("type", inbound.Type).Str("code", protoErr.Code).Msg("rejected inbound")
			if err := writeError(ctx, conn, protoErr); err != nil {
				return err
			}
			continue
		}

		select {
		case client.Commands <- cmd:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, client *core.Client, logger *zerolog.Logger) error {
	for {
		select {
		case event, ok := <-client.Events:
			if !ok {
				return client.Err()
			}
			if err := wsjson.Write(ctx, conn, outboundFromEvent(event)); err != nil {
				logger.Error().Err(err).Msg("write ws event")
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func writeError(ctx context.Context, conn *websocket.Conn, protoErr *proto.Error) error {
	return wsjson.Write(ctx, conn, proto.Outbound{Type: proto.OutboundTypeError, Error: protoErr})
}

func originPatterns(allowed []string) []string {
	patterns := make([]string, 0, len(allowed))
	for _, o := range allowed {
		if o == "" {
			continue
		}
		patterns = append(patterns, o)
	}
	return patterns
}
