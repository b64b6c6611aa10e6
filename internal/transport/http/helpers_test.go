package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/wiredraw-server/internal/auth"
	"github.com/vovakirdan/wiredraw-server/internal/canvas"
	"github.com/vovakirdan/wiredraw-server/internal/config"
	"github.com/vovakirdan/wiredraw-server/internal/core"
	"github.com/vovakirdan/wiredraw-server/internal/guide"
	"github.com/vovakirdan/wiredraw-server/internal/proto"
	"github.com/vovakirdan/wiredraw-server/internal/store/sqlite"
)

const (
	testIssuerKey = "bot-key"
	houseSVG      = `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 100 100">
<rect x="10" y="10" width="30" height="30" fill="#ff0000"/>
<circle cx="70" cy="70" r="20" fill="#0000ff"/>
</svg>`
)

type testEnv struct {
	ts  *httptest.Server
	cfg config.Config
}

// startTestServer runs a full server over an in-memory store.
func startTestServer(t *testing.T, mutate func(*config.Config)) *testEnv {
	t.Helper()

	cfg := config.Default()
	cfg.ReadHeaderTimeout = time.Second
	cfg.CanvasSize = 64
	cfg.JWTSecret = "test-secret"
	cfg.PublicURL = "https://draw.example.com"
	issuerHash, err := auth.HashSecret(testIssuerKey)
	require.NoError(t, err)
	cfg.IssuerKeyHash = issuerHash
	if mutate != nil {
		mutate(&cfg)
	}

	st, err := sqlite.NewWithSetup(":memory:", sqlite.Migrate)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	disabledLogger := zerolog.New(nil)
	lib := guide.NewLibraryFS(fstest.MapFS{"house.svg": {Data: []byte(houseSVG)}}, &disabledLogger)
	_, err = lib.Preload(context.Background())
	require.NoError(t, err)

	limits := core.DefaultLimits()
	limits.CanvasSize = cfg.CanvasSize
	hub := core.NewHub(
		core.WithReferenceResolver(lib.Preloaded()),
		core.WithSnapshotMerger(core.MergerFunc(func(base, overlay core.Snapshot) (core.Snapshot, error) {
			merged, err := canvas.Merge(string(base), string(overlay), cfg.CanvasSize)
			return core.Snapshot(merged), err
		})),
		core.WithLimits(limits),
	)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)

	admission := auth.NewService(st, auth.Config{
		Mode: cfg.AdmissionMode,
		JWT: &auth.JWTConfig{
			Secret:   []byte(cfg.JWTSecret),
			Issuer:   cfg.JWTIssuer,
			Audience: cfg.JWTAudience,
			TTL:      cfg.TokenTTL,
		},
		SecretHash:       cfg.SecretHash,
		IssuerKeyHash:    cfg.IssuerKeyHash,
		RequireKnownRoom: cfg.RequireKnownRoom,
		PublicURL:        cfg.PublicURL,
	})

	server := NewServer(Deps{Hub: hub, Admission: admission, Rooms: st, References: lib}, &cfg, &disabledLogger)
	ts := httptest.NewServer(server.Handler)
	t.Cleanup(ts.Close)

	return &testEnv{ts: ts, cfg: cfg}
}

func (e *testEnv) wsURL(params url.Values) string {
	return strings.Replace(e.ts.URL, "http", "ws", 1) + "/ws?" + params.Encode()
}

// dialRoom connects to room and returns the connection with its initState.
func (e *testEnv) dialRoom(t *testing.T, ctx context.Context, params url.Values) (*websocket.Conn, proto.InitStateData) {
	t.Helper()

	conn, _, err := websocket.Dial(ctx, e.wsURL(params), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "done") })

	var init proto.InitStateData
	readEvent(t, ctx, conn, proto.EventInitState, &init)
	return conn, init
}

func (e *testEnv) do(t *testing.T, method, path, key, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, e.ts.URL+path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}
	rec := httptest.NewRecorder()
	e.ts.Config.Handler.ServeHTTP(rec, req)
	return rec
}

func send(t *testing.T, ctx context.Context, conn *websocket.Conn, typ string, data any) {
	t.Helper()

	msg, err := proto.NewInbound(typ, data)
	require.NoError(t, err)
	require.NoError(t, wsjson.Write(ctx, conn, msg))
}

func readOutbound(t *testing.T, ctx context.Context, conn *websocket.Conn) proto.OutboundEvent {
	t.Helper()

	var out proto.OutboundEvent
	require.NoError(t, wsjson.Read(ctx, conn, &out))
	return out
}

// readEvent reads the next message and requires it to be the named event.
func readEvent(t *testing.T, ctx context.Context, conn *websocket.Conn, event string, v any) {
	t.Helper()

	out := readOutbound(t, ctx, conn)
	require.Equal(t, proto.OutboundTypeEvent, out.Type, "got %+v", out.Error)
	require.Equal(t, event, out.Event)
	if v != nil {
		require.NoError(t, json.Unmarshal(out.Data, v))
	}
}

func readError(t *testing.T, ctx context.Context, conn *websocket.Conn) *proto.Error {
	t.Helper()

	out := readOutbound(t, ctx, conn)
	require.Equal(t, proto.OutboundTypeError, out.Type, "got event %s", out.Event)
	require.NotNil(t, out.Error)
	return out.Error
}

func roomParams(room string) url.Values {
	return url.Values{"room": {room}}
}

func statusOf(resp *http.Response) int {
	if resp == nil {
		return 0
	}
	return resp.StatusCode
}
