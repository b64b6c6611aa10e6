package main

import (
	"context"
	"errors"
	"fmt"
	"image/png"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/wiredraw-server/internal/canvas"
	"github.com/vovakirdan/wiredraw-server/internal/client"
	"github.com/vovakirdan/wiredraw-server/internal/core"
	applog "github.com/vovakirdan/wiredraw-server/internal/log"
)

type options struct {
	server   string
	room     string
	token    string
	name     string
	size     int
	out      string
	wait     time.Duration
	color    string
	brush    float64
	strokes  []string
	fills    []string
	guide    string
	sign     bool
	logLevel string
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:           "drawclient",
		Short:         "Join a drawing room, draw, and save the board as PNG",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if opts.room == "" {
				return errors.New("--room is required")
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.server, "server", "http://localhost:8080", "relay base URL")
	f.StringVar(&opts.room, "room", "", "room id")
	f.StringVar(&opts.token, "token", "", "admission token or shared secret")
	f.StringVar(&opts.name, "name", "", "display name")
	f.IntVar(&opts.size, "size", canvas.DefaultSize, "logical canvas size")
	f.StringVar(&opts.out, "out", "board.png", "output PNG path")
	f.DurationVar(&opts.wait, "wait", 2*time.Second, "how long to keep listening after drawing")
	f.StringVar(&opts.color, "color", "#000000", "brush colour")
	f.Float64Var(&opts.brush, "brush", 5, "brush size")
	f.StringArrayVar(&opts.strokes, "stroke", nil, `stroke points "x,y x,y ..." (repeatable)`)
	f.StringArrayVar(&opts.fills, "fill", nil, `fill seed "x,y" (repeatable)`)
	f.StringVar(&opts.guide, "guide", "", "start guided drawing with this reference id")
	f.BoolVar(&opts.sign, "sign", false, "announce --name in the room user list")
	f.StringVar(&opts.logLevel, "log-level", "info", "log level")
	return cmd
}

func run(ctx context.Context, opts *options) error {
	logger := applog.New(opts.logLevel)

	wsURL, err := client.ConnectURL(opts.server, opts.room, opts.token, opts.name)
	if err != nil {
		return err
	}
	sess, err := client.Dial(ctx, wsURL, logger)
	if err != nil {
		return err
	}
	defer sess.Close()

	runErr := make(chan error, 1)
	go func() { runErr <- sess.Run(ctx) }()

	rec := client.NewReconciler(opts.size, sess,
		client.WithReferences(client.NewHTTPReferences(strings.TrimRight(opts.server, "/"), nil)),
		client.WithLogger(logger),
	)

	if err := pump(ctx, sess, rec, 10*time.Second, func() bool { return rec.ClientID() != "" }); err != nil {
		return fmt.Errorf("waiting for room state: %w", err)
	}
	logger.Info().Str("client_id", rec.ClientID()).Str("room", opts.room).Msg("joined")

	if err := draw(ctx, sess, rec, opts); err != nil {
		return err
	}

	if err := pump(ctx, sess, rec, opts.wait, nil); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if e := rec.LastError(); e != nil {
		logger.Warn().Str("code", e.Code).Str("msg", e.Msg).Msg("relay reported an error")
	}

	if err := writePNG(opts.out, rec); err != nil {
		return err
	}
	logger.Info().Str("out", opts.out).Strs("users", rec.Users()).Msg("board written")

	_ = sess.Close()
	select {
	case err := <-runErr:
		return err
	case <-time.After(time.Second):
		return nil
	}
}

func draw(ctx context.Context, sess *client.Session, rec *client.Reconciler, opts *options) error {
	if opts.sign && opts.name != "" {
		if err := rec.SignUp(opts.name); err != nil {
			return err
		}
	}
	if opts.guide != "" {
		if err := rec.GuideStart(opts.guide); err != nil {
			return err
		}
		if err := pump(ctx, sess, rec, 5*time.Second, func() bool { return rec.Guide() != nil || rec.LastError() != nil }); err != nil {
			return fmt.Errorf("waiting for guide: %w", err)
		}
		if rec.Guide() != nil {
			if err := rec.GuideAdvance(); err != nil {
				return err
			}
			if err := pump(ctx, sess, rec, 5*time.Second, func() bool { g := rec.Guide(); return g != nil && g.Step >= 0 }); err != nil {
				return fmt.Errorf("waiting for guide step: %w", err)
			}
		}
	}

	if err := rec.SetColor(opts.color); err != nil {
		return err
	}
	rec.SetBrushSize(opts.brush)

	rec.SetTool(core.ToolBrush)
	for _, s := range opts.strokes {
		points, err := parsePoints(s)
		if err != nil {
			return err
		}
		if err := replayStroke(rec, points); err != nil {
			return err
		}
	}

	rec.SetTool(core.ToolFill)
	for _, s := range opts.fills {
		points, err := parsePoints(s)
		if err != nil || len(points) != 1 {
			return fmt.Errorf("invalid fill seed %q", s)
		}
		rec.PointerDown(client.PointerEvent{X: points[0].X, Y: points[0].Y})
		if err := rec.PointerUp(client.PointerEvent{X: points[0].X, Y: points[0].Y}); err != nil {
			return err
		}
	}
	return nil
}

func replayStroke(rec *client.Reconciler, points []canvas.Point) error {
	if len(points) == 0 {
		return nil
	}
	rec.PointerDown(client.PointerEvent{X: points[0].X, Y: points[0].Y})
	for _, p := range points[1:] {
		rec.PointerMove(client.PointerEvent{X: p.X, Y: p.Y})
	}
	last := points[len(points)-1]
	return rec.PointerUp(client.PointerEvent{X: last.X, Y: last.Y})
}

// pump applies relay events until done reports true or timeout passes.
// A nil done listens for the whole timeout.
func pump(ctx context.Context, sess *client.Session, rec *client.Reconciler, timeout time.Duration, done func() bool) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	for {
		if done != nil && done() {
			return nil
		}
		select {
		case ev, ok := <-sess.Events():
			if !ok {
				return errors.New("connection closed")
			}
			if err := rec.Apply(ctx, ev); err != nil {
				return err
			}
		case <-ctx.Done():
			if done == nil {
				return nil
			}
			return ctx.Err()
		}
	}
}

func parsePoints(s string) ([]canvas.Point, error) {
	var points []canvas.Point
	for _, pair := range strings.Fields(s) {
		xs, ys, ok := strings.Cut(pair, ",")
		if !ok {
			return nil, fmt.Errorf("invalid point %q", pair)
		}
		x, err := strconv.ParseFloat(xs, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid point %q: %w", pair, err)
		}
		y, err := strconv.ParseFloat(ys, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid point %q: %w", pair, err)
		}
		points = append(points, canvas.Point{X: x, Y: y})
	}
	return points, nil
}

func writePNG(path string, rec *client.Reconciler) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	if err := png.Encode(f, rec.Composite()); err != nil {
		return fmt.Errorf("encode png: %w", err)
	}
	return f.Close()
}
