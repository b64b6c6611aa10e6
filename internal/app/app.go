package app

import (
	"context"
	"fmt"
	stdhttp "net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/wiredraw-server/internal/auth"
	"github.com/vovakirdan/wiredraw-server/internal/canvas"
	"github.com/vovakirdan/wiredraw-server/internal/config"
	"github.com/vovakirdan/wiredraw-server/internal/core"
	"github.com/vovakirdan/wiredraw-server/internal/guide"
	applog "github.com/vovakirdan/wiredraw-server/internal/log"
	"github.com/vovakirdan/wiredraw-server/internal/store"
	"github.com/vovakirdan/wiredraw-server/internal/store/sqlite"
	"github.com/vovakirdan/wiredraw-server/internal/telemetry"
	transporthttp "github.com/vovakirdan/wiredraw-server/internal/transport/http"
)

// App wires together core and transport layers.
type App struct {
	server          *stdhttp.Server
	shutdownTimeout time.Duration
	hub             *core.Hub
	store           store.Store
	shutdownTracing func(context.Context) error
	log             *zerolog.Logger
}

// New constructs the application with provided configuration.
func New(cfg *config.Config, logger *zerolog.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	shutdownTracing, err := telemetry.Init(cfg.ServiceName, cfg.JaegerEndpoint, logger)
	if err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}

	st, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		_ = shutdownTracing(context.Background())
		return nil, fmt.Errorf("init store: %w", err)
	}
	logger.Info().Str("db_path", cfg.DatabasePath).Msg("database initialized")

	library := guide.NewLibrary(cfg.ReferencesDir, applog.Component(logger, "guide"))
	if n, err := library.Preload(context.Background()); err != nil {
		logger.Warn().Err(err).Str("dir", cfg.ReferencesDir).Msg("failed to load references")
	} else {
		logger.Info().Str("dir", cfg.ReferencesDir).Int("references", n).Msg("guide library ready")
	}

	hub := NewHub(cfg, library.Preloaded(), applog.Component(logger, "hub"))
	admission := auth.NewService(st, AdmissionConfig(cfg))
	logger.Info().Str("mode", admission.Mode()).Bool("require_known_room", cfg.RequireKnownRoom).Msg("admission configured")

	server := transporthttp.NewServer(transporthttp.Deps{
		Hub:        hub,
		Admission:  admission,
		Rooms:      st,
		References: library,
	}, cfg, applog.Component(logger, "http"))

	return &App{
		server:          server,
		shutdownTimeout: cfg.ShutdownTimeout,
		hub:             hub,
		store:           st,
		shutdownTracing: shutdownTracing,
		log:             logger,
	}, nil
}

// NewHub builds the room hub with guide references and canvas merging.
func NewHub(cfg *config.Config, refs core.ReferenceResolver, logger *zerolog.Logger) *core.Hub {
	limits := core.DefaultLimits()
	limits.CanvasSize = cfg.CanvasSize
	if cfg.MaxMessageBytes > 0 && cfg.MaxMessageBytes < int64(limits.MaxSnapshotBytes) {
		limits.MaxSnapshotBytes = int(cfg.MaxMessageBytes)
	}

	size := cfg.CanvasSize
	return core.NewHub(
		core.WithReferenceResolver(refs),
		core.WithSnapshotMerger(core.MergerFunc(func(base, overlay core.Snapshot) (core.Snapshot, error) {
			merged, err := canvas.Merge(string(base), string(overlay), size)
			return core.Snapshot(merged), err
		})),
		core.WithLimits(limits),
		core.WithHistoryCapacity(cfg.MaxHistory),
		core.WithIdleEviction(cfg.RoomIdleTTL, cfg.RoomSweepInterval),
		core.WithLogger(logger),
	)
}

// AdmissionConfig maps server configuration to admission settings.
func AdmissionConfig(cfg *config.Config) auth.Config {
	return auth.Config{
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
	}
}

// Run starts the HTTP server and blocks until context cancellation or fatal error.
func (a *App) Run(ctx context.Context) error {
	serverErr := make(chan error, 1)

	go a.hub.Run(ctx)

	go func() {
		a.log.Info().Str("addr", a.server.Addr).Msg("http server listening")
		if err := a.server.ListenAndServe(); err != nil && err != stdhttp.ErrServerClosed {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	select {
	case err := <-serverErr:
		a.cleanup()
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancel()

		a.log.Info().Msg("shutting down http server")
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			a.cleanup()
			return err
		}

		a.cleanup()
		return <-serverErr
	}
}

// cleanup closes database and other resources.
func (a *App) cleanup() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close store")
		} else {
			a.log.Info().Msg("store closed")
		}
	}
	if a.shutdownTracing != nil {
		ctx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancel()
		if err := a.shutdownTracing(ctx); err != nil {
			a.log.Warn().Err(err).Msg("failed to flush traces")
		}
	}
}
