package http

import (
	"context"
	stdhttp "net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wiredraw-server/internal/auth"
	"github.com/vovakirdan/wiredraw-server/internal/config"
	"github.com/vovakirdan/wiredraw-server/internal/core"
	"github.com/vovakirdan/wiredraw-server/internal/guide"
	"github.com/vovakirdan/wiredraw-server/internal/store"
	"github.com/vovakirdan/wiredraw-server/internal/telemetry"
)

// Hub is the part of core.Hub the transport needs.
type Hub interface {
	RegisterClient(c *core.Client)
	UnregisterClient(c *core.Client)
	RoomInfo(ctx context.Context, id string) (core.RoomInfo, bool)
	Rooms(ctx context.Context) []core.RoomInfo
}

// References serves guide reference images.
type References interface {
	Load(ctx context.Context, id string) (*guide.Reference, error)
	List() ([]string, error)
}

// Deps are the services exposed over HTTP.
type Deps struct {
	Hub        Hub
	Admission  *auth.Service
	Rooms      store.RoomStore
	References References
}

// NewServer builds an HTTP server with the websocket endpoint and REST API.
// The websocket endpoint sits on the mux directly: gin's response writer
// refuses to hijack once its middleware chain has touched the response.
func NewServer(deps Deps, cfg *config.Config, logger *zerolog.Logger) *stdhttp.Server {
	mux := stdhttp.NewServeMux()
	mux.Handle("/ws", NewWSHandler(deps.Hub, deps.Admission, cfg, logger))
	mux.Handle("/", NewRouter(deps, cfg, logger))

	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

// NewRouter registers the REST routes.
func NewRouter(deps Deps, cfg *config.Config, logger *zerolog.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(telemetry.Middleware())
	router.Use(LoggerMiddleware(logger))
	router.Use(cors.New(corsConfig(cfg.AllowedOrigins)))

	router.GET("/health", func(c *gin.Context) {
		c.String(stdhttp.StatusOK, "ok")
	})

	links := NewLinkHandlers(deps.Admission, logger)
	rooms := NewRoomHandlers(deps.Rooms, deps.Hub, logger)
	refs := NewReferenceHandlers(deps.References, logger)

	api := router.Group("/api")
	{
		api.GET("/references", refs.ListReferences)
		api.GET("/references/:id", refs.GetReference)

		issuer := api.Group("")
		issuer.Use(IssuerKeyMiddleware(deps.Admission, logger))
		{
			issuer.POST("/rooms", links.CreateLink)
			issuer.GET("/rooms", rooms.ListRooms)
			issuer.GET("/rooms/:id", rooms.GetRoom)
		}
	}

	return router
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders: []string{telemetry.HeaderRequestID},
	}
	for _, o := range origins {
		if o == "*" {
			cfg.AllowAllOrigins = true
			return cfg
		}
	}
	cfg.AllowOrigins = origins
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
	}
	return cfg
}
