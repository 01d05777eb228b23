// Package api exposes the game actions to the control plane over HTTP and
// mounts the game client WebSocket endpoint.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cory-johannsen/bedrockbridge/internal/bridge/protocol"
	"github.com/cory-johannsen/bedrockbridge/internal/game/actions"
	"github.com/cory-johannsen/bedrockbridge/internal/game/session"
)

// Actions is the game action surface the routes drive.
type Actions interface {
	PlayerData(name string) (session.Player, error)
	SpawnMob(ctx context.Context, req actions.MobRequest, playerName, username string) (actions.SpawnResult, error)
	Teleport(ctx context.Context, req actions.TeleportRequest, playerName, username string) (actions.TeleportResult, error)
	RouletteEffect(ctx context.Context, playerName, username string) (actions.RouletteResult, error)
	Roulette(ctx context.Context, options []actions.RouletteOption) (actions.RouletteResult, error)
	GiveItem(ctx context.Context, req actions.ItemRequest) (*protocol.Response, error)
	TakeItem(ctx context.Context, req actions.ItemRequest) (*protocol.Response, error)
}

// Stats is a point-in-time view of the bridge for health checks.
type Stats struct {
	Links   int `json:"links"`
	Pending int `json:"pending_commands"`
	Timers  int `json:"timers"`
	Players int `json:"players"`
}

// Deps are the collaborators NewRouter wires together.
type Deps struct {
	Actions Actions
	// Stats reports the health snapshot; nil omits the counters.
	Stats func() Stats
	// WebSocketPath and WebSocket mount the game client endpoint when both are set.
	WebSocketPath string
	WebSocket     http.Handler
	Logger        *zap.Logger
}

// NewRouter builds the HTTP handler for every control plane route.
//
// Precondition: deps.Actions and deps.Logger must be non-nil.
func NewRouter(deps Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger(deps.Logger))
	r.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:    []string{"Origin", "Content-Type", "Authorization"},
		MaxAge:          12 * time.Hour,
	}))

	h := &handlers{actions: deps.Actions, stats: deps.Stats, logger: deps.Logger}
	r.GET("/healthz", h.health)
	r.GET("/player_data/:player_name", h.playerData)
	r.POST("/spawn_mob_at_player", h.spawnMob)
	r.POST("/teleport_player", h.teleport)
	r.POST("/roulette_effect", h.rouletteEffect)
	r.POST("/roulette", h.roulette)
	r.POST("/give_item", h.giveItem)
	r.POST("/take_item", h.takeItem)

	if deps.WebSocket != nil && deps.WebSocketPath != "" {
		r.GET(deps.WebSocketPath, gin.WrapH(deps.WebSocket))
	}
	return r
}

// requestLogger logs one line per request, at warn for client errors and
// error for server errors.
func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", status),
			zap.Duration("duration", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}

		switch {
		case status >= 500:
			logger.Error("http request", fields...)
		case status >= 400:
			logger.Warn("http request", fields...)
		default:
			logger.Info("http request", fields...)
		}
	}
}
