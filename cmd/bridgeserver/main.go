// Package main runs the Minecraft Bedrock bridge: the WebSocket endpoint the
// game client connects to and the HTTP control plane that drives it.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cory-johannsen/bedrockbridge/internal/api"
	"github.com/cory-johannsen/bedrockbridge/internal/bridge/command"
	"github.com/cory-johannsen/bedrockbridge/internal/bridge/events"
	"github.com/cory-johannsen/bedrockbridge/internal/bridge/link"
	"github.com/cory-johannsen/bedrockbridge/internal/bridge/ws"
	"github.com/cory-johannsen/bedrockbridge/internal/config"
	"github.com/cory-johannsen/bedrockbridge/internal/game/actions"
	gamecmd "github.com/cory-johannsen/bedrockbridge/internal/game/command"
	"github.com/cory-johannsen/bedrockbridge/internal/game/content"
	"github.com/cory-johannsen/bedrockbridge/internal/game/effects"
	"github.com/cory-johannsen/bedrockbridge/internal/game/handlers"
	"github.com/cory-johannsen/bedrockbridge/internal/game/rng"
	"github.com/cory-johannsen/bedrockbridge/internal/game/search"
	"github.com/cory-johannsen/bedrockbridge/internal/game/session"
	"github.com/cory-johannsen/bedrockbridge/internal/game/timer"
	"github.com/cory-johannsen/bedrockbridge/internal/observability"
	"github.com/cory-johannsen/bedrockbridge/internal/server"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logging, "bridgeserver")
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	vocab, err := content.Load(cfg.Content.Path)
	if err != nil {
		logger.Fatal("loading content", zap.Error(err))
	}
	logger.Info("content loaded",
		zap.String("path", cfg.Content.Path),
		zap.Int("mobs", len(vocab.Mobs)),
		zap.Int("effects", len(vocab.Effects)),
		zap.Int("random_events", len(vocab.RandomEvents)),
	)

	// Bridge core
	links := link.NewRegistry()
	engine := command.NewEngine(links, command.NewTable(), cfg.Bridge.CommandTimeout, logger.Named("commands"))
	registry := events.NewRegistry(engine, logger.Named("events"))

	// Game layer
	src := rng.NewCryptoSource()
	players := session.NewManager()
	searcher := search.NewSearcher(
		search.NewCommandProber(engine, cfg.Search.Hazards),
		search.Bounds{
			MinY:        cfg.Search.MinY,
			MaxY:        cfg.Search.MaxY,
			SeaLevel:    cfg.Search.SeaLevel,
			MaxAttempts: cfg.Search.MaxAttempts,
			Jitter:      cfg.Search.Jitter,
		},
		src,
		logger.Named("search"),
	)
	service := actions.NewService(engine, players, searcher, vocab, src, cfg.Actions, logger.Named("actions"))
	runner := effects.NewRunner(effects.NewTable(vocab.RandomEvents), service, players, engine, src, logger.Named("effects"))
	timers := timer.NewManager(engine, runner, cfg.Timer.Tick, logger.Named("timer"))
	handlers.New(players, timers, gamecmd.DefaultRegistry(), logger.Named("handlers")).Register(registry)

	acceptor := ws.NewAcceptor(cfg.WebSocket, links, engine, registry, logger.Named("ws"))

	gin.SetMode(gin.ReleaseMode)
	router := api.NewRouter(api.Deps{
		Actions: service,
		Stats: func() api.Stats {
			return api.Stats{
				Links:   links.Len(),
				Pending: engine.Pending(),
				Timers:  timers.Running(),
				Players: players.Count(),
			}
		},
		WebSocketPath: cfg.WebSocket.Path,
		WebSocket:     acceptor,
		Logger:        logger.Named("http"),
	})
	httpService := server.NewHTTPService(cfg.Server, router, logger)
	httpService.OnStop(acceptor.Close)

	// Wire lifecycle; services stop in reverse order so timers halt before
	// the game client is disconnected.
	lifecycle := server.NewLifecycle(logger)
	lifecycle.Add("http", httpService)
	lifecycle.Add("timers", &server.FuncService{
		StartFn: func() error { return nil },
		StopFn:  timers.Shutdown,
	})

	logger.Info("server initialized",
		zap.Duration("startup", time.Since(start)),
		zap.String("http_addr", cfg.Server.Addr()),
		zap.String("websocket_path", cfg.WebSocket.Path),
		zap.Duration("command_timeout", cfg.Bridge.CommandTimeout),
	)

	if err := lifecycle.Run(context.Background()); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}
