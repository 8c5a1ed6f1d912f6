package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	ossignal "os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/linguahub/signaling/config"
	"github.com/linguahub/signaling/internal/api"
	"github.com/linguahub/signaling/internal/metrics"
	"github.com/linguahub/signaling/pkg/server"
	"github.com/linguahub/signaling/signal"
	"github.com/linguahub/signaling/ws"
)

func main() {
	// load local .env (dev only)
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config:\n%s", config.FormatValidationErrors(err))
	}

	logger := newLogger(cfg.Env)

	serverCtx, cancel := ossignal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT, syscall.SIGHUP)
	defer cancel()

	registry := signal.NewRegistry(signal.WithMaxHistory(cfg.WS.MaxHistory))

	hub := ws.New(
		ws.NewWSConnFactory(
			ws.WithMaxMessageSize(cfg.WS.MaxMessageSize),
			ws.WithSendBuffer(cfg.WS.SendBuffer),
			ws.WithConnLogger(logger),
		),
		ws.WithLogger(logger),
	)

	router := ws.NewRouter(hub)
	handler := signal.NewHandler(registry, logger)
	handler.Register(router)
	hub.OnConnect(func(a ws.HubActions, c ws.Conn) {
		metrics.ConnectionsActive.Inc()
	})
	hub.OnDisconnect(func(a ws.HubActions, c ws.Conn) {
		metrics.ConnectionsActive.Dec()
		handler.HandleDisconnect(a, c.ID())
	})
	hub.Start()

	srv := server.Server{
		Server: &http.Server{
			Handler: api.New(cfg, logger, hub),
			Addr:    fmt.Sprintf("%s:%d", cfg.Hostname, cfg.Port),
		},
		Logger: logger,
		CleanUpFuncs: []func(ctx context.Context){
			func(ctx context.Context) { hub.Close() },
		},
	}

	srv.Start(serverCtx)
}

// newLogger returns a slog.Logger with formatting based on env:
// prod gets JSON logs at INFO level, everything else text logs at DEBUG.
func newLogger(env string) *slog.Logger {
	var handler slog.Handler
	if env == "prod" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug})
	}
	return slog.New(handler)
}
