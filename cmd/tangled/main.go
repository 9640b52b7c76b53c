// Command tangled serves the knowledge index over HTTP.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/tanglehq/tangle/internal/config"
	"github.com/tanglehq/tangle/internal/server/api"
	"github.com/tanglehq/tangle/internal/server/events"
	"github.com/tanglehq/tangle/internal/tools"
	"github.com/tanglehq/tangle/pkg/tangle"
)

func main() {
	log := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(log)

	cfg, err := config.Load()
	if err != nil {
		log.Error("loading config", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	tg, err := tangle.Open(ctx, *cfg)
	if err != nil {
		log.Error("opening stores", "error", err)
		os.Exit(1)
	}
	defer tg.Close(ctx)

	log.Info("stores opened", "data_dir", cfg.DataDir, "graph_backend", cfg.GraphBackend)

	// Event fan-out, with an optional webhook sink.
	bus := events.NewBus(log)
	bus.Start()
	defer bus.Stop()

	if url := os.Getenv("TANGLE_WEBHOOK_URL"); url != "" {
		sink := events.NewWebhookSink(bus, url, log)
		defer sink.Close()
		log.Info("webhook sink enabled", "url", url)
	}

	registry := tools.NewService(tg.Notes(), tg.Graph(), bus.Emitter()).Registry()
	apiServer := api.New(tg.Notes(), tg.Graph(), registry, log)

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)

	apiServer.Routes(r)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("starting tangled", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("forced shutdown", "error", err)
		os.Exit(1)
	}

	log.Info("server exited")
}
