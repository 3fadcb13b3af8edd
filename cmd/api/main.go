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

	"github.com/nikhilbhutani/tenantrag/internal/api"
	"github.com/nikhilbhutani/tenantrag/internal/api/handlers"
	"github.com/nikhilbhutani/tenantrag/internal/app"
	"github.com/nikhilbhutani/tenantrag/internal/auth"
	"github.com/nikhilbhutani/tenantrag/internal/config"
	"github.com/nikhilbhutani/tenantrag/internal/queue"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := errors.Join(cfg.Validate(), cfg.RequireAuth()); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	svc, err := app.Open(ctx, cfg, logger)
	if err != nil {
		slog.Error("failed to start services", "error", err)
		os.Exit(1)
	}
	defer svc.Close()

	pipeline, err := svc.QueryPipeline()
	if err != nil {
		slog.Error("failed to build query pipeline", "error", err)
		os.Exit(1)
	}

	qc := queue.NewClient(cfg.Redis)
	defer qc.Close()

	var clients auth.ActiveChecker
	if svc.Clients != nil {
		clients = svc.Clients
	}

	router := api.NewRouter(api.Deps{
		Config:   cfg,
		Docs:     svc.Docs,
		Files:    svc.Files,
		Queue:    qc,
		Pipeline: pipeline,
		Clients:  clients,
		Checks: map[string]handlers.Check{
			"database": svc.Ping,
			"redis":    func(ctx context.Context) error { return svc.Redis.Ping(ctx).Err() },
		},
		Logger: logger,
	})

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router.Setup(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.Info("starting API server", "addr", cfg.Addr())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced shutdown", "error", err)
	}
	slog.Info("server stopped")
}
