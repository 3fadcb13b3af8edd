package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/hibiken/asynq"

	"github.com/nikhilbhutani/tenantrag/internal/app"
	"github.com/nikhilbhutani/tenantrag/internal/config"
	"github.com/nikhilbhutani/tenantrag/internal/queue"
	"github.com/nikhilbhutani/tenantrag/internal/queue/workers"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	svc, err := app.Open(context.Background(), cfg, logger)
	if err != nil {
		slog.Error("failed to start services", "error", err)
		os.Exit(1)
	}
	defer svc.Close()

	pipeline, err := svc.IngestionPipeline()
	if err != nil {
		slog.Error("failed to build ingestion pipeline", "error", err)
		os.Exit(1)
	}

	srv := queue.NewServer(queue.RedisOpt(cfg.Redis), cfg.Worker.Concurrency)

	registry := queue.NewHandlersRegistry()

	// Register workers
	ingestWorker := workers.NewIngestWorker(pipeline, logger)

	registry.Register(queue.TypeDocumentIngest, asynq.HandlerFunc(ingestWorker.ProcessTask))

	slog.Info("starting worker", "concurrency", cfg.Worker.Concurrency)
	if err := srv.Run(registry.Mux()); err != nil {
		slog.Error("worker error", "error", err)
		os.Exit(1)
	}
}
