// Package app builds the service graph shared by the api, worker and ragctl
// binaries from a validated config.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/nikhilbhutani/tenantrag/internal/audit"
	"github.com/nikhilbhutani/tenantrag/internal/cache"
	"github.com/nikhilbhutani/tenantrag/internal/config"
	"github.com/nikhilbhutani/tenantrag/internal/database"
	"github.com/nikhilbhutani/tenantrag/internal/document"
	"github.com/nikhilbhutani/tenantrag/internal/embedding"
	"github.com/nikhilbhutani/tenantrag/internal/guardrails"
	"github.com/nikhilbhutani/tenantrag/internal/ingestion"
	"github.com/nikhilbhutani/tenantrag/internal/llm"
	"github.com/nikhilbhutani/tenantrag/internal/rag"
	"github.com/nikhilbhutani/tenantrag/internal/retry"
	"github.com/nikhilbhutani/tenantrag/internal/storage"
	"github.com/nikhilbhutani/tenantrag/internal/tenant"
	"github.com/nikhilbhutani/tenantrag/internal/vectorstore"
	"github.com/nikhilbhutani/tenantrag/pkg/chunker"
)

const embeddingCachePrefix = "emb:"

type Services struct {
	Config  *config.Config
	Logger  *slog.Logger
	Pool    *pgxpool.Pool // nil with the sqlite driver
	Redis   *redis.Client
	Docs    document.Store
	Files   storage.Storage
	Gateway llm.Gateway
	Embed   *embedding.Service
	Vectors vectorstore.TenantStore
	// Clients and Usage are nil with the sqlite driver, which has neither
	// the clients table nor usage logs.
	Clients *tenant.Service
	Usage   *audit.Service

	closers []func()
}

// Open connects every backend named in cfg. Postgres migrations run before
// anything reads the schema. Redis being down is logged, not fatal: the
// embedding cache degrades to misses and the queue reports its own errors.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Services, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Services{Config: cfg, Logger: logger}

	if err := s.openDatabase(ctx); err != nil {
		s.Close()
		return nil, err
	}

	files, err := openStorage(cfg.Storage)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.Files = files

	s.Redis = redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	s.closers = append(s.closers, func() { s.Redis.Close() })
	if err := s.Redis.Ping(ctx).Err(); err != nil {
		logger.Warn("redis unavailable", "addr", cfg.Redis.Addr, "error", err)
	}

	s.Gateway = llm.NewGateway(cfg.LLM, cfg.Embedding)
	s.Embed = embedding.NewService(s.Gateway, cfg.Embedding.Model,
		embedding.WithBatchSize(cfg.Embedding.BatchSize),
		embedding.WithCache(cache.NewCache(s.Redis, embeddingCachePrefix), cfg.Embedding.CacheTTL),
		embedding.WithLogger(logger),
	)

	switch cfg.Vector.Backend {
	case "pgvector":
		s.Vectors = vectorstore.NewPgVectorStore(s.Pool)
	default:
		vs, err := vectorstore.NewChromemStore(cfg.Vector.Path, cfg.Vector.Compress)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("open vector store: %w", err)
		}
		s.Vectors = vs
	}

	return s, nil
}

func (s *Services) openDatabase(ctx context.Context) error {
	cfg := s.Config.Database
	if cfg.Driver == "sqlite" {
		store, err := document.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return err
		}
		s.Docs = store
		s.closers = append(s.closers, func() { store.Close() })
		return nil
	}

	pool, err := database.NewPool(ctx, cfg)
	if err != nil {
		return err
	}
	s.Pool = pool
	s.closers = append(s.closers, pool.Close)

	if err := database.RunMigrations(ctx, pool, cfg.MigrationsPath); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	s.Docs = document.NewPostgresStore(pool)
	s.Clients = tenant.NewService(pool)
	s.Usage = audit.NewService(pool)
	return nil
}

func openStorage(cfg config.StorageConfig) (storage.Storage, error) {
	if cfg.Backend == "supabase" {
		return storage.NewSupabaseStorage(cfg.SupabaseURL, cfg.SupabaseKey, cfg.Bucket), nil
	}
	local, err := storage.NewLocalStorage(cfg.LocalDir)
	if err != nil {
		return nil, fmt.Errorf("open local storage: %w", err)
	}
	return local, nil
}

// Ping checks the metadata database.
func (s *Services) Ping(ctx context.Context) error {
	if s.Pool != nil {
		return s.Pool.Ping(ctx)
	}
	if p, ok := s.Docs.(interface{ Ping(context.Context) error }); ok {
		return p.Ping(ctx)
	}
	return nil
}

// Close releases connections in reverse order of opening.
func (s *Services) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}

func (s *Services) RetryPolicy() retry.Policy {
	return retry.Policy{
		Attempts:  s.Config.Retry.Attempts,
		BaseDelay: s.Config.Retry.BaseDelay,
		MaxDelay:  s.Config.Retry.MaxDelay,
		Timeout:   s.Config.LLM.Timeout,
	}
}

// ChunkOptions are the configured splitting settings.
func (s *Services) ChunkOptions() chunker.ChunkOptions {
	opts := chunker.DefaultOptions()
	opts.ChunkSize = s.Config.Ingestion.ChunkSize
	opts.ChunkOverlap = s.Config.Ingestion.ChunkOverlap
	if s.Config.Ingestion.ChunkStrategy != "" {
		opts.Strategy = s.Config.Ingestion.ChunkStrategy
	}
	return opts
}

func (s *Services) IngestionPipeline() (*ingestion.Pipeline, error) {
	return ingestion.NewPipeline(s.Docs, s.Files, s.Embed, s.Vectors,
		ingestion.WithChunkOptions(s.ChunkOptions()),
		ingestion.WithBatchSize(s.Config.Embedding.BatchSize),
		ingestion.WithRetryPolicy(s.RetryPolicy()),
		ingestion.WithLogger(s.Logger),
	)
}

func (s *Services) QueryPipeline() (*rag.Pipeline, error) {
	guard := guardrails.NewClassifier(s.Gateway, s.Config.LLM.GuardrailModel, s.Logger)
	opts := []rag.Option{
		rag.WithTopK(s.Config.Vector.TopK),
		rag.WithModel(s.Config.LLM.DefaultModel),
		rag.WithSearchTimeout(s.Config.Vector.Timeout),
		rag.WithLogger(s.Logger),
	}
	if s.Usage != nil {
		opts = append(opts, rag.WithUsageRecorder(s.Usage))
	}
	return rag.NewPipeline(guard, s.Embed, s.Vectors, s.Gateway, opts...)
}
