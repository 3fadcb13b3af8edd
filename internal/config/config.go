package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/nikhilbhutani/tenantrag/internal/errkind"
	"github.com/nikhilbhutani/tenantrag/pkg/chunker"
)

// DefaultPath is used when RAG_CONFIG is unset. A missing file is not an error.
const DefaultPath = "tenantrag.yml"

type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"`
	Redis     RedisConfig     `koanf:"redis"`
	Auth      AuthConfig      `koanf:"auth"`
	LLM       LLMConfig       `koanf:"llm"`
	Embedding EmbeddingConfig `koanf:"embedding"`
	Vector    VectorConfig    `koanf:"vector"`
	Storage   StorageConfig   `koanf:"storage"`
	Ingestion IngestionConfig `koanf:"ingestion"`
	Retry     RetryConfig     `koanf:"retry"`
	Worker    WorkerConfig    `koanf:"worker"`
}

type ServerConfig struct {
	Host           string   `koanf:"host"`
	Port           int      `koanf:"port"`
	CORSOrigins    []string `koanf:"cors_origins"`
	RateLimitRPS   float64  `koanf:"rate_limit_rps"`
	RateLimitBurst int      `koanf:"rate_limit_burst"`
	MaxUploadBytes int64    `koanf:"max_upload_bytes"`
}

type DatabaseConfig struct {
	Driver         string `koanf:"driver"` // "postgres" or "sqlite"
	URL            string `koanf:"url"`
	SQLitePath     string `koanf:"sqlite_path"`
	MaxConns       int    `koanf:"max_conns"`
	MinConns       int    `koanf:"min_conns"`
	MigrationsPath string `koanf:"migrations_path"`
}

type RedisConfig struct {
	Addr     string `koanf:"addr"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
}

type AuthConfig struct {
	JWTSecret string `koanf:"jwt_secret"`
}

type LLMConfig struct {
	OpenAIKey        string        `koanf:"openai_key"`
	OpenAIBaseURL    string        `koanf:"openai_base_url"`
	AnthropicKey     string        `koanf:"anthropic_key"`
	OllamaURL        string        `koanf:"ollama_url"`
	DefaultProvider  string        `koanf:"default_provider"`
	DefaultModel     string        `koanf:"default_model"`
	FallbackProvider string        `koanf:"fallback_provider"`
	GuardrailModel   string        `koanf:"guardrail_model"`
	MaxRetries       int           `koanf:"max_retries"`
	Timeout          time.Duration `koanf:"timeout"`
}

type EmbeddingConfig struct {
	Provider  string        `koanf:"provider"`
	Model     string        `koanf:"model"`
	BatchSize int           `koanf:"batch_size"`
	CacheTTL  time.Duration `koanf:"cache_ttl"` // zero disables the query cache
}

type VectorConfig struct {
	Backend  string        `koanf:"backend"` // "chromem" or "pgvector"
	Path     string        `koanf:"path"`    // chromem persistence dir; empty keeps it in memory
	Compress bool          `koanf:"compress"`
	TopK     int           `koanf:"top_k"`
	Timeout  time.Duration `koanf:"timeout"`
}

type StorageConfig struct {
	Backend     string `koanf:"backend"` // "local" or "supabase"
	LocalDir    string `koanf:"local_dir"`
	SupabaseURL string `koanf:"supabase_url"`
	SupabaseKey string `koanf:"supabase_key"`
	Bucket      string `koanf:"bucket"`
}

type IngestionConfig struct {
	ChunkSize     int    `koanf:"chunk_size"`
	ChunkOverlap  int    `koanf:"chunk_overlap"`
	ChunkStrategy string `koanf:"chunk_strategy"` // recursive, fixed or sentence
}

type RetryConfig struct {
	Attempts  int           `koanf:"attempts"`
	BaseDelay time.Duration `koanf:"base_delay"`
	MaxDelay  time.Duration `koanf:"max_delay"`
}

type WorkerConfig struct {
	Concurrency int `koanf:"concurrency"`
}

func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:           "0.0.0.0",
			Port:           8080,
			CORSOrigins:    []string{"*"},
			RateLimitRPS:   100,
			RateLimitBurst: 200,
			MaxUploadBytes: 32 << 20,
		},
		Database: DatabaseConfig{
			Driver:         "postgres",
			SQLitePath:     "tenantrag.db",
			MaxConns:       20,
			MinConns:       5,
			MigrationsPath: "migrations",
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		LLM: LLMConfig{
			OllamaURL:       "http://localhost:11434",
			DefaultProvider: "openai",
			DefaultModel:    "gpt-4o-mini",
			MaxRetries:      3,
			Timeout:         60 * time.Second,
		},
		Embedding: EmbeddingConfig{
			Provider:  "openai",
			Model:     "text-embedding-3-small",
			BatchSize: 100,
		},
		Vector: VectorConfig{
			Backend: "pgvector",
			TopK:    3,
			Timeout: 30 * time.Second,
		},
		Storage: StorageConfig{
			Backend:  "local",
			LocalDir: "uploads",
			Bucket:   "documents",
		},
		Ingestion: IngestionConfig{
			ChunkSize:     1000,
			ChunkOverlap:  150,
			ChunkStrategy: "recursive",
		},
		Retry: RetryConfig{
			Attempts:  3,
			BaseDelay: 500 * time.Millisecond,
			MaxDelay:  10 * time.Second,
		},
		Worker: WorkerConfig{
			Concurrency: 10,
		},
	}
}

// envKeys maps the environment variables the service has always read onto
// config keys. Anything not listed is ignored.
var envKeys = map[string]string{
	"SERVER_HOST":           "server.host",
	"SERVER_PORT":           "server.port",
	"CORS_ORIGINS":          "server.cors_origins",
	"RATE_LIMIT_RPS":        "server.rate_limit_rps",
	"RATE_LIMIT_BURST":      "server.rate_limit_burst",
	"MAX_UPLOAD_BYTES":      "server.max_upload_bytes",
	"DB_DRIVER":             "database.driver",
	"DATABASE_URL":          "database.url",
	"SQLITE_PATH":           "database.sqlite_path",
	"DB_MAX_CONNS":          "database.max_conns",
	"DB_MIN_CONNS":          "database.min_conns",
	"MIGRATIONS_PATH":       "database.migrations_path",
	"REDIS_ADDR":            "redis.addr",
	"REDIS_PASSWORD":        "redis.password",
	"REDIS_DB":              "redis.db",
	"JWT_SECRET":            "auth.jwt_secret",
	"SUPABASE_JWT_SECRET":   "auth.jwt_secret",
	"OPENAI_API_KEY":        "llm.openai_key",
	"OPENAI_BASE_URL":       "llm.openai_base_url",
	"ANTHROPIC_API_KEY":     "llm.anthropic_key",
	"OLLAMA_URL":            "llm.ollama_url",
	"LLM_DEFAULT_PROVIDER":  "llm.default_provider",
	"LLM_DEFAULT_MODEL":     "llm.default_model",
	"LLM_FALLBACK_PROVIDER": "llm.fallback_provider",
	"LLM_GUARDRAIL_MODEL":   "llm.guardrail_model",
	"LLM_MAX_RETRIES":       "llm.max_retries",
	"LLM_TIMEOUT":           "llm.timeout",
	"EMBEDDING_PROVIDER":    "embedding.provider",
	"EMBEDDING_MODEL":       "embedding.model",
	"EMBEDDING_BATCH_SIZE":  "embedding.batch_size",
	"EMBEDDING_CACHE_TTL":   "embedding.cache_ttl",
	"VECTOR_BACKEND":        "vector.backend",
	"VECTOR_PATH":           "vector.path",
	"VECTOR_TOP_K":          "vector.top_k",
	"VECTOR_TIMEOUT":        "vector.timeout",
	"STORAGE_BACKEND":       "storage.backend",
	"STORAGE_LOCAL_DIR":     "storage.local_dir",
	"SUPABASE_URL":          "storage.supabase_url",
	"SUPABASE_SERVICE_KEY":  "storage.supabase_key",
	"STORAGE_BUCKET":        "storage.bucket",
	"CHUNK_SIZE":            "ingestion.chunk_size",
	"CHUNK_OVERLAP":         "ingestion.chunk_overlap",
	"CHUNK_STRATEGY":        "ingestion.chunk_strategy",
	"RETRY_ATTEMPTS":        "retry.attempts",
	"RETRY_BASE_DELAY":      "retry.base_delay",
	"RETRY_MAX_DELAY":       "retry.max_delay",
	"WORKER_CONCURRENCY":    "worker.concurrency",
}

// Load reads defaults, then the YAML file named by RAG_CONFIG (if present),
// then environment overrides.
func Load() (*Config, error) {
	path := os.Getenv("RAG_CONFIG")
	if path == "" {
		path = DefaultPath
	}
	return LoadFile(path)
}

func LoadFile(path string) (*Config, error) {
	k := koanf.New(".")
	cfg := DefaultConfig()

	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("access config %s: %w", path, err)
	}

	if err := k.Load(env.Provider("", ".", func(s string) string {
		return envKeys[s]
	}), nil); err != nil {
		return nil, fmt.Errorf("load env overrides: %w", err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// Validate reports every missing credential or path at once.
func (c *Config) Validate() error {
	var problems []string

	switch c.Database.Driver {
	case "postgres":
		if c.Database.URL == "" {
			problems = append(problems, "DATABASE_URL")
		}
	case "sqlite":
		if c.Database.SQLitePath == "" {
			problems = append(problems, "SQLITE_PATH")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown database driver %q", c.Database.Driver))
	}

	switch c.Vector.Backend {
	case "pgvector":
		if c.Database.Driver != "postgres" {
			problems = append(problems, "pgvector backend requires the postgres driver")
		}
	case "chromem":
	default:
		problems = append(problems, fmt.Sprintf("unknown vector backend %q", c.Vector.Backend))
	}

	for _, p := range []string{c.LLM.DefaultProvider, c.LLM.FallbackProvider, c.Embedding.Provider} {
		if miss := c.missingProviderKey(p); miss != "" && !contains(problems, miss) {
			problems = append(problems, miss)
		}
	}
	if c.Embedding.Provider == "anthropic" {
		problems = append(problems, "anthropic does not provide embeddings")
	}

	switch c.Storage.Backend {
	case "local":
		if c.Storage.LocalDir == "" {
			problems = append(problems, "STORAGE_LOCAL_DIR")
		}
	case "supabase":
		if c.Storage.SupabaseURL == "" {
			problems = append(problems, "SUPABASE_URL")
		}
		if c.Storage.SupabaseKey == "" {
			problems = append(problems, "SUPABASE_SERVICE_KEY")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown storage backend %q", c.Storage.Backend))
	}

	if c.Retry.Attempts <= 0 {
		problems = append(problems, "retry.attempts must be > 0")
	}
	if c.Ingestion.ChunkOverlap >= c.Ingestion.ChunkSize {
		problems = append(problems, "ingestion.chunk_overlap must be smaller than chunk_size")
	}
	if !chunker.ValidStrategy(c.Ingestion.ChunkStrategy) {
		problems = append(problems, fmt.Sprintf("unknown chunk strategy %q", c.Ingestion.ChunkStrategy))
	}

	if len(problems) > 0 {
		return errkind.E(errkind.Configuration, "validate config",
			fmt.Errorf("missing or invalid settings: %s", strings.Join(problems, ", ")))
	}
	return nil
}

// RequireAuth is checked by the HTTP server only; the CLI and worker do not
// verify tokens.
func (c *Config) RequireAuth() error {
	if c.Auth.JWTSecret == "" {
		return errkind.E(errkind.Configuration, "validate config", fmt.Errorf("missing JWT_SECRET"))
	}
	return nil
}

func (c *Config) missingProviderKey(provider string) string {
	switch provider {
	case "openai":
		if c.LLM.OpenAIKey == "" {
			return "OPENAI_API_KEY"
		}
	case "anthropic":
		if c.LLM.AnthropicKey == "" {
			return "ANTHROPIC_API_KEY"
		}
	}
	return ""
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
