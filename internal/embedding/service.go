// Package embedding turns text into vectors through the LLM gateway.
package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nikhilbhutani/tenantrag/internal/errkind"
	"github.com/nikhilbhutani/tenantrag/internal/llm"
)

const DefaultBatchSize = 100

// Embedder maps texts to vectors, one per input, in input order. All
// failures are errkind.Transient.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Cache memoises query vectors. Implementations report a miss with any
// error; the service never fails a call because of the cache.
type Cache interface {
	Get(ctx context.Context, key string, dest any) error
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
}

type Service struct {
	gateway   llm.Gateway
	model     string
	batchSize int
	cache     Cache
	cacheTTL  time.Duration
	logger    *slog.Logger
}

type Option func(*Service)

func WithBatchSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

// WithCache enables the query-vector cache. A zero ttl disables it.
func WithCache(c Cache, ttl time.Duration) Option {
	return func(s *Service) {
		if c != nil && ttl > 0 {
			s.cache = c
			s.cacheTTL = ttl
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

func NewService(gw llm.Gateway, model string, opts ...Option) *Service {
	s := &Service{
		gateway:   gw,
		model:     model,
		batchSize: DefaultBatchSize,
		logger:    slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Service) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	all := make([][]float32, 0, len(texts))
	for i := 0; i < len(texts); i += s.batchSize {
		end := min(i+s.batchSize, len(texts))
		batch := texts[i:end]

		resp, err := s.gateway.Embed(ctx, llm.EmbeddingRequest{
			Model: s.model,
			Input: batch,
		})
		if err != nil {
			if errors.Is(err, errkind.Configuration) {
				return nil, fmt.Errorf("embed batch %d: %w", i/s.batchSize, err)
			}
			return nil, errkind.E(errkind.Transient, fmt.Sprintf("embed batch %d", i/s.batchSize), err)
		}
		if len(resp.Embeddings) != len(batch) {
			return nil, errkind.E(errkind.Transient, fmt.Sprintf("embed batch %d", i/s.batchSize),
				fmt.Errorf("provider returned %d vectors for %d inputs", len(resp.Embeddings), len(batch)))
		}
		for j, v := range resp.Embeddings {
			if len(v) == 0 {
				return nil, errkind.E(errkind.Transient, fmt.Sprintf("embed batch %d", i/s.batchSize),
					fmt.Errorf("empty vector for input %d", i+j))
			}
		}

		all = append(all, resp.Embeddings...)
	}

	return all, nil
}

func (s *Service) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	key := s.cacheKey(text)
	if s.cache != nil {
		var vec []float32
		if err := s.cache.Get(ctx, key, &vec); err == nil && len(vec) > 0 {
			return vec, nil
		}
	}

	embeddings, err := s.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, embeddings[0], s.cacheTTL); err != nil {
			s.logger.Warn("embedding cache write failed", "error", err)
		}
	}
	return embeddings[0], nil
}

func (s *Service) cacheKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return s.model + ":" + hex.EncodeToString(sum[:])
}
