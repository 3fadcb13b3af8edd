package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nikhilbhutani/tenantrag/internal/config"
	"github.com/nikhilbhutani/tenantrag/internal/errkind"
)

type gateway struct {
	providers         map[string]Provider
	defaultProvider   string
	fallbackProvider  string
	embeddingProvider string
	maxRetries        int
	timeout           time.Duration
	backoff           func(attempt int) time.Duration
}

func NewGateway(cfg config.LLMConfig, embedding config.EmbeddingConfig) Gateway {
	providers := make(map[string]Provider)
	if cfg.OpenAIKey != "" {
		providers["openai"] = NewOpenAIProvider(cfg.OpenAIKey, cfg.OpenAIBaseURL)
	}
	if cfg.AnthropicKey != "" {
		providers["anthropic"] = NewAnthropicProvider(cfg.AnthropicKey)
	}
	if cfg.OllamaURL != "" {
		providers["ollama"] = NewOllamaProvider(cfg.OllamaURL)
	}

	g := newGateway(providers, cfg.DefaultProvider, cfg.FallbackProvider, cfg.MaxRetries, cfg.Timeout)
	g.embeddingProvider = embedding.Provider
	return g
}

func newGateway(providers map[string]Provider, primary, fallback string, maxRetries int, timeout time.Duration) *gateway {
	return &gateway{
		providers:        providers,
		defaultProvider:  primary,
		fallbackProvider: fallback,
		maxRetries:       maxRetries,
		timeout:          timeout,
		backoff: func(attempt int) time.Duration {
			return time.Duration(attempt*attempt) * 500 * time.Millisecond
		},
	}
}

func (g *gateway) provider(name string) (Provider, error) {
	p, ok := g.providers[name]
	if !ok {
		return nil, errkind.E(errkind.Configuration, "llm", fmt.Errorf("provider %q not configured", name))
	}
	return p, nil
}

func (g *gateway) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	providerName := req.Provider
	if providerName == "" {
		providerName = g.defaultProvider
	}

	resp, err := g.chatWithRetry(ctx, providerName, req)
	if err != nil && g.fallbackProvider != "" && g.fallbackProvider != providerName && ctx.Err() == nil {
		slog.Warn("primary provider failed, trying fallback",
			"primary", providerName,
			"fallback", g.fallbackProvider,
			"error", err,
		)
		// The model name belongs to the primary provider.
		fallbackReq := req
		fallbackReq.Model = ""
		return g.chatWithRetry(ctx, g.fallbackProvider, fallbackReq)
	}
	return resp, err
}

func (g *gateway) chatWithRetry(ctx context.Context, providerName string, req ChatRequest) (*ChatResponse, error) {
	p, err := g.provider(providerName)
	if err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 0; attempt <= g.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, errkind.E(errkind.Transient, "llm chat", ctx.Err())
			case <-time.After(g.backoff(attempt)):
			}
			slog.Debug("retrying LLM call", "provider", providerName, "attempt", attempt)
		}

		resp, err := g.callChat(ctx, p, req)
		if err == nil {
			slog.Debug("llm chat",
				"provider", resp.Provider,
				"model", resp.Model,
				"input_tokens", resp.InputTokens,
				"output_tokens", resp.OutputTokens,
				"cost_usd", resp.CostUSD,
				"latency_ms", resp.LatencyMs,
			)
			return resp, nil
		}
		lastErr = err
		if errors.Is(err, context.Canceled) {
			break
		}
	}
	return nil, errkind.E(errkind.Transient, "llm chat",
		fmt.Errorf("all retries exhausted for %s: %w", providerName, lastErr))
}

func (g *gateway) callChat(ctx context.Context, p Provider, req ChatRequest) (*ChatResponse, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}
	return p.ChatCompletion(ctx, req)
}

// Embed makes a single attempt; callers own the retry policy for embeddings.
func (g *gateway) Embed(ctx context.Context, req EmbeddingRequest) (*EmbeddingResponse, error) {
	providerName := req.Provider
	if providerName == "" {
		providerName = g.embeddingProvider
	}
	if providerName == "" {
		providerName = g.defaultProvider
	}

	p, err := g.provider(providerName)
	if err != nil {
		return nil, err
	}

	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}
	resp, err := p.GenerateEmbedding(ctx, req)
	if err != nil {
		return nil, errkind.E(errkind.Transient, "llm embed", err)
	}
	return resp, nil
}
