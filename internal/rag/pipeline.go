// Package rag answers tenant questions from that tenant's documents only.
package rag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nikhilbhutani/tenantrag/internal/audit"
	"github.com/nikhilbhutani/tenantrag/internal/embedding"
	"github.com/nikhilbhutani/tenantrag/internal/guardrails"
	"github.com/nikhilbhutani/tenantrag/internal/llm"
	"github.com/nikhilbhutani/tenantrag/internal/retry"
	"github.com/nikhilbhutani/tenantrag/internal/tenant"
	"github.com/nikhilbhutani/tenantrag/internal/vectorstore"
)

// User-facing replies. Internal detail is logged, never returned.
const (
	RefusalMessage       = "I'm sorry, but this question does not appear to be about the content of your documents and was blocked for security reasons. Please rephrase your question."
	InternalErrorMessage = "Sorry, there was an internal error processing your request. Please try again later."
	EmptyQuestionMessage = "Please ask a question about your documents."
)

var (
	ErrGuardRequired       = errors.New("guardrail classifier required")
	ErrEmbedderRequired    = errors.New("embedder required")
	ErrVectorStoreRequired = errors.New("vector store required")
	ErrGatewayRequired     = errors.New("llm gateway required")
)

type Outcome string

const (
	OutcomeSuccess          Outcome = "success"
	OutcomeSafetyRefusal    Outcome = "safety_refusal"
	OutcomeTransientFailure Outcome = "transient_failure"
	OutcomeContentFailure   Outcome = "content_failure"
)

// Answer always carries user-presentable Text, whatever the Outcome.
type Answer struct {
	Text    string     `json:"answer"`
	Outcome Outcome    `json:"outcome"`
	Sources []Citation `json:"sources,omitempty"`
}

// UsageRecorder stores what each question cost. Recording failures are
// logged and never affect the answer.
type UsageRecorder interface {
	LogLLMUsage(ctx context.Context, rec audit.UsageRecord) error
}

type Pipeline struct {
	guard     guardrails.Checker
	vectors   vectorstore.TenantStore
	retriever *Retriever
	generator *Generator
	usage     UsageRecorder
	logger    *slog.Logger
}

type Option func(*Pipeline)

func WithTopK(k int) Option {
	return func(p *Pipeline) {
		if k > 0 {
			p.retriever.topK = k
		}
	}
}

// WithModel sets the generation model; empty uses the gateway default.
func WithModel(model string) Option {
	return func(p *Pipeline) { p.generator.model = model }
}

// WithSearchTimeout bounds each vector store search.
func WithSearchTimeout(d time.Duration) Option {
	return func(p *Pipeline) { p.retriever.timeout = d }
}

// WithQueryRetry sets the retry policy for embedding the question.
func WithQueryRetry(policy retry.Policy) Option {
	return func(p *Pipeline) {
		if policy.Attempts > 0 {
			p.retriever.retry = policy
		}
	}
}

func WithUsageRecorder(r UsageRecorder) Option {
	return func(p *Pipeline) { p.usage = r }
}

func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

func NewPipeline(guard guardrails.Checker, embedder embedding.Embedder, vectors vectorstore.TenantStore, gw llm.Gateway, opts ...Option) (*Pipeline, error) {
	switch {
	case guard == nil:
		return nil, ErrGuardRequired
	case embedder == nil:
		return nil, ErrEmbedderRequired
	case vectors == nil:
		return nil, ErrVectorStoreRequired
	case gw == nil:
		return nil, ErrGatewayRequired
	}

	p := &Pipeline{
		guard:     guard,
		vectors:   vectors,
		retriever: NewRetriever(vectors, embedder),
		generator: NewGenerator(gw, ""),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Ask screens the question, retrieves the tenant's closest chunks and
// generates an answer grounded in them. It never returns an error: every
// failure becomes a fixed message with a matching Outcome.
func (p *Pipeline) Ask(ctx context.Context, tenantID tenant.ID, question string) Answer {
	question = strings.TrimSpace(question)
	if question == "" {
		return Answer{Text: EmptyQuestionMessage, Outcome: OutcomeContentFailure}
	}
	log := p.logger.With("tenant_id", tenantID)
	if tenantID.IsZero() {
		log.Error("query without tenant")
		return Answer{Text: InternalErrorMessage, Outcome: OutcomeContentFailure}
	}

	start := time.Now()
	if p.guard.Classify(ctx, question) == guardrails.VerdictRisk {
		log.Warn("query refused by guardrail")
		p.record(ctx, tenantID, OutcomeSafetyRefusal, nil, start)
		return Answer{Text: RefusalMessage, Outcome: OutcomeSafetyRefusal}
	}

	results, err := p.retriever.Retrieve(ctx, tenantID, question)
	if err != nil {
		log.Error("retrieval failed", "error", err)
		p.record(ctx, tenantID, OutcomeTransientFailure, nil, start)
		return Answer{Text: InternalErrorMessage, Outcome: OutcomeTransientFailure}
	}

	resp, err := p.generator.Generate(ctx, question, results)
	if err != nil {
		log.Error("generation failed", "error", err, "chunks", len(results))
		p.record(ctx, tenantID, OutcomeTransientFailure, nil, start)
		return Answer{Text: InternalErrorMessage, Outcome: OutcomeTransientFailure}
	}

	log.Info("query answered",
		"chunks", len(results),
		"provider", resp.Provider,
		"model", resp.Model,
		"input_tokens", resp.InputTokens,
		"output_tokens", resp.OutputTokens,
		"cost_usd", resp.CostUSD,
		"duration", time.Since(start),
	)
	p.record(ctx, tenantID, OutcomeSuccess, resp, start)
	return Answer{Text: resp.Content, Outcome: OutcomeSuccess, Sources: citations(results)}
}

func (p *Pipeline) record(ctx context.Context, tenantID tenant.ID, outcome Outcome, resp *llm.ChatResponse, start time.Time) {
	if p.usage == nil {
		return
	}
	rec := audit.UsageRecord{
		TenantID:  tenantID,
		Endpoint:  "ask",
		Outcome:   string(outcome),
		LatencyMs: time.Since(start).Milliseconds(),
	}
	if resp != nil {
		rec.Provider = resp.Provider
		rec.Model = resp.Model
		rec.InputTokens = resp.InputTokens
		rec.OutputTokens = resp.OutputTokens
		rec.CostUSD = resp.CostUSD
	}
	if err := p.usage.LogLLMUsage(context.WithoutCancel(ctx), rec); err != nil {
		p.logger.Warn("record usage failed", "tenant_id", tenantID, "error", err)
	}
}

// Query is Ask reduced to the answer text.
func (p *Pipeline) Query(ctx context.Context, question string, tenantID tenant.ID) string {
	return p.Ask(ctx, tenantID, question).Text
}

// DeleteTenantData removes the tenant's whole collection. Deleting a tenant
// with no data succeeds.
func (p *Pipeline) DeleteTenantData(ctx context.Context, tenantID tenant.ID) error {
	if tenantID.IsZero() {
		return tenant.ErrInvalidID
	}
	if err := p.vectors.DeleteCollection(ctx, tenantID); err != nil {
		return fmt.Errorf("delete tenant data: %w", err)
	}
	p.logger.Info("tenant data deleted", "tenant_id", tenantID)
	return nil
}
