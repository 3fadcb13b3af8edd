// Package guardrails screens user queries before they reach retrieval.
package guardrails

import (
	"context"
	"log/slog"

	"github.com/nikhilbhutani/tenantrag/internal/llm"
)

type Verdict string

const (
	VerdictOK   Verdict = "OK"
	VerdictRisk Verdict = "RISK"
)

// Checker is what the query pipeline needs from a classifier.
type Checker interface {
	Classify(ctx context.Context, query string) Verdict
}

// Classifier asks an LLM whether a query is a legitimate question about the
// tenant's documents or an attempt to override instructions or probe the
// system.
//
// It fails open: a provider error or a reply that is neither OK nor RISK
// yields VerdictOK, so a classifier outage degrades safety screening rather
// than blocking every query. Only an explicit RISK blocks.
type Classifier struct {
	gateway llm.Gateway
	model   string
	logger  *slog.Logger
}

// NewClassifier uses model for classification; empty means the gateway's
// default model.
func NewClassifier(gw llm.Gateway, model string, logger *slog.Logger) *Classifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Classifier{gateway: gw, model: model, logger: logger}
}

func (c *Classifier) Classify(ctx context.Context, query string) Verdict {
	content, err := injectionPrompt.Render(map[string]string{"query": query})
	if err != nil {
		c.logger.Warn("guardrail prompt failed, allowing query", "error", err)
		return VerdictOK
	}

	resp, err := c.gateway.Chat(ctx, llm.ChatRequest{
		Model:       c.model,
		Messages:    []llm.Message{llm.UserMessage(content)},
		Temperature: llm.Temperature(0),
		MaxTokens:   5,
	})
	if err != nil {
		c.logger.Warn("guardrail unavailable, allowing query", "error", err)
		return VerdictOK
	}

	verdict, ok := ParseVerdict(resp.Content)
	if !ok {
		c.logger.Warn("guardrail reply not understood, allowing query", "reply", resp.Content)
		return VerdictOK
	}
	if verdict == VerdictRisk {
		c.logger.Info("guardrail blocked query", "model", resp.Model)
	}
	return verdict
}
