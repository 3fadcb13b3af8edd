package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikhilbhutani/tenantrag/internal/errkind"
)

type fakeProvider struct {
	name      string
	failFirst int
	calls     int
	lastReq   ChatRequest
	embedErr  error
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) ChatCompletion(_ context.Context, req ChatRequest) (*ChatResponse, error) {
	f.calls++
	f.lastReq = req
	if f.calls <= f.failFirst {
		return nil, errors.New("503 service unavailable")
	}
	return &ChatResponse{Provider: f.name, Content: "answer from " + f.name}, nil
}

func (f *fakeProvider) GenerateEmbedding(_ context.Context, req EmbeddingRequest) (*EmbeddingResponse, error) {
	if f.embedErr != nil {
		return nil, f.embedErr
	}
	out := make([][]float32, len(req.Input))
	for i := range out {
		out[i] = []float32{float32(i)}
	}
	return &EmbeddingResponse{Provider: f.name, Embeddings: out}, nil
}

func testGateway(providers map[string]Provider, primary, fallback string, retries int) *gateway {
	g := newGateway(providers, primary, fallback, retries, time.Second)
	g.backoff = func(int) time.Duration { return 0 }
	return g
}

func TestGateway_ChatRetriesThenSucceeds(t *testing.T) {
	p := &fakeProvider{name: "openai", failFirst: 2}
	g := testGateway(map[string]Provider{"openai": p}, "openai", "", 3)

	resp, err := g.Chat(context.Background(), ChatRequest{Messages: []Message{UserMessage("hi")}})
	require.NoError(t, err)
	assert.Equal(t, "answer from openai", resp.Content)
	assert.Equal(t, 3, p.calls)
}

func TestGateway_ChatFallsBack(t *testing.T) {
	primary := &fakeProvider{name: "openai", failFirst: 100}
	secondary := &fakeProvider{name: "ollama"}
	g := testGateway(map[string]Provider{"openai": primary, "ollama": secondary}, "openai", "ollama", 1)

	resp, err := g.Chat(context.Background(), ChatRequest{Model: "gpt-4o", Temperature: Temperature(0)})
	require.NoError(t, err)
	assert.Equal(t, "ollama", resp.Provider)
	assert.Equal(t, 2, primary.calls)
	assert.Empty(t, secondary.lastReq.Model, "primary model name is not sent to the fallback")
	require.NotNil(t, secondary.lastReq.Temperature)
	assert.Zero(t, *secondary.lastReq.Temperature)
}

func TestGateway_ChatExhaustedIsTransient(t *testing.T) {
	p := &fakeProvider{name: "openai", failFirst: 100}
	g := testGateway(map[string]Provider{"openai": p}, "openai", "", 2)

	_, err := g.Chat(context.Background(), ChatRequest{})
	assert.True(t, errkind.IsTransient(err))
	assert.Equal(t, 3, p.calls)
}

func TestGateway_UnknownProviderIsConfiguration(t *testing.T) {
	g := testGateway(map[string]Provider{}, "anthropic", "", 0)

	_, err := g.Chat(context.Background(), ChatRequest{})
	assert.ErrorIs(t, err, errkind.Configuration)

	_, err = g.Embed(context.Background(), EmbeddingRequest{Input: []string{"x"}})
	assert.ErrorIs(t, err, errkind.Configuration)
}

func TestGateway_EmbedUsesEmbeddingProvider(t *testing.T) {
	chat := &fakeProvider{name: "anthropic", embedErr: ErrEmbeddingsUnsupported}
	emb := &fakeProvider{name: "ollama"}
	g := testGateway(map[string]Provider{"anthropic": chat, "ollama": emb}, "anthropic", "", 0)
	g.embeddingProvider = "ollama"

	resp, err := g.Embed(context.Background(), EmbeddingRequest{Input: []string{"a", "b"}})
	require.NoError(t, err)
	assert.Equal(t, "ollama", resp.Provider)
	assert.Len(t, resp.Embeddings, 2)
}

func TestGateway_EmbedErrorIsTransient(t *testing.T) {
	p := &fakeProvider{name: "openai", embedErr: errors.New("connection reset")}
	g := testGateway(map[string]Provider{"openai": p}, "openai", "", 0)

	_, err := g.Embed(context.Background(), EmbeddingRequest{Input: []string{"a"}})
	assert.True(t, errkind.IsTransient(err))
}

func TestCalculateCost(t *testing.T) {
	assert.InDelta(t, 0.00015+0.0006, CalculateCost("gpt-4o-mini", 1000, 1000), 1e-12)
	assert.InDelta(t, 0.003, CalculateCost("claude-sonnet-4-20250514", 1000, 0), 1e-12)
	assert.InDelta(t, 0.0006, CalculateCost("gpt-4o-mini-2024-07-18", 0, 1000), 1e-12)
	assert.Zero(t, CalculateCost("llama3", 5000, 5000))
}
