package embedding

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikhilbhutani/tenantrag/internal/errkind"
	"github.com/nikhilbhutani/tenantrag/internal/llm"
)

type fakeGateway struct {
	calls   [][]string
	err     error
	dropOne bool
}

func (f *fakeGateway) Chat(context.Context, llm.ChatRequest) (*llm.ChatResponse, error) {
	return nil, errors.New("not used")
}

func (f *fakeGateway) Embed(_ context.Context, req llm.EmbeddingRequest) (*llm.EmbeddingResponse, error) {
	f.calls = append(f.calls, req.Input)
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, 0, len(req.Input))
	for _, in := range req.Input {
		out = append(out, []float32{float32(len(in)), 1})
	}
	if f.dropOne {
		out = out[1:]
	}
	return &llm.EmbeddingResponse{Embeddings: out}, nil
}

type mapCache struct {
	data   map[string][]float32
	setErr error
}

func (c *mapCache) Get(_ context.Context, key string, dest any) error {
	v, ok := c.data[key]
	if !ok {
		return errors.New("miss")
	}
	*(dest.(*[]float32)) = v
	return nil
}

func (c *mapCache) Set(_ context.Context, key string, value any, _ time.Duration) error {
	if c.setErr != nil {
		return c.setErr
	}
	c.data[key] = value.([]float32)
	return nil
}

func TestEmbed_BatchesAndPreservesOrder(t *testing.T) {
	gw := &fakeGateway{}
	s := NewService(gw, "test-model", WithBatchSize(2))

	texts := []string{"a", "bb", "ccc", "dddd", "eeeee"}
	vecs, err := s.Embed(context.Background(), texts)
	require.NoError(t, err)

	require.Len(t, vecs, 5)
	for i, v := range vecs {
		assert.Equal(t, float32(len(texts[i])), v[0])
	}
	assert.Len(t, gw.calls, 3)
}

func TestEmbed_Empty(t *testing.T) {
	gw := &fakeGateway{}
	vecs, err := NewService(gw, "m").Embed(context.Background(), nil)
	assert.NoError(t, err)
	assert.Nil(t, vecs)
	assert.Empty(t, gw.calls)
}

func TestEmbed_FailuresAreTransient(t *testing.T) {
	s := NewService(&fakeGateway{err: fmt.Errorf("503")}, "m")
	_, err := s.Embed(context.Background(), []string{"x"})
	assert.True(t, errkind.IsTransient(err))

	s = NewService(&fakeGateway{dropOne: true}, "m")
	_, err = s.Embed(context.Background(), []string{"x", "y"})
	assert.True(t, errkind.IsTransient(err))
	assert.Contains(t, err.Error(), "returned 1 vectors for 2 inputs")
}

func TestEmbed_ConfigurationNotReclassified(t *testing.T) {
	s := NewService(&fakeGateway{err: errkind.E(errkind.Configuration, "llm", errors.New("no provider"))}, "m")
	_, err := s.Embed(context.Background(), []string{"x"})
	assert.ErrorIs(t, err, errkind.Configuration)
	assert.False(t, errkind.IsTransient(err))
}

func TestEmbedQuery_UsesCache(t *testing.T) {
	gw := &fakeGateway{}
	cache := &mapCache{data: map[string][]float32{}}
	s := NewService(gw, "m", WithCache(cache, time.Hour))

	v1, err := s.EmbedQuery(context.Background(), "what is the refund policy?")
	require.NoError(t, err)
	v2, err := s.EmbedQuery(context.Background(), "what is the refund policy?")
	require.NoError(t, err)

	assert.Equal(t, v1, v2)
	assert.Len(t, gw.calls, 1)
}

func TestEmbedQuery_CacheErrorsIgnored(t *testing.T) {
	gw := &fakeGateway{}
	cache := &mapCache{data: map[string][]float32{}, setErr: errors.New("redis down")}
	s := NewService(gw, "m", WithCache(cache, time.Hour))

	_, err := s.EmbedQuery(context.Background(), "q")
	assert.NoError(t, err)
}
