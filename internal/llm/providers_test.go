package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAIProvider_ChatAndEmbed(t *testing.T) {
	var chatBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/v1/chat/completions":
			require.NoError(t, json.NewDecoder(r.Body).Decode(&chatBody))
			w.Write([]byte(`{"id":"c1","model":"gpt-4o-mini","choices":[{"index":0,"message":{"role":"assistant","content":"OK"}}],"usage":{"prompt_tokens":10,"completion_tokens":1,"total_tokens":11}}`))
		case "/v1/embeddings":
			w.Write([]byte(`{"data":[{"index":1,"embedding":[0,1]},{"index":0,"embedding":[1,0]}],"usage":{"prompt_tokens":4,"total_tokens":4}}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	p := NewOpenAIProvider("sk-test", srv.URL+"/v1")

	resp, err := p.ChatCompletion(context.Background(), ChatRequest{
		Messages:    []Message{UserMessage("is this safe?")},
		Temperature: Temperature(0),
	})
	require.NoError(t, err)
	assert.Equal(t, "OK", resp.Content)
	assert.Equal(t, 10, resp.InputTokens)
	assert.Equal(t, "gpt-4o-mini", chatBody["model"])
	assert.Contains(t, chatBody, "temperature", "temperature 0 is sent explicitly")

	emb, err := p.GenerateEmbedding(context.Background(), EmbeddingRequest{Input: []string{"a", "b"}})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1, 0}, {0, 1}}, emb.Embeddings)
}

func TestOllamaProvider(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/chat":
			var req ollamaChatReq
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.False(t, req.Stream)
			require.NotNil(t, req.Options)
			require.NotNil(t, req.Options.Temperature)
			json.NewEncoder(w).Encode(ollamaChatResp{Message: ollamaMessage{Role: "assistant", Content: "RISK"}, Done: true})
		case "/api/embed":
			json.NewEncoder(w).Encode(ollamaEmbedResp{Embeddings: [][]float32{{0.5}}})
		default:
			http.Error(w, "model not found", http.StatusNotFound)
		}
	}))
	defer srv.Close()

	p := NewOllamaProvider(srv.URL + "/")

	resp, err := p.ChatCompletion(context.Background(), ChatRequest{Temperature: Temperature(0)})
	require.NoError(t, err)
	assert.Equal(t, "RISK", resp.Content)
	assert.Equal(t, "llama3", resp.Model)

	emb, err := p.GenerateEmbedding(context.Background(), EmbeddingRequest{Input: []string{"q"}})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{0.5}}, emb.Embeddings)
}

func TestOllamaProvider_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewOllamaProvider(srv.URL).ChatCompletion(context.Background(), ChatRequest{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")
}
