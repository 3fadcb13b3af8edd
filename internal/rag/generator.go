package rag

import (
	"context"
	"fmt"
	"strings"

	"github.com/nikhilbhutani/tenantrag/internal/llm"
	"github.com/nikhilbhutani/tenantrag/internal/prompt"
	"github.com/nikhilbhutani/tenantrag/internal/vectorstore"
)

var answerPrompt = prompt.MustNew("answer", `You are a chatbot assistant that answers questions based ONLY on the documents provided by your client.
Do not make up answers. If the information is not in the documents, politely say that you cannot help with that.
Keep the answer concise and direct.

Document context:
{{context}}

User question: {{question}}

Answer:`)

const generationTemperature = 0.1

type Generator struct {
	gateway llm.Gateway
	model   string
}

func NewGenerator(gw llm.Gateway, model string) *Generator {
	return &Generator{gateway: gw, model: model}
}

// Generate answers question from the retrieved chunks alone. With no chunks
// the prompt still goes out, and the model is instructed to decline.
func (g *Generator) Generate(ctx context.Context, question string, results []vectorstore.SearchResult) (*llm.ChatResponse, error) {
	content, err := answerPrompt.Render(map[string]string{
		"context":  buildContext(results),
		"question": question,
	})
	if err != nil {
		return nil, err
	}

	resp, err := g.gateway.Chat(ctx, llm.ChatRequest{
		Model:       g.model,
		Messages:    []llm.Message{llm.UserMessage(content)},
		Temperature: llm.Temperature(generationTemperature),
	})
	if err != nil {
		return nil, fmt.Errorf("generate answer: %w", err)
	}
	if strings.TrimSpace(resp.Content) == "" {
		return nil, fmt.Errorf("generate answer: empty completion from %s", resp.Provider)
	}
	return resp, nil
}

// buildContext joins chunk texts in rank order.
func buildContext(results []vectorstore.SearchResult) string {
	texts := make([]string, len(results))
	for i, r := range results {
		texts[i] = r.Text
	}
	return strings.Join(texts, "\n\n")
}

// Citation points back at a chunk used to answer.
type Citation struct {
	DocumentID int64   `json:"document_id"`
	Source     string  `json:"source"`
	Ordinal    int     `json:"ordinal"`
	Excerpt    string  `json:"excerpt"`
	Similarity float32 `json:"similarity"`
}

func citations(results []vectorstore.SearchResult) []Citation {
	if len(results) == 0 {
		return nil
	}
	out := make([]Citation, len(results))
	for i, r := range results {
		out[i] = Citation{
			DocumentID: r.Metadata.DocumentID,
			Source:     r.Metadata.Source,
			Ordinal:    r.Metadata.Ordinal,
			Excerpt:    truncate(r.Text, 200),
			Similarity: r.Similarity,
		}
	}
	return out
}

func truncate(s string, maxRunes int) string {
	r := []rune(s)
	if len(r) <= maxRunes {
		return s
	}
	return string(r[:maxRunes]) + "..."
}
