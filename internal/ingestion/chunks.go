package ingestion

import (
	"iter"

	"github.com/nikhilbhutani/tenantrag/internal/tenant"
	"github.com/nikhilbhutani/tenantrag/pkg/chunker"
)

type ChunkMetadata struct {
	TenantID tenant.ID
	Source   string
	Ordinal  int
}

// Chunk is a span of document text ready to be embedded.
type Chunk struct {
	Text     string
	Metadata ChunkMetadata
}

// ChunkDocument splits text and tags every chunk with the owning tenant and
// the source name. Ordinals start at 0 and follow document order. The same
// input always yields the same sequence, so a consumer that stops early can
// restart from scratch and skip what it already handled.
func ChunkDocument(text string, tenantID tenant.ID, source string, opts chunker.ChunkOptions) iter.Seq[Chunk] {
	return func(yield func(Chunk) bool) {
		for i, c := range chunker.New().Chunk(text, opts) {
			chunk := Chunk{
				Text: c.Content,
				Metadata: ChunkMetadata{
					TenantID: tenantID,
					Source:   source,
					Ordinal:  i,
				},
			}
			if !yield(chunk) {
				return
			}
		}
	}
}
