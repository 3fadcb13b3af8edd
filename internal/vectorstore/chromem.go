package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	chromem "github.com/philippgille/chromem-go"

	"github.com/nikhilbhutani/tenantrag/internal/errkind"
	"github.com/nikhilbhutani/tenantrag/internal/tenant"
)

var errNoEmbedder = errors.New("records must carry precomputed vectors")

// ChromemStore keeps one chromem collection per tenant, named by the tenant
// UUID. With a path it persists to disk; without one it is in-memory only.
type ChromemStore struct {
	db *chromem.DB
}

func NewChromemStore(path string, compress bool) (*ChromemStore, error) {
	if path == "" {
		return &ChromemStore{db: chromem.NewDB()}, nil
	}
	db, err := chromem.NewPersistentDB(path, compress)
	if err != nil {
		return nil, errkind.E(errkind.Configuration, "open chromem", err)
	}
	return &ChromemStore{db: db}, nil
}

// noEmbed guards against chromem's default of calling OpenAI for documents
// without a vector.
func noEmbed(context.Context, string) ([]float32, error) {
	return nil, errNoEmbedder
}

func (s *ChromemStore) Upsert(ctx context.Context, tenantID tenant.ID, records []Record) error {
	if err := checkRecords(tenantID, records); err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}

	col, err := s.db.GetOrCreateCollection(tenantID.String(), nil, noEmbed)
	if err != nil {
		return errkind.E(errkind.Transient, "chromem collection", err)
	}

	docs := make([]chromem.Document, len(records))
	for i, r := range records {
		docs[i] = chromem.Document{
			ID:        r.ID,
			Content:   r.Text,
			Embedding: r.Vector,
			Metadata: map[string]string{
				"tenant_id":   r.Metadata.TenantID.String(),
				"document_id": strconv.FormatInt(r.Metadata.DocumentID, 10),
				"source":      r.Metadata.Source,
				"ordinal":     strconv.Itoa(r.Metadata.Ordinal),
			},
		}
	}

	if err := col.AddDocuments(ctx, docs, 1); err != nil {
		return errkind.E(errkind.Transient, "chromem add", err)
	}
	return nil
}

func (s *ChromemStore) Search(ctx context.Context, tenantID tenant.ID, query []float32, k int) ([]SearchResult, error) {
	if k <= 0 || len(query) == 0 {
		return nil, nil
	}

	col := s.db.GetCollection(tenantID.String(), noEmbed)
	if col == nil {
		return nil, nil
	}

	// chromem-go requires nResults <= collection size.
	count := col.Count()
	if count == 0 {
		return nil, nil
	}
	k = min(k, count)

	results, err := col.QueryEmbedding(ctx, query, k, nil, nil)
	if err != nil {
		return nil, errkind.E(errkind.Transient, "chromem query", err)
	}

	out := make([]SearchResult, len(results))
	for i, r := range results {
		out[i] = SearchResult{
			ID:         r.ID,
			Text:       r.Content,
			Similarity: r.Similarity,
			Metadata:   metadataFromMap(r.Metadata),
		}
	}
	return out, nil
}

func (s *ChromemStore) DeleteCollection(_ context.Context, tenantID tenant.ID) error {
	if err := s.db.DeleteCollection(tenantID.String()); err != nil {
		return errkind.E(errkind.Transient, "chromem delete", fmt.Errorf("collection %s: %w", tenantID, err))
	}
	return nil
}

func metadataFromMap(m map[string]string) Metadata {
	docID, _ := strconv.ParseInt(m["document_id"], 10, 64)
	ordinal, _ := strconv.Atoi(m["ordinal"])
	tid, _ := tenant.Parse(m["tenant_id"])
	return Metadata{
		TenantID:   tid,
		DocumentID: docID,
		Source:     m["source"],
		Ordinal:    ordinal,
	}
}
