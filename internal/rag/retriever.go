package rag

import (
	"context"
	"fmt"
	"time"

	"github.com/nikhilbhutani/tenantrag/internal/embedding"
	"github.com/nikhilbhutani/tenantrag/internal/retry"
	"github.com/nikhilbhutani/tenantrag/internal/tenant"
	"github.com/nikhilbhutani/tenantrag/internal/vectorstore"
)

const DefaultTopK = 3

// DefaultQueryRetry is short enough to stay inside an HTTP request.
var DefaultQueryRetry = retry.Policy{
	Attempts:  2,
	BaseDelay: 200 * time.Millisecond,
	MaxDelay:  time.Second,
	Timeout:   10 * time.Second,
}

// Retriever finds the chunks of one tenant's collection closest to a query.
type Retriever struct {
	store    vectorstore.TenantStore
	embedder embedding.Embedder
	topK     int
	timeout  time.Duration
	retry    retry.Policy
}

func NewRetriever(store vectorstore.TenantStore, embedder embedding.Embedder) *Retriever {
	return &Retriever{store: store, embedder: embedder, topK: DefaultTopK, retry: DefaultQueryRetry}
}

// Retrieve returns up to topK results, most similar first. An empty
// collection gives an empty result and no error.
func (r *Retriever) Retrieve(ctx context.Context, tenantID tenant.ID, query string) ([]vectorstore.SearchResult, error) {
	var queryVec []float32
	err := retry.Do(ctx, r.retry, func(ctx context.Context) error {
		var err error
		queryVec, err = r.embedder.EmbedQuery(ctx, query)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	results, err := r.store.Search(ctx, tenantID, queryVec, r.topK)
	if err != nil {
		return nil, fmt.Errorf("search collection: %w", err)
	}
	return results, nil
}
