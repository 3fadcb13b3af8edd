// Package vectorstore keeps one isolated collection of embedded chunks per
// tenant. Every operation is addressed by tenant.ID alone; there is no
// shared table or filter predicate to get wrong.
package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"

	"github.com/nikhilbhutani/tenantrag/internal/tenant"
)

var ErrTenantMismatch = errors.New("record belongs to another tenant")

// recordNamespace seeds deterministic record IDs.
var recordNamespace = uuid.MustParse("3b0d6c62-8f0e-4a4e-9a53-6f7d1c0e2b71")

type Metadata struct {
	TenantID   tenant.ID `json:"tenant_id"`
	DocumentID int64     `json:"document_id"`
	Source     string    `json:"source"`
	Ordinal    int       `json:"ordinal"`
}

type Record struct {
	ID       string
	Vector   []float32
	Text     string
	Metadata Metadata
}

type SearchResult struct {
	ID         string   `json:"id"`
	Text       string   `json:"text"`
	Similarity float32  `json:"similarity"`
	Metadata   Metadata `json:"metadata"`
}

type TenantStore interface {
	// Upsert adds records to the tenant's collection, creating it on first
	// use. A record whose ID already exists replaces the stored one.
	Upsert(ctx context.Context, tenantID tenant.ID, records []Record) error
	// Search returns up to k records, most similar first. A tenant with no
	// collection yields an empty result.
	Search(ctx context.Context, tenantID tenant.ID, query []float32, k int) ([]SearchResult, error)
	// DeleteCollection drops everything stored for the tenant. Idempotent.
	DeleteCollection(ctx context.Context, tenantID tenant.ID) error
}

// RecordID derives a stable ID for a chunk, so re-ingesting a document
// overwrites its records instead of duplicating them.
func RecordID(documentID int64, ordinal int) string {
	return uuid.NewSHA1(recordNamespace, []byte("doc:"+strconv.FormatInt(documentID, 10)+":"+strconv.Itoa(ordinal))).String()
}

func checkRecords(tenantID tenant.ID, records []Record) error {
	if tenantID.IsZero() {
		return tenant.ErrInvalidID
	}
	for i, r := range records {
		if r.Metadata.TenantID != tenantID {
			return fmt.Errorf("record %d: %w", i, ErrTenantMismatch)
		}
		if len(r.Vector) == 0 {
			return fmt.Errorf("record %d: empty vector", i)
		}
		if len(r.Vector) != len(records[0].Vector) {
			return fmt.Errorf("record %d: vector has %d dimensions, want %d", i, len(r.Vector), len(records[0].Vector))
		}
	}
	return nil
}
