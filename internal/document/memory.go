package document

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/nikhilbhutani/tenantrag/internal/models"
	"github.com/nikhilbhutani/tenantrag/internal/tenant"
)

// MemoryStore keeps records in process memory. Used by tests and by ragctl
// dry runs.
type MemoryStore struct {
	mu     sync.Mutex
	nextID int64
	docs   map[int64]models.Document
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[int64]models.Document)}
}

func (s *MemoryStore) Create(_ context.Context, doc *models.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	now := time.Now().UTC()
	doc.ID = s.nextID
	doc.Status = models.DocStatusPending
	doc.Reason = ""
	doc.UploadedAt = now
	doc.UpdatedAt = now
	s.docs[doc.ID] = *doc
	return nil
}

func (s *MemoryStore) GetByID(_ context.Context, id int64) (*models.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.docs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &d, nil
}

func (s *MemoryStore) ListByTenant(_ context.Context, tenantID tenant.ID) ([]models.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var docs []models.Document
	for _, d := range s.docs {
		if d.TenantID == tenantID {
			docs = append(docs, d)
		}
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID > docs[j].ID })
	return docs, nil
}

func (s *MemoryStore) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.docs, id)
	return nil
}

func (s *MemoryStore) CompareAndSetStatus(_ context.Context, id int64, from, to models.DocStatus, reason string) (bool, error) {
	if err := checkTransition(from, to); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.docs[id]
	if !ok || d.Status != from {
		return false, nil
	}
	d.Status = to
	d.Reason = reason
	d.UpdatedAt = time.Now().UTC()
	s.docs[id] = d
	return true, nil
}
