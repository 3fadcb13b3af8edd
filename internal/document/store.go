// Package document persists document records and their processing status.
package document

import (
	"context"
	"errors"

	"github.com/nikhilbhutani/tenantrag/internal/models"
	"github.com/nikhilbhutani/tenantrag/internal/tenant"
)

var (
	ErrNotFound          = errors.New("document not found")
	ErrIllegalTransition = errors.New("illegal status transition")
)

// Store is the document metadata store. Status only moves through
// CompareAndSetStatus so concurrent deliveries of the same job cannot both
// win a transition.
type Store interface {
	// Create inserts doc as PENDING and fills in ID and timestamps.
	Create(ctx context.Context, doc *models.Document) error
	GetByID(ctx context.Context, id int64) (*models.Document, error)
	ListByTenant(ctx context.Context, tenantID tenant.ID) ([]models.Document, error)
	Delete(ctx context.Context, id int64) error
	// CompareAndSetStatus moves id from -> to and records reason. It reports
	// false when the current status is not from.
	CompareAndSetStatus(ctx context.Context, id int64, from, to models.DocStatus, reason string) (bool, error)
}

func checkTransition(from, to models.DocStatus) error {
	if !from.CanTransition(to) {
		return ErrIllegalTransition
	}
	return nil
}
