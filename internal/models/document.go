package models

import (
	"fmt"
	"time"

	"github.com/nikhilbhutani/tenantrag/internal/tenant"
)

// DocStatus is the processing state of an uploaded document.
type DocStatus string

const (
	DocStatusPending    DocStatus = "PENDING"
	DocStatusProcessing DocStatus = "PROCESSING"
	DocStatusCompleted  DocStatus = "COMPLETED"
	DocStatusFailed     DocStatus = "FAILED"
)

// transitions lists the only legal forward moves. Nothing ever returns to
// PENDING, and terminal states have no outgoing edges.
var transitions = map[DocStatus][]DocStatus{
	DocStatusPending:    {DocStatusProcessing, DocStatusFailed},
	DocStatusProcessing: {DocStatusCompleted, DocStatusFailed},
}

// Valid reports whether s is one of the four known statuses.
func (s DocStatus) Valid() bool {
	switch s {
	case DocStatusPending, DocStatusProcessing, DocStatusCompleted, DocStatusFailed:
		return true
	}
	return false
}

// Terminal reports whether no further mutation is allowed.
func (s DocStatus) Terminal() bool {
	return s == DocStatusCompleted || s == DocStatusFailed
}

// CanTransition reports whether s -> to is a legal move.
func (s DocStatus) CanTransition(to DocStatus) bool {
	for _, next := range transitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// ParseDocStatus validates a persisted status string.
func ParseDocStatus(v string) (DocStatus, error) {
	s := DocStatus(v)
	if !s.Valid() {
		return "", fmt.Errorf("unknown document status %q", v)
	}
	return s, nil
}

type Document struct {
	ID         int64     `json:"id" db:"id"`
	TenantID   tenant.ID `json:"tenant_id" db:"tenant_id"`
	Filename   string    `json:"filename" db:"filename"`
	FilePath   string    `json:"-" db:"file_path"`
	Status     DocStatus `json:"status" db:"status"`
	Reason     string    `json:"reason,omitempty" db:"reason"`
	UploadedAt time.Time `json:"uploaded_at" db:"uploaded_at"`
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`
}
