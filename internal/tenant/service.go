package tenant

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Service answers questions about client accounts. Registration lives
// outside this module; the clients table is only read here.
type Service struct {
	db *pgxpool.Pool
}

func NewService(db *pgxpool.Pool) *Service {
	return &Service{db: db}
}

// IsActive reports whether the client owning id exists and is active.
func (s *Service) IsActive(ctx context.Context, id ID) (bool, error) {
	var active bool
	err := s.db.QueryRow(ctx,
		"SELECT is_active FROM clients WHERE client_token = $1", id.UUID(),
	).Scan(&active)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get client: %w", err)
	}
	return active, nil
}
