package document

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nikhilbhutani/tenantrag/internal/models"
	"github.com/nikhilbhutani/tenantrag/internal/tenant"
)

const pgColumns = `id, tenant_id::text, filename, file_path, status, reason, uploaded_at, updated_at`

type PostgresStore struct {
	db *pgxpool.Pool
}

func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, doc *models.Document) error {
	err := s.db.QueryRow(ctx,
		`INSERT INTO documents (tenant_id, filename, file_path, status)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, uploaded_at, updated_at`,
		doc.TenantID.UUID(), doc.Filename, doc.FilePath, models.DocStatusPending,
	).Scan(&doc.ID, &doc.UploadedAt, &doc.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	doc.Status = models.DocStatusPending
	doc.Reason = ""
	return nil
}

func (s *PostgresStore) GetByID(ctx context.Context, id int64) (*models.Document, error) {
	doc, err := scanDocument(s.db.QueryRow(ctx,
		`SELECT `+pgColumns+` FROM documents WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}
	return doc, nil
}

func (s *PostgresStore) ListByTenant(ctx context.Context, tenantID tenant.ID) ([]models.Document, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+pgColumns+` FROM documents WHERE tenant_id = $1 ORDER BY uploaded_at DESC, id DESC`,
		tenantID.UUID(),
	)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var docs []models.Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		docs = append(docs, *d)
	}
	return docs, rows.Err()
}

func (s *PostgresStore) Delete(ctx context.Context, id int64) error {
	if _, err := s.db.Exec(ctx, "DELETE FROM documents WHERE id = $1", id); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	return nil
}

func (s *PostgresStore) CompareAndSetStatus(ctx context.Context, id int64, from, to models.DocStatus, reason string) (bool, error) {
	if err := checkTransition(from, to); err != nil {
		return false, err
	}
	tag, err := s.db.Exec(ctx,
		`UPDATE documents SET status = $1, reason = $2, updated_at = now()
		 WHERE id = $3 AND status = $4`,
		to, reason, id, from,
	)
	if err != nil {
		return false, fmt.Errorf("update document status: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func scanDocument(row pgx.Row) (*models.Document, error) {
	var (
		d        models.Document
		tenantID string
		status   string
	)
	if err := row.Scan(&d.ID, &tenantID, &d.Filename, &d.FilePath, &status, &d.Reason, &d.UploadedAt, &d.UpdatedAt); err != nil {
		return nil, err
	}
	return finishScan(&d, tenantID, status)
}

func finishScan(d *models.Document, tenantID, status string) (*models.Document, error) {
	var err error
	if d.TenantID, err = tenant.Parse(tenantID); err != nil {
		return nil, err
	}
	if d.Status, err = models.ParseDocStatus(status); err != nil {
		return nil, err
	}
	return d, nil
}
