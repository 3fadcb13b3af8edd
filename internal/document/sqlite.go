package document

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/nikhilbhutani/tenantrag/internal/models"
	"github.com/nikhilbhutani/tenantrag/internal/tenant"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS documents (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    tenant_id TEXT NOT NULL,
    filename TEXT NOT NULL,
    file_path TEXT NOT NULL,
    status TEXT NOT NULL DEFAULT 'PENDING'
        CHECK(status IN ('PENDING','PROCESSING','COMPLETED','FAILED')),
    reason TEXT NOT NULL DEFAULT '',
    uploaded_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_documents_tenant ON documents(tenant_id, uploaded_at);
`

const sqliteColumns = `id, tenant_id, filename, file_path, status, reason, uploaded_at, updated_at`

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteStore backs single-node deployments where Postgres is not available.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite creates or opens the database at path and applies the schema.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply sqlite schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *SQLiteStore) Create(ctx context.Context, doc *models.Document) error {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO documents (tenant_id, filename, file_path, status, reason, uploaded_at, updated_at)
		 VALUES (?, ?, ?, ?, '', ?, ?)`,
		doc.TenantID.String(), doc.Filename, doc.FilePath, string(models.DocStatusPending),
		formatTime(now), formatTime(now),
	)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}

	doc.ID = id
	doc.Status = models.DocStatusPending
	doc.Reason = ""
	doc.UploadedAt = now
	doc.UpdatedAt = now
	return nil
}

func (s *SQLiteStore) GetByID(ctx context.Context, id int64) (*models.Document, error) {
	doc, err := scanSQLite(s.db.QueryRowContext(ctx,
		`SELECT `+sqliteColumns+` FROM documents WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}
	return doc, nil
}

func (s *SQLiteStore) ListByTenant(ctx context.Context, tenantID tenant.ID) ([]models.Document, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sqliteColumns+` FROM documents WHERE tenant_id = ? ORDER BY uploaded_at DESC, id DESC`,
		tenantID.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var docs []models.Document
	for rows.Next() {
		d, err := scanSQLite(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		docs = append(docs, *d)
	}
	return docs, rows.Err()
}

func (s *SQLiteStore) Delete(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM documents WHERE id = ?", id); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	return nil
}

func (s *SQLiteStore) CompareAndSetStatus(ctx context.Context, id int64, from, to models.DocStatus, reason string) (bool, error) {
	if err := checkTransition(from, to); err != nil {
		return false, err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE documents SET status = ?, reason = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		string(to), reason, formatTime(time.Now().UTC()), id, string(from),
	)
	if err != nil {
		return false, fmt.Errorf("update document status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update document status: %w", err)
	}
	return n == 1, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLite(row rowScanner) (*models.Document, error) {
	var (
		d                 models.Document
		tenantID, status  string
		uploaded, updated string
	)
	if err := row.Scan(&d.ID, &tenantID, &d.Filename, &d.FilePath, &status, &d.Reason, &uploaded, &updated); err != nil {
		return nil, err
	}
	var err error
	if d.UploadedAt, err = time.Parse(timeLayout, uploaded); err != nil {
		return nil, fmt.Errorf("parse uploaded_at: %w", err)
	}
	if d.UpdatedAt, err = time.Parse(timeLayout, updated); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	return finishScan(&d, tenantID, status)
}

func formatTime(t time.Time) string {
	return t.Format(timeLayout)
}
