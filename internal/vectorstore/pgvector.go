package vectorstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/nikhilbhutani/tenantrag/internal/errkind"
	"github.com/nikhilbhutani/tenantrag/internal/tenant"
)

const pgUndefinedTable = "42P01"

// PgVectorStore gives each tenant its own table (named by
// tenant.ID.CollectionKey) with an HNSW cosine index. Tables are created on
// first upsert and dropped whole on delete.
type PgVectorStore struct {
	db *pgxpool.Pool
}

func NewPgVectorStore(db *pgxpool.Pool) *PgVectorStore {
	return &PgVectorStore{db: db}
}

func tableName(tenantID tenant.ID) string {
	return pgx.Identifier{tenantID.CollectionKey()}.Sanitize()
}

func (s *PgVectorStore) Upsert(ctx context.Context, tenantID tenant.ID, records []Record) error {
	if err := checkRecords(tenantID, records); err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}

	table := tableName(tenantID)
	err := pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		if err := ensureTable(ctx, tx, tenantID, len(records[0].Vector)); err != nil {
			return err
		}

		batch := &pgx.Batch{}
		for _, r := range records {
			batch.Queue(
				`INSERT INTO `+table+` (id, document_id, source, ordinal, content, embedding)
				 VALUES ($1, $2, $3, $4, $5, $6)
				 ON CONFLICT (id) DO UPDATE SET content = EXCLUDED.content, embedding = EXCLUDED.embedding`,
				r.ID, r.Metadata.DocumentID, r.Metadata.Source, r.Metadata.Ordinal, r.Text, pgvector.NewVector(r.Vector),
			)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("upsert records: %w", err)
		}
		return nil
	})
	if err != nil {
		return errkind.E(errkind.Transient, "pgvector upsert", err)
	}
	return nil
}

// ensureTable serialises creation per tenant; concurrent CREATE TABLE IF NOT
// EXISTS on the same name can otherwise fail on the type catalog.
func ensureTable(ctx context.Context, tx pgx.Tx, tenantID tenant.ID, dims int) error {
	key := tenantID.CollectionKey()
	table := tableName(tenantID)

	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock(hashtext($1))", key); err != nil {
		return fmt.Errorf("lock collection: %w", err)
	}
	if _, err := tx.Exec(ctx, fmt.Sprintf(
		`CREATE TABLE IF NOT EXISTS %s (
			id UUID PRIMARY KEY,
			document_id BIGINT NOT NULL,
			source TEXT NOT NULL,
			ordinal INT NOT NULL,
			content TEXT NOT NULL,
			embedding vector(%d) NOT NULL
		)`, table, dims)); err != nil {
		return fmt.Errorf("create collection table: %w", err)
	}
	if _, err := tx.Exec(ctx, fmt.Sprintf(
		`CREATE INDEX IF NOT EXISTS %s ON %s USING hnsw (embedding vector_cosine_ops)`,
		pgx.Identifier{key + "_embedding_idx"}.Sanitize(), table)); err != nil {
		return fmt.Errorf("create collection index: %w", err)
	}
	return nil
}

func (s *PgVectorStore) Search(ctx context.Context, tenantID tenant.ID, query []float32, k int) ([]SearchResult, error) {
	if k <= 0 || len(query) == 0 {
		return nil, nil
	}

	rows, err := s.db.Query(ctx,
		`SELECT id::text, document_id, source, ordinal, content,
		        1 - (embedding <=> $1) AS similarity
		 FROM `+tableName(tenantID)+`
		 ORDER BY embedding <=> $1
		 LIMIT $2`,
		pgvector.NewVector(query), k,
	)
	if isUndefinedTable(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errkind.E(errkind.Transient, "pgvector search", err)
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		var (
			r   SearchResult
			sim float64
		)
		if err := rows.Scan(&r.ID, &r.Metadata.DocumentID, &r.Metadata.Source, &r.Metadata.Ordinal, &r.Text, &sim); err != nil {
			return nil, errkind.E(errkind.Transient, "pgvector scan", err)
		}
		r.Similarity = float32(sim)
		r.Metadata.TenantID = tenantID
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		if isUndefinedTable(err) {
			return nil, nil
		}
		return nil, errkind.E(errkind.Transient, "pgvector search", err)
	}
	return results, nil
}

func (s *PgVectorStore) DeleteCollection(ctx context.Context, tenantID tenant.ID) error {
	if _, err := s.db.Exec(ctx, "DROP TABLE IF EXISTS "+tableName(tenantID)); err != nil {
		return errkind.E(errkind.Transient, "pgvector delete", err)
	}
	return nil
}

func isUndefinedTable(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUndefinedTable
}
