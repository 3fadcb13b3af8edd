// Package ingestion turns an uploaded document into embedded chunks in its
// tenant's vector collection, driving the document through
// PENDING -> PROCESSING -> COMPLETED or FAILED.
package ingestion

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/nikhilbhutani/tenantrag/internal/document"
	"github.com/nikhilbhutani/tenantrag/internal/embedding"
	"github.com/nikhilbhutani/tenantrag/internal/errkind"
	"github.com/nikhilbhutani/tenantrag/internal/models"
	"github.com/nikhilbhutani/tenantrag/internal/retry"
	"github.com/nikhilbhutani/tenantrag/internal/storage"
	"github.com/nikhilbhutani/tenantrag/internal/vectorstore"
	"github.com/nikhilbhutani/tenantrag/pkg/chunker"
)

const ReasonNotFound = "document not found"

// Result is the state a document was left in by Ingest.
type Result struct {
	Status models.DocStatus `json:"status"`
	Reason string           `json:"reason,omitempty"`
}

type Pipeline struct {
	docs      document.Store
	files     storage.Storage
	embedder  embedding.Embedder
	vectors   vectorstore.TenantStore
	extractor TextExtractor
	chunkOpts chunker.ChunkOptions
	batchSize int
	retry     retry.Policy
	logger    *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithExtractor replaces the PDF extractor.
func WithExtractor(e TextExtractor) Option {
	return func(p *Pipeline) {
		if e != nil {
			p.extractor = e
		}
	}
}

func WithChunkOptions(opts chunker.ChunkOptions) Option {
	return func(p *Pipeline) { p.chunkOpts = opts }
}

// WithBatchSize sets how many chunks are embedded and upserted together.
func WithBatchSize(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.batchSize = n
		}
	}
}

func WithRetryPolicy(policy retry.Policy) Option {
	return func(p *Pipeline) { p.retry = policy }
}

func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

func NewPipeline(docs document.Store, files storage.Storage, embedder embedding.Embedder, vectors vectorstore.TenantStore, opts ...Option) (*Pipeline, error) {
	switch {
	case docs == nil:
		return nil, ErrStoreRequired
	case files == nil:
		return nil, ErrStorageRequired
	case embedder == nil:
		return nil, ErrEmbedderRequired
	case vectors == nil:
		return nil, ErrVectorStoreRequired
	}

	p := &Pipeline{
		docs:      docs,
		files:     files,
		embedder:  embedder,
		vectors:   vectors,
		extractor: PDFExtractor{},
		chunkOpts: chunker.DefaultOptions(),
		batchSize: embedding.DefaultBatchSize,
		retry:     retry.DefaultPolicy(),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Ingest processes one document. It is safe to call again for the same id:
// a document that is not PENDING is left untouched.
//
// Processing failures are recorded on the document as FAILED and are not
// returned. The error is non-nil only when the document's status could not
// be read or written, which is the one case worth redelivering.
func (p *Pipeline) Ingest(ctx context.Context, documentID int64) (Result, error) {
	log := p.logger.With("document_id", documentID)

	doc, err := p.docs.GetByID(ctx, documentID)
	if errors.Is(err, document.ErrNotFound) {
		log.Warn("document not found, nothing to ingest")
		return Result{Status: models.DocStatusFailed, Reason: ReasonNotFound}, nil
	}
	if err != nil {
		return Result{}, fmt.Errorf("load document: %w", err)
	}
	log = log.With("tenant_id", doc.TenantID)

	switch {
	case doc.Status.Terminal():
		log.Info("document already finished, skipping", "status", doc.Status)
		return Result{Status: doc.Status, Reason: doc.Reason}, nil
	case doc.Status == models.DocStatusProcessing:
		log.Warn("document already processing, skipping stuck or duplicate delivery")
		return Result{Status: doc.Status}, nil
	}

	ok, err := p.setStatus(ctx, doc.ID, models.DocStatusPending, models.DocStatusProcessing, "")
	if err != nil {
		return Result{}, fmt.Errorf("mark processing: %w", err)
	}
	if !ok {
		return p.current(ctx, doc.ID, log)
	}

	log.Info("processing document", "filename", doc.Filename)
	start := time.Now()

	n, err := p.process(ctx, doc)
	if err != nil {
		return p.fail(ctx, doc, err, log)
	}

	// Status writes must land even if the job deadline has passed.
	ok, err = p.setStatus(context.WithoutCancel(ctx), doc.ID, models.DocStatusProcessing, models.DocStatusCompleted, "")
	if err != nil {
		return Result{}, fmt.Errorf("mark completed: %w", err)
	}
	if !ok {
		return p.current(ctx, doc.ID, log)
	}

	log.Info("document processed", "chunks", n, "duration", time.Since(start))
	return Result{Status: models.DocStatusCompleted}, nil
}

// setStatus retries a status write through metadata store outages. A
// redelivered job skips a PROCESSING document, so a terminal write that is
// given up on leaves the document stuck. A write that landed but was reported
// as failed shows up as a lost CAS on the next attempt.
func (p *Pipeline) setStatus(ctx context.Context, id int64, from, to models.DocStatus, reason string) (bool, error) {
	var ok bool
	err := retry.Do(ctx, p.retry, func(ctx context.Context) error {
		var err error
		ok, err = p.docs.CompareAndSetStatus(ctx, id, from, to, reason)
		if err != nil && !errors.Is(err, document.ErrIllegalTransition) {
			return errkind.E(errkind.Transient, "", err)
		}
		return err
	})
	return ok, err
}

// current reports the status another worker left behind after a lost CAS.
func (p *Pipeline) current(ctx context.Context, id int64, log *slog.Logger) (Result, error) {
	doc, err := p.docs.GetByID(context.WithoutCancel(ctx), id)
	if errors.Is(err, document.ErrNotFound) {
		return Result{Status: models.DocStatusFailed, Reason: ReasonNotFound}, nil
	}
	if err != nil {
		return Result{}, fmt.Errorf("reload document: %w", err)
	}
	log.Warn("document status changed concurrently", "status", doc.Status)
	return Result{Status: doc.Status, Reason: doc.Reason}, nil
}

func (p *Pipeline) process(ctx context.Context, doc *models.Document) (int, error) {
	text, err := p.load(ctx, doc)
	if err != nil {
		return 0, err
	}

	total := 0
	batch := make([]Chunk, 0, p.batchSize)
	for c := range ChunkDocument(text, doc.TenantID, doc.Filename, p.chunkOpts) {
		batch = append(batch, c)
		if len(batch) < p.batchSize {
			continue
		}
		if err := p.index(ctx, doc, batch); err != nil {
			return total, err
		}
		total += len(batch)
		batch = batch[:0]
	}
	if len(batch) > 0 {
		if err := p.index(ctx, doc, batch); err != nil {
			return total, err
		}
		total += len(batch)
	}

	if total == 0 {
		return 0, errkind.Contentf("document contains no extractable text")
	}
	return total, nil
}

func (p *Pipeline) load(ctx context.Context, doc *models.Document) (string, error) {
	rc, err := p.files.Open(ctx, doc.FilePath)
	if err != nil {
		return "", errkind.E(errkind.Content, "open source file", err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return "", errkind.E(errkind.Content, "read source file", err)
	}

	text, err := p.extractor.Extract(ctx, bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("extract %s: %w", doc.Filename, err)
	}
	return text, nil
}

// index embeds one batch and upserts it, retrying transient failures.
func (p *Pipeline) index(ctx context.Context, doc *models.Document, batch []Chunk) error {
	texts := make([]string, len(batch))
	for i, c := range batch {
		texts[i] = c.Text
	}

	var vectors [][]float32
	err := retry.Do(ctx, p.retry, func(ctx context.Context) error {
		v, err := p.embedder.Embed(ctx, texts)
		if err != nil {
			return err
		}
		vectors = v
		return nil
	})
	if err != nil {
		return fmt.Errorf("embed chunks: %w", err)
	}
	if len(vectors) != len(batch) {
		return errkind.E(errkind.Transient, "embed chunks",
			fmt.Errorf("got %d vectors for %d chunks", len(vectors), len(batch)))
	}

	records := make([]vectorstore.Record, len(batch))
	for i, c := range batch {
		records[i] = vectorstore.Record{
			ID:     vectorstore.RecordID(doc.ID, c.Metadata.Ordinal),
			Vector: vectors[i],
			Text:   c.Text,
			Metadata: vectorstore.Metadata{
				TenantID:   c.Metadata.TenantID,
				DocumentID: doc.ID,
				Source:     c.Metadata.Source,
				Ordinal:    c.Metadata.Ordinal,
			},
		}
	}

	err = retry.Do(ctx, p.retry, func(ctx context.Context) error {
		return p.vectors.Upsert(ctx, doc.TenantID, records)
	})
	if err != nil {
		return fmt.Errorf("store vectors: %w", err)
	}
	return nil
}

// fail records the failure and removes the uploaded file. Vectors already
// upserted for this document stay in place.
func (p *Pipeline) fail(ctx context.Context, doc *models.Document, cause error, log *slog.Logger) (Result, error) {
	ctx = context.WithoutCancel(ctx)
	reason := failureReason(cause)
	log.Error("document processing failed", "error", cause)

	ok, err := p.setStatus(ctx, doc.ID, models.DocStatusProcessing, models.DocStatusFailed, reason)
	if err != nil {
		return Result{}, fmt.Errorf("mark failed: %w", err)
	}
	if !ok {
		return p.current(ctx, doc.ID, log)
	}

	if err := p.files.Delete(ctx, doc.FilePath); err != nil {
		log.Warn("failed to delete source file", "path", doc.FilePath, "error", err)
	}
	return Result{Status: models.DocStatusFailed, Reason: reason}, nil
}

func failureReason(err error) string {
	switch {
	case errkind.IsContent(err):
		return "unreadable document: " + err.Error()
	case errkind.IsTransient(err):
		return "service unavailable: " + err.Error()
	default:
		return err.Error()
	}
}
