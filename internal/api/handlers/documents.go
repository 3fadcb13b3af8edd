package handlers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/nikhilbhutani/tenantrag/internal/document"
	"github.com/nikhilbhutani/tenantrag/internal/models"
	"github.com/nikhilbhutani/tenantrag/internal/storage"
	"github.com/nikhilbhutani/tenantrag/internal/tenant"
	"github.com/nikhilbhutani/tenantrag/pkg/textextract"
)

const (
	queueUnavailableMessage = "The processing queue is unavailable. Please try again later."
	multipartOverhead       = 1 << 20
)

// Enqueuer schedules ingestion jobs.
type Enqueuer interface {
	EnqueueIngest(ctx context.Context, documentID int64) (string, error)
}

type DocumentHandler struct {
	docs      document.Store
	files     storage.Storage
	queue     Enqueuer
	maxUpload int64
	logger    *slog.Logger
}

func NewDocumentHandler(docs document.Store, files storage.Storage, queue Enqueuer, maxUpload int64, logger *slog.Logger) *DocumentHandler {
	if maxUpload <= 0 {
		maxUpload = 32 << 20
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &DocumentHandler{docs: docs, files: files, queue: queue, maxUpload: maxUpload, logger: logger}
}

type UploadResponse struct {
	DocumentID int64            `json:"document_id"`
	JobID      string           `json:"job_id"`
	Filename   string           `json:"filename"`
	TenantID   tenant.ID        `json:"tenant_id"`
	Status     models.DocStatus `json:"status"`
	Message    string           `json:"message"`
}

// Upload stores a PDF, records it as PENDING and queues ingestion. If the
// job cannot be queued the record and file are removed again.
func (h *DocumentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	tid, ok := tenant.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthenticated")
		return
	}

	// Leave room for multipart framing; the file itself is checked below.
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload+multipartOverhead)
	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeError(w, http.StatusRequestEntityTooLarge, "file too large")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file required")
		return
	}
	defer file.Close()

	if header.Size > h.maxUpload {
		writeError(w, http.StatusRequestEntityTooLarge, "file too large")
		return
	}
	filename := filepath.Base(header.Filename)
	if !strings.EqualFold(filepath.Ext(filename), ".pdf") {
		writeError(w, http.StatusBadRequest, "unsupported file format, only PDF is allowed")
		return
	}
	head := make([]byte, 5)
	if n, _ := file.ReadAt(head, 0); !textextract.IsPDF(head[:n]) {
		writeError(w, http.StatusBadRequest, "file is not a valid PDF")
		return
	}

	ctx := r.Context()
	log := h.logger.With("tenant_id", tid, "filename", filename)

	key := tid.String() + "/" + uuid.NewString() + ".pdf"
	if err := h.files.Save(ctx, key, file); err != nil {
		log.Error("save upload failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to store the file")
		return
	}

	doc := &models.Document{TenantID: tid, Filename: filename, FilePath: key}
	if err := h.docs.Create(ctx, doc); err != nil {
		log.Error("create document failed", "error", err)
		h.removeFile(ctx, key, log)
		writeError(w, http.StatusInternalServerError, "failed to record the document")
		return
	}

	jobID, err := h.queue.EnqueueIngest(ctx, doc.ID)
	if err != nil {
		log.Error("enqueue ingest failed, rolling back upload", "document_id", doc.ID, "error", err)
		if err := h.docs.Delete(context.WithoutCancel(ctx), doc.ID); err != nil {
			log.Error("rollback document failed", "document_id", doc.ID, "error", err)
		}
		h.removeFile(ctx, key, log)
		writeError(w, http.StatusServiceUnavailable, queueUnavailableMessage)
		return
	}

	log.Info("document queued", "document_id", doc.ID, "job_id", jobID)
	writeJSON(w, http.StatusAccepted, UploadResponse{
		DocumentID: doc.ID,
		JobID:      jobID,
		Filename:   filename,
		TenantID:   tid,
		Status:     doc.Status,
		Message:    "Processing started in the background.",
	})
}

func (h *DocumentHandler) removeFile(ctx context.Context, key string, log *slog.Logger) {
	if err := h.files.Delete(context.WithoutCancel(ctx), key); err != nil {
		log.Error("remove upload failed", "path", key, "error", err)
	}
}

func (h *DocumentHandler) List(w http.ResponseWriter, r *http.Request) {
	tid, ok := tenant.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthenticated")
		return
	}

	docs, err := h.docs.ListByTenant(r.Context(), tid)
	if err != nil {
		h.logger.Error("list documents failed", "tenant_id", tid, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list documents")
		return
	}
	if docs == nil {
		docs = []models.Document{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"documents": docs, "count": len(docs)})
}

func (h *DocumentHandler) Get(w http.ResponseWriter, r *http.Request) {
	doc, ok := h.owned(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// Download streams the original upload back to its owner.
func (h *DocumentHandler) Download(w http.ResponseWriter, r *http.Request) {
	doc, ok := h.owned(w, r)
	if !ok {
		return
	}

	rc, err := h.files.Open(r.Context(), doc.FilePath)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "file not found")
		return
	}
	if err != nil {
		h.logger.Error("open upload failed", "document_id", doc.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to read the file")
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": doc.Filename}))
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		h.logger.Warn("download interrupted", "document_id", doc.ID, "error", err)
	}
}

// owned loads the document named in the URL if it belongs to the caller.
// Documents of other tenants are reported as not found.
func (h *DocumentHandler) owned(w http.ResponseWriter, r *http.Request) (*models.Document, bool) {
	tid, ok := tenant.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthenticated")
		return nil, false
	}

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid document ID")
		return nil, false
	}

	doc, err := h.docs.GetByID(r.Context(), id)
	if errors.Is(err, document.ErrNotFound) || (err == nil && doc.TenantID != tid) {
		writeError(w, http.StatusNotFound, "document not found")
		return nil, false
	}
	if err != nil {
		h.logger.Error("get document failed", "document_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load the document")
		return nil, false
	}
	return doc, true
}
