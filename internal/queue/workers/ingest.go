package workers

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/nikhilbhutani/tenantrag/internal/ingestion"
	"github.com/nikhilbhutani/tenantrag/internal/queue"
)

// Ingester runs the ingestion state machine for one document.
type Ingester interface {
	Ingest(ctx context.Context, documentID int64) (ingestion.Result, error)
}

type IngestWorker struct {
	pipeline Ingester
	logger   *slog.Logger
}

func NewIngestWorker(pipeline Ingester, logger *slog.Logger) *IngestWorker {
	if logger == nil {
		logger = slog.Default()
	}
	return &IngestWorker{pipeline: pipeline, logger: logger}
}

// ProcessTask hands the job back to asynq only when the document's status
// could not be persisted. Processing failures are already recorded on the
// document as FAILED and must not be redelivered.
func (w *IngestWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	payload, err := queue.ParseIngestPayload(t)
	if err != nil {
		w.logger.Error("dropping malformed ingest task", "error", err)
		return err
	}

	taskID, _ := asynq.GetTaskID(ctx)
	log := w.logger.With("document_id", payload.DocumentID, "task_id", taskID)

	res, err := w.pipeline.Ingest(ctx, payload.DocumentID)
	if err != nil {
		log.Error("ingest task failed, will retry", "error", err)
		return err
	}

	log.Info("ingest task finished", "status", res.Status, "reason", res.Reason)
	return nil
}
