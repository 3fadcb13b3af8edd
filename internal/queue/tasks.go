package queue

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

const TypeDocumentIngest = "document:ingest"

type DocumentIngestPayload struct {
	DocumentID int64 `json:"document_id"`
}

func NewIngestTask(documentID int64) (*asynq.Task, error) {
	data, err := json.Marshal(DocumentIngestPayload{DocumentID: documentID})
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return asynq.NewTask(TypeDocumentIngest, data), nil
}

// ParseIngestPayload decodes a task payload. Malformed payloads can never
// succeed, so the error is marked to skip asynq retries.
func ParseIngestPayload(t *asynq.Task) (DocumentIngestPayload, error) {
	var p DocumentIngestPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return p, fmt.Errorf("unmarshal payload: %v: %w", err, asynq.SkipRetry)
	}
	if p.DocumentID <= 0 {
		return p, fmt.Errorf("invalid document id %d: %w", p.DocumentID, asynq.SkipRetry)
	}
	return p, nil
}
