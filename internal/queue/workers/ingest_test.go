package workers

import (
	"context"
	"errors"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikhilbhutani/tenantrag/internal/ingestion"
	"github.com/nikhilbhutani/tenantrag/internal/models"
	"github.com/nikhilbhutani/tenantrag/internal/queue"
)

type fakeIngester struct {
	ids []int64
	res ingestion.Result
	err error
}

func (f *fakeIngester) Ingest(_ context.Context, id int64) (ingestion.Result, error) {
	f.ids = append(f.ids, id)
	return f.res, f.err
}

func TestIngestWorker_FailedDocumentIsNotRetried(t *testing.T) {
	ing := &fakeIngester{res: ingestion.Result{Status: models.DocStatusFailed, Reason: "unreadable document"}}
	task, err := queue.NewIngestTask(42)
	require.NoError(t, err)

	err = NewIngestWorker(ing, nil).ProcessTask(context.Background(), task)
	assert.NoError(t, err)
	assert.Equal(t, []int64{42}, ing.ids)
}

func TestIngestWorker_StoreFailureIsRetried(t *testing.T) {
	ing := &fakeIngester{err: errors.New("mark processing: connection refused")}
	task, err := queue.NewIngestTask(7)
	require.NoError(t, err)

	err = NewIngestWorker(ing, nil).ProcessTask(context.Background(), task)
	require.Error(t, err)
	assert.NotErrorIs(t, err, asynq.SkipRetry)
}

func TestIngestWorker_MalformedPayloadSkipsRetry(t *testing.T) {
	ing := &fakeIngester{}

	for _, payload := range []string{`not json`, `{"document_id":0}`} {
		err := NewIngestWorker(ing, nil).ProcessTask(context.Background(), asynq.NewTask(queue.TypeDocumentIngest, []byte(payload)))
		assert.ErrorIs(t, err, asynq.SkipRetry, payload)
	}
	assert.Empty(t, ing.ids)
}

func TestRegistryRoutesIngestTasks(t *testing.T) {
	ing := &fakeIngester{res: ingestion.Result{Status: models.DocStatusCompleted}}
	registry := queue.NewHandlersRegistry()
	registry.Register(queue.TypeDocumentIngest, asynq.HandlerFunc(NewIngestWorker(ing, nil).ProcessTask))

	task, err := queue.NewIngestTask(9)
	require.NoError(t, err)
	require.NoError(t, registry.Mux().ProcessTask(context.Background(), task))
	assert.Equal(t, []int64{9}, ing.ids)
}
