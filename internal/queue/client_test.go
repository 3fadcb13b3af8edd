package queue

import (
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
)

func TestIngestOptions_UsePolledQueue(t *testing.T) {
	got := map[asynq.OptionType]any{}
	for _, opt := range ingestOptions() {
		got[opt.Type()] = opt.Value()
	}

	assert.Equal(t, QueueDefault, got[asynq.QueueOpt])
	assert.Equal(t, 3, got[asynq.MaxRetryOpt])
	assert.Equal(t, 10*time.Minute, got[asynq.TimeoutOpt])
}
