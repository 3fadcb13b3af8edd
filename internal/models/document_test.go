package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDocStatus_CanTransition(t *testing.T) {
	all := []DocStatus{DocStatusPending, DocStatusProcessing, DocStatusCompleted, DocStatusFailed}
	allowed := map[[2]DocStatus]bool{
		{DocStatusPending, DocStatusProcessing}:    true,
		{DocStatusPending, DocStatusFailed}:        true,
		{DocStatusProcessing, DocStatusCompleted}:  true,
		{DocStatusProcessing, DocStatusFailed}:     true,
	}

	for _, from := range all {
		for _, to := range all {
			assert.Equal(t, allowed[[2]DocStatus{from, to}], from.CanTransition(to), "%s -> %s", from, to)
		}
	}
}

func TestDocStatus_NothingReturnsToPending(t *testing.T) {
	for _, from := range []DocStatus{DocStatusProcessing, DocStatusCompleted, DocStatusFailed} {
		assert.False(t, from.CanTransition(DocStatusPending), from)
	}
}

func TestDocStatus_Terminal(t *testing.T) {
	assert.False(t, DocStatusPending.Terminal())
	assert.False(t, DocStatusProcessing.Terminal())
	assert.True(t, DocStatusCompleted.Terminal())
	assert.True(t, DocStatusFailed.Terminal())
}

func TestParseDocStatus(t *testing.T) {
	s, err := ParseDocStatus("COMPLETED")
	assert.NoError(t, err)
	assert.Equal(t, DocStatusCompleted, s)

	_, err = ParseDocStatus("ready")
	assert.Error(t, err)
}
