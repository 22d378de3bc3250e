package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestJobHistory_TableName(t *testing.T) {
	history := JobHistory{}
	assert.Equal(t, "job_history", history.TableName())
}

func TestJobStatus_IsTerminal(t *testing.T) {
	tests := []struct {
		status JobStatus
		want   bool
	}{
		{JobStatusQueued, false},
		{JobStatusRunning, false},
		{JobStatusCompleted, true},
		{JobStatusFailed, true},
		{JobStatusCancelled, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.status.IsTerminal())
		})
	}
}

func TestJobHistory_Duration(t *testing.T) {
	h := JobHistory{DurationMs: 1500}
	assert.Equal(t, 1500*time.Millisecond, h.Duration())
}

func TestJobHistory_StagesCompletedRoundTrip(t *testing.T) {
	h := JobHistory{}

	err := h.SetStagesCompleted([]string{"discovery", "prep", "transcription"})
	assert.NoError(t, err)

	got, err := h.GetStagesCompleted()
	assert.NoError(t, err)
	assert.Equal(t, []string{"discovery", "prep", "transcription"}, got)
}

func TestJobHistory_StagesCompletedEmpty(t *testing.T) {
	h := JobHistory{}
	got, err := h.GetStagesCompleted()
	assert.NoError(t, err)
	assert.Nil(t, got)
}
