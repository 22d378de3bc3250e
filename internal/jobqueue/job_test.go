package jobqueue

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/episoded/episoded/internal/models"
)

func TestRecordProgress_ClampsAgainstRegression(t *testing.T) {
	j := newJob("job-1", models.JobTypeProcessEpisode)

	j.recordProgress(0.55, "transcription done")
	assert.InDelta(t, 55.0, j.progress, 1e-9)

	j.recordProgress(0.85, "enrichment done")
	assert.InDelta(t, 85.0, j.progress, 1e-9)

	// A stale update from an earlier stage arrives out of order; it
	// must not regress the reported maximum.
	j.recordProgress(0.55, "stale transcription update")
	assert.InDelta(t, 85.0, j.progress, 1e-9, "progress must not regress below its current maximum")
	assert.Equal(t, "stale transcription update", j.message, "message still updates even when progress is clamped")

	j.recordProgress(1.0, "complete")
	assert.InDelta(t, 100.0, j.progress, 1e-9)
}

func TestRecordProgress_EqualFractionDoesNotRegress(t *testing.T) {
	j := newJob("job-2", models.JobTypeProcessEpisode)

	j.recordProgress(0.5, "halfway")
	j.recordProgress(0.5, "still halfway")
	assert.InDelta(t, 50.0, j.progress, 1e-9)
}
