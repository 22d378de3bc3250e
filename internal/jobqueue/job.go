// Package jobqueue is the in-memory bounded worker pool that executes
// asynchronous work submitted through the HTTP surface: processing an
// episode through the pipeline, discovering episodes on disk, or
// rendering selected clips. Live Job state lives only in memory for
// the life of the process; a terminal snapshot is written through to
// models.JobHistory via repository.JobHistoryRepository so an operator
// can query history across a restart even though in-flight jobs do not
// survive one.
package jobqueue

import (
	"sync"
	"time"

	"github.com/episoded/episoded/internal/models"
)

// progressSample is one point on a Job's progress-over-time curve,
// retained for 30 seconds to compute ETA.
type progressSample struct {
	at       time.Time
	progress float64
}

// Job is the live, in-memory representation of one unit of queued or
// running work.
type Job struct {
	ID          string
	Type        models.JobType
	EpisodeID   *models.ULID
	TargetStage models.EpisodeStage
	Force       bool
	ClipIDs     []models.ULID
	WebhookURL  string

	mu              sync.Mutex
	status          models.JobStatus
	progress        float64
	message         string
	stagesCompleted []string
	errMessage      string
	result          map[string]any
	queuedAt        time.Time
	startedAt       *time.Time
	completedAt     *time.Time
	lastProgressAt  time.Time
	samples         []progressSample
	cancel          func()
}

// Snapshot is an immutable copy of a Job's state, safe to hand to
// callers outside the queue's lock.
type Snapshot struct {
	ID              string
	Type            models.JobType
	EpisodeID       *models.ULID
	Status          models.JobStatus
	Progress        float64
	Message         string
	StagesCompleted []string
	Error           string
	Result          map[string]any
	QueuedAt        time.Time
	StartedAt       *time.Time
	CompletedAt     *time.Time
	LastProgressAt  time.Time
	ETASeconds      *float64
}

func newJob(id string, jobType models.JobType) *Job {
	now := time.Now()
	return &Job{
		ID:             id,
		Type:           jobType,
		status:         models.JobStatusQueued,
		queuedAt:       now,
		lastProgressAt: now,
	}
}

// snapshot returns a point-in-time copy of the job's state, including
// a computed ETA, under the job's own lock.
func (j *Job) snapshot() Snapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	return Snapshot{
		ID:              j.ID,
		Type:            j.Type,
		EpisodeID:       j.EpisodeID,
		Status:          j.status,
		Progress:        j.progress,
		Message:         j.message,
		StagesCompleted: append([]string(nil), j.stagesCompleted...),
		Error:           j.errMessage,
		Result:          j.result,
		QueuedAt:        j.queuedAt,
		StartedAt:       j.startedAt,
		CompletedAt:     j.completedAt,
		LastProgressAt:  j.lastProgressAt,
		ETASeconds:      eta(j.samples, j.progress),
	}
}

// recordProgress appends a sample and prunes anything older than 30s,
// per the ETA contract: "over the last 30s of progress updates". A
// regressing update (an earlier stage's progress arriving after a
// later one's, e.g. reordered on the queue) is clamped to the current
// maximum rather than applied, so progress is monotonic for callers
// polling GetJob.
func (j *Job) recordProgress(fraction float64, message string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	now := time.Now()
	if reported := fraction * 100; reported > j.progress {
		j.progress = reported
	}
	j.message = message
	j.lastProgressAt = now
	j.samples = append(j.samples, progressSample{at: now, progress: j.progress})
	cutoff := now.Add(-30 * time.Second)
	pruned := j.samples[:0]
	for _, s := range j.samples {
		if s.at.After(cutoff) {
			pruned = append(pruned, s)
		}
	}
	j.samples = pruned
}

// eta implements the ETA formula: (100-progress)/avg_progress_per_sec
// over the retained window, clamped to >=0, or nil until at least two
// samples have been observed.
func eta(samples []progressSample, currentProgress float64) *float64 {
	if len(samples) < 2 {
		return nil
	}
	first, last := samples[0], samples[len(samples)-1]
	elapsed := last.at.Sub(first.at).Seconds()
	if elapsed <= 0 {
		return nil
	}
	rate := (last.progress - first.progress) / elapsed
	if rate <= 0 {
		return nil
	}
	remaining := (100 - currentProgress) / rate
	if remaining < 0 {
		remaining = 0
	}
	return &remaining
}

func (j *Job) markRunning() {
	j.mu.Lock()
	defer j.mu.Unlock()
	now := time.Now()
	j.status = models.JobStatusRunning
	j.startedAt = &now
}

func (j *Job) markStageCompleted(stageID string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.stagesCompleted = append(j.stagesCompleted, stageID)
}

func (j *Job) markTerminal(status models.JobStatus, errMessage string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	now := time.Now()
	j.status = status
	j.errMessage = errMessage
	j.completedAt = &now
	j.lastProgressAt = now
	if status == models.JobStatusCompleted {
		j.progress = 100
	}
}

// setResult records the executor's result payload, merged into the
// terminal webhook delivery and job history. Safe to call multiple
// times; the last call before the job reaches a terminal state wins.
func (j *Job) setResult(result map[string]any) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.result = result
}

func (j *Job) currentStatus() models.JobStatus {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.status
}
