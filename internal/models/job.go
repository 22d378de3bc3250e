package models

import "time"

// JobType identifies what kind of work a job performs.
type JobType string

const (
	// JobTypeDiscoverEpisodes scans mounted sources for new or changed episode files.
	JobTypeDiscoverEpisodes JobType = "discover_episodes"
	// JobTypeProcessEpisode runs an episode through the full processing pipeline.
	JobTypeProcessEpisode JobType = "process_episode"
	// JobTypeDiscoverClips runs clip-candidate discovery over a processed episode.
	JobTypeDiscoverClips JobType = "discover_clips"
	// JobTypeRenderClips renders selected clip candidates to output assets.
	JobTypeRenderClips JobType = "render_clips"
)

// JobStatus represents the terminal or in-flight status of a job.
type JobStatus string

const (
	// JobStatusQueued indicates the job is waiting in the queue.
	JobStatusQueued JobStatus = "queued"
	// JobStatusRunning indicates the job is currently executing.
	JobStatusRunning JobStatus = "running"
	// JobStatusCompleted indicates the job finished successfully.
	JobStatusCompleted JobStatus = "completed"
	// JobStatusFailed indicates the job finished with an error.
	JobStatusFailed JobStatus = "failed"
	// JobStatusCancelled indicates the job was cancelled before or during execution.
	JobStatusCancelled JobStatus = "cancelled"
)

// IsTerminal returns true if the status will never change again.
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	default:
		return false
	}
}

// JobHistory is the durable audit record of a job's lifecycle. The live
// queue (internal/jobqueue) holds in-memory Job state; JobHistory is
// written once a job reaches a terminal status so operators retain a
// queryable record across restarts even though the live queue does not
// survive one.
type JobHistory struct {
	BaseModel

	// JobID is the UUID assigned to the job by the queue at submission time.
	JobID string `gorm:"not null;size:36;uniqueIndex" json:"job_id"`

	// Type indicates what kind of job this was.
	Type JobType `gorm:"not null;size:50;index" json:"type"`

	// EpisodeID is the episode this job operated on, if any.
	EpisodeID *ULID `gorm:"type:varchar(26);index" json:"episode_id,omitempty"`

	// Status is the final status of the job execution.
	Status JobStatus `gorm:"not null;size:20;index" json:"status"`

	// QueuedAt is when the job entered the queue.
	QueuedAt Time `json:"queued_at"`

	// StartedAt is when a worker picked the job up.
	StartedAt *Time `json:"started_at,omitempty"`

	// CompletedAt is when the job reached a terminal status.
	CompletedAt *Time `json:"completed_at,omitempty"`

	// DurationMs is the execution duration in milliseconds, measured from
	// StartedAt to CompletedAt.
	DurationMs int64 `json:"duration_ms,omitempty"`

	// Error contains the error message if the job failed.
	Error string `gorm:"size:4096" json:"error,omitempty"`

	// StagesCompleted lists the pipeline stage IDs that reported a
	// completed outcome, in execution order, serialized as a JSON array.
	StagesCompleted string `gorm:"type:text" json:"-"`
}

// TableName returns the table name for JobHistory.
func (JobHistory) TableName() string {
	return "job_history"
}

// Duration returns the recorded execution duration.
func (h *JobHistory) Duration() time.Duration {
	return time.Duration(h.DurationMs) * time.Millisecond
}

// GetStagesCompleted deserializes StagesCompleted into a string slice.
func (h *JobHistory) GetStagesCompleted() ([]string, error) {
	return unmarshalStringSlice(h.StagesCompleted)
}

// SetStagesCompleted serializes a string slice into StagesCompleted.
func (h *JobHistory) SetStagesCompleted(stages []string) error {
	s, err := marshalStringSlice(stages)
	if err != nil {
		return err
	}
	h.StagesCompleted = s
	return nil
}
