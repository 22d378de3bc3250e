package handlers

import (
	"context"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/episoded/episoded/internal/apperr"
	"github.com/episoded/episoded/internal/jobqueue"
	"github.com/episoded/episoded/internal/models"
	"github.com/episoded/episoded/internal/repository"
)

// StuckChecker reports whether a job was flagged stuck as of the most
// recent stuckdetector scan.
type StuckChecker interface {
	IsStuck(jobID string) (time.Duration, bool)
}

// JobHandler exposes the async job surface: submitting process/render
// jobs, polling progress, cancelling, and queue-wide stats.
type JobHandler struct {
	queue    *jobqueue.Queue
	episodes repository.EpisodeRepository
	stuck    StuckChecker
}

// NewJobHandler creates a new job handler. episodes resolves the
// canonical episode_id path param to its internal ULID, the same way
// EpisodeHandler and ClipHandler do.
func NewJobHandler(queue *jobqueue.Queue, episodes repository.EpisodeRepository) *JobHandler {
	return &JobHandler{queue: queue, episodes: episodes}
}

// WithStuckChecker attaches a stuckdetector.Detector so job responses
// can surface staleness as a first-class attribute instead of only a log line.
func (h *JobHandler) WithStuckChecker(checker StuckChecker) *JobHandler {
	h.stuck = checker
	return h
}

// Register registers the job routes with the API.
func (h *JobHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "submitProcessJob",
		Method:      "POST",
		Path:        "/api/v1/episodes/{episode_id}/process",
		Summary:     "Submit a process-episode job",
		Description: "Runs an episode through the pipeline up to the requested stage, asynchronously",
		Tags:        []string{"Jobs"},
	}, h.SubmitProcessJob)

	huma.Register(api, huma.Operation{
		OperationID: "submitRenderClipsJob",
		Method:      "POST",
		Path:        "/api/v1/clips/render",
		Summary:     "Submit a render-clips job",
		Description: "Renders the requested clip candidates to their output variants, asynchronously",
		Tags:        []string{"Jobs"},
	}, h.SubmitRenderClipsJob)

	huma.Register(api, huma.Operation{
		OperationID: "getJob",
		Method:      "GET",
		Path:        "/api/v1/jobs/{job_id}",
		Summary:     "Get job status",
		Tags:        []string{"Jobs"},
	}, h.GetJob)

	huma.Register(api, huma.Operation{
		OperationID: "listJobs",
		Method:      "GET",
		Path:        "/api/v1/jobs",
		Summary:     "List jobs",
		Tags:        []string{"Jobs"},
	}, h.ListJobs)

	huma.Register(api, huma.Operation{
		OperationID:   "cancelJob",
		Method:        "POST",
		Path:          "/api/v1/jobs/{job_id}/cancel",
		Summary:       "Cancel a job",
		Description:   "Idempotent: cancelling a job already in a terminal status succeeds without effect",
		Tags:          []string{"Jobs"},
		DefaultStatus: 204,
	}, h.CancelJob)

	huma.Register(api, huma.Operation{
		OperationID: "getQueueStats",
		Method:      "GET",
		Path:        "/api/v1/jobs/stats",
		Summary:     "Get job queue statistics",
		Tags:        []string{"Jobs"},
	}, h.QueueStats)
}

// JobResponse is the wire representation of a job's status.
type JobResponse struct {
	ID              string         `json:"id"`
	Type            string         `json:"type"`
	EpisodeID       string         `json:"episode_id,omitempty"`
	Status          string         `json:"status"`
	Progress        float64        `json:"progress"`
	Message         string         `json:"message,omitempty"`
	StagesCompleted []string       `json:"stages_completed"`
	Error           string         `json:"error,omitempty"`
	Result          map[string]any `json:"result,omitempty"`
	QueuedAt        time.Time      `json:"queued_at"`
	StartedAt       *time.Time     `json:"started_at,omitempty"`
	CompletedAt     *time.Time     `json:"completed_at,omitempty"`
	ETASeconds      *float64       `json:"eta_seconds,omitempty"`
	Stuck           bool           `json:"stuck"`
	StalledSeconds  float64        `json:"stalled_seconds,omitempty"`
}

func (h *JobHandler) toResponse(snap jobqueue.Snapshot) JobResponse {
	resp := JobResponse{
		ID:              snap.ID,
		Type:            string(snap.Type),
		Status:          string(snap.Status),
		Progress:        snap.Progress,
		Message:         snap.Message,
		StagesCompleted: snap.StagesCompleted,
		Error:           snap.Error,
		Result:          snap.Result,
		QueuedAt:        snap.QueuedAt,
		StartedAt:       snap.StartedAt,
		CompletedAt:     snap.CompletedAt,
		ETASeconds:      snap.ETASeconds,
	}
	if snap.EpisodeID != nil {
		resp.EpisodeID = snap.EpisodeID.String()
	}
	if h.stuck != nil {
		if stalledFor, ok := h.stuck.IsStuck(snap.ID); ok {
			resp.Stuck = true
			resp.StalledSeconds = stalledFor.Seconds()
		}
	}
	return resp
}

// SubmitProcessJobInput is the input for submitting a process-episode job.
type SubmitProcessJobInput struct {
	EpisodeID string `path:"episode_id"`
	Body      struct {
		TargetStage string `json:"target_stage,omitempty" doc:"Furthest stage to run to; defaults to clips_discovered"`
		Force       bool   `json:"force,omitempty" doc:"Re-run stages from the target backwards, clearing their prior artifacts first"`
		WebhookURL  string `json:"webhook_url,omitempty"`
	}
}

// SubmitJobOutput is the output for a newly submitted job.
type SubmitJobOutput struct {
	Status int
	Body   JobResponse
}

// SubmitProcessJob enqueues a models.JobTypeProcessEpisode job. The
// path param is the canonical episode_id (e.g.
// "ForumDailyNews_ep140_2024-10-27"), resolved here to the internal
// ULID the job queue keys on, the same way EpisodeHandler/ClipHandler
// resolve it.
func (h *JobHandler) SubmitProcessJob(ctx context.Context, input *SubmitProcessJobInput) (*SubmitJobOutput, error) {
	episode, err := h.episodes.GetByEpisodeID(ctx, input.EpisodeID)
	if err != nil {
		return nil, mapAppError(err)
	}
	episodeID := episode.ID

	targetStage := models.EpisodeStage(input.Body.TargetStage)
	if targetStage == "" {
		targetStage = models.StageClipsDiscovered
	}
	if !targetStage.IsValid() {
		return nil, mapAppError(&apperr.ValidationError{Field: "target_stage", Message: "unknown stage"})
	}

	job, err := h.queue.Submit(models.JobTypeProcessEpisode, jobqueue.SubmitOptions{
		EpisodeID:   &episodeID,
		TargetStage: targetStage,
		Force:       input.Body.Force,
		WebhookURL:  input.Body.WebhookURL,
	})
	if err != nil {
		return nil, mapAppError(err)
	}

	snap, _ := h.queue.Get(job.ID)
	return &SubmitJobOutput{Status: 202, Body: h.toResponse(snap)}, nil
}

// SubmitRenderClipsJobInput is the input for submitting a render-clips job.
type SubmitRenderClipsJobInput struct {
	Body struct {
		ClipIDs    []string `json:"clip_ids" doc:"Clip candidate ids to render"`
		WebhookURL string   `json:"webhook_url,omitempty"`
	}
}

// SubmitRenderClipsJob enqueues a models.JobTypeRenderClips job.
func (h *JobHandler) SubmitRenderClipsJob(ctx context.Context, input *SubmitRenderClipsJobInput) (*SubmitJobOutput, error) {
	if len(input.Body.ClipIDs) == 0 {
		return nil, mapAppError(&apperr.ValidationError{Field: "clip_ids", Message: "at least one clip id is required"})
	}

	clipIDs := make([]models.ULID, 0, len(input.Body.ClipIDs))
	for _, raw := range input.Body.ClipIDs {
		id, err := models.ParseULID(raw)
		if err != nil {
			return nil, mapAppError(&apperr.ValidationError{Field: "clip_ids", Message: "not a valid id: " + raw})
		}
		clipIDs = append(clipIDs, id)
	}

	job, err := h.queue.Submit(models.JobTypeRenderClips, jobqueue.SubmitOptions{
		ClipIDs:    clipIDs,
		WebhookURL: input.Body.WebhookURL,
	})
	if err != nil {
		return nil, mapAppError(err)
	}

	snap, _ := h.queue.Get(job.ID)
	return &SubmitJobOutput{Status: 202, Body: h.toResponse(snap)}, nil
}

// GetJobInput is the input for fetching a job's status.
type GetJobInput struct {
	JobID string `path:"job_id"`
}

// GetJobOutput is the output for fetching a job's status.
type GetJobOutput struct {
	Body JobResponse
}

// GetJob returns the current status of a single job.
func (h *JobHandler) GetJob(ctx context.Context, input *GetJobInput) (*GetJobOutput, error) {
	snap, err := h.queue.Get(input.JobID)
	if err != nil {
		return nil, mapAppError(err)
	}
	return &GetJobOutput{Body: h.toResponse(snap)}, nil
}

// ListJobsInput is the input for listing jobs.
type ListJobsInput struct {
	Status string `query:"status" enum:",queued,running,completed,failed,cancelled"`
}

// ListJobsOutput is the output for listing jobs.
type ListJobsOutput struct {
	Body struct {
		Items []JobResponse `json:"items"`
		Total int           `json:"total"`
	}
}

// ListJobs returns every job currently tracked in memory (queued,
// running, or finished within the queue's retention window), optionally
// filtered by status.
func (h *JobHandler) ListJobs(ctx context.Context, input *ListJobsInput) (*ListJobsOutput, error) {
	snaps := h.queue.List()
	out := &ListJobsOutput{}
	out.Body.Items = make([]JobResponse, 0, len(snaps))
	for _, snap := range snaps {
		if input.Status != "" && string(snap.Status) != input.Status {
			continue
		}
		out.Body.Items = append(out.Body.Items, h.toResponse(snap))
	}
	out.Body.Total = len(out.Body.Items)
	return out, nil
}

// CancelJobInput is the input for cancelling a job.
type CancelJobInput struct {
	JobID string `path:"job_id"`
}

// CancelJobOutput is the (empty) output for a successful cancellation.
type CancelJobOutput struct{}

// CancelJob requests cancellation of a job. Returns 204 whether the job
// was running, queued, or already terminal.
func (h *JobHandler) CancelJob(ctx context.Context, input *CancelJobInput) (*CancelJobOutput, error) {
	if err := h.queue.Cancel(input.JobID); err != nil {
		return nil, mapAppError(err)
	}
	return &CancelJobOutput{}, nil
}

// QueueStatsInput is the (empty) input for the queue stats endpoint.
type QueueStatsInput struct{}

// QueueStatsOutput is the output for the queue stats endpoint.
type QueueStatsOutput struct {
	Body struct {
		Queued     int `json:"queued"`
		Running    int `json:"running"`
		MaxWorkers int `json:"max_workers"`
		Capacity   int `json:"capacity"`
	}
}

// QueueStats reports current queue occupancy.
func (h *JobHandler) QueueStats(ctx context.Context, input *QueueStatsInput) (*QueueStatsOutput, error) {
	stats := h.queue.Stats()
	out := &QueueStatsOutput{}
	out.Body.Queued = stats.Queued
	out.Body.Running = stats.Running
	out.Body.MaxWorkers = stats.Workers
	out.Body.Capacity = stats.Capacity
	return out, nil
}
