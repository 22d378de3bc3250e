package jobqueue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/episoded/episoded/internal/apperr"
	"github.com/episoded/episoded/internal/models"
	"github.com/episoded/episoded/internal/repository"
)

// Executor runs exactly one job type to completion, reporting progress
// through the supplied callback and returning a result payload (echoed
// back on the terminal webhook and in job history) along with any
// error. Looked up by job.Type in a lookup table rather than dispatched
// through a shared interface hierarchy, so adding a job type never
// touches the others' code.
type Executor func(ctx context.Context, job *Job, progress func(fraction float64, message, stageID string)) (map[string]any, error)

// WebhookDispatcher delivers the terminal-status callback for a job
// that was submitted with a webhook URL. Implemented by internal/webhook.
type WebhookDispatcher interface {
	Dispatch(ctx context.Context, url string, payload WebhookPayload)
}

// WebhookPayload is the JSON body posted to a job's webhook URL.
type WebhookPayload struct {
	JobID     string         `json:"job_id"`
	JobType   string         `json:"job_type"`
	Status    string         `json:"status"`
	Result    map[string]any `json:"result,omitempty"`
	Error     string         `json:"error,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	// Truncated is set by the dispatcher when Result was dropped to keep
	// the delivered body under its size limit.
	Truncated bool `json:"truncated,omitempty"`
}

// Config controls queue capacity and worker concurrency.
type Config struct {
	MaxWorkers     int
	QueueCapacity  int
}

// DefaultConfig returns sane defaults: two workers, a 100-job bounded queue.
func DefaultConfig() Config {
	return Config{MaxWorkers: 2, QueueCapacity: 100}
}

// Queue is the in-memory bounded worker pool. At most one non-terminal
// job may exist per episode at a time (invariant 4); submission
// enforces this by consulting jobsByEpisode.
type Queue struct {
	cfg       Config
	executors map[models.JobType]Executor
	history   repository.JobHistoryRepository
	webhook   WebhookDispatcher
	logger    *slog.Logger

	pending chan string

	mu            sync.Mutex
	jobs          map[string]*Job
	jobsByEpisode map[models.ULID]string
	cancelFuncs   map[string]context.CancelFunc

	wg       sync.WaitGroup
	stopOnce sync.Once

	submitted prometheus.Counter
	completed *prometheus.CounterVec
}

// New creates a Queue with the given executor lookup table and starts
// its worker goroutines. Call Stop to drain and shut down.
func New(cfg Config, executors map[models.JobType]Executor, history repository.JobHistoryRepository, webhook WebhookDispatcher, logger *slog.Logger) *Queue {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = 2
	}
	if cfg.QueueCapacity <= 0 {
		cfg.QueueCapacity = 100
	}

	q := &Queue{
		cfg:           cfg,
		executors:     executors,
		history:       history,
		webhook:       webhook,
		logger:        logger,
		pending:       make(chan string, cfg.QueueCapacity),
		jobs:          make(map[string]*Job),
		jobsByEpisode: make(map[models.ULID]string),
		cancelFuncs:   make(map[string]context.CancelFunc),
		submitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "episoded_jobs_submitted_total",
			Help: "Total number of jobs submitted to the queue.",
		}),
		completed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "episoded_jobs_completed_total",
			Help: "Total number of jobs reaching a terminal status, by status.",
		}, []string{"status"}),
	}

	for i := 0; i < cfg.MaxWorkers; i++ {
		q.wg.Add(1)
		go q.worker()
	}
	return q
}

// Collectors exposes the queue's Prometheus metrics for registration.
func (q *Queue) Collectors() []prometheus.Collector {
	return []prometheus.Collector{q.submitted, q.completed}
}

// SubmitOptions parameterize a job submission.
type SubmitOptions struct {
	EpisodeID   *models.ULID
	TargetStage models.EpisodeStage
	Force       bool
	ClipIDs     []models.ULID
	WebhookURL  string
}

// Submit enqueues a new job of jobType. Returns apperr.QueueFullError
// if the bounded queue is at capacity, or apperr.ConflictError if
// EpisodeID already has a non-terminal job (invariant 4).
func (q *Queue) Submit(jobType models.JobType, opts SubmitOptions) (*Job, error) {
	if _, ok := q.executors[jobType]; !ok {
		return nil, &apperr.ValidationError{Field: "job_type", Message: fmt.Sprintf("unknown job type %q", jobType)}
	}

	q.mu.Lock()
	if opts.EpisodeID != nil {
		if existingID, busy := q.jobsByEpisode[*opts.EpisodeID]; busy {
			q.mu.Unlock()
			return nil, &apperr.ConflictError{Reason: fmt.Sprintf("episode already has job %s in flight", existingID)}
		}
	}

	job := newJob(uuid.NewString(), jobType)
	job.EpisodeID = opts.EpisodeID
	job.TargetStage = opts.TargetStage
	job.Force = opts.Force
	job.ClipIDs = opts.ClipIDs
	job.WebhookURL = opts.WebhookURL

	q.jobs[job.ID] = job
	if opts.EpisodeID != nil {
		q.jobsByEpisode[*opts.EpisodeID] = job.ID
	}
	q.mu.Unlock()

	select {
	case q.pending <- job.ID:
		q.submitted.Inc()
		return job, nil
	default:
		q.mu.Lock()
		delete(q.jobs, job.ID)
		if opts.EpisodeID != nil {
			delete(q.jobsByEpisode, *opts.EpisodeID)
		}
		q.mu.Unlock()
		return nil, &apperr.QueueFullError{Capacity: q.cfg.QueueCapacity}
	}
}

// Get returns a snapshot of job jobID.
func (q *Queue) Get(jobID string) (Snapshot, error) {
	q.mu.Lock()
	job, ok := q.jobs[jobID]
	q.mu.Unlock()
	if !ok {
		return Snapshot{}, &apperr.NotFoundError{Kind: "job", ID: jobID}
	}
	return job.snapshot(), nil
}

// jobRetention is how long a terminal job's Snapshot stays gettable
// from the live map after finish(), so a caller that was mid-poll when
// it completed still sees the final status instead of a 404. Anything
// older belongs in JobHistory.
const jobRetention = 10 * time.Minute

// List returns snapshots of every job currently tracked in memory:
// queued, running, or terminal within the last jobRetention window.
func (q *Queue) List() []Snapshot {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Snapshot, 0, len(q.jobs))
	for _, j := range q.jobs {
		out = append(out, j.snapshot())
	}
	return out
}

// Stats summarizes current queue occupancy.
type Stats struct {
	Queued    int
	Running   int
	Capacity  int
	Workers   int
}

// Stats reports current occupancy for the QueueStats operation.
func (q *Queue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	stats := Stats{Capacity: q.cfg.QueueCapacity, Workers: q.cfg.MaxWorkers}
	for _, j := range q.jobs {
		switch j.currentStatus() {
		case models.JobStatusQueued:
			stats.Queued++
		case models.JobStatusRunning:
			stats.Running++
		}
	}
	return stats
}

// Cancel requests cancellation of jobID. Idempotent: cancelling an
// already-terminal job is a no-op success, matching the "204/409
// idempotent-on-terminal" HTTP contract at the caller.
func (q *Queue) Cancel(jobID string) error {
	q.mu.Lock()
	job, ok := q.jobs[jobID]
	cancel := q.cancelFuncs[jobID]
	q.mu.Unlock()
	if !ok {
		return &apperr.NotFoundError{Kind: "job", ID: jobID}
	}
	if job.currentStatus().IsTerminal() {
		return nil
	}
	if cancel != nil {
		cancel()
		return nil
	}
	// Still queued, not yet picked up by a worker: mark cancelled directly.
	job.markTerminal(models.JobStatusCancelled, "")
	q.finish(job)
	return nil
}

// Stop signals workers to drain the remaining queue and exit, blocking
// until they do.
func (q *Queue) Stop() {
	q.stopOnce.Do(func() {
		close(q.pending)
	})
	q.wg.Wait()
}

func (q *Queue) worker() {
	defer q.wg.Done()
	for jobID := range q.pending {
		q.mu.Lock()
		job := q.jobs[jobID]
		q.mu.Unlock()
		if job == nil {
			continue
		}
		if job.currentStatus().IsTerminal() {
			// Cancelled while still queued: Cancel already ran finish.
			continue
		}
		q.run(job)
	}
}

func (q *Queue) run(job *Job) {
	ctx, cancel := context.WithCancel(context.Background())
	q.mu.Lock()
	q.cancelFuncs[job.ID] = cancel
	q.mu.Unlock()
	defer func() {
		q.mu.Lock()
		delete(q.cancelFuncs, job.ID)
		q.mu.Unlock()
		cancel()
	}()

	job.markRunning()
	executor := q.executors[job.Type]

	progress := func(fraction float64, message, stageID string) {
		job.recordProgress(fraction, message)
		if stageID != "" {
			job.markStageCompleted(stageID)
		}
	}

	result, err := executor(ctx, job, progress)
	if result != nil {
		job.setResult(result)
	}

	switch {
	case err != nil && ctx.Err() != nil:
		job.markTerminal(models.JobStatusCancelled, "")
	case err != nil:
		job.markTerminal(models.JobStatusFailed, err.Error())
	default:
		job.markTerminal(models.JobStatusCompleted, "")
	}

	q.finish(job)
}

// finish writes the terminal JobHistory row, fires the webhook if
// configured, and frees the episode's in-flight slot.
func (q *Queue) finish(job *Job) {
	snap := job.snapshot()

	q.completed.WithLabelValues(string(snap.Status)).Inc()

	if q.history != nil {
		history := &models.JobHistory{
			JobID:       job.ID,
			Type:        job.Type,
			EpisodeID:   job.EpisodeID,
			Status:      snap.Status,
			QueuedAt:    snap.QueuedAt,
			StartedAt:   snap.StartedAt,
			CompletedAt: snap.CompletedAt,
			Error:       snap.Error,
		}
		if snap.StartedAt != nil && snap.CompletedAt != nil {
			history.DurationMs = snap.CompletedAt.Sub(*snap.StartedAt).Milliseconds()
		}
		if err := history.SetStagesCompleted(snap.StagesCompleted); err != nil {
			q.logger.Warn("failed to serialize stages completed", slog.String("job_id", job.ID), slog.String("error", err.Error()))
		}
		if err := q.history.Create(context.Background(), history); err != nil {
			q.logger.Error("failed to persist job history", slog.String("job_id", job.ID), slog.String("error", err.Error()))
		}
	}

	if job.WebhookURL != "" && q.webhook != nil {
		q.webhook.Dispatch(context.Background(), job.WebhookURL, WebhookPayload{
			JobID:     job.ID,
			JobType:   string(job.Type),
			Status:    string(snap.Status),
			Result:    snap.Result,
			Error:     snap.Error,
			Timestamp: time.Now(),
		})
	}

	q.mu.Lock()
	if job.EpisodeID != nil {
		delete(q.jobsByEpisode, *job.EpisodeID)
	}
	q.mu.Unlock()

	time.AfterFunc(jobRetention, func() {
		q.mu.Lock()
		delete(q.jobs, job.ID)
		q.mu.Unlock()
	})
}
