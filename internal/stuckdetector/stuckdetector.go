// Package stuckdetector periodically scans running jobs for ones that
// have gone quiet past their current stage's configured timeout.
// Detection is informational only: episoded never cancels or restarts
// a job on its own behalf, it only surfaces the fact through logs and
// IsStuck, which the job handlers query, so an operator can decide what to do.
package stuckdetector

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/episoded/episoded/internal/jobqueue"
	"github.com/episoded/episoded/internal/models"
)

// pipelineStages orders the stage IDs recorded in Snapshot.StagesCompleted
// against the EpisodeStage each one produces, so the detector can infer
// which stage a running job is currently inside without the queue
// needing to track "current stage" directly.
var pipelineStages = []struct {
	id    string
	stage models.EpisodeStage
}{
	{"prep", models.StagePrepared},
	{"transcription", models.StageTranscribed},
	{"enrichment", models.StageEnriched},
	{"rendering", models.StageRendered},
	{"clip_discovery", models.StageClipsDiscovered},
}

// defaultTimeout applies to any stage absent from the configured
// timeout map.
const defaultTimeout = 15 * time.Minute

// Lister is the subset of jobqueue.Queue the detector depends on.
type Lister interface {
	List() []jobqueue.Snapshot
}

// Detector periodically scans Lister.List() for running jobs whose
// last progress update is older than their current stage's timeout.
// The most recent scan's findings are kept so HTTP handlers can expose
// "stuck" as a queryable attribute on a job rather than only a log line.
type Detector struct {
	queue    Lister
	timeouts map[models.EpisodeStage]time.Duration
	interval time.Duration
	logger   *slog.Logger

	mu    sync.RWMutex
	stuck map[string]time.Duration
}

// New builds a Detector. A nil or empty timeouts map falls back to
// defaultTimeout for every stage.
func New(queue Lister, timeouts map[models.EpisodeStage]time.Duration, interval time.Duration, logger *slog.Logger) *Detector {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = time.Minute
	}
	return &Detector{queue: queue, timeouts: timeouts, interval: interval, logger: logger, stuck: make(map[string]time.Duration)}
}

// IsStuck reports whether jobID was flagged stuck as of the most recent
// scan, along with how long it had been stalled at that point.
func (d *Detector) IsStuck(jobID string) (time.Duration, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	stalled, ok := d.stuck[jobID]
	return stalled, ok
}

// Run blocks, scanning on a ticker until ctx is cancelled.
func (d *Detector) Run(ctx context.Context) {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.scan()
		}
	}
}

func (d *Detector) scan() {
	now := time.Now()
	stuck := make(map[string]time.Duration)
	for _, snap := range d.queue.List() {
		if snap.Status != models.JobStatusRunning {
			continue
		}
		stage, timeout := d.currentStageAndTimeout(snap)
		stalledFor := now.Sub(snap.LastProgressAt)
		if stalledFor <= timeout {
			continue
		}
		stuck[snap.ID] = stalledFor
		d.logger.Warn("job appears stuck",
			slog.String("job_id", snap.ID),
			slog.String("job_type", string(snap.Type)),
			slog.String("stage", string(stage)),
			slog.Duration("stalled_for", stalledFor),
			slog.Duration("stage_timeout", timeout),
		)
	}

	d.mu.Lock()
	d.stuck = stuck
	d.mu.Unlock()
}

// currentStageAndTimeout infers which stage a running job is inside
// from the stages it has already completed, and returns that stage's
// configured timeout (or defaultTimeout if unconfigured).
func (d *Detector) currentStageAndTimeout(snap jobqueue.Snapshot) (models.EpisodeStage, time.Duration) {
	completed := make(map[string]bool, len(snap.StagesCompleted))
	for _, id := range snap.StagesCompleted {
		completed[id] = true
	}

	for _, ps := range pipelineStages {
		if completed[ps.id] {
			continue
		}
		if t, ok := d.timeouts[ps.stage]; ok {
			return ps.stage, t
		}
		return ps.stage, defaultTimeout
	}

	// Every known stage already reported completed; treat the last one
	// as still current rather than claiming no stage applies.
	last := pipelineStages[len(pipelineStages)-1]
	if t, ok := d.timeouts[last.stage]; ok {
		return last.stage, t
	}
	return last.stage, defaultTimeout
}
