package core

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/episoded/episoded/internal/apperr"
	"github.com/episoded/episoded/internal/models"
	"github.com/episoded/episoded/internal/repository"
	"github.com/episoded/episoded/internal/storage"
)

// defaultStageWeights apportion overall job progress across the stages
// that dominate wall-clock time; stages not listed contribute 0 and
// simply advance the episode without moving the needle.
var defaultStageWeights = map[models.EpisodeStage]float64{
	models.StageTranscribed:     0.55,
	models.StageEnriched:        0.30,
	models.StageRendered:        0.05,
	models.StageClipsDiscovered: 0.10,
}

// Orchestrator drives one Episode through the stage chain from its
// current stage up to a target stage, enforcing the at-most-one-
// concurrent-run-per-episode invariant and computing weighted overall
// progress from each stage's own fractional progress.
type Orchestrator struct {
	stages       []Stage
	stageIndex   map[models.EpisodeStage]int
	stageWeights map[models.EpisodeStage]float64
	episodes     repository.EpisodeRepository
	artifacts    *storage.ArtifactStore
	logger       *slog.Logger

	mu      sync.Mutex
	running map[string]bool
}

// NewOrchestrator builds an Orchestrator from an ordered stage chain
// (ascending by the EpisodeStage each stage produces).
func NewOrchestrator(stages []Stage, episodes repository.EpisodeRepository, artifacts *storage.ArtifactStore, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	idx := make(map[models.EpisodeStage]int, len(stages))
	for i, s := range stages {
		idx[s.EpisodeStage()] = i
	}
	return &Orchestrator{
		stages:       stages,
		stageIndex:   idx,
		stageWeights: defaultStageWeights,
		episodes:     episodes,
		artifacts:    artifacts,
		logger:       logger,
		running:      make(map[string]bool),
	}
}

// WithStageWeights overrides the default per-stage progress weights,
// e.g. from config.JobQueueConfig.StageWeights. Unset stages keep
// contributing 0, same as defaultStageWeights.
func (o *Orchestrator) WithStageWeights(weights map[models.EpisodeStage]float64) *Orchestrator {
	if len(weights) > 0 {
		o.stageWeights = weights
	}
	return o
}

// RunToStage advances episodeID from its current stage through
// targetStage inclusive. When force is set and the episode has already
// reached targetStage, every existing artifact is discarded and the
// episode is then reset to StageDiscovered before the run, so the whole
// chain re-executes against the original source rather than leaving
// some stages' stale output alongside freshly regenerated ones. The
// file removal is not part of the stage-reset transaction; a failed
// removal is logged and the run continues.
func (o *Orchestrator) RunToStage(ctx context.Context, episodeID string, targetStage models.EpisodeStage, force bool, progress ProgressFunc) (*Result, error) {
	if !o.acquire(episodeID) {
		return nil, &apperr.ConflictError{Reason: fmt.Sprintf("episode %s already has a job running", episodeID)}
	}
	defer o.release(episodeID)

	startTime := time.Now()
	episode, err := o.episodes.GetByEpisodeID(ctx, episodeID)
	if err != nil {
		return nil, err
	}

	targetIdx, ok := o.stageIndex[targetStage]
	if !ok {
		return nil, ErrInvalidTargetStage
	}

	// force only has work to do when targetStage has already been
	// reached: CleanupPartial(StageDiscovered) discards every artifact
	// category at or after StageDiscovered, i.e. all of them, then the
	// episode is reset to StageDiscovered so the startIdx walk below
	// re-enters the loop at Prep and regenerates the whole chain. If
	// target hasn't been reached yet, force is a no-op here; forward
	// progress proceeds exactly as an unforced run would.
	if force && episode.Stage.AtLeast(targetStage) {
		resetStage := models.StageDiscovered
		if err := o.artifacts.CleanupPartial(episode, resetStage); err != nil {
			o.logger.WarnContext(ctx, "partial cleanup failed before forced reprocess",
				slog.String("episode_id", episodeID), slog.String("error", err.Error()))
		}
		updated, err := o.episodes.UpdateEpisode(ctx, episode.ID, repository.EpisodePatch{Stage: &resetStage})
		if err != nil {
			return nil, fmt.Errorf("resetting stage for forced reprocess: %w", err)
		}
		episode = updated
	}

	// startIdx is the first stage the episode hasn't already reached.
	// episode.Stage may be StageDiscovered, which no Stage in o.stages
	// produces, so this walks stage order rather than indexing
	// o.stageIndex directly (that would default a missing key to 0 and
	// skip the first registered stage entirely for a fresh episode).
	startIdx := 0
	for i, s := range o.stages {
		if episode.Stage.AtLeast(s.EpisodeStage()) {
			startIdx = i + 1
			continue
		}
		break
	}

	result := &Result{FinalStage: episode.Stage}
	state := NewState(episode)

	for i := startIdx; i <= targetIdx; i++ {
		stage := o.stages[i]

		select {
		case <-ctx.Done():
			result.Outcome = OutcomeCancelled
			result.Duration = time.Since(startTime)
			return result, ctx.Err()
		default:
		}

		weight := o.stageWeights[stage.EpisodeStage()]
		base := progressSoFar(o.stages[startIdx:i], o.stageWeights)
		stageProgress := func(fraction float64, message string) {
			if progress != nil {
				progress(base+fraction*weight, message)
			}
		}

		outcome := stage.Execute(ctx, state, force, stageProgress)
		result.StagesRun = append(result.StagesRun, stage.ID())

		switch outcome.Kind {
		case OutcomeCompleted, OutcomeSkipped:
			result.FinalStage = stage.EpisodeStage()
		case OutcomeFailed:
			result.Outcome = OutcomeFailed
			result.Err = outcome.Err
			result.Duration = time.Since(startTime)
			return result, outcome.Err
		case OutcomeCancelled:
			result.Outcome = OutcomeCancelled
			result.Duration = time.Since(startTime)
			return result, context.Canceled
		}

		if state.RenamedEpisodeID != "" && state.RenamedEpisodeID != episode.EpisodeID {
			renamed, err := o.episodes.RenameEpisode(ctx, episode.EpisodeID, state.RenamedEpisodeID)
			if err != nil {
				result.Outcome = OutcomeFailed
				result.Err = err
				result.Duration = time.Since(startTime)
				return result, err
			}
			episode = renamed
			result.RenamedTo = renamed.EpisodeID
			state.RenamedEpisodeID = ""
		}
	}

	result.Outcome = OutcomeCompleted
	result.Duration = time.Since(startTime)
	if progress != nil {
		progress(1.0, "complete")
	}
	return result, nil
}

// progressSoFar sums the weights of stages already completed in this
// run, so the next stage's own 0.0-1.0 progress can be mapped onto the
// remaining slice of the overall 0.0-1.0 range.
func progressSoFar(completed []Stage, weights map[models.EpisodeStage]float64) float64 {
	var sum float64
	for _, s := range completed {
		sum += weights[s.EpisodeStage()]
	}
	return sum
}

func (o *Orchestrator) acquire(episodeID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.running[episodeID] {
		return false
	}
	o.running[episodeID] = true
	return true
}

func (o *Orchestrator) release(episodeID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.running, episodeID)
}
