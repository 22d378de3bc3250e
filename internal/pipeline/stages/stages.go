// Package stages implements the five core.Stage chain members a
// discovered Episode walks through: prep, transcription, enrichment,
// rendering, and the optional clip discovery stage. Each follows the
// same shape: skip if the target stage is already reached unless
// forced, call exactly one collaborator with a throttled progress
// closure, write any artifacts atomically, then fold the result into
// the episode and the processing log inside a single repository
// transaction.
package stages

import (
	"context"
	"time"

	"github.com/episoded/episoded/internal/apperr"
	"github.com/episoded/episoded/internal/models"
	"github.com/episoded/episoded/internal/pipeline/core"
	"github.com/episoded/episoded/internal/repository"
)

// progressThrottle is the minimum interval between progress callback
// deliveries to the caller, per the "rate-limited to ~250ms" contract.
const progressThrottle = 250 * time.Millisecond

// throttledProgress wraps progress so the underlying callback is never
// invoked more often than progressThrottle, except for the guaranteed
// first and last calls.
func throttledProgress(progress core.ProgressFunc) core.ProgressFunc {
	if progress == nil {
		return func(float64, string) {}
	}
	var last time.Time
	return func(fraction float64, message string) {
		now := time.Now()
		if fraction >= 1.0 || fraction <= 0.0 || now.Sub(last) >= progressThrottle {
			last = now
			progress(fraction, message)
		}
	}
}

// recordSuccess advances the episode to targetStage and appends a
// completed log row, all inside one repository transaction.
func recordSuccess(ctx context.Context, episodes repository.EpisodeRepository, episode *models.Episode, targetStage models.EpisodeStage, patch repository.EpisodePatch, duration time.Duration) error {
	patch.Stage = &targetStage
	patch.ClearError = true
	return episodes.Transaction(ctx, func(tx repository.EpisodeRepository) error {
		if _, err := tx.UpdateEpisode(ctx, episode.ID, patch); err != nil {
			return err
		}
		return tx.AppendLog(ctx, episode.ID, targetStage, models.LogEventCompleted, duration, nil)
	})
}

// recordFailure captures the error message on the episode (stage is
// left untouched, satisfying invariant 2) and appends a failed log row.
func recordFailure(ctx context.Context, episodes repository.EpisodeRepository, episode *models.Episode, stage models.EpisodeStage, stageErr error, duration time.Duration) error {
	msg := stageErr.Error()
	patch := repository.EpisodePatch{Error: &msg}
	return episodes.Transaction(ctx, func(tx repository.EpisodeRepository) error {
		if _, err := tx.UpdateEpisode(ctx, episode.ID, patch); err != nil {
			return err
		}
		return tx.AppendLog(ctx, episode.ID, stage, models.LogEventFailed, duration, stageErr)
	})
}

func collaboratorFailure(stageID string, cause error) error {
	return &apperr.CollaboratorError{Stage: stageID, Cause: cause}
}

func artifactFailure(path string, cause error) error {
	return &apperr.ArtifactIOError{Path: path, Cause: cause}
}

// parseAirDate parses the enrichment collaborator's "YYYY-MM-DD" air
// date string, falling back to the zero time when absent or malformed.
func parseAirDate(raw string) time.Time {
	if raw == "" {
		return time.Time{}
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}
	}
	return t
}
