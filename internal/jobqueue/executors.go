package jobqueue

import (
	"context"
	"fmt"

	"github.com/episoded/episoded/internal/apperr"
	"github.com/episoded/episoded/internal/collaborator"
	"github.com/episoded/episoded/internal/discovery"
	"github.com/episoded/episoded/internal/models"
	"github.com/episoded/episoded/internal/pathresolve"
	"github.com/episoded/episoded/internal/pipeline/core"
	"github.com/episoded/episoded/internal/repository"
	"github.com/episoded/episoded/internal/storage"
)

// NewProcessEpisodeExecutor adapts an Orchestrator.RunToStage call into
// an Executor for models.JobTypeProcessEpisode. It resolves the job's
// EpisodeID to the episode's canonical ID once, since the orchestrator
// operates on that string rather than the ULID primary key.
func NewProcessEpisodeExecutor(episodes repository.EpisodeRepository, orchestrator *core.Orchestrator) Executor {
	return func(ctx context.Context, job *Job, progress func(fraction float64, message, stageID string)) (map[string]any, error) {
		if job.EpisodeID == nil {
			return nil, &apperr.ValidationError{Field: "episode_id", Message: "process_episode jobs require an episode id"}
		}
		episode, err := episodes.GetByID(ctx, *job.EpisodeID)
		if err != nil {
			return nil, err
		}

		target := job.TargetStage
		if target == "" {
			target = models.StageClipsDiscovered
		}

		runResult, err := orchestrator.RunToStage(ctx, episode.EpisodeID, target, job.Force, func(fraction float64, message string) {
			progress(fraction, message, "")
		})
		if runResult == nil {
			return nil, err
		}
		for _, stageID := range runResult.StagesRun {
			progress(0, "", stageID)
		}
		result := map[string]any{
			"episode_id":     episode.EpisodeID,
			"final_stage":    string(runResult.FinalStage),
			"stages_run":     runResult.StagesRun,
		}
		return result, err
	}
}

// NewDiscoverEpisodesExecutor adapts discovery.Service into an
// Executor for models.JobTypeDiscoverEpisodes, used by the optional
// cron-scheduled background scan.
func NewDiscoverEpisodesExecutor(svc *discovery.Service) Executor {
	return func(ctx context.Context, job *Job, progress func(fraction float64, message, stageID string)) (map[string]any, error) {
		scanResult, err := svc.Scan(ctx, func(scanned, total int, path string) {
			var fraction float64
			if total > 0 {
				fraction = float64(scanned) / float64(total)
			}
			progress(fraction, fmt.Sprintf("scanning %s", path), "")
		})
		result := map[string]any{
			"new":       scanResult.New,
			"unchanged": scanResult.Unchanged,
			"moved":     scanResult.Moved,
			"skipped":   scanResult.Skipped,
		}
		return result, err
	}
}

// NewRenderClipsExecutor renders every requested clip ID to its
// standard variant set via the configured Encoder, marking each clip's
// status as it goes.
func NewRenderClipsExecutor(clips repository.ClipRepository, assets repository.ClipAssetRepository, artifacts *storage.ArtifactStore, paths *pathresolve.Resolver, episodes repository.EpisodeRepository, encoder collaborator.Encoder) Executor {
	variants := []struct {
		variant collaborator.AssetVariant
		aspect  collaborator.AspectRatio
	}{
		{"clean", "9:16"},
		{"subtitled", "9:16"},
	}

	return func(ctx context.Context, job *Job, progress func(fraction float64, message, stageID string)) (map[string]any, error) {
		if len(job.ClipIDs) == 0 {
			return nil, &apperr.ValidationError{Field: "clip_ids", Message: "render_clips jobs require at least one clip id"}
		}

		total := len(job.ClipIDs) * len(variants)
		done := 0
		rendered := make([]string, 0, len(job.ClipIDs))

		for _, clipID := range job.ClipIDs {
			clip, err := clips.GetByID(ctx, clipID)
			if err != nil {
				return nil, err
			}
			episode, err := episodes.GetByID(ctx, clip.EpisodeID)
			if err != nil {
				return nil, err
			}
			if err := clips.UpdateStatus(ctx, clipID, models.ClipStatusRendering); err != nil {
				return nil, err
			}

			absSource := paths.Resolve(episode.SourcePath)
			for _, v := range variants {
				outputRel := fmt.Sprintf("outputs/%s/clips/%s_%s.mp4", episode.EpisodeID, clipID.String(), v.variant)
				req := collaborator.RenderRequest{
					SourcePath:  absSource,
					StartMs:     clip.StartMs,
					EndMs:       clip.EndMs,
					Variant:     v.variant,
					AspectRatio: v.aspect,
					OutputPath:  outputRel,
				}
				if err := encoder.Render(ctx, req, func(fraction float64, message string) {}); err != nil {
					if ctx.Err() != nil {
						_ = clips.UpdateStatus(ctx, clipID, models.ClipStatusFailed)
						return nil, ctx.Err()
					}
					_ = clips.UpdateStatus(ctx, clipID, models.ClipStatusFailed)
					return nil, &apperr.CollaboratorError{Stage: "render_clips", Cause: err}
				}

				asset := &models.ClipAsset{
					ClipID:      clipID,
					Variant:     models.AssetVariant(v.variant),
					AspectRatio: models.AspectRatio(v.aspect),
					OutputPath:  outputRel,
					Status:      models.AssetStatusRendered,
				}
				if err := assets.Create(ctx, asset); err != nil {
					return nil, err
				}

				done++
				progress(float64(done)/float64(total), fmt.Sprintf("rendered %s/%s", clipID.String(), v.variant), "")
			}

			if err := clips.UpdateStatus(ctx, clipID, models.ClipStatusRendered); err != nil {
				return nil, err
			}
			rendered = append(rendered, clipID.String())
		}
		return map[string]any{"rendered_clip_ids": rendered}, nil
	}
}
