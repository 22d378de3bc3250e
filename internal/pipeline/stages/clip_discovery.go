package stages

import (
	"context"
	"time"

	"github.com/episoded/episoded/internal/collaborator"
	"github.com/episoded/episoded/internal/models"
	"github.com/episoded/episoded/internal/pipeline/core"
	"github.com/episoded/episoded/internal/repository"
)

// ClipDiscovery is the optional terminal stage: it asks a ClipSegmenter
// to propose short-form candidates from the full transcript and
// persists each as a Clip row in ClipStatusDiscovered, leaving
// rendering of any selected candidate to a separate render-clips job.
type ClipDiscovery struct {
	episodes  repository.EpisodeRepository
	clips     repository.ClipRepository
	segmenter collaborator.ClipSegmenter
	config    collaborator.ClipConfig
}

func NewClipDiscovery(episodes repository.EpisodeRepository, clips repository.ClipRepository, segmenter collaborator.ClipSegmenter, config collaborator.ClipConfig) *ClipDiscovery {
	return &ClipDiscovery{episodes: episodes, clips: clips, segmenter: segmenter, config: config}
}

func (c *ClipDiscovery) ID() string                        { return "clip_discovery" }
func (c *ClipDiscovery) Name() string                      { return "Clip Discovery" }
func (c *ClipDiscovery) EpisodeStage() models.EpisodeStage { return models.StageClipsDiscovered }

func (c *ClipDiscovery) Execute(ctx context.Context, state *core.State, force bool, progress core.ProgressFunc) core.Outcome {
	episode := state.Episode
	if !force && episode.Stage.AtLeast(models.StageClipsDiscovered) {
		return core.Skipped("clips already discovered")
	}

	start := time.Now()
	report := throttledProgress(progress)

	var transcript collaborator.Transcript
	if err := episode.GetTranscription(&transcript); err != nil {
		stageErr := artifactFailure("transcription", err)
		return core.Failed(stageErr, time.Since(start))
	}

	if force {
		if err := c.clips.DeleteByEpisodeID(ctx, episode.ID); err != nil {
			return core.Failed(err, time.Since(start))
		}
	}

	candidates, err := c.segmenter.DiscoverClips(ctx, transcript, c.config, report)
	if err != nil {
		if ctx.Err() != nil {
			return core.Cancelled()
		}
		stageErr := collaboratorFailure(c.ID(), err)
		_ = recordFailure(ctx, c.episodes, episode, models.StageClipsDiscovered, stageErr, time.Since(start))
		return core.Failed(stageErr, time.Since(start))
	}

	clipRows := make([]*models.Clip, 0, len(candidates))
	for _, cand := range candidates {
		clip := &models.Clip{
			EpisodeID: episode.ID,
			StartMs:   cand.StartMs,
			EndMs:     cand.EndMs,
			Score:     cand.Score,
			Status:    models.ClipStatusDiscovered,
		}
		if err := clip.SetMetadata(models.ClipMetadata{Title: cand.Title, Caption: cand.Caption, Hashtags: cand.Hashtags}); err != nil {
			return core.Failed(err, time.Since(start))
		}
		clipRows = append(clipRows, clip)
	}
	if len(clipRows) > 0 {
		if err := c.clips.CreateBatch(ctx, clipRows); err != nil {
			return core.Failed(err, time.Since(start))
		}
	}

	if err := recordSuccess(ctx, c.episodes, episode, models.StageClipsDiscovered, repository.EpisodePatch{}, time.Since(start)); err != nil {
		return core.Failed(err, time.Since(start))
	}
	episode.Stage = models.StageClipsDiscovered
	return core.Completed(time.Since(start))
}

var _ core.Stage = (*ClipDiscovery)(nil)
