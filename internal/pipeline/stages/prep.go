package stages

import (
	"context"
	"time"

	"github.com/episoded/episoded/internal/collaborator"
	"github.com/episoded/episoded/internal/models"
	"github.com/episoded/episoded/internal/pathresolve"
	"github.com/episoded/episoded/internal/pipeline/core"
	"github.com/episoded/episoded/internal/repository"
)

// Prep extracts container-level metadata (duration, size) from the
// source file via a Prober, the ffprobe-like collaborator, so
// downstream stages never need to touch the raw video bytes themselves.
type Prep struct {
	episodes repository.EpisodeRepository
	paths    *pathresolve.Resolver
	prober   collaborator.Prober
}

func NewPrep(episodes repository.EpisodeRepository, paths *pathresolve.Resolver, prober collaborator.Prober) *Prep {
	return &Prep{episodes: episodes, paths: paths, prober: prober}
}

func (p *Prep) ID() string                            { return "prep" }
func (p *Prep) Name() string                          { return "Prep" }
func (p *Prep) EpisodeStage() models.EpisodeStage     { return models.StagePrepared }

func (p *Prep) Execute(ctx context.Context, state *core.State, force bool, progress core.ProgressFunc) core.Outcome {
	episode := state.Episode
	if !force && episode.Stage.AtLeast(models.StagePrepared) {
		return core.Skipped("already prepared")
	}

	start := time.Now()
	report := throttledProgress(progress)
	report(0, "probing source")

	absPath := p.paths.Resolve(episode.SourcePath)
	result, err := p.prober.Probe(ctx, absPath)
	if err != nil {
		stageErr := collaboratorFailure(p.ID(), err)
		_ = recordFailure(ctx, p.episodes, episode, models.StagePrepared, stageErr, time.Since(start))
		return core.Failed(stageErr, time.Since(start))
	}
	report(1, "probed")

	duration := result.DurationSeconds
	size := result.FileSize
	patch := repository.EpisodePatch{
		DurationSeconds: &duration,
		FileSize:        &size,
	}
	if err := recordSuccess(ctx, p.episodes, episode, models.StagePrepared, patch, time.Since(start)); err != nil {
		return core.Failed(err, time.Since(start))
	}
	episode.Stage = models.StagePrepared
	episode.DurationSeconds = duration
	episode.FileSize = size
	return core.Completed(time.Since(start))
}

var _ core.Stage = (*Prep)(nil)
