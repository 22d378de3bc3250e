package stages

import (
	"context"
	"fmt"
	"time"

	"github.com/episoded/episoded/internal/collaborator"
	"github.com/episoded/episoded/internal/models"
	"github.com/episoded/episoded/internal/pathresolve"
	"github.com/episoded/episoded/internal/pipeline/core"
	"github.com/episoded/episoded/internal/repository"
	"github.com/episoded/episoded/internal/storage"
)

// Rendering produces the episode's HTML page and social-share assets
// by invoking the Encoder once per variant, writing each output under
// the artifact store's per-episode html/social folders.
type Rendering struct {
	episodes  repository.EpisodeRepository
	artifacts *storage.ArtifactStore
	paths     *pathresolve.Resolver
	encoder   collaborator.Encoder
}

func NewRendering(episodes repository.EpisodeRepository, artifacts *storage.ArtifactStore, paths *pathresolve.Resolver, encoder collaborator.Encoder) *Rendering {
	return &Rendering{episodes: episodes, artifacts: artifacts, paths: paths, encoder: encoder}
}

func (r *Rendering) ID() string                        { return "rendering" }
func (r *Rendering) Name() string                      { return "Rendering" }
func (r *Rendering) EpisodeStage() models.EpisodeStage { return models.StageRendered }

// renderVariants are the fixed social-asset renders produced for every
// episode, beyond the single HTML page.
var renderVariants = []collaborator.AssetVariant{"square", "story"}

func (r *Rendering) Execute(ctx context.Context, state *core.State, force bool, progress core.ProgressFunc) core.Outcome {
	episode := state.Episode
	if !force && episode.Stage.AtLeast(models.StageRendered) {
		return core.Skipped("already rendered")
	}

	start := time.Now()
	report := throttledProgress(progress)
	absPath := r.paths.Resolve(episode.SourcePath)

	paths, err := r.artifacts.PathsFor(episode)
	if err != nil {
		stageErr := artifactFailure(episode.SourcePath, err)
		return core.Failed(stageErr, time.Since(start))
	}
	outputDir := paths.Social

	total := 1 + len(renderVariants)
	done := 0
	step := func(message string) {
		done++
		report(float64(done)/float64(total), message)
	}

	htmlPath := paths.HTML + "/index.html"
	if err := r.artifacts.WriteBytes(htmlPath, []byte(renderEpisodeHTML(episode)), true); err != nil {
		stageErr := artifactFailure(htmlPath, err)
		_ = recordFailure(ctx, r.episodes, episode, models.StageRendered, stageErr, time.Since(start))
		return core.Failed(stageErr, time.Since(start))
	}
	step("rendered html")

	for _, variant := range renderVariants {
		outPath := fmt.Sprintf("%s/%s.mp4", outputDir, variant)
		req := collaborator.RenderRequest{
			SourcePath:  absPath,
			Variant:     variant,
			AspectRatio: socialAspectRatio(variant),
			OutputPath:  outPath,
		}
		if err := r.encoder.Render(ctx, req, report); err != nil {
			if ctx.Err() != nil {
				return core.Cancelled()
			}
			stageErr := collaboratorFailure(r.ID(), err)
			_ = recordFailure(ctx, r.episodes, episode, models.StageRendered, stageErr, time.Since(start))
			return core.Failed(stageErr, time.Since(start))
		}
		step(fmt.Sprintf("rendered %s", variant))
	}

	if err := recordSuccess(ctx, r.episodes, episode, models.StageRendered, repository.EpisodePatch{}, time.Since(start)); err != nil {
		return core.Failed(err, time.Since(start))
	}
	episode.Stage = models.StageRendered
	return core.Completed(time.Since(start))
}

func socialAspectRatio(v collaborator.AssetVariant) collaborator.AspectRatio {
	switch v {
	case "square":
		return "1:1"
	default:
		return "9:16"
	}
}

func renderEpisodeHTML(episode *models.Episode) string {
	meta, _ := episode.GetMetadata()
	return fmt.Sprintf("<!doctype html><html><head><title>%s</title></head><body><h1>%s</h1></body></html>", meta.Title, meta.Title)
}

var _ core.Stage = (*Rendering)(nil)
