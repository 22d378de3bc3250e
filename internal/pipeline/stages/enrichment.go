package stages

import (
	"context"
	"time"

	"github.com/episoded/episoded/internal/collaborator"
	"github.com/episoded/episoded/internal/models"
	"github.com/episoded/episoded/internal/naming"
	"github.com/episoded/episoded/internal/pipeline/core"
	"github.com/episoded/episoded/internal/repository"
)

// Enrichment derives a show/episode identity, summary and tags from
// the transcript via an Enricher, then recomputes the episode's
// canonical ID now that its real show name and episode number are
// known. A changed ID triggers a rename rather than a new row
// (invariant 7), recorded on core.State for the orchestrator to apply.
type Enrichment struct {
	episodes repository.EpisodeRepository
	naming   *naming.Service
	enricher collaborator.Enricher
}

func NewEnrichment(episodes repository.EpisodeRepository, namingService *naming.Service, enricher collaborator.Enricher) *Enrichment {
	return &Enrichment{episodes: episodes, naming: namingService, enricher: enricher}
}

func (e *Enrichment) ID() string                        { return "enrichment" }
func (e *Enrichment) Name() string                      { return "Enrichment" }
func (e *Enrichment) EpisodeStage() models.EpisodeStage { return models.StageEnriched }

func (e *Enrichment) Execute(ctx context.Context, state *core.State, force bool, progress core.ProgressFunc) core.Outcome {
	episode := state.Episode
	if !force && episode.Stage.AtLeast(models.StageEnriched) {
		return core.Skipped("already enriched")
	}

	start := time.Now()
	report := throttledProgress(progress)

	var transcript collaborator.Transcript
	if err := episode.GetTranscription(&transcript); err != nil {
		stageErr := artifactFailure("transcription", err)
		return core.Failed(stageErr, time.Since(start))
	}

	hints := map[string]any{"source_path": episode.SourcePath}
	enrichment, err := e.enricher.Enrich(ctx, transcript.Text, hints, report)
	if err != nil {
		if ctx.Err() != nil {
			return core.Cancelled()
		}
		stageErr := collaboratorFailure(e.ID(), err)
		_ = recordFailure(ctx, e.episodes, episode, models.StageEnriched, stageErr, time.Since(start))
		return core.Failed(stageErr, time.Since(start))
	}

	meta, err := episode.GetMetadata()
	if err != nil {
		return core.Failed(err, time.Since(start))
	}
	meta.ShowName = enrichment.ShowName
	meta.HostName = enrichment.HostName
	meta.EpisodeNumber = enrichment.EpisodeNumber
	if err := episode.SetMetadata(meta); err != nil {
		return core.Failed(err, time.Since(start))
	}
	if err := episode.SetEnrichment(enrichment); err != nil {
		return core.Failed(err, time.Since(start))
	}

	newID := e.naming.GenerateEpisodeID(meta.ShowName, meta.EpisodeNumber, parseAirDate(meta.AirDate), episode.SourcePath, episode.CreatedAt)
	if newID != episode.EpisodeID {
		state.RenamedEpisodeID = newID
	}

	metaJSON := episode.MetadataJSON
	enrichJSON := episode.EnrichmentJSON
	patch := repository.EpisodePatch{MetadataJSON: &metaJSON, EnrichmentJSON: &enrichJSON}
	if err := recordSuccess(ctx, e.episodes, episode, models.StageEnriched, patch, time.Since(start)); err != nil {
		return core.Failed(err, time.Since(start))
	}
	episode.Stage = models.StageEnriched
	return core.Completed(time.Since(start))
}

var _ core.Stage = (*Enrichment)(nil)
