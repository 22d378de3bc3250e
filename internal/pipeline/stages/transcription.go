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

// Transcription runs the configured Transcriber over the source audio
// track and persists the resulting transcript both to disk (txt/json/
// vtt under the artifact store's transcripts tree) and to the
// episode's TranscriptionJSON column.
type Transcription struct {
	episodes    repository.EpisodeRepository
	artifacts   *storage.ArtifactStore
	paths       *pathresolve.Resolver
	transcriber collaborator.Transcriber
}

func NewTranscription(episodes repository.EpisodeRepository, artifacts *storage.ArtifactStore, paths *pathresolve.Resolver, transcriber collaborator.Transcriber) *Transcription {
	return &Transcription{episodes: episodes, artifacts: artifacts, paths: paths, transcriber: transcriber}
}

func (t *Transcription) ID() string                        { return "transcription" }
func (t *Transcription) Name() string                      { return "Transcription" }
func (t *Transcription) EpisodeStage() models.EpisodeStage { return models.StageTranscribed }

func (t *Transcription) Execute(ctx context.Context, state *core.State, force bool, progress core.ProgressFunc) core.Outcome {
	episode := state.Episode
	if !force && episode.Stage.AtLeast(models.StageTranscribed) {
		return core.Skipped("already transcribed")
	}

	start := time.Now()
	report := throttledProgress(progress)

	meta, err := episode.GetMetadata()
	if err != nil {
		stageErr := artifactFailure(episode.SourcePath, err)
		return core.Failed(stageErr, time.Since(start))
	}

	absPath := t.paths.Resolve(episode.SourcePath)
	transcript, err := t.transcriber.Transcribe(ctx, absPath, meta.Language, report)
	if err != nil {
		if ctx.Err() != nil {
			return core.Cancelled()
		}
		stageErr := collaboratorFailure(t.ID(), err)
		_ = recordFailure(ctx, t.episodes, episode, models.StageTranscribed, stageErr, time.Since(start))
		return core.Failed(stageErr, time.Since(start))
	}

	paths, err := t.artifacts.PathsFor(episode)
	if err != nil {
		stageErr := artifactFailure(episode.SourcePath, err)
		return core.Failed(stageErr, time.Since(start))
	}
	txtPath := paths.Transcripts + "/transcript.txt"
	if err := t.artifacts.WriteBytes(txtPath, []byte(transcript.Text), true); err != nil {
		stageErr := artifactFailure(txtPath, err)
		return core.Failed(stageErr, time.Since(start))
	}
	vttPath := paths.Transcripts + "/transcript.vtt"
	if err := t.artifacts.WriteBytes(vttPath, []byte(toWebVTT(transcript)), true); err != nil {
		stageErr := artifactFailure(vttPath, err)
		return core.Failed(stageErr, time.Since(start))
	}

	transcriptionErr := episode.SetTranscription(transcript)
	if transcriptionErr != nil {
		return core.Failed(transcriptionErr, time.Since(start))
	}
	jsonPath := paths.Transcripts + "/transcript.json"
	if err := t.artifacts.WriteBytes(jsonPath, []byte(episode.TranscriptionJSON), true); err != nil {
		stageErr := artifactFailure(jsonPath, err)
		return core.Failed(stageErr, time.Since(start))
	}
	patch := repository.EpisodePatch{TranscriptionJSON: &episode.TranscriptionJSON}
	if err := recordSuccess(ctx, t.episodes, episode, models.StageTranscribed, patch, time.Since(start)); err != nil {
		return core.Failed(err, time.Since(start))
	}
	episode.Stage = models.StageTranscribed
	return core.Completed(time.Since(start))
}

// toWebVTT renders a minimal WebVTT cue track from word-level timings.
func toWebVTT(t collaborator.Transcript) string {
	out := "WEBVTT\n\n"
	for i, w := range t.Words {
		out += fmt.Sprintf("%d\n%s --> %s\n%s\n\n", i+1, vttTimestamp(w.Start), vttTimestamp(w.End), w.Token)
	}
	return out
}

func vttTimestamp(seconds float64) string {
	totalMs := int64(seconds * 1000)
	h := totalMs / 3_600_000
	m := (totalMs % 3_600_000) / 60_000
	s := (totalMs % 60_000) / 1000
	ms := totalMs % 1000
	return fmt.Sprintf("%02d:%02d:%02d.%03d", h, m, s, ms)
}

var _ core.Stage = (*Transcription)(nil)
