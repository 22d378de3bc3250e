package stages_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/episoded/episoded/internal/collaborator"
	"github.com/episoded/episoded/internal/collaborator/collaboratortest"
	"github.com/episoded/episoded/internal/config"
	"github.com/episoded/episoded/internal/database"
	"github.com/episoded/episoded/internal/database/migrations"
	"github.com/episoded/episoded/internal/models"
	"github.com/episoded/episoded/internal/naming"
	"github.com/episoded/episoded/internal/pathresolve"
	"github.com/episoded/episoded/internal/pipeline/core"
	"github.com/episoded/episoded/internal/pipeline/stages"
	"github.com/episoded/episoded/internal/repository"
	"github.com/episoded/episoded/internal/storage"
)

type harness struct {
	episodes  repository.EpisodeRepository
	clips     repository.ClipRepository
	artifacts *storage.ArtifactStore
	paths     *pathresolve.Resolver
	naming    *naming.Service
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	cfg := config.DatabaseConfig{
		Driver:          "sqlite",
		DSN:             ":memory:",
		MaxOpenConns:    1,
		MaxIdleConns:    1,
		ConnMaxLifetime: time.Hour,
		ConnMaxIdleTime: 30 * time.Minute,
		LogLevel:        "silent",
	}
	db, err := database.New(cfg, nil, nil)
	require.NoError(t, err)

	migrator := migrations.NewMigrator(db.DB, nil)
	migrator.RegisterAll(migrations.AllMigrations())
	require.NoError(t, migrator.Init(context.Background()))
	require.NoError(t, migrator.Up(context.Background()))

	episodes := repository.NewEpisodeRepository(db.DB)
	clips := repository.NewClipRepository(db.DB)

	sandbox, err := storage.NewSandbox(t.TempDir())
	require.NoError(t, err)
	namingService := naming.New(nil)
	artifacts := storage.NewArtifactStore(sandbox, namingService)
	paths := pathresolve.New(t.TempDir(), nil, episodes)

	return &harness{episodes: episodes, clips: clips, artifacts: artifacts, paths: paths, naming: namingService}
}

func registerEpisode(t *testing.T, h *harness, sourcePath, hash string) *models.Episode {
	t.Helper()
	draft := &models.Episode{
		EpisodeID:   "ep_" + hash,
		ContentHash: hash,
		SourcePath:  sourcePath,
		Stage:       models.StageDiscovered,
	}
	ep, _, err := h.episodes.RegisterEpisode(context.Background(), draft)
	require.NoError(t, err)
	return ep
}

func TestPrepAndTranscription_FreshEpisodeAdvances(t *testing.T) {
	h := newHarness(t)
	ep := registerEpisode(t, h, "episode.mp4", "hash-1")

	prep := stages.NewPrep(h.episodes, h.paths, collaboratortest.NewProber())
	state := core.NewState(ep)

	outcome := prep.Execute(context.Background(), state, false, nil)
	assert.Equal(t, core.OutcomeCompleted, outcome.Kind)
	assert.Equal(t, models.StagePrepared, ep.Stage)

	transcriber := collaboratortest.NewTranscriber()
	transcription := stages.NewTranscription(h.episodes, h.artifacts, h.paths, transcriber)

	var lastProgress float64
	outcome = transcription.Execute(context.Background(), state, false, func(f float64, msg string) { lastProgress = f })
	assert.Equal(t, core.OutcomeCompleted, outcome.Kind)
	assert.Equal(t, models.StageTranscribed, ep.Stage)
	assert.Equal(t, 1.0, lastProgress)
}

func TestTranscription_SkippedWhenAlreadyTranscribed(t *testing.T) {
	h := newHarness(t)
	ep := registerEpisode(t, h, "episode.mp4", "hash-2")
	ep.Stage = models.StageTranscribed

	transcription := stages.NewTranscription(h.episodes, h.artifacts, h.paths, collaboratortest.NewTranscriber())
	state := core.NewState(ep)
	outcome := transcription.Execute(context.Background(), state, false, nil)
	assert.Equal(t, core.OutcomeSkipped, outcome.Kind)
}

func TestTranscription_CollaboratorFailureMidRun(t *testing.T) {
	h := newHarness(t)
	ep := registerEpisode(t, h, "episode.mp4", "hash-3")

	failing := collaboratortest.NewTranscriber()
	failing.FailAfterCalls = 2

	transcription := stages.NewTranscription(h.episodes, h.artifacts, h.paths, failing)
	state := core.NewState(ep)
	outcome := transcription.Execute(context.Background(), state, false, func(float64, string) {})

	assert.Equal(t, core.OutcomeFailed, outcome.Kind)
	require.Error(t, outcome.Err)
	assert.Equal(t, models.StageDiscovered, ep.Stage, "stage must not advance on collaborator failure")

	reloaded, err := h.episodes.GetByID(context.Background(), ep.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, reloaded.Error)
}

func TestEnrichment_RenamesEpisodeOnNewCanonicalID(t *testing.T) {
	h := newHarness(t)
	ep := registerEpisode(t, h, "episode.mp4", "hash-4")
	ep.Stage = models.StageTranscribed
	require.NoError(t, ep.SetTranscription(collaboratortest.NewTranscriber().Result))

	enrichment := stages.NewEnrichment(h.episodes, h.naming, collaboratortest.NewEnricher())
	state := core.NewState(ep)
	outcome := enrichment.Execute(context.Background(), state, false, nil)

	assert.Equal(t, core.OutcomeCompleted, outcome.Kind)
	assert.NotEmpty(t, state.RenamedEpisodeID)
	assert.NotEqual(t, "ep_hash-4", state.RenamedEpisodeID)
}

func TestClipDiscovery_CreatesClipRows(t *testing.T) {
	h := newHarness(t)
	ep := registerEpisode(t, h, "episode.mp4", "hash-5")
	ep.Stage = models.StageRendered
	require.NoError(t, ep.SetTranscription(collaboratortest.NewTranscriber().Result))

	discovery := stages.NewClipDiscovery(h.episodes, h.clips, collaboratortest.NewClipSegmenter(), collaborator.ClipConfig{MaxClips: 5})
	state := core.NewState(ep)
	outcome := discovery.Execute(context.Background(), state, false, nil)

	assert.Equal(t, core.OutcomeCompleted, outcome.Kind)
	clips, err := h.clips.GetByEpisodeID(context.Background(), ep.ID)
	require.NoError(t, err)
	assert.Len(t, clips, 1)
}
