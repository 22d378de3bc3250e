package core_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/episoded/episoded/internal/apperr"
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

// fullChain builds the five real stages wired to collaboratortest
// stubs, the same chain cmd/episoded/cmd/serve.go registers.
func fullChain(h *harness) []core.Stage {
	return []core.Stage{
		stages.NewPrep(h.episodes, h.paths, collaboratortest.NewProber()),
		stages.NewTranscription(h.episodes, h.artifacts, h.paths, collaboratortest.NewTranscriber()),
		stages.NewEnrichment(h.episodes, h.naming, collaboratortest.NewEnricher()),
		stages.NewRendering(h.episodes, h.artifacts, h.paths, collaboratortest.NewEncoder()),
		stages.NewClipDiscovery(h.episodes, h.clips, collaboratortest.NewClipSegmenter(), collaborator.ClipConfig{MaxClips: 5}),
	}
}

func TestRunToStage_FreshEpisodeIncludesPrep(t *testing.T) {
	h := newHarness(t)
	ep := registerEpisode(t, h, "episode.mp4", "hash-1")

	orch := core.NewOrchestrator(fullChain(h), h.episodes, h.artifacts, nil)
	result, err := orch.RunToStage(context.Background(), ep.EpisodeID, models.StageTranscribed, false, nil)
	require.NoError(t, err)
	assert.Equal(t, core.OutcomeCompleted, result.Outcome)
	assert.Equal(t, []string{"prep", "transcription"}, result.StagesRun, "a fresh episode must run prep, not skip straight to transcription")
	assert.Equal(t, models.StageTranscribed, result.FinalStage)
}

func TestRunToStage_WeightedProgress(t *testing.T) {
	h := newHarness(t)
	ep := registerEpisode(t, h, "episode.mp4", "hash-2")

	orch := core.NewOrchestrator(fullChain(h), h.episodes, h.artifacts, nil)

	var progressValues []float64
	track := func(fraction float64, message string) {
		progressValues = append(progressValues, fraction)
	}

	result, err := orch.RunToStage(context.Background(), ep.EpisodeID, models.StageEnriched, false, track)
	require.NoError(t, err)
	assert.Equal(t, core.OutcomeCompleted, result.Outcome)

	require.NotEmpty(t, progressValues)
	for i := 1; i < len(progressValues); i++ {
		assert.GreaterOrEqualf(t, progressValues[i], progressValues[i-1], "progress must never regress: %v", progressValues)
	}
	// Prep contributes no weight, transcription 0.55, enrichment 0.30;
	// the run's own final call always reports 1.0.
	assert.True(t, containsApprox(progressValues, 0.55), "expected a checkpoint at transcription's weight: %v", progressValues)
	assert.True(t, containsApprox(progressValues, 0.85), "expected a checkpoint at transcription+enrichment's weight: %v", progressValues)
	assert.Equal(t, 1.0, progressValues[len(progressValues)-1])
}

func containsApprox(values []float64, want float64) bool {
	for _, v := range values {
		if v-want < 1e-9 && want-v < 1e-9 {
			return true
		}
	}
	return false
}

func TestRunToStage_RenameAppliedAcrossStages(t *testing.T) {
	h := newHarness(t)
	ep := registerEpisode(t, h, "episode.mp4", "hash-3")
	oldID := ep.EpisodeID

	orch := core.NewOrchestrator(fullChain(h), h.episodes, h.artifacts, nil)
	result, err := orch.RunToStage(context.Background(), ep.EpisodeID, models.StageEnriched, false, nil)
	require.NoError(t, err)
	assert.Equal(t, core.OutcomeCompleted, result.Outcome)
	require.NotEmpty(t, result.RenamedTo)
	assert.NotEqual(t, oldID, result.RenamedTo)

	_, err = h.episodes.GetByEpisodeID(context.Background(), oldID)
	assert.Error(t, err, "old canonical id must no longer resolve after rename")

	renamed, err := h.episodes.GetByEpisodeID(context.Background(), result.RenamedTo)
	require.NoError(t, err)
	assert.Equal(t, models.StageEnriched, renamed.Stage)
}

func TestRunToStage_ForceReprocessResetsAndRegenerates(t *testing.T) {
	h := newHarness(t)
	ep := registerEpisode(t, h, "episode.mp4", "hash-4")

	orch := core.NewOrchestrator(fullChain(h), h.episodes, h.artifacts, nil)
	first, err := orch.RunToStage(context.Background(), ep.EpisodeID, models.StageRendered, false, nil)
	require.NoError(t, err)
	require.Equal(t, core.OutcomeCompleted, first.Outcome)
	require.Equal(t, models.StageRendered, first.FinalStage)

	episodeID := ep.EpisodeID
	if first.RenamedTo != "" {
		episodeID = first.RenamedTo
	}

	// A second run to the same target without force is a no-op: every
	// stage in range is already satisfied, so startIdx lands past
	// targetIdx and nothing executes.
	second, err := orch.RunToStage(context.Background(), episodeID, models.StageRendered, false, nil)
	require.NoError(t, err)
	assert.Empty(t, second.StagesRun)

	third, err := orch.RunToStage(context.Background(), episodeID, models.StageRendered, true, nil)
	require.NoError(t, err)
	assert.Equal(t, core.OutcomeCompleted, third.Outcome)
	assert.Equal(t, []string{"prep", "transcription", "enrichment", "rendering"}, third.StagesRun,
		"force must reset the episode and regenerate every stage up to target, not just the target stage")
	assert.Equal(t, models.StageRendered, third.FinalStage)

	final, err := h.episodes.GetByEpisodeID(context.Background(), episodeID)
	require.NoError(t, err)
	assert.Equal(t, models.StageRendered, final.Stage)
}

// fakeStage is a hand-written core.Stage for orchestrator-level
// behavior that the real stages can't trigger deterministically:
// cooperative cancellation between stages and concurrent-run
// rejection. onExecute receives the shared state so it can assert or
// mutate it.
type fakeStage struct {
	id        string
	stage     models.EpisodeStage
	onExecute func(ctx context.Context, state *core.State) core.Outcome
}

func (f *fakeStage) ID() string   { return f.id }
func (f *fakeStage) Name() string { return f.id }
func (f *fakeStage) EpisodeStage() models.EpisodeStage { return f.stage }
func (f *fakeStage) Execute(ctx context.Context, state *core.State, force bool, progress core.ProgressFunc) core.Outcome {
	return f.onExecute(ctx, state)
}

var _ core.Stage = (*fakeStage)(nil)

func TestRunToStage_CancellationStopsBeforeNextStage(t *testing.T) {
	h := newHarness(t)
	ep := registerEpisode(t, h, "episode.mp4", "hash-5")

	ctx, cancel := context.WithCancel(context.Background())
	var secondRan bool

	first := &fakeStage{id: "first", stage: models.StagePrepared, onExecute: func(ctx context.Context, state *core.State) core.Outcome {
		cancel()
		return core.Completed(0)
	}}
	second := &fakeStage{id: "second", stage: models.StageTranscribed, onExecute: func(ctx context.Context, state *core.State) core.Outcome {
		secondRan = true
		return core.Completed(0)
	}}

	orch := core.NewOrchestrator([]core.Stage{first, second}, h.episodes, h.artifacts, nil)
	result, err := orch.RunToStage(ctx, ep.EpisodeID, models.StageTranscribed, false, nil)

	assert.Error(t, err)
	assert.Equal(t, core.OutcomeCancelled, result.Outcome)
	assert.False(t, secondRan, "a stage boundary must observe cancellation before starting the next stage")
}

func TestRunToStage_RejectsConcurrentRunOnSameEpisode(t *testing.T) {
	h := newHarness(t)
	ep := registerEpisode(t, h, "episode.mp4", "hash-6")

	entered := make(chan struct{})
	release := make(chan struct{})
	blocking := &fakeStage{id: "blocking", stage: models.StagePrepared, onExecute: func(ctx context.Context, state *core.State) core.Outcome {
		close(entered)
		<-release
		return core.Completed(0)
	}}

	orch := core.NewOrchestrator([]core.Stage{blocking}, h.episodes, h.artifacts, nil)

	var firstErr error
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, firstErr = orch.RunToStage(context.Background(), ep.EpisodeID, models.StagePrepared, false, nil)
	}()

	<-entered
	_, err := orch.RunToStage(context.Background(), ep.EpisodeID, models.StagePrepared, false, nil)
	require.Error(t, err)
	var conflict *apperr.ConflictError
	assert.ErrorAs(t, err, &conflict)

	close(release)
	<-done
	assert.NoError(t, firstErr)
}
