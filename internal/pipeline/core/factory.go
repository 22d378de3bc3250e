package core

import (
	"log/slog"

	"github.com/episoded/episoded/internal/collaborator"
	"github.com/episoded/episoded/internal/naming"
	"github.com/episoded/episoded/internal/pathresolve"
	"github.com/episoded/episoded/internal/repository"
	"github.com/episoded/episoded/internal/storage"
)

// Dependencies bundles everything a stage constructor needs. Passed as
// a single struct rather than individual parameters so adding a new
// collaborator or repository never touches every constructor's signature.
type Dependencies struct {
	Episodes   repository.EpisodeRepository
	Clips      repository.ClipRepository
	ClipAssets repository.ClipAssetRepository
	Artifacts  *storage.ArtifactStore
	Naming     *naming.Service
	Paths      *pathresolve.Resolver
	Logger     *slog.Logger

	Prober        collaborator.Prober
	Transcriber   collaborator.Transcriber
	Enricher      collaborator.Enricher
	ClipSegmenter collaborator.ClipSegmenter
	Encoder       collaborator.Encoder
}

// StageConstructor builds a Stage given Dependencies. Registered in
// the order the stage chain should execute (ascending by the
// EpisodeStage each one advances to).
type StageConstructor func(deps *Dependencies) Stage

// Factory assembles a single, reusable Orchestrator from registered
// stage constructors. Unlike a per-run pipeline, the orchestrator it
// produces is stateless across episodes: state for one RunToStage call
// never leaks into the next.
type Factory struct {
	deps              *Dependencies
	stageConstructors []StageConstructor
}

// NewFactory creates a new pipeline Factory.
func NewFactory(deps *Dependencies) *Factory {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Factory{deps: deps}
}

// RegisterStage adds a stage constructor to the factory. Stages run in
// the order they are registered.
func (f *Factory) RegisterStage(constructor StageConstructor) {
	f.stageConstructors = append(f.stageConstructors, constructor)
}

// Create builds the Orchestrator with all registered stages instantiated.
func (f *Factory) Create() *Orchestrator {
	stages := make([]Stage, 0, len(f.stageConstructors))
	for _, constructor := range f.stageConstructors {
		stages = append(stages, constructor(f.deps))
	}
	return NewOrchestrator(stages, f.deps.Episodes, f.deps.Artifacts, f.deps.Logger)
}
