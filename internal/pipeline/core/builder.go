package core

import (
	"log/slog"

	"github.com/episoded/episoded/internal/collaborator"
	"github.com/episoded/episoded/internal/naming"
	"github.com/episoded/episoded/internal/pathresolve"
	"github.com/episoded/episoded/internal/repository"
	"github.com/episoded/episoded/internal/storage"
)

// Builder provides a fluent interface for constructing a Factory,
// mirroring the teacher's dependency-builder pattern so wiring all of
// an Orchestrator's collaborators reads as one chain in cmd/.
type Builder struct {
	deps Dependencies
}

// NewBuilder creates a new pipeline Builder.
func NewBuilder() *Builder {
	return &Builder{}
}

func (b *Builder) WithEpisodeRepository(repo repository.EpisodeRepository) *Builder {
	b.deps.Episodes = repo
	return b
}

func (b *Builder) WithClipRepository(repo repository.ClipRepository) *Builder {
	b.deps.Clips = repo
	return b
}

func (b *Builder) WithClipAssetRepository(repo repository.ClipAssetRepository) *Builder {
	b.deps.ClipAssets = repo
	return b
}

func (b *Builder) WithArtifactStore(store *storage.ArtifactStore) *Builder {
	b.deps.Artifacts = store
	return b
}

func (b *Builder) WithNaming(svc *naming.Service) *Builder {
	b.deps.Naming = svc
	return b
}

func (b *Builder) WithPathResolver(resolver *pathresolve.Resolver) *Builder {
	b.deps.Paths = resolver
	return b
}

func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.deps.Logger = logger
	return b
}

func (b *Builder) WithProber(p collaborator.Prober) *Builder {
	b.deps.Prober = p
	return b
}

func (b *Builder) WithTranscriber(t collaborator.Transcriber) *Builder {
	b.deps.Transcriber = t
	return b
}

func (b *Builder) WithEnricher(e collaborator.Enricher) *Builder {
	b.deps.Enricher = e
	return b
}

func (b *Builder) WithClipSegmenter(c collaborator.ClipSegmenter) *Builder {
	b.deps.ClipSegmenter = c
	return b
}

func (b *Builder) WithEncoder(e collaborator.Encoder) *Builder {
	b.deps.Encoder = e
	return b
}

// Build validates required dependencies and returns a Factory ready to
// have stages registered on it.
func (b *Builder) Build() (*Factory, error) {
	if err := b.validate(); err != nil {
		return nil, err
	}
	return NewFactory(&b.deps), nil
}

func (b *Builder) validate() error {
	if b.deps.Episodes == nil {
		return NewConfigurationError("episodes", "episode repository is required")
	}
	if b.deps.Artifacts == nil {
		return NewConfigurationError("artifacts", "artifact store is required")
	}
	if b.deps.Naming == nil {
		return NewConfigurationError("naming", "naming service is required")
	}
	return nil
}
