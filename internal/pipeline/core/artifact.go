package core

import (
	"time"

	"github.com/episoded/episoded/internal/models"
)

// ArtifactType identifies the kind of output a stage produced.
type ArtifactType string

const (
	// ArtifactTypeTranscript is the STT output for an episode.
	ArtifactTypeTranscript ArtifactType = "transcript"

	// ArtifactTypeEnrichment is the derived metadata/summary for an episode.
	ArtifactTypeEnrichment ArtifactType = "enrichment"

	// ArtifactTypeHTML is a rendered HTML page for an episode.
	ArtifactTypeHTML ArtifactType = "html"

	// ArtifactTypeSocial is a rendered social-share asset for an episode.
	ArtifactTypeSocial ArtifactType = "social"

	// ArtifactTypeClip is a rendered short-form clip derived from an episode.
	ArtifactTypeClip ArtifactType = "clip"
)

// Artifact describes one output a Stage produced, recorded alongside
// the Episode stage advance so ProcessingLog has something concrete
// to point at beyond "stage X completed".
type Artifact struct {
	ID          models.ULID
	Type        ArtifactType
	FilePath    string
	CreatedBy   string
	FileSize    int64
	CreatedAt   time.Time
	Metadata    map[string]any
}

// NewArtifact creates a new artifact with the given type, attributed
// to the stage ID that created it.
func NewArtifact(artifactType ArtifactType, createdBy string) Artifact {
	return Artifact{
		ID:        models.NewULID(),
		Type:      artifactType,
		CreatedBy: createdBy,
		CreatedAt: time.Now(),
		Metadata:  make(map[string]any),
	}
}

// WithFilePath sets the file path for the artifact.
func (a Artifact) WithFilePath(path string) Artifact {
	a.FilePath = path
	return a
}

// WithFileSize sets the file size for the artifact.
func (a Artifact) WithFileSize(size int64) Artifact {
	a.FileSize = size
	return a
}

// WithMetadata adds metadata to the artifact.
func (a Artifact) WithMetadata(key string, value any) Artifact {
	a.Metadata[key] = value
	return a
}
