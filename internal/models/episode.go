package models

import (
	"gorm.io/gorm"
)

// EpisodeStage represents the furthest pipeline stage an Episode has
// reached. Stages only ever advance, except through an explicit
// force-reprocess that first clears dependent artifacts.
type EpisodeStage string

const (
	StageDiscovered      EpisodeStage = "discovered"
	StagePrepared        EpisodeStage = "prepared"
	StageTranscribed     EpisodeStage = "transcribed"
	StageEnriched        EpisodeStage = "enriched"
	StageRendered        EpisodeStage = "rendered"
	StageClipsDiscovered EpisodeStage = "clips_discovered"
)

// stageOrder defines the monotonic ordering invariant 2 relies on.
var stageOrder = map[EpisodeStage]int{
	StageDiscovered:      0,
	StagePrepared:        1,
	StageTranscribed:     2,
	StageEnriched:        3,
	StageRendered:        4,
	StageClipsDiscovered: 5,
}

// IsValid reports whether s is one of the declared stages.
func (s EpisodeStage) IsValid() bool {
	_, ok := stageOrder[s]
	return ok
}

// Before reports whether s precedes other in the declared stage order.
func (s EpisodeStage) Before(other EpisodeStage) bool {
	return stageOrder[s] < stageOrder[other]
}

// AtLeast reports whether s has reached at least other.
func (s EpisodeStage) AtLeast(other EpisodeStage) bool {
	return stageOrder[s] >= stageOrder[other]
}

// EpisodeMetadata holds the AI-extracted and/or discovered descriptive
// attributes of an episode. Opaque to the core beyond these named
// fields: the pipeline reads and writes it as a whole, never inspects
// it for control flow.
type EpisodeMetadata struct {
	ShowName      string `json:"show_name,omitempty"`
	Title         string `json:"title,omitempty"`
	EpisodeNumber int    `json:"episode_number,omitempty"`
	HostName      string `json:"host_name,omitempty"`
	AirDate       string `json:"air_date,omitempty"`
	Language      string `json:"language,omitempty"`
}

// Episode is the central entity of the pipeline: one source video file
// moving through discovery, prep, transcription, enrichment, rendering,
// and optional clip discovery.
type Episode struct {
	BaseModel

	// EpisodeID is the canonical, URL-safe identifier. Distinct from
	// BaseModel.ID (the ULID primary key) because it is recomputed after
	// enrichment and must be renameable without changing row identity
	// from the caller's point of view for foreign keys, while still
	// being the value callers use as a path component and lookup key.
	EpisodeID string `gorm:"not null;size:255;uniqueIndex" json:"episode_id"`

	// ContentHash is the SHA-256 of the source file bytes, unique across
	// the store (invariant 1).
	ContentHash string `gorm:"not null;size:64;uniqueIndex" json:"content_hash"`

	// SourcePath is the resolved path, stored in portable (project-root
	// relative where possible) form.
	SourcePath string `gorm:"not null;size:1024" json:"source_path"`

	FileSize        int64 `json:"file_size"`
	DurationSeconds int   `json:"duration_seconds"`
	LastModified    Time  `json:"last_modified"`

	// Stage is the furthest pipeline stage reached.
	Stage EpisodeStage `gorm:"not null;size:30;index;default:'discovered'" json:"stage"`

	// Metadata, Transcription and Enrichment are stored as JSON text
	// columns so the schema does not need to change as collaborators
	// evolve their output shape; only the accessor methods below know
	// how to interpret them.
	MetadataJSON      string `gorm:"column:metadata;type:text" json:"-"`
	TranscriptionJSON string `gorm:"column:transcription;type:text" json:"-"`
	EnrichmentJSON    string `gorm:"column:enrichment;type:text" json:"-"`

	// Error holds the last error message; cleared on a successful re-run
	// of the stage that produced it.
	Error string `gorm:"size:4096" json:"error,omitempty"`

	Clips []Clip `gorm:"constraint:OnDelete:CASCADE" json:"clips,omitempty"`
}

// TableName returns the table name for Episode.
func (Episode) TableName() string {
	return "episodes"
}

// GetMetadata deserializes MetadataJSON.
func (e *Episode) GetMetadata() (EpisodeMetadata, error) {
	var m EpisodeMetadata
	if e.MetadataJSON == "" {
		return m, nil
	}
	err := unmarshalJSON(e.MetadataJSON, &m)
	return m, err
}

// SetMetadata serializes m into MetadataJSON.
func (e *Episode) SetMetadata(m EpisodeMetadata) error {
	s, err := marshalJSON(m)
	if err != nil {
		return err
	}
	e.MetadataJSON = s
	return nil
}

// GetTranscription deserializes TranscriptionJSON into dst.
func (e *Episode) GetTranscription(dst any) error {
	return unmarshalJSON(e.TranscriptionJSON, dst)
}

// SetTranscription serializes v into TranscriptionJSON.
func (e *Episode) SetTranscription(v any) error {
	s, err := marshalJSON(v)
	if err != nil {
		return err
	}
	e.TranscriptionJSON = s
	return nil
}

// GetEnrichment deserializes EnrichmentJSON into dst.
func (e *Episode) GetEnrichment(dst any) error {
	return unmarshalJSON(e.EnrichmentJSON, dst)
}

// SetEnrichment serializes v into EnrichmentJSON.
func (e *Episode) SetEnrichment(v any) error {
	s, err := marshalJSON(v)
	if err != nil {
		return err
	}
	e.EnrichmentJSON = s
	return nil
}

// AdvanceStage moves the episode to next, rejecting any attempt to move
// backwards (invariant 2). Callers that need to regress a stage must go
// through ArtifactStore.CleanupPartial and set Stage directly as part
// of a force-reprocess transaction.
func (e *Episode) AdvanceStage(next EpisodeStage) error {
	if !next.IsValid() {
		return ErrInvalidStage
	}
	if next.Before(e.Stage) {
		return ErrStageRegression
	}
	e.Stage = next
	return nil
}

// Validate performs basic validation on the episode.
func (e *Episode) Validate() error {
	if e.SourcePath == "" {
		return ErrSourcePathRequired
	}
	if e.ContentHash == "" {
		return ErrContentHashRequired
	}
	if e.Stage == "" {
		e.Stage = StageDiscovered
	}
	if !e.Stage.IsValid() {
		return ErrInvalidStage
	}
	return nil
}

// BeforeCreate validates the episode and generates its ULID.
func (e *Episode) BeforeCreate(tx *gorm.DB) error {
	if err := e.BaseModel.BeforeCreate(tx); err != nil {
		return err
	}
	return e.Validate()
}

// BeforeUpdate validates the episode before update.
func (e *Episode) BeforeUpdate(tx *gorm.DB) error {
	return e.Validate()
}
