// Package repository defines data access interfaces for episoded entities.
// All database access goes through these interfaces, enabling easy testing
// and database backend switching.
package repository

import (
	"context"
	"time"

	"github.com/episoded/episoded/internal/models"
)

// EpisodeFilter narrows ListEpisodes results.
type EpisodeFilter struct {
	Stage *models.EpisodeStage
	Show  string
	Limit int
	Offset int
}

// EpisodePatch is a partial update applied to an episode by UpdateEpisode.
// Nil fields are left unchanged.
type EpisodePatch struct {
	Stage             *models.EpisodeStage
	SourcePath        *string
	FileSize          *int64
	DurationSeconds   *int
	LastModified      *models.Time
	MetadataJSON      *string
	TranscriptionJSON *string
	EnrichmentJSON    *string
	Error             *string
	ClearError        bool
}

// EpisodeRepository defines operations for episode persistence. All
// methods are transactional and, where noted, idempotent on repeated
// calls with the same input hash (Registry contract, §4.3).
type EpisodeRepository interface {
	// RegisterEpisode inserts a new episode, or on content-hash collision
	// updates the existing row's SourcePath and returns it unchanged
	// otherwise (invariant 1: at most one Episode per content hash).
	RegisterEpisode(ctx context.Context, draft *models.Episode) (episode *models.Episode, created bool, err error)
	GetByID(ctx context.Context, id models.ULID) (*models.Episode, error)
	GetByEpisodeID(ctx context.Context, episodeID string) (*models.Episode, error)
	FindByHash(ctx context.Context, contentHash string) (*models.Episode, error)
	FindByFilename(ctx context.Context, filename string) (*models.Episode, error)
	ListEpisodes(ctx context.Context, filter EpisodeFilter) ([]*models.Episode, int64, error)
	// UpdateEpisode applies patch to the episode identified by id within a
	// single transaction, advancing UpdatedAt.
	UpdateEpisode(ctx context.Context, id models.ULID, patch EpisodePatch) (*models.Episode, error)
	// RenameEpisode updates the episode's canonical EpisodeID, failing
	// atomically if newEpisodeID is already in use (invariant 7).
	RenameEpisode(ctx context.Context, oldEpisodeID, newEpisodeID string) (*models.Episode, error)
	// DeleteEpisode cascades to clips, assets and the processing log in
	// one transaction. It never touches on-disk files.
	DeleteEpisode(ctx context.Context, id models.ULID) error
	// AppendLog writes one append-only processing log row.
	AppendLog(ctx context.Context, episodeID models.ULID, stage models.EpisodeStage, event models.LogEvent, duration time.Duration, logErr error) error
	// GetLogs retrieves the processing log for an episode in chronological order.
	GetLogs(ctx context.Context, episodeID models.ULID) ([]*models.ProcessingLog, error)
	// Transaction runs fn within a database transaction, passing a
	// repository bound to that transaction.
	Transaction(ctx context.Context, fn func(EpisodeRepository) error) error
}

// ClipRepository defines operations for clip persistence.
type ClipRepository interface {
	Create(ctx context.Context, clip *models.Clip) error
	CreateBatch(ctx context.Context, clips []*models.Clip) error
	GetByID(ctx context.Context, id models.ULID) (*models.Clip, error)
	GetByEpisodeID(ctx context.Context, episodeID models.ULID) ([]*models.Clip, error)
	GetByIDs(ctx context.Context, ids []models.ULID) ([]*models.Clip, error)
	Update(ctx context.Context, clip *models.Clip) error
	UpdateStatus(ctx context.Context, id models.ULID, status models.ClipStatus) error
	Delete(ctx context.Context, id models.ULID) error
	DeleteByEpisodeID(ctx context.Context, episodeID models.ULID) error
}

// ClipAssetRepository defines operations for rendered clip asset persistence.
type ClipAssetRepository interface {
	Create(ctx context.Context, asset *models.ClipAsset) error
	GetByID(ctx context.Context, id models.ULID) (*models.ClipAsset, error)
	GetByClipID(ctx context.Context, clipID models.ULID) ([]*models.ClipAsset, error)
	Update(ctx context.Context, asset *models.ClipAsset) error
	Delete(ctx context.Context, id models.ULID) error
}

// JobHistoryRepository persists terminal job snapshots for audit/query
// purposes. The live Job table itself is in-memory (internal/jobqueue);
// this is the durable trail that survives a restart.
type JobHistoryRepository interface {
	Create(ctx context.Context, history *models.JobHistory) error
	GetByJobID(ctx context.Context, jobID string) (*models.JobHistory, error)
	List(ctx context.Context, jobType *models.JobType, episodeID *models.ULID, offset, limit int) ([]*models.JobHistory, int64, error)
	DeleteOlderThan(ctx context.Context, before time.Time) (int64, error)
}
