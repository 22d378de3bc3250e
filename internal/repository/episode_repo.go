package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/episoded/episoded/internal/apperr"
	"github.com/episoded/episoded/internal/database"
	"github.com/episoded/episoded/internal/models"
	"gorm.io/gorm"
)

// episodeRepo implements EpisodeRepository using GORM.
type episodeRepo struct {
	db *gorm.DB
}

// NewEpisodeRepository creates a new EpisodeRepository.
func NewEpisodeRepository(db *gorm.DB) *episodeRepo {
	return &episodeRepo{db: db}
}

// RegisterEpisode implements the DedupIndex contract (§4.8): on hash
// collision, update the existing row's SourcePath and return it
// unchanged otherwise; never create a second row for the same hash.
func (r *episodeRepo) RegisterEpisode(ctx context.Context, draft *models.Episode) (*models.Episode, bool, error) {
	var result *models.Episode
	var created bool

	err := database.WithRetry(ctx, func() error {
		return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var existing models.Episode
			err := tx.Where("content_hash = ?", draft.ContentHash).First(&existing).Error
			switch {
			case errors.Is(err, gorm.ErrRecordNotFound):
				if err := tx.Create(draft).Error; err != nil {
					return fmt.Errorf("registering episode: %w", err)
				}
				result = draft
				created = true
				return nil
			case err != nil:
				return fmt.Errorf("finding episode by hash: %w", err)
			default:
				if existing.SourcePath != draft.SourcePath {
					existing.SourcePath = draft.SourcePath
					existing.LastModified = draft.LastModified
					existing.FileSize = draft.FileSize
					if err := tx.Save(&existing).Error; err != nil {
						return fmt.Errorf("updating moved episode: %w", err)
					}
				}
				result = &existing
				created = false
				return nil
			}
		})
	})
	if err != nil {
		return nil, false, err
	}
	return result, created, nil
}

func (r *episodeRepo) GetByID(ctx context.Context, id models.ULID) (*models.Episode, error) {
	var ep models.Episode
	if err := r.db.WithContext(ctx).Preload("Clips").Where("id = ?", id).First(&ep).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &apperr.NotFoundError{Kind: "episode", ID: id.String()}
		}
		return nil, fmt.Errorf("getting episode by id: %w", err)
	}
	return &ep, nil
}

func (r *episodeRepo) GetByEpisodeID(ctx context.Context, episodeID string) (*models.Episode, error) {
	var ep models.Episode
	if err := r.db.WithContext(ctx).Where("episode_id = ?", episodeID).First(&ep).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &apperr.NotFoundError{Kind: "episode", ID: episodeID}
		}
		return nil, fmt.Errorf("getting episode by episode_id: %w", err)
	}
	return &ep, nil
}

func (r *episodeRepo) FindByHash(ctx context.Context, contentHash string) (*models.Episode, error) {
	var ep models.Episode
	if err := r.db.WithContext(ctx).Where("content_hash = ?", contentHash).First(&ep).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("finding episode by hash: %w", err)
	}
	return &ep, nil
}

func (r *episodeRepo) FindByFilename(ctx context.Context, filename string) (*models.Episode, error) {
	var ep models.Episode
	if err := r.db.WithContext(ctx).Where("source_path LIKE ?", "%"+filename).First(&ep).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("finding episode by filename: %w", err)
	}
	return &ep, nil
}

func (r *episodeRepo) ListEpisodes(ctx context.Context, filter EpisodeFilter) ([]*models.Episode, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Episode{})
	if filter.Stage != nil {
		query = query.Where("stage = ?", *filter.Stage)
	}
	if filter.Show != "" {
		query = query.Where("metadata LIKE ?", "%\"show_name\":\""+filter.Show+"\"%")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("counting episodes: %w", err)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}

	var episodes []*models.Episode
	if err := query.Order("created_at DESC").Offset(filter.Offset).Limit(limit).Find(&episodes).Error; err != nil {
		return nil, 0, fmt.Errorf("listing episodes: %w", err)
	}
	return episodes, total, nil
}

func (r *episodeRepo) UpdateEpisode(ctx context.Context, id models.ULID, patch EpisodePatch) (*models.Episode, error) {
	var ep *models.Episode
	err := database.WithRetry(ctx, func() error {
		return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var existing models.Episode
			if err := tx.Where("id = ?", id).First(&existing).Error; err != nil {
				return fmt.Errorf("loading episode for update: %w", err)
			}
			applyEpisodePatch(&existing, patch)
			if err := tx.Save(&existing).Error; err != nil {
				return fmt.Errorf("updating episode: %w", err)
			}
			ep = &existing
			return nil
		})
	})
	return ep, err
}

func applyEpisodePatch(ep *models.Episode, patch EpisodePatch) {
	if patch.Stage != nil {
		ep.Stage = *patch.Stage
	}
	if patch.SourcePath != nil {
		ep.SourcePath = *patch.SourcePath
	}
	if patch.FileSize != nil {
		ep.FileSize = *patch.FileSize
	}
	if patch.DurationSeconds != nil {
		ep.DurationSeconds = *patch.DurationSeconds
	}
	if patch.LastModified != nil {
		ep.LastModified = *patch.LastModified
	}
	if patch.MetadataJSON != nil {
		ep.MetadataJSON = *patch.MetadataJSON
	}
	if patch.TranscriptionJSON != nil {
		ep.TranscriptionJSON = *patch.TranscriptionJSON
	}
	if patch.EnrichmentJSON != nil {
		ep.EnrichmentJSON = *patch.EnrichmentJSON
	}
	if patch.ClearError {
		ep.Error = ""
	} else if patch.Error != nil {
		ep.Error = *patch.Error
	}
}

// RenameEpisode implements invariant 7: the canonical ID changes after
// enrichment; the old record is renamed, never duplicated, and the
// rename fails atomically if newEpisodeID is already taken.
func (r *episodeRepo) RenameEpisode(ctx context.Context, oldEpisodeID, newEpisodeID string) (*models.Episode, error) {
	var ep *models.Episode
	err := database.WithRetry(ctx, func() error {
		return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var existing models.Episode
			if err := tx.Where("episode_id = ?", oldEpisodeID).First(&existing).Error; err != nil {
				return fmt.Errorf("loading episode for rename: %w", err)
			}

			var collision models.Episode
			err := tx.Where("episode_id = ?", newEpisodeID).First(&collision).Error
			if err == nil {
				return fmt.Errorf("rename target %q already exists", newEpisodeID)
			}
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("checking rename target: %w", err)
			}

			existing.EpisodeID = newEpisodeID
			if err := tx.Save(&existing).Error; err != nil {
				return fmt.Errorf("renaming episode: %w", err)
			}
			ep = &existing
			return nil
		})
	})
	return ep, err
}

// DeleteEpisode cascades to clips, assets, and the processing log
// (invariant 3) in a single transaction. GORM's constraint:OnDelete:CASCADE
// tag on Episode.Clips and Clip.Assets relies on the underlying database
// enforcing foreign keys (SQLite's pragma is enabled in database.go); the
// explicit deletes here make the cascade work identically even when the
// driver does not enforce FKs.
func (r *episodeRepo) DeleteEpisode(ctx context.Context, id models.ULID) error {
	return database.WithRetry(ctx, func() error {
		return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var clipIDs []models.ULID
			if err := tx.Model(&models.Clip{}).Where("episode_id = ?", id).Pluck("id", &clipIDs).Error; err != nil {
				return fmt.Errorf("listing clips for delete: %w", err)
			}
			if len(clipIDs) > 0 {
				if err := tx.Where("clip_id IN ?", clipIDs).Delete(&models.ClipAsset{}).Error; err != nil {
					return fmt.Errorf("deleting clip assets: %w", err)
				}
			}
			if err := tx.Where("episode_id = ?", id).Delete(&models.Clip{}).Error; err != nil {
				return fmt.Errorf("deleting clips: %w", err)
			}
			if err := tx.Where("episode_id = ?", id).Delete(&models.ProcessingLog{}).Error; err != nil {
				return fmt.Errorf("deleting processing log: %w", err)
			}
			if err := tx.Where("id = ?", id).Delete(&models.Episode{}).Error; err != nil {
				return fmt.Errorf("deleting episode: %w", err)
			}
			return nil
		})
	})
}

func (r *episodeRepo) AppendLog(ctx context.Context, episodeID models.ULID, stage models.EpisodeStage, event models.LogEvent, duration time.Duration, logErr error) error {
	entry := &models.ProcessingLog{
		EpisodeID:  episodeID,
		Stage:      stage,
		Event:      event,
		DurationMs: duration.Milliseconds(),
	}
	if logErr != nil {
		entry.Error = logErr.Error()
	}
	if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("appending processing log: %w", err)
	}
	return nil
}

func (r *episodeRepo) GetLogs(ctx context.Context, episodeID models.ULID) ([]*models.ProcessingLog, error) {
	var logs []*models.ProcessingLog
	if err := r.db.WithContext(ctx).Where("episode_id = ?", episodeID).Order("created_at ASC").Find(&logs).Error; err != nil {
		return nil, fmt.Errorf("getting processing logs: %w", err)
	}
	return logs, nil
}

func (r *episodeRepo) Transaction(ctx context.Context, fn func(EpisodeRepository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&episodeRepo{db: tx})
	})
}

// Ensure episodeRepo implements EpisodeRepository at compile time.
var _ EpisodeRepository = (*episodeRepo)(nil)
