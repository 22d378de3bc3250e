package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/episoded/episoded/internal/apperr"
	"github.com/episoded/episoded/internal/models"
	"gorm.io/gorm"
)

// clipRepo implements ClipRepository using GORM.
type clipRepo struct {
	db *gorm.DB
}

// NewClipRepository creates a new ClipRepository.
func NewClipRepository(db *gorm.DB) *clipRepo {
	return &clipRepo{db: db}
}

func (r *clipRepo) Create(ctx context.Context, clip *models.Clip) error {
	if err := r.db.WithContext(ctx).Create(clip).Error; err != nil {
		return fmt.Errorf("creating clip: %w", err)
	}
	return nil
}

func (r *clipRepo) CreateBatch(ctx context.Context, clips []*models.Clip) error {
	if len(clips) == 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).Create(&clips).Error; err != nil {
		return fmt.Errorf("creating clip batch: %w", err)
	}
	return nil
}

func (r *clipRepo) GetByID(ctx context.Context, id models.ULID) (*models.Clip, error) {
	var clip models.Clip
	if err := r.db.WithContext(ctx).Preload("Assets").Where("id = ?", id).First(&clip).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &apperr.NotFoundError{Kind: "clip", ID: id.String()}
		}
		return nil, fmt.Errorf("getting clip by id: %w", err)
	}
	return &clip, nil
}

func (r *clipRepo) GetByEpisodeID(ctx context.Context, episodeID models.ULID) ([]*models.Clip, error) {
	var clips []*models.Clip
	if err := r.db.WithContext(ctx).Preload("Assets").Where("episode_id = ?", episodeID).Order("score DESC").Find(&clips).Error; err != nil {
		return nil, fmt.Errorf("getting clips by episode id: %w", err)
	}
	return clips, nil
}

func (r *clipRepo) GetByIDs(ctx context.Context, ids []models.ULID) ([]*models.Clip, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var clips []*models.Clip
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&clips).Error; err != nil {
		return nil, fmt.Errorf("getting clips by ids: %w", err)
	}
	return clips, nil
}

func (r *clipRepo) Update(ctx context.Context, clip *models.Clip) error {
	if err := r.db.WithContext(ctx).Save(clip).Error; err != nil {
		return fmt.Errorf("updating clip: %w", err)
	}
	return nil
}

func (r *clipRepo) UpdateStatus(ctx context.Context, id models.ULID, status models.ClipStatus) error {
	result := r.db.WithContext(ctx).Model(&models.Clip{}).Where("id = ?", id).UpdateColumn("status", status)
	if result.Error != nil {
		return fmt.Errorf("updating clip status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("clip %s: %w", id, gorm.ErrRecordNotFound)
	}
	return nil
}

func (r *clipRepo) Delete(ctx context.Context, id models.ULID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("clip_id = ?", id).Delete(&models.ClipAsset{}).Error; err != nil {
			return fmt.Errorf("deleting clip assets: %w", err)
		}
		if err := tx.Where("id = ?", id).Delete(&models.Clip{}).Error; err != nil {
			return fmt.Errorf("deleting clip: %w", err)
		}
		return nil
	})
}

func (r *clipRepo) DeleteByEpisodeID(ctx context.Context, episodeID models.ULID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var clipIDs []models.ULID
		if err := tx.Model(&models.Clip{}).Where("episode_id = ?", episodeID).Pluck("id", &clipIDs).Error; err != nil {
			return fmt.Errorf("listing clips for delete: %w", err)
		}
		if len(clipIDs) > 0 {
			if err := tx.Where("clip_id IN ?", clipIDs).Delete(&models.ClipAsset{}).Error; err != nil {
				return fmt.Errorf("deleting clip assets: %w", err)
			}
		}
		if err := tx.Where("episode_id = ?", episodeID).Delete(&models.Clip{}).Error; err != nil {
			return fmt.Errorf("deleting clips: %w", err)
		}
		return nil
	})
}

var _ ClipRepository = (*clipRepo)(nil)
