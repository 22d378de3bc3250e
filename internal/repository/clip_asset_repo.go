package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/episoded/episoded/internal/models"
	"gorm.io/gorm"
)

// clipAssetRepo implements ClipAssetRepository using GORM.
type clipAssetRepo struct {
	db *gorm.DB
}

// NewClipAssetRepository creates a new ClipAssetRepository.
func NewClipAssetRepository(db *gorm.DB) *clipAssetRepo {
	return &clipAssetRepo{db: db}
}

func (r *clipAssetRepo) Create(ctx context.Context, asset *models.ClipAsset) error {
	if err := r.db.WithContext(ctx).Create(asset).Error; err != nil {
		return fmt.Errorf("creating clip asset: %w", err)
	}
	return nil
}

func (r *clipAssetRepo) GetByID(ctx context.Context, id models.ULID) (*models.ClipAsset, error) {
	var asset models.ClipAsset
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&asset).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting clip asset by id: %w", err)
	}
	return &asset, nil
}

func (r *clipAssetRepo) GetByClipID(ctx context.Context, clipID models.ULID) ([]*models.ClipAsset, error) {
	var assets []*models.ClipAsset
	if err := r.db.WithContext(ctx).Where("clip_id = ?", clipID).Order("created_at ASC").Find(&assets).Error; err != nil {
		return nil, fmt.Errorf("getting clip assets by clip id: %w", err)
	}
	return assets, nil
}

func (r *clipAssetRepo) Update(ctx context.Context, asset *models.ClipAsset) error {
	if err := r.db.WithContext(ctx).Save(asset).Error; err != nil {
		return fmt.Errorf("updating clip asset: %w", err)
	}
	return nil
}

func (r *clipAssetRepo) Delete(ctx context.Context, id models.ULID) error {
	if err := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.ClipAsset{}).Error; err != nil {
		return fmt.Errorf("deleting clip asset: %w", err)
	}
	return nil
}

var _ ClipAssetRepository = (*clipAssetRepo)(nil)
