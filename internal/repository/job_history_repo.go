package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/episoded/episoded/internal/models"
	"gorm.io/gorm"
)

// jobHistoryRepo implements JobHistoryRepository using GORM.
type jobHistoryRepo struct {
	db *gorm.DB
}

// NewJobHistoryRepository creates a new JobHistoryRepository.
func NewJobHistoryRepository(db *gorm.DB) *jobHistoryRepo {
	return &jobHistoryRepo{db: db}
}

func (r *jobHistoryRepo) Create(ctx context.Context, history *models.JobHistory) error {
	if err := r.db.WithContext(ctx).Create(history).Error; err != nil {
		return fmt.Errorf("creating job history: %w", err)
	}
	return nil
}

func (r *jobHistoryRepo) GetByJobID(ctx context.Context, jobID string) (*models.JobHistory, error) {
	var history models.JobHistory
	if err := r.db.WithContext(ctx).Where("job_id = ?", jobID).First(&history).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting job history by job id: %w", err)
	}
	return &history, nil
}

func (r *jobHistoryRepo) List(ctx context.Context, jobType *models.JobType, episodeID *models.ULID, offset, limit int) ([]*models.JobHistory, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.JobHistory{})
	if jobType != nil {
		query = query.Where("type = ?", *jobType)
	}
	if episodeID != nil {
		query = query.Where("episode_id = ?", *episodeID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("counting job history: %w", err)
	}

	if limit <= 0 {
		limit = 50
	}

	var history []*models.JobHistory
	if err := query.Order("queued_at DESC").Offset(offset).Limit(limit).Find(&history).Error; err != nil {
		return nil, 0, fmt.Errorf("listing job history: %w", err)
	}
	return history, total, nil
}

func (r *jobHistoryRepo) DeleteOlderThan(ctx context.Context, before time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Where("completed_at < ?", before).Delete(&models.JobHistory{})
	if result.Error != nil {
		return 0, fmt.Errorf("deleting old job history: %w", result.Error)
	}
	return result.RowsAffected, nil
}

var _ JobHistoryRepository = (*jobHistoryRepo)(nil)
