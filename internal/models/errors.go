package models

import (
	"errors"
	"fmt"
)

// ErrValidation represents a validation error with field and message.
type ErrValidation struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e ErrValidation) Error() string {
	return fmt.Sprintf("validation error on field %s: %s", e.Field, e.Message)
}

// Common validation errors for models.
var (
	// ErrShowRequired indicates a required show field is empty.
	ErrShowRequired = errors.New("show is required")

	// ErrSeasonRequired indicates a required season number is missing or zero.
	ErrSeasonRequired = errors.New("season is required")

	// ErrEpisodeNumberRequired indicates a required episode number is missing or zero.
	ErrEpisodeNumberRequired = errors.New("episode number is required")

	// ErrSourcePathRequired indicates a required source path field is empty.
	ErrSourcePathRequired = errors.New("source_path is required")

	// ErrContentHashRequired indicates a required content hash field is empty.
	ErrContentHashRequired = errors.New("content_hash is required")

	// ErrInvalidStage indicates an episode stage value is not one of the known stages.
	ErrInvalidStage = errors.New("invalid stage")

	// ErrStageRegression indicates an episode's stage would move backwards.
	ErrStageRegression = errors.New("stage cannot move backwards")

	// ErrEpisodeIDRequired indicates a required episode ID field is zero.
	ErrEpisodeIDRequired = errors.New("episode_id is required")

	// ErrJobTypeRequired indicates a required job type field is empty.
	ErrJobTypeRequired = errors.New("job_type is required")

	// ErrTargetIDRequired indicates a required target ID field is empty.
	ErrTargetIDRequired = errors.New("target_id is required")

	// ErrInvalidTimeRange indicates end time is before start time.
	ErrInvalidTimeRange = errors.New("end time must be after start time")

	// ErrStartTimeRequired indicates a required start time field is missing.
	ErrStartTimeRequired = errors.New("start_time is required")

	// ErrFilePathRequired indicates a required file path field is empty.
	ErrFilePathRequired = errors.New("file_path is required")
)
