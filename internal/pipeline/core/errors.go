package core

import (
	"errors"
	"fmt"
)

// Pipeline errors.
var (
	// ErrStageNotFound indicates a requested stage was not registered.
	ErrStageNotFound = errors.New("stage not found")

	// ErrInvalidTargetStage indicates a target stage unknown to the declared order.
	ErrInvalidTargetStage = errors.New("invalid target stage")

	// ErrEpisodeNotFound indicates the orchestrator was asked to drive an
	// episode the registry does not know about.
	ErrEpisodeNotFound = errors.New("episode not found")
)

// StageError wraps an error with stage context, the teacher's pattern
// for attributing a failure to the stage that produced it.
type StageError struct {
	StageID   string
	StageName string
	Err       error
}

// Error implements the error interface.
func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s (%s): %v", e.StageName, e.StageID, e.Err)
}

// Unwrap returns the underlying error.
func (e *StageError) Unwrap() error {
	return e.Err
}

// NewStageError creates a new StageError.
func NewStageError(stageID, stageName string, err error) *StageError {
	return &StageError{
		StageID:   stageID,
		StageName: stageName,
		Err:       err,
	}
}

// ConfigurationError represents a missing or invalid dependency supplied
// to a Builder/Factory.
type ConfigurationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error for %s: %s", e.Field, e.Message)
}

// NewConfigurationError creates a new ConfigurationError.
func NewConfigurationError(field, message string) *ConfigurationError {
	return &ConfigurationError{
		Field:   field,
		Message: message,
	}
}
