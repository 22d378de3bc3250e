package models

import "gorm.io/gorm"

// LogEvent represents a kind of per-stage event recorded in the
// processing log.
type LogEvent string

const (
	LogEventStarted   LogEvent = "started"
	LogEventCompleted LogEvent = "completed"
	LogEventSkipped   LogEvent = "skipped"
	LogEventFailed    LogEvent = "failed"
	LogEventCancelled LogEvent = "cancelled"
)

// ProcessingLog is an append-only audit row of one stage start/end/
// failure event for an episode. Never updated once written.
type ProcessingLog struct {
	BaseModel

	EpisodeID  ULID         `gorm:"type:varchar(26);not null;index" json:"episode_id"`
	Stage      EpisodeStage `gorm:"not null;size:30;index" json:"stage"`
	Event      LogEvent     `gorm:"not null;size:20" json:"event"`
	DurationMs int64        `json:"duration_ms,omitempty"`
	Error      string       `gorm:"size:4096" json:"error,omitempty"`
}

// TableName returns the table name for ProcessingLog.
func (ProcessingLog) TableName() string {
	return "processing_logs"
}

// Validate performs basic validation on the log row.
func (l *ProcessingLog) Validate() error {
	if l.EpisodeID.IsZero() {
		return ErrEpisodeIDRequired
	}
	if !l.Stage.IsValid() {
		return ErrInvalidStage
	}
	return nil
}

// BeforeCreate validates the log row and generates its ULID.
func (l *ProcessingLog) BeforeCreate(tx *gorm.DB) error {
	if err := l.BaseModel.BeforeCreate(tx); err != nil {
		return err
	}
	return l.Validate()
}
