package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Command log statuses. Processing is the initial state; the other three are
// terminal. A log entry never moves out of a terminal state.
const (
	StatusProcessing = "Processing"
	StatusSuccess    = "Success"
	StatusFailed     = "Failed"
	StatusDenied     = "Denied"
)

// CommandLog is the durable record of one pipeline execution attempt.
type CommandLog struct {
	ID             uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	UserID         string         `gorm:"type:text;index;not null"`
	Timestamp      time.Time      `gorm:"type:timestamptz;not null;index"`
	UserInput      string         `gorm:"type:text;not null"`
	Intent         string         `gorm:"type:text"`
	Entities       datatypes.JSON `gorm:"type:jsonb"`
	ActionExecuted *string        `gorm:"type:text"`
	Status         string         `gorm:"type:text;not null"`
	Response       string         `gorm:"type:text"`
	ErrorMessage   string         `gorm:"type:text"`
	Prompt         string         `gorm:"type:text"`
	RawResponse    string         `gorm:"type:text"`
	ExecutionTime  float64        `gorm:"type:double precision"`
	CreatedAt      time.Time      `gorm:"autoCreateTime"`
	UpdatedAt      time.Time      `gorm:"autoUpdateTime"`
}
