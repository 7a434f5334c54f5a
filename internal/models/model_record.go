package models

import (
	"time"

	"github.com/google/uuid"
)

// Model record statuses.
const (
	ModelAvailable   = "Available"
	ModelDownloading = "Downloading"
	ModelDownloaded  = "Downloaded"
	ModelError       = "Error"
)

// ModelRecord is a catalog row for an NLU model known to the system.
type ModelRecord struct {
	ID               uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	ModelName        string     `gorm:"type:text;uniqueIndex;not null"`
	DisplayName      string     `gorm:"type:text;not null"`
	Size             string     `gorm:"type:text"`
	Status           string     `gorm:"type:text;not null;default:'Available'"`
	DownloadProgress int        `gorm:"not null;default:0"`
	IsActive         bool       `gorm:"not null;default:false"`
	LastUsed         *time.Time `gorm:"type:timestamptz"`
	CreatedAt        time.Time  `gorm:"autoCreateTime"`
	UpdatedAt        time.Time  `gorm:"autoUpdateTime"`
}
