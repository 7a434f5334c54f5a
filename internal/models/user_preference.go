package models

import (
	"time"

	"github.com/google/uuid"
)

// UserPreference stores per-user assistant settings. One record per user,
// created lazily with defaults on first access.
type UserPreference struct {
	ID                     uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	UserID                 string    `gorm:"type:text;uniqueIndex;not null"`
	ResponseVerbosity      string    `gorm:"type:text;not null;default:'Normal'"`
	PreferredLanguage      string    `gorm:"type:text;not null;default:'English'"`
	DefaultCompany         string    `gorm:"type:text"`
	MaxConversationHistory int       `gorm:"not null;default:50"`
	EnableNotifications    bool      `gorm:"not null;default:true"`
	AutoSaveConversations  bool      `gorm:"not null;default:true"`
	CreatedAt              time.Time `gorm:"autoCreateTime"`
	UpdatedAt              time.Time `gorm:"autoUpdateTime"`
}
