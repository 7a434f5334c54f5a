package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User represents an end user of the pilot platform. Identity comes from the
// fronting proxy; pilotd tracks enablement and role assignments.
type User struct {
	ID        uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Email     string         `gorm:"type:text;uniqueIndex;not null"`
	FirstName string         `gorm:"type:text;not null"`
	LastName  string         `gorm:"type:text"`
	Enabled   bool           `gorm:"not null;default:true"`
	CreatedAt time.Time      `gorm:"autoCreateTime"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `gorm:"index"`

	Roles []Role `gorm:"many2many:user_roles"`
}
