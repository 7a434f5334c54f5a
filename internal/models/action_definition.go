package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// ActionDefinition binds an intent to a registered handler together with the
// authorization metadata the pipeline consults before dispatching. Created
// and edited by administrators; read-only to the pipeline.
type ActionDefinition struct {
	ID            uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	ActionName    string         `gorm:"type:text;uniqueIndex;not null"`
	DisplayName   string         `gorm:"type:text;not null"`
	Intent        string         `gorm:"type:text;index;not null"`
	HandlerName   string         `gorm:"type:text;not null"`
	Description   string         `gorm:"type:text"`
	Enabled       bool           `gorm:"not null;default:true"`
	IsAdminOnly   bool           `gorm:"not null;default:false"`
	RequiredRoles datatypes.JSON `gorm:"type:jsonb;default:'[]'::jsonb"`
	CreatedAt     time.Time      `gorm:"autoCreateTime"`
	UpdatedAt     time.Time      `gorm:"autoUpdateTime"`
}
