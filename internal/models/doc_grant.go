package models

import "time"

// Document operations checked by the resource-level permission oracle.
const (
	OpRead   = "read"
	OpWrite  = "write"
	OpCreate = "create"
)

// DocGrant allows one operation on one document type for one role. Handlers
// consult these grants before mutating state, independently of the
// intent-level role check.
type DocGrant struct {
	ID        uint      `gorm:"primaryKey;autoIncrement"`
	RoleID    uint      `gorm:"not null;uniqueIndex:idx_doc_grant,priority:1"`
	DocType   string    `gorm:"type:text;not null;uniqueIndex:idx_doc_grant,priority:2"`
	Operation string    `gorm:"type:text;not null;uniqueIndex:idx_doc_grant,priority:3"`
	CreatedAt time.Time `gorm:"autoCreateTime"`

	Role Role `gorm:"constraint:OnDelete:CASCADE;foreignKey:RoleID;references:ID"`
}
