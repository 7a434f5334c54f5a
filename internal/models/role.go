package models

import "time"

// Role describes a permission grouping that can be assigned to users.
type Role struct {
	ID        uint      `gorm:"primaryKey;autoIncrement"`
	Name      string    `gorm:"type:text;uniqueIndex;not null"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

// AdminRole is the role that unlocks admin-only actions and resource grants.
const AdminRole = "System Manager"
