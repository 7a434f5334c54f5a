package db

import (
	"context"

	"gorm.io/gorm"

	"pilotd/internal/erp"
	"pilotd/internal/models"
)

// Migrate creates or updates the assistant's tables.
func Migrate(ctx context.Context, database *gorm.DB) error {
	if err := database.WithContext(ctx).AutoMigrate(
		&models.User{},
		&models.Role{},
		&models.UserRole{},
		&models.ActionDefinition{},
		&models.CommandLog{},
		&models.UserPreference{},
		&models.ModelRecord{},
		&models.DocGrant{},
	); err != nil {
		return err
	}

	store, err := erp.NewStore(database)
	if err != nil {
		return err
	}
	return store.Migrate(ctx)
}
