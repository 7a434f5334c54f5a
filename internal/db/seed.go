package db

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gopkg.in/yaml.v3"

	"pilotd/internal/models"
)

//go:embed actions.yaml
var actionsYAML []byte

type seedAction struct {
	ActionName    string   `yaml:"action_name"`
	DisplayName   string   `yaml:"display_name"`
	Description   string   `yaml:"description"`
	Intent        string   `yaml:"intent"`
	HandlerName   string   `yaml:"handler_name"`
	IsAdminOnly   bool     `yaml:"is_admin_only"`
	RequiredRoles []string `yaml:"required_roles"`
}

type seedCatalog struct {
	Actions []seedAction                   `yaml:"actions"`
	Grants  map[string]map[string][]string `yaml:"grants"`
}

// Seed inserts baseline data: default roles, resource grants, and the action
// catalog. Existing rows are left untouched, so reseeding is safe.
func Seed(ctx context.Context, database *gorm.DB) error {
	var catalog seedCatalog
	if err := yaml.Unmarshal(actionsYAML, &catalog); err != nil {
		return fmt.Errorf("parse action catalog: %w", err)
	}

	roleNames := map[string]struct{}{models.AdminRole: {}}
	for name := range catalog.Grants {
		roleNames[name] = struct{}{}
	}
	for _, a := range catalog.Actions {
		for _, r := range a.RequiredRoles {
			roleNames[r] = struct{}{}
		}
	}

	roles := make(map[string]models.Role, len(roleNames))
	for name := range roleNames {
		role := models.Role{Name: name}
		if err := database.WithContext(ctx).
			Clauses(clause.OnConflict{DoNothing: true}).
			Create(&role).Error; err != nil {
			return err
		}
		if err := database.WithContext(ctx).Where("name = ?", name).First(&role).Error; err != nil {
			return err
		}
		roles[name] = role
	}

	for roleName, docs := range catalog.Grants {
		role := roles[roleName]
		for docType, ops := range docs {
			for _, op := range ops {
				grant := models.DocGrant{RoleID: role.ID, DocType: docType, Operation: op}
				if err := database.WithContext(ctx).
					Clauses(clause.OnConflict{DoNothing: true}).
					Create(&grant).Error; err != nil {
					return err
				}
			}
		}
	}

	for _, a := range catalog.Actions {
		required, err := json.Marshal(a.RequiredRoles)
		if err != nil {
			return err
		}
		if a.RequiredRoles == nil {
			required = []byte("[]")
		}
		def := models.ActionDefinition{
			ActionName:    a.ActionName,
			DisplayName:   a.DisplayName,
			Description:   a.Description,
			Intent:        a.Intent,
			HandlerName:   a.HandlerName,
			Enabled:       true,
			IsAdminOnly:   a.IsAdminOnly,
			RequiredRoles: required,
		}
		if err := database.WithContext(ctx).
			Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "action_name"}}, DoNothing: true}).
			Create(&def).Error; err != nil {
			return err
		}
	}
	return nil
}
