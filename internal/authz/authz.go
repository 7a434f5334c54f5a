// Package authz implements intent-level role-based authorization plus the
// resource-level permission oracle handlers consult before mutating state.
package authz

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"pilotd/internal/models"
)

// Service resolves action definitions and decides whether callers may
// execute them.
type Service struct {
	orm *gorm.DB
}

// New constructs the authorization service.
func New(orm *gorm.DB) (*Service, error) {
	if orm == nil {
		return nil, errors.New("orm is required")
	}
	return &Service{orm: orm}, nil
}

// FindAction returns the first enabled definition bound to intent, or nil
// when none exists. With duplicate definitions the oldest one wins.
func (s *Service) FindAction(ctx context.Context, intent string) (*models.ActionDefinition, error) {
	var action models.ActionDefinition
	err := s.orm.WithContext(ctx).
		Where("intent = ? AND enabled = ?", intent, true).
		Order("created_at").
		First(&action).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &action, nil
}

// Roles returns the role names assigned to a user.
func (s *Service) Roles(ctx context.Context, userID string) ([]string, error) {
	var names []string
	err := s.orm.WithContext(ctx).
		Model(&models.Role{}).
		Joins("JOIN user_roles ON user_roles.role_id = roles.id").
		Joins("JOIN users ON users.id = user_roles.user_id").
		Where("users.email = ?", userID).
		Pluck("roles.name", &names).Error
	return names, err
}

// CanExecute decides whether a caller holding userRoles may run action.
// The reason is safe to surface to the caller.
func CanExecute(action *models.ActionDefinition, userRoles []string) (bool, string) {
	if action == nil {
		return false, "No action defined"
	}
	if !action.Enabled {
		return false, "Action is disabled"
	}

	roleSet := make(map[string]struct{}, len(userRoles))
	for _, r := range userRoles {
		roleSet[r] = struct{}{}
	}

	if action.IsAdminOnly {
		if _, ok := roleSet[models.AdminRole]; !ok {
			return false, fmt.Sprintf("This action requires %s role", models.AdminRole)
		}
	}

	required, err := decodeRoles(action.RequiredRoles)
	if err != nil {
		return false, "Action role configuration is invalid"
	}
	if len(required) > 0 {
		for _, r := range required {
			if _, ok := roleSet[r]; ok {
				return true, ""
			}
		}
		return false, fmt.Sprintf("This action requires one of these roles: %s", strings.Join(required, ", "))
	}

	return true, ""
}

// CheckPermission composes FindAction and CanExecute. A missing definition is
// a distinct denial from an insufficient role.
func (s *Service) CheckPermission(ctx context.Context, intent, userID string) (bool, string, *models.ActionDefinition) {
	action, err := s.FindAction(ctx, intent)
	if err != nil {
		return false, "Unable to resolve action for intent", nil
	}
	if action == nil {
		return false, fmt.Sprintf("No action defined for intent: %s", intent), nil
	}

	roles, err := s.Roles(ctx, userID)
	if err != nil {
		return false, "Unable to resolve user roles", action
	}

	ok, reason := CanExecute(action, roles)
	return ok, reason, action
}

// ActionSummary is the caller-visible description of one available action.
type ActionSummary struct {
	ActionName  string `json:"action_name"`
	DisplayName string `json:"display_name"`
	Description string `json:"description"`
	Intent      string `json:"intent"`
}

// AvailableActions lists the enabled actions the user may execute.
func (s *Service) AvailableActions(ctx context.Context, userID string) ([]ActionSummary, error) {
	roles, err := s.Roles(ctx, userID)
	if err != nil {
		return nil, err
	}

	var actions []models.ActionDefinition
	if err := s.orm.WithContext(ctx).
		Where("enabled = ?", true).
		Order("action_name").
		Find(&actions).Error; err != nil {
		return nil, err
	}

	available := make([]ActionSummary, 0, len(actions))
	for i := range actions {
		if ok, _ := CanExecute(&actions[i], roles); !ok {
			continue
		}
		available = append(available, ActionSummary{
			ActionName:  actions[i].ActionName,
			DisplayName: actions[i].DisplayName,
			Description: actions[i].Description,
			Intent:      actions[i].Intent,
		})
	}
	return available, nil
}

// Permissions summarizes a caller's authorization state.
type Permissions struct {
	Roles            []string        `json:"roles"`
	AvailableActions []ActionSummary `json:"available_actions"`
	IsAdmin          bool            `json:"is_admin"`
}

// UserPermissions returns roles, available actions, and admin standing.
func (s *Service) UserPermissions(ctx context.Context, userID string) (Permissions, error) {
	roles, err := s.Roles(ctx, userID)
	if err != nil {
		return Permissions{}, err
	}
	actions, err := s.AvailableActions(ctx, userID)
	if err != nil {
		return Permissions{}, err
	}

	perms := Permissions{
		Roles:            roles,
		AvailableActions: actions,
	}
	for _, r := range roles {
		if r == models.AdminRole {
			perms.IsAdmin = true
			break
		}
	}
	return perms, nil
}

// IsAdmin reports whether the user holds the admin role.
func (s *Service) IsAdmin(ctx context.Context, userID string) bool {
	roles, err := s.Roles(ctx, userID)
	if err != nil {
		return false
	}
	for _, r := range roles {
		if r == models.AdminRole {
			return true
		}
	}
	return false
}

// HasDocPermission is the resource-level oracle: it checks whether any of the
// user's roles grants op on docType. Admins pass implicitly. Handlers call
// this before any mutation, independent of the intent-level check.
func (s *Service) HasDocPermission(ctx context.Context, docType, op, userID string) bool {
	roles, err := s.Roles(ctx, userID)
	if err != nil {
		return false
	}
	for _, r := range roles {
		if r == models.AdminRole {
			return true
		}
	}
	if len(roles) == 0 {
		return false
	}

	var count int64
	err = s.orm.WithContext(ctx).
		Model(&models.DocGrant{}).
		Joins("JOIN roles ON roles.id = doc_grants.role_id").
		Where("roles.name IN ? AND doc_grants.doc_type = ? AND doc_grants.operation = ?", roles, docType, op).
		Count(&count).Error
	if err != nil {
		return false
	}
	return count > 0
}

func decodeRoles(raw []byte) ([]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var roles []string
	if err := json.Unmarshal(raw, &roles); err != nil {
		return nil, err
	}
	return roles, nil
}
