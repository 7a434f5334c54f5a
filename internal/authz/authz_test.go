package authz

import (
	"strings"
	"testing"

	"gorm.io/datatypes"

	"pilotd/internal/models"
)

func TestCanExecute(t *testing.T) {
	tests := []struct {
		name       string
		action     *models.ActionDefinition
		roles      []string
		wantOK     bool
		wantReason string
	}{
		{
			name:       "nil action",
			action:     nil,
			roles:      []string{"Sales User"},
			wantOK:     false,
			wantReason: "No action defined",
		},
		{
			name: "disabled action",
			action: &models.ActionDefinition{
				ActionName: "create_customer",
				Enabled:    false,
			},
			roles:      []string{models.AdminRole},
			wantOK:     false,
			wantReason: "Action is disabled",
		},
		{
			name: "admin only without admin role",
			action: &models.ActionDefinition{
				ActionName:  "run_admin_command",
				Enabled:     true,
				IsAdminOnly: true,
			},
			roles:      []string{"Sales User"},
			wantOK:     false,
			wantReason: "This action requires System Manager role",
		},
		{
			name: "admin only with admin role",
			action: &models.ActionDefinition{
				ActionName:  "run_admin_command",
				Enabled:     true,
				IsAdminOnly: true,
			},
			roles:  []string{models.AdminRole},
			wantOK: true,
		},
		{
			name: "required role missing",
			action: &models.ActionDefinition{
				ActionName:    "create_customer",
				Enabled:       true,
				RequiredRoles: datatypes.JSON(`["Sales User", "Accounts User"]`),
			},
			roles:      []string{"Stock User"},
			wantOK:     false,
			wantReason: "This action requires one of these roles: Sales User, Accounts User",
		},
		{
			name: "one required role held",
			action: &models.ActionDefinition{
				ActionName:    "create_customer",
				Enabled:       true,
				RequiredRoles: datatypes.JSON(`["Sales User", "Accounts User"]`),
			},
			roles:  []string{"Accounts User"},
			wantOK: true,
		},
		{
			name: "no required roles means open to any session",
			action: &models.ActionDefinition{
				ActionName: "general_query",
				Enabled:    true,
			},
			roles:  nil,
			wantOK: true,
		},
		{
			name: "invalid role configuration",
			action: &models.ActionDefinition{
				ActionName:    "create_customer",
				Enabled:       true,
				RequiredRoles: datatypes.JSON(`{not json`),
			},
			roles:      []string{"Sales User"},
			wantOK:     false,
			wantReason: "Action role configuration is invalid",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, reason := CanExecute(tt.action, tt.roles)
			if ok != tt.wantOK {
				t.Fatalf("CanExecute() = %v (%s), want %v", ok, reason, tt.wantOK)
			}
			if tt.wantReason != "" && !strings.Contains(reason, tt.wantReason) {
				t.Fatalf("CanExecute() reason = %q, want it to contain %q", reason, tt.wantReason)
			}
		})
	}
}
