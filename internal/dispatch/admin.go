package dispatch

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"gorm.io/gorm"

	"pilotd/internal/errs"
	"pilotd/internal/gate"
	"pilotd/internal/models"
)

// commandTimeout bounds one administrative command execution.
const commandTimeout = 60 * time.Second

// manageModels handles the model catalog operations: list, sync, download,
// activate, and remove. Admin only, independent of the action definition.
func (d *Dispatcher) manageModels(ctx context.Context, req Request) Result {
	if !d.authz.IsAdmin(ctx, req.UserID) {
		return failure("This action requires %s role", models.AdminRole)
	}

	op := stringEntity(req.Entities, "operation")
	if op == "" {
		op = "list"
	}
	modelName := stringEntity(req.Entities, "model_name")

	switch op {
	case "list":
		records, err := d.mgr.List(ctx)
		if err != nil {
			return failure("%s", errs.SafeMessage(err, "listing models"))
		}
		return success(fmt.Sprintf("Found %d models", len(records)), records)

	case "sync":
		n, err := d.mgr.Sync(ctx)
		if err != nil {
			return failure("%s", errs.SafeMessage(err, "syncing models"))
		}
		return success(fmt.Sprintf("Synced %d new models", n), nil)

	case "download", "pull":
		if modelName == "" {
			return failure("Model name is required")
		}
		rec, err := d.mgr.Pull(ctx, modelName, req.UserID)
		if err != nil {
			return failure("%s", errs.SafeMessage(err, "starting the model download"))
		}
		return success(fmt.Sprintf("Download of '%s' started", modelName), rec)

	case "activate":
		if modelName == "" {
			return failure("Model name is required")
		}
		rec, err := d.mgr.Activate(ctx, modelName)
		if err != nil {
			return failure("%s", errs.SafeMessage(err, "activating the model"))
		}
		return success(fmt.Sprintf("Model '%s' is now active", modelName), rec)

	case "remove", "delete":
		if modelName == "" {
			return failure("Model name is required")
		}
		if err := d.mgr.Remove(ctx, modelName); err != nil {
			return failure("%s", errs.SafeMessage(err, "removing the model"))
		}
		return success(fmt.Sprintf("Model '%s' removed", modelName), nil)

	default:
		return failure("Unknown model operation: %s", op)
	}
}

// runAdminCommand executes one allow-listed maintenance command. The command
// is validated before execution and runs without a shell, with arguments split
// on whitespace, so metacharacters never reach an interpreter.
func (d *Dispatcher) runAdminCommand(ctx context.Context, req Request) Result {
	if !d.authz.IsAdmin(ctx, req.UserID) {
		return failure("This action requires %s role", models.AdminRole)
	}

	command := stringEntity(req.Entities, "command")
	if ok, reason := gate.ValidateCommand(command); !ok {
		return failure("%s", reason)
	}

	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	parts := strings.Fields(command)
	cmd := exec.CommandContext(ctx, parts[0], parts[1:]...)
	out, err := cmd.CombinedOutput()
	output := strings.TrimSpace(string(out))
	if err != nil {
		d.log.Error().Err(err).Str("command", command).Msg("admin command failed")
		return Result{
			Success: false,
			Error:   fmt.Sprintf("Command failed: %v", err),
			Data:    map[string]any{"output": output},
		}
	}
	return success(fmt.Sprintf("Command '%s' completed", command), map[string]any{"output": output})
}

// createUser provisions a new user account with an optional role. Admin only.
func (d *Dispatcher) createUser(ctx context.Context, req Request) Result {
	if !d.authz.IsAdmin(ctx, req.UserID) {
		return failure("This action requires %s role", models.AdminRole)
	}

	email := strings.ToLower(stringEntity(req.Entities, "email"))
	if email == "" || !strings.Contains(email, "@") {
		return failure("A valid email address is required")
	}

	user := models.User{
		Email:     email,
		FirstName: stringEntity(req.Entities, "first_name"),
		Enabled:   true,
	}
	err := d.orm.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&user).Error; err != nil {
			return err
		}
		roleName := stringEntity(req.Entities, "role")
		if roleName == "" {
			return nil
		}
		var role models.Role
		if err := tx.Where("name = ?", roleName).First(&role).Error; err != nil {
			return fmt.Errorf("role %q: %w", roleName, err)
		}
		return tx.Create(&models.UserRole{UserID: user.ID, RoleID: role.ID}).Error
	})
	if err != nil {
		return failure("%s", errs.SafeMessage(err, "creating the user"))
	}
	return success(fmt.Sprintf("User '%s' created successfully", email), user)
}
