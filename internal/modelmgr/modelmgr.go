// Package modelmgr maintains the NLU model catalog: listing, syncing,
// background downloads, activation, and removal. Downloads run as detached
// tasks outside the request cycle; completion reaches the requester through a
// one-shot event on the bus.
package modelmgr

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"pilotd/internal/gate"
	"pilotd/internal/models"
	"pilotd/internal/nlu"
	"pilotd/pkg/bus"
)

// DownloadSubject returns the completion subject for one user's download.
func DownloadSubject(userID string) string {
	return fmt.Sprintf("pilot.models.download.%s", userID)
}

// CompletionEvent is the one-shot terminal notification for a download.
type CompletionEvent struct {
	ModelName string `json:"model_name"`
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
}

// Manager coordinates model catalog state.
type Manager struct {
	orm    *gorm.DB
	client *nlu.Client
	bus    *bus.Bus
	log    zerolog.Logger
}

// New constructs a Manager. The bus is optional; completion events degrade to
// log-only when it is nil.
func New(orm *gorm.DB, client *nlu.Client, b *bus.Bus, log zerolog.Logger) (*Manager, error) {
	if orm == nil {
		return nil, errors.New("orm is required")
	}
	if client == nil {
		return nil, errors.New("nlu client is required")
	}
	return &Manager{orm: orm, client: client, bus: b, log: log}, nil
}

// List returns the catalog rows.
func (m *Manager) List(ctx context.Context) ([]models.ModelRecord, error) {
	var out []models.ModelRecord
	err := m.orm.WithContext(ctx).Order("model_name").Find(&out).Error
	return out, err
}

// Sync upserts catalog rows for every model installed on the service.
func (m *Manager) Sync(ctx context.Context) (int, error) {
	tags, err := m.client.Tags(ctx)
	if err != nil {
		return 0, err
	}

	synced := 0
	for _, tag := range tags {
		var existing models.ModelRecord
		err := m.orm.WithContext(ctx).Where("model_name = ?", tag.Name).First(&existing).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			rec := models.ModelRecord{
				ModelName:        tag.Name,
				DisplayName:      tag.Name,
				Size:             fmt.Sprintf("%d", tag.Size),
				Status:           models.ModelDownloaded,
				DownloadProgress: 100,
			}
			if err := m.orm.WithContext(ctx).Create(&rec).Error; err != nil {
				return synced, err
			}
			synced++
		case err != nil:
			return synced, err
		}
	}
	return synced, nil
}

// Pull starts a background download for model and returns immediately. The
// record transitions Available -> Downloading -> {Downloaded, Error} and the
// terminal status is published exactly once to the requester's completion
// subject.
func (m *Manager) Pull(ctx context.Context, modelName, userID string) (*models.ModelRecord, error) {
	if ok, reason := gate.ValidateModelName(modelName); !ok {
		return nil, errors.New(reason)
	}

	var rec models.ModelRecord
	err := m.orm.WithContext(ctx).Where("model_name = ?", modelName).First(&rec).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		rec = models.ModelRecord{
			ModelName:   modelName,
			DisplayName: modelName,
			Status:      models.ModelAvailable,
		}
		if err := m.orm.WithContext(ctx).Create(&rec).Error; err != nil {
			return nil, err
		}
	case err != nil:
		return nil, err
	}

	// Claim the record with a conditional update so two concurrent pulls
	// cannot both start the download.
	res := m.orm.WithContext(ctx).
		Model(&models.ModelRecord{}).
		Where("id = ? AND status <> ?", rec.ID, models.ModelDownloading).
		Updates(map[string]any{
			"status":            models.ModelDownloading,
			"download_progress": 0,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("model %s download already in progress", modelName)
	}
	rec.Status = models.ModelDownloading
	rec.DownloadProgress = 0

	// Detached from the request: the download outlives the HTTP call and
	// reports back over the bus.
	go m.download(context.Background(), rec.ID.String(), modelName, userID)

	return &rec, nil
}

func (m *Manager) download(ctx context.Context, recordID, modelName, userID string) {
	err := m.client.Pull(ctx, modelName)

	updates := map[string]any{
		"status":            models.ModelDownloaded,
		"download_progress": 100,
	}
	evt := CompletionEvent{ModelName: modelName, Status: "success"}
	if err != nil {
		updates["status"] = models.ModelError
		updates["download_progress"] = 0
		evt.Status = "error"
		evt.Error = err.Error()
		m.log.Error().Err(err).Str("model", modelName).Msg("model download failed")
	}

	if dbErr := m.orm.WithContext(ctx).
		Model(&models.ModelRecord{}).
		Where("id = ?", recordID).
		Updates(updates).Error; dbErr != nil {
		m.log.Error().Err(dbErr).Str("model", modelName).Msg("failed to record download outcome")
	}

	if m.bus != nil {
		if pubErr := m.bus.PublishEphemeral(DownloadSubject(userID), evt); pubErr != nil {
			m.log.Error().Err(pubErr).Str("model", modelName).Msg("failed to publish download completion")
		}
	}
}

// Activate marks model as the single active model and switches the client.
func (m *Manager) Activate(ctx context.Context, modelName string) (*models.ModelRecord, error) {
	var rec models.ModelRecord
	err := m.orm.WithContext(ctx).Where("model_name = ?", modelName).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("model %s is not in the catalog", modelName)
	}
	if err != nil {
		return nil, err
	}

	if err := m.orm.WithContext(ctx).
		Model(&models.ModelRecord{}).
		Where("id <> ?", rec.ID).
		Update("is_active", false).Error; err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	rec.IsActive = true
	rec.LastUsed = &now
	if err := m.orm.WithContext(ctx).Save(&rec).Error; err != nil {
		return nil, err
	}

	m.client.SetModel(modelName)
	return &rec, nil
}

// Remove deletes the model from the service and from the catalog.
func (m *Manager) Remove(ctx context.Context, modelName string) error {
	if err := m.client.Delete(ctx, modelName); err != nil {
		return err
	}
	return m.orm.WithContext(ctx).
		Where("model_name = ?", modelName).
		Delete(&models.ModelRecord{}).Error
}
