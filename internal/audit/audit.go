// Package audit records one durable entry per pipeline execution attempt and
// enforces the Processing -> {Success, Failed, Denied} state machine.
package audit

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"pilotd/internal/models"
	"pilotd/pkg/db"
)

// Log creates and reads command log entries.
type Log struct {
	orm  *gorm.DB
	pool *pgxpool.Pool
	log  zerolog.Logger
}

// New constructs the audit log over both stores: writes go through the ORM,
// history reads through the pool.
func New(orm *gorm.DB, pool *pgxpool.Pool, log zerolog.Logger) (*Log, error) {
	if orm == nil {
		return nil, errors.New("orm is required")
	}
	if pool == nil {
		return nil, errors.New("database pool is required")
	}
	return &Log{orm: orm, pool: pool, log: log}, nil
}

// Entry is one in-flight audit record. It is owned exclusively by the request
// that created it; the terminal transition sticks and later updates are
// ignored.
type Entry struct {
	owner *Log
	mu    sync.Mutex
	rec   models.CommandLog
	start time.Time
	done  bool
}

// Begin creates the record synchronously in the Processing state.
func (l *Log) Begin(ctx context.Context, userID, sanitizedInput string) (*Entry, error) {
	now := time.Now().UTC()
	rec := models.CommandLog{
		UserID:    userID,
		Timestamp: now,
		UserInput: sanitizedInput,
		Status:    models.StatusProcessing,
	}
	if err := l.orm.WithContext(ctx).Create(&rec).Error; err != nil {
		return nil, err
	}
	return &Entry{owner: l, rec: rec, start: now}, nil
}

// SetIntent attaches the resolved intent and entities.
func (e *Entry) SetIntent(ctx context.Context, intent string, entities map[string]any) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.done {
		return
	}
	e.rec.Intent = intent
	if entities != nil {
		if raw, err := json.Marshal(entities); err == nil {
			e.rec.Entities = raw
		}
	}
	e.save(ctx)
}

// SetExchange attaches the model prompt and raw response.
func (e *Entry) SetExchange(ctx context.Context, prompt, rawResponse string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.done {
		return
	}
	e.rec.Prompt = prompt
	e.rec.RawResponse = rawResponse
	e.save(ctx)
}

// SetAction attaches the executed action name.
func (e *Entry) SetAction(ctx context.Context, actionName string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.done {
		return
	}
	e.rec.ActionExecuted = &actionName
	e.save(ctx)
}

// Finalize moves the entry to a terminal status exactly once, recording the
// response or error message and the elapsed execution time.
func (e *Entry) Finalize(ctx context.Context, status, response, errorMessage string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.done {
		return
	}
	switch status {
	case models.StatusSuccess, models.StatusFailed, models.StatusDenied:
	default:
		e.owner.log.Error().Str("status", status).Msg("refusing non-terminal audit transition")
		return
	}

	e.done = true
	e.rec.Status = status
	e.rec.Response = response
	e.rec.ErrorMessage = errorMessage
	e.rec.ExecutionTime = time.Since(e.start).Seconds()
	e.save(ctx)
}

// Finalized reports whether the entry reached a terminal state.
func (e *Entry) Finalized() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.done
}

func (e *Entry) save(ctx context.Context) {
	if err := e.owner.orm.WithContext(ctx).Save(&e.rec).Error; err != nil {
		// Audit persistence failures are logged, never propagated: the
		// pipeline response must not depend on the log write.
		e.owner.log.Error().Err(err).Str("entry", e.rec.ID.String()).Msg("failed to persist audit entry")
	}
}

// HistoryEntry is one row of a user's conversation history.
type HistoryEntry struct {
	Timestamp time.Time `db:"timestamp" json:"timestamp"`
	UserInput string    `db:"user_input" json:"input"`
	Intent    string    `db:"intent" json:"intent"`
	Status    string    `db:"status" json:"status"`
	Response  string    `db:"response" json:"response"`
}

// History returns the user's most recent entries, newest first. The limit is
// clamped to [1, 100] with a default of 10.
func (l *Log) History(ctx context.Context, userID string, limit int) ([]HistoryEntry, error) {
	if limit < 1 || limit > 100 {
		limit = 10
	}

	var out []HistoryEntry
	err := db.Select(ctx, l.pool, &out, `
SELECT timestamp, user_input, COALESCE(intent, '') AS intent, status, COALESCE(response, '') AS response
FROM command_logs
WHERE user_id = $1
ORDER BY timestamp DESC
LIMIT $2
`, userID, limit)
	if err != nil {
		return nil, err
	}
	return out, nil
}
