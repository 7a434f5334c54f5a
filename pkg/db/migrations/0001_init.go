package migrations

import (
	"context"
	"database/sql"

	"github.com/pressly/goose/v3"
)

func init() {
	goose.AddMigrationContext(upInit, downInit)
}

// rate_limits backs the fixed-window counters used by the security gate.
// security_events is the append-only channel for security-relevant denials.
func upInit(ctx context.Context, tx *sql.Tx) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS rate_limits (
			user_id    text NOT NULL,
			action     text NOT NULL,
			bucket     bigint NOT NULL,
			count      integer NOT NULL DEFAULT 0,
			expires_at timestamptz NOT NULL,
			PRIMARY KEY (user_id, action, bucket)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_rate_limits_expires ON rate_limits (expires_at)`,
		`CREATE TABLE IF NOT EXISTS security_events (
			id          bigserial PRIMARY KEY,
			event_type  text NOT NULL,
			details     jsonb NOT NULL DEFAULT '{}'::jsonb,
			user_id     text NOT NULL,
			source_addr text,
			created_at  timestamptz NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_security_events_user ON security_events (user_id, created_at DESC)`,
	}

	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func downInit(ctx context.Context, tx *sql.Tx) error {
	for _, stmt := range []string{
		`DROP TABLE IF EXISTS security_events`,
		`DROP TABLE IF EXISTS rate_limits`,
	} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
