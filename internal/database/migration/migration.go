package migration

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// DefaultNotifyChannel is the LISTEN/NOTIFY channel the pins trigger publishes on.
const DefaultNotifyChannel = "pins_changed"

type migrationStep struct {
	Name string
	SQL  string
}

func steps(channel string) []migrationStep {
	return []migrationStep{
		{
			Name: "create_table_pins",
			SQL: `CREATE TABLE IF NOT EXISTS pins (
  id         UUID  PRIMARY KEY,
  data       JSONB NOT NULL DEFAULT '{}'::jsonb,
  created_at TEXT  NOT NULL,
  updated_at TEXT
);`,
		},
		{
			Name: "create_index_pins_created_at",
			SQL:  `CREATE INDEX IF NOT EXISTS idx_pins_created_at ON pins (created_at DESC);`,
		},
		{
			Name: "create_table_users",
			SQL: `CREATE TABLE IF NOT EXISTS users (
  id            UUID        PRIMARY KEY,
  email         TEXT        NOT NULL UNIQUE,
  password_hash TEXT        NOT NULL,
  created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);`,
		},
		{
			Name: "create_function_notify_pins_changed",
			SQL: fmt.Sprintf(`CREATE OR REPLACE FUNCTION notify_pins_changed() RETURNS trigger AS $$
BEGIN
  PERFORM pg_notify('%s', lower(TG_OP));
  RETURN NULL;
END;
$$ LANGUAGE plpgsql;`, channel),
		},
		{
			Name: "create_trigger_pins_changed",
			SQL: `DROP TRIGGER IF EXISTS pins_changed ON pins;
CREATE TRIGGER pins_changed
  AFTER INSERT OR UPDATE OR DELETE ON pins
  FOR EACH STATEMENT EXECUTE FUNCTION notify_pins_changed();`,
		},
	}
}

// EnsureMigrated checks whether the pins table exists and creates the schema if it doesn't.
// channel names the NOTIFY channel wired into the pins trigger.
func EnsureMigrated(ctx context.Context, db *sql.DB, log *zap.Logger, channel string) error {
	if channel == "" {
		channel = DefaultNotifyChannel
	}
	log = log.Named("database")
	start := time.Now()

	log.Info("db_migration_check", zap.String("status", "starting"))

	var exists bool
	query := "SELECT to_regclass('public.pins') IS NOT NULL"
	if err := db.QueryRowContext(ctx, query).Scan(&exists); err != nil {
		log.Error("db_migration_failed",
			zap.String("status", "error"),
			zap.String("error_message", fmt.Sprintf("failed to check sentinel table: %v", err)),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
		return fmt.Errorf("failed to check sentinel table: %w", err)
	}

	if exists {
		log.Info("db_migration_skip",
			zap.String("status", "success"),
			zap.String("detail", "schema already exists, skipping migration"),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
		return nil
	}

	log.Info("db_migration_start", zap.String("status", "in_progress"))

	for _, step := range steps(channel) {
		stepStart := time.Now()
		if _, err := db.ExecContext(ctx, step.SQL); err != nil {
			log.Error("db_migration_failed",
				zap.String("status", "error"),
				zap.String("migration_step", step.Name),
				zap.Error(err),
				zap.Int64("duration_ms", time.Since(start).Milliseconds()),
				zap.Int64("step_duration_ms", time.Since(stepStart).Milliseconds()),
			)
			return fmt.Errorf("migration step %s failed: %w", step.Name, err)
		}

		log.Info("db_migration_step",
			zap.String("status", "success"),
			zap.String("migration_step", step.Name),
			zap.Int64("step_duration_ms", time.Since(stepStart).Milliseconds()),
		)
	}

	log.Info("db_migration_success",
		zap.String("status", "success"),
		zap.Int64("duration_ms", time.Since(start).Milliseconds()),
	)
	return nil
}
