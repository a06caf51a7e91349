package store

import (
	"context"
	"database/sql"

	"github.com/Nana77mi/lonelycat-gcec/internal/migrate"
)

// migrations is the append-only schema history for executor.db.
func migrations() []migrate.Migration {
	return []migrate.Migration{
		{
			Version: 1,
			Name:    "create_executions",
			Apply: func(ctx context.Context, tx *sql.Tx) error {
				_, err := tx.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS executions (
					execution_id TEXT PRIMARY KEY,
					plan_id TEXT NOT NULL,
					changeset_id TEXT NOT NULL,
					decision_id TEXT NOT NULL,
					checksum TEXT NOT NULL,
					verdict TEXT NOT NULL,
					risk_level TEXT NOT NULL,
					status TEXT NOT NULL,
					started_at DATETIME NOT NULL,
					finished_at DATETIME,
					affected_paths JSON,
					artifact_path TEXT,
					verified INTEGER NOT NULL DEFAULT 0,
					health_ok INTEGER NOT NULL DEFAULT 0,
					error_step TEXT,
					error_code TEXT,
					error_message TEXT,
					rolled_back INTEGER NOT NULL DEFAULT 0,
					correlation_id TEXT NOT NULL,
					parent_execution_id TEXT,
					trigger_kind TEXT NOT NULL,
					is_repair INTEGER NOT NULL DEFAULT 0,
					repair_for_execution_id TEXT
				)`)
				return err
			},
		},
		{
			Version: 2,
			Name:    "create_execution_steps",
			Apply: func(ctx context.Context, tx *sql.Tx) error {
				_, err := tx.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS execution_steps (
					execution_id TEXT NOT NULL,
					step_num INTEGER NOT NULL,
					step_name TEXT NOT NULL,
					status TEXT NOT NULL,
					started_at DATETIME NOT NULL,
					finished_at DATETIME,
					error_code TEXT,
					error_message TEXT,
					log_ref TEXT,
					PRIMARY KEY (execution_id, step_num)
				)`)
				return err
			},
		},
		{
			Version: 3,
			Name:    "create_indexes",
			Apply: func(ctx context.Context, tx *sql.Tx) error {
				stmts := []string{
					`CREATE INDEX IF NOT EXISTS idx_executions_correlation ON executions(correlation_id)`,
					`CREATE INDEX IF NOT EXISTS idx_executions_parent ON executions(parent_execution_id)`,
					`CREATE INDEX IF NOT EXISTS idx_executions_trigger ON executions(trigger_kind)`,
					`CREATE INDEX IF NOT EXISTS idx_executions_started ON executions(started_at)`,
				}
				for _, s := range stmts {
					if _, err := tx.ExecContext(ctx, s); err != nil {
						return err
					}
				}
				return nil
			},
		},
	}
}
