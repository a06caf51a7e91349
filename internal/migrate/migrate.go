// Package migrate runs versioned, idempotent schema migrations against
// the Execution Store's SQLite database. Migrations are append-only: later migrations may add tables/columns but must
// never drop one, so old rows stay queryable.
package migrate

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
)

// Migration is one numbered, idempotent schema step.
type Migration struct {
	Version int
	Name    string
	Apply   func(ctx context.Context, tx *sql.Tx) error
}

// Runner applies pending migrations and records applied versions.
type Runner struct {
	db         *sql.DB
	migrations []Migration
}

// New builds a Runner over db with the given migrations (order is
// resolved by Version, not slice order).
func New(db *sql.DB, migrations []Migration) *Runner {
	sorted := append([]Migration(nil), migrations...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Version < sorted[j].Version })
	return &Runner{db: db, migrations: sorted}
}

// Run creates schema_migrations if absent, then applies every migration
// whose version exceeds the persisted current version, each in its own
// transaction.
func (r *Runner) Run(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("migrate: creating schema_migrations: %w", err)
	}

	current, err := r.currentVersion(ctx)
	if err != nil {
		return err
	}

	for _, m := range r.migrations {
		if m.Version <= current {
			continue
		}
		if err := r.applyOne(ctx, m); err != nil {
			return fmt.Errorf("migrate: applying migration %d (%s): %w", m.Version, m.Name, err)
		}
	}
	return nil
}

func (r *Runner) currentVersion(ctx context.Context) (int, error) {
	row := r.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_migrations`)
	var v int
	if err := row.Scan(&v); err != nil {
		return 0, fmt.Errorf("migrate: reading current version: %w", err)
	}
	return v, nil
}

func (r *Runner) applyOne(ctx context.Context, m Migration) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := m.Apply(ctx, tx); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (version, name) VALUES (?, ?)`, m.Version, m.Name); err != nil {
		return fmt.Errorf("recording migration: %w", err)
	}
	return tx.Commit()
}
