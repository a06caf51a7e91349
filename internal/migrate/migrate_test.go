package migrate

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestRunner_AppliesMigrationsInVersionOrderNotSliceOrder(t *testing.T) {
	db := openTestDB(t)
	var applied []int

	migrations := []Migration{
		{Version: 2, Name: "second", Apply: func(ctx context.Context, tx *sql.Tx) error {
			applied = append(applied, 2)
			return nil
		}},
		{Version: 1, Name: "first", Apply: func(ctx context.Context, tx *sql.Tx) error {
			applied = append(applied, 1)
			return nil
		}},
	}

	r := New(db, migrations)
	require.NoError(t, r.Run(context.Background()))
	require.Equal(t, []int{1, 2}, applied)
}

func TestRunner_SkipsAlreadyAppliedVersionsOnRerun(t *testing.T) {
	db := openTestDB(t)
	calls := 0
	migrations := []Migration{
		{Version: 1, Name: "only", Apply: func(ctx context.Context, tx *sql.Tx) error {
			calls++
			return nil
		}},
	}

	r := New(db, migrations)
	ctx := context.Background()
	require.NoError(t, r.Run(ctx))
	require.NoError(t, r.Run(ctx))
	require.Equal(t, 1, calls)
}

func TestRunner_AppliesOnlyVersionsAboveCurrent(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	firstRunner := New(db, []Migration{
		{Version: 1, Name: "first", Apply: func(ctx context.Context, tx *sql.Tx) error { return nil }},
	})
	require.NoError(t, firstRunner.Run(ctx))

	var appliedV2 bool
	secondRunner := New(db, []Migration{
		{Version: 1, Name: "first", Apply: func(ctx context.Context, tx *sql.Tx) error {
			t.Fatal("migration 1 should not re-apply")
			return nil
		}},
		{Version: 2, Name: "second", Apply: func(ctx context.Context, tx *sql.Tx) error {
			appliedV2 = true
			return nil
		}},
	})
	require.NoError(t, secondRunner.Run(ctx))
	require.True(t, appliedV2)
}

func TestRunner_RollsBackTransactionOnMigrationError(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	migrations := []Migration{
		{Version: 1, Name: "creates-table-then-fails", Apply: func(ctx context.Context, tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, `CREATE TABLE widgets (id INTEGER PRIMARY KEY)`); err != nil {
				return err
			}
			return errors.New("boom")
		}},
	}

	r := New(db, migrations)
	err := r.Run(ctx)
	require.Error(t, err)

	_, err = db.ExecContext(ctx, `SELECT * FROM widgets`)
	require.Error(t, err, "table creation should have been rolled back with the rest of the failed migration")
}

func TestRunner_RecordsAppliedVersionInSchemaMigrationsTable(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	r := New(db, []Migration{
		{Version: 1, Name: "init", Apply: func(ctx context.Context, tx *sql.Tx) error { return nil }},
	})
	require.NoError(t, r.Run(ctx))

	row := db.QueryRowContext(ctx, `SELECT name FROM schema_migrations WHERE version = 1`)
	var name string
	require.NoError(t, row.Scan(&name))
	require.Equal(t, "init", name)
}
