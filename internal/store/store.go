// Package store implements the Execution Store: a
// persistent SQLite-backed table of ExecutionRecords and ExecutionSteps,
// with lineage and statistics queries.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/Nana77mi/lonelycat-gcec/internal/contracts"
	"github.com/Nana77mi/lonelycat-gcec/internal/migrate"
)

// Store is the Execution Store.
type Store struct {
	db *sql.DB
}

// Open opens (creating if absent) the SQLite database at path and runs
// all pending migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: opening %s: %w", path, err)
	}
	db.SetMaxOpenConns(1) // the workspace lock already serializes writers
	return OpenDB(ctx, db)
}

// OpenDB wraps an already-open *sql.DB and runs all pending migrations
// against it.
func OpenDB(ctx context.Context, db *sql.DB) (*Store, error) {
	s := &Store{db: db}
	if err := migrate.New(db, migrations()).Run(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// CreateExecution inserts a new, typically "pending", ExecutionRecord.
func (s *Store) CreateExecution(ctx context.Context, rec *contracts.ExecutionRecord) error {
	paths, err := json.Marshal(rec.AffectedPaths)
	if err != nil {
		return fmt.Errorf("store: marshaling affected_paths: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO executions (
		execution_id, plan_id, changeset_id, decision_id, checksum, verdict, risk_level, status,
		started_at, finished_at, affected_paths, artifact_path, verified, health_ok,
		error_step, error_code, error_message, rolled_back,
		correlation_id, parent_execution_id, trigger_kind, is_repair, repair_for_execution_id
	) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		rec.ExecutionID, rec.PlanID, rec.ChangeSetID, rec.DecisionID, rec.Checksum,
		string(rec.Verdict), string(rec.RiskLevel), string(rec.Status),
		formatTime(rec.StartedAt), formatTimePtr(rec.FinishedAt), string(paths), rec.ArtifactPath,
		boolToInt(rec.Verified), boolToInt(rec.HealthOK),
		string(rec.ErrorStep), string(rec.ErrorCode), rec.ErrorMessage, boolToInt(rec.RolledBack),
		rec.CorrelationID, nullableString(rec.ParentExecutionID), string(rec.TriggerKind),
		boolToInt(rec.IsRepair), nullableString(rec.RepairForExecutionID),
	)
	if err != nil {
		return fmt.Errorf("store: inserting execution %s: %w", rec.ExecutionID, err)
	}
	return nil
}

// UpdateExecution overwrites the mutable fields of an existing record
// (status, timestamps, results, error info).
func (s *Store) UpdateExecution(ctx context.Context, rec *contracts.ExecutionRecord) error {
	_, err := s.db.ExecContext(ctx, `UPDATE executions SET
		status=?, finished_at=?, verified=?, health_ok=?,
		error_step=?, error_code=?, error_message=?, rolled_back=?, artifact_path=?
		WHERE execution_id=?`,
		string(rec.Status), formatTimePtr(rec.FinishedAt), boolToInt(rec.Verified), boolToInt(rec.HealthOK),
		string(rec.ErrorStep), string(rec.ErrorCode), rec.ErrorMessage, boolToInt(rec.RolledBack), rec.ArtifactPath,
		rec.ExecutionID,
	)
	if err != nil {
		return fmt.Errorf("store: updating execution %s: %w", rec.ExecutionID, err)
	}
	return nil
}

// GetExecution returns nil, nil if no such execution exists.
func (s *Store) GetExecution(ctx context.Context, executionID string) (*contracts.ExecutionRecord, error) {
	row := s.db.QueryRowContext(ctx, executionSelectCols+` FROM executions WHERE execution_id = ?`, executionID)
	rec, err := scanExecution(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: fetching execution %s: %w", executionID, err)
	}
	return rec, nil
}

// AppendStep inserts one ExecutionStep row.
func (s *Store) AppendStep(ctx context.Context, step *contracts.ExecutionStep) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO execution_steps (
		execution_id, step_num, step_name, status, started_at, finished_at, error_code, error_message, log_ref
	) VALUES (?,?,?,?,?,?,?,?,?)`,
		step.ExecutionID, step.StepNum, string(step.StepName), string(step.Status),
		formatTime(step.StartedAt), formatTimePtr(step.FinishedAt),
		string(step.ErrorCode), step.ErrorMessage, step.LogRef,
	)
	if err != nil {
		return fmt.Errorf("store: appending step %d for %s: %w", step.StepNum, step.ExecutionID, err)
	}
	return nil
}

// UpdateStep overwrites a step's terminal fields.
func (s *Store) UpdateStep(ctx context.Context, step *contracts.ExecutionStep) error {
	_, err := s.db.ExecContext(ctx, `UPDATE execution_steps SET
		status=?, finished_at=?, error_code=?, error_message=?, log_ref=?
		WHERE execution_id=? AND step_num=?`,
		string(step.Status), formatTimePtr(step.FinishedAt), string(step.ErrorCode), step.ErrorMessage, step.LogRef,
		step.ExecutionID, step.StepNum,
	)
	if err != nil {
		return fmt.Errorf("store: updating step %d for %s: %w", step.StepNum, step.ExecutionID, err)
	}
	return nil
}

// ListSteps returns every step for an execution, ordered by step_num.
func (s *Store) ListSteps(ctx context.Context, executionID string) ([]contracts.ExecutionStep, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT execution_id, step_num, step_name, status, started_at, finished_at, error_code, error_message, log_ref
		FROM execution_steps WHERE execution_id = ? ORDER BY step_num ASC`, executionID)
	if err != nil {
		return nil, fmt.Errorf("store: listing steps for %s: %w", executionID, err)
	}
	defer func() { _ = rows.Close() }()

	var steps []contracts.ExecutionStep
	for rows.Next() {
		var st contracts.ExecutionStep
		var stepName, status, errCode string
		var started string
		var finished sql.NullString
		var errMsg, logRef sql.NullString
		if err := rows.Scan(&st.ExecutionID, &st.StepNum, &stepName, &status, &started, &finished, &errCode, &errMsg, &logRef); err != nil {
			return nil, fmt.Errorf("store: scanning step: %w", err)
		}
		st.StepName = contracts.StepName(stepName)
		st.Status = contracts.Status(status)
		st.ErrorCode = contracts.ErrorCode(errCode)
		st.ErrorMessage = errMsg.String
		st.LogRef = logRef.String
		st.StartedAt = parseTime(started)
		if finished.Valid {
			st.FinishedAt = parseTime(finished.String)
		}
		steps = append(steps, st)
	}
	return steps, rows.Err()
}

// Filters narrows ListExecutions results.
type Filters struct {
	Status        contracts.Status
	Verdict       contracts.Verdict
	RiskLevel     contracts.RiskLevel
	Since         time.Time
	CorrelationID string
	Limit         int
	Offset        int
}

// ListExecutions returns summaries matching the given filters, newest first.
func (s *Store) ListExecutions(ctx context.Context, f Filters) ([]contracts.ExecutionRecord, error) {
	query := executionSelectCols + ` FROM executions WHERE 1=1`
	var args []any
	if f.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(f.Status))
	}
	if f.Verdict != "" {
		query += ` AND verdict = ?`
		args = append(args, string(f.Verdict))
	}
	if f.RiskLevel != "" {
		query += ` AND risk_level = ?`
		args = append(args, string(f.RiskLevel))
	}
	if !f.Since.IsZero() {
		query += ` AND started_at >= ?`
		args = append(args, formatTime(f.Since))
	}
	if f.CorrelationID != "" {
		query += ` AND correlation_id = ?`
		args = append(args, f.CorrelationID)
	}
	query += ` ORDER BY started_at DESC`
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
		if f.Offset > 0 {
			query += ` OFFSET ?`
			args = append(args, f.Offset)
		}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: listing executions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []contracts.ExecutionRecord
	for rows.Next() {
		rec, err := scanExecution(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scanning execution: %w", err)
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

// ListByCorrelation returns the full tree for a correlation_id, ordered
// by started_at.
func (s *Store) ListByCorrelation(ctx context.Context, correlationID string) ([]contracts.ExecutionRecord, error) {
	rows, err := s.db.QueryContext(ctx, executionSelectCols+` FROM executions WHERE correlation_id = ? ORDER BY started_at ASC`, correlationID)
	if err != nil {
		return nil, fmt.Errorf("store: listing correlation %s: %w", correlationID, err)
	}
	defer func() { _ = rows.Close() }()

	var out []contracts.ExecutionRecord
	for rows.Next() {
		rec, err := scanExecution(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

// Lineage is the result of get_execution_lineage.
type Lineage struct {
	Self        *contracts.ExecutionRecord
	Ancestors   []contracts.ExecutionRecord
	Descendants []contracts.ExecutionRecord
	Siblings    []contracts.ExecutionRecord
}

// GetLineage walks the parent_execution_id chain upward (ancestors),
// BFS downward (descendants), and finds same-parent siblings, with a
// visited set and depth cap defending against malformed cyclic data.
func (s *Store) GetLineage(ctx context.Context, executionID string, depthLimit int) (*Lineage, error) {
	if depthLimit <= 0 {
		depthLimit = 20
	}
	self, err := s.GetExecution(ctx, executionID)
	if err != nil {
		return nil, err
	}
	if self == nil {
		return nil, fmt.Errorf("store: execution %s not found", executionID)
	}

	ancestors, err := s.walkAncestors(ctx, self, depthLimit)
	if err != nil {
		return nil, err
	}
	descendants, err := s.walkDescendants(ctx, executionID, depthLimit)
	if err != nil {
		return nil, err
	}
	var siblings []contracts.ExecutionRecord
	if self.ParentExecutionID != "" {
		all, err := s.childrenOf(ctx, self.ParentExecutionID)
		if err != nil {
			return nil, err
		}
		for _, c := range all {
			if c.ExecutionID != executionID {
				siblings = append(siblings, c)
			}
		}
	}

	return &Lineage{Self: self, Ancestors: ancestors, Descendants: descendants, Siblings: siblings}, nil
}

func (s *Store) walkAncestors(ctx context.Context, self *contracts.ExecutionRecord, depthLimit int) ([]contracts.ExecutionRecord, error) {
	var ancestors []contracts.ExecutionRecord
	visited := map[string]bool{self.ExecutionID: true}
	cursor := self.ParentExecutionID
	for depth := 0; cursor != "" && depth < depthLimit; depth++ {
		if visited[cursor] {
			break // cycle guard
		}
		visited[cursor] = true
		parent, err := s.GetExecution(ctx, cursor)
		if err != nil {
			return nil, err
		}
		if parent == nil {
			break
		}
		ancestors = append(ancestors, *parent)
		cursor = parent.ParentExecutionID
	}
	return ancestors, nil
}

func (s *Store) walkDescendants(ctx context.Context, rootID string, depthLimit int) ([]contracts.ExecutionRecord, error) {
	var descendants []contracts.ExecutionRecord
	visited := map[string]bool{rootID: true}
	frontier := []string{rootID}
	for depth := 0; len(frontier) > 0 && depth < depthLimit; depth++ {
		var next []string
		for _, id := range frontier {
			children, err := s.childrenOf(ctx, id)
			if err != nil {
				return nil, err
			}
			for _, c := range children {
				if visited[c.ExecutionID] {
					continue // cycle guard
				}
				visited[c.ExecutionID] = true
				descendants = append(descendants, c)
				next = append(next, c.ExecutionID)
			}
		}
		frontier = next
	}
	return descendants, nil
}

func (s *Store) childrenOf(ctx context.Context, parentID string) ([]contracts.ExecutionRecord, error) {
	rows, err := s.db.QueryContext(ctx, executionSelectCols+` FROM executions WHERE parent_execution_id = ? ORDER BY started_at ASC`, parentID)
	if err != nil {
		return nil, fmt.Errorf("store: listing children of %s: %w", parentID, err)
	}
	defer func() { _ = rows.Close() }()

	var out []contracts.ExecutionRecord
	for rows.Next() {
		rec, err := scanExecution(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

// Statistics is the result of get_statistics.
type Statistics struct {
	TotalExecutions  int
	ByStatus         map[string]int
	ByVerdict        map[string]int
	ByRiskLevel      map[string]int
	MeanDurationSecs float64
}

// GetStatistics aggregates counts and mean duration across all executions.
func (s *Store) GetStatistics(ctx context.Context) (*Statistics, error) {
	stats := &Statistics{
		ByStatus:    map[string]int{},
		ByVerdict:   map[string]int{},
		ByRiskLevel: map[string]int{},
	}

	rows, err := s.db.QueryContext(ctx, `SELECT status, verdict, risk_level, started_at, finished_at FROM executions`)
	if err != nil {
		return nil, fmt.Errorf("store: statistics query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var totalDuration float64
	var durationCount int
	for rows.Next() {
		var status, verdict, risk, started string
		var finished sql.NullString
		if err := rows.Scan(&status, &verdict, &risk, &started, &finished); err != nil {
			return nil, fmt.Errorf("store: scanning statistics row: %w", err)
		}
		stats.TotalExecutions++
		stats.ByStatus[status]++
		stats.ByVerdict[verdict]++
		stats.ByRiskLevel[risk]++
		if finished.Valid {
			s := parseTime(started)
			f := parseTime(finished.String)
			if !s.IsZero() && !f.IsZero() {
				totalDuration += f.Sub(s).Seconds()
				durationCount++
			}
		}
	}
	if durationCount > 0 {
		stats.MeanDurationSecs = totalDuration / float64(durationCount)
	}
	return stats, rows.Err()
}

// Close closes the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }
