package store

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/Nana77mi/lonelycat-gcec/internal/contracts"
)

const sqliteTimeLayout = time.RFC3339Nano

const executionSelectCols = `SELECT
	execution_id, plan_id, changeset_id, decision_id, checksum, verdict, risk_level, status,
	started_at, finished_at, affected_paths, artifact_path, verified, health_ok,
	error_step, error_code, error_message, rolled_back,
	correlation_id, parent_execution_id, trigger_kind, is_repair, repair_for_execution_id`

// rowScanner abstracts over *sql.Row and *sql.Rows so scanExecution
// works for both a single-row Get and a multi-row List.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanExecution(row rowScanner) (*contracts.ExecutionRecord, error) {
	var rec contracts.ExecutionRecord
	var verdict, risk, status, errStep, errCode, triggerKind string
	var started string
	var finished, parentID, repairFor, errMsg sql.NullString
	var pathsJSON string
	var verified, healthOK, rolledBack, isRepair int

	if err := row.Scan(
		&rec.ExecutionID, &rec.PlanID, &rec.ChangeSetID, &rec.DecisionID, &rec.Checksum,
		&verdict, &risk, &status,
		&started, &finished, &pathsJSON, &rec.ArtifactPath, &verified, &healthOK,
		&errStep, &errCode, &errMsg, &rolledBack,
		&rec.CorrelationID, &parentID, &triggerKind, &isRepair, &repairFor,
	); err != nil {
		return nil, err
	}

	rec.Verdict = contracts.Verdict(verdict)
	rec.RiskLevel = contracts.RiskLevel(risk)
	rec.Status = contracts.Status(status)
	rec.ErrorStep = contracts.StepName(errStep)
	rec.ErrorCode = contracts.ErrorCode(errCode)
	rec.ErrorMessage = errMsg.String
	rec.TriggerKind = contracts.TriggerKind(triggerKind)
	rec.ParentExecutionID = parentID.String
	rec.RepairForExecutionID = repairFor.String
	rec.Verified = verified != 0
	rec.HealthOK = healthOK != 0
	rec.RolledBack = rolledBack != 0
	rec.IsRepair = isRepair != 0
	rec.StartedAt = parseTime(started)
	if finished.Valid {
		rec.FinishedAt = parseTime(finished.String)
	}
	if pathsJSON != "" {
		_ = json.Unmarshal([]byte(pathsJSON), &rec.AffectedPaths)
	}
	return &rec, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(sqliteTimeLayout)
}

// formatTimePtr formats a possibly-zero time.Time as a SQL NULL when zero.
func formatTimePtr(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return formatTime(t)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(sqliteTimeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
