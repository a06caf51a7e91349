package contracts

import "time"

// Status is the terminal or in-flight state of an ExecutionRecord.
type Status string

const (
	StatusPending    Status = "pending"
	StatusRunning    Status = "running"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusRolledBack Status = "rolled_back"
)

// TriggerKind is the reason an execution was started.
type TriggerKind string

const (
	TriggerManual    TriggerKind = "manual"
	TriggerAgent     TriggerKind = "agent"
	TriggerRetry     TriggerKind = "retry"
	TriggerRepair    TriggerKind = "repair"
	TriggerScheduled TriggerKind = "scheduled"
)

// StepName is one of the six durable pipeline steps.
type StepName string

const (
	StepValidate StepName = "validate"
	StepBackup   StepName = "backup"
	StepApply    StepName = "apply"
	StepVerify   StepName = "verify"
	StepHealth   StepName = "health"
	StepRecord   StepName = "record"
)

// ErrorCode is the closed error taxonomy.
type ErrorCode string

const (
	ErrInvalidInput   ErrorCode = "invalid_input"
	ErrNotApproved    ErrorCode = "not_approved"
	ErrTampered       ErrorCode = "tampered"
	ErrPathViolation  ErrorCode = "path_violation"
	ErrStaleUpdate    ErrorCode = "stale_update"
	ErrApplyFailed    ErrorCode = "apply_failed"
	ErrVerifyFailed   ErrorCode = "verify_failed"
	ErrHealthFailed   ErrorCode = "health_failed"
	ErrTimeout        ErrorCode = "timeout"
	ErrRollbackFailed ErrorCode = "rollback_failed"
	ErrInternal       ErrorCode = "internal"
)

// ExecutionRecord is one row per execution, including lineage.
//
//nolint:govet // fieldalignment: field order follows narrative order
type ExecutionRecord struct {
	ExecutionID  string    `json:"execution_id"`
	PlanID       string    `json:"plan_id"`
	ChangeSetID  string    `json:"changeset_id"`
	DecisionID   string    `json:"decision_id"`
	Checksum     string    `json:"checksum"`
	Verdict      Verdict   `json:"verdict"`
	RiskLevel    RiskLevel `json:"risk_level"`
	Status       Status    `json:"status"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at,omitempty"`
	AffectedPaths []string `json:"affected_paths"`
	ArtifactPath  string   `json:"artifact_path"`
	Verified      bool     `json:"verified"`
	HealthOK      bool     `json:"health_ok"`
	ErrorStep     StepName  `json:"error_step,omitempty"`
	ErrorCode     ErrorCode `json:"error_code,omitempty"`
	ErrorMessage  string    `json:"error_message,omitempty"`
	RolledBack    bool      `json:"rolled_back"`

	CorrelationID        string      `json:"correlation_id"`
	ParentExecutionID     string      `json:"parent_execution_id,omitempty"`
	TriggerKind           TriggerKind `json:"trigger_kind"`
	IsRepair              bool        `json:"is_repair"`
	RepairForExecutionID  string      `json:"repair_for_execution_id,omitempty"`
}

// ExecutionStep is one row per pipeline step.
//
//nolint:govet // fieldalignment: field order follows narrative order
type ExecutionStep struct {
	ExecutionID  string    `json:"execution_id"`
	StepNum      int       `json:"step_num"`
	StepName     StepName  `json:"step_name"`
	Status       Status    `json:"status"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at,omitempty"`
	ErrorCode    ErrorCode `json:"error_code,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty"`
	LogRef       string    `json:"log_ref,omitempty"`
}

// ExecResult is what Executor.Execute returns to its caller — never a
// bare error past the Executor boundary.
type ExecResult struct {
	Record *ExecutionRecord `json:"record"`
	Steps  []ExecutionStep  `json:"steps"`
}
