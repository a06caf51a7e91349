// Package contracts defines the data model shared by every lonelycat-gcec
// subsystem: ChangePlan, ChangeSet, FileChange, GovernanceDecision,
// ExecutionRecord and ExecutionStep.
package contracts

import "time"

// RiskLevel is an ordered risk classification.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// riskRank gives RiskLevel a total order for escalation comparisons.
var riskRank = map[RiskLevel]int{
	RiskLow:      0,
	RiskMedium:   1,
	RiskHigh:     2,
	RiskCritical: 3,
}

// Rank returns the ordinal position of r, or -1 if r is not a known level.
func (r RiskLevel) Rank() int {
	if rank, ok := riskRank[r]; ok {
		return rank
	}
	return -1
}

// Max returns whichever of r and other ranks higher.
func (r RiskLevel) Max(other RiskLevel) RiskLevel {
	if other.Rank() > r.Rank() {
		return other
	}
	return r
}

// HealthCheckSpec is one typed health-check declaration. Exactly one
// of the typed fields is populated, selected by Kind.
type HealthCheckSpec struct {
	Kind string `json:"kind"` // http_get | process_alive | command_profile | database | file_exists

	HTTPGet        *HTTPGetCheck        `json:"http_get,omitempty"`
	ProcessAlive   *ProcessAliveCheck   `json:"process_alive,omitempty"`
	CommandProfile *CommandProfileCheck `json:"command_profile,omitempty"`
	Database       *DatabaseCheck       `json:"database,omitempty"`
	FileExists     *FileExistsCheck     `json:"file_exists,omitempty"`
}

type HTTPGetCheck struct {
	URL           string `json:"url"`
	ExpectStatus  int    `json:"expect_status"`
	TimeoutMillis int    `json:"timeout_ms"`
}

type ProcessAliveCheck struct {
	ProcessName string `json:"process_name"`
}

type CommandProfileCheck struct {
	ProfileName string `json:"profile_name"`
}

type DatabaseCheck struct {
	DBType    string `json:"db_type"`
	DSN       string `json:"dsn"`
	TestQuery string `json:"test_query"`
}

type FileExistsCheck struct {
	Paths []string `json:"paths"`
}

// VerificationStep is one entry of a ChangePlan's verification_plan.
type VerificationStep struct {
	Kind           string `json:"kind"` // command_profile | test_runner
	ProfileName    string `json:"profile_name"`
	TimeoutSeconds int    `json:"timeout_seconds,omitempty"`
}

// ChangePlan is the structured intent produced by the Planner.
//
//nolint:govet // fieldalignment: field order follows narrative order
type ChangePlan struct {
	PlanID             string             `json:"plan_id"`
	Intent             string             `json:"intent"`
	Objective          string             `json:"objective"`
	Rationale          string             `json:"rationale"`
	AffectedPaths      []string           `json:"affected_paths"`
	RiskLevelProposed  RiskLevel          `json:"risk_level_proposed"`
	RollbackPlan       string             `json:"rollback_plan,omitempty"`
	VerificationPlan   []VerificationStep `json:"verification_plan,omitempty"`
	HealthChecks       []HealthCheckSpec  `json:"health_checks,omitempty"`
	CreatedAt          time.Time          `json:"created_at"`
	CreatedBy          string             `json:"created_by"`
}
