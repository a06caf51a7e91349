// Package policyconfig loads the WriteGate/Executor policy snapshot: the
// forbidden-path patterns, always-review roots, risk-escalation rules
// and command profiles, hashed for audit the same way a compiled CEL
// policy set is hashed elsewhere in this stack.
package policyconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/Nana77mi/lonelycat-gcec/internal/canonicalize"
)

// CommandProfile is a named, fixed argv — never built from inline user
// input.
type CommandProfile struct {
	Name    string   `yaml:"name"`
	Argv    []string `yaml:"argv"`
	Timeout int      `yaml:"timeout_seconds"`
}

// RiskEscalationRule bumps the effective risk level when a path pattern
// or operation type matches.
type RiskEscalationRule struct {
	PathPattern string `yaml:"path_pattern,omitempty"`
	OnOp        string `yaml:"on_op,omitempty"` // CREATE | UPDATE | DELETE, empty = any
	MinRisk     string `yaml:"min_risk"`
}

// Policy is the full snapshot consumed by WriteGate and Executor.
//
//nolint:govet // fieldalignment: field order follows narrative order
type Policy struct {
	ForbiddenPathPatterns []string             `yaml:"forbidden_path_patterns"`
	AlwaysReviewPatterns  []string             `yaml:"always_review_patterns"`
	AllowedPathRoots      []string             `yaml:"allowed_path_roots"`
	MaxFilesTouched       int                  `yaml:"max_files_touched"`
	MaxPatchLines         int                  `yaml:"max_patch_lines"`
	StepTimeoutSeconds    int                  `yaml:"step_timeout_seconds"`
	TotalTimeoutSeconds   int                  `yaml:"total_timeout_seconds"`
	RiskEscalations       []RiskEscalationRule `yaml:"risk_escalations"`
	CommandProfiles       []CommandProfile     `yaml:"command_profiles"`

	forbidden    []*regexp.Regexp
	alwaysReview []*regexp.Regexp
	profileIndex map[string]CommandProfile
}

// Load reads and compiles a policy document from path.
func Load(path string) (*Policy, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path supplied by operator config, not request input
	if err != nil {
		return nil, fmt.Errorf("policyconfig: read %s: %w", path, err)
	}
	var p Policy
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("policyconfig: parse %s: %w", path, err)
	}
	if err := p.compile(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Default returns a conservative built-in policy used when no policy
// file is configured — forbids VCS metadata, secrets, env files, lock
// files, and the executor's own sources, and forces schema/security/
// policy paths into always-review.
func Default() *Policy {
	p := &Policy{
		ForbiddenPathPatterns: []string{
			`^\.git/`,
			`(^|/)\.env(\..*)?$`,
			`(^|/)secrets?/`,
			`\.lock$`,
			`(^|/)internal/executor/`,
			`(^|/)internal/writegate/`,
		},
		AlwaysReviewPatterns: []string{
			`(^|/)schema/`,
			`(^|/)security/`,
			`(^|/)policy/`,
			`(^|/)internal/executor/`,
		},
		AllowedPathRoots:    []string{"."},
		MaxFilesTouched:     50,
		MaxPatchLines:       2000,
		StepTimeoutSeconds:  60,
		TotalTimeoutSeconds: 300,
		RiskEscalations: []RiskEscalationRule{
			{OnOp: "DELETE", PathPattern: `(^|/)schema/`, MinRisk: "critical"},
		},
	}
	_ = p.compile()
	return p
}

func (p *Policy) compile() error {
	p.forbidden = make([]*regexp.Regexp, 0, len(p.ForbiddenPathPatterns))
	for _, pat := range p.ForbiddenPathPatterns {
		re, err := regexp.Compile(pat)
		if err != nil {
			return fmt.Errorf("policyconfig: forbidden pattern %q: %w", pat, err)
		}
		p.forbidden = append(p.forbidden, re)
	}
	p.alwaysReview = make([]*regexp.Regexp, 0, len(p.AlwaysReviewPatterns))
	for _, pat := range p.AlwaysReviewPatterns {
		re, err := regexp.Compile(pat)
		if err != nil {
			return fmt.Errorf("policyconfig: always-review pattern %q: %w", pat, err)
		}
		p.alwaysReview = append(p.alwaysReview, re)
	}
	p.profileIndex = make(map[string]CommandProfile, len(p.CommandProfiles))
	for _, cp := range p.CommandProfiles {
		p.profileIndex[cp.Name] = cp
	}
	return nil
}

// MatchForbidden returns the matched pattern string, or "" if none match.
func (p *Policy) MatchForbidden(path string) string {
	for i, re := range p.forbidden {
		if re.MatchString(path) {
			return p.ForbiddenPathPatterns[i]
		}
	}
	return ""
}

// MatchAlwaysReview returns the matched pattern string, or "" if none match.
func (p *Policy) MatchAlwaysReview(path string) string {
	for i, re := range p.alwaysReview {
		if re.MatchString(path) {
			return p.AlwaysReviewPatterns[i]
		}
	}
	return ""
}

// CommandProfileByName looks up a fixed-argv profile by name.
func (p *Policy) CommandProfileByName(name string) (CommandProfile, bool) {
	cp, ok := p.profileIndex[name]
	return cp, ok
}

// WithinAllowedRoots reports whether the canonical path resolves under
// one of the configured allow-list roots.
func (p *Policy) WithinAllowedRoots(workspaceRoot, relPath string) bool {
	if len(p.AllowedPathRoots) == 0 {
		return true
	}
	abs := filepath.Join(workspaceRoot, relPath)
	for _, root := range p.AllowedPathRoots {
		allowedAbs := filepath.Join(workspaceRoot, root)
		rel, err := filepath.Rel(allowedAbs, abs)
		if err != nil {
			continue
		}
		if rel == "." || (rel != ".." && !filepathHasDotDotPrefix(rel)) {
			return true
		}
	}
	return false
}

func filepathHasDotDotPrefix(rel string) bool {
	return len(rel) >= 2 && rel[0] == '.' && rel[1] == '.'
}

// SnapshotHash returns the canonical SHA-256 hash of this policy, used as
// GovernanceDecision.policy_snapshot_hash so a decision can be replayed
// against the exact policy that produced it.
func (p *Policy) SnapshotHash() (string, error) {
	return canonicalize.CanonicalHash(p)
}
