// Package verifier runs the verify step of the Executor pipeline
// (command_profile and test_runner verification steps) and, separately,
// performs offline bundle verification of a completed execution's
// artifact directory — trusting only the filesystem and the artifact
// format, never the live Execution Store.
package verifier

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"time"

	"github.com/Nana77mi/lonelycat-gcec/internal/contracts"
	"github.com/Nana77mi/lonelycat-gcec/internal/policyconfig"
)

// maxCapturedOutput bounds how much stdout/stderr a verification step
// retains; beyond this the output is truncated, never the process killed
// for exceeding it (only the timeout kills).
const maxCapturedOutput = 64 * 1024

// StepResult is the outcome of one VerificationStep.
type StepResult struct {
	Kind      string
	Profile   string
	ExitCode  int
	Output    string
	Truncated bool
	Passed    bool
	Err       error
}

// Verifier runs verification_plan entries against a policy snapshot so
// argv lists stay fixed, named profiles — never inline command strings.
type Verifier struct {
	policy *policyconfig.Policy
}

// New builds a Verifier against the given policy.
func New(policy *policyconfig.Policy) *Verifier {
	return &Verifier{policy: policy}
}

// Run executes every step in order, stopping at the first failure
// (its non-zero exit or error is what fails the verify pipeline step).
func (v *Verifier) Run(ctx context.Context, plan []contracts.VerificationStep) []StepResult {
	results := make([]StepResult, 0, len(plan))
	for _, step := range plan {
		res := v.runStep(ctx, step)
		results = append(results, res)
		if !res.Passed {
			break
		}
	}
	return results
}

// AllPassed reports whether every step in results succeeded.
func AllPassed(results []StepResult) bool {
	for _, r := range results {
		if !r.Passed {
			return false
		}
	}
	return true
}

func (v *Verifier) runStep(ctx context.Context, step contracts.VerificationStep) StepResult {
	res := StepResult{Kind: step.Kind, Profile: step.ProfileName}

	if step.Kind != "command_profile" && step.Kind != "test_runner" {
		res.Err = fmt.Errorf("invalid_input: unknown verification step kind %q", step.Kind)
		return res
	}

	profile, ok := v.policy.CommandProfileByName(step.ProfileName)
	if !ok {
		res.Err = fmt.Errorf("invalid_input: unknown command profile %q", step.ProfileName)
		return res
	}
	if len(profile.Argv) == 0 {
		res.Err = fmt.Errorf("invalid_input: command profile %q has empty argv", step.ProfileName)
		return res
	}

	timeout := time.Duration(step.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = time.Duration(profile.Timeout) * time.Second
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	stepCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(stepCtx, profile.Argv[0], profile.Argv[1:]...)
	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf

	err := cmd.Run()
	out := buf.Bytes()
	if len(out) > maxCapturedOutput {
		out = out[:maxCapturedOutput]
		res.Truncated = true
	}
	res.Output = string(out)

	if stepCtx.Err() != nil {
		res.Err = fmt.Errorf("timeout: verification step %q exceeded %s", step.ProfileName, timeout)
		return res
	}
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			res.ExitCode = exitErr.ExitCode()
		} else {
			res.Err = fmt.Errorf("verify_failed: %w", err)
			return res
		}
	}
	res.Passed = res.ExitCode == 0
	return res
}
