package executor

import (
	"fmt"
	"strings"

	"github.com/Nana77mi/lonelycat-gcec/internal/contracts"
)

// ExecError is the typed error every pipeline step returns through the
// Executor boundary instead of a bare error: it names which step failed
// and classifies the failure into the closed ErrorCode taxonomy so a
// caller (or the ExecutionRecord itself) never has to re-parse an error
// string to decide what happened.
type ExecError struct {
	Step contracts.StepName
	Code contracts.ErrorCode
	Err  error
}

func (e *ExecError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Step, e.Code, e.Err)
}

func (e *ExecError) Unwrap() error { return e.Err }

// knownCodes lists the closed ErrorCode taxonomy in declaration order.
// No code is a prefix of another, so the order in which they are tried
// does not change the classification.
var knownCodes = []contracts.ErrorCode{
	contracts.ErrInvalidInput,
	contracts.ErrNotApproved,
	contracts.ErrTampered,
	contracts.ErrPathViolation,
	contracts.ErrStaleUpdate,
	contracts.ErrApplyFailed,
	contracts.ErrVerifyFailed,
	contracts.ErrHealthFailed,
	contracts.ErrTimeout,
	contracts.ErrRollbackFailed,
	contracts.ErrInternal,
}

// asExecError wraps err as an ExecError for the given step, classifying
// it by the sentinel-prefix convention used throughout this stack
// ("tampered: ...", "path_violation: ...", "timeout: ..."). An error
// that matches no known prefix is classified as internal rather than
// dropped silently.
func asExecError(step contracts.StepName, err error) *ExecError {
	if err == nil {
		return nil
	}
	if existing, ok := err.(*ExecError); ok {
		return existing
	}
	code := classifyCode(err.Error())
	return &ExecError{Step: step, Code: code, Err: err}
}

func classifyCode(msg string) contracts.ErrorCode {
	for _, code := range knownCodes {
		if strings.HasPrefix(msg, string(code)+":") {
			return code
		}
	}
	return contracts.ErrInternal
}
