package similarity

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/Nana77mi/lonelycat-gcec/internal/canonicalize"
	"github.com/Nana77mi/lonelycat-gcec/internal/contracts"
	"github.com/Nana77mi/lonelycat-gcec/internal/store"
	"github.com/Nana77mi/lonelycat-gcec/internal/writegate"
)

// DefaultWindow is the lookback period for reflection analysis absent
// an explicit one, matching the hints_7d.json naming convention.
const DefaultWindow = 7 * 24 * time.Hour

// Window is the time range a ReflectionHints document was computed over.
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// StepFrequency counts how often a (step, error_code) pair failed.
type StepFrequency struct {
	Step      contracts.StepName  `json:"step"`
	ErrorCode contracts.ErrorCode `json:"error_code"`
	Count     int                 `json:"count"`
}

// FalseAllowPattern groups executions that WriteGate allowed but that
// later failed or were rolled back, by their failing error code.
type FalseAllowPattern struct {
	ErrorCode           contracts.ErrorCode `json:"error_code"`
	Count               int                 `json:"count"`
	ExampleExecutionIDs []string            `json:"example_execution_ids"`
}

// SlowStep reports a step's mean duration across the window.
type SlowStep struct {
	Step             contracts.StepName `json:"step"`
	MeanDurationSecs float64            `json:"mean_duration_secs"`
	SampleCount      int                `json:"sample_count"`
}

// ReflectionHints is the advisory document the offline reflection job
// produces: WriteGate may append SuggestedPolicies to a decision's
// reasons (marking reflection_hints_used=true) but must never let it
// change a verdict.
//
//nolint:govet // fieldalignment: field order follows narrative order
type ReflectionHints struct {
	GeneratedAt          time.Time           `json:"generated_at"`
	Window               Window              `json:"window"`
	TopErrorSteps        []StepFrequency     `json:"top_error_steps"`
	FalseAllowPatterns   []FalseAllowPattern `json:"false_allow_patterns"`
	SlowSteps            []SlowStep          `json:"slow_steps"`
	SuggestedPolicies    []string            `json:"suggested_policies"`
	EvidenceExecutionIDs []string            `json:"evidence_execution_ids"`
	Digest               string              `json:"digest"`
}

const maxFalseAllowExamples = 3

type stepErrKey struct {
	Step      contracts.StepName
	ErrorCode contracts.ErrorCode
}

// GenerateReflectionHints scans every execution started within window
// (DefaultWindow if zero) and aggregates failure patterns into a
// ReflectionHints document, hashing it so WriteGate can record which
// exact hints a decision used.
func GenerateReflectionHints(ctx context.Context, st *store.Store, window time.Duration) (*ReflectionHints, error) {
	if window <= 0 {
		window = DefaultWindow
	}
	now := time.Now().UTC()
	since := now.Add(-window)

	execs, err := st.ListExecutions(ctx, store.Filters{Since: since})
	if err != nil {
		return nil, fmt.Errorf("similarity: listing executions for reflection: %w", err)
	}

	hints := &ReflectionHints{
		GeneratedAt: now,
		Window:      Window{Start: since, End: now},
	}

	errorFreq := map[stepErrKey]int{}
	falseAllow := map[contracts.ErrorCode]*FalseAllowPattern{}
	stepDurations := map[contracts.StepName]*durationAccumulator{}
	evidence := map[string]bool{}

	for i := range execs {
		rec := &execs[i]
		if rec.ErrorStep != "" && rec.ErrorCode != "" {
			errorFreq[stepErrKey{Step: rec.ErrorStep, ErrorCode: rec.ErrorCode}]++
			evidence[rec.ExecutionID] = true
		}
		if rec.Verdict == contracts.VerdictAllow &&
			(rec.Status == contracts.StatusFailed || rec.Status == contracts.StatusRolledBack) {
			p, ok := falseAllow[rec.ErrorCode]
			if !ok {
				p = &FalseAllowPattern{ErrorCode: rec.ErrorCode}
				falseAllow[rec.ErrorCode] = p
			}
			p.Count++
			if len(p.ExampleExecutionIDs) < maxFalseAllowExamples {
				p.ExampleExecutionIDs = append(p.ExampleExecutionIDs, rec.ExecutionID)
			}
			evidence[rec.ExecutionID] = true
		}

		steps, err := st.ListSteps(ctx, rec.ExecutionID)
		if err != nil {
			return nil, fmt.Errorf("similarity: listing steps for %s: %w", rec.ExecutionID, err)
		}
		for _, step := range steps {
			if step.FinishedAt.IsZero() || step.StartedAt.IsZero() {
				continue
			}
			acc, ok := stepDurations[step.StepName]
			if !ok {
				acc = &durationAccumulator{}
				stepDurations[step.StepName] = acc
			}
			acc.add(step.FinishedAt.Sub(step.StartedAt).Seconds())
		}
	}

	for key, count := range errorFreq {
		hints.TopErrorSteps = append(hints.TopErrorSteps, StepFrequency{Step: key.Step, ErrorCode: key.ErrorCode, Count: count})
	}
	sort.Slice(hints.TopErrorSteps, func(i, j int) bool { return hints.TopErrorSteps[i].Count > hints.TopErrorSteps[j].Count })

	for _, p := range falseAllow {
		hints.FalseAllowPatterns = append(hints.FalseAllowPatterns, *p)
	}
	sort.Slice(hints.FalseAllowPatterns, func(i, j int) bool {
		return hints.FalseAllowPatterns[i].Count > hints.FalseAllowPatterns[j].Count
	})

	for name, acc := range stepDurations {
		hints.SlowSteps = append(hints.SlowSteps, SlowStep{Step: name, MeanDurationSecs: acc.mean(), SampleCount: acc.count})
	}
	sort.Slice(hints.SlowSteps, func(i, j int) bool { return hints.SlowSteps[i].MeanDurationSecs > hints.SlowSteps[j].MeanDurationSecs })

	hints.SuggestedPolicies = suggestPolicies(hints)

	for id := range evidence {
		hints.EvidenceExecutionIDs = append(hints.EvidenceExecutionIDs, id)
	}
	sort.Strings(hints.EvidenceExecutionIDs)

	digest, err := canonicalize.CanonicalHash(hints)
	if err != nil {
		return nil, fmt.Errorf("similarity: hashing reflection hints: %w", err)
	}
	hints.Digest = digest

	return hints, nil
}

// ToGateHints adapts a ReflectionHints document into the narrow shape
// WriteGate accepts, so a caller can pass the result of
// GenerateReflectionHints straight into Gate.Evaluate.
func (h *ReflectionHints) ToGateHints() *writegate.ReflectionHints {
	return &writegate.ReflectionHints{Digest: h.Digest, Suggestions: h.SuggestedPolicies}
}

func suggestPolicies(h *ReflectionHints) []string {
	var out []string
	for _, p := range h.FalseAllowPatterns {
		if p.Count >= 2 {
			out = append(out, fmt.Sprintf("consider escalating risk when failures of %q recur (seen %d times with verdict ALLOW)", p.ErrorCode, p.Count))
		}
	}
	for _, f := range h.TopErrorSteps {
		if f.Count >= 3 {
			out = append(out, fmt.Sprintf("step %q frequently fails with %q (%d occurrences) — consider a stricter precondition or always-review rule", f.Step, f.ErrorCode, f.Count))
		}
	}
	return out
}

type durationAccumulator struct {
	total float64
	count int
}

func (d *durationAccumulator) add(secs float64) {
	d.total += secs
	d.count++
}

func (d *durationAccumulator) mean() float64 {
	if d.count == 0 {
		return 0
	}
	return d.total / float64(d.count)
}
