package similarity

import (
	"context"
	"fmt"
	"sort"

	"github.com/Nana77mi/lonelycat-gcec/internal/contracts"
	"github.com/Nana77mi/lonelycat-gcec/internal/store"
)

// DefaultLimit bounds how many candidates a query returns absent an
// explicit limit.
const DefaultLimit = 10

// Scored is one neighbor found by a similarity query, with its score
// breakdown kept alongside the combined value for explainability.
type Scored struct {
	ExecutionID string
	Scores      ComponentScores
}

// Engine runs similarity queries over the Execution Store's full
// history. It holds no index of its own — every query is a linear scan
// over ListExecutions, acceptable for the execution volumes this system
// is built for (a single workspace's change history, not a fleet).
type Engine struct {
	store *store.Store
}

// New builds an Engine over st.
func New(st *store.Store) *Engine {
	return &Engine{store: st}
}

// candidates returns every execution except seed, optionally excluding
// ones sharing seed's correlation_id (the default, so retries and
// repairs of the same task don't swamp true cross-task similarities).
func (e *Engine) candidates(ctx context.Context, seed *contracts.ExecutionRecord, excludeSameCorrelation bool) ([]contracts.ExecutionRecord, error) {
	all, err := e.store.ListExecutions(ctx, store.Filters{})
	if err != nil {
		return nil, fmt.Errorf("similarity: listing executions: %w", err)
	}
	out := make([]contracts.ExecutionRecord, 0, len(all))
	for _, rec := range all {
		if rec.ExecutionID == seed.ExecutionID {
			continue
		}
		if excludeSameCorrelation && rec.CorrelationID == seed.CorrelationID {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func (e *Engine) seed(ctx context.Context, executionID string) (*contracts.ExecutionRecord, error) {
	rec, err := e.store.GetExecution(ctx, executionID)
	if err != nil {
		return nil, fmt.Errorf("similarity: fetching seed %s: %w", executionID, err)
	}
	if rec == nil {
		return nil, fmt.Errorf("invalid_input: execution %s not found", executionID)
	}
	return rec, nil
}

// FindSimilarExecutions scores every other execution against
// executionID's combined metric, returning the top `limit` whose score
// is at least minSimilarity, highest first.
func (e *Engine) FindSimilarExecutions(ctx context.Context, executionID string, limit int, minSimilarity float64, excludeSameCorrelation bool) ([]Scored, error) {
	return e.find(ctx, executionID, limit, minSimilarity, excludeSameCorrelation, func(s ComponentScores) float64 { return s.Combined })
}

// FindSimilarByError scores on the error-text component alone.
func (e *Engine) FindSimilarByError(ctx context.Context, executionID string, limit int, minSimilarity float64, excludeSameCorrelation bool) ([]Scored, error) {
	return e.find(ctx, executionID, limit, minSimilarity, excludeSameCorrelation, func(s ComponentScores) float64 { return s.Error })
}

// FindSimilarByPath scores on the affected-path Jaccard component alone.
func (e *Engine) FindSimilarByPath(ctx context.Context, executionID string, limit int, minSimilarity float64, excludeSameCorrelation bool) ([]Scored, error) {
	return e.find(ctx, executionID, limit, minSimilarity, excludeSameCorrelation, func(s ComponentScores) float64 { return s.Path })
}

func (e *Engine) find(
	ctx context.Context,
	executionID string,
	limit int,
	minSimilarity float64,
	excludeSameCorrelation bool,
	rank func(ComponentScores) float64,
) ([]Scored, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	seed, err := e.seed(ctx, executionID)
	if err != nil {
		return nil, err
	}
	candidates, err := e.candidates(ctx, seed, excludeSameCorrelation)
	if err != nil {
		return nil, err
	}

	results := make([]Scored, 0, len(candidates))
	for i := range candidates {
		cand := &candidates[i]
		scores := Score(seed, cand)
		if rank(scores) < minSimilarity {
			continue
		}
		results = append(results, Scored{ExecutionID: cand.ExecutionID, Scores: scores})
	}
	sort.Slice(results, func(i, j int) bool { return rank(results[i].Scores) > rank(results[j].Scores) })
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}
