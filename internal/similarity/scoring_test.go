package similarity

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Nana77mi/lonelycat-gcec/internal/contracts"
)

func TestTokenize_LowercasesAndSplitsOnPunctuation(t *testing.T) {
	got := Tokenize("Connection refused: dial tcp 10.0.0.1:5432")
	require.Equal(t, []string{"connection", "refused", "dial", "tcp", "10", "0", "0", "1", "5432"}, got)
}

func TestTermFreq_NormalizesByLength(t *testing.T) {
	tf := TermFreq([]string{"a", "a", "b"})
	require.InDelta(t, 2.0/3.0, tf["a"], 1e-9)
	require.InDelta(t, 1.0/3.0, tf["b"], 1e-9)
}

func TestTermFreq_EmptyInput(t *testing.T) {
	require.Empty(t, TermFreq(nil))
}

func TestCosineSimilarity_IdenticalVectorsAreOne(t *testing.T) {
	tf := TermFreq(Tokenize("timeout waiting for health check"))
	sim := CosineSimilarity(tf, tf)
	require.InDelta(t, 1.0, sim, 1e-9)
}

func TestCosineSimilarity_DisjointVectorsAreZero(t *testing.T) {
	a := TermFreq(Tokenize("timeout waiting"))
	b := TermFreq(Tokenize("permission denied"))
	require.Equal(t, 0.0, CosineSimilarity(a, b))
}

func TestCosineSimilarity_BothEmptyIsZeroNotOne(t *testing.T) {
	require.Equal(t, 0.0, CosineSimilarity(map[string]float64{}, map[string]float64{}))
}

func TestJaccardSimilarity(t *testing.T) {
	require.Equal(t, 1.0, JaccardSimilarity([]string{"a", "b"}, []string{"b", "a"}))
	require.Equal(t, 0.0, JaccardSimilarity([]string{"a"}, []string{"b"}))
	require.InDelta(t, 1.0/3.0, JaccardSimilarity([]string{"a", "b"}, []string{"b", "c"}), 1e-9)
}

func TestJaccardSimilarity_BothEmptyIsZero(t *testing.T) {
	require.Equal(t, 0.0, JaccardSimilarity(nil, nil))
}

func TestScore_CombinesWeightedComponents(t *testing.T) {
	seed := &contracts.ExecutionRecord{
		Status:        contracts.StatusFailed,
		Verdict:       contracts.VerdictDeny,
		ErrorMessage:  "timeout waiting for health check",
		AffectedPaths: []string{"app/config.yaml", "app/main.go"},
	}
	candidate := &contracts.ExecutionRecord{
		Status:        contracts.StatusFailed,
		Verdict:       contracts.VerdictDeny,
		ErrorMessage:  "timeout waiting for health check",
		AffectedPaths: []string{"app/config.yaml"},
	}

	scores := Score(seed, candidate)
	require.InDelta(t, 1.0, scores.Error, 1e-9)
	require.InDelta(t, 0.5, scores.Path, 1e-9)
	require.InDelta(t, 1.0, scores.Metadata, 1e-9)

	want := weightError*1.0 + weightPath*0.5 + weightMetadata*1.0
	require.InDelta(t, want, scores.Combined, 1e-9)
}

func TestScore_UnrelatedExecutionsScoreLow(t *testing.T) {
	seed := &contracts.ExecutionRecord{
		Status:        contracts.StatusCompleted,
		Verdict:       contracts.VerdictAllow,
		ErrorMessage:  "",
		AffectedPaths: []string{"a.go"},
	}
	candidate := &contracts.ExecutionRecord{
		Status:        contracts.StatusFailed,
		Verdict:       contracts.VerdictDeny,
		ErrorMessage:  "permission denied writing /etc/shadow",
		AffectedPaths: []string{"b.go"},
	}
	scores := Score(seed, candidate)
	require.Equal(t, 0.0, scores.Combined)
}
