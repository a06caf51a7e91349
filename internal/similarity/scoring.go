// Package similarity implements the offline Similarity & Reflection
// subsystem: no ML dependency, just two textbook primitives — TF/cosine
// over tokenized error text and Jaccard over affected-path sets —
// combined into a single score, plus the reflection and case-based
// repair jobs built on top of it.
package similarity

import (
	"math"
	"strings"
	"unicode"

	"github.com/Nana77mi/lonelycat-gcec/internal/contracts"
)

// Weights of the combined similarity score. Metadata itself splits
// evenly between a status match (0.5) and a verdict match (0.5).
const (
	weightError    = 0.5
	weightPath     = 0.3
	weightMetadata = 0.2
)

// Tokenize lowercases text and splits it into alphanumeric runs, the
// same coarse tokenization used for the error-message corpus — good
// enough for TF/cosine over short, formulaic error strings without
// pulling in a real NLP dependency.
func Tokenize(text string) []string {
	var tokens []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			tokens = append(tokens, cur.String())
			cur.Reset()
		}
	}
	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			cur.WriteRune(unicode.ToLower(r))
		} else {
			flush()
		}
	}
	flush()
	return tokens
}

// TermFreq returns the normalized term-frequency vector for tokens.
func TermFreq(tokens []string) map[string]float64 {
	tf := make(map[string]float64, len(tokens))
	if len(tokens) == 0 {
		return tf
	}
	for _, t := range tokens {
		tf[t]++
	}
	n := float64(len(tokens))
	for k := range tf {
		tf[k] /= n
	}
	return tf
}

// CosineSimilarity compares two term-frequency vectors. Two empty
// vectors (no error text on either side) are defined as similarity 0,
// not 1 — absence of information is not evidence of similarity.
func CosineSimilarity(a, b map[string]float64) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for k, va := range a {
		normA += va * va
		if vb, ok := b[k]; ok {
			dot += va * vb
		}
	}
	for _, vb := range b {
		normB += vb * vb
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// JaccardSimilarity treats both slices as sets and returns
// |intersection| / |union|. Two empty sets are similarity 0.
func JaccardSimilarity(a, b []string) float64 {
	setA := toSet(a)
	setB := toSet(b)
	if len(setA) == 0 && len(setB) == 0 {
		return 0
	}
	intersection := 0
	for k := range setA {
		if setB[k] {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func toSet(items []string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, i := range items {
		set[i] = true
	}
	return set
}

// metadataScore awards 0.5 for a matching status and 0.5 for a matching
// verdict between two executions.
func metadataScore(a, b *contracts.ExecutionRecord) float64 {
	var score float64
	if a.Status == b.Status {
		score += 0.5
	}
	if a.Verdict == b.Verdict {
		score += 0.5
	}
	return score
}

// ComponentScores is the breakdown behind one combined similarity score.
type ComponentScores struct {
	Error    float64
	Path     float64
	Metadata float64
	Combined float64
}

// Score computes the combined similarity between seed and candidate:
// 0.5*error + 0.3*path + 0.2*metadata.
func Score(seed, candidate *contracts.ExecutionRecord) ComponentScores {
	errScore := CosineSimilarity(
		TermFreq(Tokenize(seed.ErrorMessage)),
		TermFreq(Tokenize(candidate.ErrorMessage)),
	)
	pathScore := JaccardSimilarity(seed.AffectedPaths, candidate.AffectedPaths)
	metaScore := metadataScore(seed, candidate)
	return ComponentScores{
		Error:    errScore,
		Path:     pathScore,
		Metadata: metaScore,
		Combined: weightError*errScore + weightPath*pathScore + weightMetadata*metaScore,
	}
}
