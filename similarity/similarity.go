package similarity

import (
	"math"

	"github.com/poiesic/paperfeed/core"
)

const (
	// TagWeight is the fallback points for each shared summary tag.
	TagWeight = 2
	// CategoryWeight is the fallback points for each shared arXiv category.
	CategoryWeight = 1
	// FallbackScale normalizes fallback points into [0, 1].
	FallbackScale = 10.0
)

// EmbeddingScore returns the dot product of a and b. The second result is
// false when either vector is empty or their lengths differ.
func EmbeddingScore(a, b core.Vector) (float64, bool) {
	if len(a) == 0 || len(a) != len(b) {
		return 0, false
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot, true
}

// FallbackScore scores two papers by tag and category overlap, capped at 1.
func FallbackScore(a, b core.Paper) float64 {
	points := TagWeight*overlap(a.Tags(), b.Tags()) + CategoryWeight*overlap(a.Categories, b.Categories)
	return math.Min(float64(points)/FallbackScale, 1)
}

// Score compares candidate to target, using embeddings when both papers
// carry compatible ones and falling back to tag overlap otherwise.
func Score(target, candidate core.Paper) (float64, core.Method) {
	if score, ok := EmbeddingScore(target.Embedding, candidate.Embedding); ok {
		return score, core.MethodEmbedding
	}
	return ScoreFallback(target, candidate)
}

// ScoreFallback always uses tag overlap, even when embeddings are present.
func ScoreFallback(target, candidate core.Paper) (float64, core.Method) {
	return FallbackScore(target, candidate), core.MethodTags
}

// Round rounds a score to two decimal places.
func Round(score float64) float64 {
	return math.Round(score*100) / 100
}

// overlap counts distinct values present in both a and b.
func overlap(a, b []string) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inB := make(map[string]struct{}, len(b))
	for _, v := range b {
		inB[v] = struct{}{}
	}
	count := 0
	for _, v := range a {
		if _, ok := inB[v]; ok {
			count++
			delete(inB, v)
		}
	}
	return count
}
