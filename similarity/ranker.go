package similarity

import (
	"cmp"
	"log/slog"
	"slices"

	"github.com/poiesic/paperfeed/core"
)

// DefaultThreshold is the minimum score, exclusive, for a related paper.
const DefaultThreshold = 0.3

// Ranker selects the papers most similar to a target.
type Ranker struct {
	embeddingThreshold float64
	fallbackThreshold  float64
	forceFallback      bool
	logger             *slog.Logger
}

// RankerOption configures a Ranker.
type RankerOption func(*Ranker)

// WithEmbeddingThreshold sets the exclusive minimum for embedding-mode scores.
func WithEmbeddingThreshold(threshold float64) RankerOption {
	return func(r *Ranker) {
		r.embeddingThreshold = threshold
	}
}

// WithFallbackThreshold sets the exclusive minimum for tag-overlap scores.
func WithFallbackThreshold(threshold float64) RankerOption {
	return func(r *Ranker) {
		r.fallbackThreshold = threshold
	}
}

// WithForceFallback scores every candidate by tag overlap.
func WithForceFallback() RankerOption {
	return func(r *Ranker) {
		r.forceFallback = true
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) RankerOption {
	return func(r *Ranker) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRanker creates a Ranker with both thresholds at DefaultThreshold.
func NewRanker(opts ...RankerOption) *Ranker {
	r := &Ranker{
		embeddingThreshold: DefaultThreshold,
		fallbackThreshold:  DefaultThreshold,
		logger:             slog.Default().With("component", "ranker"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Rank returns up to topK papers from pool most similar to target, best
// first. The target itself is never returned. A raw score must exceed the
// threshold of the mode that produced it; returned scores are rounded to two
// decimals after filtering and sorting.
// Returned papers carry no embeddings.
func (r *Ranker) Rank(target core.Paper, pool []core.Paper, topK int) []core.Match {
	if topK <= 0 || len(pool) == 0 {
		return []core.Match{}
	}

	matches := make([]core.Match, 0, len(pool))
	byMethod := map[core.Method]int{}
	for _, candidate := range pool {
		if candidate.ID == target.ID {
			continue
		}

		var score float64
		var method core.Method
		if r.forceFallback {
			score, method = ScoreFallback(target, candidate)
		} else {
			score, method = Score(target, candidate)
		}

		if score <= r.threshold(method) {
			continue
		}
		byMethod[method]++
		matches = append(matches, core.Match{
			Paper:        candidate.WithoutEmbedding(),
			Score:        score,
			Method:       method,
			HasEmbedding: candidate.HasEmbedding(),
		})
	}

	slices.SortStableFunc(matches, func(a, b core.Match) int {
		return cmp.Compare(b.Score, a.Score)
	})
	if len(matches) > topK {
		matches = matches[:topK]
	}
	for i := range matches {
		matches[i].Score = Round(matches[i].Score)
	}

	r.logger.Debug("ranked related papers",
		"target", target.ID,
		"pool", len(pool),
		"embedding", byMethod[core.MethodEmbedding],
		"tags", byMethod[core.MethodTags],
		"returned", len(matches))
	return matches
}

func (r *Ranker) threshold(method core.Method) float64 {
	if method == core.MethodEmbedding {
		return r.embeddingThreshold
	}
	return r.fallbackThreshold
}

// Rank ranks with a default Ranker.
func Rank(target core.Paper, pool []core.Paper, topK int) []core.Match {
	return NewRanker().Rank(target, pool, topK)
}
