package rerank

import (
	"context"

	"github.com/siherrmann/linker/model"
)

// Pair is one candidate edge handed to a second-pass scorer together with
// the texts of its endpoints.
type Pair struct {
	Edge      model.SimilarityEdge
	Query     string
	Candidate string
}

// Scorer computes refined scores in [0,1] for candidate pairs.
// The result has one score per pair in the same order.
type Scorer interface {
	ScorePairs(ctx context.Context, pairs []Pair) ([]float64, error)
}

// ScoreFunc adapts a plain function to the Scorer interface.
type ScoreFunc func(ctx context.Context, pairs []Pair) ([]float64, error)

func (f ScoreFunc) ScorePairs(ctx context.Context, pairs []Pair) ([]float64, error) {
	return f(ctx, pairs)
}
