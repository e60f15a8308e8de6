package rerank

import (
	"context"
	"fmt"

	"github.com/knights-analytics/hugot"
	"github.com/siherrmann/linker/helper"
	"gonum.org/v1/gonum/floats"
)

// DefaultEmbeddingModel is a sentence transformer producing 384-dimensional embeddings.
const DefaultEmbeddingModel = "sentence-transformers/all-MiniLM-L6-v2"

// EmbedBatchFunc embeds a batch of texts, one vector per text.
type EmbedBatchFunc func(texts []string) ([][]float32, error)

// EmbeddingScorer scores pairs by the cosine similarity of their text
// embeddings, mapped from [-1,1] to [0,1].
type EmbeddingScorer struct {
	embed   EmbedBatchFunc
	destroy func() error
}

// NewEmbeddingScorer loads a feature-extraction model with the hugot Go backend,
// downloading it into helper.ModelDir if needed.
func NewEmbeddingScorer(modelName string) (*EmbeddingScorer, error) {
	modelPath, err := helper.PrepareModel(modelName, "")
	if err != nil {
		return nil, err
	}

	session, err := hugot.NewGoSession()
	if err != nil {
		return nil, fmt.Errorf("failed to create hugot session: %w", err)
	}

	config := hugot.FeatureExtractionConfig{
		ModelPath: modelPath,
		Name:      "rerank-embedding-pipeline",
	}
	pipeline, err := hugot.NewPipeline(session, config)
	if err != nil {
		if destroyErr := session.Destroy(); destroyErr != nil {
			return nil, fmt.Errorf("failed to create embedding pipeline: %w (cleanup error: %v)", err, destroyErr)
		}
		return nil, fmt.Errorf("failed to create embedding pipeline: %w", err)
	}

	embed := func(texts []string) ([][]float32, error) {
		result, err := pipeline.RunPipeline(texts)
		if err != nil {
			return nil, fmt.Errorf("failed to generate embeddings: %w", err)
		}
		return result.Embeddings, nil
	}
	return &EmbeddingScorer{embed: embed, destroy: session.Destroy}, nil
}

// NewEmbeddingScorerFromFunc creates a scorer over any batch embedder.
func NewEmbeddingScorerFromFunc(embed EmbedBatchFunc) *EmbeddingScorer {
	return &EmbeddingScorer{embed: embed}
}

// ScorePairs embeds every distinct text once and scores each pair.
func (s *EmbeddingScorer) ScorePairs(ctx context.Context, pairs []Pair) ([]float64, error) {
	if len(pairs) == 0 {
		return []float64{}, nil
	}

	index := map[string]int{}
	texts := []string{}
	for _, p := range pairs {
		for _, t := range []string{p.Query, p.Candidate} {
			if _, ok := index[t]; !ok {
				index[t] = len(texts)
				texts = append(texts, t)
			}
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	embeddings, err := s.embed(texts)
	if err != nil {
		return nil, helper.NewError("embed pairs", err)
	}
	if len(embeddings) != len(texts) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d texts", len(embeddings), len(texts))
	}

	vectors := make([][]float64, len(embeddings))
	for i, e := range embeddings {
		vectors[i] = toFloat64(e)
	}

	scores := make([]float64, len(pairs))
	for i, p := range pairs {
		scores[i] = cosineScore(vectors[index[p.Query]], vectors[index[p.Candidate]])
	}
	return scores, nil
}

// Embed returns one embedding per text. It is used to store mention and
// entity vectors for database candidate generation.
func (s *EmbeddingScorer) Embed(texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	embeddings, err := s.embed(texts)
	if err != nil {
		return nil, helper.NewError("embed texts", err)
	}
	if len(embeddings) != len(texts) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d texts", len(embeddings), len(texts))
	}
	return embeddings, nil
}

// Close releases the hugot session if the scorer owns one.
func (s *EmbeddingScorer) Close() error {
	if s.destroy == nil {
		return nil
	}
	return s.destroy()
}

func cosineScore(a, b []float64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	na, nb := floats.Norm(a, 2), floats.Norm(b, 2)
	if na == 0 || nb == 0 {
		return 0
	}
	cos := floats.Dot(a, b) / (na * nb)
	return min(max((cos+1)/2, 0), 1)
}

func toFloat64(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}
