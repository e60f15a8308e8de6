package main

import (
	"fmt"
	"io"

	"github.com/siherrmann/linker/core/rerank"
	"github.com/siherrmann/linker/helper"
)

// newScorer builds the configured second-pass scorer. The returned closer
// releases model resources and is never nil.
func newScorer() (rerank.Scorer, io.Closer, error) {
	switch kind := v.GetString("scorer.kind"); kind {
	case "", "none":
		return nil, nopCloser{}, nil
	case "embedding":
		modelName := v.GetString("scorer.model")
		if modelName == "" {
			modelName = rerank.DefaultEmbeddingModel
		}
		s, err := rerank.NewEmbeddingScorer(modelName)
		if err != nil {
			return nil, nil, helper.NewError("create embedding scorer", err)
		}
		return s, s, nil
	case "http":
		url := v.GetString("scorer.url")
		if url == "" {
			return nil, nil, helper.NewConfigurationError("scorer.url", "is required for the http scorer")
		}
		return rerank.NewHTTPScorer(url, v.GetDuration("scorer.timeout")), nopCloser{}, nil
	default:
		return nil, nil, helper.NewConfigurationError("scorer.kind", fmt.Sprintf("unknown value %q", kind))
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
