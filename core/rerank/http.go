package rerank

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"runtime"
	"time"

	"github.com/siherrmann/linker/helper"
	"golang.org/x/sync/errgroup"
)

// HTTPScorer calls a cross-encoder service that scores (query, candidate) pairs.
// Pairs are split into batches that are sent concurrently.
type HTTPScorer struct {
	origin     string
	httpClient *http.Client
	batchSize  int
	workers    int
}

// NewHTTPScorer creates a scorer posting to origin + "/rerank".
func NewHTTPScorer(origin string, timeout time.Duration) *HTTPScorer {
	return &HTTPScorer{
		origin:     origin,
		httpClient: &http.Client{Timeout: timeout},
		batchSize:  32,
		workers:    runtime.NumCPU(),
	}
}

type scoreRequest struct {
	Pairs []scorePair `json:"pairs"`
}

type scorePair struct {
	Query     string `json:"query"`
	Candidate string `json:"candidate"`
}

type scoreResponse struct {
	Scores []float64 `json:"scores"`
	Error  string    `json:"error"`
}

func (s *HTTPScorer) ScorePairs(ctx context.Context, pairs []Pair) ([]float64, error) {
	scores := make([]float64, len(pairs))

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(s.workers)
	for start := 0; start < len(pairs); start += s.batchSize {
		end := min(start+s.batchSize, len(pairs))
		eg.Go(func() error {
			batch, err := s.performScore(ctx, pairs[start:end])
			if err != nil {
				return err
			}
			// batches write disjoint ranges
			copy(scores[start:end], batch)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	return scores, nil
}

func (s *HTTPScorer) performScore(ctx context.Context, pairs []Pair) ([]float64, error) {
	input := scoreRequest{Pairs: make([]scorePair, len(pairs))}
	for i, p := range pairs {
		input.Pairs[i] = scorePair{Query: p.Query, Candidate: p.Candidate}
	}
	body, err := json.Marshal(input)
	if err != nil {
		return nil, helper.NewError("marshal body", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.origin+"/rerank", bytes.NewReader(body))
	if err != nil {
		return nil, helper.NewError("create POST request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := s.httpClient.Do(req)
	if err != nil {
		return nil, helper.NewError("send POST request", err)
	}
	defer res.Body.Close()

	bodyBytes, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, helper.NewError("read response body", err)
	}

	var resBody scoreResponse
	if err := json.Unmarshal(bodyBytes, &resBody); err != nil {
		return nil, helper.NewError("unmarshal response body", err)
	}

	if res.StatusCode != http.StatusOK {
		if resBody.Error != "" {
			return nil, fmt.Errorf("fail with status %d: %s", res.StatusCode, resBody.Error)
		}
		return nil, fmt.Errorf("fail with status %d", res.StatusCode)
	}
	if len(resBody.Scores) != len(pairs) {
		return nil, fmt.Errorf("scorer returned %d scores for %d pairs", len(resBody.Scores), len(pairs))
	}

	return resBody.Scores, nil
}
