package rerank

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/siherrmann/linker/core/similarity"
	"github.com/siherrmann/linker/helper"
	"github.com/siherrmann/linker/model"
)

// Reranker refines prefiltered edge scores with a second-pass scorer.
// It runs once before graph construction.
type Reranker struct {
	scorer   Scorer
	mentions map[model.MentionID]*model.Mention
	kb       *model.KnowledgeBase
	logger   *slog.Logger
}

// NewReranker creates a reranker resolving pair texts from the given mentions and knowledge base.
func NewReranker(scorer Scorer, mentions []*model.Mention, kb *model.KnowledgeBase, logger *slog.Logger) *Reranker {
	byID := make(map[model.MentionID]*model.Mention, len(mentions))
	for _, m := range mentions {
		if m == nil {
			continue
		}
		byID[m.ID] = m
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Reranker{scorer: scorer, mentions: byID, kb: kb, logger: logger}
}

// Rerank returns a store in which every kind refined by mode holds only its
// prefiltered candidate edges, scored by the scorer. Kinds not refined keep
// their first-pass edges. With mode none the store is returned as is.
func (r *Reranker) Rerank(ctx context.Context, store similarity.Store, mode model.RerankingMode, topK int) (similarity.Store, error) {
	if mode == model.RerankingNone {
		return store, nil
	}
	if r.scorer == nil {
		return nil, helper.NewConfigurationError("reranking_mode", fmt.Sprintf("%q requires a scorer", mode))
	}

	overlay := similarity.NewOverlay(store)
	for _, kind := range []model.EdgeKind{model.EdgeKindMentionMention, model.EdgeKindMentionEntity} {
		if !mode.Refines(kind) {
			continue
		}
		overlay.Restrict(kind)

		candidates := Prefilter(store, kind, topK)
		if len(candidates) == 0 {
			continue
		}

		pairs, err := r.pairs(candidates)
		if err != nil {
			return nil, err
		}
		scores, err := r.scorer.ScorePairs(ctx, pairs)
		if err != nil {
			return nil, helper.NewError(fmt.Sprintf("rerank %s edges", kind), err)
		}
		if len(scores) != len(pairs) {
			return nil, fmt.Errorf("scorer returned %d scores for %d pairs", len(scores), len(pairs))
		}

		for i, e := range candidates {
			e.Score = scores[i]
			if err := overlay.Replace(e); err != nil {
				return nil, err
			}
		}
		r.logger.Debug("reranked edges", slog.String("kind", string(kind)), slog.Int("candidates", len(candidates)), slog.Int("total", store.Len(kind)))
	}

	return overlay, nil
}

func (r *Reranker) pairs(edges []model.SimilarityEdge) ([]Pair, error) {
	pairs := make([]Pair, len(edges))
	for i, e := range edges {
		source, ok := r.mentions[e.SourceMention]
		if !ok {
			return nil, helper.NewDataIntegrityError("unknown mention", string(e.SourceMention))
		}
		pairs[i] = Pair{Edge: e, Query: source.Text}

		switch e.Kind {
		case model.EdgeKindMentionMention:
			target, ok := r.mentions[e.TargetMention]
			if !ok {
				return nil, helper.NewDataIntegrityError("unknown mention", string(e.TargetMention))
			}
			pairs[i].Candidate = target.Text
		case model.EdgeKindMentionEntity:
			if r.kb == nil || !r.kb.Contains(e.TargetEntity) {
				return nil, helper.NewDataIntegrityError("unknown entity", e.TargetEntity.String())
			}
			pairs[i].Candidate = r.kb.Name(e.TargetEntity)
		}
	}
	return pairs, nil
}
