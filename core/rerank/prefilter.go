package rerank

import (
	"cmp"
	"slices"

	"github.com/siherrmann/linker/core/similarity"
	"github.com/siherrmann/linker/model"
)

// Prefilter selects the edges of a kind that are among the topK best edges
// of at least one of their mention endpoints. Equal scores are ordered by the
// other endpoint's id. Self-loops are never candidates. The result keeps the
// store's edge order.
func Prefilter(store similarity.Store, kind model.EdgeKind, topK int) []model.SimilarityEdge {
	if topK <= 0 {
		return nil
	}

	edges := slices.DeleteFunc(similarity.Collect(store, kind), model.SimilarityEdge.IsSelfLoop)
	byMention := make(map[model.MentionID][]int)
	for i, e := range edges {
		byMention[e.SourceMention] = append(byMention[e.SourceMention], i)
		if kind == model.EdgeKindMentionMention {
			byMention[e.TargetMention] = append(byMention[e.TargetMention], i)
		}
	}

	selected := make([]bool, len(edges))
	for m, idx := range byMention {
		slices.SortFunc(idx, func(x, y int) int {
			if c := cmp.Compare(edges[y].Score, edges[x].Score); c != 0 {
				return c
			}
			return compareOther(edges[x], edges[y], m)
		})
		for _, i := range idx[:min(topK, len(idx))] {
			selected[i] = true
		}
	}

	candidates := make([]model.SimilarityEdge, 0, len(edges))
	for i, e := range edges {
		if selected[i] {
			candidates = append(candidates, e)
		}
	}
	return candidates
}

func compareOther(x, y model.SimilarityEdge, from model.MentionID) int {
	if x.Kind == model.EdgeKindMentionEntity {
		return cmp.Compare(x.TargetEntity, y.TargetEntity)
	}
	return cmp.Compare(other(x, from), other(y, from))
}

func other(e model.SimilarityEdge, from model.MentionID) model.MentionID {
	if e.SourceMention == from {
		return e.TargetMention
	}
	return e.SourceMention
}
