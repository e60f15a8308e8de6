package graph

import (
	"cmp"
	"context"
	"fmt"
	"runtime"
	"slices"

	"github.com/siherrmann/linker/core/similarity"
	"github.com/siherrmann/linker/helper"
	"github.com/siherrmann/linker/model"
	"golang.org/x/sync/errgroup"
)

// Neighbor is a retained mention_mention edge seen from one endpoint.
type Neighbor struct {
	Index int
	Score float64
}

// EntityEdge is a retained mention_entity edge seen from its mention.
type EntityEdge struct {
	Entity model.EntityID
	Score  float64
}

// Edge is a retained mention_mention edge between arena indices, A < B.
type Edge struct {
	A, B  int
	Score float64
}

// Graph is the thresholded, read-only similarity graph of one run.
// Mentions live in an arena ordered source-then-position and are addressed
// by their index.
type Graph struct {
	mentions   []*model.Mention
	index      map[model.MentionID]int
	edges      []Edge
	neighbors  [][]Neighbor
	candidates [][]EntityEdge
	kb         *model.KnowledgeBase
}

// Build filters the store's edges by the mention and entity thresholds and
// builds the graph. Filtering runs in parallel. Any edge referencing an
// unknown mention or entity fails the whole build.
func Build(ctx context.Context, mentions []*model.Mention, kb *model.KnowledgeBase, store similarity.Store, config model.ThresholdConfig) (*Graph, error) {
	if kb == nil {
		kb, _ = model.NewKnowledgeBase(nil)
	}

	g := &Graph{
		mentions: make([]*model.Mention, 0, len(mentions)),
		index:    make(map[model.MentionID]int, len(mentions)),
		kb:       kb,
	}
	for _, m := range mentions {
		if m == nil {
			continue
		}
		g.mentions = append(g.mentions, m)
	}
	slices.SortFunc(g.mentions, model.CompareMentions)
	for i, m := range g.mentions {
		if _, exists := g.index[m.ID]; exists {
			return nil, helper.NewDataIntegrityError("duplicate mention", string(m.ID))
		}
		g.index[m.ID] = i
	}

	workers := config.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	mentionEdges := similarity.Collect(store, model.EdgeKindMentionMention)
	retained, err := filter(ctx, mentionEdges, workers, func(e model.SimilarityEdge) (Edge, bool, error) {
		a, ok := g.index[e.SourceMention]
		if !ok {
			return Edge{}, false, helper.NewDataIntegrityError("edge references unknown mention", string(e.SourceMention))
		}
		b, ok := g.index[e.TargetMention]
		if !ok {
			return Edge{}, false, helper.NewDataIntegrityError("edge references unknown mention", string(e.TargetMention))
		}
		if !model.ValidScore(e.Score) {
			return Edge{}, false, helper.NewDataIntegrityError(fmt.Sprintf("score %v outside [0,1]", e.Score), string(e.SourceMention))
		}
		if a == b || e.Score < config.MentionThreshold {
			return Edge{}, false, nil
		}
		if b < a {
			a, b = b, a
		}
		return Edge{A: a, B: b, Score: e.Score}, true, nil
	})
	if err != nil {
		return nil, helper.NewError("filter mention edges", err)
	}

	entityEdges := similarity.Collect(store, model.EdgeKindMentionEntity)
	type indexedEntityEdge struct {
		mention int
		edge    EntityEdge
	}
	retainedEntities, err := filter(ctx, entityEdges, workers, func(e model.SimilarityEdge) (indexedEntityEdge, bool, error) {
		m, ok := g.index[e.SourceMention]
		if !ok {
			return indexedEntityEdge{}, false, helper.NewDataIntegrityError("edge references unknown mention", string(e.SourceMention))
		}
		if !kb.Contains(e.TargetEntity) {
			return indexedEntityEdge{}, false, helper.NewDataIntegrityError("edge references unknown entity", e.TargetEntity.String())
		}
		if !model.ValidScore(e.Score) {
			return indexedEntityEdge{}, false, helper.NewDataIntegrityError(fmt.Sprintf("score %v outside [0,1]", e.Score), string(e.SourceMention))
		}
		if e.Score < config.EntityThreshold {
			return indexedEntityEdge{}, false, nil
		}
		return indexedEntityEdge{mention: m, edge: EntityEdge{Entity: e.TargetEntity, Score: e.Score}}, true, nil
	})
	if err != nil {
		return nil, helper.NewError("filter entity edges", err)
	}

	// Duplicates collapse to their highest score.
	slices.SortFunc(retained, func(x, y Edge) int {
		if c := cmp.Compare(x.A, y.A); c != 0 {
			return c
		}
		if c := cmp.Compare(x.B, y.B); c != 0 {
			return c
		}
		return cmp.Compare(y.Score, x.Score)
	})
	g.edges = slices.CompactFunc(retained, func(x, y Edge) bool { return x.A == y.A && x.B == y.B })

	g.neighbors = make([][]Neighbor, len(g.mentions))
	for _, e := range g.edges {
		g.neighbors[e.A] = append(g.neighbors[e.A], Neighbor{Index: e.B, Score: e.Score})
		g.neighbors[e.B] = append(g.neighbors[e.B], Neighbor{Index: e.A, Score: e.Score})
	}
	for _, n := range g.neighbors {
		slices.SortFunc(n, func(x, y Neighbor) int { return cmp.Compare(x.Index, y.Index) })
	}

	g.candidates = make([][]EntityEdge, len(g.mentions))
	for _, e := range retainedEntities {
		g.candidates[e.mention] = append(g.candidates[e.mention], e.edge)
	}
	for i, c := range g.candidates {
		slices.SortFunc(c, func(x, y EntityEdge) int {
			if d := cmp.Compare(x.Entity, y.Entity); d != 0 {
				return d
			}
			return cmp.Compare(y.Score, x.Score)
		})
		g.candidates[i] = slices.CompactFunc(c, func(x, y EntityEdge) bool { return x.Entity == y.Entity })
	}

	return g, nil
}

// filter applies keep to every edge in parallel chunks and concatenates the
// kept results in input order.
func filter[T any](ctx context.Context, edges []model.SimilarityEdge, workers int, keep func(model.SimilarityEdge) (T, bool, error)) ([]T, error) {
	if len(edges) == 0 {
		return nil, nil
	}

	chunkSize := max(1024, (len(edges)+workers-1)/workers)
	chunks := make([][]T, (len(edges)+chunkSize-1)/chunkSize)

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(workers)
	for c := range chunks {
		start := c * chunkSize
		end := min(start+chunkSize, len(edges))
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			kept := make([]T, 0, end-start)
			for _, e := range edges[start:end] {
				v, ok, err := keep(e)
				if err != nil {
					return err
				}
				if ok {
					kept = append(kept, v)
				}
			}
			chunks[c] = kept
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	return slices.Concat(chunks...), nil
}

// Len returns the number of mentions.
func (g *Graph) Len() int {
	return len(g.mentions)
}

// Mention returns the mention at arena index i.
func (g *Graph) Mention(i int) *model.Mention {
	return g.mentions[i]
}

// Mentions returns the arena in source-then-position order.
func (g *Graph) Mentions() []*model.Mention {
	return slices.Clone(g.mentions)
}

// Index returns the arena index of a mention id.
func (g *Graph) Index(id model.MentionID) (int, bool) {
	i, ok := g.index[id]
	return i, ok
}

// Edges returns the retained mention_mention edges ordered by (A, B).
func (g *Graph) Edges() []Edge {
	return g.edges
}

// Neighbors returns the retained mention_mention neighbors of i ordered by index.
func (g *Graph) Neighbors(i int) []Neighbor {
	return g.neighbors[i]
}

// EntityEdges returns the retained mention_entity edges of i ordered by entity id.
func (g *Graph) EntityEdges(i int) []EntityEdge {
	return g.candidates[i]
}

// EntityEdgeCount returns the number of retained mention_entity edges.
func (g *Graph) EntityEdgeCount() int {
	n := 0
	for _, c := range g.candidates {
		n += len(c)
	}
	return n
}

// KnowledgeBase returns the knowledge base the graph was built against.
func (g *Graph) KnowledgeBase() *model.KnowledgeBase {
	return g.kb
}
