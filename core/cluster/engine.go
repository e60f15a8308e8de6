package cluster

import (
	"fmt"
	"log/slog"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/siherrmann/linker/core/graph"
	"github.com/siherrmann/linker/helper"
	"github.com/siherrmann/linker/model"
)

// Engine computes connected components over the retained mention_mention edges.
type Engine struct {
	logger *slog.Logger
}

// NewEngine creates a clustering engine.
func NewEngine(logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{logger: logger}
}

// Cluster partitions the graph's mentions. Merges run single-threaded over
// the already filtered edge list. Clusters are ordered by their smallest
// arena index and numbered in that order, mentions inside a cluster keep
// source-then-position order.
func (e *Engine) Cluster(g *graph.Graph) ([]*model.Cluster, error) {
	uf := NewUnionFind(g.Len())
	for _, edge := range g.Edges() {
		uf.Union(edge.A, edge.B)
	}

	clusters := make([]*model.Cluster, 0, uf.Sets())
	byRoot := make(map[int]*model.Cluster, uf.Sets())
	for i := 0; i < g.Len(); i++ {
		root := uf.Find(i)
		c, ok := byRoot[root]
		if !ok {
			c = &model.Cluster{ID: len(clusters), Members: roaring.New()}
			byRoot[root] = c
			clusters = append(clusters, c)
		}
		c.Members.Add(uint32(i))
		c.Mentions = append(c.Mentions, g.Mention(i).ID)
	}

	if err := VerifyPartition(g.Len(), clusters); err != nil {
		return nil, err
	}

	e.logger.Debug("clusters built", slog.Int("mentions", g.Len()), slog.Int("edges", len(g.Edges())), slog.Int("clusters", len(clusters)))
	return clusters, nil
}

// VerifyPartition checks that the clusters cover the arena indices [0,n)
// exactly once.
func VerifyPartition(n int, clusters []*model.Cluster) error {
	seen := roaring.New()
	total := uint64(0)
	for _, c := range clusters {
		if c.Members == nil || c.Members.IsEmpty() {
			return helper.NewDataIntegrityError("empty cluster", fmt.Sprint(c.ID))
		}
		if seen.Intersects(c.Members) {
			return helper.NewDataIntegrityError("mention in more than one cluster", fmt.Sprint(c.ID))
		}
		if int(c.Members.GetCardinality()) != len(c.Mentions) {
			return helper.NewDataIntegrityError("cluster members and mentions disagree", fmt.Sprint(c.ID))
		}
		seen.Or(c.Members)
		total += c.Members.GetCardinality()
	}

	if total != uint64(n) || (n > 0 && seen.Maximum() != uint32(n-1)) {
		return helper.NewDataIntegrityError(fmt.Sprintf("clusters cover %d of %d mentions", total, n), "")
	}
	return nil
}
