package assign

import (
	"cmp"
	"context"
	"log/slog"
	"runtime"
	"slices"

	"github.com/google/uuid"
	"github.com/siherrmann/linker/core/graph"
	"github.com/siherrmann/linker/helper"
	"github.com/siherrmann/linker/model"
	"golang.org/x/sync/errgroup"
)

// Engine maps clusters to knowledge base entities or NIL.
type Engine struct {
	strategy  Strategy
	threshold float64
	workers   int
	logger    *slog.Logger
}

// NewEngine validates the configuration and creates an assignment engine.
func NewEngine(config model.ThresholdConfig, logger *slog.Logger) (*Engine, error) {
	strategy, err := NewStrategy(config)
	if err != nil {
		return nil, err
	}

	workers := config.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Engine{
		strategy:  strategy,
		threshold: config.AssignmentThreshold,
		workers:   workers,
		logger:    logger,
	}, nil
}

// Candidates gathers the retained mention_entity edges of a cluster grouped
// by entity, ordered by entity id.
func Candidates(g *graph.Graph, c *model.Cluster) []Candidate {
	byEntity := map[model.EntityID][]float64{}
	it := c.Members.Iterator()
	for it.HasNext() {
		for _, e := range g.EntityEdges(int(it.Next())) {
			byEntity[e.Entity] = append(byEntity[e.Entity], e.Score)
		}
	}

	candidates := make([]Candidate, 0, len(byEntity))
	for entity, scores := range byEntity {
		candidates = append(candidates, Candidate{Entity: entity, Scores: scores})
	}
	slices.SortFunc(candidates, func(a, b Candidate) int { return cmp.Compare(a.Entity, b.Entity) })
	return candidates
}

// Assign decides one assignment per cluster, in cluster order. Clusters are
// decided in parallel from the read-only graph. NIL identifiers are derived
// from the run id and the cluster's first mention after all decisions are made.
func (e *Engine) Assign(ctx context.Context, runID uuid.UUID, g *graph.Graph, clusters []*model.Cluster) ([]*model.Assignment, []*helper.AmbiguousAssignmentWarning, error) {
	decisions := make([]Decision, len(clusters))

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(e.workers)
	for i, c := range clusters {
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			decisions[i] = e.strategy.Decide(Candidates(g, c), e.threshold)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, nil, helper.NewError("assign clusters", err)
	}

	assignments := make([]*model.Assignment, len(clusters))
	var warnings []*helper.AmbiguousAssignmentWarning
	nils := 0
	for i, c := range clusters {
		d := decisions[i]
		a := &model.Assignment{
			ClusterID: c.ID,
			Score:     d.Score,
		}
		if d.Accepted {
			a.Entity = d.Entity
			a.Support = d.Support
			if d.Ambiguous {
				w := &helper.AmbiguousAssignmentWarning{
					ClusterID: c.ID,
					Chosen:    int64(d.Entity),
					RunnerUp:  int64(d.RunnerUp),
					Score:     d.Score,
				}
				warnings = append(warnings, w)
				e.logger.Warn("ambiguous assignment", slog.Int("cluster", c.ID), slog.Int64("chosen", w.Chosen), slog.Int64("runner_up", w.RunnerUp), slog.Float64("score", w.Score))
			}
		} else {
			a.IsNil = true
			a.NilID = NilID(runID, c)
			nils++
		}
		assignments[i] = a
	}

	e.logger.Debug("clusters assigned", slog.String("strategy", string(e.strategy.Name())), slog.Int("clusters", len(clusters)), slog.Int("nil", nils), slog.Int("ambiguous", len(warnings)))
	return assignments, warnings, nil
}

// NilID derives a run scoped identifier for a NIL cluster. Clusters are
// disjoint, so their first mentions and therefore their ids are unique within a run.
func NilID(runID uuid.UUID, c *model.Cluster) string {
	if len(c.Mentions) == 0 {
		return uuid.NewSHA1(runID, nil).String()
	}
	return uuid.NewSHA1(runID, []byte(c.Mentions[0])).String()
}
