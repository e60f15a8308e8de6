package assign

import (
	"cmp"

	"github.com/siherrmann/linker/model"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// marginEpsilon absorbs float rounding in best-second differences.
const marginEpsilon = 1e-9

// Candidate collects the retained edges from the mentions of one cluster to one entity.
type Candidate struct {
	Entity model.EntityID
	// Scores holds one score per supporting mention
	Scores []float64
}

// Support returns the number of cluster mentions with a retained edge to the entity.
func (c Candidate) Support() int {
	return len(c.Scores)
}

// Decision is a strategy's verdict for one cluster.
type Decision struct {
	Accepted bool
	Entity   model.EntityID
	Score    float64
	Support  int
	// Ambiguous is set when RunnerUp ranked exactly equal and the lower entity id won.
	Ambiguous bool
	RunnerUp  model.EntityID
}

// Strategy decides a cluster's entity from its candidates. Candidates are
// ordered by ascending entity id and Decide must not depend on any other order.
type Strategy interface {
	Name() model.Strategy
	Decide(candidates []Candidate, threshold float64) Decision
}

// NewStrategy returns the strategy selected by the configuration.
func NewStrategy(config model.ThresholdConfig) (Strategy, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	aggregation := config.EffectiveAggregation()
	switch config.Strategy {
	case model.StrategyBottomUp:
		return BottomUp{}, nil
	case model.StrategyMajority:
		return Majority{Aggregation: aggregation}, nil
	default:
		return NastyLinker{Aggregation: aggregation, Margin: config.Margin}, nil
	}
}

// Aggregate collapses scores into the configured statistic.
func Aggregate(aggregation model.Aggregation, scores []float64) float64 {
	if len(scores) == 0 {
		return 0
	}
	if aggregation == model.AggregationMean {
		return stat.Mean(scores, nil)
	}
	return floats.Max(scores)
}

// ranked is a candidate with its ranking key, higher is better.
type ranked struct {
	candidate Candidate
	key       []float64
}

// rank returns the best and second best candidate under key. Equal keys
// resolve towards the lower entity id, which is the input order.
func rank(candidates []Candidate, key func(Candidate) []float64) (best, second *ranked) {
	for _, c := range candidates {
		r := &ranked{candidate: c, key: key(c)}
		switch {
		case best == nil:
			best = r
		case compareKeys(r.key, best.key) > 0:
			best, second = r, best
		case second == nil || compareKeys(r.key, second.key) > 0:
			second = r
		}
	}
	return best, second
}

func compareKeys(a, b []float64) int {
	for i := range a {
		if c := cmp.Compare(a[i], b[i]); c != 0 {
			return c
		}
	}
	return 0
}

func decision(best, second *ranked, score float64, accepted bool) Decision {
	d := Decision{
		Accepted: accepted,
		Entity:   best.candidate.Entity,
		Score:    score,
		Support:  best.candidate.Support(),
	}
	if second != nil && compareKeys(best.key, second.key) == 0 {
		d.Ambiguous = true
		d.RunnerUp = second.candidate.Entity
	}
	return d
}

// BottomUp assigns the entity with the highest single mention_entity score.
type BottomUp struct{}

func (BottomUp) Name() model.Strategy { return model.StrategyBottomUp }

func (BottomUp) Decide(candidates []Candidate, threshold float64) Decision {
	best, second := rank(candidates, func(c Candidate) []float64 {
		return []float64{floats.Max(c.Scores)}
	})
	if best == nil {
		return Decision{}
	}
	score := best.key[0]
	return decision(best, second, score, score >= threshold)
}

// Majority assigns the entity supported by the most cluster mentions, ties
// broken by the higher mean score. The winner is accepted if its aggregate
// reaches the threshold.
type Majority struct {
	Aggregation model.Aggregation
}

func (Majority) Name() model.Strategy { return model.StrategyMajority }

func (m Majority) Decide(candidates []Candidate, threshold float64) Decision {
	best, second := rank(candidates, func(c Candidate) []float64 {
		return []float64{float64(c.Support()), stat.Mean(c.Scores, nil)}
	})
	if best == nil {
		return Decision{}
	}
	score := Aggregate(m.Aggregation, best.candidate.Scores)
	return decision(best, second, score, score >= threshold)
}

// NastyLinker aggregates all cluster scores per entity and accepts the best
// aggregate if it reaches the threshold and leads the runner-up by at least Margin.
type NastyLinker struct {
	Aggregation model.Aggregation
	Margin      float64
}

func (NastyLinker) Name() model.Strategy { return model.StrategyNastyLinker }

func (n NastyLinker) Decide(candidates []Candidate, threshold float64) Decision {
	best, second := rank(candidates, func(c Candidate) []float64 {
		return []float64{Aggregate(n.Aggregation, c.Scores)}
	})
	if best == nil {
		return Decision{}
	}
	score := best.key[0]
	accepted := score >= threshold
	if second != nil && score-second.key[0] < n.Margin-marginEpsilon {
		accepted = false
	}
	return decision(best, second, score, accepted)
}
