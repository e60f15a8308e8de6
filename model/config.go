package model

import (
	"fmt"

	"github.com/siherrmann/linker/helper"
)

// Strategy selects how a cluster is mapped to a knowledge base entity.
type Strategy string

const (
	StrategyBottomUp    Strategy = "bottom_up"
	StrategyMajority    Strategy = "majority"
	StrategyNastyLinker Strategy = "nasty_linker"
)

// RerankingMode selects which edge kinds are refined by the second-pass scorer.
type RerankingMode string

const (
	RerankingNone    RerankingMode = "none"
	RerankingMention RerankingMode = "mention"
	RerankingEntity  RerankingMode = "entity"
	RerankingFull    RerankingMode = "full"
)

// Refines reports whether the mode refines edges of the given kind.
func (m RerankingMode) Refines(kind EdgeKind) bool {
	switch m {
	case RerankingFull:
		return true
	case RerankingMention:
		return kind == EdgeKindMentionMention
	case RerankingEntity:
		return kind == EdgeKindMentionEntity
	}
	return false
}

// Aggregation is the statistic used to collapse the scores of one candidate entity.
type Aggregation string

const (
	AggregationDefault Aggregation = ""
	AggregationMean    Aggregation = "mean"
	AggregationMax     Aggregation = "max"
)

// ThresholdConfig is the per-invocation configuration of a linking run.
type ThresholdConfig struct {
	Strategy      Strategy      `json:"strategy" mapstructure:"strategy"`
	RerankingMode RerankingMode `json:"reranking_mode" mapstructure:"reranking_mode"`

	// Edge retention and acceptance thresholds
	MentionThreshold    float64 `json:"mention_threshold" mapstructure:"mention_threshold"`       // τ_m
	EntityThreshold     float64 `json:"entity_threshold" mapstructure:"entity_threshold"`         // τ_e
	AssignmentThreshold float64 `json:"assignment_threshold" mapstructure:"assignment_threshold"` // τ_a

	// Strategy tuning. An empty Aggregation selects the strategy default
	// (max for majority, mean for nasty_linker).
	Aggregation Aggregation `json:"aggregation,omitempty" mapstructure:"aggregation"`
	Margin      float64     `json:"margin" mapstructure:"margin"`

	// Candidates per mention kept by the reranking prefilter
	TopK int `json:"top_k" mapstructure:"top_k"`
	// Assignment workers, 0 means one per CPU
	Workers int `json:"workers" mapstructure:"workers"`
}

// DefaultThresholdConfig returns the documented fallback configuration.
func DefaultThresholdConfig() ThresholdConfig {
	return ThresholdConfig{
		Strategy:            StrategyNastyLinker,
		RerankingMode:       RerankingNone,
		MentionThreshold:    0.8,
		EntityThreshold:     0.5,
		AssignmentThreshold: 0.75,
		Aggregation:         AggregationDefault,
		Margin:              0.05,
		TopK:                10,
		Workers:             0,
	}
}

// EffectiveAggregation resolves AggregationDefault for the configured strategy.
func (c ThresholdConfig) EffectiveAggregation() Aggregation {
	if c.Aggregation != AggregationDefault {
		return c.Aggregation
	}
	if c.Strategy == StrategyNastyLinker {
		return AggregationMean
	}
	return AggregationMax
}

// Validate rejects unknown tags and out of range values.
func (c ThresholdConfig) Validate() error {
	switch c.Strategy {
	case StrategyBottomUp, StrategyMajority, StrategyNastyLinker:
	default:
		return helper.NewConfigurationError("strategy", fmt.Sprintf("unknown value %q", c.Strategy))
	}

	switch c.RerankingMode {
	case RerankingNone, RerankingMention, RerankingEntity, RerankingFull:
	default:
		return helper.NewConfigurationError("reranking_mode", fmt.Sprintf("unknown value %q", c.RerankingMode))
	}

	switch c.Aggregation {
	case AggregationDefault, AggregationMean, AggregationMax:
	default:
		return helper.NewConfigurationError("aggregation", fmt.Sprintf("unknown value %q", c.Aggregation))
	}

	thresholds := []struct {
		name  string
		value float64
	}{
		{"mention_threshold", c.MentionThreshold},
		{"entity_threshold", c.EntityThreshold},
		{"assignment_threshold", c.AssignmentThreshold},
		{"margin", c.Margin},
	}
	for _, th := range thresholds {
		if !ValidScore(th.value) {
			return helper.NewConfigurationError(th.name, fmt.Sprintf("%v outside [0,1]", th.value))
		}
	}

	if c.RerankingMode != RerankingNone && c.TopK <= 0 {
		return helper.NewConfigurationError("top_k", "must be positive when reranking is enabled")
	}
	if c.Workers < 0 {
		return helper.NewConfigurationError("workers", "must not be negative")
	}

	return nil
}
