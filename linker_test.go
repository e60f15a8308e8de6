package linker

import (
	"context"
	"io"
	"log/slog"
	"slices"
	"strings"
	"testing"

	"github.com/siherrmann/linker/core/rerank"
	"github.com/siherrmann/linker/core/similarity"
	"github.com/siherrmann/linker/helper"
	"github.com/siherrmann/linker/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mm(a, b string, score float64) model.SimilarityEdge {
	return model.SimilarityEdge{Kind: model.EdgeKindMentionMention, SourceMention: model.MentionID(a), TargetMention: model.MentionID(b), Score: score}
}

func me(m string, e int64, score float64) model.SimilarityEdge {
	return model.SimilarityEdge{Kind: model.EdgeKindMentionEntity, SourceMention: model.MentionID(m), TargetEntity: model.EntityID(e), Score: score}
}

func testLinker() *Linker {
	return NewLinker(helper.NewLogger(io.Discard, slog.LevelDebug))
}

func scenarioInput(t *testing.T, edges ...model.SimilarityEdge) *Input {
	t.Helper()
	kb, err := model.NewKnowledgeBase([]*model.Entity{{ID: 1, Name: "Alexanderplatz"}, {ID: 2, Name: "Tresor"}})
	require.NoError(t, err)
	store, err := similarity.NewMemoryStoreFromEdges(edges)
	require.NoError(t, err)

	return &Input{
		Mentions: []*model.Mention{
			{ID: "m1", Page: "Berlin", Listing: 0, Item: 0, Text: "Alexanderplatz"},
			{ID: "m2", Page: "Berlin", Listing: 0, Item: 1, Text: "Alex"},
			{ID: "m3", Page: "Berlin", Listing: 1, Item: 0, Text: "Tresor"},
		},
		KnowledgeBase: kb,
		Store:         store,
	}
}

func scenarioConfig() model.ThresholdConfig {
	config := model.DefaultThresholdConfig()
	config.Strategy = model.StrategyBottomUp
	config.MentionThreshold = 0.8
	config.EntityThreshold = 0.5
	config.AssignmentThreshold = 0.75
	return config
}

func TestRun(t *testing.T) {
	ctx := context.Background()
	l := testLinker()

	t.Run("Links clusters end to end", func(t *testing.T) {
		input := scenarioInput(t,
			mm("m1", "m2", 0.95), mm("m2", "m3", 0.4),
			me("m1", 1, 0.9), me("m2", 1, 0.6), me("m3", 2, 0.92),
		)

		result, err := l.Run(ctx, input, scenarioConfig())
		require.NoError(t, err)

		require.Len(t, result.Clusters, 2)
		require.Len(t, result.Assignments, 2)
		assert.Equal(t, model.EntityID(1), result.Assignments[0].Entity)
		assert.Equal(t, model.EntityID(2), result.Assignments[1].Entity)
		assert.Empty(t, result.Warnings)

		require.Len(t, result.Records, 2)
		assert.Equal(t, int64(1), result.Records[0].Idx)
		assert.Len(t, result.Records[0].Mentions, 2)
		assert.Equal(t, int64(2), result.Records[1].Idx)
	})

	t.Run("Invalid configuration is rejected before processing", func(t *testing.T) {
		config := scenarioConfig()
		config.MentionThreshold = 1.5

		_, err := l.Run(ctx, nil, config)
		require.Error(t, err)
		assert.True(t, helper.IsConfigurationError(err))
	})

	t.Run("Edge to unknown mention fails the batch", func(t *testing.T) {
		input := scenarioInput(t, mm("m1", "ghost", 0.9))

		_, err := l.Run(ctx, input, scenarioConfig())
		require.Error(t, err)
		assert.True(t, helper.IsDataIntegrityError(err))
	})

	t.Run("Scores from a JSON lines feed", func(t *testing.T) {
		input := scenarioInput(t)
		input.Store = nil
		input.Feed = similarity.NewJSONLinesFeed(strings.NewReader(strings.Join([]string{
			`{"kind":"mention_mention","a":"m1","b":"m2","score":0.9}`,
			`{"kind":"mention_entity","a":"m2","b":"1","score":0.8}`,
		}, "\n")))

		result, err := l.Run(ctx, input, scenarioConfig())
		require.NoError(t, err)
		require.Len(t, result.Assignments, 2)
		assert.Equal(t, model.EntityID(1), result.Assignments[0].Entity)
		assert.True(t, result.Assignments[1].IsNil)
		assert.Equal(t, int64(3), result.Records[1].Idx)
	})

	t.Run("Without scores every mention is its own NIL cluster", func(t *testing.T) {
		input := scenarioInput(t)
		input.Store = nil

		result, err := l.Run(ctx, input, scenarioConfig())
		require.NoError(t, err)
		assert.Len(t, result.Clusters, 3)
		for _, a := range result.Assignments {
			assert.True(t, a.IsNil)
		}
	})

	t.Run("Reranking replaces candidate scores", func(t *testing.T) {
		input := scenarioInput(t,
			mm("m1", "m2", 0.5),
			me("m3", 2, 0.6),
		)
		input.Scorer = rerank.ScoreFunc(func(ctx context.Context, pairs []rerank.Pair) ([]float64, error) {
			scores := make([]float64, len(pairs))
			for i := range scores {
				scores[i] = 0.99
			}
			return scores, nil
		})
		config := scenarioConfig()
		config.RerankingMode = model.RerankingFull

		result, err := l.Run(ctx, input, config)
		require.NoError(t, err)
		require.Len(t, result.Clusters, 2)
		assert.Equal(t, []model.MentionID{"m1", "m2"}, result.Clusters[0].Mentions)
		assert.Equal(t, model.EntityID(2), result.Assignments[1].Entity)
		assert.Equal(t, 0.99, result.Assignments[1].Score)
	})

	t.Run("Edge outside the rerank candidates cannot merge clusters", func(t *testing.T) {
		input := scenarioInput(t,
			mm("m1", "m2", 0.95),
			mm("m1", "m3", 0.85),
			mm("m2", "m3", 0.9),
		)
		input.Scorer = rerank.ScoreFunc(func(ctx context.Context, pairs []rerank.Pair) ([]float64, error) {
			return slices.Repeat([]float64{0.1}, len(pairs)), nil
		})
		config := scenarioConfig()
		config.RerankingMode = model.RerankingMention
		config.TopK = 1

		result, err := l.Run(ctx, input, config)
		require.NoError(t, err)
		assert.Empty(t, result.Graph.Edges())
		assert.Len(t, result.Clusters, 3)
	})

	t.Run("Self loop on an unknown mention fails the batch", func(t *testing.T) {
		input := scenarioInput(t)
		input.Store = nil
		input.Feed = similarity.NewSliceFeed([]model.ScoreRecord{{Kind: model.EdgeKindMentionMention, A: "ghost", B: "ghost", Score: 0.9}})

		_, err := l.Run(ctx, input, scenarioConfig())
		require.Error(t, err)
		assert.True(t, helper.IsDataIntegrityError(err))
	})

	t.Run("Nil mentions are skipped in every stage", func(t *testing.T) {
		for _, mode := range []model.RerankingMode{model.RerankingNone, model.RerankingFull} {
			input := scenarioInput(t, mm("m1", "m2", 0.9), me("m3", 2, 0.9))
			input.Mentions = append(input.Mentions, nil)
			input.Scorer = rerank.ScoreFunc(func(ctx context.Context, pairs []rerank.Pair) ([]float64, error) {
				return slices.Repeat([]float64{0.9}, len(pairs)), nil
			})
			config := scenarioConfig()
			config.RerankingMode = mode

			result, err := l.Run(ctx, input, config)
			require.NoError(t, err, string(mode))
			assert.Len(t, result.Clusters, 2, string(mode))
			assert.Equal(t, 3, result.Graph.Len(), string(mode))
		}
	})

	t.Run("Reranking without scorer is a configuration error", func(t *testing.T) {
		config := scenarioConfig()
		config.RerankingMode = model.RerankingEntity

		_, err := l.Run(ctx, scenarioInput(t), config)
		require.Error(t, err)
		assert.True(t, helper.IsConfigurationError(err))
	})

	t.Run("Ambiguous ties are reported as warnings", func(t *testing.T) {
		input := scenarioInput(t, me("m3", 2, 0.8), me("m3", 1, 0.8))

		result, err := l.Run(ctx, input, scenarioConfig())
		require.NoError(t, err)
		require.Len(t, result.Warnings, 1)
		assert.Equal(t, int64(1), result.Warnings[0].Chosen)
	})
}

func TestResultExplain(t *testing.T) {
	l := testLinker()
	input := scenarioInput(t, mm("m1", "m2", 0.9), mm("m2", "m3", 0.85))

	result, err := l.Run(context.Background(), input, scenarioConfig())
	require.NoError(t, err)

	path, err := result.Explain("m1", "m3")
	require.NoError(t, err)
	assert.Equal(t, []model.MentionID{"m1", "m2", "m3"}, path)
}

func TestResultComponent(t *testing.T) {
	l := testLinker()
	input := scenarioInput(t, mm("m3", "m2", 0.9), mm("m2", "m1", 0.85))

	result, err := l.Run(context.Background(), input, scenarioConfig())
	require.NoError(t, err)
	require.Len(t, result.Clusters, 1)

	t.Run("Component equals the cluster in mention order", func(t *testing.T) {
		component, err := result.Component("m3")
		require.NoError(t, err)
		assert.Equal(t, result.Clusters[0].Mentions, component)
		assert.Equal(t, []model.MentionID{"m1", "m2", "m3"}, component)
	})

	t.Run("Neighbors are the directly connected mentions", func(t *testing.T) {
		neighbors, err := result.Neighbors("m1")
		require.NoError(t, err)
		require.Len(t, neighbors, 1)
		assert.Equal(t, model.MentionID("m2"), neighbors[0].ID)
	})

	t.Run("Unknown mention", func(t *testing.T) {
		_, err := result.Component("m9")
		assert.True(t, helper.IsDataIntegrityError(err))
		_, err = result.Neighbors("m9")
		assert.True(t, helper.IsDataIntegrityError(err))
	})
}
