package similarity

import (
	"context"
	"math"
	"strings"
	"testing"

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

func TestMemoryStore(t *testing.T) {
	t.Run("Mention scores are symmetric", func(t *testing.T) {
		s := NewMemoryStore()
		require.NoError(t, s.Add(mm("m2", "m1", 0.9)))

		v, ok := s.MentionScore("m1", "m2")
		assert.True(t, ok)
		assert.Equal(t, 0.9, v)
		v, ok = s.MentionScore("m2", "m1")
		assert.True(t, ok)
		assert.Equal(t, 0.9, v)
	})

	t.Run("Absent score is no edge", func(t *testing.T) {
		s := NewMemoryStore()
		_, ok := s.MentionScore("m1", "m3")
		assert.False(t, ok)
		_, ok = s.EntityScore("m1", 7)
		assert.False(t, ok)
	})

	t.Run("Duplicates keep the highest score in any order", func(t *testing.T) {
		first, err := NewMemoryStoreFromEdges([]model.SimilarityEdge{mm("m1", "m2", 0.3), mm("m2", "m1", 0.7), me("m1", 1, 0.4), me("m1", 1, 0.6)})
		require.NoError(t, err)
		second, err := NewMemoryStoreFromEdges([]model.SimilarityEdge{me("m1", 1, 0.6), mm("m2", "m1", 0.7), me("m1", 1, 0.4), mm("m1", "m2", 0.3)})
		require.NoError(t, err)

		assert.Equal(t, 1, first.Len(model.EdgeKindMentionMention))
		assert.Equal(t, Collect(first, model.EdgeKindMentionMention), Collect(second, model.EdgeKindMentionMention))
		assert.Equal(t, Collect(first, model.EdgeKindMentionEntity), Collect(second, model.EdgeKindMentionEntity))
		v, _ := first.EntityScore("m1", 1)
		assert.Equal(t, 0.6, v)
	})

	t.Run("Self loops are kept for id validation", func(t *testing.T) {
		s := NewMemoryStore()
		require.NoError(t, s.Add(mm("m1", "m1", 0.4)))
		require.NoError(t, s.Add(mm("m1", "m1", 1)))
		assert.Equal(t, 1, s.Len(model.EdgeKindMentionMention))
		assert.Equal(t, []model.SimilarityEdge{mm("m1", "m1", 1)}, Collect(s, model.EdgeKindMentionMention))
	})

	t.Run("Scores outside range are data integrity errors", func(t *testing.T) {
		s := NewMemoryStore()
		for _, score := range []float64{-0.01, 1.5, math.NaN()} {
			err := s.Add(mm("m1", "m2", score))
			require.Error(t, err)
			assert.True(t, helper.IsDataIntegrityError(err))
		}
	})

	t.Run("Edges are ordered deterministically", func(t *testing.T) {
		s, err := NewMemoryStoreFromEdges([]model.SimilarityEdge{mm("m3", "m1", 0.5), mm("m2", "m1", 0.6), me("m2", 5, 0.1), me("m1", 9, 0.2), me("m1", 3, 0.3)})
		require.NoError(t, err)

		edges := Collect(s, model.EdgeKindMentionMention)
		require.Len(t, edges, 2)
		assert.Equal(t, mm("m1", "m2", 0.6), edges[0])
		assert.Equal(t, mm("m1", "m3", 0.5), edges[1])

		entityEdges := Collect(s, model.EdgeKindMentionEntity)
		require.Len(t, entityEdges, 3)
		assert.Equal(t, model.EntityID(3), entityEdges[0].TargetEntity)
		assert.Equal(t, model.EntityID(9), entityEdges[1].TargetEntity)
		assert.Equal(t, model.MentionID("m2"), entityEdges[2].SourceMention)
	})

	t.Run("Early stop of iteration", func(t *testing.T) {
		s, err := NewMemoryStoreFromEdges([]model.SimilarityEdge{mm("a", "b", 0.5), mm("b", "c", 0.5)})
		require.NoError(t, err)
		n := 0
		for range s.Edges(model.EdgeKindMentionMention) {
			n++
			break
		}
		assert.Equal(t, 1, n)
	})
}

func TestOverlay(t *testing.T) {
	base, err := NewMemoryStoreFromEdges([]model.SimilarityEdge{mm("m1", "m2", 0.5), me("m1", 1, 0.4)})
	require.NoError(t, err)

	t.Run("Replaces scores without touching the base", func(t *testing.T) {
		o := NewOverlay(base)
		require.NoError(t, o.Replace(mm("m2", "m1", 0.95)))
		require.NoError(t, o.Replace(me("m1", 1, 0.85)))

		v, _ := o.MentionScore("m1", "m2")
		assert.Equal(t, 0.95, v)
		v, _ = o.EntityScore("m1", 1)
		assert.Equal(t, 0.85, v)

		v, _ = base.MentionScore("m1", "m2")
		assert.Equal(t, 0.5, v)

		edges := Collect(o, model.EdgeKindMentionMention)
		require.Len(t, edges, 1)
		assert.Equal(t, 0.95, edges[0].Score)
		assert.Equal(t, 1, o.Replaced(model.EdgeKindMentionEntity))
	})

	t.Run("Never invents edges", func(t *testing.T) {
		o := NewOverlay(base)
		err := o.Replace(mm("m1", "m9", 0.9))
		require.Error(t, err)
		assert.True(t, helper.IsDataIntegrityError(err))
		assert.Equal(t, 1, o.Len(model.EdgeKindMentionMention))
	})

	t.Run("Restricted kind shows only replaced edges", func(t *testing.T) {
		base, err := NewMemoryStoreFromEdges([]model.SimilarityEdge{mm("m1", "m2", 0.5), mm("m1", "m3", 0.9), mm("m4", "m4", 0.3), me("m1", 1, 0.4)})
		require.NoError(t, err)
		o := NewOverlay(base)
		o.Restrict(model.EdgeKindMentionMention)
		require.NoError(t, o.Replace(mm("m1", "m2", 0.6)))

		assert.Equal(t, []model.SimilarityEdge{mm("m1", "m2", 0.6), mm("m4", "m4", 0.3)}, Collect(o, model.EdgeKindMentionMention))
		assert.Equal(t, 2, o.Len(model.EdgeKindMentionMention))
		_, ok := o.MentionScore("m3", "m1")
		assert.False(t, ok)
		v, ok := o.EntityScore("m1", 1)
		require.True(t, ok, "other kinds are untouched")
		assert.Equal(t, 0.4, v)
	})

	t.Run("Rejects refined scores outside range", func(t *testing.T) {
		o := NewOverlay(base)
		err := o.Replace(me("m1", 1, 1.2))
		assert.True(t, helper.IsDataIntegrityError(err))
	})
}

func TestLoad(t *testing.T) {
	ctx := context.Background()

	t.Run("Load from slice feed", func(t *testing.T) {
		feed := NewSliceFeed([]model.ScoreRecord{
			{Kind: model.EdgeKindMentionMention, A: "m1", B: "m2", Score: 0.95},
			{Kind: model.EdgeKindMentionEntity, A: "m1", B: "1", Score: 0.9},
		})
		s, err := Load(ctx, feed)
		require.NoError(t, err)
		assert.Equal(t, 1, s.Len(model.EdgeKindMentionMention))
		assert.Equal(t, 1, s.Len(model.EdgeKindMentionEntity))
	})

	t.Run("Load from JSON lines", func(t *testing.T) {
		input := strings.Join([]string{
			`{"kind":"mention_mention","a":"m1","b":"m2","score":0.95}`,
			``,
			`{"kind":"mention_entity","a":"m3","b":"2","score":0.92}`,
		}, "\n")
		s, err := Load(ctx, NewJSONLinesFeed(strings.NewReader(input)))
		require.NoError(t, err)

		v, ok := s.EntityScore("m3", 2)
		assert.True(t, ok)
		assert.Equal(t, 0.92, v)
	})

	t.Run("Malformed line fails the load", func(t *testing.T) {
		input := `{"kind":"mention_mention","a":"m1","b":"m2","score":0.95}` + "\n" + `{not json`
		_, err := Load(ctx, NewJSONLinesFeed(strings.NewReader(input)))
		require.Error(t, err)
		assert.True(t, helper.IsDataIntegrityError(err))
		assert.Contains(t, err.Error(), "line 2")
	})

	t.Run("Unknown kind fails the load", func(t *testing.T) {
		feed := NewSliceFeed([]model.ScoreRecord{{Kind: "entity_entity", A: "1", B: "2", Score: 0.5}})
		_, err := Load(ctx, feed)
		assert.True(t, helper.IsDataIntegrityError(err))
	})

	t.Run("Load into merges feeds keeping the maximum", func(t *testing.T) {
		s := NewMemoryStore()
		require.NoError(t, LoadInto(ctx, s, NewSliceFeed([]model.ScoreRecord{
			{Kind: model.EdgeKindMentionMention, A: "m1", B: "m2", Score: 0.6},
		})))
		require.NoError(t, LoadInto(ctx, s, NewSliceFeed([]model.ScoreRecord{
			{Kind: model.EdgeKindMentionMention, A: "m2", B: "m1", Score: 0.8},
			{Kind: model.EdgeKindMentionEntity, A: "m1", B: "7", Score: 0.5},
		})))

		v, ok := s.MentionScore("m1", "m2")
		assert.True(t, ok)
		assert.Equal(t, 0.8, v)
		assert.Equal(t, 1, s.Len(model.EdgeKindMentionEntity))
	})

	t.Run("Cancelled context", func(t *testing.T) {
		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		_, err := Load(cancelled, NewSliceFeed(nil))
		assert.ErrorIs(t, err, context.Canceled)
	})
}
