package cluster

import (
	"context"
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/siherrmann/linker/core/graph"
	"github.com/siherrmann/linker/core/similarity"
	"github.com/siherrmann/linker/helper"
	"github.com/siherrmann/linker/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mm(a, b string, score float64) model.SimilarityEdge {
	return model.SimilarityEdge{Kind: model.EdgeKindMentionMention, SourceMention: model.MentionID(a), TargetMention: model.MentionID(b), Score: score}
}

func buildGraph(t *testing.T, mentions []*model.Mention, threshold float64, edges ...model.SimilarityEdge) *graph.Graph {
	t.Helper()
	store, err := similarity.NewMemoryStoreFromEdges(edges)
	require.NoError(t, err)

	config := model.DefaultThresholdConfig()
	config.MentionThreshold = threshold
	g, err := graph.Build(context.Background(), mentions, nil, store, config)
	require.NoError(t, err)
	return g
}

func mentionSet(n int) []*model.Mention {
	mentions := make([]*model.Mention, n)
	for i := range mentions {
		mentions[i] = &model.Mention{ID: model.MentionID(fmt.Sprintf("m%03d", i)), Page: "page", Item: i}
	}
	return mentions
}

func TestUnionFind(t *testing.T) {
	t.Run("Singletons", func(t *testing.T) {
		u := NewUnionFind(4)
		assert.Equal(t, 4, u.Sets())
		assert.False(t, u.Connected(0, 1))
		assert.Equal(t, 1, u.Size(2))
	})

	t.Run("Union merges by size and counts sets", func(t *testing.T) {
		u := NewUnionFind(5)
		assert.True(t, u.Union(0, 1))
		assert.True(t, u.Union(2, 1))
		assert.False(t, u.Union(0, 2), "Already connected")
		assert.Equal(t, 3, u.Size(0))
		assert.Equal(t, 3, u.Sets())
		assert.True(t, u.Connected(2, 0))

		root := u.Find(0)
		assert.True(t, root == 0 || root == 1, "Smaller set is attached below the larger one")
	})

	t.Run("Path compression flattens chains", func(t *testing.T) {
		u := NewUnionFind(4)
		u.parent = []int32{0, 0, 1, 2}
		assert.Equal(t, 0, u.Find(3))
		assert.Equal(t, []int32{0, 0, 0, 0}, u.parent)
	})
}

func TestCluster(t *testing.T) {
	engine := NewEngine(nil)

	t.Run("Scenario clusters", func(t *testing.T) {
		mentions := []*model.Mention{{ID: "m1"}, {ID: "m2"}, {ID: "m3"}}
		g := buildGraph(t, mentions, 0.8, mm("m1", "m2", 0.95), mm("m2", "m3", 0.4))

		clusters, err := engine.Cluster(g)
		require.NoError(t, err)
		require.Len(t, clusters, 2)
		assert.Equal(t, []model.MentionID{"m1", "m2"}, clusters[0].Mentions)
		assert.Equal(t, []model.MentionID{"m3"}, clusters[1].Mentions)
		assert.Equal(t, 0, clusters[0].ID)
		assert.Equal(t, 1, clusters[1].ID)
		assert.Equal(t, []uint32{0, 1}, clusters[0].Members.ToArray())
	})

	t.Run("Transitive merges", func(t *testing.T) {
		mentions := mentionSet(5)
		g := buildGraph(t, mentions, 0.5, mm("m000", "m003", 0.9), mm("m003", "m004", 0.9), mm("m001", "m002", 0.6))

		clusters, err := engine.Cluster(g)
		require.NoError(t, err)
		require.Len(t, clusters, 2)
		assert.Equal(t, []model.MentionID{"m000", "m003", "m004"}, clusters[0].Mentions)
		assert.Equal(t, 3, clusters[0].Size())
		assert.Equal(t, []model.MentionID{"m001", "m002"}, clusters[1].Mentions)
	})

	t.Run("Mentions without edges are singletons", func(t *testing.T) {
		g := buildGraph(t, mentionSet(3), 0.8)

		clusters, err := engine.Cluster(g)
		require.NoError(t, err)
		assert.Len(t, clusters, 3)
	})

	t.Run("Self loops and duplicates do not distort sizes", func(t *testing.T) {
		g := buildGraph(t, mentionSet(2), 0.8, mm("m000", "m000", 1), mm("m000", "m001", 0.9), mm("m001", "m000", 0.95))

		clusters, err := engine.Cluster(g)
		require.NoError(t, err)
		require.Len(t, clusters, 1)
		assert.Equal(t, 2, clusters[0].Size())
		assert.Equal(t, uint64(2), clusters[0].Members.GetCardinality())
	})

	t.Run("Empty input", func(t *testing.T) {
		g := buildGraph(t, nil, 0.8)

		clusters, err := engine.Cluster(g)
		require.NoError(t, err)
		assert.Empty(t, clusters)
	})
}

func randomEdges(r *rand.Rand, n, m int) []model.SimilarityEdge {
	edges := make([]model.SimilarityEdge, m)
	for i := range edges {
		a, b := r.IntN(n), r.IntN(n)
		edges[i] = mm(fmt.Sprintf("m%03d", a), fmt.Sprintf("m%03d", b), float64(r.IntN(101))/100)
	}
	return edges
}

func TestClusterProperties(t *testing.T) {
	engine := NewEngine(nil)
	r := rand.New(rand.NewPCG(7, 11))

	for run := 0; run < 20; run++ {
		n := 1 + r.IntN(150)
		mentions := mentionSet(n)
		edges := randomEdges(r, n, r.IntN(3*n))

		t.Run(fmt.Sprintf("Partition property run %d", run), func(t *testing.T) {
			clusters, err := engine.Cluster(buildGraph(t, mentions, 0.7, edges...))
			require.NoError(t, err)
			assert.NoError(t, VerifyPartition(n, clusters))

			seen := map[model.MentionID]int{}
			for _, c := range clusters {
				for _, id := range c.Mentions {
					seen[id]++
				}
			}
			assert.Len(t, seen, n)
			for id, count := range seen {
				assert.Equal(t, 1, count, "mention %s in more than one cluster", id)
			}
		})

		t.Run(fmt.Sprintf("Determinism under edge order run %d", run), func(t *testing.T) {
			shuffled := append([]model.SimilarityEdge(nil), edges...)
			r.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

			first, err := engine.Cluster(buildGraph(t, mentions, 0.7, edges...))
			require.NoError(t, err)
			second, err := engine.Cluster(buildGraph(t, mentions, 0.7, shuffled...))
			require.NoError(t, err)

			require.Equal(t, len(first), len(second))
			for i := range first {
				assert.Equal(t, first[i].Mentions, second[i].Mentions)
			}
		})

		t.Run(fmt.Sprintf("Threshold monotonicity run %d", run), func(t *testing.T) {
			// every cluster at a higher threshold lies inside one cluster at a lower threshold
			fine, err := engine.Cluster(buildGraph(t, mentions, 0.9, edges...))
			require.NoError(t, err)
			coarse, err := engine.Cluster(buildGraph(t, mentions, 0.6, edges...))
			require.NoError(t, err)

			assert.LessOrEqual(t, len(coarse), len(fine))
			for _, f := range fine {
				contained := false
				for _, c := range coarse {
					if roaring.AndNot(f.Members, c.Members).IsEmpty() {
						contained = true
						break
					}
				}
				assert.True(t, contained, "cluster %d split when lowering the threshold", f.ID)
			}
		})
	}
}

func TestVerifyPartition(t *testing.T) {
	t.Run("Detects overlap", func(t *testing.T) {
		clusters := []*model.Cluster{
			{ID: 0, Mentions: []model.MentionID{"a", "b"}, Members: roaring.BitmapOf(0, 1)},
			{ID: 1, Mentions: []model.MentionID{"b"}, Members: roaring.BitmapOf(1)},
		}
		err := VerifyPartition(2, clusters)
		assert.True(t, helper.IsDataIntegrityError(err))
	})

	t.Run("Detects omission", func(t *testing.T) {
		clusters := []*model.Cluster{{ID: 0, Mentions: []model.MentionID{"a"}, Members: roaring.BitmapOf(0)}}
		err := VerifyPartition(2, clusters)
		assert.True(t, helper.IsDataIntegrityError(err))
	})

	t.Run("Detects out of range members", func(t *testing.T) {
		clusters := []*model.Cluster{
			{ID: 0, Mentions: []model.MentionID{"a"}, Members: roaring.BitmapOf(0)},
			{ID: 1, Mentions: []model.MentionID{"b"}, Members: roaring.BitmapOf(5)},
		}
		assert.Error(t, VerifyPartition(2, clusters))
	})

	t.Run("Accepts a valid partition", func(t *testing.T) {
		clusters := []*model.Cluster{
			{ID: 0, Mentions: []model.MentionID{"a", "c"}, Members: roaring.BitmapOf(0, 2)},
			{ID: 1, Mentions: []model.MentionID{"b"}, Members: roaring.BitmapOf(1)},
		}
		assert.NoError(t, VerifyPartition(3, clusters))
	})
}
