package graph

import (
	"context"
	"testing"

	"github.com/siherrmann/linker/core/similarity"
	"github.com/siherrmann/linker/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chainGraph builds A - B - C and A - D plus an isolated mention E.
func chainGraph(t *testing.T) *Graph {
	t.Helper()
	mentions := []*model.Mention{
		{ID: "A", Page: "p", Item: 0},
		{ID: "B", Page: "p", Item: 1},
		{ID: "C", Page: "p", Item: 2},
		{ID: "D", Page: "p", Item: 3},
		{ID: "E", Page: "p", Item: 4},
	}
	store, err := similarity.NewMemoryStoreFromEdges([]model.SimilarityEdge{
		mm("A", "B", 0.9),
		mm("B", "C", 0.9),
		mm("A", "D", 0.85),
		mm("D", "E", 0.2),
	})
	require.NoError(t, err)

	config := model.DefaultThresholdConfig()
	g, err := Build(context.Background(), mentions, nil, store, config)
	require.NoError(t, err)
	return g
}

func ids(results []*TraversalResult) []model.MentionID {
	out := make([]model.MentionID, len(results))
	for i, r := range results {
		out[i] = r.Mention.ID
	}
	return out
}

func TestBFS(t *testing.T) {
	g := chainGraph(t)

	t.Run("BFS from source with max hops 1", func(t *testing.T) {
		results, err := BFS(g, "A", 1)

		assert.NoError(t, err, "Expected BFS to not return an error")
		require.Len(t, results, 3, "Expected source and its two neighbors")
		assert.Equal(t, model.MentionID("A"), results[0].Mention.ID, "Expected first result to be source")
		assert.Equal(t, 0, results[0].Distance, "Expected source distance to be 0")
		assert.Equal(t, []model.MentionID{"A", "B", "D"}, ids(results))
	})

	t.Run("BFS from source with max hops 2", func(t *testing.T) {
		results, err := BFS(g, "A", 2)

		assert.NoError(t, err)
		assert.Equal(t, []model.MentionID{"A", "B", "D", "C"}, ids(results))
		assert.Equal(t, 2, results[3].Distance)
		assert.Equal(t, []model.MentionID{"A", "B", "C"}, results[3].Path)
	})

	t.Run("BFS with max hops 0", func(t *testing.T) {
		results, err := BFS(g, "A", 0)

		assert.NoError(t, err)
		require.Len(t, results, 1, "Expected only source node for max hops 0")
	})

	t.Run("BFS from isolated mention", func(t *testing.T) {
		results, err := BFS(g, "E", 3)

		assert.NoError(t, err)
		require.Len(t, results, 1, "Edge below the mention threshold must not be followed")
		assert.Equal(t, model.MentionID("E"), results[0].Mention.ID)
	})

	t.Run("BFS from unknown mention", func(t *testing.T) {
		_, err := BFS(g, "Z", 1)
		assert.Error(t, err)
	})
}

func TestDFS(t *testing.T) {
	g := chainGraph(t)

	t.Run("DFS visits depth first in index order", func(t *testing.T) {
		results, err := DFS(g, "A", 5)

		assert.NoError(t, err)
		assert.Equal(t, []model.MentionID{"A", "B", "C", "D"}, ids(results))
		assert.Equal(t, 2, results[2].Distance)
	})

	t.Run("DFS respects max hops", func(t *testing.T) {
		results, err := DFS(g, "C", 1)

		assert.NoError(t, err)
		assert.Equal(t, []model.MentionID{"C", "B"}, ids(results))
	})
}

func TestGetNeighbors(t *testing.T) {
	g := chainGraph(t)

	neighbors, err := GetNeighbors(g, "B")
	require.NoError(t, err)
	require.Len(t, neighbors, 2)
	assert.Equal(t, model.MentionID("A"), neighbors[0].ID)
	assert.Equal(t, model.MentionID("C"), neighbors[1].ID)

	neighbors, err = GetNeighbors(g, "E")
	require.NoError(t, err)
	assert.Empty(t, neighbors)
}

func TestPath(t *testing.T) {
	g := chainGraph(t)

	t.Run("Shortest path between connected mentions", func(t *testing.T) {
		path, err := Path(g, "C", "D")
		require.NoError(t, err)
		assert.Equal(t, []model.MentionID{"C", "B", "A", "D"}, path)
	})

	t.Run("Path to itself", func(t *testing.T) {
		path, err := Path(g, "B", "B")
		require.NoError(t, err)
		assert.Equal(t, []model.MentionID{"B"}, path)
	})

	t.Run("No path between separate clusters", func(t *testing.T) {
		path, err := Path(g, "A", "E")
		require.NoError(t, err)
		assert.Nil(t, path)
	})

	t.Run("Unknown target", func(t *testing.T) {
		_, err := Path(g, "A", "Z")
		assert.Error(t, err)
	})
}
