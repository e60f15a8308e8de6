package graph

import (
	"slices"

	"github.com/siherrmann/linker/helper"
	"github.com/siherrmann/linker/model"
)

// TraversalResult contains a mention and its distance from the source
type TraversalResult struct {
	Mention  *model.Mention
	Distance int
	Path     []model.MentionID // Path from source to this mention
}

// BFS performs breadth-first search over retained mention_mention edges
func BFS(g *Graph, sourceID model.MentionID, maxHops int) ([]*TraversalResult, error) {
	source, ok := g.Index(sourceID)
	if !ok {
		return nil, helper.NewDataIntegrityError("unknown mention", string(sourceID))
	}

	visited := make([]bool, g.Len())
	visited[source] = true
	queue := []traversalItem{{index: source, path: []int{source}}}

	var results []*TraversalResult
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		results = append(results, g.result(current))

		// Stop if we've reached max hops
		if current.distance >= maxHops {
			continue
		}

		for _, n := range g.Neighbors(current.index) {
			if visited[n.Index] {
				continue
			}
			visited[n.Index] = true

			queue = append(queue, traversalItem{
				index:    n.Index,
				distance: current.distance + 1,
				path:     append(slices.Clone(current.path), n.Index),
			})
		}
	}

	return results, nil
}

// DFS performs depth-first search over retained mention_mention edges
func DFS(g *Graph, sourceID model.MentionID, maxHops int) ([]*TraversalResult, error) {
	source, ok := g.Index(sourceID)
	if !ok {
		return nil, helper.NewDataIntegrityError("unknown mention", string(sourceID))
	}

	visited := make([]bool, g.Len())
	var results []*TraversalResult
	g.dfsRecursive(traversalItem{index: source, path: []int{source}}, maxHops, visited, &results)

	return results, nil
}

func (g *Graph) dfsRecursive(current traversalItem, maxHops int, visited []bool, results *[]*TraversalResult) {
	visited[current.index] = true
	*results = append(*results, g.result(current))

	if current.distance >= maxHops {
		return
	}

	for _, n := range g.Neighbors(current.index) {
		if visited[n.Index] {
			continue
		}
		g.dfsRecursive(traversalItem{
			index:    n.Index,
			distance: current.distance + 1,
			path:     append(slices.Clone(current.path), n.Index),
		}, maxHops, visited, results)
	}
}

// GetNeighbors retrieves the mentions directly connected to a mention
func GetNeighbors(g *Graph, id model.MentionID) ([]*model.Mention, error) {
	results, err := BFS(g, id, 1)
	if err != nil {
		return nil, err
	}

	// Skip the source mention itself (first result)
	neighbors := make([]*model.Mention, 0, len(results)-1)
	for i := 1; i < len(results); i++ {
		neighbors = append(neighbors, results[i].Mention)
	}

	return neighbors, nil
}

// Path returns the shortest chain of retained edges explaining why two
// mentions share a cluster, or nil if they are not connected.
func Path(g *Graph, a, b model.MentionID) ([]model.MentionID, error) {
	target, ok := g.Index(b)
	if !ok {
		return nil, helper.NewDataIntegrityError("unknown mention", string(b))
	}

	results, err := BFS(g, a, g.Len())
	if err != nil {
		return nil, err
	}
	for _, r := range results {
		if r.Mention == g.Mention(target) {
			return r.Path, nil
		}
	}
	return nil, nil
}

type traversalItem struct {
	index    int
	distance int
	path     []int
}

func (g *Graph) result(item traversalItem) *TraversalResult {
	path := make([]model.MentionID, len(item.path))
	for i, idx := range item.path {
		path[i] = g.Mention(idx).ID
	}
	return &TraversalResult{
		Mention:  g.Mention(item.index),
		Distance: item.distance,
		Path:     path,
	}
}
