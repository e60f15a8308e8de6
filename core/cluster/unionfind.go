package cluster

// UnionFind is a disjoint-set forest over arena indices with path
// compression and union by size.
type UnionFind struct {
	parent []int32
	size   []int32
	sets   int
}

// NewUnionFind creates n singleton sets.
func NewUnionFind(n int) *UnionFind {
	u := &UnionFind{
		parent: make([]int32, n),
		size:   make([]int32, n),
		sets:   n,
	}
	for i := range u.parent {
		u.parent[i] = int32(i)
		u.size[i] = 1
	}
	return u
}

// Find returns the representative of x's set.
func (u *UnionFind) Find(x int) int {
	root := int32(x)
	for u.parent[root] != root {
		root = u.parent[root]
	}
	// compress
	for i := int32(x); u.parent[i] != root; {
		next := u.parent[i]
		u.parent[i] = root
		i = next
	}
	return int(root)
}

// Union merges the sets of a and b and reports whether they were disjoint.
func (u *UnionFind) Union(a, b int) bool {
	ra, rb := u.Find(a), u.Find(b)
	if ra == rb {
		return false
	}
	if u.size[ra] < u.size[rb] {
		ra, rb = rb, ra
	}
	u.parent[rb] = int32(ra)
	u.size[ra] += u.size[rb]
	u.sets--
	return true
}

// Connected reports whether a and b are in the same set.
func (u *UnionFind) Connected(a, b int) bool {
	return u.Find(a) == u.Find(b)
}

// Size returns the size of x's set.
func (u *UnionFind) Size(x int) int {
	return int(u.size[u.Find(x)])
}

// Sets returns the number of disjoint sets.
func (u *UnionFind) Sets() int {
	return u.sets
}
