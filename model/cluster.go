package model

import "github.com/RoaringBitmap/roaring/v2"

// Cluster is a maximal set of mentions connected by retained mention_mention edges.
// It is a derived view of one run's graph and never mutated after construction.
type Cluster struct {
	ID int `json:"id"`
	// Mentions in source-then-position order
	Mentions []MentionID `json:"mentions"`
	// Members holds the graph arena indices of Mentions
	Members *roaring.Bitmap `json:"-"`
}

// Size returns the number of mentions in the cluster.
func (c *Cluster) Size() int {
	return len(c.Mentions)
}
