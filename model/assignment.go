package model

// Assignment is the linking decision for one cluster: a knowledge base entity
// or NIL with a run-scoped identifier.
type Assignment struct {
	ClusterID int      `json:"cluster_id"`
	Entity    EntityID `json:"entity"`
	IsNil     bool     `json:"is_nil"`
	NilID     string   `json:"nil_id,omitempty"`
	// Score is the aggregate that justified the decision, or the best
	// rejected aggregate for NIL clusters (0 without candidates)
	Score float64 `json:"score"`
	// Support is the number of cluster mentions with a retained edge to the decided entity
	Support int `json:"support"`
}
