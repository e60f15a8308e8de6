package model

import (
	"time"

	"github.com/google/uuid"
)

// RunAssignment is an assignment persisted for a linking run together with
// the mentions of its cluster.
type RunAssignment struct {
	Assignment
	ID        uuid.UUID   `json:"id"`
	RunID     uuid.UUID   `json:"run_id"`
	Mentions  []MentionID `json:"mentions"`
	CreatedAt time.Time   `json:"created_at"`
}
