package model

import (
	"fmt"
	"math"
)

// EdgeKind tags a similarity edge by the kind of its endpoints.
type EdgeKind string

const (
	EdgeKindMentionMention EdgeKind = "mention_mention"
	EdgeKindMentionEntity  EdgeKind = "mention_entity"
)

// Valid reports whether k is a known edge kind.
func (k EdgeKind) Valid() bool {
	return k == EdgeKindMentionMention || k == EdgeKindMentionEntity
}

// SimilarityEdge is an undirected, scored pair produced by the upstream encoders.
// For mention_mention edges TargetMention is set, for mention_entity edges TargetEntity.
type SimilarityEdge struct {
	Kind          EdgeKind  `json:"kind"`
	SourceMention MentionID `json:"source_mention"`
	TargetMention MentionID `json:"target_mention,omitempty"`
	TargetEntity  EntityID  `json:"target_entity"`
	Score         float64   `json:"score"`
}

// IsSelfLoop reports whether a mention_mention edge connects a mention to itself.
func (e SimilarityEdge) IsSelfLoop() bool {
	return e.Kind == EdgeKindMentionMention && e.SourceMention == e.TargetMention
}

// ValidScore reports whether s is a finite score in [0,1].
func ValidScore(s float64) bool {
	return !math.IsNaN(s) && s >= 0 && s <= 1
}

// ScoreRecord is one entry of the input scores feed. For mention_entity
// records A is the mention id and B the decimal entity id.
type ScoreRecord struct {
	Kind  EdgeKind `json:"kind"`
	A     string   `json:"a"`
	B     string   `json:"b"`
	Score float64  `json:"score"`
}

// Edge converts the record into a SimilarityEdge.
func (r ScoreRecord) Edge() (SimilarityEdge, error) {
	switch r.Kind {
	case EdgeKindMentionMention:
		return SimilarityEdge{
			Kind:          r.Kind,
			SourceMention: MentionID(r.A),
			TargetMention: MentionID(r.B),
			Score:         r.Score,
		}, nil
	case EdgeKindMentionEntity:
		id, err := ParseEntityID(r.B)
		if err != nil {
			return SimilarityEdge{}, fmt.Errorf("invalid entity id %q", r.B)
		}
		return SimilarityEdge{
			Kind:          r.Kind,
			SourceMention: MentionID(r.A),
			TargetEntity:  id,
			Score:         r.Score,
		}, nil
	}
	return SimilarityEdge{}, fmt.Errorf("unknown edge kind %q", r.Kind)
}
