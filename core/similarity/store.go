package similarity

import (
	"cmp"
	"fmt"
	"iter"
	"slices"

	"github.com/siherrmann/linker/helper"
	"github.com/siherrmann/linker/model"
)

// Store gives read access to sparse pairwise similarity scores.
// An absent score means "no edge", never zero.
type Store interface {
	// MentionScore is symmetric: MentionScore(a, b) == MentionScore(b, a).
	MentionScore(a, b model.MentionID) (float64, bool)
	EntityScore(m model.MentionID, e model.EntityID) (float64, bool)
	// Edges yields all edges of a kind in a deterministic order.
	Edges(kind model.EdgeKind) iter.Seq[model.SimilarityEdge]
	Len(kind model.EdgeKind) int
}

type mentionPair struct {
	a, b model.MentionID
}

func newMentionPair(a, b model.MentionID) mentionPair {
	if b < a {
		a, b = b, a
	}
	return mentionPair{a: a, b: b}
}

type entityPair struct {
	m model.MentionID
	e model.EntityID
}

// MemoryStore keeps scores in maps keyed by the pairs that were actually scored.
type MemoryStore struct {
	mentions map[mentionPair]float64
	entities map[entityPair]float64
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		mentions: make(map[mentionPair]float64),
		entities: make(map[entityPair]float64),
	}
}

// NewMemoryStoreFromEdges creates a store holding the given edges.
func NewMemoryStoreFromEdges(edges []model.SimilarityEdge) (*MemoryStore, error) {
	s := NewMemoryStore()
	for _, e := range edges {
		if err := s.Add(e); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Add inserts an edge. Duplicates keep the highest score, so the result does
// not depend on insertion order. Self-loops are kept so their mention id is
// still validated when the graph is built, which then drops them.
func (s *MemoryStore) Add(e model.SimilarityEdge) error {
	if !model.ValidScore(e.Score) {
		return helper.NewDataIntegrityError(fmt.Sprintf("score %v outside [0,1]", e.Score), edgeID(e))
	}

	switch e.Kind {
	case model.EdgeKindMentionMention:
		key := newMentionPair(e.SourceMention, e.TargetMention)
		if old, ok := s.mentions[key]; !ok || e.Score > old {
			s.mentions[key] = e.Score
		}
	case model.EdgeKindMentionEntity:
		key := entityPair{m: e.SourceMention, e: e.TargetEntity}
		if old, ok := s.entities[key]; !ok || e.Score > old {
			s.entities[key] = e.Score
		}
	default:
		return helper.NewDataIntegrityError(fmt.Sprintf("unknown edge kind %q", e.Kind), edgeID(e))
	}
	return nil
}

func (s *MemoryStore) MentionScore(a, b model.MentionID) (float64, bool) {
	v, ok := s.mentions[newMentionPair(a, b)]
	return v, ok
}

func (s *MemoryStore) EntityScore(m model.MentionID, e model.EntityID) (float64, bool) {
	v, ok := s.entities[entityPair{m: m, e: e}]
	return v, ok
}

func (s *MemoryStore) Len(kind model.EdgeKind) int {
	switch kind {
	case model.EdgeKindMentionMention:
		return len(s.mentions)
	case model.EdgeKindMentionEntity:
		return len(s.entities)
	}
	return 0
}

// Edges yields mention_mention edges with SourceMention <= TargetMention,
// ordered by (source, target), and mention_entity edges ordered by (mention, entity).
func (s *MemoryStore) Edges(kind model.EdgeKind) iter.Seq[model.SimilarityEdge] {
	return func(yield func(model.SimilarityEdge) bool) {
		switch kind {
		case model.EdgeKindMentionMention:
			keys := make([]mentionPair, 0, len(s.mentions))
			for k := range s.mentions {
				keys = append(keys, k)
			}
			slices.SortFunc(keys, func(x, y mentionPair) int {
				if c := cmp.Compare(x.a, y.a); c != 0 {
					return c
				}
				return cmp.Compare(x.b, y.b)
			})
			for _, k := range keys {
				if !yield(model.SimilarityEdge{Kind: kind, SourceMention: k.a, TargetMention: k.b, Score: s.mentions[k]}) {
					return
				}
			}
		case model.EdgeKindMentionEntity:
			keys := make([]entityPair, 0, len(s.entities))
			for k := range s.entities {
				keys = append(keys, k)
			}
			slices.SortFunc(keys, func(x, y entityPair) int {
				if c := cmp.Compare(x.m, y.m); c != 0 {
					return c
				}
				return cmp.Compare(x.e, y.e)
			})
			for _, k := range keys {
				if !yield(model.SimilarityEdge{Kind: kind, SourceMention: k.m, TargetEntity: k.e, Score: s.entities[k]}) {
					return
				}
			}
		}
	}
}

// Collect materializes all edges of a kind from any store.
func Collect(s Store, kind model.EdgeKind) []model.SimilarityEdge {
	edges := make([]model.SimilarityEdge, 0, s.Len(kind))
	for e := range s.Edges(kind) {
		edges = append(edges, e)
	}
	return edges
}

func edgeID(e model.SimilarityEdge) string {
	if e.Kind == model.EdgeKindMentionEntity {
		return fmt.Sprintf("%s-%s", e.SourceMention, e.TargetEntity)
	}
	return fmt.Sprintf("%s-%s", e.SourceMention, e.TargetMention)
}
