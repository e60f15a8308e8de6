package similarity

import (
	"fmt"
	"iter"

	"github.com/siherrmann/linker/helper"
	"github.com/siherrmann/linker/model"
)

// Overlay is a read-through view over a base store that replaces the scores
// of selected, already existing edges. For a restricted kind only replaced
// edges are visible. The base store is never modified.
type Overlay struct {
	base       Store
	mentions   map[mentionPair]float64
	entities   map[entityPair]float64
	restricted map[model.EdgeKind]bool
}

// NewOverlay creates an overlay without replacements.
func NewOverlay(base Store) *Overlay {
	return &Overlay{
		base:       base,
		mentions:   make(map[mentionPair]float64),
		entities:   make(map[entityPair]float64),
		restricted: make(map[model.EdgeKind]bool),
	}
}

// Restrict hides every base edge of the kind that is not replaced.
// mention_mention self-loops stay visible, they never carry a score into the graph.
func (o *Overlay) Restrict(kind model.EdgeKind) {
	o.restricted[kind] = true
}

// Replace overrides the score of an edge present in the base store.
// Replacing an absent edge is an error, an overlay never invents edges.
func (o *Overlay) Replace(e model.SimilarityEdge) error {
	if !model.ValidScore(e.Score) {
		return helper.NewDataIntegrityError(fmt.Sprintf("refined score %v outside [0,1]", e.Score), edgeID(e))
	}

	switch e.Kind {
	case model.EdgeKindMentionMention:
		if _, ok := o.base.MentionScore(e.SourceMention, e.TargetMention); !ok {
			return helper.NewDataIntegrityError("refined edge not in base store", edgeID(e))
		}
		o.mentions[newMentionPair(e.SourceMention, e.TargetMention)] = e.Score
	case model.EdgeKindMentionEntity:
		if _, ok := o.base.EntityScore(e.SourceMention, e.TargetEntity); !ok {
			return helper.NewDataIntegrityError("refined edge not in base store", edgeID(e))
		}
		o.entities[entityPair{m: e.SourceMention, e: e.TargetEntity}] = e.Score
	default:
		return helper.NewDataIntegrityError(fmt.Sprintf("unknown edge kind %q", e.Kind), edgeID(e))
	}
	return nil
}

// Replaced returns the number of overridden edges of a kind.
func (o *Overlay) Replaced(kind model.EdgeKind) int {
	if kind == model.EdgeKindMentionMention {
		return len(o.mentions)
	}
	return len(o.entities)
}

func (o *Overlay) MentionScore(a, b model.MentionID) (float64, bool) {
	if v, ok := o.mentions[newMentionPair(a, b)]; ok {
		return v, true
	}
	if o.restricted[model.EdgeKindMentionMention] && a != b {
		return 0, false
	}
	return o.base.MentionScore(a, b)
}

func (o *Overlay) EntityScore(m model.MentionID, e model.EntityID) (float64, bool) {
	if v, ok := o.entities[entityPair{m: m, e: e}]; ok {
		return v, true
	}
	if o.restricted[model.EdgeKindMentionEntity] {
		return 0, false
	}
	return o.base.EntityScore(m, e)
}

func (o *Overlay) Len(kind model.EdgeKind) int {
	if !o.restricted[kind] {
		return o.base.Len(kind)
	}
	n := 0
	for range o.Edges(kind) {
		n++
	}
	return n
}

// Edges yields the visible base edges in base order with replaced scores applied.
func (o *Overlay) Edges(kind model.EdgeKind) iter.Seq[model.SimilarityEdge] {
	return func(yield func(model.SimilarityEdge) bool) {
		for e := range o.base.Edges(kind) {
			var v float64
			var ok bool
			switch kind {
			case model.EdgeKindMentionMention:
				v, ok = o.mentions[newMentionPair(e.SourceMention, e.TargetMention)]
			case model.EdgeKindMentionEntity:
				v, ok = o.entities[entityPair{m: e.SourceMention, e: e.TargetEntity}]
			}
			if ok {
				e.Score = v
			} else if o.restricted[kind] && !e.IsSelfLoop() {
				continue
			}
			if !yield(e) {
				return
			}
		}
	}
}
