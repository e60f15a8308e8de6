package output

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"

	"github.com/siherrmann/linker/core/graph"
	"github.com/siherrmann/linker/helper"
	"github.com/siherrmann/linker/model"
)

// Build maps assignments to output records. Clusters linked to the same
// entity are merged into one record with idx = entity id, records for NIL
// clusters get idx = max entity id + 1 + n in cluster order. Known entities
// come first in ascending id order. Mentions are listed source-then-position.
func Build(assignments []*model.Assignment, clusters []*model.Cluster, g *graph.Graph) ([]*model.OutputRecord, error) {
	if len(assignments) != len(clusters) {
		return nil, fmt.Errorf("got %d assignments for %d clusters", len(assignments), len(clusters))
	}
	kb := g.KnowledgeBase()

	linked := map[model.EntityID][]int{}
	var nils []*model.OutputRecord
	nextNil := int64(kb.MaxID()) + 1
	for i, a := range assignments {
		c := clusters[i]
		if a.ClusterID != c.ID {
			return nil, helper.NewDataIntegrityError("assignment does not match cluster order", fmt.Sprint(a.ClusterID))
		}

		if a.IsNil {
			nils = append(nils, &model.OutputRecord{
				Idx:      nextNil,
				IsNil:    true,
				Mentions: mentions(g, c.Members.ToArray()),
			})
			nextNil++
			continue
		}

		if !kb.Contains(a.Entity) {
			return nil, helper.NewDataIntegrityError("assignment to unknown entity", a.Entity.String())
		}
		for _, m := range c.Members.ToArray() {
			linked[a.Entity] = append(linked[a.Entity], int(m))
		}
	}

	entities := make([]model.EntityID, 0, len(linked))
	for e := range linked {
		entities = append(entities, e)
	}
	slices.Sort(entities)

	records := make([]*model.OutputRecord, 0, len(entities)+len(nils))
	for _, e := range entities {
		name := kb.Name(e)
		indices := linked[e]
		slices.Sort(indices)
		records = append(records, &model.OutputRecord{
			Idx:      int64(e),
			Name:     &name,
			Mentions: mentions(g, indices),
		})
	}
	return append(records, nils...), nil
}

// arena indices are already in source-then-position order
func mentions[T uint32 | int](g *graph.Graph, indices []T) []model.OutputMention {
	out := make([]model.OutputMention, len(indices))
	for i, idx := range indices {
		m := g.Mention(int(idx))
		out[i] = model.OutputMention{Page: m.Page, Listing: m.Listing, Item: m.Item, Text: m.Text}
	}
	return out
}

// WriteJSONLines writes one record per line.
func WriteJSONLines(w io.Writer, records []*model.OutputRecord) error {
	encoder := json.NewEncoder(w)
	for _, r := range records {
		if err := encoder.Encode(r); err != nil {
			return helper.NewError("write output record", err)
		}
	}
	return nil
}
