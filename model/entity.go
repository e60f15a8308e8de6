package model

import (
	"fmt"
	"slices"
	"strconv"
	"time"
)

// EntityID is the knowledge base identifier of an entity. Ties between
// candidate entities are resolved towards the lower id.
type EntityID int64

func (id EntityID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// ParseEntityID parses the decimal form of an entity id.
func ParseEntityID(s string) (EntityID, error) {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, err
	}
	return EntityID(v), nil
}

// Entity is an entry of the reference knowledge base.
type Entity struct {
	ID        EntityID  `json:"id"`
	Name      string    `json:"name"`
	Embedding []float32 `json:"embedding,omitempty"`
	Metadata  Metadata  `json:"metadata,omitempty"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// KnowledgeBase is the read-only set of known entities for a run.
// It is built once and passed explicitly to the engines.
type KnowledgeBase struct {
	entities map[EntityID]*Entity
	ids      []EntityID
}

// NewKnowledgeBase copies the given entities into a read-only knowledge base.
// Duplicate ids are rejected.
func NewKnowledgeBase(entities []*Entity) (*KnowledgeBase, error) {
	kb := &KnowledgeBase{
		entities: make(map[EntityID]*Entity, len(entities)),
		ids:      make([]EntityID, 0, len(entities)),
	}
	for _, e := range entities {
		if e == nil {
			continue
		}
		if _, exists := kb.entities[e.ID]; exists {
			return nil, fmt.Errorf("duplicate entity id %d", e.ID)
		}
		c := *e
		c.Embedding = slices.Clone(e.Embedding)
		c.Metadata = e.Metadata.Clone()
		kb.entities[e.ID] = &c
		kb.ids = append(kb.ids, e.ID)
	}
	slices.Sort(kb.ids)
	return kb, nil
}

// Entity returns a copy of the entity with the given id.
func (kb *KnowledgeBase) Entity(id EntityID) (Entity, bool) {
	e, ok := kb.entities[id]
	if !ok {
		return Entity{}, false
	}
	return *e, true
}

// Contains reports whether id is a known entity.
func (kb *KnowledgeBase) Contains(id EntityID) bool {
	_, ok := kb.entities[id]
	return ok
}

// Name returns the canonical name of the entity, or "" if unknown.
func (kb *KnowledgeBase) Name(id EntityID) string {
	if e, ok := kb.entities[id]; ok {
		return e.Name
	}
	return ""
}

// IDs returns all entity ids in ascending order.
func (kb *KnowledgeBase) IDs() []EntityID {
	return slices.Clone(kb.ids)
}

// MaxID returns the largest entity id, or -1 for an empty knowledge base.
func (kb *KnowledgeBase) MaxID() EntityID {
	if len(kb.ids) == 0 {
		return -1
	}
	return kb.ids[len(kb.ids)-1]
}

// Len returns the number of entities.
func (kb *KnowledgeBase) Len() int {
	return len(kb.ids)
}
