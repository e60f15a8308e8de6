package model

import (
	"cmp"
	"time"
)

// MentionID identifies a mention across the corpus.
type MentionID string

// Mention is a span of listing text that may refer to an entity.
// Mentions are immutable once handed to the linking core.
type Mention struct {
	ID        MentionID `json:"id"`
	Page      string    `json:"page"`
	Listing   int       `json:"listing"`
	Item      int       `json:"item"`
	Text      string    `json:"text"`
	Embedding []float32 `json:"embedding,omitempty"`
	Metadata  Metadata  `json:"metadata,omitempty"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// CompareMentions orders mentions source-then-position: page, listing, item, id.
func CompareMentions(a, b *Mention) int {
	if c := cmp.Compare(a.Page, b.Page); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Listing, b.Listing); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Item, b.Item); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}
