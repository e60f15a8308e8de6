package model

// OutputMention is the position of a mention in the published dataset format.
type OutputMention struct {
	Page    string `json:"page"`
	Listing int    `json:"listing"`
	Item    int    `json:"item"`
	Text    string `json:"text"`
}

// OutputRecord is one resolved entity of a run, known or NIL.
type OutputRecord struct {
	Idx      int64           `json:"idx"`
	Name     *string         `json:"name,omitempty"`
	IsNil    bool            `json:"is_nil"`
	Mentions []OutputMention `json:"mentions"`
}
