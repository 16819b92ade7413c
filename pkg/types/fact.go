package types

import "time"

// Fact is a single atomic, keyed statement about a subject.
// At most one Fact exists per (Identity, Subject, Key).
type Fact struct {
	ID       string `json:"id"`       // Stable row id, assigned on first insert
	Identity string `json:"identity"` // Owning actor (opaque id)
	Subject  string `json:"subject"`  // Person or topic the fact is about

	Category string `json:"category"` // Coarse taxonomy label (raw, not normalized)
	Key      string `json:"key"`      // Normalized identifier, unique within (Identity, Subject)
	Value    string `json:"value"`    // Textual content

	Importance int    `json:"importance"` // Salience, 1-5
	Confidence int    `json:"confidence"` // Extractor certainty, 1-5
	Source     string `json:"source,omitempty"`

	LastMentionedAt *time.Time `json:"last_mentioned_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// KnownFact is the compact form of a stored fact sent to the remote
// extraction service so it can judge what is new and what is re-mentioned.
type KnownFact struct {
	Key      string `json:"key"`
	Value    string `json:"value"`
	Category string `json:"category"`
}

// Known returns the compact form of f.
func (f Fact) Known() KnownFact {
	return KnownFact{Key: f.Key, Value: f.Value, Category: f.Category}
}

// FactEdit carries a user edit to an existing fact. Nil fields are left unchanged.
type FactEdit struct {
	Category   *string
	Value      *string
	Importance *int
}
