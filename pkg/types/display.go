package types

import "time"

// DisplayMemory is a presentation-only aggregate of one or more stored facts.
// It is never authoritative: edits and deletes resolve to SourceFactIDs.
type DisplayMemory struct {
	ID       string `json:"id"`
	Subject  string `json:"subject"`
	Category string `json:"category"`
	Key      string `json:"key"`
	Value    string `json:"value"`

	Importance int `json:"importance"`
	Confidence int `json:"confidence"`

	LastMentionedAt *time.Time `json:"last_mentioned_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`

	IsMerged      bool     `json:"is_merged"`
	SourceFactIDs []string `json:"source_fact_ids"`
}

// Section groups display items under one normalized category.
type Section struct {
	Category string          `json:"category"`
	Items    []DisplayMemory `json:"items"`
}

// Turn is one message of the conversation about a subject.
type Turn struct {
	Role      string    `json:"role"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}
