package types

import "time"

// MaxOpenLoops caps the number of open loops retained per subject.
const MaxOpenLoops = 8

// ContinuitySummary is the rolling cross-turn state kept for one
// (Identity, Subject) pair. Exactly one row exists per pair once created.
type ContinuitySummary struct {
	Identity string `json:"identity"`
	Subject  string `json:"subject"`

	// Enabled gates capture of new facts. Existing facts stay visible when false.
	Enabled bool `json:"enabled"`

	Summary      string   `json:"summary"`
	OpenLoops    []string `json:"open_loops"`
	NextQuestion string   `json:"next_question"`
	CurrentGoal  string   `json:"current_goal"`
	LastAdvice   string   `json:"last_advice"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DefaultContinuity returns the summary used when no row exists yet.
func DefaultContinuity(identity, subject string) ContinuitySummary {
	return ContinuitySummary{
		Identity:  identity,
		Subject:   subject,
		Enabled:   true,
		OpenLoops: []string{},
	}
}

// ContinuityDelta is a partial continuity update produced by extraction.
// Empty string fields mean "no change".
type ContinuityDelta struct {
	Summary      string   `json:"summary"`
	OpenLoops    []string `json:"open_loops"`
	NextQuestion string   `json:"next_question"`
	CurrentGoal  string   `json:"current_goal"`
	LastAdvice   string   `json:"last_advice"`
}
