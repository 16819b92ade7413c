// Package types defines the core data structures for subject memory: facts
// extracted from conversation, the rolling continuity summary kept per
// subject, conversational turns, and the derived display view.
package types

// Canonical display categories. Raw facts may carry any category label; the
// consolidation engine folds synonyms onto these.
const (
	CategoryHealth        = "Health"
	CategoryTimeline      = "Timeline"
	CategoryLoss          = "Loss"
	CategoryRelationships = "Relationships"
	CategoryLocation      = "Location"
	CategoryWork          = "Work"
	CategoryEducation     = "Education"
	CategoryFamily        = "Family"
	CategoryInterests     = "Interests"
	CategoryLifeEvents    = "Life Events"
	CategoryPersonality   = "Personality"
	CategoryHabits        = "Habits"
	CategoryGeneral       = "General"
)

// Fact sources.
const (
	SourceRemote    = "remote"
	SourceHeuristic = "heuristic"
	SourceUser      = "user"
)

// Turn roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Well-known fact keys shared by the extractor and the consolidation engine.
const (
	KeyDeceased         = "deceased"
	KeyTimeSincePassing = "time_since_passing"
)

// Score bounds for Importance and Confidence.
const (
	MinScore = 1
	MaxScore = 5
)

// ClampScore bounds a score to [MinScore, MaxScore].
func ClampScore(v int) int {
	if v < MinScore {
		return MinScore
	}
	if v > MaxScore {
		return MaxScore
	}
	return v
}
