package consolidate

import (
	"strings"

	"github.com/ckcelina/safe-space-app-gsbdvu-sub001/pkg/types"
)

// categorySynonyms folds raw category labels onto the canonical display
// categories. Keys are lower-case with single spaces.
var categorySynonyms = map[string]string{
	"health":            types.CategoryHealth,
	"medical":           types.CategoryHealth,
	"medical history":   types.CategoryHealth,
	"history":           types.CategoryHealth,
	"medical condition": types.CategoryHealth,
	"health condition":  types.CategoryHealth,
	"conditions":        types.CategoryHealth,
	"diagnosis":         types.CategoryHealth,
	"illness":           types.CategoryHealth,
	"mental health":     types.CategoryHealth,
	"physical health":   types.CategoryHealth,

	"timeline":           types.CategoryTimeline,
	"age":                types.CategoryTimeline,
	"age reference":      types.CategoryTimeline,
	"age at event":       types.CategoryTimeline,
	"year":               types.CategoryTimeline,
	"years":              types.CategoryTimeline,
	"date":               types.CategoryTimeline,
	"dates":              types.CategoryTimeline,
	"time since passing": types.CategoryTimeline,
	"time since event":   types.CategoryTimeline,
	"time since":         types.CategoryTimeline,

	"loss":        types.CategoryLoss,
	"grief":       types.CategoryLoss,
	"death":       types.CategoryLoss,
	"bereavement": types.CategoryLoss,

	"relationship":        types.CategoryRelationships,
	"relationships":       types.CategoryRelationships,
	"relationship status": types.CategoryRelationships,
	"marriage":            types.CategoryRelationships,
	"dating":              types.CategoryRelationships,

	"location":  types.CategoryLocation,
	"residence": types.CategoryLocation,
	"home":      types.CategoryLocation,
	"address":   types.CategoryLocation,
	"place":     types.CategoryLocation,

	"work":       types.CategoryWork,
	"career":     types.CategoryWork,
	"job":        types.CategoryWork,
	"occupation": types.CategoryWork,
	"employment": types.CategoryWork,
	"profession": types.CategoryWork,

	"education":  types.CategoryEducation,
	"school":     types.CategoryEducation,
	"studies":    types.CategoryEducation,
	"university": types.CategoryEducation,
	"college":    types.CategoryEducation,

	"family":         types.CategoryFamily,
	"family member":  types.CategoryFamily,
	"family members": types.CategoryFamily,
	"relatives":      types.CategoryFamily,
	"children":       types.CategoryFamily,

	"interests": types.CategoryInterests,
	"interest":  types.CategoryInterests,
	"hobby":     types.CategoryInterests,
	"hobbies":   types.CategoryInterests,
	"likes":     types.CategoryInterests,
	"passions":  types.CategoryInterests,

	"life events": types.CategoryLifeEvents,
	"life event":  types.CategoryLifeEvents,
	"events":      types.CategoryLifeEvents,
	"milestones":  types.CategoryLifeEvents,
	"milestone":   types.CategoryLifeEvents,

	"personality": types.CategoryPersonality,
	"traits":      types.CategoryPersonality,
	"trait":       types.CategoryPersonality,
	"character":   types.CategoryPersonality,

	"habits":   types.CategoryHabits,
	"habit":    types.CategoryHabits,
	"routine":  types.CategoryHabits,
	"routines": types.CategoryHabits,

	"general":       types.CategoryGeneral,
	"other":         types.CategoryGeneral,
	"misc":          types.CategoryGeneral,
	"uncategorized": types.CategoryGeneral,
}

var (
	healthWords   = map[string]bool{"medical": true, "health": true, "illness": true, "diagnosis": true, "condition": true, "conditions": true}
	timelineWords = map[string]bool{"age": true, "ages": true, "year": true, "years": true, "timeline": true, "date": true}
)

// NormalizeCategory maps a raw category label to its display category.
// Labels with no synonym keep their trimmed spelling; empty labels are General.
func NormalizeCategory(raw string) string {
	label := normalizeText(raw)
	if label == "" {
		return types.CategoryGeneral
	}
	if c, ok := categorySynonyms[label]; ok {
		return c
	}
	words := strings.Fields(label)
	for _, w := range words {
		if healthWords[w] {
			return types.CategoryHealth
		}
	}
	for _, w := range words {
		if timelineWords[w] {
			return types.CategoryTimeline
		}
	}
	if strings.Contains(label, "time since") {
		return types.CategoryTimeline
	}
	return strings.Join(strings.Fields(raw), " ")
}

// normalizeText lower-cases, trims, and collapses whitespace.
func normalizeText(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
