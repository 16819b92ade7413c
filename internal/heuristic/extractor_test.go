package heuristic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ckcelina/safe-space-app-gsbdvu-sub001/pkg/types"
)

func keysOf(facts []types.Fact) []string {
	keys := make([]string, 0, len(facts))
	for _, f := range facts {
		keys = append(keys, f.Key)
	}
	return keys
}

func TestExtract_DeathAndTimeSincePassing(t *testing.T) {
	e := NewDefaultExtractor()

	facts := e.Extract("Mom passed away 3 years ago.", "Mom")
	require.Len(t, facts, 2)

	assert.Equal(t, types.KeyDeceased, facts[0].Key)
	assert.Equal(t, types.CategoryLoss, facts[0].Category)
	assert.Equal(t, "Passed away", facts[0].Value)
	assert.Equal(t, 5, facts[0].Importance)

	assert.Equal(t, types.KeyTimeSincePassing, facts[1].Key)
	assert.Equal(t, types.CategoryTimeline, facts[1].Category)
	assert.Equal(t, "3 years ago", facts[1].Value)

	for _, f := range facts {
		assert.Equal(t, types.SourceHeuristic, f.Source)
		assert.Empty(t, f.Identity)
		assert.Empty(t, f.Subject)
	}
}

func TestExtract_MedicalConditionWithAge(t *testing.T) {
	e := NewDefaultExtractor()

	facts := e.Extract("She had kidney failure when she was 10.", "Grandma")
	require.Len(t, facts, 2)

	assert.Equal(t, "medical_kidney_failure", facts[0].Key)
	assert.Equal(t, types.CategoryHealth, facts[0].Category)
	assert.Equal(t, "kidney failure", facts[0].Value)

	assert.Equal(t, "age_at_kidney_failure", facts[1].Key)
	assert.Equal(t, types.CategoryTimeline, facts[1].Category)
	assert.Equal(t, "kidney failure at age 10", facts[1].Value)
}

func TestExtract_ResidenceAndOccupation(t *testing.T) {
	e := NewDefaultExtractor()

	facts := e.Extract("He lives in New York City and works as a nurse at St. Mary's.", "Dad")
	assert.Equal(t, []string{"residence", "occupation"}, keysOf(facts))
	assert.Equal(t, "Lives in New York City", facts[0].Value)
	assert.Equal(t, "Works as nurse", facts[1].Value)
}

func TestExtract_HobbyAndLifeEvent(t *testing.T) {
	e := NewDefaultExtractor()

	facts := e.Extract("She loves gardening and she retired last year.", "")
	assert.Equal(t, []string{"hobby_gardening", "life_event_retired"}, keysOf(facts))
	assert.Equal(t, "Enjoys gardening", facts[0].Value)
	assert.Equal(t, types.CategoryLifeEvents, facts[1].Category)
}

func TestExtract_SubjectNamePlaceholder(t *testing.T) {
	e := NewDefaultExtractor()

	facts := e.Extract("Grandpa is deceased", "Grandpa")
	assert.Equal(t, []string{types.KeyDeceased}, keysOf(facts))

	// Without a known name the subject-only pattern cannot fire.
	assert.Empty(t, e.Extract("Grandpa is deceased", ""))
}

func TestExtract_SubjectNameIsQuoted(t *testing.T) {
	e := NewDefaultExtractor()

	assert.NotPanics(t, func() {
		facts := e.Extract("Dr. (Smith)+ is gone now", "Dr. (Smith)+")
		assert.Equal(t, []string{types.KeyDeceased}, keysOf(facts))
	})
}

func TestExtract_RejectsLowSignalInput(t *testing.T) {
	e := NewDefaultExtractor()

	for _, text := range []string{
		"",
		"   ",
		"ok",
		"hi mom",
		"hello there!",
		"Thank you so much",
		"good morning.",
		"okay okay",
	} {
		t.Run(text, func(t *testing.T) {
			assert.Empty(t, e.Extract(text, "Mom"))
		})
	}
}

func TestExtract_Deterministic(t *testing.T) {
	e := NewDefaultExtractor()
	text := "My dad died two years ago. He was so stubborn and his sister lives in Ohio."

	first := e.Extract(text, "Dad")
	second := e.Extract(text, "Dad")
	require.NotEmpty(t, first)
	assert.Equal(t, first, second)
}

func TestExtract_NoDuplicateKeys(t *testing.T) {
	rules, err := Compile(RuleSet{
		Version: 1,
		Rules: []Rule{
			{Name: "a", Category: "General", Key: "pet", Value: "Has a pet", Importance: 2, Confidence: 3,
				Patterns: []string{`(?i)\bdog\b`}},
			{Name: "b", Category: "General", Key: "pet", Value: "Has a cat", Importance: 2, Confidence: 3,
				Patterns: []string{`(?i)\bcat\b`}},
		},
	})
	require.NoError(t, err)

	facts := NewExtractor(rules).Extract("she has a dog and a cat", "")
	require.Len(t, facts, 1)
	assert.Equal(t, "Has a pet", facts[0].Value)
}

func TestExtract_RuleFiresOncePerCall(t *testing.T) {
	e := NewDefaultExtractor()

	facts := e.Extract("She had cancer, then she had diabetes.", "")
	var medical []string
	for _, f := range facts {
		if f.Category == types.CategoryHealth {
			medical = append(medical, f.Key)
		}
	}
	assert.Equal(t, []string{"medical_cancer"}, medical)
}

func TestShouldExtract(t *testing.T) {
	e := NewDefaultExtractor()

	assert.False(t, e.ShouldExtract("short"))
	assert.False(t, e.ShouldExtract("thanks!!"))
	assert.True(t, e.ShouldExtract("she moved to Denver"))
}

func TestSetRules_IgnoresNil(t *testing.T) {
	e := NewDefaultExtractor()
	before := e.Rules()

	e.SetRules(nil)
	assert.Same(t, before, e.Rules())
}
