package extraction

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ckcelina/safe-space-app-gsbdvu-sub001/internal/result"
	"github.com/ckcelina/safe-space-app-gsbdvu-sub001/pkg/types"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantJSON string
	}{
		{
			name:     "plain JSON object",
			input:    `{"key": "value"}`,
			wantJSON: `{"key": "value"}`,
		},
		{
			name:     "JSON with markdown code block",
			input:    "```json\n{\"key\": \"value\"}\n```",
			wantJSON: `{"key": "value"}`,
		},
		{
			name:     "JSON with surrounding text",
			input:    "Here you go:\n{\"key\": \"value\"}\nthanks",
			wantJSON: `{"key": "value"}`,
		},
		{
			name:     "braces inside strings",
			input:    `{"text": "a } b { c"}`,
			wantJSON: `{"text": "a } b { c"}`,
		},
		{
			name:     "escaped quotes",
			input:    `{"text": "He said \"hi\" }"}`,
			wantJSON: `{"text": "He said \"hi\" }"}`,
		},
		{
			name:     "no JSON present",
			input:    "nothing here",
			wantJSON: "nothing here",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantJSON, extractJSON(tt.input))
		})
	}
}

func TestParseResponse(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		resp, err := ParseResponse([]byte(`{"facts":[{"category":"Health","key":"diabetes","value":"Has type 2 diabetes","importance":4,"confidence":5}],"mentioned_keys":["residence"],"continuity":{"summary":"Talked about mom","open_loops":["call clinic"]},"error":null}`))
		require.NoError(t, err)
		require.Len(t, resp.Facts, 1)
		assert.Equal(t, "diabetes", resp.Facts[0].Key)
		assert.Equal(t, []string{"residence"}, resp.MentionedKeys)
		require.NotNil(t, resp.Continuity)
		assert.Equal(t, "Talked about mom", resp.Continuity.Summary)
		assert.Equal(t, []string{"call clinic"}, resp.Continuity.OpenLoops)
	})

	t.Run("fenced", func(t *testing.T) {
		resp, err := ParseResponse([]byte("```json\n{\"facts\":[],\"mentioned_keys\":[]}\n```"))
		require.NoError(t, err)
		assert.Empty(t, resp.Facts)
		assert.Nil(t, resp.Continuity)
	})

	t.Run("declared error", func(t *testing.T) {
		_, err := ParseResponse([]byte(`{"facts":[],"error":"quota exceeded"}`))
		require.Error(t, err)
		assert.Equal(t, result.KindApplication, result.KindOf(err))
	})

	malformed := map[string]string{
		"not json":         "internal server error",
		"empty":            "",
		"wrong field type": `{"facts":"none"}`,
		"truncated":        `{"facts":[{"key":"a"`,
	}
	for name, body := range malformed {
		t.Run(name, func(t *testing.T) {
			_, err := ParseResponse([]byte(body))
			require.Error(t, err)
			assert.Equal(t, result.KindMalformed, result.KindOf(err))
		})
	}
}

func TestToFacts(t *testing.T) {
	wire := []WireFact{
		{Category: "Health", Key: "Kidney Failure", Value: " Had kidney failure ", Importance: 4, Confidence: 5},
		{Category: "", Key: "pet", Value: "Has a dog named Rex", Importance: 0, Confidence: 2},
		{Category: "Work", Key: "", Value: "dropped"},
		{Category: "Work", Key: "job", Value: "   "},
		{Category: "Work", Key: "salary", Value: "High", Importance: 9, Confidence: -1},
	}

	got := ToFacts(wire, "u1", "mom")
	require.Len(t, got, 3)

	assert.Equal(t, "kidney_failure", got[0].Key)
	assert.Equal(t, "Had kidney failure", got[0].Value)
	assert.Equal(t, "u1", got[0].Identity)
	assert.Equal(t, "mom", got[0].Subject)
	assert.Equal(t, types.SourceRemote, got[0].Source)
	assert.Equal(t, 5, got[0].Confidence)

	assert.Equal(t, types.CategoryGeneral, got[1].Category)
	assert.Equal(t, 3, got[1].Importance, "missing importance takes the default")

	assert.Equal(t, 5, got[2].Importance, "clamped")
	assert.Equal(t, 1, got[2].Confidence, "clamped")
}

func TestToFacts_FractionalConfidence(t *testing.T) {
	wire := []WireFact{
		{Key: "a", Value: "first fact", Confidence: 0.9},
		{Key: "b", Value: "second fact", Confidence: 0.5},
		{Key: "c", Value: "third fact", Confidence: 0.1},
		{Key: "d", Value: "fourth fact", Confidence: 1},
		{Key: "e", Value: "fifth fact", Confidence: 0},
	}
	got := ToFacts(wire, "u1", "mom")
	require.Len(t, got, 5)

	var conf []int
	for _, f := range got {
		conf = append(conf, f.Confidence)
	}
	assert.Equal(t, []int{5, 3, 1, 5, 1}, conf)
}

func TestToFacts_WholeNumberBatchIsOneToFive(t *testing.T) {
	wire := []WireFact{
		{Key: "a", Value: "first fact", Confidence: 1},
		{Key: "b", Value: "second fact", Confidence: 4},
	}
	got := ToFacts(wire, "u1", "mom")
	require.Len(t, got, 2)
	assert.Equal(t, 1, got[0].Confidence)
	assert.Equal(t, 4, got[1].Confidence)
}
