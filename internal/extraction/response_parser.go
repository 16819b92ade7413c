package extraction

import (
	"encoding/json"
	"math"
	"strings"

	"github.com/ckcelina/safe-space-app-gsbdvu-sub001/internal/heuristic"
	"github.com/ckcelina/safe-space-app-gsbdvu-sub001/internal/result"
	"github.com/ckcelina/safe-space-app-gsbdvu-sub001/pkg/types"
)

// extractJSON extracts the first complete JSON object from text that may
// carry markdown fences or prose around it.
func extractJSON(text string) string {
	text = strings.ReplaceAll(text, "```json", "")
	text = strings.ReplaceAll(text, "```", "")
	text = strings.TrimSpace(text)

	start := strings.Index(text, "{")
	if start == -1 {
		return text // No JSON found, return as-is and let parser fail
	}

	braceCount := 0
	inString := false
	escape := false

	for i := start; i < len(text); i++ {
		char := text[i]

		if escape {
			escape = false
			continue
		}
		if char == '\\' {
			escape = true
			continue
		}
		if char == '"' {
			inString = !inString
			continue
		}

		// Only count braces outside of strings
		if !inString {
			switch char {
			case '{':
				braceCount++
			case '}':
				braceCount--
				if braceCount == 0 {
					return text[start : i+1]
				}
			}
		}
	}

	return text // No complete JSON found, return as-is
}

// ParseResponse decodes a service response body. A body that is not a JSON
// object, or whose fields have the wrong shape, is a KindMalformed error.
// A non-null error field is a KindApplication error.
func ParseResponse(body []byte) (*Response, error) {
	raw := extractJSON(string(body))
	if raw == "" {
		return nil, result.Errorf(result.KindMalformed, "empty response body")
	}

	var resp Response
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		return nil, result.Errorf(result.KindMalformed, "failed to decode response: %w", err)
	}
	if resp.Error != nil {
		return nil, result.Errorf(result.KindApplication, "service declared error: %s", *resp.Error)
	}
	return &resp, nil
}

// ToFacts converts wire facts into stored-fact candidates for one subject.
// Entries without a usable key or value are skipped rather than failing
// the batch. Keys are normalized; scores land on the 1-5 scale.
func ToFacts(wire []WireFact, identity, subject string) []types.Fact {
	fractional := usesFractionalConfidence(wire)

	facts := make([]types.Fact, 0, len(wire))
	for _, w := range wire {
		key := heuristic.Slug(w.Key)
		value := strings.TrimSpace(w.Value)
		if key == "" || value == "" {
			continue
		}
		category := strings.TrimSpace(w.Category)
		if category == "" {
			category = types.CategoryGeneral
		}
		facts = append(facts, types.Fact{
			Identity:   identity,
			Subject:    subject,
			Category:   category,
			Key:        key,
			Value:      value,
			Importance: scoreOrDefault(w.Importance, 3),
			Confidence: normalizeConfidence(w.Confidence, fractional),
			Source:     types.SourceRemote,
		})
	}
	return facts
}

// usesFractionalConfidence reports whether the batch is on a 0-1 scale:
// every confidence lies in [0, 1] and at least one is strictly between.
// A batch of whole numbers is read on the 1-5 scale.
func usesFractionalConfidence(wire []WireFact) bool {
	anyFraction := false
	for _, w := range wire {
		if w.Confidence < 0 || w.Confidence > 1 {
			return false
		}
		if w.Confidence > 0 && w.Confidence < 1 {
			anyFraction = true
		}
	}
	return anyFraction
}

func normalizeConfidence(c float64, fractional bool) int {
	if fractional {
		// 0 -> 1, 0.25 -> 2, 0.5 -> 3, 0.75 -> 4, 1 -> 5
		return types.ClampScore(int(math.Round(c*4)) + 1)
	}
	return scoreOrDefault(c, 3)
}

func scoreOrDefault(v float64, def int) int {
	if v == 0 || math.IsNaN(v) {
		return def
	}
	return types.ClampScore(int(math.Round(v)))
}
