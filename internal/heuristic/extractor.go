package heuristic

import (
	"strings"
	"sync/atomic"
	"unicode/utf8"

	"github.com/ckcelina/safe-space-app-gsbdvu-sub001/pkg/types"
)

// Extractor applies a compiled rule table to a single utterance.
// The rule table can be swapped at runtime with SetRules.
type Extractor struct {
	rules atomic.Pointer[CompiledRules]
}

// NewExtractor returns an Extractor using rules.
func NewExtractor(rules *CompiledRules) *Extractor {
	e := &Extractor{}
	e.rules.Store(rules)
	return e
}

// NewDefaultExtractor returns an Extractor using the embedded rule table.
func NewDefaultExtractor() *Extractor {
	return NewExtractor(DefaultRules())
}

// Rules returns the active rule table.
func (e *Extractor) Rules() *CompiledRules {
	return e.rules.Load()
}

// SetRules atomically replaces the active rule table. Nil is ignored.
func (e *Extractor) SetRules(rules *CompiledRules) {
	if rules != nil {
		e.rules.Store(rules)
	}
}

// ShouldExtract reports whether text carries enough signal to run the rules.
func (e *Extractor) ShouldExtract(text string) bool {
	return e.rules.Load().shouldExtract(text)
}

// Extract returns the facts the rule table finds in text, in rule order.
// It is deterministic, has no side effects, and returns nil for short or
// greeting-only input. Identity and Subject are left for the caller to set.
func (e *Extractor) Extract(text, subjectName string) []types.Fact {
	rules := e.rules.Load()
	if rules == nil || !rules.shouldExtract(text) {
		return nil
	}

	text = strings.TrimSpace(text)
	seen := make(map[string]bool)
	var out []types.Fact
	for i := range rules.rules {
		r := &rules.rules[i]
		groups, ok := rules.match(r, text, subjectName)
		if !ok {
			continue
		}
		key := expand(r.Key, groups, true)
		value := expand(r.Value, groups, false)
		if key == "" || value == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, types.Fact{
			Category:   r.Category,
			Key:        key,
			Value:      value,
			Importance: r.Importance,
			Confidence: r.Confidence,
			Source:     types.SourceHeuristic,
		})
	}
	return out
}

func (c *CompiledRules) shouldExtract(text string) bool {
	if c == nil {
		return false
	}
	trimmed := strings.TrimSpace(text)
	if utf8.RuneCountInString(trimmed) < c.minLength {
		return false
	}
	lower := strings.ToLower(trimmed)
	for _, re := range c.rejects {
		if re.MatchString(lower) {
			return false
		}
	}
	return true
}
