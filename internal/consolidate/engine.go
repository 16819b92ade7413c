// Package consolidate builds the read-only display view of stored facts.
// It folds category synonyms, hides duplicates, splices nearby age and year
// mentions into the event they belong to, and groups the result into
// sorted sections. Nothing here writes to storage; display items point back
// to the facts behind them through SourceFactIDs.
package consolidate

import (
	"regexp"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/ckcelina/safe-space-app-gsbdvu-sub001/pkg/types"
)

// DefaultProximityWindow is how far apart, either way, a Timeline fact and
// an event fact may have been created and still be merged.
const DefaultProximityWindow = 10 * time.Minute

const (
	mergeSeparator   = " — "
	passedAwayPrefix = "Passed away • "
)

var (
	ageToken      = regexp.MustCompile(`(?i)\bage[: ]*(?:of\s+)?(\d{1,3})\b`)
	yearsOldToken = regexp.MustCompile(`(?i)\b(\d{1,3})\s*(?:years?|yrs?)[\s-]*old\b`)
	yearToken     = regexp.MustCompile(`\b((?:18|19|20)\d{2})\b`)
	passingPrefix = regexp.MustCompile(`(?i)^\s*time since passing\s*[:\-]\s*`)
	sinceLabel    = regexp.MustCompile(`(?i)\bsince\s+(?:passing|death|(?:he|she|they)\s+(?:died|passed))\b`)
	deceasedWords = regexp.MustCompile(`(?i)\b(?:deceased|passed away|passed on|died)\b`)
)

// passingRole marks the two halves of a "Passed away • <when>" item.
type passingRole int

const (
	notPassing passingRole = iota
	deceasedRole
	sinceRole
)

// Options configures an Engine.
type Options struct {
	ProximityWindow time.Duration
}

// Engine consolidates facts for display. It holds no state beyond its
// options and is safe for concurrent use.
type Engine struct {
	window time.Duration
}

// NewEngine creates an Engine. A non-positive window takes the default.
func NewEngine(opts Options) *Engine {
	if opts.ProximityWindow <= 0 {
		opts.ProximityWindow = DefaultProximityWindow
	}
	return &Engine{window: opts.ProximityWindow}
}

var defaultEngine = NewEngine(Options{})

// Consolidate runs the default Engine.
func Consolidate(facts []types.Fact) []types.Section {
	return defaultEngine.Consolidate(facts)
}

// entry is a fact with its comparison fields.
type entry struct {
	fact     types.Fact
	category string
	value    string // normalized, for comparison only
	words    string // lowercase alphanumeric words of the value
	role     passingRole
	sources  []string
}

func (e *entry) isTimeline() bool { return e.category == types.CategoryTimeline }

// Consolidate returns display sections for facts. facts is not modified.
func (e *Engine) Consolidate(facts []types.Fact) []types.Section {
	entries := normalize(facts)
	entries = dedupe(entries)
	items, roles := e.proximityMerge(entries)
	items = composePassing(items, roles)
	return group(items)
}

// normalize copies facts into entries in a stable order.
func normalize(facts []types.Fact) []*entry {
	out := make([]*entry, 0, len(facts))
	for _, f := range facts {
		en := &entry{
			fact:     f,
			category: NormalizeCategory(f.Category),
			value:    normalizeText(f.Value),
			words:    words(f.Value),
			sources:  []string{f.ID},
		}
		en.role = roleOf(en)
		out = append(out, en)
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].fact, out[j].fact
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
	return out
}

// dedupe keeps one entry per (subject, value). Hidden duplicates stay
// reachable through the winner's sources.
func dedupe(entries []*entry) []*entry {
	type groupKey struct{ subject, value string }
	index := make(map[groupKey]int)
	out := make([]*entry, 0, len(entries))
	for _, en := range entries {
		k := groupKey{en.fact.Subject, en.value}
		i, ok := index[k]
		if !ok {
			index[k] = len(out)
			out = append(out, en)
			continue
		}
		winner, loser := out[i], en
		if preferred(en, out[i]) {
			winner, loser = en, out[i]
		}
		winner.sources = appendUnique(winner.sources, loser.sources...)
		out[i] = winner
	}
	return out
}

// preferred reports whether a should be shown instead of b.
func preferred(a, b *entry) bool {
	if a.isTimeline() != b.isTimeline() {
		return a.isTimeline()
	}
	if !a.fact.UpdatedAt.Equal(b.fact.UpdatedAt) {
		return a.fact.UpdatedAt.After(b.fact.UpdatedAt)
	}
	if a.fact.Importance != b.fact.Importance {
		return a.fact.Importance > b.fact.Importance
	}
	return a.fact.Confidence > b.fact.Confidence
}

// proximityMerge splices age and year tokens from Timeline entries into an
// event entry created within the window: the event the Timeline fact names
// if there is one, otherwise the closest. Absorbed Timeline entries are not
// shown on their own. The returned map gives the passing role of each item
// by ID.
func (e *Engine) proximityMerge(entries []*entry) ([]types.DisplayMemory, map[string]passingRole) {
	var events, timelines []*entry
	for _, en := range entries {
		switch {
		case en.role != notPassing:
			events = append(events, en)
		case en.isTimeline():
			timelines = append(timelines, en)
		default:
			events = append(events, en)
		}
	}

	absorbedBy := make(map[*entry]*entry)
	for _, tl := range timelines {
		if extractToken(tl.fact.Value) == "" {
			continue
		}
		var best *entry
		var bestGap time.Duration
		bestRel := -1
		for _, ev := range events {
			if ev.fact.Subject != tl.fact.Subject || ev.role != notPassing {
				continue
			}
			gap := absDuration(ev.fact.CreatedAt.Sub(tl.fact.CreatedAt))
			if gap > e.window {
				continue
			}
			rel := relevance(tl, ev)
			if best == nil || rel > bestRel || (rel == bestRel && gap < bestGap) {
				best, bestGap, bestRel = ev, gap, rel
			}
		}
		if best != nil {
			absorbedBy[tl] = best
		}
	}

	items := make([]types.DisplayMemory, 0, len(entries))
	roles := make(map[string]passingRole)
	for _, en := range entries {
		if _, ok := absorbedBy[en]; ok {
			continue
		}
		item := display(en)
		if en.role != notPassing {
			roles[item.ID] = en.role
		}
		var tokens []string
		for _, tl := range timelines {
			if absorbedBy[tl] != en {
				continue
			}
			tokens = appendUnique(tokens, extractToken(tl.fact.Value))
			absorb(&item, tl)
		}
		if len(tokens) > 0 {
			item.Value = strings.TrimSpace(item.Value) + mergeSeparator + strings.Join(tokens, ", ")
			item.IsMerged = true
		}
		items = append(items, item)
	}
	return items, roles
}

// relevance scores how directly tl names ev: 2 when the key after "_at_"
// matches the event key or its suffix, 1 when the event's value appears as
// whole words in the Timeline value, 0 otherwise.
func relevance(tl, ev *entry) int {
	if _, target, ok := strings.Cut(tl.fact.Key, "_at_"); ok && target != "" {
		if ev.fact.Key == target || strings.HasSuffix(ev.fact.Key, "_"+target) {
			return 2
		}
	}
	if ev.words != "" && strings.Contains(" "+tl.words+" ", " "+ev.words+" ") {
		return 1
	}
	return 0
}

// composePassing folds a deceased item and a time-since-passing item for
// the same subject into one.
func composePassing(items []types.DisplayMemory, roles map[string]passingRole) []types.DisplayMemory {
	type pair struct{ deceased, since int }
	pairs := make(map[string]*pair)
	var subjects []string
	for i, it := range items {
		role := roles[it.ID]
		if role == notPassing {
			continue
		}
		isDeceased, isSince := role == deceasedRole, role == sinceRole
		p, ok := pairs[it.Subject]
		if !ok {
			p = &pair{deceased: -1, since: -1}
			pairs[it.Subject] = p
			subjects = append(subjects, it.Subject)
		}
		if isDeceased && p.deceased == -1 {
			p.deceased = i
		}
		if isSince && p.since == -1 {
			p.since = i
		}
	}

	drop := make(map[int]bool)
	for _, s := range subjects {
		p := pairs[s]
		if p.deceased == -1 || p.since == -1 {
			continue
		}
		d, t := &items[p.deceased], items[p.since]
		d.Value = passedAwayPrefix + passingPrefix.ReplaceAllString(t.Value, "")
		d.IsMerged = true
		d.SourceFactIDs = appendUnique(d.SourceFactIDs, t.SourceFactIDs...)
		mergeScores(d, t)
		drop[p.since] = true
	}
	if len(drop) == 0 {
		return items
	}
	out := make([]types.DisplayMemory, 0, len(items)-len(drop))
	for i, it := range items {
		if !drop[i] {
			out = append(out, it)
		}
	}
	return out
}

// group sorts items into sections: categories alphabetical with General
// last, items by importance then recency.
func group(items []types.DisplayMemory) []types.Section {
	byCategory := make(map[string][]types.DisplayMemory)
	var categories []string
	for _, it := range items {
		if _, ok := byCategory[it.Category]; !ok {
			categories = append(categories, it.Category)
		}
		byCategory[it.Category] = append(byCategory[it.Category], it)
	}

	sort.Slice(categories, func(i, j int) bool {
		a, b := categories[i], categories[j]
		if (a == types.CategoryGeneral) != (b == types.CategoryGeneral) {
			return b == types.CategoryGeneral
		}
		return strings.ToLower(a) < strings.ToLower(b)
	})

	sections := make([]types.Section, 0, len(categories))
	for _, c := range categories {
		list := byCategory[c]
		sort.SliceStable(list, func(i, j int) bool { return itemLess(list[i], list[j]) })
		sections = append(sections, types.Section{Category: c, Items: list})
	}
	return sections
}

func itemLess(a, b types.DisplayMemory) bool {
	if a.Importance != b.Importance {
		return a.Importance > b.Importance
	}
	switch {
	case a.LastMentionedAt != nil && b.LastMentionedAt == nil:
		return true
	case a.LastMentionedAt == nil && b.LastMentionedAt != nil:
		return false
	case a.LastMentionedAt != nil && !a.LastMentionedAt.Equal(*b.LastMentionedAt):
		return a.LastMentionedAt.After(*b.LastMentionedAt)
	}
	if !a.UpdatedAt.Equal(b.UpdatedAt) {
		return a.UpdatedAt.After(b.UpdatedAt)
	}
	return a.ID < b.ID
}

func display(en *entry) types.DisplayMemory {
	f := en.fact
	item := types.DisplayMemory{
		ID:            f.ID,
		Subject:       f.Subject,
		Category:      en.category,
		Key:           f.Key,
		Value:         f.Value,
		Importance:    f.Importance,
		Confidence:    f.Confidence,
		CreatedAt:     f.CreatedAt,
		UpdatedAt:     f.UpdatedAt,
		SourceFactIDs: append([]string(nil), en.sources...),
	}
	if f.LastMentionedAt != nil {
		t := *f.LastMentionedAt
		item.LastMentionedAt = &t
	}
	if len(item.SourceFactIDs) > 0 {
		item.ID = item.SourceFactIDs[0]
	}
	return item
}

// absorb folds a Timeline entry's ids and recency into item.
func absorb(item *types.DisplayMemory, tl *entry) {
	item.SourceFactIDs = appendUnique(item.SourceFactIDs, tl.sources...)
	mergeScores(item, display(tl))
}

func mergeScores(dst *types.DisplayMemory, src types.DisplayMemory) {
	if src.Importance > dst.Importance {
		dst.Importance = src.Importance
	}
	if src.Confidence > dst.Confidence {
		dst.Confidence = src.Confidence
	}
	if src.UpdatedAt.After(dst.UpdatedAt) {
		dst.UpdatedAt = src.UpdatedAt
	}
	if src.CreatedAt.Before(dst.CreatedAt) {
		dst.CreatedAt = src.CreatedAt
	}
	if src.LastMentionedAt != nil && (dst.LastMentionedAt == nil || src.LastMentionedAt.After(*dst.LastMentionedAt)) {
		t := *src.LastMentionedAt
		dst.LastMentionedAt = &t
	}
}

// extractToken returns "Age N" or a four-digit year found in v, or "".
func extractToken(v string) string {
	if m := ageToken.FindStringSubmatch(v); m != nil {
		return "Age " + m[1]
	}
	if m := yearsOldToken.FindStringSubmatch(v); m != nil {
		return "Age " + m[1]
	}
	if m := yearToken.FindStringSubmatch(v); m != nil {
		return m[1]
	}
	return ""
}

// roleOf recognizes the deceased and time-since-passing facts by key, raw
// category or value, so remote facts with their own keys pair up too.
func roleOf(en *entry) passingRole {
	f := en.fact
	key := strings.ReplaceAll(f.Key, "_", " ")
	switch {
	case f.Key == types.KeyTimeSincePassing,
		passingPrefix.MatchString(f.Value),
		sinceLabel.MatchString(key),
		sinceLabel.MatchString(f.Category):
		return sinceRole
	case f.Key == types.KeyDeceased,
		deceasedWords.MatchString(key),
		!en.isTimeline() && deceasedWords.MatchString(f.Value):
		return deceasedRole
	}
	return notPassing
}

// words lowercases s and keeps only its letters and digits, one space
// between words.
func words(s string) string {
	return strings.Join(strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}), " ")
}

func appendUnique(dst []string, values ...string) []string {
	for _, v := range values {
		if v == "" {
			continue
		}
		dup := false
		for _, d := range dst {
			if d == v {
				dup = true
				break
			}
		}
		if !dup {
			dst = append(dst, v)
		}
	}
	return dst
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
