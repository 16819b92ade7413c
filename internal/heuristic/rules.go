// Package heuristic implements the local, rule-based fact extractor. It needs
// no network access and serves as the fallback whenever remote extraction
// fails. The rule table is data (rules.yaml), not code, so tightening or
// loosening extraction is an edit to that file.
package heuristic

import (
	_ "embed"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/ckcelina/safe-space-app-gsbdvu-sub001/pkg/types"
)

//go:embed rules.yaml
var defaultRulesYAML []byte

// defaultMinLength is used when a rule set omits min_length.
const defaultMinLength = 8

// maxSubjectPatterns bounds the per-subject regexp cache. The cache is
// emptied when it fills.
const maxSubjectPatterns = 1024

// subjectToken is the placeholder for the subject name inside patterns.
const subjectToken = "{subject}"

// noMatch is an empty character class: it never matches. It stands in for
// {subject} when no subject name is known.
const noMatch = `[^\x00-\x{10FFFF}]`

var placeholderRe = regexp.MustCompile(`\{([a-z_]+)\}`)

// Rule is one entry of the rule table.
type Rule struct {
	Name       string   `yaml:"name"`
	Category   string   `yaml:"category"`
	Key        string   `yaml:"key"`
	Value      string   `yaml:"value"`
	Importance int      `yaml:"importance"`
	Confidence int      `yaml:"confidence"`
	Patterns   []string `yaml:"patterns"`
}

// RuleSet is the decoded form of a rule table file.
type RuleSet struct {
	Version   int      `yaml:"version"`
	MinLength int      `yaml:"min_length"`
	Rejects   []string `yaml:"rejects"`
	Rules     []Rule   `yaml:"rules"`
}

// CompiledRules is a validated RuleSet ready for matching. The rule table is
// immutable once built and the type is safe for concurrent use.
type CompiledRules struct {
	version   int
	minLength int
	rejects   []*regexp.Regexp
	rules     []compiledRule

	// subject patterns compiled per name, keyed by the expanded source
	mu       sync.RWMutex
	subjects map[string]*regexp.Regexp
}

type compiledRule struct {
	Rule
	patterns []compiledPattern
}

// compiledPattern holds either a static regexp or, when the source
// references {subject}, the raw source to be expanded per subject name.
type compiledPattern struct {
	re     *regexp.Regexp
	source string
}

// Version returns the rule table version.
func (c *CompiledRules) Version() int { return c.version }

// Len returns the number of rules.
func (c *CompiledRules) Len() int { return len(c.rules) }

// DefaultRules compiles the embedded rule table. The embedded table is
// covered by tests, so a failure here is a build defect.
func DefaultRules() *CompiledRules {
	rules, err := LoadRules(defaultRulesYAML)
	if err != nil {
		panic(fmt.Sprintf("heuristic: embedded rule table is invalid: %v", err))
	}
	return rules
}

// LoadRules decodes and validates a YAML rule table.
func LoadRules(data []byte) (*CompiledRules, error) {
	var rs RuleSet
	if err := yaml.Unmarshal(data, &rs); err != nil {
		return nil, fmt.Errorf("heuristic: failed to decode rule table: %w", err)
	}
	return Compile(rs)
}

// Compile validates rs and compiles its patterns.
func Compile(rs RuleSet) (*CompiledRules, error) {
	if rs.Version < 1 {
		return nil, errors.New("heuristic: rule table version must be >= 1")
	}
	if len(rs.Rules) == 0 {
		return nil, errors.New("heuristic: rule table has no rules")
	}

	out := &CompiledRules{
		version:   rs.Version,
		minLength: rs.MinLength,
	}
	if out.minLength <= 0 {
		out.minLength = defaultMinLength
	}

	for i, src := range rs.Rejects {
		re, err := regexp.Compile(src)
		if err != nil {
			return nil, fmt.Errorf("heuristic: reject pattern %d: %w", i, err)
		}
		out.rejects = append(out.rejects, re)
	}

	names := make(map[string]bool, len(rs.Rules))
	for _, r := range rs.Rules {
		cr, err := compileRule(r)
		if err != nil {
			return nil, err
		}
		if names[r.Name] {
			return nil, fmt.Errorf("heuristic: duplicate rule name %q", r.Name)
		}
		names[r.Name] = true
		out.rules = append(out.rules, cr)
	}
	return out, nil
}

func compileRule(r Rule) (compiledRule, error) {
	switch {
	case strings.TrimSpace(r.Name) == "":
		return compiledRule{}, errors.New("heuristic: rule without a name")
	case strings.TrimSpace(r.Category) == "":
		return compiledRule{}, fmt.Errorf("heuristic: rule %q has no category", r.Name)
	case strings.TrimSpace(r.Key) == "":
		return compiledRule{}, fmt.Errorf("heuristic: rule %q has no key", r.Name)
	case strings.TrimSpace(r.Value) == "":
		return compiledRule{}, fmt.Errorf("heuristic: rule %q has no value", r.Name)
	case len(r.Patterns) == 0:
		return compiledRule{}, fmt.Errorf("heuristic: rule %q has no patterns", r.Name)
	}
	if r.Importance < types.MinScore || r.Importance > types.MaxScore {
		return compiledRule{}, fmt.Errorf("heuristic: rule %q importance %d out of range", r.Name, r.Importance)
	}
	if r.Confidence < types.MinScore || r.Confidence > types.MaxScore {
		return compiledRule{}, fmt.Errorf("heuristic: rule %q confidence %d out of range", r.Name, r.Confidence)
	}

	keyGroups := placeholders(r.Key)
	cr := compiledRule{Rule: r}
	for i, src := range r.Patterns {
		// Compile with a sample name so syntax errors surface at load time.
		sample, err := regexp.Compile(expandSubject(src, "Sample"))
		if err != nil {
			return compiledRule{}, fmt.Errorf("heuristic: rule %q pattern %d: %w", r.Name, i, err)
		}
		for _, g := range keyGroups {
			if sample.SubexpIndex(g) < 0 {
				return compiledRule{}, fmt.Errorf("heuristic: rule %q pattern %d lacks group %q used by key", r.Name, i, g)
			}
		}
		if strings.Contains(src, subjectToken) {
			cr.patterns = append(cr.patterns, compiledPattern{source: src})
		} else {
			cr.patterns = append(cr.patterns, compiledPattern{re: sample})
		}
	}
	return cr, nil
}

// match returns the named captures of the first pattern of r that matches.
func (c *CompiledRules) match(r *compiledRule, text, subjectName string) (map[string]string, bool) {
	for _, p := range r.patterns {
		re := p.re
		if re == nil {
			var err error
			re, err = c.subjectRegexp(p.source, subjectName)
			if err != nil {
				continue
			}
		}
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		groups := make(map[string]string, len(m))
		for i, name := range re.SubexpNames() {
			if name != "" && i < len(m) {
				groups[name] = collapseSpace(m[i])
			}
		}
		return groups, true
	}
	return nil, false
}

// subjectRegexp returns the compiled form of src for subjectName, compiling
// it on first use.
func (c *CompiledRules) subjectRegexp(src, subjectName string) (*regexp.Regexp, error) {
	expanded := expandSubject(src, subjectName)

	c.mu.RLock()
	re, ok := c.subjects[expanded]
	c.mu.RUnlock()
	if ok {
		return re, nil
	}

	re, err := regexp.Compile(expanded)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if cached, ok := c.subjects[expanded]; ok {
		return cached, nil
	}
	if c.subjects == nil || len(c.subjects) >= maxSubjectPatterns {
		c.subjects = make(map[string]*regexp.Regexp)
	}
	c.subjects[expanded] = re
	return re, nil
}

func (c *CompiledRules) cachedSubjectPatterns() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.subjects)
}

func expandSubject(src, subjectName string) string {
	if !strings.Contains(src, subjectToken) {
		return src
	}
	name := strings.TrimSpace(subjectName)
	repl := noMatch
	if name != "" {
		repl = regexp.QuoteMeta(name)
	}
	return strings.ReplaceAll(src, subjectToken, repl)
}

func placeholders(tmpl string) []string {
	var out []string
	for _, m := range placeholderRe.FindAllStringSubmatch(tmpl, -1) {
		out = append(out, m[1])
	}
	return out
}

// expand fills {group} placeholders. Key templates slugify each capture.
func expand(tmpl string, groups map[string]string, slug bool) string {
	s := placeholderRe.ReplaceAllStringFunc(tmpl, func(ph string) string {
		v := groups[ph[1:len(ph)-1]]
		if slug {
			return Slug(v)
		}
		return v
	})
	if slug {
		return strings.Trim(strings.ToLower(s), "_")
	}
	return collapseSpace(s)
}

// Slug lower-cases s and joins its alphanumeric runs with underscores.
func Slug(s string) string {
	var b strings.Builder
	underscore := false
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			underscore = false
			continue
		}
		if !underscore && b.Len() > 0 {
			b.WriteByte('_')
			underscore = true
		}
	}
	out := strings.TrimSuffix(b.String(), "_")
	if len(out) > 48 {
		out = strings.TrimSuffix(out[:48], "_")
	}
	return out
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
