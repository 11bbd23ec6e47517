// Package rules provides the declarative compliance-rule layer. Rules have
// their own lifecycle, separate from detection components: loaded at
// startup, mutable at runtime through the rules registry, and evaluated by
// a Checker that plugs into the checker registry like any other component.
package rules

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Kind selects how a rule's pattern is applied.
type Kind string

const (
	// KindRegex treats Pattern as a regular expression.
	KindRegex Kind = "regex"
	// KindContains treats Pattern as a case-insensitive substring.
	KindContains Kind = "contains"
)

// Severity mirrors the pattern library's tiers.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Rule is one declarative policy entry.
type Rule struct {
	ID          string   `yaml:"id" json:"id"`
	Description string   `yaml:"description" json:"description"`
	Category    string   `yaml:"category" json:"category"`
	Kind        Kind     `yaml:"kind" json:"kind"`
	Pattern     string   `yaml:"pattern" json:"pattern"`
	Severity    Severity `yaml:"severity" json:"severity"`
	Enabled     bool     `yaml:"enabled" json:"enabled"`
}

// Parse decodes a YAML rule list handed in as bytes; callers own any file
// reading.
func Parse(data []byte) ([]Rule, error) {
	var doc struct {
		Rules []Rule `yaml:"rules"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("rules: parse: %w", err)
	}
	return doc.Rules, nil
}

// compiled pairs a rule with its ready-to-run matcher.
type compiled struct {
	rule Rule
	re   *regexp.Regexp
}

func (c *compiled) matches(text string) bool {
	if c.re != nil {
		return c.re.MatchString(text)
	}
	return strings.Contains(strings.ToLower(text), strings.ToLower(c.rule.Pattern))
}

// Registry holds rules by ID. Safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	rules map[string]*compiled
}

// NewRegistry builds an empty rules registry.
func NewRegistry() *Registry {
	return &Registry{rules: make(map[string]*compiled)}
}

// Load replaces the registry contents with the given rule set. Any invalid
// rule fails the whole load, leaving the previous contents untouched.
func (r *Registry) Load(rules []Rule) error {
	next := make(map[string]*compiled, len(rules))
	for _, rule := range rules {
		c, err := compileRule(rule)
		if err != nil {
			return err
		}
		if _, dup := next[rule.ID]; dup {
			return fmt.Errorf("rules: duplicate id %q", rule.ID)
		}
		next[rule.ID] = c
	}

	r.mu.Lock()
	r.rules = next
	r.mu.Unlock()
	return nil
}

// Add inserts or replaces one rule.
func (r *Registry) Add(rule Rule) error {
	c, err := compileRule(rule)
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.rules[rule.ID] = c
	r.mu.Unlock()
	return nil
}

// Remove deletes a rule. Returns false when the ID is absent.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rules[id]; !ok {
		return false
	}
	delete(r.rules, id)
	return true
}

// Enable marks a rule enabled. Returns false when absent.
func (r *Registry) Enable(id string) bool { return r.setEnabled(id, true) }

// Disable marks a rule disabled. Returns false when absent.
func (r *Registry) Disable(id string) bool { return r.setEnabled(id, false) }

func (r *Registry) setEnabled(id string, enabled bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.rules[id]
	if !ok {
		return false
	}
	c.rule.Enabled = enabled
	return true
}

// Get returns a rule by ID.
func (r *Registry) Get(id string) (Rule, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.rules[id]
	if !ok {
		return Rule{}, false
	}
	return c.rule, true
}

// List returns all rules sorted by ID.
func (r *Registry) List() []Rule {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Rule, 0, len(r.rules))
	for _, c := range r.rules {
		out = append(out, c.rule)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Violation is one enabled rule that matched.
type Violation struct {
	Rule Rule
}

// Check evaluates every enabled rule against the text. Violations are
// sorted by rule ID.
func (r *Registry) Check(text string) []Violation {
	r.mu.RLock()
	snapshot := make([]*compiled, 0, len(r.rules))
	for _, c := range r.rules {
		if c.rule.Enabled {
			snapshot = append(snapshot, c)
		}
	}
	r.mu.RUnlock()

	var violations []Violation
	for _, c := range snapshot {
		if c.matches(text) {
			violations = append(violations, Violation{Rule: c.rule})
		}
	}
	sort.Slice(violations, func(i, j int) bool { return violations[i].Rule.ID < violations[j].Rule.ID })
	return violations
}

func compileRule(rule Rule) (*compiled, error) {
	if rule.ID == "" {
		return nil, fmt.Errorf("rules: rule has no id")
	}
	if rule.Pattern == "" {
		return nil, fmt.Errorf("rules: rule %q has no pattern", rule.ID)
	}
	switch rule.Kind {
	case KindContains:
		return &compiled{rule: rule}, nil
	case KindRegex, "":
		re, err := regexp.Compile("(?i)" + rule.Pattern)
		if err != nil {
			return nil, fmt.Errorf("rules: rule %q: %w", rule.ID, err)
		}
		if rule.Kind == "" {
			rule.Kind = KindRegex
		}
		return &compiled{rule: rule, re: re}, nil
	default:
		return nil, fmt.Errorf("rules: rule %q: unsupported kind %q", rule.ID, rule.Kind)
	}
}
