// Package patterns provides the categorized pattern library used by the
// validation pipeline. All regexes are compiled once at construction and
// shared across scans.
//
// Design principles:
// - COMPILE ONCE: patterns compiled at construction, not per-scan
// - CATEGORIZED: patterns organized by threat category for targeted scans
// - EXTENSIBLE: callers can merge custom patterns into any category
package patterns

import (
	"fmt"
	"regexp"
	"sort"
)

// Category is a threat pattern category. The set is closed: scans only ever
// report one of the constants below.
type Category string

const (
	CategoryInjection  Category = "injection"
	CategoryJailbreak  Category = "jailbreak"
	CategoryExtraction Category = "extraction"
	CategoryPII        Category = "pii"
	CategoryHarmful    Category = "harmful_content"
)

// scanOrder fixes the category iteration order so Scan output is
// deterministic for identical input.
var scanOrder = []Category{
	CategoryInjection,
	CategoryJailbreak,
	CategoryExtraction,
	CategoryPII,
	CategoryHarmful,
}

// caseSensitive marks categories whose patterns must not be lowered with
// (?i). Identifier-shaped PII (card numbers, key prefixes) depends on exact
// casing for precision; natural-language categories do not.
var caseSensitive = map[Category]bool{
	CategoryPII: true,
}

// Severity is the risk tier of a single pattern.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Match is one pattern hit inside a scanned text.
type Match struct {
	Category  Category `json:"category"`
	PatternID string   `json:"pattern_id"`
	Matched   string   `json:"matched"`
	Start     int      `json:"start"`
	End       int      `json:"end"`
	Severity  Severity `json:"severity"`
}

// Pattern holds a compiled regex with metadata.
type Pattern struct {
	ID          string
	Regex       *regexp.Regexp
	Category    Category
	Severity    Severity
	Description string
}

// Library holds all compiled patterns, organized by category. A Library is
// immutable after construction and safe for concurrent use.
type Library struct {
	byCategory map[Category][]*Pattern
	total      int
}

// Option customizes library construction.
type Option func(*builder)

type builder struct {
	custom []customPattern
}

type customPattern struct {
	category Category
	id       string
	expr     string
	severity Severity
}

// WithCustom merges a caller-supplied pattern into a category. The expression
// is compiled with the category's case sensitivity; a malformed expression
// fails New.
func WithCustom(category Category, id, expr string, severity Severity) Option {
	return func(b *builder) {
		b.custom = append(b.custom, customPattern{category, id, expr, severity})
	}
}

// New builds the pattern library: builtin sets first, then custom merges.
// Returns an error for an unknown category or a malformed custom pattern.
func New(opts ...Option) (*Library, error) {
	var b builder
	for _, opt := range opts {
		opt(&b)
	}

	lib := &Library{byCategory: make(map[Category][]*Pattern, len(scanOrder))}
	registerBuiltins(lib)

	for _, c := range b.custom {
		if !knownCategory(c.category) {
			return nil, fmt.Errorf("patterns: unknown category %q", c.category)
		}
		compiled, err := compile(c.category, c.expr)
		if err != nil {
			return nil, fmt.Errorf("patterns: custom pattern %q: %w", c.id, err)
		}
		lib.add(&Pattern{
			ID:          c.id,
			Regex:       compiled,
			Category:    c.category,
			Severity:    pinSeverity(c.category, c.id, c.severity),
			Description: "custom pattern",
		})
	}

	return lib, nil
}

// MustNew is New for the builtin-only library, which cannot fail.
func MustNew(opts ...Option) *Library {
	lib, err := New(opts...)
	if err != nil {
		panic(err)
	}
	return lib
}

func knownCategory(c Category) bool {
	for _, known := range scanOrder {
		if c == known {
			return true
		}
	}
	return false
}

// compile applies the category's case-sensitivity policy before compiling.
func compile(category Category, expr string) (*regexp.Regexp, error) {
	if !caseSensitive[category] {
		expr = "(?i)" + expr
	}
	return regexp.Compile(expr)
}

// register compiles and adds a builtin pattern. Builtin expressions are
// maintained in this package, so compilation failure is a programmer error.
func (l *Library) register(category Category, id, expr string, severity Severity, description string) {
	compiled, err := compile(category, expr)
	if err != nil {
		panic(fmt.Sprintf("patterns: builtin %s/%s: %v", category, id, err))
	}
	l.add(&Pattern{
		ID:          id,
		Regex:       compiled,
		Category:    category,
		Severity:    pinSeverity(category, id, severity),
		Description: description,
	})
}

func (l *Library) add(p *Pattern) {
	l.byCategory[p.Category] = append(l.byCategory[p.Category], p)
	l.total++
}

// Scan runs every category against the text and returns all matches, not
// just the first. Output order is deterministic: category scan order, then
// pattern registration order, then match offset.
func (l *Library) Scan(text string) []Match {
	var matches []Match
	for _, cat := range scanOrder {
		for _, p := range l.byCategory[cat] {
			for _, loc := range p.Regex.FindAllStringIndex(text, -1) {
				matches = append(matches, Match{
					Category:  cat,
					PatternID: p.ID,
					Matched:   text[loc[0]:loc[1]],
					Start:     loc[0],
					End:       loc[1],
					Severity:  p.Severity,
				})
			}
		}
	}
	return matches
}

// ScanCategory runs a single category's patterns.
func (l *Library) ScanCategory(text string, cat Category) []Match {
	var matches []Match
	for _, p := range l.byCategory[cat] {
		for _, loc := range p.Regex.FindAllStringIndex(text, -1) {
			matches = append(matches, Match{
				Category:  cat,
				PatternID: p.ID,
				Matched:   text[loc[0]:loc[1]],
				Start:     loc[0],
				End:       loc[1],
				Severity:  p.Severity,
			})
		}
	}
	return matches
}

// HasThreats reports whether any pattern in any category matches.
func (l *Library) HasThreats(text string) bool {
	for _, cat := range scanOrder {
		for _, p := range l.byCategory[cat] {
			if p.Regex.MatchString(text) {
				return true
			}
		}
	}
	return false
}

// ThreatCategories returns the sorted set of categories with at least one
// match in the text.
func (l *Library) ThreatCategories(text string) []Category {
	seen := make(map[Category]bool)
	for _, m := range l.Scan(text) {
		seen[m.Category] = true
	}
	cats := make([]Category, 0, len(seen))
	for c := range seen {
		cats = append(cats, c)
	}
	sort.Slice(cats, func(i, j int) bool { return cats[i] < cats[j] })
	return cats
}

// TotalPatterns returns the number of compiled patterns.
func (l *Library) TotalPatterns() int { return l.total }

// CategoryCount returns the number of patterns in a category.
func (l *Library) CategoryCount(cat Category) int { return len(l.byCategory[cat]) }
