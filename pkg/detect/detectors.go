package detect

import (
	"context"
	"fmt"

	"github.com/sentinel-seed/sentinel/pkg/patterns"
)

// severityScore converts a pattern severity into a base confidence.
var severityScore = map[patterns.Severity]float64{
	patterns.SeverityLow:      0.4,
	patterns.SeverityMedium:   0.6,
	patterns.SeverityHigh:     0.8,
	patterns.SeverityCritical: 0.9,
}

// PatternDetector evaluates one pattern-library category and reports under a
// fixed result category.
type PatternDetector struct {
	name           string
	version        string
	lib            *patterns.Library
	scanCategory   patterns.Category
	resultCategory string
}

// NewPatternDetector wires a library category to a result category. The
// detector name is derived from the result category.
func NewPatternDetector(lib *patterns.Library, scan patterns.Category, result string) *PatternDetector {
	return &PatternDetector{
		name:           result + "_patterns",
		version:        "1.0",
		lib:            lib,
		scanCategory:   scan,
		resultCategory: result,
	}
}

func (d *PatternDetector) Name() string    { return d.name }
func (d *PatternDetector) Version() string { return d.version }

func (d *PatternDetector) Evaluate(_ context.Context, text string, _ Context) (DetectionResult, error) {
	matches := d.lib.ScanCategory(text, d.scanCategory)
	if len(matches) == 0 {
		return NewResult(d, false, 0, d.resultCategory, "no matches"), nil
	}
	return NewResult(d, true, matchConfidence(matches), d.resultCategory,
		fmt.Sprintf("%d %s pattern(s) matched", len(matches), d.scanCategory)).
		WithEvidence(matches[0].Matched).
		WithMetadata("pattern_ids", patternIDs(matches)), nil
}

// matchConfidence is the strongest match's severity score plus a small bump
// per corroborating match, capped below certainty.
func matchConfidence(matches []patterns.Match) float64 {
	best := 0.0
	for _, m := range matches {
		if s := severityScore[m.Severity]; s > best {
			best = s
		}
	}
	conf := best + 0.05*float64(len(matches)-1)
	if conf > 0.95 {
		conf = 0.95
	}
	return conf
}

func patternIDs(matches []patterns.Match) []string {
	ids := make([]string, 0, len(matches))
	for _, m := range matches {
		ids = append(ids, m.PatternID)
	}
	return ids
}

// InputDetectors builds the default input-side detector set over a shared
// library: injection, jailbreak, extraction, PII, and harmful-request.
func InputDetectors(lib *patterns.Library) []*PatternDetector {
	return []*PatternDetector{
		NewPatternDetector(lib, patterns.CategoryInjection, CategoryInjection),
		NewPatternDetector(lib, patterns.CategoryJailbreak, CategoryJailbreak),
		NewPatternDetector(lib, patterns.CategoryExtraction, CategoryExtraction),
		NewPatternDetector(lib, patterns.CategoryPII, CategoryPII),
		NewPatternDetector(lib, patterns.CategoryHarmful, CategoryHarmfulRequest),
	}
}
