package rules

import (
	"context"
	"fmt"

	"github.com/sentinel-seed/sentinel/pkg/detect"
)

var severityScore = map[Severity]float64{
	SeverityLow:      0.4,
	SeverityMedium:   0.6,
	SeverityHigh:     0.8,
	SeverityCritical: 0.9,
}

// Checker evaluates the compliance rules as a registry component, so rule
// violations flow through the same aggregation as every other check.
type Checker struct {
	registry *Registry
}

// NewChecker wraps a rules registry.
func NewChecker(registry *Registry) *Checker {
	return &Checker{registry: registry}
}

func (c *Checker) Name() string    { return "compliance_rules" }
func (c *Checker) Version() string { return "1.0" }

func (c *Checker) Evaluate(_ context.Context, text string, _ detect.Context) (detect.DetectionResult, error) {
	violations := c.registry.Check(text)
	if len(violations) == 0 {
		return detect.NewResult(c, false, 0, detect.CategoryCompliance, "no rule violations"), nil
	}

	best := 0.0
	ids := make([]string, 0, len(violations))
	for _, v := range violations {
		if s := severityScore[v.Rule.Severity]; s > best {
			best = s
		}
		ids = append(ids, v.Rule.ID)
	}
	conf := best + 0.05*float64(len(violations)-1)
	if conf > 0.95 {
		conf = 0.95
	}

	return detect.NewResult(c, true, conf, detect.CategoryCompliance,
		fmt.Sprintf("%d rule(s) violated", len(violations))).
		WithEvidence(violations[0].Rule.Description).
		WithMetadata("rule_ids", ids), nil
}
