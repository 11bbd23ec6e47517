package detect

import (
	"context"
	"fmt"
	"regexp"

	"github.com/sentinel-seed/sentinel/pkg/patterns"
)

// Output-side checkers answer a different question than the input detectors:
// not "is this an attack?" but "did the policy fail?". They run against
// model output, optionally with the originating input in the evaluation
// context under "input".

// Compiled once at package init.
var (
	reLeakMarkers = regexp.MustCompile(`(?i)(?:my\s+(?:system\s+prompt|instructions?)\s+(?:is|are|say)|here\s+(?:is|are)\s+my\s+(?:system\s+prompt|instructions?)|i\s+was\s+(?:told|instructed)\s+to)`)

	reDeception = regexp.MustCompile(`(?i)(?:i\s+am\s+(?:a\s+real\s+)?human|i\s+am\s+not\s+an?\s+(?:ai|bot|language\s+model|assistant)|i\s+have\s+(?:feelings|consciousness|a\s+body)|(?:100%|completely|absolutely)\s+guaranteed\s+(?:returns?|profit))`)
)

// LeakageChecker flags output that discloses the system prompt or carries
// identifier-shaped PII.
type LeakageChecker struct {
	lib *patterns.Library
}

func NewLeakageChecker(lib *patterns.Library) *LeakageChecker {
	return &LeakageChecker{lib: lib}
}

func (c *LeakageChecker) Name() string    { return "leakage_check" }
func (c *LeakageChecker) Version() string { return "1.0" }

func (c *LeakageChecker) Evaluate(_ context.Context, text string, _ Context) (DetectionResult, error) {
	if loc := reLeakMarkers.FindString(text); loc != "" {
		return NewResult(c, true, 0.85, CategoryLeakage, "output discloses internal instructions").
			WithEvidence(loc), nil
	}
	if matches := c.lib.ScanCategory(text, patterns.CategoryPII); len(matches) > 0 {
		return NewResult(c, true, matchConfidence(matches), CategoryLeakage,
			fmt.Sprintf("%d PII pattern(s) in output", len(matches))).
			WithEvidence(matches[0].Matched).
			WithMetadata("pattern_ids", patternIDs(matches)), nil
	}
	return NewResult(c, false, 0, CategoryLeakage, "no leakage"), nil
}

// DeceptionChecker flags output making false-identity or too-good-to-be-true
// claims.
type DeceptionChecker struct{}

func NewDeceptionChecker() *DeceptionChecker { return &DeceptionChecker{} }

func (c *DeceptionChecker) Name() string    { return "deception_check" }
func (c *DeceptionChecker) Version() string { return "1.0" }

func (c *DeceptionChecker) Evaluate(_ context.Context, text string, _ Context) (DetectionResult, error) {
	if hit := reDeception.FindString(text); hit != "" {
		return NewResult(c, true, 0.75, CategoryDeception, "deceptive identity or guarantee claim").
			WithEvidence(hit), nil
	}
	return NewResult(c, false, 0, CategoryDeception, "no deception markers"), nil
}

// HarmfulContentChecker flags harmful material in the output itself.
type HarmfulContentChecker struct {
	lib *patterns.Library
}

func NewHarmfulContentChecker(lib *patterns.Library) *HarmfulContentChecker {
	return &HarmfulContentChecker{lib: lib}
}

func (c *HarmfulContentChecker) Name() string    { return "harmful_content_check" }
func (c *HarmfulContentChecker) Version() string { return "1.0" }

func (c *HarmfulContentChecker) Evaluate(_ context.Context, text string, _ Context) (DetectionResult, error) {
	matches := c.lib.ScanCategory(text, patterns.CategoryHarmful)
	if len(matches) == 0 {
		return NewResult(c, false, 0, CategoryHarmfulContent, "no matches"), nil
	}
	return NewResult(c, true, matchConfidence(matches), CategoryHarmfulContent,
		fmt.Sprintf("%d harmful-content pattern(s) matched", len(matches))).
		WithEvidence(matches[0].Matched).
		WithMetadata("pattern_ids", patternIDs(matches)), nil
}

// OutputCheckers builds the default output-side checker set.
func OutputCheckers(lib *patterns.Library) []Component {
	return []Component{
		NewLeakageChecker(lib),
		NewDeceptionChecker(),
		NewHarmfulContentChecker(lib),
	}
}
