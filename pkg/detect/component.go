// Package detect defines the component contract shared by all detectors and
// checkers, and the registry that owns them.
package detect

import "context"

// Context carries free-form evaluation context, such as multi-turn history
// for escalation-style detectors.
type Context map[string]any

// GetString returns a string-valued context entry, or "" when absent or of
// another type.
func (c Context) GetString(key string) string {
	if c == nil {
		return ""
	}
	s, _ := c[key].(string)
	return s
}

// Component is the contract every detector and checker implements. Evaluate
// must respect the context deadline and must not retain the text.
type Component interface {
	Name() string
	Version() string
	Evaluate(ctx context.Context, text string, meta Context) (DetectionResult, error)
}

// Category values used by detectors (attack types) and checkers (failure
// types). Detectors may emit categories outside this set; the aggregator's
// critical-set handling only keys on the constants below.
const (
	CategoryInjection      = "injection"
	CategoryJailbreak      = "jailbreak"
	CategoryExtraction     = "extraction"
	CategoryPII            = "pii"
	CategoryHarmfulRequest = "harmful_request"
	CategoryEvasion        = "evasion"
	CategoryStructural     = "structural"
	CategoryError          = "error"

	CategoryLeakage        = "leakage"
	CategoryDeception      = "deception"
	CategoryHarmfulContent = "harmful_content"
	CategoryCompliance     = "compliance"
)

// DetectionResult is the universal output of one component evaluation.
// Ephemeral: one per component per call.
type DetectionResult struct {
	Detected        bool           `json:"detected"`
	DetectorName    string         `json:"detector_name"`
	DetectorVersion string         `json:"detector_version"`
	Confidence      float64        `json:"confidence"`
	Category        string         `json:"category"`
	Description     string         `json:"description"`
	Evidence        string         `json:"evidence,omitempty"`
	Metadata        map[string]any `json:"metadata,omitempty"`
}

// NewResult builds a DetectionResult stamped with the component's identity.
// Confidence is clamped to [0,1]; a component computing an out-of-range
// value gets a usable result, not a rejection.
func NewResult(c Component, detected bool, confidence float64, category, description string) DetectionResult {
	return DetectionResult{
		Detected:        detected,
		DetectorName:    c.Name(),
		DetectorVersion: c.Version(),
		Confidence:      Clamp01(confidence),
		Category:        category,
		Description:     description,
	}
}

// WithEvidence attaches evidence text.
func (r DetectionResult) WithEvidence(evidence string) DetectionResult {
	r.Evidence = evidence
	return r
}

// WithMetadata attaches one metadata entry, copying the map so shared
// results stay immutable.
func (r DetectionResult) WithMetadata(key string, value any) DetectionResult {
	m := make(map[string]any, len(r.Metadata)+1)
	for k, v := range r.Metadata {
		m[k] = v
	}
	m[key] = value
	r.Metadata = m
	return r
}

// Clamp01 bounds a confidence value to [0,1].
func Clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
