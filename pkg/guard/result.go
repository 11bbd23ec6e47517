package guard

import "github.com/sentinel-seed/sentinel/pkg/detect"

// InputResult is the validator's final decision for one input. Constructed
// once per call and never mutated afterward.
type InputResult struct {
	IsAttack    bool                     `json:"is_attack"`
	AttackTypes []string                 `json:"attack_types,omitempty"`
	Results     []detect.DetectionResult `json:"results,omitempty"`
	Confidence  float64                  `json:"confidence"`
	Blocked     bool                     `json:"blocked"`
	Violations  []string                 `json:"violations,omitempty"`
	Metadata    map[string]any           `json:"metadata,omitempty"`
}

// OutputResult is the validator's final decision for one output. The
// primary boolean answers "did the policy fail?" rather than "is this an
// attack?".
type OutputResult struct {
	SeedFailed   bool                     `json:"seed_failed"`
	FailureTypes []string                 `json:"failure_types,omitempty"`
	Results      []detect.DetectionResult `json:"results,omitempty"`
	Confidence   float64                  `json:"confidence"`
	Blocked      bool                     `json:"blocked"`
	Violations   []string                 `json:"violations,omitempty"`
	Metadata     map[string]any           `json:"metadata,omitempty"`
}
