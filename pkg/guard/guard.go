// Package guard is the aggregation core: it orchestrates
// Normalize → RunDetectors → Aggregate → Decide for both traffic
// directions, applies obfuscation boosts and benign-context reductions,
// and enforces the block policy with its critical-category override.
package guard

import (
	"context"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sentinel-seed/sentinel/pkg/detect"
	"github.com/sentinel-seed/sentinel/pkg/gates"
	"github.com/sentinel-seed/sentinel/pkg/normalize"
	"github.com/sentinel-seed/sentinel/pkg/patterns"
)

// criticalCategories block unconditionally at confidence >= 0.5; these are
// never allowed through on an aggregate-confidence technicality.
var criticalCategories = map[string]bool{
	detect.CategoryInjection:      true,
	detect.CategoryJailbreak:      true,
	detect.CategoryHarmfulRequest: true,
}

const criticalConfidence = 0.5

// Input-side fusion favors the attack question; output-side favors the
// policy-failure question.
var defaultInputWeights = map[string]float64{
	"injection_patterns":       1.5,
	"jailbreak_patterns":       1.5,
	"extraction_patterns":      1.3,
	"pii_patterns":             0.8,
	"harmful_request_patterns": 1.0,
}

var defaultOutputWeights = map[string]float64{
	"leakage_check":         1.5,
	"deception_check":       1.2,
	"harmful_content_check": 1.5,
}

// Validator is the public surface of the pipeline. All validation methods
// are total: they always return a result, never an error or panic;
// internal failures surface only in per-detector metadata and counters.
type Validator struct {
	cfg        Config
	logger     *zap.Logger
	library    *patterns.Library
	normalizer *normalize.Normalizer
	detectors  *detect.Registry[detect.Component]
	checkers   *detect.Registry[detect.Component]
	gateEval   *gates.Evaluator
	history    *history
	stats      counters
}

// Option customizes a Validator.
type Option func(*options)

type options struct {
	logger  *zap.Logger
	library *patterns.Library
}

// WithLogger sets the validator's logger; the default is a nop.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithLibrary substitutes a custom pattern library, typically one built
// with patterns.WithCustom merges.
func WithLibrary(lib *patterns.Library) Option {
	return func(o *options) {
		if lib != nil {
			o.library = lib
		}
	}
}

// New builds a Validator with the default detector and checker sets
// registered. Additional components (semantic adapters, compliance
// checkers) are registered afterwards through Detectors() and Checkers().
func New(cfg Config, opts ...Option) *Validator {
	cfg = cfg.withDefaults()
	o := options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.library == nil {
		o.library = patterns.MustNew()
	}

	v := &Validator{
		cfg:        cfg,
		logger:     o.logger,
		library:    o.library,
		normalizer: normalize.New(normalize.WithRevealCheck(o.library.HasThreats)),
		detectors:  detect.NewRegistry[detect.Component](detect.WithLogger(o.logger)),
		checkers:   detect.NewRegistry[detect.Component](detect.WithLogger(o.logger)),
		gateEval:   gates.New(),
		history:    newHistory(cfg.HistorySize),
	}

	for _, d := range detect.InputDetectors(o.library) {
		_ = v.detectors.Register(d, weightOr(defaultInputWeights, d.Name(), 1.0), true)
	}
	for _, c := range detect.OutputCheckers(o.library) {
		_ = v.checkers.Register(c, weightOr(defaultOutputWeights, c.Name(), 1.0), true)
	}
	return v
}

func weightOr(weights map[string]float64, name string, fallback float64) float64 {
	if w, ok := weights[name]; ok {
		return w
	}
	return fallback
}

// Detectors exposes the input-side registry for runtime management.
func (v *Validator) Detectors() *detect.Registry[detect.Component] { return v.detectors }

// Checkers exposes the output-side registry for runtime management.
func (v *Validator) Checkers() *detect.Registry[detect.Component] { return v.checkers }

// Library exposes the pattern library backing Scan.
func (v *Validator) Library() *patterns.Library { return v.library }

// ValidateInput runs the full pipeline on user input. Optional history
// strings become evaluation context for escalation-style detectors.
func (v *Validator) ValidateInput(ctx context.Context, text string, history ...string) InputResult {
	start := time.Now()

	if text == "" {
		v.stats.record(DirectionInput, false, false, false, time.Since(start))
		return InputResult{Confidence: 0, Metadata: map[string]any{"empty_input": true}}
	}

	norm := v.normalizer.Normalize(text)
	if len(norm.NormalizedText) > v.cfg.MaxInputLength {
		res := InputResult{
			IsAttack:    true,
			AttackTypes: []string{detect.CategoryStructural},
			Confidence:  0.9,
			Blocked:     true,
			Violations:  []string{"input exceeds maximum length"},
			Metadata: map[string]any{
				"normalized_length": len(norm.NormalizedText),
				"max_input_length":  v.cfg.MaxInputLength,
			},
		}
		v.history.add(DirectionInput, text, res.AttackTypes, res.Confidence, true)
		v.stats.record(DirectionInput, true, true, norm.IsObfuscated, time.Since(start))
		return res
	}

	results := v.detectors.RunAll(ctx, norm.NormalizedText, evalContext(history))
	agg := v.aggregate(v.detectors, results, norm, text)
	blocked := v.decide(agg)

	res := InputResult{
		IsAttack:    len(agg.fired) > 0,
		AttackTypes: agg.categories,
		Results:     results,
		Confidence:  agg.confidence,
		Blocked:     blocked,
		Violations:  agg.violations,
		Metadata:    agg.metadata,
	}
	v.finish(DirectionInput, text, res.IsAttack, blocked, norm, agg, start)
	return res
}

// ValidateOutput runs the checker pipeline on model output. The optional
// input context lets checkers compare output against what was asked.
func (v *Validator) ValidateOutput(ctx context.Context, text string, inputContext ...string) OutputResult {
	start := time.Now()

	if text == "" {
		v.stats.record(DirectionOutput, false, false, false, time.Since(start))
		return OutputResult{Confidence: 0, Metadata: map[string]any{"empty_output": true}}
	}

	norm := v.normalizer.Normalize(text)
	if len(norm.NormalizedText) > v.cfg.MaxInputLength {
		res := OutputResult{
			SeedFailed:   true,
			FailureTypes: []string{detect.CategoryStructural},
			Confidence:   0.9,
			Blocked:      true,
			Violations:   []string{"output exceeds maximum length"},
			Metadata: map[string]any{
				"normalized_length": len(norm.NormalizedText),
				"max_input_length":  v.cfg.MaxInputLength,
			},
		}
		v.history.add(DirectionOutput, text, res.FailureTypes, res.Confidence, true)
		v.stats.record(DirectionOutput, true, true, norm.IsObfuscated, time.Since(start))
		return res
	}

	results := v.checkers.RunAll(ctx, norm.NormalizedText, evalContext(inputContext))
	agg := v.aggregate(v.checkers, results, norm, text)
	blocked := v.decide(agg)

	res := OutputResult{
		SeedFailed:   len(agg.fired) > 0,
		FailureTypes: agg.categories,
		Results:      results,
		Confidence:   agg.confidence,
		Blocked:      blocked,
		Violations:   agg.violations,
		Metadata:     agg.metadata,
	}
	v.finish(DirectionOutput, text, res.SeedFailed, blocked, norm, agg, start)
	return res
}

// Scan gives low-level access to the pattern library without aggregation.
func (v *Validator) Scan(text string) []patterns.Match {
	return v.library.Scan(text)
}

// EvaluateGates runs the THSP gate layer.
func (v *Validator) EvaluateGates(text string) gates.Result {
	return v.gateEval.Evaluate(text)
}

// History returns the violation records, newest first.
func (v *Validator) History() []ViolationRecord {
	return v.history.snapshot()
}

// Stats returns a snapshot of the running counters.
func (v *Validator) Stats() Stats { return v.stats.snapshot() }

// ResetStats zeroes the counters.
func (v *Validator) ResetStats() { v.stats.reset() }

// aggregation is the intermediate fusion state between RunAll and Decide.
type aggregation struct {
	confidence float64
	fired      []detect.DetectionResult
	categories []string
	violations []string
	metadata   map[string]any
}

// aggregate fuses per-detector results with the obfuscation evidence.
// Confidence is the weight-normalized sum over fired detectors; obfuscation
// found alongside a firing detector adds a tiered boost and forces the
// evasion category, while obfuscation alone surfaces as a halved,
// non-blocking signal. The benign-context reduction never applies when
// obfuscation was found: a hidden payload in an apparently academic
// question is itself suspicious.
func (v *Validator) aggregate(reg *detect.Registry[detect.Component], results []detect.DetectionResult, norm normalize.Result, originalText string) aggregation {
	agg := aggregation{metadata: make(map[string]any)}
	catSet := make(map[string]bool)

	var sum, weightSum float64
	for _, r := range results {
		if !r.Detected {
			continue
		}
		agg.fired = append(agg.fired, r)
		w, ok := reg.GetWeight(r.DetectorName)
		if !ok {
			w = 1.0
		}
		sum += r.Confidence * w
		weightSum += w
		catSet[r.Category] = true
		agg.violations = append(agg.violations, r.DetectorName+": "+r.Description)
	}

	if norm.IsObfuscated {
		agg.metadata["obfuscation_types"] = norm.Types()
		agg.metadata["obfuscation_risk"] = string(norm.RiskLevel)
	}

	switch {
	case len(agg.fired) == 0:
		if norm.RiskLevel == normalize.RiskHigh {
			agg.confidence = norm.Confidence * 0.5
			catSet[detect.CategoryEvasion] = true
			agg.metadata["obfuscation_signal"] = agg.confidence
			agg.violations = append(agg.violations, "high-risk obfuscation without detector corroboration")
		}
	default:
		if weightSum > 0 {
			agg.confidence = sum / weightSum
		}
		if norm.IsObfuscated {
			boost := obfuscationBoost(norm.RiskLevel)
			agg.confidence += boost
			catSet[detect.CategoryEvasion] = true
			agg.metadata["obfuscation_boost"] = boost
		} else if v.cfg.BenignContext && benignContext(originalText) {
			agg.confidence *= v.cfg.BenignReduction
			agg.metadata["benign_reduction"] = v.cfg.BenignReduction
		}
	}

	agg.confidence = detect.Clamp01(agg.confidence)
	agg.categories = sortedKeys(catSet)
	return agg
}

func obfuscationBoost(risk normalize.Risk) float64 {
	switch risk {
	case normalize.RiskHigh:
		return 0.15
	case normalize.RiskMedium:
		return 0.10
	case normalize.RiskLow:
		return 0.05
	default:
		return 0
	}
}

// decide applies the block policy: critical categories override the
// threshold; otherwise blocking needs the configured confidence and
// detector corroboration.
func (v *Validator) decide(agg aggregation) bool {
	for _, r := range agg.fired {
		if criticalCategories[r.Category] && r.Confidence >= criticalConfidence {
			return true
		}
	}
	return agg.confidence >= v.cfg.BlockThreshold && len(agg.fired) >= v.cfg.MinDetectors
}

func (v *Validator) finish(direction Direction, text string, detected, blocked bool, norm normalize.Result, agg aggregation, start time.Time) {
	if detected || blocked {
		v.history.add(direction, text, agg.categories, agg.confidence, blocked)
	}
	v.stats.record(direction, detected, blocked, norm.IsObfuscated, time.Since(start))
	v.logger.Debug("validation finished",
		zap.String("direction", string(direction)),
		zap.Bool("detected", detected),
		zap.Bool("blocked", blocked),
		zap.Float64("confidence", agg.confidence),
		zap.Strings("categories", agg.categories))
}

func evalContext(parts []string) detect.Context {
	if len(parts) == 0 {
		return nil
	}
	return detect.Context{"history": strings.Join(parts, "\n")}
}

func sortedKeys(set map[string]bool) []string {
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
