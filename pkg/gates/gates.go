// Package gates implements the THSP policy layer: four independent gates
// (Truth, Harm, Scope, Purpose) evaluated over text, combined with an
// all-pass rule. The gates encode a fixed safety policy; tunable attack
// detection lives in the aggregator, and a consuming system may require
// both.
package gates

import (
	"regexp"
	"sort"
)

// Gate names the four checks.
type Gate string

const (
	GateTruth   Gate = "truth"
	GateHarm    Gate = "harm"
	GateScope   Gate = "scope"
	GatePurpose Gate = "purpose"
)

// gateOrder fixes evaluation and reporting order.
var gateOrder = []Gate{GateTruth, GateHarm, GateScope, GatePurpose}

// Result is one evaluation. Passed is true only when every gate passes;
// Violations is the union across failing gates.
type Result struct {
	Passed     bool          `json:"passed"`
	Gates      map[Gate]bool `json:"gates"`
	Violations []string      `json:"violations,omitempty"`
}

type gateCheck struct {
	re        *regexp.Regexp
	violation string
}

// Evaluator holds the compiled gate checks. Immutable after construction
// and safe for concurrent use.
type Evaluator struct {
	checks map[Gate][]gateCheck
}

// New builds the evaluator with the builtin gate checks.
func New() *Evaluator {
	e := &Evaluator{checks: make(map[Gate][]gateCheck, len(gateOrder))}

	// Truth: deception and identity manipulation.
	e.add(GateTruth, `pretend\s+(?:to\s+be|you\s+are)\s+(?:a\s+)?human`, "instructs impersonation of a human")
	e.add(GateTruth, `(?:claim|say|tell\s+them)\s+(?:that\s+)?you\s+are\s+not\s+an?\s+(?:ai|bot|model)`, "instructs denial of AI identity")
	e.add(GateTruth, `(?:spread|generate|write)\s+(?:dis|mis)information`, "requests disinformation")
	e.add(GateTruth, `(?:fake|fabricate|invent)\s+(?:evidence|statistics|quotes|sources)`, "requests fabricated evidence")
	e.add(GateTruth, `lie\s+(?:to|about)`, "instructs lying")

	// Harm: content enabling physical, digital, or psychological harm.
	e.add(GateHarm, `(?:make|build|construct|synthesi[sz]e)\s+(?:a\s+)?(?:bomb|explosive|weapon|nerve\s+agent|poison)`, "enables physical harm")
	e.add(GateHarm, `(?:write|create|generate)\s+(?:a\s+)?(?:malware|ransomware|virus|keylogger|exploit)`, "enables digital harm")
	e.add(GateHarm, `(?:kill|hurt|harm)\s+(?:myself|yourself|someone|people)`, "enables violence or self-harm")
	e.add(GateHarm, `(?:harass|threaten|intimidate|blackmail)\b`, "enables psychological harm")
	e.add(GateHarm, `(?:steal|exfiltrate)\s+(?:credentials?|passwords?|data)`, "enables theft")

	// Scope: boundary violation, instruction override, restricted extraction.
	e.add(GateScope, `ignore\s+(?:all\s+)?(?:previous|prior|your)\s+(?:instructions?|rules?|directives?)`, "attempts instruction override")
	e.add(GateScope, `(?:reveal|show|output|print)\s+(?:your|the)\s+system\s+(?:prompt|message|instructions?)`, "attempts restricted extraction")
	e.add(GateScope, `(?:disable|bypass|remove)\s+(?:your\s+)?(?:safety|security|content)\s+(?:filters?|checks?|measures?)`, "attempts safety bypass")
	e.add(GateScope, `act\s+(?:outside|beyond)\s+your\s+(?:role|scope|boundaries)`, "requests out-of-scope action")

	// Purpose: absence of legitimate benefit.
	e.add(GatePurpose, `(?:just|only)\s+(?:because|for\s+fun|to\s+see\s+if)\s+you\s+(?:can|will)\s+break`, "no legitimate purpose")
	e.add(GatePurpose, `(?:waste|burn)\s+(?:your\s+)?(?:tokens|compute|resources)`, "resource abuse")
	e.add(GatePurpose, `(?:spam|flood)\s+(?:the|this|a)\b`, "requests spam generation")

	return e
}

func (e *Evaluator) add(g Gate, expr, violation string) {
	e.checks[g] = append(e.checks[g], gateCheck{
		re:        regexp.MustCompile(`(?i)` + expr),
		violation: violation,
	})
}

// Evaluate runs all four gates. Each gate is independent; overall pass
// requires all four.
func (e *Evaluator) Evaluate(text string) Result {
	res := Result{
		Passed: true,
		Gates:  make(map[Gate]bool, len(gateOrder)),
	}

	seen := make(map[string]bool)
	for _, g := range gateOrder {
		pass := true
		for _, check := range e.checks[g] {
			if check.re.MatchString(text) {
				pass = false
				if !seen[check.violation] {
					seen[check.violation] = true
					res.Violations = append(res.Violations, check.violation)
				}
			}
		}
		res.Gates[g] = pass
		if !pass {
			res.Passed = false
		}
	}

	sort.Strings(res.Violations)
	return res
}

// EvaluateGate runs a single gate.
func (e *Evaluator) EvaluateGate(text string, g Gate) (bool, []string) {
	var violations []string
	for _, check := range e.checks[g] {
		if check.re.MatchString(text) {
			violations = append(violations, check.violation)
		}
	}
	return len(violations) == 0, violations
}
