// Package normalize canonicalizes text before detection: it reverses
// obfuscation techniques (encoded payloads, invisible and look-alike Unicode,
// character substitution slang, spacing and reversal tricks) and reports what
// it found.
//
// Design principles:
// - DETERMINISTIC: same input always yields the same Result
// - CONSERVATIVE: an undecodable candidate is never a finding; a missed
//   encoding is preferred over corrupted text reaching detectors
// - SIDE-EFFECT-FREE: a Normalizer holds only read-only tables
package normalize

import "strings"

// Type identifies an obfuscation technique family.
type Type string

const (
	TypeBase64        Type = "base64"
	TypeHex           Type = "hex"
	TypeROT13         Type = "rot13"
	TypeUnicodeTags   Type = "unicode_tags"
	TypeInvisible     Type = "invisible_chars"
	TypeUnicodeCompat Type = "unicode_compat"
	TypeHomoglyph     Type = "homoglyph"
	TypeLeetspeak     Type = "leetspeak"
	TypeSpacing       Type = "spacing"
	TypeReversal      Type = "reversal"
)

// encodingTypes are payload encodings. Hiding content behind an encoding is
// high-risk on its own, unlike a stray look-alike character.
var encodingTypes = map[Type]bool{
	TypeBase64:      true,
	TypeHex:         true,
	TypeROT13:       true,
	TypeUnicodeTags: true,
}

// Risk is the derived obfuscation risk level.
type Risk string

const (
	RiskNone   Risk = "none"
	RiskLow    Risk = "low"
	RiskMedium Risk = "medium"
	RiskHigh   Risk = "high"
)

// Finding records one reversed obfuscation.
type Finding struct {
	Type       Type    `json:"type"`
	Technique  string  `json:"technique"`
	Original   string  `json:"original"`
	Normalized string  `json:"normalized"`
	Confidence float64 `json:"confidence"`
	Offset     int     `json:"offset"`
}

// Result is the outcome of one Normalize call. NormalizedText carries the
// canonical text plus any decoded payloads; when IsObfuscated is false it is
// identical to OriginalText.
type Result struct {
	OriginalText   string    `json:"original_text"`
	NormalizedText string    `json:"normalized_text"`
	IsObfuscated   bool      `json:"is_obfuscated"`
	Findings       []Finding `json:"findings,omitempty"`
	Confidence     float64   `json:"confidence"`
	RiskLevel      Risk      `json:"risk_level"`
}

// Types returns the distinct obfuscation types present, in finding order.
func (r Result) Types() []Type {
	seen := make(map[Type]bool, len(r.Findings))
	var types []Type
	for _, f := range r.Findings {
		if !seen[f.Type] {
			seen[f.Type] = true
			types = append(types, f.Type)
		}
	}
	return types
}

// RevealCheck reports whether a candidate decode exposes threat content.
// Aggressive transforms (leetspeak, reversal, despacing) only count as
// obfuscation when they reveal something the raw text did not show; without
// this gate "Turn 1: attack" would be flagged because '1' lowers to 'i'.
type RevealCheck func(string) bool

// Option customizes a Normalizer.
type Option func(*Normalizer)

// WithRevealCheck replaces the builtin keyword heuristic, typically with a
// pattern library's HasThreats.
func WithRevealCheck(fn RevealCheck) Option {
	return func(n *Normalizer) {
		if fn != nil {
			n.reveals = fn
		}
	}
}

// Normalizer reverses obfuscation. Safe for concurrent use.
type Normalizer struct {
	reveals RevealCheck
}

// New builds a Normalizer.
func New(opts ...Option) *Normalizer {
	n := &Normalizer{reveals: defaultRevealCheck}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Normalize canonicalizes text and reports every obfuscation it reversed.
func (n *Normalizer) Normalize(text string) Result {
	res := Result{
		OriginalText:   text,
		NormalizedText: text,
		RiskLevel:      RiskNone,
	}
	if text == "" {
		return res
	}

	current := text

	// In-place transforms, applied in priority order. Each rewrites the
	// working text so later stages see the cleaned form.
	for _, t := range transforms {
		out := t.fn(n, current)
		if out == "" || out == current {
			continue
		}
		res.Findings = append(res.Findings, Finding{
			Type:       t.typ,
			Technique:  t.technique,
			Original:   snippet(current),
			Normalized: snippet(out),
			Confidence: t.confidence,
		})
		current = out
	}

	// Payload decoders extract embedded encodings without rewriting the
	// carrier text; decoded segments are appended so detectors scan them.
	var decodedSegments []string
	for _, d := range payloadDecoders {
		for _, seg := range d.fn(current) {
			res.Findings = append(res.Findings, Finding{
				Type:       d.typ,
				Technique:  d.technique,
				Original:   snippet(seg.original),
				Normalized: snippet(seg.decoded),
				Confidence: d.confidence,
				Offset:     seg.offset,
			})
			decodedSegments = append(decodedSegments, seg.decoded)
		}
	}

	if len(res.Findings) == 0 {
		return res
	}

	res.IsObfuscated = true
	res.NormalizedText = current
	if len(decodedSegments) > 0 {
		res.NormalizedText = current + " " + strings.Join(decodedSegments, " ")
	}
	res.Confidence = overallConfidence(res.Findings)
	res.RiskLevel = deriveRisk(res)
	return res
}

// overallConfidence is the best finding confidence with a small bump per
// additional distinct technique, capped below certainty.
func overallConfidence(findings []Finding) float64 {
	best := 0.0
	seen := make(map[Type]bool)
	for _, f := range findings {
		if f.Confidence > best {
			best = f.Confidence
		}
		seen[f.Type] = true
	}
	conf := best + 0.05*float64(len(seen)-1)
	if conf > 0.95 {
		conf = 0.95
	}
	return conf
}

// deriveRisk: combining techniques is deliberate evasion, so more than one
// distinct type is always high. A payload encoding is high on its own;
// anything else scales with confidence.
func deriveRisk(res Result) Risk {
	types := res.Types()
	if len(types) > 1 {
		return RiskHigh
	}
	if len(types) == 1 && encodingTypes[types[0]] {
		return RiskHigh
	}
	switch {
	case res.Confidence >= 0.8:
		return RiskMedium
	case res.Confidence > 0:
		return RiskLow
	default:
		return RiskNone
	}
}

const maxSnippet = 120

func snippet(s string) string {
	if len(s) <= maxSnippet {
		return s
	}
	runes := []rune(s)
	if len(runes) > maxSnippet {
		runes = runes[:maxSnippet]
	}
	return string(runes)
}
