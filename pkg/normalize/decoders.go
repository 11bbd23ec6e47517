package normalize

import (
	"encoding/base64"
	"encoding/hex"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"
)

// Compiled once; decoders run on every validation call.
var (
	reBase64     = regexp.MustCompile(`[A-Za-z0-9+/]{16,}={0,2}`)
	reHexEscaped = regexp.MustCompile(`(?:\\x[0-9a-fA-F]{2}){4,}`)
	rePureHex    = regexp.MustCompile(`\b[0-9a-fA-F]{16,}\b`)
	reSpacedRun  = regexp.MustCompile(`(?:[A-Za-z][ \-_.*/+]){5,}[A-Za-z]`)
	reSeparators = regexp.MustCompile(`[ \-_.*/+]`)
)

// transform is an in-place canonicalization step. fn returns the rewritten
// text, or "" / the input unchanged when not applicable.
type transform struct {
	typ        Type
	technique  string
	confidence float64
	fn         func(*Normalizer, string) string
}

// transforms run in priority order. Tag decoding precedes invisible
// stripping: tag characters are Cf runes and would otherwise be discarded
// together with their hidden payload.
var transforms = []transform{
	{TypeUnicodeTags, "unicode_tag_characters", 0.95, (*Normalizer).decodeUnicodeTags},
	{TypeInvisible, "invisible_characters", 0.7, (*Normalizer).stripInvisibles},
	{TypeUnicodeCompat, "compatibility_normalization", 0.6, (*Normalizer).foldCompat},
	{TypeHomoglyph, "homoglyph_substitution", 0.8, (*Normalizer).mapHomoglyphs},
	{TypeLeetspeak, "character_substitution", 0.75, (*Normalizer).decodeLeetspeak},
	{TypeSpacing, "character_spacing", 0.7, (*Normalizer).collapseSpacing},
	{TypeReversal, "reversed_text", 0.8, (*Normalizer).decodeReversal},
}

// segment is one extracted payload decode.
type segment struct {
	original string
	decoded  string
	offset   int
}

// payloadDecoder extracts embedded encodings without rewriting the carrier.
type payloadDecoder struct {
	typ        Type
	technique  string
	confidence float64
	fn         func(string) []segment
}

var payloadDecoders = []payloadDecoder{
	{TypeBase64, "base64_payload", 0.9, decodeBase64Segments},
	{TypeHex, "hex_payload", 0.9, decodeHexSegments},
	{TypeROT13, "rot13_payload", 0.85, decodeROT13},
}

// --- in-place transforms ---

// decodeUnicodeTags rewrites Unicode tag characters (U+E0000 block) into the
// ASCII they smuggle, leaving the visible text intact.
func (n *Normalizer) decodeUnicodeTags(text string) string {
	found := false
	out := strings.Map(func(r rune) rune {
		if r >= 0xE0000 && r <= 0xE007F {
			v := r - 0xE0000
			if v > 0 && v < 128 {
				found = true
				return v
			}
			return -1
		}
		return r
	}, text)
	if !found {
		return ""
	}
	return out
}

// stripInvisibles drops format-class runes and variation selectors.
func (n *Normalizer) stripInvisibles(text string) string {
	stripped := strings.Map(func(r rune) rune {
		if unicode.Is(unicode.Cf, r) || r == 0xFE0E || r == 0xFE0F {
			return -1
		}
		return r
	}, text)
	if stripped == text {
		return ""
	}
	return stripped
}

// foldCompat collapses fullwidth forms and mathematical alphanumerics to
// their plain equivalents.
func (n *Normalizer) foldCompat(text string) string {
	folded := norm.NFKC.String(width.Fold.String(text))
	if folded == text {
		return ""
	}
	return folded
}

// mapHomoglyphs rewrites Cyrillic/Greek/IPA look-alikes to Latin.
func (n *Normalizer) mapHomoglyphs(text string) string {
	mapped := strings.Map(func(r rune) rune {
		if latin, ok := homoglyphs[r]; ok {
			return latin
		}
		return r
	}, text)
	if mapped == text {
		return ""
	}
	return mapped
}

// decodeLeetspeak applies the substitution map, but only counts when the
// rewritten text reveals threat content the raw text did not.
func (n *Normalizer) decodeLeetspeak(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	changed := false
	for _, r := range text {
		if sub, ok := leetspeak[unicode.ToLower(r)]; ok {
			if unicode.IsUpper(r) {
				sub = unicode.ToUpper(sub)
			}
			b.WriteRune(sub)
			changed = true
			continue
		}
		b.WriteRune(r)
	}
	if !changed {
		return ""
	}
	decoded := b.String()
	if n.reveals(decoded) && !n.reveals(text) {
		return decoded
	}
	return ""
}

// collapseSpacing joins single-character runs like "i g n o r e" or
// "s-y-s-t-e-m". Gated the same way as leetspeak.
func (n *Normalizer) collapseSpacing(text string) string {
	if !reSpacedRun.MatchString(text) {
		return ""
	}
	collapsed := reSpacedRun.ReplaceAllStringFunc(text, func(run string) string {
		return reSeparators.ReplaceAllString(run, "")
	})
	if collapsed == text {
		return ""
	}
	if n.reveals(collapsed) && !n.reveals(text) {
		return collapsed
	}
	return ""
}

// decodeReversal checks whether the mirrored text is the real message.
func (n *Normalizer) decodeReversal(text string) string {
	runes := []rune(text)
	for i, j := 0, len(runes)-1; i < j; i, j = i+1, j-1 {
		runes[i], runes[j] = runes[j], runes[i]
	}
	reversed := string(runes)
	if reversed == text {
		return ""
	}
	if n.reveals(reversed) && !n.reveals(text) {
		return reversed
	}
	return ""
}

// --- payload decoders ---

func decodeBase64Segments(text string) []segment {
	var segs []segment
	for _, loc := range reBase64.FindAllStringIndex(text, -1) {
		match := text[loc[0]:loc[1]]
		decoded, err := base64.StdEncoding.DecodeString(match)
		if err != nil {
			decoded, err = base64.RawStdEncoding.DecodeString(match)
		}
		if err != nil {
			continue
		}
		s := string(decoded)
		if len(s) > 3 && isPlausibleText(s) {
			segs = append(segs, segment{original: match, decoded: s, offset: loc[0]})
		}
	}
	return segs
}

func decodeHexSegments(text string) []segment {
	var segs []segment

	for _, loc := range reHexEscaped.FindAllStringIndex(text, -1) {
		match := text[loc[0]:loc[1]]
		decoded, err := hex.DecodeString(strings.ReplaceAll(match, `\x`, ""))
		if err != nil {
			continue
		}
		if s := string(decoded); isPlausibleText(s) {
			segs = append(segs, segment{original: match, decoded: s, offset: loc[0]})
		}
	}

	for _, loc := range rePureHex.FindAllStringIndex(text, -1) {
		match := text[loc[0]:loc[1]]
		if len(match)%2 != 0 {
			continue
		}
		decoded, err := hex.DecodeString(match)
		if err != nil {
			continue
		}
		if s := string(decoded); isPlausibleText(s) {
			segs = append(segs, segment{original: match, decoded: s, offset: loc[0]})
		}
	}

	return segs
}

// rot13Markers are common threat words under rotation; decoding everything
// would turn ordinary prose into noise, so only rotate when one is present.
var rot13Markers = []string{"vtaber", "cerivbhf", "flfgrz", "cebzcg", "vafgehpgvbaf"}

func decodeROT13(text string) []segment {
	lower := strings.ToLower(text)
	for _, marker := range rot13Markers {
		if strings.Contains(lower, marker) {
			return []segment{{original: text, decoded: rot13(text), offset: 0}}
		}
	}
	return nil
}

func rot13(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'A' && r <= 'Z':
			return 'A' + (r-'A'+13)%26
		case r >= 'a' && r <= 'z':
			return 'a' + (r-'a'+13)%26
		}
		return r
	}, s)
}

// isPlausibleText guards decodes: a candidate only counts when the decoded
// bytes read as text. Invalid UTF-8, replacement characters, and
// non-printables all mean the match was incidental.
func isPlausibleText(s string) bool {
	if s == "" || !utf8.ValidString(s) {
		return false
	}
	letters := 0
	total := 0
	for _, r := range s {
		if r == unicode.ReplacementChar {
			return false
		}
		if !unicode.IsPrint(r) && !unicode.IsSpace(r) {
			return false
		}
		if unicode.IsLetter(r) || unicode.IsSpace(r) {
			letters++
		}
		total++
	}
	return total > 0 && float64(letters)/float64(total) >= 0.6
}

// defaultRevealCheck is the builtin heuristic behind the reveal gate: an
// override verb next to an instruction noun, or a known extraction/jailbreak
// phrase.
func defaultRevealCheck(text string) bool {
	lower := strings.ToLower(text)

	overrides := []string{"ignore", "disregard", "forget", "override", "bypass"}
	subjects := []string{"instruction", "previous", "prior", "system", "prompt", "rule"}
	hasOverride, hasSubject := false, false
	for _, w := range overrides {
		if strings.Contains(lower, w) {
			hasOverride = true
			break
		}
	}
	for _, w := range subjects {
		if strings.Contains(lower, w) {
			hasSubject = true
			break
		}
	}
	if hasOverride && hasSubject {
		return true
	}

	phrases := []string{
		"system prompt", "reveal your", "you are now", "developer mode",
		"jailbreak", "do anything now", "no restrictions", "uncensored",
	}
	for _, p := range phrases {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}
