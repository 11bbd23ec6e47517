package guard

import "regexp"

// The benign-context heuristic recognizes technical or academic use of
// otherwise-flagged vocabulary ("kill -9", "drop the table"). It requires
// both an explanatory framing and a technical subject; either alone is not
// enough to discount a hit.
var (
	reExplanatory = regexp.MustCompile(`(?i)\b(?:explain|describe|understand|what\s+(?:is|does|happens)|how\s+(?:does|do|to\s+use)|why\s+(?:does|is)|difference\s+between|documentation|tutorial|homework|for\s+(?:a|my)\s+(?:class|course|paper|thesis))\b`)

	reTechnical = regexp.MustCompile(`(?i)\b(?:process|command|terminal|shell|signal|server|kernel|linux|unix|posix|syntax|function|variable|compiler?|debugger?|query|database|sql|git|docker|kubernetes|thread|daemon|syscall|regex)\b`)
)

func benignContext(text string) bool {
	return reExplanatory.MatchString(text) && reTechnical.MatchString(text)
}
