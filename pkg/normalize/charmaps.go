package normalize

// homoglyphs maps Cyrillic, Greek, and IPA look-alikes to their Latin
// equivalents. Fullwidth and mathematical alphanumerics are handled by NFKC
// and are not duplicated here.
var homoglyphs = map[rune]rune{
	// Cyrillic lowercase
	'а': 'a', 'е': 'e', 'і': 'i', 'о': 'o', 'р': 'p', 'с': 'c', 'у': 'y', 'х': 'x',
	// Cyrillic uppercase
	'А': 'A', 'В': 'B', 'С': 'C', 'Е': 'E', 'Н': 'H', 'І': 'I', 'К': 'K',
	'М': 'M', 'О': 'O', 'Р': 'P', 'Т': 'T', 'Х': 'X',
	// Greek
	'α': 'a', 'β': 'b', 'ε': 'e', 'η': 'n', 'ι': 'i', 'κ': 'k', 'ν': 'v',
	'ο': 'o', 'ρ': 'p', 'τ': 't', 'υ': 'u', 'χ': 'x',
	// IPA
	'ɑ': 'a', 'ɡ': 'g', 'ɩ': 'i', 'ɪ': 'i',
	// Misc symbols
	'ℓ': 'l',
}

// leetspeak maps common digit and symbol substitutions back to letters.
var leetspeak = map[rune]rune{
	'0': 'o', '1': 'i', '3': 'e', '4': 'a', '5': 's', '7': 't', '8': 'b', '9': 'g',
	'@': 'a', '$': 's', '!': 'i', '+': 't', '|': 'i',
}
