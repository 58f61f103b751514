// Package unit normalizes and validates unit-of-measure tokens
// against the canonical vocabulary in spec §6.
package unit

import "strings"

// Vocabulary is the canonical unit set (spec §6).
var Vocabulary = map[string]bool{
	"M": true, "M2": true, "M3": true, "ML": true, "KM": true,
	"UN": true, "PC": true, "KG": true, "T": true, "L": true,
	"CJ": true, "PAR": true, "JG": true, "VB": true, "GL": true,
	"H": true, "DIA": true, "MES": true, "SC": true, "CX": true,
	"PT": true, "FX": true,
}

var superscriptReplacer = strings.NewReplacer(
	"²", "2", "³", "3",
	"M^2", "M2", "M^3", "M3",
	"M²", "M2", "M³", "M3",
)

// Normalize uppercases, strips whitespace, and folds superscripted
// exponents (²→2, ³→3, M^2→M2, M^3→M3) per spec §4.1.
func Normalize(raw string) string {
	if raw == "" {
		return ""
	}
	s := strings.ToUpper(strings.TrimSpace(raw))
	s = superscriptReplacer.Replace(s)
	s = strings.ReplaceAll(s, " ", "")
	return s
}

// Valid reports whether a normalized unit belongs to Vocabulary.
func Valid(normalized string) bool {
	return Vocabulary[normalized]
}
