// Package normalize implements the TextNormalizer component (spec
// §4.1): language-neutral, deterministic primitives that every other
// component depends on. All functions here are pure and side-effect
// free; callers may memoize by input as noted in spec §4.1.
package normalize

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Stopwords are pt-BR function words and common unit tokens excluded
// from Keywords (spec §4.1).
var Stopwords = map[string]bool{
	"DE": true, "DO": true, "DA": true, "EM": true, "PARA": true,
	"COM": true, "E": true, "A": true, "O": true, "AS": true, "OS": true,
	"UN": true, "M2": true, "M3": true, "ML": true, "M": true, "VB": true,
	"KG": true, "INCLUSIVE": true, "INCLUSIV": true, "TIPO": true,
	"MODELO": true, "TRACO": true,
}

var (
	nonWordRe      = regexp.MustCompile(`[^\w\s]`)
	digitIRe       = regexp.MustCompile(`(\d)[Il]`)
	iDigitRe       = regexp.MustCompile(`[Il](\d)`)
	digitORe       = regexp.MustCompile(`(\d)[Oo]`)
	oDigitRe       = regexp.MustCompile(`[Oo](\d)`)
	leadingCodeRe  = regexp.MustCompile(`^\d+(\.\d+)*\s*[-–—]?\s*`)
	vowelRe        = regexp.MustCompile(`(?i)[aeiouáéíóúâêîôûãõ]`)
	letterRe       = regexp.MustCompile(`\p{L}`)
	nonLetterRunRe = regexp.MustCompile(`[^\p{L}\p{N}\s]{4,}`)
)

var diacriticsTransform = transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// stripDiacritics removes combining accents via NFKD decomposition,
// the way Python's unicodedata.normalize("NFKD", ...) strip does.
func stripDiacritics(s string) string {
	out, _, err := transform.String(diacriticsTransform, s)
	if err != nil {
		return s
	}
	return out
}

// Description normalizes a description for comparison: strips
// diacritics, uppercases, collapses whitespace, folds punctuation to
// space, and repairs common OCR digit confusions (an I or l next to a
// digit → 1; an O next to a digit → 0, on either side of the digit).
func Description(desc string) string {
	if desc == "" {
		return ""
	}
	text := strings.ToUpper(stripDiacritics(desc))
	text = strings.NewReplacer(";", ",", ":", ",").Replace(text)
	text = nonWordRe.ReplaceAllString(text, " ")
	text = digitIRe.ReplaceAllString(text, "${1}1")
	text = iDigitRe.ReplaceAllString(text, "1${1}")
	text = digitORe.ReplaceAllString(text, "${1}0")
	text = oDigitRe.ReplaceAllString(text, "0${1}")
	return strings.Join(strings.Fields(text), " ")
}

// Unit normalizes a unit token: uppercase, strip whitespace, fold
// superscripts (²→2, ³→3, M^2→M2, M^3→M3).
func Unit(u string) string {
	if u == "" {
		return ""
	}
	s := strings.ToUpper(strings.TrimSpace(u))
	s = strings.NewReplacer(
		"²", "2", "³", "3",
		"M^2", "M2", "M^3", "M3",
	).Replace(s)
	return strings.ReplaceAll(s, " ", "")
}

// Header normalizes a table header cell the same way as Description.
func Header(value string) string {
	return Description(value)
}

// ForMatch normalizes a description for item-line matching, stripping
// any leading item code (spec §4.4 candidate scoring).
func ForMatch(desc string) string {
	if desc == "" {
		return ""
	}
	cleaned := leadingCodeRe.ReplaceAllString(desc, "")
	return Description(cleaned)
}

// Keywords extracts the normalized, non-stopword tokens of desc.
func Keywords(desc string) map[string]bool {
	normalized := Description(desc)
	if normalized == "" {
		return map[string]bool{}
	}
	out := make(map[string]bool)
	for _, w := range strings.Fields(normalized) {
		if !Stopwords[w] {
			out[w] = true
		}
	}
	return out
}

// Jaccard computes the Jaccard similarity of extract_keywords(a) and
// extract_keywords(b), returning 0 if either side is empty (spec
// §4.1's similarity convention — overrides the original source's
// intersection/max formula per the specification).
func Jaccard(a, b string) float64 {
	ka, kb := Keywords(a), Keywords(b)
	if len(ka) == 0 || len(kb) == 0 {
		return 0
	}
	inter := 0
	for k := range ka {
		if kb[k] {
			inter++
		}
	}
	union := len(ka) + len(kb) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

// IsCorrupted is a heuristic OCR-garbage detector: low vowel ratio or
// a run of four or more symbols that are neither letters, digits nor
// whitespace (spec §4.1).
func IsCorrupted(s string) bool {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return false
	}
	if nonLetterRunRe.MatchString(trimmed) {
		return true
	}
	letters := letterRe.FindAllString(trimmed, -1)
	if len(letters) < 4 {
		return false
	}
	vowels := vowelRe.FindAllString(trimmed, -1)
	ratio := float64(len(vowels)) / float64(len(letters))
	return ratio < 0.15
}
