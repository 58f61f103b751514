// Package code implements the hierarchical item-code grammar used to
// identify service line items in a technical-capacity attestation:
//
//	code        := (restart_prefix '-')? number ('.' number){1,3} ('-' suffix)?
//	restart_prefix := 'S' [1-9][0-9]*          ; segment prefix
//	              |  'AD' [0-9]*               ; legacy addendum prefix
//	number      := [0-9]{1,3}
//	suffix      := [A-Z]                       ; duplicate disambiguator
package code

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Code is a parsed, normalized item code.
type Code struct {
	// RestartIndex is 0 for an unprefixed code and k for a "Sk-"
	// prefix; for a legacy "ADn-" prefix it holds n (0 for a bare
	// "AD-") and Legacy is set.
	RestartIndex int
	// Legacy is true when the code carried the legacy "AD-" prefix.
	Legacy bool
	// Parts is the dot-joined integer sequence, e.g. [6 3 4].
	Parts []int
	// Suffix is 0 without a disambiguating suffix, 1 for "-A", 2 for
	// "-B", and so on.
	Suffix int
}

var (
	restartPrefixRe = regexp.MustCompile(`^(?:S([1-9][0-9]*)-|AD([0-9]*)-)`)
	suffixRe        = regexp.MustCompile(`-([A-Za-z])$`)
	leadingCodeRe   = regexp.MustCompile(`^(\d{1,3}(?:\s*\.\s*\d{1,3}){1,3}(?:-[A-Za-z])?)\b`)
	leadingSpacedRe = regexp.MustCompile(`^(\d{1,3}(?:\s+\d{1,3}){1,3})\b`)
	leadingRestartS = regexp.MustCompile(`(?i)^(S[1-9][0-9]*-\d{1,3}(?:\.\d{1,3}){1,3}(?:-[A-Za-z])?)\b`)
	leadingRestartA = regexp.MustCompile(`(?i)^(AD[0-9]*-\d{1,3}(?:\.\d{1,3}){1,3}(?:-[A-Za-z])?)\b`)
)

// SegmentIndex returns the segment component of the canonical sort key
// described in spec §3: 0 for unprefixed, k for "Sk-", 100+n for the
// legacy "AD"n"-" form.
func (c Code) SegmentIndex() int {
	if c.Legacy {
		n := c.RestartIndex
		if n < 0 {
			n = 0
		}
		return 100 + n
	}
	return c.RestartIndex
}

// Valid reports whether c carries between one and four numeric
// components.
func (c Code) Valid() bool {
	return len(c.Parts) > 0 && len(c.Parts) <= 4
}

// String renders the code back to its canonical textual form.
func (c Code) String() string {
	var b strings.Builder
	switch {
	case c.Legacy:
		if c.RestartIndex > 0 {
			fmt.Fprintf(&b, "AD%d-", c.RestartIndex)
		} else {
			b.WriteString("AD-")
		}
	case c.RestartIndex > 0:
		fmt.Fprintf(&b, "S%d-", c.RestartIndex)
	}
	parts := make([]string, len(c.Parts))
	for i, p := range c.Parts {
		parts[i] = strconv.Itoa(p)
	}
	b.WriteString(strings.Join(parts, "."))
	if c.Suffix > 0 {
		fmt.Fprintf(&b, "-%c", 'A'+c.Suffix-1)
	}
	return b.String()
}

// Digits returns the numeric components concatenated with no
// separator, used by the column-leak heuristic (spec §4.3 step 8).
func (c Code) Digits() string {
	var b strings.Builder
	for _, p := range c.Parts {
		fmt.Fprintf(&b, "%d", p)
	}
	return b.String()
}

// Parse parses a raw item-code token (e.g. "S2-1.2.3-A", "AD-1.1",
// "1 2 3") into a Code. It returns ok=false when the token does not
// conform to the grammar in spec §6.
func Parse(raw string) (Code, bool) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return Code{}, false
	}

	var c Code
	if m := restartPrefixRe.FindStringSubmatch(text); m != nil {
		switch {
		case m[1] != "":
			n, _ := strconv.Atoi(m[1])
			c.RestartIndex = n
		default:
			c.Legacy = true
			if m[2] != "" {
				n, _ := strconv.Atoi(m[2])
				c.RestartIndex = n
			}
		}
		text = text[len(m[0]):]
	}

	if sm := suffixRe.FindStringSubmatch(text); sm != nil {
		letter := strings.ToUpper(sm[1])[0]
		c.Suffix = int(letter-'A') + 1
		text = text[:len(text)-len(sm[0])]
	}

	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r >= '0' && r <= '9', r == '.', r == ' ':
			return r
		default:
			return -1
		}
	}, text)
	cleaned = strings.Trim(strings.TrimSpace(cleaned), ".")
	if cleaned == "" {
		return Code{}, false
	}

	fields := strings.FieldsFunc(cleaned, func(r rune) bool {
		return r == '.' || r == ' '
	})
	if len(fields) == 0 || len(fields) > 4 {
		return Code{}, false
	}
	parts := make([]int, 0, len(fields))
	for _, f := range fields {
		if len(f) > 3 {
			return Code{}, false
		}
		n, err := strconv.Atoi(f)
		if err != nil {
			return Code{}, false
		}
		parts = append(parts, n)
	}
	c.Parts = parts
	return c, true
}

// ExtractLeading scans desc for a leading item code, recognizing the
// restart-prefixed, legacy-prefixed, and plain numeric forms (spec
// §4.4 step 1). It returns the matched raw token and the remaining
// text with the code and any separating dash/space stripped.
func ExtractLeading(desc string) (rawCode string, rest string) {
	text := strings.TrimSpace(desc)
	if text == "" {
		return "", ""
	}

	if m := leadingRestartS.FindStringSubmatch(text); m != nil {
		return strings.ToUpper(m[1]), strings.TrimSpace(text[len(m[0]):])
	}
	if m := leadingRestartA.FindStringSubmatch(text); m != nil {
		return strings.ToUpper(m[1]), strings.TrimSpace(text[len(m[0]):])
	}

	m := leadingCodeRe.FindStringSubmatch(text)
	if m == nil {
		m = leadingSpacedRe.FindStringSubmatch(text)
	}
	if m == nil {
		return "", text
	}
	code := strings.Join(strings.Fields(strings.ReplaceAll(m[1], ".", " ")), ".")
	rest = strings.TrimSpace(text[len(m[0]):])
	rest = strings.TrimLeft(rest, "-.")
	rest = strings.TrimSpace(rest)
	return code, rest
}

// Less implements the canonical ordering from spec §3:
// lexicographic on (segment_index, item_tuple, suffix_index).
func Less(a, b Code) bool {
	if a.SegmentIndex() != b.SegmentIndex() {
		return a.SegmentIndex() < b.SegmentIndex()
	}
	for i := 0; i < len(a.Parts) && i < len(b.Parts); i++ {
		if a.Parts[i] != b.Parts[i] {
			return a.Parts[i] < b.Parts[i]
		}
	}
	if len(a.Parts) != len(b.Parts) {
		return len(a.Parts) < len(b.Parts)
	}
	return a.Suffix < b.Suffix
}

// InDescription reports whether code appears in text, tolerating
// flexible spacing around the dots (spec §4.4 "embedded code").
func InDescription(c Code, text string) bool {
	if !c.Valid() || text == "" {
		return false
	}
	parts := make([]string, len(c.Parts))
	for i, p := range c.Parts {
		parts[i] = strconv.Itoa(p)
	}
	pattern := `(?:^|[^\d])` + strings.Join(parts, `\s*\.\s*`) + `(?:$|[^\d])`
	re, err := regexp.Compile(pattern)
	if err != nil {
		return false
	}
	return re.MatchString(text)
}
