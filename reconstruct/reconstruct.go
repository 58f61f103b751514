// Package reconstruct rebuilds service descriptions from the raw
// extracted text when the table or AI pipeline produced a truncated,
// merged, or missing description for an item (spec §4.4). The raw
// text is treated as ground truth: every candidate line is scored
// against the item's known unit and quantity, and the best-scoring
// line's own text replaces the unreliable description.
package reconstruct

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/BadWolf1509/licitafacil-sub001/code"
	"github.com/BadWolf1509/licitafacil-sub001/model"
	"github.com/BadWolf1509/licitafacil-sub001/normalize"
	"github.com/BadWolf1509/licitafacil-sub001/unit"
)

// Candidate is one raw-text line (plus any collected continuation or
// preceding lines) that mentions an item code.
type Candidate struct {
	Line      int
	Text      string
	Unit      string
	Qty       *float64
	Corrupted bool
	Embedded  bool
}

var (
	itemLineRe     = regexp.MustCompile(`^([A-Z0-9][A-Z0-9.\-]{1,30})\s+(.+)$`)
	sectionHeadRe  = regexp.MustCompile(`^[A-ZÀ-Ú0-9 .\-/]{6,60}$`)
	pageMarkerRe   = regexp.MustCompile(`(?i)p[aá]gina\s+(\d+)`)
	unitQtyTailRe  = regexp.MustCompile(`(?i)(UN|M2|M3|M²|M³|M|KM|KG|T|L|VB|CJ|PC|GL|PAR|JG|SC|CX|PT|FX|DIA|MES|H)\s+([\d.,]+)\s*$`)
	unitQtyMidRe   = regexp.MustCompile(`(?i)(UN|M2|M3|M²|M³|M|KM|KG|T|L|VB|CJ|PC|GL|PAR|JG|SC|CX|PT|FX|DIA|MES|H)\s+([\d.,]+)`)
	embeddedCodeRe = regexp.MustCompile(`(?i)([A-Z]?\d+(?:\.\d+){1,3}(?:-\d+)?)\s+(UN|M2|M3|M²|M³|M|KM|KG|T|L|VB|CJ|PC|GL)\s+([\d.,]+)\s*$`)

	stopPrefixes = []string{
		"CNPJ", "CPF", "PREFEITURA", "CONSELHO", "CREA", "CEP",
		"EMAIL", "E-MAIL", "TEL", "TELEFONE", "IMPRESSO", "PAGINA", "PÁGINA",
		"DOCUSIGN", "HTTP", "WWW",
	}
)

// BuildLineToPageMap maps each 1-indexed line number to the page it
// falls on, tracking "Página N" markers as they are encountered.
func BuildLineToPageMap(text string) map[int]int {
	lines := strings.Split(text, "\n")
	result := make(map[int]int, len(lines))
	page := 1
	for i, line := range lines {
		if m := pageMarkerRe.FindStringSubmatch(strings.TrimSpace(line)); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil {
				page = n
			}
		}
		result[i+1] = page
	}
	return result
}

// extractUnitQty pulls a trailing or mid-line "<UNIT> <QTY>" pair out
// of a line, the way a table cell that leaked into free text would
// look once merged back in.
func extractUnitQty(text string) (string, *float64) {
	m := unitQtyTailRe.FindStringSubmatch(text)
	if m == nil {
		m = unitQtyMidRe.FindStringSubmatch(text)
	}
	if m == nil {
		return "", nil
	}
	u := unit.Normalize(m[1])
	qty, ok := parseQty(m[2])
	if !ok {
		return u, nil
	}
	return u, &qty
}

func parseQty(raw string) (float64, bool) {
	s := strings.ReplaceAll(raw, ".", "")
	s = strings.ReplaceAll(s, ",", ".")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func isGibberish(line string) bool {
	if len(line) <= 3 {
		return false
	}
	vowels := 0
	for _, r := range strings.ToLower(line) {
		switch r {
		case 'a', 'e', 'i', 'o', 'u', 'á', 'é', 'í', 'ó', 'ú', 'à', 'â', 'ê', 'ô':
			vowels++
		}
	}
	return float64(vowels) < float64(len(line))*0.15
}

func hasStopPrefix(line string) bool {
	upper := strings.ToUpper(line)
	for _, p := range stopPrefixes {
		if strings.HasPrefix(upper, p) {
			return true
		}
	}
	return false
}

// collectContinuation gathers up to five lines following an item
// line that plausibly continue its description: it stops at a blank
// line, another item line, a section header, or a footer marker, and
// skips lines shorter than four characters or that look like OCR
// noise.
func collectContinuation(lines []string, start int) string {
	var parts []string
	for j := start; j < len(lines) && len(parts) < 5; j++ {
		line := strings.TrimSpace(lines[j])
		if line == "" {
			break
		}
		if len(line) < 4 {
			continue
		}
		if itemLineRe.MatchString(line) {
			break
		}
		if sectionHeadRe.MatchString(line) && strings.ToUpper(line) == line {
			break
		}
		if hasStopPrefix(line) {
			break
		}
		if isGibberish(line) {
			continue
		}
		parts = append(parts, line)
	}
	return strings.Join(parts, " ")
}

// BuildItemLineIndex scans every line of the raw text and groups all
// lines that mention each item code, collecting continuation text so
// later scoring sees the whole sentence rather than one fragment.
func BuildItemLineIndex(text string) map[string][]Candidate {
	lines := strings.Split(text, "\n")
	index := make(map[string][]Candidate)

	for i, raw := range lines {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}

		if m := itemLineRe.FindStringSubmatch(line); m != nil {
			if c, ok := code.Parse(m[1]); ok && c.Valid() {
				full := line
				if cont := collectContinuation(lines, i+1); cont != "" {
					full = full + " " + cont
				}
				u, qty := extractUnitQty(full)
				index[c.String()] = append(index[c.String()], Candidate{
					Line:      i + 1,
					Text:      full,
					Unit:      u,
					Qty:       qty,
					Corrupted: normalize.IsCorrupted(line),
				})
				continue
			}
		}

		if m := embeddedCodeRe.FindStringSubmatch(line); m != nil {
			if c, ok := code.Parse(m[1]); ok && c.Valid() {
				descPart := strings.TrimSpace(line[:strings.Index(line, m[0])])
				if len(descPart) < 20 {
					continue
				}
				u := unit.Normalize(m[2])
				qty, _ := parseQty(m[3])
				index[c.String()] = append(index[c.String()], Candidate{
					Line:      i + 1,
					Text:      line,
					Unit:      u,
					Qty:       &qty,
					Corrupted: normalize.IsCorrupted(line),
					Embedded:  true,
				})
			}
		}
	}

	return index
}

// Match is the outcome of reconciling one item's candidate lines.
type Match struct {
	Line          int
	Description   string
	DescCorrupted bool
}

// filterByPage narrows candidates to the item's own page, or — when
// none land there — to pages within maxDistance of it (1 for a
// restart-prefixed item, 2 otherwise, spec §4.4 step 2). The second
// return value reports whether the same-page set was used, the
// "explicit page hit" the protection rule in FindBestMatch checks for.
func filterByPage(candidates []Candidate, servicoPage int, lineToPage map[int]int, maxDistance int) ([]Candidate, bool) {
	if servicoPage == 0 || lineToPage == nil {
		return candidates, false
	}
	var same []Candidate
	for _, c := range candidates {
		if lineToPage[c.Line] == servicoPage {
			same = append(same, c)
		}
	}
	if len(same) > 0 {
		return same, true
	}
	var nearby []Candidate
	for _, c := range candidates {
		if abs(lineToPage[c.Line]-servicoPage) <= maxDistance {
			nearby = append(nearby, c)
		}
	}
	return nearby, false
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

func groupByProximity(candidates []Candidate) [][]Candidate {
	if len(candidates) <= 1 {
		if len(candidates) == 1 {
			return [][]Candidate{candidates}
		}
		return nil
	}
	sorted := make([]Candidate, len(candidates))
	copy(sorted, candidates)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j].Line < sorted[j-1].Line; j-- {
			sorted[j], sorted[j-1] = sorted[j-1], sorted[j]
		}
	}
	var groups [][]Candidate
	current := []Candidate{sorted[0]}
	for i := 1; i < len(sorted); i++ {
		if sorted[i].Line-sorted[i-1].Line <= 200 {
			current = append(current, sorted[i])
		} else {
			groups = append(groups, current)
			current = []Candidate{sorted[i]}
		}
	}
	groups = append(groups, current)
	return groups
}

func findQuantityMatch(candidates []Candidate, expectedUnit string, expectedQty *float64) *Candidate {
	if expectedQty == nil || expectedUnit == "" {
		return nil
	}
	for i := range candidates {
		c := &candidates[i]
		if c.Qty != nil && *c.Qty == *expectedQty && unit.Normalize(c.Unit) == expectedUnit {
			return c
		}
	}
	return nil
}

func extractDescriptionFromLine(line, item string) string {
	desc := strings.TrimSpace(line)
	desc = strings.TrimPrefix(desc, item)
	desc = strings.TrimSpace(desc)
	desc = unitQtyTailRe.ReplaceAllString(desc, "")
	desc = unitQtyMidRe.ReplaceAllString(desc, " ")
	desc = strings.Join(strings.Fields(desc), " ")
	if len(desc) < 5 {
		return ""
	}
	return desc
}

func scoreCandidate(c Candidate, desc, expectedUnit string, expectedQty *float64) int {
	score := 0
	switch {
	case len(desc) >= 50:
		score += 50
	case len(desc) >= 30:
		score += 25
	}
	if expectedUnit != "" && unit.Normalize(c.Unit) == expectedUnit {
		score += 100
	}
	if expectedQty != nil && c.Qty != nil {
		switch {
		case *c.Qty == *expectedQty:
			score += 200
		case abs64(*c.Qty-*expectedQty)/maxFloat(*expectedQty, 0.01) < 0.05:
			score += 150
		}
	}
	if score == 0 {
		score = len(desc)
	}
	return score
}

func abs64(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

var (
	startsWithUnitQtyRe = regexp.MustCompile(`(?i)^(UN|M2|M3|M²|M³|M|KM|KG|T|L|VB|CJ|PC|GL|PAR|JG|SC|CX|PT|FX|DIA|MES|H)\s+[\d.,]+`)
	neighborRowStartRe  = regexp.MustCompile(`^\d{1,3}(?:\.\d{1,3}){1,3}\b`)
)

// looksLikeNeighboringRow rejects a candidate description that starts
// with a bare "<unit> <qty>" or another item code — both patterns
// mean the line actually belongs to an adjacent row, not this item
// (spec §4.4 step 5).
func looksLikeNeighboringRow(desc string) bool {
	return startsWithUnitQtyRe.MatchString(desc) || neighborRowStartRe.MatchString(desc)
}

// protect implements spec §4.4 step 6: once an item's current
// description is already long, only an explicit same-page hit is
// allowed to replace it with something shorter.
func protect(m Match, currentDesc string, pageHit bool) (Match, bool) {
	if len(strings.TrimSpace(currentDesc)) >= 50 && !pageHit && len(m.Description) < len(currentDesc) {
		return Match{}, false
	}
	return m, true
}

// FindBestMatch reconciles the candidate lines for one item against
// its known unit/quantity and returns the best description to use,
// preferring an exact quantity-and-unit match and otherwise the
// highest-scoring candidate (spec §4.4 steps 2-6). restartIndex is the
// item code's Code.RestartIndex (0 when unprefixed or legacy): it
// narrows the page window to ±1 instead of ±2 and, when the
// candidates form more than one proximity cluster, selects the
// restartIndex'th cluster instead of the first.
func FindBestMatch(candidates []Candidate, item, expectedUnit string, expectedQty *float64, currentDesc string, servicoPage int, lineToPage map[int]int, restartIndex int) (Match, bool) {
	if len(candidates) == 0 {
		return Match{}, false
	}
	expectedUnitNorm := unit.Normalize(expectedUnit)

	maxDistance := 2
	if restartIndex > 0 {
		maxDistance = 1
	}
	filtered, pageHit := filterByPage(candidates, servicoPage, lineToPage, maxDistance)
	if len(filtered) == 0 {
		return Match{}, false
	}

	groups := groupByProximity(filtered)
	working := filtered
	if len(groups) > 1 {
		working = groups[0]
		if restartIndex > 0 && restartIndex <= len(groups) {
			working = groups[restartIndex-1]
		}
	}

	if qtyMatch := findQuantityMatch(working, expectedUnitNorm, expectedQty); qtyMatch != nil {
		desc := extractDescriptionFromLine(qtyMatch.Text, item)
		corrupted := qtyMatch.Corrupted || normalize.IsCorrupted(qtyMatch.Text)
		if desc != "" && len(desc) >= 10 && !corrupted {
			return protect(Match{Line: qtyMatch.Line, Description: desc}, currentDesc, pageHit)
		}
		if len(currentDesc) >= 20 && !normalize.IsCorrupted(currentDesc) {
			return Match{Line: qtyMatch.Line, Description: currentDesc, DescCorrupted: true}, true
		}
		if desc == "" {
			desc = currentDesc
		}
		return protect(Match{Line: qtyMatch.Line, Description: desc, DescCorrupted: true}, currentDesc, pageHit)
	}

	best := Match{}
	bestScore := -1
	found := false
	for _, c := range working {
		desc := extractDescriptionFromLine(c.Text, item)
		if desc == "" || len(desc) < 10 {
			continue
		}
		if c.Corrupted || normalize.IsCorrupted(c.Text) {
			continue
		}
		// Checked on the line before unit/quantity stripping, which
		// would otherwise remove a leading "<unit> <qty>".
		rawDesc := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(c.Text), item))
		if looksLikeNeighboringRow(rawDesc) {
			continue
		}
		score := scoreCandidate(c, desc, expectedUnitNorm, expectedQty)
		if score > bestScore {
			bestScore = score
			best = Match{Line: c.Line, Description: desc}
			found = true
		}
	}
	if !found {
		return best, false
	}
	return protect(best, currentDesc, pageHit)
}

// Reconstruct rebuilds descriptions for every service item using the
// raw extracted text as ground truth, replacing the description of
// any item with a clearly better-matching line from the source text
// (spec §4.4). Items with no matching candidate are left untouched.
func Reconstruct(items []model.ServiceItem, text string) []model.ServiceItem {
	if text == "" || len(items) == 0 {
		return items
	}

	index := BuildItemLineIndex(text)
	lineToPage := BuildLineToPageMap(text)

	for i := range items {
		c, ok := items[i].Code()
		if !ok {
			continue
		}
		// The raw text only ever spells out the bare code — "Sk-" is a
		// pipeline-internal disambiguator applied after the fact — so
		// the index is always keyed, and looked up, by the code with
		// any restart prefix stripped. restartIndex then picks which
		// of the (possibly several) occurrences in the index is this
		// item's own.
		base := code.Code{Parts: c.Parts, Suffix: c.Suffix}
		candidates := index[base.String()]
		if len(candidates) == 0 {
			continue
		}

		page := 0
		if items[i].Page != nil {
			page = *items[i].Page
		}

		restartIndex := 0
		if c.RestartIndex > 0 && !c.Legacy {
			restartIndex = c.RestartIndex
		}
		match, ok := FindBestMatch(candidates, base.String(), items[i].Unit, items[i].Quantity, items[i].Description, page, lineToPage, restartIndex)
		if !ok {
			continue
		}

		items[i].Description = match.Description
		items[i].DescSource = model.DescSourceOriginal
		line := match.Line
		items[i].Line = &line
		items[i].DescCorrupted = match.DescCorrupted
	}

	return items
}
