// Package table implements the TableRecovery component (spec §4.3):
// header detection, column-role inference without a schema, row
// parsing, hidden-item recovery, and column-leak cleanup. Grounded
// verbatim on original_source's table_processor.py and item_utils.py.
package table

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cast"

	"github.com/BadWolf1509/licitafacil-sub001/code"
	"github.com/BadWolf1509/licitafacil-sub001/config"
	"github.com/BadWolf1509/licitafacil-sub001/model"
	"github.com/BadWolf1509/licitafacil-sub001/normalize"
	"github.com/BadWolf1509/licitafacil-sub001/unit"
)

// Row is one table row: a list of cell strings.
type Row []string

// Table is a row-major grid of cells.
type Table []Row

// headerKeywords mirror table_processor.py::detect_header_row.
var headerKeywords = []string{
	"ITEM", "ITENS", "COD", "CODIGO", "DESCRICAO", "DISCRIMINACAO",
	"SERVICO", "SERVICOS", "UNID", "UNIDADE", "QTD", "QTE", "QUANT", "QUANTIDADE",
	"EXECUTADA", "EXECUTADO", "VALOR", "CUSTO", "PRECO",
}

// DetectHeaderRow scans up to the first 5 rows and returns the index
// of the best-scoring header row, or -1 if none scores ≥2 (spec
// §4.3 step 1).
func DetectHeaderRow(rows Table) int {
	bestScore, bestIndex := 0, -1
	limit := len(rows)
	if limit > 5 {
		limit = 5
	}
	for i := 0; i < limit; i++ {
		score := 0
		for _, cell := range rows[i] {
			text := normalize.Header(cell)
			if text == "" {
				continue
			}
			for _, kw := range headerKeywords {
				if strings.Contains(text, kw) {
					score++
					break
				}
			}
		}
		if score > bestScore {
			bestScore = score
			bestIndex = i
		}
	}
	if bestScore >= 2 {
		return bestIndex
	}
	return -1
}

// ColumnMapping maps semantic roles to column indices; -1 means
// unresolved.
type ColumnMapping struct {
	Item        int
	Descricao   int
	Unidade     int
	Quantidade  int
	Valor       int
}

func newUnresolvedMapping() ColumnMapping {
	return ColumnMapping{Item: -1, Descricao: -1, Unidade: -1, Quantidade: -1, Valor: -1}
}

// GuessColumnsByHeader maps columns to roles using each column's
// header-cell keyword (spec §4.3 step 2).
func GuessColumnsByHeader(header Row) ColumnMapping {
	m := newUnresolvedMapping()
	for idx, cell := range header {
		text := normalize.Header(cell)
		if text == "" {
			continue
		}
		if m.Item == -1 && (strings.Contains(text, "ITEM") || strings.Contains(text, "COD")) {
			m.Item = idx
		}
		if m.Descricao == -1 && (strings.Contains(text, "DESCRICAO") || strings.Contains(text, "DISCRIMINACAO") || strings.Contains(text, "SERVICO")) {
			m.Descricao = idx
		}
		if m.Unidade == -1 && (strings.Contains(text, "UNID") || strings.Contains(text, "UNIDADE")) {
			m.Unidade = idx
		}
		if m.Quantidade == -1 && (strings.Contains(text, "QUANT") || strings.Contains(text, "QTD") || strings.Contains(text, "QTE") || strings.Contains(text, "EXECUTAD")) {
			m.Quantidade = idx
		}
		if m.Valor == -1 && (strings.Contains(text, "VALOR") || strings.Contains(text, "CUSTO") || strings.Contains(text, "PRECO")) {
			m.Valor = idx
		}
	}
	return m
}

// ColumnStats is the per-column statistics computed over the data
// rows (spec §4.3 step 3).
type ColumnStats struct {
	NonEmpty    int
	NumericRatio float64
	UnitRatio    float64
	AvgLen       float64
}

var numberCleanRe = regexp.MustCompile(`[^\d.\-]`)

// ParseQuantity converts locale-formatted cell text (Brazilian
// thousands-separator/decimal-comma) to a float64, grounded on
// table_processor.py::parse_quantity. Uses spf13/cast for the final
// numeric coercion.
func ParseQuantity(value string) (float64, bool) {
	text := strings.TrimSpace(value)
	if text == "" {
		return 0, false
	}
	text = strings.ReplaceAll(text, ".", "")
	text = strings.ReplaceAll(text, ",", ".")
	text = numberCleanRe.ReplaceAllString(text, "")
	if text == "" || text == "-" {
		return 0, false
	}
	f, err := cast.ToFloat64E(text)
	if err != nil {
		return 0, false
	}
	return f, true
}

// ComputeColumnStats computes non_empty/numeric_ratio/unit_ratio/
// avg_len for every column (spec §4.3 step 3).
func ComputeColumnStats(rows Table, totalCols int) []ColumnStats {
	stats := make([]ColumnStats, totalCols)
	for col := 0; col < totalCols; col++ {
		var nonEmpty, numeric, unitHits int
		var textLen int
		for _, row := range rows {
			if col >= len(row) {
				continue
			}
			cell := strings.TrimSpace(row[col])
			if cell == "" {
				continue
			}
			nonEmpty++
			if _, ok := ParseQuantity(cell); ok {
				numeric++
			}
			u := normalize.Description(unit.Normalize(cell))
			u = strings.ReplaceAll(u, " ", "")
			if unit.Valid(u) {
				unitHits++
			}
			textLen += len(cell)
		}
		if nonEmpty == 0 {
			continue
		}
		stats[col] = ColumnStats{
			NonEmpty:     nonEmpty,
			NumericRatio: float64(numeric) / float64(nonEmpty),
			UnitRatio:    float64(unitHits) / float64(nonEmpty),
			AvgLen:       float64(textLen) / float64(nonEmpty),
		}
	}
	return stats
}

// GuessColumnsByContent fills any still-unresolved roles from the
// per-column statistics (spec §4.3 step 3).
func GuessColumnsByContent(rows Table, totalCols int, m ColumnMapping, stats []ColumnStats) ColumnMapping {
	if stats == nil {
		stats = ComputeColumnStats(rows, totalCols)
	}
	used := func(col int) bool {
		return col == m.Item || col == m.Unidade || col == m.Quantidade || col == m.Valor
	}

	if m.Descricao == -1 {
		best, bestLen := -1, 0.0
		for col, s := range stats {
			if used(col) {
				continue
			}
			if s.AvgLen > bestLen && s.NumericRatio < 0.7 {
				bestLen = s.AvgLen
				best = col
			}
		}
		m.Descricao = best
	}

	usedWithDesc := func(col int) bool {
		return col == m.Item || col == m.Descricao || col == m.Quantidade || col == m.Valor
	}
	if m.Unidade == -1 {
		best, bestRatio := -1, 0.0
		for col, s := range stats {
			if usedWithDesc(col) {
				continue
			}
			if s.UnitRatio > bestRatio {
				bestRatio = s.UnitRatio
				best = col
			}
		}
		m.Unidade = best
	}

	usedWithUnit := func(col int) bool {
		return col == m.Item || col == m.Descricao || col == m.Unidade || col == m.Valor
	}
	if m.Quantidade == -1 {
		best, bestRatio := -1, 0.0
		for col, s := range stats {
			if usedWithUnit(col) {
				continue
			}
			if s.NumericRatio > bestRatio {
				bestRatio = s.NumericRatio
				best = col
			}
		}
		m.Quantidade = best
	}

	return m
}

// ValidateColumnMapping rejects and re-resolves column roles per the
// ratio thresholds in spec §4.3 step 4, using the values from
// config.TableConfig-adjacent original-source constants.
func ValidateColumnMapping(m ColumnMapping, stats []ColumnStats) ColumnMapping {
	if len(stats) == 0 {
		return m
	}
	const (
		minUnitRatio   = 0.2
		minQtyRatio    = 0.35
		minDescLen     = 10.0
		maxDescNumeric = 0.6
	)

	ratio := func(idx int, get func(ColumnStats) float64) float64 {
		if idx < 0 || idx >= len(stats) {
			return 0
		}
		return get(stats[idx])
	}

	if m.Descricao == m.Item || m.Descricao == m.Unidade || m.Descricao == m.Quantidade {
		m.Descricao = -1
	}
	if m.Unidade == m.Item || m.Unidade == m.Descricao || m.Unidade == m.Quantidade {
		m.Unidade = -1
	}
	if m.Quantidade == m.Item || m.Quantidade == m.Descricao || m.Quantidade == m.Unidade {
		m.Quantidade = -1
	}

	if m.Unidade != -1 && ratio(m.Unidade, func(s ColumnStats) float64 { return s.UnitRatio }) < minUnitRatio {
		m.Unidade = -1
	}
	if m.Quantidade != -1 && ratio(m.Quantidade, func(s ColumnStats) float64 { return s.NumericRatio }) < minQtyRatio {
		m.Quantidade = -1
	}
	if m.Descricao != -1 {
		avgLen := ratio(m.Descricao, func(s ColumnStats) float64 { return s.AvgLen })
		numRatio := ratio(m.Descricao, func(s ColumnStats) float64 { return s.NumericRatio })
		if avgLen < minDescLen || numRatio > maxDescNumeric {
			m.Descricao = -1
		}
	}

	if m.Unidade != -1 && m.Quantidade != -1 && m.Quantidade < m.Unidade {
		best, bestRatio := -1, 0.0
		for col := m.Unidade + 1; col < len(stats); col++ {
			if col == m.Item || col == m.Descricao {
				continue
			}
			r := ratio(col, func(s ColumnStats) float64 { return s.NumericRatio })
			if r >= minQtyRatio && r > bestRatio {
				bestRatio = r
				best = col
			}
		}
		if best != -1 {
			m.Quantidade = best
		}
	}

	return m
}

// itemColumnScore carries the weighted score and its components from
// scoring a candidate item column (spec §4.3 step 5).
type itemColumnScore struct {
	col          int
	score        float64
	patternRatio float64
}

// ScoreItemColumn computes the weighted item-column score: pattern
// match (0.45), monotonic sequence (0.20), distinctness (0.20),
// left-position bias (0.10), short-length bonus (0.05) — the exact
// weights from table_processor.py::score_item_column.
func ScoreItemColumn(cells []string, colIndex, totalCols int) itemColumnScore {
	var nonEmpty, matches int
	var codes []code.Code
	var lengths []int

	for _, cell := range cells {
		text := strings.TrimSpace(cell)
		if text == "" {
			continue
		}
		nonEmpty++
		if c, ok := code.Parse(text); ok && c.Valid() {
			matches++
			codes = append(codes, c)
			lengths = append(lengths, len(text))
		}
	}
	if nonEmpty == 0 {
		return itemColumnScore{col: colIndex}
	}

	patternRatio := float64(matches) / float64(nonEmpty)

	distinct := map[string]bool{}
	for _, c := range codes {
		distinct[c.String()] = true
	}
	var uniqueRatio float64
	if matches > 0 {
		uniqueRatio = float64(len(distinct)) / float64(matches)
	}

	ordered, totalPairs := 0, 0
	for i := 1; i < len(codes); i++ {
		totalPairs++
		if !code.Less(codes[i], codes[i-1]) {
			ordered++
		}
	}
	var seqRatio float64
	if totalPairs > 0 {
		seqRatio = float64(ordered) / float64(totalPairs)
	}

	avgLen := 99.0
	if len(lengths) > 0 {
		sum := 0
		for _, l := range lengths {
			sum += l
		}
		avgLen = float64(sum) / float64(len(lengths))
	}
	lengthBonus := 0.0
	switch {
	case avgLen <= 6:
		lengthBonus = 1.0
	case avgLen <= 10:
		lengthBonus = 0.5
	}

	leftBias := 1.0
	if totalCols > 1 {
		leftBias = 1.0 - float64(colIndex)/float64(totalCols-1)
	}

	score := 0.45*patternRatio + 0.2*seqRatio + 0.2*uniqueRatio + 0.1*leftBias + 0.05*lengthBonus
	return itemColumnScore{col: colIndex, score: score, patternRatio: patternRatio}
}

// ResolveItemColumn scores every unassigned column and accepts the
// best if it scores ≥ cfg.ItemColumnMinScore and its column index is
// at most cfg.ItemColumnMaxIndex (spec §4.3 step 5).
func ResolveItemColumn(rows Table, totalCols int, m ColumnMapping, cfg config.TableConfig) ColumnMapping {
	if m.Item != -1 {
		return m
	}
	var candidates []itemColumnScore
	for col := 0; col < totalCols; col++ {
		if col == m.Descricao || col == m.Unidade || col == m.Quantidade || col == m.Valor {
			continue
		}
		cells := make([]string, 0, len(rows))
		for _, row := range rows {
			if col < len(row) {
				cells = append(cells, row[col])
			}
		}
		if len(cells) < cfg.ItemColumnMinCount {
			continue
		}
		candidates = append(candidates, ScoreItemColumn(cells, col, totalCols))
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].score > candidates[j].score })
	if len(candidates) == 0 {
		return m
	}
	best := candidates[0]
	if best.score >= cfg.ItemColumnMinScore && best.col <= cfg.ItemColumnMaxIndex {
		m.Item = best.col
	}
	return m
}

// BuildDescriptionFromCells concatenates unmapped, non-trivial cells
// into a synthesized description (spec §4.3 step 6).
func BuildDescriptionFromCells(cells []string, exclude map[int]bool) string {
	var parts []string
	for idx, cell := range cells {
		if exclude[idx] {
			continue
		}
		text := strings.TrimSpace(cell)
		if len(text) > 2 {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " ")
}

var summaryPrefixes = []string{"TOTAL", "SUBTOTAL", "RESUMO"}

// isSummaryRow reports whether a normalized description is a
// summary/header row to be skipped (spec §4.3 step 6).
func isSummaryRow(normalizedDesc string) bool {
	if normalizedDesc == "" {
		return false
	}
	for _, p := range summaryPrefixes {
		if strings.HasPrefix(normalizedDesc, p) || strings.HasPrefix(normalizedDesc, "#") {
			return true
		}
	}
	return normalizedDesc == "ITEM" || normalizedDesc == "DISCRIMINACAO"
}

// Recover runs the full TableRecovery algorithm (spec §4.3) over one
// extracted table and returns the recovered ServiceItems.
func Recover(rows Table, cfg config.TableConfig) []model.ServiceItem {
	if len(rows) == 0 {
		return nil
	}

	headerIdx := DetectHeaderRow(rows)
	var mapping ColumnMapping
	var dataRows Table
	totalCols := 0
	for _, r := range rows {
		if len(r) > totalCols {
			totalCols = len(r)
		}
	}

	if headerIdx >= 0 {
		mapping = GuessColumnsByHeader(rows[headerIdx])
		dataRows = rows[headerIdx+1:]
	} else {
		mapping = newUnresolvedMapping()
		dataRows = rows
	}

	stats := ComputeColumnStats(dataRows, totalCols)
	mapping = GuessColumnsByContent(dataRows, totalCols, mapping, stats)
	mapping = ValidateColumnMapping(mapping, stats)
	mapping = ResolveItemColumn(dataRows, totalCols, mapping, cfg)

	exclude := map[int]bool{}
	for _, c := range []int{mapping.Item, mapping.Unidade, mapping.Quantidade, mapping.Valor} {
		if c >= 0 {
			exclude[c] = true
		}
	}

	var items []model.ServiceItem
	for _, row := range dataRows {
		item, ok := parseRow(row, mapping, exclude)
		if !ok {
			continue
		}
		items = append(items, item)
	}

	recoverHiddenItems(items)
	clearLeakedQuantities(items)
	inferSiblingUnits(items)

	return items
}

func cellAt(row Row, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}

func parseRow(row Row, m ColumnMapping, exclude map[int]bool) (model.ServiceItem, bool) {
	itemRaw := strings.TrimSpace(cellAt(row, m.Item))
	descRaw := strings.TrimSpace(cellAt(row, m.Descricao))
	unitRaw := strings.TrimSpace(cellAt(row, m.Unidade))
	qtyRaw := strings.TrimSpace(cellAt(row, m.Quantidade))

	if descRaw == "" {
		descRaw = BuildDescriptionFromCells(row, exclude)
	}

	normDesc := normalize.Description(descRaw)
	if isSummaryRow(normDesc) {
		return model.ServiceItem{}, false
	}

	var c code.Code
	var hasCode bool
	if itemRaw != "" {
		c, hasCode = code.Parse(itemRaw)
	}

	if hasCode && descRaw == "" && unitRaw == "" && qtyRaw == "" {
		// Section header: numeric item cell with nothing else.
		return model.ServiceItem{}, false
	}

	item := model.ServiceItem{
		Description: descRaw,
		Source:      model.SourceTable,
	}
	if hasCode {
		item.ItemCode = c.String()
	}
	if unitRaw != "" {
		item.Unit = unit.Normalize(unitRaw)
	}
	if qtyRaw != "" {
		if q, ok := ParseQuantity(qtyRaw); ok {
			item.Quantity = &q
		}
	}
	if item.Description == "" && !hasCode {
		return model.ServiceItem{}, false
	}
	return item, true
}

var hiddenCodeRe = regexp.MustCompile(`(\d{1,3}(?:\.\d{1,3}){1,3})\s+([A-Z0-9]{1,4})\s+([\d.,]+)`)

// recoverHiddenItems splits a row whose text embeds a
// "<code> <UNIT> <QTY>" pattern in the middle of the description
// (spec §4.3 step 7), rewriting the item in place.
func recoverHiddenItems(items []model.ServiceItem) {
	for i := range items {
		it := &items[i]
		if it.ItemCode != "" {
			continue
		}
		m := hiddenCodeRe.FindStringSubmatchIndex(it.Description)
		if m == nil {
			continue
		}
		matched := hiddenCodeRe.FindStringSubmatch(it.Description)
		c, ok := code.Parse(matched[1])
		if !ok {
			continue
		}
		before := strings.TrimSpace(it.Description[:m[0]])
		if before == "" {
			continue
		}
		u := unit.Normalize(matched[2])
		if !unit.Valid(u) {
			continue
		}
		q, ok := ParseQuantity(matched[3])
		if !ok {
			continue
		}
		it.ItemCode = c.String()
		it.Description = before
		it.Unit = u
		it.Quantity = &q
	}
}

// clearLeakedQuantities nulls quantities that are actually the item
// code leaked into the quantity column, when ≥70% of sampled items
// match with ≥10 samples (spec §4.3 step 8; exact constants from
// item_utils.py::clear_item_code_quantities).
func clearLeakedQuantities(items []model.ServiceItem) {
	const minRatio = 0.7
	const minSamples = 10

	total, matches := 0, 0
	for _, it := range items {
		if it.Quantity == nil || it.ItemCode == "" {
			continue
		}
		total++
		if it.ColumnLeaked() {
			matches++
		}
	}
	if total < minSamples {
		return
	}
	ratio := float64(matches) / float64(total)
	if ratio < minRatio {
		return
	}
	for i := range items {
		if items[i].Quantity != nil && items[i].ColumnLeaked() {
			items[i].Quantity = nil
		}
	}
}

// inferSiblingUnits copies a unit onto items missing one when every
// sibling sharing the item-code prefix unanimously agrees on a unit
// (spec §4.3 step 9).
func inferSiblingUnits(items []model.ServiceItem) {
	byPrefix := map[string][]int{}
	for i, it := range items {
		c, ok := it.Code()
		if !ok || len(c.Parts) < 2 {
			continue
		}
		prefixParts := make([]string, len(c.Parts)-1)
		for j, p := range c.Parts[:len(c.Parts)-1] {
			prefixParts[j] = strconv.Itoa(p)
		}
		key := strings.Join(prefixParts, ".")
		byPrefix[key] = append(byPrefix[key], i)
	}

	for _, idxs := range byPrefix {
		agreed := ""
		consistent := true
		for _, i := range idxs {
			if items[i].Unit == "" {
				continue
			}
			if agreed == "" {
				agreed = items[i].Unit
			} else if agreed != items[i].Unit {
				consistent = false
				break
			}
		}
		if !consistent || agreed == "" {
			continue
		}
		for _, i := range idxs {
			if items[i].Unit == "" {
				items[i].Unit = agreed
			}
		}
	}
}
