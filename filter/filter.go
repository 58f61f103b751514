// Package filter removes items that extraction produced but that are
// not real service line items: CAT classification paths, summary/total
// rows, and items whose code shape disagrees with the rest of the
// document (spec §4.5). Filters never invent items — they only narrow
// the slice they are given.
package filter

import (
	"strings"

	"github.com/BadWolf1509/licitafacil-sub001/code"
	"github.com/BadWolf1509/licitafacil-sub001/model"
	"github.com/BadWolf1509/licitafacil-sub001/normalize"
	"github.com/samber/lo"
)

var classificationPrefixes = []string{
	"DIRETA OBRAS", "1 - DIRETA", "2 - DIRETA", "ATIVIDADE TECNICA", "CLASSIFICACAO",
}

func hasValidItemAndQuantity(item model.ServiceItem) bool {
	c, ok := item.Code()
	if !ok || len(c.Parts) == 0 {
		return false
	}
	return item.Quantity != nil && *item.Quantity > 0
}

// ClassificationPaths drops items whose description is a CAT
// classification breadcrumb (contains ">") or starts with a known
// classification prefix, while preserving any item that carries a
// valid code and positive quantity even if its description is short
// or empty — those are salvageable by the Reconstructor later (spec
// §4.5 step 1, grounded on service_filter.py::filter_classification_paths).
func ClassificationPaths(items []model.ServiceItem) []model.ServiceItem {
	return lo.Filter(items, func(item model.ServiceItem, _ int) bool {
		desc := strings.TrimSpace(item.Description)
		salvageable := hasValidItemAndQuantity(item)

		if desc == "" {
			return salvageable
		}
		if strings.Contains(desc, ">") {
			return salvageable
		}

		upper := strings.ToUpper(desc)
		for _, prefix := range classificationPrefixes {
			if strings.HasPrefix(upper, prefix) {
				return salvageable
			}
		}
		if strings.HasPrefix(upper, "EXECUCAO") && strings.Contains(upper, ">") {
			return false
		}

		if len(desc) < 5 {
			return salvageable
		}
		return true
	})
}

func isSummaryRow(desc string) bool {
	normalized := normalize.Description(desc)
	if normalized == "" {
		return false
	}
	switch {
	case strings.HasPrefix(normalized, "TOTAL"),
		strings.Contains(normalized, "TOTAL DA"),
		strings.Contains(normalized, "TOTAL DO"),
		strings.HasPrefix(normalized, "SUBTOTAL"),
		strings.HasPrefix(normalized, "RESUMO"),
		strings.HasPrefix(normalized, "#"):
		return true
	}
	switch normalized {
	case "ITEM", "DISCRIMINACAO", "DISCRIMINACAO DOS SERVICOS EXECUTADOS":
		return true
	}
	return false
}

// SummaryRows removes table footer rows like "TOTAL", "SUBTOTAL" and
// repeated header rows (spec §4.5 step 2).
func SummaryRows(items []model.ServiceItem) []model.ServiceItem {
	return lo.Filter(items, func(item model.ServiceItem, _ int) bool {
		return !isSummaryRow(item.Description)
	})
}

// ValidUnits drops items whose unit, once present, does not belong to
// the recognized vocabulary — an item with no unit at all is left
// alone, since a missing unit may still be recoverable (spec §4.5
// step 3).
func ValidUnits(items []model.ServiceItem, valid func(string) bool) []model.ServiceItem {
	return lo.Filter(items, func(item model.ServiceItem, _ int) bool {
		if item.Unit == "" {
			return true
		}
		return valid(item.Unit)
	})
}

// ByItemLength keeps only items whose code has the dominant number of
// dot-separated segments among the batch, unless the minority item
// still carries a believable quantity, unit and description (spec
// §4.5 step 4, grounded on service_filter.py::filter_servicos_by_item_length).
func ByItemLength(items []model.ServiceItem, minRatio float64, minDescLen int) []model.ServiceItem {
	if len(items) == 0 {
		return items
	}
	counts := map[int]int{}
	for _, item := range items {
		if c, ok := item.Code(); ok && len(c.Parts) > 0 {
			counts[len(c.Parts)]++
		}
	}
	if len(counts) == 0 {
		return items
	}

	dominantLen, dominantCount := 0, 0
	for length, count := range counts {
		if count > dominantCount {
			dominantLen, dominantCount = length, count
		}
	}
	total := 0
	for _, count := range counts {
		total += count
	}
	ratio := float64(dominantCount) / float64(total)
	if ratio < minRatio || dominantLen < 2 {
		return items
	}

	return lo.Filter(items, func(item model.ServiceItem, _ int) bool {
		c, ok := item.Code()
		if !ok || len(c.Parts) == 0 || len(c.Parts) == dominantLen {
			return true
		}
		return item.Quantity != nil && *item.Quantity != 0 && item.Unit != "" &&
			len(strings.TrimSpace(item.Description)) >= minDescLen
	})
}

// DominantPrefix reports the most common leading numeric segment among
// coded items and its share of all coded items, e.g. the `1` in `1.2`
// (spec §4.5 step 5/6 share this computation).
func DominantPrefix(items []model.ServiceItem) (int, float64) {
	counts := map[int]int{}
	total := 0
	for _, item := range items {
		if c, ok := item.Code(); ok && len(c.Parts) > 0 {
			counts[c.Parts[0]]++
			total++
		}
	}
	if total == 0 {
		return 0, 0
	}
	dominantPrefix, dominantCount := 0, 0
	for prefix, count := range counts {
		if count > dominantCount {
			dominantPrefix, dominantCount = prefix, count
		}
	}
	return dominantPrefix, float64(dominantCount) / float64(total)
}

// itemPrefixCoverageBypass is the spec §4.5 step 5 threshold: once the
// contiguous prefix set already accounts for this share of coded
// items, filtering would only risk dropping real items for little
// gain, so the batch is left untouched.
const itemPrefixCoverageBypass = 0.95

// ByItemPrefix keeps items whose code's leading numeric segment falls
// within the contiguous run of prefixes surrounding the dominant one
// — an isolated prefix with no neighbors is almost always noise,
// while prefixes that appear alongside each other (1, 2, 3 all
// present) are real planilha sections (spec §4.5 step 5, grounded on
// service_filter.py::filter_servicos_by_item_prefix).
func ByItemPrefix(items []model.ServiceItem) []model.ServiceItem {
	if len(items) == 0 {
		return items
	}
	counts := map[int]int{}
	total := 0
	for _, item := range items {
		if c, ok := item.Code(); ok && len(c.Parts) > 0 {
			counts[c.Parts[0]]++
			total++
		}
	}
	if total == 0 {
		return items
	}

	dominantPrefix, dominantCount := 0, 0
	for prefix, count := range counts {
		if count > dominantCount {
			dominantPrefix, dominantCount = prefix, count
		}
	}

	allowed := map[int]bool{dominantPrefix: true}
	covered := dominantCount
	for p := dominantPrefix + 1; counts[p] > 0; p++ {
		allowed[p] = true
		covered += counts[p]
	}
	for p := dominantPrefix - 1; counts[p] > 0; p-- {
		allowed[p] = true
		covered += counts[p]
	}

	if float64(covered)/float64(total) >= itemPrefixCoverageBypass {
		return items
	}

	return lo.Filter(items, func(item model.ServiceItem, _ int) bool {
		c, ok := item.Code()
		return !ok || len(c.Parts) == 0 || allowed[c.Parts[0]]
	})
}

// DominantItemLength reports the most common code segment count among
// items and its share of all coded items.
func DominantItemLength(items []model.ServiceItem) (int, float64) {
	counts := map[int]int{}
	total := 0
	for _, item := range items {
		if c, ok := item.Code(); ok && len(c.Parts) > 0 {
			counts[len(c.Parts)]++
			total++
		}
	}
	if total == 0 {
		return 0, 0
	}
	dominantLen, dominantCount := 0, 0
	for length, count := range counts {
		if count > dominantCount {
			dominantLen, dominantCount = length, count
		}
	}
	return dominantLen, float64(dominantCount) / float64(total)
}

// RepairMissingPrefix prepends the dominant top-level prefix onto any
// two-segment code that is missing one, when doing so does not
// collide with an existing code (spec §4.5 step 6, grounded on
// service_filter.py::repair_missing_prefix).
func RepairMissingPrefix(items []model.ServiceItem, dominantPrefix int) []model.ServiceItem {
	if dominantPrefix == 0 {
		return items
	}
	existing := make(map[string]bool, len(items))
	for _, item := range items {
		if item.ItemCode != "" {
			existing[item.ItemCode] = true
		}
	}

	for i := range items {
		c, ok := items[i].Code()
		if !ok || len(c.Parts) != 2 {
			continue
		}
		candidate := code.Code{Parts: append([]int{dominantPrefix}, c.Parts...)}
		newCode := candidate.String()
		if existing[newCode] {
			continue
		}
		items[i].ItemCode = newCode
		existing[newCode] = true
	}
	return items
}
