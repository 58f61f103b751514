// Package dedup removes duplicate service items produced when a
// document is extracted by more than one cascade stage, or when a
// table row repeats itself across a page break (spec §4.6).
// Candidate pairs are found through an inverted keyword index so the
// whole pass stays near-linear instead of comparing every pair.
package dedup

import (
	"strings"

	"github.com/BadWolf1509/licitafacil-sub001/code"
	"github.com/BadWolf1509/licitafacil-sub001/model"
	"github.com/BadWolf1509/licitafacil-sub001/normalize"
	"github.com/BadWolf1509/licitafacil-sub001/unit"
	"github.com/Tangerg/lynx/pkg/sets"
)

// richDescMinLen is the length above which a description is
// considered "rich" enough to win a pair/restart-prefix dedupe (spec
// §4.6 steps 1-2).
const richDescMinLen = 20

const similarityThreshold = 0.5

// distinctiveStopwords lists construction-domain terms common enough
// that sharing them alone does not indicate a duplicate — distinct
// from normalize.Stopwords, which filters grammatical words instead
// (spec §4.6 step 1, grounded on service_filter.py's `common_terms`).
var distinctiveStopwords = map[string]bool{
	"execucao": true, "fornecimento": true, "instalacao": true,
	"servico": true, "servicos": true, "material": true, "materiais": true,
	"equipamento": true, "equipamentos": true, "construcao": true,
	"obra": true, "obras": true, "manutencao": true, "reforma": true,
	"reparo": true, "sistema": true, "estrutura": true, "revestimento": true,
	"pintura": true, "acabamento": true, "fundacao": true, "concreto": true,
	"armado": true, "simples": true, "duplo": true, "triplo": true,
	"completo": true, "conforme": true, "projeto": true, "norma": true,
	"padrao": true, "modelo": true, "tipo": true,
}

func buildKeywordIndex(items []model.ServiceItem) map[string][]int {
	index := make(map[string][]int)
	for i, item := range items {
		for kw := range normalize.Keywords(item.Description) {
			index[kw] = append(index[kw], i)
		}
	}
	return index
}

// Key returns the canonical dedup identity for one item: its code
// paired with the first fifty characters of its normalized
// description (spec §4.6, grounded on service_filter.py::servico_key).
func Key(item model.ServiceItem) string {
	desc := normalize.Description(item.Description)
	if len(desc) > 50 {
		desc = desc[:50]
	}
	return item.ItemCode + "\x00" + desc
}

func quantitiesSimilar(a, b *float64) bool {
	if a == nil || b == nil {
		return true
	}
	if *a == 0 || *b == 0 {
		return false
	}
	diff := abs(*a - *b)
	if diff <= 1.0 {
		return true
	}
	base := max(abs(*a), abs(*b))
	return base > 0 && diff/base <= 0.2
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func max(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func descriptionsSimilar(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	normA, normB := normalize.Description(a), normalize.Description(b)
	if normA == normB {
		return true
	}
	if strings.Contains(normB, normA) || strings.Contains(normA, normB) {
		return true
	}
	kwA, kwB := normalize.Keywords(a), normalize.Keywords(b)
	if len(kwA) == 0 || len(kwB) == 0 {
		return false
	}
	common := 0
	for kw := range kwA {
		if kwB[kw] {
			common++
		}
	}
	minLen := len(kwA)
	if len(kwB) < minLen {
		minLen = len(kwB)
	}
	need := minLen / 2
	if need < 1 {
		need = 1
	}
	return common >= need
}

// Similar reports whether two items describe the same service: their
// descriptions overlap, their units (when both present) agree, and
// their quantities fall within a 20% tolerance (spec §4.6 step 3,
// grounded on similarity.py's quantities_similar/descriptions_similar).
func Similar(a, b model.ServiceItem) bool {
	if !descriptionsSimilar(a.Description, b.Description) {
		return false
	}
	if a.Unit != "" && b.Unit != "" && a.Unit != b.Unit {
		return false
	}
	return quantitiesSimilar(a.Quantity, b.Quantity)
}

func hasDistinctiveKeyword(desc string, distinctive map[string]bool) bool {
	for kw := range normalize.Keywords(desc) {
		if len(kw) >= 6 && distinctive[strings.ToLower(kw)] {
			return true
		}
	}
	return false
}

func jaccard(a, b map[string]bool) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := 0
	for kw := range a {
		if b[kw] {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

// RemoveOrphans drops uncoded (orphan) items whose description is
// already similar to a coded item, or that shares a distinctive
// keyword with one — these are almost always the same service
// surfacing twice under a lossier extraction strategy (spec §4.6 step
// 1, grounded on service_filter.py::remove_duplicate_services).
func RemoveOrphans(items []model.ServiceItem) []model.ServiceItem {
	var coded, orphans []model.ServiceItem
	for _, item := range items {
		if item.ItemCode != "" {
			coded = append(coded, item)
		} else {
			orphans = append(orphans, item)
		}
	}
	if len(coded) == 0 {
		return dedupeByNormalizedPrefix(orphans)
	}

	codedIndex := buildKeywordIndex(coded)
	codedKeywords := make([]map[string]bool, len(coded))
	distinctive := map[string]bool{}
	for i, item := range coded {
		kw := normalize.Keywords(item.Description)
		codedKeywords[i] = kw
		for k := range kw {
			if len(k) >= 6 && !distinctiveStopwords[strings.ToLower(k)] {
				distinctive[strings.ToLower(k)] = true
			}
		}
	}

	seen := sets.NewHashSet[string]()
	var keptOrphans []model.ServiceItem
	for _, orphan := range orphans {
		desc := normalize.Description(orphan.Description)
		if len(desc) > 50 {
			desc = desc[:50]
		}
		if desc == "" || seen.Contains(desc) {
			continue
		}

		kw := normalize.Keywords(orphan.Description)
		candidateIdx := sets.NewHashSet[int]()
		for k := range kw {
			for _, idx := range codedIndex[k] {
				candidateIdx.Add(idx)
			}
		}
		isDup := false
		for idx := range candidateIdx.Iter() {
			if jaccard(kw, codedKeywords[idx]) >= similarityThreshold {
				isDup = true
				break
			}
		}
		if isDup || hasDistinctiveKeyword(orphan.Description, distinctive) {
			continue
		}

		seen.Add(desc)
		keptOrphans = append(keptOrphans, orphan)
	}

	return append(coded, keptOrphans...)
}

func dedupeByNormalizedPrefix(items []model.ServiceItem) []model.ServiceItem {
	seen := sets.NewHashSet[string]()
	var result []model.ServiceItem
	for _, item := range items {
		desc := normalize.Description(item.Description)
		if len(desc) > 50 {
			desc = desc[:50]
		}
		if desc == "" || seen.Contains(desc) {
			continue
		}
		seen.Add(desc)
		result = append(result, item)
	}
	return result
}

// ByDescription collapses consecutive-or-not items that normalize to
// the same first hundred characters of description, keeping the
// first occurrence (spec §4.6 step 4, grounded on
// service_filter.py::deduplicate_by_description).
func ByDescription(items []model.ServiceItem) []model.ServiceItem {
	seen := sets.NewHashSet[string]()
	var result []model.ServiceItem
	for _, item := range items {
		desc := normalize.Description(item.Description)
		if len(desc) > 100 {
			desc = desc[:100]
		}
		if seen.Contains(desc) {
			continue
		}
		seen.Add(desc)
		result = append(result, item)
	}
	return result
}

// ByKey removes items sharing the same canonical Key, keeping the
// first occurrence. This is the final, cheap pass after the
// similarity-based passes above have run (spec §4.6 step 5).
func ByKey(items []model.ServiceItem) []model.ServiceItem {
	seen := sets.NewHashSet[string]()
	var result []model.ServiceItem
	for _, item := range items {
		key := Key(item)
		if seen.Contains(key) {
			continue
		}
		seen.Add(key)
		result = append(result, item)
	}
	return result
}

// MergePreferPrimary merges secondary into primary, keeping every
// primary item and adding only secondary items that are neither an
// exact key match nor Similar to any primary item (spec §4.6,
// grounded on service_filter.py::merge_servicos_prefer_primary).
func MergePreferPrimary(primary, secondary []model.ServiceItem) []model.ServiceItem {
	if len(secondary) == 0 {
		return primary
	}
	if len(primary) == 0 {
		return secondary
	}

	primaryKeys := sets.NewHashSet[string]()
	for _, item := range primary {
		primaryKeys.Add(Key(item))
	}
	index := buildKeywordIndex(primary)

	result := append([]model.ServiceItem{}, primary...)
	for _, item := range secondary {
		key := Key(item)
		if primaryKeys.Contains(key) {
			continue
		}

		candidateIdx := sets.NewHashSet[int]()
		for kw := range normalize.Keywords(item.Description) {
			for _, idx := range index[kw] {
				candidateIdx.Add(idx)
			}
		}
		isDup := false
		for idx := range candidateIdx.Iter() {
			if Similar(item, primary[idx]) {
				isDup = true
				break
			}
		}
		if isDup {
			continue
		}

		result = append(result, item)
		primaryKeys.Add(key)
	}
	return result
}

func isRichDescription(desc string) bool {
	return len(normalize.Description(desc)) >= richDescMinLen
}

func isDescendant(parent, child code.Code) bool {
	if parent.RestartIndex != child.RestartIndex || parent.Legacy != child.Legacy {
		return false
	}
	if len(child.Parts) <= len(parent.Parts) {
		return false
	}
	for i, p := range parent.Parts {
		if child.Parts[i] != p {
			return false
		}
	}
	return true
}

func dropIndices(items []model.ServiceItem, drop []bool) []model.ServiceItem {
	result := make([]model.ServiceItem, 0, len(items))
	for i, item := range items {
		if !drop[i] {
			result = append(result, item)
		}
	}
	return result
}

// PairDuplicates drops one item of a parent/child code pair (e.g.
// "6.3" vs "6.3.1") whose descriptions and quantities overlap: the
// child is dropped when the parent already carries a rich
// description, or the parent — usually a section-header row promoted
// to its own item — is dropped when the child's description is the
// richer one (spec §4.6 step 1).
func PairDuplicates(items []model.ServiceItem) []model.ServiceItem {
	index := buildKeywordIndex(items)
	drop := make([]bool, len(items))

	for i, item := range items {
		ci, ok := item.Code()
		if !ok || !ci.Valid() {
			continue
		}
		candidates := sets.NewHashSet[int]()
		for kw := range normalize.Keywords(item.Description) {
			for _, idx := range index[kw] {
				candidates.Add(idx)
			}
		}
		for j := range candidates.Iter() {
			if j == i || drop[i] || drop[j] {
				continue
			}
			cj, ok := items[j].Code()
			if !ok || !cj.Valid() {
				continue
			}
			var parent, child int
			switch {
			case isDescendant(ci, cj):
				parent, child = i, j
			case isDescendant(cj, ci):
				parent, child = j, i
			default:
				continue
			}
			if !quantitiesSimilar(items[parent].Quantity, items[child].Quantity) {
				continue
			}
			if !descriptionsSimilar(items[parent].Description, items[child].Description) {
				continue
			}
			parentRich := isRichDescription(items[parent].Description)
			childRich := isRichDescription(items[child].Description)
			switch {
			case parentRich && !childRich:
				drop[child] = true
			case childRich && !parentRich:
				drop[parent] = true
			}
		}
	}

	return dropIndices(items, drop)
}

func baseCodeKey(c code.Code) string {
	return code.Code{Parts: c.Parts, Suffix: c.Suffix}.String()
}

func sameQuantity(a, b *float64) bool {
	if a == nil && b == nil {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	return *a == *b
}

// RestartPrefixDedupe folds a restart-prefixed item ("Sk-...", never
// the legacy "AD-" form) into its unprefixed sibling of the same
// underlying code when both carry the same unit and quantity, keeping
// whichever has the better description (spec §4.6 step 2).
func RestartPrefixDedupe(items []model.ServiceItem) []model.ServiceItem {
	byBase := map[string][]int{}
	for i, item := range items {
		c, ok := item.Code()
		if !ok || !c.Valid() || c.Legacy || c.RestartIndex != 0 {
			continue
		}
		key := baseCodeKey(c)
		byBase[key] = append(byBase[key], i)
	}

	drop := make([]bool, len(items))
	for i, item := range items {
		c, ok := item.Code()
		if !ok || !c.Valid() || c.Legacy || c.RestartIndex == 0 {
			continue
		}
		for _, j := range byBase[baseCodeKey(c)] {
			if drop[i] || drop[j] {
				continue
			}
			if unit.Normalize(item.Unit) != unit.Normalize(items[j].Unit) {
				continue
			}
			if !sameQuantity(item.Quantity, items[j].Quantity) {
				continue
			}
			if len(normalize.Description(items[j].Description)) >= len(normalize.Description(item.Description)) {
				drop[i] = true
			} else {
				drop[j] = true
			}
		}
	}

	return dropIndices(items, drop)
}

func preferForPlanilha(a, b model.ServiceItem) bool {
	if (a.Quantity != nil) != (b.Quantity != nil) {
		return a.Quantity != nil
	}
	return len(normalize.Description(a.Description)) > len(normalize.Description(b.Description))
}

// WithinPlanilhaDedupe collapses items that share both a planilha and
// an item code, keeping the one with a quantity and, when both or
// neither carry one, the richer description (spec §4.6 step 3).
func WithinPlanilhaDedupe(items []model.ServiceItem) []model.ServiceItem {
	groups := map[string][]int{}
	for i, item := range items {
		if item.PlanilhaID == "" || item.ItemCode == "" {
			continue
		}
		key := item.PlanilhaID + "\x00" + item.ItemCode
		groups[key] = append(groups[key], i)
	}

	drop := make([]bool, len(items))
	for _, idxs := range groups {
		if len(idxs) < 2 {
			continue
		}
		best := idxs[0]
		for _, idx := range idxs[1:] {
			if preferForPlanilha(items[idx], items[best]) {
				drop[best] = true
				best = idx
			} else {
				drop[idx] = true
			}
		}
	}

	return dropIndices(items, drop)
}

// DescriptionUnitDedupe collapses uncoded items (ItemCode == "") that
// normalize to the same description and unit, preferring the one that
// carries a quantity (spec §4.6 step 4).
func DescriptionUnitDedupe(items []model.ServiceItem) []model.ServiceItem {
	groups := map[string][]int{}
	for i, item := range items {
		if item.ItemCode != "" {
			continue
		}
		desc := normalize.Description(item.Description)
		if desc == "" {
			continue
		}
		key := desc + "\x00" + unit.Normalize(item.Unit)
		groups[key] = append(groups[key], i)
	}

	drop := make([]bool, len(items))
	for _, idxs := range groups {
		if len(idxs) < 2 {
			continue
		}
		best := idxs[0]
		for _, idx := range idxs[1:] {
			if items[idx].Quantity != nil && items[best].Quantity == nil {
				drop[best] = true
				best = idx
			} else {
				drop[idx] = true
			}
		}
	}

	return dropIndices(items, drop)
}

// OrphanSuffixCleanup rewrites a "-A"/"-B" disambiguating suffix down
// to its bare base code when that base code does not otherwise exist
// in the same planilha — the suffix was only ever needed to avoid
// colliding with a real sibling, so an orphaned one just adds noise
// (spec §4.6, final cleanup step).
func OrphanSuffixCleanup(items []model.ServiceItem) []model.ServiceItem {
	baseExists := make(map[string]bool, len(items))
	for _, item := range items {
		c, ok := item.Code()
		if !ok || !c.Valid() || c.Suffix != 0 {
			continue
		}
		baseExists[item.PlanilhaID+"\x00"+c.String()] = true
	}

	result := make([]model.ServiceItem, len(items))
	copy(result, items)
	for i, item := range result {
		c, ok := item.Code()
		if !ok || !c.Valid() || c.Suffix == 0 {
			continue
		}
		base := c
		base.Suffix = 0
		if !baseExists[item.PlanilhaID+"\x00"+base.String()] {
			result[i].ItemCode = base.String()
		}
	}
	return result
}
