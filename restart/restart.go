// Package restart implements the restart-segment detector (spec §1,
// §4.6, §8 scenario 3): finding the point where a document's item
// codes start repeating — almost always an addendum appended after
// the original plan — and relabeling every item from that point
// onward with an "Sk-" prefix so the rest of the pipeline treats it
// as a distinct occurrence of the same code tree.
//
// The original implementation's detector itself was not available for
// grounding; this scan is an original design built on the threshold
// constants original_source/backend/config/atestado.py::RestartConfig
// documents (MIN_CODES, MIN_OVERLAP) plus the MinOverlapRatio spec.md
// §6 exposes for host tuning.
package restart

import (
	"github.com/BadWolf1509/licitafacil-sub001/code"
	"github.com/BadWolf1509/licitafacil-sub001/config"
	"github.com/BadWolf1509/licitafacil-sub001/model"
)

const (
	// minCodes mirrors atestado.py::RestartConfig.MIN_CODES: too few
	// coded items for a restart boundary to be distinguishable from
	// ordinary reordering noise.
	minCodes = 8
	// minOverlap mirrors atestado.py::RestartConfig.MIN_OVERLAP: an
	// absolute floor under the ratio threshold so a single incidental
	// repeat in a handful of remaining items doesn't trigger a segment.
	minOverlap = 2
)

func baseCode(c code.Code) string {
	return code.Code{Parts: c.Parts, Suffix: c.Suffix}.String()
}

func countCoded(items []model.ServiceItem) int {
	n := 0
	for _, item := range items {
		if c, ok := item.Code(); ok && c.Valid() && !c.Legacy {
			n++
		}
	}
	return n
}

// findBoundary scans items from start looking for the first index
// whose code already appeared since start, where the remaining run
// from that index overlaps the codes seen so far by at least
// minOverlap codes and minRatio of its own distinct codes.
func findBoundary(items []model.ServiceItem, start int, minRatio float64) (int, bool) {
	prior := map[string]bool{}
	for i := start; i < len(items); i++ {
		c, ok := items[i].Code()
		if !ok || !c.Valid() || c.Legacy {
			continue
		}
		key := baseCode(c)
		if prior[key] {
			overlap, total := remainingOverlap(items[i:], prior)
			if overlap >= minOverlap && float64(overlap)/float64(total) >= minRatio {
				return i, true
			}
		}
		prior[key] = true
	}
	return 0, false
}

func remainingOverlap(remaining []model.ServiceItem, prior map[string]bool) (overlap, total int) {
	seen := map[string]bool{}
	for _, item := range remaining {
		c, ok := item.Code()
		if !ok || !c.Valid() || c.Legacy {
			continue
		}
		key := baseCode(c)
		if seen[key] {
			continue
		}
		seen[key] = true
		total++
		if prior[key] {
			overlap++
		}
	}
	return overlap, total
}

func relabelFrom(items []model.ServiceItem, from, segment int) {
	for i := from; i < len(items); i++ {
		c, ok := items[i].Code()
		if !ok || !c.Valid() || c.Legacy {
			continue
		}
		c.RestartIndex = segment
		items[i].ItemCode = c.String()
	}
}

// Detect finds every restart boundary in items, in document order,
// and relabels each one's codes onward with an incrementing "Sk-"
// prefix (k starting at 2, since the first occurrence carries no
// prefix). Items already "AD-" legacy-prefixed are left untouched —
// the restart prefix is never applied over the legacy form (spec
// §4.6).
func Detect(items []model.ServiceItem, cfg config.RestartConfig) []model.ServiceItem {
	if countCoded(items) < minCodes {
		return items
	}

	out := make([]model.ServiceItem, len(items))
	copy(out, items)

	segment := 1
	start := 0
	for {
		boundary, ok := findBoundary(out, start, cfg.MinOverlapRatio)
		if !ok {
			break
		}
		segment++
		relabelFrom(out, boundary, segment)
		start = boundary
	}
	return out
}
