// Package quality scores a batch of extracted service items and
// decides whether the cascade should escalate to a more expensive
// strategy (spec §4.7). Every threshold here is a deliberate,
// documented constant rather than a tuned magic number.
package quality

import (
	"unicode"

	"github.com/BadWolf1509/licitafacil-sub001/model"
	"github.com/BadWolf1509/licitafacil-sub001/normalize"
)

// Stats summarizes one batch of items (spec §4.7 step 1, grounded on
// quality_assessor.py::compute_servicos_stats).
type Stats struct {
	Total          int
	WithItem       int
	WithUnit       int
	WithQty        int
	DuplicateRatio float64
}

// ComputeStats tallies item/unit/quantity coverage and the ratio of
// items sharing a normalized description with another item.
func ComputeStats(items []model.ServiceItem) Stats {
	total := len(items)
	if total == 0 {
		return Stats{}
	}

	var withItem, withUnit, withQty int
	counts := make(map[string]int, total)
	for _, item := range items {
		if item.ItemCode != "" {
			withItem++
		}
		if item.Unit != "" {
			withUnit++
		}
		if item.Quantity != nil && *item.Quantity != 0 {
			withQty++
		}
		if desc := normalize.Description(item.Description); desc != "" {
			counts[desc]++
		}
	}

	duplicates := 0
	for _, count := range counts {
		if count > 1 {
			duplicates += count - 1
		}
	}

	return Stats{
		Total:          total,
		WithItem:       withItem,
		WithUnit:       withUnit,
		WithQty:        withQty,
		DuplicateRatio: float64(duplicates) / float64(total),
	}
}

// DescriptionQuality summarizes description text shape (spec §4.7
// step 2, grounded on quality_assessor.py::compute_description_quality).
type DescriptionQuality struct {
	AvgLen     float64
	ShortRatio float64
	AlphaRatio float64
}

const shortDescLen = 12

// ComputeDescriptionQuality measures average description length, the
// share of descriptions shorter than shortDescLen, and the average
// letters-to-alphanumerics ratio (low values suggest OCR garbling
// numbers and punctuation into the description).
func ComputeDescriptionQuality(items []model.ServiceItem) DescriptionQuality {
	total := len(items)
	if total == 0 {
		return DescriptionQuality{}
	}

	var lengths []int
	var alphaRatios []float64
	shortCount := 0

	for _, item := range items {
		desc := item.Description
		if desc == "" {
			shortCount++
			continue
		}
		length := len([]rune(desc))
		lengths = append(lengths, length)
		if length < shortDescLen {
			shortCount++
		}

		var letters, alnum int
		for _, r := range desc {
			if unicode.IsLetter(r) {
				letters++
			}
			if unicode.IsLetter(r) || unicode.IsDigit(r) {
				alnum++
			}
		}
		if alnum > 0 {
			alphaRatios = append(alphaRatios, float64(letters)/float64(alnum))
		}
	}

	var avgLen, alphaRatio float64
	if len(lengths) > 0 {
		sum := 0
		for _, l := range lengths {
			sum += l
		}
		avgLen = float64(sum) / float64(len(lengths))
	}
	if len(alphaRatios) > 0 {
		sum := 0.0
		for _, r := range alphaRatios {
			sum += r
		}
		alphaRatio = sum / float64(len(alphaRatios))
	}

	return DescriptionQuality{
		AvgLen:     avgLen,
		ShortRatio: float64(shortCount) / float64(total),
		AlphaRatio: alphaRatio,
	}
}

// NoiseThresholds configures the five OCR-noise checks
// (spec §4.7 step 3). The zero value is invalid; use DefaultThresholds.
type NoiseThresholds struct {
	MinUnitRatio   float64
	MinQtyRatio    float64
	MinAvgDescLen  float64
	MaxShortRatio  float64
	MinAlphaRatio  float64
	MinFailures    int
}

// DefaultThresholds are the exact constants from
// quality_assessor.py::is_ocr_noisy's environment-variable defaults.
func DefaultThresholds() NoiseThresholds {
	return NoiseThresholds{
		MinUnitRatio:  0.5,
		MinQtyRatio:   0.35,
		MinAvgDescLen: 14.0,
		MaxShortRatio: 0.45,
		MinAlphaRatio: 0.45,
		MinFailures:   2,
	}
}

// NoiseReport is the verdict and contributing reasons from IsNoisy.
type NoiseReport struct {
	Noisy    bool
	Failures int
	Reasons  map[string]float64
}

// IsNoisy flags a batch as OCR-noisy once at least MinFailures of the
// five checks (unit ratio, quantity ratio, average description
// length, short-description ratio, letters-to-alphanumerics ratio)
// fail against thresholds (spec §4.7 step 3, grounded verbatim on
// quality_assessor.py::is_ocr_noisy).
func IsNoisy(items []model.ServiceItem, thresholds NoiseThresholds) NoiseReport {
	stats := ComputeStats(items)
	desc := ComputeDescriptionQuality(items)
	total := stats.Total
	if total == 0 {
		total = 1
	}
	unitRatio := float64(stats.WithUnit) / float64(total)
	qtyRatio := float64(stats.WithQty) / float64(total)

	failures := 0
	reasons := map[string]float64{}

	if unitRatio < thresholds.MinUnitRatio {
		failures++
		reasons["unit_ratio"] = unitRatio
	}
	if qtyRatio < thresholds.MinQtyRatio {
		failures++
		reasons["qty_ratio"] = qtyRatio
	}
	if desc.AvgLen < thresholds.MinAvgDescLen {
		failures++
		reasons["avg_desc_len"] = desc.AvgLen
	}
	if desc.ShortRatio > thresholds.MaxShortRatio {
		failures++
		reasons["short_desc_ratio"] = desc.ShortRatio
	}
	if desc.AlphaRatio < thresholds.MinAlphaRatio {
		failures++
		reasons["alpha_ratio"] = desc.AlphaRatio
	}

	return NoiseReport{
		Noisy:    failures >= thresholds.MinFailures,
		Failures: failures,
		Reasons:  reasons,
	}
}

// minItemsForConfidence is the item count below which a batch is
// penalized for being implausibly small for a real attestation
// (spec §4.7 step 4).
const minItemsForConfidence = 25

// Score computes the overall confidence score for a batch: it starts
// at 1.0 and deducts 0.2 for low unit coverage, 0.2 for low quantity
// coverage, 0.2 for low item-code coverage, 0.1 for high duplication,
// and 0.2 for an implausibly small item count, clamped to [0, 1]
// (spec §4.7 step 4, grounded verbatim on
// quality_assessor.py::compute_quality_score).
func Score(stats Stats) float64 {
	if stats.Total == 0 {
		return 0
	}

	score := 1.0
	total := float64(stats.Total)

	if float64(stats.WithUnit)/total < 0.8 {
		score -= 0.2
	}
	if float64(stats.WithQty)/total < 0.8 {
		score -= 0.2
	}
	if float64(stats.WithItem)/total < 0.4 {
		score -= 0.2
	}
	if stats.DuplicateRatio > 0.35 {
		score -= 0.1
	}
	if stats.Total < minItemsForConfidence {
		score -= 0.2
	}

	switch {
	case score < 0:
		return 0
	case score > 1:
		return 1
	default:
		return score
	}
}
