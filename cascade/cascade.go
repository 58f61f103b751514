// Package cascade implements the CascadeRunner component (spec §4.8):
// a cost/quality-gated state machine that tries extraction strategies
// in increasing order of cost, stopping at the first one whose result
// clears its threshold.
package cascade

import (
	"github.com/BadWolf1509/licitafacil-sub001/config"
	"github.com/BadWolf1509/licitafacil-sub001/extract"
	"github.com/BadWolf1509/licitafacil-sub001/model"
	"github.com/BadWolf1509/licitafacil-sub001/quality"
)

// State names one of the CascadeRunner's states (spec §4.8).
type State string

const (
	StateQualityCheck State = "quality_check"
	StateNativeText    State = "native_text"
	StateLocalOCR      State = "local_ocr"
	StateCloudOCR      State = "cloud_ocr"
	StateGridOCR       State = "grid_ocr"
	StateVisionAI      State = "vision_ai"
	StateDone          State = "done"
	StateFailed        State = "failed"
)

// largeImagePixels sets Stage 2.5's "large page" gate: hasLargeImages
// counts a page as large when its encoded image is longer than half
// this many bytes. Pixel dimensions are not decoded.
const largeImagePixels = 3_000_000

// Result is what the Runner produces for one document: the winning
// extraction, the stage that accepted it (or the best partial result),
// and the ordered trail of states visited for the audit field
// AttestationExtraction.StagesExecuted.
type Result struct {
	Extraction extract.ExtractionResult
	Accepted   bool
	States     []State
}

// Runner sequences Strategy implementations per the gating rules in
// spec §4.8, consulting quality.ComputeStats for each stage's
// qty_ratio and quality.Score for the final confidence.
// Grounded on spec.md §4.8's state machine; the escalate/accept
// decision at each step is structurally the same shape as
// Tangerg/lynx/flow's Branch.Run (run a node, resolve a branch from
// its output), adapted here into an explicit loop rather than a
// branch-node graph because the set of strategies to try is determined
// by runtime availability (PaidServicesEnabled, IsAvailable) rather
// than a fixed topology known at construction time.
type Runner struct {
	NativeText extract.Strategy
	LocalOCR   extract.Strategy
	CloudOCR   extract.Strategy
	GridOCR    extract.Strategy
	VisionAI   extract.Strategy

	Config config.Config
}

// cloudOCRFallbackOnly reads extract.CloudOCR's own FallbackOnly flag
// (spec §4.8 Stage 2.7: "CloudOCR is in fallback-only mode") rather
// than duplicating it on Runner.
func cloudOCRFallbackOnly(s extract.Strategy) bool {
	c, ok := s.(*extract.CloudOCR)
	return ok && c.FallbackOnly
}

func qtyRatio(items []model.ServiceItem) float64 {
	stats := quality.ComputeStats(items)
	if stats.Total == 0 {
		return 0
	}
	return float64(stats.WithQty) / float64(stats.Total)
}

// mergePreferNew merges prior into current, keeping every current
// service but backfilling a quantity from prior when current lacks
// one and prior has it for the same item code (spec §4.8 Stage 2:
// "preferring the new source when it carries quantities the prior
// lacked"). When both current and prior carry a non-null quantity for
// the same item — a genuine tie — preferPriorOnTie decides the
// winner: spec §9's open question resolves this in NativeText's favor
// specifically, so the Stage 2 call (prior=NativeText) passes true;
// every other merge keeps the newer stage's quantity on a tie, since
// there prior is itself an earlier OCR pass rather than NativeText.
func mergePreferNew(current, prior []model.ServiceItem, preferPriorOnTie bool) []model.ServiceItem {
	if len(prior) == 0 {
		return current
	}
	if len(current) == 0 {
		return prior
	}

	byCode := make(map[string]model.ServiceItem, len(prior))
	for _, item := range prior {
		if item.ItemCode != "" {
			byCode[item.ItemCode] = item
		}
	}

	merged := make([]model.ServiceItem, len(current))
	seen := make(map[string]bool, len(current))
	for i, item := range current {
		p, hasPrior := byCode[item.ItemCode]
		switch {
		case item.Quantity == nil && hasPrior && p.Quantity != nil:
			item.Quantity = p.Quantity
		case preferPriorOnTie && item.Quantity != nil && hasPrior && p.Quantity != nil:
			item.Quantity = p.Quantity
		}
		merged[i] = item
		if item.ItemCode != "" {
			seen[item.ItemCode] = true
		}
	}
	for _, item := range prior {
		if item.ItemCode != "" && !seen[item.ItemCode] {
			merged = append(merged, item)
		}
	}
	return merged
}

// hasLargeImages reports whether any page in the input is large enough
// to justify a free local-OCR pass per Stage 2.5's gating condition.
func hasLargeImages(input extract.Input) bool {
	for _, page := range input.Pages {
		if len(page.Bytes) > largeImagePixels/2 {
			return true
		}
	}
	return false
}

// Run drives the state machine from QualityCheck to Done or Failed,
// returning the first accepted stage's result or, failing that, the
// best partial result seen along the way (spec §4.8).
func (r *Runner) Run(ctx extract.Context, input extract.Input) Result {
	result := Result{States: []State{StateQualityCheck}}

	var best extract.ExtractionResult
	bestQty := -1.0
	consider := func(res extract.ExtractionResult) {
		if q := qtyRatio(res.Services); q > bestQty {
			bestQty = q
			best = res
		}
	}

	opts := extract.Options{DPI: r.Config.OCR.DPI, RetryDPI: r.Config.OCR.RetryDPI, RetryDPIHard: r.Config.OCR.RetryDPIHard}

	// Stage 1: NativeText, free.
	result.States = append(result.States, StateNativeText)
	var native extract.ExtractionResult
	if r.NativeText != nil && r.NativeText.IsAvailable() {
		res, err := r.NativeText.Extract(ctx, input, opts)
		if err == nil {
			native = res
			consider(res)
			if qtyRatio(res.Services) >= r.Config.Cascade.Stage1QtyThreshold {
				return accept(result, res, StateNativeText)
			}
		}
	}

	var ocr extract.ExtractionResult
	ocrRan := false

	// Stage 2: CloudOCR, low cost — skipped entirely in fallback-only
	// mode until Stage 2.7. CloudOCR.Extract already retries in
	// imageless mode on ErrPageLimitExceeded before returning, so the
	// cascade only needs to judge the result it comes back with.
	if r.Config.PaidServicesEnabled && r.CloudOCR != nil && !cloudOCRFallbackOnly(r.CloudOCR) && r.CloudOCR.IsAvailable() {
		result.States = append(result.States, StateCloudOCR)
		res, err := r.CloudOCR.Extract(ctx, input, opts)
		if err == nil {
			merged := res
			merged.Services = mergePreferNew(res.Services, native.Services, true)
			ocr = merged
			ocrRan = true
			consider(merged)
			if qtyRatio(merged.Services) >= r.Config.Cascade.Stage2QtyThreshold {
				return accept(result, merged, StateCloudOCR)
			}
		}
	}

	// Stage 2.5: LocalOCR, free — only when pages are large and what we
	// have so far is empty or low-quality.
	lowQuality := !ocrRan || qtyRatio(ocr.Services) < r.Config.Cascade.Stage2QtyThreshold
	if lowQuality && hasLargeImages(input) && r.LocalOCR != nil && r.LocalOCR.IsAvailable() {
		result.States = append(result.States, StateLocalOCR)
		res, err := r.LocalOCR.Extract(ctx, input, opts)
		if err == nil {
			merged := res
			merged.Services = mergePreferNew(res.Services, ocr.Services, false)
			ocr = merged
			ocrRan = true
			consider(merged)
			if qtyRatio(merged.Services) >= r.Config.Cascade.Stage2QtyThreshold {
				return accept(result, merged, StateLocalOCR)
			}
		}
	}

	// Stage 2.6: GridOCR, free — when prior OCR produced fewer items
	// than the table confidence threshold would suggest.
	var grid extract.ExtractionResult
	gridRan := false
	if float64(len(ocr.Services)) < r.Config.Table.ConfidenceThreshold*float64(r.Config.OCR.PageMinItems*10) && r.GridOCR != nil && r.GridOCR.IsAvailable() {
		result.States = append(result.States, StateGridOCR)
		res, err := r.GridOCR.Extract(ctx, input, opts)
		if err == nil {
			grid = res
			gridRan = true
			consider(res)
			if qtyRatio(res.Services) >= r.Config.Cascade.Stage2QtyThreshold {
				return accept(result, res, StateGridOCR)
			}
		}
	}

	// Stage 2.7: CloudOCR fallback retry — only in fallback-only mode,
	// and only when GridOCR's quality was low.
	if r.Config.PaidServicesEnabled && r.CloudOCR != nil && cloudOCRFallbackOnly(r.CloudOCR) && (!gridRan || qtyRatio(grid.Services) < r.Config.Cascade.Stage2QtyThreshold) && r.CloudOCR.IsAvailable() {
		result.States = append(result.States, StateCloudOCR)
		res, err := r.CloudOCR.Extract(ctx, input, opts)
		if err == nil {
			merged := res
			merged.Services = mergePreferNew(res.Services, grid.Services, false)
			consider(merged)
			if qtyRatio(merged.Services) >= r.Config.Cascade.Stage2QtyThreshold {
				return accept(result, merged, StateCloudOCR)
			}
		}
	}

	// Stage 3: VisionAI, high cost.
	if r.Config.PaidServicesEnabled && r.VisionAI != nil && r.VisionAI.IsAvailable() {
		result.States = append(result.States, StateVisionAI)
		res, err := r.VisionAI.Extract(ctx, input, opts)
		if err == nil {
			consider(res)
			if qtyRatio(res.Services) >= r.Config.Cascade.Stage3QtyThreshold {
				return accept(result, res, StateVisionAI)
			}
		}
	}

	// No stage cleared its threshold: return the best partial result,
	// success only if its overall confidence reaches 0.5.
	best.Confidence = quality.Score(quality.ComputeStats(best.Services))
	best.Success = best.Confidence >= 0.5
	result.Extraction = best
	result.Accepted = best.Success
	if best.Success {
		result.States = append(result.States, StateDone)
	} else {
		result.States = append(result.States, StateFailed)
	}
	return result
}

func accept(result Result, res extract.ExtractionResult, _ State) Result {
	res.Confidence = quality.Score(quality.ComputeStats(res.Services))
	res.Success = true
	result.Extraction = res
	result.Accepted = true
	result.States = append(result.States, StateDone)
	return result
}
