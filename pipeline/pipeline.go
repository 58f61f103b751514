// Package pipeline implements the Pipeline component (spec §4.9): the
// end-to-end driver that runs TextExtraction, TableExtraction,
// AIAnalysis, TextEnrichment, PostProcess, and Finalization in strict
// order over one document.
package pipeline

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/BadWolf1509/licitafacil-sub001/capability"
	"github.com/BadWolf1509/licitafacil-sub001/cascade"
	"github.com/BadWolf1509/licitafacil-sub001/config"
	"github.com/BadWolf1509/licitafacil-sub001/dedup"
	"github.com/BadWolf1509/licitafacil-sub001/extract"
	"github.com/BadWolf1509/licitafacil-sub001/filter"
	"github.com/BadWolf1509/licitafacil-sub001/model"
	"github.com/BadWolf1509/licitafacil-sub001/quality"
	"github.com/BadWolf1509/licitafacil-sub001/reconstruct"
	"github.com/BadWolf1509/licitafacil-sub001/restart"
	"github.com/BadWolf1509/licitafacil-sub001/sniff"
	"github.com/BadWolf1509/licitafacil-sub001/table"
	"github.com/BadWolf1509/licitafacil-sub001/xerr"
)

// Stage names one of the Pipeline's six ordered phases (spec §4.9),
// reported through capability.Progress and recorded in
// AttestationExtraction.StagesExecuted alongside the cascade's own
// internal states.
type Stage string

const (
	StageTextExtraction  Stage = "text_extraction"
	StageTableExtraction Stage = "table_extraction"
	StageAIAnalysis      Stage = "ai_analysis"
	StageTextEnrichment  Stage = "text_enrichment"
	StagePostProcess     Stage = "post_process"
	StageFinalization    Stage = "finalization"
)

// Input is everything the Pipeline needs for one document. Extension
// and FileBytes are required for file-signature validation (spec §6);
// Pages is required when the caller has already rasterized the
// document. Contratante/DataEmissao/DescricaoServico/Quantidade/
// Unidade are header-level attestation fields the Pipeline does not
// itself derive — no component in spec §4 extracts them, so the host
// supplies them verbatim and the Pipeline only transports them into
// the final AttestationExtraction.
type Input struct {
	Extension string
	FileBytes []byte
	Pages     []capability.PageImage

	Contratante      string
	DataEmissao      time.Time
	DescricaoServico string
	Quantidade       *float64
	Unidade          string
}

// Pipeline drives one CascadeRunner through the six ordered stages of
// spec §4.9. Grounded on spec.md §4.9's stage ordering and
// Tangerg/lynx/flow's Flow.Then() chaining idiom; unlike Flow[I,O],
// each stage here has a different concrete shape (raw bytes → text →
// tables → merged services → enriched services → filtered services →
// AttestationExtraction) fixed by this one pipeline, so the stages are
// written inline, in order, in the one Run method instead of a generic
// chain built from reusable Node values.
type Pipeline struct {
	Cascade cascade.Runner
	Config  config.Config
}

// New builds a Pipeline from a Config and the set of strategies to
// hand to its CascadeRunner.
func New(cfg config.Config, runner cascade.Runner) *Pipeline {
	runner.Config = cfg
	return &Pipeline{Cascade: runner, Config: cfg}
}

func tablesToTableType(tables []extract.Table) []table.Table {
	out := make([]table.Table, len(tables))
	for i, t := range tables {
		rows := make(table.Table, len(t))
		for j, row := range t {
			rows[j] = table.Row(row)
		}
		out[i] = rows
	}
	return out
}

func report(ctx extract.Context, stage Stage, message string) {
	if ctx.Progress != nil {
		ctx.Progress(0, 0, string(stage), message)
	}
}

func cancelled(ctx extract.Context) bool {
	return ctx.Cancel != nil && ctx.Cancel()
}

// Run executes all six stages and returns the finished
// AttestationExtraction, or a structured *xerr.Error for InvalidInput,
// Cancelled, QualityRejected, or InternalInvariant (spec §7) — the
// only kinds that ever reach a caller.
func (p *Pipeline) Run(ctx extract.Context, in Input) (model.AttestationExtraction, error) {
	if in.Extension != "" && len(in.FileBytes) > 0 {
		if err := sniff.Validate(in.Extension, in.FileBytes); err != nil {
			return model.AttestationExtraction{}, xerr.Wrap(xerr.InvalidInput, "validate", err)
		}
	}

	var states []string

	// Stage 1: TextExtraction. The CascadeRunner also runs VisionAI
	// internally when earlier stages fail every threshold; when it
	// does, the AIAnalysis stage below becomes a no-op top-up rather
	// than a redundant full pass.
	report(ctx, StageTextExtraction, "running extraction cascade")
	cascadeResult := p.Cascade.Run(ctx, extract.Input{FileBytes: in.FileBytes, Pages: in.Pages})
	for _, s := range cascadeResult.States {
		states = append(states, StageTextExtraction.withState(s))
	}
	if cancelled(ctx) {
		return model.AttestationExtraction{}, xerr.New(xerr.Cancelled, string(StageTextExtraction), "cancelled during text extraction")
	}

	rawText := cascadeResult.Extraction.Text
	items := cascadeResult.Extraction.Services
	costEstimate := cascadeResult.Extraction.CostEstimate
	method := string(cascadeResult.Extraction.Method)

	// Stage 2: TableExtraction.
	report(ctx, StageTableExtraction, "recovering tables")
	for ti, t := range tablesToTableType(cascadeResult.Extraction.Tables) {
		recovered := table.Recover(t, p.Config.Table)
		planilhaID := fmt.Sprintf("planilha-%d", ti)
		for i := range recovered {
			recovered[i].PlanilhaID = planilhaID
		}
		items = dedup.MergePreferPrimary(recovered, items)
	}
	if cancelled(ctx) {
		return model.AttestationExtraction{}, xerr.New(xerr.Cancelled, string(StageTableExtraction), "cancelled during table extraction")
	}

	// Stage 3: AIAnalysis. Only tops up with a direct VisionAI pass
	// when the cascade did not already accept at an earlier stage and
	// quantity coverage is still below the vision threshold.
	report(ctx, StageAIAnalysis, "checking whether a vision pass is warranted")
	cascadeRanVision := false
	for _, s := range cascadeResult.States {
		if s == cascade.StateVisionAI {
			cascadeRanVision = true
		}
	}
	if !cascadeResult.Accepted && !cascadeRanVision && needsVisionTopUp(items, p.Config) && p.Config.PaidServicesEnabled && p.Cascade.VisionAI != nil && p.Cascade.VisionAI.IsAvailable() {
		states = append(states, StageAIAnalysis.withState(cascade.StateVisionAI))
		visionOpts := extract.Options{DPI: p.Config.OCR.DPI, RetryDPI: p.Config.OCR.RetryDPI}
		res, err := p.Cascade.VisionAI.Extract(ctx, extract.Input{FileBytes: in.FileBytes, Pages: in.Pages}, visionOpts)
		if err == nil {
			items = dedup.MergePreferPrimary(items, res.Services)
			costEstimate += res.CostEstimate
			if method == "" {
				method = string(extract.MethodVisionAI)
			}
		}
	}
	if cancelled(ctx) {
		return model.AttestationExtraction{}, xerr.New(xerr.Cancelled, string(StageAIAnalysis), "cancelled during AI analysis")
	}

	// Stage 4: TextEnrichment. Restart-segment detection runs first so
	// the Reconstructor already sees each item's correct "Sk-" prefix
	// when it picks which occurrence of a repeated code to read a
	// description from (spec §4.4 steps 2-3).
	report(ctx, StageTextEnrichment, "detecting restart segments and reconstructing descriptions")
	items = restart.Detect(items, p.Config.Restart)
	items = reconstruct.Reconstruct(items, rawText)
	if cancelled(ctx) {
		return model.AttestationExtraction{}, xerr.New(xerr.Cancelled, string(StageTextEnrichment), "cancelled during text enrichment")
	}

	// Stage 5: PostProcess.
	report(ctx, StagePostProcess, "filtering and deduplicating")
	items = filter.ClassificationPaths(items)
	items = filter.SummaryRows(items)
	items = filter.ByItemLength(items, 0.6, 10)
	if dominantLen, lenRatio := filter.DominantItemLength(items); lenRatio > 0 && dominantLen >= 3 {
		if dominantPrefix, prefixRatio := filter.DominantPrefix(items); prefixRatio > 0 {
			items = filter.RepairMissingPrefix(items, dominantPrefix)
		}
	}
	items = filter.ByItemPrefix(items)
	// Deduplicator strategies run in spec §4.6 order: pair duplicates,
	// restart-prefix folding, within-planilha, description+unit, the
	// keyword-similarity passes already in place, then the final
	// orphan-suffix cleanup.
	items = dedup.PairDuplicates(items)
	items = dedup.RestartPrefixDedupe(items)
	items = dedup.WithinPlanilhaDedupe(items)
	items = dedup.DescriptionUnitDedupe(items)
	items = dedup.RemoveOrphans(items)
	items = dedup.ByDescription(items)
	items = dedup.ByKey(items)
	items = dedup.OrphanSuffixCleanup(items)
	if cancelled(ctx) {
		return model.AttestationExtraction{}, xerr.New(xerr.Cancelled, string(StagePostProcess), "cancelled during post-processing")
	}

	// Stage 6: Finalization.
	report(ctx, StageFinalization, "finalizing")
	items = model.Sort(items)
	stats := quality.ComputeStats(items)
	confidence := quality.Score(stats)

	result := model.AttestationExtraction{
		RunID:            uuid.New(),
		Contratante:      in.Contratante,
		DataEmissao:      in.DataEmissao,
		DescricaoServico: in.DescricaoServico,
		Quantidade:       in.Quantidade,
		Unidade:          in.Unidade,
		Servicos:         items,
		TextoExtraido:    rawText,
		PipelineUsed:     method,
		StagesExecuted:   states,
		Confidence:       confidence,
		CostEstimate:     costEstimate,
	}

	if err := result.CheckInvariants(); err != nil {
		return model.AttestationExtraction{}, xerr.Wrap(xerr.InternalInvariant, string(StageFinalization), err)
	}

	if confidence < 0.5 && !cascadeResult.Accepted {
		return result, xerr.New(xerr.QualityRejected, string(StageFinalization), "no stage met its quality threshold")
	}

	return result, nil
}

func needsVisionTopUp(items []model.ServiceItem, cfg config.Config) bool {
	stats := quality.ComputeStats(items)
	if stats.Total == 0 {
		return true
	}
	return float64(stats.WithQty)/float64(stats.Total) < cfg.Cascade.Stage3QtyThreshold
}

func (s Stage) withState(state cascade.State) string {
	return string(s) + ":" + string(state)
}
