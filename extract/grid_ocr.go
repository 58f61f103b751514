package extract

import (
	"context"
	"strings"

	"github.com/BadWolf1509/licitafacil-sub001/capability"
)

// GridDetector performs morphological table detection on one page
// (line segments → grid) and returns each cell's recognized text,
// row-major. The host supplies the concrete image-processing
// implementation; this package only orchestrates the cascade contract
// around it.
type GridDetector interface {
	DetectGrids(ctx context.Context, page capability.PageImage) ([]Table, error)
}

// GridOCR performs morphological table detection (line segments →
// grid → per-cell OCR), used when other OCRs fail on image-heavy
// pages (spec §4.2). Free.
type GridOCR struct {
	Detector GridDetector
}

var _ Strategy = (*GridOCR)(nil)

func (g *GridOCR) Name() Method         { return MethodGridOCR }
func (g *GridOCR) IsAvailable() bool    { return g.Detector != nil }
func (g *GridOCR) CostPerPage() float64 { return 0 }

func (g *GridOCR) Extract(ctx Context, file Input, _ Options) (ExtractionResult, error) {
	if !g.IsAvailable() {
		return ExtractionResult{Success: false, Method: g.Name()}, nil
	}
	if ctx.cancelled() {
		return cancelledResult(g.Name()), nil
	}

	var tables []Table
	var texts []string

	for i, page := range file.Pages {
		if ctx.cancelled() {
			return cancelledResult(g.Name()), nil
		}
		found, err := g.Detector.DetectGrids(context.Background(), page)
		if err != nil {
			continue
		}
		tables = append(tables, found...)
		for _, t := range found {
			for _, row := range t {
				texts = append(texts, strings.Join(row, " "))
			}
		}
		ctx.report(i+1, len(file.Pages), "detecting grids")
	}

	return ExtractionResult{
		Text:           strings.Join(texts, "\n"),
		Tables:         tables,
		Success:        len(tables) > 0,
		Confidence:     confidenceForGrid(tables),
		Method:         g.Name(),
		PagesProcessed: len(file.Pages),
	}, nil
}

func confidenceForGrid(tables []Table) float64 {
	if len(tables) == 0 {
		return 0
	}
	rows := 0
	for _, t := range tables {
		rows += len(t)
	}
	if rows >= 10 {
		return 0.6
	}
	return 0.4
}
