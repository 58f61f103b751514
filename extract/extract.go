// Package extract implements the ExtractorStrategies component (spec
// §4.2): five swappable extraction backends sharing one
// ExtractionResult contract.
package extract

import (
	"github.com/BadWolf1509/licitafacil-sub001/capability"
	"github.com/BadWolf1509/licitafacil-sub001/model"
)

// Method names the strategy that produced an ExtractionResult; these
// double as model.Source values and as AttestationExtraction's
// pipeline_used audit field.
type Method string

const (
	MethodNativeText Method = "native_text"
	MethodLocalOCR   Method = "local_ocr"
	MethodCloudOCR   Method = "cloud_ocr"
	MethodVisionAI   Method = "vision_ai"
	MethodGridOCR    Method = "grid_ocr"
)

// Table is a row-major grid of cell text recovered by an extractor
// that yields structured tables, consumed by package table.
type Table [][]string

// ExtractionResult is the contract every strategy returns (spec
// §4.2).
type ExtractionResult struct {
	Text           string
	Tables         []Table
	Services       []model.ServiceItem
	Success        bool
	Confidence     float64
	Method         Method
	PagesProcessed int
	CostEstimate   float64
	Errors         []error
	Metadata       map[string]any
}

// Options carries the subset of config.Config and per-call knobs each
// strategy needs; kept narrow so strategies don't depend on the whole
// Config.
type Options struct {
	DPI          int
	RetryDPI     int
	RetryDPIHard int
	Imageless    bool // ask CloudOCR to retry without image payload
}

// Strategy is the contract every extraction backend implements (spec
// §4.2).
type Strategy interface {
	Name() Method
	// IsAvailable reports whether the strategy can run at all (e.g. a
	// cloud client was injected).
	IsAvailable() bool
	// CostPerPage is the strategy's expected cost per page, used by
	// the Runner's cost-aware decisions.
	CostPerPage() float64
	Extract(ctx Context, file Input, opts Options) (ExtractionResult, error)
}

// Input is the document to extract from: either raw file bytes (for
// NativeText) or a set of already-rasterized page images.
type Input struct {
	FileBytes []byte
	Pages     []capability.PageImage
}

// Context bundles the cooperative cancellation and progress
// capabilities every strategy must honor at page granularity (spec
// §5).
type Context struct {
	Cancel   capability.CancelSignal
	Progress capability.Progress
	Stage    string
}

func (c Context) cancelled() bool {
	return c.Cancel != nil && c.Cancel()
}

func (c Context) report(current, total int, message string) {
	if c.Progress != nil {
		c.Progress(current, total, c.Stage, message)
	}
}

// cancelledResult builds the uniform "cancelled" ExtractionResult
// every strategy returns promptly when its token fires (spec §4.2).
func cancelledResult(method Method) ExtractionResult {
	return ExtractionResult{
		Success: false,
		Method:  method,
		Errors:  []error{errCancelled},
	}
}
