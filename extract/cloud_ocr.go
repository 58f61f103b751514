package extract

import (
	"context"
	"errors"
	"strings"

	"github.com/BadWolf1509/licitafacil-sub001/capability"
)

// ErrPageLimitExceeded is the error CloudOCR surfaces when the hosted
// service rejects a document for exceeding its page limit (spec
// §4.2); CloudOCR.Extract recognizes it and retries in imageless mode
// itself.
var ErrPageLimitExceeded = errors.New("cloud_ocr: page limit exceeded")

// costPerPageCloudOCR is the expected per-page cost for the hosted
// document-intelligence backend (spec §4.2).
const costPerPageCloudOCR = 0.01

// CloudOCR calls a hosted document-intelligence service (spec §4.2).
type CloudOCR struct {
	Client capability.CloudOCRClient
	// FallbackOnly, when true, means this strategy should only run as
	// a final fallback (cascade Stage 2.7).
	FallbackOnly bool
}

var _ Strategy = (*CloudOCR)(nil)

func (c *CloudOCR) Name() Method         { return MethodCloudOCR }
func (c *CloudOCR) IsAvailable() bool    { return c.Client != nil }
func (c *CloudOCR) CostPerPage() float64 { return costPerPageCloudOCR }

func (c *CloudOCR) Extract(ctx Context, file Input, opts Options) (ExtractionResult, error) {
	if !c.IsAvailable() {
		return ExtractionResult{Success: false, Method: c.Name()}, nil
	}
	if ctx.cancelled() {
		return cancelledResult(c.Name()), nil
	}

	result, err := c.processPages(ctx, file, opts.Imageless)
	if errors.Is(err, ErrPageLimitExceeded) && !opts.Imageless {
		result, err = c.processPages(ctx, file, true)
	}
	if err == errCancelled {
		return cancelledResult(c.Name()), nil
	}
	if err != nil {
		return ExtractionResult{
			Success: false,
			Method:  c.Name(),
			Errors:  []error{err},
		}, nil
	}
	return result, nil
}

func (c *CloudOCR) processPages(ctx Context, file Input, imageless bool) (ExtractionResult, error) {
	var texts []string
	var tables []Table
	var confSum float64

	for i, page := range file.Pages {
		if ctx.cancelled() {
			return ExtractionResult{}, errCancelled
		}
		r, err := c.Client.ProcessPage(context.Background(), page, imageless)
		if err != nil {
			return ExtractionResult{}, err
		}
		texts = append(texts, r.Text)
		confSum += r.Confidence
		for _, t := range r.Tables {
			tables = append(tables, Table(t))
		}
		ctx.report(i+1, len(file.Pages), "processing page")
	}

	var mean float64
	if len(file.Pages) > 0 {
		mean = confSum / float64(len(file.Pages))
	}

	return ExtractionResult{
		Text:           strings.Join(texts, "\n"),
		Tables:         tables,
		Success:        mean > 0,
		Confidence:     mean,
		Method:         c.Name(),
		PagesProcessed: len(file.Pages),
		CostEstimate:   float64(len(file.Pages)) * costPerPageCloudOCR,
		Metadata:       map[string]any{"imageless": imageless},
	}, nil
}
