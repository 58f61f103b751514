package extract

import (
	"context"
	"strings"

	"golang.org/x/sync/errgroup"

	lynxsync "github.com/Tangerg/lynx/pkg/sync"

	"github.com/BadWolf1509/licitafacil-sub001/capability"
)

// maxConcurrentPages bounds simultaneous page-level OCR calls, the
// way Tangerg/lynx/pkg/sync.Limiter bounds goroutine fan-out.
const maxConcurrentPages = 4

// LocalOCR recognizes text with a host-injected local OCR backend
// (spec §4.2), one call per page of file.Pages, and emits the joined
// page text and the mean page confidence. Free. The pages arrive
// already rasterized: LocalOCR does no rasterization or preprocessing
// and never re-runs a page at a higher DPI; opts.DPI is only recorded
// in the result metadata.
type LocalOCR struct {
	Client capability.LocalOCRClient
}

var _ Strategy = (*LocalOCR)(nil)

func (l *LocalOCR) Name() Method        { return MethodLocalOCR }
func (l *LocalOCR) IsAvailable() bool   { return l.Client != nil }
func (l *LocalOCR) CostPerPage() float64 { return 0 }

func (l *LocalOCR) Extract(ctx Context, file Input, opts Options) (ExtractionResult, error) {
	if !l.IsAvailable() {
		return ExtractionResult{Success: false, Method: l.Name()}, nil
	}
	if ctx.cancelled() {
		return cancelledResult(l.Name()), nil
	}

	texts := make([]string, len(file.Pages))
	confidences := make([]float64, len(file.Pages))
	tables := make([]Table, 0)

	limiter := lynxsync.NewLimiter(maxConcurrentPages)
	group, gctx := errgroup.WithContext(context.Background())

	for i, page := range file.Pages {
		i, page := i, page
		group.Go(func() error {
			if ctx.cancelled() {
				return errCancelled
			}
			limiter.Acquire()
			defer limiter.Release()

			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}

			result, err := l.Client.RecognizePage(gctx, page)
			if err != nil {
				return err
			}
			texts[i] = result.Text
			confidences[i] = result.Confidence
			ctx.report(i+1, len(file.Pages), "recognizing page")
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		if err == errCancelled {
			return cancelledResult(l.Name()), nil
		}
		return ExtractionResult{
			Success: false,
			Method:  l.Name(),
			Errors:  []error{err},
		}, nil
	}

	var mean float64
	for _, c := range confidences {
		mean += c
	}
	if len(confidences) > 0 {
		mean /= float64(len(confidences))
	}

	for _, page := range file.Pages {
		if result, ok := pageTables(page); ok {
			tables = append(tables, result...)
		}
	}

	return ExtractionResult{
		Text:           strings.Join(texts, "\n"),
		Tables:         tables,
		Success:        mean > 0,
		Confidence:     mean,
		Method:         l.Name(),
		PagesProcessed: len(file.Pages),
		Metadata: map[string]any{
			"dpi": opts.DPI,
		},
	}, nil
}

// pageTables is a seam for GridOCR's morphological table detector to
// contribute tables discovered alongside LocalOCR's plain text; the
// default local OCR path never produces structured tables on its
// own.
func pageTables(capability.PageImage) ([]Table, bool) { return nil, false }
