package extract

import (
	"github.com/BadWolf1509/licitafacil-sub001/normalize"
)

// minNativeTextChars is the minimum embedded-text length below which
// NativeText gives up (spec §4.2: "Fails ... if total text < 100
// chars").
const minNativeTextChars = 100

// TextLayerReader extracts a PDF's embedded text layer, one string
// per page. The host supplies the concrete PDF parser; this package
// only orchestrates the cascade contract around it.
type TextLayerReader interface {
	ReadPages(fileBytes []byte) ([]string, error)
}

// NativeText parses a PDF's embedded text layer (spec §4.2). It is
// always available and free.
type NativeText struct {
	Reader TextLayerReader
}

var _ Strategy = (*NativeText)(nil)

func (n *NativeText) Name() Method        { return MethodNativeText }
func (n *NativeText) IsAvailable() bool   { return true }
func (n *NativeText) CostPerPage() float64 { return 0 }

func (n *NativeText) Extract(ctx Context, file Input, _ Options) (ExtractionResult, error) {
	if ctx.cancelled() {
		return cancelledResult(n.Name()), nil
	}

	pages, err := n.Reader.ReadPages(file.FileBytes)
	if err != nil {
		return ExtractionResult{
			Success: false,
			Method:  n.Name(),
			Errors:  []error{err},
		}, nil
	}

	var full string
	for i, page := range pages {
		if ctx.cancelled() {
			return cancelledResult(n.Name()), nil
		}
		ctx.report(i+1, len(pages), "reading embedded text")
		full += page + "\n"
	}

	trimmedLen := len([]rune(full))
	if trimmedLen < minNativeTextChars || normalize.IsCorrupted(full) {
		return ExtractionResult{
			Text:           full,
			Success:        false,
			Confidence:     0.2,
			Method:         n.Name(),
			PagesProcessed: len(pages),
		}, nil
	}

	return ExtractionResult{
		Text:           full,
		Success:        true,
		Confidence:     0.9,
		Method:         n.Name(),
		PagesProcessed: len(pages),
	}, nil
}
