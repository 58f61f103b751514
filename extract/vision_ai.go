package extract

import (
	"context"

	"github.com/tidwall/gjson"

	converter "github.com/Tangerg/lynx/ai/model/converter"

	"github.com/BadWolf1509/licitafacil-sub001/capability"
	"github.com/BadWolf1509/licitafacil-sub001/model"
)

// costPerPageVisionAI is the expected per-page cost for a multimodal
// LLM call (spec §4.2).
const costPerPageVisionAI = 0.10

// confidenceVisionAI is the fixed confidence VisionAI reports on
// success (spec §4.2).
const confidenceVisionAI = 0.95

// visionPrompt asks the model for the page's service items, returned
// as a JSON object whose "items" array lists them, matching the
// [OUTPUT FORMAT] contract JSONConverter generates.
const visionPrompt = "Extract every service line item visible on this page image. " +
	"Return the item code, description, unit, and quantity for each."

// visionItem is the wire shape the model is asked to emit for one
// service line item; structurally close to model.ServiceItem but
// JSON-schema friendly (plain scalars, no pointers).
type visionItem struct {
	Item        string  `json:"item"`
	Description string  `json:"descricao"`
	Unit        string  `json:"unidade"`
	Quantity    float64 `json:"quantidade"`
	HasQuantity bool    `json:"-"`
}

type visionPayload struct {
	Items []visionItem `json:"items"`
}

// VisionAI reads page images with a multimodal LLM and returns
// services already parsed from structured JSON (spec §4.2). This is
// the only strategy that may return services directly without going
// through table recovery.
type VisionAI struct {
	Client    capability.VisionClient
	converter *converter.JSONConverter[visionPayload]
}

var _ Strategy = (*VisionAI)(nil)

func (v *VisionAI) Name() Method         { return MethodVisionAI }
func (v *VisionAI) IsAvailable() bool    { return v.Client != nil }
func (v *VisionAI) CostPerPage() float64 { return costPerPageVisionAI }

func (v *VisionAI) jsonConverter() *converter.JSONConverter[visionPayload] {
	if v.converter == nil {
		v.converter = converter.NewJSONConverter[visionPayload]()
	}
	return v.converter
}

func (v *VisionAI) Extract(ctx Context, file Input, _ Options) (ExtractionResult, error) {
	if !v.IsAvailable() {
		return ExtractionResult{Success: false, Method: v.Name()}, nil
	}
	if ctx.cancelled() {
		return cancelledResult(v.Name()), nil
	}

	var services []model.ServiceItem
	prompt := visionPrompt + "\n\n" + v.jsonConverter().GetFormat()

	for i, page := range file.Pages {
		if ctx.cancelled() {
			return cancelledResult(v.Name()), nil
		}
		raw, err := v.Client.AnalyzePage(context.Background(), page, prompt)
		if err != nil {
			return ExtractionResult{
				Success: false,
				Method:  v.Name(),
				Errors:  []error{err},
			}, nil
		}

		payload, perr := v.decode(raw)
		if perr != nil {
			continue
		}
		pageNum := page.Page
		for _, it := range payload.Items {
			item := model.ServiceItem{
				ItemCode:    it.Item,
				Description: it.Description,
				Unit:        it.Unit,
				Source:      model.SourceVision,
				Page:        &pageNum,
			}
			if it.Quantity != 0 {
				q := it.Quantity
				item.Quantity = &q
			}
			services = append(services, item)
		}
		ctx.report(i+1, len(file.Pages), "analyzing page")
	}

	return ExtractionResult{
		Services:       services,
		Success:        len(services) > 0,
		Confidence:     confidenceVisionAI,
		Method:         v.Name(),
		PagesProcessed: len(file.Pages),
		CostEstimate:   float64(len(file.Pages)) * costPerPageVisionAI,
	}, nil
}

// decode tolerates stray prose around the JSON object before handing
// off to the strict JSONConverter: it trims everything outside the
// outermost braces and uses gjson to confirm the candidate actually
// parses as an object before paying for the strict decode.
func (v *VisionAI) decode(raw string) (visionPayload, error) {
	candidate := raw
	if !gjson.Valid(candidate) {
		start := indexByte(raw, '{')
		end := lastIndexByte(raw, '}')
		if start >= 0 && end > start {
			candidate = raw[start : end+1]
		}
	}
	if !gjson.Parse(candidate).IsObject() {
		return visionPayload{}, errInvalidVisionPayload
	}
	return v.jsonConverter().Convert(candidate)
}

func indexByte(s string, b byte) int {
	for i := 0; i < len(s); i++ {
		if s[i] == b {
			return i
		}
	}
	return -1
}

func lastIndexByte(s string, b byte) int {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == b {
			return i
		}
	}
	return -1
}
