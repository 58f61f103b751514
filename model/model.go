// Package model defines the canonical data model for the cascaded
// extraction pipeline: ServiceItem and AttestationExtraction (spec
// §3).
package model

import (
	"sort"
	"strings"
	"time"

	"github.com/BadWolf1509/licitafacil-sub001/code"
	"github.com/BadWolf1509/licitafacil-sub001/normalize"
	"github.com/BadWolf1509/licitafacil-sub001/unit"
	"github.com/google/uuid"
)

// Source identifies which extraction strategy produced a ServiceItem.
type Source string

const (
	SourceTable   Source = "table"
	SourceText    Source = "text"
	SourceAI      Source = "ai"
	SourceVision  Source = "vision"
	SourceDocAI   Source = "doc-ai"
	SourceGridOCR Source = "grid-ocr"
)

// DescSource records how a description was derived. When set to
// DescSourceOriginal the description was recovered verbatim from the
// document's raw text by the Reconstructor.
type DescSource string

const (
	DescSourceOriginal DescSource = "texto_original"
)

// ServiceItem is the atomic result: a single service line item (spec
// §3).
type ServiceItem struct {
	ItemCode    string `json:"item,omitempty"`
	Description string `json:"descricao"`
	Quantity    *float64 `json:"quantidade,omitempty"`
	Unit        string `json:"unidade,omitempty"`

	Source Source `json:"source"`
	Page   *int   `json:"page,omitempty"`
	Line   *int   `json:"line,omitempty"`

	DescCorrupted bool       `json:"desc_corrupted,omitempty"`
	DescSource    DescSource `json:"desc_source,omitempty"`

	// PlanilhaID identifies the tabular section the item came from,
	// used by the Deduplicator's within-planilha pass (spec §4.6.3).
	PlanilhaID string `json:"-"`
}

// Code parses ItemCode, returning ok=false when it is empty or
// malformed.
func (s ServiceItem) Code() (code.Code, bool) {
	if s.ItemCode == "" {
		return code.Code{}, false
	}
	return code.Parse(s.ItemCode)
}

// HasValidCode reports whether ItemCode normalizes to a well-formed
// code per the grammar in spec §6 (invariant I3).
func (s ServiceItem) HasValidCode() bool {
	c, ok := s.Code()
	return ok && c.Valid()
}

// ColumnLeaked reports whether Quantity equals the numeric digits of
// ItemCode interpreted as a float — the column-leakage condition
// forbidden by the ServiceItem invariant in spec §3.
func (s ServiceItem) ColumnLeaked() bool {
	if s.Quantity == nil {
		return false
	}
	c, ok := s.Code()
	if !ok {
		return false
	}
	digits := c.Digits()
	if digits == "" {
		return false
	}
	var asFloat float64
	for _, r := range digits {
		asFloat = asFloat*10 + float64(r-'0')
	}
	return asFloat == *s.Quantity
}

// SortKey is the canonical ordering key from spec §3:
// (segment_index, item_tuple, suffix_index). Items without a valid
// code sort last.
type SortKey struct {
	HasCode bool
	Code    code.Code
}

func (s ServiceItem) sortKey() SortKey {
	c, ok := s.Code()
	if !ok || !c.Valid() {
		return SortKey{HasCode: false}
	}
	return SortKey{HasCode: true, Code: c}
}

// Sort orders items per the canonical order in spec §3 (I4),
// in place, and returns the same slice for chaining.
func Sort(items []ServiceItem) []ServiceItem {
	sort.SliceStable(items, func(i, j int) bool {
		ki, kj := items[i].sortKey(), items[j].sortKey()
		if ki.HasCode != kj.HasCode {
			return ki.HasCode
		}
		if !ki.HasCode {
			return false
		}
		return code.Less(ki.Code, kj.Code)
	})
	return items
}

// AttestationExtraction is the whole-document result (spec §3).
type AttestationExtraction struct {
	RunID uuid.UUID `json:"run_id"`

	Contratante        string    `json:"contratante"`
	DataEmissao        time.Time `json:"data_emissao"`
	DescricaoServico   string    `json:"descricao_servico,omitempty"`
	Quantidade         *float64  `json:"quantidade,omitempty"`
	Unidade            string    `json:"unidade,omitempty"`

	Servicos []ServiceItem `json:"servicos"`

	TextoExtraido string `json:"texto_extraido"`

	PipelineUsed    string   `json:"pipeline_used"`
	StagesExecuted  []string `json:"stages_executed"`

	Confidence   float64 `json:"confidence"`
	CostEstimate float64 `json:"cost_estimate"`
}

// dateLayout is the YYYY-MM-DD layout MarshalDate renders DataEmissao
// in. The struct's JSON encoding does not use it: encoding/json writes
// DataEmissao in time.Time's RFC 3339 form.
const dateLayout = "2006-01-02"

// MarshalDate renders DataEmissao in the stable YYYY-MM-DD form.
func (a AttestationExtraction) MarshalDate() string {
	if a.DataEmissao.IsZero() {
		return ""
	}
	return a.DataEmissao.Format(dateLayout)
}

// CheckInvariants validates I1-I5 against the current state of a
// (sorted) AttestationExtraction. A violation here is an
// InternalInvariant error per spec §7 — a bug, not a data condition.
func (a AttestationExtraction) CheckInvariants() error {
	seen := make(map[string]bool, len(a.Servicos))
	for _, item := range a.Servicos {
		c, ok := item.Code()
		if item.ItemCode != "" && !ok {
			return &invariantError{"I3", "item_code does not conform to the grammar: " + item.ItemCode}
		}
		if ok {
			key := c.String()
			if seen[key] {
				return &invariantError{"I1", "duplicate canonical key: " + key}
			}
			seen[key] = true
		}
		if item.Unit != "" && !validUnit(item.Unit) {
			return &invariantError{"I2", "unit not in recognized set: " + item.Unit}
		}
	}
	sorted := make([]ServiceItem, len(a.Servicos))
	copy(sorted, a.Servicos)
	Sort(sorted)
	for i := range sorted {
		if sorted[i].ItemCode != a.Servicos[i].ItemCode || sorted[i].Description != a.Servicos[i].Description {
			return &invariantError{"I4", "servicos are not in canonical sort order"}
		}
	}
	for _, item := range a.Servicos {
		if item.DescSource == DescSourceOriginal {
			if !containsNormalized(a.TextoExtraido, item.Description) {
				return &invariantError{"I5", "description not covered by texto_extraido: " + item.Description}
			}
		}
	}
	return nil
}

type invariantError struct {
	kind string
	msg  string
}

func (e *invariantError) Error() string { return e.kind + ": " + e.msg }

func validUnit(u string) bool {
	return unit.Valid(unit.Normalize(u))
}

func containsNormalized(text, description string) bool {
	return strings.Contains(normalize.Description(text), normalize.Description(description))
}
