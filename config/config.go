// Package config defines the immutable configuration contract a host
// passes into the Pipeline constructor (spec §6, §9 "Dynamic
// configuration objects").
package config

import "fmt"

// Config is the single validated, immutable configuration record.
// Build one with New and a sequence of Options; never mutate a Config
// in place.
type Config struct {
	OCR      OCRConfig
	Cascade  CascadeConfig
	Table    TableConfig
	Dedup    DedupConfig
	Restart  RestartConfig
	Timeouts TimeoutConfig

	// PaidServicesEnabled is the master switch that disables all
	// cost-bearing stages (CloudOCR, VisionAI) regardless of other
	// settings.
	PaidServicesEnabled bool
}

// OCRConfig holds the rasterization/retry ladder, supplemented from
// original_source's OCRLayoutConfig/OCRPageConfig (see SPEC_FULL.md
// §4).
type OCRConfig struct {
	DPI          int
	RetryDPI     int
	RetryDPIHard int // 0 disables the aggressive third pass
	RetryMinWords    int
	RetryMinItems    int
	RetryMinQtyRatio float64
	PageMinItems     int
}

// CascadeConfig holds the qty_ratio acceptance thresholds per stage
// (spec §4.8, §6).
type CascadeConfig struct {
	Stage1QtyThreshold float64
	Stage2QtyThreshold float64
	Stage3QtyThreshold float64
}

// TableConfig holds TableRecovery's acceptance thresholds,
// supplemented from original_source's ItemColumnConfig/TableConfig.
type TableConfig struct {
	ConfidenceThreshold float64
	ItemColumnMinScore  float64
	ItemColumnMaxXRatio float64
	ItemColumnMaxIndex  int
	ItemColumnMinCount  int
}

// DedupConfig holds dedup.similarity_threshold (spec §6). Package
// dedup does not read it: its similarity checks use a fixed 0.5.
type DedupConfig struct {
	SimilarityThreshold float64
}

// RestartConfig holds the restart-segment detector's threshold (spec
// §6).
type RestartConfig struct {
	MinOverlapRatio float64
}

// TimeoutConfig holds the per-operation timeouts from spec §5.
type TimeoutConfig struct {
	PerPageSeconds            int
	PerDocumentSeconds        int
	PerRetrySeconds           int
	PerTableExtractionSeconds int
}

// Default returns spec.md §6's documented defaults plus the numeric
// refinements supplied by original_source/backend/config/atestado.py
// (see SPEC_FULL.md §4).
func Default() Config {
	return Config{
		OCR: OCRConfig{
			DPI:              300,
			RetryDPI:         450,
			RetryDPIHard:     0,
			RetryMinWords:    120,
			RetryMinItems:    5,
			RetryMinQtyRatio: 0.35,
			PageMinItems:     3,
		},
		Cascade: CascadeConfig{
			Stage1QtyThreshold: 0.70,
			Stage2QtyThreshold: 0.60,
			Stage3QtyThreshold: 0.40,
		},
		Table: TableConfig{
			ConfidenceThreshold: 0.70,
			ItemColumnMinScore:  0.5,
			ItemColumnMaxXRatio: 0.35,
			ItemColumnMaxIndex:  2,
			ItemColumnMinCount:  6,
		},
		Dedup: DedupConfig{
			SimilarityThreshold: 0.5,
		},
		Restart: RestartConfig{
			MinOverlapRatio: 0.25,
		},
		Timeouts: TimeoutConfig{
			PerPageSeconds:            60,
			PerDocumentSeconds:        600,
			PerRetrySeconds:           30,
			PerTableExtractionSeconds: 120,
		},
		PaidServicesEnabled: true,
	}
}

// Option mutates a Config under construction.
type Option func(*Config)

// WithOCRDPI overrides ocr.dpi.
func WithOCRDPI(dpi int) Option { return func(c *Config) { c.OCR.DPI = dpi } }

// WithOCRRetryDPI overrides ocr.retry_dpi.
func WithOCRRetryDPI(dpi int) Option { return func(c *Config) { c.OCR.RetryDPI = dpi } }

// WithStage1QtyThreshold overrides cascade.stage1_qty_threshold.
func WithStage1QtyThreshold(v float64) Option {
	return func(c *Config) { c.Cascade.Stage1QtyThreshold = v }
}

// WithStage2QtyThreshold overrides cascade.stage2_qty_threshold.
func WithStage2QtyThreshold(v float64) Option {
	return func(c *Config) { c.Cascade.Stage2QtyThreshold = v }
}

// WithStage3QtyThreshold overrides cascade.stage3_qty_threshold.
func WithStage3QtyThreshold(v float64) Option {
	return func(c *Config) { c.Cascade.Stage3QtyThreshold = v }
}

// WithTableConfidenceThreshold overrides table.confidence_threshold.
func WithTableConfidenceThreshold(v float64) Option {
	return func(c *Config) { c.Table.ConfidenceThreshold = v }
}

// WithDedupSimilarityThreshold overrides dedup.similarity_threshold.
func WithDedupSimilarityThreshold(v float64) Option {
	return func(c *Config) { c.Dedup.SimilarityThreshold = v }
}

// WithRestartMinOverlapRatio overrides restart.min_overlap_ratio.
func WithRestartMinOverlapRatio(v float64) Option {
	return func(c *Config) { c.Restart.MinOverlapRatio = v }
}

// WithPaidServicesEnabled toggles the master cost-bearing-stage
// switch.
func WithPaidServicesEnabled(enabled bool) Option {
	return func(c *Config) { c.PaidServicesEnabled = enabled }
}

// New builds a Config from Default() plus the given overrides, and
// validates the result.
func New(opts ...Option) (Config, error) {
	c := Default()
	for _, opt := range opts {
		opt(&c)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate rejects configurations with out-of-range thresholds.
func (c Config) Validate() error {
	for _, r := range []struct {
		name string
		v    float64
	}{
		{"cascade.stage1_qty_threshold", c.Cascade.Stage1QtyThreshold},
		{"cascade.stage2_qty_threshold", c.Cascade.Stage2QtyThreshold},
		{"cascade.stage3_qty_threshold", c.Cascade.Stage3QtyThreshold},
		{"table.confidence_threshold", c.Table.ConfidenceThreshold},
		{"dedup.similarity_threshold", c.Dedup.SimilarityThreshold},
		{"restart.min_overlap_ratio", c.Restart.MinOverlapRatio},
	} {
		if r.v < 0 || r.v > 1 {
			return fmt.Errorf("config: %s must be in [0,1], got %v", r.name, r.v)
		}
	}
	if c.OCR.DPI <= 0 || c.OCR.RetryDPI <= 0 {
		return fmt.Errorf("config: ocr DPI values must be positive")
	}
	return nil
}
