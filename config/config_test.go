package config_test

import (
	"testing"

	"github.com/BadWolf1509/licitafacil-sub001/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultMatchesSpec(t *testing.T) {
	c := config.Default()
	assert.Equal(t, 300, c.OCR.DPI)
	assert.Equal(t, 450, c.OCR.RetryDPI)
	assert.Equal(t, 0.70, c.Cascade.Stage1QtyThreshold)
	assert.Equal(t, 0.60, c.Cascade.Stage2QtyThreshold)
	assert.Equal(t, 0.40, c.Cascade.Stage3QtyThreshold)
	assert.Equal(t, 0.70, c.Table.ConfidenceThreshold)
	assert.Equal(t, 0.5, c.Dedup.SimilarityThreshold)
	assert.Equal(t, 0.25, c.Restart.MinOverlapRatio)
}

func TestNewAppliesOptions(t *testing.T) {
	c, err := config.New(config.WithOCRDPI(600), config.WithPaidServicesEnabled(false))
	require.NoError(t, err)
	assert.Equal(t, 600, c.OCR.DPI)
	assert.False(t, c.PaidServicesEnabled)
}

func TestNewRejectsOutOfRangeThreshold(t *testing.T) {
	_, err := config.New(config.WithStage1QtyThreshold(1.5))
	assert.Error(t, err)
}
