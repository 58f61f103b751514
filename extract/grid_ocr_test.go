package extract_test

import (
	"context"
	"testing"

	"github.com/BadWolf1509/licitafacil-sub001/capability"
	"github.com/BadWolf1509/licitafacil-sub001/extract"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubGridDetector struct {
	tables []extract.Table
	err    error
}

func (s *stubGridDetector) DetectGrids(_ context.Context, _ capability.PageImage) ([]extract.Table, error) {
	return s.tables, s.err
}

func TestGridOCRDetectsTablesAcrossPages(t *testing.T) {
	detector := &stubGridDetector{tables: []extract.Table{{{"1.1", "Serviço", "M2", "10"}}}}
	strategy := &extract.GridOCR{Detector: detector}

	result, err := strategy.Extract(extract.Context{}, extract.Input{
		Pages: []capability.PageImage{{Page: 1}, {Page: 2}},
	}, extract.Options{})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Len(t, result.Tables, 2)
	assert.Greater(t, result.Confidence, 0.0)
}

func TestGridOCRSkipsPagesThatFailDetection(t *testing.T) {
	detector := &stubGridDetector{err: assert.AnError}
	strategy := &extract.GridOCR{Detector: detector}

	result, err := strategy.Extract(extract.Context{}, extract.Input{
		Pages: []capability.PageImage{{Page: 1}},
	}, extract.Options{})
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Empty(t, result.Tables)
}

func TestGridOCRUnavailableWithoutDetector(t *testing.T) {
	strategy := &extract.GridOCR{}
	result, err := strategy.Extract(extract.Context{}, extract.Input{}, extract.Options{})
	require.NoError(t, err)
	assert.False(t, result.Success)
}
