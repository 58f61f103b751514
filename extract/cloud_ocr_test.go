package extract_test

import (
	"context"
	"testing"

	"github.com/BadWolf1509/licitafacil-sub001/capability"
	"github.com/BadWolf1509/licitafacil-sub001/extract"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubCloudClient struct {
	failFirst bool
	calls     int
}

func (s *stubCloudClient) ProcessPage(_ context.Context, page capability.PageImage, imageless bool) (capability.OCRResult, error) {
	s.calls++
	if s.failFirst && !imageless {
		return capability.OCRResult{}, extract.ErrPageLimitExceeded
	}
	return capability.OCRResult{Text: "recognized", Confidence: 0.8}, nil
}

func TestCloudOCRRetriesImagelessOnPageLimit(t *testing.T) {
	client := &stubCloudClient{failFirst: true}
	strategy := &extract.CloudOCR{Client: client}

	result, err := strategy.Extract(extract.Context{}, extract.Input{
		Pages: []capability.PageImage{{Page: 1}},
	}, extract.Options{})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 2, client.calls)
}

func TestCloudOCRUnavailableWithoutClient(t *testing.T) {
	strategy := &extract.CloudOCR{}
	result, err := strategy.Extract(extract.Context{}, extract.Input{}, extract.Options{})
	require.NoError(t, err)
	assert.False(t, result.Success)
}
