package extract_test

import (
	"testing"

	"github.com/BadWolf1509/licitafacil-sub001/extract"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubReader struct {
	pages []string
	err   error
}

func (s stubReader) ReadPages([]byte) ([]string, error) { return s.pages, s.err }

func TestNativeTextSucceedsWithEnoughText(t *testing.T) {
	reader := stubReader{pages: []string{
		"1.1 Alvenaria de vedação M2 416,65 " + repeat("texto ", 20),
	}}
	strategy := &extract.NativeText{Reader: reader}

	result, err := strategy.Extract(extract.Context{}, extract.Input{}, extract.Options{})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, extract.MethodNativeText, result.Method)
}

func TestNativeTextFailsOnShortText(t *testing.T) {
	reader := stubReader{pages: []string{"short"}}
	strategy := &extract.NativeText{Reader: reader}

	result, err := strategy.Extract(extract.Context{}, extract.Input{}, extract.Options{})
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, 0.2, result.Confidence)
}

func TestNativeTextHonorsCancellation(t *testing.T) {
	reader := stubReader{pages: []string{"anything"}}
	strategy := &extract.NativeText{Reader: reader}
	cancelled := func() bool { return true }

	result, err := strategy.Extract(extract.Context{Cancel: cancelled}, extract.Input{}, extract.Options{})
	require.NoError(t, err)
	assert.False(t, result.Success)
	require.Len(t, result.Errors, 1)
}

func repeat(s string, n int) string {
	out := make([]byte, 0, len(s)*n)
	for i := 0; i < n; i++ {
		out = append(out, s...)
	}
	return string(out)
}
