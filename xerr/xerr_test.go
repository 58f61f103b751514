package xerr_test

import (
	"errors"
	"testing"

	"github.com/BadWolf1509/licitafacil-sub001/xerr"
	"github.com/stretchr/testify/assert"
)

func TestSurfaces(t *testing.T) {
	assert.True(t, xerr.InvalidInput.Surfaces())
	assert.True(t, xerr.Cancelled.Surfaces())
	assert.True(t, xerr.QualityRejected.Surfaces())
	assert.True(t, xerr.InternalInvariant.Surfaces())
	assert.False(t, xerr.StageTransient.Surfaces())
	assert.False(t, xerr.StageFatal.Surfaces())
}

func TestWrapUnwraps(t *testing.T) {
	base := errors.New("timeout")
	wrapped := xerr.Wrap(xerr.StageTransient, "cloud_ocr", base)
	assert.ErrorIs(t, wrapped, base)

	kind, ok := xerr.KindOf(wrapped)
	assert.True(t, ok)
	assert.Equal(t, xerr.StageTransient, kind)
}
