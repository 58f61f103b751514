package unit_test

import (
	"testing"

	"github.com/BadWolf1509/licitafacil-sub001/unit"
	"github.com/stretchr/testify/assert"
)

func TestNormalizePreservesVocabulary(t *testing.T) {
	for u := range unit.Vocabulary {
		assert.Equal(t, u, unit.Normalize(u))
	}
}

func TestNormalizeSuperscripts(t *testing.T) {
	assert.Equal(t, "M2", unit.Normalize("m²"))
	assert.Equal(t, "M3", unit.Normalize("M³"))
	assert.Equal(t, "M2", unit.Normalize("M^2"))
	assert.Equal(t, "M3", unit.Normalize(" m^3 "))
}

func TestValid(t *testing.T) {
	assert.True(t, unit.Valid("M2"))
	assert.False(t, unit.Valid("XYZ"))
}
