package normalize_test

import (
	"testing"

	"github.com/BadWolf1509/licitafacil-sub001/normalize"
	"github.com/stretchr/testify/assert"
)

func TestDescription(t *testing.T) {
	assert.Equal(t, "ALVENARIA DE VEDACAO", normalize.Description("Alvenaria de vedação"))
	assert.Equal(t, "9X19X19CM", normalize.Description("9X19XI9CM"))
	assert.Equal(t, "10 CM", normalize.Description("1O CM"))
}

func TestDescriptionIdempotent(t *testing.T) {
	inputs := []string{"Alvenaria de vedação", "PINTURA LÁTEX ACRÍLICA", "9X19XI9CM", ""}
	for _, in := range inputs {
		once := normalize.Description(in)
		twice := normalize.Description(once)
		assert.Equal(t, once, twice)
	}
}

func TestUnit(t *testing.T) {
	assert.Equal(t, "M2", normalize.Unit("m²"))
	assert.Equal(t, "M3", normalize.Unit("M^3"))
}

func TestKeywordsExcludesStopwords(t *testing.T) {
	kw := normalize.Keywords("Execução de alvenaria de vedação com tijolo")
	assert.True(t, kw["ALVENARIA"])
	assert.True(t, kw["TIJOLO"])
	assert.False(t, kw["DE"])
	assert.False(t, kw["COM"])
}

func TestJaccardEmptySideIsZero(t *testing.T) {
	assert.Equal(t, 0.0, normalize.Jaccard("", "alvenaria de vedacao"))
	assert.Equal(t, 0.0, normalize.Jaccard("alvenaria", ""))
}

func TestJaccardIdenticalIsOne(t *testing.T) {
	assert.Equal(t, 1.0, normalize.Jaccard("Alvenaria de vedação", "ALVENARIA DE VEDACAO"))
}

func TestIsCorrupted(t *testing.T) {
	assert.True(t, normalize.IsCorrupted("####@@@!!!***"))
	assert.False(t, normalize.IsCorrupted("Alvenaria de vedação"))
}
