package reconstruct_test

import (
	"testing"

	"github.com/BadWolf1509/licitafacil-sub001/model"
	"github.com/BadWolf1509/licitafacil-sub001/reconstruct"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildLineToPageMapTracksMarkers(t *testing.T) {
	text := "cabeçalho\nPágina 1\nlinha a\nPágina 2\nlinha b"
	m := reconstruct.BuildLineToPageMap(text)
	assert.Equal(t, 1, m[1])
	assert.Equal(t, 1, m[3])
	assert.Equal(t, 2, m[5])
}

func TestBuildItemLineIndexFindsItemLines(t *testing.T) {
	text := "1.1 Alvenaria de vedação em blocos cerâmicos M2 416,65\n1.2 Pintura látex acrílica duas demãos M2 502,18\n"
	index := reconstruct.BuildItemLineIndex(text)
	require.Contains(t, index, "1.1")
	require.Contains(t, index, "1.2")
	assert.Equal(t, 1, index["1.1"][0].Line)
}

func TestReconstructReplacesTruncatedDescription(t *testing.T) {
	text := "1.1 Alvenaria de vedação em blocos cerâmicos de oito furos M2 416,65\n"
	qty := 416.65
	items := []model.ServiceItem{
		{ItemCode: "1.1", Description: "alv blocos", Quantity: &qty, Unit: "M2"},
	}
	result := reconstruct.Reconstruct(items, text)
	require.Len(t, result, 1)
	assert.Contains(t, result[0].Description, "Alvenaria")
	assert.Equal(t, model.DescSourceOriginal, result[0].DescSource)
}

func TestReconstructLeavesItemWithoutMatchUntouched(t *testing.T) {
	text := "nenhuma linha de item aqui\n"
	items := []model.ServiceItem{
		{ItemCode: "9.9", Description: "original"},
	}
	result := reconstruct.Reconstruct(items, text)
	assert.Equal(t, "original", result[0].Description)
	assert.Empty(t, result[0].DescSource)
}

func TestFindBestMatchPrefersExactQuantityUnit(t *testing.T) {
	qty := 100.0
	candidates := []reconstruct.Candidate{
		{Line: 1, Text: "1.1 descricao curta demais", Unit: "M2", Qty: floatPtr(50)},
		{Line: 2, Text: "1.1 Descrição correta e completa do serviço executado M2 100,00", Unit: "M2", Qty: &qty},
	}
	match, ok := reconstruct.FindBestMatch(candidates, "1.1", "M2", &qty, "", 0, nil, 0)
	require.True(t, ok)
	assert.Equal(t, 2, match.Line)
}

func TestFindBestMatchUsesRestartIndexToPickCluster(t *testing.T) {
	candidates := []reconstruct.Candidate{
		{Line: 1, Text: "1.1 Primeira descrição completa do serviço original executado", Unit: "M2"},
		{Line: 400, Text: "1.1 Segunda descrição completa do serviço em aditivo executado", Unit: "M2"},
	}
	match, ok := reconstruct.FindBestMatch(candidates, "1.1", "M2", nil, "", 0, nil, 2)
	require.True(t, ok)
	assert.Equal(t, 400, match.Line)
}

func TestFindBestMatchProtectsLongDescriptionWithoutPageHit(t *testing.T) {
	current := "Descrição já longa e detalhada do serviço existente com muitos detalhes relevantes"
	candidates := []reconstruct.Candidate{
		{Line: 1, Text: "1.1 descricao curta"},
	}
	match, ok := reconstruct.FindBestMatch(candidates, "1.1", "", nil, current, 0, nil, 0)
	assert.False(t, ok)
	assert.Empty(t, match.Description)
}

func TestFindBestMatchRejectsNeighboringRowPattern(t *testing.T) {
	candidates := []reconstruct.Candidate{
		{Line: 1, Text: "1.1 M2 416,65 continuação de outra linha qualquer"},
	}
	_, ok := reconstruct.FindBestMatch(candidates, "1.1", "", nil, "", 0, nil, 0)
	assert.False(t, ok)
}

func floatPtr(v float64) *float64 { return &v }
