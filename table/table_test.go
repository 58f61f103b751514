package table_test

import (
	"testing"

	"github.com/BadWolf1509/licitafacil-sub001/config"
	"github.com/BadWolf1509/licitafacil-sub001/table"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectHeaderRow(t *testing.T) {
	rows := table.Table{
		{"ITEM", "DESCRIÇÃO", "UNIDADE", "QUANTIDADE"},
		{"1.1", "Alvenaria de vedação", "M2", "416,65"},
	}
	assert.Equal(t, 0, table.DetectHeaderRow(rows))
}

func TestRecoverCleanTable(t *testing.T) {
	rows := table.Table{
		{"ITEM", "DESCRIÇÃO", "UNIDADE", "QUANTIDADE"},
		{"1.1", "Alvenaria de vedação", "M2", "416,65"},
		{"1.2", "Pintura látex acrílica", "M2", "502,18"},
	}
	items := table.Recover(rows, config.Default().Table)
	require.Len(t, items, 2)
	assert.Equal(t, "1.1", items[0].ItemCode)
	assert.Equal(t, "M2", items[0].Unit)
	require.NotNil(t, items[0].Quantity)
	assert.InDelta(t, 416.65, *items[0].Quantity, 0.001)
	assert.Equal(t, "1.2", items[1].ItemCode)
	require.NotNil(t, items[1].Quantity)
	assert.InDelta(t, 502.18, *items[1].Quantity, 0.001)
}

func TestRecoverClearsColumnLeak(t *testing.T) {
	rows := table.Table{
		{"ITEM", "DESCRICAO", "UNIDADE", "QUANTIDADE"},
	}
	// 8 rows where qty == digits(code), 2 plausible rows.
	leaked := [][]string{
		{"1.1", "Serviço um", "M2", "11"},
		{"1.2", "Serviço dois", "M2", "12"},
		{"1.3", "Serviço tres", "M2", "13"},
		{"1.4", "Serviço quatro", "M2", "14"},
		{"1.5", "Serviço cinco", "M2", "15"},
		{"1.6", "Serviço seis", "M2", "16"},
		{"1.7", "Serviço sete", "M2", "17"},
		{"1.8", "Serviço oito", "M2", "18"},
	}
	plausible := [][]string{
		{"1.9", "Serviço nove", "M2", "900"},
		{"1.10", "Serviço dez", "M2", "1000"},
	}
	for _, r := range leaked {
		rows = append(rows, r)
	}
	for _, r := range plausible {
		rows = append(rows, r)
	}

	items := table.Recover(rows, config.Default().Table)
	require.Len(t, items, 10)

	leakedCount := 0
	for _, it := range items {
		if it.Quantity == nil {
			leakedCount++
		}
	}
	assert.Equal(t, 8, leakedCount)
}

func TestParseQuantityBrazilianFormat(t *testing.T) {
	v, ok := table.ParseQuantity("1.234,56")
	require.True(t, ok)
	assert.InDelta(t, 1234.56, v, 0.001)
}

func TestResolveItemColumnPicksSequentialCodes(t *testing.T) {
	rows := table.Table{
		{"1.1", "Alvenaria de vedação", "M2", "416,65"},
		{"1.2", "Pintura látex acrílica", "M2", "502,18"},
		{"1.3", "Reboco", "M2", "100,00"},
		{"1.4", "Contrapiso", "M2", "200,00"},
		{"1.5", "Impermeabilização", "M2", "50,00"},
		{"1.6", "Forro de gesso", "M2", "80,00"},
	}
	m := table.ColumnMapping{Item: -1, Descricao: 1, Unidade: 2, Quantidade: 3, Valor: -1}
	cfg := config.Default().Table
	resolved := table.ResolveItemColumn(rows, 4, m, cfg)
	assert.Equal(t, 0, resolved.Item)
}
