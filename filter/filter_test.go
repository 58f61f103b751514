package filter_test

import (
	"testing"

	"github.com/BadWolf1509/licitafacil-sub001/filter"
	"github.com/BadWolf1509/licitafacil-sub001/model"
	"github.com/BadWolf1509/licitafacil-sub001/unit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(v float64) *float64 { return &v }

func TestClassificationPathsDropsCATBreadcrumb(t *testing.T) {
	items := []model.ServiceItem{
		{ItemCode: "1.1", Description: "Edificações > Residencial > Unifamiliar"},
		{ItemCode: "1.2", Description: "Alvenaria de vedação em blocos cerâmicos"},
	}
	result := filter.ClassificationPaths(items)
	require.Len(t, result, 1)
	assert.Equal(t, "1.2", result[0].ItemCode)
}

func TestClassificationPathsPreservesSalvageableShortDescription(t *testing.T) {
	items := []model.ServiceItem{
		{ItemCode: "1.1", Description: "alv", Quantity: ptr(10)},
	}
	result := filter.ClassificationPaths(items)
	require.Len(t, result, 1)
}

func TestClassificationPathsDropsExecucaoWithArrow(t *testing.T) {
	items := []model.ServiceItem{
		{ItemCode: "1.1", Description: "Execução > Serviços Gerais"},
	}
	result := filter.ClassificationPaths(items)
	assert.Empty(t, result)
}

func TestSummaryRowsRemovesTotals(t *testing.T) {
	items := []model.ServiceItem{
		{ItemCode: "1.1", Description: "Alvenaria de vedação"},
		{ItemCode: "", Description: "TOTAL GERAL"},
		{ItemCode: "", Description: "SUBTOTAL"},
	}
	result := filter.SummaryRows(items)
	require.Len(t, result, 1)
	assert.Equal(t, "1.1", result[0].ItemCode)
}

func TestValidUnitsKeepsEmptyUnit(t *testing.T) {
	items := []model.ServiceItem{
		{ItemCode: "1.1", Unit: ""},
		{ItemCode: "1.2", Unit: "M2"},
		{ItemCode: "1.3", Unit: "XX"},
	}
	result := filter.ValidUnits(items, func(u string) bool { return unit.Valid(unit.Normalize(u)) })
	require.Len(t, result, 2)
}

func TestByItemLengthKeepsDominantAndSalvageableMismatch(t *testing.T) {
	items := []model.ServiceItem{
		{ItemCode: "1.1", Description: "serviço a completo com descrição longa", Quantity: ptr(10), Unit: "M2"},
		{ItemCode: "1.2", Description: "serviço b completo com descrição longa", Quantity: ptr(10), Unit: "M2"},
		{ItemCode: "1.3", Description: "serviço c completo com descrição longa", Quantity: ptr(10), Unit: "M2"},
		{ItemCode: "6.3.4", Description: "mismatch"},
	}
	result := filter.ByItemLength(items, 0.5, 10)
	require.Len(t, result, 3)
}

func TestByItemPrefixKeepsDominant(t *testing.T) {
	items := []model.ServiceItem{
		{ItemCode: "1.1"}, {ItemCode: "1.2"}, {ItemCode: "1.3"}, {ItemCode: "9.9"},
	}
	result := filter.ByItemPrefix(items)
	require.Len(t, result, 3)
}

func TestByItemPrefixKeepsContiguousNeighbors(t *testing.T) {
	items := []model.ServiceItem{
		{ItemCode: "1.1"}, {ItemCode: "1.2"}, {ItemCode: "2.1"}, {ItemCode: "9.9"},
	}
	result := filter.ByItemPrefix(items)
	require.Len(t, result, 3)
}

func TestByItemPrefixBypassesWhenAlreadyCovered(t *testing.T) {
	items := []model.ServiceItem{
		{ItemCode: "1.1"}, {ItemCode: "1.2"}, {ItemCode: "1.3"}, {ItemCode: "1.4"},
		{ItemCode: "1.5"}, {ItemCode: "1.6"}, {ItemCode: "1.7"}, {ItemCode: "1.8"},
		{ItemCode: "1.9"}, {ItemCode: "1.10"}, {ItemCode: "1.11"}, {ItemCode: "1.12"},
		{ItemCode: "1.13"}, {ItemCode: "1.14"}, {ItemCode: "1.15"}, {ItemCode: "1.16"},
		{ItemCode: "1.17"}, {ItemCode: "1.18"}, {ItemCode: "1.19"}, {ItemCode: "9.9"},
	}
	result := filter.ByItemPrefix(items)
	require.Len(t, result, 20)
}

func TestRepairMissingPrefix(t *testing.T) {
	items := []model.ServiceItem{
		{ItemCode: "2.3"},
	}
	result := filter.RepairMissingPrefix(items, 1)
	assert.Equal(t, "1.2.3", result[0].ItemCode)
}

func TestRepairMissingPrefixAvoidsCollision(t *testing.T) {
	items := []model.ServiceItem{
		{ItemCode: "1.2.3"},
		{ItemCode: "2.3"},
	}
	result := filter.RepairMissingPrefix(items, 1)
	assert.Equal(t, "2.3", result[1].ItemCode)
}
