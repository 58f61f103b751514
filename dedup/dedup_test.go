package dedup_test

import (
	"testing"

	"github.com/BadWolf1509/licitafacil-sub001/dedup"
	"github.com/BadWolf1509/licitafacil-sub001/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func qtyPtr(v float64) *float64 { return &v }

func TestRemoveOrphansDropsSimilarUncodedItem(t *testing.T) {
	items := []model.ServiceItem{
		{ItemCode: "1.1", Description: "Alvenaria de vedação em blocos cerâmicos de oito furos"},
		{ItemCode: "", Description: "Alvenaria de vedação em blocos cerâmicos de oito furos"},
	}
	result := dedup.RemoveOrphans(items)
	require.Len(t, result, 1)
	assert.Equal(t, "1.1", result[0].ItemCode)
}

func TestRemoveOrphansKeepsDistinctUncodedItem(t *testing.T) {
	items := []model.ServiceItem{
		{ItemCode: "1.1", Description: "Alvenaria de vedação em blocos cerâmicos"},
		{ItemCode: "", Description: "Impermeabilização de lajes com manta asfáltica"},
	}
	result := dedup.RemoveOrphans(items)
	assert.Len(t, result, 2)
}

func TestByKeyRemovesExactDuplicates(t *testing.T) {
	items := []model.ServiceItem{
		{ItemCode: "1.1", Description: "Alvenaria de vedação"},
		{ItemCode: "1.1", Description: "Alvenaria de vedação"},
	}
	result := dedup.ByKey(items)
	assert.Len(t, result, 1)
}

func TestByDescriptionKeepsFirstOccurrence(t *testing.T) {
	items := []model.ServiceItem{
		{ItemCode: "1.1", Description: "Serviço repetido no documento inteiro"},
		{ItemCode: "1.2", Description: "Serviço repetido no documento inteiro"},
	}
	result := dedup.ByDescription(items)
	require.Len(t, result, 1)
	assert.Equal(t, "1.1", result[0].ItemCode)
}

func TestSimilarRespectsQuantityTolerance(t *testing.T) {
	a := model.ServiceItem{Description: "Pintura látex acrílica duas demãos", Unit: "M2", Quantity: qtyPtr(100)}
	b := model.ServiceItem{Description: "Pintura látex acrílica duas demãos", Unit: "M2", Quantity: qtyPtr(115)}
	assert.True(t, dedup.Similar(a, b))

	c := model.ServiceItem{Description: "Pintura látex acrílica duas demãos", Unit: "M2", Quantity: qtyPtr(200)}
	assert.False(t, dedup.Similar(a, c))
}

func TestMergePreferPrimaryKeepsPrimaryAndAddsDistinctSecondary(t *testing.T) {
	primary := []model.ServiceItem{
		{ItemCode: "1.1", Description: "Alvenaria de vedação em blocos cerâmicos"},
	}
	secondary := []model.ServiceItem{
		{ItemCode: "1.1", Description: "Alvenaria de vedação em blocos cerâmicos"},
		{ItemCode: "1.2", Description: "Pintura látex acrílica duas demãos"},
	}
	result := dedup.MergePreferPrimary(primary, secondary)
	require.Len(t, result, 2)
}

func TestPairDuplicatesDropsChildWhenParentIsRicher(t *testing.T) {
	items := []model.ServiceItem{
		{ItemCode: "6.3", Description: "Alvenaria de vedação em blocos cerâmicos de oito furos, assentados com argamassa mista", Quantity: qtyPtr(100), Unit: "M2"},
		{ItemCode: "6.3.1", Description: "Alvenaria", Quantity: qtyPtr(100), Unit: "M2"},
	}
	result := dedup.PairDuplicates(items)
	require.Len(t, result, 1)
	assert.Equal(t, "6.3", result[0].ItemCode)
}

func TestPairDuplicatesDropsParentWhenChildIsRicher(t *testing.T) {
	items := []model.ServiceItem{
		{ItemCode: "6.3", Description: "Alvenaria", Quantity: qtyPtr(100), Unit: "M2"},
		{ItemCode: "6.3.1", Description: "Alvenaria de vedação em blocos cerâmicos de oito furos, assentados com argamassa mista", Quantity: qtyPtr(100), Unit: "M2"},
	}
	result := dedup.PairDuplicates(items)
	require.Len(t, result, 1)
	assert.Equal(t, "6.3.1", result[0].ItemCode)
}

func TestRestartPrefixDedupeFoldsIntoUnprefixedSibling(t *testing.T) {
	items := []model.ServiceItem{
		{ItemCode: "1.1", Description: "Alvenaria de vedação em blocos cerâmicos", Unit: "M2", Quantity: qtyPtr(100)},
		{ItemCode: "S2-1.1", Description: "Alvenaria", Unit: "M2", Quantity: qtyPtr(100)},
	}
	result := dedup.RestartPrefixDedupe(items)
	require.Len(t, result, 1)
	assert.Equal(t, "1.1", result[0].ItemCode)
}

func TestRestartPrefixDedupeLeavesDifferentQuantityAlone(t *testing.T) {
	items := []model.ServiceItem{
		{ItemCode: "1.1", Description: "Alvenaria de vedação em blocos cerâmicos", Unit: "M2", Quantity: qtyPtr(100)},
		{ItemCode: "S2-1.1", Description: "Alvenaria de vedação em blocos cerâmicos", Unit: "M2", Quantity: qtyPtr(250)},
	}
	result := dedup.RestartPrefixDedupe(items)
	assert.Len(t, result, 2)
}

func TestWithinPlanilhaDedupeKeepsItemWithQuantity(t *testing.T) {
	items := []model.ServiceItem{
		{ItemCode: "1.1", PlanilhaID: "p1", Description: "Alvenaria", Quantity: nil},
		{ItemCode: "1.1", PlanilhaID: "p1", Description: "Alvenaria de vedação", Quantity: qtyPtr(100)},
	}
	result := dedup.WithinPlanilhaDedupe(items)
	require.Len(t, result, 1)
	assert.NotNil(t, result[0].Quantity)
}

func TestWithinPlanilhaDedupeLeavesDifferentPlanilhasAlone(t *testing.T) {
	items := []model.ServiceItem{
		{ItemCode: "1.1", PlanilhaID: "p1", Description: "Alvenaria"},
		{ItemCode: "1.1", PlanilhaID: "p2", Description: "Alvenaria"},
	}
	result := dedup.WithinPlanilhaDedupe(items)
	assert.Len(t, result, 2)
}

func TestDescriptionUnitDedupeCollapsesUncodedItems(t *testing.T) {
	items := []model.ServiceItem{
		{ItemCode: "", Description: "Pintura látex acrílica duas demãos", Unit: "M2", Quantity: nil},
		{ItemCode: "", Description: "Pintura látex acrílica duas demãos", Unit: "M2", Quantity: qtyPtr(50)},
	}
	result := dedup.DescriptionUnitDedupe(items)
	require.Len(t, result, 1)
	assert.NotNil(t, result[0].Quantity)
}

func TestDescriptionUnitDedupeIgnoresCodedItems(t *testing.T) {
	items := []model.ServiceItem{
		{ItemCode: "1.1", Description: "Pintura látex acrílica duas demãos", Unit: "M2"},
		{ItemCode: "1.2", Description: "Pintura látex acrílica duas demãos", Unit: "M2"},
	}
	result := dedup.DescriptionUnitDedupe(items)
	assert.Len(t, result, 2)
}

func TestOrphanSuffixCleanupRewritesSuffixWithoutBase(t *testing.T) {
	items := []model.ServiceItem{
		{ItemCode: "1.1-A", PlanilhaID: "p1", Description: "Alvenaria"},
	}
	result := dedup.OrphanSuffixCleanup(items)
	require.Len(t, result, 1)
	assert.Equal(t, "1.1", result[0].ItemCode)
}

func TestOrphanSuffixCleanupKeepsSuffixWhenBaseExists(t *testing.T) {
	items := []model.ServiceItem{
		{ItemCode: "1.1", PlanilhaID: "p1", Description: "Alvenaria base"},
		{ItemCode: "1.1-A", PlanilhaID: "p1", Description: "Alvenaria variante"},
	}
	result := dedup.OrphanSuffixCleanup(items)
	require.Len(t, result, 2)
	assert.Equal(t, "1.1-A", result[1].ItemCode)
}
