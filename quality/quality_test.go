package quality_test

import (
	"testing"

	"github.com/BadWolf1509/licitafacil-sub001/model"
	"github.com/BadWolf1509/licitafacil-sub001/quality"
	"github.com/stretchr/testify/assert"
)

func qtyPtr(v float64) *float64 { return &v }

func cleanBatch(n int) []model.ServiceItem {
	items := make([]model.ServiceItem, 0, n)
	for i := 1; i <= n; i++ {
		items = append(items, model.ServiceItem{
			ItemCode:    "1." + string(rune('0'+i%9+1)),
			Description: "Serviço numero " + string(rune('A'+i%26)) + " de execução completo com descrição longa o suficiente",
			Unit:        "M2",
			Quantity:    qtyPtr(float64(i) * 10),
		})
	}
	return items
}

func TestComputeStatsCountsCoverageAndDuplicates(t *testing.T) {
	items := []model.ServiceItem{
		{ItemCode: "1.1", Description: "Alvenaria de vedação", Unit: "M2", Quantity: qtyPtr(10)},
		{ItemCode: "", Description: "Alvenaria de vedação", Unit: "", Quantity: nil},
	}
	stats := quality.ComputeStats(items)
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 1, stats.WithItem)
	assert.Equal(t, 1, stats.WithUnit)
	assert.Equal(t, 1, stats.WithQty)
	assert.Equal(t, 0.5, stats.DuplicateRatio)
}

func TestScoreHighForCleanLargeBatch(t *testing.T) {
	stats := quality.ComputeStats(cleanBatch(30))
	score := quality.Score(stats)
	assert.Equal(t, 1.0, score)
}

func TestScorePenalizesSmallBatch(t *testing.T) {
	stats := quality.ComputeStats(cleanBatch(5))
	score := quality.Score(stats)
	assert.InDelta(t, 0.8, score, 0.001)
}

func TestIsNoisyFlagsSparseBatch(t *testing.T) {
	items := []model.ServiceItem{
		{ItemCode: "1.1", Description: "x"},
		{ItemCode: "1.2", Description: "y"},
	}
	report := quality.IsNoisy(items, quality.DefaultThresholds())
	assert.True(t, report.Noisy)
	assert.GreaterOrEqual(t, report.Failures, 2)
}

func TestIsNoisyPassesCleanBatch(t *testing.T) {
	report := quality.IsNoisy(cleanBatch(30), quality.DefaultThresholds())
	assert.False(t, report.Noisy)
}
