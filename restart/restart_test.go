package restart_test

import (
	"testing"

	"github.com/BadWolf1509/licitafacil-sub001/config"
	"github.com/BadWolf1509/licitafacil-sub001/model"
	"github.com/BadWolf1509/licitafacil-sub001/restart"
	"github.com/stretchr/testify/assert"
)

func items(codes ...string) []model.ServiceItem {
	out := make([]model.ServiceItem, len(codes))
	for i, c := range codes {
		out[i] = model.ServiceItem{ItemCode: c, Description: "servico " + c}
	}
	return out
}

// TestDetectRelabelsRepeatedBlock reproduces spec §8 scenario 3: a
// document whose item codes start over partway through, as an
// addendum would, gets the repeated block relabeled "S2-".
func TestDetectRelabelsRepeatedBlock(t *testing.T) {
	in := items("1.1", "1.2", "1.3", "2.1", "2.2", "2.3", "1.1", "1.2")

	out := restart.Detect(in, config.RestartConfig{MinOverlapRatio: 0.25})

	want := []string{"1.1", "1.2", "1.3", "2.1", "2.2", "2.3", "S2-1.1", "S2-1.2"}
	for i, w := range want {
		assert.Equal(t, w, out[i].ItemCode)
	}
}

func TestDetectLeavesShortDocumentsAlone(t *testing.T) {
	in := items("1.1", "1.2", "1.1", "1.2")

	out := restart.Detect(in, config.RestartConfig{MinOverlapRatio: 0.25})

	for i, item := range in {
		assert.Equal(t, item.ItemCode, out[i].ItemCode)
	}
}

func TestDetectLeavesLegacyPrefixAlone(t *testing.T) {
	in := items("1.1", "1.2", "1.3", "2.1", "2.2", "2.3", "AD-1.1", "AD-1.2")

	out := restart.Detect(in, config.RestartConfig{MinOverlapRatio: 0.25})

	for i, item := range in {
		assert.Equal(t, item.ItemCode, out[i].ItemCode)
	}
}

func TestDetectNoRestartWhenCodesDontRepeat(t *testing.T) {
	in := items("1.1", "1.2", "1.3", "2.1", "2.2", "2.3", "3.1", "3.2")

	out := restart.Detect(in, config.RestartConfig{MinOverlapRatio: 0.25})

	for i, item := range in {
		assert.Equal(t, item.ItemCode, out[i].ItemCode)
	}
}
