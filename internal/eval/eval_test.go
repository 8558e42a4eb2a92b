package eval

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvalPassesOnCleanStep(t *testing.T) {
	h := NewEvalHarness(DefaultEvalConfig())
	result := h.Run(StepInput{
		Qs:         [][]float64{{0.5, 0.5}, {1, 0, 0}},
		QPi:        []float64{0.25, 0.75},
		G:          []float64{1.5, -0.5},
		FreeEnergy: 0.7,
	})

	if !result.Passed {
		t.Fatalf("expected pass, got fail: %s", result.Reason)
	}
	ent, ok := result.Value("qs_0_entropy")
	require.True(t, ok)
	assert.InDelta(t, math.Ln2, ent, 1e-12)

	ent, ok = result.Value("qs_1_entropy")
	require.True(t, ok)
	assert.InDelta(t, 0.0, ent, 1e-12)

	maxQ, _ := result.Value("qpi_max")
	assert.Equal(t, 0.75, maxQ)
	minG, _ := result.Value("efe_min")
	assert.Equal(t, -0.5, minG)
}

func TestEvalFailsOnSumDrift(t *testing.T) {
	h := NewEvalHarness(DefaultEvalConfig())
	result := h.Run(StepInput{
		Qs:  [][]float64{{0.5, 0.6}},
		QPi: []float64{0.9, 0.2},
	})

	if result.Passed {
		t.Fatal("expected fail on drifting sums")
	}
	assert.Contains(t, result.Reason, "2 checks")
}

func TestEvalEntropyIsInformational(t *testing.T) {
	cfg := DefaultEvalConfig()
	cfg.EntropyBaseline = 0.1
	h := NewEvalHarness(cfg)
	result := h.Run(StepInput{
		Qs:  [][]float64{{0.5, 0.5}},
		QPi: []float64{1},
	})

	assert.True(t, result.Passed)
	for _, m := range result.Metrics {
		if m.Name == "qs_0_entropy" {
			assert.False(t, m.Pass)
		}
	}
	_, ok := result.Value("missing")
	assert.False(t, ok)
}
