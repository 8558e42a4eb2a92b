package gate

import (
	"math"
	"testing"

	"github.com/danielpatrickdp/aif-controller/internal/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cleanProposal() Proposal {
	return Proposal{
		Qs:          [][]float64{{0.2, 0.8}, {1, 0, 0}},
		NumStates:   []int{2, 3},
		QPi:         []float64{0.5, 0.25, 0.25},
		Action:      []int{1, 0},
		NumControls: []int{2, 1},
	}
}

func TestGateCommitOnCleanStep(t *testing.T) {
	g := NewGate(DefaultGateConfig())
	decision := g.Evaluate(cleanProposal())

	if decision.Action != "commit" {
		t.Fatalf("expected commit, got %s: %s", decision.Action, decision.Reason)
	}
	if decision.Vetoed {
		t.Fatal("should not be vetoed")
	}
	require.NoError(t, decision.Err())
	assert.Greater(t, decision.SoftScore, 0.0)
	assert.LessOrEqual(t, decision.SoftScore, 1.0)
}

func TestGateRejectOnNaNBelief(t *testing.T) {
	g := NewGate(DefaultGateConfig())
	p := cleanProposal()
	p.Qs[0][1] = math.NaN()

	decision := g.Evaluate(p)
	if decision.Action != "reject" {
		t.Fatalf("expected reject, got %s", decision.Action)
	}
	require.NotEmpty(t, decision.VetoSignals)
	assert.Equal(t, VetoNumerical, decision.VetoSignals[0].Type)
	require.ErrorIs(t, decision.Err(), tensor.ErrNumerical)
}

func TestGateRejectOnUnnormalizedPolicyPosterior(t *testing.T) {
	g := NewGate(DefaultGateConfig())
	p := cleanProposal()
	p.QPi = []float64{0.5, 0.5, 0.5}

	decision := g.Evaluate(p)
	require.True(t, decision.Vetoed)
	assert.Equal(t, VetoNormalization, decision.VetoSignals[0].Type)
	require.ErrorIs(t, decision.Err(), tensor.ErrNormalization)
}

func TestGateRejectOnActionOutOfRange(t *testing.T) {
	g := NewGate(DefaultGateConfig())
	p := cleanProposal()
	p.Action = []int{1, 1}

	decision := g.Evaluate(p)
	require.True(t, decision.Vetoed)
	assert.Equal(t, VetoActionRange, decision.VetoSignals[0].Type)
	require.ErrorIs(t, decision.Err(), tensor.ErrShapeMismatch)
}

func TestGateRejectOnShapeMismatch(t *testing.T) {
	g := NewGate(DefaultGateConfig())
	p := cleanProposal()
	p.Qs = p.Qs[:1]

	decision := g.Evaluate(p)
	require.True(t, decision.Vetoed)
	assert.Equal(t, VetoShape, decision.VetoSignals[0].Type)
}

func TestGateSoftScoreTracksCertainty(t *testing.T) {
	g := NewGate(DefaultGateConfig())
	certain := Proposal{
		Qs: [][]float64{{1, 0}}, NumStates: []int{2},
		QPi: []float64{1, 0}, Action: []int{0}, NumControls: []int{2},
	}
	unsure := Proposal{
		Qs: [][]float64{{0.5, 0.5}}, NumStates: []int{2},
		QPi: []float64{0.5, 0.5}, Action: []int{0}, NumControls: []int{2},
	}
	assert.InDelta(t, 1.0, g.Evaluate(certain).SoftScore, 1e-9)
	assert.InDelta(t, 0.0, g.Evaluate(unsure).SoftScore, 1e-9)
}
