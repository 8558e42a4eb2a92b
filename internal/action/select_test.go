package action

import (
	"testing"

	"github.com/danielpatrickdp/aif-controller/internal/policy"
	"github.com/danielpatrickdp/aif-controller/internal/tensor"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustSpace(t *testing.T, numControls []int, horizon int) *policy.Space {
	t.Helper()
	s, err := policy.NewSpace(numControls, horizon)
	require.NoError(t, err)
	return s
}

// #region marginal-tests
func TestMarginals_GroupByFirstAction(t *testing.T) {
	// controls [2, 3], horizon 1: policy i = (i/3, i%3)
	space := mustSpace(t, []int{2, 3}, 1)
	qpi := []float64{0.1, 0.2, 0.1, 0.3, 0.2, 0.1}
	got, err := Marginals(qpi, space)
	require.NoError(t, err)

	want := [][]float64{{0.4, 0.6}, {0.4, 0.4, 0.2}}
	if diff := cmp.Diff(want, got, cmpopts.EquateApprox(0, 1e-12)); diff != "" {
		t.Fatalf("marginals mismatch (-want +got):\n%s", diff)
	}
}

func TestMarginals_SharedPrefixesAcrossHorizon(t *testing.T) {
	// horizon 2, one factor with 2 controls: policies 00, 01, 10, 11
	space := mustSpace(t, []int{2}, 2)
	got, err := Marginals([]float64{0.1, 0.2, 0.3, 0.4}, space)
	require.NoError(t, err)
	assert.InDelta(t, 0.3, got[0][0], 1e-12)
	assert.InDelta(t, 0.7, got[0][1], 1e-12)
}

func TestMarginals_SumToOne(t *testing.T) {
	space := mustSpace(t, []int{3, 1, 2}, 2)
	qpi := tensor.Uniform(space.Len())
	got, err := Marginals(qpi, space)
	require.NoError(t, err)
	for f, m := range got {
		require.NoError(t, tensor.CheckDistribution(m, 1e-9), "factor %d", f)
	}
	require.Len(t, got[1], 1)
	assert.InDelta(t, 1.0, got[1][0], 1e-9)
}

func TestMarginals_LengthMismatch(t *testing.T) {
	_, err := Marginals([]float64{1}, mustSpace(t, []int{2}, 1))
	require.ErrorIs(t, err, tensor.ErrShapeMismatch)
}

// #endregion marginal-tests

// #region select-tests
func TestSelect_ReproducibleUnderSeed(t *testing.T) {
	space := mustSpace(t, []int{3, 2}, 1)
	qpi := []float64{0.05, 0.15, 0.2, 0.1, 0.3, 0.2}

	draw := func(mode Mode) [][]int {
		sel, err := NewSelector(mode, 42)
		require.NoError(t, err)
		var out [][]int
		for i := 0; i < 50; i++ {
			d, err := sel.Select(qpi, space)
			require.NoError(t, err)
			require.True(t, space.ValidAction(d.Action))
			out = append(out, d.Action)
		}
		return out
	}
	for _, mode := range []Mode{ModeMarginal, ModePolicy} {
		assert.Equal(t, draw(mode), draw(mode), "mode %s", mode)
	}
}

func TestSelect_DeterministicTakesMode(t *testing.T) {
	space := mustSpace(t, []int{2, 3}, 1)
	qpi := []float64{0.05, 0.05, 0.1, 0.1, 0.6, 0.1}
	sel, err := NewSelector(ModeDeterministic, 1)
	require.NoError(t, err)
	d, err := sel.Select(qpi, space)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 1}, d.Action)
	assert.Equal(t, -1, d.Policy)
}

func TestSelect_PolicyModeReturnsFirstAction(t *testing.T) {
	space := mustSpace(t, []int{2}, 2)
	// all mass on policy 2 = (1, 0)
	sel, err := NewSelector(ModePolicy, 7)
	require.NoError(t, err)
	d, err := sel.Select([]float64{0, 0, 1, 0}, space)
	require.NoError(t, err)
	assert.Equal(t, 2, d.Policy)
	assert.Equal(t, []int{1}, d.Action)
}

func TestSelect_UncontrollableFactorStaysAtZero(t *testing.T) {
	space := mustSpace(t, []int{1, 3}, 1)
	sel, err := NewSelector(ModeMarginal, 3)
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		d, err := sel.Select([]float64{0.2, 0.3, 0.5}, space)
		require.NoError(t, err)
		assert.Equal(t, 0, d.Action[0])
	}
}

func TestSelect_ToleratesSummationDrift(t *testing.T) {
	space := mustSpace(t, []int{2}, 1)
	sel, err := NewSelector(ModeMarginal, 5)
	require.NoError(t, err)
	_, err = sel.Select([]float64{0.5 + 1e-12, 0.5}, space)
	require.NoError(t, err)
}

func TestNewSelector_UnknownMode(t *testing.T) {
	_, err := NewSelector("greedy", 0)
	require.ErrorIs(t, err, ErrUnknownMode)

	sel, err := NewSelector("", 0)
	require.NoError(t, err)
	assert.Equal(t, ModeMarginal, sel.Mode())
}

// #endregion select-tests
