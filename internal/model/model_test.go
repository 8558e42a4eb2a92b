package model

import (
	"math/rand"
	"testing"

	"github.com/danielpatrickdp/aif-controller/internal/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// #region helpers
func randomSpec(t *testing.T, seed int64, numStates, numObs, numControls []int) Spec {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	a, err := RandomA(rng, numObs, numStates)
	require.NoError(t, err)
	b, err := RandomB(rng, numStates, numControls)
	require.NoError(t, err)
	return Spec{A: a, B: b}
}

// #endregion helpers

// #region builder-tests
func TestRandomA_ColumnsSumToOne(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	as, err := RandomA(rng, []int{4, 2}, []int{3, 2})
	require.NoError(t, err)
	require.Len(t, as, 2)
	for g, a := range as {
		assert.Equal(t, 3, a.NumDims(), "modality %d", g)
		for s0 := 0; s0 < 3; s0++ {
			for s1 := 0; s1 < 2; s1++ {
				var sum float64
				for _, v := range a.Column(s0, s1) {
					sum += v
				}
				assert.InDelta(t, 1.0, sum, 1e-9)
			}
		}
	}
}

func TestRandomB_ColumnsSumToOne(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	bs, err := RandomB(rng, []int{3, 2}, []int{3, 1})
	require.NoError(t, err)
	for f, b := range bs {
		require.NoError(t, b.CheckNormalized(1e-9), "factor %d", f)
	}
	// single-control factor is the identity
	assert.Equal(t, 1.0, bs[1].At(0, 0, 0))
	assert.Equal(t, 0.0, bs[1].At(1, 0, 0))
}

// #endregion builder-tests

// #region constructor-tests
func TestNew_DerivesDimensions(t *testing.T) {
	m, err := New(randomSpec(t, 1, []int{3, 2}, []int{4}, []int{3, 2}))
	require.NoError(t, err)
	assert.Equal(t, []int{3, 2}, m.NumStates)
	assert.Equal(t, []int{4}, m.NumObs)
	assert.Equal(t, []int{3, 2}, m.NumControls)
	assert.Equal(t, 2, m.NumFactors())
	assert.Equal(t, 1, m.NumModalities())
	// defaults
	assert.Equal(t, []float64{0, 0, 0, 0}, m.C[0])
	assert.InDelta(t, 1.0/3, m.D[0][1], 1e-12)
}

func TestNew_RejectsLikelihoodShapeMismatch(t *testing.T) {
	spec := randomSpec(t, 1, []int{3, 2}, []int{4}, []int{3, 2})
	bad, _ := tensor.New(4, 3, 3)
	bad.Fill(0.25)
	spec.A[0] = bad
	_, err := New(spec)
	require.ErrorIs(t, err, tensor.ErrShapeMismatch)
}

func TestNew_RejectsUnnormalizedTransition(t *testing.T) {
	spec := randomSpec(t, 1, []int{2}, []int{2}, []int{2})
	spec.B[0].Set(spec.B[0].At(0, 0, 0)+0.1, 0, 0, 0)
	_, err := New(spec)
	require.ErrorIs(t, err, tensor.ErrNormalization)
}

func TestNew_RejectsBadPreferencesAndPrior(t *testing.T) {
	spec := randomSpec(t, 1, []int{2}, []int{3}, []int{2})
	spec.C = [][]float64{{1, 2}}
	_, err := New(spec)
	require.ErrorIs(t, err, tensor.ErrShapeMismatch)

	spec.C = nil
	spec.D = [][]float64{{0.7, 0.7}}
	_, err = New(spec)
	require.ErrorIs(t, err, tensor.ErrNormalization)
}

func TestNew_LearningRequiresConcentration(t *testing.T) {
	spec := randomSpec(t, 1, []int{2}, []int{2}, []int{2})
	spec.LearnA = true
	_, err := New(spec)
	require.ErrorIs(t, err, tensor.ErrShapeMismatch)

	pa, err := DirichletPriors(spec.A, 1)
	require.NoError(t, err)
	spec.PA = pa
	_, err = New(spec)
	require.NoError(t, err)
}

// #endregion constructor-tests

// #region transition-tests
func TestPredict_MatchesTensorContraction(t *testing.T) {
	m, err := New(randomSpec(t, 9, []int{3}, []int{2}, []int{3}))
	require.NoError(t, err)
	q := []float64{0.2, 0.3, 0.5}
	for u := 0; u < 3; u++ {
		got := m.Predict(0, u, q)
		for next := 0; next < 3; next++ {
			var want float64
			for cur := 0; cur < 3; cur++ {
				want += m.B[0].At(next, cur, u) * q[cur]
			}
			assert.InDelta(t, want, got[next], 1e-12)
		}
		require.NoError(t, tensor.CheckDistribution(got, 1e-9))
	}
}

func TestClone_IsIndependent(t *testing.T) {
	m, err := New(randomSpec(t, 2, []int{2}, []int{2}, []int{2}))
	require.NoError(t, err)
	c := m.Clone()
	c.A[0].Set(0.123, 0, 0)
	c.C[0][0] = 5
	assert.NotEqual(t, 0.123, m.A[0].At(0, 0))
	assert.Equal(t, 0.0, m.C[0][0])
}

func TestSetTransition_RebuildsMatrices(t *testing.T) {
	m, err := New(randomSpec(t, 4, []int{2}, []int{2}, []int{2}))
	require.NoError(t, err)
	id, _ := tensor.New(2, 2, 2)
	for u := 0; u < 2; u++ {
		id.Set(1, 0, 0, u)
		id.Set(1, 1, 1, u)
	}
	require.NoError(t, m.SetTransition(0, id))
	assert.Equal(t, []float64{0.3, 0.7}, m.Predict(0, 1, []float64{0.3, 0.7}))
}

func TestAdopt_TakesLearnedTransitions(t *testing.T) {
	m, err := New(randomSpec(t, 5, []int{2}, []int{2}, []int{2}))
	require.NoError(t, err)
	c := m.Clone()
	id, _ := tensor.New(2, 2, 2)
	for u := 0; u < 2; u++ {
		id.Set(1, 0, 0, u)
		id.Set(1, 1, 1, u)
	}
	require.NoError(t, c.SetTransition(0, id))
	require.NotEqual(t, []float64{0.3, 0.7}, m.Predict(0, 1, []float64{0.3, 0.7}))

	m.Adopt(c)
	assert.Equal(t, []float64{0.3, 0.7}, m.Predict(0, 1, []float64{0.3, 0.7}))
	assert.Same(t, c.B[0], m.B[0])
}

// #endregion transition-tests
