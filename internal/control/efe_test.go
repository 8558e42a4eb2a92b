package control

import (
	"context"
	"math"
	"math/rand"
	"testing"

	"github.com/danielpatrickdp/aif-controller/internal/model"
	"github.com/danielpatrickdp/aif-controller/internal/policy"
	"github.com/danielpatrickdp/aif-controller/internal/tensor"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// #region helpers
// switchModel has one two-state factor observed through A and two controls:
// control u moves the factor to state u from anywhere.
func switchModel(t *testing.T, a *tensor.Tensor, c []float64) *model.Model {
	t.Helper()
	b, err := tensor.New(2, 2, 2)
	require.NoError(t, err)
	for s := 0; s < 2; s++ {
		b.Set(1, 0, s, 0)
		b.Set(1, 1, s, 1)
	}
	m, err := model.New(model.Spec{
		A: []*tensor.Tensor{a},
		B: []*tensor.Tensor{b},
		C: [][]float64{c},
	})
	require.NoError(t, err)
	return m
}

func identity2(t *testing.T) *tensor.Tensor {
	t.Helper()
	a, err := tensor.FromData([]float64{1, 0, 0, 1}, 2, 2)
	require.NoError(t, err)
	return a
}

func mustSpace(t *testing.T, numControls []int, horizon int) *policy.Space {
	t.Helper()
	s, err := policy.NewSpace(numControls, horizon)
	require.NoError(t, err)
	return s
}

// #endregion helpers

// #region risk-tests
func TestEvaluate_PreferredOutcomeLowersEFE(t *testing.T) {
	m := switchModel(t, identity2(t), []float64{0, 3})
	ev, err := Evaluate(context.Background(), m, [][]float64{{0.5, 0.5}}, mustSpace(t, []int{2}, 1), DefaultConfig())
	require.NoError(t, err)

	assert.InDelta(t, 0.0, ev.G[0], 1e-9)
	assert.InDelta(t, -3.0, ev.G[1], 1e-9)
	assert.Greater(t, ev.QPi[1], ev.QPi[0])
	require.NoError(t, tensor.CheckDistribution(ev.QPi, 1e-9))
}

func TestEvaluate_StrongerPreferenceLowersEFE(t *testing.T) {
	space := mustSpace(t, []int{2}, 1)
	prev := math.Inf(1)
	for _, pref := range []float64{0, 0.5, 1, 2, 4} {
		m := switchModel(t, identity2(t), []float64{0, pref})
		ev, err := Evaluate(context.Background(), m, [][]float64{{0.5, 0.5}}, space, DefaultConfig())
		require.NoError(t, err)
		assert.Less(t, ev.G[1], prev, "preference %g", pref)
		prev = ev.G[1]
	}
}

func TestEvaluate_IdenticalOutcomesGiveEqualEFE(t *testing.T) {
	b, err := tensor.New(2, 2, 2)
	require.NoError(t, err)
	for u := 0; u < 2; u++ {
		b.Set(1, 0, 0, u)
		b.Set(1, 1, 1, u)
	}
	m, err := model.New(model.Spec{
		A: []*tensor.Tensor{identity2(t)},
		B: []*tensor.Tensor{b},
		C: [][]float64{{1, 0}},
	})
	require.NoError(t, err)

	ev, err := Evaluate(context.Background(), m, [][]float64{{0.3, 0.7}}, mustSpace(t, []int{2}, 2), DefaultConfig())
	require.NoError(t, err)
	for i := 1; i < len(ev.G); i++ {
		assert.InDelta(t, ev.G[0], ev.G[i], 1e-12)
		assert.InDelta(t, 0.25, ev.QPi[i], 1e-12)
	}
}

// #endregion risk-tests

// #region ambiguity-tests
func TestEvaluate_AmbiguityIsExpectedLikelihoodEntropy(t *testing.T) {
	// state 0 always emits outcome 0; state 1 emits either outcome
	a, err := tensor.FromData([]float64{
		1, 0.5,
		0, 0.5,
	}, 2, 2)
	require.NoError(t, err)
	m := switchModel(t, a, []float64{0, 0})

	ev, err := Evaluate(context.Background(), m, [][]float64{{0.5, 0.5}}, mustSpace(t, []int{2}, 1), DefaultConfig())
	require.NoError(t, err)
	assert.InDelta(t, 0.0, ev.Ambiguity[0], 1e-9)
	assert.InDelta(t, math.Ln2, ev.Ambiguity[1], 1e-9)
}

// #endregion ambiguity-tests

// #region novelty-tests
func TestEvaluate_NoveltyOnlyWithLearning(t *testing.T) {
	rng := rand.New(rand.NewSource(4))
	A, err := model.RandomA(rng, []int{3}, []int{2})
	require.NoError(t, err)
	B, err := model.RandomB(rng, []int{2}, []int{2})
	require.NoError(t, err)
	pA, err := model.DirichletPriors(A, 1)
	require.NoError(t, err)
	space := mustSpace(t, []int{2}, 1)
	qs := [][]float64{{0.5, 0.5}}

	plain, err := model.New(model.Spec{A: A, B: B, PA: pA})
	require.NoError(t, err)
	ev, err := Evaluate(context.Background(), plain, qs, space, DefaultConfig())
	require.NoError(t, err)
	for _, v := range ev.Novelty {
		assert.Equal(t, 0.0, v)
	}

	learning, err := model.New(model.Spec{A: A, B: B, PA: pA, LearnA: true})
	require.NoError(t, err)
	ev2, err := Evaluate(context.Background(), learning, qs, space, DefaultConfig())
	require.NoError(t, err)
	for i, v := range ev2.Novelty {
		assert.Greater(t, v, 0.0)
		assert.InDelta(t, ev.G[i]-v, ev2.G[i], 1e-12)
	}

	cfg := DefaultConfig()
	cfg.UseNovelty = false
	ev3, err := Evaluate(context.Background(), learning, qs, space, cfg)
	require.NoError(t, err)
	assert.Equal(t, ev.G, ev3.G)
}

func TestEvaluate_TransitionNoveltyShrinksWithConfidence(t *testing.T) {
	rng := rand.New(rand.NewSource(6))
	A, err := model.RandomA(rng, []int{2}, []int{2})
	require.NoError(t, err)
	B, err := model.RandomB(rng, []int{2}, []int{2})
	require.NoError(t, err)
	space := mustSpace(t, []int{2}, 1)
	qs := [][]float64{{0.5, 0.5}}

	novelty := func(scale float64) []float64 {
		pB, err := model.DirichletPriors(B, scale)
		require.NoError(t, err)
		m, err := model.New(model.Spec{A: A, B: B, PB: pB, LearnB: true})
		require.NoError(t, err)
		ev, err := Evaluate(context.Background(), m, qs, space, DefaultConfig())
		require.NoError(t, err)
		return ev.Novelty
	}
	weak, strong := novelty(1), novelty(100)
	for i := range weak {
		assert.Greater(t, weak[i], strong[i])
	}
}

// #endregion novelty-tests

// #region concurrency-tests
func TestEvaluate_WorkersMatchSequential(t *testing.T) {
	rng := rand.New(rand.NewSource(9))
	A, err := model.RandomA(rng, []int{4, 2}, []int{3, 2})
	require.NoError(t, err)
	B, err := model.RandomB(rng, []int{3, 2}, []int{3, 2})
	require.NoError(t, err)
	m, err := model.New(model.Spec{A: A, B: B, C: [][]float64{{0, 1, 2, 0}, {0.5, 0}}})
	require.NoError(t, err)
	space := mustSpace(t, []int{3, 2}, 2)
	qs := [][]float64{{0.2, 0.3, 0.5}, {0.6, 0.4}}

	seq, err := Evaluate(context.Background(), m, qs, space, DefaultConfig())
	require.NoError(t, err)
	cfg := DefaultConfig()
	cfg.Workers = 4
	par, err := Evaluate(context.Background(), m, qs, space, cfg)
	require.NoError(t, err)

	if diff := cmp.Diff(seq, par, cmpopts.EquateApprox(0, 1e-12)); diff != "" {
		t.Fatalf("parallel evaluation differs (-seq +par):\n%s", diff)
	}
	require.Len(t, seq.G, 36)
}

func TestEvaluate_CancelledContext(t *testing.T) {
	m := switchModel(t, identity2(t), []float64{0, 1})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Evaluate(ctx, m, [][]float64{{0.5, 0.5}}, mustSpace(t, []int{2}, 3), DefaultConfig())
	require.ErrorIs(t, err, context.Canceled)

	cfg := DefaultConfig()
	cfg.Workers = 2
	_, err = Evaluate(ctx, m, [][]float64{{0.5, 0.5}}, mustSpace(t, []int{2}, 3), cfg)
	require.ErrorIs(t, err, context.Canceled)
}

// #endregion concurrency-tests

// #region validation-tests
func TestEvaluate_ShapeErrors(t *testing.T) {
	m := switchModel(t, identity2(t), []float64{0, 1})
	ctx := context.Background()

	_, err := Evaluate(ctx, m, [][]float64{{0.5, 0.5}}, nil, DefaultConfig())
	require.ErrorIs(t, err, ErrNoPolicies)

	_, err = Evaluate(ctx, m, [][]float64{{0.5, 0.5}}, mustSpace(t, []int{3}, 1), DefaultConfig())
	require.ErrorIs(t, err, tensor.ErrShapeMismatch)

	_, err = Evaluate(ctx, m, [][]float64{{0.2, 0.3, 0.5}}, mustSpace(t, []int{2}, 1), DefaultConfig())
	require.ErrorIs(t, err, tensor.ErrShapeMismatch)
}

func TestPolicyPosterior(t *testing.T) {
	q, err := PolicyPosterior([]float64{1, 1}, 4, nil)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, q[0], 1e-12)

	q, err = PolicyPosterior([]float64{1, 1}, 4, []float64{0.2, 0.8})
	require.NoError(t, err)
	assert.InDelta(t, 0.2, q[0], 1e-9)
	assert.InDelta(t, 0.8, q[1], 1e-9)

	q, err = PolicyPosterior([]float64{0, 1}, 1, nil)
	require.NoError(t, err)
	assert.InDelta(t, 1/(1+math.Exp(-1)), q[0], 1e-12)

	_, err = PolicyPosterior(nil, 1, nil)
	require.ErrorIs(t, err, ErrNoPolicies)
	_, err = PolicyPosterior([]float64{0, 1}, 0, nil)
	require.ErrorIs(t, err, tensor.ErrNumerical)
	_, err = PolicyPosterior([]float64{0, 1}, 1, []float64{1})
	require.ErrorIs(t, err, tensor.ErrShapeMismatch)
}

func TestPolicyPosterior_ValidForAnyPrecision(t *testing.T) {
	for _, G := range [][]float64{
		{-1e10, 0, 1e10},
		{3.2, 3.2, 1.5, 7},
		{0},
	} {
		for _, gamma := range []float64{1e-6, 1, 16, 1e6, 1e300} {
			q, err := PolicyPosterior(G, gamma, nil)
			require.NoError(t, err, "G=%v gamma=%g", G, gamma)
			require.Len(t, q, len(G))
			require.NoError(t, tensor.CheckDistribution(q, 1e-9), "G=%v gamma=%g", G, gamma)
		}
	}

	q, err := PolicyPosterior([]float64{-1e10, 0, 1e10}, 1e300, []float64{0.2, 0.3, 0.5})
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 0, 0}, q)

	_, err = PolicyPosterior([]float64{0, math.NaN()}, 1, nil)
	require.ErrorIs(t, err, tensor.ErrNumerical)
	_, err = PolicyPosterior([]float64{0, 1}, math.Inf(1), nil)
	require.ErrorIs(t, err, tensor.ErrNumerical)
}

// #endregion validation-tests
