package loop

import (
	"context"
	"errors"
	"testing"

	"github.com/danielpatrickdp/aif-controller/internal/agent"
	"github.com/danielpatrickdp/aif-controller/internal/env"
	"github.com/danielpatrickdp/aif-controller/internal/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// #region helpers
func buildRun(t *testing.T, seed int64) (*agent.Agent, *env.World) {
	t.Helper()
	w, err := env.Build(env.Scenario{
		NumStates:   []int{3, 2},
		NumObs:      []int{4},
		Preferences: [][]float64{{0, 0, 0, 3}},
		Seed:        seed,
	})
	require.NoError(t, err)
	cfg := agent.DefaultConfig()
	cfg.Horizon = 1
	a, err := agent.New(w.Model, cfg, w.AgentSeed)
	require.NoError(t, err)
	return a, w
}

type memRecorder struct {
	steps  []agent.StepResult
	states [][]int
	err    error
}

func (r *memRecorder) Record(_ context.Context, res agent.StepResult, state []int) error {
	if r.err != nil {
		return r.err
	}
	r.steps = append(r.steps, res)
	r.states = append(r.states, state)
	return nil
}

type brokenEnv struct {
	Environment
	failAfter int
	calls     int
}

func (b *brokenEnv) Advance(ctx context.Context, state, action []int) ([]int, error) {
	b.calls++
	if b.calls > b.failAfter {
		return nil, errors.New("world offline")
	}
	return b.Environment.Advance(ctx, state, action)
}

// #endregion helpers

// #region end-to-end
func TestRun_EndToEndScenario(t *testing.T) {
	a, w := buildRun(t, 2024)
	h, err := Run(context.Background(), a, w.Process, w.Initial, 100, WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)
	require.Equal(t, 100, h.Len())

	numControls := w.Model.NumControls
	for step := 0; step < h.Len(); step++ {
		for f, q := range h.Qs[step] {
			require.NoError(t, tensor.CheckDistribution(q, 1e-9), "step %d factor %d", step, f)
		}
		require.NoError(t, tensor.CheckDistribution(h.QPi[step], 1e-9), "step %d", step)
		require.True(t, tensor.IsFinite(h.G[step]), "step %d", step)
		require.Len(t, h.Actions[step], len(numControls))
		for f, u := range h.Actions[step] {
			require.GreaterOrEqual(t, u, 0)
			require.Less(t, u, numControls[f], "step %d factor %d", step, f)
		}
		require.Len(t, h.Observations[step], 1)
		require.Less(t, h.Observations[step][0], 4)
	}
}

func TestRun_DeterministicUnderSeed(t *testing.T) {
	a1, w1 := buildRun(t, 77)
	h1, err := Run(context.Background(), a1, w1.Process, w1.Initial, 30)
	require.NoError(t, err)
	a2, w2 := buildRun(t, 77)
	h2, err := Run(context.Background(), a2, w2.Process, w2.Initial, 30)
	require.NoError(t, err)

	assert.Equal(t, h1.Actions, h2.Actions)
	assert.Equal(t, h1.Observations, h2.Observations)
	assert.Equal(t, h1.States, h2.States)
}

// #endregion end-to-end

// #region failure-tests
func TestRun_RecordsEveryStep(t *testing.T) {
	a, w := buildRun(t, 3)
	rec := &memRecorder{}
	h, err := Run(context.Background(), a, w.Process, w.Initial, 5, WithRecorder(rec))
	require.NoError(t, err)
	require.Len(t, rec.steps, 5)
	assert.Equal(t, h.States, rec.states)
	assert.Equal(t, w.Initial, rec.states[0])
}

func TestRun_AbortsOnEnvironmentError(t *testing.T) {
	a, w := buildRun(t, 4)
	broken := &brokenEnv{Environment: w.Process, failAfter: 2}
	h, err := Run(context.Background(), a, broken, w.Initial, 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "world offline")
	assert.Equal(t, 3, h.Len())
}

func TestRun_AbortsOnRecorderError(t *testing.T) {
	a, w := buildRun(t, 5)
	_, err := Run(context.Background(), a, w.Process, w.Initial, 3, WithRecorder(&memRecorder{err: errors.New("disk full")}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "record")
}

func TestRun_AbortsOnShapeError(t *testing.T) {
	a, w := buildRun(t, 6)
	_, err := Run(context.Background(), a, w.Process, []int{0}, 3)
	require.ErrorIs(t, err, tensor.ErrShapeMismatch)
}

func TestRun_StopsOnCancel(t *testing.T) {
	a, w := buildRun(t, 7)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	h, err := Run(ctx, a, w.Process, w.Initial, 3)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, h.Len())
}

// #endregion failure-tests
