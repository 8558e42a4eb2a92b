package learning

import (
	"fmt"
	"math"
	"time"

	"github.com/danielpatrickdp/aif-controller/internal/model"
	"github.com/danielpatrickdp/aif-controller/internal/tensor"
)

// #region likelihood
// UpdateLikelihood adds Rate * onehot(obs[g]) ⊗ qs to pA[g] for every modality and
// replaces A with the new Dirichlet expectation. Models without LearnA are left alone.
func UpdateLikelihood(m *model.Model, obs []int, qs [][]float64, cfg Config) (Result, error) {
	start := time.Now()
	if !cfg.Enabled || !m.LearnA {
		return noOp("likelihood learning disabled"), nil
	}
	if err := checkRate(cfg); err != nil {
		return Result{}, err
	}
	if len(obs) != m.NumModalities() {
		return Result{}, fmt.Errorf("%w: %d observations for %d modalities", tensor.ErrShapeMismatch, len(obs), m.NumModalities())
	}

	var metrics Metrics
	for g, pa := range m.PA {
		if obs[g] < 0 || obs[g] >= m.NumObs[g] {
			return Result{}, fmt.Errorf("%w: observation %d for modality %d out of range", tensor.ErrShapeMismatch, obs[g], g)
		}
		if cfg.ForgetRate > 0 {
			if err := pa.Scale(1 - cfg.ForgetRate); err != nil {
				return Result{}, fmt.Errorf("pA[%d]: %w", g, err)
			}
		}
		before := pa.Total()
		if err := pa.Update(tensor.OneHot(m.NumObs[g], obs[g]), qs, cfg.Rate); err != nil {
			return Result{}, fmt.Errorf("pA[%d]: %w", g, err)
		}
		a, err := pa.Expectation()
		if err != nil {
			return Result{}, fmt.Errorf("pA[%d]: %w", g, err)
		}
		if err := m.SetLikelihood(g, a); err != nil {
			return Result{}, err
		}
		added := pa.Total() - before
		metrics.MassAdded += added
		metrics.Components = append(metrics.Components, ComponentMetric{Name: fmt.Sprintf("A[%d]", g), MassAdded: added})
	}
	metrics.UpdateTimeMs = time.Since(start).Milliseconds()
	return commit(metrics), nil
}

// #endregion likelihood

// #region transition
// UpdateTransition adds Rate * qs[f] ⊗ qsPrev[f] ⊗ onehot(action[f]) to pB[f] for every
// factor and replaces B with the new Dirichlet expectation. Models without LearnB are
// left alone.
func UpdateTransition(m *model.Model, action []int, qs, qsPrev [][]float64, cfg Config) (Result, error) {
	start := time.Now()
	if !cfg.Enabled || !m.LearnB {
		return noOp("transition learning disabled"), nil
	}
	if err := checkRate(cfg); err != nil {
		return Result{}, err
	}
	nf := m.NumFactors()
	if len(action) != nf || len(qs) != nf || len(qsPrev) != nf {
		return Result{}, fmt.Errorf("%w: transition update needs one entry per factor", tensor.ErrShapeMismatch)
	}

	var metrics Metrics
	for f, pb := range m.PB {
		if action[f] < 0 || action[f] >= m.NumControls[f] {
			return Result{}, fmt.Errorf("%w: action %d for factor %d out of range", tensor.ErrShapeMismatch, action[f], f)
		}
		if cfg.ForgetRate > 0 {
			if err := pb.Scale(1 - cfg.ForgetRate); err != nil {
				return Result{}, fmt.Errorf("pB[%d]: %w", f, err)
			}
		}
		before := pb.Total()
		u := tensor.OneHot(m.NumControls[f], action[f])
		if err := pb.Update(qs[f], [][]float64{qsPrev[f], u}, cfg.Rate); err != nil {
			return Result{}, fmt.Errorf("pB[%d]: %w", f, err)
		}
		b, err := pb.Expectation()
		if err != nil {
			return Result{}, fmt.Errorf("pB[%d]: %w", f, err)
		}
		if err := m.SetTransition(f, b); err != nil {
			return Result{}, err
		}
		added := pb.Total() - before
		metrics.MassAdded += added
		metrics.Components = append(metrics.Components, ComponentMetric{Name: fmt.Sprintf("B[%d]", f), MassAdded: added})
	}
	metrics.UpdateTimeMs = time.Since(start).Milliseconds()
	return commit(metrics), nil
}

// #endregion transition

// #region helpers
func checkRate(cfg Config) error {
	if !(cfg.Rate > 0) || math.IsInf(cfg.Rate, 0) {
		return fmt.Errorf("%w: learning rate %g", tensor.ErrNumerical, cfg.Rate)
	}
	if cfg.ForgetRate < 0 || cfg.ForgetRate >= 1 {
		return fmt.Errorf("%w: forget rate %g outside [0, 1)", tensor.ErrNumerical, cfg.ForgetRate)
	}
	return nil
}

func noOp(reason string) Result {
	return Result{Decision: Decision{Action: "no_op", Reason: reason}}
}

func commit(metrics Metrics) Result {
	return Result{
		Decision: Decision{
			Action: "commit",
			Reason: fmt.Sprintf("components: %d, mass added: %.6f", len(metrics.Components), metrics.MassAdded),
		},
		Metrics: metrics,
	}
}

// #endregion helpers
