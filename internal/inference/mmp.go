package inference

import (
	"fmt"
	"math"

	"github.com/danielpatrickdp/aif-controller/internal/model"
	"github.com/danielpatrickdp/aif-controller/internal/tensor"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// #region mmp
// RunMMP smooths beliefs across a window of observations with marginal message passing.
// actions[t] is the action vector taken between observation t and t+1, so it must have
// len(obsSeq)-1 entries. prior is the belief about the first step of the window.
//
// Each sweep updates every (step, factor) pair from three log messages: the likelihood
// of that step's observation, the forward message B·q[t-1] (or the prior at t=0) and the
// backward message through the column-normalized transpose of B (absent at the last step).
func RunMMP(m *model.Model, obsSeq [][]int, actions [][]int, prior [][]float64, cfg MMPConfig) (MMPResult, error) {
	steps := len(obsSeq)
	if steps == 0 {
		return MMPResult{}, fmt.Errorf("%w: empty observation window", tensor.ErrShapeMismatch)
	}
	if len(actions) != steps-1 {
		return MMPResult{}, fmt.Errorf("%w: %d actions for %d observations", tensor.ErrShapeMismatch, len(actions), steps)
	}
	nf := m.NumFactors()
	for t, a := range actions {
		if len(a) != nf {
			return MMPResult{}, fmt.Errorf("%w: action %d has %d entries", tensor.ErrShapeMismatch, t, len(a))
		}
		for f, u := range a {
			if u < 0 || u >= m.NumControls[f] {
				return MMPResult{}, fmt.Errorf("%w: action %d for factor %d out of range", tensor.ErrShapeMismatch, u, f)
			}
		}
	}
	if err := checkPrior(prior, m.NumStates); err != nil {
		return MMPResult{}, err
	}
	if cfg.Iterations < 1 {
		cfg.Iterations = 1
	}

	lik := make([]*tensor.Tensor, steps)
	logLik := make([]*tensor.Tensor, steps)
	for t, obs := range obsSeq {
		var err error
		if lik[t], err = JointLikelihood(m.A, obs); err != nil {
			return MMPResult{}, fmt.Errorf("step %d: %w", t, err)
		}
		logLik[t] = lik[t].Map(func(v float64) float64 { return math.Log(v + tensor.Floor) })
	}
	backward := backwardTransitions(m)

	qs := make([][][]float64, steps)
	for t := range qs {
		qs[t] = model.UniformD(m.NumStates)
	}

	var fe float64
	for it := 0; it < cfg.Iterations; it++ {
		fe = 0
		for t := 0; t < steps; t++ {
			stepPrior := make([][]float64, nf)
			for f := 0; f < nf; f++ {
				marg, err := lik[t].Dot(qs[t], 0, f)
				if err != nil {
					return MMPResult{}, fmt.Errorf("step %d factor %d: %w", t, f, err)
				}
				acc := tensor.LogFloor(marg.Data())

				if t == 0 {
					stepPrior[f] = prior[f]
				} else {
					stepPrior[f] = m.Predict(f, actions[t-1][f], qs[t-1][f])
				}
				floats.Add(acc, tensor.LogFloor(stepPrior[f]))

				if t < steps-1 {
					ns := m.NumStates[f]
					msg := mat.NewVecDense(ns, nil)
					msg.MulVec(backward[f][actions[t][f]], mat.NewVecDense(ns, qs[t+1][f]))
					floats.Add(acc, tensor.LogFloor(msg.RawVector().Data))
				}

				qs[t][f] = tensor.Softmax(acc)
			}
			stepFE, err := FreeEnergy(qs[t], stepPrior, logLik[t])
			if err != nil {
				return MMPResult{}, fmt.Errorf("step %d: %w", t, err)
			}
			fe += stepFE
		}
	}

	for t := range qs {
		for f, q := range qs[t] {
			if err := tensor.CheckDistribution(q, 1e-6); err != nil {
				return MMPResult{}, fmt.Errorf("step %d factor %d: %w", t, f, err)
			}
		}
	}
	return MMPResult{Qs: qs, FreeEnergy: fe}, nil
}

// backwardTransitions returns, per factor and action, B[:, :, u] transposed with every
// column rescaled to sum to one.
func backwardTransitions(m *model.Model) [][]*mat.Dense {
	out := make([][]*mat.Dense, m.NumFactors())
	for f := range out {
		out[f] = make([]*mat.Dense, m.NumControls[f])
		for u := range out[f] {
			bt := mat.DenseCopyOf(m.Transition(f, u).T())
			r, c := bt.Dims()
			for j := 0; j < c; j++ {
				var sum float64
				for i := 0; i < r; i++ {
					sum += bt.At(i, j)
				}
				if sum == 0 {
					continue
				}
				for i := 0; i < r; i++ {
					bt.Set(i, j, bt.At(i, j)/sum)
				}
			}
			out[f][u] = bt
		}
	}
	return out
}

// #endregion mmp
