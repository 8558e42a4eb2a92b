package inference

import (
	"fmt"
	"math"
	"slices"

	"github.com/danielpatrickdp/aif-controller/internal/tensor"
	"gonum.org/v1/gonum/floats"
)

// #region likelihood
// JointLogLikelihood returns sum over modalities of ln(A[g][obs[g], ...] + Floor) as a
// tensor over the joint hidden state.
func JointLogLikelihood(A []*tensor.Tensor, obs []int) (*tensor.Tensor, error) {
	return jointLikelihood(A, obs, true)
}

// JointLikelihood returns the product over modalities of A[g][obs[g], ...].
func JointLikelihood(A []*tensor.Tensor, obs []int) (*tensor.Tensor, error) {
	return jointLikelihood(A, obs, false)
}

func jointLikelihood(A []*tensor.Tensor, obs []int, logSpace bool) (*tensor.Tensor, error) {
	if len(obs) != len(A) {
		return nil, fmt.Errorf("%w: %d observations for %d modalities", tensor.ErrShapeMismatch, len(obs), len(A))
	}
	var out *tensor.Tensor
	for g, a := range A {
		s, err := a.Slice(obs[g])
		if err != nil {
			return nil, fmt.Errorf("modality %d: %w", g, err)
		}
		if out == nil {
			if logSpace {
				out = s.Map(func(v float64) float64 { return 0 })
			} else {
				out = s.Map(func(v float64) float64 { return 1 })
			}
		}
		if !slices.Equal(s.Shape(), out.Shape()) {
			return nil, fmt.Errorf("%w: modality %d covers states %v, want %v", tensor.ErrShapeMismatch, g, s.Shape(), out.Shape())
		}
		dst, src := out.Data(), s.Data()
		for i, v := range src {
			if logSpace {
				dst[i] += math.Log(v + tensor.Floor)
			} else {
				dst[i] *= v
			}
		}
	}
	return out, nil
}

// #endregion likelihood

// #region infer
// Infer computes the mean-field posterior over hidden-state factors for one observation.
//
// Each factor keeps an accumulator ln prior[f] + E_{q(other factors)}[ln P(o | s)].
// A pass visits factors in ascending index order and overwrites Qs[f] in place, so the
// update of factor f already sees the new beliefs of factors 0..f-1 from the same pass.
// A single-factor model is solved exactly in one pass.
func Infer(A []*tensor.Tensor, obs []int, prior [][]float64, cfg Config) (Result, error) {
	if len(A) == 0 {
		return Result{}, fmt.Errorf("%w: no modalities", tensor.ErrShapeMismatch)
	}
	numStates := A[0].Shape()[1:]
	if err := checkPrior(prior, numStates); err != nil {
		return Result{}, err
	}
	if cfg.MaxIterations < 1 {
		cfg.MaxIterations = 1
	}

	logL, err := JointLogLikelihood(A, obs)
	if err != nil {
		return Result{}, err
	}

	nf := len(numStates)
	logPrior := make([][]float64, nf)
	qs := make([][]float64, nf)
	for f := range prior {
		logPrior[f] = tensor.LogFloor(prior[f])
		qs[f] = append([]float64(nil), prior[f]...)
	}

	res := Result{Qs: qs}
	if nf == 1 {
		acc := append([]float64(nil), logL.Data()...)
		floats.Add(acc, logPrior[0])
		qs[0] = tensor.Softmax(acc)
		res.Iterations = 1
		res.Converged = true
	} else {
		for it := 1; it <= cfg.MaxIterations; it++ {
			var maxDelta float64
			for f := 0; f < nf; f++ {
				ell, err := logL.Dot(qs, 0, f)
				if err != nil {
					return Result{}, fmt.Errorf("factor %d: %w", f, err)
				}
				acc := ell.Data()
				floats.Add(acc, logPrior[f])
				next := tensor.Softmax(acc)
				if d := floats.Distance(next, qs[f], 1); d > maxDelta {
					maxDelta = d
				}
				qs[f] = next
			}
			res.Iterations = it
			if maxDelta < cfg.Tolerance {
				res.Converged = true
				break
			}
		}
	}

	for f, q := range qs {
		if err := tensor.CheckDistribution(q, 1e-6); err != nil {
			return Result{}, fmt.Errorf("posterior of factor %d: %w", f, err)
		}
	}

	res.FreeEnergy, err = FreeEnergy(qs, prior, logL)
	if err != nil {
		return Result{}, err
	}
	return res, nil
}

func checkPrior(prior [][]float64, numStates []int) error {
	if len(prior) != len(numStates) {
		return fmt.Errorf("%w: %d prior vectors for %d factors", tensor.ErrShapeMismatch, len(prior), len(numStates))
	}
	for f, p := range prior {
		if len(p) != numStates[f] {
			return fmt.Errorf("%w: prior %d has %d entries, factor has %d states", tensor.ErrShapeMismatch, f, len(p), numStates[f])
		}
		if err := tensor.CheckDistribution(p, 1e-6); err != nil {
			return fmt.Errorf("prior %d: %w", f, err)
		}
	}
	return nil
}

// #endregion infer

// #region free-energy
// FreeEnergy returns sum_f KL[q_f || prior_f] - E_q[ln P(o | s)] for a factorized q.
func FreeEnergy(qs, prior [][]float64, logL *tensor.Tensor) (float64, error) {
	var complexity float64
	for f, q := range qs {
		lq, lp := tensor.LogFloor(q), tensor.LogFloor(prior[f])
		for i, v := range q {
			complexity += v * (lq[i] - lp[i])
		}
	}
	accuracy, err := logL.Contract(qs)
	if err != nil {
		return 0, fmt.Errorf("free energy: %w", err)
	}
	f := complexity - accuracy
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%w: free energy is %g", tensor.ErrNumerical, f)
	}
	return f, nil
}

// #endregion free-energy
