package model

import (
	"fmt"
	"math/rand"

	"github.com/danielpatrickdp/aif-controller/internal/tensor"
)

// #region random-likelihood
// RandomA draws one likelihood tensor per modality with uniform random columns.
func RandomA(rng *rand.Rand, numObs, numStates []int) ([]*tensor.Tensor, error) {
	out := make([]*tensor.Tensor, len(numObs))
	for g, no := range numObs {
		shape := append([]int{no}, numStates...)
		a, err := tensor.New(shape...)
		if err != nil {
			return nil, fmt.Errorf("A[%d]: %w", g, err)
		}
		data := a.Data()
		for i := range data {
			data[i] = rng.Float64()
		}
		if err := a.Normalize(); err != nil {
			return nil, fmt.Errorf("A[%d]: %w", g, err)
		}
		out[g] = a
	}
	return out, nil
}

// #endregion random-likelihood

// #region random-transition
// RandomB draws one transition tensor per factor. Factors with a single control get the
// identity transition.
func RandomB(rng *rand.Rand, numStates, numControls []int) ([]*tensor.Tensor, error) {
	if len(numStates) != len(numControls) {
		return nil, fmt.Errorf("%w: %d factors, %d control counts", tensor.ErrShapeMismatch, len(numStates), len(numControls))
	}
	out := make([]*tensor.Tensor, len(numStates))
	for f, ns := range numStates {
		b, err := tensor.New(ns, ns, numControls[f])
		if err != nil {
			return nil, fmt.Errorf("B[%d]: %w", f, err)
		}
		if numControls[f] == 1 {
			for s := 0; s < ns; s++ {
				b.Set(1, s, s, 0)
			}
			out[f] = b
			continue
		}
		data := b.Data()
		for i := range data {
			data[i] = rng.Float64()
		}
		if err := b.Normalize(); err != nil {
			return nil, fmt.Errorf("B[%d]: %w", f, err)
		}
		out[f] = b
	}
	return out, nil
}

// #endregion random-transition

// #region defaults
// UniformD returns flat priors for every factor.
func UniformD(numStates []int) [][]float64 {
	out := make([][]float64, len(numStates))
	for f, ns := range numStates {
		out[f] = tensor.Uniform(ns)
	}
	return out
}

// ZeroC returns neutral preferences for every modality.
func ZeroC(numObs []int) [][]float64 {
	out := make([][]float64, len(numObs))
	for g, no := range numObs {
		out[g] = make([]float64, no)
	}
	return out
}

// DirichletPriors scales each tensor into pseudo-counts.
func DirichletPriors(ts []*tensor.Tensor, scale float64) ([]*tensor.Dirichlet, error) {
	out := make([]*tensor.Dirichlet, len(ts))
	for i, t := range ts {
		d, err := tensor.DirichletFromProbs(t, scale)
		if err != nil {
			return nil, fmt.Errorf("prior %d: %w", i, err)
		}
		out[i] = d
	}
	return out, nil
}

// #endregion defaults
