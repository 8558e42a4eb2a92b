package tensor

import (
	"fmt"
	"math"
)

// #region constructor
// NewDirichlet wraps a copy of counts. Every count must be finite and non-negative and
// every column over axis 0 must carry positive mass.
func NewDirichlet(counts *Tensor) (*Dirichlet, error) {
	if !IsFinite(counts.data) {
		return nil, fmt.Errorf("%w: concentration holds NaN or Inf", ErrNumerical)
	}
	n, inner := counts.shape[0], counts.strides[0]
	for j := 0; j < inner; j++ {
		var sum float64
		for o := 0; o < n; o++ {
			v := counts.data[o*inner+j]
			if v < 0 {
				return nil, fmt.Errorf("%w: negative concentration %g", ErrNormalization, v)
			}
			sum += v
		}
		if !(sum > 0) {
			return nil, fmt.Errorf("%w: concentration column %d has no mass", ErrNormalization, j)
		}
	}
	return &Dirichlet{counts: counts.Clone()}, nil
}

// DirichletFromProbs scales a probability tensor into pseudo-counts.
func DirichletFromProbs(p *Tensor, scale float64) (*Dirichlet, error) {
	if !(scale > 0) || math.IsInf(scale, 0) {
		return nil, fmt.Errorf("%w: concentration scale %g", ErrNumerical, scale)
	}
	return NewDirichlet(p.Map(func(v float64) float64 { return v * scale }))
}

// #endregion constructor

// #region accessors
// Counts returns a copy of the pseudo-counts.
func (d *Dirichlet) Counts() *Tensor { return d.counts.Clone() }

// Shape returns the axis sizes.
func (d *Dirichlet) Shape() []int { return d.counts.Shape() }

// Total returns the summed pseudo-count mass.
func (d *Dirichlet) Total() float64 { return d.counts.Sum() }

// Clone returns a deep copy.
func (d *Dirichlet) Clone() *Dirichlet { return &Dirichlet{counts: d.counts.Clone()} }

// #endregion accessors

// #region expectation
// Expectation returns the column-normalized pseudo-counts.
func (d *Dirichlet) Expectation() (*Tensor, error) {
	t := d.counts.Clone()
	if err := t.Normalize(); err != nil {
		return nil, fmt.Errorf("dirichlet expectation: %w", err)
	}
	return t, nil
}

// #endregion expectation

// #region update
// Update adds weight * outcome ⊗ factors[0] ⊗ factors[1] ⊗ ... to the counts. outcome
// spans axis 0 and factors[k] spans axis k+1.
func (d *Dirichlet) Update(outcome []float64, factors [][]float64, weight float64) error {
	nd := len(d.counts.shape)
	if len(factors) != nd-1 {
		return fmt.Errorf("%w: %d factor vectors for %d-axis concentration", ErrShapeMismatch, len(factors), nd)
	}
	vecs := append([][]float64{outcome}, factors...)
	for ax, v := range vecs {
		if len(v) != d.counts.shape[ax] {
			return fmt.Errorf("%w: vector for axis %d has length %d, want %d", ErrShapeMismatch, ax, len(v), d.counts.shape[ax])
		}
	}
	if !(weight >= 0) || math.IsInf(weight, 0) {
		return fmt.Errorf("%w: update weight %g", ErrNumerical, weight)
	}

	idx := make([]int, nd)
	for i := range d.counts.data {
		w := weight
		for ax := 0; ax < nd && w != 0; ax++ {
			w *= vecs[ax][idx[ax]]
		}
		d.counts.data[i] += w
		for ax := nd - 1; ax >= 0; ax-- {
			idx[ax]++
			if idx[ax] < d.counts.shape[ax] {
				break
			}
			idx[ax] = 0
		}
	}
	return nil
}

// Scale multiplies every count by factor, which must lie in (0, 1]. Expectations are
// unchanged while confidence shrinks.
func (d *Dirichlet) Scale(factor float64) error {
	if !(factor > 0) || factor > 1 {
		return fmt.Errorf("%w: scale factor %g outside (0, 1]", ErrNumerical, factor)
	}
	for i := range d.counts.data {
		d.counts.data[i] *= factor
	}
	return nil
}

// #endregion update

// #region weighted-norm
// WeightedNorm returns 0.5*(1/a0 - 1/a) per cell, where a0 is the column total. Cells
// with zero concentration contribute 0. Values are non-positive and shrink towards 0 as
// concentrations grow, so very large priors carry no novelty.
func (d *Dirichlet) WeightedNorm() *Tensor {
	out := d.counts.Clone()
	n, inner := out.shape[0], out.strides[0]
	for j := 0; j < inner; j++ {
		var a0 float64
		for o := 0; o < n; o++ {
			a0 += d.counts.data[o*inner+j]
		}
		for o := 0; o < n; o++ {
			a := d.counts.data[o*inner+j]
			if a <= 0 {
				out.data[o*inner+j] = 0
				continue
			}
			out.data[o*inner+j] = 0.5 * (1/a0 - 1/a)
		}
	}
	return out
}

// #endregion weighted-norm
