package tensor

import "errors"

// #region errors
var (
	// ErrShapeMismatch reports axis sizes that disagree with declared cardinalities.
	ErrShapeMismatch = errors.New("shape mismatch")
	// ErrNormalization reports a distribution that does not sum to 1 within tolerance.
	ErrNormalization = errors.New("normalization error")
	// ErrNumerical reports NaN or Inf values reaching a belief.
	ErrNumerical = errors.New("numerical error")
)

// #endregion errors

// #region constants
const (
	// Floor is added before every log so log(0) never occurs.
	Floor = 1e-16
	// DefaultTolerance is the sum-to-one tolerance for constructed tensors.
	DefaultTolerance = 1e-9
)

// #endregion constants

// #region tensor
// Tensor is a dense row-major array of float64 values. Axis 0 is the outcome axis:
// for a likelihood A[o, s0, s1, ...] every column over axis 0 is a distribution.
type Tensor struct {
	shape   []int
	strides []int
	data    []float64
}

// #endregion tensor

// #region dirichlet
// Dirichlet holds pseudo-counts over the same layout as a Tensor. Its expectation is
// the column-normalized count tensor.
type Dirichlet struct {
	counts *Tensor
}

// #endregion dirichlet
