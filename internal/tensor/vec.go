package tensor

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// #region log-space
// LogFloor returns log(p + Floor) element-wise.
func LogFloor(p []float64) []float64 {
	out := make([]float64, len(p))
	for i, v := range p {
		out[i] = math.Log(v + Floor)
	}
	return out
}

// Softmax exponentiates and normalizes x in a numerically stable way.
func Softmax(x []float64) []float64 {
	out := make([]float64, len(x))
	if len(x) == 0 {
		return out
	}
	lse := floats.LogSumExp(x)
	for i, v := range x {
		out[i] = math.Exp(v - lse)
	}
	return out
}

// #endregion log-space

// #region distributions
// Uniform returns the flat distribution over n outcomes.
func Uniform(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 1 / float64(n)
	}
	return out
}

// OneHot returns the point mass on index i.
func OneHot(n, i int) []float64 {
	out := make([]float64, n)
	out[i] = 1
	return out
}

// NormalizeVec clamps negative rounding residue to zero and rescales p to sum to 1.
func NormalizeVec(p []float64) ([]float64, error) {
	out := make([]float64, len(p))
	for i, v := range p {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%w: non-finite weight at %d", ErrNumerical, i)
		}
		if v > 0 {
			out[i] = v
		}
	}
	sum := floats.Sum(out)
	if !(sum > 0) {
		return nil, fmt.Errorf("%w: distribution has no mass", ErrNormalization)
	}
	floats.Scale(1/sum, out)
	return out, nil
}

// CheckDistribution verifies p is finite, non-negative and sums to 1 within tol.
func CheckDistribution(p []float64, tol float64) error {
	if len(p) == 0 {
		return fmt.Errorf("%w: empty distribution", ErrShapeMismatch)
	}
	if !IsFinite(p) {
		return fmt.Errorf("%w: distribution holds NaN or Inf", ErrNumerical)
	}
	for i, v := range p {
		if v < 0 {
			return fmt.Errorf("%w: negative mass %g at %d", ErrNormalization, v, i)
		}
	}
	if s := floats.Sum(p); math.Abs(s-1) > tol {
		return fmt.Errorf("%w: sums to %.12f", ErrNormalization, s)
	}
	return nil
}

// Entropy is the Shannon entropy in nats.
func Entropy(p []float64) float64 { return stat.Entropy(p) }

// IsFinite reports whether every value is a finite number.
func IsFinite(p []float64) bool {
	for _, v := range p {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// ArgMax returns the index of the largest value (first on ties).
func ArgMax(p []float64) int { return floats.MaxIdx(p) }

// #endregion distributions

// #region sampling
// Sample draws one index from p. Residual drift from floating-point summation is
// removed by renormalizing before the draw.
func Sample(p []float64, rng *rand.Rand) (int, error) {
	w, err := NormalizeVec(p)
	if err != nil {
		return 0, err
	}
	cum := floats.CumSum(make([]float64, len(w)), w)
	u := rng.Float64() * cum[len(cum)-1]
	i := sort.Search(len(cum), func(i int) bool { return cum[i] > u })
	if i == len(cum) {
		i = len(cum) - 1
	}
	return i, nil
}

// #endregion sampling
