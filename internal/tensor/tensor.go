package tensor

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// #region constructors
// New allocates a zero tensor with the given shape.
func New(shape ...int) (*Tensor, error) {
	if len(shape) == 0 {
		return nil, fmt.Errorf("%w: empty shape", ErrShapeMismatch)
	}
	size := 1
	for i, d := range shape {
		if d < 1 {
			return nil, fmt.Errorf("%w: axis %d has size %d", ErrShapeMismatch, i, d)
		}
		size *= d
	}
	t := &Tensor{
		shape: append([]int(nil), shape...),
		data:  make([]float64, size),
	}
	t.strides = stridesFor(t.shape)
	return t, nil
}

// FromData builds a tensor over a copy of data, which must hold exactly prod(shape) values.
func FromData(data []float64, shape ...int) (*Tensor, error) {
	t, err := New(shape...)
	if err != nil {
		return nil, err
	}
	if len(data) != len(t.data) {
		return nil, fmt.Errorf("%w: %d values for shape %v", ErrShapeMismatch, len(data), shape)
	}
	copy(t.data, data)
	return t, nil
}

// Fill sets every element to v.
func (t *Tensor) Fill(v float64) *Tensor {
	for i := range t.data {
		t.data[i] = v
	}
	return t
}

// Clone returns a deep copy.
func (t *Tensor) Clone() *Tensor {
	return &Tensor{
		shape:   append([]int(nil), t.shape...),
		strides: append([]int(nil), t.strides...),
		data:    append([]float64(nil), t.data...),
	}
}

func stridesFor(shape []int) []int {
	strides := make([]int, len(shape))
	acc := 1
	for i := len(shape) - 1; i >= 0; i-- {
		strides[i] = acc
		acc *= shape[i]
	}
	return strides
}

// #endregion constructors

// #region accessors
// Shape returns a copy of the axis sizes.
func (t *Tensor) Shape() []int { return append([]int(nil), t.shape...) }

// Dim returns the size of one axis.
func (t *Tensor) Dim(axis int) int { return t.shape[axis] }

// NumDims returns the number of axes.
func (t *Tensor) NumDims() int { return len(t.shape) }

// Len returns the number of elements.
func (t *Tensor) Len() int { return len(t.data) }

// Data exposes the backing slice. Writes go straight into the tensor.
func (t *Tensor) Data() []float64 { return t.data }

// At reads one element.
func (t *Tensor) At(idx ...int) float64 { return t.data[t.offset(idx)] }

// Set writes one element.
func (t *Tensor) Set(v float64, idx ...int) { t.data[t.offset(idx)] = v }

func (t *Tensor) offset(idx []int) int {
	if len(idx) != len(t.shape) {
		panic(fmt.Sprintf("tensor: %d indices for %d axes", len(idx), len(t.shape)))
	}
	off := 0
	for i, x := range idx {
		if x < 0 || x >= t.shape[i] {
			panic(fmt.Sprintf("tensor: index %d out of range for axis %d (size %d)", x, i, t.shape[i]))
		}
		off += x * t.strides[i]
	}
	return off
}

// Column copies the distribution over axis 0 for a fixed index on the remaining axes.
func (t *Tensor) Column(rest ...int) []float64 {
	idx := append([]int{0}, rest...)
	off := t.offset(idx)
	out := make([]float64, t.shape[0])
	for o := range out {
		out[o] = t.data[off+o*t.strides[0]]
	}
	return out
}

// #endregion accessors

// #region normalize
// Normalize rescales every column over axis 0 to sum to 1.
func (t *Tensor) Normalize() error {
	if len(t.shape) == 0 {
		return fmt.Errorf("%w: tensor has no outcome axis", ErrShapeMismatch)
	}
	n, inner := t.shape[0], t.strides[0]
	for j := 0; j < inner; j++ {
		var sum float64
		for o := 0; o < n; o++ {
			sum += t.data[o*inner+j]
		}
		if !(sum > 0) || math.IsInf(sum, 0) {
			return fmt.Errorf("%w: column %d has mass %g", ErrNormalization, j, sum)
		}
		for o := 0; o < n; o++ {
			t.data[o*inner+j] /= sum
		}
	}
	return nil
}

// CheckNormalized verifies that every column over axis 0 is a distribution within tol.
func (t *Tensor) CheckNormalized(tol float64) error {
	if !IsFinite(t.data) {
		return fmt.Errorf("%w: tensor holds NaN or Inf", ErrNumerical)
	}
	n, inner := t.shape[0], t.strides[0]
	for j := 0; j < inner; j++ {
		var sum float64
		for o := 0; o < n; o++ {
			v := t.data[o*inner+j]
			if v < 0 {
				return fmt.Errorf("%w: negative probability %g in column %d", ErrNormalization, v, j)
			}
			sum += v
		}
		if math.Abs(sum-1) > tol {
			return fmt.Errorf("%w: column %d sums to %.12f", ErrNormalization, j, sum)
		}
	}
	return nil
}

// #endregion normalize

// #region slice
// Slice fixes axis 0 at index i and returns the sub-tensor over the remaining axes.
func (t *Tensor) Slice(i int) (*Tensor, error) {
	if len(t.shape) < 2 {
		return nil, fmt.Errorf("%w: cannot slice a %d-axis tensor", ErrShapeMismatch, len(t.shape))
	}
	if i < 0 || i >= t.shape[0] {
		return nil, fmt.Errorf("%w: index %d outside outcome axis of size %d", ErrShapeMismatch, i, t.shape[0])
	}
	inner := t.strides[0]
	return FromData(t.data[i*inner:(i+1)*inner], t.shape[1:]...)
}

// #endregion slice

// #region dot
// Dot contracts axes first..first+len(xs)-1 against the vectors in xs and returns the
// tensor over the remaining axes. When omit >= 0, xs[omit] is skipped and its axis is
// kept in the result. A full contraction yields a tensor of shape [1].
func (t *Tensor) Dot(xs [][]float64, first, omit int) (*Tensor, error) {
	nd := len(t.shape)
	if first < 0 || first+len(xs) > nd {
		return nil, fmt.Errorf("%w: %d vectors from axis %d on a %d-axis tensor", ErrShapeMismatch, len(xs), first, nd)
	}
	for k, x := range xs {
		if len(x) != t.shape[first+k] {
			return nil, fmt.Errorf("%w: vector %d has length %d, axis %d has size %d",
				ErrShapeMismatch, k, len(x), first+k, t.shape[first+k])
		}
	}

	contracted := make([]bool, nd)
	var outShape []int
	for ax := 0; ax < nd; ax++ {
		k := ax - first
		if k >= 0 && k < len(xs) && k != omit {
			contracted[ax] = true
			continue
		}
		outShape = append(outShape, t.shape[ax])
	}
	full := len(outShape) == 0
	if full {
		outShape = []int{1}
	}
	out, err := New(outShape...)
	if err != nil {
		return nil, err
	}

	// map each kept axis to its stride in the output
	outStride := make([]int, nd)
	k := 0
	for ax := 0; ax < nd; ax++ {
		if contracted[ax] {
			continue
		}
		outStride[ax] = out.strides[k]
		k++
	}

	idx := make([]int, nd)
	for _, v := range t.data {
		if v != 0 {
			w := v
			off := 0
			for ax := 0; ax < nd; ax++ {
				if contracted[ax] {
					w *= xs[ax-first][idx[ax]]
				} else {
					off += idx[ax] * outStride[ax]
				}
			}
			out.data[off] += w
		}
		for ax := nd - 1; ax >= 0; ax-- {
			idx[ax]++
			if idx[ax] < t.shape[ax] {
				break
			}
			idx[ax] = 0
		}
	}
	return out, nil
}

// Contract fully contracts the tensor against one vector per axis.
func (t *Tensor) Contract(xs [][]float64) (float64, error) {
	if len(xs) != len(t.shape) {
		return 0, fmt.Errorf("%w: %d vectors for %d axes", ErrShapeMismatch, len(xs), len(t.shape))
	}
	r, err := t.Dot(xs, 0, -1)
	if err != nil {
		return 0, err
	}
	return r.data[0], nil
}

// #endregion dot

// #region elementwise
// Map returns a new tensor with f applied to every element.
func (t *Tensor) Map(f func(float64) float64) *Tensor {
	out := t.Clone()
	for i, v := range out.data {
		out.data[i] = f(v)
	}
	return out
}

// Sum returns the sum of every element.
func (t *Tensor) Sum() float64 { return floats.Sum(t.data) }

// #endregion elementwise
