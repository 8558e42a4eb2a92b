package model

import (
	"fmt"
	"math"

	"github.com/danielpatrickdp/aif-controller/internal/tensor"
	"gonum.org/v1/gonum/mat"
)

// #region constructor
// New validates spec eagerly and returns a Model. Shape violations wrap
// tensor.ErrShapeMismatch and probability violations wrap tensor.ErrNormalization.
func New(spec Spec) (*Model, error) {
	if len(spec.A) == 0 {
		return nil, fmt.Errorf("%w: model needs at least one modality", tensor.ErrShapeMismatch)
	}
	if len(spec.B) == 0 {
		return nil, fmt.Errorf("%w: model needs at least one hidden-state factor", tensor.ErrShapeMismatch)
	}

	m := &Model{
		NumStates:   make([]int, len(spec.B)),
		NumControls: make([]int, len(spec.B)),
		NumObs:      make([]int, len(spec.A)),
		A:           spec.A,
		B:           spec.B,
		C:           spec.C,
		D:           spec.D,
		E:           spec.E,
		PA:          spec.PA,
		PB:          spec.PB,
		LearnA:      spec.LearnA,
		LearnB:      spec.LearnB,
	}

	for f, b := range spec.B {
		if err := checkTransition(f, b); err != nil {
			return nil, err
		}
		m.NumStates[f] = b.Dim(0)
		m.NumControls[f] = b.Dim(2)
	}
	for g, a := range spec.A {
		if err := checkLikelihood(g, a, m.NumStates); err != nil {
			return nil, err
		}
		m.NumObs[g] = a.Dim(0)
	}

	if err := m.fillPreferences(); err != nil {
		return nil, err
	}
	if err := m.fillPrior(); err != nil {
		return nil, err
	}
	if err := m.checkPolicyPrior(); err != nil {
		return nil, err
	}
	if err := m.checkConcentrations(); err != nil {
		return nil, err
	}

	m.buildTransitions()
	return m, nil
}

// #endregion constructor

// #region validation
func checkTransition(f int, b *tensor.Tensor) error {
	if b.NumDims() != 3 {
		return fmt.Errorf("%w: B[%d] has %d axes, want 3", tensor.ErrShapeMismatch, f, b.NumDims())
	}
	if b.Dim(0) != b.Dim(1) {
		return fmt.Errorf("%w: B[%d] is %dx%d, want square", tensor.ErrShapeMismatch, f, b.Dim(0), b.Dim(1))
	}
	if err := b.CheckNormalized(tensor.DefaultTolerance); err != nil {
		return fmt.Errorf("B[%d]: %w", f, err)
	}
	return nil
}

func checkLikelihood(g int, a *tensor.Tensor, numStates []int) error {
	if a.NumDims() != len(numStates)+1 {
		return fmt.Errorf("%w: A[%d] has %d axes, want %d", tensor.ErrShapeMismatch, g, a.NumDims(), len(numStates)+1)
	}
	for f, ns := range numStates {
		if a.Dim(f+1) != ns {
			return fmt.Errorf("%w: A[%d] axis %d has size %d, factor %d has %d states",
				tensor.ErrShapeMismatch, g, f+1, a.Dim(f+1), f, ns)
		}
	}
	if err := a.CheckNormalized(tensor.DefaultTolerance); err != nil {
		return fmt.Errorf("A[%d]: %w", g, err)
	}
	return nil
}

func (m *Model) fillPreferences() error {
	if m.C == nil {
		m.C = make([][]float64, len(m.NumObs))
	}
	if len(m.C) != len(m.NumObs) {
		return fmt.Errorf("%w: %d preference vectors for %d modalities", tensor.ErrShapeMismatch, len(m.C), len(m.NumObs))
	}
	for g, c := range m.C {
		if c == nil {
			m.C[g] = make([]float64, m.NumObs[g])
			continue
		}
		if len(c) != m.NumObs[g] {
			return fmt.Errorf("%w: C[%d] has %d entries, modality has %d outcomes", tensor.ErrShapeMismatch, g, len(c), m.NumObs[g])
		}
		if !tensor.IsFinite(c) {
			return fmt.Errorf("C[%d]: %w: non-finite preference", g, tensor.ErrNumerical)
		}
	}
	return nil
}

func (m *Model) fillPrior() error {
	if m.D == nil {
		m.D = UniformD(m.NumStates)
	}
	if len(m.D) != len(m.NumStates) {
		return fmt.Errorf("%w: %d prior vectors for %d factors", tensor.ErrShapeMismatch, len(m.D), len(m.NumStates))
	}
	for f, d := range m.D {
		if len(d) != m.NumStates[f] {
			return fmt.Errorf("%w: D[%d] has %d entries, factor has %d states", tensor.ErrShapeMismatch, f, len(d), m.NumStates[f])
		}
		if err := tensor.CheckDistribution(d, tensor.DefaultTolerance); err != nil {
			return fmt.Errorf("D[%d]: %w", f, err)
		}
	}
	return nil
}

func (m *Model) checkPolicyPrior() error {
	if m.E == nil {
		return nil
	}
	for i, v := range m.E {
		if !(v >= 0) || math.IsInf(v, 0) {
			return fmt.Errorf("E[%d]: %w: policy prior weight %g", i, tensor.ErrNormalization, v)
		}
	}
	return nil
}

func (m *Model) checkConcentrations() error {
	if m.LearnA && m.PA == nil {
		return fmt.Errorf("%w: likelihood learning enabled without pA", tensor.ErrShapeMismatch)
	}
	if m.LearnB && m.PB == nil {
		return fmt.Errorf("%w: transition learning enabled without pB", tensor.ErrShapeMismatch)
	}
	if m.PA != nil {
		if len(m.PA) != len(m.A) {
			return fmt.Errorf("%w: %d pA tensors for %d modalities", tensor.ErrShapeMismatch, len(m.PA), len(m.A))
		}
		for g, p := range m.PA {
			if !sameShape(p.Shape(), m.A[g].Shape()) {
				return fmt.Errorf("%w: pA[%d] shape %v, A shape %v", tensor.ErrShapeMismatch, g, p.Shape(), m.A[g].Shape())
			}
		}
	}
	if m.PB != nil {
		if len(m.PB) != len(m.B) {
			return fmt.Errorf("%w: %d pB tensors for %d factors", tensor.ErrShapeMismatch, len(m.PB), len(m.B))
		}
		for f, p := range m.PB {
			if !sameShape(p.Shape(), m.B[f].Shape()) {
				return fmt.Errorf("%w: pB[%d] shape %v, B shape %v", tensor.ErrShapeMismatch, f, p.Shape(), m.B[f].Shape())
			}
		}
	}
	return nil
}

func sameShape(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// #endregion validation

// #region transitions
func (m *Model) buildTransitions() {
	m.trans = make([][]*mat.Dense, len(m.B))
	for f, b := range m.B {
		m.trans[f] = transitionMatrices(b)
	}
}

func transitionMatrices(b *tensor.Tensor) []*mat.Dense {
	ns, nu := b.Dim(0), b.Dim(2)
	out := make([]*mat.Dense, nu)
	for u := 0; u < nu; u++ {
		d := mat.NewDense(ns, ns, nil)
		for next := 0; next < ns; next++ {
			for cur := 0; cur < ns; cur++ {
				d.Set(next, cur, b.At(next, cur, u))
			}
		}
		out[u] = d
	}
	return out
}

// Transition returns B[f][:, :, u] as a matrix indexed (next, current).
func (m *Model) Transition(f, u int) *mat.Dense { return m.trans[f][u] }

// Predict returns B[f][:, :, u] · q, the one-step-ahead distribution of factor f.
func (m *Model) Predict(f, u int, q []float64) []float64 {
	ns := m.NumStates[f]
	out := mat.NewVecDense(ns, nil)
	out.MulVec(m.trans[f][u], mat.NewVecDense(ns, q))
	return out.RawVector().Data
}

// PredictAll applies one action vector to every factor.
func (m *Model) PredictAll(action []int, qs [][]float64) [][]float64 {
	out := make([][]float64, len(qs))
	for f, q := range qs {
		out[f] = m.Predict(f, action[f], q)
	}
	return out
}

// #endregion transitions

// #region accessors
// NumFactors returns the number of hidden-state factors.
func (m *Model) NumFactors() int { return len(m.NumStates) }

// NumModalities returns the number of observation modalities.
func (m *Model) NumModalities() int { return len(m.NumObs) }

// SetLikelihood replaces A[g] after validating it.
func (m *Model) SetLikelihood(g int, a *tensor.Tensor) error {
	if err := checkLikelihood(g, a, m.NumStates); err != nil {
		return err
	}
	if a.Dim(0) != m.NumObs[g] {
		return fmt.Errorf("%w: A[%d] has %d outcomes, want %d", tensor.ErrShapeMismatch, g, a.Dim(0), m.NumObs[g])
	}
	m.A[g] = a
	return nil
}

// Adopt takes over the learnable parameters (A, B, pA, pB) of src, which
// must share m's dimensions (a Clone of m does). src should not be used afterwards.
func (m *Model) Adopt(src *Model) {
	m.A, m.B = src.A, src.B
	m.PA, m.PB = src.PA, src.PB
	m.trans = src.trans
}

// SetTransition replaces B[f] after validating it.
func (m *Model) SetTransition(f int, b *tensor.Tensor) error {
	if err := checkTransition(f, b); err != nil {
		return err
	}
	if b.Dim(0) != m.NumStates[f] || b.Dim(2) != m.NumControls[f] {
		return fmt.Errorf("%w: B[%d] shape %v", tensor.ErrShapeMismatch, f, b.Shape())
	}
	m.B[f] = b
	m.trans[f] = transitionMatrices(b)
	return nil
}

// Clone returns a model that shares no memory with m.
func (m *Model) Clone() *Model {
	spec := Spec{
		A:      make([]*tensor.Tensor, len(m.A)),
		B:      make([]*tensor.Tensor, len(m.B)),
		C:      cloneVecs(m.C),
		D:      cloneVecs(m.D),
		LearnA: m.LearnA,
		LearnB: m.LearnB,
	}
	for g, a := range m.A {
		spec.A[g] = a.Clone()
	}
	for f, b := range m.B {
		spec.B[f] = b.Clone()
	}
	if m.E != nil {
		spec.E = append([]float64(nil), m.E...)
	}
	if m.PA != nil {
		spec.PA = make([]*tensor.Dirichlet, len(m.PA))
		for g, p := range m.PA {
			spec.PA[g] = p.Clone()
		}
	}
	if m.PB != nil {
		spec.PB = make([]*tensor.Dirichlet, len(m.PB))
		for f, p := range m.PB {
			spec.PB[f] = p.Clone()
		}
	}
	c, err := New(spec)
	if err != nil {
		// m was validated on construction, so its copy is valid too.
		panic(fmt.Sprintf("model: clone of valid model failed: %v", err))
	}
	return c
}

func cloneVecs(in [][]float64) [][]float64 {
	out := make([][]float64, len(in))
	for i, v := range in {
		out[i] = append([]float64(nil), v...)
	}
	return out
}

// #endregion accessors
