package env

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/danielpatrickdp/aif-controller/internal/tensor"
)

// #region constructor
// NewProcess validates A and B and seeds the sampling source. A[g] has shape
// (No[g], Ns...) and B[f] has shape (Ns[f], Ns[f], Nu[f]), both normalized over axis 0.
func NewProcess(A, B []*tensor.Tensor, seed int64) (*Process, error) {
	if len(A) == 0 || len(B) == 0 {
		return nil, fmt.Errorf("%w: process needs at least one modality and one factor", tensor.ErrShapeMismatch)
	}
	p := &Process{rng: rand.New(rand.NewSource(seed))}
	for f, b := range B {
		shape := b.Shape()
		if len(shape) != 3 || shape[0] != shape[1] {
			return nil, fmt.Errorf("B[%d]: %w: shape %v", f, tensor.ErrShapeMismatch, shape)
		}
		if err := b.CheckNormalized(tensor.DefaultTolerance); err != nil {
			return nil, fmt.Errorf("B[%d]: %w", f, err)
		}
		p.numStates = append(p.numStates, shape[0])
		p.numControls = append(p.numControls, shape[2])
		p.b = append(p.b, b.Clone())
	}
	for g, a := range A {
		shape := a.Shape()
		if len(shape) != len(p.numStates)+1 {
			return nil, fmt.Errorf("A[%d]: %w: shape %v for %d factors", g, tensor.ErrShapeMismatch, shape, len(p.numStates))
		}
		for f, ns := range p.numStates {
			if shape[f+1] != ns {
				return nil, fmt.Errorf("A[%d]: %w: axis %d has %d states, factor has %d", g, tensor.ErrShapeMismatch, f+1, shape[f+1], ns)
			}
		}
		if err := a.CheckNormalized(tensor.DefaultTolerance); err != nil {
			return nil, fmt.Errorf("A[%d]: %w", g, err)
		}
		p.a = append(p.a, a.Clone())
	}
	return p, nil
}

// #endregion constructor

// #region accessors
// NumStates returns the number of states per factor.
func (p *Process) NumStates() []int { return append([]int(nil), p.numStates...) }

// NumControls returns the number of actions per factor.
func (p *Process) NumControls() []int { return append([]int(nil), p.numControls...) }

// NumObs returns the number of outcomes per modality.
func (p *Process) NumObs() []int {
	out := make([]int, len(p.a))
	for g, a := range p.a {
		out[g] = a.Dim(0)
	}
	return out
}

// #endregion accessors

// #region step
// Emit samples one outcome per modality given the true hidden state.
func (p *Process) Emit(ctx context.Context, state []int) ([]int, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := p.checkState(state); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	obs := make([]int, len(p.a))
	for g, a := range p.a {
		o, err := tensor.Sample(a.Column(state...), p.rng)
		if err != nil {
			return nil, fmt.Errorf("emit modality %d: %w", g, err)
		}
		obs[g] = o
	}
	return obs, nil
}

// Advance samples the next hidden state of every factor given the chosen action.
func (p *Process) Advance(ctx context.Context, state, action []int) ([]int, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := p.checkState(state); err != nil {
		return nil, err
	}
	if len(action) != len(p.numControls) {
		return nil, fmt.Errorf("%w: action has %d entries for %d factors", tensor.ErrShapeMismatch, len(action), len(p.numControls))
	}
	for f, u := range action {
		if u < 0 || u >= p.numControls[f] {
			return nil, fmt.Errorf("%w: action %d for factor %d out of range", tensor.ErrShapeMismatch, u, f)
		}
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	next := make([]int, len(p.b))
	for f, b := range p.b {
		s, err := tensor.Sample(b.Column(state[f], action[f]), p.rng)
		if err != nil {
			return nil, fmt.Errorf("advance factor %d: %w", f, err)
		}
		next[f] = s
	}
	return next, nil
}

func (p *Process) checkState(state []int) error {
	if len(state) != len(p.numStates) {
		return fmt.Errorf("%w: state has %d entries for %d factors", tensor.ErrShapeMismatch, len(state), len(p.numStates))
	}
	for f, s := range state {
		if s < 0 || s >= p.numStates[f] {
			return fmt.Errorf("%w: state %d for factor %d out of range", tensor.ErrShapeMismatch, s, f)
		}
	}
	return nil
}

// #endregion step
