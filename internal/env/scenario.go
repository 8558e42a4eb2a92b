package env

import (
	"fmt"
	"math/rand"

	"github.com/danielpatrickdp/aif-controller/internal/model"
	"github.com/danielpatrickdp/aif-controller/internal/tensor"
)

// Seed offsets derive the model, agent and environment streams from one scenario seed.
const (
	modelSeedOffset = 0
	agentSeedOffset = 1
	envSeedOffset   = 2
)

// #region controls
// ResolveControls returns the per-factor action counts. Explicit NumControls win;
// otherwise every factor listed in Controllable (all factors when nil) gets one action
// per state and the rest get the single identity action.
func (s Scenario) ResolveControls() ([]int, error) {
	if len(s.NumControls) > 0 {
		if len(s.NumControls) != len(s.NumStates) {
			return nil, fmt.Errorf("%w: %d control counts for %d factors", tensor.ErrShapeMismatch, len(s.NumControls), len(s.NumStates))
		}
		for f, nu := range s.NumControls {
			if nu < 1 {
				return nil, fmt.Errorf("%w: factor %d has %d controls", tensor.ErrShapeMismatch, f, nu)
			}
		}
		return append([]int(nil), s.NumControls...), nil
	}
	out := make([]int, len(s.NumStates))
	if s.Controllable == nil {
		copy(out, s.NumStates)
		return out, nil
	}
	for f := range out {
		out[f] = 1
	}
	for _, f := range s.Controllable {
		if f < 0 || f >= len(out) {
			return nil, fmt.Errorf("%w: controllable factor %d out of range", tensor.ErrShapeMismatch, f)
		}
		out[f] = s.NumStates[f]
	}
	return out, nil
}

// #endregion controls

// #region build
// Build draws a random world from the scenario seed. The agent's model starts from the
// same A and B as the process; they are copies, so learning never touches the process.
func Build(s Scenario) (*World, error) {
	if len(s.NumStates) == 0 || len(s.NumObs) == 0 {
		return nil, fmt.Errorf("%w: scenario needs at least one factor and one modality", tensor.ErrShapeMismatch)
	}
	for f, ns := range s.NumStates {
		if ns < 1 {
			return nil, fmt.Errorf("%w: factor %d has %d states", tensor.ErrShapeMismatch, f, ns)
		}
	}
	for g, no := range s.NumObs {
		if no < 1 {
			return nil, fmt.Errorf("%w: modality %d has %d outcomes", tensor.ErrShapeMismatch, g, no)
		}
	}
	numControls, err := s.ResolveControls()
	if err != nil {
		return nil, err
	}

	rng := rand.New(rand.NewSource(s.Seed + modelSeedOffset))
	A, err := model.RandomA(rng, s.NumObs, s.NumStates)
	if err != nil {
		return nil, fmt.Errorf("build scenario: %w", err)
	}
	B, err := model.RandomB(rng, s.NumStates, numControls)
	if err != nil {
		return nil, fmt.Errorf("build scenario: %w", err)
	}

	proc, err := NewProcess(A, B, s.Seed+envSeedOffset)
	if err != nil {
		return nil, fmt.Errorf("build scenario: %w", err)
	}
	m, err := model.New(model.Spec{A: A, B: B, C: s.Preferences})
	if err != nil {
		return nil, fmt.Errorf("build scenario: %w", err)
	}

	initial := make([]int, len(s.NumStates))
	for f, ns := range s.NumStates {
		initial[f] = rng.Intn(ns)
	}
	return &World{
		Process:   proc,
		Model:     m,
		Initial:   initial,
		AgentSeed: s.Seed + agentSeedOffset,
	}, nil
}

// #endregion build
