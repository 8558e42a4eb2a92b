package action

import (
	"fmt"
	"math/rand"

	"github.com/danielpatrickdp/aif-controller/internal/policy"
	"github.com/danielpatrickdp/aif-controller/internal/tensor"
)

// #region marginals
// Marginals sums qpi over policies grouped by their first action, separately per factor.
// Uncontrollable factors get the point mass on action 0.
func Marginals(qpi []float64, space *policy.Space) ([][]float64, error) {
	if space == nil || len(qpi) != space.Len() {
		return nil, fmt.Errorf("%w: policy posterior does not match the policy space", tensor.ErrShapeMismatch)
	}
	nu := space.NumControls()
	out := make([][]float64, len(nu))
	for f, n := range nu {
		out[f] = make([]float64, n)
	}
	for i, p := range qpi {
		if p == 0 {
			continue
		}
		for f := range out {
			out[f][space.FirstAction(i, f)] += p
		}
	}
	for f, m := range out {
		if !tensor.IsFinite(m) {
			return nil, fmt.Errorf("%w: marginal of factor %d", tensor.ErrNumerical, f)
		}
	}
	return out, nil
}

// #endregion marginals

// #region select
// NewSelector returns a Selector drawing from a source seeded with seed.
func NewSelector(mode Mode, seed int64) (*Selector, error) {
	switch mode {
	case "":
		mode = ModeMarginal
	case ModeMarginal, ModeDeterministic, ModePolicy:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, mode)
	}
	return &Selector{mode: mode, rng: rand.New(rand.NewSource(seed))}, nil
}

// Mode returns the selection mode.
func (s *Selector) Mode() Mode { return s.mode }

// Select draws this step's action vector from qpi.
func (s *Selector) Select(qpi []float64, space *policy.Space) (Decision, error) {
	marg, err := Marginals(qpi, space)
	if err != nil {
		return Decision{}, err
	}
	d := Decision{Action: make([]int, len(marg)), Marginals: marg, Policy: -1}

	switch s.mode {
	case ModePolicy:
		idx, err := tensor.Sample(qpi, s.rng)
		if err != nil {
			return Decision{}, fmt.Errorf("sample policy: %w", err)
		}
		d.Policy = idx
		copy(d.Action, space.At(idx).First())
	default:
		for f, m := range marg {
			if !space.Controllable(f) {
				continue
			}
			if s.mode == ModeDeterministic {
				d.Action[f] = tensor.ArgMax(m)
				continue
			}
			u, err := tensor.Sample(m, s.rng)
			if err != nil {
				return Decision{}, fmt.Errorf("sample factor %d: %w", f, err)
			}
			d.Action[f] = u
		}
	}

	if !space.ValidAction(d.Action) {
		return Decision{}, fmt.Errorf("%w: selected action %v", tensor.ErrShapeMismatch, d.Action)
	}
	return d, nil
}

// #endregion select
