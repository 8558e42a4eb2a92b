package action

import (
	"errors"
	"math/rand"
)

// ErrUnknownMode rejects a selection mode the Selector does not implement.
var ErrUnknownMode = errors.New("unknown action selection mode")

// #region mode
// Mode picks how an action is drawn from the policy posterior.
type Mode string

const (
	// ModeMarginal samples each factor from its marginal over first actions.
	ModeMarginal Mode = "marginal"
	// ModeDeterministic takes the mode of each factor's marginal.
	ModeDeterministic Mode = "deterministic"
	// ModePolicy samples a whole policy and returns its first action.
	ModePolicy Mode = "policy"
)

// #endregion mode

// #region selector
// Selector turns a policy posterior into one action index per factor. It owns its
// random source, so a Selector is not safe for concurrent use.
type Selector struct {
	mode Mode
	rng  *rand.Rand
}

// Decision is the outcome of one selection.
type Decision struct {
	Action    []int
	Marginals [][]float64 // per-factor distribution over first actions
	Policy    int         // sampled policy index in ModePolicy, -1 otherwise
}

// #endregion selector
