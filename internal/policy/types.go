package policy

import "errors"

// #region errors
var (
	// ErrInvalidHorizon rejects planning horizons below one step.
	ErrInvalidHorizon = errors.New("invalid planning horizon")
	// ErrTooManyPolicies rejects policy spaces whose size overflows MaxPolicies.
	ErrTooManyPolicies = errors.New("policy space too large")
)

// #endregion errors

// MaxPolicies bounds the number of policies a Space may enumerate.
const MaxPolicies = 1 << 24

// #region policy
// Policy is a sequence of action vectors, one per planning step; Policy[t][f] is the
// action for factor f at step t.
type Policy [][]int

// First returns the action vector for the current step.
func (p Policy) First() []int { return p[0] }

// #endregion policy

// #region space
// Space enumerates every policy over a fixed horizon as the Cartesian product of
// per-factor actions at each step. Policies are decoded on demand from their index.
type Space struct {
	numControls []int
	horizon     int
	perStep     int
	count       int
}

// Iterator walks a Space in index order and can be restarted.
type Iterator struct {
	space *Space
	next  int
}

// #endregion space
