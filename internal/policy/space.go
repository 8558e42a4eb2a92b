package policy

import "fmt"

// #region constructor
// NewSpace builds the policy space for the given per-factor control counts. Factors with
// a single control are uncontrollable and always take action 0.
func NewSpace(numControls []int, horizon int) (*Space, error) {
	if horizon < 1 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidHorizon, horizon)
	}
	if len(numControls) == 0 {
		return nil, fmt.Errorf("%w: no factors", ErrInvalidHorizon)
	}
	perStep := 1
	for f, nu := range numControls {
		if nu < 1 {
			return nil, fmt.Errorf("factor %d has %d controls", f, nu)
		}
		if perStep > MaxPolicies/nu {
			return nil, fmt.Errorf("%w: more than %d actions per step", ErrTooManyPolicies, MaxPolicies)
		}
		perStep *= nu
	}
	count := 1
	for t := 0; t < horizon; t++ {
		if count > MaxPolicies/perStep {
			return nil, fmt.Errorf("%w: %d^%d exceeds %d", ErrTooManyPolicies, perStep, horizon, MaxPolicies)
		}
		count *= perStep
	}
	return &Space{
		numControls: append([]int(nil), numControls...),
		horizon:     horizon,
		perStep:     perStep,
		count:       count,
	}, nil
}

// #endregion constructor

// #region accessors
// Len returns the number of policies.
func (s *Space) Len() int { return s.count }

// Horizon returns the number of steps per policy.
func (s *Space) Horizon() int { return s.horizon }

// NumControls returns the per-factor action counts.
func (s *Space) NumControls() []int { return append([]int(nil), s.numControls...) }

// NumFactors returns the number of factors in every action vector.
func (s *Space) NumFactors() int { return len(s.numControls) }

// Controllable reports whether factor f has more than one action.
func (s *Space) Controllable(f int) bool { return s.numControls[f] > 1 }

// #endregion accessors

// #region decode
// At decodes policy i. Steps are the most significant digits and, within a step, the
// last factor varies fastest, matching lexicographic Cartesian-product order.
func (s *Space) At(i int) Policy {
	if i < 0 || i >= s.count {
		panic(fmt.Sprintf("policy: index %d out of range [0, %d)", i, s.count))
	}
	p := make(Policy, s.horizon)
	rem := i
	for t := s.horizon - 1; t >= 0; t-- {
		step := rem % s.perStep
		rem /= s.perStep
		p[t] = s.decodeStep(step)
	}
	return p
}

// FirstAction returns the step-0 action of factor f in policy i without decoding the
// whole policy.
func (s *Space) FirstAction(i, f int) int {
	step := i
	for t := 1; t < s.horizon; t++ {
		step /= s.perStep
	}
	return s.decodeStep(step)[f]
}

func (s *Space) decodeStep(step int) []int {
	a := make([]int, len(s.numControls))
	for f := len(s.numControls) - 1; f >= 0; f-- {
		a[f] = step % s.numControls[f]
		step /= s.numControls[f]
	}
	return a
}

// Valid reports whether p has the space's horizon and every action is in range.
func (s *Space) Valid(p Policy) bool {
	if len(p) != s.horizon {
		return false
	}
	for _, a := range p {
		if !s.ValidAction(a) {
			return false
		}
	}
	return true
}

// ValidAction reports whether a is a legal action vector.
func (s *Space) ValidAction(a []int) bool {
	if len(a) != len(s.numControls) {
		return false
	}
	for f, u := range a {
		if u < 0 || u >= s.numControls[f] {
			return false
		}
	}
	return true
}

// #endregion decode

// #region iterator
// Iter returns an iterator positioned before the first policy.
func (s *Space) Iter() *Iterator { return &Iterator{space: s} }

// Next returns the next policy and its index, or ok=false when exhausted.
func (it *Iterator) Next() (p Policy, index int, ok bool) {
	if it.next >= it.space.count {
		return nil, 0, false
	}
	index = it.next
	it.next++
	return it.space.At(index), index, true
}

// Reset rewinds the iterator to the first policy.
func (it *Iterator) Reset() { it.next = 0 }

// #endregion iterator
