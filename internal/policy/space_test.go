package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSpace_RejectsZeroHorizon(t *testing.T) {
	_, err := NewSpace([]int{3, 2}, 0)
	require.ErrorIs(t, err, ErrInvalidHorizon)
	_, err = NewSpace([]int{3, 2}, -1)
	require.ErrorIs(t, err, ErrInvalidHorizon)
}

func TestNewSpace_RejectsOverflow(t *testing.T) {
	_, err := NewSpace([]int{16, 16}, 4)
	require.ErrorIs(t, err, ErrTooManyPolicies)
}

func TestSpace_CountIsCartesianProduct(t *testing.T) {
	s, err := NewSpace([]int{3, 2}, 1)
	require.NoError(t, err)
	assert.Equal(t, 6, s.Len())

	s, err = NewSpace([]int{3, 2}, 2)
	require.NoError(t, err)
	assert.Equal(t, 36, s.Len())

	s, err = NewSpace([]int{4, 1}, 3)
	require.NoError(t, err)
	assert.Equal(t, 64, s.Len())
}

func TestSpace_LexicographicOrder(t *testing.T) {
	s, err := NewSpace([]int{3, 2}, 1)
	require.NoError(t, err)
	want := [][]int{{0, 0}, {0, 1}, {1, 0}, {1, 1}, {2, 0}, {2, 1}}
	for i, w := range want {
		assert.Equal(t, Policy{w}, s.At(i))
	}
}

func TestSpace_EveryPolicyValidAndDistinct(t *testing.T) {
	s, err := NewSpace([]int{2, 3, 1}, 2)
	require.NoError(t, err)
	seen := map[string]bool{}
	it := s.Iter()
	n := 0
	for {
		p, i, ok := it.Next()
		if !ok {
			break
		}
		require.Equal(t, n, i)
		require.True(t, s.Valid(p))
		require.Equal(t, 0, p[0][2], "uncontrollable factor must take action 0")
		key := ""
		for _, a := range p {
			for _, u := range a {
				key += string(rune('0' + u))
			}
		}
		require.False(t, seen[key], "duplicate policy %v", p)
		seen[key] = true
		n++
	}
	assert.Equal(t, s.Len(), n)
}

func TestSpace_FirstActionMatchesDecode(t *testing.T) {
	s, err := NewSpace([]int{3, 2}, 3)
	require.NoError(t, err)
	for i := 0; i < s.Len(); i++ {
		p := s.At(i)
		for f := 0; f < 2; f++ {
			require.Equal(t, p.First()[f], s.FirstAction(i, f))
		}
	}
}

func TestIterator_Restartable(t *testing.T) {
	s, _ := NewSpace([]int{2}, 2)
	it := s.Iter()
	var first []Policy
	for p, _, ok := it.Next(); ok; p, _, ok = it.Next() {
		first = append(first, p)
	}
	it.Reset()
	var second []Policy
	for p, _, ok := it.Next(); ok; p, _, ok = it.Next() {
		second = append(second, p)
	}
	assert.Equal(t, first, second)
	assert.Len(t, first, 4)
}

func TestValidAction(t *testing.T) {
	s, _ := NewSpace([]int{3, 2}, 1)
	assert.True(t, s.ValidAction([]int{2, 1}))
	assert.False(t, s.ValidAction([]int{3, 0}))
	assert.False(t, s.ValidAction([]int{0}))
	assert.True(t, s.Controllable(0))
}
