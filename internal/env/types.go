package env

import (
	"math/rand"
	"sync"

	"github.com/danielpatrickdp/aif-controller/internal/model"
	"github.com/danielpatrickdp/aif-controller/internal/tensor"
)

// #region process
// Process is the generative process the agent acts in. It samples observations from
// its own likelihood and next states from its own transitions, independent of whatever
// the agent believes. Calls are serialized so a Process can back a network server.
type Process struct {
	a           []*tensor.Tensor
	b           []*tensor.Tensor
	numStates   []int
	numControls []int

	mu  sync.Mutex
	rng *rand.Rand
}

// #endregion process

// #region scenario
// Scenario describes a randomly generated world.
type Scenario struct {
	NumStates    []int       `yaml:"num_states" json:"num_states"`
	NumObs       []int       `yaml:"num_obs" json:"num_obs"`
	NumControls  []int       `yaml:"num_controls,omitempty" json:"num_controls,omitempty"` // per factor; derived from Controllable when empty
	Controllable []int       `yaml:"controllable,omitempty" json:"controllable,omitempty"` // factor indices; nil means all
	Preferences  [][]float64 `yaml:"preferences,omitempty" json:"preferences,omitempty"`   // C; nil means neutral
	Seed         int64       `yaml:"seed" json:"seed" env:"SEED"`
}

// World is a built scenario: the true process, the agent's model of it and the true
// initial hidden state.
type World struct {
	Process   *Process
	Model     *model.Model
	Initial   []int
	AgentSeed int64
}

// #endregion scenario
