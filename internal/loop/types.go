package loop

import (
	"context"

	"github.com/danielpatrickdp/aif-controller/internal/agent"
)

// #region collaborators
// Environment is the world the agent acts in. The agent never sees the state.
type Environment interface {
	Emit(ctx context.Context, state []int) ([]int, error)
	Advance(ctx context.Context, state, action []int) ([]int, error)
}

// Stepper is one perception-action step of an agent.
type Stepper interface {
	Step(ctx context.Context, obs []int) (agent.StepResult, error)
}

// Recorder persists committed steps. state is the true hidden state the observation
// was emitted from.
type Recorder interface {
	Record(ctx context.Context, res agent.StepResult, state []int) error
}

// #endregion collaborators

// #region history
// History is the trace of a run, one entry per committed step.
type History struct {
	States       [][]int
	Observations [][]int
	Actions      [][]int
	Qs           [][][]float64
	QPi          [][]float64
	G            [][]float64
	FreeEnergy   []float64
}

// Len returns the number of committed steps.
func (h *History) Len() int { return len(h.Actions) }

func (h *History) append(state []int, res agent.StepResult) {
	h.States = append(h.States, state)
	h.Observations = append(h.Observations, res.Observation)
	h.Actions = append(h.Actions, res.Action)
	h.Qs = append(h.Qs, res.Qs)
	h.QPi = append(h.QPi, res.Evaluation.QPi)
	h.G = append(h.G, res.Evaluation.G)
	h.FreeEnergy = append(h.FreeEnergy, res.FreeEnergy)
}

// #endregion history
