package replay

import (
	"context"
	"fmt"
	"slices"

	"github.com/danielpatrickdp/aif-controller/internal/agent"
	"github.com/danielpatrickdp/aif-controller/internal/env"
	"go.uber.org/zap"
)

// #region types
// ReplayResult captures the outcome of replaying one recorded observation.
type ReplayResult struct {
	Step           int
	Observation    []int
	Action         []int
	ExpectedAction []int // nil when the fixture recorded none
	Match          bool  // true when no expectation was recorded
	GateAction     string
	FreeEnergy     float64
	EvalPassed     bool
}

// ReplaySummary provides aggregate stats from a replay run.
type ReplaySummary struct {
	TotalSteps int
	Checked    int
	Matches    int
	Mismatches int
	EvalFails  int
	FirstDiff  int // step of the first mismatch, -1 if none
}

// #endregion types

// #region replay
// Replay feeds the fixture's observations to an agent freshly built from its scenario
// and config. The agent's sampling stream depends only on the scenario seed, so a run
// recorded by the controller reproduces its actions exactly.
func Replay(ctx context.Context, f *Fixture, logger *zap.Logger) ([]ReplayResult, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	w, err := env.Build(f.Scenario)
	if err != nil {
		return nil, fmt.Errorf("build scenario: %w", err)
	}
	a, err := agent.New(w.Model, f.Config, w.AgentSeed, agent.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("build agent: %w", err)
	}

	results := make([]ReplayResult, 0, len(f.Steps))
	for i, s := range f.Steps {
		res, err := a.Step(ctx, s.Observation)
		if err != nil {
			return results, fmt.Errorf("replay step %d: %w", i, err)
		}
		r := ReplayResult{
			Step:           res.Step,
			Observation:    res.Observation,
			Action:         res.Action,
			ExpectedAction: s.ExpectedAction,
			Match:          s.ExpectedAction == nil || slices.Equal(s.ExpectedAction, res.Action),
			GateAction:     res.Gate.Action,
			FreeEnergy:     res.FreeEnergy,
			EvalPassed:     res.Eval.Passed,
		}
		if !r.Match {
			logger.Warn("replay mismatch",
				zap.Int("step", r.Step),
				zap.Ints("expected", r.ExpectedAction),
				zap.Ints("got", r.Action),
			)
		}
		results = append(results, r)
	}
	return results, nil
}

// Summarize computes aggregate stats from replay results.
func Summarize(results []ReplayResult) ReplaySummary {
	s := ReplaySummary{
		TotalSteps: len(results),
		FirstDiff:  -1,
	}
	for _, r := range results {
		if !r.EvalPassed {
			s.EvalFails++
		}
		if r.ExpectedAction == nil {
			continue
		}
		s.Checked++
		if r.Match {
			s.Matches++
			continue
		}
		s.Mismatches++
		if s.FirstDiff < 0 {
			s.FirstDiff = r.Step
		}
	}
	return s
}

// #endregion replay
