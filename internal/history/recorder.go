package history

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/danielpatrickdp/aif-controller/internal/agent"
	"github.com/danielpatrickdp/aif-controller/internal/logging"
	"gonum.org/v1/gonum/floats"
)

// #region recorder
// RunRecorder writes every committed step of one run to the store and its decision to
// the decision log.
type RunRecorder struct {
	store *Store
	runID string
}

// Recorder returns a recorder bound to runID.
func (s *Store) Recorder(runID string) *RunRecorder {
	return &RunRecorder{store: s, runID: runID}
}

// Record persists res. state is the true hidden state at the step.
func (r *RunRecorder) Record(ctx context.Context, res agent.StepResult, state []int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	metrics, err := json.Marshal(decisionRecord(res))
	if err != nil {
		return fmt.Errorf("marshal decision record: %w", err)
	}

	if err := r.store.AppendStep(StepRecord{
		RunID:       r.runID,
		Step:        res.Step,
		State:       state,
		Observation: res.Observation,
		Action:      res.Action,
		Qs:          res.Qs,
		QPi:         res.Evaluation.QPi,
		G:           res.Evaluation.G,
		FreeEnergy:  res.FreeEnergy,
		MetricsJSON: string(metrics),
	}); err != nil {
		return err
	}

	act, err := json.Marshal(res.Action)
	if err != nil {
		return fmt.Errorf("marshal action: %w", err)
	}
	return logging.LogDecision(r.store.DB(), logging.DecisionEntry{
		RunID:       r.runID,
		Step:        res.Step,
		Action:      string(act),
		Decision:    res.Gate.Action,
		Reason:      res.Gate.Reason,
		MetricsJSON: string(metrics),
	})
}

func decisionRecord(res agent.StepResult) logging.DecisionRecord {
	rec := logging.DecisionRecord{
		Step:          res.Step,
		Observation:   res.Observation,
		Action:        res.Action,
		Policy:        res.Policy,
		FreeEnergy:    res.FreeEnergy,
		Iterations:    res.Iterations,
		Converged:     res.Converged,
		GateAction:    res.Gate.Action,
		GateSoftScore: res.Gate.SoftScore,
		GateReason:    res.Gate.Reason,
		EvalPassed:    res.Eval.Passed,
		EvalMetrics:   make(map[string]float64, len(res.Eval.Metrics)),
	}
	if len(res.Evaluation.G) > 0 {
		rec.MinEFE = floats.Min(res.Evaluation.G)
		rec.MaxQPi = floats.Max(res.Evaluation.QPi)
	}
	for _, m := range res.Eval.Metrics {
		rec.EvalMetrics[m.Name] = m.Value
	}
	return rec
}

// #endregion recorder
