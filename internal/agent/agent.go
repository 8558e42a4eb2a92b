package agent

import (
	"context"
	"fmt"

	"github.com/danielpatrickdp/aif-controller/internal/action"
	"github.com/danielpatrickdp/aif-controller/internal/control"
	"github.com/danielpatrickdp/aif-controller/internal/eval"
	"github.com/danielpatrickdp/aif-controller/internal/gate"
	"github.com/danielpatrickdp/aif-controller/internal/inference"
	"github.com/danielpatrickdp/aif-controller/internal/learning"
	"github.com/danielpatrickdp/aif-controller/internal/model"
	"github.com/danielpatrickdp/aif-controller/internal/policy"
	"github.com/danielpatrickdp/aif-controller/internal/tensor"
	"go.uber.org/zap"
)

// #region agent
// Agent runs the perception-action cycle over a generative model: infer hidden states,
// optionally learn, score policies, pick an action and carry the prior forward.
// An Agent is not safe for concurrent use.
type Agent struct {
	cfg      Config
	model    *model.Model
	space    *policy.Space
	selector *action.Selector
	gate     *gate.Gate
	harness  *eval.EvalHarness
	logger   *zap.Logger

	step       int
	prior      [][]float64
	qs         [][]float64
	lastAction []int
	window     []frame
}

// Option configures an Agent.
type Option func(*Agent)

// WithLogger sets the agent's logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(a *Agent) {
		if l != nil {
			a.logger = l
		}
	}
}

// New builds an agent over m. The agent owns m from here on: learning mutates it.
// seed drives action sampling only.
func New(m *model.Model, cfg Config, seed int64, opts ...Option) (*Agent, error) {
	switch cfg.Algorithm {
	case "":
		cfg.Algorithm = AlgorithmFPI
	case AlgorithmFPI, AlgorithmMMP:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAlgorithm, cfg.Algorithm)
	}
	if cfg.Algorithm == AlgorithmMMP && cfg.Window < 1 {
		return nil, fmt.Errorf("%w: mmp window %d", tensor.ErrShapeMismatch, cfg.Window)
	}

	space, err := policy.NewSpace(m.NumControls, cfg.Horizon)
	if err != nil {
		return nil, fmt.Errorf("agent policy space: %w", err)
	}
	if m.E != nil && len(m.E) != space.Len() {
		return nil, fmt.Errorf("%w: policy prior has %d entries for %d policies", tensor.ErrShapeMismatch, len(m.E), space.Len())
	}
	sel, err := action.NewSelector(cfg.ActionMode, seed)
	if err != nil {
		return nil, fmt.Errorf("agent selector: %w", err)
	}

	a := &Agent{
		cfg:      cfg,
		model:    m,
		space:    space,
		selector: sel,
		gate:     gate.NewGate(cfg.Gate),
		harness:  eval.NewEvalHarness(cfg.Eval),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.Reset()
	return a, nil
}

// Reset forgets every step and restores the prior to D.
func (a *Agent) Reset() {
	a.step = 0
	a.prior = cloneVecs(a.model.D)
	a.qs = nil
	a.lastAction = nil
	a.window = nil
}

// #endregion agent

// #region accessors
// Model returns the agent's generative model.
func (a *Agent) Model() *model.Model { return a.model }

// Space returns the policy space the agent plans over.
func (a *Agent) Space() *policy.Space { return a.space }

// Steps returns the number of committed steps.
func (a *Agent) Steps() int { return a.step }

// Prior returns a copy of the prior for the next observation.
func (a *Agent) Prior() [][]float64 { return cloneVecs(a.prior) }

// Beliefs returns a copy of the latest posterior, or nil before the first step.
func (a *Agent) Beliefs() [][]float64 {
	if a.qs == nil {
		return nil
	}
	return cloneVecs(a.qs)
}

// #endregion accessors

// #region step
// Step consumes one observation index per modality and returns the committed step.
// Any failure aborts the step and leaves the agent and its model unchanged.
func (a *Agent) Step(ctx context.Context, obs []int) (StepResult, error) {
	if err := ctx.Err(); err != nil {
		return StepResult{}, err
	}
	if err := a.checkObservation(obs); err != nil {
		return StepResult{}, err
	}

	res := StepResult{
		Step:        a.step,
		Observation: append([]int(nil), obs...),
		Prior:       cloneVecs(a.prior),
	}

	// 1. State inference
	if err := a.infer(&res); err != nil {
		return StepResult{}, fmt.Errorf("step %d: infer: %w", a.step, err)
	}

	// 2. Parameter learning, staged on a copy until the step commits
	m := a.model
	if a.cfg.Learning.Enabled {
		m = a.model.Clone()
		if err := a.learn(m, &res); err != nil {
			return StepResult{}, fmt.Errorf("step %d: learn: %w", a.step, err)
		}
	}

	// 3. Planning
	ev, err := control.Evaluate(ctx, m, res.Qs, a.space, a.cfg.Control)
	if err != nil {
		return StepResult{}, fmt.Errorf("step %d: plan: %w", a.step, err)
	}
	res.Evaluation = ev

	// 4. Action selection
	d, err := a.selector.Select(ev.QPi, a.space)
	if err != nil {
		return StepResult{}, fmt.Errorf("step %d: act: %w", a.step, err)
	}
	res.Action, res.Marginals, res.Policy = d.Action, d.Marginals, d.Policy

	// 5. Gate
	res.Gate = a.gate.Evaluate(gate.Proposal{
		Qs:          res.Qs,
		NumStates:   m.NumStates,
		QPi:         ev.QPi,
		Action:      res.Action,
		NumControls: m.NumControls,
	})
	if err := res.Gate.Err(); err != nil {
		a.logger.Error("step rejected", zap.Int("step", a.step), zap.String("reason", res.Gate.Reason))
		return StepResult{}, fmt.Errorf("step %d: gate: %w", a.step, err)
	}

	res.Eval = a.harness.Run(eval.StepInput{
		Qs:         res.Qs,
		QPi:        ev.QPi,
		G:          ev.G,
		FreeEnergy: res.FreeEnergy,
	})
	if !res.Eval.Passed {
		a.logger.Warn("step eval failed", zap.Int("step", a.step), zap.String("reason", res.Eval.Reason))
	}

	a.commit(res, m)
	a.logger.Debug("step committed",
		zap.Int("step", res.Step),
		zap.Ints("obs", res.Observation),
		zap.Ints("action", res.Action),
		zap.Float64("free_energy", res.FreeEnergy),
		zap.Float64("soft_score", res.Gate.SoftScore),
	)
	return res, nil
}

func (a *Agent) checkObservation(obs []int) error {
	if len(obs) != a.model.NumModalities() {
		return fmt.Errorf("%w: %d observations for %d modalities", tensor.ErrShapeMismatch, len(obs), a.model.NumModalities())
	}
	for g, o := range obs {
		if o < 0 || o >= a.model.NumObs[g] {
			return fmt.Errorf("%w: observation %d for modality %d out of range", tensor.ErrShapeMismatch, o, g)
		}
	}
	return nil
}

func (a *Agent) infer(res *StepResult) error {
	if a.cfg.Algorithm != AlgorithmMMP {
		r, err := inference.Infer(a.model.A, res.Observation, a.prior, a.cfg.Inference)
		if err != nil {
			return err
		}
		res.Qs, res.FreeEnergy, res.Iterations, res.Converged = r.Qs, r.FreeEnergy, r.Iterations, r.Converged
		return nil
	}

	frames := append(append([]frame(nil), a.window...), frame{obs: res.Observation, prior: res.Prior})
	if len(frames) > a.cfg.Window {
		frames = frames[len(frames)-a.cfg.Window:]
	}
	obsSeq := make([][]int, len(frames))
	actions := make([][]int, 0, len(frames)-1)
	for t, fr := range frames {
		obsSeq[t] = fr.obs
		if t < len(frames)-1 {
			actions = append(actions, fr.action)
		}
	}
	r, err := inference.RunMMP(a.model, obsSeq, actions, frames[0].prior, a.cfg.MMP)
	if err != nil {
		return err
	}
	res.Qs = r.Qs[len(r.Qs)-1]
	res.FreeEnergy = r.FreeEnergy
	res.Iterations = a.cfg.MMP.Iterations
	res.Converged = true
	return nil
}

func (a *Agent) learn(m *model.Model, res *StepResult) error {
	if m.LearnA {
		r, err := learning.UpdateLikelihood(m, res.Observation, res.Qs, a.cfg.Learning)
		if err != nil {
			return err
		}
		res.Learning = append(res.Learning, r)
	}
	if m.LearnB && a.lastAction != nil && a.qs != nil {
		r, err := learning.UpdateTransition(m, a.lastAction, res.Qs, a.qs, a.cfg.Learning)
		if err != nil {
			return err
		}
		res.Learning = append(res.Learning, r)
	}
	return nil
}

// commit advances the agent past a step that cleared the gate. learned is the
// model the step planned with; parameters learned on it are adopted here.
func (a *Agent) commit(res StepResult, learned *model.Model) {
	if learned != a.model {
		a.model.Adopt(learned)
	}
	if a.cfg.Algorithm == AlgorithmMMP {
		a.window = append(a.window, frame{
			obs:    res.Observation,
			prior:  res.Prior,
			action: res.Action,
		})
		if len(a.window) > a.cfg.Window-1 {
			a.window = a.window[len(a.window)-(a.cfg.Window-1):]
		}
	}

	a.qs = cloneVecs(res.Qs)
	a.lastAction = append([]int(nil), res.Action...)
	if a.cfg.EmpiricalPrior {
		a.prior = a.model.PredictAll(res.Action, res.Qs)
	} else {
		a.prior = cloneVecs(a.model.D)
	}
	a.step++
}

func cloneVecs(in [][]float64) [][]float64 {
	out := make([][]float64, len(in))
	for i, v := range in {
		out[i] = append([]float64(nil), v...)
	}
	return out
}

// #endregion step
