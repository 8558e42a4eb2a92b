package agent

import (
	"errors"

	"github.com/danielpatrickdp/aif-controller/internal/action"
	"github.com/danielpatrickdp/aif-controller/internal/control"
	"github.com/danielpatrickdp/aif-controller/internal/eval"
	"github.com/danielpatrickdp/aif-controller/internal/gate"
	"github.com/danielpatrickdp/aif-controller/internal/inference"
	"github.com/danielpatrickdp/aif-controller/internal/learning"
)

// ErrUnknownAlgorithm rejects an inference algorithm name the agent does not implement.
var ErrUnknownAlgorithm = errors.New("unknown inference algorithm")

// Inference algorithms.
const (
	AlgorithmFPI = "fpi"
	AlgorithmMMP = "mmp"
)

// #region config
// Config holds the agent's per-step parameters.
type Config struct {
	Horizon        int                 `yaml:"horizon" env:"HORIZON"`
	Algorithm      string              `yaml:"algorithm" env:"ALGORITHM"` // "fpi" | "mmp"
	Window         int                 `yaml:"window" env:"WINDOW"`       // observations smoothed by mmp, including the current one
	EmpiricalPrior bool                `yaml:"empirical_prior" env:"EMPIRICAL_PRIOR"`
	ActionMode     action.Mode         `yaml:"action_mode" env:"ACTION_MODE"`
	Inference      inference.Config    `yaml:"inference" envPrefix:"INFERENCE_"`
	MMP            inference.MMPConfig `yaml:"mmp" envPrefix:"MMP_"`
	Control        control.Config      `yaml:"control" envPrefix:"CONTROL_"`
	Learning       learning.Config     `yaml:"learning" envPrefix:"LEARNING_"`
	Gate           gate.GateConfig     `yaml:"gate" envPrefix:"GATE_"`
	Eval           eval.EvalConfig     `yaml:"eval" envPrefix:"EVAL_"`
}

// DefaultConfig returns a one-step planner with fixed-point inference and marginal
// action sampling.
func DefaultConfig() Config {
	return Config{
		Horizon:        1,
		Algorithm:      AlgorithmFPI,
		Window:         4,
		EmpiricalPrior: true,
		ActionMode:     action.ModeMarginal,
		Inference:      inference.DefaultConfig(),
		MMP:            inference.DefaultMMPConfig(),
		Control:        control.DefaultConfig(),
		Learning:       learning.DefaultConfig(),
		Gate:           gate.DefaultGateConfig(),
		Eval:           eval.DefaultEvalConfig(),
	}
}

// #endregion config

// #region step-result
// StepResult is everything one action-perception step produced.
type StepResult struct {
	Step        int
	Observation []int
	Prior       [][]float64
	Qs          [][]float64
	FreeEnergy  float64
	Iterations  int
	Converged   bool
	Evaluation  control.Evaluation
	Marginals   [][]float64
	Action      []int
	Policy      int // sampled policy index in policy mode, -1 otherwise
	Gate        gate.GateDecision
	Eval        eval.EvalResult
	Learning    []learning.Result
}

// #endregion step-result

// #region window
// frame is one remembered step for message passing.
type frame struct {
	obs    []int
	prior  [][]float64
	action []int // action taken after this observation; nil until committed
}

// #endregion window
