package gate

// #region veto-type
// VetoType enumerates hard veto categories.
type VetoType string

const (
	VetoNumerical     VetoType = "numerical"
	VetoNormalization VetoType = "normalization"
	VetoShape         VetoType = "shape"
	VetoActionRange   VetoType = "action_range"
)

// #endregion veto-type

// #region veto-signal
// VetoSignal represents a detected hard veto condition.
type VetoSignal struct {
	Type   VetoType
	Reason string
}

// #endregion veto-signal

// #region gate-config
// GateConfig holds thresholds for gate decisions.
type GateConfig struct {
	Tolerance float64 `yaml:"tolerance" env:"TOLERANCE"` // max |sum - 1| for any committed distribution
}

// DefaultGateConfig returns the standard thresholds.
func DefaultGateConfig() GateConfig {
	return GateConfig{
		Tolerance: 1e-6,
	}
}

// #endregion gate-config

// #region proposal
// Proposal is one step's output before it is committed to the history.
type Proposal struct {
	Qs          [][]float64 // posterior per factor
	NumStates   []int
	QPi         []float64
	Action      []int
	NumControls []int
}

// #endregion proposal

// #region gate-decision
// GateDecision is the output of the gate evaluation.
type GateDecision struct {
	Action      string // "commit" | "reject"
	Reason      string
	Vetoed      bool
	VetoSignals []VetoSignal // non-empty if vetoed
	SoftScore   float64      // 0-1 decisiveness of the step (for logging)
}

// #endregion gate-decision
