package eval

// #region eval-config
// EvalConfig holds thresholds for post-commit step validation.
type EvalConfig struct {
	MaxSumDeviation float64 `yaml:"max_sum_deviation" env:"MAX_SUM_DEVIATION"` // fail if any distribution drifts further than this from 1
	EntropyBaseline float64 `yaml:"entropy_baseline" env:"ENTROPY_BASELINE"`   // informational: flag beliefs more uncertain than this (nats)
}

// DefaultEvalConfig returns the standard thresholds.
func DefaultEvalConfig() EvalConfig {
	return EvalConfig{
		MaxSumDeviation: 1e-9,
		EntropyBaseline: 2.0,
	}
}

// #endregion eval-config

// #region eval-input
// StepInput is the committed output of one step.
type StepInput struct {
	Qs         [][]float64
	QPi        []float64
	G          []float64
	FreeEnergy float64
}

// #endregion eval-input

// #region eval-metric
// EvalMetric captures a single validation check result.
type EvalMetric struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
	Pass  bool    `json:"pass"`
}

// #endregion eval-metric

// #region eval-result
// EvalResult is the output of post-commit validation.
type EvalResult struct {
	Passed  bool         `json:"passed"`
	Metrics []EvalMetric `json:"metrics"`
	Reason  string       `json:"reason"`
}

// Value returns the named metric and whether it was found.
func (r EvalResult) Value(name string) (float64, bool) {
	for _, m := range r.Metrics {
		if m.Name == name {
			return m.Value, true
		}
	}
	return 0, false
}

// #endregion eval-result
