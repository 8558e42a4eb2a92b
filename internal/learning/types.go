package learning

// #region decision
// Decision records what an update call did.
type Decision struct {
	Action string // "commit" | "no_op"
	Reason string
}

// #endregion decision

// #region metrics
// ComponentMetric captures the pseudo-count mass added to one tensor.
type ComponentMetric struct {
	Name      string // "A[g]" or "B[f]"
	MassAdded float64
}

// Metrics captures telemetry from an update call.
type Metrics struct {
	MassAdded    float64
	Components   []ComponentMetric
	UpdateTimeMs int64
}

// #endregion metrics

// #region config
// Config holds Dirichlet learning parameters. Learning runs only when Enabled is set.
type Config struct {
	Enabled    bool    `yaml:"enabled" env:"ENABLED"`
	Rate       float64 `yaml:"rate" env:"RATE"`               // weight of one observation in pseudo-counts (default 1)
	ForgetRate float64 `yaml:"forget_rate" env:"FORGET_RATE"` // fraction of existing counts dropped before each update (default 0)
}

// DefaultConfig returns learning disabled with unit rate.
func DefaultConfig() Config {
	return Config{
		Enabled:    false,
		Rate:       1.0,
		ForgetRate: 0,
	}
}

// #endregion config

// #region result
// Result bundles the outcome of an update call.
type Result struct {
	Decision Decision
	Metrics  Metrics
}

// #endregion result
