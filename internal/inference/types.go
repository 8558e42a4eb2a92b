package inference

// #region config
// Config bounds the fixed-point iteration.
type Config struct {
	MaxIterations int     `yaml:"max_iterations" env:"MAX_ITERATIONS"` // passes over all factors (default 16)
	Tolerance     float64 `yaml:"tolerance" env:"TOLERANCE"`           // stop once no factor moves more than this in L1 (default 1e-4)
}

// DefaultConfig returns the standard iteration bounds.
func DefaultConfig() Config {
	return Config{
		MaxIterations: 16,
		Tolerance:     1e-4,
	}
}

// MMPConfig bounds marginal message passing over an observation window.
type MMPConfig struct {
	Iterations int `yaml:"iterations" env:"ITERATIONS"` // full sweeps over the window (default 10)
}

// DefaultMMPConfig returns the standard sweep count.
func DefaultMMPConfig() MMPConfig {
	return MMPConfig{Iterations: 10}
}

// #endregion config

// #region result
// Result is the factorized posterior for one observation.
type Result struct {
	Qs         [][]float64 // per-factor posterior
	FreeEnergy float64     // variational free energy of Qs
	Iterations int
	Converged  bool
}

// MMPResult holds smoothed beliefs for every step of a window.
type MMPResult struct {
	Qs         [][][]float64 // Qs[t][f]
	FreeEnergy float64       // summed over the window on the final sweep
}

// #endregion result
