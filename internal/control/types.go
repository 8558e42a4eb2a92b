package control

import "errors"

// ErrNoPolicies rejects an empty policy set.
var ErrNoPolicies = errors.New("no policies to evaluate")

// #region config
// Config holds planning parameters.
type Config struct {
	Gamma      float64 `yaml:"gamma" env:"GAMMA"`             // precision over policies; higher is greedier (default 16)
	UseNovelty bool    `yaml:"use_novelty" env:"USE_NOVELTY"` // include parameter novelty for components with learning enabled
	Workers    int     `yaml:"workers" env:"WORKERS"`         // policies evaluated concurrently; <= 1 runs sequentially
}

// DefaultConfig returns the standard planning parameters.
func DefaultConfig() Config {
	return Config{
		Gamma:      16,
		UseNovelty: true,
		Workers:    1,
	}
}

// #endregion config

// #region evaluation
// Evaluation holds the expected free energy of every policy and the resulting posterior.
// Index i refers to policy i of the evaluated policy.Space.
type Evaluation struct {
	G         []float64 // expected free energy (lower is better)
	QPi       []float64 // softmax(-gamma*G + ln E)
	Risk      []float64
	Ambiguity []float64
	Novelty   []float64 // parameter information gain, subtracted from G
}

// #endregion evaluation

// #region terms
// terms is the per-policy decomposition of G.
type terms struct {
	risk      float64
	ambiguity float64
	novelty   float64
}

func (t terms) efe() float64 { return t.risk + t.ambiguity - t.novelty }

// #endregion terms
