package history

import "time"

// #region run-record
// RunRecord is one agent run.
type RunRecord struct {
	RunID        string
	ScenarioJSON string
	ConfigJSON   string
	Seed         int64
	Steps        int    // requested number of steps
	Status       string // "running" | "completed" | "failed"
	Reason       string
	CreatedAt    time.Time
}

// Run statuses.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// #endregion run-record

// #region step-record
// StepRecord is one committed step of a run.
type StepRecord struct {
	RunID       string
	Step        int
	State       []int // true hidden state the observation was emitted from
	Observation []int
	Action      []int
	Qs          [][]float64
	QPi         []float64
	G           []float64
	FreeEnergy  float64
	MetricsJSON string
	CreatedAt   time.Time
}

// #endregion step-record
