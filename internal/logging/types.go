package logging

import "time"

// #region decision-entry
// DecisionEntry is a single row in the decision_log table.
type DecisionEntry struct {
	RunID       string
	Step        int
	Action      string // JSON array of per-factor action indices
	Decision    string // "commit" | "reject"
	Reason      string
	MetricsJSON string
	CreatedAt   time.Time
}

// #endregion decision-entry

// #region decision-record
// DecisionRecord captures the inputs and outputs of one step's decision. Serialized as
// JSON into decision_log.metrics_json for inspection and replay.
type DecisionRecord struct {
	Step        int     `json:"step"`
	Observation []int   `json:"observation"`
	Action      []int   `json:"action"`
	Policy      int     `json:"policy"`
	FreeEnergy  float64 `json:"free_energy"`
	Iterations  int     `json:"iterations"`
	Converged   bool    `json:"converged"`

	// Planning summary
	MinEFE float64 `json:"min_efe"`
	MaxQPi float64 `json:"max_qpi"`

	// Gate output
	GateAction    string  `json:"gate_action"`
	GateSoftScore float64 `json:"gate_soft_score"`
	GateReason    string  `json:"gate_reason"`

	// Eval output
	EvalPassed  bool               `json:"eval_passed"`
	EvalMetrics map[string]float64 `json:"eval_metrics,omitempty"`
}

// #endregion decision-record
