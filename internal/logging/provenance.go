package logging

import (
	"database/sql"
	"fmt"
	"time"
)

// #region log-decision
// LogDecision writes a decision entry to the decision_log table.
func LogDecision(db *sql.DB, entry DecisionEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := db.Exec(
		`INSERT INTO decision_log (run_id, step, action, decision, reason, metrics_json, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.RunID,
		entry.Step,
		entry.Action,
		entry.Decision,
		nullIfEmpty(entry.Reason),
		nullIfEmpty(entry.MetricsJSON),
		entry.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("log decision: %w", err)
	}
	return nil
}

// #endregion log-decision

// #region list-decisions
// ListDecisions returns the decision entries of a run in step order.
func ListDecisions(db *sql.DB, runID string) ([]DecisionEntry, error) {
	rows, err := db.Query(
		`SELECT run_id, step, action, decision, reason, metrics_json, created_at
		 FROM decision_log WHERE run_id = ? ORDER BY step, id`, runID,
	)
	if err != nil {
		return nil, fmt.Errorf("list decisions: %w", err)
	}
	defer rows.Close()

	var out []DecisionEntry
	for rows.Next() {
		var e DecisionEntry
		var reason, metrics sql.NullString
		var createdStr string
		if err := rows.Scan(&e.RunID, &e.Step, &e.Action, &e.Decision, &reason, &metrics, &createdStr); err != nil {
			return nil, fmt.Errorf("scan decision: %w", err)
		}
		e.Reason = reason.String
		e.MetricsJSON = metrics.String
		e.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
		out = append(out, e)
	}
	return out, rows.Err()
}

// #endregion list-decisions

// #region helpers
func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// #endregion helpers
