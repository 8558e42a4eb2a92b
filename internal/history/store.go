package history

import (
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id        TEXT PRIMARY KEY,
	scenario_json TEXT NOT NULL,
	config_json   TEXT,
	seed          INTEGER NOT NULL,
	steps         INTEGER NOT NULL,
	status        TEXT NOT NULL,
	reason        TEXT,
	created_at    TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS steps (
	run_id        TEXT NOT NULL,
	step          INTEGER NOT NULL,
	state         TEXT NOT NULL,
	observation   TEXT NOT NULL,
	action        TEXT NOT NULL,
	qs            BLOB NOT NULL,
	qs_dims       TEXT NOT NULL,
	qpi           BLOB NOT NULL,
	efe           BLOB NOT NULL,
	free_energy   REAL NOT NULL,
	metrics_json  TEXT,
	created_at    TEXT NOT NULL,
	PRIMARY KEY (run_id, step),
	FOREIGN KEY (run_id) REFERENCES runs(run_id)
);

CREATE TABLE IF NOT EXISTS decision_log (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id        TEXT NOT NULL,
	step          INTEGER NOT NULL,
	action        TEXT NOT NULL,
	decision      TEXT NOT NULL,
	reason        TEXT,
	metrics_json  TEXT,
	created_at    TEXT NOT NULL,
	FOREIGN KEY (run_id) REFERENCES runs(run_id)
);
`

// #endregion schema

// #region store-struct
// Store persists runs and their steps in SQLite.
type Store struct {
	db *sql.DB
}

// #endregion store-struct

// #region constructor
// NewStore opens a SQLite database and runs migrations.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// one connection keeps ":memory:" databases shared and serializes writers
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma fk: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// NewStoreWithDB wraps an already-migrated database.
func NewStoreWithDB(db *sql.DB) *Store {
	return &Store{db: db}
}

// Migrate creates the tables on db if they are missing.
func Migrate(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for use by other packages (e.g. logging).
func (s *Store) DB() *sql.DB {
	return s.db
}

// #endregion constructor

// #region runs
// CreateRun inserts a new run in the running state.
func (s *Store) CreateRun(scenarioJSON, configJSON string, seed int64, steps int) (RunRecord, error) {
	rec := RunRecord{
		RunID:        uuid.New().String(),
		ScenarioJSON: scenarioJSON,
		ConfigJSON:   configJSON,
		Seed:         seed,
		Steps:        steps,
		Status:       StatusRunning,
		CreatedAt:    time.Now().UTC(),
	}
	_, err := s.db.Exec(
		`INSERT INTO runs (run_id, scenario_json, config_json, seed, steps, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.RunID, rec.ScenarioJSON, nullIfEmpty(rec.ConfigJSON), rec.Seed, rec.Steps, rec.Status,
		rec.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return RunRecord{}, fmt.Errorf("insert run: %w", err)
	}
	return rec, nil
}

// FinishRun records the final status of a run.
func (s *Store) FinishRun(runID, status, reason string) error {
	res, err := s.db.Exec(`UPDATE runs SET status = ?, reason = ? WHERE run_id = ?`, status, nullIfEmpty(reason), runID)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("run %s not found", runID)
	}
	return nil
}

// GetRun retrieves a run by ID.
func (s *Store) GetRun(runID string) (RunRecord, error) {
	row := s.db.QueryRow(
		`SELECT run_id, scenario_json, config_json, seed, steps, status, reason, created_at
		 FROM runs WHERE run_id = ?`, runID,
	)
	rec, err := scanRun(row)
	if err != nil {
		return RunRecord{}, fmt.Errorf("get run %s: %w", runID, err)
	}
	return rec, nil
}

// ListRuns returns the most recent runs.
func (s *Store) ListRuns(limit int) ([]RunRecord, error) {
	rows, err := s.db.Query(
		`SELECT run_id, scenario_json, config_json, seed, steps, status, reason, created_at
		 FROM runs ORDER BY created_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var records []RunRecord
	for rows.Next() {
		rec, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (RunRecord, error) {
	var rec RunRecord
	var configJSON, reason sql.NullString
	var createdStr string
	if err := sc.Scan(&rec.RunID, &rec.ScenarioJSON, &configJSON, &rec.Seed, &rec.Steps, &rec.Status, &reason, &createdStr); err != nil {
		return RunRecord{}, err
	}
	rec.ConfigJSON = configJSON.String
	rec.Reason = reason.String
	rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
	return rec, nil
}

// #endregion runs

// #region steps
// AppendStep inserts one committed step.
func (s *Store) AppendStep(rec StepRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	state, err := json.Marshal(rec.State)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	obs, err := json.Marshal(rec.Observation)
	if err != nil {
		return fmt.Errorf("marshal observation: %w", err)
	}
	act, err := json.Marshal(rec.Action)
	if err != nil {
		return fmt.Errorf("marshal action: %w", err)
	}
	qs, dims := flatten(rec.Qs)
	dimsJSON, err := json.Marshal(dims)
	if err != nil {
		return fmt.Errorf("marshal qs dims: %w", err)
	}

	_, err = s.db.Exec(
		`INSERT INTO steps (run_id, step, state, observation, action, qs, qs_dims, qpi, efe, free_energy, metrics_json, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.RunID, rec.Step, string(state), string(obs), string(act),
		encodeVector(qs), string(dimsJSON), encodeVector(rec.QPi), encodeVector(rec.G),
		rec.FreeEnergy, nullIfEmpty(rec.MetricsJSON), rec.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert step: %w", err)
	}
	return nil
}

// ListSteps returns every step of a run in order.
func (s *Store) ListSteps(runID string) ([]StepRecord, error) {
	rows, err := s.db.Query(
		`SELECT run_id, step, state, observation, action, qs, qs_dims, qpi, efe, free_energy, metrics_json, created_at
		 FROM steps WHERE run_id = ? ORDER BY step`, runID,
	)
	if err != nil {
		return nil, fmt.Errorf("list steps: %w", err)
	}
	defer rows.Close()

	var records []StepRecord
	for rows.Next() {
		var rec StepRecord
		var state, obs, act, dimsJSON, createdStr string
		var qsBlob, qpiBlob, efeBlob []byte
		var metricsJSON sql.NullString
		if err := rows.Scan(&rec.RunID, &rec.Step, &state, &obs, &act, &qsBlob, &dimsJSON,
			&qpiBlob, &efeBlob, &rec.FreeEnergy, &metricsJSON, &createdStr); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		if err := json.Unmarshal([]byte(state), &rec.State); err != nil {
			return nil, fmt.Errorf("unmarshal state: %w", err)
		}
		if err := json.Unmarshal([]byte(obs), &rec.Observation); err != nil {
			return nil, fmt.Errorf("unmarshal observation: %w", err)
		}
		if err := json.Unmarshal([]byte(act), &rec.Action); err != nil {
			return nil, fmt.Errorf("unmarshal action: %w", err)
		}
		var dims []int
		if err := json.Unmarshal([]byte(dimsJSON), &dims); err != nil {
			return nil, fmt.Errorf("unmarshal qs dims: %w", err)
		}
		if rec.Qs, err = unflatten(decodeVector(qsBlob), dims); err != nil {
			return nil, err
		}
		rec.QPi = decodeVector(qpiBlob)
		rec.G = decodeVector(efeBlob)
		rec.MetricsJSON = metricsJSON.String
		rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// #endregion steps

// #region vector-encoding
func encodeVector(v []float64) []byte {
	buf := make([]byte, len(v)*8)
	for i, f := range v {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(f))
	}
	return buf
}

func decodeVector(b []byte) []float64 {
	v := make([]float64, len(b)/8)
	for i := range v {
		v[i] = math.Float64frombits(binary.LittleEndian.Uint64(b[i*8:]))
	}
	return v
}

func flatten(vs [][]float64) ([]float64, []int) {
	var flat []float64
	dims := make([]int, len(vs))
	for i, v := range vs {
		flat = append(flat, v...)
		dims[i] = len(v)
	}
	return flat, dims
}

func unflatten(flat []float64, dims []int) ([][]float64, error) {
	out := make([][]float64, len(dims))
	off := 0
	for i, d := range dims {
		if off+d > len(flat) {
			return nil, fmt.Errorf("qs blob holds %d values, dims %v need more", len(flat), dims)
		}
		out[i] = flat[off : off+d]
		off += d
	}
	return out, nil
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// #endregion vector-encoding
