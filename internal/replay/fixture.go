package replay

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/danielpatrickdp/aif-controller/internal/agent"
	"github.com/danielpatrickdp/aif-controller/internal/env"
	"github.com/danielpatrickdp/aif-controller/internal/history"
)

// #region fixture-types

// Fixture is the top-level JSON structure for a replay fixture.
type Fixture struct {
	Description string        `json:"description"`
	Scenario    env.Scenario  `json:"scenario"`
	Config      agent.Config  `json:"config"`
	Steps       []FixtureStep `json:"steps"`
}

// FixtureStep is one recorded observation and, optionally, the action the agent took.
type FixtureStep struct {
	Step           int   `json:"step"`
	Observation    []int `json:"observation"`
	ExpectedAction []int `json:"expected_action,omitempty"`
}

// #endregion fixture-types

// #region fixture-loader

// LoadFixture reads and parses a JSON fixture file. Config fields absent from the file
// keep their agent defaults.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", path, err)
	}
	f := Fixture{Config: agent.DefaultConfig()}
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	return &f, nil
}

// WriteFixture writes f to path as indented JSON.
func WriteFixture(path string, f *Fixture) error {
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal fixture: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write fixture %s: %w", path, err)
	}
	return nil
}

// FromRun builds a fixture from a stored run and its steps. The run's scenario and
// config JSON must be those written by the controller.
func FromRun(run history.RunRecord, steps []history.StepRecord) (*Fixture, error) {
	f := &Fixture{
		Description: fmt.Sprintf("run %s (seed %d)", run.RunID, run.Seed),
		Config:      agent.DefaultConfig(),
	}
	if err := json.Unmarshal([]byte(run.ScenarioJSON), &f.Scenario); err != nil {
		return nil, fmt.Errorf("parse scenario of run %s: %w", run.RunID, err)
	}
	if run.ConfigJSON != "" {
		if err := json.Unmarshal([]byte(run.ConfigJSON), &f.Config); err != nil {
			return nil, fmt.Errorf("parse config of run %s: %w", run.RunID, err)
		}
	}
	for _, s := range steps {
		f.Steps = append(f.Steps, FixtureStep{
			Step:           s.Step,
			Observation:    s.Observation,
			ExpectedAction: s.Action,
		})
	}
	return f, nil
}

// #endregion fixture-loader
