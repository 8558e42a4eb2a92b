package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/danielpatrickdp/aif-controller/internal/action"
	"github.com/danielpatrickdp/aif-controller/internal/agent"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_MissingFileGivesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)

	cfg, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoad_YAMLOverlaysDefaults(t *testing.T) {
	path := writeFile(t, `
scenario:
  num_states: [4]
  num_obs: [4, 2]
  preferences: [[0, 0, 0, 1], [0, 1]]
  seed: 9
agent:
  horizon: 3
  action_mode: policy
  control:
    gamma: 4
    workers: 2
steps: 20
store:
  path: ""
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, []int{4}, cfg.Scenario.NumStates)
	assert.Equal(t, []int{4, 2}, cfg.Scenario.NumObs)
	assert.Equal(t, int64(9), cfg.Scenario.Seed)
	assert.Equal(t, 3, cfg.Agent.Horizon)
	assert.Equal(t, action.ModePolicy, cfg.Agent.ActionMode)
	assert.Equal(t, 4.0, cfg.Agent.Control.Gamma)
	assert.Equal(t, 2, cfg.Agent.Control.Workers)
	assert.True(t, cfg.Agent.Control.UseNovelty, "unset keys keep their defaults")
	assert.Equal(t, agent.AlgorithmFPI, cfg.Agent.Algorithm)
	assert.Equal(t, 20, cfg.Steps)
	assert.Empty(t, cfg.Store.Path)
}

func TestLoad_EnvironmentOverridesFile(t *testing.T) {
	path := writeFile(t, "steps: 20\nagent:\n  horizon: 3\n")
	t.Setenv("AIF_STEPS", "7")
	t.Setenv("AIF_AGENT_HORIZON", "2")
	t.Setenv("AIF_AGENT_CONTROL_GAMMA", "8.5")
	t.Setenv("AIF_AGENT_LEARNING_ENABLED", "true")
	t.Setenv("AIF_SCENARIO_SEED", "31")
	t.Setenv("AIF_STORE_PATH", "/tmp/runs.db")
	t.Setenv("AIF_LOG_LEVEL", "debug")
	t.Setenv("AIF_ENV_ADDR", "localhost:9000")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Steps)
	assert.Equal(t, 2, cfg.Agent.Horizon)
	assert.Equal(t, 8.5, cfg.Agent.Control.Gamma)
	assert.True(t, cfg.Agent.Learning.Enabled)
	assert.Equal(t, int64(31), cfg.Scenario.Seed)
	assert.Equal(t, "/tmp/runs.db", cfg.Store.Path)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "localhost:9000", cfg.Env.Addr)
}

func TestLoad_RejectsInvalid(t *testing.T) {
	_, err := Load(writeFile(t, "agent: [unclosed"))
	require.Error(t, err)

	_, err = Load(writeFile(t, "agent:\n  horizon: 0\n"))
	require.ErrorIs(t, err, ErrInvalidConfig)

	t.Setenv("AIF_STEPS", "many")
	_, err = Load("")
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	cases := map[string]func(*Config){
		"no factors":     func(c *Config) { c.Scenario.NumStates = nil },
		"no modalities":  func(c *Config) { c.Scenario.NumObs = nil },
		"empty factor":   func(c *Config) { c.Scenario.NumStates = []int{3, 0} },
		"empty modality": func(c *Config) { c.Scenario.NumObs = []int{0} },
		"preferences":    func(c *Config) { c.Scenario.NumObs = []int{4, 2} },
		"preference len": func(c *Config) { c.Scenario.Preferences = [][]float64{{0, 1}} },
		"zero gamma":     func(c *Config) { c.Agent.Control.Gamma = 0 },
		"negative gamma": func(c *Config) { c.Agent.Control.Gamma = -1 },
		"zero horizon":   func(c *Config) { c.Agent.Horizon = 0 },
		"algorithm":      func(c *Config) { c.Agent.Algorithm = "vmp" },
		"mmp window":     func(c *Config) { c.Agent.Algorithm = agent.AlgorithmMMP; c.Agent.Window = 0 },
		"action mode":    func(c *Config) { c.Agent.ActionMode = "greedy" },
		"steps":          func(c *Config) { c.Steps = -1 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultConfig()
			mutate(&cfg)
			require.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}
	require.NoError(t, DefaultConfig().Validate())
}
