package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/danielpatrickdp/aif-controller/internal/action"
	"github.com/danielpatrickdp/aif-controller/internal/agent"
	aifenv "github.com/danielpatrickdp/aif-controller/internal/env"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable that overrides the config file.
const EnvPrefix = "AIF_"

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.New("invalid config")

// #region types
// Config is the full controller configuration.
type Config struct {
	Scenario aifenv.Scenario `yaml:"scenario" envPrefix:"SCENARIO_"`
	Agent    agent.Config    `yaml:"agent" envPrefix:"AGENT_"`
	Steps    int             `yaml:"steps" env:"STEPS"`
	Store    StoreConfig     `yaml:"store" envPrefix:"STORE_"`
	Log      LogConfig       `yaml:"log" envPrefix:"LOG_"`
	Env      EnvConfig       `yaml:"env" envPrefix:"ENV_"`
}

// StoreConfig locates the run history database.
type StoreConfig struct {
	Path string `yaml:"path" env:"PATH"` // empty disables persistence
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level       string `yaml:"level" env:"LEVEL"`
	Development bool   `yaml:"development" env:"DEVELOPMENT"`
}

// EnvConfig configures the remote environment transport.
type EnvConfig struct {
	Addr   string `yaml:"addr" env:"ADDR"`     // remote environment for run; empty uses the local process
	Listen string `yaml:"listen" env:"LISTEN"` // address serve-env binds
}

// #endregion types

// #region defaults
// DefaultConfig returns a small two-factor world run for 100 steps.
func DefaultConfig() Config {
	return Config{
		Scenario: aifenv.Scenario{
			NumStates:   []int{3, 2},
			NumObs:      []int{4},
			Preferences: [][]float64{{0, 0, 1, 2}},
			Seed:        2024,
		},
		Agent: agent.DefaultConfig(),
		Steps: 100,
		Store: StoreConfig{Path: "aif.db"},
		Log:   LogConfig{Level: "info"},
		Env:   EnvConfig{Listen: "127.0.0.1:50061"},
	}
}

// #endregion defaults

// #region load
// Load reads the YAML file at path over the defaults, then applies AIF_* environment
// variables. A missing file or an empty path yields the defaults plus the environment.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse config %s: %w", path, err)
			}
		case !os.IsNotExist(err):
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// #endregion load

// #region validate
// Validate rejects configurations the agent cannot run with.
func (c Config) Validate() error {
	if len(c.Scenario.NumStates) == 0 {
		return fmt.Errorf("%w: scenario has no hidden state factors", ErrInvalidConfig)
	}
	if len(c.Scenario.NumObs) == 0 {
		return fmt.Errorf("%w: scenario has no observation modalities", ErrInvalidConfig)
	}
	for f, n := range c.Scenario.NumStates {
		if n < 1 {
			return fmt.Errorf("%w: factor %d has %d states", ErrInvalidConfig, f, n)
		}
	}
	for g, n := range c.Scenario.NumObs {
		if n < 1 {
			return fmt.Errorf("%w: modality %d has %d outcomes", ErrInvalidConfig, g, n)
		}
	}
	if p := c.Scenario.Preferences; p != nil {
		if len(p) != len(c.Scenario.NumObs) {
			return fmt.Errorf("%w: %d preference vectors for %d modalities", ErrInvalidConfig, len(p), len(c.Scenario.NumObs))
		}
		for g, v := range p {
			if len(v) != c.Scenario.NumObs[g] {
				return fmt.Errorf("%w: preference %d has %d entries for %d outcomes", ErrInvalidConfig, g, len(v), c.Scenario.NumObs[g])
			}
		}
	}
	if !(c.Agent.Control.Gamma > 0) {
		return fmt.Errorf("%w: gamma must be positive, got %g", ErrInvalidConfig, c.Agent.Control.Gamma)
	}
	if c.Agent.Horizon < 1 {
		return fmt.Errorf("%w: horizon must be at least 1, got %d", ErrInvalidConfig, c.Agent.Horizon)
	}
	switch c.Agent.Algorithm {
	case agent.AlgorithmFPI:
	case agent.AlgorithmMMP:
		if c.Agent.Window < 1 {
			return fmt.Errorf("%w: mmp window must be at least 1, got %d", ErrInvalidConfig, c.Agent.Window)
		}
	default:
		return fmt.Errorf("%w: algorithm %q", ErrInvalidConfig, c.Agent.Algorithm)
	}
	switch c.Agent.ActionMode {
	case action.ModeMarginal, action.ModeDeterministic, action.ModePolicy:
	default:
		return fmt.Errorf("%w: action mode %q", ErrInvalidConfig, c.Agent.ActionMode)
	}
	if c.Steps < 0 {
		return fmt.Errorf("%w: steps must be non-negative, got %d", ErrInvalidConfig, c.Steps)
	}
	return nil
}

// #endregion validate
