package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"slices"
	"syscall"

	"github.com/danielpatrickdp/aif-controller/internal/agent"
	"github.com/danielpatrickdp/aif-controller/internal/config"
	"github.com/danielpatrickdp/aif-controller/internal/env"
	"github.com/danielpatrickdp/aif-controller/internal/envrpc"
	"github.com/danielpatrickdp/aif-controller/internal/history"
	"github.com/danielpatrickdp/aif-controller/internal/logging"
	"github.com/danielpatrickdp/aif-controller/internal/loop"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"
)

// #region main
func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

type app struct {
	configPath string
	cfg        config.Config
	logger     *zap.Logger
}

func newRootCommand() *cobra.Command {
	a := &app{}
	cmd := &cobra.Command{
		Use:          "controller",
		Short:        "Run an active-inference agent in a simulated world",
		SilenceUsage: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := config.Load(a.configPath)
			if err != nil {
				return err
			}
			a.cfg = cfg
			a.logger, err = logging.NewLogger(cfg.Log.Level, cfg.Log.Development)
			return err
		},
		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}
	cmd.PersistentFlags().StringVarP(&a.configPath, "config", "c", "aif.yaml", "path to YAML config (missing file means defaults)")
	cmd.AddCommand(newRunCommand(a), newServeEnvCommand(a))
	return cmd
}

// #endregion main

// #region run
func newRunCommand(a *app) *cobra.Command {
	var steps int
	var seed int64
	var addr string
	cmd := &cobra.Command{
		Use:     "run",
		Short:   "Run the perception-action loop and record it",
		Example: "controller run --steps 200\ncontroller run --addr localhost:50061",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("steps") {
				a.cfg.Steps = steps
			}
			if cmd.Flags().Changed("seed") {
				a.cfg.Scenario.Seed = seed
			}
			if cmd.Flags().Changed("addr") {
				a.cfg.Env.Addr = addr
			}
			if err := a.cfg.Validate(); err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.run(ctx)
		},
	}
	cmd.Flags().IntVarP(&steps, "steps", "n", 0, "number of steps (overrides config)")
	cmd.Flags().Int64Var(&seed, "seed", 0, "scenario seed (overrides config)")
	cmd.Flags().StringVar(&addr, "addr", "", "remote environment address (overrides config)")
	return cmd
}

func (a *app) run(ctx context.Context) error {
	w, err := env.Build(a.cfg.Scenario)
	if err != nil {
		return fmt.Errorf("build scenario: %w", err)
	}
	ag, err := agent.New(w.Model, a.cfg.Agent, w.AgentSeed, agent.WithLogger(a.logger))
	if err != nil {
		return fmt.Errorf("build agent: %w", err)
	}

	var world loop.Environment = w.Process
	if a.cfg.Env.Addr != "" {
		client, err := envrpc.NewClient(a.cfg.Env.Addr)
		if err != nil {
			return err
		}
		defer client.Close()
		if err := checkRemote(ctx, client, w); err != nil {
			return err
		}
		world = client
	}

	var opts []loop.Option
	opts = append(opts, loop.WithLogger(a.logger))
	var store *history.Store
	var runID string
	if a.cfg.Store.Path != "" {
		store, err = history.NewStore(a.cfg.Store.Path)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer store.Close()
		scJSON, err := json.Marshal(a.cfg.Scenario)
		if err != nil {
			return fmt.Errorf("marshal scenario: %w", err)
		}
		cfgJSON, err := json.Marshal(a.cfg.Agent)
		if err != nil {
			return fmt.Errorf("marshal agent config: %w", err)
		}
		run, err := store.CreateRun(string(scJSON), string(cfgJSON), a.cfg.Scenario.Seed, a.cfg.Steps)
		if err != nil {
			return err
		}
		runID = run.RunID
		opts = append(opts, loop.WithRecorder(store.Recorder(runID)))
		a.logger.Info("run started", zap.String("run_id", runID), zap.String("db", a.cfg.Store.Path))
	}

	h, runErr := loop.Run(ctx, ag, world, w.Initial, a.cfg.Steps, opts...)

	if store != nil {
		status, reason := history.StatusCompleted, ""
		if runErr != nil {
			status, reason = history.StatusFailed, runErr.Error()
		}
		if err := store.FinishRun(runID, status, reason); err != nil {
			a.logger.Error("finish run", zap.Error(err))
		}
	}
	printSummary(runID, h)
	return runErr
}

// checkRemote fails unless the remote process has the scenario's dimensions.
func checkRemote(ctx context.Context, c *envrpc.Client, w *env.World) error {
	d, err := c.Describe(ctx)
	if err != nil {
		return err
	}
	if !slices.Equal(d.NumStates, w.Process.NumStates()) ||
		!slices.Equal(d.NumObs, w.Process.NumObs()) ||
		!slices.Equal(d.NumControls, w.Process.NumControls()) {
		return fmt.Errorf("remote environment %v/%v/%v does not match scenario %v/%v/%v",
			d.NumStates, d.NumObs, d.NumControls,
			w.Process.NumStates(), w.Process.NumObs(), w.Process.NumControls())
	}
	return nil
}

func printSummary(runID string, h *loop.History) {
	if h == nil || h.Len() == 0 {
		fmt.Println("no steps committed")
		return
	}
	if runID != "" {
		fmt.Printf("run:           %s\n", runID)
	}
	fmt.Printf("steps:         %d\n", h.Len())
	fmt.Printf("final state:   %v\n", h.States[h.Len()-1])
	fmt.Printf("final action:  %v\n", h.Actions[h.Len()-1])
	fmt.Printf("mean F:        %.4f\n", stat.Mean(h.FreeEnergy, nil))
}

// #endregion run

// #region serve-env
func newServeEnvCommand(a *app) *cobra.Command {
	var listen string
	cmd := &cobra.Command{
		Use:   "serve-env",
		Short: "Serve the scenario's generative process over gRPC",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("listen") {
				a.cfg.Env.Listen = listen
			}
			w, err := env.Build(a.cfg.Scenario)
			if err != nil {
				return fmt.Errorf("build scenario: %w", err)
			}
			lis, err := net.Listen("tcp", a.cfg.Env.Listen)
			if err != nil {
				return fmt.Errorf("listen %s: %w", a.cfg.Env.Listen, err)
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			a.logger.Info("serving environment",
				zap.Ints("num_states", w.Process.NumStates()),
				zap.Ints("num_obs", w.Process.NumObs()),
				zap.Ints("initial_state", w.Initial),
			)
			if err := envrpc.Serve(ctx, lis, w.Process, a.logger); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "listen address (overrides config)")
	return cmd
}

// #endregion serve-env
