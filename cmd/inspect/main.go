package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/danielpatrickdp/aif-controller/internal/history"
	"github.com/danielpatrickdp/aif-controller/internal/logging"
	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/floats"
	_ "modernc.org/sqlite"
)

// #region main

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

type opts struct {
	dbPath  string
	jsonOut bool
	store   *history.Store
}

func newRootCommand() *cobra.Command {
	o := &opts{}
	cmd := &cobra.Command{
		Use:          "inspect",
		Short:        "Inspect recorded runs in a history database",
		SilenceUsage: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			if o.dbPath == "" {
				return fmt.Errorf("--db is required")
			}
			s, err := history.NewStore(o.dbPath)
			if err != nil {
				return fmt.Errorf("open db: %w", err)
			}
			o.store = s
			return nil
		},
		PersistentPostRunE: func(_ *cobra.Command, _ []string) error {
			if o.store != nil {
				return o.store.Close()
			}
			return nil
		},
	}
	cmd.PersistentFlags().StringVar(&o.dbPath, "db", "aif.db", "path to the history database")
	cmd.PersistentFlags().BoolVar(&o.jsonOut, "json", false, "output as JSON instead of table")
	cmd.AddCommand(newRunsCommand(o), newStepsCommand(o), newDecisionsCommand(o))
	return cmd
}

// #endregion main

// #region runs
type runRow struct {
	RunID     string `json:"run_id"`
	Seed      int64  `json:"seed"`
	Steps     int    `json:"steps"`
	Recorded  int    `json:"recorded"`
	Status    string `json:"status"`
	Reason    string `json:"reason,omitempty"`
	CreatedAt string `json:"created_at"`
}

func newRunsCommand(o *opts) *cobra.Command {
	var last int
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List the most recent runs",
		RunE: func(_ *cobra.Command, _ []string) error {
			runs, err := o.store.ListRuns(last)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Fprintln(os.Stderr, "no runs found")
				return nil
			}
			rows := make([]runRow, len(runs))
			for i, r := range runs {
				steps, err := o.store.ListSteps(r.RunID)
				if err != nil {
					return err
				}
				rows[i] = runRow{
					RunID:     r.RunID,
					Seed:      r.Seed,
					Steps:     r.Steps,
					Recorded:  len(steps),
					Status:    r.Status,
					Reason:    r.Reason,
					CreatedAt: r.CreatedAt.Format("2006-01-02T15:04:05Z"),
				}
			}
			if o.jsonOut {
				return printJSON(rows)
			}
			fmt.Printf("%-36s  %8s  %9s  %-10s  %s\n", "Run", "Seed", "Steps", "Status", "Time")
			for _, r := range rows {
				fmt.Printf("%-36s  %8d  %4d/%-4d  %-10s  %s\n", r.RunID, r.Seed, r.Recorded, r.Steps, r.Status, r.CreatedAt)
				if r.Reason != "" {
					fmt.Printf("  reason: %s\n", r.Reason)
				}
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&last, "last", 20, "show N most recent runs")
	return cmd
}

// #endregion runs

// #region steps
type stepRow struct {
	Step        int         `json:"step"`
	State       []int       `json:"state"`
	Observation []int       `json:"observation"`
	Action      []int       `json:"action"`
	FreeEnergy  float64     `json:"free_energy"`
	MinEFE      float64     `json:"min_efe"`
	MaxQPi      float64     `json:"max_qpi"`
	Qs          [][]float64 `json:"qs,omitempty"`
}

func newStepsCommand(o *opts) *cobra.Command {
	var beliefs bool
	cmd := &cobra.Command{
		Use:   "steps <run-id>",
		Short: "Show every recorded step of a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			if _, err := o.store.GetRun(args[0]); err != nil {
				return err
			}
			steps, err := o.store.ListSteps(args[0])
			if err != nil {
				return err
			}
			rows := make([]stepRow, len(steps))
			for i, s := range steps {
				rows[i] = stepRow{
					Step:        s.Step,
					State:       s.State,
					Observation: s.Observation,
					Action:      s.Action,
					FreeEnergy:  s.FreeEnergy,
				}
				if len(s.G) > 0 {
					rows[i].MinEFE = floats.Min(s.G)
					rows[i].MaxQPi = floats.Max(s.QPi)
				}
				if beliefs {
					rows[i].Qs = s.Qs
				}
			}
			if o.jsonOut {
				return printJSON(rows)
			}
			fmt.Printf("%5s  %-10s  %-10s  %-10s  %9s  %9s  %7s\n", "Step", "State", "Obs", "Action", "F", "min G", "max Q")
			for _, r := range rows {
				fmt.Printf("%5d  %-10s  %-10s  %-10s  %9.4f  %9.4f  %7.4f\n",
					r.Step, fmt.Sprint(r.State), fmt.Sprint(r.Observation), fmt.Sprint(r.Action),
					r.FreeEnergy, r.MinEFE, r.MaxQPi)
				for f, q := range r.Qs {
					fmt.Printf("       qs[%d] %.3f\n", f, q)
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&beliefs, "beliefs", false, "include the posterior over hidden states")
	return cmd
}

// #endregion steps

// #region decisions
func newDecisionsCommand(o *opts) *cobra.Command {
	return &cobra.Command{
		Use:   "decisions <run-id>",
		Short: "Show the decision log of a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			entries, err := logging.ListDecisions(o.store.DB(), args[0])
			if err != nil {
				return err
			}
			records := make([]logging.DecisionRecord, len(entries))
			for i, e := range entries {
				if e.MetricsJSON == "" {
					continue
				}
				if err := json.Unmarshal([]byte(e.MetricsJSON), &records[i]); err != nil {
					return fmt.Errorf("decision %d: %w", e.Step, err)
				}
			}
			if o.jsonOut {
				return printJSON(records)
			}
			fmt.Printf("%5s  %-10s  %-8s  %6s  %5s  %s\n", "Step", "Action", "Gate", "Score", "Eval", "Reason")
			for i, e := range entries {
				r := records[i]
				fmt.Printf("%5d  %-10s  %-8s  %6.3f  %5t  %s\n", e.Step, e.Action, e.Decision, r.GateSoftScore, r.EvalPassed, e.Reason)
			}
			return nil
		},
	}
}

// #endregion decisions

// #region helpers
func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// #endregion helpers
