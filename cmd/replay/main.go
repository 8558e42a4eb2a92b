package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/danielpatrickdp/aif-controller/internal/logging"
	"github.com/danielpatrickdp/aif-controller/internal/replay"
	"github.com/spf13/cobra"
)

// #region main

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var (
		verbose  bool
		jsonOut  bool
		logLevel string
	)
	cmd := &cobra.Command{
		Use:          "replay <fixture.json>",
		Short:        "Replay recorded observations through a fresh agent and compare actions",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := logging.NewLogger(logLevel, false)
			if err != nil {
				return err
			}
			defer logger.Sync()

			f, err := replay.LoadFixture(args[0])
			if err != nil {
				return err
			}
			results, err := replay.Replay(cmd.Context(), f, logger)
			summary := replay.Summarize(results)
			if jsonOut {
				if encErr := printJSON(struct {
					Summary replay.ReplaySummary  `json:"summary"`
					Results []replay.ReplayResult `json:"results,omitempty"`
				}{summary, pick(verbose, results)}); encErr != nil {
					return encErr
				}
			} else {
				printReport(f, results, summary, verbose)
			}
			if err != nil {
				return err
			}
			if summary.Mismatches > 0 {
				return fmt.Errorf("%d of %d checked steps diverged, first at step %d",
					summary.Mismatches, summary.Checked, summary.FirstDiff)
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "print every step")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "output as JSON")
	cmd.Flags().StringVar(&logLevel, "log-level", "warn", "log level")
	return cmd
}

// #endregion main

// #region report

func printReport(f *replay.Fixture, results []replay.ReplayResult, s replay.ReplaySummary, verbose bool) {
	if f.Description != "" {
		fmt.Printf("fixture: %s\n", f.Description)
	}
	if verbose {
		fmt.Printf("%5s  %-10s  %-10s  %-10s  %9s  %s\n", "Step", "Obs", "Action", "Expected", "F", "")
		for _, r := range results {
			mark := "ok"
			if !r.Match {
				mark = "MISMATCH"
			}
			expected := "-"
			if r.ExpectedAction != nil {
				expected = fmt.Sprint(r.ExpectedAction)
			}
			fmt.Printf("%5d  %-10s  %-10s  %-10s  %9.4f  %s\n",
				r.Step, fmt.Sprint(r.Observation), fmt.Sprint(r.Action), expected, r.FreeEnergy, mark)
		}
		fmt.Println()
	}
	fmt.Printf("steps: %d  checked: %d  matches: %d  mismatches: %d  eval failures: %d\n",
		s.TotalSteps, s.Checked, s.Matches, s.Mismatches, s.EvalFails)
}

func pick(verbose bool, results []replay.ReplayResult) []replay.ReplayResult {
	if verbose {
		return results
	}
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// #endregion report
