package main

import (
	"fmt"
	"os"

	"github.com/danielpatrickdp/aif-controller/internal/history"
	"github.com/danielpatrickdp/aif-controller/internal/replay"
	"github.com/spf13/cobra"
	_ "modernc.org/sqlite"
)

// #region main

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var (
		dbPath      string
		out         string
		description string
		first       int
	)
	cmd := &cobra.Command{
		Use:          "fixture-export <run-id>",
		Short:        "Export a recorded run as a replay fixture",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(_ *cobra.Command, args []string) error {
			store, err := history.NewStore(dbPath)
			if err != nil {
				return fmt.Errorf("open db: %w", err)
			}
			defer store.Close()

			run, err := store.GetRun(args[0])
			if err != nil {
				return err
			}
			steps, err := store.ListSteps(run.RunID)
			if err != nil {
				return err
			}
			if len(steps) == 0 {
				return fmt.Errorf("run %s has no recorded steps", run.RunID)
			}
			if first > 0 && first < len(steps) {
				steps = steps[:first]
			}

			f, err := replay.FromRun(run, steps)
			if err != nil {
				return err
			}
			if description != "" {
				f.Description = description
			}
			if out == "" {
				out = fmt.Sprintf("run_%s.json", run.RunID)
			}
			if err := replay.WriteFixture(out, f); err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "wrote %d steps of run %s to %s\n", len(f.Steps), run.RunID, out)
			return nil
		},
	}
	cmd.Flags().StringVar(&dbPath, "db", "aif.db", "path to the history database")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default run_<id>.json)")
	cmd.Flags().StringVar(&description, "description", "", "fixture description")
	cmd.Flags().IntVar(&first, "first", 0, "export only the first N steps")
	return cmd
}

// #endregion main
