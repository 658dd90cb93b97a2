package cli

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/crosscheck/internal/ledger"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	DB    string
	Limit int
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "Show recorded runs from the ledger",
		Long: `Show runs recorded by "crosscheck run --db".

Without arguments the most recent runs are listed, newest first. With a run
id, that run is shown with every executed step and its artifacts.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(cmd, opts, args)
		},
	}

	cmd.Flags().StringVar(&opts.DB, "db", "", "path to the SQLite ledger (required)")
	cmd.Flags().IntVar(&opts.Limit, "limit", 20, "maximum number of runs to list")
	cmd.MarkFlagRequired("db")

	return cmd
}

func runHistory(cmd *cobra.Command, opts *HistoryOptions, args []string) error {
	f := opts.formatter(cmd)

	runs, err := ledger.Open(opts.DB)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeLedger, err, nil)
	}
	defer runs.Close()

	if len(args) == 1 {
		run, err := runs.GetRun(cmd.Context(), args[0])
		if errors.Is(err, ledger.ErrRunNotFound) {
			return f.Fail(ExitCommandError, ErrCodeNotFound, err, nil)
		}
		if err != nil {
			return f.Fail(ExitCommandError, ErrCodeLedger, err, nil)
		}
		return f.Emit(run, func(w io.Writer) { printRun(w, run) })
	}

	list, err := runs.ListRuns(cmd.Context(), opts.Limit)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeLedger, err, nil)
	}
	return f.Emit(list, func(w io.Writer) {
		if len(list) == 0 {
			fmt.Fprintln(w, "No runs recorded.")
			return
		}
		for _, run := range list {
			fmt.Fprintf(w, "%s  %s  %s  %-14s %s\n",
				run.ID, run.StartedAt.Format(time.RFC3339), verdict(run.Pass), run.Scenario, run.Duration().Round(time.Millisecond))
		}
	})
}

func printRun(w io.Writer, run ledger.Run) {
	fmt.Fprintf(w, "Run %s\n", run.ID)
	fmt.Fprintf(w, "Scenario: %s\n", run.Scenario)
	fmt.Fprintf(w, "Started:  %s\n", run.StartedAt.Format(time.RFC3339))
	fmt.Fprintf(w, "Duration: %s\n", run.Duration().Round(time.Millisecond))
	fmt.Fprintf(w, "Result:   %s\n", verdict(run.Pass))
	if run.Error != "" {
		fmt.Fprintf(w, "\n%s\n", run.Error)
	}

	fmt.Fprintln(w, "\nSteps:")
	for _, s := range run.Steps {
		target := s.Target
		if target == "" {
			target = "-"
		}
		fmt.Fprintf(w, "  %3d %-4s %-12s %-22s %-40s %s\n", s.Seq, s.Outcome, s.Actor, s.Op, target, s.Elapsed.Round(time.Millisecond))
	}

	if len(run.Artifacts) > 0 {
		fmt.Fprintln(w, "\nArtifacts:")
		for _, a := range run.Artifacts {
			if a.Error != "" {
				fmt.Fprintf(w, "  %s: %s (failed: %s)\n", a.Actor, a.Path, a.Error)
				continue
			}
			fmt.Fprintf(w, "  %s: %s\n", a.Actor, a.Path)
		}
	}
}

func verdict(pass bool) string {
	if pass {
		return "PASS"
	}
	return "FAIL"
}
