package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/crosscheck/internal/harness"
)

// BuiltinInfo describes one shipped scenario.
type BuiltinInfo struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Actors      []string `json:"actors"`
	Steps       int      `json:"steps"`
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	var targets bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List built-in scenarios or the target vocabulary",
		Long: `List the scenarios shipped with crosscheck.

With --targets, list every target name a scenario step may use instead.
"[]" in a target stands for a 0-based index such as [0].`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)
			if targets {
				return listTargets(f)
			}
			return listBuiltins(f)
		},
	}

	cmd.Flags().BoolVar(&targets, "targets", false, "list step targets instead of scenarios")
	return cmd
}

func listBuiltins(f *OutputFormatter) error {
	var infos []BuiltinInfo
	for _, name := range harness.BuiltinNames() {
		sc, err := harness.Builtin(name)
		if err != nil {
			return f.Fail(ExitCommandError, ErrCodeInvalid, err, nil)
		}
		infos = append(infos, BuiltinInfo{
			Name:        sc.Name,
			Description: sc.Description,
			Actors:      sc.Actors,
			Steps:       len(sc.Steps),
		})
	}

	return f.Emit(infos, func(w io.Writer) {
		for _, info := range infos {
			fmt.Fprintf(w, "%-14s %2d steps  %v\n", info.Name, info.Steps, info.Actors)
			fmt.Fprintf(w, "  %s\n", info.Description)
		}
	})
}

func listTargets(f *OutputFormatter) error {
	targets := harness.Targets()
	return f.Emit(targets, func(w io.Writer) {
		for _, t := range targets {
			fmt.Fprintln(w, t)
		}
	})
}
