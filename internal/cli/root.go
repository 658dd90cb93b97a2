package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/crosscheck/internal/actor"
	"github.com/roach88/crosscheck/internal/config"
	"github.com/roach88/crosscheck/internal/driver"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"

	// launch starts the browser for run. Replaced in tests.
	launch Launcher
}

// Launcher starts a browser for cfg and returns an opener for actor surfaces
// plus a function that shuts the browser down.
type Launcher func(ctx context.Context, cfg config.Config, log *slog.Logger) (actor.Opener, func() error, error)

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the crosscheck CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(launchPlaywright)
}

func newRootCommand(launch Launcher) *cobra.Command {
	opts := &RootOptions{launch: launch}

	cmd := &cobra.Command{
		Use:   "crosscheck",
		Short: "crosscheck - multi-actor browser checks for the Fate table",
		Long: `Drive the Fate table application through real browsers, one isolated
session per actor, and check that what one actor does shows up for the others.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewListCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewHistoryCommand(opts))
	cmd.AddCommand(NewStubCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}

// logger returns the diagnostic logger: text on w, debug level when verbose.
func (o *RootOptions) logger(w io.Writer) *slog.Logger {
	level := slog.LevelInfo
	if o.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:  o.Format,
		Writer:  cmd.OutOrStdout(),
		Verbose: o.Verbose,
	}
}

func launchPlaywright(_ context.Context, cfg config.Config, log *slog.Logger) (actor.Opener, func() error, error) {
	opts := cfg.DriverOptions()
	opts.Logger = log
	browser, err := driver.Launch(opts)
	if err != nil {
		return nil, nil, err
	}
	return actor.OpenWith(browser.Open), browser.Close, nil
}
