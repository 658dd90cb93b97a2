package cli

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/crosscheck/internal/stubtable"
)

// StubOptions holds flags for the stub command.
type StubOptions struct {
	*RootOptions
	Addr      string
	PushDelay time.Duration
}

// NewStubCommand creates the stub command.
func NewStubCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StubOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "stub",
		Short: "Serve an in-memory stand-in for the table application",
		Long: `Serve a stand-in for the table application that renders the same test ids
and pushes state over a websocket. State lives in memory and is lost on exit.

Example:
  crosscheck stub --addr 127.0.0.1:8080 --push-delay 300ms &
  crosscheck run --base-url http://127.0.0.1:8080`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			srv := stubtable.New(stubtable.Options{
				PushDelay: opts.PushDelay,
				Logger:    opts.logger(cmd.ErrOrStderr()),
			})
			err := srv.ListenAndServe(ctx, opts.Addr, func(addr net.Addr) {
				fmt.Fprintf(cmd.OutOrStdout(), "serving on http://%s\n", addr)
			})
			if err != nil {
				return opts.formatter(cmd).Fail(ExitCommandError, ErrCodeGeneric, fmt.Errorf("stub server: %w", err), nil)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().DurationVar(&opts.PushDelay, "push-delay", 0, "delay every state push by this long")
	return cmd
}
