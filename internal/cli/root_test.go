package cli

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/crosscheck/internal/actor"
	"github.com/roach88/crosscheck/internal/config"
)

// execute runs the root command with args and returns stdout, stderr and the
// command error.
func execute(t *testing.T, launch Launcher, args ...string) (string, string, error) {
	t.Helper()
	if launch == nil {
		launch = failingLauncher(errors.New("no browser in tests"))
	}
	cmd := newRootCommand(launch)
	stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func failingLauncher(err error) Launcher {
	return func(context.Context, config.Config, *slog.Logger) (actor.Opener, func() error, error) {
		return nil, nil, err
	}
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "crosscheck", cmd.Use)
	assert.Contains(t, cmd.Long, "isolated")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{"run", "list", "validate", "history", "stub"}

	for _, cmdName := range commands {
		t.Run(cmdName, func(t *testing.T) {
			subCmd, _, err := cmd.Find([]string{cmdName})
			require.NoError(t, err, "Command %s should exist", cmdName)
			require.NotNil(t, subCmd)
			assert.Equal(t, cmdName, subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)
}

func TestRunCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	runCmd, _, err := cmd.Find([]string{"run"})
	require.NoError(t, err)

	for flag, def := range map[string]string{
		"base-url":     "",
		"browser":      "",
		"headless":     "true",
		"results-dir":  "",
		"db":           "",
		"filter":       "",
		"metrics-file": "",
	} {
		f := runCmd.Flags().Lookup(flag)
		require.NotNil(t, f, flag)
		assert.Equal(t, def, f.DefValue, flag)
	}
}

func TestStubCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	stubCmd, _, err := cmd.Find([]string{"stub"})
	require.NoError(t, err)

	addr := stubCmd.Flags().Lookup("addr")
	require.NotNil(t, addr)
	assert.Equal(t, "127.0.0.1:8080", addr.DefValue)
	assert.NotNil(t, stubCmd.Flags().Lookup("push-delay"))
}

func TestInvalidFormat(t *testing.T) {
	_, _, err := execute(t, nil, "--format", "yaml", "list")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid format "yaml"`)
}
