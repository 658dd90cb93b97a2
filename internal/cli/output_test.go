package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/crosscheck/internal/harness"
)

func TestOutputFormatter_Emit(t *testing.T) {
	infos := []BuiltinInfo{{Name: "full_game", Actors: []string{"gm", "player"}, Steps: 40}}
	text := func(w io.Writer) { fmt.Fprintln(w, "full_game 40 steps") }

	t.Run("json envelope", func(t *testing.T) {
		buf := &bytes.Buffer{}
		f := &OutputFormatter{Format: "json", Writer: buf}
		require.NoError(t, f.Emit(infos, text))

		var resp struct {
			Status string        `json:"status"`
			Data   []BuiltinInfo `json:"data"`
		}
		require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
		assert.Equal(t, "ok", resp.Status)
		assert.Equal(t, infos, resp.Data)
		assert.NotContains(t, buf.String(), "40 steps\n", "text renderer is not used in json mode")
	})

	t.Run("text renderer", func(t *testing.T) {
		buf := &bytes.Buffer{}
		f := &OutputFormatter{Format: "text", Writer: buf}
		require.NoError(t, f.Emit(infos, text))
		assert.Equal(t, "full_game 40 steps\n", buf.String())
	})

	t.Run("text without renderer", func(t *testing.T) {
		buf := &bytes.Buffer{}
		f := &OutputFormatter{Format: "text", Writer: buf}
		require.NoError(t, f.Emit("no scenarios", nil))
		assert.Equal(t, "no scenarios\n", buf.String())
	})
}

func TestOutputFormatter_Report(t *testing.T) {
	details := []harness.ValidationError{{Field: "steps[0].target", Code: harness.ErrUnknownTarget, Message: `unknown target "x"`}}

	tests := []struct {
		name     string
		format   string
		verbose  bool
		contains []string
		absent   []string
	}{
		{
			name:     "text",
			format:   "text",
			contains: []string{"Error [E004]: invalid scenario"},
			absent:   []string{"Details:"},
		},
		{
			name:     "text verbose shows details",
			format:   "text",
			verbose:  true,
			contains: []string{"Error [E004]", "Details:", "steps[0].target"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			f := &OutputFormatter{Format: tt.format, Writer: buf, Verbose: tt.verbose}
			require.NoError(t, f.Report(ErrCodeInvalid, "invalid scenario", details))
			for _, s := range tt.contains {
				assert.Contains(t, buf.String(), s)
			}
			for _, s := range tt.absent {
				assert.NotContains(t, buf.String(), s)
			}
		})
	}

	t.Run("json carries details", func(t *testing.T) {
		buf := &bytes.Buffer{}
		f := &OutputFormatter{Format: "json", Writer: buf}
		require.NoError(t, f.Report(ErrCodeInvalid, "invalid scenario", details))

		var resp struct {
			Status string `json:"status"`
			Error  struct {
				Code    string                    `json:"code"`
				Message string                    `json:"message"`
				Details []harness.ValidationError `json:"details"`
			} `json:"error"`
		}
		require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
		assert.Equal(t, "error", resp.Status)
		assert.Equal(t, ErrCodeInvalid, resp.Error.Code)
		assert.Equal(t, "invalid scenario", resp.Error.Message)
		assert.Equal(t, details, resp.Error.Details)
	})
}

func TestOutputFormatter_Fail(t *testing.T) {
	buf := &bytes.Buffer{}
	f := &OutputFormatter{Format: "json", Writer: buf}
	cause := &harness.ScenarioNotFoundError{Ref: "nope"}

	err := f.Fail(ExitCommandError, ErrCodeNotFound, cause, nil)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	var nf *harness.ScenarioNotFoundError
	assert.True(t, errors.As(err, &nf), "cause stays reachable")
	assert.Equal(t, cause.Error(), err.Error())

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeNotFound, resp.Error.Code)
	assert.Equal(t, cause.Error(), resp.Error.Message)
}

func TestExitError(t *testing.T) {
	err := NewExitError(ExitFailure, "2 scenario(s) failed")
	assert.Equal(t, "2 scenario(s) failed", err.Error())
	assert.Equal(t, ExitFailure, GetExitCode(err))

	cause := errors.New("address in use")
	wrapped := &ExitError{Code: ExitCommandError, Message: "stub server", Err: cause}
	assert.Equal(t, "stub server: address in use", wrapped.Error())
	assert.ErrorIs(t, wrapped, cause)
	assert.Equal(t, ExitCommandError, GetExitCode(fmt.Errorf("outer: %w", wrapped)))

	assert.Equal(t, ExitFailure, GetExitCode(errors.New("plain")))
}

func TestRunResultJSON(t *testing.T) {
	result := RunResult{
		Scenarios: []ScenarioResult{
			{Name: "full_game", Pass: true},
			{Name: "isolation", Pass: false, FailedStep: 4, Errors: []string{"step 4 failed"}},
		},
		Passed: 1,
		Failed: 1,
		Total:  2,
	}

	buf := &bytes.Buffer{}
	require.NoError(t, outputRunJSON(&OutputFormatter{Format: "json", Writer: buf}, result))

	var resp struct {
		Status string    `json:"status"`
		Data   RunResult `json:"data"`
		Error  *CLIError `json:"error"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeScenarioFail, resp.Error.Code)
	assert.Equal(t, "1 scenario(s) failed", resp.Error.Message)
	assert.Equal(t, 4, resp.Data.Scenarios[1].FailedStep)
}
