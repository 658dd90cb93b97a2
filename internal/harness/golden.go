package harness

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// TraceSnapshot is the deterministic part of a Result.
type TraceSnapshot struct {
	Scenario   string       `json:"scenario"`
	Pass       bool         `json:"pass"`
	FailedStep int          `json:"failed_step,omitempty"`
	Trace      []TraceEvent `json:"trace"`
}

// Snapshot extracts the deterministic part of r.
func (r *Result) Snapshot() TraceSnapshot {
	return TraceSnapshot{
		Scenario:   r.Scenario,
		Pass:       r.Pass,
		FailedStep: r.FailedStep,
		Trace:      r.Trace,
	}
}

// MarshalSnapshot renders the snapshot as indented JSON with a trailing
// newline.
func MarshalSnapshot(s TraceSnapshot) ([]byte, error) {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// RunWithGolden executes a scenario and compares the trace against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, sc *Scenario, deps Deps) (*Result, error) {
	t.Helper()

	result, err := Run(context.Background(), sc, deps)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, sc.Name, result); err != nil {
		return result, err
	}
	return result, nil
}

// AssertGolden compares an existing result's trace against a golden file.
func AssertGolden(t *testing.T, name string, result *Result) error {
	t.Helper()

	data, err := MarshalSnapshot(result.Snapshot())
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
	return nil
}
