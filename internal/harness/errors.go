package harness

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/roach88/crosscheck/internal/await"
	"github.com/roach88/crosscheck/internal/locator"
	"github.com/roach88/crosscheck/internal/scene"
)

// Failure categories.
const (
	CategoryTimeout  = "timeout"
	CategoryNotFound = "not_found"
	CategoryUsage    = "usage"
	CategoryDriver   = "driver"
)

// AssertionError describes the step that failed a scenario.
// It includes the trace up to the failure to help debugging.
type AssertionError struct {
	Step     int    // 1-based step index
	Actor    string // acting session
	Op       string // do:<kind> or expect:<kind>
	Target   string // vocabulary target, if any
	Category string // timeout, not_found, usage or driver
	Expected string // human-readable expected outcome
	Actual   string // human-readable actual outcome

	Elapsed time.Duration
	Err     error
	Trace   []TraceEvent
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "step %d failed: %s %s", e.Step, e.Actor, e.Op)
	if e.Target != "" {
		fmt.Fprintf(&buf, " %s", e.Target)
	}
	fmt.Fprintf(&buf, " (%s after %s)\n", e.Category, e.Elapsed.Round(time.Millisecond))
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nTrace:\n")
		for _, ev := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s %s", ev.Seq, ev.Actor, ev.Op)
			if ev.Target != "" {
				fmt.Fprintf(&buf, " %s", ev.Target)
			}
			if ev.Value != "" {
				fmt.Fprintf(&buf, " %q", ev.Value)
			}
			fmt.Fprintf(&buf, " -> %s\n", ev.Outcome)
		}
	}
	return buf.String()
}

// Unwrap returns the underlying error.
func (e *AssertionError) Unwrap() error {
	return e.Err
}

// newAssertionError classifies err, the failure of step, into a report.
func newAssertionError(seq int, step Step, expected string, elapsed time.Duration, err error, trace []TraceEvent) *AssertionError {
	ae := &AssertionError{
		Step:     seq,
		Actor:    step.Actor,
		Op:       step.Op(),
		Target:   step.Target,
		Category: CategoryDriver,
		Expected: expected,
		Actual:   err.Error(),
		Elapsed:  elapsed,
		Err:      err,
		Trace:    append([]TraceEvent(nil), trace...),
	}

	var (
		terr *await.TimeoutError
		nf   *locator.NotFoundError
		ue   *scene.UsageError
	)
	switch {
	case errors.As(err, &terr):
		ae.Category = CategoryTimeout
		ae.Expected = terr.Expected
		ae.Actual = terr.Observed
		if ae.Actual == "" {
			ae.Actual = "nothing observed"
		}
		if terr.LastErr != nil {
			ae.Actual += " (" + terr.LastErr.Error() + ")"
		}
	case errors.As(err, &nf):
		ae.Category = CategoryNotFound
		ae.Actual = fmt.Sprintf("no actionable element for %s", nf.Query)
	case errors.As(err, &ue):
		ae.Category = CategoryUsage
		ae.Actual = ue.Reason
	}
	return ae
}
