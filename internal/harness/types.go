package harness

import "time"

// TraceEvent is one executed step.
type TraceEvent struct {
	Seq     int    `json:"seq"`
	Actor   string `json:"actor"`
	Op      string `json:"op"`
	Target  string `json:"target,omitempty"`
	Value   string `json:"value,omitempty"`
	Outcome string `json:"outcome"`
}

// Outcome values.
const (
	OutcomeOK   = "ok"
	OutcomeFail = "fail"
)

// Artifact is the teardown screenshot of one actor.
type Artifact struct {
	Actor string `json:"actor"`
	Path  string `json:"path"`
	Error string `json:"error,omitempty"`
}

// StepTiming records how long one step took.
type StepTiming struct {
	Seq     int           `json:"seq"`
	Elapsed time.Duration `json:"elapsed"`
}

// Result is the outcome of a scenario run.
type Result struct {
	Scenario string `json:"scenario"`

	// Pass is true when every step succeeded. Teardown problems never flip it.
	Pass bool `json:"pass"`

	// Trace lists executed steps in order, up to and including the first
	// failing one.
	Trace []TraceEvent `json:"trace"`

	Errors []string `json:"errors,omitempty"`

	// FailedStep is the 1-based index of the failing step, or 0.
	FailedStep int `json:"failed_step,omitempty"`

	// Failure is the typed error behind Errors[0], if any.
	Failure *AssertionError `json:"-"`

	Artifacts []Artifact `json:"artifacts,omitempty"`

	// Warnings collects teardown problems: failed screenshots, failed closes.
	Warnings []string `json:"warnings,omitempty"`

	Timings []StepTiming `json:"timings,omitempty"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// NewResult creates a passing result for scenario.
func NewResult(scenario string) *Result {
	return &Result{
		Scenario: scenario,
		Pass:     true,
		Trace:    []TraceEvent{},
		Errors:   []string{},
	}
}

// AddError adds an error message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Fail records the first failing step.
func (r *Result) Fail(err *AssertionError) {
	if r.Failure == nil {
		r.Failure = err
		r.FailedStep = err.Step
	}
	r.AddError(err.Error())
}

// AddWarning records a teardown problem without failing the result.
func (r *Result) AddWarning(msg string) {
	r.Warnings = append(r.Warnings, msg)
}

// Duration returns the wall time of the run.
func (r *Result) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}
