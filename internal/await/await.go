// Package await implements bounded-retry assertions over eventually
// consistent UI state.
//
// Every assertion gets its own wait: the predicate is evaluated immediately,
// then every Policy.Interval, and once more at the deadline. The outcome
// depends only on whether the predicate held by the deadline, never on where
// the deadline fell relative to the poll interval. Waits are never pooled, so
// a slow assertion cannot eat into the budget of the next one.
package await

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"k8s.io/apimachinery/pkg/util/wait"

	"github.com/roach88/crosscheck/internal/locator"
)

// Policy holds the timeout tiers.
type Policy struct {
	// Default applies to assertions on state the acting session changed
	// itself.
	Default time.Duration

	// Extended applies to assertions on state propagated from another
	// session through the backend.
	Extended time.Duration

	// Interval is the delay between evaluations.
	Interval time.Duration
}

// DefaultPolicy returns 2s / 15s with a 100ms poll.
func DefaultPolicy() Policy {
	return Policy{
		Default:  2 * time.Second,
		Extended: 15 * time.Second,
		Interval: 100 * time.Millisecond,
	}
}

// Validate checks that the tiers are usable.
func (p Policy) Validate() error {
	switch {
	case p.Default <= 0:
		return fmt.Errorf("default timeout must be positive, got %s", p.Default)
	case p.Extended < p.Default:
		return fmt.Errorf("extended timeout %s is shorter than default %s", p.Extended, p.Default)
	case p.Interval <= 0:
		return fmt.Errorf("poll interval must be positive, got %s", p.Interval)
	}
	return nil
}

// Observable reads the current value of some UI state.
type Observable[T any] func(ctx context.Context) (T, error)

// Condition is a named predicate over an observed value.
type Condition[T any] struct {
	Describe string
	Match    func(T) bool
}

// Engine runs assertions under a Policy.
type Engine struct {
	policy  Policy
	log     *slog.Logger
	metrics *Metrics
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine's logger.
func WithLogger(log *slog.Logger) Option {
	return func(e *Engine) { e.log = log }
}

// WithMetrics records every assertion in m.
func WithMetrics(m *Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// New creates an engine. A zero field in policy falls back to
// DefaultPolicy's value.
func New(policy Policy, opts ...Option) *Engine {
	def := DefaultPolicy()
	if policy.Default <= 0 {
		policy.Default = def.Default
	}
	if policy.Extended <= 0 {
		policy.Extended = def.Extended
	}
	if policy.Interval <= 0 {
		policy.Interval = def.Interval
	}
	e := &Engine{policy: policy, log: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Policy returns the engine's timeout tiers.
func (e *Engine) Policy() Policy {
	return e.policy
}

// Await waits up to timeout for obs to satisfy cond.
//
// A transient read error (element absent, detached mid-read) counts as "not
// yet" and is kept as TimeoutError.LastErr. locator.ErrAmbiguous is terminal:
// it fails the assertion at once. Cancellation of ctx is returned as is.
func Await[T any](ctx context.Context, e *Engine, subject string, obs Observable[T], cond Condition[T], timeout time.Duration) error {
	start := time.Now()
	var (
		last    T
		seen    bool
		lastErr error
		polls   int
	)

	check := func(ctx context.Context) (bool, error) {
		polls++
		v, err := obs(ctx)
		if err != nil {
			lastErr = err
			if errors.Is(err, locator.ErrAmbiguous) {
				return false, err
			}
			return false, nil
		}
		last, seen, lastErr = v, true, nil
		return cond.Match(v), nil
	}

	err := wait.PollUntilContextTimeout(ctx, e.policy.Interval, timeout, true, check)
	if err != nil && wait.Interrupted(err) && ctx.Err() == nil {
		// The deadline fell between polls; evaluate once more so the result
		// reflects the state at the deadline.
		var ok bool
		ok, err = check(ctx)
		if ok {
			err = nil
		} else if err == nil {
			err = context.DeadlineExceeded
		}
	}

	elapsed := time.Since(start)
	if e.metrics != nil {
		e.metrics.observe(err, elapsed, polls)
	}

	switch {
	case err == nil:
		e.log.Debug("await ok", "subject", subject, "expected", cond.Describe, "elapsed", elapsed, "polls", polls)
		return nil
	case ctx.Err() != nil:
		return ctx.Err()
	}

	terr := &TimeoutError{
		Subject:  subject,
		Expected: cond.Describe,
		Elapsed:  elapsed,
		Timeout:  timeout,
		LastErr:  lastErr,
	}
	if seen {
		terr.Observed = fmt.Sprint(last)
	}
	e.log.Debug("await failed", "subject", subject, "expected", cond.Describe, "observed", terr.Observed, "elapsed", elapsed, "error", lastErr)
	return terr
}

// TimeoutError reports an assertion whose predicate did not hold by the
// deadline, or that hit a terminal read error.
type TimeoutError struct {
	Subject  string
	Expected string

	// Observed is the last successfully read value, or "" if none was read.
	Observed string

	Elapsed time.Duration
	Timeout time.Duration

	// LastErr is the error of the final read, if it failed.
	LastErr error
}

// Terminal reports whether the assertion gave up before its deadline.
func (e *TimeoutError) Terminal() bool {
	return errors.Is(e.LastErr, locator.ErrAmbiguous)
}

// Error implements the error interface.
func (e *TimeoutError) Error() string {
	observed := e.Observed
	if observed == "" {
		observed = "nothing"
	}
	verb := "timed out"
	if e.Terminal() {
		verb = "failed"
	}
	msg := fmt.Sprintf("%s %s after %s (timeout %s): expected %s, observed %s",
		e.Subject, verb, e.Elapsed.Round(time.Millisecond), e.Timeout, e.Expected, observed)
	if e.LastErr != nil {
		msg += ": " + e.LastErr.Error()
	}
	return msg
}

// Unwrap returns LastErr.
func (e *TimeoutError) Unwrap() error {
	return e.LastErr
}
