package harness

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"time"

	"github.com/roach88/crosscheck/internal/actor"
	"github.com/roach88/crosscheck/internal/await"
	"github.com/roach88/crosscheck/internal/scene"
)

// Deps are the collaborators of a run.
type Deps struct {
	// Opener creates one isolated surface per actor.
	Opener actor.Opener

	// Engine runs expectations. Nil uses await.DefaultPolicy.
	Engine *await.Engine

	// ResultsDir receives <scenario>/<actor>.png artifacts.
	ResultsDir string

	Logger *slog.Logger
}

func (d Deps) withDefaults() Deps {
	if d.Logger == nil {
		d.Logger = slog.New(slog.DiscardHandler)
	}
	if d.Engine == nil {
		d.Engine = await.New(await.DefaultPolicy(), await.WithLogger(d.Logger))
	}
	if d.ResultsDir == "" {
		d.ResultsDir = "test-results"
	}
	return d
}

// Run executes a scenario and returns the result.
//
// Execution flow:
//  1. Open one session per actor
//  2. Execute steps in order, stopping at the first failure
//  3. Screenshot and close every session, whatever happened in step 2
//
// A failing step is reported in Result, not as an error. Run returns an error
// only when the scenario is invalid, the actors cannot be opened, or ctx is
// cancelled. In the last two cases a failed partial Result is returned too,
// with the artifacts of every session that was opened.
func Run(ctx context.Context, sc *Scenario, deps Deps) (result *Result, err error) {
	if errs := Validate(sc); len(errs) > 0 {
		return nil, &InvalidScenarioError{Scenario: sc.Name, Errors: errs}
	}
	if deps.Opener == nil {
		return nil, errors.New("harness: no opener")
	}
	deps = deps.withDefaults()
	log := deps.Logger.With("scenario", sc.Name)

	result = NewResult(sc.Name)
	result.StartedAt = time.Now()

	cast, err := actor.OpenCast(ctx, deps.Opener, sc.Actors, actor.Options{
		ResultsDir: filepath.Join(deps.ResultsDir, sc.Name),
		Logger:     deps.Logger,
	})
	if err != nil {
		err = fmt.Errorf("open actors: %w", err)
		var oe *actor.OpenError
		if errors.As(err, &oe) {
			result.collect(oe.Closed)
		}
		result.AddError(err.Error())
		result.FinishedAt = time.Now()
		log.Warn("actors not opened", "error", err)
		return result, err
	}
	log.Info("actors opened", "actors", cast.Names())

	defer func() {
		result.collect(cast.CloseAll())
		result.FinishedAt = time.Now()
		log.Info("scenario finished", "pass", result.Pass, "duration", result.Duration())
	}()

	r := &runner{
		cast:   cast,
		engine: deps.Engine,
		vars:   map[string]string{},
		log:    log,
	}

	for i, step := range sc.Steps {
		seq := i + 1
		start := time.Now()
		expected, serr := r.execute(ctx, step)
		elapsed := time.Since(start)

		ev := TraceEvent{
			Seq:     seq,
			Actor:   step.Actor,
			Op:      step.Op(),
			Target:  step.Target,
			Value:   step.Value,
			Outcome: OutcomeOK,
		}
		if step.Expect == ExpectCount && step.Count != nil {
			ev.Value = fmt.Sprint(*step.Count)
		}
		if serr != nil {
			ev.Outcome = OutcomeFail
		}
		result.Trace = append(result.Trace, ev)
		result.Timings = append(result.Timings, StepTiming{Seq: seq, Elapsed: elapsed})

		if serr == nil {
			log.Debug("step ok", "seq", seq, "actor", step.Actor, "op", step.Op(), "target", step.Target, "elapsed", elapsed)
			continue
		}

		log.Warn("step failed", "seq", seq, "actor", step.Actor, "op", step.Op(), "target", step.Target, "error", serr)
		result.Fail(newAssertionError(seq, step, expected, elapsed, serr, result.Trace))
		if cerr := ctx.Err(); cerr != nil {
			return result, cerr
		}
		return result, nil
	}
	return result, nil
}

// collect records the artifact and teardown warnings of closed sessions.
func (r *Result) collect(reports []actor.CloseReport) {
	for _, report := range reports {
		artifact := Artifact{Actor: report.Actor, Path: report.ArtifactPath}
		if report.ArtifactErr != nil {
			artifact.Error = report.ArtifactErr.Error()
			r.AddWarning(fmt.Sprintf("artifact %s: %v", report.Actor, report.ArtifactErr))
		}
		if report.CloseErr != nil {
			r.AddWarning(fmt.Sprintf("close %s: %v", report.Actor, report.CloseErr))
		}
		r.Artifacts = append(r.Artifacts, artifact)
	}
}

type runner struct {
	cast   *actor.Cast
	engine *await.Engine
	vars   map[string]string
	log    *slog.Logger
}

// execute runs one step. It returns a description of what the step expected,
// used when reporting a failure.
func (r *runner) execute(ctx context.Context, step Step) (string, error) {
	s := r.cast.Get(step.Actor)
	if s == nil {
		return "", fmt.Errorf("no session for actor %q", step.Actor)
	}

	value, err := expand(step.Value, r.vars)
	if err != nil {
		return "", err
	}

	if step.Do != "" {
		return r.act(ctx, s, step, value)
	}
	return r.expect(ctx, s, step, value)
}

func (r *runner) act(ctx context.Context, s *actor.Session, step Step, value string) (string, error) {
	switch step.Do {
	case DoVisit:
		path := value
		if path == "" {
			path = "/"
		}
		return "navigation to " + path, scene.New(s.Surface(), path).Visit(ctx)

	case DoReload:
		return "reload", scene.New(s.Surface(), "").Reload(ctx)

	case DoClick:
		t, err := lookupTarget(step.Target)
		if err != nil {
			return "", err
		}
		expected := "click on " + step.Target
		if t.confirm {
			return expected, s.Modal().Confirm(ctx)
		}
		return expected, t.locate(s).Click(ctx)

	case DoFill:
		t, err := lookupTarget(step.Target)
		if err != nil {
			return "", err
		}
		expected := fmt.Sprintf("fill %s", step.Target)
		if t.field {
			return expected, s.Modal().Fill(ctx, t.locate(s), value)
		}
		return expected, t.locate(s).Fill(ctx, value)

	case DoCaptureSessionID:
		id, err := s.GameMaster().SessionID()
		if err != nil {
			return "a session url", err
		}
		r.vars[step.CaptureVar()] = id
		r.log.Info("captured", "var", step.CaptureVar(), "value", id)
		return "", nil
	}
	return "", fmt.Errorf("unknown action %q", step.Do)
}

func (r *runner) expect(ctx context.Context, s *actor.Session, step Step, value string) (string, error) {
	policy := r.engine.Policy()
	timeout, err := parseWait(step.Wait, waitTiers{Default: policy.Default, Extended: policy.Extended})
	if err != nil {
		return "", err
	}

	if step.Expect == ExpectTitle {
		return fmt.Sprintf("title %q", value), r.engine.ExpectPage(s.Surface()).Within(timeout).ToHaveTitle(ctx, value)
	}

	t, err := lookupTarget(step.Target)
	if err != nil {
		return "", err
	}
	x := r.engine.Expect(t.locate(s)).Within(timeout)

	switch step.Expect {
	case ExpectText:
		return fmt.Sprintf("text %q", value), x.ToHaveText(ctx, value)
	case ExpectTextMatches:
		re, err := regexp.Compile(value)
		if err != nil {
			return "", fmt.Errorf("bad pattern: %w", err)
		}
		return fmt.Sprintf("text matching /%s/", value), x.ToMatchText(ctx, re)
	case ExpectVisible:
		return "visible", x.ToBeVisible(ctx)
	case ExpectHidden:
		return "hidden", x.ToBeHidden(ctx)
	case ExpectEnabled:
		return "enabled", x.ToBeEnabled(ctx)
	case ExpectDisabled:
		return "disabled", x.ToBeDisabled(ctx)
	case ExpectCount:
		return fmt.Sprintf("count %d", *step.Count), x.ToHaveCount(ctx, *step.Count)
	}
	return "", fmt.Errorf("unknown expectation %q", step.Expect)
}
