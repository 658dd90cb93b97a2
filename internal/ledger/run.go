package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/crosscheck/internal/harness"
)

// ErrRunNotFound is returned by GetRun for an unknown id.
var ErrRunNotFound = errors.New("run not found")

// Run is one recorded scenario run.
type Run struct {
	ID         string     `json:"id"`
	Scenario   string     `json:"scenario"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt time.Time  `json:"finished_at"`
	Pass       bool       `json:"pass"`
	FailedStep int        `json:"failed_step,omitempty"`
	Error      string     `json:"error,omitempty"`
	Steps      []Step     `json:"steps,omitempty"`
	Artifacts  []Artifact `json:"artifacts,omitempty"`
}

// Duration returns the wall time of the run.
func (r Run) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Step is one executed step of a run.
type Step struct {
	Seq     int           `json:"seq"`
	Actor   string        `json:"actor"`
	Op      string        `json:"op"`
	Target  string        `json:"target,omitempty"`
	Outcome string        `json:"outcome"`
	Elapsed time.Duration `json:"elapsed"`
}

// Artifact is the teardown screenshot of one actor.
type Artifact struct {
	Actor string `json:"actor"`
	Path  string `json:"path"`
	Error string `json:"error,omitempty"`
}

// FromResult converts a harness result into a run. The id is left empty;
// RecordRun assigns one.
func FromResult(res *harness.Result) Run {
	elapsed := make(map[int]time.Duration, len(res.Timings))
	for _, t := range res.Timings {
		elapsed[t.Seq] = t.Elapsed
	}

	run := Run{
		Scenario:   res.Scenario,
		StartedAt:  res.StartedAt,
		FinishedAt: res.FinishedAt,
		Pass:       res.Pass,
		FailedStep: res.FailedStep,
		Error:      strings.Join(res.Errors, "\n"),
	}
	for _, ev := range res.Trace {
		run.Steps = append(run.Steps, Step{
			Seq:     ev.Seq,
			Actor:   ev.Actor,
			Op:      ev.Op,
			Target:  ev.Target,
			Outcome: ev.Outcome,
			Elapsed: elapsed[ev.Seq],
		})
	}
	for _, a := range res.Artifacts {
		run.Artifacts = append(run.Artifacts, Artifact(a))
	}
	return run
}

// RecordRun stores run with its steps and artifacts in one transaction and
// returns its id. A UUIDv7 is generated when run.ID is empty, so ids sort by
// creation time.
func (l *Ledger) RecordRun(ctx context.Context, run Run) (string, error) {
	if run.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return "", fmt.Errorf("record run: generate id: %w", err)
		}
		run.ID = id.String()
	}

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("record run: begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, scenario, started_at, finished_at, pass, failed_step, error)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		run.ID,
		run.Scenario,
		run.StartedAt.UnixMilli(),
		run.FinishedAt.UnixMilli(),
		boolToInt(run.Pass),
		run.FailedStep,
		run.Error,
	)
	if err != nil {
		return "", fmt.Errorf("record run: insert run: %w", err)
	}

	for _, s := range run.Steps {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO steps (run_id, seq, actor, op, target, outcome, elapsed_ms)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, run.ID, s.Seq, s.Actor, s.Op, s.Target, s.Outcome, s.Elapsed.Milliseconds())
		if err != nil {
			return "", fmt.Errorf("record run: insert step %d: %w", s.Seq, err)
		}
	}

	for _, a := range run.Artifacts {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO artifacts (run_id, actor, path, error)
			VALUES (?, ?, ?, ?)
		`, run.ID, a.Actor, a.Path, a.Error)
		if err != nil {
			return "", fmt.Errorf("record run: insert artifact %s: %w", a.Actor, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("record run: commit: %w", err)
	}
	return run.ID, nil
}

// ListRuns returns the most recent runs first, without steps or artifacts.
// limit <= 0 means no limit.
//
// Returns an empty slice (not nil) if nothing was recorded.
func (l *Ledger) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := l.db.QueryContext(ctx, `
		SELECT id, scenario, started_at, finished_at, pass, failed_step, error
		FROM runs
		ORDER BY started_at DESC, id COLLATE BINARY DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// GetRun returns one run with its steps in seq order and its artifacts in
// actor order. Returns ErrRunNotFound for an unknown id.
func (l *Ledger) GetRun(ctx context.Context, id string) (Run, error) {
	row := l.db.QueryRowContext(ctx, `
		SELECT id, scenario, started_at, finished_at, pass, failed_step, error
		FROM runs
		WHERE id = ?
	`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("get run %s: %w", id, ErrRunNotFound)
	}
	if err != nil {
		return Run{}, err
	}

	if run.Steps, err = l.readSteps(ctx, id); err != nil {
		return Run{}, err
	}
	if run.Artifacts, err = l.readArtifacts(ctx, id); err != nil {
		return Run{}, err
	}
	return run, nil
}

func (l *Ledger) readSteps(ctx context.Context, runID string) ([]Step, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT seq, actor, op, target, outcome, elapsed_ms
		FROM steps
		WHERE run_id = ?
		ORDER BY seq ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query steps: %w", err)
	}
	defer rows.Close()

	var steps []Step
	for rows.Next() {
		var s Step
		var ms int64
		if err := rows.Scan(&s.Seq, &s.Actor, &s.Op, &s.Target, &s.Outcome, &ms); err != nil {
			return nil, fmt.Errorf("scan step: %w", err)
		}
		s.Elapsed = time.Duration(ms) * time.Millisecond
		steps = append(steps, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate steps: %w", err)
	}
	return steps, nil
}

func (l *Ledger) readArtifacts(ctx context.Context, runID string) ([]Artifact, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT actor, path, error
		FROM artifacts
		WHERE run_id = ?
		ORDER BY actor COLLATE BINARY ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query artifacts: %w", err)
	}
	defer rows.Close()

	var artifacts []Artifact
	for rows.Next() {
		var a Artifact
		if err := rows.Scan(&a.Actor, &a.Path, &a.Error); err != nil {
			return nil, fmt.Errorf("scan artifact: %w", err)
		}
		artifacts = append(artifacts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate artifacts: %w", err)
	}
	return artifacts, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (Run, error) {
	var run Run
	var started, finished int64
	var pass int
	if err := row.Scan(&run.ID, &run.Scenario, &started, &finished, &pass, &run.FailedStep, &run.Error); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, err
		}
		return Run{}, fmt.Errorf("scan run: %w", err)
	}
	run.StartedAt = time.UnixMilli(started).UTC()
	run.FinishedAt = time.UnixMilli(finished).UTC()
	run.Pass = pass == 1
	return run, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
