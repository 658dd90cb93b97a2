package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/crosscheck/internal/harness"
)

func createTestLedger(t *testing.T) *Ledger {
	t.Helper()
	l, err := Open(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	return l
}

func testRun(scenario string, started time.Time, pass bool) Run {
	run := Run{
		Scenario:   scenario,
		StartedAt:  started,
		FinishedAt: started.Add(1500 * time.Millisecond),
		Pass:       pass,
		Steps: []Step{
			{Seq: 1, Actor: "gm", Op: "do:visit", Outcome: harness.OutcomeOK, Elapsed: 120 * time.Millisecond},
			{Seq: 2, Actor: "gm", Op: "expect:visible", Target: "home.title", Outcome: harness.OutcomeOK, Elapsed: 40 * time.Millisecond},
		},
		Artifacts: []Artifact{
			{Actor: "player_one", Path: "test-results/x/player_one.png"},
			{Actor: "gm", Path: "test-results/x/gm.png"},
		},
	}
	if !pass {
		run.FailedStep = 2
		run.Steps[1].Outcome = harness.OutcomeFail
		run.Error = "step 2 failed"
	}
	return run
}

func TestOpen_Pragmas(t *testing.T) {
	l := createTestLedger(t)

	for _, p := range connPragmas {
		assert.NoError(t, l.checkPragma(p.name, p.want))
	}
	assert.NoError(t, l.checkPragma("user_version", "1"))
}

func TestOpen_Migrations(t *testing.T) {
	tests := []struct {
		name    string
		version int
		wantErr string
	}{
		{name: "unversioned ledger is migrated", version: 0},
		{name: "current ledger is left alone", version: 1},
		{name: "newer ledger is refused", version: 7, wantErr: "newer than this build"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "runs.db")
			raw, err := sql.Open("sqlite3", path)
			require.NoError(t, err)
			_, err = raw.Exec(schemaSQL)
			require.NoError(t, err)
			_, err = raw.Exec(fmt.Sprintf("PRAGMA user_version = %d", tt.version))
			require.NoError(t, err)
			require.NoError(t, raw.Close())

			l, err := Open(path)
			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			defer l.Close()

			assert.NoError(t, l.checkPragma("user_version", fmt.Sprint(schemaVersion)))
			var idx string
			err = l.db.QueryRow("SELECT name FROM sqlite_master WHERE type='index' AND name='idx_runs_scenario'").Scan(&idx)
			assert.NoError(t, err)
		})
	}
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.db")

	for i := 0; i < 3; i++ {
		l, err := Open(path)
		require.NoError(t, err, "iteration %d", i)
		require.NoError(t, l.Close())
	}

	l, err := Open(path)
	require.NoError(t, err)
	defer l.Close()

	for _, table := range []string{"runs", "steps", "artifacts"} {
		var name string
		err := l.db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		assert.NoError(t, err, table)
	}
	var idx string
	err = l.db.QueryRow("SELECT name FROM sqlite_master WHERE type='index' AND name='idx_runs_scenario'").Scan(&idx)
	assert.NoError(t, err)
}

func TestRecordRun_RoundTrip(t *testing.T) {
	l := createTestLedger(t)
	ctx := context.Background()
	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	id, err := l.RecordRun(ctx, testRun("full_game", started, false))
	require.NoError(t, err)

	parsed, err := uuid.Parse(id)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), parsed.Version())

	got, err := l.GetRun(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, id, got.ID)
	assert.Equal(t, "full_game", got.Scenario)
	assert.False(t, got.Pass)
	assert.Equal(t, 2, got.FailedStep)
	assert.Equal(t, "step 2 failed", got.Error)
	assert.True(t, started.Equal(got.StartedAt))
	assert.Equal(t, 1500*time.Millisecond, got.Duration())

	require.Len(t, got.Steps, 2)
	assert.Equal(t, "home.title", got.Steps[1].Target)
	assert.Equal(t, harness.OutcomeFail, got.Steps[1].Outcome)
	assert.Equal(t, 120*time.Millisecond, got.Steps[0].Elapsed)

	require.Len(t, got.Artifacts, 2)
	assert.Equal(t, "gm", got.Artifacts[0].Actor, "artifacts are ordered by actor")
}

func TestRecordRun_KeepsExplicitID(t *testing.T) {
	l := createTestLedger(t)
	run := testRun("isolation", time.Now(), true)
	run.ID = "fixed-id"

	id, err := l.RecordRun(context.Background(), run)
	require.NoError(t, err)
	assert.Equal(t, "fixed-id", id)

	_, err = l.RecordRun(context.Background(), run)
	assert.Error(t, err, "duplicate id is rejected")

	runs, err := l.ListRuns(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, runs, 1, "failed insert leaves nothing behind")
}

func TestListRuns_NewestFirst(t *testing.T) {
	l := createTestLedger(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i, name := range []string{"skill_checks", "full_game", "join_link"} {
		_, err := l.RecordRun(ctx, testRun(name, base.Add(time.Duration(i)*time.Minute), true))
		require.NoError(t, err)
	}

	runs, err := l.ListRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, "join_link", runs[0].Scenario)
	assert.Equal(t, "skill_checks", runs[2].Scenario)
	assert.Empty(t, runs[0].Steps, "listing does not load steps")

	runs, err = l.ListRuns(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}

func TestListRuns_EmptyIsNotNil(t *testing.T) {
	runs, err := createTestLedger(t).ListRuns(context.Background(), 10)
	require.NoError(t, err)
	assert.NotNil(t, runs)
	assert.Empty(t, runs)
}

func TestGetRun_NotFound(t *testing.T) {
	_, err := createTestLedger(t).GetRun(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestFromResult(t *testing.T) {
	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	res := harness.NewResult("join_link")
	res.StartedAt = started
	res.FinishedAt = started.Add(time.Second)
	res.Trace = []harness.TraceEvent{
		{Seq: 1, Actor: "gm", Op: "do:visit", Value: "/", Outcome: harness.OutcomeOK},
		{Seq: 2, Actor: "gm", Op: "do:click", Target: "home.create_session", Outcome: harness.OutcomeFail},
	}
	res.Timings = []harness.StepTiming{{Seq: 1, Elapsed: 10 * time.Millisecond}, {Seq: 2, Elapsed: 2 * time.Second}}
	res.Artifacts = []harness.Artifact{{Actor: "gm", Path: "gm.png", Error: "boom"}}
	res.AddError("first")
	res.AddError("second")
	res.FailedStep = 2

	run := FromResult(res)
	assert.Empty(t, run.ID)
	assert.Equal(t, "join_link", run.Scenario)
	assert.False(t, run.Pass)
	assert.Equal(t, 2, run.FailedStep)
	assert.Equal(t, "first\nsecond", run.Error)
	require.Len(t, run.Steps, 2)
	assert.Equal(t, 2*time.Second, run.Steps[1].Elapsed)
	assert.Equal(t, "home.create_session", run.Steps[1].Target)
	assert.Equal(t, []Artifact{{Actor: "gm", Path: "gm.png", Error: "boom"}}, run.Artifacts)
}
