package await_test

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/crosscheck/internal/await"
	"github.com/roach88/crosscheck/internal/locator"
	"github.com/roach88/crosscheck/internal/testutil"
)

func fastPolicy() await.Policy {
	return await.Policy{
		Default:  300 * time.Millisecond,
		Extended: time.Second,
		Interval: 20 * time.Millisecond,
	}
}

func isTrue(v bool) bool { return v }

func TestPolicy(t *testing.T) {
	def := await.DefaultPolicy()
	assert.Equal(t, 2*time.Second, def.Default)
	assert.Equal(t, 15*time.Second, def.Extended)
	assert.Equal(t, 100*time.Millisecond, def.Interval)
	require.NoError(t, def.Validate())

	assert.Error(t, await.Policy{Default: time.Second, Extended: time.Millisecond, Interval: time.Millisecond}.Validate())
	assert.Error(t, await.Policy{Default: 0, Extended: time.Second, Interval: time.Millisecond}.Validate())
	assert.Error(t, await.Policy{Default: time.Second, Extended: time.Second}.Validate())

	e := await.New(await.Policy{Default: time.Second})
	assert.Equal(t, time.Second, e.Policy().Default)
	assert.Equal(t, def.Extended, e.Policy().Extended)
	assert.Equal(t, def.Interval, e.Policy().Interval)
}

func TestAwait_PassesImmediately(t *testing.T) {
	e := await.New(fastPolicy())
	calls := 0
	obs := func(context.Context) (bool, error) {
		calls++
		return true, nil
	}
	err := await.Await(context.Background(), e, "flag", obs, await.Condition[bool]{Describe: "true", Match: isTrue}, time.Second)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestAwait_TimesOutWithLastObservation(t *testing.T) {
	e := await.New(fastPolicy())
	obs := func(context.Context) (string, error) { return "0", nil }

	start := time.Now()
	err := await.Await(context.Background(), e, "fate points", obs, await.Condition[string]{
		Describe: `text "1"`,
		Match:    func(s string) bool { return s == "1" },
	}, 150*time.Millisecond)

	var terr *await.TimeoutError
	require.True(t, errors.As(err, &terr))
	assert.GreaterOrEqual(t, time.Since(start), 150*time.Millisecond)
	assert.Equal(t, "fate points", terr.Subject)
	assert.Equal(t, `text "1"`, terr.Expected)
	assert.Equal(t, "0", terr.Observed)
	assert.Equal(t, 150*time.Millisecond, terr.Timeout)
	assert.False(t, terr.Terminal())
	assert.Contains(t, terr.Error(), "timed out")
}

func TestAwait_EvaluatesAtDeadline(t *testing.T) {
	// The interval is far longer than the timeout, so only the immediate
	// check and the final check at the deadline ever run.
	e := await.New(await.Policy{Default: time.Second, Extended: time.Second, Interval: 10 * time.Second})
	start := time.Now()
	obs := func(context.Context) (bool, error) {
		return time.Since(start) >= 100*time.Millisecond, nil
	}

	err := await.Await(context.Background(), e, "late flag", obs, await.Condition[bool]{Describe: "true", Match: isTrue}, 300*time.Millisecond)
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestAwait_Monotonic(t *testing.T) {
	// If the predicate holds by some deadline it holds for every longer one.
	e := await.New(await.Policy{Default: time.Second, Extended: time.Second, Interval: 70 * time.Millisecond})
	for _, timeout := range []time.Duration{120, 150, 200, 260} {
		timeout := timeout * time.Millisecond
		t.Run(timeout.String(), func(t *testing.T) {
			start := time.Now()
			obs := func(context.Context) (bool, error) {
				return time.Since(start) >= 100*time.Millisecond, nil
			}
			err := await.Await(context.Background(), e, "flag", obs, await.Condition[bool]{Describe: "true", Match: isTrue}, timeout)
			assert.NoError(t, err)
		})
	}
}

func TestAwait_TransientErrorsRetry(t *testing.T) {
	e := await.New(fastPolicy())
	calls := 0
	obs := func(context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", locator.ErrAbsent
		}
		return "ready", nil
	}
	err := await.Await(context.Background(), e, "status", obs, await.Condition[string]{
		Describe: "ready",
		Match:    func(s string) bool { return s == "ready" },
	}, time.Second)
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestAwait_AbsentUntilDeadline(t *testing.T) {
	e := await.New(fastPolicy())
	obs := func(context.Context) (string, error) { return "", locator.ErrAbsent }

	err := await.Await(context.Background(), e, "missing", obs, await.Condition[string]{
		Describe: "anything",
		Match:    func(string) bool { return true },
	}, 80*time.Millisecond)

	var terr *await.TimeoutError
	require.True(t, errors.As(err, &terr))
	assert.Empty(t, terr.Observed)
	assert.ErrorIs(t, err, locator.ErrAbsent)
	assert.Contains(t, terr.Error(), "observed nothing")
}

func TestAwait_AmbiguousIsTerminal(t *testing.T) {
	e := await.New(fastPolicy())
	obs := func(context.Context) (bool, error) {
		return false, errors.Join(locator.ErrAmbiguous, errors.New("2 nodes"))
	}

	start := time.Now()
	err := await.Await(context.Background(), e, "modal", obs, await.Condition[bool]{Describe: "visible", Match: isTrue}, 5*time.Second)

	var terr *await.TimeoutError
	require.True(t, errors.As(err, &terr))
	assert.True(t, terr.Terminal())
	assert.ErrorIs(t, err, locator.ErrAmbiguous)
	assert.Less(t, time.Since(start), time.Second)
	assert.Contains(t, terr.Error(), "failed")
}

func TestAwait_ContextCancelled(t *testing.T) {
	e := await.New(fastPolicy())
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	obs := func(context.Context) (bool, error) { return false, nil }
	err := await.Await(ctx, e, "never", obs, await.Condition[bool]{Describe: "true", Match: isTrue}, 5*time.Second)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAwait_NoPooledBudget(t *testing.T) {
	e := await.New(fastPolicy())
	never := func(context.Context) (bool, error) { return false, nil }

	err := await.Await(context.Background(), e, "first", never, await.Condition[bool]{Describe: "true", Match: isTrue}, 200*time.Millisecond)
	require.Error(t, err)

	// The second assertion gets its full budget, regardless of how long the
	// first one took.
	start := time.Now()
	later := func(context.Context) (bool, error) {
		return time.Since(start) >= 150*time.Millisecond, nil
	}
	err = await.Await(context.Background(), e, "second", later, await.Condition[bool]{Describe: "true", Match: isTrue}, 300*time.Millisecond)
	assert.NoError(t, err)
}

func TestExpectation_Tiers(t *testing.T) {
	e := await.New(fastPolicy())
	loc := locator.On(testutil.NewDOM(), locator.ByTestID("title"))

	assert.Equal(t, 300*time.Millisecond, e.Expect(loc).Timeout())
	assert.Equal(t, time.Second, e.Expect(loc).Eventually().Timeout())
	assert.Equal(t, 42*time.Millisecond, e.Expect(loc).Within(42*time.Millisecond).Timeout())

	base := e.Expect(loc)
	_ = base.Eventually()
	assert.Equal(t, 300*time.Millisecond, base.Timeout())
}

func TestExpectation_Text(t *testing.T) {
	ctx := context.Background()
	dom := testutil.NewDOM()
	e := await.New(fastPolicy())
	fp := locator.On(dom, locator.ByTestID("players").Child(0).TestID("fate-points"))
	dom.Set(fp.Query(), testutil.Shown("0"))

	require.NoError(t, e.Expect(fp).ToHaveText(ctx, "0"))

	dom.After(50*time.Millisecond, func(d *testutil.DOM) { d.SetText(fp.Query(), " 1\n") })
	require.NoError(t, e.Expect(fp).Eventually().ToHaveText(ctx, "1"))

	err := e.Expect(fp).Within(60*time.Millisecond).ToHaveText(ctx, "2")
	var terr *await.TimeoutError
	require.True(t, errors.As(err, &terr))
	assert.Equal(t, "1", terr.Observed)
	assert.Equal(t, fp.Query().String(), terr.Subject)

	title := locator.On(dom, locator.ByTestID("title"))
	dom.Set(title.Query(), testutil.Shown("MT @ Test Session"))
	require.NoError(t, e.Expect(title).ToMatchText(ctx, regexp.MustCompile(`^[A-Z]{2} @ Test Session$`)))
}

func TestExpectation_VisibilityAndEnablement(t *testing.T) {
	ctx := context.Background()
	dom := testutil.NewDOM()
	e := await.New(fastPolicy())
	modal := locator.On(dom, locator.ByTestID("modal"))
	spend := locator.On(dom, locator.ByTestID("spend-fate-point"))

	require.NoError(t, e.Expect(modal).ToBeHidden(ctx))

	dom.After(30*time.Millisecond, func(d *testutil.DOM) { d.Set(modal.Query(), testutil.Shown("")) })
	require.NoError(t, e.Expect(modal).ToBeVisible(ctx))

	dom.Set(spend.Query(), testutil.Disabled("Spend"))
	require.NoError(t, e.Expect(spend).ToBeDisabled(ctx))

	dom.After(30*time.Millisecond, func(d *testutil.DOM) { d.SetEnabled(spend.Query(), true) })
	require.NoError(t, e.Expect(spend).ToBeEnabled(ctx))
}

func TestExpectation_TwoModalsFailFast(t *testing.T) {
	dom := testutil.NewDOM()
	e := await.New(fastPolicy())
	modal := locator.On(dom, locator.ByTestID("modal"))
	dom.Set(modal.Query(), testutil.Shown(""), testutil.Shown(""))

	start := time.Now()
	err := e.Expect(modal).Within(5 * time.Second).ToBeVisible(context.Background())
	assert.ErrorIs(t, err, locator.ErrAmbiguous)
	assert.Less(t, time.Since(start), time.Second)
}

func TestExpectation_Count(t *testing.T) {
	dom := testutil.NewDOM()
	e := await.New(fastPolicy())
	rows := locator.On(dom, locator.ByTestID("aspects").Child(0))

	require.NoError(t, e.Expect(rows).ToHaveCount(context.Background(), 0))
	dom.After(20*time.Millisecond, func(d *testutil.DOM) { d.Set(rows.Query(), testutil.Shown("Foggy")) })
	require.NoError(t, e.Expect(rows).ToHaveCount(context.Background(), 1))
}

func TestExpectPage_Title(t *testing.T) {
	surface := testutil.NewSurface("http://localhost:8080")
	e := await.New(fastPolicy())

	surface.SetTitle("Fate Table")
	require.NoError(t, e.ExpectPage(surface).ToHaveTitle(context.Background(), "Fate Table"))

	err := e.ExpectPage(surface).Within(50*time.Millisecond).ToHaveTitle(context.Background(), "Other")
	var terr *await.TimeoutError
	require.True(t, errors.As(err, &terr))
	assert.Equal(t, "document title", terr.Subject)
	assert.Equal(t, "Fate Table", terr.Observed)
}

func TestNormalizeText(t *testing.T) {
	assert.Equal(t, "a b", await.NormalizeText("  a\n\t b "))
	assert.Equal(t, "\u00e9", await.NormalizeText("e\u0301"))
	assert.Equal(t, "", await.NormalizeText(" \n "))
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewPedanticRegistry()
	e := await.New(fastPolicy(), await.WithMetrics(await.NewMetrics(reg)))
	ctx := context.Background()

	ok := func(context.Context) (bool, error) { return true, nil }
	never := func(context.Context) (bool, error) { return false, nil }
	cond := await.Condition[bool]{Describe: "true", Match: isTrue}

	require.NoError(t, await.Await(ctx, e, "ok", ok, cond, time.Second))
	require.Error(t, await.Await(ctx, e, "never", never, cond, 50*time.Millisecond))

	n, err := promtest.GatherAndCount(reg, "crosscheck_await_seconds")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	polls, err := promtest.GatherAndCount(reg, "crosscheck_await_polls_total")
	require.NoError(t, err)
	assert.Equal(t, 1, polls)
}
