package await

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/crosscheck/internal/locator"
)

// Expectation is a pending assertion on one locator.
type Expectation struct {
	engine  *Engine
	loc     locator.Locator
	timeout time.Duration
}

// Expect starts an assertion on loc under the Default timeout.
func (e *Engine) Expect(loc locator.Locator) Expectation {
	return Expectation{engine: e, loc: loc, timeout: e.policy.Default}
}

// Eventually switches to the Extended timeout, for state that crosses
// sessions.
func (x Expectation) Eventually() Expectation {
	x.timeout = x.engine.policy.Extended
	return x
}

// Within sets an explicit timeout.
func (x Expectation) Within(d time.Duration) Expectation {
	x.timeout = d
	return x
}

// Timeout returns the wait this expectation will use.
func (x Expectation) Timeout() time.Duration {
	return x.timeout
}

func (x Expectation) subject() string {
	return x.loc.Query().String()
}

func (x Expectation) text() Observable[string] {
	return func(context.Context) (string, error) {
		s, err := x.loc.Text()
		return NormalizeText(s), err
	}
}

func (x Expectation) visible() Observable[bool] {
	return func(context.Context) (bool, error) {
		return x.loc.Visible()
	}
}

func (x Expectation) enabled() Observable[bool] {
	return func(context.Context) (bool, error) {
		return x.loc.Enabled()
	}
}

// ToHaveText waits for the element's normalized text to equal want.
func (x Expectation) ToHaveText(ctx context.Context, want string) error {
	want = NormalizeText(want)
	return Await(ctx, x.engine, x.subject(), x.text(), Condition[string]{
		Describe: fmt.Sprintf("text %q", want),
		Match:    func(got string) bool { return got == want },
	}, x.timeout)
}

// ToMatchText waits for the element's normalized text to match re.
func (x Expectation) ToMatchText(ctx context.Context, re *regexp.Regexp) error {
	return Await(ctx, x.engine, x.subject(), x.text(), Condition[string]{
		Describe: fmt.Sprintf("text matching /%s/", re),
		Match:    re.MatchString,
	}, x.timeout)
}

// ToBeVisible waits for exactly one visible match.
func (x Expectation) ToBeVisible(ctx context.Context) error {
	return Await(ctx, x.engine, x.subject(), x.visible(), Condition[bool]{
		Describe: "visible",
		Match:    func(v bool) bool { return v },
	}, x.timeout)
}

// ToBeHidden waits for the element to be absent or not visible.
func (x Expectation) ToBeHidden(ctx context.Context) error {
	return Await(ctx, x.engine, x.subject(), x.visible(), Condition[bool]{
		Describe: "hidden",
		Match:    func(v bool) bool { return !v },
	}, x.timeout)
}

// ToBeEnabled waits for the element to be enabled.
func (x Expectation) ToBeEnabled(ctx context.Context) error {
	return Await(ctx, x.engine, x.subject(), x.enabled(), Condition[bool]{
		Describe: "enabled",
		Match:    func(v bool) bool { return v },
	}, x.timeout)
}

// ToBeDisabled waits for the element to be disabled.
func (x Expectation) ToBeDisabled(ctx context.Context) error {
	return Await(ctx, x.engine, x.subject(), x.enabled(), Condition[bool]{
		Describe: "disabled",
		Match:    func(v bool) bool { return !v },
	}, x.timeout)
}

// ToHaveCount waits for exactly n matches.
func (x Expectation) ToHaveCount(ctx context.Context, n int) error {
	obs := func(context.Context) (int, error) { return x.loc.Count() }
	return Await(ctx, x.engine, x.subject(), obs, Condition[int]{
		Describe: fmt.Sprintf("count %d", n),
		Match:    func(got int) bool { return got == n },
	}, x.timeout)
}

// Titled is anything with a document title.
type Titled interface {
	Title() (string, error)
}

// PageExpectation is a pending assertion on a whole page.
type PageExpectation struct {
	engine  *Engine
	page    Titled
	timeout time.Duration
}

// ExpectPage starts an assertion on page under the Default timeout.
func (e *Engine) ExpectPage(page Titled) PageExpectation {
	return PageExpectation{engine: e, page: page, timeout: e.policy.Default}
}

// Eventually switches to the Extended timeout.
func (x PageExpectation) Eventually() PageExpectation {
	x.timeout = x.engine.policy.Extended
	return x
}

// Within sets an explicit timeout.
func (x PageExpectation) Within(d time.Duration) PageExpectation {
	x.timeout = d
	return x
}

// ToHaveTitle waits for the document title to equal want.
func (x PageExpectation) ToHaveTitle(ctx context.Context, want string) error {
	want = NormalizeText(want)
	obs := func(context.Context) (string, error) {
		s, err := x.page.Title()
		return NormalizeText(s), err
	}
	return Await(ctx, x.engine, "document title", obs, Condition[string]{
		Describe: fmt.Sprintf("title %q", want),
		Match:    func(got string) bool { return got == want },
	}, x.timeout)
}

// NormalizeText composes Unicode to NFC, trims and collapses runs of
// whitespace to a single space.
func NormalizeText(s string) string {
	return strings.Join(strings.Fields(norm.NFC.String(s)), " ")
}
