// Package driver adapts playwright-go to the narrow surfaces the rest of the
// harness works against. It is the only package that imports playwright.
//
// One Browser process is shared by a run; every Open call creates a fresh
// browser context (own cookies, storage and websocket connections) with a
// single page, so actors never share state.
package driver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/roach88/crosscheck/internal/locator"
)

// Browser engines understood by Launch.
const (
	Chromium = "chromium"
	Firefox  = "firefox"
	WebKit   = "webkit"
)

// Options configures Launch.
type Options struct {
	// Engine is one of Chromium, Firefox or WebKit. Empty means Chromium.
	Engine string

	Headless bool

	// BaseURL is the application root every page resolves paths against.
	BaseURL string

	// ActionTimeout bounds a single click or fill.
	ActionTimeout time.Duration

	// ReadTimeout bounds a single state read (text, enabled).
	ReadTimeout time.Duration

	// NavigationTimeout bounds goto and reload. Zero uses playwright's default.
	NavigationTimeout time.Duration

	Logger *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.Engine == "" {
		o.Engine = Chromium
	}
	if o.ActionTimeout <= 0 {
		o.ActionTimeout = 5 * time.Second
	}
	if o.ReadTimeout <= 0 {
		o.ReadTimeout = 250 * time.Millisecond
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.DiscardHandler)
	}
	return o
}

// Browser is a launched browser process.
type Browser struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	opts    Options

	closeOnce sync.Once
	closeErr  error
}

// Launch starts playwright and the configured browser engine.
func Launch(opts Options) (*Browser, error) {
	opts = opts.withDefaults()

	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("start playwright: %w", err)
	}

	var bt playwright.BrowserType
	switch opts.Engine {
	case Chromium:
		bt = pw.Chromium
	case Firefox:
		bt = pw.Firefox
	case WebKit:
		bt = pw.WebKit
	default:
		_ = pw.Stop()
		return nil, fmt.Errorf("unknown browser engine %q", opts.Engine)
	}

	browser, err := bt.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(opts.Headless),
	})
	if err != nil {
		_ = pw.Stop()
		return nil, fmt.Errorf("launch %s: %w", opts.Engine, err)
	}

	return &Browser{pw: pw, browser: browser, opts: opts}, nil
}

// Open creates an isolated browser context with one page for actor name.
func (b *Browser) Open(ctx context.Context, name string) (*Surface, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	bctx, err := b.browser.NewContext(playwright.BrowserNewContextOptions{
		BaseURL: playwright.String(b.opts.BaseURL),
	})
	if err != nil {
		return nil, fmt.Errorf("new context for %s: %w", name, err)
	}
	bctx.SetDefaultTimeout(ms(b.opts.ActionTimeout))
	if b.opts.NavigationTimeout > 0 {
		bctx.SetDefaultNavigationTimeout(ms(b.opts.NavigationTimeout))
	}

	page, err := bctx.NewPage()
	if err != nil {
		_ = bctx.Close()
		return nil, fmt.Errorf("new page for %s: %w", name, err)
	}

	log := b.opts.Logger.With("actor", name)
	page.OnConsole(func(msg playwright.ConsoleMessage) {
		logConsole(log, msg.Type(), msg.Text())
	})
	page.OnPageError(func(err error) {
		log.Warn("page error", "error", err)
	})

	return &Surface{name: name, ctx: bctx, page: page, opts: b.opts}, nil
}

// logConsole forwards a page console message. Errors log at warn, everything
// else at info.
func logConsole(log *slog.Logger, kind, text string) {
	level := slog.LevelInfo
	if kind == "error" {
		level = slog.LevelWarn
	}
	log.Log(context.Background(), level, "console", "type", kind, "text", text)
}

// Close shuts the browser and the playwright driver down. Safe to call more
// than once.
func (b *Browser) Close() error {
	b.closeOnce.Do(func() {
		var errs []error
		if err := b.browser.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close browser: %w", err))
		}
		if err := b.pw.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("stop playwright: %w", err))
		}
		b.closeErr = errors.Join(errs...)
	})
	return b.closeErr
}

// Surface is one actor's page inside its own browser context.
type Surface struct {
	name string
	ctx  playwright.BrowserContext
	page playwright.Page
	opts Options
}

// Name returns the actor name the surface was opened for.
func (s *Surface) Name() string {
	return s.name
}

// Resolve implements locator.Root.
func (s *Surface) Resolve(q locator.Query) locator.Element {
	return &element{loc: s.page.Locator(q.Selector()), opts: s.opts}
}

// Goto navigates to path relative to the base URL.
func (s *Surface) Goto(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := s.page.Goto(path); err != nil {
		return mapErr(err)
	}
	return nil
}

// Reload reloads the current page.
func (s *Surface) Reload(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := s.page.Reload(); err != nil {
		return mapErr(err)
	}
	return nil
}

// URL returns the page URL.
func (s *Surface) URL() string {
	return s.page.URL()
}

// Title returns the document title.
func (s *Surface) Title() (string, error) {
	return s.page.Title()
}

// Screenshot writes a full-page PNG to path.
func (s *Surface) Screenshot(path string) error {
	_, err := s.page.Screenshot(playwright.PageScreenshotOptions{
		Path:     playwright.String(path),
		FullPage: playwright.Bool(true),
	})
	return err
}

// Close closes the browser context and with it the page.
func (s *Surface) Close() error {
	return s.ctx.Close()
}

type element struct {
	loc  playwright.Locator
	opts Options
}

func (e *element) Count() (int, error) {
	n, err := e.loc.Count()
	return n, mapErr(err)
}

func (e *element) Text() (string, error) {
	text, err := e.loc.TextContent(playwright.LocatorTextContentOptions{
		Timeout: playwright.Float(ms(e.opts.ReadTimeout)),
	})
	return text, mapErr(err)
}

func (e *element) Visible() (bool, error) {
	visible, err := e.loc.IsVisible()
	return visible, mapErr(err)
}

func (e *element) Enabled() (bool, error) {
	enabled, err := e.loc.IsEnabled(playwright.LocatorIsEnabledOptions{
		Timeout: playwright.Float(ms(e.opts.ReadTimeout)),
	})
	return enabled, mapErr(err)
}

func (e *element) Click() error {
	return mapErr(e.loc.Click(playwright.LocatorClickOptions{
		Timeout: playwright.Float(ms(e.opts.ActionTimeout)),
	}))
}

func (e *element) Fill(value string) error {
	return mapErr(e.loc.Fill(value, playwright.LocatorFillOptions{
		Timeout: playwright.Float(ms(e.opts.ActionTimeout)),
	}))
}

// mapErr translates playwright's failure modes into the locator package's
// sentinels so callers never import playwright.
func mapErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, playwright.ErrTimeout):
		return fmt.Errorf("%w: %v", locator.ErrTimeout, err)
	case strings.Contains(err.Error(), "strict mode violation"):
		return fmt.Errorf("%w: %v", locator.ErrAmbiguous, err)
	}
	return err
}

func ms(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
