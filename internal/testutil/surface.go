package testutil

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
)

// Surface is a fake browsing surface for one actor.
// It embeds a DOM for element resolution and tracks navigation, screenshots
// and closes.
type Surface struct {
	*DOM

	mu          sync.Mutex
	base        string
	url         string
	title       string
	visits      []string
	reloads     int
	onGoto      map[string]func(*Surface)
	onReload    func(*Surface)
	screenshots []string
	closes      int
	events      []string

	// ScreenshotErr, when set, makes Screenshot fail without writing.
	ScreenshotErr error

	// CloseErr, when set, is returned by Close.
	CloseErr error
}

// NewSurface creates a surface with an empty DOM at about:blank.
func NewSurface(base string) *Surface {
	return &Surface{
		DOM:    NewDOM(),
		base:   strings.TrimSuffix(base, "/"),
		url:    "about:blank",
		onGoto: make(map[string]func(*Surface)),
	}
}

// OnGoto registers a hook that runs after navigating to path.
func (s *Surface) OnGoto(path string, fn func(*Surface)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onGoto[path] = fn
}

// OnReload registers a hook that runs after every reload.
func (s *Surface) OnReload(fn func(*Surface)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onReload = fn
}

// Navigate sets the current URL as a client-side route change would.
func (s *Surface) Navigate(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.url = s.base + path
}

// SetTitle sets the document title.
func (s *Surface) SetTitle(title string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.title = title
}

// Goto navigates to base+path and runs the matching hook.
func (s *Surface) Goto(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	s.url = s.base + path
	s.visits = append(s.visits, path)
	hook := s.onGoto[path]
	s.mu.Unlock()
	if hook != nil {
		hook(s)
	}
	return nil
}

// Reload counts the reload and runs the reload hook.
func (s *Surface) Reload(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	s.reloads++
	hook := s.onReload
	s.mu.Unlock()
	if hook != nil {
		hook(s)
	}
	return nil
}

// URL returns the current URL.
func (s *Surface) URL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.url
}

// Title returns the document title.
func (s *Surface) Title() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.title, nil
}

// Screenshot writes a placeholder image to path.
func (s *Surface) Screenshot(path string) error {
	s.record("screenshot")
	if s.ScreenshotErr != nil {
		return s.ScreenshotErr
	}
	if err := os.WriteFile(path, []byte("\x89PNG fake"), 0o644); err != nil {
		return err
	}
	s.mu.Lock()
	s.screenshots = append(s.screenshots, path)
	s.mu.Unlock()
	return nil
}

// Close counts the close.
func (s *Surface) Close() error {
	s.record("close")
	s.mu.Lock()
	s.closes++
	s.mu.Unlock()
	return s.CloseErr
}

func (s *Surface) record(event string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

// Events returns screenshot and close calls in call order.
func (s *Surface) Events() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.events...)
}

// Visits returns every path passed to Goto.
func (s *Surface) Visits() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.visits...)
}

// Reloads returns how often Reload was called.
func (s *Surface) Reloads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reloads
}

// Screenshots returns the paths written by Screenshot.
func (s *Surface) Screenshots() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.screenshots...)
}

// Closes returns how often Close was called.
func (s *Surface) Closes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closes
}

// Opener hands out one fresh Surface per Open call.
// Surfaces can be prepared ahead of time with Prepare.
type Opener struct {
	mu       sync.Mutex
	base     string
	prepared map[string]*Surface
	opened   map[string]*Surface
	order    []string
	fail     map[string]error
}

// NewOpener creates an opener whose surfaces share base.
func NewOpener(base string) *Opener {
	return &Opener{
		base:     base,
		prepared: make(map[string]*Surface),
		opened:   make(map[string]*Surface),
		fail:     make(map[string]error),
	}
}

// Prepare returns the surface that the next Open(name) will hand out.
func (o *Opener) Prepare(name string) *Surface {
	o.mu.Lock()
	defer o.mu.Unlock()
	s, ok := o.prepared[name]
	if !ok {
		s = NewSurface(o.base)
		o.prepared[name] = s
	}
	return s
}

// Fail makes Open(name) return err.
func (o *Opener) Fail(name string, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.fail[name] = err
}

// Open returns the prepared surface for name, or a new one.
func (o *Opener) Open(ctx context.Context, name string) (*Surface, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if err := o.fail[name]; err != nil {
		return nil, err
	}
	if _, dup := o.opened[name]; dup {
		return nil, fmt.Errorf("surface %q already opened", name)
	}
	s, ok := o.prepared[name]
	if !ok {
		s = NewSurface(o.base)
	}
	delete(o.prepared, name)
	o.opened[name] = s
	o.order = append(o.order, name)
	return s, nil
}

// Opened returns the surface handed out for name, or nil.
func (o *Opener) Opened(name string) *Surface {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.opened[name]
}

// Order returns actor names in the order they were opened.
func (o *Opener) Order() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.order...)
}
