// Package scene holds the page objects of the table application: one type per
// screen (Home, GameMaster, Player), repeatable components scoped under a
// parent locator (PlayerCard, AspectCard) and the modal overlays.
//
// Every accessor builds a fresh locator.Locator from the scene's Page; nothing
// is cached, so a scene stays usable across reloads and re-renders.
package scene

import (
	"context"
	"fmt"

	"github.com/roach88/crosscheck/internal/locator"
)

// SkillLevels is the number of skill-check buttons rendered on every scene.
const SkillLevels = 5

// Page is the browsing surface a scene operates within.
type Page interface {
	locator.Root
	Goto(ctx context.Context, path string) error
	Reload(ctx context.Context) error
	URL() string
	Title() (string, error)
}

// Scene is a named, addressable screen of the application.
type Scene struct {
	page Page
	path string
}

// New creates a scene bound to page. path may be empty for scenes that are
// only ever reached by in-app navigation.
func New(page Page, path string) Scene {
	return Scene{page: page, path: path}
}

// Page returns the surface the scene is bound to.
func (s Scene) Page() Page {
	return s.page
}

// Path returns the navigation target, or "".
func (s Scene) Path() string {
	return s.path
}

// Visit navigates to the scene's path.
func (s Scene) Visit(ctx context.Context) error {
	if s.path == "" {
		return &UsageError{Op: "visit", Reason: "scene has no navigation path"}
	}
	if err := s.page.Goto(ctx, s.path); err != nil {
		return fmt.Errorf("visit %s: %w", s.path, err)
	}
	return nil
}

// Reload reloads whatever the page currently shows.
func (s Scene) Reload(ctx context.Context) error {
	if err := s.page.Reload(ctx); err != nil {
		return fmt.Errorf("reload: %w", err)
	}
	return nil
}

// Locate binds q to the scene's page.
func (s Scene) Locate(q locator.Query) locator.Locator {
	return locator.On(s.page, q)
}

// Title is the scene heading.
func (s Scene) Title() locator.Locator {
	return s.Locate(locator.ByTestID("title"))
}

// SkillCheckButton is the roll button for level 0..SkillLevels-1.
func (s Scene) SkillCheckButton(level int) locator.Locator {
	return s.Locate(locator.ByTestIDf("skill-check-%d-btn", level))
}

// SkillCheckResult is the shared result region of the skill check.
func (s Scene) SkillCheckResult() locator.Locator {
	return s.Locate(locator.ByTestID("skill-check-result"))
}

// DocumentTitle returns the browser document title.
func (s Scene) DocumentTitle() (string, error) {
	return s.page.Title()
}

// UsageError reports a scene operation attempted against a precondition the
// scenario should have established first.
type UsageError struct {
	Op     string
	Reason string
}

// Error implements the error interface.
func (e *UsageError) Error() string {
	return fmt.Sprintf("usage error: %s: %s", e.Op, e.Reason)
}
