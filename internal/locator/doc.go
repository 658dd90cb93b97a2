// Package locator describes page elements by semantic test ids.
//
// A Query is a pure description of one or more elements: an ordered list of
// segments (test id, input with test id, positional child, accessible role).
// It renders to a single Playwright selector and never touches a page.
//
// A Locator binds a Query to a Root, the browsing surface of one actor.
// Locators are lazy: every read or action resolves the Query again, so a
// Locator built before a reload or re-render stays valid afterwards.
//
// # Test id convention
//
// Elements are addressed through the data-testid attribute only:
//
//	locator.ByTestID("players").Child(0).TestID("fate-points")
//
// renders as
//
//	[data-testid="players"] > div:nth-child(1) [data-testid="fate-points"]
//
// Positional children are the one structural selector the package emits and
// only for indexed collections under a named container.
//
// # Errors
//
// Building or resolving a Query never fails. Reading or acting on an element
// that is not there fails at the point of use:
//
//   - ErrAbsent: a single-element read found no match
//   - ErrAmbiguous: a single-element read found more than one match
//   - *NotFoundError: a click or fill timed out waiting for the element
package locator
