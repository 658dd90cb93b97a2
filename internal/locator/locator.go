package locator

import (
	"context"
	"errors"
	"fmt"
)

// Element is the live side of a Query: whatever the driver currently matches.
// Implementations re-evaluate the selector on every call.
type Element interface {
	// Count returns the number of matching nodes without waiting.
	Count() (int, error)

	// Text returns the text content of the single matching node.
	Text() (string, error)

	// Visible reports whether the single matching node is visible.
	Visible() (bool, error)

	// Enabled reports whether the single matching node is enabled.
	Enabled() (bool, error)

	// Click waits (up to the driver's action timeout) for the node to be
	// actionable and clicks it. Returns ErrTimeout on timeout.
	Click() error

	// Fill waits (up to the driver's action timeout) for the node and sets
	// its value. Returns ErrTimeout on timeout.
	Fill(value string) error
}

// Root is a browsing surface that can resolve queries.
type Root interface {
	Resolve(q Query) Element
}

// Locator is a Query bound to a Root.
type Locator struct {
	root  Root
	query Query
}

// On binds q to root.
func On(root Root, q Query) Locator {
	return Locator{root: root, query: q}
}

// Query returns the underlying description.
func (l Locator) Query() Query {
	return l.query
}

// Root returns the surface this locator resolves against.
func (l Locator) Root() Root {
	return l.root
}

// String implements fmt.Stringer.
func (l Locator) String() string {
	return l.query.String()
}

// TestID returns a locator for descendants carrying the test id.
func (l Locator) TestID(key string) Locator {
	return Locator{root: l.root, query: l.query.TestID(key)}
}

// Input returns a locator for input descendants carrying the test id.
func (l Locator) Input(key string) Locator {
	return Locator{root: l.root, query: l.query.Input(key)}
}

// Child returns a locator for the i-th direct child.
func (l Locator) Child(i int) Locator {
	return Locator{root: l.root, query: l.query.Child(i)}
}

// Role returns a locator for descendants with the accessible role and name.
func (l Locator) Role(role, name string) Locator {
	return Locator{root: l.root, query: l.query.Role(role, name)}
}

func (l Locator) resolve() Element {
	return l.root.Resolve(l.query)
}

// single resolves the query and checks that exactly one node matches.
func (l Locator) single() (Element, error) {
	el := l.resolve()
	n, err := el.Count()
	if err != nil {
		return nil, fmt.Errorf("count %s: %w", l.query, err)
	}
	switch {
	case n == 0:
		return nil, ErrAbsent
	case n > 1:
		return nil, fmt.Errorf("%w: %d nodes match %s", ErrAmbiguous, n, l.query)
	}
	return el, nil
}

// Count returns the number of nodes currently matching.
func (l Locator) Count() (int, error) {
	return l.resolve().Count()
}

// Text returns the text content of the single matching node.
func (l Locator) Text() (string, error) {
	el, err := l.single()
	if err != nil {
		return "", err
	}
	return el.Text()
}

// Visible reports whether the single matching node is visible.
// An absent element is not visible; that is not an error.
func (l Locator) Visible() (bool, error) {
	el, err := l.single()
	if errors.Is(err, ErrAbsent) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return el.Visible()
}

// Enabled reports whether the single matching node is enabled.
func (l Locator) Enabled() (bool, error) {
	el, err := l.single()
	if err != nil {
		return false, err
	}
	return el.Enabled()
}

// Click clicks the element, waiting up to the driver's action timeout.
func (l Locator) Click(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := l.resolve().Click(); err != nil {
		return l.actionError("click", err)
	}
	return nil
}

// Fill sets the element's value, waiting up to the driver's action timeout.
func (l Locator) Fill(ctx context.Context, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := l.resolve().Fill(value); err != nil {
		return l.actionError("fill", err)
	}
	return nil
}

func (l Locator) actionError(action string, err error) error {
	if errors.Is(err, ErrTimeout) {
		return &NotFoundError{Query: l.query, Action: action, Err: err}
	}
	return fmt.Errorf("%s %s: %w", action, l.query, err)
}
