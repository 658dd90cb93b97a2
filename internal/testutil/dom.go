// Package testutil provides in-memory stand-ins for the browser side of the
// harness: a fake DOM keyed by rendered selector, a fake surface per actor
// and a fake opener that hands surfaces out by actor name.
//
// The fakes re-read their state on every call, exactly like a real driver
// re-evaluates a selector, so tests can mutate the DOM between reads to
// simulate re-renders and backend propagation.
package testutil

import (
	"fmt"
	"sync"
	"time"

	"github.com/roach88/crosscheck/internal/locator"
)

// Node is one fake element.
type Node struct {
	Text    string
	Visible bool
	Enabled bool
}

// Shown returns a visible, enabled node with the given text.
func Shown(text string) Node {
	return Node{Text: text, Visible: true, Enabled: true}
}

// Disabled returns a visible, disabled node with the given text.
func Disabled(text string) Node {
	return Node{Text: text, Visible: true}
}

// DOM is a selector-keyed element store.
// Safe for concurrent use; hooks run outside the lock.
type DOM struct {
	mu       sync.Mutex
	nodes    map[string][]Node
	fills    map[string]string
	clicks   map[string]int
	onClick  map[string]func(*DOM)
	resolves int
}

// NewDOM creates an empty DOM.
func NewDOM() *DOM {
	return &DOM{
		nodes:   make(map[string][]Node),
		fills:   make(map[string]string),
		clicks:  make(map[string]int),
		onClick: make(map[string]func(*DOM)),
	}
}

// Set replaces whatever matches q with nodes.
func (d *DOM) Set(q locator.Query, nodes ...Node) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nodes[q.Selector()] = append([]Node(nil), nodes...)
}

// SetText replaces the text of the first node matching q, creating a shown
// node if none exists.
func (d *DOM) SetText(q locator.Query, text string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	sel := q.Selector()
	if len(d.nodes[sel]) == 0 {
		d.nodes[sel] = []Node{Shown(text)}
		return
	}
	d.nodes[sel][0].Text = text
}

// SetEnabled flips the enabled state of the first node matching q.
func (d *DOM) SetEnabled(q locator.Query, enabled bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	sel := q.Selector()
	if len(d.nodes[sel]) > 0 {
		d.nodes[sel][0].Enabled = enabled
	}
}

// Remove deletes everything matching q.
func (d *DOM) Remove(q locator.Query) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.nodes, q.Selector())
}

// OnClick registers a hook run after a successful click on q.
func (d *DOM) OnClick(q locator.Query, fn func(*DOM)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onClick[q.Selector()] = fn
}

// After runs fn on the DOM after delay, in its own goroutine.
// Used to simulate propagation from another actor.
func (d *DOM) After(delay time.Duration, fn func(*DOM)) {
	time.AfterFunc(delay, func() { fn(d) })
}

// Filled returns the last value filled into q.
func (d *DOM) Filled(q locator.Query) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.fills[q.Selector()]
}

// Clicks returns how often q was clicked.
func (d *DOM) Clicks(q locator.Query) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.clicks[q.Selector()]
}

// Resolves returns how many times a query was resolved.
func (d *DOM) Resolves() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.resolves
}

// Resolve implements locator.Root.
func (d *DOM) Resolve(q locator.Query) locator.Element {
	d.mu.Lock()
	d.resolves++
	d.mu.Unlock()
	return &element{dom: d, sel: q.Selector()}
}

type element struct {
	dom *DOM
	sel string
}

func (e *element) snapshot() []Node {
	e.dom.mu.Lock()
	defer e.dom.mu.Unlock()
	return append([]Node(nil), e.dom.nodes[e.sel]...)
}

func (e *element) one() (Node, error) {
	nodes := e.snapshot()
	switch len(nodes) {
	case 0:
		return Node{}, fmt.Errorf("waiting for %s: %w", e.sel, locator.ErrTimeout)
	case 1:
		return nodes[0], nil
	default:
		return Node{}, fmt.Errorf("strict mode violation: %s resolved to %d elements", e.sel, len(nodes))
	}
}

func (e *element) Count() (int, error) {
	return len(e.snapshot()), nil
}

func (e *element) Text() (string, error) {
	n, err := e.one()
	return n.Text, err
}

func (e *element) Visible() (bool, error) {
	n, err := e.one()
	return n.Visible, err
}

func (e *element) Enabled() (bool, error) {
	n, err := e.one()
	return n.Enabled, err
}

func (e *element) Click() error {
	n, err := e.one()
	if err != nil {
		return err
	}
	if !n.Visible || !n.Enabled {
		return fmt.Errorf("%s not actionable: %w", e.sel, locator.ErrTimeout)
	}
	e.dom.mu.Lock()
	e.dom.clicks[e.sel]++
	hook := e.dom.onClick[e.sel]
	e.dom.mu.Unlock()
	if hook != nil {
		hook(e.dom)
	}
	return nil
}

func (e *element) Fill(value string) error {
	n, err := e.one()
	if err != nil {
		return err
	}
	if !n.Visible {
		return fmt.Errorf("%s not visible: %w", e.sel, locator.ErrTimeout)
	}
	e.dom.mu.Lock()
	e.dom.fills[e.sel] = value
	e.dom.mu.Unlock()
	return nil
}
