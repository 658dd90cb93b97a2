package actor

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// Cast is the set of sessions taking part in one scenario.
type Cast struct {
	sessions map[string]*Session
	order    []string
}

// OpenError is returned by OpenCast when a session fails to open. Closed
// holds the reports of the sessions that did open and were closed again.
type OpenError struct {
	Err    error
	Closed []CloseReport
}

func (e *OpenError) Error() string {
	return e.Err.Error()
}

func (e *OpenError) Unwrap() error {
	return e.Err
}

// OpenCast opens one session per name, concurrently. Names must be unique and
// valid. If any open fails, every session that did open is closed again and
// an *OpenError carrying the first error is returned.
func OpenCast(ctx context.Context, opener Opener, names []string, opts Options) (*Cast, error) {
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		if !ValidName(name) {
			return nil, fmt.Errorf("invalid actor name %q", name)
		}
		if seen[name] {
			return nil, fmt.Errorf("duplicate actor %q", name)
		}
		seen[name] = true
	}

	sessions := make([]*Session, len(names))
	g, gctx := errgroup.WithContext(ctx)
	for i, name := range names {
		g.Go(func() error {
			surface, err := opener.Open(gctx, name)
			if err != nil {
				return fmt.Errorf("open %s: %w", name, err)
			}
			sessions[i] = NewSession(name, surface, opts)
			return nil
		})
	}

	err := g.Wait()

	cast := &Cast{sessions: make(map[string]*Session, len(names))}
	for i, s := range sessions {
		if s == nil {
			continue
		}
		cast.sessions[names[i]] = s
		cast.order = append(cast.order, names[i])
	}

	if err != nil {
		closed := cast.CloseAll()
		for _, r := range closed {
			if rerr := r.Err(); rerr != nil {
				err = errors.Join(err, rerr)
			}
		}
		return nil, &OpenError{Err: err, Closed: closed}
	}
	return cast, nil
}

// Get returns the named session, or nil.
func (c *Cast) Get(name string) *Session {
	return c.sessions[name]
}

// Names returns actor names in open order.
func (c *Cast) Names() []string {
	return append([]string(nil), c.order...)
}

// CloseAll closes every session in reverse open order. Each session is closed
// exactly once no matter how often CloseAll runs.
func (c *Cast) CloseAll() []CloseReport {
	reports := make([]CloseReport, 0, len(c.order))
	for i := len(c.order) - 1; i >= 0; i-- {
		reports = append(reports, c.sessions[c.order[i]].Close())
	}
	return reports
}
