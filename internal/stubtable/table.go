// Package stubtable is an in-memory stand-in for the Fate table application.
// It serves a single page rendering the same test ids as the real app and
// pushes session state to every open page over a websocket, so the browser
// harness can be exercised without the real backend.
package stubtable

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// GameMasterPrefix is prepended to the session title on the game master's
// scene.
const GameMasterPrefix = "GM"

// Domain errors. Handlers map them to HTTP status codes.
var (
	ErrSessionNotFound = errors.New("session not found")
	ErrPlayerNotFound  = errors.New("player not found")
	ErrAspectNotFound  = errors.New("aspect not found")
	ErrInvalid         = errors.New("invalid request")
	ErrNoFatePoints    = errors.New("no fate points left")
)

// Session is the shared state of one game.
type Session struct {
	ID string `json:"id"`

	// Version increases with every mutation; pages ignore stale pushes.
	Version int      `json:"version"`
	Title   string   `json:"title"`
	Players []Player `json:"players"`
	Aspects []Aspect `json:"aspects"`
}

// Player is one joined player.
type Player struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	FatePoints int    `json:"fate_points"`
}

// Aspect is one situation aspect published by the game master.
type Aspect struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Table holds every session. Safe for concurrent use.
type Table struct {
	mu       sync.Mutex
	sessions map[string]*Session
	newID    func() string

	// onChange receives a copy of a session after every mutation.
	onChange func(Session)
}

// NewTable creates an empty table. onChange may be nil.
func NewTable(onChange func(Session)) *Table {
	return &Table{
		sessions: make(map[string]*Session),
		newID:    uuid.NewString,
		onChange: onChange,
	}
}

// CreateSession starts a new session.
func (t *Table) CreateSession(title string) (Session, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return Session{}, fmt.Errorf("%w: title is required", ErrInvalid)
	}

	t.mu.Lock()
	s := &Session{ID: t.newID(), Title: title, Players: []Player{}, Aspects: []Aspect{}}
	t.sessions[s.ID] = s
	snap := s.clone()
	t.mu.Unlock()

	t.changed(snap)
	return snap, nil
}

// Get returns a copy of a session.
func (t *Table) Get(id string) (Session, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.sessions[id]
	if !ok {
		return Session{}, fmt.Errorf("session %s: %w", id, ErrSessionNotFound)
	}
	return s.clone(), nil
}

// Join adds a player with zero fate points.
func (t *Table) Join(sessionID, name string) (Player, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Player{}, fmt.Errorf("%w: player name is required", ErrInvalid)
	}

	var p Player
	err := t.update(sessionID, func(s *Session) error {
		p = Player{ID: t.newID(), Name: name}
		s.Players = append(s.Players, p)
		return nil
	})
	return p, err
}

// AdjustFatePoints adds delta to a player's fate points. The result never
// drops below zero.
func (t *Table) AdjustFatePoints(sessionID, playerID string, delta int) (Player, error) {
	var p Player
	err := t.update(sessionID, func(s *Session) error {
		for i := range s.Players {
			if s.Players[i].ID != playerID {
				continue
			}
			if s.Players[i].FatePoints+delta < 0 {
				return fmt.Errorf("player %s: %w", playerID, ErrNoFatePoints)
			}
			s.Players[i].FatePoints += delta
			p = s.Players[i]
			return nil
		}
		return fmt.Errorf("player %s: %w", playerID, ErrPlayerNotFound)
	})
	return p, err
}

// AddAspect publishes an aspect to every player.
func (t *Table) AddAspect(sessionID, name string) (Aspect, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Aspect{}, fmt.Errorf("%w: aspect name is required", ErrInvalid)
	}

	var a Aspect
	err := t.update(sessionID, func(s *Session) error {
		a = Aspect{ID: t.newID(), Name: name}
		s.Aspects = append(s.Aspects, a)
		return nil
	})
	return a, err
}

// RemoveAspect withdraws an aspect.
func (t *Table) RemoveAspect(sessionID, aspectID string) error {
	return t.update(sessionID, func(s *Session) error {
		for i := range s.Aspects {
			if s.Aspects[i].ID == aspectID {
				s.Aspects = append(s.Aspects[:i], s.Aspects[i+1:]...)
				return nil
			}
		}
		return fmt.Errorf("aspect %s: %w", aspectID, ErrAspectNotFound)
	})
}

func (t *Table) update(sessionID string, fn func(s *Session) error) error {
	t.mu.Lock()
	s, ok := t.sessions[sessionID]
	if !ok {
		t.mu.Unlock()
		return fmt.Errorf("session %s: %w", sessionID, ErrSessionNotFound)
	}
	if err := fn(s); err != nil {
		t.mu.Unlock()
		return err
	}
	s.Version++
	snap := s.clone()
	t.mu.Unlock()

	t.changed(snap)
	return nil
}

func (t *Table) changed(s Session) {
	if t.onChange != nil {
		t.onChange(s)
	}
}

func (s *Session) clone() Session {
	c := *s
	c.Players = append([]Player{}, s.Players...)
	c.Aspects = append([]Aspect{}, s.Aspects...)
	return c
}
