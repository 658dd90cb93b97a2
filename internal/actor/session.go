// Package actor models the independent participants of a scenario. Each
// Session owns exactly one isolated browsing surface; a Cast holds the
// sessions of one scenario and tears them down together.
package actor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sync"

	"github.com/roach88/crosscheck/internal/scene"
)

// Surface is an isolated browsing surface: its own cookies, storage and
// connections. *driver.Surface is the production implementation.
type Surface interface {
	scene.Page
	Screenshot(path string) error
	Close() error
}

// Opener creates a fresh Surface per call.
type Opener interface {
	Open(ctx context.Context, name string) (Surface, error)
}

// OpenerFunc adapts a function to Opener.
type OpenerFunc func(ctx context.Context, name string) (Surface, error)

// Open implements Opener.
func (f OpenerFunc) Open(ctx context.Context, name string) (Surface, error) {
	return f(ctx, name)
}

// OpenWith adapts an open function returning a concrete surface type.
// A failed open yields a nil interface, never a typed nil.
func OpenWith[S Surface](open func(context.Context, string) (S, error)) Opener {
	return OpenerFunc(func(ctx context.Context, name string) (Surface, error) {
		s, err := open(ctx, name)
		if err != nil {
			return nil, err
		}
		return s, nil
	})
}

var namePattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// ValidName reports whether name can label an actor. Names double as artifact
// file names.
func ValidName(name string) bool {
	return namePattern.MatchString(name)
}

// Options configures sessions.
type Options struct {
	// ResultsDir receives one <name>.png per session at close.
	ResultsDir string

	Logger *slog.Logger
}

// Session is one actor bound to one surface.
type Session struct {
	name     string
	surface  Surface
	artifact string
	log      *slog.Logger

	closeOnce sync.Once
	report    CloseReport
}

// NewSession wraps an already opened surface.
func NewSession(name string, surface Surface, opts Options) *Session {
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Session{
		name:     name,
		surface:  surface,
		artifact: filepath.Join(opts.ResultsDir, name+".png"),
		log:      log.With("actor", name),
	}
}

// Name returns the role label.
func (s *Session) Name() string {
	return s.name
}

// Surface returns the session's own browsing surface.
func (s *Session) Surface() Surface {
	return s.surface
}

// ArtifactPath returns where Close writes the screenshot.
func (s *Session) ArtifactPath() string {
	return s.artifact
}

// Home returns the entry scene bound to this session.
func (s *Session) Home() scene.Home {
	return scene.NewHome(s.surface)
}

// JoinLink returns the entry scene reached through a session's join link.
func (s *Session) JoinLink(sessionID string) scene.Home {
	return scene.NewJoinLink(s.surface, sessionID)
}

// GameMaster returns the game master scene bound to this session.
func (s *Session) GameMaster() scene.GameMaster {
	return scene.NewGameMaster(s.surface)
}

// Player returns the player scene bound to this session.
func (s *Session) Player() scene.Player {
	return scene.NewPlayer(s.surface)
}

// Modal returns the generic overlay bound to this session.
func (s *Session) Modal() scene.Modal {
	return scene.NewModal(s.surface)
}

// CreateSessionModal returns the create-session overlay.
func (s *Session) CreateSessionModal() scene.CreateSessionModal {
	return scene.NewCreateSessionModal(s.surface)
}

// JoinSessionModal returns the join-session overlay.
func (s *Session) JoinSessionModal() scene.JoinSessionModal {
	return scene.NewJoinSessionModal(s.surface)
}

// AddAspectModal returns the add-aspect overlay.
func (s *Session) AddAspectModal() scene.AddAspectModal {
	return scene.NewAddAspectModal(s.surface)
}

// CloseReport is the outcome of closing one session.
type CloseReport struct {
	Actor        string
	ArtifactPath string
	ArtifactErr  error
	CloseErr     error
}

// Err joins both failures, or returns nil.
func (r CloseReport) Err() error {
	return errors.Join(r.ArtifactErr, r.CloseErr)
}

// Close captures the screenshot artifact and then closes the surface.
// The surface is closed even when the screenshot fails. Only the first call
// does any work; later calls return the same report.
func (s *Session) Close() CloseReport {
	s.closeOnce.Do(func() {
		s.report = CloseReport{Actor: s.name, ArtifactPath: s.artifact}

		if err := s.capture(); err != nil {
			s.report.ArtifactErr = err
			s.log.Warn("artifact capture failed", "path", s.artifact, "error", err)
		} else {
			s.log.Debug("artifact captured", "path", s.artifact)
		}

		if err := s.surface.Close(); err != nil {
			s.report.CloseErr = fmt.Errorf("close %s: %w", s.name, err)
			s.log.Warn("surface close failed", "error", err)
		}
	})
	return s.report
}

func (s *Session) capture() error {
	if dir := filepath.Dir(s.artifact); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create results dir: %w", err)
		}
	}
	if err := s.surface.Screenshot(s.artifact); err != nil {
		return fmt.Errorf("screenshot %s: %w", s.name, err)
	}
	return nil
}
