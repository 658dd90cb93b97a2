package scene

import (
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/roach88/crosscheck/internal/locator"
)

// SessionPathPrefix is the route of the game master screen.
const SessionPathPrefix = "/session/"

// JoinPathPrefix is the route of the shareable join link.
const JoinPathPrefix = "/join/"

// Home is the entry screen: create or join a session, roll skill checks.
type Home struct {
	Scene
}

// NewHome returns the entry scene at "/".
func NewHome(page Page) Home {
	return Home{Scene: New(page, "/")}
}

// NewJoinLink returns the entry scene reached through a join link, which opens
// the join modal with the session id filled in.
func NewJoinLink(page Page, sessionID string) Home {
	return Home{Scene: New(page, JoinPath(sessionID))}
}

// JoinPath is the join-link route for a session.
func JoinPath(sessionID string) string {
	return JoinPathPrefix + url.PathEscape(sessionID)
}

// CreateSessionButton opens the create-session modal.
func (h Home) CreateSessionButton() locator.Locator {
	return h.Locate(locator.ByTestID("create-session-btn"))
}

// JoinSessionButton opens the join-session modal.
func (h Home) JoinSessionButton() locator.Locator {
	return h.Locate(locator.ByTestID("join-session-btn"))
}

// GameMaster is the privileged screen: roster of player cards and aspects.
type GameMaster struct {
	Scene
}

// NewGameMaster returns the game master scene as reached after creating a
// session. It has no navigation path of its own.
func NewGameMaster(page Page) GameMaster {
	return GameMaster{Scene: New(page, "")}
}

// GameMasterAt returns the game master scene of a known session.
func GameMasterAt(page Page, sessionID string) GameMaster {
	return GameMaster{Scene: New(page, SessionPathPrefix+url.PathEscape(sessionID))}
}

// JoinSessionLink is the share/join link control.
func (g GameMaster) JoinSessionLink() locator.Locator {
	return g.Locate(locator.ByTestID("join-session-link"))
}

// AddAspectButton opens the add-aspect modal.
func (g GameMaster) AddAspectButton() locator.Locator {
	return g.Locate(locator.ByTestID("add-aspect"))
}

// Players is the roster container.
func (g GameMaster) Players() locator.Locator {
	return g.Locate(locator.ByTestID("players"))
}

// PlayerRow is the i-th (0-based) row of the roster.
func (g GameMaster) PlayerRow(i int) locator.Locator {
	return g.Players().Child(i)
}

// Player is the card view of the i-th roster row.
func (g GameMaster) Player(i int) PlayerCard {
	return PlayerCard{Component{root: g.PlayerRow(i)}}
}

// Aspects is the session aspect list.
func (g GameMaster) Aspects() locator.Locator {
	return g.Locate(locator.ByTestID("aspects"))
}

// AspectRow is the i-th (0-based) aspect.
func (g GameMaster) AspectRow(i int) locator.Locator {
	return g.Aspects().Child(i)
}

// Aspect is the card view of the i-th aspect.
func (g GameMaster) Aspect(i int) AspectCard {
	return AspectCard{Component{root: g.AspectRow(i)}}
}

// SessionID extracts the session identifier from the current URL, which has
// the form <base>/session/<id>.
func (g GameMaster) SessionID() (string, error) {
	return SessionIDFromURL(g.Page().URL())
}

// SessionIDFromURL returns the last path segment of a game master URL.
func SessionIDFromURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse session url %q: %w", raw, err)
	}
	p := path.Clean(u.Path)
	if !strings.HasPrefix(p, SessionPathPrefix) {
		return "", fmt.Errorf("url %q is not a session url", raw)
	}
	// Clean strips the trailing slash, so a bare "/session/" fails the prefix
	// check above and the last segment here is never empty.
	return path.Base(p), nil
}

// Player is the restricted screen of a joined player.
type Player struct {
	Scene
}

// NewPlayer returns the player scene as reached after joining.
func NewPlayer(page Page) Player {
	return Player{Scene: New(page, "")}
}

// FatePoints is the player's own fate point counter.
func (p Player) FatePoints() locator.Locator {
	return p.Locate(locator.ByTestID("fate-points"))
}

// SpendFatePointButton spends one fate point; disabled at zero.
func (p Player) SpendFatePointButton() locator.Locator {
	return p.Locate(locator.ByTestID("spend-fate-point"))
}

// Aspects lists the aspects published to the player.
func (p Player) Aspects() locator.Locator {
	return p.Locate(locator.ByTestID("aspects"))
}

// Aspect is the card view of the i-th published aspect.
func (p Player) Aspect(i int) AspectCard {
	return AspectCard{Component{root: p.Aspects().Child(i)}}
}
