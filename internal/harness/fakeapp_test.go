package harness_test

import (
	"fmt"
	"sync"
	"time"

	"github.com/roach88/crosscheck/internal/scene"
	"github.com/roach88/crosscheck/internal/testutil"
)

const (
	fakeBase  = "http://table.test"
	fakeTitle = "Fate Core Remote Table"

	// propagation is how long the fake backend takes to push a change to
	// the other sessions.
	propagation = 40 * time.Millisecond
)

// fakeTable is an in-memory stand-in for the table application. It renders
// the same test ids as the real app into each actor's fake surface and
// propagates state between sessions after a short delay.
type fakeTable struct {
	mu       sync.Mutex
	opener   *testutil.Opener
	surfaces map[string]*testutil.Surface
	sessions map[string]*fakeSession
	seq      int

	// overlayDelay postpones every modal show and hide, like an animated
	// overlay. Zero renders them inside the triggering click.
	overlayDelay time.Duration
}

type fakeSession struct {
	id      string
	title   string
	gm      *testutil.Surface
	players []*fakePlayer
	aspects []string
}

type fakePlayer struct {
	name    string
	points  int
	surface *testutil.Surface
}

func newFakeTable(actors ...string) *fakeTable {
	t := &fakeTable{
		opener:   testutil.NewOpener(fakeBase),
		surfaces: map[string]*testutil.Surface{},
		sessions: map[string]*fakeSession{},
	}
	for _, name := range actors {
		s := t.opener.Prepare(name)
		t.surfaces[name] = s
		s.OnGoto("/", t.renderHome)
	}
	return t
}

func (t *fakeTable) renderHome(s *testutil.Surface) {
	s.SetTitle(fakeTitle)
	home := scene.NewHome(s)
	s.Set(home.Title().Query(), testutil.Shown("Fate Core Remote Table"))
	for i := 0; i < scene.SkillLevels; i++ {
		btn := home.SkillCheckButton(i)
		s.Set(btn.Query(), testutil.Shown(fmt.Sprintf("+%d", i)))
		s.OnClick(btn.Query(), func(d *testutil.DOM) {
			d.Set(home.SkillCheckResult().Query(), testutil.Shown(fmt.Sprintf("rolled +%d", i)))
		})
	}
	s.Remove(home.SkillCheckResult().Query())

	s.Set(home.CreateSessionButton().Query(), testutil.Shown("Create"))
	s.OnClick(home.CreateSessionButton().Query(), func(*testutil.DOM) { t.openCreateModal(s) })

	s.Set(home.JoinSessionButton().Query(), testutil.Shown("Join"))
	s.OnClick(home.JoinSessionButton().Query(), func(*testutil.DOM) { t.openJoinModal(s, "") })
}

func (t *fakeTable) clearHome(s *testutil.Surface) {
	home := scene.NewHome(s)
	s.Remove(home.CreateSessionButton().Query())
	s.Remove(home.JoinSessionButton().Query())
	s.Remove(home.SkillCheckResult().Query())
}

func showModal(s *testutil.Surface, fields ...string) scene.Modal {
	m := scene.NewModal(s)
	s.Set(m.Root().Query(), testutil.Shown(""))
	s.Set(m.OKButton().Query(), testutil.Shown("OK"))
	for _, f := range fields {
		s.Set(m.Field(f).Query(), testutil.Shown(""))
	}
	return m
}

func hideModal(s *testutil.Surface, fields ...string) {
	m := scene.NewModal(s)
	s.Remove(m.Root().Query())
	s.Remove(m.OKButton().Query())
	for _, f := range fields {
		s.Remove(m.Field(f).Query())
	}
}

// overlay runs fn now, or after overlayDelay.
func (t *fakeTable) overlay(s *testutil.Surface, fn func()) {
	if t.overlayDelay == 0 {
		fn()
		return
	}
	s.After(t.overlayDelay, func(*testutil.DOM) { fn() })
}

func (t *fakeTable) openCreateModal(s *testutil.Surface) {
	t.overlay(s, func() {
		m := showModal(s, "session-title")
		s.OnClick(m.OKButton().Query(), func(*testutil.DOM) {
			title := s.Filled(m.Field("session-title").Query())
			t.overlay(s, func() {
				hideModal(s, "session-title")
				t.createSession(s, title)
			})
		})
	})
}

func (t *fakeTable) createSession(gm *testutil.Surface, title string) {
	t.mu.Lock()
	t.seq++
	sess := &fakeSession{id: fmt.Sprintf("S%03d", t.seq), title: title, gm: gm}
	t.sessions[sess.id] = sess
	for _, s := range t.surfaces {
		s.OnGoto(scene.JoinPath(sess.id), func(s *testutil.Surface) {
			t.renderHome(s)
			t.openJoinModal(s, sess.id)
		})
	}
	t.mu.Unlock()

	t.clearHome(gm)
	gm.Navigate(scene.SessionPathPrefix + sess.id)
	g := scene.NewGameMaster(gm)
	gm.Set(g.Title().Query(), testutil.Shown("MT @ "+title))
	gm.Set(g.AddAspectButton().Query(), testutil.Shown("Add aspect"))
	gm.Set(g.JoinSessionLink().Query(), testutil.Shown(scene.JoinPath(sess.id)))
	gm.Set(g.Players().Query(), testutil.Shown(""))
	gm.Set(g.Aspects().Query(), testutil.Shown(""))
	gm.OnClick(g.AddAspectButton().Query(), func(*testutil.DOM) { t.openAspectModal(sess) })
}

func (t *fakeTable) openJoinModal(s *testutil.Surface, prefilled string) {
	t.overlay(s, func() {
		m := showModal(s, "session-id", "player-name")
		s.OnClick(m.OKButton().Query(), func(*testutil.DOM) {
			id := s.Filled(m.Field("session-id").Query())
			if id == "" {
				id = prefilled
			}
			name := s.Filled(m.Field("player-name").Query())
			t.overlay(s, func() {
				hideModal(s, "session-id", "player-name")
				t.join(s, id, name)
			})
		})
	})
}

func (t *fakeTable) join(s *testutil.Surface, id, name string) {
	t.mu.Lock()
	sess, ok := t.sessions[id]
	if !ok {
		t.mu.Unlock()
		return
	}
	p := &fakePlayer{name: name, surface: s}
	sess.players = append(sess.players, p)
	idx := len(sess.players) - 1
	aspects := append([]string(nil), sess.aspects...)
	t.mu.Unlock()

	t.clearHome(s)
	s.Navigate(scene.SessionPathPrefix + id + "/player")
	player := scene.NewPlayer(s)
	s.Set(player.Title().Query(), testutil.Shown(name+" @ "+sess.title))
	s.Set(player.FatePoints().Query(), testutil.Shown("0"))
	s.Set(player.SpendFatePointButton().Query(), testutil.Disabled("Spend"))
	s.Set(player.Aspects().Query(), testutil.Shown(""))
	for i, a := range aspects {
		s.Set(player.Aspect(i).Root().Query(), testutil.Shown(a))
		s.Set(player.Aspect(i).Name().Query(), testutil.Shown(a))
	}
	s.OnClick(player.SpendFatePointButton().Query(), func(*testutil.DOM) { t.changePoints(sess, idx, -1, s) })

	sess.gm.After(propagation, func(*testutil.DOM) {
		card := scene.NewGameMaster(sess.gm).Player(idx)
		sess.gm.Set(card.Root().Query(), testutil.Shown(name))
		sess.gm.Set(card.Name().Query(), testutil.Shown(name))
		sess.gm.Set(card.FatePoints().Query(), testutil.Shown("0"))
		sess.gm.Set(card.IncButton().Query(), testutil.Shown("+"))
		sess.gm.Set(card.DecButton().Query(), testutil.Disabled("-"))
		sess.gm.OnClick(card.IncButton().Query(), func(*testutil.DOM) { t.changePoints(sess, idx, +1, sess.gm) })
		sess.gm.OnClick(card.DecButton().Query(), func(*testutil.DOM) { t.changePoints(sess, idx, -1, sess.gm) })
	})
}

// changePoints applies a delta. The acting surface re-renders promptly; the
// other side only after propagation.
func (t *fakeTable) changePoints(sess *fakeSession, idx, delta int, actor *testutil.Surface) {
	t.mu.Lock()
	p := sess.players[idx]
	p.points += delta
	points := p.points
	t.mu.Unlock()

	renderGM := func(*testutil.DOM) {
		card := scene.NewGameMaster(sess.gm).Player(idx)
		sess.gm.SetText(card.FatePoints().Query(), fmt.Sprint(points))
		sess.gm.SetEnabled(card.DecButton().Query(), points > 0)
	}
	renderPlayer := func(*testutil.DOM) {
		player := scene.NewPlayer(p.surface)
		p.surface.SetText(player.FatePoints().Query(), fmt.Sprint(points))
		p.surface.SetEnabled(player.SpendFatePointButton().Query(), points > 0)
	}

	if actor == sess.gm {
		sess.gm.After(propagation/4, renderGM)
		p.surface.After(propagation, renderPlayer)
		return
	}
	p.surface.After(propagation/4, renderPlayer)
	sess.gm.After(propagation, renderGM)
}

func (t *fakeTable) openAspectModal(sess *fakeSession) {
	gm := sess.gm
	t.overlay(gm, func() {
		m := showModal(gm, "aspect-name")
		gm.OnClick(m.OKButton().Query(), func(*testutil.DOM) {
			name := gm.Filled(m.Field("aspect-name").Query())
			t.overlay(gm, func() {
				hideModal(gm, "aspect-name")
				t.addAspect(sess, name)
			})
		})
	})
}

func (t *fakeTable) addAspect(sess *fakeSession, name string) {
	gm := sess.gm
	t.mu.Lock()
	sess.aspects = append(sess.aspects, name)
	i := len(sess.aspects) - 1
	players := append([]*fakePlayer(nil), sess.players...)
	t.mu.Unlock()

	card := scene.NewGameMaster(gm).Aspect(i)
	gm.Set(card.Root().Query(), testutil.Shown(name))
	gm.Set(card.Name().Query(), testutil.Shown(name))
	gm.Set(card.RemoveButton().Query(), testutil.Shown("x"))

	for _, p := range players {
		p.surface.After(propagation, func(*testutil.DOM) {
			pc := scene.NewPlayer(p.surface).Aspect(i)
			p.surface.Set(pc.Root().Query(), testutil.Shown(name))
			p.surface.Set(pc.Name().Query(), testutil.Shown(name))
		})
	}
}

func (t *fakeTable) surface(name string) *testutil.Surface {
	return t.surfaces[name]
}
