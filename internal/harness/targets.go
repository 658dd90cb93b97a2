package harness

import (
	"fmt"
	"regexp"
	"slices"
	"strconv"

	"github.com/roach88/crosscheck/internal/actor"
	"github.com/roach88/crosscheck/internal/locator"
	"github.com/roach88/crosscheck/internal/scene"
)

// TargetKind restricts which targets a step accepts.
type TargetKind int

const (
	// KindAny accepts every target.
	KindAny TargetKind = iota

	// KindField accepts only modal input fields.
	KindField
)

type binding struct {
	// field marks modal inputs; fills on them go through Modal.Fill.
	field bool

	// confirm marks the modal OK button; clicks on it go through
	// Modal.Confirm.
	confirm bool

	resolve func(s *actor.Session, idx []int) locator.Locator
}

// target is a parsed, vocabulary-checked target string.
type target struct {
	name    string
	pattern string
	idx     []int
	binding
}

func (t target) locate(s *actor.Session) locator.Locator {
	return t.resolve(s, t.idx)
}

// modalTarget is the overlay root, the only target whose visibility gates
// modal fills and confirms.
const modalTarget = "modal"

var indexPattern = regexp.MustCompile(`\[(\d+)\]`)

var vocabulary = buildVocabulary()

func buildVocabulary() map[string]binding {
	v := map[string]binding{}
	add := func(pattern string, fn func(s *actor.Session, idx []int) locator.Locator) {
		v[pattern] = binding{resolve: fn}
	}
	field := func(pattern string, fn func(s *actor.Session) locator.Locator) {
		v[pattern] = binding{field: true, resolve: func(s *actor.Session, _ []int) locator.Locator { return fn(s) }}
	}

	// Accessors every scene shares.
	screens := map[string]func(s *actor.Session) scene.Scene{
		"home":       func(s *actor.Session) scene.Scene { return s.Home().Scene },
		"gamemaster": func(s *actor.Session) scene.Scene { return s.GameMaster().Scene },
		"player":     func(s *actor.Session) scene.Scene { return s.Player().Scene },
	}
	for name, sc := range screens {
		add(name+".title", func(s *actor.Session, _ []int) locator.Locator { return sc(s).Title() })
		add(name+".skill_check[]", func(s *actor.Session, idx []int) locator.Locator { return sc(s).SkillCheckButton(idx[0]) })
		add(name+".skill_check_result", func(s *actor.Session, _ []int) locator.Locator { return sc(s).SkillCheckResult() })
	}

	add("home.create_session", func(s *actor.Session, _ []int) locator.Locator { return s.Home().CreateSessionButton() })
	add("home.join_session", func(s *actor.Session, _ []int) locator.Locator { return s.Home().JoinSessionButton() })

	add("gamemaster.join_session_link", func(s *actor.Session, _ []int) locator.Locator { return s.GameMaster().JoinSessionLink() })
	add("gamemaster.add_aspect", func(s *actor.Session, _ []int) locator.Locator { return s.GameMaster().AddAspectButton() })
	add("gamemaster.players", func(s *actor.Session, _ []int) locator.Locator { return s.GameMaster().Players() })
	add("gamemaster.player[]", func(s *actor.Session, idx []int) locator.Locator { return s.GameMaster().PlayerRow(idx[0]) })
	add("gamemaster.player[].name", func(s *actor.Session, idx []int) locator.Locator { return s.GameMaster().Player(idx[0]).Name() })
	add("gamemaster.player[].fate_points", func(s *actor.Session, idx []int) locator.Locator {
		return s.GameMaster().Player(idx[0]).FatePoints()
	})
	add("gamemaster.player[].inc_fate_points", func(s *actor.Session, idx []int) locator.Locator {
		return s.GameMaster().Player(idx[0]).IncButton()
	})
	add("gamemaster.player[].dec_fate_points", func(s *actor.Session, idx []int) locator.Locator {
		return s.GameMaster().Player(idx[0]).DecButton()
	})
	add("gamemaster.aspects", func(s *actor.Session, _ []int) locator.Locator { return s.GameMaster().Aspects() })
	add("gamemaster.aspect[]", func(s *actor.Session, idx []int) locator.Locator { return s.GameMaster().AspectRow(idx[0]) })
	add("gamemaster.aspect[].name", func(s *actor.Session, idx []int) locator.Locator { return s.GameMaster().Aspect(idx[0]).Name() })
	add("gamemaster.aspect[].remove", func(s *actor.Session, idx []int) locator.Locator {
		return s.GameMaster().Aspect(idx[0]).RemoveButton()
	})

	add("player.fate_points", func(s *actor.Session, _ []int) locator.Locator { return s.Player().FatePoints() })
	add("player.spend_fate_point", func(s *actor.Session, _ []int) locator.Locator { return s.Player().SpendFatePointButton() })
	add("player.aspects", func(s *actor.Session, _ []int) locator.Locator { return s.Player().Aspects() })
	add("player.aspect[]", func(s *actor.Session, idx []int) locator.Locator { return s.Player().Aspects().Child(idx[0]) })
	add("player.aspect[].name", func(s *actor.Session, idx []int) locator.Locator { return s.Player().Aspect(idx[0]).Name() })

	add(modalTarget, func(s *actor.Session, _ []int) locator.Locator { return s.Modal().Root() })
	v["modal.ok"] = binding{confirm: true, resolve: func(s *actor.Session, _ []int) locator.Locator { return s.Modal().OKButton() }}
	field("create_session.title", func(s *actor.Session) locator.Locator { return s.CreateSessionModal().TitleInput() })
	field("join_session.session_id", func(s *actor.Session) locator.Locator { return s.JoinSessionModal().SessionIDInput() })
	field("join_session.player_name", func(s *actor.Session) locator.Locator { return s.JoinSessionModal().PlayerNameInput() })
	field("add_aspect.name", func(s *actor.Session) locator.Locator { return s.AddAspectModal().AspectNameInput() })

	return v
}

// Targets lists the target vocabulary, sorted. "[]" stands for a 0-based
// index such as [0].
func Targets() []string {
	names := make([]string, 0, len(vocabulary))
	for name := range vocabulary {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// lookupTarget parses name and checks it against the vocabulary.
func lookupTarget(name string) (target, error) {
	var idx []int
	for _, m := range indexPattern.FindAllStringSubmatch(name, -1) {
		i, err := strconv.Atoi(m[1])
		if err != nil {
			return target{}, fmt.Errorf("target %q: bad index %q", name, m[1])
		}
		idx = append(idx, i)
	}
	pattern := indexPattern.ReplaceAllString(name, "[]")
	b, ok := vocabulary[pattern]
	if !ok {
		return target{}, fmt.Errorf("unknown target %q", name)
	}
	return target{name: name, pattern: pattern, idx: idx, binding: b}, nil
}
