package scene

import "github.com/roach88/crosscheck/internal/locator"

// Component is a repeatable fragment located relative to a parent.
// All of its accessors derive from root, so two components of the same kind
// under different parents never see each other's elements.
type Component struct {
	root locator.Locator
}

// NewComponent scopes a component under root.
func NewComponent(root locator.Locator) Component {
	return Component{root: root}
}

// Root returns the component's scoping locator.
func (c Component) Root() locator.Locator {
	return c.root
}

// PlayerCard is one row of the game master's roster.
type PlayerCard struct {
	Component
}

// Name is the player's display name.
func (p PlayerCard) Name() locator.Locator {
	return p.root.TestID("player-name")
}

// FatePoints is the player's fate point counter as shown to the game master.
func (p PlayerCard) FatePoints() locator.Locator {
	return p.root.TestID("fate-points")
}

// IncButton grants one fate point.
func (p PlayerCard) IncButton() locator.Locator {
	return p.root.TestID("inc-fate-points")
}

// DecButton takes one fate point; disabled at zero.
func (p PlayerCard) DecButton() locator.Locator {
	return p.root.TestID("dec-fate-points")
}

// AspectCard is one aspect entry.
type AspectCard struct {
	Component
}

// Name is the aspect's text.
func (a AspectCard) Name() locator.Locator {
	return a.root.TestID("aspect-name")
}

// RemoveButton removes the aspect. Only rendered for the game master.
func (a AspectCard) RemoveButton() locator.Locator {
	return a.root.TestID("remove-aspect")
}
