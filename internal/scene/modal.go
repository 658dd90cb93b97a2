package scene

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/crosscheck/internal/locator"
)

// ModalTestID marks the overlay root.
const ModalTestID = "modal"

// ConfirmLabel is the accessible name of the confirm button of every modal.
const ConfirmLabel = "OK"

// Modal is an overlay with input fields and a confirm control.
// Only one modal may be open at a time.
type Modal struct {
	page Page
}

// NewModal binds the generic overlay to page.
func NewModal(page Page) Modal {
	return Modal{page: page}
}

// Root is the overlay container.
func (m Modal) Root() locator.Locator {
	return locator.On(m.page, locator.ByTestID(ModalTestID))
}

// OKButton is the OK button inside the overlay.
func (m Modal) OKButton() locator.Locator {
	return m.Root().Role("button", ConfirmLabel)
}

// Field is the input with the given test id inside the overlay.
func (m Modal) Field(key string) locator.Locator {
	return m.Root().Input(key)
}

// Open reports whether exactly one overlay is visible.
func (m Modal) Open() (bool, error) {
	return m.Root().Visible()
}

// ready checks that exactly one overlay is visible before op touches it.
func (m Modal) ready(op string) error {
	visible, err := m.Root().Visible()
	switch {
	case errors.Is(err, locator.ErrAmbiguous):
		return &UsageError{Op: op, Reason: "more than one modal is open"}
	case err != nil:
		return fmt.Errorf("%s: %w", op, err)
	case !visible:
		return &UsageError{Op: op, Reason: "no modal is open"}
	}
	return nil
}

// Fill types value into field. field must lie inside this modal.
func (m Modal) Fill(ctx context.Context, field locator.Locator, value string) error {
	if err := m.ready("modal fill"); err != nil {
		return err
	}
	return field.Fill(ctx, value)
}

// Confirm clicks the OK button.
func (m Modal) Confirm(ctx context.Context) error {
	if err := m.ready("modal confirm"); err != nil {
		return err
	}
	return m.OKButton().Click(ctx)
}

// CreateSessionModal asks for a session title.
type CreateSessionModal struct {
	Modal
}

// NewCreateSessionModal binds the create-session overlay to page.
func NewCreateSessionModal(page Page) CreateSessionModal {
	return CreateSessionModal{NewModal(page)}
}

// TitleInput is the session title field.
func (m CreateSessionModal) TitleInput() locator.Locator {
	return m.Field("session-title")
}

// JoinSessionModal asks for a session id and a player name.
type JoinSessionModal struct {
	Modal
}

// NewJoinSessionModal binds the join-session overlay to page.
func NewJoinSessionModal(page Page) JoinSessionModal {
	return JoinSessionModal{NewModal(page)}
}

// SessionIDInput is the session id field. Prefilled when opened from a join
// link.
func (m JoinSessionModal) SessionIDInput() locator.Locator {
	return m.Field("session-id")
}

// PlayerNameInput is the player name field.
func (m JoinSessionModal) PlayerNameInput() locator.Locator {
	return m.Field("player-name")
}

// AddAspectModal asks for an aspect name.
type AddAspectModal struct {
	Modal
}

// NewAddAspectModal binds the add-aspect overlay to page.
func NewAddAspectModal(page Page) AddAspectModal {
	return AddAspectModal{NewModal(page)}
}

// AspectNameInput is the aspect name field.
func (m AddAspectModal) AspectNameInput() locator.Locator {
	return m.Field("aspect-name")
}
