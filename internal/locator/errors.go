package locator

import (
	"errors"
	"fmt"
)

var (
	// ErrTimeout is returned by drivers when an action gave up waiting.
	ErrTimeout = errors.New("timeout")

	// ErrAbsent is returned by single-element reads when nothing matches.
	ErrAbsent = errors.New("element not found")

	// ErrAmbiguous is returned by single-element reads when several nodes match.
	ErrAmbiguous = errors.New("ambiguous match")
)

// NotFoundError is returned when an action could not find its element in time.
type NotFoundError struct {
	Query  Query
	Action string
	Err    error
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s: element not found: %v", e.Action, e.Query, e.Err)
}

// Unwrap returns the driver error.
func (e *NotFoundError) Unwrap() error {
	return e.Err
}
