package browser

import "errors"

var (
	// ErrElementNotFound is returned when no element matches a selector.
	ErrElementNotFound = errors.New("element not found")
	// ErrSessionClosed is returned for operations on a closed session.
	ErrSessionClosed = errors.New("browser session is closed")
)
