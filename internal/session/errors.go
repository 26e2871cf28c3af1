package session

import "errors"

// Session errors.
var (
	ErrNoActiveSession = errors.New("session: no active session")
	ErrClosed          = errors.New("session: scheduler closed")
)
