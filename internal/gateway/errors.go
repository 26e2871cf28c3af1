package gateway

import "errors"

// Gateway errors.
var (
	ErrUnknownEventType = errors.New("gateway: unknown event type")
	ErrInvalidEvent     = errors.New("gateway: invalid event")
	ErrDuplicateEvent   = errors.New("gateway: duplicate event")
)
