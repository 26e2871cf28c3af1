package hue

import "errors"

// Bridge errors.
var (
	ErrDisabled         = errors.New("hue: bridge disabled")
	ErrInvalidColor     = errors.New("hue: invalid color")
	ErrResourceNotFound = errors.New("hue: resource not found")
	ErrApplyFailed      = errors.New("hue: apply failed")
	ErrBridgeError      = errors.New("hue: bridge returned error")
)
