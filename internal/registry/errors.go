package registry

import "errors"

// Domain errors for the registry package.
var (
	// ErrUserNotFound is returned when a user id has no record.
	ErrUserNotFound = errors.New("registry: user not found")

	// ErrSnapshotNotFound is returned when a target has no applied snapshot yet.
	ErrSnapshotNotFound = errors.New("registry: snapshot not found")

	// ErrInvalidUserID is returned when an operation is given an empty user id.
	ErrInvalidUserID = errors.New("registry: user id cannot be empty")
)
