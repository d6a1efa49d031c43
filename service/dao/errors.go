package dao

import "errors"

var (
	// ErrNotFound is returned when no record exists under the requested key.
	ErrNotFound = errors.New("not found")

	// ErrNilEntity is returned when Save receives a nil record.
	ErrNilEntity = errors.New("nil entity")

	// ErrInvalidID is returned for an empty or malformed key.
	ErrInvalidID = errors.New("invalid id")
)
