package domain

import "errors"

var (
	// ErrNotFound is returned for unknown tab or group identifiers.
	ErrNotFound = errors.New("not found")
	// ErrDuplicateName is returned when a sibling group already uses the name.
	ErrDuplicateName = errors.New("duplicate group name")
	// ErrInvalidTransition is returned for state changes outside the transition table.
	ErrInvalidTransition = errors.New("invalid transition")
	// ErrInvariantViolation signals internal corruption, e.g. a representative
	// that is not a member of its group. It indicates a bug.
	ErrInvariantViolation = errors.New("invariant violation")
	// ErrInvalidArgument is returned for malformed input (empty names, bad urls).
	ErrInvalidArgument = errors.New("invalid argument")
)
