package domain

import "errors"

var (
	// ErrInvalidInput rejects malformed requests before any remote call.
	ErrInvalidInput = errors.New("invalid input")
	// ErrRemoteUnavailable wraps network or store failures. Local state stays
	// at last-known-good; the caller decides whether to retry.
	ErrRemoteUnavailable = errors.New("remote store unavailable")
	// ErrSessionLost indicates no resolvable owner identity for the operation.
	ErrSessionLost = errors.New("owner session lost")
	// ErrHabitNotFound is returned when a habit id does not resolve within the
	// owner's collection.
	ErrHabitNotFound = errors.New("habit not found")
)
