package payout

import "errors"

var (
	// ErrValidation is returned when a Request fails basic shape checks.
	ErrValidation = errors.New("payout: validation error")
	// ErrIdempotencyConflict is returned when a key is reused with different fields.
	ErrIdempotencyConflict = errors.New("payout: idempotency conflict")
	// ErrIllegalTransition is returned when a transition is attempted from a state that forbids it.
	ErrIllegalTransition = errors.New("payout: illegal transition")
	// ErrConflict is returned when a terminal finalize call disagrees with the stored result.
	ErrConflict = errors.New("payout: conflict")
	// ErrNotFound is returned when a payout id does not exist.
	ErrNotFound = errors.New("payout: not found")
)
