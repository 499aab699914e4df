package service

import (
	"context"
	"errors"
	"fmt"
)

// Booking domain errors.  Handlers map each of these to a distinct HTTP
// status and code; ErrSlotAlreadyBooked in particular must stay
// distinguishable from the transient store errors.
var (
	ErrValidation        = errors.New("validation failed")
	ErrNotFound          = errors.New("not found")
	ErrForbidden         = errors.New("forbidden")
	ErrSlotAlreadyBooked = errors.New("slot already booked")
	ErrInvalidSignature  = errors.New("invalid payment confirmation")
	ErrPaymentPending    = errors.New("payment not completed yet")
	ErrPaymentFailed     = errors.New("payment failed")
	ErrInvalidTransition = errors.New("invalid booking status transition")
	ErrStoreUnavailable  = errors.New("store unavailable")
	ErrOutcomeUnknown    = errors.New("reservation outcome unknown")
)

// ValidationError names the rejected input.  It matches ErrValidation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string { return e.Field + ": " + e.Reason }

func (e *ValidationError) Unwrap() error { return ErrValidation }

func invalid(field, reason string) error { return &ValidationError{Field: field, Reason: reason} }

// writeErr classifies a store failure on a write.  A write interrupted by
// the deadline may still have landed, so it is reported as an unknown
// outcome rather than a failure.
func writeErr(ctx context.Context, err error) error {
	if ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", ErrOutcomeUnknown, err)
	}
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}

func readErr(err error) error {
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}
