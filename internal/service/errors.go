package service

import (
	"errors"
	"fmt"
)

// Domain errors surfaced to the API layer. Callers match them with errors.Is.
var (
	ErrNotFound                = errors.New("exam not found")
	ErrInvalidWindow           = errors.New("invalid exam window")
	ErrNotActive               = errors.New("exam is not in the required status")
	ErrRegistrationRequired    = errors.New("registration required")
	ErrRegistrationNotRequired = errors.New("exam does not take registrations")
	ErrNotStarted              = errors.New("session not started")
	ErrDeadlineExceeded        = errors.New("session deadline exceeded")
	ErrAlreadyCompleted        = errors.New("session already completed")
	ErrNotCompleted            = errors.New("session not completed yet")
	ErrUnknownQuestion         = errors.New("answer references a question outside the exam")
	ErrPersistence             = errors.New("persistence failure")
)

// persistence marks a store error as transient so callers can tell it apart
// from domain errors while keeping the original cause.
func persistence(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrPersistence, err)
}
