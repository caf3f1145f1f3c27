package reservation

import (
	"errors"
	"fmt"
)

var (
	ErrValidation                = errors.New("invalid reservation request")
	ErrCapacity                  = errors.New("not enough seats available")
	ErrConcurrencyConflict       = errors.New("inventory changed concurrently")
	ErrNotFoundOrAlreadyReleased = errors.New("reservation not found or already released")
	ErrEventNotFound             = errors.New("event not found")
	ErrStoreFailure              = errors.New("store failure")
	ErrReconciliationRequired    = errors.New("reconciliation required")
)

type ValidationError struct {
	Field  string
	Reason string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e ValidationError) Unwrap() error {
	return ErrValidation
}

type CapacityError struct {
	Requested int
	Available int
}

func (e CapacityError) Error() string {
	return fmt.Sprintf("requested %d seats, %d available", e.Requested, e.Available)
}

func (e CapacityError) Unwrap() error {
	return ErrCapacity
}
