package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrPetNotFound signals a pet id that does not resolve.
	ErrPetNotFound = fmt.Errorf("pet %w", ErrNotFound)
	// ErrMatchNotFound signals a match id that does not resolve.
	ErrMatchNotFound = fmt.Errorf("match %w", ErrNotFound)

	// ErrInvalidPetState signals two pets that cannot form a lost/found pair.
	ErrInvalidPetState = errors.New("invalid pet state")
	// ErrDuplicateMatch signals that a match for the same (lost, found) pair already exists.
	ErrDuplicateMatch = errors.New("match already exists")
	// ErrUnauthorized signals an actor who owns neither pet of a match.
	ErrUnauthorized = errors.New("not authorized")
	// ErrAlreadyProcessed signals a transition attempted on a confirmed or rejected match.
	ErrAlreadyProcessed = errors.New("match already processed")
	// ErrFeatureProvider signals a feature extraction failure or timeout.
	ErrFeatureProvider = errors.New("feature provider error")
	// ErrValidation signals malformed input.
	ErrValidation = errors.New("validation failed")
	// ErrVectorDimMismatch signals feature vectors of different dimensionality.
	ErrVectorDimMismatch = errors.New("vector dimension mismatch")
	// ErrStoreUnavailable signals a storage outage that aborts a sweep.
	ErrStoreUnavailable = errors.New("store unavailable")
)

// DimensionMismatchError carries both dimensions of a failed comparison.
type DimensionMismatchError struct {
	Left, Right int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("%s: %d != %d", ErrVectorDimMismatch.Error(), e.Left, e.Right)
}

func (e *DimensionMismatchError) Unwrap() error { return ErrVectorDimMismatch }

// Validationf builds an ErrValidation with a formatted detail.
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
