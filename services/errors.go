package services

import (
	"context"
	"errors"
	"fmt"
)

// Error kinds returned by the services. Callers compare with errors.Is; the
// HTTP layer turns each kind into a status code.
var (
	ErrDuplicateAccount    = errors.New("an account with this email already exists")
	ErrWeakCredential      = errors.New("password must be at least 6 characters")
	ErrInvalidCredential   = errors.New("invalid email or password")
	ErrProfileMissing      = errors.New("no profile exists for this account")
	ErrIllegalTransition   = errors.New("status change not allowed")
	ErrNotReviewable       = errors.New("site log is not awaiting review")
	ErrMissingSite         = errors.New("site does not exist")
	ErrPersistence         = errors.New("storage failure")
	ErrTimeout             = errors.New("storage did not respond in time")
	ErrForbidden           = errors.New("forbidden")
	ErrNotFound            = errors.New("not found")
	ErrInvalidInput        = errors.New("invalid input")
	ErrAlreadyBootstrapped = errors.New("system is already initialized")
)

// storeError converts an unexpected store failure into ErrTimeout or
// ErrPersistence. Expected store errors are mapped by the caller first.
func storeError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout
	}
	return fmt.Errorf("%w: %w", ErrPersistence, err)
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

func forbidden(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrForbidden, fmt.Sprintf(format, args...))
}
