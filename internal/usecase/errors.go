package usecase

import (
	"errors"
	"fmt"

	"github.com/Maarioo25/HiFybe/internal/repository"
)

var (
	// ErrInvalidCredentials covers both an unknown email and a wrong password.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrDuplicateIdentity is wrapped by *DuplicateIdentityError.
	ErrDuplicateIdentity = errors.New("identity already registered")
	// ErrIdentityConflict means the provider email belongs to an account linked to another subject.
	ErrIdentityConflict = errors.New("identity linked to a different external account")
	// ErrAccountNotFound is returned by reset requests for unknown emails.
	ErrAccountNotFound = errors.New("account not found")
	// ErrInvalidOrExpiredToken covers every reset token failure.
	ErrInvalidOrExpiredToken = errors.New("invalid or expired token")
	// ErrUnauthenticated is returned by the auth gate.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrProvider is wrapped by *ProviderError.
	ErrProvider = errors.New("identity provider error")
	// ErrInvalidInput rejects request data before any store access.
	ErrInvalidInput = errors.New("invalid input")
)

// DuplicateIdentityError names the identity axis that already exists.
type DuplicateIdentityError struct {
	Field string
}

func (e *DuplicateIdentityError) Error() string {
	return fmt.Sprintf("%s already registered", e.Field)
}

func (e *DuplicateIdentityError) Unwrap() error {
	return ErrDuplicateIdentity
}

// ProviderError wraps failures of the external identity provider.
type ProviderError struct {
	Err error
}

func (e *ProviderError) Error() string {
	if e.Err == nil {
		return ErrProvider.Error()
	}
	return fmt.Sprintf("%s: %v", ErrProvider, e.Err)
}

// Unwrap matches both ErrProvider and the underlying cause.
func (e *ProviderError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrProvider}
	}
	return []error{ErrProvider, e.Err}
}

// duplicateIdentity converts a store-level unique violation into the
// usecase error, leaving any other error untouched.
func duplicateIdentity(err error) error {
	var dup *repository.DuplicateError
	if errors.As(err, &dup) {
		return &DuplicateIdentityError{Field: dup.Field}
	}
	return err
}

// InvalidInputError names the offending request field. Err carries the
// password policy violation when there is one.
type InvalidInputError struct {
	Field  string
	Reason string
	Err    error
}

func (e *InvalidInputError) Error() string {
	reason := e.Reason
	if reason == "" && e.Err != nil {
		reason = e.Err.Error()
	}
	return fmt.Sprintf("%s: %s: %s", ErrInvalidInput, e.Field, reason)
}

func (e *InvalidInputError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrInvalidInput}
	}
	return []error{ErrInvalidInput, e.Err}
}

func invalidInput(field, reason string) error {
	return &InvalidInputError{Field: field, Reason: reason}
}

func invalidPassword(err error) error {
	return &InvalidInputError{Field: "password", Err: err}
}
