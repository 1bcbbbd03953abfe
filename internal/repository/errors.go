package repository

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("repository: not found")
	// ErrDuplicate indicates a unique constraint rejected the write.
	ErrDuplicate = errors.New("repository: duplicate")
)

// DuplicateError names the identity axis that collided.
type DuplicateError struct {
	Field      string
	Constraint string
}

func (e *DuplicateError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("repository: duplicate %s", e.Field)
}

// Unwrap lets callers match ErrDuplicate with errors.Is.
func (e *DuplicateError) Unwrap() error {
	return ErrDuplicate
}
