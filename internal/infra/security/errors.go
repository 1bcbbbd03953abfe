package security

import "errors"

var (
	// ErrInvalidInput rejects empty or oversized secrets before any hashing work.
	ErrInvalidInput = errors.New("security: invalid input")
	// ErrCorruptDigest means a stored digest cannot be parsed.
	ErrCorruptDigest = errors.New("security: corrupt digest")

	ErrTokenExpired         = errors.New("token: expired")
	ErrTokenMalformed       = errors.New("token: malformed")
	ErrTokenPurposeMismatch = errors.New("token: purpose mismatch")
)
