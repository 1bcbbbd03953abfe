package security

import (
	"bytes"
	"errors"
	"fmt"
	"os"
)

// ErrSecretMissing is returned when no signing secret is available.
var ErrSecretMissing = errors.New("security: signing secret missing")

// SecretProvider supplies the HMAC secret for token signing and verification.
// Implementations are read once at startup and must be safe for concurrent use.
type SecretProvider interface {
	SigningSecret() ([]byte, error)
}

// StaticSecret serves a secret taken from configuration.
type StaticSecret []byte

// SigningSecret implements SecretProvider.
func (s StaticSecret) SigningSecret() ([]byte, error) {
	if len(s) == 0 {
		return nil, ErrSecretMissing
	}
	return s, nil
}

// FileSecret serves a secret read from a mounted file (Docker/Kubernetes secrets).
type FileSecret struct {
	path   string
	secret []byte
}

// NewFileSecret reads and trims the secret at path.
func NewFileSecret(path string) (*FileSecret, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read secret file: %w", err)
	}
	secret := bytes.TrimSpace(raw)
	if len(secret) == 0 {
		return nil, fmt.Errorf("%w: %s is empty", ErrSecretMissing, path)
	}
	return &FileSecret{path: path, secret: secret}, nil
}

// SigningSecret implements SecretProvider.
func (f *FileSecret) SigningSecret() ([]byte, error) {
	return f.secret, nil
}

// EphemeralSecret generates a random secret for local development. Tokens
// signed with it do not survive a restart.
func EphemeralSecret() (StaticSecret, error) {
	value, err := GenerateSecureToken(32)
	if err != nil {
		return nil, err
	}
	return StaticSecret(value), nil
}
