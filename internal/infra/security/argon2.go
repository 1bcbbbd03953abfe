package security

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"

	"github.com/Maarioo25/HiFybe/internal/core/port"
)

const (
	argon2Variant = "argon2id"
	argon2Version = "v=19"

	// MaxPasswordBytes caps hashing input; argon2 cost grows with input length.
	MaxPasswordBytes = 1024
)

var errInvalidConfig = errors.New("argon2: invalid configuration")

// DefaultArgon2Params returns the parameters used when none are configured.
func DefaultArgon2Params() port.Argon2Params {
	return port.Argon2Params{
		Memory:      64 * 1024,
		Iterations:  3,
		Parallelism: 2,
		SaltLength:  16,
		KeyLength:   32,
	}
}

// Argon2Hasher produces argon2id digests in PHC string format and verifies
// both those and bcrypt digests carried over from the original HiFybe store.
type Argon2Hasher struct {
	mu     sync.RWMutex
	params port.Argon2Params
}

var (
	_ port.PasswordHasher = (*Argon2Hasher)(nil)
	_ port.RehashAdvisor  = (*Argon2Hasher)(nil)
)

// NewArgon2Hasher validates params and builds a hasher.
func NewArgon2Hasher(params port.Argon2Params) (*Argon2Hasher, error) {
	h := &Argon2Hasher{}
	if err := h.Configure(params); err != nil {
		return nil, err
	}
	return h, nil
}

// Configure swaps the parameters used for new digests.
func (h *Argon2Hasher) Configure(params port.Argon2Params) error {
	if err := validateArgon2Params(params); err != nil {
		return err
	}
	h.mu.Lock()
	h.params = params
	h.mu.Unlock()
	return nil
}

// Parameters returns the active hashing parameters.
func (h *Argon2Hasher) Parameters() port.Argon2Params {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.params
}

func validateArgon2Params(p port.Argon2Params) error {
	if p.Memory < 8*1024 {
		return fmt.Errorf("%w: memory must be at least 8192", errInvalidConfig)
	}
	if p.Iterations == 0 {
		return fmt.Errorf("%w: iterations must be greater than zero", errInvalidConfig)
	}
	if p.Parallelism == 0 {
		return fmt.Errorf("%w: parallelism must be greater than zero", errInvalidConfig)
	}
	if p.SaltLength < 8 {
		return fmt.Errorf("%w: salt length must be at least 8 bytes", errInvalidConfig)
	}
	if p.KeyLength < 16 {
		return fmt.Errorf("%w: key length must be at least 16 bytes", errInvalidConfig)
	}
	return nil
}

// Hash returns $argon2id$v=19$m=..,t=..,p=..$salt$key.
func (h *Argon2Hasher) Hash(password string) (string, error) {
	if err := checkPasswordInput(password); err != nil {
		return "", err
	}

	p := h.Parameters()

	salt := make([]byte, p.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("argon2: generate salt: %w", err)
	}

	key := argon2.IDKey([]byte(password), salt, p.Iterations, p.Memory, p.Parallelism, p.KeyLength)

	return fmt.Sprintf("$%s$%s$m=%d,t=%d,p=%d$%s$%s",
		argon2Variant,
		argon2Version,
		p.Memory, p.Iterations, p.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify reports whether password matches encoded. A mismatch is (false, nil);
// only an unparseable digest yields ErrCorruptDigest.
func (h *Argon2Hasher) Verify(password, encoded string) (bool, error) {
	if encoded == "" {
		return false, fmt.Errorf("%w: empty digest", ErrCorruptDigest)
	}
	if password == "" || len(password) > MaxPasswordBytes {
		return false, nil
	}

	if isBcryptDigest(encoded) {
		return verifyBcrypt(password, encoded)
	}

	p, salt, expected, err := decodeArgon2Digest(encoded)
	if err != nil {
		return false, err
	}

	computed := argon2.IDKey([]byte(password), salt, p.Iterations, p.Memory, p.Parallelism, uint32(len(expected)))
	return subtle.ConstantTimeCompare(computed, expected) == 1, nil
}

// NeedsRehash is true for bcrypt digests and for argon2 digests produced with
// parameters other than the active ones.
func (h *Argon2Hasher) NeedsRehash(encoded string) bool {
	if isBcryptDigest(encoded) {
		return true
	}
	p, _, key, err := decodeArgon2Digest(encoded)
	if err != nil {
		return false
	}
	current := h.Parameters()
	return p.Memory != current.Memory ||
		p.Iterations != current.Iterations ||
		p.Parallelism != current.Parallelism ||
		uint32(len(key)) != current.KeyLength
}

func checkPasswordInput(password string) error {
	if password == "" {
		return fmt.Errorf("%w: password must not be empty", ErrInvalidInput)
	}
	if len(password) > MaxPasswordBytes {
		return fmt.Errorf("%w: password exceeds %d bytes", ErrInvalidInput, MaxPasswordBytes)
	}
	return nil
}

func isBcryptDigest(encoded string) bool {
	return strings.HasPrefix(encoded, "$2a$") ||
		strings.HasPrefix(encoded, "$2b$") ||
		strings.HasPrefix(encoded, "$2y$")
}

func verifyBcrypt(password, encoded string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(encoded), []byte(password))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword), errors.Is(err, bcrypt.ErrPasswordTooLong):
		return false, nil
	default:
		return false, fmt.Errorf("%w: bcrypt: %v", ErrCorruptDigest, err)
	}
}

// decodeArgon2Digest accepts the PHC form with or without the leading '$'.
func decodeArgon2Digest(encoded string) (port.Argon2Params, []byte, []byte, error) {
	parts := strings.Split(strings.TrimPrefix(encoded, "$"), "$")
	if len(parts) != 5 {
		return port.Argon2Params{}, nil, nil, fmt.Errorf("%w: expected 5 segments, got %d", ErrCorruptDigest, len(parts))
	}
	if parts[0] != argon2Variant {
		return port.Argon2Params{}, nil, nil, fmt.Errorf("%w: unexpected variant %q", ErrCorruptDigest, parts[0])
	}
	if parts[1] != argon2Version {
		return port.Argon2Params{}, nil, nil, fmt.Errorf("%w: unsupported version %q", ErrCorruptDigest, parts[1])
	}

	p, err := parseArgon2Params(parts[2])
	if err != nil {
		return port.Argon2Params{}, nil, nil, err
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[3])
	if err != nil {
		return port.Argon2Params{}, nil, nil, fmt.Errorf("%w: decode salt: %v", ErrCorruptDigest, err)
	}
	key, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return port.Argon2Params{}, nil, nil, fmt.Errorf("%w: decode key: %v", ErrCorruptDigest, err)
	}

	p.SaltLength = uint32(len(salt))
	p.KeyLength = uint32(len(key))
	if err := validateArgon2Params(p); err != nil {
		return port.Argon2Params{}, nil, nil, fmt.Errorf("%w: %v", ErrCorruptDigest, err)
	}

	return p, salt, key, nil
}

func parseArgon2Params(segment string) (port.Argon2Params, error) {
	var p port.Argon2Params

	entries := strings.Split(segment, ",")
	if len(entries) != 3 {
		return p, fmt.Errorf("%w: malformed parameters %q", ErrCorruptDigest, segment)
	}

	for _, entry := range entries {
		key, value, ok := strings.Cut(entry, "=")
		if !ok {
			return p, fmt.Errorf("%w: malformed parameter %q", ErrCorruptDigest, entry)
		}

		switch key {
		case "m":
			v, err := strconv.ParseUint(value, 10, 32)
			if err != nil {
				return p, fmt.Errorf("%w: parse m: %v", ErrCorruptDigest, err)
			}
			p.Memory = uint32(v)
		case "t":
			v, err := strconv.ParseUint(value, 10, 32)
			if err != nil {
				return p, fmt.Errorf("%w: parse t: %v", ErrCorruptDigest, err)
			}
			p.Iterations = uint32(v)
		case "p":
			v, err := strconv.ParseUint(value, 10, 8)
			if err != nil {
				return p, fmt.Errorf("%w: parse p: %v", ErrCorruptDigest, err)
			}
			p.Parallelism = uint8(v)
		default:
			return p, fmt.Errorf("%w: unknown parameter %q", ErrCorruptDigest, key)
		}
	}

	return p, nil
}
