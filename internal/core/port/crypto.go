package port

// Argon2Params captures tunable parameters for the Argon2id hashing algorithm.
type Argon2Params struct {
	Memory      uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// PasswordHasher hashes and verifies secrets using the configured algorithm.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password string, encoded string) (bool, error)
}

// RehashAdvisor is implemented by hashers that can tell when a stored digest
// uses an outdated algorithm or parameters.
type RehashAdvisor interface {
	NeedsRehash(encoded string) bool
}

// PasswordPolicy enforces password requirements. userInputs feed strength
// estimation (email, nickname).
type PasswordPolicy interface {
	Validate(password string, userInputs ...string) error
}
