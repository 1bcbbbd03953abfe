package security

import (
	"strings"

	"github.com/Maarioo25/HiFybe/internal/core/port"
)

const (
	defaultMinPasswordLength = 6
	defaultMaxPasswordBytes  = 256
)

// PasswordPolicy is the registration and reset password policy.
type PasswordPolicy struct {
	minLength   int
	maxBytes    int
	minStrength int
}

var _ port.PasswordPolicy = (*PasswordPolicy)(nil)

// NewPasswordPolicy builds a policy; non-positive bounds fall back to defaults
// and maxBytes never exceeds what the hasher accepts.
func NewPasswordPolicy(minLength, maxBytes, minStrength int) *PasswordPolicy {
	if minLength <= 0 {
		minLength = defaultMinPasswordLength
	}
	if maxBytes <= 0 {
		maxBytes = defaultMaxPasswordBytes
	}
	if maxBytes > MaxPasswordBytes {
		maxBytes = MaxPasswordBytes
	}
	return &PasswordPolicy{minLength: minLength, maxBytes: maxBytes, minStrength: minStrength}
}

// DefaultPasswordPolicy matches the original HiFybe frontend: six characters,
// no strength requirement.
func DefaultPasswordPolicy() *PasswordPolicy {
	return NewPasswordPolicy(defaultMinPasswordLength, defaultMaxPasswordBytes, 0)
}

// Validate implements port.PasswordPolicy.
func (p *PasswordPolicy) Validate(password string, userInputs ...string) error {
	if p == nil {
		p = DefaultPasswordPolicy()
	}

	inputs := make([]string, 0, len(userInputs))
	for _, in := range userInputs {
		if trimmed := strings.TrimSpace(in); trimmed != "" {
			inputs = append(inputs, trimmed)
		}
	}

	return NewPasswordValidator(
		NotBlankRule(),
		MinLengthRule(p.minLength),
		MaxLengthRule(p.maxBytes),
		RequirePasswordStrengthRule(p.minStrength, inputs...),
	).Validate(password)
}
