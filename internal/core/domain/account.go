package domain

import (
	"strings"
	"time"
)

// AuthProvider records how an account was first established.
type AuthProvider string

const (
	AuthProviderLocal  AuthProvider = "local"
	AuthProviderGoogle AuthProvider = "google"
)

// ResetState is the password reset lifecycle of a single account.
type ResetState string

const (
	ResetStateNone    ResetState = "none"
	ResetStatePending ResetState = "pending"
	ResetStateExpired ResetState = "expired"
)

// Account mirrors the persisted representation in the accounts table.
// PasswordHash, ResetTokenHash, ResetExpiresAt and Version never leave the service.
type Account struct {
	ID             string
	Name           string
	Surname        string
	Nickname       *string
	Email          string
	PasswordHash   string
	AuthProvider   AuthProvider
	ExternalID     *string
	Bio            string
	AvatarURL      string
	Latitude       *float64
	Longitude      *float64
	RegisteredAt   time.Time
	LastSeenAt     *time.Time
	ResetTokenHash *string
	ResetExpiresAt *time.Time
	Version        int
	UpdatedAt      time.Time
}

// HasPassword reports whether local credentials exist.
func (a *Account) HasPassword() bool {
	return a != nil && a.PasswordHash != ""
}

// IsLinked reports whether an external provider subject is attached.
func (a *Account) IsLinked() bool {
	return a != nil && a.ExternalID != nil && *a.ExternalID != ""
}

// HasUsableAuthMethod holds for every persisted account.
func (a *Account) HasUsableAuthMethod() bool {
	return a.HasPassword() || a.IsLinked()
}

// ResetStateAt derives the reset lifecycle position at the given instant.
func (a *Account) ResetStateAt(now time.Time) ResetState {
	if a == nil || a.ResetTokenHash == nil || a.ResetExpiresAt == nil {
		return ResetStateNone
	}
	if !now.Before(*a.ResetExpiresAt) {
		return ResetStateExpired
	}
	return ResetStatePending
}

// NormalizeEmail lowercases and trims an email so uniqueness is case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NormalizeNickname trims a nickname and maps blank input to nil.
func NormalizeNickname(nickname string) *string {
	trimmed := strings.TrimSpace(nickname)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

// ExternalProfile is the verified identity returned by an external provider.
type ExternalProfile struct {
	Provider      AuthProvider
	SubjectID     string
	Email         string
	EmailVerified bool
	Name          string
	GivenName     string
	FamilyName    string
	PictureURL    string
}

// SplitName returns first name and surname, preferring the provider's own split.
func (p ExternalProfile) SplitName() (string, string) {
	if p.GivenName != "" {
		return p.GivenName, p.FamilyName
	}
	parts := strings.Fields(p.Name)
	switch len(parts) {
	case 0:
		return "", ""
	case 1:
		return parts[0], ""
	default:
		return parts[0], strings.Join(parts[1:], " ")
	}
}
