package domain

import "time"

// AccountRegisteredEvent is emitted after a local registration or a first
// external sign-in creates an account.
type AccountRegisteredEvent struct {
	EventID      string
	AccountID    string
	Email        string
	Nickname     *string
	AuthProvider AuthProvider
	RegisteredAt time.Time
}

// AccountLinkedEvent is emitted when an external subject is attached to an
// existing local account.
type AccountLinkedEvent struct {
	EventID   string
	AccountID string
	Provider  AuthProvider
	LinkedAt  time.Time
}

// PasswordResetRequestedEvent carries the raw reset token so a mail consumer
// can deliver it. The token never reaches the logs.
type PasswordResetRequestedEvent struct {
	EventID     string
	AccountID   string
	Email       string
	Token       string
	RequestedAt time.Time
	ExpiresAt   time.Time
}

// PasswordChangedEvent is emitted after a reset redemption.
type PasswordChangedEvent struct {
	EventID   string
	AccountID string
	ChangedAt time.Time
	Reason    string
}
