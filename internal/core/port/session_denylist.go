package port

import (
	"context"
	"time"
)

// SessionDenylist records session token ids revoked before their natural expiry.
type SessionDenylist interface {
	Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}
