package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	red "github.com/redis/go-redis/v9"

	"github.com/Maarioo25/HiFybe/internal/core/port"
)

const defaultDenylistPrefix = "session:denylist"

// SessionDenylist stores revoked session token ids until the token would
// have expired anyway.
type SessionDenylist struct {
	client *red.Client
	prefix string
	now    func() time.Time
}

var _ port.SessionDenylist = (*SessionDenylist)(nil)

// NewSessionDenylist wires a Redis client into a denylist.
func NewSessionDenylist(client *red.Client, keyPrefix string) *SessionDenylist {
	prefix := strings.TrimSpace(keyPrefix)
	if prefix == "" {
		prefix = defaultDenylistPrefix
	}

	return &SessionDenylist{client: client, prefix: prefix, now: time.Now}
}

// WithClock overrides the time source; used by tests.
func (d *SessionDenylist) WithClock(now func() time.Time) *SessionDenylist {
	if now != nil {
		d.now = now
	}
	return d
}

// Revoke denylists tokenID for the remaining token lifetime. Tokens already
// past their expiry are not stored.
func (d *SessionDenylist) Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error {
	key := d.key(tokenID)
	if key == "" {
		return errors.New("token id must not be empty")
	}

	ttl := expiresAt.Sub(d.now())
	if ttl <= 0 {
		return nil
	}

	if err := d.client.Set(ctx, key, expiresAt.UTC().Format(time.RFC3339), ttl).Err(); err != nil {
		return fmt.Errorf("redis set revoked session: %w", err)
	}

	return nil
}

// IsRevoked reports whether tokenID was denylisted.
func (d *SessionDenylist) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	key := d.key(tokenID)
	if key == "" {
		return false, errors.New("token id must not be empty")
	}

	n, err := d.client.Exists(ctx, key).Result()
	if err != nil && !errors.Is(err, red.Nil) {
		return false, fmt.Errorf("redis exists revoked session: %w", err)
	}

	return n > 0, nil
}

func (d *SessionDenylist) key(tokenID string) string {
	trimmed := strings.TrimSpace(tokenID)
	if trimmed == "" {
		return ""
	}
	return d.prefix + ":" + trimmed
}
