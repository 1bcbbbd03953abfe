package port

import (
	"context"

	"github.com/Maarioo25/HiFybe/internal/core/domain"
)

// ExternalIdentityProvider is an OAuth2 provider that turns an authorization
// code into a verified profile.
type ExternalIdentityProvider interface {
	AuthCodeURL(state string) string
	ExchangeCodeForProfile(ctx context.Context, code string) (domain.ExternalProfile, error)
}
