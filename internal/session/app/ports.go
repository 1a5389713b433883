package app

import (
	"context"

	"github.com/dwikikusuma/shoping-storefront/internal/session/domain"
)

// TokenIssuer talks to the token endpoints. It must not go through the
// gateway: refreshing through the component that triggers refreshes would
// recurse.
type TokenIssuer interface {
	Obtain(ctx context.Context, username, password string) (domain.TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (domain.TokenPair, error)
	Register(ctx context.Context, username, password string) error
}
