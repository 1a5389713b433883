package app

import (
	"context"

	"github.com/dwikikusuma/shoping-storefront/internal/cart/domain"
)

// CartAPI is the backend's cart resource. Implementations normalise the
// response shape; callers always get an ordered cart.
type CartAPI interface {
	Fetch(ctx context.Context) (domain.Cart, error)
	Add(ctx context.Context, productID string, quantity int) error
	SetQuantity(ctx context.Context, itemID string, quantity int) error
	Remove(ctx context.Context, itemID string) error
}

// SessionChecker reports whether a session exists.
type SessionChecker interface {
	AccessToken() (string, bool)
}
