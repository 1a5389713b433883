package app

import (
	"context"

	"github.com/dwikikusuma/shoping-storefront/internal/order/domain"
)

// OrderAPI is the backend's order resource. Create may come back with a
// partially filled order when the backend answers in its short form.
type OrderAPI interface {
	Create(ctx context.Context, draft domain.Draft) (domain.Order, error)
	List(ctx context.Context) ([]domain.Order, error)
	Cancel(ctx context.Context, orderID string) error
	Track(ctx context.Context, orderID string) (domain.Status, error)
}

type SessionChecker interface {
	AccessToken() (string, bool)
}
