package adapter

import (
	"context"

	cartapp "github.com/dwikikusuma/shoping-storefront/internal/cart/app"
	"github.com/dwikikusuma/shoping-storefront/internal/cart/domain"
)

type CartServiceReader struct {
	sync *cartapp.Synchronizer
}

func NewCartServiceReader(sync *cartapp.Synchronizer) *CartServiceReader {
	return &CartServiceReader{sync: sync}
}

// GetCart reloads through the synchronizer so its cache follows along.
func (r *CartServiceReader) GetCart(ctx context.Context) (domain.Cart, error) {
	return r.sync.Reload(ctx)
}
