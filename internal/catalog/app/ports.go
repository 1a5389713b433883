package app

import (
	"context"

	"github.com/dwikikusuma/shoping-storefront/internal/catalog/domain"
)

type ProductSource interface {
	List(ctx context.Context) ([]domain.Product, error)
	Get(ctx context.Context, id string) (domain.Product, error)
}
