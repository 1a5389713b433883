package httpapi

import (
	"context"
	"net/http"
	"net/url"

	"github.com/shopspring/decimal"

	"github.com/dwikikusuma/shoping-storefront/internal/catalog/domain"
	"github.com/dwikikusuma/shoping-storefront/internal/gateway"
	"github.com/dwikikusuma/shoping-storefront/internal/wire"
)

// Doer is the gateway surface the adapters need.
type Doer interface {
	Do(ctx context.Context, req gateway.Request, out any) error
}

// ProductJSON is the backend's product serializer. Cart lines embed the
// same shape.
type ProductJSON struct {
	ID          wire.ID         `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	Image       *string         `json:"image"`
}

func (p ProductJSON) ToDomain() domain.Product {
	out := domain.Product{
		ID:          p.ID.String(),
		Name:        p.Name,
		Description: p.Description,
		Category:    p.Category,
		Price:       p.Price,
		Stock:       p.Stock,
	}
	if p.Image != nil {
		out.Image = *p.Image
	}
	return out
}

type ProductAPI struct {
	gw Doer
}

func NewProductAPI(gw Doer) *ProductAPI {
	return &ProductAPI{gw: gw}
}

func (a *ProductAPI) List(ctx context.Context) ([]domain.Product, error) {
	var rows []ProductJSON
	err := a.gw.Do(ctx, gateway.Request{
		Method: http.MethodGet,
		Path:   "/api/products/",
		Op:     "catalog.list",
	}, &rows)
	if err != nil {
		return nil, err
	}

	out := make([]domain.Product, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.ToDomain())
	}
	return out, nil
}

func (a *ProductAPI) Get(ctx context.Context, id string) (domain.Product, error) {
	var row ProductJSON
	err := a.gw.Do(ctx, gateway.Request{
		Method: http.MethodGet,
		Path:   "/api/products/" + url.PathEscape(id) + "/",
		Op:     "catalog.get",
	}, &row)
	if err != nil {
		return domain.Product{}, err
	}
	return row.ToDomain(), nil
}
