package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/dwikikusuma/shoping-storefront/internal/apperr"
	"github.com/dwikikusuma/shoping-storefront/internal/cart/domain"
	catalogapi "github.com/dwikikusuma/shoping-storefront/internal/catalog/infra/httpapi"
	"github.com/dwikikusuma/shoping-storefront/internal/gateway"
	"github.com/dwikikusuma/shoping-storefront/internal/wire"
)

const (
	pathCart     = "/cart/"
	pathAddItem  = "/api/cart/"
	pathItemEdit = "/cart/%s/"
	pathItemDrop = "/api/cart/%s/"
)

// itemJSON is a cart row. user, session_id and created_at are
// bookkeeping and never leave this package.
type itemJSON struct {
	ID       wire.ID                `json:"id"`
	Product  catalogapi.ProductJSON `json:"product"`
	Quantity int                    `json:"quantity"`
}

type CartAPI struct {
	gw catalogapi.Doer
}

func NewCartAPI(gw catalogapi.Doer) *CartAPI {
	return &CartAPI{gw: gw}
}

func (a *CartAPI) Fetch(ctx context.Context) (domain.Cart, error) {
	const op = "cart.fetch"
	var raw json.RawMessage
	err := a.gw.Do(ctx, gateway.Request{Method: http.MethodGet, Path: pathCart, Auth: true, Op: op}, &raw)
	if err != nil {
		return domain.Cart{}, err
	}
	cart, err := DecodeCart(raw)
	if err != nil {
		return domain.Cart{}, apperr.Wrap(apperr.ErrTransport, op, err)
	}
	return cart, nil
}

func (a *CartAPI) Add(ctx context.Context, productID string, quantity int) error {
	return a.gw.Do(ctx, gateway.Request{
		Method: http.MethodPost,
		Path:   pathAddItem,
		Body: struct {
			ProductID wire.ID `json:"product_id"`
			Quantity  int     `json:"quantity"`
		}{wire.ID(productID), quantity},
		Auth: true,
		Op:   "cart.add",
	}, nil)
}

func (a *CartAPI) SetQuantity(ctx context.Context, itemID string, quantity int) error {
	return a.gw.Do(ctx, gateway.Request{
		Method: http.MethodPatch,
		Path:   fmt.Sprintf(pathItemEdit, url.PathEscape(itemID)),
		Body:   map[string]int{"quantity": quantity},
		Auth:   true,
		Op:     "cart.set_quantity",
	}, nil)
}

func (a *CartAPI) Remove(ctx context.Context, itemID string) error {
	return a.gw.Do(ctx, gateway.Request{
		Method: http.MethodDelete,
		Path:   fmt.Sprintf(pathItemDrop, url.PathEscape(itemID)),
		Auth:   true,
		Op:     "cart.remove",
	}, nil)
}

// DecodeCart accepts every cart body the backend has been seen to send:
// {"cart": [...]}, {"cart": {"<id>": item, ...}}, a bare array, or a bare
// keyed object. Keyed objects keep document order.
func DecodeCart(raw json.RawMessage) (domain.Cart, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '{' {
		var wrapped struct {
			Cart json.RawMessage `json:"cart"`
		}
		if err := json.Unmarshal(raw, &wrapped); err != nil {
			return domain.Cart{}, fmt.Errorf("decoding cart: %w", err)
		}
		if wrapped.Cart != nil {
			raw = wrapped.Cart
		}
	}

	values, err := wire.OrderedValues(raw)
	if err != nil {
		return domain.Cart{}, fmt.Errorf("decoding cart: %w", err)
	}

	var cart domain.Cart
	for _, v := range values {
		var it itemJSON
		if err := json.Unmarshal(v, &it); err != nil {
			return domain.Cart{}, fmt.Errorf("decoding cart item: %w", err)
		}
		cart.Items = append(cart.Items, domain.CartItem{
			ID:       it.ID.String(),
			Product:  it.Product.ToDomain(),
			Quantity: it.Quantity,
		})
	}
	return cart, nil
}
