package domain

import (
	"time"

	"github.com/shopspring/decimal"

	cart "github.com/dwikikusuma/shoping-storefront/internal/cart/domain"
	catalog "github.com/dwikikusuma/shoping-storefront/internal/catalog/domain"
)

type QuoteLine struct {
	ItemID    string          `json:"item_id"`
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	Image     string          `json:"image,omitempty"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	LineTotal decimal.Decimal `json:"line_total"`
}

// Snapshot is the cart as it was when the user left it for payment. It is
// persisted between runs and read back when the order is placed.
type Snapshot struct {
	Lines    []QuoteLine `json:"lines"`
	StagedAt time.Time   `json:"staged_at"`
}

// Cart rebuilds the cart the snapshot was taken from.
func (s Snapshot) Cart() cart.Cart {
	c := cart.Cart{Items: make([]cart.CartItem, 0, len(s.Lines))}
	for _, ln := range s.Lines {
		c.Items = append(c.Items, cart.CartItem{
			ID: ln.ItemID,
			Product: catalog.Product{
				ID:    ln.ProductID,
				Name:  ln.Name,
				Image: ln.Image,
				Price: ln.UnitPrice,
			},
			Quantity: ln.Quantity,
		})
	}
	return c
}

type Quote struct {
	Lines       []QuoteLine
	Subtotal    decimal.Decimal
	Delivery    bool
	DeliveryFee decimal.Decimal
	Total       decimal.Decimal
}
