package domain

import (
	"github.com/shopspring/decimal"

	catalog "github.com/dwikikusuma/shoping-storefront/internal/catalog/domain"
)

// CartItem is one line. Product is a snapshot taken when the cart was read.
type CartItem struct {
	ID       string
	Product  catalog.Product
	Quantity int
}

func (it CartItem) LineTotal() decimal.Decimal {
	return it.Product.Price.Mul(decimal.NewFromInt(int64(it.Quantity)))
}

// Cart is the server's cart as last read, in server order.
type Cart struct {
	Items []CartItem
}

func (c Cart) IsEmpty() bool { return len(c.Items) == 0 }

// Count is the number of units across all lines.
func (c Cart) Count() int {
	n := 0
	for _, it := range c.Items {
		n += it.Quantity
	}
	return n
}

func (c Cart) Subtotal() decimal.Decimal {
	total := decimal.Zero
	for _, it := range c.Items {
		total = total.Add(it.LineTotal())
	}
	return total
}

func (c Cart) Item(id string) (CartItem, bool) {
	for _, it := range c.Items {
		if it.ID == id {
			return it, true
		}
	}
	return CartItem{}, false
}

func (c Cart) ItemForProduct(productID string) (CartItem, bool) {
	for _, it := range c.Items {
		if it.Product.ID == productID {
			return it, true
		}
	}
	return CartItem{}, false
}

// Clone copies the item slice so callers cannot alias cached state.
func (c Cart) Clone() Cart {
	if c.Items == nil {
		return Cart{}
	}
	items := make([]CartItem, len(c.Items))
	copy(items, c.Items)
	return Cart{Items: items}
}
