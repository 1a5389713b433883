package domain

import "github.com/shopspring/decimal"

type Product struct {
	ID          string
	Name        string
	Description string
	Category    string
	Price       decimal.Decimal
	Stock       int
	// Image is an absolute URL, empty when the product has none.
	Image string
}

func (p Product) InStock(qty int) bool {
	return qty > 0 && p.Stock >= qty
}
