package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dwikikusuma/shoping-storefront/internal/apperr"
	catalogapi "github.com/dwikikusuma/shoping-storefront/internal/catalog/infra/httpapi"
	"github.com/dwikikusuma/shoping-storefront/internal/gateway"
	"github.com/dwikikusuma/shoping-storefront/internal/order/domain"
	"github.com/dwikikusuma/shoping-storefront/internal/wire"
)

const (
	pathOrders = "/cart/api/orders/"
	pathCancel = "/orders/%s/cancel/"
	pathTrack  = "/orders/%s/track/"
)

// createdAtLayouts covers Django's naive and aware datetime renderings.
var createdAtLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
}

type orderItemJSON struct {
	Product struct {
		ID    wire.ID         `json:"id"`
		Name  string          `json:"name"`
		Image *string         `json:"image"`
		Price decimal.Decimal `json:"price"`
	} `json:"product"`
	Quantity int `json:"quantity"`
}

type orderJSON struct {
	ID          wire.ID         `json:"id"`
	Items       []orderItemJSON `json:"items"`
	Age         int             `json:"age"`
	CreatedAt   string          `json:"created_at"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	OrderCode   string          `json:"order_code"`
	MpesaCode   string          `json:"mpesa_code"`
	Delivery    bool            `json:"delivery"`
	DeliveryFee decimal.Decimal `json:"delivery_fee"`
	Status      string          `json:"status"`
	FirstName   string          `json:"first_name"`
	LastName    string          `json:"last_name"`
	PhoneNumber string          `json:"phone_number"`
	Email       string          `json:"email"`
	Gender      string          `json:"gender"`
	Location    string          `json:"location"`
}

func (o orderJSON) toDomain() domain.Order {
	out := domain.Order{
		ID:          o.ID.String(),
		Code:        o.OrderCode,
		Delivery:    o.Delivery,
		DeliveryFee: o.DeliveryFee,
		TotalAmount: o.TotalAmount,
		Customer: domain.Customer{
			FirstName: o.FirstName,
			LastName:  o.LastName,
			Age:       o.Age,
			Phone:     o.PhoneNumber,
			Email:     o.Email,
			Gender:    o.Gender,
			Location:  o.Location,
		},
		PaymentReference: o.MpesaCode,
	}
	if o.Status != "" {
		// An unrecognised status stays Unknown rather than failing the list.
		out.Status, _ = domain.ParseStatus(o.Status)
	}
	for _, layout := range createdAtLayouts {
		if t, err := time.Parse(layout, o.CreatedAt); err == nil {
			out.CreatedAt = t
			break
		}
	}
	for _, it := range o.Items {
		item := domain.Item{
			ProductID: it.Product.ID.String(),
			Name:      it.Product.Name,
			UnitPrice: it.Product.Price,
			Quantity:  it.Quantity,
		}
		if it.Product.Image != nil {
			item.Image = *it.Product.Image
		}
		out.Items = append(out.Items, item)
	}
	return out
}

// cartLineJSON is a cart line as the order endpoint expects it, without
// the cart's bookkeeping fields.
type cartLineJSON struct {
	Product struct {
		ID    wire.ID `json:"id"`
		Name  string  `json:"name"`
		Price string  `json:"price"`
	} `json:"product"`
	Quantity int `json:"quantity"`
}

type createOrderJSON struct {
	Cart        []cartLineJSON `json:"cart"`
	FirstName   string         `json:"first_name"`
	LastName    string         `json:"last_name"`
	Age         int            `json:"age"`
	PhoneNumber string         `json:"phone_number"`
	Email       string         `json:"email"`
	Gender      string         `json:"gender"`
	Location    string         `json:"location"`
	MpesaCode   string         `json:"mpesa_code"`
	Delivery    bool           `json:"delivery"`
}

func fromDraft(d domain.Draft) createOrderJSON {
	body := createOrderJSON{
		FirstName:   d.Customer.FirstName,
		LastName:    d.Customer.LastName,
		Age:         d.Customer.Age,
		PhoneNumber: d.Customer.Phone,
		Email:       d.Customer.Email,
		Gender:      d.Customer.Gender,
		Location:    d.Customer.Location,
		MpesaCode:   d.PaymentReference,
		Delivery:    d.Delivery,
	}
	for _, it := range d.Items {
		var line cartLineJSON
		line.Product.ID = wire.ID(it.ProductID)
		line.Product.Name = it.Name
		line.Product.Price = it.UnitPrice.StringFixed(2)
		line.Quantity = it.Quantity
		body.Cart = append(body.Cart, line)
	}
	return body
}

type OrderAPI struct {
	gw catalogapi.Doer
}

func NewOrderAPI(gw catalogapi.Doer) *OrderAPI {
	return &OrderAPI{gw: gw}
}

func (a *OrderAPI) Create(ctx context.Context, draft domain.Draft) (domain.Order, error) {
	// The full serializer and the short {message, order_code,
	// total_amount} answer both decode into orderJSON.
	var out orderJSON
	err := a.gw.Do(ctx, gateway.Request{
		Method: http.MethodPost,
		Path:   pathOrders,
		Body:   fromDraft(draft),
		Auth:   true,
		Op:     "order.create",
	}, &out)
	if err != nil {
		return domain.Order{}, err
	}
	if out.OrderCode == "" {
		return domain.Order{}, apperr.New(apperr.ErrTransport, "order.create", "response has no order code")
	}
	return out.toDomain(), nil
}

func (a *OrderAPI) List(ctx context.Context) ([]domain.Order, error) {
	var rows []orderJSON
	err := a.gw.Do(ctx, gateway.Request{
		Method: http.MethodGet,
		Path:   pathOrders,
		Auth:   true,
		Op:     "order.list",
	}, &rows)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Order, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

func (a *OrderAPI) Cancel(ctx context.Context, orderID string) error {
	return a.gw.Do(ctx, gateway.Request{
		Method: http.MethodPost,
		Path:   fmt.Sprintf(pathCancel, url.PathEscape(orderID)),
		Auth:   true,
		Op:     "order.cancel",
	}, nil)
}

func (a *OrderAPI) Track(ctx context.Context, orderID string) (domain.Status, error) {
	const op = "order.track"
	var out struct {
		OrderID wire.ID `json:"order_id"`
		Status  string  `json:"status"`
	}
	err := a.gw.Do(ctx, gateway.Request{
		Method: http.MethodGet,
		Path:   fmt.Sprintf(pathTrack, url.PathEscape(orderID)),
		Auth:   true,
		Op:     op,
	}, &out)
	if err != nil {
		return domain.StatusUnknown, err
	}
	st, err := domain.ParseStatus(strings.TrimSpace(out.Status))
	if err != nil {
		return domain.StatusUnknown, apperr.Wrap(apperr.ErrTransport, op, err)
	}
	return st, nil
}
