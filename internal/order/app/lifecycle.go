package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dwikikusuma/shoping-storefront/internal/apperr"
	cart "github.com/dwikikusuma/shoping-storefront/internal/cart/domain"
	"github.com/dwikikusuma/shoping-storefront/internal/order/domain"
)

type CreateRequest struct {
	Customer         domain.Customer
	Cart             cart.Cart
	Delivery         bool
	PaymentReference string
}

type Lifecycle struct {
	api     OrderAPI
	session SessionChecker
	log     *slog.Logger
	now     func() time.Time
}

func NewLifecycle(api OrderAPI, session SessionChecker, log *slog.Logger) *Lifecycle {
	if log == nil {
		log = slog.Default()
	}
	return &Lifecycle{api: api, session: session, log: log, now: time.Now}
}

// ItemsFromCart snapshots cart lines as order items.
func ItemsFromCart(c cart.Cart) []domain.Item {
	items := make([]domain.Item, 0, len(c.Items))
	for _, it := range c.Items {
		items = append(items, domain.Item{
			ProductID: it.Product.ID,
			Name:      it.Product.Name,
			Image:     it.Product.Image,
			UnitPrice: it.Product.Price,
			Quantity:  it.Quantity,
		})
	}
	return items
}

// ComputeTotal is the sum of price times quantity, plus the delivery fee
// when delivery is requested.
func (l *Lifecycle) ComputeTotal(c cart.Cart, delivery bool) decimal.Decimal {
	return domain.Total(ItemsFromCart(c), delivery)
}

// Create places an order for the given cart. Everything that can be
// checked locally is checked before the request goes out. The cart is
// left alone; the backend empties its copy.
func (l *Lifecycle) Create(ctx context.Context, req CreateRequest) (domain.Order, error) {
	const op = "order.create"

	if _, ok := l.session.AccessToken(); !ok {
		return domain.Order{}, apperr.Unauthenticated(op)
	}
	if req.Cart.IsEmpty() {
		return domain.Order{}, apperr.Validation(op, "cart is empty")
	}
	for _, it := range req.Cart.Items {
		if it.Quantity < 1 {
			return domain.Order{}, apperr.Validation(op, "item %s has quantity %d", it.ID, it.Quantity)
		}
	}
	if missing := req.Customer.Missing(); len(missing) > 0 {
		return domain.Order{}, apperr.Validation(op, "missing required fields: %s", strings.Join(missing, ", "))
	}
	ref := strings.TrimSpace(req.PaymentReference)
	if ref == "" {
		return domain.Order{}, apperr.Validation(op, "payment reference is required")
	}

	draft := domain.Draft{
		Items:            ItemsFromCart(req.Cart),
		Customer:         req.Customer,
		Delivery:         req.Delivery,
		PaymentReference: ref,
	}

	created, err := l.api.Create(ctx, draft)
	if err != nil {
		return domain.Order{}, err
	}
	order := l.complete(created, draft)

	l.log.Info("order placed",
		slog.String("order_id", order.ID),
		slog.String("order_code", order.Code),
		slog.String("total", order.TotalAmount.StringFixed(2)),
	)
	return order, nil
}

// complete fills whatever the backend left out from the draft it was
// created from.
func (l *Lifecycle) complete(o domain.Order, d domain.Draft) domain.Order {
	if len(o.Items) == 0 {
		o.Items = d.Items
	}
	if o.Status == domain.StatusUnknown {
		o.Status = domain.StatusPending
	}
	if o.Customer == (domain.Customer{}) {
		o.Customer = d.Customer
	}
	if o.PaymentReference == "" {
		o.PaymentReference = d.PaymentReference
	}
	o.Delivery = o.Delivery || d.Delivery
	if o.Delivery && o.DeliveryFee.IsZero() {
		o.DeliveryFee = domain.DeliveryFee()
	}
	if o.TotalAmount.IsZero() {
		o.TotalAmount = domain.Total(o.Items, o.Delivery)
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = l.now()
	}
	return o
}

// List returns the user's orders, keeping those whose code contains
// filter (case-insensitive) when filter is set.
func (l *Lifecycle) List(ctx context.Context, filter string) ([]domain.Order, error) {
	orders, err := l.api.List(ctx)
	if err != nil {
		return nil, err
	}
	filter = strings.ToLower(strings.TrimSpace(filter))
	if filter == "" {
		return orders, nil
	}
	out := make([]domain.Order, 0, len(orders))
	for _, o := range orders {
		if strings.Contains(strings.ToLower(o.Code), filter) {
			out = append(out, o)
		}
	}
	return out, nil
}

func (l *Lifecycle) Track(ctx context.Context, orderID string) (domain.Status, error) {
	if strings.TrimSpace(orderID) == "" {
		return domain.StatusUnknown, apperr.Validation("order.track", "order id is required")
	}
	return l.api.Track(ctx, orderID)
}

// Cancel moves a Pending order to Cancelled. Cancelling a cancelled order
// succeeds without a request; any other status is a conflict.
func (l *Lifecycle) Cancel(ctx context.Context, orderID string) (domain.Status, error) {
	const op = "order.cancel"

	current, err := l.Track(ctx, orderID)
	if err != nil {
		return domain.StatusUnknown, err
	}
	switch {
	case current == domain.StatusCancelled:
		return current, nil
	case !current.Cancellable():
		return current, notCancellable(op, current, nil)
	}

	err = l.api.Cancel(ctx, orderID)
	if err == nil {
		l.log.Info("order cancelled", slog.String("order_id", orderID))
		return domain.StatusCancelled, nil
	}
	if !errors.Is(err, apperr.ErrValidation) && !errors.Is(err, apperr.ErrConflict) {
		return current, err
	}

	// The order moved between our check and the request.
	now, trackErr := l.api.Track(ctx, orderID)
	if trackErr != nil {
		return current, err
	}
	if now == domain.StatusCancelled {
		return now, nil
	}
	return now, notCancellable(op, now, err)
}

func notCancellable(op string, st domain.Status, cause error) error {
	e := apperr.New(apperr.ErrConflict, op, fmt.Sprintf("order is %s and can no longer be cancelled", st))
	e.Err = cause
	return e
}
