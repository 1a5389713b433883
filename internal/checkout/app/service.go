package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/dwikikusuma/shoping-storefront/internal/apperr"
	cart "github.com/dwikikusuma/shoping-storefront/internal/cart/domain"
	"github.com/dwikikusuma/shoping-storefront/internal/checkout/domain"
	orderapp "github.com/dwikikusuma/shoping-storefront/internal/order/app"
	order "github.com/dwikikusuma/shoping-storefront/internal/order/domain"
	"github.com/dwikikusuma/shoping-storefront/internal/storage"
)

type CartReader interface {
	GetCart(ctx context.Context) (cart.Cart, error)
}

type CatalogReader interface {
	GetProduct(ctx context.Context, productID string) (Product, error)
}

type Product struct {
	ID    string
	Name  string
	Stock int
}

type OrderPlacer interface {
	ComputeTotal(c cart.Cart, delivery bool) decimal.Decimal
	Create(ctx context.Context, req orderapp.CreateRequest) (order.Order, error)
}

var (
	ErrEmptyCart         = errors.New("cart is empty")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrNotStaged         = errors.New("no staged cart")
)

type Service struct {
	Cart    CartReader
	Catalog CatalogReader
	Orders  OrderPlacer

	kv            storage.KV
	log           *slog.Logger
	maxConcurrent int
}

func NewService(cart CartReader, catalog CatalogReader, orders OrderPlacer, kv storage.KV, log *slog.Logger, maxConcurrent int) *Service {
	if maxConcurrent <= 0 {
		maxConcurrent = 10
	}
	if log == nil {
		log = slog.Default()
	}

	return &Service{
		Cart:          cart,
		Catalog:       catalog,
		Orders:        orders,
		kv:            kv,
		log:           log,
		maxConcurrent: maxConcurrent,
	}
}

// Stage reads the live cart, checks every line against current stock and
// saves the result as the snapshot the payment step works from.
func (s *Service) Stage(ctx context.Context) (domain.Snapshot, error) {
	const op = "checkout.stage"

	c, err := s.Cart.GetCart(ctx)
	if err != nil {
		return domain.Snapshot{}, err
	}
	if c.IsEmpty() {
		return domain.Snapshot{}, apperr.Wrap(apperr.ErrValidation, op, ErrEmptyCart)
	}

	lines := make([]domain.QuoteLine, len(c.Items))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.maxConcurrent)

	for idx := range c.Items {
		g.Go(func() error {
			it := c.Items[idx]
			if it.Quantity <= 0 {
				return apperr.Validation(op, "quantity must be greater than zero: %d", it.Quantity)
			}

			product, err := s.Catalog.GetProduct(gctx, it.Product.ID)
			if err != nil {
				return fmt.Errorf("failed to get product %s: %w", it.Product.ID, err)
			}
			if product.Stock < it.Quantity {
				return &apperr.Error{
					Kind:    apperr.ErrValidation,
					Op:      op,
					Message: fmt.Sprintf("only %d of %s left, %d in cart", product.Stock, product.Name, it.Quantity),
					Err:     ErrInsufficientStock,
				}
			}

			lines[idx] = domain.QuoteLine{
				ItemID:    it.ID,
				ProductID: it.Product.ID,
				Name:      it.Product.Name,
				Image:     it.Product.Image,
				Quantity:  it.Quantity,
				UnitPrice: it.Product.Price,
				LineTotal: it.LineTotal(),
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return domain.Snapshot{}, err
	}

	snap := domain.Snapshot{Lines: lines, StagedAt: time.Now().UTC()}
	raw, err := json.Marshal(snap)
	if err != nil {
		return domain.Snapshot{}, err
	}
	if err := s.kv.Set(ctx, storage.KeyCartSnapshot, raw); err != nil {
		return domain.Snapshot{}, fmt.Errorf("saving cart snapshot: %w", err)
	}

	s.log.Info("cart staged for checkout", slog.Int("lines", len(lines)))
	return snap, nil
}

// Staged returns the saved snapshot.
func (s *Service) Staged(ctx context.Context) (domain.Snapshot, error) {
	raw, err := s.kv.Get(ctx, storage.KeyCartSnapshot)
	if errors.Is(err, storage.ErrNotFound) {
		return domain.Snapshot{}, apperr.Wrap(apperr.ErrValidation, "checkout.staged", ErrNotStaged)
	}
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("reading cart snapshot: %w", err)
	}

	var snap domain.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return domain.Snapshot{}, fmt.Errorf("decoding cart snapshot: %w", err)
	}
	return snap, nil
}

func (s *Service) Quote(ctx context.Context, delivery bool) (domain.Quote, error) {
	snap, err := s.Staged(ctx)
	if err != nil {
		return domain.Quote{}, err
	}

	c := snap.Cart()
	q := domain.Quote{
		Lines:    snap.Lines,
		Subtotal: s.Orders.ComputeTotal(c, false),
		Delivery: delivery,
		Total:    s.Orders.ComputeTotal(c, delivery),
	}
	q.DeliveryFee = q.Total.Sub(q.Subtotal)
	return q, nil
}

// Place turns the staged snapshot into an order, then drops the snapshot
// and re-reads the cart the backend has just emptied.
func (s *Service) Place(ctx context.Context, customer order.Customer, delivery bool, paymentRef string) (order.Order, error) {
	snap, err := s.Staged(ctx)
	if err != nil {
		return order.Order{}, err
	}

	placed, err := s.Orders.Create(ctx, orderapp.CreateRequest{
		Customer:         customer,
		Cart:             snap.Cart(),
		Delivery:         delivery,
		PaymentReference: paymentRef,
	})
	if err != nil {
		return order.Order{}, err
	}

	if err := s.kv.Delete(ctx, storage.KeyCartSnapshot); err != nil {
		s.log.Warn("dropping cart snapshot failed", slog.Any("err", err))
	}
	if _, err := s.Cart.GetCart(ctx); err != nil {
		s.log.Warn("reloading cart after order failed", slog.Any("err", err))
	}
	return placed, nil
}
