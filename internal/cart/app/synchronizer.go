package app

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/dwikikusuma/shoping-storefront/internal/apperr"
	"github.com/dwikikusuma/shoping-storefront/internal/cart/domain"
)

// Synchronizer keeps a local copy of the server cart. Every mutation is
// followed by a reload. Only mutations advance the sequence: a mutation's
// reload lands if no later mutation has been issued, and a plain load
// lands only if no mutation was issued or in flight while it ran.
type Synchronizer struct {
	api     CartAPI
	session SessionChecker
	log     *slog.Logger
	onError func(error)

	mu       sync.Mutex
	issued   uint64 // mutations started
	inflight int    // mutations whose request has not returned
	fetched  uint64 // fetches started
	landed   uint64 // fetch number of the result in cart
	cart     domain.Cart
	lastErr  error
}

// ticket identifies one fetch and what it may overwrite.
type ticket struct {
	seq     uint64
	fetch   uint64
	blocked bool
}

type Option func(*Synchronizer)

func WithLogger(log *slog.Logger) Option {
	return func(s *Synchronizer) {
		if log != nil {
			s.log = log
		}
	}
}

// WithErrorHandler is called with every failed load that lands, including
// the reloads that follow mutations. Stale failures are dropped silently.
func WithErrorHandler(fn func(error)) Option {
	return func(s *Synchronizer) { s.onError = fn }
}

func NewSynchronizer(api CartAPI, session SessionChecker, opts ...Option) *Synchronizer {
	s := &Synchronizer{
		api:     api,
		session: session,
		log:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Synchronizer) Cart() domain.Cart {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart.Clone()
}

func (s *Synchronizer) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart.Count()
}

// Err is the error of the most recent load that was allowed to land, nil
// after a successful one.
func (s *Synchronizer) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Load reads the server cart. It never fails: on error it returns an
// empty cart and reports through Err and the error handler.
func (s *Synchronizer) Load(ctx context.Context) domain.Cart {
	cart, err := s.reload(ctx, s.loadTicket())
	if err != nil {
		return domain.Cart{}
	}
	return cart
}

// Reload is Load for callers that need the failure: the cache degrades
// the same way but the error is returned too.
func (s *Synchronizer) Reload(ctx context.Context) (domain.Cart, error) {
	return s.reload(ctx, s.loadTicket())
}

// Add puts one unit of productID in the cart.
func (s *Synchronizer) Add(ctx context.Context, productID string) (domain.Cart, error) {
	const op = "cart.add"
	if err := s.requireSession(op); err != nil {
		return s.Cart(), err
	}
	if productID == "" {
		return s.Cart(), apperr.Validation(op, "product id is required")
	}

	seq := s.begin()
	err := s.api.Add(ctx, productID, 1)
	return s.settle(ctx, seq, op, err)
}

// SetQuantity sets an item's quantity. Anything below one removes the
// item instead.
func (s *Synchronizer) SetQuantity(ctx context.Context, itemID string, quantity int) (domain.Cart, error) {
	if quantity < 1 {
		return s.Remove(ctx, itemID)
	}

	const op = "cart.set_quantity"
	if err := s.requireSession(op); err != nil {
		return s.Cart(), err
	}

	seq := s.begin()
	err := s.api.SetQuantity(ctx, itemID, quantity)
	return s.settle(ctx, seq, op, err)
}

// Remove deletes an item. An item the server no longer has counts as
// removed.
func (s *Synchronizer) Remove(ctx context.Context, itemID string) (domain.Cart, error) {
	const op = "cart.remove"
	if err := s.requireSession(op); err != nil {
		return s.Cart(), err
	}

	seq := s.begin()
	err := s.api.Remove(ctx, itemID)
	if errors.Is(err, apperr.ErrNotFound) {
		s.log.Debug("cart item already gone", slog.String("item_id", itemID))
		err = nil
	}
	return s.settle(ctx, seq, op, err)
}

func (s *Synchronizer) requireSession(op string) error {
	if _, ok := s.session.AccessToken(); !ok {
		return apperr.Unauthenticated(op)
	}
	return nil
}

func (s *Synchronizer) begin() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.issued++
	s.inflight++
	return s.issued
}

// loadTicket starts a plain load. It carries the current mutation sequence
// without advancing it and is blocked while any mutation is in flight; that
// mutation's own reload will follow.
func (s *Synchronizer) loadTicket() ticket {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetched++
	return ticket{seq: s.issued, fetch: s.fetched, blocked: s.inflight > 0}
}

// settleTicket ends mutation seq and starts its reload.
func (s *Synchronizer) settleTicket(seq uint64) ticket {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inflight--
	s.fetched++
	return ticket{seq: seq, fetch: s.fetched}
}

// settle reconciles after a mutation whether or not it succeeded; the
// server may have applied a request whose response we never saw.
func (s *Synchronizer) settle(ctx context.Context, seq uint64, op string, mutErr error) (domain.Cart, error) {
	if mutErr != nil {
		s.log.Warn("cart mutation failed", slog.String("op", op), slog.Any("err", mutErr))
	}
	_, _ = s.reload(ctx, s.settleTicket(seq))
	return s.Cart(), mutErr
}

func (s *Synchronizer) reload(ctx context.Context, t ticket) (domain.Cart, error) {
	cart, err := s.api.Fetch(ctx)

	s.mu.Lock()
	if t.blocked || t.seq != s.issued || t.fetch < s.landed {
		current := s.cart.Clone()
		issued := s.issued
		s.mu.Unlock()
		s.log.Debug("discarding stale cart reload",
			slog.Uint64("seq", t.seq), slog.Uint64("issued", issued), slog.Bool("blocked", t.blocked))
		if err != nil {
			return domain.Cart{}, err
		}
		return current, nil
	}
	s.landed = t.fetch
	if err != nil {
		s.cart = domain.Cart{}
		s.lastErr = err
	} else {
		s.cart = cart.Clone()
		s.lastErr = nil
	}
	handler := s.onError
	s.mu.Unlock()

	if err != nil {
		s.log.Warn("cart load failed, showing empty cart", slog.Any("err", err))
		if handler != nil {
			handler(err)
		}
		return domain.Cart{}, err
	}
	return cart.Clone(), nil
}
