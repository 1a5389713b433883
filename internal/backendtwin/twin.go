// Package backendtwin is an in-process stand-in for the commerce backend.
// It speaks the same routes, token semantics and JSON shapes as the real
// service closely enough for the client layers to be exercised end to end,
// and exposes knobs (token expiry, refresh revocation, cart shape, order
// status) that tests drive directly.
package backendtwin

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
)

// CartShape selects how GET /cart/ serialises the cart.
type CartShape int

const (
	// CartWrappedList answers {"cart": [item, ...]}.
	CartWrappedList CartShape = iota
	// CartWrappedMap answers {"cart": {"<id>": item, ...}} in insertion order.
	CartWrappedMap
	// CartBareList answers [item, ...].
	CartBareList
)

const DeliveryFee = 1000

type Options struct {
	CartShape CartShape
	AccessTTL time.Duration
	// RefreshDelay holds every refresh response, giving concurrent
	// callers time to pile up behind one refresh.
	RefreshDelay time.Duration
	// RotateRefresh makes refresh tokens single-use and returns a new one.
	RotateRefresh bool
	// ShortOrderResponse answers order creation with only
	// {message, order_code, total_amount}.
	ShortOrderResponse bool
	// Before runs ahead of every handler; tests use it to hold requests.
	Before func(r *http.Request)
	Logger *slog.Logger
}

// Request is one recorded call.
type Request struct {
	Method string
	Path   string
	Body   []byte
}

type user struct {
	id       int
	username string
	password string
}

type Product struct {
	ID          int             `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	Image       *string         `json:"image"`
	Category    string          `json:"category"`
}

type cartItem struct {
	id        int
	productID int
	quantity  int
	createdAt time.Time
}

type orderItem struct {
	product  Product
	quantity int
}

type order struct {
	id        int
	userID    int
	code      string
	items     []orderItem
	total     decimal.Decimal
	mpesa     string
	delivery  bool
	fee       decimal.Decimal
	status    string
	createdAt time.Time

	firstName, lastName, phone, email, gender, location string
	age                                                 int
}

type Twin struct {
	opts   Options
	log    *slog.Logger
	secret []byte

	mu       sync.Mutex
	users    map[string]*user
	products []*Product
	carts    map[int][]*cartItem
	orders   []*order
	nextID   map[string]int
	requests []Request

	accessGen    atomic.Int64
	refreshGen   atomic.Int64
	usedRefresh  sync.Map
	refreshCalls atomic.Int64
}

func New(opts Options) *Twin {
	if opts.AccessTTL <= 0 {
		opts.AccessTTL = 5 * time.Minute
	}
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	secret := make([]byte, 32)
	for i := range secret {
		secret[i] = byte(rand.IntN(256))
	}
	return &Twin{
		opts:   opts,
		log:    log,
		secret: secret,
		users:  make(map[string]*user),
		carts:  make(map[int][]*cartItem),
		nextID: make(map[string]int),
	}
}

func (t *Twin) next(kind string) int {
	t.nextID[kind]++
	return t.nextID[kind]
}

func (t *Twin) AddUser(username, password string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.users[username] = &user{id: t.next("user"), username: username, password: password}
}

// AddProduct seeds the catalog and returns the product id.
func (t *Twin) AddProduct(name, category string, price int64, stock int) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	p := &Product{
		ID:       t.next("product"),
		Name:     name,
		Price:    decimal.NewFromInt(price),
		Stock:    stock,
		Category: category,
	}
	t.products = append(t.products, p)
	return p.ID
}

// ExpireAccessTokens invalidates every access token minted so far.
func (t *Twin) ExpireAccessTokens() { t.accessGen.Add(1) }

// RevokeRefreshTokens invalidates every refresh token minted so far.
func (t *Twin) RevokeRefreshTokens() { t.refreshGen.Add(1) }

func (t *Twin) RefreshCalls() int64 { return t.refreshCalls.Load() }

func (t *Twin) Requests() []Request {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Request, len(t.requests))
	copy(out, t.requests)
	return out
}

// SetOrderStatus moves an order the way the shop's back office would.
func (t *Twin) SetOrderStatus(orderID int, status string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, o := range t.orders {
		if o.id == orderID {
			o.status = status
			return nil
		}
	}
	return fmt.Errorf("order %d not found", orderID)
}

// CartQuantities returns product id -> quantity for a user's cart.
func (t *Twin) CartQuantities(username string) map[int]int {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[int]int)
	u, ok := t.users[username]
	if !ok {
		return out
	}
	for _, it := range t.carts[u.id] {
		out[it.productID] = it.quantity
	}
	return out
}

func (t *Twin) productByID(id int) *Product {
	for _, p := range t.products {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func (t *Twin) record(r *http.Request, body []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.requests = append(t.requests, Request{Method: r.Method, Path: r.URL.Path, Body: body})
}

func orderCode() string {
	return fmt.Sprintf("EH-%d", 1000000+rand.IntN(9000000))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}
