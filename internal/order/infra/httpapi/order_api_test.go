package httpapi_test

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dwikikusuma/shoping-storefront/internal/apperr"
	"github.com/dwikikusuma/shoping-storefront/internal/backendtwin"
	cartapp "github.com/dwikikusuma/shoping-storefront/internal/cart/app"
	cartapi "github.com/dwikikusuma/shoping-storefront/internal/cart/infra/httpapi"
	"github.com/dwikikusuma/shoping-storefront/internal/gateway"
	"github.com/dwikikusuma/shoping-storefront/internal/order/app"
	"github.com/dwikikusuma/shoping-storefront/internal/order/domain"
	"github.com/dwikikusuma/shoping-storefront/internal/order/infra/httpapi"
	sessionapp "github.com/dwikikusuma/shoping-storefront/internal/session/app"
	sessionapi "github.com/dwikikusuma/shoping-storefront/internal/session/infra/httpapi"
	"github.com/dwikikusuma/shoping-storefront/internal/storage"
	"github.com/dwikikusuma/shoping-storefront/pkg/logger"
)

type env struct {
	twin      *backendtwin.Twin
	cart      *cartapp.Synchronizer
	lifecycle *app.Lifecycle
	kettle    string
	cable     string
}

func newEnv(t *testing.T, opts backendtwin.Options) *env {
	t.Helper()
	tw := backendtwin.New(opts)
	tw.AddUser("amina", "secret1")
	kettle := tw.AddProduct("Kettle", "Kitchenware", 1000, 10)
	cable := tw.AddProduct("Cable", "Accessories", 500, 10)
	srv := httptest.NewServer(tw.Handler())
	t.Cleanup(srv.Close)

	ctx := context.Background()
	store, err := sessionapp.NewStore(ctx, storage.NewMemory(), sessionapi.NewTokenClient(srv.URL, srv.Client()), logger.Discard())
	require.NoError(t, err)
	_, err = store.Login(ctx, "amina", "secret1")
	require.NoError(t, err)

	gw := gateway.New(srv.URL, srv.Client(), store, gateway.WithLogger(logger.Discard()))
	return &env{
		twin:      tw,
		cart:      cartapp.NewSynchronizer(cartapi.NewCartAPI(gw), store, cartapp.WithLogger(logger.Discard())),
		lifecycle: app.NewLifecycle(httpapi.NewOrderAPI(gw), store, logger.Discard()),
		kettle:    strconv.Itoa(kettle),
		cable:     strconv.Itoa(cable),
	}
}

func (e *env) place(t *testing.T, delivery bool) domain.Order {
	t.Helper()
	ctx := context.Background()
	_, err := e.cart.Add(ctx, e.kettle)
	require.NoError(t, err)
	c, err := e.cart.SetQuantity(ctx, e.cart.Cart().Items[0].ID, 2)
	require.NoError(t, err)
	c, err = e.cart.Add(ctx, e.cable)
	require.NoError(t, err)

	o, err := e.lifecycle.Create(ctx, app.CreateRequest{
		Customer: domain.Customer{
			FirstName: "Amina", LastName: "Otieno", Age: 30, Phone: "0700000000",
			Email: "amina@example.com", Gender: "F", Location: "Nairobi",
		},
		Cart:             c,
		Delivery:         delivery,
		PaymentReference: "QWE123XYZ",
	})
	require.NoError(t, err)
	return o
}

func TestOrderAPI_CreateFullResponse(t *testing.T) {
	e := newEnv(t, backendtwin.Options{})
	o := e.place(t, true)

	assert.NotEmpty(t, o.ID)
	assert.Regexp(t, `^EH-\d{7}$`, o.Code)
	assert.Equal(t, domain.StatusPending, o.Status)
	assert.True(t, decimal.NewFromInt(3500).Equal(o.TotalAmount), o.TotalAmount.String())
	assert.True(t, o.TotalAmount.Equal(o.Total()))
	assert.Len(t, o.Items, 2)
	assert.Equal(t, "QWE123XYZ", o.PaymentReference)
	assert.False(t, o.CreatedAt.IsZero())

	// The backend emptied its cart; the local cart only learns that on reload.
	assert.Empty(t, e.twin.CartQuantities("amina"))
	assert.True(t, e.cart.Load(context.Background()).IsEmpty())

	var body map[string]json.RawMessage
	for _, r := range e.twin.Requests() {
		if r.Method == "POST" && r.Path == "/cart/api/orders/" {
			require.NoError(t, json.Unmarshal(r.Body, &body))
		}
	}
	require.NotNil(t, body)
	assert.NotContains(t, string(body["cart"]), "created_at")
	assert.NotContains(t, string(body["cart"]), "session_id")
	assert.JSONEq(t, "30", string(body["age"]))
}

func TestOrderAPI_CreateShortResponse(t *testing.T) {
	e := newEnv(t, backendtwin.Options{ShortOrderResponse: true})
	o := e.place(t, false)

	assert.Regexp(t, `^EH-\d{7}$`, o.Code)
	assert.Equal(t, domain.StatusPending, o.Status)
	assert.True(t, decimal.NewFromInt(2500).Equal(o.TotalAmount))
	assert.Len(t, o.Items, 2, "items filled from the request")
	assert.Equal(t, "Amina", o.Customer.FirstName)
}

func TestOrderAPI_CancelLifecycle(t *testing.T) {
	e := newEnv(t, backendtwin.Options{})
	ctx := context.Background()
	first := e.place(t, false)

	st, err := e.lifecycle.Cancel(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, st)

	st, err = e.lifecycle.Cancel(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, st)

	second := e.place(t, true)
	id, _ := strconv.Atoi(second.ID)
	require.NoError(t, e.twin.SetOrderStatus(id, "Shipping"))

	st, err = e.lifecycle.Cancel(ctx, second.ID)
	assert.ErrorIs(t, err, apperr.ErrConflict)
	assert.Equal(t, domain.StatusShipping, st)

	st, err = e.lifecycle.Track(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusShipping, st)

	orders, err := e.lifecycle.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, domain.StatusCancelled, orders[0].Status)

	filtered, err := e.lifecycle.List(ctx, second.Code[3:])
	require.NoError(t, err)
	require.NotEmpty(t, filtered)
	assert.Equal(t, second.Code, filtered[len(filtered)-1].Code)
}

func TestOrderAPI_BackendValidationSurfaces(t *testing.T) {
	e := newEnv(t, backendtwin.Options{})
	api := httpapi.NewOrderAPI(gateway.New("http://unused.invalid", nil, noSession{}))

	_, err := api.Track(context.Background(), "1")
	assert.ErrorIs(t, err, apperr.ErrUnauthenticated, "auth-only call fails before the network")

	_, err = e.lifecycle.Cancel(context.Background(), "999")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

type noSession struct{}

func (noSession) AccessToken() (string, bool) { return "", false }
func (noSession) RefreshAfter(context.Context, string) (string, error) {
	return "", apperr.Unauthenticated("test")
}
