package adapter_test

import (
	"context"
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
	catalogapp "github.com/dwikikusuma/shoping-storefront/internal/catalog/app"
	catalogapi "github.com/dwikikusuma/shoping-storefront/internal/catalog/infra/httpapi"
	checkoutapp "github.com/dwikikusuma/shoping-storefront/internal/checkout/app"
	"github.com/dwikikusuma/shoping-storefront/internal/checkout/infra/adapter"
	"github.com/dwikikusuma/shoping-storefront/internal/gateway"
	orderapp "github.com/dwikikusuma/shoping-storefront/internal/order/app"
	orderdomain "github.com/dwikikusuma/shoping-storefront/internal/order/domain"
	orderapi "github.com/dwikikusuma/shoping-storefront/internal/order/infra/httpapi"
	sessionapp "github.com/dwikikusuma/shoping-storefront/internal/session/app"
	sessionapi "github.com/dwikikusuma/shoping-storefront/internal/session/infra/httpapi"
	"github.com/dwikikusuma/shoping-storefront/internal/storage"
	"github.com/dwikikusuma/shoping-storefront/pkg/logger"
)

func TestCheckoutEndToEnd(t *testing.T) {
	tw := backendtwin.New(backendtwin.Options{CartShape: backendtwin.CartWrappedMap})
	tw.AddUser("amina", "secret1")
	kettle := strconv.Itoa(tw.AddProduct("Kettle", "Kitchenware", 1000, 3))
	cable := strconv.Itoa(tw.AddProduct("Cable", "Accessories", 500, 3))
	srv := httptest.NewServer(tw.Handler())
	defer srv.Close()

	ctx := context.Background()
	kv := storage.NewMemory()
	store, err := sessionapp.NewStore(ctx, kv, sessionapi.NewTokenClient(srv.URL, srv.Client()), logger.Discard())
	require.NoError(t, err)
	_, err = store.Login(ctx, "amina", "secret1")
	require.NoError(t, err)

	gw := gateway.New(srv.URL, srv.Client(), store, gateway.WithLogger(logger.Discard()))
	sync := cartapp.NewSynchronizer(cartapi.NewCartAPI(gw), store, cartapp.WithLogger(logger.Discard()))
	catalog := catalogapp.NewService(catalogapi.NewProductAPI(gw))
	orders := orderapp.NewLifecycle(orderapi.NewOrderAPI(gw), store, logger.Discard())
	svc := checkoutapp.NewService(
		adapter.NewCartServiceReader(sync),
		adapter.NewCatalogServiceReader(catalog),
		orders, kv, logger.Discard(), 4,
	)

	_, err = sync.Add(ctx, kettle)
	require.NoError(t, err)
	c, err := sync.Add(ctx, cable)
	require.NoError(t, err)
	_, err = sync.SetQuantity(ctx, c.Items[0].ID, 4)
	require.NoError(t, err)

	_, err = svc.Stage(ctx)
	assert.ErrorIs(t, err, checkoutapp.ErrInsufficientStock)

	_, err = sync.SetQuantity(ctx, c.Items[0].ID, 2)
	require.NoError(t, err)
	snap, err := svc.Stage(ctx)
	require.NoError(t, err)
	require.Len(t, snap.Lines, 2)

	// The token expires between staging and paying; placing still works.
	tw.ExpireAccessTokens()

	q, err := svc.Quote(ctx, true)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(3500).Equal(q.Total))

	o, err := svc.Place(ctx, orderdomain.Customer{
		FirstName: "Amina", LastName: "Otieno", Age: 30, Phone: "0700000000",
		Email: "amina@example.com", Gender: "F", Location: "Nairobi",
	}, true, "QWE123XYZ")
	require.NoError(t, err)
	assert.True(t, q.Total.Equal(o.TotalAmount))
	assert.EqualValues(t, 1, tw.RefreshCalls())

	assert.True(t, sync.Cart().IsEmpty(), "cart reloaded after placing")
	_, err = svc.Staged(ctx)
	assert.ErrorIs(t, err, apperr.ErrValidation)
}
