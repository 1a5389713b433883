package httpapi_test

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/dwikikusuma/shoping-storefront/internal/apperr"
	"github.com/dwikikusuma/shoping-storefront/internal/backendtwin"
	"github.com/dwikikusuma/shoping-storefront/internal/cart/app"
	"github.com/dwikikusuma/shoping-storefront/internal/cart/infra/httpapi"
	"github.com/dwikikusuma/shoping-storefront/internal/gateway"
	sessionapp "github.com/dwikikusuma/shoping-storefront/internal/session/app"
	sessionapi "github.com/dwikikusuma/shoping-storefront/internal/session/infra/httpapi"
	"github.com/dwikikusuma/shoping-storefront/internal/storage"
	"github.com/dwikikusuma/shoping-storefront/pkg/logger"
)

func TestDecodeCart_ShapesAgree(t *testing.T) {
	a := `{"id":10,"product":{"id":3,"name":"Kettle","price":"1000.00","stock":5},"quantity":2,"user":1,"session_id":null}`
	b := `{"id":2,"product":{"id":8,"name":"Cable","price":500,"stock":5},"quantity":1,"user":1,"session_id":null}`

	// "10" sorts before "2" as a string and after it as a number; document
	// order must win over both.
	bodies := map[string]string{
		"wrapped list": `{"cart":[` + a + `,` + b + `]}`,
		"wrapped map":  `{"cart":{"10":` + a + `,"2":` + b + `}}`,
		"bare list":    `[` + a + `,` + b + `]`,
		"bare map":     `{"10":` + a + `,"2":` + b + `}`,
	}

	want, err := httpapi.DecodeCart(json.RawMessage(bodies["wrapped list"]))
	require.NoError(t, err)
	require.Len(t, want.Items, 2)
	assert.Equal(t, "10", want.Items[0].ID)
	assert.Equal(t, "3", want.Items[0].Product.ID)
	assert.Equal(t, "2500", want.Subtotal().String())

	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			got, err := httpapi.DecodeCart(json.RawMessage(body))
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}

	t.Run("empty", func(t *testing.T) {
		for _, body := range []string{`{"cart":[]}`, `{"cart":{}}`, `[]`, `{"cart":null}`} {
			got, err := httpapi.DecodeCart(json.RawMessage(body))
			require.NoError(t, err, body)
			assert.True(t, got.IsEmpty(), body)
		}
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := httpapi.DecodeCart(json.RawMessage(`"nope"`))
		assert.Error(t, err)
	})
}

type env struct {
	twin    *backendtwin.Twin
	session *sessionapp.Store
	sync    *app.Synchronizer
	kettle  int
	cable   int
}

func newEnv(t *testing.T, shape backendtwin.CartShape) *env {
	t.Helper()
	tw := backendtwin.New(backendtwin.Options{CartShape: shape})
	tw.AddUser("amina", "secret1")
	kettle := tw.AddProduct("Kettle", "Kitchenware", 1000, 200)
	cable := tw.AddProduct("Cable", "Accessories", 500, 200)
	srv := httptest.NewServer(tw.Handler())
	t.Cleanup(srv.Close)

	ctx := context.Background()
	store, err := sessionapp.NewStore(ctx, storage.NewMemory(), sessionapi.NewTokenClient(srv.URL, srv.Client()), logger.Discard())
	require.NoError(t, err)
	_, err = store.Login(ctx, "amina", "secret1")
	require.NoError(t, err)

	gw := gateway.New(srv.URL, srv.Client(), store, gateway.WithLogger(logger.Discard()))
	s := app.NewSynchronizer(httpapi.NewCartAPI(gw), store, app.WithLogger(logger.Discard()))
	return &env{twin: tw, session: store, sync: s, kettle: kettle, cable: cable}
}

func TestCartAPI_AgainstEveryShape(t *testing.T) {
	for _, tc := range []struct {
		name  string
		shape backendtwin.CartShape
	}{
		{"wrapped list", backendtwin.CartWrappedList},
		{"wrapped map", backendtwin.CartWrappedMap},
		{"bare list", backendtwin.CartBareList},
	} {
		t.Run(tc.name, func(t *testing.T) {
			e := newEnv(t, tc.shape)
			ctx := context.Background()

			_, err := e.sync.Add(ctx, strconv.Itoa(e.kettle))
			require.NoError(t, err)
			cart, err := e.sync.Add(ctx, strconv.Itoa(e.cable))
			require.NoError(t, err)

			require.Len(t, cart.Items, 2)
			assert.Equal(t, "Kettle", cart.Items[0].Product.Name)
			assert.Equal(t, "Cable", cart.Items[1].Product.Name)

			kettleLine := cart.Items[0].ID
			cart, err = e.sync.SetQuantity(ctx, kettleLine, 3)
			require.NoError(t, err)
			assert.Equal(t, 4, cart.Count())
			assert.Equal(t, "3500", cart.Subtotal().String())

			cart, err = e.sync.SetQuantity(ctx, kettleLine, 0)
			require.NoError(t, err)
			require.Len(t, cart.Items, 1)
			assert.Equal(t, map[int]int{e.cable: 1}, e.twin.CartQuantities("amina"))

			for _, r := range e.twin.Requests() {
				if r.Method == "PATCH" {
					assert.NotContains(t, string(r.Body), `"quantity":0`)
				}
			}

			// Removing twice is fine.
			_, err = e.sync.Remove(ctx, kettleLine)
			require.NoError(t, err)
		})
	}
}

func TestCartAPI_ExpiredTokenIsRefreshedTransparently(t *testing.T) {
	e := newEnv(t, backendtwin.CartWrappedList)
	e.twin.ExpireAccessTokens()

	cart, err := e.sync.Add(context.Background(), strconv.Itoa(e.kettle))
	require.NoError(t, err)
	assert.Equal(t, 1, cart.Count())
	assert.EqualValues(t, 1, e.twin.RefreshCalls())
}

func TestCartAPI_LoggedOutLoadIsEmpty(t *testing.T) {
	e := newEnv(t, backendtwin.CartWrappedList)
	require.NoError(t, e.session.Logout(context.Background()))

	cart := e.sync.Load(context.Background())
	assert.True(t, cart.IsEmpty())
	assert.ErrorIs(t, e.sync.Err(), apperr.ErrUnauthenticated)
}

func TestCart_ConcurrentAddItemIncrement(t *testing.T) {
	e := newEnv(t, backendtwin.CartWrappedMap)
	productID := strconv.Itoa(e.kettle)

	const N = 50
	g, ctx := errgroup.WithContext(context.Background())
	for i := 0; i < N; i++ {
		g.Go(func() error {
			_, err := e.sync.Add(ctx, productID)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("concurrent Add failed: %v", err)
	}

	if got := e.twin.CartQuantities("amina")[e.kettle]; got != N {
		t.Fatalf("expected quantity=%d on the server, got=%d", N, got)
	}
	// A reload that landed may predate a sibling's POST; one more load
	// settles the cache.
	e.sync.Load(context.Background())
	if got := e.sync.Count(); got != N {
		t.Fatalf("expected synchronized count=%d, got=%d", N, got)
	}
}
