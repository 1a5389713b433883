package app

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/dwikikusuma/shoping-storefront/internal/apperr"
	"github.com/dwikikusuma/shoping-storefront/internal/catalog/domain"
)

type fakeSource struct {
	products []domain.Product
	err      error
}

func (f fakeSource) List(ctx context.Context) ([]domain.Product, error) { return f.products, f.err }
func (f fakeSource) Get(ctx context.Context, id string) (domain.Product, error) {
	for _, p := range f.products {
		if p.ID == id {
			return p, nil
		}
	}
	return domain.Product{}, apperr.New(apperr.ErrNotFound, "catalog.get", "Not found.")
}

var catalog = []domain.Product{
	{ID: "1", Name: "Router AX3000", Category: "Networking & Connectivity", Price: decimal.NewFromInt(8500), Stock: 4},
	{ID: "2", Name: "Frying Pan", Description: "non-stick", Category: "Kitchenware", Price: decimal.NewFromInt(1200), Stock: 0},
	{ID: "3", Name: "HDMI cable", Category: "Accessories", Price: decimal.NewFromInt(300), Stock: 20},
}

func ids(ps []domain.Product) []string {
	out := make([]string, 0, len(ps))
	for _, p := range ps {
		out = append(out, p.ID)
	}
	return out
}

func TestListProductsFilter(t *testing.T) {
	svc := NewService(fakeSource{products: catalog})

	cases := []struct {
		name, query, category string
		want                  []string
	}{
		{"no filter -> everything", "", "", []string{"1", "2", "3"}},
		{"name substring ignores case", "router", "", []string{"1"}},
		{"description matches", "STICK", "", []string{"2"}},
		{"category only", "", "accessories", []string{"3"}},
		{"query and category combine", "pan", "Accessories", []string{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := svc.ListProducts(context.Background(), tc.query, tc.category)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if g := ids(got); fmt.Sprint(g) != fmt.Sprint(tc.want) {
				t.Fatalf("got %v, want %v", g, tc.want)
			}
		})
	}
}

func TestListProductsPropagatesError(t *testing.T) {
	boom := apperr.New(apperr.ErrTransport, "catalog.list", "down")
	svc := NewService(fakeSource{err: boom})
	if _, err := svc.ListProducts(context.Background(), "", ""); !errors.Is(err, apperr.ErrTransport) {
		t.Fatalf("expected transport error, got %v", err)
	}
}

func TestGetProductValidation(t *testing.T) {
	svc := NewService(fakeSource{products: catalog})

	t.Run("blank id -> validation", func(t *testing.T) {
		_, err := svc.GetProduct(context.Background(), "  ")
		if !errors.Is(err, apperr.ErrValidation) {
			t.Fatalf("expected ErrValidation, got %v", err)
		}
	})

	t.Run("unknown id -> not found", func(t *testing.T) {
		_, err := svc.GetProduct(context.Background(), "99")
		if !errors.Is(err, apperr.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("known id", func(t *testing.T) {
		p, err := svc.GetProduct(context.Background(), " 3 ")
		if err != nil || p.Name != "HDMI cable" {
			t.Fatalf("got %+v, %v", p, err)
		}
	})
}
