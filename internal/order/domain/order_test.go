package domain

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseStatus(t *testing.T) {
	cases := map[string]Status{
		"Pending":    StatusPending,
		"processing": StatusProcessing,
		"Shipping":   StatusShipping,
		"Delivered":  StatusDelivered,
		"Cancelled":  StatusCancelled,
		"Canceled":   StatusCancelled,
		" canceled ": StatusCancelled,
	}
	for raw, want := range cases {
		got, err := ParseStatus(raw)
		if err != nil || got != want {
			t.Fatalf("ParseStatus(%q) = %v, %v; want %v", raw, got, err, want)
		}
	}

	if _, err := ParseStatus("Lost"); !errors.Is(err, ErrUnknownStatus) {
		t.Fatalf("expected ErrUnknownStatus, got %v", err)
	}
}

func TestStatusTransitions(t *testing.T) {
	allowed := map[[2]Status]bool{
		{StatusPending, StatusProcessing}:  true,
		{StatusPending, StatusShipping}:    true,
		{StatusPending, StatusCancelled}:   true,
		{StatusProcessing, StatusShipping}: true,
		{StatusShipping, StatusDelivered}:  true,
	}
	all := []Status{StatusPending, StatusProcessing, StatusShipping, StatusDelivered, StatusCancelled}
	for _, from := range all {
		for _, to := range all {
			if got := from.CanTransitionTo(to); got != allowed[[2]Status{from, to}] {
				t.Fatalf("%s -> %s: got %v", from, to, got)
			}
		}
	}

	if !StatusPending.Cancellable() || StatusShipping.Cancellable() || StatusProcessing.Cancellable() {
		t.Fatal("only Pending orders are cancellable")
	}
	if !StatusDelivered.Terminal() || !StatusCancelled.Terminal() || StatusPending.Terminal() {
		t.Fatal("terminal states are Delivered and Cancelled")
	}
}

func TestTotal(t *testing.T) {
	items := []Item{
		{UnitPrice: decimal.NewFromInt(1000), Quantity: 2},
		{UnitPrice: decimal.NewFromInt(500), Quantity: 1},
	}

	t.Run("without delivery", func(t *testing.T) {
		if got := Total(items, false); !got.Equal(decimal.NewFromInt(2500)) {
			t.Fatalf("got %s", got)
		}
	})

	t.Run("with delivery", func(t *testing.T) {
		if got := Total(items, true); !got.Equal(decimal.NewFromInt(3500)) {
			t.Fatalf("got %s", got)
		}
	})

	t.Run("fractional prices stay exact", func(t *testing.T) {
		frac := []Item{{UnitPrice: decimal.RequireFromString("0.10"), Quantity: 3}}
		if got := Total(frac, false); !got.Equal(decimal.RequireFromString("0.3")) {
			t.Fatalf("got %s", got)
		}
	})

	t.Run("delivery surcharge is fixed", func(t *testing.T) {
		if !DeliveryFee().Equal(decimal.NewFromInt(1000)) {
			t.Fatalf("got fee %s", DeliveryFee())
		}
		if got := Total(nil, true); !got.Equal(DeliveryFee()) {
			t.Fatalf("got %s", got)
		}
	})

	t.Run("order recomputes from its snapshot", func(t *testing.T) {
		o := Order{Items: items, Delivery: true}
		if !o.Total().Equal(decimal.NewFromInt(3500)) || !o.Subtotal().Equal(decimal.NewFromInt(2500)) {
			t.Fatalf("got total %s subtotal %s", o.Total(), o.Subtotal())
		}
	})
}

func TestCustomerMissing(t *testing.T) {
	c := Customer{FirstName: "Amina", LastName: "Otieno", Phone: "0700", Email: "a@x.io", Gender: "F", Location: "Nairobi", Age: 30}
	if m := c.Missing(); len(m) != 0 {
		t.Fatalf("unexpected missing %v", m)
	}
	c.Email = "  "
	c.Age = 0
	m := c.Missing()
	if len(m) != 2 || m[0] != "email" || m[1] != "age" {
		t.Fatalf("got %v", m)
	}
}
