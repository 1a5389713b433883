package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const deliveryFee = 1000

// DeliveryFee is added to the total when the customer asks for delivery.
func DeliveryFee() decimal.Decimal { return decimal.NewFromInt(deliveryFee) }

var ErrUnknownStatus = errors.New("unknown order status")

type Status int

const (
	StatusUnknown Status = iota
	StatusPending
	StatusProcessing
	StatusShipping
	StatusDelivered
	StatusCancelled
)

var statusNames = map[Status]string{
	StatusPending:    "Pending",
	StatusProcessing: "Processing",
	StatusShipping:   "Shipping",
	StatusDelivered:  "Delivered",
	StatusCancelled:  "Cancelled",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return "Unknown"
}

// ParseStatus is case-insensitive and takes both spellings of cancelled.
func ParseStatus(raw string) (Status, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "pending":
		return StatusPending, nil
	case "processing":
		return StatusProcessing, nil
	case "shipping", "shipped":
		return StatusShipping, nil
	case "delivered":
		return StatusDelivered, nil
	case "cancelled", "canceled":
		return StatusCancelled, nil
	default:
		return StatusUnknown, fmt.Errorf("%w: %q", ErrUnknownStatus, raw)
	}
}

var transitions = map[Status][]Status{
	StatusPending:    {StatusProcessing, StatusShipping, StatusCancelled},
	StatusProcessing: {StatusShipping},
	StatusShipping:   {StatusDelivered},
}

func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Cancellable reports whether the customer may still cancel.
func (s Status) Cancellable() bool { return s.CanTransitionTo(StatusCancelled) }

func (s Status) Terminal() bool { return s == StatusDelivered || s == StatusCancelled }

type Item struct {
	ProductID string
	Name      string
	Image     string
	UnitPrice decimal.Decimal
	Quantity  int
}

func (it Item) LineTotal() decimal.Decimal {
	return it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity)))
}

type Customer struct {
	FirstName string
	LastName  string
	Age       int
	Phone     string
	Email     string
	Gender    string
	Location  string
}

// Missing lists the backend field names that are blank or invalid.
func (c Customer) Missing() []string {
	var missing []string
	for _, f := range []struct {
		name  string
		value string
	}{
		{"first_name", c.FirstName},
		{"last_name", c.LastName},
		{"phone_number", c.Phone},
		{"email", c.Email},
		{"gender", c.Gender},
		{"location", c.Location},
	} {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	if c.Age <= 0 {
		missing = append(missing, "age")
	}
	return missing
}

type Order struct {
	ID               string
	Code             string
	Items            []Item
	Status           Status
	Delivery         bool
	DeliveryFee      decimal.Decimal
	TotalAmount      decimal.Decimal
	Customer         Customer
	PaymentReference string
	CreatedAt        time.Time
}

func (o Order) Subtotal() decimal.Decimal {
	return Subtotal(o.Items)
}

// Total recomputes the amount from the item snapshot; TotalAmount is what
// the server charged.
func (o Order) Total() decimal.Decimal {
	return Total(o.Items, o.Delivery)
}

func Subtotal(items []Item) decimal.Decimal {
	sum := decimal.Zero
	for _, it := range items {
		sum = sum.Add(it.LineTotal())
	}
	return sum
}

func Total(items []Item, delivery bool) decimal.Decimal {
	total := Subtotal(items)
	if delivery {
		total = total.Add(DeliveryFee())
	}
	return total
}

// Draft is what gets sent to create an order.
type Draft struct {
	Items            []Item
	Customer         Customer
	Delivery         bool
	PaymentReference string
}
