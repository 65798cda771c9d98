// Package pricing computes checkout totals from a cart snapshot.
package pricing

import (
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/furnicart/internal/domain/cart"
)

// ErrEmptyCart is returned when pricing is requested for an empty cart.
var ErrEmptyCart = errors.New("cart is empty")

var (
	// taxRate is the flat GST rate applied to the subtotal.
	taxRate = decimal.RequireFromString("0.18")
	// freeShippingOver is the subtotal above which shipping is free.
	freeShippingOver = decimal.NewFromInt(10000)
	// flatShippingFee is charged below the free-shipping threshold.
	flatShippingFee = decimal.NewFromInt(500)
)

// Quote is the full monetary breakdown of an order. All amounts are rounded
// to two decimal places except Discount, which is rounded to the nearest
// whole currency unit before subtraction.
type Quote struct {
	Subtotal       decimal.Decimal `json:"subtotal"`
	Tax            decimal.Decimal `json:"tax"`
	ShippingCharge decimal.Decimal `json:"shippingCharge"`
	Discount       decimal.Decimal `json:"discount"`
	Total          decimal.Decimal `json:"total"`
}

// Compute prices a cart snapshot with no discount applied.
func Compute(snap *cart.Snapshot) (Quote, error) {
	if snap.Empty() {
		return Quote{}, ErrEmptyCart
	}

	subtotal := snap.Subtotal().Round(2)
	tax := subtotal.Mul(taxRate).Round(2)

	shipping := flatShippingFee
	if subtotal.GreaterThan(freeShippingOver) {
		shipping = decimal.Zero
	}

	q := Quote{
		Subtotal:       subtotal,
		Tax:            tax,
		ShippingCharge: shipping,
		Discount:       decimal.Zero,
	}
	q.Total = q.Subtotal.Add(q.Tax).Add(q.ShippingCharge)
	return q, nil
}

// WithDiscount returns a copy of the quote with the discount subtracted from
// the total. The discount is rounded to a whole unit first so repeated
// arithmetic never introduces fractional-cent drift, and the total is floored
// at zero.
func (q Quote) WithDiscount(amount decimal.Decimal) Quote {
	amount = amount.Round(0)
	if amount.IsNegative() {
		amount = decimal.Zero
	}

	total := q.Subtotal.Add(q.Tax).Add(q.ShippingCharge).Sub(amount)
	if total.IsNegative() {
		total = decimal.Zero
	}

	q.Discount = amount
	q.Total = total.Round(2)
	return q
}
