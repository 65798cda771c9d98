package coupon

import (
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Apply calculates the discount for the given rule and cart subtotal.
//
// Percentage discounts are clamped to the rule's MaxDiscount when set; fixed
// discounts are clamped to the subtotal so an order can never be discounted
// below zero. The result is rounded to the nearest whole currency unit.
func Apply(rule *Rule, subtotal decimal.Decimal) (Discount, error) {
	var amount decimal.Decimal

	switch rule.DiscountType {
	case DiscountPercentage:
		amount = subtotal.Mul(rule.DiscountValue).Div(hundred)
		if rule.MaxDiscount.IsPositive() && amount.GreaterThan(rule.MaxDiscount) {
			amount = rule.MaxDiscount
		}
	case DiscountFixed:
		amount = decimal.Min(rule.DiscountValue, subtotal)
	default:
		return Discount{}, errors.Errorf("unsupported discount type: %q", rule.DiscountType)
	}

	if amount.IsNegative() {
		amount = decimal.Zero
	}

	return Discount{
		Code:          rule.Code,
		Amount:        amount.Round(0),
		DiscountType:  rule.DiscountType,
		DiscountValue: rule.DiscountValue,
	}, nil
}
