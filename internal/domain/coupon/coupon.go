// Package coupon holds discount-code rules, validation, and discount math.
package coupon

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// DiscountType enumerates the supported coupon discount strategies.
type DiscountType string

const (
	// DiscountPercentage applies a percentage-based discount to the subtotal,
	// optionally capped by the rule's MaxDiscount.
	DiscountPercentage DiscountType = "percentage"
	// DiscountFixed applies a fixed monetary discount capped at the subtotal.
	DiscountFixed DiscountType = "fixed"
)

// Valid reports whether t is a known discount type.
func (t DiscountType) Valid() bool {
	return t == DiscountPercentage || t == DiscountFixed
}

var (
	// ErrNotFound is returned when no coupon exists for a given code.
	ErrNotFound = errors.New("invalid coupon code")
	// ErrInactive is returned when the coupon has been deactivated.
	ErrInactive = errors.New("coupon is not active")
	// ErrExpired is returned when the current time is outside the coupon's
	// validity window.
	ErrExpired = errors.New("coupon has expired or not yet valid")
	// ErrExhausted is returned when the coupon has reached its usage limit.
	ErrExhausted = errors.New("coupon usage limit reached")
	// ErrCodeExists is returned when creating a coupon whose code is taken.
	ErrCodeExists = errors.New("coupon code already exists")
)

// MinPurchaseError is returned when the cart subtotal does not reach the
// coupon's minimum purchase requirement.
type MinPurchaseError struct {
	Min decimal.Decimal
}

func (e *MinPurchaseError) Error() string {
	return fmt.Sprintf("minimum purchase of %s required", e.Min.StringFixed(0))
}

// Rule defines a coupon's discount behaviour and eligibility constraints.
// Codes are stored upper-cased; lookups are case-insensitive.
type Rule struct {
	ID            string
	Code          string
	DiscountType  DiscountType
	DiscountValue decimal.Decimal
	MinPurchase   decimal.Decimal
	// MaxDiscount caps percentage discounts. Zero means no cap.
	MaxDiscount decimal.Decimal
	ValidFrom   time.Time
	ValidUntil  time.Time
	// UsageLimit caps total redemptions. Zero means unlimited.
	UsageLimit int
	UsedCount  int
	Active     bool
	CreatedAt  time.Time
}

// Discount is the outcome of applying a rule to a cart subtotal.
type Discount struct {
	Code          string
	Amount        decimal.Decimal
	DiscountType  DiscountType
	DiscountValue decimal.Decimal
}

// ListFilter narrows admin coupon listings.
type ListFilter struct {
	// Active filters by activation state when non-nil.
	Active *bool
	Page   int
	Limit  int
}

// Repository provides lookup and mutation of coupon rules.
//
// Redemption (incrementing UsedCount) is deliberately absent: it must be
// atomic with order persistence, so it lives inside the order repository's
// create transaction as a conditional update.
type Repository interface {
	FindByCode(ctx context.Context, code string) (*Rule, error)
	Create(ctx context.Context, rule *Rule) error
	Update(ctx context.Context, rule *Rule) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filter ListFilter) ([]Rule, int, error)
	ListActive(ctx context.Context, now time.Time) ([]Rule, error)
}
