package coupon

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Validator validates a coupon code against a cart subtotal and returns the
// computed discount. Validation never consumes a use.
type Validator interface {
	Validate(ctx context.Context, code string, subtotal decimal.Decimal) (*Discount, error)
}

// RepoValidator implements Validator by looking up coupon rules from a
// Repository and applying them via the Apply function.
type RepoValidator struct {
	repo Repository
	now  func() time.Time
}

// NewRepoValidator creates a RepoValidator backed by the given Repository.
func NewRepoValidator(repo Repository) *RepoValidator {
	return &RepoValidator{repo: repo, now: time.Now}
}

// Validate checks the rule for the given code in a fixed order (existence,
// activation, validity window, usage limit, minimum purchase) and
// short-circuits on the first failure. Codes are matched case-insensitively.
func (v *RepoValidator) Validate(ctx context.Context, code string, subtotal decimal.Decimal) (*Discount, error) {
	rule, err := v.repo.FindByCode(ctx, strings.ToUpper(code))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "lookup coupon")
	}

	if !rule.Active {
		return nil, ErrInactive
	}

	now := v.now()
	if now.Before(rule.ValidFrom) || now.After(rule.ValidUntil) {
		return nil, ErrExpired
	}

	if rule.UsageLimit > 0 && rule.UsedCount >= rule.UsageLimit {
		return nil, ErrExhausted
	}

	if subtotal.LessThan(rule.MinPurchase) {
		return nil, &MinPurchaseError{Min: rule.MinPurchase}
	}

	d, err := Apply(rule, subtotal)
	if err != nil {
		return nil, err
	}

	return &d, nil
}
