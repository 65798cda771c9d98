package cart

import (
	"context"

	"github.com/shopspring/decimal"
)

// Line is a single frozen line item taken from a user's cart. Name, image,
// and unit price are copied out of the catalog at snapshot time so later
// catalog changes cannot affect an already placed order.
type Line struct {
	ProductID string          `json:"productId"`
	Name      string          `json:"name"`
	Image     string          `json:"image"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
}

// Snapshot is the cart contents read once at checkout time.
type Snapshot struct {
	Lines []Line
}

// Empty reports whether the snapshot contains no line items.
func (s *Snapshot) Empty() bool {
	return s == nil || len(s.Lines) == 0
}

// Subtotal returns the sum of unit price times quantity across all lines.
func (s *Snapshot) Subtotal() decimal.Decimal {
	sum := decimal.Zero
	if s == nil {
		return sum
	}
	for _, l := range s.Lines {
		sum = sum.Add(l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	return sum
}

// Provider reads and clears a user's cart. The cart is owned by the cart
// management code; checkout only consumes it. The snapshot is read once and
// the cart is cleared after the order is placed, so a concurrent cart
// mutation during checkout may be lost. That is accepted: a cart belongs to
// a single user.
type Provider interface {
	Snapshot(ctx context.Context, userID string) (*Snapshot, error)
	Clear(ctx context.Context, userID string) error
}
