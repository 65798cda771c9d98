package order

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xenking/furnicart/internal/domain/cart"
	"github.com/xenking/furnicart/internal/domain/coupon"
	"github.com/xenking/furnicart/internal/domain/payment"
	"github.com/xenking/furnicart/internal/domain/pricing"
)

// ListFilter narrows admin order listings.
type ListFilter struct {
	Status Status
	Page   int
	Limit  int
}

// Repository defines persistence operations for orders.
//
// Create must redeem the referenced coupon (conditional increment of its
// usage counter) in the same transaction as the order insert, so two
// concurrent checkouts can never push a coupon past its usage limit and a
// failed insert never leaks a consumed use.
//
// Mutate must serialize concurrent status changes per order (row lock),
// load the current record, apply fn, and persist the result atomically.
// The history is append-only, so last-write-wins is not acceptable.
type Repository interface {
	Create(ctx context.Context, o *Order) error
	GetByID(ctx context.Context, id string) (*Order, error)
	ListByUser(ctx context.Context, userID string) ([]Order, error)
	List(ctx context.Context, filter ListFilter) ([]Order, int, error)
	Mutate(ctx context.Context, id string, fn func(*Order) error) (*Order, error)
}

// Actor identifies who is making a request.
type Actor struct {
	UserID string
	Admin  bool
}

// CheckoutRequest is the input for placing an order.
type CheckoutRequest struct {
	UserID          string
	ShippingAddress Address
	PaymentMethod   PaymentMethod
	CouponCode      string

	// Gateway confirmation, required for online payment.
	GatewayOrderID   string
	GatewayPaymentID string
	GatewaySignature string
}

// Service orchestrates checkout and the order lifecycle.
type Service struct {
	carts    cart.Provider
	coupons  coupon.Validator
	verifier *payment.Verifier
	gateway  payment.Gateway
	orders   Repository
	now      func() time.Time
}

// NewService creates an order Service with the required collaborators.
func NewService(
	carts cart.Provider,
	coupons coupon.Validator,
	verifier *payment.Verifier,
	gateway payment.Gateway,
	orders Repository,
) *Service {
	return &Service{
		carts:    carts,
		coupons:  coupons,
		verifier: verifier,
		gateway:  gateway,
		orders:   orders,
		now:      time.Now,
	}
}

// Checkout turns the user's cart into an order: snapshot, pricing, optional
// coupon, payment verification for online methods, persistence, cart clear.
// For online payment the order is created already confirmed; otherwise it
// starts pending. No order exists until the signature verifies.
func (s *Service) Checkout(ctx context.Context, req CheckoutRequest) (*Order, error) {
	if !req.PaymentMethod.Valid() {
		return nil, ErrInvalidPaymentMethod
	}

	snap, err := s.carts.Snapshot(ctx, req.UserID)
	if err != nil {
		return nil, errors.Wrap(err, "read cart")
	}

	quote, err := pricing.Compute(snap)
	if err != nil {
		return nil, err
	}

	var applied *AppliedCoupon
	if req.CouponCode != "" {
		d, err := s.coupons.Validate(ctx, req.CouponCode, quote.Subtotal)
		if err != nil {
			return nil, err
		}
		quote = quote.WithDiscount(d.Amount)
		applied = &AppliedCoupon{Code: d.Code, Discount: d.Amount}
	}

	now := s.now()
	pay := PaymentInfo{Method: req.PaymentMethod, Status: PaymentPending}
	if req.PaymentMethod.Online() {
		if err := s.verifier.Verify(req.GatewayOrderID, req.GatewayPaymentID, req.GatewaySignature); err != nil {
			return nil, err
		}
		pay.GatewayOrderID = req.GatewayOrderID
		pay.GatewayPaymentID = req.GatewayPaymentID
		pay.GatewaySignature = req.GatewaySignature
		pay.Status = PaymentCompleted
		pay.PaidAt = &now
	}

	o := New(NewParams{
		ID:       uuid.New().String(),
		UserID:   req.UserID,
		Snapshot: snap,
		Address:  req.ShippingAddress,
		Payment:  pay,
		Pricing:  quote,
		Coupon:   applied,
		Now:      now,
	})

	if err := s.orders.Create(ctx, o); err != nil {
		return nil, errors.Wrap(err, "create order")
	}

	// The order is placed; a failed cart clear must not undo it.
	if err := s.carts.Clear(ctx, req.UserID); err != nil {
		zctx.From(ctx).Warn("clear cart after checkout",
			zap.String("order_id", o.ID),
			zap.Error(err),
		)
	}

	return o, nil
}

// PreviewCoupon validates a coupon against the user's current cart subtotal
// without consuming a use.
func (s *Service) PreviewCoupon(ctx context.Context, userID, code string) (*coupon.Discount, error) {
	snap, err := s.carts.Snapshot(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "read cart")
	}

	quote, err := pricing.Compute(snap)
	if err != nil {
		return nil, err
	}

	return s.coupons.Validate(ctx, code, quote.Subtotal)
}

// InitiatePayment creates a gateway order for the user's current cart total.
// Gateway failures surface as payment.ErrGatewayUnavailable and leave no
// local state behind.
func (s *Service) InitiatePayment(ctx context.Context, userID string) (*payment.GatewayOrder, error) {
	snap, err := s.carts.Snapshot(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "read cart")
	}

	quote, err := pricing.Compute(snap)
	if err != nil {
		return nil, err
	}

	receipt := fmt.Sprintf("receipt_%d", s.now().UnixMilli())
	return s.gateway.CreateOrder(ctx, quote.Total, receipt)
}

// VerifyPayment runs the standalone gateway signature check. The same
// verifier runs again inside Checkout.
func (s *Service) VerifyPayment(gatewayOrderID, gatewayPaymentID, signature string) error {
	return s.verifier.Verify(gatewayOrderID, gatewayPaymentID, signature)
}

// Get returns an order, enforcing that only the owner or an admin may view it.
func (s *Service) Get(ctx context.Context, id string, actor Actor) (*Order, error) {
	o, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !o.ViewableBy(actor.UserID, actor.Admin) {
		return nil, ErrNotAuthorized
	}
	return o, nil
}

// ListForUser returns the user's orders, newest first.
func (s *Service) ListForUser(ctx context.Context, userID string) ([]Order, error) {
	return s.orders.ListByUser(ctx, userID)
}

// ListAll returns orders for the admin back office with an optional status
// filter and pagination. The second return value is the total match count.
func (s *Service) ListAll(ctx context.Context, filter ListFilter) ([]Order, int, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 {
		filter.Limit = 10
	}
	return s.orders.List(ctx, filter)
}

// UpdateStatus applies an admin status transition, optionally attaching
// tracking info. The mutation is atomic per order.
func (s *Service) UpdateStatus(ctx context.Context, id string, status Status, note string, tracking *TrackingInfo) (*Order, error) {
	return s.orders.Mutate(ctx, id, func(o *Order) error {
		if err := o.TransitionTo(status, note, s.now()); err != nil {
			return err
		}
		if tracking != nil {
			o.SetTracking(*tracking)
		}
		return nil
	})
}

// Cancel applies a user-initiated cancellation.
func (s *Service) Cancel(ctx context.Context, id, userID, reason string) (*Order, error) {
	return s.orders.Mutate(ctx, id, func(o *Order) error {
		return o.CancelBy(userID, reason, s.now())
	})
}
