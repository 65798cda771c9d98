// Package order implements the order aggregate and its lifecycle state
// machine. All status changes go through aggregate methods so the
// append-only history and the delivered/cancelled side effects stay
// consistent everywhere the order is mutated.
package order

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/furnicart/internal/domain/cart"
	"github.com/xenking/furnicart/internal/domain/pricing"
)

// Status is an order's lifecycle state.
type Status string

const (
	StatusPending        Status = "pending"
	StatusConfirmed      Status = "confirmed"
	StatusProcessing     Status = "processing"
	StatusShipped        Status = "shipped"
	StatusOutForDelivery Status = "out-for-delivery"
	StatusDelivered      Status = "delivered"
	StatusCancelled      Status = "cancelled"
	StatusReturned       Status = "returned"
)

// transitions is the forward-progress table. A status may only move to one
// of its listed successors; anything else is rejected. Delivered, cancelled,
// and returned are terminal.
var transitions = map[Status][]Status{
	StatusPending:        {StatusConfirmed, StatusProcessing, StatusCancelled},
	StatusConfirmed:      {StatusProcessing, StatusCancelled},
	StatusProcessing:     {StatusShipped, StatusCancelled},
	StatusShipped:        {StatusOutForDelivery, StatusDelivered, StatusReturned},
	StatusOutForDelivery: {StatusDelivered, StatusReturned},
	StatusDelivered:      {},
	StatusCancelled:      {},
	StatusReturned:       {},
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// Terminal reports whether no further transitions are possible from s.
func (s Status) Terminal() bool {
	next, ok := transitions[s]
	return ok && len(next) == 0
}

// CanTransitionTo reports whether the table allows moving from s to next.
func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// PaymentMethod enumerates the supported ways to pay.
type PaymentMethod string

const (
	MethodRazorpay PaymentMethod = "razorpay"
	MethodCOD      PaymentMethod = "cod"
	MethodCard     PaymentMethod = "card"
	MethodUPI      PaymentMethod = "upi"
)

// Valid reports whether m is a known payment method.
func (m PaymentMethod) Valid() bool {
	switch m {
	case MethodRazorpay, MethodCOD, MethodCard, MethodUPI:
		return true
	}
	return false
}

// Online reports whether the method settles through the payment gateway at
// checkout time and therefore requires a verified confirmation.
func (m PaymentMethod) Online() bool {
	return m == MethodRazorpay
}

// PaymentStatus tracks settlement of an order's payment.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
	PaymentRefunded  PaymentStatus = "refunded"
)

// Errors of the order lifecycle.
var (
	ErrNotFound             = errors.New("order not found")
	ErrNotAuthorized        = errors.New("not authorized")
	ErrInvalidPaymentMethod = errors.New("invalid payment method")
)

// InvalidTransitionError reports a status change the transition table forbids.
type InvalidTransitionError struct {
	From, To Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot transition order from %s to %s", e.From, e.To)
}

// NotCancellableError reports a user cancellation attempted after dispatch or
// on an already terminated order.
type NotCancellableError struct {
	Status Status
}

func (e *NotCancellableError) Error() string {
	return fmt.Sprintf("cannot cancel order in status %s", e.Status)
}

// Address is a structured shipping destination.
type Address struct {
	FullName     string `json:"fullName"`
	Phone        string `json:"phone"`
	AddressLine1 string `json:"addressLine1"`
	AddressLine2 string `json:"addressLine2,omitempty"`
	City         string `json:"city"`
	State        string `json:"state"`
	Pincode      string `json:"pincode"`
	Landmark     string `json:"landmark,omitempty"`
}

// PaymentInfo records how an order is paid and the gateway confirmation.
type PaymentInfo struct {
	Method           PaymentMethod `json:"method"`
	GatewayOrderID   string        `json:"gatewayOrderId,omitempty"`
	GatewayPaymentID string        `json:"gatewayPaymentId,omitempty"`
	GatewaySignature string        `json:"gatewaySignature,omitempty"`
	Status           PaymentStatus `json:"status"`
	PaidAt           *time.Time    `json:"paidAt,omitempty"`
}

// AppliedCoupon records the single coupon consumed by the order.
type AppliedCoupon struct {
	Code     string          `json:"code"`
	Discount decimal.Decimal `json:"discount"`
}

// StatusChange is one entry of the append-only status history.
type StatusChange struct {
	Status    Status    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Note      string    `json:"note,omitempty"`
}

// TrackingInfo is courier tracking data attached by an admin.
type TrackingInfo struct {
	TrackingNumber string `json:"trackingNumber,omitempty"`
	Courier        string `json:"courier,omitempty"`
	TrackingURL    string `json:"trackingUrl,omitempty"`
}

// Order is the aggregate root for a placed order. Pricing is fixed at
// creation and never recomputed; items carry prices frozen from the cart
// snapshot; the history is append-only and its last entry always matches
// Status.
type Order struct {
	ID                 string
	UserID             string
	OrderNumber        string
	Items              []cart.Line
	ShippingAddress    Address
	Payment            PaymentInfo
	Pricing            pricing.Quote
	Coupon             *AppliedCoupon
	Status             Status
	History            []StatusChange
	Tracking           *TrackingInfo
	DeliveredAt        *time.Time
	CancelledAt        *time.Time
	CancellationReason string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// NewParams carries everything needed to create an order.
type NewParams struct {
	ID       string
	UserID   string
	Snapshot *cart.Snapshot
	Address  Address
	Payment  PaymentInfo
	Pricing  pricing.Quote
	Coupon   *AppliedCoupon
	Now      time.Time
}

// New creates an order in its initial status: confirmed when the payment is
// already completed (verified online payment), pending otherwise (COD and
// friends). The cart lines are copied by value so later catalog changes
// cannot reach into a placed order.
func New(p NewParams) *Order {
	status := StatusPending
	note := "Order placed - Awaiting payment"
	if p.Payment.Status == PaymentCompleted {
		status = StatusConfirmed
		note = "Order confirmed - Payment received"
	}

	items := make([]cart.Line, len(p.Snapshot.Lines))
	copy(items, p.Snapshot.Lines)

	return &Order{
		ID:              p.ID,
		UserID:          p.UserID,
		OrderNumber:     newOrderNumber(p.Now),
		Items:           items,
		ShippingAddress: p.Address,
		Payment:         p.Payment,
		Pricing:         p.Pricing,
		Coupon:          p.Coupon,
		Status:          status,
		History: []StatusChange{{
			Status:    status,
			Timestamp: p.Now,
			Note:      note,
		}},
		CreatedAt: p.Now,
		UpdatedAt: p.Now,
	}
}

// newOrderNumber generates a human-readable unique order number.
func newOrderNumber(now time.Time) string {
	return fmt.Sprintf("ORD%d%03d", now.UnixMilli(), rand.IntN(1000))
}

// TransitionTo moves the order to status, appending a history entry. The
// transition table is enforced, so regressions like delivered → pending are
// rejected. Reaching delivered stamps DeliveredAt and completes the payment
// (COD settles on delivery); reaching cancelled stamps CancelledAt.
func (o *Order) TransitionTo(status Status, note string, at time.Time) error {
	if !status.Valid() {
		return errors.Errorf("unknown order status: %q", status)
	}
	if !o.Status.CanTransitionTo(status) {
		return &InvalidTransitionError{From: o.Status, To: status}
	}

	if note == "" {
		note = "Order status updated to " + string(status)
	}
	o.append(status, note, at)

	switch status {
	case StatusDelivered:
		o.DeliveredAt = &at
		o.Payment.Status = PaymentCompleted
	case StatusCancelled:
		o.CancelledAt = &at
	}
	return nil
}

// Cancellable reports whether a user may still cancel the order. Once the
// order is dispatched (shipped or out for delivery) or terminated,
// cancellation is refused.
func (o *Order) Cancellable() bool {
	switch o.Status {
	case StatusPending, StatusConfirmed, StatusProcessing:
		return true
	}
	return false
}

// CancelBy cancels the order on behalf of its owning user.
func (o *Order) CancelBy(userID, reason string, at time.Time) error {
	if o.UserID != userID {
		return ErrNotAuthorized
	}
	if !o.Cancellable() {
		return &NotCancellableError{Status: o.Status}
	}

	note := reason
	if note == "" {
		note = "Cancelled by user"
	}
	o.append(StatusCancelled, note, at)
	o.CancelledAt = &at
	o.CancellationReason = reason
	return nil
}

// SetTracking attaches courier tracking info.
func (o *Order) SetTracking(t TrackingInfo) {
	o.Tracking = &t
}

// ViewableBy reports whether the actor may read this order.
func (o *Order) ViewableBy(userID string, admin bool) bool {
	return admin || o.UserID == userID
}

// append adds a history entry and keeps Status in sync with the tail.
func (o *Order) append(status Status, note string, at time.Time) {
	o.History = append(o.History, StatusChange{
		Status:    status,
		Timestamp: at,
		Note:      note,
	})
	o.Status = status
	o.UpdatedAt = at
}
