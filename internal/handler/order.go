package handler

import (
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/furnicart/internal/domain/cart"
	"github.com/xenking/furnicart/internal/domain/order"
	"github.com/xenking/furnicart/internal/domain/pricing"
)

type checkoutRequest struct {
	ShippingAddress  order.Address `json:"shippingAddress"`
	PaymentMethod    string        `json:"paymentMethod"`
	CouponCode       string        `json:"couponCode,omitempty"`
	GatewayOrderID   string        `json:"gatewayOrderId,omitempty"`
	GatewayPaymentID string        `json:"gatewayPaymentId,omitempty"`
	GatewaySignature string        `json:"gatewaySignature,omitempty"`
}

type paymentView struct {
	Method           order.PaymentMethod `json:"method"`
	Status           order.PaymentStatus `json:"status"`
	GatewayOrderID   string              `json:"gatewayOrderId,omitempty"`
	GatewayPaymentID string              `json:"gatewayPaymentId,omitempty"`
	PaidAt           *time.Time          `json:"paidAt,omitempty"`
}

type orderView struct {
	ID                 string                `json:"id"`
	OrderNumber        string                `json:"orderNumber"`
	Status             order.Status          `json:"status"`
	Items              []cart.Line           `json:"items"`
	ShippingAddress    order.Address         `json:"shippingAddress"`
	Payment            paymentView           `json:"payment"`
	Pricing            pricing.Quote         `json:"pricing"`
	Coupon             *order.AppliedCoupon  `json:"coupon,omitempty"`
	StatusHistory      []order.StatusChange  `json:"statusHistory"`
	Tracking           *order.TrackingInfo   `json:"tracking,omitempty"`
	DeliveredAt        *time.Time            `json:"deliveredAt,omitempty"`
	CancelledAt        *time.Time            `json:"cancelledAt,omitempty"`
	CancellationReason string                `json:"cancellationReason,omitempty"`
	CreatedAt          time.Time             `json:"createdAt"`
	UpdatedAt          time.Time             `json:"updatedAt"`
}

// viewOrder converts a domain order to its API representation. The gateway
// signature stays server-side.
func viewOrder(o *order.Order) orderView {
	return orderView{
		ID:              o.ID,
		OrderNumber:     o.OrderNumber,
		Status:          o.Status,
		Items:           o.Items,
		ShippingAddress: o.ShippingAddress,
		Payment: paymentView{
			Method:           o.Payment.Method,
			Status:           o.Payment.Status,
			GatewayOrderID:   o.Payment.GatewayOrderID,
			GatewayPaymentID: o.Payment.GatewayPaymentID,
			PaidAt:           o.Payment.PaidAt,
		},
		Pricing:            o.Pricing,
		Coupon:             o.Coupon,
		StatusHistory:      o.History,
		Tracking:           o.Tracking,
		DeliveredAt:        o.DeliveredAt,
		CancelledAt:        o.CancelledAt,
		CancellationReason: o.CancellationReason,
		CreatedAt:          o.CreatedAt,
		UpdatedAt:          o.UpdatedAt,
	}
}

func viewOrders(orders []order.Order) []orderView {
	out := make([]orderView, len(orders))
	for i := range orders {
		out[i] = viewOrder(&orders[i])
	}
	return out
}

// Checkout places an order from the caller's cart.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFrom(r.Context())

	var req checkoutRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	o, err := h.orders.Checkout(r.Context(), order.CheckoutRequest{
		UserID:           actor.UserID,
		ShippingAddress:  req.ShippingAddress,
		PaymentMethod:    order.PaymentMethod(req.PaymentMethod),
		CouponCode:       req.CouponCode,
		GatewayOrderID:   req.GatewayOrderID,
		GatewayPaymentID: req.GatewayPaymentID,
		GatewaySignature: req.GatewaySignature,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, viewOrder(o))
}

// ListOrders returns the caller's orders, newest first.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFrom(r.Context())

	orders, err := h.orders.ListForUser(r.Context(), actor.UserID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"orders": viewOrders(orders)})
}

// GetOrder returns a single order. Only the owner or an admin may view it.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFrom(r.Context())

	o, err := h.orders.Get(r.Context(), r.PathValue("id"), actor)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOrder(o))
}

// GetTracking returns the courier tracking view of an order.
func (h *Handler) GetTracking(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFrom(r.Context())

	o, err := h.orders.Get(r.Context(), r.PathValue("id"), actor)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"orderNumber":   o.OrderNumber,
		"status":        o.Status,
		"statusHistory": o.History,
		"tracking":      o.Tracking,
	})
}

type cancelRequest struct {
	Reason string `json:"reason,omitempty"`
}

// CancelOrder cancels the caller's own order when it has not been dispatched.
// The body (and the reason in it) is optional.
func (h *Handler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFrom(r.Context())

	var req cancelRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	o, err := h.orders.Cancel(r.Context(), r.PathValue("id"), actor.UserID, req.Reason)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOrder(o))
}

type updateStatusRequest struct {
	Status   string              `json:"status"`
	Note     string              `json:"note,omitempty"`
	Tracking *order.TrackingInfo `json:"tracking,omitempty"`
}

// UpdateOrderStatus applies an admin lifecycle transition.
func (h *Handler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req updateStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	status := order.Status(req.Status)
	if !status.Valid() {
		writeError(w, http.StatusBadRequest, "unknown order status "+strconv.Quote(req.Status))
		return
	}

	o, err := h.orders.UpdateStatus(r.Context(), r.PathValue("id"), status, req.Note, req.Tracking)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOrder(o))
}

// AdminListOrders lists all orders with an optional status filter and
// pagination.
func (h *Handler) AdminListOrders(w http.ResponseWriter, r *http.Request) {
	filter := order.ListFilter{
		Status: order.Status(r.URL.Query().Get("status")),
	}
	if filter.Status != "" && !filter.Status.Valid() {
		writeError(w, http.StatusBadRequest, "unknown order status "+strconv.Quote(string(filter.Status)))
		return
	}
	filter.Page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	filter.Limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))

	orders, total, err := h.orders.ListAll(r.Context(), filter)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"orders": viewOrders(orders),
		"total":  total,
	})
}

type initiatePaymentResponse struct {
	GatewayOrderID string          `json:"gatewayOrderId"`
	Amount         int64           `json:"amount"`
	Currency       string          `json:"currency"`
	KeyID          string          `json:"keyId"`
	Total          decimal.Decimal `json:"total"`
}

// InitiatePayment creates a gateway order for the caller's cart total.
func (h *Handler) InitiatePayment(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFrom(r.Context())

	g, err := h.orders.InitiatePayment(r.Context(), actor.UserID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, initiatePaymentResponse{
		GatewayOrderID: g.ID,
		Amount:         g.Amount,
		Currency:       g.Currency,
		KeyID:          g.KeyID,
		Total:          decimal.NewFromInt(g.Amount).Div(decimal.NewFromInt(100)),
	})
}

type verifyPaymentRequest struct {
	GatewayOrderID   string `json:"gatewayOrderId"`
	GatewayPaymentID string `json:"gatewayPaymentId"`
	GatewaySignature string `json:"gatewaySignature"`
}

// VerifyPayment checks a gateway confirmation signature without placing an
// order. Checkout runs the same check again.
func (h *Handler) VerifyPayment(w http.ResponseWriter, r *http.Request) {
	var req verifyPaymentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.orders.VerifyPayment(req.GatewayOrderID, req.GatewayPaymentID, req.GatewaySignature); err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"verified": true})
}
