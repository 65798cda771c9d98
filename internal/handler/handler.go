// Package handler exposes the storefront and back-office HTTP API, delegating
// business logic to the domain services.
package handler

import (
	"time"

	"github.com/xenking/furnicart/internal/domain/coupon"
	"github.com/xenking/furnicart/internal/domain/order"
)

// Handler serves the JSON API. Request decoding, response encoding, and
// error-to-status mapping live here; everything else is delegated.
type Handler struct {
	orders  *order.Service
	coupons coupon.Repository
	now     func() time.Time
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(orders *order.Service, coupons coupon.Repository) *Handler {
	return &Handler{
		orders:  orders,
		coupons: coupons,
		now:     time.Now,
	}
}
