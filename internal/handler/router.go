package handler

import "net/http"

// Routes builds the API mux. Every route requires an authenticated API key;
// admin routes additionally require the admin scope. Health endpoints are
// mounted separately by the server, outside authentication.
func Routes(h *Handler, authn *Authenticator) http.Handler {
	api := http.NewServeMux()

	api.HandleFunc("POST /api/orders", h.Checkout)
	api.HandleFunc("GET /api/orders", h.ListOrders)
	api.HandleFunc("GET /api/orders/{id}", h.GetOrder)
	api.HandleFunc("GET /api/orders/{id}/tracking", h.GetTracking)
	api.HandleFunc("POST /api/orders/{id}/cancel", h.CancelOrder)

	api.HandleFunc("POST /api/payment/initiate", h.InitiatePayment)
	api.HandleFunc("POST /api/payment/verify", h.VerifyPayment)

	api.HandleFunc("POST /api/coupons/apply", h.ApplyCoupon)
	api.HandleFunc("GET /api/coupons", h.ListActiveCoupons)

	admin := http.NewServeMux()
	admin.HandleFunc("GET /api/admin/orders", h.AdminListOrders)
	admin.HandleFunc("PATCH /api/admin/orders/{id}/status", h.UpdateOrderStatus)
	admin.HandleFunc("GET /api/admin/coupons", h.AdminListCoupons)
	admin.HandleFunc("POST /api/admin/coupons", h.AdminCreateCoupon)
	admin.HandleFunc("PUT /api/admin/coupons/{id}", h.AdminUpdateCoupon)
	admin.HandleFunc("DELETE /api/admin/coupons/{id}", h.AdminDeleteCoupon)
	api.Handle("/api/admin/", RequireAdmin(admin))

	return authn.Authenticate(api)
}
