package handler

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/furnicart/internal/domain/auth"
	"github.com/xenking/furnicart/internal/domain/cart"
	"github.com/xenking/furnicart/internal/domain/coupon"
	"github.com/xenking/furnicart/internal/domain/order"
	"github.com/xenking/furnicart/internal/domain/payment"
)

const (
	customerKey = "customer-key"
	adminKey    = "admin-key"
	keyPepper   = "test-pepper"
)

type fixture struct {
	server   *httptest.Server
	orders   *stubOrderRepo
	coupons  *stubCouponRepo
	verifier *payment.Verifier
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	carts := &stubCartProvider{snapshot: &cart.Snapshot{Lines: []cart.Line{
		{ProductID: "p1", Name: "Oak Desk", Quantity: 1, UnitPrice: decimal.NewFromInt(5000)},
	}}}
	coupons := &stubCouponRepo{rules: map[string]*coupon.Rule{}}
	orders := &stubOrderRepo{byID: map[string]*order.Order{}}
	verifier := payment.NewVerifier([]byte("gateway-secret"))

	svc := order.NewService(carts, coupon.NewRepoValidator(coupons), verifier, nil, orders)
	h := NewHandler(svc, coupons)
	authn := NewAuthenticator(&stubKeyRepo{}, []byte(keyPepper))

	srv := httptest.NewServer(Routes(h, authn))
	t.Cleanup(srv.Close)

	return &fixture{server: srv, orders: orders, coupons: coupons, verifier: verifier}
}

func (f *fixture) do(t *testing.T, method, path, apiKey string, body any) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, f.server.URL+path, &buf)
	require.NoError(t, err)
	if apiKey != "" {
		req.Header.Set(APIKeyHeader, apiKey)
	}

	resp, err := f.server.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}

func checkoutBody() map[string]any {
	return map[string]any{
		"shippingAddress": map[string]any{
			"fullName":     "Asha Rao",
			"phone":        "9999999999",
			"addressLine1": "12 Main St",
			"city":         "Pune",
			"state":        "MH",
			"pincode":      "411001",
		},
		"paymentMethod": "cod",
	}
}

func TestCheckout(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, http.MethodPost, "/api/orders", customerKey, checkoutBody())
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, "pending", body["status"])
	pricing := body["pricing"].(map[string]any)
	assert.Equal(t, "6400", pricing["total"])
	assert.Len(t, f.orders.byID, 1)
}

func TestCheckoutWithCoupon(t *testing.T) {
	f := newFixture(t)
	f.coupons.rules["SAVE10"] = &coupon.Rule{
		ID:            "c1",
		Code:          "SAVE10",
		DiscountType:  coupon.DiscountPercentage,
		DiscountValue: decimal.NewFromInt(10),
		ValidFrom:     time.Now().Add(-time.Hour),
		ValidUntil:    time.Now().Add(time.Hour),
		Active:        true,
	}

	req := checkoutBody()
	req["couponCode"] = "save10"
	resp := f.do(t, http.MethodPost, "/api/orders", customerKey, req)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	body := decodeBody(t, resp)
	pricing := body["pricing"].(map[string]any)
	assert.Equal(t, "500", pricing["discount"])
	assert.Equal(t, "5900", pricing["total"])
}

func TestCheckoutUnknownCoupon(t *testing.T) {
	f := newFixture(t)

	req := checkoutBody()
	req["couponCode"] = "NOPE"
	resp := f.do(t, http.MethodPost, "/api/orders", customerKey, req)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "invalid coupon code", decodeBody(t, resp)["message"])
	assert.Empty(t, f.orders.byID)
}

func TestCheckoutBadSignature(t *testing.T) {
	f := newFixture(t)

	req := checkoutBody()
	req["paymentMethod"] = "razorpay"
	req["gatewayOrderId"] = "order_1"
	req["gatewayPaymentId"] = "pay_1"
	req["gatewaySignature"] = "bogus"
	resp := f.do(t, http.MethodPost, "/api/orders", customerKey, req)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Empty(t, f.orders.byID)
}

func TestCheckoutOnlineVerified(t *testing.T) {
	f := newFixture(t)

	req := checkoutBody()
	req["paymentMethod"] = "razorpay"
	req["gatewayOrderId"] = "order_1"
	req["gatewayPaymentId"] = "pay_1"
	req["gatewaySignature"] = f.verifier.Sign("order_1", "pay_1")
	resp := f.do(t, http.MethodPost, "/api/orders", customerKey, req)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "confirmed", decodeBody(t, resp)["status"])
}

func TestAuthRequired(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, http.MethodGet, "/api/orders", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = f.do(t, http.MethodGet, "/api/orders", "wrong-key", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAdminScopeRequired(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, http.MethodGet, "/api/admin/orders", customerKey, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = f.do(t, http.MethodGet, "/api/admin/orders", adminKey, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestGetOrderOwnership(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, http.MethodPost, "/api/orders", customerKey, checkoutBody())
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	id := decodeBody(t, resp)["id"].(string)

	resp = f.do(t, http.MethodGet, "/api/orders/"+id, customerKey, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// Admin can view anyone's order.
	resp = f.do(t, http.MethodGet, "/api/orders/"+id, adminKey, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = f.do(t, http.MethodGet, "/api/orders/missing", customerKey, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestUpdateOrderStatus(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, http.MethodPost, "/api/orders", customerKey, checkoutBody())
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	id := decodeBody(t, resp)["id"].(string)

	resp = f.do(t, http.MethodPatch, "/api/admin/orders/"+id+"/status", adminKey,
		map[string]any{"status": "confirmed", "note": "Payment received via COD check"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "confirmed", decodeBody(t, resp)["status"])

	// Skipping dispatch is rejected by the transition table.
	resp = f.do(t, http.MethodPatch, "/api/admin/orders/"+id+"/status", adminKey,
		map[string]any{"status": "delivered"})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	resp = f.do(t, http.MethodPatch, "/api/admin/orders/"+id+"/status", adminKey,
		map[string]any{"status": "teleported"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCancelOrder(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, http.MethodPost, "/api/orders", customerKey, checkoutBody())
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	id := decodeBody(t, resp)["id"].(string)

	resp = f.do(t, http.MethodPost, "/api/orders/"+id+"/cancel", customerKey,
		map[string]any{"reason": "changed my mind"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "cancelled", decodeBody(t, resp)["status"])

	// A second cancel hits a terminal status.
	resp = f.do(t, http.MethodPost, "/api/orders/"+id+"/cancel", customerKey,
		map[string]any{"reason": "again"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestApplyCoupon(t *testing.T) {
	f := newFixture(t)
	f.coupons.rules["FLAT500"] = &coupon.Rule{
		ID:            "c2",
		Code:          "FLAT500",
		DiscountType:  coupon.DiscountFixed,
		DiscountValue: decimal.NewFromInt(500),
		ValidFrom:     time.Now().Add(-time.Hour),
		ValidUntil:    time.Now().Add(time.Hour),
		Active:        true,
	}

	resp := f.do(t, http.MethodPost, "/api/coupons/apply", customerKey,
		map[string]any{"code": "flat500"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, "FLAT500", body["code"])
	assert.Equal(t, "500", body["discount"])
}

func TestAdminCreateCoupon(t *testing.T) {
	f := newFixture(t)

	req := map[string]any{
		"code":          "WELCOME5",
		"discountType":  "percentage",
		"discountValue": 5,
		"validFrom":     time.Now().Add(-time.Hour).Format(time.RFC3339),
		"validUntil":    time.Now().Add(24 * time.Hour).Format(time.RFC3339),
	}
	resp := f.do(t, http.MethodPost, "/api/admin/coupons", adminKey, req)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	// Duplicate code conflicts.
	resp = f.do(t, http.MethodPost, "/api/admin/coupons", adminKey, req)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = f.do(t, http.MethodPost, "/api/admin/coupons", adminKey,
		map[string]any{"code": "BAD", "discountType": "half-off", "discountValue": 5})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

// stubKeyRepo resolves the two fixed test keys by their peppered hash.
type stubKeyRepo struct{}

func (s *stubKeyRepo) FindByHash(_ context.Context, hash string) (*auth.Key, error) {
	for raw, key := range map[string]*auth.Key{
		customerKey: {ID: "k1", UserID: "user-1", Name: "customer"},
		adminKey:    {ID: "k2", UserID: "admin-1", Name: "admin", Scopes: []string{auth.ScopeAdmin}},
	} {
		mac := hmac.New(sha256.New, []byte(keyPepper))
		mac.Write([]byte(raw))
		if h := hex.EncodeToString(mac.Sum(nil)); h == hash {
			key.KeyHash = h
			return key, nil
		}
	}
	return nil, auth.ErrKeyNotFound
}

type stubCartProvider struct {
	snapshot *cart.Snapshot
}

func (s *stubCartProvider) Snapshot(context.Context, string) (*cart.Snapshot, error) {
	return s.snapshot, nil
}

func (s *stubCartProvider) Clear(context.Context, string) error { return nil }

type stubCouponRepo struct {
	rules map[string]*coupon.Rule
}

func (s *stubCouponRepo) FindByCode(_ context.Context, code string) (*coupon.Rule, error) {
	rule, ok := s.rules[code]
	if !ok {
		return nil, coupon.ErrNotFound
	}
	return rule, nil
}

func (s *stubCouponRepo) Create(_ context.Context, rule *coupon.Rule) error {
	if _, ok := s.rules[rule.Code]; ok {
		return coupon.ErrCodeExists
	}
	s.rules[rule.Code] = rule
	return nil
}

func (s *stubCouponRepo) Update(_ context.Context, rule *coupon.Rule) error {
	if _, ok := s.rules[rule.Code]; !ok {
		return coupon.ErrNotFound
	}
	s.rules[rule.Code] = rule
	return nil
}

func (s *stubCouponRepo) Delete(_ context.Context, id string) error {
	for code, rule := range s.rules {
		if rule.ID == id {
			delete(s.rules, code)
			return nil
		}
	}
	return coupon.ErrNotFound
}

func (s *stubCouponRepo) List(context.Context, coupon.ListFilter) ([]coupon.Rule, int, error) {
	out := make([]coupon.Rule, 0, len(s.rules))
	for _, rule := range s.rules {
		out = append(out, *rule)
	}
	return out, len(out), nil
}

func (s *stubCouponRepo) ListActive(context.Context, time.Time) ([]coupon.Rule, error) {
	var out []coupon.Rule
	for _, rule := range s.rules {
		if rule.Active {
			out = append(out, *rule)
		}
	}
	return out, nil
}

type stubOrderRepo struct {
	byID map[string]*order.Order
}

func (s *stubOrderRepo) Create(_ context.Context, o *order.Order) error {
	s.byID[o.ID] = o
	return nil
}

func (s *stubOrderRepo) GetByID(_ context.Context, id string) (*order.Order, error) {
	o, ok := s.byID[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	return o, nil
}

func (s *stubOrderRepo) ListByUser(_ context.Context, userID string) ([]order.Order, error) {
	var out []order.Order
	for _, o := range s.byID {
		if o.UserID == userID {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (s *stubOrderRepo) List(context.Context, order.ListFilter) ([]order.Order, int, error) {
	out := make([]order.Order, 0, len(s.byID))
	for _, o := range s.byID {
		out = append(out, *o)
	}
	return out, len(out), nil
}

func (s *stubOrderRepo) Mutate(_ context.Context, id string, fn func(*order.Order) error) (*order.Order, error) {
	o, ok := s.byID[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	if err := fn(o); err != nil {
		return nil, err
	}
	return o, nil
}
