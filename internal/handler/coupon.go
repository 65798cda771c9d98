package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/xenking/furnicart/internal/domain/coupon"
)

type couponView struct {
	ID            string              `json:"id"`
	Code          string              `json:"code"`
	DiscountType  coupon.DiscountType `json:"discountType"`
	DiscountValue decimal.Decimal     `json:"discountValue"`
	MinPurchase   decimal.Decimal     `json:"minPurchase"`
	MaxDiscount   decimal.Decimal     `json:"maxDiscount,omitempty"`
	ValidFrom     time.Time           `json:"validFrom"`
	ValidUntil    time.Time           `json:"validUntil"`
	UsageLimit    int                 `json:"usageLimit,omitempty"`
	UsedCount     int                 `json:"usedCount"`
	Active        bool                `json:"isActive"`
	CreatedAt     time.Time           `json:"createdAt"`
}

func viewCoupon(r *coupon.Rule) couponView {
	return couponView{
		ID:            r.ID,
		Code:          r.Code,
		DiscountType:  r.DiscountType,
		DiscountValue: r.DiscountValue,
		MinPurchase:   r.MinPurchase,
		MaxDiscount:   r.MaxDiscount,
		ValidFrom:     r.ValidFrom,
		ValidUntil:    r.ValidUntil,
		UsageLimit:    r.UsageLimit,
		UsedCount:     r.UsedCount,
		Active:        r.Active,
		CreatedAt:     r.CreatedAt,
	}
}

func viewCoupons(rules []coupon.Rule) []couponView {
	out := make([]couponView, len(rules))
	for i := range rules {
		out[i] = viewCoupon(&rules[i])
	}
	return out
}

type applyCouponRequest struct {
	Code string `json:"code"`
}

type applyCouponResponse struct {
	Code          string              `json:"code"`
	Discount      decimal.Decimal     `json:"discount"`
	DiscountType  coupon.DiscountType `json:"discountType"`
	DiscountValue decimal.Decimal     `json:"discountValue"`
}

// ApplyCoupon validates a coupon against the caller's current cart and
// returns the discount it would grant. No usage is consumed; that happens at
// checkout.
func (h *Handler) ApplyCoupon(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFrom(r.Context())

	var req applyCouponRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Code == "" {
		writeError(w, http.StatusBadRequest, "coupon code is required")
		return
	}

	d, err := h.orders.PreviewCoupon(r.Context(), actor.UserID, req.Code)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, applyCouponResponse{
		Code:          d.Code,
		Discount:      d.Amount,
		DiscountType:  d.DiscountType,
		DiscountValue: d.DiscountValue,
	})
}

// ListActiveCoupons returns currently redeemable coupons for the storefront.
func (h *Handler) ListActiveCoupons(w http.ResponseWriter, r *http.Request) {
	rules, err := h.coupons.ListActive(r.Context(), h.now())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"coupons": viewCoupons(rules)})
}

type couponRequest struct {
	Code          string          `json:"code"`
	DiscountType  string          `json:"discountType"`
	DiscountValue decimal.Decimal `json:"discountValue"`
	MinPurchase   decimal.Decimal `json:"minPurchase"`
	MaxDiscount   decimal.Decimal `json:"maxDiscount"`
	ValidFrom     time.Time       `json:"validFrom"`
	ValidUntil    time.Time       `json:"validUntil"`
	UsageLimit    int             `json:"usageLimit"`
	Active        *bool           `json:"isActive"`
}

func (req *couponRequest) validate() string {
	switch {
	case req.Code == "":
		return "coupon code is required"
	case !coupon.DiscountType(req.DiscountType).Valid():
		return "discountType must be percentage or fixed"
	case req.DiscountValue.LessThanOrEqual(decimal.Zero):
		return "discountValue must be positive"
	case req.ValidUntil.Before(req.ValidFrom):
		return "validUntil must not precede validFrom"
	default:
		return ""
	}
}

func (req *couponRequest) rule(id string, createdAt time.Time) *coupon.Rule {
	active := true
	if req.Active != nil {
		active = *req.Active
	}
	return &coupon.Rule{
		ID:            id,
		Code:          req.Code,
		DiscountType:  coupon.DiscountType(req.DiscountType),
		DiscountValue: req.DiscountValue,
		MinPurchase:   req.MinPurchase,
		MaxDiscount:   req.MaxDiscount,
		ValidFrom:     req.ValidFrom,
		ValidUntil:    req.ValidUntil,
		UsageLimit:    req.UsageLimit,
		Active:        active,
		CreatedAt:     createdAt,
	}
}

// AdminCreateCoupon creates a coupon rule.
func (h *Handler) AdminCreateCoupon(w http.ResponseWriter, r *http.Request) {
	var req couponRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if msg := req.validate(); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	rule := req.rule(uuid.New().String(), h.now())
	if err := h.coupons.Create(r.Context(), rule); err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, viewCoupon(rule))
}

// AdminUpdateCoupon replaces a coupon rule's definition. The usage counter
// is kept by the repository.
func (h *Handler) AdminUpdateCoupon(w http.ResponseWriter, r *http.Request) {
	var req couponRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if msg := req.validate(); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	rule := req.rule(r.PathValue("id"), h.now())
	if err := h.coupons.Update(r.Context(), rule); err != nil {
		writeDomainError(w, r, err)
		return
	}

	updated, err := h.coupons.FindByCode(r.Context(), rule.Code)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, viewCoupon(updated))
}

// AdminDeleteCoupon removes a coupon rule.
func (h *Handler) AdminDeleteCoupon(w http.ResponseWriter, r *http.Request) {
	if err := h.coupons.Delete(r.Context(), r.PathValue("id")); err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AdminListCoupons lists coupon rules with optional activation filter and
// pagination.
func (h *Handler) AdminListCoupons(w http.ResponseWriter, r *http.Request) {
	var filter coupon.ListFilter
	if raw := r.URL.Query().Get("active"); raw != "" {
		active, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "active must be a boolean")
			return
		}
		filter.Active = &active
	}
	filter.Page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	filter.Limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 {
		filter.Limit = 20
	}

	rules, total, err := h.coupons.List(r.Context(), filter)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"coupons": viewCoupons(rules),
		"total":   total,
	})
}
