package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/furnicart/internal/domain/coupon"
	"github.com/xenking/furnicart/internal/domain/order"
	"github.com/xenking/furnicart/internal/domain/payment"
	"github.com/xenking/furnicart/internal/domain/pricing"
)

// errorResponse is the uniform error body for every non-2xx API response.
type errorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Code: status, Message: message})
}

// writeDomainError maps domain errors to HTTP statuses. Unknown errors are
// logged and reported as a bare 500 so internals never leak to clients.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, coupon.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, order.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, order.ErrNotAuthorized):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, coupon.ErrCodeExists):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, payment.ErrGatewayUnavailable):
		writeError(w, http.StatusBadGateway, "payment gateway unavailable")
	case errors.Is(err, pricing.ErrEmptyCart),
		errors.Is(err, coupon.ErrInactive),
		errors.Is(err, coupon.ErrExpired),
		errors.Is(err, coupon.ErrExhausted),
		errors.Is(err, payment.ErrMissingDetails),
		errors.Is(err, payment.ErrInvalidSignature),
		errors.Is(err, order.ErrInvalidPaymentMethod):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		var (
			minErr        *coupon.MinPurchaseError
			transitionErr *order.InvalidTransitionError
			cancelErr     *order.NotCancellableError
		)
		switch {
		case errors.As(err, &minErr):
			writeError(w, http.StatusBadRequest, minErr.Error())
		case errors.As(err, &transitionErr):
			writeError(w, http.StatusUnprocessableEntity, transitionErr.Error())
		case errors.As(err, &cancelErr):
			writeError(w, http.StatusBadRequest, cancelErr.Error())
		default:
			zctx.From(r.Context()).Error("request failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "internal server error")
		}
	}
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.Wrap(err, "invalid request body")
	}
	return nil
}
