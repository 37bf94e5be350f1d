package handler

import (
	"context"
	"io"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/coupon-engine/internal/domain/coupon"
)

// maxBodyBytes bounds request bodies; order payloads are small.
const maxBodyBytes = 1 << 20

// ApplyCoupon redeems a coupon for an order: on success exactly one usage
// record exists for the (coupon, order) pair.
func (h *Handler) ApplyCoupon(w http.ResponseWriter, r *http.Request) {
	h.redeem(w, r, h.coupons.Apply)
}

// PreviewCoupon evaluates and calculates without recording usage.
func (h *Handler) PreviewCoupon(w http.ResponseWriter, r *http.Request) {
	h.redeem(w, r, h.coupons.Preview)
}

type redeemFunc func(ctx context.Context, code string, octx coupon.OrderContext) (*coupon.Redemption, error)

func (h *Handler) redeem(w http.ResponseWriter, r *http.Request, apply redeemFunc) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "cannot read request body", "")
		return
	}

	req, err := decodeRedeemRequest(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "")
		return
	}

	red, err := apply(r.Context(), req.Code, req.Order)
	if err != nil {
		h.writeRedeemError(w, r, err)
		return
	}

	writeRedemption(w, req.Order.OrderID, red)
}

// writeRedeemError maps engine outcomes to HTTP responses. Expected outcomes
// carry their specific reason; only store failures become opaque 500s.
func (h *Handler) writeRedeemError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, coupon.ErrCodeNotFound):
		writeError(w, http.StatusNotFound, "coupon code not found", "code_not_found")
	case errors.Is(err, coupon.ErrOrderAlreadyRedeemed):
		writeError(w, http.StatusConflict, "order already redeemed this coupon", "already_applied")
	default:
		var ie *coupon.IneligibleError
		if errors.As(err, &ie) {
			writeError(w, http.StatusUnprocessableEntity, ie.Error(), string(ie.Reason))
			return
		}
		zctx.From(r.Context()).Error("redeem failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error", "")
	}
}
