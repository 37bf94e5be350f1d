// Package handler exposes the coupon engine over HTTP with JSON bodies.
package handler

import (
	"net/http"

	"github.com/xenking/coupon-engine/internal/domain/coupon"
)

// Handler serves the coupon redemption endpoints, delegating business logic
// to the injected Applier.
type Handler struct {
	coupons coupon.Applier
}

// NewHandler constructs a Handler around the given Applier.
func NewHandler(coupons coupon.Applier) *Handler {
	return &Handler{coupons: coupons}
}

// Register mounts the API routes on the mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/coupon/apply", h.ApplyCoupon)
	mux.HandleFunc("POST /api/coupon/preview", h.PreviewCoupon)
}
