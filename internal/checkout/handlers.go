package checkout

import (
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/bookstore/internal/common"
	"github.com/noah-isme/bookstore/internal/pricing"
	"github.com/noah-isme/bookstore/internal/session"
)

// Sessions resolves the caller's session and keeps its buyer's purchase amount.
type Sessions interface {
	Snapshot(username string) (session.Session, bool)
	RecordPurchase(username string, amount decimal.Decimal)
}

// Handler exposes POST /api/v1/checkout.
type Handler struct {
	Service  *Service
	Sessions Sessions
}

type checkoutRequest struct {
	Coupon string `json:"coupon" validate:"omitempty,max=32"`
}

// Checkout prices and places the caller's cart. The body is optional.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	username, _ := common.Username(r.Context())
	sess, ok := h.Sessions.Snapshot(username)
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "NO_SESSION", "no active session", nil)
		return
	}
	if sess.IsAdmin {
		common.WriteError(w, common.ErrForbidden)
		return
	}

	var req checkoutRequest
	if r.ContentLength != 0 {
		if err := common.DecodeJSON(r, &req); err != nil {
			common.WriteError(w, err)
			return
		}
		if err := common.ValidateStruct(req); err != nil {
			common.WriteError(w, err)
			return
		}
	}

	res, err := h.Service.Checkout(r.Context(), Request{
		Username: username,
		Buyer:    sess.Buyer,
		Cart:     sess.Cart,
		Coupon:   strings.TrimSpace(req.Coupon),
	})
	if err != nil {
		common.WriteError(w, err)
		return
	}
	h.Sessions.RecordPurchase(username, res.Order.Buyer.PurchaseAmount)
	common.JSON(w, http.StatusCreated, map[string]any{
		"data": res,
		"meta": map[string]any{
			"amountPaid": pricing.Round2(res.Order.Total).StringFixed(2),
			"receipt":    res.Order.Format(),
		},
	})
}
