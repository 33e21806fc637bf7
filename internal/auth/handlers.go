package auth

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/bookstore/internal/common"
)

const (
	httpStatusUnauthorized = http.StatusUnauthorized
)

// Handler exposes HTTP handlers for authentication and account endpoints.
type Handler struct {
	Service *Service
}

type registerRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
	ID       int    `json:"id" validate:"gte=1"`
}

type loginRequest struct {
	Username     string          `json:"username" validate:"required"`
	Password     string          `json:"password" validate:"required"`
	StarLevel    int             `json:"starLevel"`
	DiscountRate decimal.Decimal `json:"discountRate"`
}

// Register handles POST /api/v1/auth/register.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	if err := common.ValidateStruct(req); err != nil {
		common.WriteError(w, err)
		return
	}
	user, err := h.Service.Register(r.Context(), req.Username, req.Password, req.ID)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": user})
}

// Login handles POST /api/v1/auth/login.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	if err := common.ValidateStruct(req); err != nil {
		common.WriteError(w, err)
		return
	}
	result, err := h.Service.Login(r.Context(), LoginInput{
		Username:     req.Username,
		Password:     req.Password,
		StarLevel:    req.StarLevel,
		DiscountRate: req.DiscountRate,
	})
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": result})
}

// Logout handles POST /api/v1/auth/logout.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	username, _ := common.Username(r.Context())
	if err := h.Service.Logout(r.Context(), username); err != nil {
		common.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Me handles GET /api/v1/auth/me.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	username, _ := common.Username(r.Context())
	profile, err := h.Service.Me(username)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": profile})
}
