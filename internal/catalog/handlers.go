package catalog

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/bookstore/internal/common"
)

// Handler exposes catalog endpoints.
type Handler struct {
	service *Service
}

// HandlerConfig configures the Handler dependencies.
type HandlerConfig struct {
	Service *Service
}

// NewHandler constructs a Handler.
func NewHandler(cfg HandlerConfig) *Handler {
	return &Handler{service: cfg.Service}
}

type rateRequest struct {
	Rating float64 `json:"rating" validate:"required"`
}

type addBookRequest struct {
	ID     int             `json:"id" validate:"required,gte=1"`
	Title  string          `json:"title" validate:"required"`
	Author string          `json:"author" validate:"required"`
	Price  decimal.Decimal `json:"price"`
	Stock  int             `json:"stock" validate:"gte=0"`
}

type stockRequest struct {
	Stock *int `json:"stock" validate:"required"`
}

// List handles GET /api/v1/books with an optional ?q= keyword.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	books := h.service.List(r.URL.Query().Get("q"))
	views := make([]View, 0, len(books))
	for _, b := range books {
		views = append(views, ViewOf(b))
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": views})
}

// Get handles GET /api/v1/books/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := bookIDParam(w, r)
	if !ok {
		return
	}
	b, err := h.service.Get(id)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": ViewOf(b)})
}

// Rate handles POST /api/v1/books/{id}/ratings.
func (h *Handler) Rate(w http.ResponseWriter, r *http.Request) {
	id, ok := bookIDParam(w, r)
	if !ok {
		return
	}
	var req rateRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	b, err := h.service.Rate(r.Context(), id, req.Rating)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": ViewOf(b)})
}

// AdminAdd handles POST /api/v1/admin/books.
func (h *Handler) AdminAdd(w http.ResponseWriter, r *http.Request) {
	var req addBookRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	if err := common.ValidateStruct(req); err != nil {
		common.WriteError(w, err)
		return
	}
	b := Book{ID: req.ID, Title: req.Title, Author: req.Author, Price: req.Price, Stock: req.Stock}
	if err := h.service.AddBook(r.Context(), b); err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": ViewOf(b)})
}

// AdminRemove handles DELETE /api/v1/admin/books/{id}.
func (h *Handler) AdminRemove(w http.ResponseWriter, r *http.Request) {
	id, ok := bookIDParam(w, r)
	if !ok {
		return
	}
	if err := h.service.RemoveBook(r.Context(), id); err != nil {
		common.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AdminSetStock handles PUT /api/v1/admin/books/{id}/stock.
func (h *Handler) AdminSetStock(w http.ResponseWriter, r *http.Request) {
	id, ok := bookIDParam(w, r)
	if !ok {
		return
	}
	var req stockRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	if err := common.ValidateStruct(req); err != nil {
		common.WriteError(w, err)
		return
	}
	b, err := h.service.UpdateStock(r.Context(), id, *req.Stock)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": ViewOf(b)})
}

func bookIDParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "INVALID_ID", "book id must be an integer", nil)
		return 0, false
	}
	return id, true
}
