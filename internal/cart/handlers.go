package cart

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/bookstore/internal/catalog"
	"github.com/noah-isme/bookstore/internal/common"
)

// Sessions resolves the cart and wishlist owned by a logged-in user.
type Sessions interface {
	Cart(username string) (*Cart, bool)
	Wishlist(username string) (*Wishlist, bool)
}

// Handler wires carts and wishlists to HTTP.
type Handler struct {
	Sessions Sessions
	Books    Lookup
}

type addLineRequest struct {
	BookID   int `json:"bookId" validate:"required"`
	Quantity int `json:"quantity" validate:"required"`
}

type updateLineRequest struct {
	Quantity int `json:"quantity" validate:"required"`
}

type wishlistRequest struct {
	BookID int `json:"bookId" validate:"required"`
}

type cartView struct {
	Lines    []LineDetail    `json:"lines"`
	Subtotal decimal.Decimal `json:"subtotal"`
}

func viewOf(c *Cart) cartView {
	total, lines := c.Subtotal()
	return cartView{Lines: lines, Subtotal: total.Round(2)}
}

// Get returns the caller's cart with line totals.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	c, ok := h.cart(w, r)
	if !ok {
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": viewOf(c)})
}

// AddLine handles POST /api/v1/cart/lines. The response reports the clamped quantity.
func (h *Handler) AddLine(w http.ResponseWriter, r *http.Request) {
	c, ok := h.cart(w, r)
	if !ok {
		return
	}
	var req addLineRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	if err := common.ValidateStruct(req); err != nil {
		common.WriteError(w, err)
		return
	}
	added, err := c.AddLine(h.Books, req.BookID, req.Quantity)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"data": viewOf(c),
		"meta": map[string]any{
			"requested": req.Quantity,
			"added":     added,
			"clamped":   added < req.Quantity,
		},
	})
}

// UpdateLine handles PATCH /api/v1/cart/lines/{bookId}.
func (h *Handler) UpdateLine(w http.ResponseWriter, r *http.Request) {
	c, ok := h.cart(w, r)
	if !ok {
		return
	}
	bookID, ok := bookIDParam(w, r)
	if !ok {
		return
	}
	var req updateLineRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	if err := c.UpdateQuantity(h.Books, bookID, req.Quantity); err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": viewOf(c)})
}

// RemoveLine handles DELETE /api/v1/cart/lines/{bookId}.
func (h *Handler) RemoveLine(w http.ResponseWriter, r *http.Request) {
	c, ok := h.cart(w, r)
	if !ok {
		return
	}
	bookID, ok := bookIDParam(w, r)
	if !ok {
		return
	}
	if err := c.RemoveLine(bookID); err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": viewOf(c)})
}

// Wishlist handles GET /api/v1/wishlist.
func (h *Handler) Wishlist(w http.ResponseWriter, r *http.Request) {
	wl, ok := h.wishlist(w, r)
	if !ok {
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": views(wl.Books())})
}

// AddWishlist handles POST /api/v1/wishlist.
func (h *Handler) AddWishlist(w http.ResponseWriter, r *http.Request) {
	wl, ok := h.wishlist(w, r)
	if !ok {
		return
	}
	var req wishlistRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	if _, err := wl.Add(h.Books, req.BookID); err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": views(wl.Books())})
}

func views(books []catalog.Book) []catalog.View {
	out := make([]catalog.View, 0, len(books))
	for _, b := range books {
		out = append(out, catalog.ViewOf(b))
	}
	return out
}

func (h *Handler) cart(w http.ResponseWriter, r *http.Request) (*Cart, bool) {
	username, _ := common.Username(r.Context())
	c, ok := h.Sessions.Cart(username)
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "NO_SESSION", "no active session", nil)
		return nil, false
	}
	return c, true
}

func (h *Handler) wishlist(w http.ResponseWriter, r *http.Request) (*Wishlist, bool) {
	username, _ := common.Username(r.Context())
	wl, ok := h.Sessions.Wishlist(username)
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "NO_SESSION", "no active session", nil)
		return nil, false
	}
	return wl, true
}

func bookIDParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := chi.URLParam(r, "bookId")
	id, err := strconv.Atoi(raw)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "INVALID_ID", fmt.Sprintf("book id %q must be an integer", raw), nil)
		return 0, false
	}
	return id, true
}
