package order

import (
	"net/http"

	"github.com/noah-isme/bookstore/internal/common"
)

// Accounts resolves the account id of a logged-in user.
type Accounts interface {
	AccountID(username string) (int, bool)
}

// Handler serves the order history of the caller.
type Handler struct {
	Log      *FileLog
	Accounts Accounts
}

// List handles GET /api/v1/orders.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	username, _ := common.Username(r.Context())
	id, ok := h.Accounts.AccountID(username)
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "NO_SESSION", "no active session", nil)
		return
	}
	blocks, err := h.Log.History(id)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": blocks})
}
