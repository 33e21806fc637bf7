package catalog_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/bookstore/internal/catalog"
	"github.com/noah-isme/bookstore/internal/lock"
)

type booksResponse struct {
	Data []struct {
		ID            int     `json:"id"`
		Title         string  `json:"title"`
		Price         string  `json:"price"`
		Stock         int     `json:"stock"`
		AverageRating float64 `json:"averageRating"`
	} `json:"data"`
}

type errorResponse struct {
	Error struct {
		Code string `json:"code"`
	} `json:"error"`
}

func newTestHandler(t *testing.T) (*catalog.Handler, *catalog.Service, *catalog.FileStore) {
	t.Helper()
	store := catalog.NewFileStore(filepath.Join(t.TempDir(), "book_data.txt"), zerolog.Nop())
	svc, err := catalog.NewService(catalog.ServiceConfig{Store: store, Locker: lock.NewLocal(), Logger: zerolog.Nop()})
	require.NoError(t, err)
	return catalog.NewHandler(catalog.HandlerConfig{Service: svc}), svc, store
}

func withID(req *http.Request, id string) *http.Request {
	routeCtx := chi.NewRouteContext()
	routeCtx.URLParams.Add("id", id)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))
}

func TestCatalogHandlers(t *testing.T) {
	handler, _, store := newTestHandler(t)

	t.Run("search", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.List(rec, httptest.NewRequest(http.MethodGet, "/api/v1/books?q=austen", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		var resp booksResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Len(t, resp.Data, 1)
		require.Equal(t, "Pride and Prejudice", resp.Data[0].Title)
		require.Equal(t, "9.99", resp.Data[0].Price)
	})

	t.Run("get unknown", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.Get(rec, withID(httptest.NewRequest(http.MethodGet, "/api/v1/books/77", nil), "77"))
		require.Equal(t, http.StatusNotFound, rec.Code)
		var resp errorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Equal(t, "NOT_FOUND", resp.Error.Code)
	})

	t.Run("rate persists", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/v1/books/2/ratings", strings.NewReader(`{"rating":3}`))
		handler.Rate(rec, withID(req, "2"))
		require.Equal(t, http.StatusOK, rec.Code)

		books, err := store.Load()
		require.NoError(t, err)
		require.InDelta(t, 3.0, books[1].AverageRating(), 1e-9)
	})

	t.Run("rating out of range", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/v1/books/2/ratings", strings.NewReader(`{"rating":7}`))
		handler.Rate(rec, withID(req, "2"))
		require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})

	t.Run("admin add, stock, remove", func(t *testing.T) {
		rec := httptest.NewRecorder()
		body := `{"id":11,"title":"Dune","author":"Frank Herbert","price":"18.50","stock":2}`
		handler.AdminAdd(rec, httptest.NewRequest(http.MethodPost, "/api/v1/admin/books", strings.NewReader(body)))
		require.Equal(t, http.StatusCreated, rec.Code)

		rec = httptest.NewRecorder()
		handler.AdminAdd(rec, httptest.NewRequest(http.MethodPost, "/api/v1/admin/books", strings.NewReader(body)))
		require.Equal(t, http.StatusConflict, rec.Code)

		rec = httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPut, "/api/v1/admin/books/11/stock", strings.NewReader(`{"stock":9}`))
		handler.AdminSetStock(rec, withID(req, "11"))
		require.Equal(t, http.StatusOK, rec.Code)

		rec = httptest.NewRecorder()
		handler.AdminRemove(rec, withID(httptest.NewRequest(http.MethodDelete, "/api/v1/admin/books/11", nil), "11"))
		require.Equal(t, http.StatusNoContent, rec.Code)

		books, err := store.Load()
		require.NoError(t, err)
		require.Len(t, books, 10)
	})

	t.Run("admin add validation", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.AdminAdd(rec, httptest.NewRequest(http.MethodPost, "/api/v1/admin/books", strings.NewReader(`{"id":12}`)))
		require.Equal(t, http.StatusBadRequest, rec.Code)
		var resp errorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Equal(t, "VALIDATION_FAILED", resp.Error.Code)
	})
}
