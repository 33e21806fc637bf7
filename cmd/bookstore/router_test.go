package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/bookstore/internal/config"
)

type testServer struct {
	t   *testing.T
	srv *httptest.Server
	dir string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	dir := t.TempDir()
	cfg, err := config.LoadForTests(map[string]string{
		"JWT_SECRET":       "router-test-secret",
		"DATA_DIR":         dir,
		"NOTIFY_ENABLED":   "false",
		"REDIS_URL":        "",
		"KAFKA_BROKERS":    "",
		"LOGIN_RATE_LIMIT": "100-M",
	})
	require.NoError(t, err)

	application, err := newApp(context.Background(), cfg, zerolog.Nop(), infra{})
	require.NoError(t, err)
	srv := httptest.NewServer(application.routes(routerOptions{}))
	t.Cleanup(func() {
		srv.Close()
		application.close()
	})
	return &testServer{t: t, srv: srv, dir: dir}
}

func (s *testServer) do(method, path, token string, body any) (int, map[string]any) {
	s.t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(s.t, err)
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, s.srv.URL+path, reader)
	require.NoError(s.t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := s.srv.Client().Do(req)
	require.NoError(s.t, err)
	defer resp.Body.Close()

	out := map[string]any{}
	raw, err := io.ReadAll(resp.Body)
	require.NoError(s.t, err)
	if len(raw) > 0 {
		require.NoError(s.t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp.StatusCode, out
}

func (s *testServer) login(username, password string, extra map[string]any) string {
	s.t.Helper()
	body := map[string]any{"username": username, "password": password}
	for k, v := range extra {
		body[k] = v
	}
	status, out := s.do(http.MethodPost, "/api/v1/auth/login", "", body)
	require.Equal(s.t, http.StatusOK, status, out)
	token, _ := out["data"].(map[string]any)["access_token"].(string)
	require.NotEmpty(s.t, token)
	return token
}

func TestHealthAndCatalogArePublic(t *testing.T) {
	s := newTestServer(t)

	status, _ := s.do(http.MethodGet, "/health/live", "", nil)
	require.Equal(t, http.StatusOK, status)
	status, out := s.do(http.MethodGet, "/health/ready", "", nil)
	require.Equal(t, http.StatusOK, status, out)

	status, out = s.do(http.MethodGet, "/api/v1/books", "", nil)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, out["data"], 10)

	status, _ = s.do(http.MethodGet, "/api/v1/books/999", "", nil)
	require.Equal(t, http.StatusNotFound, status)
}

func TestCartRequiresSession(t *testing.T) {
	s := newTestServer(t)

	status, _ := s.do(http.MethodGet, "/api/v1/cart", "", nil)
	require.Equal(t, http.StatusUnauthorized, status)
	status, _ = s.do(http.MethodPost, "/api/v1/checkout", "not-a-token", nil)
	require.Equal(t, http.StatusUnauthorized, status)
}

func TestShoppingFlow(t *testing.T) {
	s := newTestServer(t)

	status, out := s.do(http.MethodPost, "/api/v1/auth/register", "", map[string]any{
		"username": "alice", "password": "secret", "id": 5,
	})
	require.Equal(t, http.StatusCreated, status, out)

	token := s.login("alice", "secret", map[string]any{"starLevel": 5})

	status, out = s.do(http.MethodPost, "/api/v1/cart/lines", token, map[string]any{"bookId": 1, "quantity": 2})
	require.Equal(t, http.StatusOK, status, out)

	status, out = s.do(http.MethodPost, "/api/v1/checkout", token, nil)
	require.Equal(t, http.StatusCreated, status, out)
	meta := out["meta"].(map[string]any)
	require.Equal(t, "15.39", meta["amountPaid"])
	require.Contains(t, meta["receipt"], "The Great Gatsby")

	status, out = s.do(http.MethodGet, "/api/v1/books/1", "", nil)
	require.Equal(t, http.StatusOK, status)
	require.EqualValues(t, 8, out["data"].(map[string]any)["stock"])

	status, out = s.do(http.MethodGet, "/api/v1/orders", token, nil)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, out["data"], 1)

	history, err := os.ReadFile(filepath.Join(s.dir, "order_details.txt"))
	require.NoError(t, err)
	require.True(t, strings.Contains(string(history), "Name: alice"), string(history))

	status, _ = s.do(http.MethodPost, "/api/v1/auth/logout", token, nil)
	require.Equal(t, http.StatusNoContent, status)
	status, _ = s.do(http.MethodGet, "/api/v1/cart", token, nil)
	require.Equal(t, http.StatusUnauthorized, status)
}

func TestAdminRoutes(t *testing.T) {
	s := newTestServer(t)

	status, _ := s.do(http.MethodPost, "/api/v1/auth/register", "", map[string]any{
		"username": "bob", "password": "secret", "id": 1500,
	})
	require.Equal(t, http.StatusCreated, status)
	customer := s.login("bob", "secret", nil)
	status, _ = s.do(http.MethodPut, "/api/v1/admin/books/1/stock", customer, map[string]any{"stock": 1})
	require.Equal(t, http.StatusForbidden, status)

	admin := s.login("admin", "admin123", nil)
	status, out := s.do(http.MethodPut, "/api/v1/admin/books/1/stock", admin, map[string]any{"stock": 1})
	require.Equal(t, http.StatusOK, status, out)
	require.EqualValues(t, 1, out["data"].(map[string]any)["stock"])

	status, out = s.do(http.MethodPost, "/api/v1/admin/books", admin, map[string]any{
		"id": 42, "title": "Dune", "author": "Frank Herbert", "price": "18.00", "stock": 3,
	})
	require.Equal(t, http.StatusCreated, status, out)

	status, _ = s.do(http.MethodDelete, "/api/v1/admin/books/42", admin, nil)
	require.Equal(t, http.StatusNoContent, status)

	status, _ = s.do(http.MethodPost, "/api/v1/checkout", admin, nil)
	require.Equal(t, http.StatusForbidden, status)
}

func TestRouterHardening(t *testing.T) {
	s := newTestServer(t)

	req, err := http.NewRequest(http.MethodGet, s.srv.URL+"/api/v1/books", nil)
	require.NoError(t, err)
	resp, err := s.srv.Client().Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))

	big := strings.Repeat("x", 2<<20)
	status, out := s.do(http.MethodPost, "/api/v1/auth/register", "", map[string]any{
		"username": big, "password": "pw", "id": 7,
	})
	require.Equal(t, http.StatusRequestEntityTooLarge, status, out)
}
