package ratelimit

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
}

func serve(h http.Handler, remote string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", nil)
	req.RemoteAddr = remote
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestMemoryLimiterIsPerClient(t *testing.T) {
	lim, err := NewMemory("2-M", "test")
	require.NoError(t, err)
	h := Handler{Limiter: lim}.Middleware(okHandler())

	require.Equal(t, http.StatusOK, serve(h, "10.0.0.1:1000").Code)
	require.Equal(t, http.StatusOK, serve(h, "10.0.0.1:1001").Code)

	rr := serve(h, "10.0.0.1:1002")
	require.Equal(t, http.StatusTooManyRequests, rr.Code)
	require.Equal(t, "2", rr.Header().Get("X-RateLimit-Limit"))
	require.Equal(t, "0", rr.Header().Get("X-RateLimit-Remaining"))
	require.NotEmpty(t, rr.Header().Get("Retry-After"))
	require.Contains(t, rr.Body.String(), "RATE_LIMITED")

	require.Equal(t, http.StatusOK, serve(h, "10.0.0.2:1000").Code)
}

func TestRedisLimiterEnforcesLimit(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	lim, err := NewRedis(client, "1-H", "login")
	require.NoError(t, err)
	h := Handler{Limiter: lim, Key: func(*http.Request) string { return "static" }}.Middleware(okHandler())

	require.Equal(t, http.StatusOK, serve(h, "a:1").Code)
	require.Equal(t, http.StatusTooManyRequests, serve(h, "b:1").Code)
}

func TestRejectsBadRate(t *testing.T) {
	_, err := NewMemory("ten-per-minute", "x")
	require.Error(t, err)
}

type brokenLimiter struct{}

func (brokenLimiter) Allow(context.Context, string) (Decision, error) {
	return Decision{}, errors.New("redis down")
}

func TestMiddlewareFailsOpen(t *testing.T) {
	var seen error
	h := Handler{Limiter: brokenLimiter{}, OnError: func(err error) { seen = err }}.Middleware(okHandler())

	require.Equal(t, http.StatusOK, serve(h, "10.0.0.1:1").Code)
	require.EqualError(t, seen, "redis down")
}
