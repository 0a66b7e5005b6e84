package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type stubLimiter struct {
	allow bool
	err   error
	keys  []string
}

func (s *stubLimiter) Allow(_ context.Context, key string, _ int, _ time.Duration) (bool, error) {
	s.keys = append(s.keys, key)
	return s.allow, s.err
}

func rateLimitedHandler(limiter *stubLimiter) http.Handler {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return RateLimit(limiter, 10, time.Minute)(next)
}

func TestRateLimitAllows(t *testing.T) {
	limiter := &stubLimiter{allow: true}
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/positions", nil)
	req.RemoteAddr = "10.0.0.5:51234"

	rateLimitedHandler(limiter).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"ratelimit:api:10.0.0.5"}, limiter.keys)
}

func TestRateLimitBlocksWith429(t *testing.T) {
	limiter := &stubLimiter{allow: false}
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/positions", nil)

	rateLimitedHandler(limiter).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
}

func TestRateLimitFailsOpenOnLimiterError(t *testing.T) {
	limiter := &stubLimiter{err: errors.New("redis down")}
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/positions", nil)

	rateLimitedHandler(limiter).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimitKeyPrefersForwardedFor(t *testing.T) {
	limiter := &stubLimiter{allow: true}
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/positions", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")

	rateLimitedHandler(limiter).ServeHTTP(rec, req)

	assert.Equal(t, []string{"ratelimit:api:203.0.113.9"}, limiter.keys)
}
