package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestAllow(t *testing.T) {
	// A burst of 2 means the bucket starts with 2 tokens.
	limiter := NewLimiter(10, 2)

	if !limiter.Allow("key-a") {
		t.Error("First request should be allowed")
	}
	if !limiter.Allow("key-a") {
		t.Error("Second request should be allowed")
	}
	if limiter.Allow("key-a") {
		t.Error("Third request should be rate limited")
	}

	// Separate keys have separate buckets.
	if !limiter.Allow("key-b") {
		t.Error("Fresh key should be allowed")
	}

	// 10 req/s refills one token every 100ms.
	time.Sleep(150 * time.Millisecond)
	if !limiter.Allow("key-a") {
		t.Error("Request after refill should be allowed")
	}
}

func TestMiddleware(t *testing.T) {
	limiter := NewLimiter(10, 1)
	handler := limiter.Middleware(BearerKeyFunc)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/api/v1/resources", nil)
	req.Header.Set("Authorization", "Bearer cst_a")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("First request should succeed, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusTooManyRequests {
		t.Errorf("Second request should be limited, got %d", w.Code)
	}

	// A different credential has its own budget.
	other := httptest.NewRequest("GET", "/api/v1/resources", nil)
	other.Header.Set("Authorization", "Bearer cst_b")
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, other)
	if w.Code != http.StatusOK {
		t.Errorf("Other caller should not share the bucket, got %d", w.Code)
	}
}

func TestHealthExempt(t *testing.T) {
	limiter := NewLimiter(10, 1)
	handler := limiter.Middleware(IPKeyFunc)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 5; i++ {
		req := httptest.NewRequest("GET", "/health", nil)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("Health probe %d should not be limited, got %d", i, w.Code)
		}
	}
}

func TestCleanupStale(t *testing.T) {
	limiter := NewLimiter(10, 2)

	limiter.Allow("old-key")
	time.Sleep(50 * time.Millisecond)
	limiter.Allow("fresh-key")

	removed := limiter.CleanupStale(25 * time.Millisecond)
	if removed != 1 {
		t.Errorf("Expected 1 stale bucket removed, got %d", removed)
	}

	// The surviving key keeps its consumed tokens; the removed one starts over.
	if !limiter.Allow("old-key") || !limiter.Allow("old-key") {
		t.Error("Removed key should start with a full bucket")
	}
}

func TestKeyFuncs(t *testing.T) {
	req := httptest.NewRequest("GET", "/api/v1/resources", nil)
	req.RemoteAddr = "10.0.0.9:5555"

	if got := IPKeyFunc(req); got != "10.0.0.9:5555" {
		t.Errorf("Expected RemoteAddr key, got %s", got)
	}

	req.Header.Set("X-Forwarded-For", "203.0.113.7")
	if got := IPKeyFunc(req); got != "203.0.113.7" {
		t.Errorf("Expected forwarded key, got %s", got)
	}

	if got := BearerKeyFunc(req); got != "203.0.113.7" {
		t.Errorf("Expected IP fallback without credentials, got %s", got)
	}

	req.Header.Set("Authorization", "Bearer cst_x")
	if got := BearerKeyFunc(req); got != "Bearer cst_x" {
		t.Errorf("Expected credential key, got %s", got)
	}
}
