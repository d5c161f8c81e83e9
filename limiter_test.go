package cmsengine

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
)

func TestWriteLimiterBlocksAfterMax(t *testing.T) {
	limiter := NewWriteLimiter(2, 200*time.Millisecond)
	defer limiter.Stop()
	ip := "203.0.113.10"

	if !limiter.Allow(ip) {
		t.Fatalf("expected first write to be allowed")
	}
	if !limiter.Allow(ip) {
		t.Fatalf("expected second write to be allowed")
	}
	if limiter.Allow(ip) {
		t.Fatalf("expected third write to be blocked")
	}
}

func TestWriteLimiterResetsAfterWindow(t *testing.T) {
	limiter := NewWriteLimiter(1, 150*time.Millisecond)
	defer limiter.Stop()
	ip := "203.0.113.20"

	if !limiter.Allow(ip) {
		t.Fatalf("expected first write to be allowed")
	}
	if limiter.Allow(ip) {
		t.Fatalf("expected second write to be blocked")
	}

	time.Sleep(200 * time.Millisecond)
	if !limiter.Allow(ip) {
		t.Fatalf("expected write after window to be allowed")
	}
}

func TestWriteLimiterIsPerIP(t *testing.T) {
	limiter := NewWriteLimiter(1, 200*time.Millisecond)
	defer limiter.Stop()

	if !limiter.Allow("203.0.113.30") {
		t.Fatalf("expected first ip to be allowed")
	}
	if !limiter.Allow("203.0.113.31") {
		t.Fatalf("expected second ip to be allowed independently")
	}
	if limiter.Allow("203.0.113.30") {
		t.Fatalf("expected first ip to be blocked after max")
	}
}

func TestWriteLimiterMiddlewareSkipsReads(t *testing.T) {
	limiter := NewWriteLimiter(1, time.Minute)
	defer limiter.Stop()

	e := echo.New()
	h := limiter.Middleware(func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	do := func(method string) int {
		req := httptest.NewRequest(method, "/api/v1/sliders", nil)
		req.RemoteAddr = "203.0.113.40:1234"
		rec := httptest.NewRecorder()
		if err := h(e.NewContext(req, rec)); err != nil {
			t.Fatalf("handler error: %v", err)
		}
		return rec.Code
	}

	if code := do(http.MethodPost); code != http.StatusOK {
		t.Fatalf("first POST status = %d, want %d", code, http.StatusOK)
	}
	for i := 0; i < 3; i++ {
		if code := do(http.MethodGet); code != http.StatusOK {
			t.Fatalf("GET status = %d, want %d", code, http.StatusOK)
		}
	}
	if code := do(http.MethodDelete); code != http.StatusTooManyRequests {
		t.Fatalf("DELETE status = %d, want %d", code, http.StatusTooManyRequests)
	}
}

func TestWriteLimiterStopIsIdempotent(t *testing.T) {
	limiter := NewWriteLimiter(1, time.Minute)
	limiter.Stop()
	limiter.Stop()
}
