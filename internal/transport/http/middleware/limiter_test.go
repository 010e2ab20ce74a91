// file: internal/transport/http/middleware/limiter_test.go

package middleware_test

import (
	"GWExplorer/internal/transport/http/middleware"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

var testHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
})

func TestIPRateLimiter_SameIP(t *testing.T) {
	limiter := middleware.NewIPRateLimiter(1, 1)
	mw := limiter.Middleware(testHandler)

	t.Run("should allow first request", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/", nil)
		req.RemoteAddr = "192.0.2.1:12345"
		rr := httptest.NewRecorder()
		mw.ServeHTTP(rr, req)
		if rr.Code != http.StatusOK {
			t.Fatalf("First request should be allowed, got %d", rr.Code)
		}
	})

	t.Run("should block second request", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/", nil)
		req.RemoteAddr = "192.0.2.1:12345"
		rr := httptest.NewRecorder()
		mw.ServeHTTP(rr, req)
		if rr.Code != http.StatusTooManyRequests {
			t.Errorf("Second request should be blocked, got %d", rr.Code)
		}
	})

	t.Run("should allow requests again after delay", func(t *testing.T) {
		time.Sleep(1 * time.Second)
		req := httptest.NewRequest("GET", "/", nil)
		req.RemoteAddr = "192.0.2.1:12345"
		rr := httptest.NewRecorder()
		mw.ServeHTTP(rr, req)
		if rr.Code != http.StatusOK {
			t.Errorf("Request after delay should be allowed, got %d", rr.Code)
		}
	})
}

func TestIPRateLimiter_DifferentIP(t *testing.T) {
	limiter := middleware.NewIPRateLimiter(1, 1)
	mw := limiter.Middleware(testHandler)

	req1 := httptest.NewRequest("GET", "/", nil)
	req1.RemoteAddr = "192.0.2.1:12345"
	rr1 := httptest.NewRecorder()
	mw.ServeHTTP(rr1, req1)

	req2 := httptest.NewRequest("GET", "/", nil)
	req2.RemoteAddr = "192.0.2.2:54321"
	rr2 := httptest.NewRecorder()
	mw.ServeHTTP(rr2, req2)
	if rr2.Code != http.StatusOK {
		t.Errorf("Request from a different IP should be allowed, got %d", rr2.Code)
	}
}

func TestIPRateLimiter_ForwardedFor(t *testing.T) {
	limiter := middleware.NewIPRateLimiter(1, 1)
	mw := limiter.Middleware(testHandler)

	// 同一代理后的两个不同客户端应各自独立限流
	req1 := httptest.NewRequest("GET", "/", nil)
	req1.RemoteAddr = "10.0.0.1:1000"
	req1.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	rr1 := httptest.NewRecorder()
	mw.ServeHTTP(rr1, req1)
	if rr1.Code != http.StatusOK {
		t.Fatalf("First request for client A should be allowed, got %d", rr1.Code)
	}

	req2 := httptest.NewRequest("GET", "/", nil)
	req2.RemoteAddr = "10.0.0.1:1000"
	req2.Header.Set("X-Forwarded-For", "203.0.113.8, 10.0.0.1")
	rr2 := httptest.NewRecorder()
	mw.ServeHTTP(rr2, req2)
	if rr2.Code != http.StatusOK {
		t.Errorf("First request for client B should be allowed, got %d", rr2.Code)
	}

	req3 := httptest.NewRequest("GET", "/", nil)
	req3.RemoteAddr = "10.0.0.1:1000"
	req3.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	rr3 := httptest.NewRecorder()
	mw.ServeHTTP(rr3, req3)
	if rr3.Code != http.StatusTooManyRequests {
		t.Errorf("Second request for client A should be blocked, got %d", rr3.Code)
	}
}
