package middleware

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/ricesearch/review-topics/internal/pkg/errors"
)

func TestNewRateLimiter_Defaults(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{RequestsPerSecond: 10})
	defer rl.Close()

	if rl.burst != 1 {
		t.Errorf("burst = %d, want 1", rl.burst)
	}
	if rl.idle != DefaultRateLimiterConfig().IdleTimeout {
		t.Errorf("idle = %v, want default", rl.idle)
	}
	if rl.Clients() != 0 {
		t.Errorf("expected no clients, got %d", rl.Clients())
	}
}

func TestRateLimiter_Allow(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{RequestsPerSecond: 2, Burst: 2})
	defer rl.Close()

	addr := "192.168.1.100"

	if !rl.Allow(addr) || !rl.Allow(addr) {
		t.Fatal("expected burst of two to be allowed")
	}
	if rl.Allow(addr) {
		t.Error("expected third request to be denied")
	}

	time.Sleep(600 * time.Millisecond)

	if !rl.Allow(addr) {
		t.Error("expected request to be allowed after refill")
	}
}

func TestRateLimiter_ClientsAreIndependent(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{RequestsPerSecond: 5, Burst: 5})
	defer rl.Close()

	for i := 0; i < 5; i++ {
		if !rl.Allow("a") || !rl.Allow("b") {
			t.Fatalf("request %d should be allowed for both clients", i)
		}
	}
	if rl.Allow("a") || rl.Allow("b") {
		t.Error("both clients should be limited")
	}
	if rl.Clients() != 2 {
		t.Errorf("Clients() = %d, want 2", rl.Clients())
	}
}

func TestRateLimiter_Concurrent(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{RequestsPerSecond: 100, Burst: 100})
	defer rl.Close()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			addr := fmt.Sprintf("10.0.0.%d", n)
			for j := 0; j < 10; j++ {
				rl.Allow(addr)
			}
		}(i)
	}
	wg.Wait()

	if rl.Clients() != 10 {
		t.Errorf("Clients() = %d, want 10", rl.Clients())
	}
}

func TestRateLimiter_EvictIdle(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{RequestsPerSecond: 1, Burst: 1, IdleTimeout: time.Minute})
	defer rl.Close()

	now := time.Now()
	rl.now = func() time.Time { return now }
	rl.Allow("old")

	now = now.Add(2 * time.Minute)
	rl.Allow("fresh")
	rl.evictIdle()

	rl.mu.Lock()
	_, oldKept := rl.clients["old"]
	_, freshKept := rl.clients["fresh"]
	rl.mu.Unlock()

	if oldKept || !freshKept {
		t.Errorf("after eviction old=%v fresh=%v, want old dropped", oldKept, freshKept)
	}
}

func TestRateLimiter_CloseTwice(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{RequestsPerSecond: 1, CleanupInterval: 10 * time.Millisecond})
	rl.Close()
	rl.Close()
}

func TestRateLimiter_Middleware(t *testing.T) {
	var rejected []string
	rl := NewRateLimiter(RateLimiterConfig{
		RequestsPerSecond: 0.5,
		Burst:             2,
		OnReject:          func(addr string) { rejected = append(rejected, addr) },
	})
	defer rl.Close()

	handler := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	}))

	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/v1/evaluation/evaluate", nil)
		req.RemoteAddr = "192.168.1.100:12345"
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		return w
	}

	for i := 0; i < 2; i++ {
		if w := send(); w.Code != http.StatusOK {
			t.Errorf("request %d: status = %d, want 200", i, w.Code)
		}
	}

	w := send()
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", w.Code)
	}
	if got := w.Header().Get("Retry-After"); got != "2" {
		t.Errorf("Retry-After = %q, want 2", got)
	}

	var resp errors.ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid error body: %v", err)
	}
	if resp.Code != errors.CodeRateLimited || resp.Details["retry_after"] != "2" {
		t.Errorf("unexpected error body: %+v", resp)
	}
	if len(rejected) != 1 || rejected[0] != "192.168.1.100" {
		t.Errorf("OnReject calls = %v", rejected)
	}
}

func TestClientAddr(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		headers    map[string]string
		want       string
	}{
		{name: "remote addr", remoteAddr: "192.168.1.100:12345", want: "192.168.1.100"},
		{name: "ipv6", remoteAddr: "[2001:db8::1]:12345", want: "2001:db8::1"},
		{name: "no port", remoteAddr: "unix-socket", want: "unix-socket"},
		{
			name:       "forwarded chain",
			remoteAddr: "10.0.0.1:12345",
			headers:    map[string]string{"X-Forwarded-For": "203.0.113.1, 198.51.100.1"},
			want:       "203.0.113.1",
		},
		{
			name:       "real ip",
			remoteAddr: "10.0.0.1:12345",
			headers:    map[string]string{"X-Real-IP": " 203.0.113.50 "},
			want:       "203.0.113.50",
		},
		{
			name:       "forwarded wins",
			remoteAddr: "10.0.0.1:12345",
			headers:    map[string]string{"X-Forwarded-For": "203.0.113.1", "X-Real-IP": "203.0.113.50"},
			want:       "203.0.113.1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			if got := clientAddr(req); got != tt.want {
				t.Errorf("clientAddr() = %q, want %q", got, tt.want)
			}
		})
	}
}
