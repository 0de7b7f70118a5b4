package middleware

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/ricesearch/review-topics/internal/pkg/errors"
)

// RateLimiterConfig configures the rate limiter.
type RateLimiterConfig struct {
	// RequestsPerSecond is the sustained rate allowed per client.
	RequestsPerSecond float64
	// Burst is the maximum burst size. Values below 1 are raised to 1.
	Burst int
	// CleanupInterval is how often idle clients are forgotten.
	CleanupInterval time.Duration
	// IdleTimeout is how long a client may stay silent before it is forgotten.
	IdleTimeout time.Duration
	// OnReject is called with the client address of every rejected request.
	OnReject func(client string)
}

// DefaultRateLimiterConfig returns the limits used when serve enables rate limiting
// without further settings.
func DefaultRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		RequestsPerSecond: 10,
		Burst:             20,
		CleanupInterval:   time.Minute,
		IdleTimeout:       5 * time.Minute,
	}
}

type client struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter applies a token bucket per client address.
type RateLimiter struct {
	mu       sync.Mutex
	clients  map[string]*client
	rate     rate.Limit
	burst    int
	idle     time.Duration
	onReject func(string)

	stop      chan struct{}
	closeOnce sync.Once
	now       func() time.Time
}

// NewRateLimiter creates a rate limiter and starts its cleanup loop.
// Close stops the loop.
func NewRateLimiter(cfg RateLimiterConfig) *RateLimiter {
	defaults := DefaultRateLimiterConfig()
	if cfg.Burst < 1 {
		cfg.Burst = 1
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = defaults.CleanupInterval
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = defaults.IdleTimeout
	}

	rl := &RateLimiter{
		clients:  make(map[string]*client),
		rate:     rate.Limit(cfg.RequestsPerSecond),
		burst:    cfg.Burst,
		idle:     cfg.IdleTimeout,
		onReject: cfg.OnReject,
		stop:     make(chan struct{}),
		now:      time.Now,
	}

	go rl.cleanupLoop(cfg.CleanupInterval)

	return rl
}

// Allow reports whether a request from addr may proceed now.
func (rl *RateLimiter) Allow(addr string) bool {
	rl.mu.Lock()
	c, ok := rl.clients[addr]
	if !ok {
		c = &client{limiter: rate.NewLimiter(rl.rate, rl.burst)}
		rl.clients[addr] = c
	}
	c.lastSeen = rl.now()
	rl.mu.Unlock()

	return c.limiter.Allow()
}

// Clients returns the number of tracked client addresses.
func (rl *RateLimiter) Clients() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.clients)
}

// Close stops the cleanup loop. It is safe to call more than once.
func (rl *RateLimiter) Close() {
	rl.closeOnce.Do(func() { close(rl.stop) })
}

func (rl *RateLimiter) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stop:
			return
		case <-ticker.C:
			rl.evictIdle()
		}
	}
}

// evictIdle forgets clients not seen within the idle timeout.
func (rl *RateLimiter) evictIdle() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	threshold := rl.now().Add(-rl.idle)
	for addr, c := range rl.clients {
		if c.lastSeen.Before(threshold) {
			delete(rl.clients, addr)
		}
	}
}

// retryAfter is the number of whole seconds until one token is available.
func (rl *RateLimiter) retryAfter() int {
	if rl.rate <= 0 {
		return 1
	}
	return int(math.Max(1, math.Ceil(1/float64(rl.rate))))
}

// Middleware rejects requests over the limit with 429 and a Retry-After header.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		addr := clientAddr(r)

		if !rl.Allow(addr) {
			if rl.onReject != nil {
				rl.onReject(addr)
			}
			seconds := rl.retryAfter()
			w.Header().Set("Retry-After", strconv.Itoa(seconds))
			errors.WriteErrorWithStatus(w, http.StatusTooManyRequests, errors.RateLimitedError(seconds))
			return
		}

		next.ServeHTTP(w, r)
	})
}

// clientAddr identifies the caller, preferring proxy headers over the socket address.
func clientAddr(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
