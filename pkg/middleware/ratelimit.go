package middleware

import (
	"encoding/json"
	"net"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// clientLimiter tracks a token bucket per client address.
type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter applies a per-client token bucket to all requests.
// Clients are keyed by remote IP; stale buckets are evicted in the
// background so the map does not grow without bound.
type RateLimiter struct {
	mu      sync.Mutex
	clients map[string]*clientLimiter
	rps     rate.Limit
	burst   int
	logger  *zap.Logger
	done    chan struct{}
}

// NewRateLimiter creates a rate limiter allowing rps requests per second
// with the given burst per client.
func NewRateLimiter(rps float64, burst int, logger *zap.Logger) *RateLimiter {
	rl := &RateLimiter{
		clients: make(map[string]*clientLimiter),
		rps:     rate.Limit(rps),
		burst:   burst,
		logger:  logger,
		done:    make(chan struct{}),
	}
	go rl.evictLoop()
	return rl
}

// Middleware wraps a handler with the rate limit check. Rejected requests
// get 429 with a JSON body matching the API error shape.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)

		if !rl.allow(ip) {
			rl.logger.Warn("Rate limit exceeded",
				zap.String("remote_addr", ip),
				zap.String("path", r.URL.Path))
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			_ = json.NewEncoder(w).Encode(map[string]string{
				"error":   "rate_limited",
				"message": "Too many requests. Slow down and retry.",
			})
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Close stops the background eviction loop.
func (rl *RateLimiter) Close() {
	close(rl.done)
}

func (rl *RateLimiter) allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	c, ok := rl.clients[ip]
	if !ok {
		c = &clientLimiter{limiter: rate.NewLimiter(rl.rps, rl.burst)}
		rl.clients[ip] = c
	}
	c.lastSeen = time.Now()
	return c.limiter.Allow()
}

// evictLoop drops buckets idle for more than three minutes.
func (rl *RateLimiter) evictLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-rl.done:
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-3 * time.Minute)
			rl.mu.Lock()
			for ip, c := range rl.clients {
				if c.lastSeen.Before(cutoff) {
					delete(rl.clients, ip)
				}
			}
			rl.mu.Unlock()
		}
	}
}

// clientIP extracts the client address without the port. Falls back to the
// raw RemoteAddr when it is not host:port shaped.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
