package httpserv

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// limiterIdleTimeout is how long a client's limiter is kept after its last request.
const limiterIdleTimeout = 10 * time.Minute

// RateLimiter keeps a token-bucket limiter per client address.
type RateLimiter struct {
	limit    rate.Limit
	burst    int
	mux      sync.Mutex
	limiters map[string]*limiterEntry
	now      func() time.Time
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func NewRateLimiter(perSecond float64, burst int) *RateLimiter {
	return &RateLimiter{
		limit:    rate.Limit(perSecond),
		burst:    burst,
		limiters: make(map[string]*limiterEntry),
		now:      time.Now,
	}
}

// Allow reports whether a request from the given key may proceed.
func (r *RateLimiter) Allow(key string) bool {
	r.mux.Lock()
	defer r.mux.Unlock()
	now := r.now()
	for k, entry := range r.limiters {
		if now.Sub(entry.lastSeen) > limiterIdleTimeout {
			delete(r.limiters, k)
		}
	}
	entry, ok := r.limiters[key]
	if !ok {
		entry = &limiterEntry{limiter: rate.NewLimiter(r.limit, r.burst)}
		r.limiters[key] = entry
	}
	entry.lastSeen = now
	return entry.limiter.AllowN(now, 1)
}

// Middleware rejects requests with 429 once the client (identified by its remote IP) exceeds the rate.
func (r *RateLimiter) Middleware(next http.HandlerFunc) http.HandlerFunc {
	return func(httpResponse http.ResponseWriter, httpRequest *http.Request) {
		if !r.Allow(clientIP(httpRequest)) {
			httpResponse.Header().Set("Retry-After", "1")
			WriteJSON(httpResponse, http.StatusTooManyRequests, map[string]string{
				"error": "Too many requests",
			})
			return
		}
		next(httpResponse, httpRequest)
	}
}

func clientIP(httpRequest *http.Request) string {
	host, _, err := net.SplitHostPort(httpRequest.RemoteAddr)
	if err != nil {
		return httpRequest.RemoteAddr
	}
	return host
}
