package worker

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// RateLimiter implements a token bucket rate limiter.
type RateLimiter struct {
	lastUpdate time.Time
	now        func() time.Time
	rate       float64
	burst      int
	tokens     float64
	requests   int64
	rejected   int64
	mu         sync.Mutex
}

// NewRateLimiter creates a new rate limiter.
// rate is the number of requests per second to allow.
// burst is the maximum burst of requests to allow.
func NewRateLimiter(rate float64, burst int) *RateLimiter {
	return newRateLimiterWithClock(rate, burst, time.Now)
}

func newRateLimiterWithClock(rate float64, burst int, now func() time.Time) *RateLimiter {
	return &RateLimiter{
		rate:       rate,
		burst:      burst,
		tokens:     float64(burst),
		now:        now,
		lastUpdate: now(),
	}
}

// Allow reports whether a request may proceed, consuming one token if so.
func (rl *RateLimiter) Allow() bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.requests++
	rl.refillLocked()

	if rl.tokens >= 1 {
		rl.tokens--
		return true
	}

	rl.rejected++
	return false
}

// RetryAfter returns how long until the next token is available.
func (rl *RateLimiter) RetryAfter() time.Duration {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.refillLocked()
	if rl.tokens >= 1 || rl.rate <= 0 {
		return 0
	}
	return time.Duration((1 - rl.tokens) / rl.rate * float64(time.Second))
}

// refillLocked adds the tokens earned since the last update. Caller must hold rl.mu.
func (rl *RateLimiter) refillLocked() {
	now := rl.now()
	elapsed := now.Sub(rl.lastUpdate).Seconds()
	rl.tokens = math.Min(rl.tokens+elapsed*rl.rate, float64(rl.burst))
	rl.lastUpdate = now
}

// idleSince returns the last update time.
func (rl *RateLimiter) idleSince() time.Time {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return rl.lastUpdate
}

// counts returns the request and rejection totals.
func (rl *RateLimiter) counts() (int64, int64) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return rl.requests, rl.rejected
}

// PerClientRateLimiter keeps one token bucket per client address.
type PerClientRateLimiter struct {
	lastCleanup     time.Time
	now             func() time.Time
	clients         map[string]*RateLimiter
	rate            float64
	burst           int
	cleanupInterval time.Duration
	maxIdleTime     time.Duration
	mu              sync.Mutex
}

// NewPerClientRateLimiter creates a new per-client rate limiter.
func NewPerClientRateLimiter(rate float64, burst int) *PerClientRateLimiter {
	return &PerClientRateLimiter{
		rate:            rate,
		burst:           burst,
		now:             time.Now,
		clients:         make(map[string]*RateLimiter),
		cleanupInterval: 5 * time.Minute,
		maxIdleTime:     10 * time.Minute,
		lastCleanup:     time.Now(),
	}
}

// limiter returns the bucket for key, creating it on first use.
func (pcrl *PerClientRateLimiter) limiter(key string) *RateLimiter {
	pcrl.mu.Lock()
	defer pcrl.mu.Unlock()

	if pcrl.now().Sub(pcrl.lastCleanup) > pcrl.cleanupInterval {
		pcrl.cleanupLocked()
	}

	rl, ok := pcrl.clients[key]
	if !ok {
		rl = newRateLimiterWithClock(pcrl.rate, pcrl.burst, pcrl.now)
		pcrl.clients[key] = rl
	}
	return rl
}

// cleanupLocked drops buckets idle longer than maxIdleTime. Caller must hold pcrl.mu.
func (pcrl *PerClientRateLimiter) cleanupLocked() {
	now := pcrl.now()
	for key, rl := range pcrl.clients {
		if now.Sub(rl.idleSince()) > pcrl.maxIdleTime {
			delete(pcrl.clients, key)
		}
	}
	pcrl.lastCleanup = now
}

// Allow checks if a request from the given client should be allowed.
func (pcrl *PerClientRateLimiter) Allow(clientKey string) bool {
	return pcrl.limiter(clientKey).Allow()
}

// Stats returns aggregate statistics.
func (pcrl *PerClientRateLimiter) Stats() map[string]any {
	pcrl.mu.Lock()
	rate, burst := pcrl.rate, pcrl.burst
	limiters := make([]*RateLimiter, 0, len(pcrl.clients))
	for _, rl := range pcrl.clients {
		limiters = append(limiters, rl)
	}
	pcrl.mu.Unlock()

	var totalRequests, totalRejected int64
	for _, rl := range limiters {
		req, rej := rl.counts()
		totalRequests += req
		totalRejected += rej
	}

	return map[string]any{
		"rate":           rate,
		"burst":          burst,
		"active_clients": len(limiters),
		"total_requests": totalRequests,
		"total_rejected": totalRejected,
	}
}

// PerClientRateLimitMiddleware rejects clients that exceed their budget with
// a JSON 429. Clients are keyed by host, so run it after middleware.RealIP.
func PerClientRateLimitMiddleware(limiter *PerClientRateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := clientKey(r)
			if !limiter.Allow(key) {
				wait := limiter.limiter(key).RetryAfter()
				w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
				writeError(w, http.StatusTooManyRequests, "Rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
