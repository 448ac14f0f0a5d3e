package api

import (
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/yuchen0/stash/internal/ratelimit"
)

const (
	ipSweepEvery   = 5 * time.Minute
	ipIdleEviction = 10 * time.Minute
)

// ipLimiter applies a per-IP token bucket in front of every route.
// It protects the server itself from hammering; the hourly advisory
// cap a caller sees lives in the ratelimit package. A chat stream
// holds its connection open for the whole answer, so the bucket
// charges admission only, never stream duration.
type ipLimiter struct {
	mu      sync.Mutex
	buckets map[string]*ipBucket
	perSec  rate.Limit
	burst   int
	sweepAt time.Time

	now func() time.Time // swapped in tests
}

type ipBucket struct {
	tokens *rate.Limiter
	seen   time.Time
}

// newIPLimiter creates a limiter refilling perSec tokens per second
// with burst as both the ceiling and the initial allowance.
func newIPLimiter(perSec float64, burst int) *ipLimiter {
	return &ipLimiter{
		buckets: make(map[string]*ipBucket),
		perSec:  rate.Limit(perSec),
		burst:   burst,
		sweepAt: time.Now().Add(ipSweepEvery),
		now:     time.Now,
	}
}

// allow charges one token against the bucket for ip, creating the
// bucket on first sight. Idle buckets are swept here rather than by a
// background goroutine so the limiter needs no shutdown hook.
func (rl *ipLimiter) allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	if now.After(rl.sweepAt) {
		rl.sweepLocked(now)
	}

	b, ok := rl.buckets[ip]
	if !ok {
		b = &ipBucket{tokens: rate.NewLimiter(rl.perSec, rl.burst)}
		rl.buckets[ip] = b
	}
	b.seen = now
	return b.tokens.Allow()
}

func (rl *ipLimiter) sweepLocked(now time.Time) {
	for ip, b := range rl.buckets {
		if now.Sub(b.seen) > ipIdleEviction {
			delete(rl.buckets, ip)
		}
	}
	rl.sweepAt = now.Add(ipSweepEvery)
}

// ipRateLimitMiddleware returns middleware that limits requests per IP
// with a token bucket.
func ipRateLimitMiddleware(rl *ipLimiter, trustProxy bool, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r, trustProxy)
			if !rl.allow(ip) {
				logger.Warn("ip rate limit exceeded",
					"ip", ip,
					"path", r.URL.Path,
					"method", r.Method,
				)
				w.Header().Set("Retry-After", "1")
				writeError(w, http.StatusTooManyRequests, "rate_limited", "too many requests")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientIP extracts the client IP used as the limiter key. Proxy
// headers are only honored when trustProxy is set, and only when they
// carry a parseable address; anything else keys on RemoteAddr.
func clientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if ip := proxiedClientIP(r.Header); ip != "" {
			return ip
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// proxiedClientIP reads the originating address a reverse proxy
// recorded: X-Real-IP when present, otherwise the first hop of
// X-Forwarded-For. Values are validated with net.ParseIP so arbitrary
// header strings cannot become limiter keys.
func proxiedClientIP(h http.Header) string {
	candidate := h.Get("X-Real-IP")
	if candidate == "" {
		candidate, _, _ = strings.Cut(h.Get("X-Forwarded-For"), ",")
	}
	if ip := net.ParseIP(strings.TrimSpace(candidate)); ip != nil {
		return ip.String()
	}
	return ""
}

// ratelimitHandler exposes the rolling-window limiter's telemetry so
// clients can render remaining-count and reset-time without sending a
// request that would be refused.
type ratelimitHandler struct {
	limiter *ratelimit.Limiter
}

func (h *ratelimitHandler) state(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.limiter.CheckState())
}
