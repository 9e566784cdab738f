package api

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter rate limits requests per caller. The caller key is the
// X-User-ID header when present, otherwise the remote address, so a
// shared gateway IP does not starve individual users.
type Limiter struct {
	mu      sync.Mutex
	callers map[string]*callerLimiter
	rps     rate.Limit
	burst   int
}

type callerLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// staleAfter is how long an idle caller's limiter is retained.
const staleAfter = 10 * time.Minute

// NewLimiter allows rps requests per second with the given burst per
// caller.
func NewLimiter(rps float64, burst int) *Limiter {
	return &Limiter{
		callers: make(map[string]*callerLimiter),
		rps:     rate.Limit(rps),
		burst:   burst,
	}
}

// Middleware rejects over-limit requests with 429.
func (l *Limiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.allow(callerKey(r)) {
			w.Header().Set("Retry-After", "1")
			httpError(w, http.StatusTooManyRequests, "rate_limit_error",
				"too many requests, slow down")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (l *Limiter) allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	cl, ok := l.callers[key]
	if !ok {
		cl = &callerLimiter{limiter: rate.NewLimiter(l.rps, l.burst)}
		l.callers[key] = cl
		l.evictStale(now)
	}
	cl.lastSeen = now
	return cl.limiter.Allow()
}

// evictStale runs under l.mu, on the insert path only.
func (l *Limiter) evictStale(now time.Time) {
	for key, cl := range l.callers {
		if now.Sub(cl.lastSeen) > staleAfter {
			delete(l.callers, key)
		}
	}
}

func callerKey(r *http.Request) string {
	if id := r.Header.Get("X-User-ID"); id != "" {
		return id
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
