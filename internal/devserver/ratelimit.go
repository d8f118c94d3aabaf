package devserver

import (
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

type visitor struct {
	tokens   float64
	lastSeen time.Time
}

// limiter is a token bucket per client address
type limiter struct {
	clock clockwork.Clock
	rate  float64
	burst float64

	mu       sync.Mutex
	visitors map[string]*visitor
}

func newLimiter(clock clockwork.Clock, requestsPerSecond float64, burst int) *limiter {
	return &limiter{
		clock:    clock,
		rate:     requestsPerSecond,
		burst:    float64(burst),
		visitors: make(map[string]*visitor),
	}
}

func (l *limiter) allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.clock.Now()

	v, ok := l.visitors[key]
	if !ok {
		l.visitors[key] = &visitor{tokens: l.burst - 1, lastSeen: now}
		l.sweepLocked(now)
		return true
	}

	v.tokens = min(v.tokens+now.Sub(v.lastSeen).Seconds()*l.rate, l.burst)
	v.lastSeen = now
	if v.tokens < 1 {
		return false
	}
	v.tokens--
	return true
}

// sweepLocked forgets visitors idle long enough to have refilled
func (l *limiter) sweepLocked(now time.Time) {
	for key, v := range l.visitors {
		if now.Sub(v.lastSeen) > 10*time.Minute {
			delete(l.visitors, key)
		}
	}
}

func (l *limiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.RemoteAddr
		if host, _, err := net.SplitHostPort(key); err == nil {
			key = host
		}
		if !l.allow(key) {
			w.Header().Set("Retry-After", "1")
			writeError(w, http.StatusTooManyRequests, "too many requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}
