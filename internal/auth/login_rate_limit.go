package auth

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"task-manager/internal/observability"
)

const defaultMaxTrackedIPs = 5000

type ipLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// LoginRateLimiter allows maxHits login attempts per window for each client
// IP, refilled continuously. At most maxMemory IPs are tracked; beyond that
// the least recently seen one is dropped.
type LoginRateLimiter struct {
	mu             sync.Mutex
	limit          rate.Limit
	burst          int
	window         time.Duration
	byIP           map[string]*ipLimiter
	maxMemory      int
	trustForwarded bool
	now            func() time.Time
}

// NewLoginRateLimiter keys clients by peer address, or by the proxy-appended
// X-Forwarded-For entry when trustForwarded is set.
func NewLoginRateLimiter(maxHits int, window time.Duration, trustForwarded bool) *LoginRateLimiter {
	if maxHits <= 0 {
		maxHits = 10
	}
	if window <= 0 {
		window = time.Minute
	}

	return &LoginRateLimiter{
		limit:          rate.Every(window / time.Duration(maxHits)),
		burst:          maxHits,
		window:         window,
		byIP:           make(map[string]*ipLimiter),
		maxMemory:      defaultMaxTrackedIPs,
		trustForwarded: trustForwarded,
		now:            time.Now,
	}
}

func (l *LoginRateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		allowed, retryAfter := l.allow(observability.ClientIP(r, l.trustForwarded), l.now())
		if !allowed {
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(retryAfter.Seconds()))))
			writeError(w, http.StatusTooManyRequests, "too many login attempts")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (l *LoginRateLimiter) allow(ip string, now time.Time) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.byIP[ip]
	if !ok {
		if len(l.byIP) >= l.maxMemory {
			l.evict(now)
		}
		entry = &ipLimiter{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.byIP[ip] = entry
	}
	entry.lastSeen = now

	reservation := entry.limiter.ReserveN(now, 1)
	if delay := reservation.DelayFrom(now); delay > 0 {
		reservation.CancelAt(now)
		if delay < time.Second {
			delay = time.Second
		}
		return false, delay
	}

	return true, 0
}

// evict drops entries idle for a full window, which are back at full burst
// anyway. If none are, it drops the least recently seen entry. Callers hold mu.
func (l *LoginRateLimiter) evict(now time.Time) {
	threshold := now.Add(-l.window)
	var oldestKey string
	var oldest time.Time
	for key, value := range l.byIP {
		if value.lastSeen.Before(threshold) {
			delete(l.byIP, key)
			continue
		}
		if oldestKey == "" || value.lastSeen.Before(oldest) {
			oldestKey, oldest = key, value.lastSeen
		}
	}

	if len(l.byIP) >= l.maxMemory && oldestKey != "" {
		delete(l.byIP, oldestKey)
	}
}
