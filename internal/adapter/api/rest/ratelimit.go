package rest

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const limiterIdle = 10 * time.Minute

var errRateLimited = errors.New("too many favorite changes, slow down")

// ToggleLimiter throttles favorite mutations per user. Anonymous requests
// pass through; they cannot change anything.
type ToggleLimiter struct {
	mu        sync.Mutex
	limiters  map[string]*userLimiter
	limit     rate.Limit
	burst     int
	lastPrune time.Time
	now       func() time.Time
}

type userLimiter struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

func NewToggleLimiter(perSecond float64, burst int) *ToggleLimiter {
	if burst < 1 {
		burst = 1
	}
	return &ToggleLimiter{
		limiters: make(map[string]*userLimiter),
		limit:    rate.Limit(perSecond),
		burst:    burst,
		now:      time.Now,
	}
}

func (l *ToggleLimiter) Allow(userID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastPrune) > limiterIdle {
		for id, ul := range l.limiters {
			if now.Sub(ul.lastSeen) > limiterIdle {
				delete(l.limiters, id)
			}
		}
		l.lastPrune = now
	}

	ul, ok := l.limiters[userID]
	if !ok {
		ul = &userLimiter{lim: rate.NewLimiter(l.limit, l.burst)}
		l.limiters[userID] = ul
	}
	ul.lastSeen = now
	return ul.lim.AllowN(now, 1)
}

func (l *ToggleLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := userID(r); id != "" && !l.Allow(id) {
			w.Header().Set("Retry-After", "1")
			respondError(w, http.StatusTooManyRequests, errRateLimited)
			return
		}
		next.ServeHTTP(w, r)
	})
}
