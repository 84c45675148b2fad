package bot

import (
	"sync"

	"golang.org/x/time/rate"
)

// Limiter is a per-user token bucket that drops chat floods
type Limiter struct {
	mu      sync.Mutex
	users   map[int64]*rate.Limiter
	limit   rate.Limit
	burst   int
	maxKeys int
}

// NewLimiter allows perSecond events per user with the given burst.
// A non-positive rate disables limiting.
func NewLimiter(perSecond float64, burst int) *Limiter {
	if burst <= 0 {
		burst = 1
	}
	limit := rate.Limit(perSecond)
	if perSecond <= 0 {
		limit = rate.Inf
	}
	return &Limiter{
		users:   make(map[int64]*rate.Limiter),
		limit:   limit,
		burst:   burst,
		maxKeys: 10000,
	}
}

// Allow reports whether the user may send another event now
func (l *Limiter) Allow(userID int64) bool {
	l.mu.Lock()
	lim, ok := l.users[userID]
	if !ok {
		if len(l.users) >= l.maxKeys {
			// full buckets carry no state worth keeping
			for id, old := range l.users {
				if old.Tokens() >= float64(l.burst) {
					delete(l.users, id)
				}
			}
			// every tracked user is active, forget an arbitrary one
			for id := range l.users {
				if len(l.users) < l.maxKeys {
					break
				}
				delete(l.users, id)
			}
		}
		lim = rate.NewLimiter(l.limit, l.burst)
		l.users[userID] = lim
	}
	l.mu.Unlock()
	return lim.Allow()
}
