package auth

import (
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
)

// loginLimiter throttles login attempts per client IP. Idle limiters expire
// so the table does not grow with every address ever seen.
type loginLimiter struct {
	mu     sync.Mutex
	every  rate.Limit
	burst  int
	byAddr *gocache.Cache
}

func newLoginLimiter(perSecond float64, burst int) *loginLimiter {
	return &loginLimiter{
		every:  rate.Limit(perSecond),
		burst:  burst,
		byAddr: gocache.New(15*time.Minute, 30*time.Minute),
	}
}

func (l *loginLimiter) get(addr string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	if v, ok := l.byAddr.Get(addr); ok {
		l.byAddr.SetDefault(addr, v)
		return v.(*rate.Limiter)
	}
	lim := rate.NewLimiter(l.every, l.burst)
	l.byAddr.SetDefault(addr, lim)
	return lim
}

// Allow reports whether addr may attempt a login now.
func (l *loginLimiter) Allow(addr string) bool {
	if l.every <= 0 {
		return true
	}
	return l.get(addr).Allow()
}
