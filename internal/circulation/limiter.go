// internal/circulation/limiter.go
package circulation

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// borrowLimiter throttles the self-service borrow path per NUSP, so one
// hammering client cannot starve everyone else. The admin path is not
// limited.
type borrowLimiter struct {
	mu      sync.Mutex
	perUser map[string]*rate.Limiter
	limit   rate.Limit
	burst   int
}

func newBorrowLimiter() *borrowLimiter {
	return &borrowLimiter{
		perUser: make(map[string]*rate.Limiter),
		limit:   rate.Every(time.Second),
		burst:   5,
	}
}

func (b *borrowLimiter) allow(nusp string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	lim, ok := b.perUser[nusp]
	if !ok {
		lim = rate.NewLimiter(b.limit, b.burst)
		b.perUser[nusp] = lim
	}
	return lim.Allow()
}
