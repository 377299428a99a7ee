package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/propledger/backend/internal/interfaces/http/dto"
)

// RateLimiter counts requests per client in fixed windows
type RateLimiter struct {
	limit  int
	window time.Duration
	now    func() time.Time

	mu      sync.Mutex
	buckets map[string]*bucket
	stop    chan struct{}
	once    sync.Once
}

type bucket struct {
	count   int
	resetAt time.Time
}

// Quota is the state of a client's window after a call to Take
type Quota struct {
	Limit     int
	Remaining int
	ResetAt   time.Time
	Allowed   bool
}

// NewRateLimiter creates a limiter admitting limit requests per window and
// starts a janitor that drops idle clients. Close stops the janitor.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	rl := &RateLimiter{
		limit:   limit,
		window:  window,
		now:     time.Now,
		buckets: make(map[string]*bucket),
		stop:    make(chan struct{}),
	}
	go rl.sweep(2 * window)
	return rl
}

// Close stops the janitor goroutine
func (rl *RateLimiter) Close() {
	rl.once.Do(func() { close(rl.stop) })
}

func (rl *RateLimiter) sweep(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-rl.stop:
			return
		case <-ticker.C:
			rl.mu.Lock()
			now := rl.now()
			for key, b := range rl.buckets {
				if now.After(b.resetAt.Add(rl.window)) {
					delete(rl.buckets, key)
				}
			}
			rl.mu.Unlock()
		}
	}
}

// Take spends one request from key's window
func (rl *RateLimiter) Take(key string) Quota {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	b, ok := rl.buckets[key]
	if !ok || !now.Before(b.resetAt) {
		b = &bucket{resetAt: now.Add(rl.window)}
		rl.buckets[key] = b
	}

	q := Quota{Limit: rl.limit, ResetAt: b.resetAt}
	if b.count < rl.limit {
		b.count++
		q.Allowed = true
	}
	q.Remaining = rl.limit - b.count
	return q
}

// Allow reports whether key may make another request
func (rl *RateLimiter) Allow(key string) bool {
	return rl.Take(key).Allowed
}

// Remaining returns how many requests key has left in its current window
func (rl *RateLimiter) Remaining(key string) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	b, ok := rl.buckets[key]
	if !ok || !rl.now().Before(b.resetAt) {
		return rl.limit
	}
	return rl.limit - b.count
}

// RateLimit limits requests per client IP
func RateLimit(limiter *RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		q := limiter.Take(c.ClientIP())

		c.Header("X-RateLimit-Limit", strconv.Itoa(q.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(q.Remaining))

		if !q.Allowed {
			wait := math.Ceil(time.Until(q.ResetAt).Seconds())
			c.Header("Retry-After", strconv.Itoa(int(math.Max(wait, 1))))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, dto.NewErrorResponseWithRequestID(
				dto.ErrCodeRateLimit,
				"Too many requests, retry after the current window",
				getRequestIDFromContext(c),
			))
			return
		}
		c.Next()
	}
}
