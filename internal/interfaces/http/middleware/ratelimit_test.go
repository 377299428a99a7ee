package middleware

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock drives a limiter's notion of now
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.t
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.t = f.t.Add(d)
	f.mu.Unlock()
}

func newTestLimiter(t *testing.T, limit int, window time.Duration) (*RateLimiter, *fakeClock) {
	t.Helper()
	clock := &fakeClock{t: time.Date(2024, 9, 1, 8, 0, 0, 0, time.UTC)}
	rl := NewRateLimiter(limit, window)
	rl.mu.Lock()
	rl.now = clock.Now
	rl.mu.Unlock()
	t.Cleanup(rl.Close)
	return rl, clock
}

func TestRateLimiter_Take(t *testing.T) {
	rl, clock := newTestLimiter(t, 2, time.Minute)

	first := rl.Take("10.0.0.1")
	assert.True(t, first.Allowed)
	assert.Equal(t, 1, first.Remaining)
	assert.Equal(t, clock.Now().Add(time.Minute), first.ResetAt)

	assert.True(t, rl.Take("10.0.0.1").Allowed)

	denied := rl.Take("10.0.0.1")
	assert.False(t, denied.Allowed)
	assert.Equal(t, 0, denied.Remaining)

	assert.True(t, rl.Allow("10.0.0.2"), "clients have separate windows")

	clock.Advance(time.Minute)
	assert.Equal(t, 2, rl.Remaining("10.0.0.1"))
	assert.True(t, rl.Allow("10.0.0.1"), "window rolls over")
	assert.Equal(t, 1, rl.Remaining("10.0.0.1"))
}

func TestRateLimiter_Concurrent(t *testing.T) {
	rl, _ := newTestLimiter(t, 40, time.Minute)

	var allowed atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if rl.Allow("shared") {
				allowed.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(40), allowed.Load())
}

func TestRateLimiter_CloseIsIdempotent(t *testing.T) {
	rl := NewRateLimiter(1, time.Millisecond)
	rl.Close()
	require.NotPanics(t, rl.Close)
}

func TestRateLimitMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	rl, _ := newTestLimiter(t, 1, 30*time.Second)
	engine := gin.New()
	engine.Use(RequestID(), RateLimit(rl))
	engine.GET("/api/v1/rent", func(c *gin.Context) { c.Status(http.StatusOK) })

	send := func(addr string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/rent", nil)
		req.RemoteAddr = addr
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, req)
		return w
	}

	ok := send("10.0.0.1:5000")
	assert.Equal(t, http.StatusOK, ok.Code)
	assert.Equal(t, "1", ok.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "0", ok.Header().Get("X-RateLimit-Remaining"))

	blocked := send("10.0.0.1:5001")
	assert.Equal(t, http.StatusTooManyRequests, blocked.Code)
	assert.Contains(t, blocked.Body.String(), "RATE_LIMIT_EXCEEDED")
	assert.Contains(t, blocked.Body.String(), blocked.Header().Get(RequestIDKey))
	assert.NotEmpty(t, blocked.Header().Get("Retry-After"))

	assert.Equal(t, http.StatusOK, send("10.0.0.2:5000").Code)
}
