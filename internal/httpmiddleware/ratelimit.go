package httpmiddleware

import (
	"context"
	"fmt"
	"log"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// Limiter decides whether key may make another request now. When it may not,
// wait is how long until it may.
type Limiter interface {
	Allow(ctx context.Context, key string) (ok bool, wait time.Duration, err error)
}

// RateLimit enforces l per client IP. A nil limiter disables limiting and a
// limiter error lets the request through.
func RateLimit(l Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if l == nil {
			c.Next()
			return
		}
		ip := c.ClientIP()
		if ip == "" {
			ip = "unknown"
		}
		ok, wait, err := l.Allow(c.Request.Context(), ip)
		if err != nil {
			log.Printf("rate limit %s: %v", ip, err)
			c.Next()
			return
		}
		if !ok {
			secs := int(math.Ceil(wait.Seconds()))
			if secs < 1 {
				secs = 1
			}
			c.Header("Retry-After", strconv.Itoa(secs))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"message": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}

// TokenBucket limits each key in process memory. Tokens refill continuously.
type TokenBucket struct {
	capacity float64
	perSec   float64

	mu      sync.Mutex
	buckets map[string]*tokens
	now     func() time.Time
}

type tokens struct {
	left float64
	seen time.Time
}

// NewTokenBucket allows bursts of capacity and perMinute requests sustained.
func NewTokenBucket(capacity, perMinute int) *TokenBucket {
	if capacity <= 0 {
		capacity = perMinute
	}
	return &TokenBucket{
		capacity: float64(capacity),
		perSec:   float64(perMinute) / 60,
		buckets:  map[string]*tokens{},
		now:      time.Now,
	}
}

func (tb *TokenBucket) Allow(_ context.Context, key string) (bool, time.Duration, error) {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	now := tb.now()
	b, ok := tb.buckets[key]
	if !ok {
		b = &tokens{left: tb.capacity, seen: now}
		tb.buckets[key] = b
	}
	b.left = math.Min(tb.capacity, b.left+now.Sub(b.seen).Seconds()*tb.perSec)
	b.seen = now
	if b.left < 1 {
		return false, time.Duration((1 - b.left) / tb.perSec * float64(time.Second)), nil
	}
	b.left--
	return true, 0, nil
}

// Sweep drops buckets idle for longer than idle and returns how many.
func (tb *TokenBucket) Sweep(idle time.Duration) int {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	cutoff := tb.now().Add(-idle)
	n := 0
	for k, b := range tb.buckets {
		if b.seen.Before(cutoff) {
			delete(tb.buckets, k)
			n++
		}
	}
	return n
}

// WindowLimiter counts requests per key in fixed one-minute windows kept in
// Redis, so every api instance shares the same budget.
type WindowLimiter struct {
	client *redis.Client
	limit  int64
	window time.Duration
	now    func() time.Time
}

func NewWindowLimiter(client *redis.Client, perMinute int) *WindowLimiter {
	return &WindowLimiter{client: client, limit: int64(perMinute), window: time.Minute, now: time.Now}
}

func (w *WindowLimiter) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	now := w.now()
	start := now.Truncate(w.window)
	k := fmt.Sprintf("ratelimit:%s:%d", key, start.Unix())
	var n *redis.IntCmd
	_, err := w.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		n = pipe.Incr(ctx, k)
		pipe.Expire(ctx, k, w.window+time.Second)
		return nil
	})
	if err != nil {
		return false, 0, err
	}
	if n.Val() > w.limit {
		return false, start.Add(w.window).Sub(now), nil
	}
	return true, 0, nil
}
