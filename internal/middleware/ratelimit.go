package middleware

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/HammerMeetNail/roots/internal/logging"
)

// RateStore counts hits on key within a fixed window.
type RateStore interface {
	Hit(ctx context.Context, key string, window time.Duration) (int64, error)
}

type redisRateStore struct {
	client *redis.Client
}

// NewRedisRateStore counts hits with INCR and EXPIRE in one transaction.
func NewRedisRateStore(client *redis.Client) RateStore {
	if client == nil {
		return nil
	}
	return &redisRateStore{client: client}
}

func (s *redisRateStore) Hit(ctx context.Context, key string, window time.Duration) (int64, error) {
	var incr *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.Expire(ctx, key, window)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

type RateLimiter struct {
	store   RateStore
	limit   int64
	window  time.Duration
	prefix  string
	keyFunc func(*http.Request) string
	now     func() time.Time
}

func NewRateLimiter(store RateStore, limit int64, window time.Duration, prefix string, keyFunc func(*http.Request) string) *RateLimiter {
	if keyFunc == nil {
		keyFunc = GetClientIP
	}
	return &RateLimiter{
		store:   store,
		limit:   limit,
		window:  window,
		prefix:  prefix,
		keyFunc: keyFunc,
		now:     time.Now,
	}
}

// NewAuthRateLimiter limits sign-in attempts per client IP per minute.
func NewAuthRateLimiter(client *redis.Client, limit int64) *RateLimiter {
	return NewRateLimiter(NewRedisRateStore(client), limit, time.Minute, "ratelimit:auth", GetClientIP)
}

// Middleware fails open when the store is missing or erroring.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if rl.store == nil {
			next.ServeHTTP(w, r)
			return
		}

		now := rl.now()
		windowStart := now.Truncate(rl.window)
		reset := windowStart.Add(rl.window)
		key := fmt.Sprintf("%s:%s:%d", rl.prefix, rl.keyFunc(r), windowStart.Unix())

		count, err := rl.store.Hit(r.Context(), key, rl.window)
		if err != nil {
			logging.Warn("Rate limiter unavailable", map[string]interface{}{"error": err.Error()})
			next.ServeHTTP(w, r)
			return
		}

		remaining := rl.limit - count
		if remaining < 0 {
			remaining = 0
		}
		w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(rl.limit, 10))
		w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(reset.Unix(), 10))

		if count > rl.limit {
			retry := int64(reset.Sub(now).Seconds())
			if retry < 1 {
				retry = 1
			}
			w.Header().Set("Retry-After", strconv.FormatInt(retry, 10))
			writeError(w, http.StatusTooManyRequests, "Rate limit exceeded. Please try again later.")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// GetClientIP prefers proxy headers over the socket address.
func GetClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}
