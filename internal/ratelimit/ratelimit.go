// Package ratelimit counts login attempts per login id inside a fixed window.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrTooManyAttempts = errors.New("too many attempts, try again later")

// Counter increments a windowed counter. The window starts with the first increment.
type Counter interface {
	Incr(ctx context.Context, key string, window time.Duration) (int64, error)
	Reset(ctx context.Context, key string) error
}

type RedisCounter struct {
	redis *redis.Client
}

func NewRedisCounter(client *redis.Client) *RedisCounter {
	return &RedisCounter{redis: client}
}

func (r *RedisCounter) Incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	count, err := r.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if count == 1 {
		if err := r.redis.Expire(ctx, key, window).Err(); err != nil {
			return count, err
		}
	}
	return count, nil
}

func (r *RedisCounter) Reset(ctx context.Context, key string) error {
	return r.redis.Del(ctx, key).Err()
}

// MemoryCounter is the single-process counter used when redis is not configured.
type MemoryCounter struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

type memoryEntry struct {
	count   int64
	expires time.Time
}

func NewMemoryCounter() *MemoryCounter {
	return &MemoryCounter{entries: make(map[string]memoryEntry), now: time.Now}
}

func (m *MemoryCounter) Incr(_ context.Context, key string, window time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	e, ok := m.entries[key]
	if !ok || !now.Before(e.expires) {
		e = memoryEntry{expires: now.Add(window)}
	}
	e.count++
	m.entries[key] = e
	return e.count, nil
}

func (m *MemoryCounter) Reset(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

// Sweep drops expired windows.
func (m *MemoryCounter) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	removed := 0
	for k, e := range m.entries {
		if !now.Before(e.expires) {
			delete(m.entries, k)
			removed++
		}
	}
	return removed
}

type RateLimiter struct {
	counter     Counter
	maxAttempts int64
	window      time.Duration
}

func NewRateLimiter(counter Counter, maxAttempts int, window time.Duration) *RateLimiter {
	return &RateLimiter{counter: counter, maxAttempts: int64(maxAttempts), window: window}
}

func loginKey(loginID string) string {
	return fmt.Sprintf("login_attempts:%s", strings.ToLower(loginID))
}

func (r *RateLimiter) CheckLogin(ctx context.Context, loginID string) error {
	count, err := r.counter.Incr(ctx, loginKey(loginID), r.window)
	if err != nil {
		return fmt.Errorf("failed to count login attempt: %w", err)
	}
	if count > r.maxAttempts {
		return ErrTooManyAttempts
	}
	return nil
}

func (r *RateLimiter) ResetLogin(ctx context.Context, loginID string) error {
	return r.counter.Reset(ctx, loginKey(loginID))
}
