// Package cache keeps the last good result of each list read in redis so that a failed store read
// can still answer with something.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrMiss = errors.New("cache: miss")

// KV is the subset of redis the snapshot cache uses.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
}

type RedisKV struct {
	client *redis.Client
}

func NewRedisKV(client *redis.Client) *RedisKV {
	return &RedisKV{client: client}
}

func (r *RedisKV) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMiss
	}
	return b, err
}

func (r *RedisKV) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return r.client.Set(ctx, key, value, ttl).Err()
}

func (r *RedisKV) Del(ctx context.Context, keys ...string) error {
	return r.client.Del(ctx, keys...).Err()
}

// DegradedRecorder counts reads answered from a fallback.
type DegradedRecorder interface {
	RecordDegradedRead(ctx context.Context, key string)
}

type Snapshots struct {
	logger   *slog.Logger
	kv       KV
	ttl      time.Duration
	degraded DegradedRecorder
}

// NewSnapshots creates the snapshot cache. A nil KV disables snapshots and failed reads fall
// back to an empty list.
func NewSnapshots(logger *slog.Logger, kv KV, ttl time.Duration, degraded DegradedRecorder) *Snapshots {
	return &Snapshots{logger: logger.With("component", "snapshots"), kv: kv, ttl: ttl, degraded: degraded}
}

// Save stores value under key. Nothing is written when the request context is already done so
// an abandoned request never replaces a newer snapshot.
func (s *Snapshots) Save(ctx context.Context, key string, value any) {
	if s == nil || s.kv == nil || ctx.Err() != nil {
		return
	}
	b, err := json.Marshal(value)
	if err != nil {
		s.logger.WarnContext(ctx, "failed to encode snapshot", "key", key, "error", err)
		return
	}
	if err := s.kv.Set(ctx, key, b, s.ttl); err != nil {
		s.logger.WarnContext(ctx, "failed to store snapshot", "key", key, "error", err)
	}
}

// Load decodes the snapshot under key into dst.
func (s *Snapshots) Load(ctx context.Context, key string, dst any) error {
	if s == nil || s.kv == nil {
		return ErrMiss
	}
	b, err := s.kv.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(b, dst); err != nil {
		return fmt.Errorf("cache: failed to decode snapshot %s: %w", key, err)
	}
	return nil
}

func (s *Snapshots) Invalidate(ctx context.Context, keys ...string) {
	if s == nil || s.kv == nil || len(keys) == 0 {
		return
	}
	if err := s.kv.Del(ctx, keys...); err != nil {
		s.logger.WarnContext(ctx, "failed to invalidate snapshots", "keys", keys, "error", err)
	}
}

// Result is a list read. Degraded is set when the store read failed and Items came from the last
// snapshot or is empty.
type Result[T any] struct {
	Items    []T  `json:"items"`
	Degraded bool `json:"degraded"`
}

// Fetch runs load and snapshots its result. When load fails the last snapshot, or an empty list,
// is returned with Degraded set; the error is logged and not returned.
func Fetch[T any](ctx context.Context, s *Snapshots, key string, load func(context.Context) ([]T, error)) Result[T] {
	items, err := load(ctx)
	if err == nil {
		if items == nil {
			items = []T{}
		}
		s.Save(ctx, key, items)
		return Result[T]{Items: items}
	}

	logger := slog.Default()
	if s != nil {
		logger = s.logger
		if s.degraded != nil {
			s.degraded.RecordDegradedRead(ctx, key)
		}
	}
	logger.ErrorContext(ctx, "store read failed, serving fallback", "key", key, "error", err)

	var fallback []T
	if loadErr := s.Load(ctx, key, &fallback); loadErr != nil {
		if !errors.Is(loadErr, ErrMiss) {
			logger.WarnContext(ctx, "failed to read snapshot", "key", key, "error", loadErr)
		}
		fallback = []T{}
	}
	if fallback == nil {
		fallback = []T{}
	}
	return Result[T]{Items: fallback, Degraded: true}
}
