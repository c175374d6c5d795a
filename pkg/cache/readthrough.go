package cache

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

type FetchFunc[T any] func(ctx context.Context) (T, error)

const (
	defaultFetchTimeout = 15 * time.Second
	defaultSetTimeout   = 5 * time.Second
	defaultTTL          = time.Minute
)

// ReadThrough coalesces concurrent loads of the same key and refreshes hits
// in the background.
type ReadThrough struct {
	cache   Cacher
	group   singleflight.Group
	ttl     time.Duration
	logger  *zap.Logger
	refresh bool
}

func NewReadThrough(c Cacher, ttl time.Duration, logger *zap.Logger) *ReadThrough {
	if c == nil {
		c = Noop{}
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReadThrough{cache: c, ttl: ttl, logger: logger, refresh: true}
}

// WithoutRefresh disables refresh-ahead on hits.
func (rt *ReadThrough) WithoutRefresh() *ReadThrough {
	rt.refresh = false
	return rt
}

func (rt *ReadThrough) TTL() time.Duration {
	return rt.ttl
}

const generationPrefix = "gen:"

// Generation returns the current stamp of scope, or "0" when the scope was
// never bumped. Callers fold it into their keys so a Bump orphans every entry
// built from the previous stamp.
func (rt *ReadThrough) Generation(ctx context.Context, scope string) string {
	var stamp string
	err := rt.cache.Get(ctx, generationPrefix+scope, &stamp)
	switch {
	case err == nil:
		return stamp
	case errors.Is(err, ErrMiss):
	default:
		rt.logger.Warn("cache generation lookup failed", zap.String("scope", scope), zap.Error(err))
	}
	return "0"
}

// Bump gives each scope a fresh stamp. Stamps never expire; orphaned entries
// age out with their own ttl.
func (rt *ReadThrough) Bump(ctx context.Context, scopes ...string) {
	for _, scope := range scopes {
		if err := rt.cache.Set(ctx, generationPrefix+scope, uuid.NewString(), 0); err != nil {
			rt.logger.Warn("cache generation bump failed", zap.String("scope", scope), zap.Error(err))
		}
	}
}

// jitter spreads expirations by up to ±15s.
func jitter(ttl time.Duration) time.Duration {
	if ttl <= 30*time.Second {
		return ttl
	}
	return ttl + time.Duration(rand.Intn(30)-15)*time.Second
}

func (rt *ReadThrough) store(key string, value any) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultSetTimeout)
	defer cancel()

	ttl := jitter(rt.ttl)
	if err := rt.cache.Set(ctx, key, value, ttl); err != nil {
		rt.logger.Warn("cache set failed", zap.String("key", key), zap.Error(err))
		return
	}
	rt.logger.Debug("cache populated", zap.String("key", key), zap.Duration("ttl", ttl))
}

func refreshInBackground[T any](rt *ReadThrough, key string, fn FetchFunc[T]) {
	go func() {
		_, _, _ = rt.group.Do(key+":refresh", func() (any, error) {
			ctx, cancel := context.WithTimeout(context.Background(), defaultFetchTimeout)
			defer cancel()

			value, err := fn(ctx)
			if err != nil {
				rt.logger.Warn("background refresh failed", zap.String("key", key), zap.Error(err))
				return nil, err
			}
			rt.store(key, value)
			return value, nil
		})
	}()
}

// Fetch returns the cached value for key, or loads it with fn. Cache errors
// are logged and treated as misses; fn errors are returned and not cached.
func Fetch[T any](ctx context.Context, rt *ReadThrough, key string, fn FetchFunc[T]) (T, error) {
	var zero T

	var cached T
	err := rt.cache.Get(ctx, key, &cached)
	switch {
	case err == nil:
		rt.logger.Debug("cache hit", zap.String("key", key))
		if rt.refresh {
			refreshInBackground(rt, key, fn)
		}
		return cached, nil
	case errors.Is(err, ErrMiss):
		rt.logger.Debug("cache miss", zap.String("key", key))
	default:
		rt.logger.Warn("cache get error (treating as miss)", zap.String("key", key), zap.Error(err))
	}

	v, err, shared := rt.group.Do(key, func() (any, error) {
		value, err := fn(ctx)
		if err != nil {
			return nil, err
		}
		go rt.store(key, value)
		return value, nil
	})
	if err != nil {
		return zero, err
	}

	value, ok := v.(T)
	if !ok {
		rt.logger.Error("singleflight type mismatch", zap.String("key", key))
		return zero, fmt.Errorf("type mismatch for key %q", key)
	}
	if shared {
		rt.logger.Debug("singleflight shared result", zap.String("key", key))
	}
	return value, nil
}
