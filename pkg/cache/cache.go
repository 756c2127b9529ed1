package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/taiso/routes-service/pkg/logger"
	redisclient "github.com/taiso/routes-service/pkg/redis"
	"github.com/taiso/routes-service/pkg/tracing"
	"go.uber.org/zap"
)

// ErrMiss is returned by Get when the key is not cached
var ErrMiss = errors.New("cache miss")

const tracerName = "cache"

// Manager handles caching operations with JSON serialization
type Manager struct {
	redis redisclient.ClientInterface
}

// NewManager creates a new cache manager
func NewManager(redis redisclient.ClientInterface) *Manager {
	return &Manager{redis: redis}
}

// Get retrieves a cached value and unmarshals it into result.
// A missing key yields ErrMiss.
func (m *Manager) Get(ctx context.Context, key string, result interface{}) error {
	var data string
	err := tracing.TraceRedisCommand(ctx, tracerName, "get", key, func(ctx context.Context) error {
		var err error
		data, err = redisclient.RetryableOperation(ctx, func(ctx context.Context) (string, error) {
			return m.redis.GetString(ctx, key)
		}, "redis.get")
		return err
	})
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return ErrMiss
		}
		return err
	}

	if err := json.Unmarshal([]byte(data), result); err != nil {
		return fmt.Errorf("failed to unmarshal cache value: %w", err)
	}
	return nil
}

// Set marshals and caches a value with expiration
func (m *Manager) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal cache value: %w", err)
	}

	return tracing.TraceRedisCommand(ctx, tracerName, "set", key, func(ctx context.Context) error {
		_, err := redisclient.RetryableOperation(ctx, func(ctx context.Context) (struct{}, error) {
			return struct{}{}, m.redis.SetWithExpiration(ctx, key, string(data), ttl)
		}, "redis.set")
		return err
	})
}

// GetOrSet retrieves from cache or executes fn and caches the result.
// Cache failures never fail the call; they are logged and fn is used.
func (m *Manager) GetOrSet(ctx context.Context, key string, ttl time.Duration, result interface{}, fn func() (interface{}, error)) (bool, error) {
	err := m.Get(ctx, key, result)
	if err == nil {
		return true, nil
	}
	if !errors.Is(err, ErrMiss) {
		logger.WarnContext(ctx, "cache read failed", zap.String("key", key), zap.Error(err))
	}

	data, err := fn()
	if err != nil {
		return false, err
	}

	if err := m.Set(ctx, key, data, ttl); err != nil {
		logger.WarnContext(ctx, "failed to cache value", zap.String("key", key), zap.Error(err))
	}

	jsonData, err := json.Marshal(data)
	if err != nil {
		return false, err
	}

	return false, json.Unmarshal(jsonData, result)
}

// Delete removes keys from cache
func (m *Manager) Delete(ctx context.Context, keys ...string) error {
	_, err := redisclient.RetryableOperation(ctx, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, m.redis.Delete(ctx, keys...)
	}, "redis.delete")
	return err
}

// Invalidate removes keys matching a pattern
func (m *Manager) Invalidate(ctx context.Context, pattern string) error {
	keys, err := m.redis.ScanKeys(ctx, pattern, 100)
	if err != nil {
		return fmt.Errorf("failed to scan keys: %w", err)
	}

	if len(keys) == 0 {
		return nil
	}

	if err := m.redis.Delete(ctx, keys...); err != nil {
		return fmt.Errorf("failed to delete keys: %w", err)
	}
	return nil
}

// CacheKeys defines common cache key patterns
type CacheKeys struct{}

var Keys = CacheKeys{}

// Route returns cache key for route metadata
func (k CacheKeys) Route(routeID uuid.UUID) string {
	return fmt.Sprintf("route:%s", routeID)
}

// RouteList returns cache key for one page of the route listing
func (k CacheKeys) RouteList(ownerID *uuid.UUID, search string, limit, offset int) string {
	owner := "all"
	if ownerID != nil {
		owner = ownerID.String()
	}
	return fmt.Sprintf("routes:list:%s:%s:%d:%d", owner, strings.ToLower(strings.TrimSpace(search)), limit, offset)
}

// RouteListPattern matches every cached route listing page
func (k CacheKeys) RouteListPattern() string {
	return "routes:list:*"
}

// Weather returns cache key for a day of hourly forecasts at a coordinate.
// Coordinates are rounded to two decimals so nearby lookups share an entry.
func (k CacheKeys) Weather(latitude, longitude float64, day time.Time) string {
	return fmt.Sprintf("weather:%.2f:%.2f:%s", latitude, longitude, day.Format("2006-01-02"))
}

// TTL defines common cache TTL durations
type CacheTTL struct{}

var TTL = CacheTTL{}

func (t CacheTTL) Short() time.Duration       { return 5 * time.Minute }
func (t CacheTTL) RouteDetail() time.Duration { return 10 * time.Minute }
func (t CacheTTL) Long() time.Duration        { return 1 * time.Hour }
