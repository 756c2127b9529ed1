package cache

import (
	"context"
	"errors"
	"path"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRedis is an in-memory stand-in for the Redis client
type fakeRedis struct {
	mu        sync.RWMutex
	data      map[string]string
	expiry    map[string]time.Duration
	getError  error
	setError  error
	scanError error
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{
		data:   make(map[string]string),
		expiry: make(map[string]time.Duration),
	}
}

func (f *fakeRedis) GetString(ctx context.Context, key string) (string, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.getError != nil {
		return "", f.getError
	}
	value, ok := f.data[key]
	if !ok {
		return "", redis.Nil
	}
	return value, nil
}

func (f *fakeRedis) SetWithExpiration(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.setError != nil {
		return f.setError
	}
	f.data[key] = value.(string)
	f.expiry[key] = expiration
	return nil
}

func (f *fakeRedis) Delete(ctx context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, key := range keys {
		delete(f.data, key)
		delete(f.expiry, key)
	}
	return nil
}

func (f *fakeRedis) ScanKeys(ctx context.Context, pattern string, batch int64) ([]string, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.scanError != nil {
		return nil, f.scanError
	}
	var keys []string
	for key := range f.data {
		if ok, _ := path.Match(pattern, key); ok {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (f *fakeRedis) Close() error { return nil }

type cachedRoute struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	DistanceKm float64 `json:"distance_km"`
}

func TestManagerSetAndGet(t *testing.T) {
	store := newFakeRedis()
	manager := NewManager(store)
	ctx := context.Background()

	route := cachedRoute{ID: "r-1", Name: "Han River loop", DistanceKm: 42.5}
	require.NoError(t, manager.Set(ctx, "route:r-1", route, TTL.RouteDetail()))

	var result cachedRoute
	require.NoError(t, manager.Get(ctx, "route:r-1", &result))

	assert.Equal(t, route, result)
	assert.Equal(t, 10*time.Minute, store.expiry["route:r-1"])
}

func TestManagerGetMiss(t *testing.T) {
	manager := NewManager(newFakeRedis())

	var result cachedRoute
	err := manager.Get(context.Background(), "route:missing", &result)

	assert.ErrorIs(t, err, ErrMiss)
}

func TestManagerGetInvalidJSON(t *testing.T) {
	store := newFakeRedis()
	store.data["route:bad"] = "not json"

	var result cachedRoute
	err := NewManager(store).Get(context.Background(), "route:bad", &result)

	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrMiss)
}

func TestManagerGetOrSet(t *testing.T) {
	store := newFakeRedis()
	manager := NewManager(store)
	ctx := context.Background()

	calls := 0
	load := func() (interface{}, error) {
		calls++
		return cachedRoute{ID: "r-2", Name: "Namsan climb"}, nil
	}

	var first cachedRoute
	hit, err := manager.GetOrSet(ctx, "route:r-2", time.Minute, &first, load)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, "Namsan climb", first.Name)

	var second cachedRoute
	hit, err = manager.GetOrSet(ctx, "route:r-2", time.Minute, &second, load)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, calls)
}

func TestManagerGetOrSetSurvivesCacheOutage(t *testing.T) {
	store := newFakeRedis()
	store.getError = errors.New("connection refused")
	store.setError = errors.New("connection refused")
	manager := NewManager(store)

	var result cachedRoute
	hit, err := manager.GetOrSet(context.Background(), "route:r-3", time.Minute, &result, func() (interface{}, error) {
		return cachedRoute{ID: "r-3"}, nil
	})

	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, "r-3", result.ID)
}

func TestManagerGetOrSetPropagatesLoaderError(t *testing.T) {
	manager := NewManager(newFakeRedis())
	loadErr := errors.New("database down")

	var result cachedRoute
	_, err := manager.GetOrSet(context.Background(), "route:r-4", time.Minute, &result, func() (interface{}, error) {
		return nil, loadErr
	})

	assert.ErrorIs(t, err, loadErr)
}

func TestManagerInvalidate(t *testing.T) {
	store := newFakeRedis()
	store.data["routes:list:all::20:0"] = "[]"
	store.data["routes:list:all::20:20"] = "[]"
	store.data["route:keep"] = "{}"

	err := NewManager(store).Invalidate(context.Background(), Keys.RouteListPattern())

	require.NoError(t, err)
	assert.Len(t, store.data, 1)
	assert.Contains(t, store.data, "route:keep")
}

func TestManagerInvalidateScanError(t *testing.T) {
	store := newFakeRedis()
	store.scanError = errors.New("scan failed")

	err := NewManager(store).Invalidate(context.Background(), "routes:list:*")
	assert.ErrorContains(t, err, "failed to scan keys")
}

func TestKeys(t *testing.T) {
	id := uuid.MustParse("550e8400-e29b-41d4-a716-446655440000")
	day := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, "route:550e8400-e29b-41d4-a716-446655440000", Keys.Route(id))
	assert.Equal(t, "routes:list:all:han river:20:40", Keys.RouteList(nil, " Han River ", 20, 40))
	assert.Equal(t, "routes:list:550e8400-e29b-41d4-a716-446655440000::10:0", Keys.RouteList(&id, "", 10, 0))
	assert.Equal(t, "weather:37.57:126.98:2024-05-01", Keys.Weather(37.5665, 126.9780, day))
}
