package health

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/taiso/routes-service/pkg/common"
)

// Pinger is satisfied by *pgxpool.Pool
type Pinger interface {
	Ping(ctx context.Context) error
}

// PostgresChecker verifies database connectivity
func PostgresChecker(db Pinger) common.CheckFunc {
	return func(ctx context.Context) error {
		if db == nil {
			return fmt.Errorf("database connection is nil")
		}
		if err := db.Ping(ctx); err != nil {
			return fmt.Errorf("database ping failed: %w", err)
		}
		return nil
	}
}

// RedisChecker verifies Redis connectivity
func RedisChecker(client redis.Cmdable) common.CheckFunc {
	return func(ctx context.Context) error {
		if client == nil {
			return fmt.Errorf("redis client is nil")
		}
		if err := client.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis ping failed: %w", err)
		}
		return nil
	}
}

// ConnectionChecker reports an error when connected returns false. It suits
// clients that track their own connection state, such as the NATS bus.
func ConnectionChecker(name string, connected func() bool) common.CheckFunc {
	return func(ctx context.Context) error {
		if !connected() {
			return fmt.Errorf("%s is disconnected", name)
		}
		return nil
	}
}

// CachedChecker caches the result of a health check for a given duration
type CachedChecker struct {
	checker    common.CheckFunc
	cacheTTL   time.Duration
	mu         sync.Mutex
	lastCheck  time.Time
	lastResult error
	now        func() time.Time
}

// NewCachedChecker creates a new cached health checker
func NewCachedChecker(checker common.CheckFunc, cacheTTL time.Duration) *CachedChecker {
	return &CachedChecker{
		checker:  checker,
		cacheTTL: cacheTTL,
		now:      time.Now,
	}
}

// Check runs the health check, using cached result if still valid
func (c *CachedChecker) Check(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if !c.lastCheck.IsZero() && now.Sub(c.lastCheck) < c.cacheTTL {
		return c.lastResult
	}

	c.lastResult = c.checker(ctx)
	c.lastCheck = now
	return c.lastResult
}
