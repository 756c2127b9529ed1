package config

import (
	"encoding/json"
	"fmt"
	"time"
)

// Default timeouts, in seconds.
const (
	DefaultHTTPClientTimeout     = 30
	DefaultDatabaseQueryTimeout  = 10
	DefaultRedisOperationTimeout = 5
	DefaultRedisReadTimeout      = 5
	DefaultRedisWriteTimeout     = 5
	DefaultRequestTimeout        = 30
	DefaultUploadRequestTimeout  = 60
)

// Upper bounds, in seconds.
const (
	MaxHTTPClientTimeout     = 300
	MaxDatabaseQueryTimeout  = 120
	MaxRedisOperationTimeout = 60
	MaxRequestTimeout        = 300
)

// TimeoutConfig holds timeout settings in seconds
type TimeoutConfig struct {
	HTTPClientTimeout     int
	DatabaseQueryTimeout  int
	RedisOperationTimeout int
	RedisReadTimeout      int
	RedisWriteTimeout     int
	DefaultRequestTimeout int
	// RouteOverrides maps "METHOD:/path" to a timeout in seconds
	RouteOverrides map[string]int
}

func loadTimeoutConfig() (TimeoutConfig, error) {
	cfg := TimeoutConfig{
		HTTPClientTimeout:     getEnvAsInt("HTTP_CLIENT_TIMEOUT", DefaultHTTPClientTimeout),
		DatabaseQueryTimeout:  getEnvAsInt("DB_QUERY_TIMEOUT", DefaultDatabaseQueryTimeout),
		RedisOperationTimeout: getEnvAsInt("REDIS_OPERATION_TIMEOUT", DefaultRedisOperationTimeout),
		RedisReadTimeout:      getEnvAsInt("REDIS_READ_TIMEOUT", DefaultRedisReadTimeout),
		RedisWriteTimeout:     getEnvAsInt("REDIS_WRITE_TIMEOUT", DefaultRedisWriteTimeout),
		DefaultRequestTimeout: getEnvAsInt("DEFAULT_REQUEST_TIMEOUT", DefaultRequestTimeout),
		RouteOverrides: map[string]int{
			"POST:/api/v1/routes/import": DefaultUploadRequestTimeout,
		},
	}

	checks := []struct {
		name  string
		value int
		max   int
	}{
		{"HTTP_CLIENT_TIMEOUT", cfg.HTTPClientTimeout, MaxHTTPClientTimeout},
		{"DB_QUERY_TIMEOUT", cfg.DatabaseQueryTimeout, MaxDatabaseQueryTimeout},
		{"REDIS_OPERATION_TIMEOUT", cfg.RedisOperationTimeout, MaxRedisOperationTimeout},
		{"REDIS_READ_TIMEOUT", cfg.RedisReadTimeout, MaxRedisOperationTimeout},
		{"REDIS_WRITE_TIMEOUT", cfg.RedisWriteTimeout, MaxRedisOperationTimeout},
		{"DEFAULT_REQUEST_TIMEOUT", cfg.DefaultRequestTimeout, MaxRequestTimeout},
	}
	for _, check := range checks {
		if check.value > check.max {
			return cfg, fmt.Errorf("%s value %d exceeds maximum of %d seconds", check.name, check.value, check.max)
		}
	}

	if raw := getEnv("ROUTE_TIMEOUT_OVERRIDES", ""); raw != "" {
		var overrides map[string]int
		if err := json.Unmarshal([]byte(raw), &overrides); err != nil {
			return cfg, fmt.Errorf("invalid ROUTE_TIMEOUT_OVERRIDES value: %w", err)
		}
		for route, seconds := range overrides {
			if seconds <= 0 {
				continue
			}
			if seconds > MaxRequestTimeout {
				return cfg, fmt.Errorf("route timeout for %s (%d) exceeds maximum of %d seconds", route, seconds, MaxRequestTimeout)
			}
			cfg.RouteOverrides[route] = seconds
		}
	}

	return cfg, nil
}

// HTTPClientTimeoutDuration returns the outbound HTTP client timeout
func (c TimeoutConfig) HTTPClientTimeoutDuration() time.Duration {
	return time.Duration(c.HTTPClientTimeout) * time.Second
}

// DatabaseQueryTimeoutDuration returns the per-query timeout
func (c TimeoutConfig) DatabaseQueryTimeoutDuration() time.Duration {
	return time.Duration(c.DatabaseQueryTimeout) * time.Second
}

// RedisOperationTimeoutDuration returns the Redis dial/operation timeout
func (c TimeoutConfig) RedisOperationTimeoutDuration() time.Duration {
	return time.Duration(c.RedisOperationTimeout) * time.Second
}

// RedisReadTimeoutDuration falls back to the operation timeout when unset
func (c TimeoutConfig) RedisReadTimeoutDuration() time.Duration {
	if c.RedisReadTimeout <= 0 {
		return c.RedisOperationTimeoutDuration()
	}
	return time.Duration(c.RedisReadTimeout) * time.Second
}

// RedisWriteTimeoutDuration falls back to the operation timeout when unset
func (c TimeoutConfig) RedisWriteTimeoutDuration() time.Duration {
	if c.RedisWriteTimeout <= 0 {
		return c.RedisOperationTimeoutDuration()
	}
	return time.Duration(c.RedisWriteTimeout) * time.Second
}

// DefaultRequestTimeoutDuration returns the default inbound request timeout
func (c TimeoutConfig) DefaultRequestTimeoutDuration() time.Duration {
	return time.Duration(c.DefaultRequestTimeout) * time.Second
}

// TimeoutForRoute returns the override for method and path when one is set,
// otherwise the default request timeout.
func (c TimeoutConfig) TimeoutForRoute(method, path string) time.Duration {
	if seconds, ok := c.RouteOverrides[method+":"+path]; ok && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	return c.DefaultRequestTimeoutDuration()
}

// DefaultRedisReadTimeoutDuration returns the default Redis read timeout
func DefaultRedisReadTimeoutDuration() time.Duration {
	return time.Duration(DefaultRedisReadTimeout) * time.Second
}

// DefaultRedisWriteTimeoutDuration returns the default Redis write timeout
func DefaultRedisWriteTimeoutDuration() time.Duration {
	return time.Duration(DefaultRedisWriteTimeout) * time.Second
}

// DefaultHTTPClientTimeoutDuration returns the default outbound HTTP timeout
func DefaultHTTPClientTimeoutDuration() time.Duration {
	return time.Duration(DefaultHTTPClientTimeout) * time.Second
}
