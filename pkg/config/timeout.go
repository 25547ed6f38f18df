package config

import (
	"encoding/json"
	"fmt"
	"time"
)

// Default timeout values in seconds
const (
	DefaultHTTPClientTimeout          = 30
	DefaultDatabaseQueryTimeout       = 10
	DefaultRedisOperationTimeout      = 5
	DefaultRedisReadTimeout           = 5
	DefaultRedisWriteTimeout          = 5
	DefaultWebSocketConnectionTimeout = 60
	DefaultRequestTimeout             = 30
)

// Maximum allowed timeout values in seconds. Values above these indicate a
// misconfiguration rather than a legitimate tuning choice.
const (
	MaxHTTPClientTimeout          = 120
	MaxDatabaseQueryTimeout       = 60
	MaxRedisOperationTimeout      = 30
	MaxRedisReadTimeout           = 30
	MaxRedisWriteTimeout          = 30
	MaxWebSocketConnectionTimeout = 300
	MaxRequestTimeout             = 300
	MaxRouteTimeout               = 300
)

// TimeoutConfig holds timeout tuning for outbound dependencies and inbound requests
type TimeoutConfig struct {
	HTTPClientTimeout          int
	DatabaseQueryTimeout       int
	RedisOperationTimeout      int
	RedisReadTimeout           int
	RedisWriteTimeout          int
	WebSocketConnectionTimeout int
	DefaultRequestTimeout      int
	RouteOverrides             map[string]int // keyed by "METHOD:/path"
}

func loadTimeoutConfig() (TimeoutConfig, error) {
	cfg := TimeoutConfig{
		HTTPClientTimeout:          getEnvAsInt("HTTP_CLIENT_TIMEOUT", DefaultHTTPClientTimeout),
		DatabaseQueryTimeout:       getEnvAsInt("DB_QUERY_TIMEOUT", DefaultDatabaseQueryTimeout),
		RedisOperationTimeout:      getEnvAsInt("REDIS_OPERATION_TIMEOUT", DefaultRedisOperationTimeout),
		RedisReadTimeout:           getEnvAsInt("REDIS_READ_TIMEOUT", DefaultRedisReadTimeout),
		RedisWriteTimeout:          getEnvAsInt("REDIS_WRITE_TIMEOUT", DefaultRedisWriteTimeout),
		WebSocketConnectionTimeout: getEnvAsInt("WS_CONNECTION_TIMEOUT", DefaultWebSocketConnectionTimeout),
		DefaultRequestTimeout:      getEnvAsInt("DEFAULT_REQUEST_TIMEOUT", DefaultRequestTimeout),
	}

	limits := []struct {
		name  string
		value int
		max   int
	}{
		{"HTTP_CLIENT_TIMEOUT", cfg.HTTPClientTimeout, MaxHTTPClientTimeout},
		{"DB_QUERY_TIMEOUT", cfg.DatabaseQueryTimeout, MaxDatabaseQueryTimeout},
		{"REDIS_OPERATION_TIMEOUT", cfg.RedisOperationTimeout, MaxRedisOperationTimeout},
		{"REDIS_READ_TIMEOUT", cfg.RedisReadTimeout, MaxRedisReadTimeout},
		{"REDIS_WRITE_TIMEOUT", cfg.RedisWriteTimeout, MaxRedisWriteTimeout},
		{"WS_CONNECTION_TIMEOUT", cfg.WebSocketConnectionTimeout, MaxWebSocketConnectionTimeout},
		{"DEFAULT_REQUEST_TIMEOUT", cfg.DefaultRequestTimeout, MaxRequestTimeout},
	}
	for _, limit := range limits {
		if limit.value > limit.max {
			return TimeoutConfig{}, fmt.Errorf("%s value %d exceeds maximum of %d seconds", limit.name, limit.value, limit.max)
		}
	}

	if raw := getEnv("ROUTE_TIMEOUT_OVERRIDES", ""); raw != "" {
		var overrides map[string]int
		if err := json.Unmarshal([]byte(raw), &overrides); err != nil {
			return TimeoutConfig{}, fmt.Errorf("invalid ROUTE_TIMEOUT_OVERRIDES value: %w", err)
		}

		cfg.RouteOverrides = make(map[string]int, len(overrides))
		for route, seconds := range overrides {
			if seconds <= 0 {
				continue
			}
			if seconds > MaxRouteTimeout {
				return TimeoutConfig{}, fmt.Errorf("route timeout for %s value %d exceeds maximum of %d seconds", route, seconds, MaxRouteTimeout)
			}
			cfg.RouteOverrides[route] = seconds
		}
	}

	return cfg, nil
}

// HTTPClientTimeoutDuration returns the outbound HTTP client timeout
func (c TimeoutConfig) HTTPClientTimeoutDuration() time.Duration {
	return secondsOrDefault(c.HTTPClientTimeout, DefaultHTTPClientTimeout)
}

// DatabaseQueryTimeoutDuration returns the per-query database timeout
func (c TimeoutConfig) DatabaseQueryTimeoutDuration() time.Duration {
	return secondsOrDefault(c.DatabaseQueryTimeout, DefaultDatabaseQueryTimeout)
}

// RedisOperationTimeoutDuration returns the general Redis operation timeout
func (c TimeoutConfig) RedisOperationTimeoutDuration() time.Duration {
	return secondsOrDefault(c.RedisOperationTimeout, DefaultRedisOperationTimeout)
}

// RedisReadTimeoutDuration returns the Redis read timeout, falling back to the
// general operation timeout when unset
func (c TimeoutConfig) RedisReadTimeoutDuration() time.Duration {
	if c.RedisReadTimeout > 0 {
		return time.Duration(c.RedisReadTimeout) * time.Second
	}
	return c.RedisOperationTimeoutDuration()
}

// RedisWriteTimeoutDuration returns the Redis write timeout, falling back to the
// general operation timeout when unset
func (c TimeoutConfig) RedisWriteTimeoutDuration() time.Duration {
	if c.RedisWriteTimeout > 0 {
		return time.Duration(c.RedisWriteTimeout) * time.Second
	}
	return c.RedisOperationTimeoutDuration()
}

// WebSocketConnectionTimeoutDuration returns the WebSocket handshake timeout
func (c TimeoutConfig) WebSocketConnectionTimeoutDuration() time.Duration {
	return secondsOrDefault(c.WebSocketConnectionTimeout, DefaultWebSocketConnectionTimeout)
}

// DefaultRequestTimeoutDuration returns the default inbound request timeout
func (c TimeoutConfig) DefaultRequestTimeoutDuration() time.Duration {
	return secondsOrDefault(c.DefaultRequestTimeout, DefaultRequestTimeout)
}

// TimeoutForRoute returns the effective timeout for a specific method and path,
// honoring per-route overrides
func (c TimeoutConfig) TimeoutForRoute(method, path string) time.Duration {
	if c.RouteOverrides != nil {
		if seconds, ok := c.RouteOverrides[method+":"+path]; ok && seconds > 0 {
			return time.Duration(seconds) * time.Second
		}
	}
	return c.DefaultRequestTimeoutDuration()
}

// DefaultHTTPClientTimeoutDuration returns the default outbound HTTP timeout
func DefaultHTTPClientTimeoutDuration() time.Duration {
	return time.Duration(DefaultHTTPClientTimeout) * time.Second
}

// DefaultRedisReadTimeoutDuration returns the default Redis read timeout
func DefaultRedisReadTimeoutDuration() time.Duration {
	return time.Duration(DefaultRedisReadTimeout) * time.Second
}

// DefaultRedisWriteTimeoutDuration returns the default Redis write timeout
func DefaultRedisWriteTimeoutDuration() time.Duration {
	return time.Duration(DefaultRedisWriteTimeout) * time.Second
}

func secondsOrDefault(value, fallback int) time.Duration {
	if value <= 0 {
		value = fallback
	}
	return time.Duration(value) * time.Second
}
