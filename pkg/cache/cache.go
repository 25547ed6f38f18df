package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	redisclient "github.com/richxcame/courier-dispatch/pkg/redis"
)

// Manager handles caching operations with JSON serialization
type Manager struct {
	redis *redisclient.Client
}

// NewManager creates a new cache manager
func NewManager(redis *redisclient.Client) *Manager {
	return &Manager{redis: redis}
}

// Get retrieves a cached value and unmarshals it into result
func (m *Manager) Get(ctx context.Context, key string, result interface{}) error {
	data, err := m.redis.GetString(ctx, key)
	if err != nil {
		return err
	}

	return json.Unmarshal([]byte(data), result)
}

// Set marshals and caches a value with expiration
func (m *Manager) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal cache value: %w", err)
	}

	return m.redis.SetWithExpiration(ctx, key, string(data), ttl)
}

// GetOrSet retrieves from cache or executes fn and caches the result
func (m *Manager) GetOrSet(ctx context.Context, key string, ttl time.Duration, result interface{}, fn func() (interface{}, error)) error {
	// Try cache first
	err := m.Get(ctx, key, result)
	if err == nil {
		return nil // Cache hit
	}

	// Cache miss - execute function
	data, err := fn()
	if err != nil {
		return err
	}

	// Cache the result (non-blocking)
	go func() {
		cacheCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := m.Set(cacheCtx, key, data, ttl); err != nil {
			// Log but don't fail
			fmt.Printf("failed to cache key %s: %v\n", key, err)
		}
	}()

	// Marshal the result into the result pointer
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}

	return json.Unmarshal(jsonData, result)
}

// Delete removes a key from cache
func (m *Manager) Delete(ctx context.Context, keys ...string) error {
	return m.redis.Delete(ctx, keys...)
}

// Invalidate removes keys matching a pattern
func (m *Manager) Invalidate(ctx context.Context, pattern string) error {
	// Note: This uses SCAN which is safe for production
	var cursor uint64
	var deletedKeys []string

	for {
		var keys []string
		var err error

		result := m.redis.Scan(ctx, cursor, pattern, 100)
		keys, cursor, err = result.Result()
		if err != nil {
			return fmt.Errorf("failed to scan keys: %w", err)
		}

		if len(keys) > 0 {
			deletedKeys = append(deletedKeys, keys...)
			if err := m.redis.Delete(ctx, keys...); err != nil {
				return fmt.Errorf("failed to delete keys: %w", err)
			}
		}

		if cursor == 0 {
			break
		}
	}

	return nil
}

// CacheKeys defines common cache key patterns
type CacheKeys struct{}

var Keys = CacheKeys{}

// User returns cache key for user data
func (k CacheKeys) User(userID string) string {
	return fmt.Sprintf("user:%s", userID)
}

// Courier returns cache key for courier profile data
func (k CacheKeys) Courier(courierID string) string {
	return fmt.Sprintf("courier:%s", courierID)
}

// Delivery returns cache key for delivery data
func (k CacheKeys) Delivery(deliveryID string) string {
	return fmt.Sprintf("delivery:%s", deliveryID)
}

// DeliveryHistory returns cache key for a user's delivery history page
func (k CacheKeys) DeliveryHistory(userID string, offset int) string {
	return fmt.Sprintf("delivery_history:%s:offset:%d", userID, offset)
}

// CourierLocation returns cache key for courier location
func (k CacheKeys) CourierLocation(courierID string) string {
	return fmt.Sprintf("courier:location:%s", courierID)
}

// NearbyCouriers returns cache key for nearby courier searches
func (k CacheKeys) NearbyCouriers(latitude, longitude float64, radiusMiles float64) string {
	return fmt.Sprintf("nearby_couriers:%.6f:%.6f:%.1f", latitude, longitude, radiusMiles)
}

// PromoCode returns cache key for promo code
func (k CacheKeys) PromoCode(code string) string {
	return fmt.Sprintf("promo:%s", code)
}

// PackageType returns cache key for a package type
func (k CacheKeys) PackageType(id string) string {
	return fmt.Sprintf("package_type:%s", id)
}

// PackageTypes returns cache key for the active package type list
func (k CacheKeys) PackageTypes() string {
	return "package_types:active"
}

// Setting returns cache key for a single system setting
func (k CacheKeys) Setting(key string) string {
	return fmt.Sprintf("setting:%s", key)
}

// Settings returns cache key for the full settings map
func (k CacheKeys) Settings() string {
	return "settings:all"
}

// CourierStats returns cache key for courier statistics
func (k CacheKeys) CourierStats(courierID string) string {
	return fmt.Sprintf("courier:stats:%s", courierID)
}

// CourierGeoSet returns the key of the geo set holding live courier positions
func (k CacheKeys) CourierGeoSet() string {
	return "courier_geo"
}

// DeliveryOffer returns cache key for one courier's offer on a delivery
func (k CacheKeys) DeliveryOffer(courierID, deliveryID string) string {
	return fmt.Sprintf("delivery_offer:%s:%s", courierID, deliveryID)
}

// CourierOffers returns cache key for the set of a courier's open offer keys
func (k CacheKeys) CourierOffers(courierID string) string {
	return fmt.Sprintf("courier_offers:%s", courierID)
}

// DeliveryOfferIndex returns cache key for the set of couriers offered a delivery
func (k CacheKeys) DeliveryOfferIndex(deliveryID string) string {
	return fmt.Sprintf("delivery_offer_couriers:%s", deliveryID)
}

// TTL defines common cache TTL durations
type CacheTTL struct{}

var TTL = CacheTTL{}

func (t CacheTTL) Short() time.Duration     { return 5 * time.Minute }
func (t CacheTTL) Medium() time.Duration    { return 15 * time.Minute }
func (t CacheTTL) Long() time.Duration      { return 1 * time.Hour }
func (t CacheTTL) VeryLong() time.Duration  { return 24 * time.Hour }
func (t CacheTTL) Permanent() time.Duration { return 7 * 24 * time.Hour }
