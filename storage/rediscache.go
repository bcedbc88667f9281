package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"drivemap/core"
	"drivemap/metrics"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisCache provides a Redis-based cache for frequently accessed device
// records. Cache failures are never surfaced to callers; a broken cache
// degrades to direct storage reads.
type RedisCache struct {
	client *redis.Client
	logger *zap.SugaredLogger
}

// NewRedisCache creates a new Redis cache instance
func NewRedisCache(addr, password string, db, poolSize int, logger *zap.SugaredLogger) *RedisCache {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
		PoolSize: poolSize,
	})

	return &RedisCache{
		client: client,
		logger: logger,
	}
}

// Ping tests the Redis connection
func (rc *RedisCache) Ping(ctx context.Context) error {
	return rc.client.Ping(ctx).Err()
}

// Close closes the Redis connection
func (rc *RedisCache) Close() error {
	return rc.client.Close()
}

// Set stores a value in the cache with expiration
func (rc *RedisCache) Set(ctx context.Context, key string, value any, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		rc.logger.Errorf("Failed to marshal cache value for key %s: %v", key, err)
		metrics.CacheErrors.WithLabelValues("redis", "marshal").Inc()
		return err
	}

	if err := rc.client.Set(ctx, key, data, expiration).Err(); err != nil {
		metrics.CacheErrors.WithLabelValues("redis", "set").Inc()
		return err
	}
	return nil
}

// Get retrieves a value from the cache into dest. Returns redis.Nil on miss.
func (rc *RedisCache) Get(ctx context.Context, key string, dest any) error {
	data, err := rc.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			metrics.CacheErrors.WithLabelValues("redis", "get").Inc()
		}
		return err
	}
	return json.Unmarshal(data, dest)
}

// Delete removes keys from the cache
func (rc *RedisCache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := rc.client.Del(ctx, keys...).Err(); err != nil {
		metrics.CacheErrors.WithLabelValues("redis", "delete").Inc()
		return err
	}
	return nil
}

// =============================================================================
// Cached Device Storage Decorator
// =============================================================================

// deviceCacheTTL bounds staleness if an invalidation is ever lost
const deviceCacheTTL = 5 * time.Minute

// CachedDeviceStorage wraps a DeviceStorageInterface with a Redis
// read-through cache for point lookups. Status updates invalidate the
// cached record before the write returns, so readers going through the
// cache still observe their own writes. List queries always hit the
// underlying store.
type CachedDeviceStorage struct {
	inner  DeviceStorageInterface
	cache  *RedisCache
	logger *zap.SugaredLogger
}

// NewCachedDeviceStorage creates a caching decorator around inner
func NewCachedDeviceStorage(inner DeviceStorageInterface, cache *RedisCache, logger *zap.SugaredLogger) *CachedDeviceStorage {
	return &CachedDeviceStorage{
		inner:  inner,
		cache:  cache,
		logger: logger,
	}
}

func deviceKey(id string) string     { return "device:id:" + id }
func serialKey(serial string) string { return "device:serial:" + serial }

func (c *CachedDeviceStorage) invalidate(ctx context.Context, d *core.Device) {
	if err := c.cache.Delete(ctx, deviceKey(d.ID), serialKey(d.SerialNumber)); err != nil {
		c.logger.Warnw("Failed to invalidate device cache", "device_id", d.ID, "error", err)
	}
}

// CreateDevice delegates to the underlying store and warms the cache
func (c *CachedDeviceStorage) CreateDevice(ctx context.Context, device *core.Device) error {
	if err := c.inner.CreateDevice(ctx, device); err != nil {
		return err
	}
	if err := c.cache.Set(ctx, deviceKey(device.ID), device, deviceCacheTTL); err != nil {
		c.logger.Debugw("Failed to warm device cache", "device_id", device.ID, "error", err)
	}
	return nil
}

// GetDevice reads through the cache
func (c *CachedDeviceStorage) GetDevice(ctx context.Context, id string) (*core.Device, error) {
	var cached core.Device
	if err := c.cache.Get(ctx, deviceKey(id), &cached); err == nil {
		return &cached, nil
	}

	d, err := c.inner.GetDevice(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := c.cache.Set(ctx, deviceKey(id), d, deviceCacheTTL); err != nil {
		c.logger.Debugw("Failed to populate device cache", "device_id", id, "error", err)
	}
	return d, nil
}

// GetDeviceBySerial reads through the cache
func (c *CachedDeviceStorage) GetDeviceBySerial(ctx context.Context, serial string) (*core.Device, error) {
	var cached core.Device
	if err := c.cache.Get(ctx, serialKey(serial), &cached); err == nil {
		return &cached, nil
	}

	d, err := c.inner.GetDeviceBySerial(ctx, serial)
	if err != nil {
		return nil, err
	}
	if err := c.cache.Set(ctx, serialKey(serial), d, deviceCacheTTL); err != nil {
		c.logger.Debugw("Failed to populate device cache", "serial", serial, "error", err)
	}
	return d, nil
}

// UpdateDeviceStatus writes through and invalidates the cached record
func (c *CachedDeviceStorage) UpdateDeviceStatus(ctx context.Context, id string, status core.Status) (*core.Device, error) {
	d, err := c.inner.UpdateDeviceStatus(ctx, id, status)
	if err != nil {
		return nil, err
	}
	c.invalidate(ctx, d)
	return d, nil
}

// GetAllDevices always hits the underlying store
func (c *CachedDeviceStorage) GetAllDevices(ctx context.Context) ([]core.Device, error) {
	return c.inner.GetAllDevices(ctx)
}

// GetDevicesByFacility always hits the underlying store
func (c *CachedDeviceStorage) GetDevicesByFacility(ctx context.Context, facility core.Facility) ([]core.Device, error) {
	return c.inner.GetDevicesByFacility(ctx, facility)
}

// GetDeviceCount always hits the underlying store
func (c *CachedDeviceStorage) GetDeviceCount(ctx context.Context) (int64, error) {
	return c.inner.GetDeviceCount(ctx)
}

// EnsureIndexes delegates to the underlying store
func (c *CachedDeviceStorage) EnsureIndexes() error {
	return c.inner.EnsureIndexes()
}

var _ DeviceStorageInterface = (*CachedDeviceStorage)(nil)
var _ DeviceStorageInterface = (*SQLiteDeviceStorage)(nil)
var _ DeviceStorageInterface = (*MemoryDeviceStorage)(nil)

// String implements fmt.Stringer for log output
func (rc *RedisCache) String() string {
	return fmt.Sprintf("RedisCache(%s)", rc.client.Options().Addr)
}
