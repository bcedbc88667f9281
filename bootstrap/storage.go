package bootstrap

import (
	"context"
	"fmt"
	"time"

	"drivemap/config"
	"drivemap/storage"

	"go.uber.org/zap"
)

// StorageComponents holds all storage-related components.
type StorageComponents struct {
	SQLite        *storage.SQLite
	RedisCache    *storage.RedisCache
	DeviceStorage storage.DeviceStorageInterface
}

// InitSQLite opens the SQLite database and prepares the device tables.
func InitSQLite(cfg *config.Config, sugar *zap.SugaredLogger) (*storage.SQLite, error) {
	sqlite, err := storage.NewSQLite(cfg.GetSQLitePath(), sugar)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}
	sugar.Infow("SQLite database ready", "path", cfg.GetSQLitePath())
	return sqlite, nil
}

// InitStorage wires the device storage stack: SQLite persistence with an
// optional Redis read-through cache in front of it.
func InitStorage(ctx context.Context, cfg *config.Config, sqlite *storage.SQLite, sugar *zap.SugaredLogger) (*StorageComponents, error) {
	deviceStorage, err := storage.NewSQLiteDeviceStorage(sqlite, sugar)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize device storage: %w", err)
	}

	components := &StorageComponents{
		SQLite:        sqlite,
		DeviceStorage: deviceStorage,
	}

	if cfg.Redis.Enabled {
		cache := storage.NewRedisCache(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.PoolSize, sugar)

		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		if err := cache.Ping(pingCtx); err != nil {
			// The cache layer degrades to the inner storage on errors, so a
			// dead Redis at boot is a warning, not a failure.
			sugar.Warnw("Redis unreachable, continuing without a warm cache",
				"addr", cfg.Redis.Addr,
				"detail", ClassifyConnectionError(err, cfg.Redis.Addr))
		} else {
			sugar.Infow("Connected to Redis", "addr", cfg.Redis.Addr)
		}

		components.RedisCache = cache
		components.DeviceStorage = storage.NewCachedDeviceStorage(deviceStorage, cache, sugar)
	}

	return components, nil
}

// Close releases all storage resources.
func (s *StorageComponents) Close(sugar *zap.SugaredLogger) {
	if s.RedisCache != nil {
		if err := s.RedisCache.Close(); err != nil {
			sugar.Errorw("Failed to close Redis cache", "error", err)
		}
	}
	if s.SQLite != nil {
		if err := s.SQLite.Close(); err != nil {
			sugar.Errorw("Failed to close SQLite database", "error", err)
		}
	}
}
