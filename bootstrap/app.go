package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"drivemap/api"
	"drivemap/config"
	"drivemap/embed"
	"drivemap/index"
	"drivemap/ml"
	"drivemap/notify"
	"drivemap/service"
	"drivemap/util/goroutine"

	"go.uber.org/zap"
)

// App represents the drivemap application with all its components.
type App struct {
	// Configuration
	Config *config.Config
	Logger *zap.Logger
	Sugar  *zap.SugaredLogger

	// Storage
	Storage *StorageComponents

	// Services
	Hub       *notify.Hub
	Embedder  embed.Embedder
	Inventory *service.Inventory
	APIServer *api.API

	serverErrCh chan error
}

// NewApp creates a new application instance and initializes all components.
func NewApp(ctx context.Context) (*App, error) {
	app := &App{
		serverErrCh: make(chan error, 1),
	}

	logger, sugar, err := InitLogger()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	app.Logger = logger
	app.Sugar = sugar

	sugar.Info("drivemap starting...")

	cfg, err := InitConfig(sugar)
	if err != nil {
		return nil, err
	}
	app.Config = cfg

	// Pre-flight checks
	if err := EnsureDataDirectories(cfg, sugar); err != nil {
		return nil, fmt.Errorf("pre-flight check failed: %w", err)
	}

	sqlite, err := InitSQLite(cfg, sugar)
	if err != nil {
		return nil, err
	}

	storageComponents, err := InitStorage(ctx, cfg, sqlite, sugar)
	if err != nil {
		sqlite.Close()
		return nil, err
	}
	app.Storage = storageComponents

	app.Embedder = InitEmbedder(cfg, sugar)
	app.Hub = notify.NewHub(sugar)

	app.Inventory = service.NewInventory(
		storageComponents.DeviceStorage,
		index.NewSpatial(storageComponents.DeviceStorage, sugar),
		index.NewVector(storageComponents.DeviceStorage, sugar),
		app.Hub,
		app.Embedder,
		ml.NewStatisticalPredictor(sugar),
		sugar,
	)

	app.APIServer = api.NewAPI(app.Inventory, app.Hub, cfg, sugar)

	return app, nil
}

// InitEmbedder selects the embedding backend from configuration. A configured
// service URL gets the remote HTTP embedder behind an LRU cache; otherwise the
// deterministic local hashing embedder is used.
func InitEmbedder(cfg *config.Config, sugar *zap.SugaredLogger) embed.Embedder {
	if cfg.Embedding.ServiceURL == "" {
		sugar.Info("No embedding service configured, using local hashing embedder")
		return embed.NewHashing()
	}

	remote := embed.NewHTTPEmbedder(cfg.Embedding.ServiceURL, cfg.Embedding.Timeout, sugar)
	cached, err := embed.NewCached(remote, cfg.Embedding.CacheSize)
	if err != nil {
		sugar.Warnw("Failed to initialize embedding cache, using uncached embedder", "error", err)
		return remote
	}

	sugar.Infow("Remote embedder ready",
		"endpoint", cfg.Embedding.ServiceURL,
		"cache_size", cfg.Embedding.CacheSize)
	return cached
}

// Start starts the API server.
func (a *App) Start(ctx context.Context) error {
	a.Sugar.Infow("Starting API server",
		"addr", fmt.Sprintf("%s:%d", a.Config.API.Host, a.Config.API.Port))

	go func() {
		defer goroutine.Recover("api-server", a.Sugar)
		if err := a.APIServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Sugar.Errorw("API server stopped unexpectedly", "error", err)
			a.serverErrCh <- err
		}
	}()

	return nil
}

// WaitForShutdown blocks until a shutdown signal is received or the API
// server fails.
func (a *App) WaitForShutdown() {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-c:
		a.Sugar.Infow("Received shutdown signal", "signal", sig)
	case err := <-a.serverErrCh:
		a.Sugar.Errorw("Shutting down after server failure", "error", err)
	}
}

// Shutdown gracefully shuts down all components.
func (a *App) Shutdown() {
	a.Sugar.Info("Shutting down...")

	// Stop accepting requests first so no new events are produced
	ctx, cancel := context.WithTimeout(context.Background(), a.Config.API.ShutdownTimeout)
	defer cancel()
	if a.APIServer != nil {
		if err := a.APIServer.Stop(ctx); err != nil {
			a.Sugar.Errorw("API server shutdown failed", "error", err)
		}
	}

	// Disconnect subscribers after the request path is quiet
	if a.Hub != nil {
		a.Hub.Close()
	}

	if a.Storage != nil {
		a.Storage.Close(a.Sugar)
	}

	a.Sugar.Info("Shutdown complete")
	a.Logger.Sync()
}
