// Package api exposes the hard drive inventory over HTTP and WebSocket.
package api

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"drivemap/config"
	"drivemap/core"
	"drivemap/ml"
	"drivemap/notify"
	"drivemap/service"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// rateLimiterEntry holds a rate limiter with last seen time
type rateLimiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// InventoryService is the surface of the inventory the API depends on
type InventoryService interface {
	CreateDevice(ctx context.Context, params service.CreateDeviceParams) (*core.Device, error)
	GetDevice(ctx context.Context, id string) (*core.Device, error)
	GetAllDevices(ctx context.Context, facility *core.Facility) ([]core.Device, error)
	UpdateStatus(ctx context.Context, id string, status core.Status) (*core.Device, error)
	QueryNearby(ctx context.Context, latitude, longitude, radiusKm float64, facility *core.Facility) ([]core.Device, error)
	QuerySimilar(ctx context.Context, targetID string, k int) ([]core.Device, error)
	GetStats(ctx context.Context) (map[core.Facility]service.FacilityStats, error)
	PredictFailures(ctx context.Context) ([]ml.FailurePrediction, error)
}

// API holds the API server
type API struct {
	router         *mux.Router
	server         *http.Server
	inventory      InventoryService
	hub            *notify.Hub
	config         *config.Config
	logger         *zap.SugaredLogger
	rateLimiters   map[string]*rateLimiterEntry
	rateLimitersMu sync.Mutex
	stopCh         chan struct{}
}

// NewAPI creates a new API server
func NewAPI(inventory InventoryService, hub *notify.Hub, config *config.Config, logger *zap.SugaredLogger) *API {
	api := &API{
		router:       mux.NewRouter(),
		inventory:    inventory,
		hub:          hub,
		config:       config,
		logger:       logger,
		rateLimiters: make(map[string]*rateLimiterEntry),
		stopCh:       make(chan struct{}),
	}
	api.setupRoutes()
	go api.cleanupRateLimiters()
	return api
}

// setupRoutes sets up the API routes
func (a *API) setupRoutes() {
	a.router.Use(a.loggingMiddleware)
	a.router.Use(a.corsMiddleware)
	a.router.Use(a.rateLimitMiddleware)

	a.router.HandleFunc("/hard_drives", a.createHardDrive).Methods("POST")
	a.router.HandleFunc("/hard_drives", a.listHardDrives).Methods("GET")
	a.router.HandleFunc("/hard_drives/nearby", a.getNearbyHardDrives).Methods("GET")
	a.router.HandleFunc("/hard_drives/predict_failure", a.predictFailures).Methods("GET")
	a.router.HandleFunc("/hard_drives/similar/{id}", a.getSimilarHardDrives).Methods("GET")
	a.router.HandleFunc("/hard_drives/by_facility/{facility}", a.listHardDrivesByFacility).Methods("GET")
	a.router.HandleFunc("/hard_drives/{id}", a.getHardDrive).Methods("GET")
	a.router.HandleFunc("/hard_drives/{id}/status", a.updateHardDriveStatus).Methods("PUT")
	a.router.HandleFunc("/facilities/stats", a.getFacilityStats).Methods("GET")
	a.router.HandleFunc("/ws", a.serveWs).Methods("GET")
	a.router.HandleFunc("/health", a.healthCheck).Methods("GET")
	a.router.Handle("/metrics", promhttp.Handler())
}

// Router returns the configured router, useful for tests
func (a *API) Router() http.Handler {
	return a.router
}

// Start starts the API server and blocks until it stops
func (a *API) Start() error {
	a.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", a.config.API.Host, a.config.API.Port),
		Handler:      a.router,
		ReadTimeout:  a.config.API.ReadTimeout,
		WriteTimeout: a.config.API.WriteTimeout,
	}
	return a.server.ListenAndServe()
}

// Stop stops the API server
func (a *API) Stop(ctx context.Context) error {
	close(a.stopCh)
	if a.server != nil {
		return a.server.Shutdown(ctx)
	}
	return nil
}
