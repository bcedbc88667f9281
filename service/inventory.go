// Package service composes the registry, indexes, aggregator and broadcast
// hub behind a single call surface for the transport layer.
package service

import (
	"context"
	"fmt"
	"time"

	"drivemap/core"
	"drivemap/embed"
	"drivemap/index"
	"drivemap/metrics"
	"drivemap/ml"
	"drivemap/notify"
	"drivemap/storage"

	"go.uber.org/zap"
)

// Inventory is the facade over the device registry and its query engines.
// It holds no state of its own beyond its collaborators.
type Inventory struct {
	devices   storage.DeviceStorageInterface
	spatial   *index.Spatial
	vector    *index.Vector
	hub       *notify.Hub
	embedder  embed.Embedder
	predictor ml.FailurePredictor
	logger    *zap.SugaredLogger
}

// NewInventory creates the inventory facade
func NewInventory(
	devices storage.DeviceStorageInterface,
	spatial *index.Spatial,
	vector *index.Vector,
	hub *notify.Hub,
	embedder embed.Embedder,
	predictor ml.FailurePredictor,
	logger *zap.SugaredLogger,
) *Inventory {
	return &Inventory{
		devices:   devices,
		spatial:   spatial,
		vector:    vector,
		hub:       hub,
		embedder:  embedder,
		predictor: predictor,
		logger:    logger,
	}
}

// Hub exposes the broadcast hub for the transport layer's subscriber wiring
func (s *Inventory) Hub() *notify.Hub {
	return s.hub
}

// CreateDeviceParams carries the fields a caller supplies at registration.
// ID, embedding and creation time are assigned by the service.
type CreateDeviceParams struct {
	SerialNumber string
	CapacityGB   int
	Latitude     float64
	Longitude    float64
	Elevation    float64
	Status       core.Status
	Facility     core.Facility
}

// CreateDevice validates the candidate, generates its embedding, persists
// it, and broadcasts a new_hard_drive event. Ordering is load-bearing: the
// embedding must exist before the device is persisted, and the broadcast
// must follow the commit. An embedding failure aborts the create with the
// registry untouched.
func (s *Inventory) CreateDevice(ctx context.Context, params CreateDeviceParams) (*core.Device, error) {
	timer := time.Now()
	defer func() { metrics.QueryDuration.WithLabelValues("create_device").Observe(time.Since(timer).Seconds()) }()

	device := core.NewDevice(
		params.SerialNumber,
		params.CapacityGB,
		core.Coordinate{Latitude: params.Latitude, Longitude: params.Longitude, Elevation: params.Elevation},
		params.Status,
		params.Facility,
	)

	// Reject bad input before paying for the embedding call
	if err := s.validateCandidate(device); err != nil {
		return nil, err
	}

	embedding, err := s.embedder.Embed(ctx, device.SerialNumber)
	if err != nil {
		return nil, fmt.Errorf("failed to generate embedding for %s: %w", device.SerialNumber, err)
	}
	device.Embedding = embedding

	if err := s.devices.CreateDevice(ctx, device); err != nil {
		return nil, err
	}

	metrics.DevicesCreated.WithLabelValues(string(device.Facility)).Inc()
	s.logger.Infow("Device registered",
		"id", device.ID,
		"serial", device.SerialNumber,
		"facility", device.Facility)

	s.hub.Broadcast(notify.EventNewHardDrive, device.Snapshot())
	return device, nil
}

// validateCandidate checks every field except the embedding, which does
// not exist yet at this point in the create flow.
func (s *Inventory) validateCandidate(d *core.Device) error {
	if d.SerialNumber == "" {
		return &core.ValidationError{Field: "serial_number", Reason: "serial number is required"}
	}
	if d.CapacityGB <= 0 {
		return &core.ValidationError{Field: "capacity_gb", Reason: fmt.Sprintf("capacity must be positive, got %d", d.CapacityGB)}
	}
	if err := d.Location.Validate(); err != nil {
		return err
	}
	if !d.Status.IsValid() {
		return &core.ValidationError{Field: "status", Reason: fmt.Sprintf("invalid status: %s", d.Status)}
	}
	if !d.Facility.IsValid() {
		return &core.ValidationError{Field: "facility", Reason: fmt.Sprintf("invalid facility: %s", d.Facility)}
	}
	return nil
}

// GetDevice retrieves a single device by ID
func (s *Inventory) GetDevice(ctx context.Context, id string) (*core.Device, error) {
	return s.devices.GetDevice(ctx, id)
}

// GetAllDevices lists devices in insertion order, optionally restricted to
// one facility.
func (s *Inventory) GetAllDevices(ctx context.Context, facility *core.Facility) ([]core.Device, error) {
	timer := time.Now()
	defer func() { metrics.QueryDuration.WithLabelValues("list_devices").Observe(time.Since(timer).Seconds()) }()

	if facility != nil {
		return s.devices.GetDevicesByFacility(ctx, *facility)
	}
	return s.devices.GetAllDevices(ctx)
}

// UpdateStatus mutates a device's status and broadcasts a status_update
// event after the write commits.
func (s *Inventory) UpdateStatus(ctx context.Context, id string, status core.Status) (*core.Device, error) {
	timer := time.Now()
	defer func() { metrics.QueryDuration.WithLabelValues("update_status").Observe(time.Since(timer).Seconds()) }()

	device, err := s.devices.UpdateDeviceStatus(ctx, id, status)
	if err != nil {
		return nil, err
	}

	metrics.StatusUpdates.WithLabelValues(string(status)).Inc()
	s.logger.Infow("Device status updated", "id", id, "status", status)

	s.hub.Broadcast(notify.EventStatusUpdate, device.Snapshot())
	return device, nil
}

// QueryNearby returns full device records within radiusKm of the given
// point, in registry insertion order.
func (s *Inventory) QueryNearby(ctx context.Context, latitude, longitude, radiusKm float64, facility *core.Facility) ([]core.Device, error) {
	timer := time.Now()
	defer func() { metrics.QueryDuration.WithLabelValues("query_nearby").Observe(time.Since(timer).Seconds()) }()

	center := core.Coordinate{Latitude: latitude, Longitude: longitude}
	ids, err := s.spatial.QueryRadius(ctx, center, radiusKm, facility)
	if err != nil {
		return nil, err
	}
	return s.materialize(ctx, ids)
}

// QuerySimilar returns the k devices most similar to the target by cosine
// distance, nearest first.
func (s *Inventory) QuerySimilar(ctx context.Context, targetID string, k int) ([]core.Device, error) {
	timer := time.Now()
	defer func() { metrics.QueryDuration.WithLabelValues("query_similar").Observe(time.Since(timer).Seconds()) }()

	ids, err := s.vector.QueryNearest(ctx, targetID, k)
	if err != nil {
		return nil, err
	}
	return s.materialize(ctx, ids)
}

// PredictFailures runs the failure-prediction collaborator over the whole
// registry. Reporting only; not part of the registry's guaranteed contract.
func (s *Inventory) PredictFailures(ctx context.Context) ([]ml.FailurePrediction, error) {
	devices, err := s.devices.GetAllDevices(ctx)
	if err != nil {
		return nil, err
	}

	predictions, err := s.predictor.PredictFailures(ctx, devices)
	if err != nil {
		return nil, fmt.Errorf("failure prediction: %w", err)
	}
	return predictions, nil
}

// materialize resolves index results to full device records
func (s *Inventory) materialize(ctx context.Context, ids []string) ([]core.Device, error) {
	devices := make([]core.Device, 0, len(ids))
	for _, id := range ids {
		d, err := s.devices.GetDevice(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to materialize device %s: %w", id, err)
		}
		devices = append(devices, *d)
	}
	return devices, nil
}
