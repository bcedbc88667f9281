package index

import (
	"context"
	"fmt"

	"drivemap/core"

	"go.uber.org/zap"
)

// Spatial answers radius queries over device locations using great-circle
// distance. Results keep registry insertion order; no distance sort.
type Spatial struct {
	devices DeviceReader
	logger  *zap.SugaredLogger
}

// NewSpatial creates a spatial index over the given registry
func NewSpatial(devices DeviceReader, logger *zap.SugaredLogger) *Spatial {
	return &Spatial{
		devices: devices,
		logger:  logger,
	}
}

// QueryRadius returns the IDs of devices within radiusKm of center,
// boundary inclusive. A non-nil facility restricts the candidate set before
// any distance is computed. Elevation never participates in the distance.
func (s *Spatial) QueryRadius(ctx context.Context, center core.Coordinate, radiusKm float64, facility *core.Facility) ([]string, error) {
	if err := center.Validate(); err != nil {
		return nil, err
	}
	if radiusKm < 0 {
		return nil, &core.ValidationError{Field: "radius_km", Reason: fmt.Sprintf("radius must be non-negative, got %v", radiusKm)}
	}

	var (
		candidates []core.Device
		err        error
	)
	if facility != nil {
		candidates, err = s.devices.GetDevicesByFacility(ctx, *facility)
	} else {
		candidates, err = s.devices.GetAllDevices(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load candidate devices: %w", err)
	}

	matched := []string{}
	for _, d := range candidates {
		if core.HaversineKm(center, d.Location) <= radiusKm {
			matched = append(matched, d.ID)
		}
	}

	s.logger.Debugw("Radius query evaluated",
		"candidates", len(candidates),
		"matched", len(matched),
		"radius_km", radiusKm)
	return matched, nil
}
