// Package index answers geospatial and embedding-similarity queries over
// the device registry. Both indexes evaluate against the registry's current
// state on every call, so results are always at least as fresh as the last
// committed write.
package index

import (
	"context"

	"drivemap/core"
)

// DeviceReader is the slice of the registry the indexes consume
type DeviceReader interface {
	GetDevice(ctx context.Context, id string) (*core.Device, error)
	GetAllDevices(ctx context.Context) ([]core.Device, error)
	GetDevicesByFacility(ctx context.Context, facility core.Facility) ([]core.Device, error)
}
