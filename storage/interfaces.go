package storage

import (
	"context"

	"drivemap/core"
)

// DeviceStorageInterface defines the registry contract for hard drive records.
// Implementations must be safe for concurrent access. Writes are atomic with
// respect to concurrent reads: a reader never observes a partially written
// device. List methods return devices in insertion (creation) order.
type DeviceStorageInterface interface {
	// CreateDevice atomically checks serial uniqueness and inserts the device.
	// Returns ErrDuplicateSerial if the serial number is already registered;
	// under concurrent creates with the same serial exactly one call succeeds.
	CreateDevice(ctx context.Context, device *core.Device) error

	// GetDevice retrieves a device by ID. Returns ErrDeviceNotFound if absent.
	GetDevice(ctx context.Context, id string) (*core.Device, error)

	// GetDeviceBySerial retrieves a device by serial number.
	// Returns ErrDeviceNotFound if absent.
	GetDeviceBySerial(ctx context.Context, serial string) (*core.Device, error)

	// UpdateDeviceStatus mutates only the status field of an existing device
	// and returns the updated record. Returns ErrDeviceNotFound if absent.
	UpdateDeviceStatus(ctx context.Context, id string, status core.Status) (*core.Device, error)

	// GetAllDevices returns every stored device in insertion order.
	GetAllDevices(ctx context.Context) ([]core.Device, error)

	// GetDevicesByFacility returns devices in a facility, insertion order.
	GetDevicesByFacility(ctx context.Context, facility core.Facility) ([]core.Device, error)

	// GetDeviceCount returns the number of stored devices.
	GetDeviceCount(ctx context.Context) (int64, error)

	// EnsureIndexes creates any indexes the implementation needs.
	EnsureIndexes() error
}
