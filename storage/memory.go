package storage

import (
	"context"
	"fmt"
	"sync"

	"drivemap/core"
)

// MemoryDeviceStorage is an in-memory DeviceStorageInterface implementation.
// It backs tests and single-process deployments that don't need durability.
// All methods copy devices on the way in and out, so callers can never
// observe or cause a partial write.
type MemoryDeviceStorage struct {
	mu       sync.RWMutex
	byID     map[string]*core.Device
	bySerial map[string]*core.Device
	order    []string // device IDs in insertion order
}

// NewMemoryDeviceStorage creates an empty in-memory device store
func NewMemoryDeviceStorage() *MemoryDeviceStorage {
	return &MemoryDeviceStorage{
		byID:     make(map[string]*core.Device),
		bySerial: make(map[string]*core.Device),
	}
}

func copyDevice(d *core.Device) *core.Device {
	cp := *d
	if d.Embedding != nil {
		cp.Embedding = make([]float32, len(d.Embedding))
		copy(cp.Embedding, d.Embedding)
	}
	return &cp
}

// CreateDevice atomically checks serial uniqueness and inserts
func (m *MemoryDeviceStorage) CreateDevice(ctx context.Context, device *core.Device) error {
	if err := device.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.bySerial[device.SerialNumber]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateSerial, device.SerialNumber)
	}
	if _, exists := m.byID[device.ID]; exists {
		return fmt.Errorf("%w: duplicate device ID %s", ErrConstraintViolation, device.ID)
	}

	stored := copyDevice(device)
	m.byID[stored.ID] = stored
	m.bySerial[stored.SerialNumber] = stored
	m.order = append(m.order, stored.ID)
	return nil
}

// GetDevice retrieves a device by ID
func (m *MemoryDeviceStorage) GetDevice(ctx context.Context, id string) (*core.Device, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	d, ok := m.byID[id]
	if !ok {
		return nil, ErrDeviceNotFound
	}
	return copyDevice(d), nil
}

// GetDeviceBySerial retrieves a device by serial number
func (m *MemoryDeviceStorage) GetDeviceBySerial(ctx context.Context, serial string) (*core.Device, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	d, ok := m.bySerial[serial]
	if !ok {
		return nil, ErrDeviceNotFound
	}
	return copyDevice(d), nil
}

// UpdateDeviceStatus mutates only the status field
func (m *MemoryDeviceStorage) UpdateDeviceStatus(ctx context.Context, id string, status core.Status) (*core.Device, error) {
	if !status.IsValid() {
		return nil, &core.ValidationError{Field: "status", Reason: fmt.Sprintf("invalid status: %s", status)}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	d, ok := m.byID[id]
	if !ok {
		return nil, ErrDeviceNotFound
	}
	d.Status = status
	return copyDevice(d), nil
}

// GetAllDevices returns every device in insertion order
func (m *MemoryDeviceStorage) GetAllDevices(ctx context.Context) ([]core.Device, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	devices := make([]core.Device, 0, len(m.order))
	for _, id := range m.order {
		devices = append(devices, *copyDevice(m.byID[id]))
	}
	return devices, nil
}

// GetDevicesByFacility returns devices in a facility in insertion order
func (m *MemoryDeviceStorage) GetDevicesByFacility(ctx context.Context, facility core.Facility) ([]core.Device, error) {
	if !facility.IsValid() {
		return nil, &core.ValidationError{Field: "facility", Reason: fmt.Sprintf("invalid facility: %s", facility)}
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	devices := []core.Device{}
	for _, id := range m.order {
		if m.byID[id].Facility == facility {
			devices = append(devices, *copyDevice(m.byID[id]))
		}
	}
	return devices, nil
}

// GetDeviceCount returns the number of stored devices
func (m *MemoryDeviceStorage) GetDeviceCount(ctx context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.order)), nil
}

// EnsureIndexes is a no-op for the in-memory store
func (m *MemoryDeviceStorage) EnsureIndexes() error {
	return nil
}
