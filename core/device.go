package core

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EmbeddingDim is the fixed length of every stored device embedding.
// Queries against vectors of any other length are rejected.
const EmbeddingDim = 384

// =============================================================================
// Device Types and Constants
// =============================================================================

// Status represents the operational status of a hard drive
type Status string

const (
	StatusActive      Status = "Active"
	StatusInactive    Status = "Inactive"
	StatusMaintenance Status = "Maintenance"
	StatusFailed      Status = "Failed"
)

// AllStatuses returns all valid drive statuses for validation
var AllStatuses = []Status{
	StatusActive, StatusInactive, StatusMaintenance, StatusFailed,
}

// IsValid checks if the status is valid
func (s Status) IsValid() bool {
	for _, valid := range AllStatuses {
		if s == valid {
			return true
		}
	}
	return false
}

// Facility represents a named datacenter location
type Facility string

const (
	FacilitySeattle Facility = "Seattle"
	FacilityDenver  Facility = "Denver"
)

// AllFacilities returns all valid facilities for validation
var AllFacilities = []Facility{
	FacilitySeattle, FacilityDenver,
}

// IsValid checks if the facility is valid
func (f Facility) IsValid() bool {
	for _, valid := range AllFacilities {
		if f == valid {
			return true
		}
	}
	return false
}

// =============================================================================
// Device Entity
// =============================================================================

// Device represents a tracked physical hard drive. ID, SerialNumber,
// Location, Facility, Embedding and CreatedAt are immutable after creation;
// only Status may change.
type Device struct {
	ID           string     `json:"id"`
	SerialNumber string     `json:"serial_number"`
	CapacityGB   int        `json:"capacity_gb"`
	Location     Coordinate `json:"location"`
	Status       Status     `json:"status"`
	Facility     Facility   `json:"facility"`
	Embedding    []float32  `json:"embedding,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// NewDevice constructs a Device with a generated ID and creation timestamp.
// The embedding is attached by the caller once the embedding collaborator
// has produced it; Validate rejects the device until it is present.
func NewDevice(serialNumber string, capacityGB int, location Coordinate, status Status, facility Facility) *Device {
	return &Device{
		ID:           uuid.New().String(),
		SerialNumber: serialNumber,
		CapacityGB:   capacityGB,
		Location:     location,
		Status:       status,
		Facility:     facility,
		CreatedAt:    time.Now().UTC(),
	}
}

// Validate performs full validation on a Device
func (d *Device) Validate() error {
	if d.ID == "" {
		return &ValidationError{Field: "id", Reason: "device ID is required"}
	}
	if d.SerialNumber == "" {
		return &ValidationError{Field: "serial_number", Reason: "serial number is required"}
	}
	if d.CapacityGB <= 0 {
		return &ValidationError{Field: "capacity_gb", Reason: fmt.Sprintf("capacity must be positive, got %d", d.CapacityGB)}
	}
	if err := d.Location.Validate(); err != nil {
		return err
	}
	if !d.Status.IsValid() {
		return &ValidationError{Field: "status", Reason: fmt.Sprintf("invalid status: %s", d.Status)}
	}
	if !d.Facility.IsValid() {
		return &ValidationError{Field: "facility", Reason: fmt.Sprintf("invalid facility: %s", d.Facility)}
	}
	if len(d.Embedding) != EmbeddingDim {
		return &ValidationError{Field: "embedding", Reason: fmt.Sprintf("embedding must have exactly %d dimensions, got %d", EmbeddingDim, len(d.Embedding))}
	}
	return nil
}

// Snapshot returns a copy of the device without its embedding, suitable for
// event payloads and API responses where the raw vector is noise.
func (d *Device) Snapshot() Device {
	snap := *d
	snap.Embedding = nil
	return snap
}
