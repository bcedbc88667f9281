package storage

import "errors"

// Storage error constants
var (
	// ErrDeviceNotFound is returned when a device is not found
	ErrDeviceNotFound = errors.New("device not found")

	// ErrDuplicateSerial is returned when creating a device whose serial
	// number is already registered
	ErrDuplicateSerial = errors.New("serial number already registered")

	// ErrDatabaseClosed is returned when attempting to use a closed database connection
	ErrDatabaseClosed = errors.New("database is closed")

	// ErrConstraintViolation is returned when a database constraint is violated
	ErrConstraintViolation = errors.New("constraint violation")
)
