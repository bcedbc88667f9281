package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"drivemap/core"

	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"
)

// =============================================================================
// SQLite Device Storage Implementation
// =============================================================================

// SQLiteDeviceStorage implements DeviceStorageInterface using SQLite.
// Embeddings are stored as msgpack-encoded blobs; 384 float32 values encode
// far smaller than their JSON representation and round-trip exactly.
type SQLiteDeviceStorage struct {
	sqlite *SQLite
	logger *zap.SugaredLogger
}

// NewSQLiteDeviceStorage creates a new device storage instance
func NewSQLiteDeviceStorage(sqlite *SQLite, logger *zap.SugaredLogger) (*SQLiteDeviceStorage, error) {
	storage := &SQLiteDeviceStorage{
		sqlite: sqlite,
		logger: logger,
	}

	if err := storage.ensureTables(); err != nil {
		return nil, fmt.Errorf("failed to ensure device tables: %w", err)
	}

	return storage, nil
}

// ensureTables creates device tables if they don't exist. The rowid column
// preserves insertion order for list queries; the CHECK constraints keep
// free-form strings out of the enum columns even on direct writes.
func (s *SQLiteDeviceStorage) ensureTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS hard_drives (
		id TEXT PRIMARY KEY,
		serial_number TEXT NOT NULL,
		capacity_gb INTEGER NOT NULL CHECK(capacity_gb > 0),
		latitude REAL NOT NULL CHECK(latitude >= -90 AND latitude <= 90),
		longitude REAL NOT NULL CHECK(longitude >= -180 AND longitude <= 180),
		elevation REAL NOT NULL DEFAULT 0,
		status TEXT NOT NULL CHECK(status IN ('Active','Inactive','Maintenance','Failed')),
		facility TEXT NOT NULL CHECK(facility IN ('Seattle','Denver')),
		embedding BLOB NOT NULL,
		created_at DATETIME NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_hard_drives_serial ON hard_drives(serial_number);
	CREATE INDEX IF NOT EXISTS idx_hard_drives_facility ON hard_drives(facility);
	CREATE INDEX IF NOT EXISTS idx_hard_drives_status ON hard_drives(status);
	`

	if _, err := s.sqlite.WriteDB.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// EnsureIndexes creates indexes for device queries
func (s *SQLiteDeviceStorage) EnsureIndexes() error {
	return s.ensureTables()
}

// isUniqueConstraintError reports whether err is a SQLite unique constraint
// violation. modernc.org/sqlite surfaces these as plain errors, so the
// message text is the only reliable signal.
func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// CreateDevice atomically inserts a device. The unique index on
// serial_number is the arbiter: under concurrent creates with the same
// serial exactly one insert wins and the rest fail with ErrDuplicateSerial.
func (s *SQLiteDeviceStorage) CreateDevice(ctx context.Context, device *core.Device) error {
	if err := device.Validate(); err != nil {
		return err
	}

	blob, err := encodeEmbedding(device.Embedding)
	if err != nil {
		return fmt.Errorf("failed to encode embedding: %w", err)
	}

	_, err = s.sqlite.WriteDB.ExecContext(ctx, `
		INSERT INTO hard_drives
			(id, serial_number, capacity_gb, latitude, longitude, elevation, status, facility, embedding, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		device.ID, device.SerialNumber, device.CapacityGB,
		device.Location.Latitude, device.Location.Longitude, device.Location.Elevation,
		string(device.Status), string(device.Facility), blob,
		device.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("%w: %s", ErrDuplicateSerial, device.SerialNumber)
		}
		return fmt.Errorf("failed to insert device: %w", err)
	}

	s.logger.Debugw("Device created",
		"id", device.ID,
		"serial", device.SerialNumber,
		"facility", device.Facility)
	return nil
}

// GetDevice retrieves a device by ID
func (s *SQLiteDeviceStorage) GetDevice(ctx context.Context, id string) (*core.Device, error) {
	row := s.sqlite.ReadDB.QueryRowContext(ctx,
		selectDeviceColumns+` FROM hard_drives WHERE id = ?`, id)
	return scanDevice(row)
}

// GetDeviceBySerial retrieves a device by serial number
func (s *SQLiteDeviceStorage) GetDeviceBySerial(ctx context.Context, serial string) (*core.Device, error) {
	row := s.sqlite.ReadDB.QueryRowContext(ctx,
		selectDeviceColumns+` FROM hard_drives WHERE serial_number = ?`, serial)
	return scanDevice(row)
}

// UpdateDeviceStatus mutates only the status column and returns the updated
// record. The read goes through the write pool so the caller observes its
// own write.
func (s *SQLiteDeviceStorage) UpdateDeviceStatus(ctx context.Context, id string, status core.Status) (*core.Device, error) {
	if !status.IsValid() {
		return nil, &core.ValidationError{Field: "status", Reason: fmt.Sprintf("invalid status: %s", status)}
	}

	result, err := s.sqlite.WriteDB.ExecContext(ctx,
		`UPDATE hard_drives SET status = ? WHERE id = ?`, string(status), id)
	if err != nil {
		return nil, fmt.Errorf("failed to update device status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to check update result: %w", err)
	}
	if rows == 0 {
		return nil, ErrDeviceNotFound
	}

	row := s.sqlite.WriteDB.QueryRowContext(ctx,
		selectDeviceColumns+` FROM hard_drives WHERE id = ?`, id)
	return scanDevice(row)
}

// GetAllDevices returns every device in insertion order
func (s *SQLiteDeviceStorage) GetAllDevices(ctx context.Context) ([]core.Device, error) {
	rows, err := s.sqlite.ReadDB.QueryContext(ctx,
		selectDeviceColumns+` FROM hard_drives ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("failed to query devices: %w", err)
	}
	defer rows.Close()

	return collectDevices(rows)
}

// GetDevicesByFacility returns devices in a facility in insertion order
func (s *SQLiteDeviceStorage) GetDevicesByFacility(ctx context.Context, facility core.Facility) ([]core.Device, error) {
	if !facility.IsValid() {
		return nil, &core.ValidationError{Field: "facility", Reason: fmt.Sprintf("invalid facility: %s", facility)}
	}

	rows, err := s.sqlite.ReadDB.QueryContext(ctx,
		selectDeviceColumns+` FROM hard_drives WHERE facility = ? ORDER BY rowid`, string(facility))
	if err != nil {
		return nil, fmt.Errorf("failed to query devices by facility: %w", err)
	}
	defer rows.Close()

	return collectDevices(rows)
}

// GetDeviceCount returns the number of stored devices
func (s *SQLiteDeviceStorage) GetDeviceCount(ctx context.Context) (int64, error) {
	var count int64
	err := s.sqlite.ReadDB.QueryRowContext(ctx, `SELECT COUNT(*) FROM hard_drives`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count devices: %w", err)
	}
	return count, nil
}

// =============================================================================
// Row scanning helpers
// =============================================================================

const selectDeviceColumns = `SELECT id, serial_number, capacity_gb, latitude, longitude, elevation, status, facility, embedding, created_at`

// rowScanner abstracts *sql.Row and *sql.Rows for scanDevice
type rowScanner interface {
	Scan(dest ...any) error
}

func scanDevice(row rowScanner) (*core.Device, error) {
	var (
		d         core.Device
		status    string
		facility  string
		blob      []byte
		createdAt string
	)

	err := row.Scan(&d.ID, &d.SerialNumber, &d.CapacityGB,
		&d.Location.Latitude, &d.Location.Longitude, &d.Location.Elevation,
		&status, &facility, &blob, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrDeviceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan device: %w", err)
	}

	d.Status = core.Status(status)
	d.Facility = core.Facility(facility)

	d.Embedding, err = decodeEmbedding(blob)
	if err != nil {
		return nil, fmt.Errorf("failed to decode embedding for device %s: %w", d.ID, err)
	}

	d.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse created_at for device %s: %w", d.ID, err)
	}

	return &d, nil
}

func collectDevices(rows *sql.Rows) ([]core.Device, error) {
	devices := []core.Device{}
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, err
		}
		devices = append(devices, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate devices: %w", err)
	}
	return devices, nil
}

// encodeEmbedding serializes an embedding vector for blob storage
func encodeEmbedding(embedding []float32) ([]byte, error) {
	return msgpack.Marshal(embedding)
}

// decodeEmbedding deserializes an embedding vector from blob storage
func decodeEmbedding(blob []byte) ([]float32, error) {
	var embedding []float32
	if err := msgpack.Unmarshal(blob, &embedding); err != nil {
		return nil, err
	}
	return embedding, nil
}
