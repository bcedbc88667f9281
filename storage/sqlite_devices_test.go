package storage

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"drivemap/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupDeviceTestDB(t *testing.T) *SQLiteDeviceStorage {
	t.Helper()

	logger := zap.NewNop().Sugar()
	sqlite, err := NewSQLite(filepath.Join(t.TempDir(), "drivemap_test.db"), logger)
	require.NoError(t, err, "Failed to open test database")
	t.Cleanup(func() { sqlite.Close() })

	store, err := NewSQLiteDeviceStorage(sqlite, logger)
	require.NoError(t, err, "Failed to create device storage")
	return store
}

func testDevice(serial string, facility core.Facility) *core.Device {
	d := core.NewDevice(serial, 1000, core.Coordinate{Latitude: 47.6, Longitude: -122.3}, core.StatusActive, facility)
	d.Embedding = make([]float32, core.EmbeddingDim)
	for i := range d.Embedding {
		d.Embedding[i] = float32(i%7) * 0.5
	}
	return d
}

func TestSQLiteDeviceStorage_CreateAndGet(t *testing.T) {
	store := setupDeviceTestDB(t)
	ctx := context.Background()

	d := testDevice("SN-001", core.FacilitySeattle)
	require.NoError(t, store.CreateDevice(ctx, d))

	got, err := store.GetDevice(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, d.SerialNumber, got.SerialNumber)
	assert.Equal(t, d.CapacityGB, got.CapacityGB)
	assert.Equal(t, core.StatusActive, got.Status)
	assert.Equal(t, core.FacilitySeattle, got.Facility)
	assert.InDelta(t, 47.6, got.Location.Latitude, 1e-9)
	assert.Equal(t, d.Embedding, got.Embedding, "embedding must round-trip exactly")
	assert.True(t, d.CreatedAt.Equal(got.CreatedAt))
}

func TestSQLiteDeviceStorage_GetDeviceBySerial(t *testing.T) {
	store := setupDeviceTestDB(t)
	ctx := context.Background()

	d := testDevice("SN-SERIAL", core.FacilityDenver)
	require.NoError(t, store.CreateDevice(ctx, d))

	got, err := store.GetDeviceBySerial(ctx, "SN-SERIAL")
	require.NoError(t, err)
	assert.Equal(t, d.ID, got.ID)

	_, err = store.GetDeviceBySerial(ctx, "SN-MISSING")
	assert.ErrorIs(t, err, ErrDeviceNotFound)
}

func TestSQLiteDeviceStorage_DuplicateSerial(t *testing.T) {
	store := setupDeviceTestDB(t)
	ctx := context.Background()

	first := testDevice("SN-DUP", core.FacilitySeattle)
	require.NoError(t, store.CreateDevice(ctx, first))

	second := testDevice("SN-DUP", core.FacilityDenver)
	err := store.CreateDevice(ctx, second)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDuplicateSerial)

	// The registry still contains exactly one SN-DUP record
	devices, err := store.GetAllDevices(ctx)
	require.NoError(t, err)
	require.Len(t, devices, 1)
	assert.Equal(t, first.ID, devices[0].ID)
}

func TestSQLiteDeviceStorage_ConcurrentCreateSameSerial(t *testing.T) {
	store := setupDeviceTestDB(t)
	ctx := context.Background()

	const workers = 16
	var wg sync.WaitGroup
	errs := make([]error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			errs[n] = store.CreateDevice(ctx, testDevice("SN-RACE", core.FacilitySeattle))
		}(i)
	}
	wg.Wait()

	var successes, duplicates int
	for _, err := range errs {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, ErrDuplicateSerial):
			duplicates++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}

	assert.Equal(t, 1, successes, "exactly one concurrent create must win")
	assert.Equal(t, workers-1, duplicates)
}

func TestSQLiteDeviceStorage_UpdateDeviceStatus(t *testing.T) {
	store := setupDeviceTestDB(t)
	ctx := context.Background()

	d := testDevice("SN-UPD", core.FacilitySeattle)
	require.NoError(t, store.CreateDevice(ctx, d))

	updated, err := store.UpdateDeviceStatus(ctx, d.ID, core.StatusFailed)
	require.NoError(t, err)
	assert.Equal(t, core.StatusFailed, updated.Status)

	// Only status changed
	assert.Equal(t, d.SerialNumber, updated.SerialNumber)
	assert.Equal(t, d.CapacityGB, updated.CapacityGB)
	assert.Equal(t, d.Facility, updated.Facility)
	assert.Equal(t, d.Embedding, updated.Embedding)

	got, err := store.GetDevice(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, core.StatusFailed, got.Status)
}

func TestSQLiteDeviceStorage_UpdateStatusNotFound(t *testing.T) {
	store := setupDeviceTestDB(t)

	_, err := store.UpdateDeviceStatus(context.Background(), "no-such-id", core.StatusActive)
	assert.ErrorIs(t, err, ErrDeviceNotFound)
}

func TestSQLiteDeviceStorage_UpdateStatusInvalidValue(t *testing.T) {
	store := setupDeviceTestDB(t)
	ctx := context.Background()

	d := testDevice("SN-INV", core.FacilitySeattle)
	require.NoError(t, store.CreateDevice(ctx, d))

	_, err := store.UpdateDeviceStatus(ctx, d.ID, core.Status("Exploded"))
	require.Error(t, err)
	assert.True(t, core.IsValidationError(err))
}

func TestSQLiteDeviceStorage_InsertionOrder(t *testing.T) {
	store := setupDeviceTestDB(t)
	ctx := context.Background()

	serials := []string{"SN-A", "SN-B", "SN-C", "SN-D"}
	for i, serial := range serials {
		facility := core.FacilitySeattle
		if i%2 == 1 {
			facility = core.FacilityDenver
		}
		require.NoError(t, store.CreateDevice(ctx, testDevice(serial, facility)))
	}

	devices, err := store.GetAllDevices(ctx)
	require.NoError(t, err)
	require.Len(t, devices, len(serials))
	for i, d := range devices {
		assert.Equal(t, serials[i], d.SerialNumber, "list order must match insertion order")
	}

	seattle, err := store.GetDevicesByFacility(ctx, core.FacilitySeattle)
	require.NoError(t, err)
	require.Len(t, seattle, 2)
	assert.Equal(t, "SN-A", seattle[0].SerialNumber)
	assert.Equal(t, "SN-C", seattle[1].SerialNumber)
}

func TestSQLiteDeviceStorage_GetDeviceCount(t *testing.T) {
	store := setupDeviceTestDB(t)
	ctx := context.Background()

	count, err := store.GetDeviceCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)

	for i := 0; i < 3; i++ {
		require.NoError(t, store.CreateDevice(ctx, testDevice(fmt.Sprintf("SN-%d", i), core.FacilityDenver)))
	}

	count, err = store.GetDeviceCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
}

func TestSQLiteDeviceStorage_RejectsInvalidDevice(t *testing.T) {
	store := setupDeviceTestDB(t)
	ctx := context.Background()

	d := testDevice("SN-BAD", core.FacilitySeattle)
	d.CapacityGB = 0
	require.Error(t, store.CreateDevice(ctx, d))

	d2 := testDevice("SN-BAD2", core.FacilitySeattle)
	d2.Embedding = d2.Embedding[:100]
	require.Error(t, store.CreateDevice(ctx, d2))

	count, err := store.GetDeviceCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count, "failed creates must leave no trace")
}
