package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"drivemap/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryDeviceStorage_CreateGetUpdate(t *testing.T) {
	store := NewMemoryDeviceStorage()
	ctx := context.Background()

	d := testDevice("SN-MEM-1", core.FacilitySeattle)
	require.NoError(t, store.CreateDevice(ctx, d))

	got, err := store.GetDevice(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, d.SerialNumber, got.SerialNumber)

	updated, err := store.UpdateDeviceStatus(ctx, d.ID, core.StatusMaintenance)
	require.NoError(t, err)
	assert.Equal(t, core.StatusMaintenance, updated.Status)

	bySerial, err := store.GetDeviceBySerial(ctx, "SN-MEM-1")
	require.NoError(t, err)
	assert.Equal(t, core.StatusMaintenance, bySerial.Status)
}

func TestMemoryDeviceStorage_DuplicateSerial(t *testing.T) {
	store := NewMemoryDeviceStorage()
	ctx := context.Background()

	require.NoError(t, store.CreateDevice(ctx, testDevice("SN-MEM-DUP", core.FacilitySeattle)))
	err := store.CreateDevice(ctx, testDevice("SN-MEM-DUP", core.FacilityDenver))
	assert.ErrorIs(t, err, ErrDuplicateSerial)
}

func TestMemoryDeviceStorage_NotFound(t *testing.T) {
	store := NewMemoryDeviceStorage()
	ctx := context.Background()

	_, err := store.GetDevice(ctx, "missing")
	assert.ErrorIs(t, err, ErrDeviceNotFound)

	_, err = store.UpdateDeviceStatus(ctx, "missing", core.StatusActive)
	assert.ErrorIs(t, err, ErrDeviceNotFound)
}

func TestMemoryDeviceStorage_CopiesOnReadAndWrite(t *testing.T) {
	store := NewMemoryDeviceStorage()
	ctx := context.Background()

	d := testDevice("SN-MEM-COPY", core.FacilitySeattle)
	require.NoError(t, store.CreateDevice(ctx, d))

	// Mutating the caller's device after create must not affect the store
	d.Status = core.StatusFailed
	d.Embedding[0] = 999

	got, err := store.GetDevice(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, core.StatusActive, got.Status)
	assert.NotEqual(t, float32(999), got.Embedding[0])

	// Mutating a returned device must not affect the store either
	got.Status = core.StatusInactive
	again, err := store.GetDevice(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, core.StatusActive, again.Status)
}

func TestMemoryDeviceStorage_ConcurrentCreateSameSerial(t *testing.T) {
	store := NewMemoryDeviceStorage()
	ctx := context.Background()

	const workers = 32
	var wg sync.WaitGroup
	errs := make([]error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			errs[n] = store.CreateDevice(ctx, testDevice("SN-MEM-RACE", core.FacilitySeattle))
		}(i)
	}
	wg.Wait()

	var successes int
	for _, err := range errs {
		if err == nil {
			successes++
		} else if !errors.Is(err, ErrDuplicateSerial) {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, successes)
}

func TestMemoryDeviceStorage_ConcurrentReadsAndWrites(t *testing.T) {
	store := NewMemoryDeviceStorage()
	ctx := context.Background()

	seed := testDevice("SN-MEM-RW", core.FacilityDenver)
	require.NoError(t, store.CreateDevice(ctx, seed))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func(n int) {
			defer wg.Done()
			_ = store.CreateDevice(ctx, testDevice(fmt.Sprintf("SN-MEM-RW-%d", n), core.FacilitySeattle))
		}(i)
		go func() {
			defer wg.Done()
			devices, err := store.GetAllDevices(ctx)
			require.NoError(t, err)
			for _, d := range devices {
				// A reader must never observe a partially written device
				require.NoError(t, d.Validate())
			}
		}()
	}
	wg.Wait()

	count, err := store.GetDeviceCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(9), count)
}

func TestMemoryDeviceStorage_InsertionOrder(t *testing.T) {
	store := NewMemoryDeviceStorage()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, store.CreateDevice(ctx, testDevice(fmt.Sprintf("SN-ORD-%d", i), core.FacilitySeattle)))
	}

	devices, err := store.GetAllDevices(ctx)
	require.NoError(t, err)
	require.Len(t, devices, 5)
	for i, d := range devices {
		assert.Equal(t, fmt.Sprintf("SN-ORD-%d", i), d.SerialNumber)
	}
}
