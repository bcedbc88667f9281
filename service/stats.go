package service

import (
	"context"
	"time"

	"drivemap/core"
	"drivemap/metrics"
)

// FacilityStats is the per-facility rollup returned by GetStats
type FacilityStats struct {
	DriveCount      int64                 `json:"total_drives"`
	TotalCapacityGB int64                 `json:"total_capacity_gb"`
	StatusCounts    map[core.Status]int64 `json:"status_counts"`
}

// GetStats computes per-facility aggregates fresh from the registry on
// every call. No caching: the result always reflects the last committed
// write, at O(devices) cost per call. Inventories are bounded (thousands,
// not millions); if that ever changes, maintain these counters
// incrementally on each mutation instead of recomputing.
func (s *Inventory) GetStats(ctx context.Context) (map[core.Facility]FacilityStats, error) {
	timer := time.Now()
	defer func() { metrics.QueryDuration.WithLabelValues("stats").Observe(time.Since(timer).Seconds()) }()

	devices, err := s.devices.GetAllDevices(ctx)
	if err != nil {
		return nil, err
	}

	stats := make(map[core.Facility]FacilityStats, len(core.AllFacilities))
	for _, facility := range core.AllFacilities {
		counts := make(map[core.Status]int64, len(core.AllStatuses))
		for _, status := range core.AllStatuses {
			counts[status] = 0
		}
		stats[facility] = FacilityStats{StatusCounts: counts}
	}

	for _, d := range devices {
		entry := stats[d.Facility]
		entry.DriveCount++
		entry.TotalCapacityGB += int64(d.CapacityGB)
		entry.StatusCounts[d.Status]++
		stats[d.Facility] = entry
	}

	return stats, nil
}
