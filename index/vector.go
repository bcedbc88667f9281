package index

import (
	"context"
	"fmt"
	"sort"

	"drivemap/core"

	"go.uber.org/zap"
)

// Vector answers k-nearest-neighbor queries over device embeddings by
// cosine distance. Inventory sizes are bounded (thousands, not millions),
// so a full scan beats maintaining an approximate index.
type Vector struct {
	devices DeviceReader
	logger  *zap.SugaredLogger
}

// NewVector creates a vector index over the given registry
func NewVector(devices DeviceReader, logger *zap.SugaredLogger) *Vector {
	return &Vector{
		devices: devices,
		logger:  logger,
	}
}

// neighbor pairs a candidate with its distance and registry position
type neighbor struct {
	id       string
	distance float32
	position int
}

// QueryNearest returns the IDs of the k devices most similar to the target,
// nearest first. The target itself is excluded; ties break toward the
// earlier-created device. Fewer than k results are returned when the
// registry holds fewer than k+1 devices. Returns storage.ErrDeviceNotFound
// (propagated from the reader) when the target is absent.
func (v *Vector) QueryNearest(ctx context.Context, targetID string, k int) ([]string, error) {
	if k <= 0 {
		return nil, &core.ValidationError{Field: "k", Reason: fmt.Sprintf("k must be positive, got %d", k)}
	}

	target, err := v.devices.GetDevice(ctx, targetID)
	if err != nil {
		return nil, err
	}
	if len(target.Embedding) != core.EmbeddingDim {
		return nil, &core.ValidationError{Field: "embedding", Reason: fmt.Sprintf("target embedding has %d dimensions, want %d", len(target.Embedding), core.EmbeddingDim)}
	}

	candidates, err := v.devices.GetAllDevices(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load candidate devices: %w", err)
	}

	neighbors := make([]neighbor, 0, len(candidates))
	for i, d := range candidates {
		if d.ID == targetID {
			continue
		}
		if len(d.Embedding) != core.EmbeddingDim {
			return nil, &core.ValidationError{Field: "embedding", Reason: fmt.Sprintf("device %s embedding has %d dimensions, want %d", d.ID, len(d.Embedding), core.EmbeddingDim)}
		}
		neighbors = append(neighbors, neighbor{
			id:       d.ID,
			distance: cosineDistance(target.Embedding, d.Embedding),
			position: i,
		})
	}

	sort.SliceStable(neighbors, func(i, j int) bool {
		if neighbors[i].distance != neighbors[j].distance {
			return neighbors[i].distance < neighbors[j].distance
		}
		return neighbors[i].position < neighbors[j].position
	})

	if k > len(neighbors) {
		k = len(neighbors)
	}

	ids := make([]string, k)
	for i := 0; i < k; i++ {
		ids[i] = neighbors[i].id
	}

	v.logger.Debugw("Similarity query evaluated",
		"target", targetID,
		"candidates", len(neighbors),
		"returned", len(ids))
	return ids, nil
}
