// Package embed isolates the external embedding-generation collaborator
// behind an interface so the core can run against deterministic stand-ins.
// Every implementation returns vectors of exactly core.EmbeddingDim values.
package embed

import (
	"context"
	"errors"
)

// ErrUnavailable is returned when the embedding collaborator fails or times
// out. A create that hits this error must leave the registry unchanged.
var ErrUnavailable = errors.New("embedding service unavailable")

// Embedder converts text to a fixed-length vector.
type Embedder interface {
	// Embed converts text to a vector of exactly core.EmbeddingDim values.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Name identifies the embedder.
	Name() string
}

// fitDimensions pads with zeros or truncates so the result has exactly dim
// values. Upstream services occasionally return variable-length vectors;
// stored embeddings must not.
func fitDimensions(vector []float32, dim int) []float32 {
	if len(vector) == dim {
		return vector
	}
	fitted := make([]float32, dim)
	copy(fitted, vector)
	return fitted
}
