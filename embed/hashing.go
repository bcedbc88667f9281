package embed

import (
	"context"
	"hash/fnv"
	"math"

	"drivemap/core"
)

// Hashing is a deterministic feature-hashing embedder. Character trigrams
// of the input are hashed into a fixed number of buckets and the result is
// L2-normalized, so similar serial numbers land near each other in cosine
// space. It needs no training and no network, which makes it the default
// for tests and for deployments without an embedding service.
type Hashing struct{}

// NewHashing creates a feature-hashing embedder
func NewHashing() *Hashing {
	return &Hashing{}
}

// Name identifies the embedder
func (h *Hashing) Name() string {
	return "feature-hashing"
}

// Embed converts text to a normalized core.EmbeddingDim-length vector.
// The same input always produces the same output.
func (h *Hashing) Embed(ctx context.Context, text string) ([]float32, error) {
	vector := make([]float32, core.EmbeddingDim)
	if text == "" {
		return vector, nil
	}

	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		end := i + 3
		if end > len(runes) {
			end = len(runes)
		}
		gram := string(runes[i:end])

		hasher := fnv.New32a()
		hasher.Write([]byte(gram))
		sum := hasher.Sum32()

		bucket := sum % core.EmbeddingDim
		// Top bit decides the sign so collisions tend to cancel
		if sum&0x80000000 != 0 {
			vector[bucket]--
		} else {
			vector[bucket]++
		}
	}

	var sumSquares float64
	for _, v := range vector {
		sumSquares += float64(v) * float64(v)
	}
	if sumSquares > 0 {
		invNorm := float32(1 / math.Sqrt(sumSquares))
		for i := range vector {
			vector[i] *= invNorm
		}
	}

	return vector, nil
}
