package embed

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Cached wraps an Embedder with an in-process LRU cache keyed by input
// text. Serial numbers repeat on client retries; the upstream call is the
// expensive part and its output for a given input never changes.
type Cached struct {
	inner Embedder
	cache *lru.Cache[string, []float32]
}

// NewCached creates a caching decorator around inner with the given
// maximum number of entries.
func NewCached(inner Embedder, size int) (*Cached, error) {
	cache, err := lru.New[string, []float32](size)
	if err != nil {
		return nil, err
	}
	return &Cached{
		inner: inner,
		cache: cache,
	}, nil
}

// Name identifies the embedder
func (c *Cached) Name() string {
	return c.inner.Name() + "+lru"
}

// Embed returns the cached vector for text, calling through on miss.
// Failures are not cached.
func (c *Cached) Embed(ctx context.Context, text string) ([]float32, error) {
	if vector, ok := c.cache.Get(text); ok {
		out := make([]float32, len(vector))
		copy(out, vector)
		return out, nil
	}

	vector, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	stored := make([]float32, len(vector))
	copy(stored, vector)
	c.cache.Add(text, stored)
	return vector, nil
}
