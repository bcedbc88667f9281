package embed

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"drivemap/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestHashing_DimensionsAndDeterminism(t *testing.T) {
	h := NewHashing()
	ctx := context.Background()

	a, err := h.Embed(ctx, "SN-2024-001")
	require.NoError(t, err)
	assert.Len(t, a, core.EmbeddingDim)

	b, err := h.Embed(ctx, "SN-2024-001")
	require.NoError(t, err)
	assert.Equal(t, a, b, "same input must produce the same vector")

	other, err := h.Embed(ctx, "SN-9999-777")
	require.NoError(t, err)
	assert.NotEqual(t, a, other, "different inputs should produce different vectors")
}

func TestHashing_Normalized(t *testing.T) {
	h := NewHashing()

	vector, err := h.Embed(context.Background(), "SN-NORM-CHECK")
	require.NoError(t, err)

	var sumSquares float64
	for _, v := range vector {
		sumSquares += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, sumSquares, 1e-4, "non-empty input yields a unit vector")
}

func TestHashing_EmptyInput(t *testing.T) {
	h := NewHashing()

	vector, err := h.Embed(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, vector, core.EmbeddingDim)
}

func TestHTTPEmbedder_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		w.Header().Set("Content-Type", "application/json")
		// Shorter than 384: the client must zero-pad
		w.Write([]byte(`{"embedding": [0.1, 0.2, 0.3]}`))
	}))
	defer server.Close()

	e := NewHTTPEmbedder(server.URL, 5*time.Second, zap.NewNop().Sugar())
	vector, err := e.Embed(context.Background(), "SN-1")
	require.NoError(t, err)

	assert.Len(t, vector, core.EmbeddingDim)
	assert.InDelta(t, 0.1, vector[0], 1e-6)
	assert.InDelta(t, 0.3, vector[2], 1e-6)
	assert.Zero(t, vector[3])
}

func TestHTTPEmbedder_TruncatesLongVectors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(longEmbeddingJSON(500)))
	}))
	defer server.Close()

	e := NewHTTPEmbedder(server.URL, 5*time.Second, zap.NewNop().Sugar())
	vector, err := e.Embed(context.Background(), "SN-1")
	require.NoError(t, err)
	assert.Len(t, vector, core.EmbeddingDim)
}

func TestHTTPEmbedder_UpstreamFailures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "boom", http.StatusInternalServerError)
			},
		},
		{
			name: "malformed body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`not json`))
			},
		},
		{
			name: "empty embedding",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"embedding": []}`))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			e := NewHTTPEmbedder(server.URL, 5*time.Second, zap.NewNop().Sugar())
			_, err := e.Embed(context.Background(), "SN-1")
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrUnavailable)
		})
	}
}

func TestHTTPEmbedder_ConnectionRefused(t *testing.T) {
	e := NewHTTPEmbedder("http://127.0.0.1:1", time.Second, zap.NewNop().Sugar())

	_, err := e.Embed(context.Background(), "SN-1")
	assert.ErrorIs(t, err, ErrUnavailable)
}

// countingEmbedder wraps an Embedder and counts calls
type countingEmbedder struct {
	inner Embedder
	calls int
	fail  bool
}

func (c *countingEmbedder) Name() string { return "counting" }

func (c *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	c.calls++
	if c.fail {
		return nil, errors.New("forced failure")
	}
	return c.inner.Embed(ctx, text)
}

func TestCached_HitsSkipUpstream(t *testing.T) {
	counting := &countingEmbedder{inner: NewHashing()}
	cached, err := NewCached(counting, 16)
	require.NoError(t, err)
	ctx := context.Background()

	first, err := cached.Embed(ctx, "SN-A")
	require.NoError(t, err)
	second, err := cached.Embed(ctx, "SN-A")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, counting.calls, "second call must be served from cache")

	_, err = cached.Embed(ctx, "SN-B")
	require.NoError(t, err)
	assert.Equal(t, 2, counting.calls)
}

func TestCached_FailuresNotCached(t *testing.T) {
	counting := &countingEmbedder{inner: NewHashing(), fail: true}
	cached, err := NewCached(counting, 16)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = cached.Embed(ctx, "SN-A")
	require.Error(t, err)

	counting.fail = false
	_, err = cached.Embed(ctx, "SN-A")
	require.NoError(t, err)
	assert.Equal(t, 2, counting.calls, "failure must not be cached")
}

func TestCached_ReturnsCopies(t *testing.T) {
	cached, err := NewCached(NewHashing(), 16)
	require.NoError(t, err)
	ctx := context.Background()

	first, err := cached.Embed(ctx, "SN-A")
	require.NoError(t, err)
	first[0] = 12345

	second, err := cached.Embed(ctx, "SN-A")
	require.NoError(t, err)
	assert.NotEqual(t, float32(12345), second[0], "callers must not share backing arrays")
}

// longEmbeddingJSON builds an embed response with n values
func longEmbeddingJSON(n int) string {
	body := `{"embedding": [`
	for i := 0; i < n; i++ {
		if i > 0 {
			body += ","
		}
		body += "0.5"
	}
	return body + `]}`
}
