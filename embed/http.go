package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"drivemap/core"
	"drivemap/metrics"

	"go.uber.org/zap"
)

// maxResponseBytes caps the embedding service response size
const maxResponseBytes = 1 << 20

// HTTPEmbedder calls an external embedding service over HTTP. No retry and
// no internal timeout: the caller's context bounds the call, and the
// caller of create is the one who sees the latency.
type HTTPEmbedder struct {
	endpoint string
	client   *http.Client
	logger   *zap.SugaredLogger
}

// NewHTTPEmbedder creates an embedder backed by the service at endpoint
func NewHTTPEmbedder(endpoint string, requestTimeout time.Duration, logger *zap.SugaredLogger) *HTTPEmbedder {
	return &HTTPEmbedder{
		endpoint: endpoint,
		client: &http.Client{
			Timeout: requestTimeout,
		},
		logger: logger,
	}
}

// Name identifies the embedder
func (e *HTTPEmbedder) Name() string {
	return "http"
}

type embedRequest struct {
	Text string `json:"text"`
}

type embedResponse struct {
	Embedding []float32 `json:"embedding"`
}

// Embed requests a vector for text from the external service. The result
// is padded or truncated to exactly core.EmbeddingDim values. Any transport
// or protocol failure comes back wrapped in ErrUnavailable.
func (e *HTTPEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(embedRequest{Text: text})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal embed request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build embed request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		metrics.EmbeddingRequests.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		metrics.EmbeddingRequests.WithLabelValues("error").Inc()
		e.logger.Warnw("Embedding service returned non-200",
			"status", resp.StatusCode,
			"endpoint", e.endpoint)
		return nil, fmt.Errorf("%w: unexpected status %d", ErrUnavailable, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		metrics.EmbeddingRequests.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("%w: failed to read response: %v", ErrUnavailable, err)
	}

	var parsed embedResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		metrics.EmbeddingRequests.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("%w: malformed response: %v", ErrUnavailable, err)
	}
	if len(parsed.Embedding) == 0 {
		metrics.EmbeddingRequests.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("%w: empty embedding in response", ErrUnavailable)
	}

	metrics.EmbeddingRequests.WithLabelValues("success").Inc()
	return fitDimensions(parsed.Embedding, core.EmbeddingDim), nil
}
