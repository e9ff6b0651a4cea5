// Package embedding provides shared behaviour for embedding service
// adapters: L2 normalization and a retrying decorator that fronts any
// remote backend with rate limiting and exponential backoff.
package embedding

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/custodia-labs/recall-cli/internal/core/domain"
	"github.com/custodia-labs/recall-cli/internal/core/ports/driven"
	"github.com/custodia-labs/recall-cli/internal/logger"
)

// Ensure Retrying implements the interface.
var _ driven.EmbeddingService = (*Retrying)(nil)

// defaultBackoff is the nominal retry schedule.
var defaultBackoff = []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}

// Normalize scales a vector to unit L2 norm. A zero vector cannot be
// normalized and is reported as an internal error.
func Normalize(vec []float32) ([]float32, error) {
	var sum float64
	for _, x := range vec {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return nil, fmt.Errorf("%w: zero embedding vector", domain.ErrInternal)
	}
	n := math.Sqrt(sum)
	out := make([]float32, len(vec))
	for i, x := range vec {
		out[i] = float32(float64(x) / n)
	}
	return out, nil
}

// Retrying decorates an embedding service with input validation,
// L2 normalization of results, a client-side rate limit, and up to
// three attempts with exponential backoff. Backoff is aborted early
// when the caller's deadline elapses, and the final failure surfaces
// as backend-unavailable.
type Retrying struct {
	inner   driven.EmbeddingService
	limiter *rate.Limiter
	backoff []time.Duration
}

// NewRetrying wraps an embedding service. The limiter may be nil to
// disable client-side throttling.
func NewRetrying(inner driven.EmbeddingService, limiter *rate.Limiter) *Retrying {
	return &Retrying{
		inner:   inner,
		limiter: limiter,
		backoff: defaultBackoff,
	}
}

// SetBackoff replaces the retry schedule. Useful for testing.
func (r *Retrying) SetBackoff(schedule []time.Duration) {
	r.backoff = schedule
}

// Dimensions returns the embedding vector size.
func (r *Retrying) Dimensions() int {
	return r.inner.Dimensions()
}

// ModelName returns the name of the embedding model being used.
func (r *Retrying) ModelName() string {
	return r.inner.ModelName()
}

// Embed generates a unit-length embedding for the given text.
func (r *Retrying) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := r.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch generates unit-length embeddings for multiple texts.
// Either every position succeeds or the call fails as a whole.
func (r *Retrying) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("%w: empty batch", domain.ErrInvalidInput)
	}
	for i, text := range texts {
		if strings.TrimSpace(text) == "" {
			return nil, fmt.Errorf("%w: empty input at position %d", domain.ErrInvalidInput, i)
		}
	}

	var lastErr error
	for attempt := 0; attempt < len(r.backoff); attempt++ {
		if attempt > 0 {
			logger.Debug("Embedding attempt %d after %v backoff", attempt+1, r.backoff[attempt-1])
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(r.backoff[attempt-1]):
			}
		}
		if r.limiter != nil {
			if err := r.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}

		vecs, err := r.inner.EmbedBatch(ctx, texts)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			continue
		}
		return r.finish(vecs, len(texts))
	}
	return nil, fmt.Errorf("%w: embedding failed after %d attempts: %v",
		domain.ErrBackendUnavailable, len(r.backoff), lastErr)
}

// finish validates the batch shape and normalizes every vector.
func (r *Retrying) finish(vecs [][]float32, want int) ([][]float32, error) {
	if len(vecs) != want {
		return nil, fmt.Errorf("%w: backend returned %d embeddings for %d inputs",
			domain.ErrInternal, len(vecs), want)
	}
	dims := r.inner.Dimensions()
	out := make([][]float32, len(vecs))
	for i, vec := range vecs {
		if len(vec) != dims {
			return nil, fmt.Errorf("%w: embedding dimension %d, model reports %d",
				domain.ErrInternal, len(vec), dims)
		}
		normalized, err := Normalize(vec)
		if err != nil {
			return nil, err
		}
		out[i] = normalized
	}
	return out, nil
}
