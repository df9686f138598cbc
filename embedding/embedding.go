// Package embedding defines the embedding provider interface shared by
// ingestion and query time. Both sides must use the same provider and the
// same normalization, or similarity scores are meaningless.
package embedding

import (
	"context"
	"math"
	"time"
)

// DefaultBatchSize bounds how many texts are sent to a provider per call.
const DefaultBatchSize = 5

// DefaultTimeout bounds a single provider call, independent of any retry
// policy layered on top.
const DefaultTimeout = 30 * time.Second

// Embedder converts text into fixed-dimension vectors. The dimension is
// fixed at deployment-configuration time, not switchable per call.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	ModelName() string
}

// Config selects and configures the embedding provider.
type Config struct {
	Provider   string        `yaml:"provider"`
	BaseURL    string        `yaml:"baseURL"`
	APIKeyEnv  string        `yaml:"apiKeyEnv"`
	Model      string        `yaml:"model"`
	Dimensions int           `yaml:"dimensions"`
	BatchSize  int           `yaml:"batchSize"`
	Timeout    time.Duration `yaml:"timeout"`
}

// Normalize scales v to unit L2 length in place and returns it, so cosine
// similarity reduces to a dot product. A zero vector is returned unchanged.
func Normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}

	if sum == 0 {
		return v
	}

	norm := float32(math.Sqrt(sum))
	for i := range v {
		v[i] /= norm
	}

	return v
}

// Batches splits texts into slices of at most size elements, preserving
// order.
func Batches(texts []string, size int) [][]string {
	if size <= 0 {
		size = DefaultBatchSize
	}

	var out [][]string
	for start := 0; start < len(texts); start += size {
		end := start + size
		if end > len(texts) {
			end = len(texts)
		}

		out = append(out, texts[start:end])
	}

	return out
}
