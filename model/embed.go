package model

import "context"

// Embedding model is a deployment concern: ingestion and query-time
// embedding must use the same model or retrieval silently degrades.
const (
	EmbeddingModel     = "text-embedding-3-small"
	EmbeddingDimension = 1536
)

// EmbedderInterface converts text into a fixed-dimensionality vector.
type EmbedderInterface interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}
