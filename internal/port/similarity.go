package port

import "context"

// Embedder turns texts into vectors. Vectors returned for one call share a dimension.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// VectorIndex ranks stored ids by similarity to a query vector.
type VectorIndex interface {
	// Add stores vectors under ids, in order
	Add(ids []string, vectors [][]float32) error

	// Search returns at most k ids with their scores, best first
	Search(ctx context.Context, query []float32, k int) ([]string, []float32, error)
}
