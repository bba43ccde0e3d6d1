// Package vectorstore persists chunks with their embeddings and answers
// top-k cosine similarity queries.
package vectorstore

import (
	"context"

	"github.com/finsight/finsight/internal/models"
)

// Stats describes the store's current contents.
type Stats struct {
	ChunkCount int `json:"chunk_count"`
	// Dimension is 0 until the first successful Add establishes it.
	Dimension int `json:"dimension"`
}

// Store persists chunk text, vector, and metadata, and answers "k most
// similar vectors to query vector". Add and Search may run concurrently;
// a Search observes either the pre- or post-state of a concurrent Add,
// never a partially written chunk.
type Store interface {
	// Add durably persists the chunks before returning and gives back their
	// new ids. The three slices must have equal length.
	Add(ctx context.Context, contents []string, vectors [][]float32, metadatas []models.Metadata) ([]string, error)
	// Search returns up to k results ordered by descending cosine similarity,
	// ties broken by insertion order. filter, when non-nil, restricts
	// candidates to chunks whose metadata superset-matches it.
	Search(ctx context.Context, query []float32, k int, filter models.Metadata) ([]*models.RetrievalResult, error)
	// DeleteBySource removes all chunks whose "source" metadata equals source
	// and returns how many were removed.
	DeleteBySource(ctx context.Context, source string) (int, error)
	// Clear removes every chunk and returns the count removed. Clearing an
	// empty store returns 0 without error.
	Clear(ctx context.Context) (int, error)
	Stats(ctx context.Context) (*Stats, error)
	Close() error
}
