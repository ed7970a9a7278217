// Package vectorstore defines the vector index capability backing knowledge
// collections: one index per collection, chunk documents stored alongside
// their embeddings. The engine itself is external (RediSearch); this package
// only orchestrates it.
package vectorstore

import (
	"context"
	"time"

	"github.com/vanasso-deeplearning/kbrag/internal/domain"
)

// Store is the full vector index contract. Consumers should depend on the
// narrow subset they use, not on this facade.
type Store interface {
	// CreateIndex creates the index for a collection with the given
	// embedding dimensionality.
	CreateIndex(ctx context.Context, indexID string, dim int) error

	// DropIndex removes the index and every chunk stored under it.
	DropIndex(ctx context.Context, indexID string) error

	// IndexExists reports whether the collection has ever been indexed.
	IndexExists(ctx context.Context, indexID string) (bool, error)

	// AddChunks stores chunks with their embeddings. vectors[i] belongs
	// to chunks[i].
	AddChunks(ctx context.Context, indexID string, chunks []domain.Chunk, vectors [][]float32) error

	// SearchKNN returns up to k chunks most similar to the query vector,
	// scores normalized to similarity (higher is better), best first.
	SearchKNN(ctx context.Context, indexID string, vector []float32, k int) ([]domain.RetrievedDocument, error)

	// ListSources returns the distinct source identifiers present in the
	// index's stored chunk metadata.
	ListSources(ctx context.Context, indexID string) (map[string]struct{}, error)

	// CountChunks returns the number of chunks stored in the index.
	CountChunks(ctx context.Context, indexID string) (int, error)

	Ping(ctx context.Context) error
	WaitForReady(ctx context.Context, timeout time.Duration) error
	Close()
}
